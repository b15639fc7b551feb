package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/deps"
	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/mw"
)

func init() { Register(registerNotify) }

// registerNotify mounts the submission API. The rate limiter runs before the
// token check so guessing tokens is throttled too.
func registerNotify(r chi.Router, d deps.Deps) {
	var mws []Middleware
	if d.Limiter != nil {
		mws = append(mws, mw.RateLimit(d.Limiter, d.TrustProxy, d.Metrics, d.Logger))
	}
	mws = append(mws, mw.RequireToken(d.Token, d.TrustProxy, d.Logger))

	r.With(mws...).Post("/notify", handlers.Notify(d))
	r.With(timeout(d)).Get("/notify/status", handlers.Status(d))
}
