package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/deps"
	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/mw"
)

func init() { Register(registerReload) }

func registerReload(r chi.Router, d deps.Deps) {
	mws := append(operator(d), mw.RequireToken(d.Token, d.TrustProxy, d.Logger))
	r.With(mws...).Post("/reload", handlers.Reload(d))
}
