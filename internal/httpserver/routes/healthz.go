package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/deps"
	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/handlers"
)

func init() { Register(registerHealthz) }

func registerHealthz(r chi.Router, d deps.Deps) {
	r.With(timeout(d)).Get("/healthz", handlers.Healthz(d))
}
