package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/deps"
	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/handlers"
)

func init() { Register(registerReadyz) }

func registerReadyz(r chi.Router, d deps.Deps) {
	r.With(operator(d)...).Get("/readyz", handlers.Readyz(d))
}
