package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/deps"
	"github.com/MrSnakeDoc/indexnotify/internal/logger"
)

type reloadResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// Reload asks the endpoints reloader to re-read the endpoints file now.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.ReloadTrigger == nil {
			writeJSON(w, http.StatusNotFound, reloadResponse{
				Message: "no endpoints file configured",
			}, d.Logger)
			return
		}

		select {
		case d.ReloadTrigger <- struct{}{}:
			d.Logger.Info("manual endpoints reload triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, reloadResponse{
				Triggered: true,
				Message:   "reload triggered",
			}, d.Logger)
		default:
			d.Logger.Warn("endpoints reload already in progress",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, reloadResponse{
				Message: "reload already in progress, please wait",
			}, d.Logger)
		}
	}
}
