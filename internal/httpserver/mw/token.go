package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/indexnotify/internal/domain"
	"github.com/MrSnakeDoc/indexnotify/internal/logger"
	"github.com/MrSnakeDoc/indexnotify/internal/utils"
)

// TokenHeader carries the shared secret on protected routes.
const TokenHeader = "X-Notify-Token"

// RequireToken rejects requests whose TokenHeader does not match secret.
// With an empty secret every request is rejected.
func RequireToken(secret string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	if secret == "" {
		log.Warn("RequireToken: no token configured, protected routes will answer 401")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := domain.Authorize(r.Header.Get(TokenHeader), secret); err != nil {
				log.Debug("RequireToken: rejected",
					logger.String("path", r.URL.Path),
					logger.String("remote_ip", utils.ClientIP(r, trustProxy)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
