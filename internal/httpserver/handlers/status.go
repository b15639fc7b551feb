package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/deps"
)

const statusMessage = "IndexNow endpoint OK"

type statusResponse struct {
	OK          bool     `json:"ok"`
	Message     string   `json:"message"`
	Host        string   `json:"host"`
	HasKey      bool     `json:"hasKey"`
	HasToken    bool     `json:"hasToken"`
	KeyLocation string   `json:"keyLocation"`
	Endpoints   []string `json:"endpoints"`
}

// Status reports the configuration a submission would use. The key file
// location is public by protocol; the key and token themselves are never shown.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse{
			OK:          true,
			Message:     statusMessage,
			Host:        d.Site.Host,
			HasKey:      d.Site.Key != "",
			HasToken:    d.Token != "",
			KeyLocation: d.Site.KeyLocation,
			Endpoints:   d.Endpoints(),
		}, d.Logger)
	}
}
