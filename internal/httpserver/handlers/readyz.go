package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	Count  *int   `json:"count,omitempty"`
	Loaded string `json:"last_reload,omitempty"`
	Error  string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Components map[string]componentStatus `json:"components"`
}

// Readyz reports whether submissions can be served. Redis is only required
// when it is configured; the endpoints file is informational since the
// defaults always apply.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redisStatus := checkRedis(r.Context(), d)

		resp := readyzResponse{
			Ready: redisStatus.OK,
			Components: map[string]componentStatus{
				"redis":     redisStatus,
				"endpoints": checkEndpoints(d),
			},
		}

		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp, d.Logger)
	}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{OK: true, Mode: "disabled"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{OK: false, Mode: "shared-rate-limit", Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: "shared-rate-limit"}
}

func checkEndpoints(d deps.Deps) componentStatus {
	total := len(d.Endpoints())
	st := componentStatus{OK: true, Count: &total}

	if d.EndpointIndex == nil {
		st.Mode = "env-only"
		return st
	}
	st.Mode = "file"
	if last := d.EndpointIndex.LastReload(); !last.IsZero() {
		st.Loaded = last.UTC().Format(time.RFC3339)
	} else {
		st.Loaded = "never"
	}
	return st
}
