package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/indexnotify/internal/domain"
	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/deps"
	"github.com/MrSnakeDoc/indexnotify/internal/logger"
)

// Notify validates a submission and fans it out to every endpoint.
// Authentication and rate limiting happen in middleware before this runs.
func Notify(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, d.MaxBodyBytes))
		if err != nil {
			d.Metrics.RecordSubmission("invalid")
			d.Logger.Debug("failed to read submission body", logger.Error(err))
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: domain.ErrInvalidJSON.Error()}, d.Logger)
			return
		}

		p, err := domain.ParsePayload(body, d.Site)
		if err != nil {
			d.Metrics.RecordSubmission("invalid")
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message, Detail: verr.Detail}, d.Logger)
				return
			}
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: domain.ErrInvalidJSON.Error()}, d.Logger)
			return
		}

		endpoints := d.Endpoints()

		// The fan-out outlives a disconnecting caller; only the optional
		// dispatch timeout bounds it.
		ctx := context.WithoutCancel(r.Context())
		if d.DispatchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.DispatchTimeout)
			defer cancel()
		}

		results := d.Dispatcher.Dispatch(ctx, p, endpoints)
		out := domain.Aggregate(len(p.URLList), results)

		result := "accepted"
		if !out.OK {
			result = "partial"
		}
		d.Metrics.RecordSubmission(result)
		d.Logger.Info("submission dispatched",
			logger.Int("urls", out.Submitted),
			logger.Int("endpoints", len(endpoints)),
			logger.Bool("ok", out.OK))

		writeJSON(w, out.StatusCode(), out, d.Logger)
	}
}
