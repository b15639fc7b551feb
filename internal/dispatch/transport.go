package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/indexnotify/internal/utils"
	"github.com/MrSnakeDoc/indexnotify/internal/version"
)

// maxResponseBody caps how much of an endpoint's reply is kept.
const maxResponseBody = 64 << 10

// Response is the part of an endpoint reply the policy looks at.
type Response struct {
	StatusCode int
	Body       string
}

// Transport sends one submission attempt.
// A non-nil error means no HTTP response was obtained.
type Transport interface {
	Post(ctx context.Context, endpoint string, body []byte) (Response, error)
}

// HTTPTransport posts JSON payloads over net/http.
type HTTPTransport struct {
	client    *http.Client
	userAgent string
}

// NewHTTPTransport builds a transport whose attempts time out after timeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client:    &http.Client{Timeout: timeout},
		userAgent: "indexnotify/" + version.Version,
	}
}

// Post sends body to endpoint.
func (t *HTTPTransport) Post(ctx context.Context, endpoint string, body []byte) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req) //nolint:gosec // endpoints come from operator configuration
	if err != nil {
		return Response{}, err
	}
	defer utils.Close(resp.Body)

	// A truncated or unreadable body still counts as a received response.
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	return Response{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
	}, nil
}
