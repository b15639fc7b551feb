package domain

import "net/http"

// MaxURLsPerSubmission is the IndexNow limit on urlList entries per request.
const MaxURLsPerSubmission = 10000

// Payload is the canonical IndexNow submission body sent to every endpoint.
//
// It is built fresh for each inbound request and never mutated afterwards.
type Payload struct {
	// ─────────────────────────────
	// Site identity
	// ─────────────────────────────

	// Host is the site hostname every URL must belong to.
	// Example: www.example.com
	Host string `json:"host"`

	// Key is the IndexNow ownership key.
	Key string `json:"key"`

	// KeyLocation is the public URL serving the key file.
	// Example: https://www.example.com/0f1e2d.txt
	KeyLocation string `json:"keyLocation"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	// URLList holds the changed URLs, in caller order, at most
	// MaxURLsPerSubmission entries. Duplicates are allowed.
	URLList []string `json:"urlList"`
}

// EndpointResult is the final outcome of submitting to one endpoint.
// Exactly one is produced per endpoint per request.
type EndpointResult struct {
	Endpoint string `json:"endpoint"`
	OK       bool   `json:"ok"`

	// StatusCode is the last HTTP status received, 0 if the endpoint was never reached.
	StatusCode int    `json:"status"`
	Body       string `json:"body"`
}

// Accepted reports whether the endpoint explicitly accepted the submission.
// IndexNow receivers answer 200 or 202 for accepted batches; any other
// success code stops retries but does not count as acceptance.
func (r EndpointResult) Accepted() bool {
	return r.OK && (r.StatusCode == http.StatusOK || r.StatusCode == http.StatusAccepted)
}

// Outcome is the aggregated report returned to the caller.
type Outcome struct {
	OK        bool             `json:"ok"`
	Submitted int              `json:"submitted"`
	Results   []EndpointResult `json:"endpoints"`
}

// StatusCode returns the HTTP status for the response: 200 when at least one
// endpoint accepted, 207 Multi-Status otherwise.
func (o Outcome) StatusCode() int {
	if o.OK {
		return http.StatusOK
	}
	return http.StatusMultiStatus
}
