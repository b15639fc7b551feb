package dispatch

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/indexnotify/internal/domain"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the wait before the first retry.
	DefaultBaseDelay = 1600 * time.Millisecond
	// DefaultMaxDelay caps the exponential backoff.
	DefaultMaxDelay = 8 * time.Second
)

// Phase is the state of one endpoint's submission.
type Phase int

const (
	// Attempting means another attempt is due.
	Attempting Phase = iota
	// Succeeded means the endpoint answered below 400.
	Succeeded
	// Failed means the endpoint rejected the submission or the budget is spent.
	Failed
)

func (p Phase) String() string {
	switch p {
	case Attempting:
		return "attempting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the per-endpoint retry state. The zero value is Attempting(0).
type State struct {
	Phase Phase

	// Attempt is the zero-based index of the current attempt.
	Attempt int

	StatusCode int
	Body       string
	LastError  string

	// received is set once any attempt got an HTTP response.
	received bool
}

// Attempt is what one try produced: either a response or a transport error.
type Attempt struct {
	Response Response
	Err      error
}

// Policy decides transitions and backoff. It holds no state.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultPolicy returns 3 retries with 1.6s·2^n backoff capped at 8s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

// Backoff returns the wait before attempt n+1: min(base·2^n, max).
func (p Policy) Backoff(n int) time.Duration {
	wait := p.BaseDelay
	for i := 0; i < n && wait < p.MaxDelay; i++ {
		wait *= 2
	}
	if wait > p.MaxDelay {
		wait = p.MaxDelay
	}
	return wait
}

// WorstCase returns the longest a single endpoint can take when every
// attempt runs into attemptTimeout.
func (p Policy) WorstCase(attemptTimeout time.Duration) time.Duration {
	total := time.Duration(p.MaxRetries+1) * attemptTimeout
	for n := 0; n < p.MaxRetries; n++ {
		total += p.Backoff(n)
	}
	return total
}

// Next applies the outcome of the current attempt to s. When the returned
// state is still Attempting, the caller must wait the returned duration
// before trying again.
func (p Policy) Next(s State, a Attempt) (State, time.Duration) {
	if s.Phase != Attempting {
		return s, 0
	}

	if a.Err != nil {
		s.LastError = a.Err.Error()
		return p.retryOrFail(s)
	}

	code := a.Response.StatusCode
	s.received = true
	s.StatusCode = code
	s.Body = a.Response.Body

	switch {
	case code < http.StatusBadRequest:
		s.Phase = Succeeded
		return s, 0
	case retryableStatus(code):
		return p.retryOrFail(s)
	default:
		// Other 4xx will not fix themselves; keep the retry budget.
		s.Phase = Failed
		return s, 0
	}
}

func (p Policy) retryOrFail(s State) (State, time.Duration) {
	if s.Attempt < p.MaxRetries {
		wait := p.Backoff(s.Attempt)
		s.Attempt++
		return s, wait
	}
	s.Phase = Failed
	return s, 0
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// Cancel ends an in-flight sequence because the caller gave up.
func (s State) Cancel(err error) State {
	if s.Phase != Attempting {
		return s
	}
	s.Phase = Failed
	if err != nil {
		s.LastError = err.Error()
	}
	return s
}

// Result converts a terminal state into the endpoint's reported result.
// A failure that never got an HTTP response reports status 0 and the last
// transport error; otherwise the last response received is reported.
func (s State) Result(endpoint string) domain.EndpointResult {
	res := domain.EndpointResult{
		Endpoint:   endpoint,
		OK:         s.Phase == Succeeded,
		StatusCode: s.StatusCode,
		Body:       s.Body,
	}
	if !s.received {
		res.StatusCode = 0
		res.Body = s.LastError
		if res.Body == "" {
			res.Body = "network error"
		}
	}
	return res
}
