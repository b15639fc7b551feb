package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/indexnotify/internal/domain"
	"github.com/MrSnakeDoc/indexnotify/internal/logger"
	"github.com/MrSnakeDoc/indexnotify/internal/observability"
)

// SleepFunc waits d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real-clock SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Config holds the dispatcher collaborators. Metrics and Tracer are optional.
type Config struct {
	Policy    Policy
	Transport Transport
	Sleep     SleepFunc
	Metrics   *observability.Metrics
	Tracer    *observability.Tracer
}

// Dispatcher fans a payload out to every endpoint concurrently.
type Dispatcher struct {
	policy    Policy
	transport Transport
	sleep     SleepFunc
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	logger    logger.Logger
}

// New creates a dispatcher. A nil Sleep uses the real clock.
func New(cfg Config, log logger.Logger) *Dispatcher {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	return &Dispatcher{
		policy:    cfg.Policy,
		transport: cfg.Transport,
		sleep:     sleep,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
		logger:    log,
	}
}

// Dispatch submits p to every endpoint and waits for all of them.
// It returns exactly one result per endpoint, in endpoint order. A failing or
// panicking endpoint never affects the others.
func (d *Dispatcher) Dispatch(ctx context.Context, p domain.Payload, endpoints []string) []domain.EndpointResult {
	start := time.Now()
	results := make([]domain.EndpointResult, len(endpoints))

	body, err := json.Marshal(p)
	if err != nil {
		for i, ep := range endpoints {
			results[i] = domain.EndpointResult{Endpoint: ep, Body: fmt.Sprintf("marshal payload: %v", err)}
		}
		return results
	}

	var wg sync.WaitGroup
	for i, ep := range endpoints {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = d.runEndpoint(ctx, ep, body, len(p.URLList))
		}()
	}
	wg.Wait()

	d.metrics.ObserveDispatch(time.Since(start))
	return results
}

// runEndpoint wraps submit so a panic becomes a recorded failure.
func (d *Dispatcher) runEndpoint(ctx context.Context, endpoint string, body []byte, urlCount int) (res domain.EndpointResult) {
	ctx, span := d.tracer.StartSubmitSpan(ctx, endpoint, urlCount)
	attempts := 0

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("endpoint submission panicked",
				logger.String("endpoint", endpoint),
				logger.String("panic", fmt.Sprint(r)))
			res = domain.EndpointResult{
				Endpoint: endpoint,
				Body:     fmt.Sprintf("submission panicked: %v", r),
			}
		}
		d.tracer.EndSubmitSpan(span, res, attempts)
		d.metrics.RecordResult(res)
	}()

	return d.submit(ctx, endpoint, body, &attempts)
}

// submit drives the retry state machine for one endpoint to a terminal phase.
func (d *Dispatcher) submit(ctx context.Context, endpoint string, body []byte, attempts *int) domain.EndpointResult {
	var s State
	for s.Phase == Attempting {
		if err := ctx.Err(); err != nil {
			s = s.Cancel(err)
			break
		}

		resp, err := d.transport.Post(ctx, endpoint, body)
		*attempts++

		var wait time.Duration
		s, wait = d.policy.Next(s, Attempt{Response: resp, Err: err})
		d.metrics.RecordAttempt(endpoint, attemptOutcome(err, s.Phase))

		if s.Phase != Attempting {
			break
		}

		d.logger.Debug("endpoint attempt failed, backing off",
			logger.String("endpoint", endpoint),
			logger.Int("attempt", s.Attempt),
			attemptField(resp, err),
			logger.Duration("wait", wait))

		if err := d.sleep(ctx, wait); err != nil {
			s = s.Cancel(err)
		}
	}

	res := s.Result(endpoint)
	if !res.OK {
		d.logger.Warn("endpoint did not accept submission",
			logger.String("endpoint", endpoint),
			logger.Int("status", res.StatusCode),
			logger.Int("attempts", *attempts))
	} else {
		d.logger.Debug("endpoint accepted submission",
			logger.String("endpoint", endpoint),
			logger.Int("status", res.StatusCode),
			logger.Int("attempts", *attempts))
	}
	return res
}

// attemptField describes a failed attempt: the transport error when nothing
// was received, else the response status.
func attemptField(resp Response, err error) logger.Field {
	if err != nil {
		return logger.Error(err)
	}
	return logger.Int("status", resp.StatusCode)
}

func attemptOutcome(err error, next Phase) string {
	switch {
	case err != nil:
		return "network_error"
	case next == Succeeded:
		return "success"
	case next == Attempting:
		return "retry"
	default:
		return "failed"
	}
}
