package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MrSnakeDoc/indexnotify/internal/domain"
)

// Metrics holds the Prometheus instruments for the notifier.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SubmissionsTotal    *prometheus.CounterVec
	AttemptsTotal       *prometheus.CounterVec
	EndpointResults     *prometheus.CounterVec
	DispatchDuration    prometheus.Histogram
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ReloadsTotal        *prometheus.CounterVec
	FileEndpoints       prometheus.Gauge
	RateLimitedTotal    prometheus.Counter
}

// NewMetrics registers the instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SubmissionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexnotify_submissions_total",
				Help: "Authorized submissions by result (accepted, partial, invalid).",
			},
			[]string{"result"},
		),
		AttemptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexnotify_endpoint_attempts_total",
				Help: "Outbound attempts per endpoint by outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
		EndpointResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexnotify_endpoint_results_total",
				Help: "Final per-endpoint results.",
			},
			[]string{"endpoint", "ok", "status"},
		),
		DispatchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "indexnotify_dispatch_duration_seconds",
				Help:    "Wall-clock time of a full fan-out, including retries.",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40},
			},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		ReloadsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexnotify_endpoints_reloads_total",
				Help: "Endpoints file reloads by trigger and result.",
			},
			[]string{"trigger", "result"},
		),
		FileEndpoints: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexnotify_file_endpoints",
				Help: "Endpoints currently loaded from the endpoints file.",
			},
		),
		RateLimitedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "indexnotify_rate_limited_total",
				Help: "Submissions rejected by the rate limiter.",
			},
		),
	}
}

// RecordSubmission counts one inbound submission.
func (m *Metrics) RecordSubmission(result string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(result).Inc()
}

// RecordAttempt counts one outbound attempt.
func (m *Metrics) RecordAttempt(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// RecordResult counts the final result of an endpoint.
func (m *Metrics) RecordResult(r domain.EndpointResult) {
	if m == nil {
		return
	}
	m.EndpointResults.WithLabelValues(r.Endpoint, strconv.FormatBool(r.OK), strconv.Itoa(r.StatusCode)).Inc()
}

// ObserveDispatch records the duration of one fan-out.
func (m *Metrics) ObserveDispatch(d time.Duration) {
	if m == nil {
		return
	}
	m.DispatchDuration.Observe(d.Seconds())
}

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, code).Observe(d.Seconds())
}

// RecordReload counts one endpoints file reload. count is only applied on success.
func (m *Metrics) RecordReload(trigger string, err error, count int) {
	if m == nil {
		return
	}
	if err != nil {
		m.ReloadsTotal.WithLabelValues(trigger, "error").Inc()
		return
	}
	m.ReloadsTotal.WithLabelValues(trigger, "ok").Inc()
	m.FileEndpoints.Set(float64(count))
}

// RecordRateLimited counts one rejected submission.
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitedTotal.Inc()
}
