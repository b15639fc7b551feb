package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/MrSnakeDoc/indexnotify/internal/logger"
	"github.com/MrSnakeDoc/indexnotify/internal/observability"
)

func TestAllowOnlyCIDRS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		trustProxy bool
		remoteAddr string
		xff        string
		wantCode   int
	}{
		{"empty list passthrough", nil, false, "203.0.113.1:80", "", http.StatusOK},
		{"cidr match", []string{"10.0.0.0/8"}, false, "10.1.2.3:80", "", http.StatusOK},
		{"exact ip", []string{"192.168.1.1"}, false, "192.168.1.1:80", "", http.StatusOK},
		{"outside", []string{"10.0.0.0/8"}, false, "203.0.113.1:80", "", http.StatusForbidden},
		{"xff ignored without trust", []string{"10.0.0.0/8"}, false, "203.0.113.1:80", "10.0.0.5", http.StatusForbidden},
		{"xff honoured with trust", []string{"10.0.0.0/8"}, true, "127.0.0.1:80", "10.0.0.5, 1.1.1.1", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := AllowOnlyCIDRS(tt.allowed, tt.trustProxy, logger.NewNop())(okHandler)
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestEnforceHost(t *testing.T) {
	tests := []struct {
		name     string
		allowed  []string
		host     string
		wantCode int
	}{
		{"passthrough", nil, "anything.test", http.StatusOK},
		{"exact", []string{"notify.example.com"}, "notify.example.com", http.StatusOK},
		{"exact with port", []string{"notify.example.com"}, "notify.example.com:8080", http.StatusOK},
		{"case insensitive", []string{"Notify.Example.com"}, "NOTIFY.example.com", http.StatusOK},
		{"wildcard", []string{"*.example.com"}, "a.example.com", http.StatusOK},
		{"wildcard excludes apex", []string{"*.example.com"}, "example.com", http.StatusForbidden},
		{"other host", []string{"notify.example.com"}, "evil.test", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := EnforceHost(tt.allowed, logger.NewNop())(okHandler)
			req := httptest.NewRequest(http.MethodGet, "/reload", nil)
			req.Host = tt.host
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestMetricsMiddleware(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Use(Log(logger.NewNop(), false))
	r.Get("/notify/status", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})
	r.Post("/notify", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMultiStatus)
	})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/notify/status"},
		{http.MethodPost, "/notify"},
		{http.MethodGet, "/nope"},
	} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tc.method, tc.path, nil))
	}

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/notify/status", "200")); got != 1 {
		t.Errorf("status route count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/notify", "207")); got != 1 {
		t.Errorf("notify route count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("unmatched count = %v, want 1", got)
	}
}

func TestMetricsMiddlewareNil(t *testing.T) {
	h := Metrics(nil)(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
