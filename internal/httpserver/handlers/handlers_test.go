package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/indexnotify/internal/domain"
	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/deps"
	"github.com/MrSnakeDoc/indexnotify/internal/index"
	"github.com/MrSnakeDoc/indexnotify/internal/logger"
)

// fakeDispatcher answers every endpoint with the status in replies
// (default 200) and records what it was asked to send.
type fakeDispatcher struct {
	mu          sync.Mutex
	replies     map[string]int
	calls       int
	payload     domain.Payload
	endpoints   []string
	hadDeadline bool
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, p domain.Payload, endpoints []string) []domain.EndpointResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.payload = p
	f.endpoints = endpoints
	_, f.hadDeadline = ctx.Deadline()

	out := make([]domain.EndpointResult, len(endpoints))
	for i, ep := range endpoints {
		code, ok := f.replies[ep]
		if !ok {
			code = http.StatusOK
		}
		out[i] = domain.EndpointResult{Endpoint: ep, OK: code < 400, StatusCode: code}
	}
	return out
}

func testDeps(disp deps.Dispatcher) deps.Deps {
	return deps.Deps{
		Logger:       logger.NewNop(),
		StartTime:    time.Now(),
		TimeNow:      time.Now,
		Site:         domain.Site{Host: "www.example.com", Key: "0f1e2d", KeyLocation: "https://www.example.com/0f1e2d.txt"},
		Token:        "s3cret",
		Dispatcher:   disp,
		MaxBodyBytes: 1 << 20,
	}
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestNotify_InvalidJSON(t *testing.T) {
	disp := &fakeDispatcher{}
	rec := post(Notify(testDeps(disp)), "{not json")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body errorResponse
	decode(t, rec, &body)
	if body.Error != "invalid json" || body.Detail != nil {
		t.Errorf("body = %+v", body)
	}
	if disp.calls != 0 {
		t.Error("dispatcher should not be called")
	}
}

func TestNotify_BodyTooLarge(t *testing.T) {
	d := testDeps(&fakeDispatcher{})
	d.MaxBodyBytes = 16

	rec := post(Notify(d), `{"urlList":["https://www.example.com/a-very-long-path"]}`)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "invalid json") {
		t.Errorf("got %d %q, want 400 invalid json", rec.Code, rec.Body.String())
	}
}

func TestNotify_ValidationDetail(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		body      string
		wantKey   bool
		wantCount int
	}{
		{"no urls", "0f1e2d", `{"urlList":[]}`, true, 0},
		{"only foreign urls", "0f1e2d", `{"urlList":["https://other.example.org/a"]}`, true, 0},
		{"no key configured", "", `{"urlList":["https://www.example.com/a"]}`, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			disp := &fakeDispatcher{}
			d := testDeps(disp)
			d.Site.Key = tt.key
			d.Site.KeyLocation = domain.KeyLocationFor(d.Site.Host, tt.key, "")

			rec := post(Notify(d), tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}

			var body struct {
				Error  string                  `json:"error"`
				Detail domain.ValidationDetail `json:"detail"`
			}
			decode(t, rec, &body)
			if body.Error != "key or urlList missing" {
				t.Errorf("error = %q", body.Error)
			}
			if body.Detail.HasKey != tt.wantKey || body.Detail.URLCount != tt.wantCount || body.Detail.HostExpected != "www.example.com" {
				t.Errorf("detail = %+v", body.Detail)
			}
			if strings.Contains(rec.Body.String(), "0f1e2d") {
				t.Error("response leaks the key")
			}
			if disp.calls != 0 {
				t.Error("dispatcher should not be called")
			}
		})
	}
}

func TestNotify_Accepted(t *testing.T) {
	disp := &fakeDispatcher{}
	d := testDeps(disp)
	d.ExtraEndpoints = []string{"https://partner.test/indexnow", domain.DefaultEndpoints[0]}

	rec := post(Notify(d), `{"urlList":["https://www.example.com/a","https://evil.test/x","https://www.example.com/b"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	var out domain.Outcome
	decode(t, rec, &out)
	if !out.OK || out.Submitted != 2 {
		t.Errorf("outcome = %+v", out)
	}
	if len(out.Results) != len(domain.DefaultEndpoints)+1 {
		t.Errorf("results = %d, want defaults plus one extra", len(out.Results))
	}

	if got := disp.payload.URLList; len(got) != 2 || got[0] != "https://www.example.com/a" || got[1] != "https://www.example.com/b" {
		t.Errorf("payload urls = %v", got)
	}
	if disp.payload.Key != "0f1e2d" || disp.payload.KeyLocation != "https://www.example.com/0f1e2d.txt" || disp.payload.Host != "www.example.com" {
		t.Errorf("payload identity = %+v", disp.payload)
	}
	if last := disp.endpoints[len(disp.endpoints)-1]; last != "https://partner.test/indexnow" {
		t.Errorf("extra endpoint should come after defaults, got %v", disp.endpoints)
	}
	if disp.hadDeadline {
		t.Error("no dispatch deadline expected when DispatchTimeout is 0")
	}
}

func TestNotify_MultiStatus(t *testing.T) {
	replies := make(map[string]int)
	for _, ep := range domain.DefaultEndpoints {
		replies[ep] = http.StatusNotModified
	}
	disp := &fakeDispatcher{replies: replies}

	rec := post(Notify(testDeps(disp)), `{"urlList":["https://www.example.com/a"]}`)
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d, want 207", rec.Code)
	}

	var out domain.Outcome
	decode(t, rec, &out)
	if out.OK {
		t.Error("304 answers must not count as accepted")
	}
	for _, r := range out.Results {
		if !r.OK || r.StatusCode != http.StatusNotModified {
			t.Errorf("result = %+v", r)
		}
	}
}

func TestNotify_DispatchTimeout(t *testing.T) {
	disp := &fakeDispatcher{}
	d := testDeps(disp)
	d.DispatchTimeout = time.Minute

	if rec := post(Notify(d), `{"urlList":["https://www.example.com/a"]}`); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !disp.hadDeadline {
		t.Error("dispatch context should carry the configured deadline")
	}
}

func TestNotify_FileEndpoints(t *testing.T) {
	disp := &fakeDispatcher{}
	d := testDeps(disp)
	d.EndpointIndex = index.NewEndpointIndex()
	d.EndpointIndex.Update("endpoints.yaml", []string{"https://file.test/indexnow"})

	if rec := post(Notify(d), `{"urlList":["https://www.example.com/a"]}`); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if last := disp.endpoints[len(disp.endpoints)-1]; last != "https://file.test/indexnow" {
		t.Errorf("file endpoint missing, got %v", disp.endpoints)
	}
}

func TestStatus(t *testing.T) {
	d := testDeps(&fakeDispatcher{})
	d.ExtraEndpoints = []string{"https://partner.test/indexnow"}

	rec := httptest.NewRecorder()
	Status(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notify/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body statusResponse
	decode(t, rec, &body)

	if !body.OK || body.Message != "IndexNow endpoint OK" || body.Host != "www.example.com" {
		t.Errorf("body = %+v", body)
	}
	if !body.HasKey || !body.HasToken || body.KeyLocation != "https://www.example.com/0f1e2d.txt" {
		t.Errorf("identity flags = %+v", body)
	}
	if len(body.Endpoints) != len(domain.DefaultEndpoints)+1 {
		t.Errorf("endpoints = %v", body.Endpoints)
	}
	if strings.Contains(rec.Body.String(), "s3cret") {
		t.Error("status leaks the token")
	}
}

func TestHealthz(t *testing.T) {
	d := testDeps(nil)
	d.Version = "v1.2.3"
	d.StartTime = time.Now().Add(-time.Minute)

	rec := httptest.NewRecorder()
	Healthz(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body healthzResponse
	decode(t, rec, &body)
	if body.Status != "ok" || body.Version != "v1.2.3" || body.UptimeSeconds < 59 {
		t.Errorf("body = %+v", body)
	}
}

func TestReadyz(t *testing.T) {
	t.Run("without redis", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Readyz(testDeps(nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var body readyzResponse
		decode(t, rec, &body)
		if !body.Ready || body.Components["redis"].Mode != "disabled" || body.Components["endpoints"].Mode != "env-only" {
			t.Errorf("body = %+v", body)
		}
	})

	t.Run("redis up then down", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		defer func() { _ = client.Close() }()

		d := testDeps(nil)
		d.RedisClient = client
		d.EndpointIndex = index.NewEndpointIndex()

		rec := httptest.NewRecorder()
		Readyz(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var body readyzResponse
		decode(t, rec, &body)
		if body.Components["endpoints"].Loaded != "never" {
			t.Errorf("endpoints = %+v", body.Components["endpoints"])
		}

		mr.Close()
		rec = httptest.NewRecorder()
		Readyz(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}

func TestReload(t *testing.T) {
	t.Run("no endpoints file", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Reload(testDeps(nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reload", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("trigger then busy", func(t *testing.T) {
		d := testDeps(nil)
		d.ReloadTrigger = make(chan struct{}, 1)

		rec := httptest.NewRecorder()
		Reload(d).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reload", nil))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", rec.Code)
		}

		rec = httptest.NewRecorder()
		Reload(d).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reload", nil))
		if rec.Code != http.StatusTooManyRequests {
			t.Errorf("status = %d, want 429 while a reload is pending", rec.Code)
		}
	})
}
