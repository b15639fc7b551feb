package deps

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/indexnotify/internal/domain"
	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/mw"
	"github.com/MrSnakeDoc/indexnotify/internal/index"
	"github.com/MrSnakeDoc/indexnotify/internal/logger"
	"github.com/MrSnakeDoc/indexnotify/internal/observability"
)

// Dispatcher fans a payload out to a list of endpoints.
type Dispatcher interface {
	Dispatch(ctx context.Context, p domain.Payload, endpoints []string) []domain.EndpointResult
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed on operator routes
	AllowedCIDRS []string         // IPs allowed on /reload, /readyz and /metrics
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)

	Site           domain.Site          // host, key and key location submissions are made for
	Token          string               // shared secret for X-Notify-Token
	ExtraEndpoints []string             // endpoints from NOTIFY_EXTRA_ENDPOINTS
	EndpointIndex  *index.EndpointIndex // endpoints from the endpoints file (nil if disabled)
	Dispatcher     Dispatcher

	MaxBodyBytes    int64         // inbound /notify body cap
	DispatchTimeout time.Duration // 0 = wait for every endpoint
	RequestTimeout  time.Duration // timeout for every route except /notify

	Limiter  mw.Limiter             // rate limiter for POST /notify (nil = unlimited)
	Metrics  *observability.Metrics // nil disables metrics
	Gatherer prometheus.Gatherer    // registry exposed on /metrics

	RedisClient   *redis.Client // nil when Redis is not configured
	ReloadTrigger chan struct{} // manual endpoints reload (nil if no endpoints file)
}

// Endpoints returns the working endpoint set for one request: defaults, then
// env extras, then file extras, deduplicated.
func (d Deps) Endpoints() []string {
	return domain.NewRegistry(domain.DefaultEndpoints, d.ExtraEndpoints, d.EndpointIndex.Extras()).Endpoints()
}
