package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/indexnotify/internal/dispatch"
	"github.com/MrSnakeDoc/indexnotify/internal/domain"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	WriteTimeout    time.Duration // must outlast a /notify dispatch, see validate
	RequestTimeout  time.Duration // per-request timeout for every route except /notify

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Site identity
	Host        string // hostname every submitted URL must belong to
	Key         string // IndexNow key (optional, submissions are rejected without it)
	KeyLocation string // explicit or derived https://{host}/{key}.txt
	Token       string // shared secret expected in X-Notify-Token

	// Endpoints
	ExtraEndpoints string        // comma-separated extra endpoints, kept raw for the registry
	EndpointsFile  string        // optional YAML file with more endpoints (hot reloaded)
	ReloadInterval time.Duration // periodic re-read of EndpointsFile

	// Dispatch
	MaxRetries      int           // retries after the first attempt (default 3)
	BackoffBase     time.Duration // wait before the first retry (default 1.6s)
	BackoffMax      time.Duration // backoff cap (default 8s)
	SubmitTimeout   time.Duration // timeout of a single outbound attempt
	DispatchTimeout time.Duration // 0 = no bound on the whole fan-out
	MaxBodyBytes    int64         // inbound body cap

	// Rate limiting of POST /notify
	RateLimitBurst  int
	RateLimitPerMin int

	// Redis (optional; enables shared rate limiting)
	RedisAddr           string        // ex: "localhost:6379", empty = disabled
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict /reload and /metrics to specific IPs (e.g. "1.2.3.4, 10.0.0.0/8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("NOTIFY_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("NOTIFY_SHUTDOWN_TIMEOUT", 5*time.Second),
		WriteTimeout:    mustDuration("NOTIFY_WRITE_TIMEOUT", 2*time.Minute),
		RequestTimeout:  mustDuration("NOTIFY_REQUEST_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("NOTIFY_LOG_LEVEL", "info"),
		PrettyLog: mustBool("NOTIFY_PRETTY_LOG", false),

		// Site identity
		Host:  requireEnv("NOTIFY_HOST"),
		Key:   getenv("NOTIFY_KEY", ""),
		Token: getenv("NOTIFY_TOKEN", ""),

		// Endpoints
		ExtraEndpoints: getenv("NOTIFY_EXTRA_ENDPOINTS", ""),
		EndpointsFile:  getenv("NOTIFY_ENDPOINTS_FILE", ""), // Optional, empty = no file
		ReloadInterval: mustDuration("NOTIFY_RELOAD_INTERVAL", time.Hour),

		// Dispatch
		MaxRetries:      getenvInt("NOTIFY_MAX_RETRIES", 3),
		BackoffBase:     mustDuration("NOTIFY_BACKOFF_BASE", 1600*time.Millisecond),
		BackoffMax:      mustDuration("NOTIFY_BACKOFF_MAX", 8*time.Second),
		SubmitTimeout:   mustDuration("NOTIFY_SUBMIT_TIMEOUT", 10*time.Second),
		DispatchTimeout: mustDuration("NOTIFY_DISPATCH_TIMEOUT", 0),
		MaxBodyBytes:    int64(getenvInt("NOTIFY_MAX_BODY_BYTES", 8<<20)),

		// Rate limiting
		RateLimitBurst:  getenvInt("NOTIFY_RATE_LIMIT_BURST", 10),
		RateLimitPerMin: getenvInt("NOTIFY_RATE_LIMIT_PER_MIN", 30),

		// Redis settings
		RedisAddr:           getenv("NOTIFY_REDIS_ADDR", ""),
		RedisUser:           getenv("NOTIFY_REDIS_USERNAME", ""),
		RedisPassword:       getenv("NOTIFY_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("NOTIFY_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("NOTIFY_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("NOTIFY_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("NOTIFY_TRUST_PROXY", false),
	}

	cfg.KeyLocation = domain.KeyLocationFor(cfg.Host, cfg.Key, getenv("NOTIFY_KEY_LOCATION", ""))

	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.Key != "" {
		cp.Key = "***REDACTED***"
		cp.KeyLocation = "***REDACTED***"
	}
	if cp.Token != "" {
		cp.Token = "***REDACTED***"
	}
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	return cp
}

func (c *Config) validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("NOTIFY_MAX_RETRIES must be >= 0, got %d", c.MaxRetries)
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("NOTIFY_BACKOFF_BASE must be > 0, got %v", c.BackoffBase)
	}
	if c.BackoffMax < c.BackoffBase {
		return fmt.Errorf("NOTIFY_BACKOFF_MAX (%v) must be >= NOTIFY_BACKOFF_BASE (%v)", c.BackoffMax, c.BackoffBase)
	}
	if c.SubmitTimeout <= 0 {
		return fmt.Errorf("NOTIFY_SUBMIT_TIMEOUT must be > 0, got %v", c.SubmitTimeout)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("NOTIFY_MAX_BODY_BYTES must be > 0, got %d", c.MaxBodyBytes)
	}
	if c.ReloadInterval <= 0 {
		return fmt.Errorf("NOTIFY_RELOAD_INTERVAL must be > 0, got %v", c.ReloadInterval)
	}

	// The report is written after the whole fan-out, so the connection must
	// stay writable for as long as a dispatch can last.
	if c.DispatchTimeout > 0 {
		if c.WriteTimeout <= c.DispatchTimeout {
			return fmt.Errorf("NOTIFY_WRITE_TIMEOUT (%v) must exceed NOTIFY_DISPATCH_TIMEOUT (%v)", c.WriteTimeout, c.DispatchTimeout)
		}
	} else if worst := c.Policy().WorstCase(c.SubmitTimeout); c.WriteTimeout <= worst {
		return fmt.Errorf("NOTIFY_WRITE_TIMEOUT (%v) must exceed the worst-case dispatch (%v); raise it or set NOTIFY_DISPATCH_TIMEOUT", c.WriteTimeout, worst)
	}
	return nil
}

// Policy returns the retry policy built from the dispatch settings.
func (c *Config) Policy() dispatch.Policy {
	return dispatch.Policy{
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.BackoffBase,
		MaxDelay:   c.BackoffMax,
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
