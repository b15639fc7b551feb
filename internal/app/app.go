package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/indexnotify/internal/config"
	"github.com/MrSnakeDoc/indexnotify/internal/dispatch"
	"github.com/MrSnakeDoc/indexnotify/internal/domain"
	"github.com/MrSnakeDoc/indexnotify/internal/httpserver"
	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/deps"
	"github.com/MrSnakeDoc/indexnotify/internal/httpserver/mw"
	"github.com/MrSnakeDoc/indexnotify/internal/index"
	"github.com/MrSnakeDoc/indexnotify/internal/logger"
	"github.com/MrSnakeDoc/indexnotify/internal/observability"
	"github.com/MrSnakeDoc/indexnotify/internal/redis"
	"github.com/MrSnakeDoc/indexnotify/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/indexnotify/internal/store/redis"
	"github.com/MrSnakeDoc/indexnotify/internal/utils"
	"github.com/MrSnakeDoc/indexnotify/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	reloader    *scheduler.EndpointsReloader
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	// Redis is optional: it only makes the rate limit shared across replicas.
	var redisClient *goredis.Client
	var limiter mw.Limiter = mw.NewMemoryLimiter(mw.RateLimitConfig{
		Burst:             cfg.RateLimitBurst,
		RefillPerIPPerMin: cfg.RateLimitPerMin,
		MaxEntries:        10000,
	})
	if cfg.RedisAddr != "" {
		client, err := redis.New(context.Background(), redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			loggerClient.Warn("redis unavailable, using in-memory rate limiting", logger.Error(err))
		} else {
			redisClient = client
			limiter = mw.NewRedisLimiter(redisstore.NewRateLimitStore(client), cfg.RateLimitPerMin)
			loggerClient.Info("redis initialized, rate limiting is shared")
		}
	}

	dispatcher := dispatch.New(dispatch.Config{
		Policy:    cfg.Policy(),
		Transport: dispatch.NewHTTPTransport(cfg.SubmitTimeout),
		Metrics:   metrics,
		Tracer:    observability.NewTracer(),
	}, logger.With(loggerClient, logger.String("component", "dispatch")))

	// Endpoints file (optional, hot reloaded)
	var (
		endpointIndex *index.EndpointIndex
		reloader      *scheduler.EndpointsReloader
		reloadTrigger chan struct{}
	)
	if cfg.EndpointsFile != "" {
		endpointIndex = index.NewEndpointIndex()
		reloadTrigger = make(chan struct{}, 1)
		reloader = scheduler.NewEndpointsReloader(
			cfg.EndpointsFile,
			endpointIndex,
			metrics,
			loggerClient.With(logger.String("component", "endpoints")),
			cfg.ReloadInterval,
			reloadTrigger,
		)
	}

	site := domain.Site{Host: cfg.Host, Key: cfg.Key, KeyLocation: cfg.KeyLocation}
	if site.Key == "" {
		loggerClient.Warn("NOTIFY_KEY is not set, every submission will be rejected")
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		TimeNow:         time.Now,
		AllowedHosts:    cfg.AllowedHosts,
		AllowedCIDRS:    cfg.AllowedCIDRS,
		TrustProxy:      cfg.TrustProxy,
		Site:            site,
		Token:           cfg.Token,
		ExtraEndpoints:  domain.ParseEndpointList(cfg.ExtraEndpoints),
		EndpointIndex:   endpointIndex,
		Dispatcher:      dispatcher,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		DispatchTimeout: cfg.DispatchTimeout,
		RequestTimeout:  cfg.RequestTimeout,
		Limiter:         limiter,
		Metrics:         metrics,
		Gatherer:        reg,
		RedisClient:     redisClient,
		ReloadTrigger:   reloadTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		reloader:    reloader,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting indexnotify v%s on %s for %s", version.Version, a.cfg.ListenPort, a.cfg.Host)
	a.logger.Infof("indexnotify %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The defaults always apply, so a broken endpoints file is not fatal.
	if a.reloader != nil {
		if err := a.reloader.Start(ctx); err != nil {
			a.logger.Error("endpoints file not loaded, serving default and env endpoints",
				logger.String("file", a.cfg.EndpointsFile),
				logger.Error(err))
		}
		a.logger.Info("endpoints reloader started",
			logger.Duration("interval", a.cfg.ReloadInterval))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	if a.reloader != nil {
		a.reloader.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		utils.MustClose(a.redisClient, a.logger, "redis")
	}

	a.logger.Info("✅ indexnotify stopped cleanly")
	_ = a.logger.Sync()
	return nil
}
