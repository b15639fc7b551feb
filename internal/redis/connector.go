package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/indexnotify/internal/logger"
	"github.com/redis/go-redis/v9"
)

// ClientName is reported to Redis via CLIENT SETNAME.
const ClientName = "indexnotify"

// ConnectOptions configures the client and the startup probe.
type ConnectOptions struct {
	Addr         string
	User         string
	Password     string
	RedisDB      int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int

	ConnectTimeout time.Duration // budget for the whole probe
	RetryInterval  time.Duration // first wait, doubled after each failure
	MaxWait        time.Duration // cap on the wait between probes
	PingTimeout    time.Duration // bound of a single PING
	WarnThreshold  int           // failures logged as warnings before escalating
}

func (o ConnectOptions) validate() error {
	var errs []error
	if o.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ConnectTimeout must be > 0, got %v", o.ConnectTimeout))
	}
	if o.RetryInterval <= 0 {
		errs = append(errs, fmt.Errorf("RetryInterval must be > 0, got %v", o.RetryInterval))
	}
	if o.MaxWait <= 0 {
		errs = append(errs, fmt.Errorf("MaxWait must be > 0, got %v", o.MaxWait))
	}
	if o.PingTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PingTimeout must be > 0, got %v", o.PingTimeout))
	}
	if o.WarnThreshold < 0 {
		errs = append(errs, fmt.Errorf("WarnThreshold must be >= 0, got %d", o.WarnThreshold))
	}
	return errors.Join(errs...)
}

func (o ConnectOptions) clientOptions() *redis.Options {
	return &redis.Options{
		Addr:         o.Addr,
		Username:     o.User,
		Password:     o.Password,
		DB:           o.RedisDB,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
		PoolSize:     o.PoolSize,
		ClientName:   ClientName,
	}
}

// New creates a client and probes it with PING until it answers, the
// ConnectTimeout budget runs out or ctx is done. On failure the client is
// closed and nil is returned.
func New(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if err := opts.validate(); err != nil {
		log.Error("invalid redis options", logger.Error(err))
		return nil, err
	}

	d := &dialer{
		client: redis.NewClient(opts.clientOptions()),
		opts:   opts,
		log:    logger.With(log, logger.String("addr", opts.Addr)),
	}
	if err := d.await(ctx); err != nil {
		_ = d.client.Close()
		return nil, err
	}
	return d.client, nil
}

type dialer struct {
	client *redis.Client
	opts   ConnectOptions
	log    logger.Logger
}

// await pings with capped exponential backoff.
func (d *dialer) await(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, d.opts.ConnectTimeout)
	defer cancel()

	d.log.Info("connecting to redis", logger.Duration("timeout", d.opts.ConnectTimeout))
	start := time.Now()
	wait := d.opts.RetryInterval

	for attempt := 1; ; attempt++ {
		err := d.ping(ctx)
		if err == nil {
			d.logConnected(attempt, time.Since(start))
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.log.Error("redis unavailable, rate limiting stays in memory",
				logger.Int("attempts", attempt),
				logger.Duration("elapsed", time.Since(start)),
				logger.Error(err))
			return fmt.Errorf("redis unavailable at %s after %d attempts: %w", d.opts.Addr, attempt, err)
		case <-timer.C:
		}

		d.logFailure(attempt, wait, remaining(ctx), err)
		wait = min(wait*2, d.opts.MaxWait)
	}
}

func (d *dialer) ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, d.opts.PingTimeout)
	defer cancel()
	return d.client.Ping(pingCtx).Err()
}

func (d *dialer) logConnected(attempts int, elapsed time.Duration) {
	if attempts == 1 {
		d.log.Info("connected to redis")
		return
	}
	d.log.Warn("connected to redis after retry",
		logger.Int("attempts", attempts),
		logger.Duration("elapsed", elapsed))
}

// logFailure escalates to error once the warn threshold is passed or the
// budget is nearly spent.
func (d *dialer) logFailure(attempt int, waited, left time.Duration, err error) {
	fields := []logger.Field{
		logger.Int("attempt", attempt),
		logger.Duration("waited", waited),
		logger.Duration("remaining", left),
		logger.Error(err),
	}
	if attempt <= d.opts.WarnThreshold && left >= 10*time.Second {
		d.log.Warn("redis ping failed, retrying", fields...)
		return
	}
	d.log.Error("redis still unavailable", fields...)
}

func remaining(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline)
}
