// Package loginguard throttles repeated failed PIN logins per client.
package loginguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrThrottled indicates the client exhausted its failed attempts.
var ErrThrottled = errors.New("too many failed login attempts")

const (
	DefaultMaxFailures = 10
	DefaultWindow      = 15 * time.Minute
	keyPrefix          = "batchflow:login:fail:"
)

// Guard decides whether a client may attempt a login.
type Guard interface {
	// Check returns ErrThrottled once the client reached the failure limit.
	Check(ctx context.Context, client string) error
	Failed(ctx context.Context, client string)
	Succeeded(ctx context.Context, client string)
}

// Store counts failures per key within an expiry window.
type Store interface {
	Count(ctx context.Context, key string) (int64, error)
	// Incr increments key, starting the window on the first failure.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Reset(ctx context.Context, key string) error
}

// Options tunes the limiter.
type Options struct {
	MaxFailures int64
	Window      time.Duration
}

// Limiter is a Guard over a Store. Store errors fail open and are logged.
type Limiter struct {
	store  Store
	opts   Options
	logger *slog.Logger
}

// New creates a limiter. Zero options take the defaults.
func New(store Store, opts Options, logger *slog.Logger) *Limiter {
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = DefaultMaxFailures
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	return &Limiter{store: store, opts: opts, logger: logger}
}

// NewRedis creates a limiter backed by redis.
func NewRedis(client *redis.Client, opts Options, logger *slog.Logger) *Limiter {
	return New(&RedisStore{client: client}, opts, logger)
}

func (l *Limiter) Check(ctx context.Context, client string) error {
	n, err := l.store.Count(ctx, keyPrefix+client)
	if err != nil {
		l.warn("login guard check failed", client, err)
		return nil
	}
	if n >= l.opts.MaxFailures {
		return ErrThrottled
	}
	return nil
}

func (l *Limiter) Failed(ctx context.Context, client string) {
	n, err := l.store.Incr(ctx, keyPrefix+client, l.opts.Window)
	if err != nil {
		l.warn("login guard increment failed", client, err)
		return
	}
	if n == l.opts.MaxFailures && l.logger != nil {
		l.logger.Warn("login throttled", "client", client, "failures", n)
	}
}

func (l *Limiter) Succeeded(ctx context.Context, client string) {
	if err := l.store.Reset(ctx, keyPrefix+client); err != nil {
		l.warn("login guard reset failed", client, err)
	}
}

func (l *Limiter) warn(msg, client string, err error) {
	if l.logger != nil {
		l.logger.Warn(msg, "client", client, "error", err)
	}
}

// Nop never throttles. Used when redis isn't configured.
type Nop struct{}

func (Nop) Check(context.Context, string) error { return nil }
func (Nop) Failed(context.Context, string)      {}
func (Nop) Succeeded(context.Context, string)   {}

// RedisStore keeps counters in redis with key expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Count(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Connect parses a redis URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	opt.MaxRetries = 3

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
