package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"ExpenseCertify/internal/logger"
)

// ErrBusy is returned when the lock stays held by another process for the
// whole wait window.
var ErrBusy = errors.New("certification run lock is busy")

// Locker serialises the read-fingerprints to persist window of runs.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Noop never blocks. It is used when no Redis is configured.
type Noop struct{}

// Acquire returns immediately.
func (Noop) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// Redis is a Locker backed by redislock.
type Redis struct {
	rdb     *redis.Client
	locker  *redislock.Client
	ttl     time.Duration
	backoff time.Duration
	retries int
}

// Options tune the Redis locker.
type Options struct {
	TTL     time.Duration
	Backoff time.Duration
	Wait    time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 10 * time.Minute
	}
	if o.Backoff <= 0 {
		o.Backoff = 500 * time.Millisecond
	}
	if o.Wait <= 0 {
		o.Wait = 2 * time.Minute
	}
	return o
}

// NewRedis connects to url and verifies the connection.
func NewRedis(ctx context.Context, url string, opts Options) (*Redis, error) {
	ro, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(ro)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisClient(rdb, opts), nil
}

// NewRedisClient wraps an existing client.
func NewRedisClient(rdb *redis.Client, opts Options) *Redis {
	opts = opts.withDefaults()
	return &Redis{
		rdb:     rdb,
		locker:  redislock.New(rdb),
		ttl:     opts.TTL,
		backoff: opts.Backoff,
		retries: int(opts.Wait / opts.Backoff),
	}
}

// Acquire obtains "lock:certify:<key>", retrying with linear backoff.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := fmt.Sprintf("lock:certify:%s", key)
	log := logger.Component("runlock").WithFields(logrus.Fields{"key": lockKey})

	lock, err := r.locker.Obtain(ctx, lockKey, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(r.backoff), r.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		log.Warn("could not obtain run lock")
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("obtain run lock: %w", err)
	}

	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			log.WithError(err).Warn("release run lock")
		}
	}, nil
}

// Close releases the Redis connection.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
