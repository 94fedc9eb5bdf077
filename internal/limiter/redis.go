package limiter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"
)

// the counter expires so slots held by a crashed replica come back
var acquireScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n >= tonumber(ARGV[1]) then
  return 0
end
redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

var releaseScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n <= 0 then
  return 0
end
return redis.call('DECR', KEYS[1])
`)

type Option func(*Redis)

func WithPollInterval(d time.Duration) Option {
	return func(r *Redis) { r.poll = d }
}

// WithLease sets how long the shared counter survives without activity.
func WithLease(d time.Duration) Option {
	return func(r *Redis) { r.lease = d }
}

// Redis shares one counter between every replica pointing at the same key.
type Redis struct {
	rdb           *redis.Client
	key           string
	maxConcurrent int
	maxWait       time.Duration
	poll          time.Duration
	lease         time.Duration
}

func NewRedis(ctx context.Context, addr, key string, maxConcurrent int, maxWait time.Duration, opts ...Option) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	if key == "" {
		return nil, errors.New("redis limiter key is required")
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     16,
		MinIdleConns: 1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	r := &Redis{
		rdb:           rdb,
		key:           key,
		maxConcurrent: maxConcurrent,
		maxWait:       maxWait,
		poll:          100 * time.Millisecond,
		lease:         10 * time.Minute,
	}
	for _, f := range opts {
		f(r)
	}
	return r, nil
}

func (r *Redis) Acquire(ctx context.Context) (func(), error) {
	deadline := time.NewTimer(r.maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		ok, err := r.tryAcquire(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return r.releaseOnce(), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrSaturated
		case <-ticker.C:
		}
	}
}

func (r *Redis) tryAcquire(ctx context.Context) (bool, error) {
	n, err := acquireScript.Run(ctx, r.rdb, []string{r.key},
		r.maxConcurrent, strconv.FormatInt(r.lease.Milliseconds(), 10)).Int()
	if err != nil {
		return false, fmt.Errorf("%w: redis acquire %q: %w", ErrUnavailable, r.key, err)
	}
	return n == 1, nil
}

func (r *Redis) releaseOnce() func() {
	done := false
	return func() {
		if done {
			return
		}
		done = true
		// the request context may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, r.rdb, []string{r.key}).Err()
	}
}

func (r *Redis) MaxConcurrent() int { return r.maxConcurrent }

// Active reads the shared counter.
func (r *Redis) Active(ctx context.Context) (int, error) {
	n, err := r.rdb.Get(ctx, r.key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis GET %q: %w", r.key, err)
	}
	return n, nil
}

func (r *Redis) Close() error {
	if err := r.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
