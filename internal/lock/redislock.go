package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serialises work on a key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

const (
	defaultTTL   = 30 * time.Second
	defaultRetry = 50 * time.Millisecond
)

// Redis is a SET NX lease shared by every API instance pointing at the same
// redis, so stock changes on one product never interleave across instances.
// The lease expires after ttl even if its holder dies.
type Redis struct {
	R            *redis.Client
	Prefix       string
	RetryBackoff time.Duration
}

var _ Locker = Redis{}

// Only the holder's token may delete the lease.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// WithLock polls until the lease for key is free, runs fn and releases the
// lease. It gives up with ctx.Err() when ctx ends first.
func (l Redis) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	switch {
	case l.R == nil:
		return errors.New("lock: redis client not configured")
	case fn == nil:
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = defaultRetry
	}

	lease := l.Prefix + "lock:" + key
	token := uuid.NewString()
	if err := l.acquire(ctx, lease, token, ttl, retry); err != nil {
		return err
	}
	defer l.release(ctx, lease, token)
	return fn(ctx)
}

func (l Redis) acquire(ctx context.Context, lease, token string, ttl, retry time.Duration) error {
	ticker := time.NewTicker(retry)
	defer ticker.Stop()
	for {
		ok, err := l.R.SetNX(ctx, lease, token, ttl).Result()
		if err != nil {
			return fmt.Errorf("lock: acquire %s: %w", lease, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// release runs even when the request context is already cancelled; a lease
// left behind would block the product until ttl.
func (l Redis) release(ctx context.Context, lease, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	_ = unlockScript.Run(ctx, l.R, []string{lease}, token).Err()
}
