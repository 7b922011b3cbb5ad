package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Fixed is a fixed window limiter on top of ulule/limiter. One limiter
// instance is kept per (window, max) pair.
type Fixed struct {
	Store limiter.Store

	mu        sync.Mutex
	instances map[limiter.Rate]*limiter.Limiter
}

var _ Allower = (*Fixed)(nil)

// NewFixed returns a Fixed limiter on a redis store, or an in-process store
// when rdb is nil.
func NewFixed(rdb *redis.Client, prefix string) (*Fixed, error) {
	if rdb == nil {
		return &Fixed{Store: memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute})}, nil
	}
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, err
	}
	return &Fixed{Store: store}, nil
}

func (f *Fixed) instance(rate limiter.Rate) *limiter.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.instances == nil {
		f.instances = make(map[limiter.Rate]*limiter.Limiter)
	}
	inst, ok := f.instances[rate]
	if !ok {
		inst = limiter.New(f.Store, rate)
		f.instances[rate] = inst
	}
	return inst
}

// Allow counts one event for key against max per window.
func (f *Fixed) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if f == nil || f.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	res, err := f.instance(limiter.Rate{Period: window, Limit: int64(max)}).Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}
