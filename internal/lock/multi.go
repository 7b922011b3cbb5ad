package lock

import (
	"context"
	"sort"
	"time"
)

// WithLocks acquires every key in sorted order and runs fn while all are
// held. Duplicate keys are collapsed.
func WithLocks(ctx context.Context, l Locker, keys []string, ttl time.Duration, fn func(context.Context) error) error {
	uniq := make(map[string]struct{}, len(keys))
	sorted := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := uniq[k]; ok {
			continue
		}
		uniq[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)
	return nest(ctx, l, sorted, ttl, fn)
}

func nest(ctx context.Context, l Locker, keys []string, ttl time.Duration, fn func(context.Context) error) error {
	if len(keys) == 0 {
		return fn(ctx)
	}
	return l.WithLock(ctx, keys[0], ttl, func(ctx context.Context) error {
		return nest(ctx, l, keys[1:], ttl, fn)
	})
}
