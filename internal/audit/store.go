package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const defaultMaxEntries = 5000

// RedisLog keeps the most recent entries in a capped redis list.
type RedisLog struct {
	R      *redis.Client
	Key    string
	MaxLen int64
}

var _ Store = RedisLog{}

func (l RedisLog) key() string {
	if l.Key == "" {
		return "audit"
	}
	return l.Key
}

func (l RedisLog) maxLen() int64 {
	if l.MaxLen <= 0 {
		return defaultMaxEntries
	}
	return l.MaxLen
}

// Append implements Store.
func (l RedisLog) Append(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: encode entry: %w", err)
	}
	pipe := l.R.TxPipeline()
	pipe.LPush(ctx, l.key(), data)
	pipe.LTrim(ctx, l.key(), 0, l.maxLen()-1)
	_, err = pipe.Exec(ctx)
	return err
}

// List implements Store. Filtered queries decode the whole capped list.
func (l RedisLog) List(ctx context.Context, q Query) ([]Entry, error) {
	if q.Limit <= 0 {
		return []Entry{}, nil
	}
	start, stop := int64(q.Offset), int64(q.Offset+q.Limit-1)
	if q.filtered() {
		start, stop = 0, -1
	}
	raw, err := l.R.LRange(ctx, l.key(), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("audit: read %s: %w", l.key(), err)
	}
	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if json.Unmarshal([]byte(item), &e) == nil {
			entries = append(entries, e)
		}
	}
	if !q.filtered() {
		return entries, nil
	}
	return page(entries, q), nil
}

// MemoryLog is a bounded in-process Store.
type MemoryLog struct {
	MaxLen int

	mu      sync.Mutex
	entries []Entry
}

var _ Store = (*MemoryLog)(nil)

// Append implements Store.
func (l *MemoryLog) Append(_ context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	max := l.MaxLen
	if max <= 0 {
		max = defaultMaxEntries
	}
	if over := len(l.entries) - max; over > 0 {
		l.entries = append([]Entry(nil), l.entries[over:]...)
	}
	return nil
}

// List implements Store.
func (l *MemoryLog) List(_ context.Context, q Query) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	newest := make([]Entry, 0, len(l.entries))
	for i := len(l.entries) - 1; i >= 0; i-- {
		newest = append(newest, l.entries[i])
	}
	return page(newest, q), nil
}

// page applies q's filters to entries (newest first) and cuts the window.
func page(entries []Entry, q Query) []Entry {
	out := make([]Entry, 0, max(q.Limit, 0))
	skipped := 0
	for _, e := range entries {
		if len(out) >= q.Limit {
			break
		}
		if !q.matches(e) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out
}
