// Package dedupe remembers which event ids have already been delivered so
// a retried or replayed server event is sent at most once.
package dedupe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL matches the window in which the ad network itself
// deduplicates on event_id.
const DefaultTTL = 48 * time.Hour

// Store records delivered event ids.
type Store interface {
	// Seen reports whether id was already marked.
	Seen(ctx context.Context, id string) (bool, error)
	// Mark records id as delivered.
	Mark(ctx context.Context, id string) error
}

// Redis is a Store shared by every funnel instance.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis returns a Redis-backed Store.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func key(id string) string { return "leadpixel:delivered:" + id }

func (r *Redis) Seen(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe lookup failed: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) Mark(ctx context.Context, id string) error {
	if err := r.client.SetNX(ctx, key(id), 1, r.ttl).Err(); err != nil {
		return fmt.Errorf("dedupe mark failed: %w", err)
	}
	return nil
}

// Memory is a process-local Store.
type Memory struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (m *Memory) Seen(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.seen[id]
	if !ok {
		return false, nil
	}
	if m.now().After(until) {
		delete(m.seen, id)
		return false, nil
	}
	return true, nil
}

func (m *Memory) Mark(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	// Sweep lazily so long-running processes do not grow without bound.
	if len(m.seen) > 10000 {
		for k, until := range m.seen {
			if now.After(until) {
				delete(m.seen, k)
			}
		}
	}
	m.seen[id] = now.Add(m.ttl)
	return nil
}
