package webhook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "roomads:delivery:"

// Guard suppresses reprocessing of a previously seen delivery key within
// the TTL window. An empty key is never a duplicate.
type Guard interface {
	IsDuplicate(ctx context.Context, key string) (bool, error)
}

// RedisGuard records delivery keys in Redis with SET NX EX, so the check
// stays correct when several instances receive the same delivery.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGuard creates the shared-store idempotency guard.
func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisGuard{client: client, ttl: ttl}
}

// IsDuplicate atomically records the key and reports whether it was
// already present.
func (g *RedisGuard) IsDuplicate(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	stored, err := g.client.SetNX(ctx, idempotencyKeyPrefix+key, "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency setnx: %w", err)
	}
	return !stored, nil
}

// MemoryGuard is the process-local variant for single-instance
// deployments and tests. Two instances each accept the "first" delivery
// of a duplicate pair; use RedisGuard when scaling horizontally.
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryGuard creates an in-process idempotency guard.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryGuard{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

// IsDuplicate prunes expired entries, then records and checks the key.
// A repeat within the window does not refresh its timestamp.
func (g *MemoryGuard) IsDuplicate(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	for k, at := range g.seen {
		if now.Sub(at) > g.ttl {
			delete(g.seen, k)
		}
	}
	if _, ok := g.seen[key]; ok {
		return true, nil
	}
	g.seen[key] = now
	return false, nil
}
