package repository

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockGuard admits at most one holder per key until the key expires.
type LockGuard interface {
	// Acquire returns false when the key is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type redisLockGuard struct {
	client *redis.Client
	prefix string
}

// NewRedisLockGuard guards keys with SET NX so replicas share the same view.
func NewRedisLockGuard(client *redis.Client) LockGuard {
	return &redisLockGuard{client: client, prefix: "gap:guard:"}
}

func (g *redisLockGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.client.SetNX(ctx, g.prefix+key, time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
}

type memoryLockGuard struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewMemoryLockGuard guards keys inside one process.
func NewMemoryLockGuard() LockGuard {
	return &memoryLockGuard{held: make(map[string]time.Time), now: time.Now}
}

func (g *memoryLockGuard) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if exp, ok := g.held[key]; ok && (exp.IsZero() || now.Before(exp)) {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	g.held[key] = exp
	return true, nil
}
