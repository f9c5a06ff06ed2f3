package repository

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "payment-events:processed:"

// MemoryDedupe remembers event ids for ttl.
type MemoryDedupe struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryDedupe(ttl time.Duration) *MemoryDedupe {
	return &MemoryDedupe{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

// Claim returns true the first time eventID is seen within ttl.
func (d *MemoryDedupe) Claim(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if expiresAt, ok := d.seen[eventID]; ok && (d.ttl <= 0 || now.Before(expiresAt)) {
		return false, nil
	}
	d.seen[eventID] = now.Add(d.ttl)
	d.sweepLocked(now)
	return true, nil
}

func (d *MemoryDedupe) sweepLocked(now time.Time) {
	if d.ttl <= 0 || len(d.seen) < 1024 {
		return
	}
	for id, expiresAt := range d.seen {
		if !now.Before(expiresAt) {
			delete(d.seen, id)
		}
	}
}

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisDedupe shares processed event ids between replicas.
type RedisDedupe struct {
	client redisClient
	ttl    time.Duration
}

func NewRedisDedupe(client redisClient, ttl time.Duration) *RedisDedupe {
	return &RedisDedupe{client: client, ttl: ttl}
}

func (d *RedisDedupe) Claim(ctx context.Context, eventID string) (bool, error) {
	return d.client.SetNX(ctx, dedupeKeyPrefix+eventID, time.Now().Unix(), d.ttl).Result()
}
