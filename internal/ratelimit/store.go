package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore: INCR + EXPIRE on first hit = fixed window anchored at the first
// call. Key hilang saat TTL habis -> window reset.
type RedisStore struct {
	R      *redis.Client
	Prefix string // default "rate:"
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "rate:"
	}
	k := prefix + key
	n, err := s.R.Incr(ctx, k).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		_ = s.R.Expire(ctx, k, window).Err()
	}
	return n, nil
}

// MemoryStore is the in-process equivalent, used in tests and single-node
// deploys. Now is injectable for deterministic window tests.
type MemoryStore struct {
	mu       sync.Mutex
	Now      func() time.Time
	counters map[string]*memCounter
}

type memCounter struct {
	n     int64
	start time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Now: time.Now, counters: make(map[string]*memCounter)}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	c, ok := s.counters[key]
	if !ok || now.Sub(c.start) >= window {
		c = &memCounter{start: now}
		s.counters[key] = c
	}
	c.n++
	return c.n, nil
}
