package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr})
	_ = r.WithTimeout(2 * time.Second)
	return r
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Dedup implements the reconciler's claim-once contract on Redis. SETNX:
// caller pertama dapat klaim, sisanya dianggap duplikat.
type Dedup struct{ R *redis.Client }

func (d Dedup) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.R.SetNX(ctx, key, "1", ttl).Result()
}
