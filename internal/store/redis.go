package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates and pings a Redis client with optional password auth.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// RedisGate is a set of expiring in-flight flags shared by all replicas.
type RedisGate struct {
	rdb *redis.Client
}

func NewRedisGate(rdb *redis.Client) *RedisGate {
	return &RedisGate{rdb: rdb}
}

// Acquire sets the flag and reports false if it was already set.
func (g *RedisGate) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.rdb.SetNX(ctx, "inflight:"+key, 1, ttl).Result()
}

func (g *RedisGate) Release(ctx context.Context, key string) error {
	return g.rdb.Del(ctx, "inflight:"+key).Err()
}
