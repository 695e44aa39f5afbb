package localstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTimeout = 500 * time.Millisecond

// RedisKV stores entries in Redis. Each call is bounded by a short timeout
// so a slow server cannot stall navigation.
type RedisKV struct {
	client  *redis.Client
	timeout time.Duration
	ttl     time.Duration
}

// NewRedisKV parses dsn as a redis:// URL, falling back to a bare address.
// ttl of zero keeps entries forever.
func NewRedisKV(dsn string, ttl time.Duration) *RedisKV {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		opts = &redis.Options{Addr: dsn}
	}
	return &RedisKV{client: redis.NewClient(opts), timeout: defaultRedisTimeout, ttl: ttl}
}

func (r *RedisKV) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	v, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisKV) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.Set(ctx, key, value, r.ttl).Err()
}

func (r *RedisKV) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.Del(ctx, key).Err()
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}
