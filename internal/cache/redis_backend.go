package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend implements Backend on top of go-redis, giving the cache
// layer an optional shared L2 store for multi-instance deployments. Keys
// are namespaced as "<namespace>:<key>" so independent namespaces never
// collide in the shared keyspace.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend dials a Redis instance at addr. The connection is lazy —
// go-redis establishes it on first use — so this never blocks on network I/O.
func NewRedisBackend(addr string) *RedisBackend {
	return &RedisBackend{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func wireKey(namespace, key string) string {
	return namespace + ":" + key
}

// Get returns the stored bytes for key, or ok=false on a cache miss.
func (b *RedisBackend) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	val, err := b.client.Get(ctx, wireKey(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set stores value under key with the given TTL.
func (b *RedisBackend) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, wireKey(namespace, key), value, ttl).Err()
}

// Delete removes key.
func (b *RedisBackend) Delete(ctx context.Context, namespace, key string) error {
	return b.client.Del(ctx, wireKey(namespace, key)).Err()
}

// Close releases the underlying connection pool.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
