// internal/kv/redis.go

package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "nira"
	scanBatchSize      = 100
)

// RedisStore keeps documents under "prefix:namespace:key".
type RedisStore struct {
	client    *redis.Client
	namespace string
	prefix    string
	ttl       time.Duration
}

var _ LockingStore = (*RedisStore)(nil)

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix sets the key prefix for Redis keys.
// Default is "nira".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithTTL makes Redis expire written keys on its own. Application level
// TTLs still apply; this only bounds how long abandoned keys linger.
// Default is 0 (no expiration).
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// NewRedisStore creates a Redis-backed store for one namespace.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    "sessions",
//	    WithPrefix("nira"),
//	)
func NewRedisStore(client *redis.Client, namespace string, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client:    client,
		namespace: namespace,
		prefix:    defaultRedisPrefix,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.redisKey(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}

	n, err := s.client.Del(ctx, s.redisKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del failed: %w", err)
	}

	return n > 0, nil
}

// Keys walks the namespace with SCAN rather than KEYS so large
// namespaces do not block the server.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	base := s.redisKey("")
	iter := s.client.Scan(ctx, 0, base+"*", scanBatchSize).Iterator()

	seen := make(map[string]struct{})
	for iter.Next(ctx) {
		seen[strings.TrimPrefix(iter.Val(), base)] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys, nil
}

func (s *RedisStore) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}

	ok, err := s.client.SetNX(ctx, s.redisKey(key), value, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}

	return ok, nil
}

func (s *RedisStore) redisKey(key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, s.namespace, key)
}
