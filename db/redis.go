package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBucket serves the local partition from Redis. Every key is a hash
// holding the raw value and the write time in unix milliseconds.
type RedisBucket struct {
	rdb    *redis.Client
	prefix string
	expiry time.Duration
	now    func() time.Time
}

type RedisOption func(*RedisBucket)

// WithRedisPrefix namespaces all keys, e.g. "newtab" -> "newtab:local:<key>"
func WithRedisPrefix(prefix string) RedisOption {
	return func(b *RedisBucket) { b.prefix = strings.Trim(prefix, ":") }
}

// WithRedisExpiry lets Redis drop keys that were not rewritten in d.
// Zero keeps keys until deleted.
func WithRedisExpiry(d time.Duration) RedisOption {
	return func(b *RedisBucket) { b.expiry = d }
}

func NewRedisBucket(rdb *redis.Client, opts ...RedisOption) *RedisBucket {
	b := &RedisBucket{
		rdb:    rdb,
		prefix: "newtab",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *RedisBucket) namespace() string {
	return b.prefix + ":" + string(PartitionLocal) + ":"
}

func (b *RedisBucket) Get(ctx context.Context, key string) ([]byte, time.Time, error) {
	fields, err := b.rdb.HGetAll(ctx, b.namespace()+key).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis get: %w", err)
	}
	value, ok := fields["value"]
	if !ok {
		return nil, time.Time{}, ErrNotFound
	}
	ms, err := strconv.ParseInt(fields["updated_at"], 10, 64)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis get %s: bad updated_at: %w", key, err)
	}
	return []byte(value), time.UnixMilli(ms), nil
}

func (b *RedisBucket) Set(ctx context.Context, key string, value []byte) error {
	k := b.namespace() + key

	pipe := b.rdb.TxPipeline()
	pipe.Del(ctx, k)
	pipe.HSet(ctx, k, "value", value, "updated_at", b.now().UnixMilli())
	if b.expiry > 0 {
		pipe.Expire(ctx, k, b.expiry)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *RedisBucket) Delete(ctx context.Context, key string) error {
	if err := b.rdb.Del(ctx, b.namespace()+key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (b *RedisBucket) Keys(ctx context.Context, prefix string) ([]string, error) {
	ns := b.namespace()
	keys := []string{}

	iter := b.rdb.Scan(ctx, 0, ns+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), ns))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

var _ Bucket = (*RedisBucket)(nil)
