package xsnapshot

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore 以 Redis 字符串保存快照。
type RedisStore struct {
	*resilientStore
}

var _ Store = (*RedisStore)(nil)

type redisBackend struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore 创建 Redis 快照存储。client 的生命周期由调用方管理。
func NewRedisStore(client redis.UniversalClient, opts ...Option) (*RedisStore, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	o := applyOptions(opts)
	b := &redisBackend{client: client, ttl: o.ttl}
	return &RedisStore{resilientStore: newResilientStore("redis", b, o)}, nil
}

func (b *redisBackend) get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (b *redisBackend) put(ctx context.Context, key string, data []byte) error {
	return b.client.Set(ctx, key, data, b.ttl).Err()
}

func (b *redisBackend) del(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}
