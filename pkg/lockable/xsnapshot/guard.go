package xsnapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	rsredis "github.com/go-redsync/redsync/v4/redis"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// DefaultGuardTTL Guard 默认租期
const DefaultGuardTTL = 30 * time.Second

// Guard 保证同一时刻只有一个进程写入快照。
//
// 单个 client 为普通 Redis 锁；多个独立节点时使用 Redlock（过半成功）。
type Guard struct {
	mutex *redsync.Mutex
	name  string
}

// GuardOption 配置 Guard。
type GuardOption func(*guardOptions)

type guardOptions struct {
	ttl time.Duration
}

// WithGuardTTL 设置租期，持有者需要在到期前 Extend。
func WithGuardTTL(ttl time.Duration) GuardOption {
	return func(o *guardOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// NewGuard 创建 Guard。name 通常与快照键相同。
func NewGuard(clients []redis.UniversalClient, name string, opts ...GuardOption) (*Guard, error) {
	if len(clients) == 0 {
		return nil, ErrNilClient
	}
	if name == "" {
		return nil, ErrEmptyKey
	}
	o := guardOptions{ttl: DefaultGuardTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	pools := make([]rsredis.Pool, len(clients))
	for i, c := range clients {
		if c == nil {
			return nil, fmt.Errorf("%w: client at index %d", ErrNilClient, i)
		}
		pools[i] = goredis.NewPool(c)
	}
	rs := redsync.New(pools...)
	return &Guard{
		mutex: rs.NewMutex("xlockable:guard:"+name, redsync.WithExpiry(o.ttl), redsync.WithTries(1)),
		name:  name,
	}, nil
}

// Acquire 尝试成为快照的唯一写入者，不等待。已被其他进程持有时返回 [ErrGuardHeld]。
func (g *Guard) Acquire(ctx context.Context) error {
	return wrapGuardError(g.mutex.TryLockContext(ctx), ErrGuardHeld)
}

// Extend 续期。租约已丢失时返回 [ErrGuardLost]，调用方应停止写入。
func (g *Guard) Extend(ctx context.Context) error {
	ok, err := g.mutex.ExtendContext(ctx)
	if err != nil {
		return wrapGuardError(err, ErrGuardLost)
	}
	if !ok {
		return ErrGuardLost
	}
	return nil
}

// Release 释放 Guard。租约已过期时返回 [ErrGuardLost]。
func (g *Guard) Release(ctx context.Context) error {
	ok, err := g.mutex.UnlockContext(ctx)
	if err != nil {
		return wrapGuardError(err, ErrGuardLost)
	}
	if !ok {
		return ErrGuardLost
	}
	return nil
}

// Name 返回 Guard 名称。
func (g *Guard) Name() string { return g.name }

// wrapGuardError 把 redsync 的竞争类错误归为 sentinel，保留原始错误链。
func wrapGuardError(err, sentinel error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var taken *redsync.ErrTaken
	if errors.As(err, &taken) ||
		errors.Is(err, redsync.ErrFailed) ||
		errors.Is(err, redsync.ErrExtendFailed) ||
		errors.Is(err, redsync.ErrLockAlreadyExpired) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}
