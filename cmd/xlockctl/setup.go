package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xlockable/pkg/config/xconf"
	"github.com/omeyang/xlockable/pkg/lockable/xsnapshot"
	"github.com/omeyang/xlockable/pkg/observability/xlog"
)

// guardName 是快照写入者租约的名称。
const guardName = "snapshot"

// buildLogger 按配置创建日志。File 为空时写 stderr。
func buildLogger(cfg xconf.Log, stderr io.Writer) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetLevelString(cfg.Level).
		SetFormat(cfg.Format)
	if cfg.File != "" {
		b = b.SetRotation(cfg.File, xlog.WithCompress(true))
	} else {
		b = b.SetOutput(stderr)
	}
	logger, cleanup, err := b.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, cleanup, nil
}

// snapshotBackend 是打开后的快照后端。guard 仅 Redis 且配置开启时非 nil。
type snapshotBackend struct {
	store  xsnapshot.Store
	guard  *xsnapshot.Guard
	closer func() error
}

func (b *snapshotBackend) Close() error {
	if b == nil || b.closer == nil {
		return nil
	}
	return b.closer()
}

// openSnapshot 按配置打开快照后端。未配置时返回 (nil, nil)。
func openSnapshot(cfg xconf.Snapshot, logger xlog.Logger) (*snapshotBackend, error) {
	opts := []xsnapshot.Option{xsnapshot.WithLogger(logger)}
	if cfg.TTL > 0 {
		opts = append(opts, xsnapshot.WithTTL(cfg.TTL))
	}

	switch cfg.Backend {
	case xconf.BackendNone:
		return nil, nil
	case xconf.BackendRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: cfg.Addrs})
		store, err := xsnapshot.NewRedisStore(client, opts...)
		if err != nil {
			return nil, errors.Join(err, client.Close())
		}
		b := &snapshotBackend{store: store, closer: client.Close}
		if cfg.Guard {
			g, err := xsnapshot.NewGuard([]redis.UniversalClient{client}, cfg.Key+":"+guardName)
			if err != nil {
				return nil, errors.Join(err, client.Close())
			}
			b.guard = g
		}
		return b, nil
	case xconf.BackendEtcd:
		client, err := xsnapshot.NewEtcdClient(cfg.Addrs, 0)
		if err != nil {
			return nil, err
		}
		store, err := xsnapshot.NewEtcdStore(client, opts...)
		if err != nil {
			return nil, errors.Join(err, client.Close())
		}
		return &snapshotBackend{store: store, closer: client.Close}, nil
	default:
		return nil, fmt.Errorf("%w: snapshot backend %q", xconf.ErrInvalidConfig, cfg.Backend)
	}
}

// loadConfig 加载配置并按参数错误归类。
func loadConfig(path string) (*xconf.Config, error) {
	cfg, err := xconf.Load(path)
	if err != nil {
		return nil, wrapConfigError("load config", err)
	}
	return cfg, nil
}

// releaseGuard 释放租约，ctx 已取消时仍尝试释放。
func releaseGuard(ctx context.Context, g *xsnapshot.Guard, logger xlog.Logger) {
	if g == nil {
		return
	}
	if err := g.Release(context.WithoutCancel(ctx)); err != nil {
		logger.Warn(ctx, "guard release failed", xlog.Err(err))
	}
}
