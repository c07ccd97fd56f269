package xconf

import (
	"context"
	"errors"
	"log/slog"

	"github.com/omeyang/xlockable/pkg/lockable/xalloc"
	"github.com/omeyang/xlockable/pkg/observability/xlog"
)

// PoolTarget 是 Apply 需要的分配器操作。
type PoolTarget interface {
	Declare(ctx context.Context, cfg xalloc.ResourceConfig) (bool, error)
	Retire(ctx context.Context, name string) bool
	Resources() []xalloc.Resource
}

var _ PoolTarget = (*xalloc.Allocator)(nil)

// ApplyResult 描述一次 Apply 的变化。
type ApplyResult struct {
	Created []string
	Updated []string
	Retired []string
}

// Apply 把资源池声明到分配器。
//
// 配置中的资源逐个 Declare（保留锁状态）；分配器中由配置声明过、但新配置已不包含的资源被退役。
// 懒注册的临时资源不受影响。单个资源声明失败不会中断其余资源，错误合并返回。
func Apply(ctx context.Context, target PoolTarget, pool Pool) (ApplyResult, error) {
	var (
		res  ApplyResult
		errs []error
	)
	want := make(map[string]struct{}, len(pool.Resources))
	for _, rc := range pool.Resources {
		want[rc.Name] = struct{}{}
		created, err := target.Declare(ctx, rc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if created {
			res.Created = append(res.Created, rc.Name)
		} else {
			res.Updated = append(res.Updated, rc.Name)
		}
	}
	for _, r := range target.Resources() {
		if r.Ephemeral || r.Retired {
			continue
		}
		if _, ok := want[r.Name]; ok {
			continue
		}
		if target.Retire(ctx, r.Name) {
			res.Retired = append(res.Retired, r.Name)
		}
	}
	return res, errors.Join(errs...)
}

// ApplyOnChange 返回用于 [Watch] 的回调：重载成功时 Apply 新资源池，失败时记录错误并保留当前状态。
func ApplyOnChange(ctx context.Context, target PoolTarget, logger xlog.Logger) func(*Config, error) {
	if logger == nil {
		logger = xlog.Discard()
	}
	return func(cfg *Config, err error) {
		if err != nil {
			logger.Error(ctx, "config reload failed, keeping current pool", xlog.Err(err))
			return
		}
		res, err := Apply(ctx, target, cfg.Pool)
		if err != nil {
			logger.Error(ctx, "config reload partially applied", xlog.Err(err))
		}
		logger.Info(ctx, "pool reloaded",
			slog.Int("created", len(res.Created)),
			slog.Int("updated", len(res.Updated)),
			slog.Any("retired", res.Retired))
	}
}
