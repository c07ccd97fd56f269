package xstep

import (
	"context"
	"io"
	"sync"

	"github.com/omeyang/xlockable/pkg/lockable/xrequire"
	"github.com/omeyang/xlockable/pkg/observability/xlog"
	"github.com/omeyang/xlockable/pkg/util/xid"
)

// IDGenerator 生成执行 ID。*xid.Generator 满足此接口。
type IDGenerator interface {
	NewStringWithRetry(ctx context.Context) (string, error)
}

// Option 配置一次执行。
type Option func(*options)

type options struct {
	env     xrequire.Env
	owner   string
	console io.Writer
	logger  xlog.Logger
	ids     IDGenerator
}

var defaultIDs = sync.OnceValues(func() (*xid.Generator, error) {
	return xid.NewGenerator(xid.WithPrefix("exec"))
})

// WithEnv 设置解析需求时使用的变量。
func WithEnv(env xrequire.Env) Option {
	return func(o *options) {
		o.env = env
	}
}

// WithOwner 设置持有者标识，默认为执行 ID。
func WithOwner(owner string) Option {
	return func(o *options) {
		o.owner = owner
	}
}

// WithConsole 设置进度输出，默认丢弃。多个执行共享同一 Writer 时，Writer 需要并发安全。
func WithConsole(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.console = w
		}
	}
}

// WithLogger 设置日志记录器。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithIDGenerator 设置执行 ID 生成器，默认使用前缀为 "exec" 的 xid 生成器。
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) {
		if g != nil {
			o.ids = g
		}
	}
}
