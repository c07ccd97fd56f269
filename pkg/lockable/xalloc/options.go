package xalloc

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xlockable/pkg/lockable/xrequire"
	"github.com/omeyang/xlockable/pkg/observability/xlog"
)

// Option 定义 Allocator 可选配置。
type Option func(*options)

type options struct {
	logger         xlog.Logger
	metrics        *Metrics
	tracerProvider trace.TracerProvider
	now            func() time.Time
	dispatch       func(func())
	resolver       *xrequire.Resolver
	onWarn         func(context.Context, error)
}

func defaultOptions() options {
	return options{
		logger:   xlog.Discard(),
		now:      time.Now,
		dispatch: func(fn func()) { fn() },
	}
}

// WithLogger 设置日志记录器。nil 时忽略。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics 设置指标收集器，nil 表示不收集。
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracerProvider 设置 TracerProvider，默认使用全局 provider。
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithClock 设置时间源，用于测试。
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithDispatcher 设置 Continuation 回调的执行方式。
//
// 默认在触发授权的 goroutine 上按授权顺序同步执行。
// 传入 func(fn func()) { go fn() } 可让每个回调在独立 goroutine 中执行。
func WithDispatcher(dispatch func(func())) Option {
	return func(o *options) {
		if dispatch != nil {
			o.dispatch = dispatch
		}
	}
}

// WithResolver 设置需求解析器，默认新建一个。
func WithResolver(r *xrequire.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithWarnHook 设置警告回调。RequestNotFound 与 DoubleRelease 在记录日志的同时交给回调。
func WithWarnHook(fn func(ctx context.Context, err error)) Option {
	return func(o *options) {
		o.onWarn = fn
	}
}
