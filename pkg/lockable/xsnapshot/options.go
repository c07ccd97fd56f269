package xsnapshot

import (
	"time"

	"github.com/omeyang/xlockable/pkg/observability/xlog"
)

// Option 配置 Store。
type Option func(*options)

type options struct {
	attempts       uint
	retryDelay     time.Duration
	tripAfter      uint32
	breakerTimeout time.Duration
	ttl            time.Duration
	logger         xlog.Logger
}

func defaultOptions() options {
	return options{
		attempts:       3,
		retryDelay:     100 * time.Millisecond,
		tripAfter:      5,
		breakerTimeout: 30 * time.Second,
		logger:         xlog.Discard(),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithRetry 设置每次操作的最多尝试次数与初始退避间隔，默认 3 次、100ms。
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(o *options) {
		if attempts > 0 {
			o.attempts = attempts
		}
		if delay >= 0 {
			o.retryDelay = delay
		}
	}
}

// WithBreaker 设置熔断：连续失败 tripAfter 次后打开，timeout 后半开试探。默认 5 次、30s。
func WithBreaker(tripAfter uint32, timeout time.Duration) Option {
	return func(o *options) {
		if tripAfter > 0 {
			o.tripAfter = tripAfter
		}
		if timeout > 0 {
			o.breakerTimeout = timeout
		}
	}
}

// WithTTL 设置快照过期时间，0 表示永不过期。仅 Redis 后端生效。
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl >= 0 {
			o.ttl = ttl
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
