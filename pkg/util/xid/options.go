package xid

import "time"

type options struct {
	machineID     func() (uint16, error)
	prefix        string
	maxWait       time.Duration
	retryInterval time.Duration
}

// Option 配置 Generator。
type Option func(*options)

// WithMachineID 设置机器 ID 来源，默认 [DefaultMachineID]。
func WithMachineID(fn func() (uint16, error)) Option {
	return func(o *options) {
		o.machineID = fn
	}
}

// WithPrefix 设置字符串 ID 前缀，前缀与 ID 之间以 "-" 连接。
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithMaxWait 设置 NewStringWithRetry 的最长等待时间，默认 500ms。
func WithMaxWait(d time.Duration) Option {
	return func(o *options) {
		o.maxWait = d
	}
}

// WithRetryInterval 设置重试间隔，默认 10ms（Sonyflake 的时间精度）。
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) {
		o.retryInterval = d
	}
}
