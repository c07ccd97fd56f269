package xrequire

import "fmt"

const defaultCacheSize = 256

// Option 定义 Resolver 可选配置。
type Option func(*options)

type options struct {
	cacheSize int
}

func defaultOptions() options {
	return options{cacheSize: defaultCacheSize}
}

// WithCacheSize 设置编译后标签表达式的缓存容量。默认 256。
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

func (o *options) validate() error {
	if o.cacheSize <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCacheSize, o.cacheSize)
	}
	return nil
}
