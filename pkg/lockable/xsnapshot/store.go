package xsnapshot

import (
	"context"
	"errors"
	"log/slog"

	retry "github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xlockable/pkg/lockable/xalloc"
	"github.com/omeyang/xlockable/pkg/observability/xlog"
)

// Store 保存和读取快照。
type Store interface {
	Save(ctx context.Context, key string, st xalloc.State) error
	// Load 读取快照，不存在时返回 [ErrNotFound]。
	Load(ctx context.Context, key string) (xalloc.State, error)
	Delete(ctx context.Context, key string) error
}

// backend 是后端的原始字节存取。
type backend interface {
	get(ctx context.Context, key string) ([]byte, error)
	put(ctx context.Context, key string, data []byte) error
	del(ctx context.Context, key string) error
}

// resilientStore 为后端加上编解码、熔断与重试。
type resilientStore struct {
	name    string
	backend backend
	cb      *gobreaker.CircuitBreaker[[]byte]
	opts    options
	logger  xlog.Logger
}

func newResilientStore(name string, b backend, o options) *resilientStore {
	logger := o.logger.With(xlog.Component("xsnapshot"), slog.String("backend", name))
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "xsnapshot." + name,
		Timeout: o.breakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= o.tripAfter
		},
		// 快照不存在是正常结果，不计入失败
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "circuit breaker state changed",
				slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return &resilientStore{name: name, backend: b, cb: cb, opts: o, logger: logger}
}

// do 经熔断器执行 fn，失败时按指数退避重试。
// ErrNotFound、熔断打开与 context 取消不重试。
func (s *resilientStore) do(ctx context.Context, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	return retry.NewWithData[[]byte](
		retry.Context(ctx),
		retry.Attempts(s.opts.attempts),
		retry.Delay(s.opts.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn(ctx, "snapshot operation retrying", slog.Uint64("attempt", uint64(n)+1), xlog.Err(err))
		}),
	).Do(func() ([]byte, error) {
		return s.cb.Execute(func() ([]byte, error) {
			return fn(ctx)
		})
	})
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func (s *resilientStore) Save(ctx context.Context, key string, st xalloc.State) error {
	if key == "" {
		return ErrEmptyKey
	}
	data, err := Encode(st)
	if err != nil {
		return err
	}
	_, err = s.do(ctx, func(ctx context.Context) ([]byte, error) {
		return nil, s.backend.put(ctx, key, data)
	})
	if err != nil {
		s.logger.Error(ctx, "snapshot save failed", slog.String("key", key), xlog.Err(err))
		return err
	}
	s.logger.Debug(ctx, "snapshot saved", slog.String("key", key), slog.Int("bytes", len(data)))
	return nil
}

func (s *resilientStore) Load(ctx context.Context, key string) (xalloc.State, error) {
	if key == "" {
		return xalloc.State{}, ErrEmptyKey
	}
	data, err := s.do(ctx, func(ctx context.Context) ([]byte, error) {
		return s.backend.get(ctx, key)
	})
	if err != nil {
		return xalloc.State{}, err
	}
	return Decode(data)
}

func (s *resilientStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	_, err := s.do(ctx, func(ctx context.Context) ([]byte, error) {
		return nil, s.backend.del(ctx, key)
	})
	return err
}

// BreakerState 返回熔断器状态，用于诊断。
func (s *resilientStore) BreakerState() gobreaker.State { return s.cb.State() }
