package xsnapshot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyBackend 前 failures 次调用返回错误。
type flakyBackend struct {
	mu       sync.Mutex
	failures int
	calls    int
	data     map[string][]byte
}

var errFlaky = errors.New("flaky")

func (b *flakyBackend) step() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.calls <= b.failures {
		return errFlaky
	}
	return nil
}

func (b *flakyBackend) get(_ context.Context, key string) ([]byte, error) {
	if err := b.step(); err != nil {
		return nil, err
	}
	d, ok := b.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (b *flakyBackend) put(_ context.Context, key string, data []byte) error {
	if err := b.step(); err != nil {
		return err
	}
	b.data[key] = data
	return nil
}

func (b *flakyBackend) del(_ context.Context, key string) error {
	if err := b.step(); err != nil {
		return err
	}
	delete(b.data, key)
	return nil
}

func newFlaky(failures int, opts ...Option) (*resilientStore, *flakyBackend) {
	b := &flakyBackend{failures: failures, data: map[string][]byte{}}
	opts = append([]Option{WithRetry(3, 0)}, opts...)
	return newResilientStore("flaky", b, applyOptions(opts)), b
}

func TestResilientStoreRetries(t *testing.T) {
	ctx := context.Background()
	s, b := newFlaky(2)

	require.NoError(t, s.Save(ctx, "k", sampleState()))
	assert.Equal(t, 3, b.calls)

	got, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, sampleState(), got)
}

func TestResilientStoreGivesUp(t *testing.T) {
	ctx := context.Background()
	s, b := newFlaky(10)

	err := s.Save(ctx, "k", sampleState())
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, b.calls)
}

func TestResilientStoreNotFoundNotRetried(t *testing.T) {
	s, b := newFlaky(0)

	_, err := s.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, b.calls)
}

func TestApplyOptionsIgnoresInvalid(t *testing.T) {
	o := applyOptions([]Option{nil, WithRetry(0, -1), WithBreaker(0, 0), WithTTL(-1), WithLogger(nil)})
	def := defaultOptions()
	assert.Equal(t, def.attempts, o.attempts)
	assert.Equal(t, def.retryDelay, o.retryDelay)
	assert.Equal(t, def.tripAfter, o.tripAfter)
	assert.Equal(t, def.breakerTimeout, o.breakerTimeout)
	assert.Zero(t, o.ttl)
	assert.NotNil(t, o.logger)
}
