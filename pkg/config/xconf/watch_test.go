package xconf

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reloads 收集回调结果。
type reloads struct {
	mu   sync.Mutex
	cfgs []*Config
	errs []error
}

func (r *reloads) record(cfg *Config, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errs = append(r.errs, err)
		return
	}
	r.cfgs = append(r.cfgs, cfg)
}

func (r *reloads) last() (*Config, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cfgs) == 0 {
		return nil, 0, len(r.errs)
	}
	return r.cfgs[len(r.cfgs)-1], len(r.cfgs), len(r.errs)
}

func TestWatchValidation(t *testing.T) {
	ctx := context.Background()
	_, err := Watch(ctx, "", nil)
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = Watch(ctx, "pool.ini", nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Watch(ctx, filepath.Join(t.TempDir(), "missing-dir", "pool.yaml"), nil)
	assert.Error(t, err)
}

func TestWatchReloads(t *testing.T) {
	path := writeFile(t, "pool.yaml", "pool:\n  resources:\n    - name: a\n")
	var r reloads

	w, err := Watch(context.Background(), path, r.record, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(path, []byte("pool:\n  resources:\n    - name: a\n    - name: b\n"), 0o600))

	require.Eventually(t, func() bool {
		cfg, n, _ := r.last()
		return n > 0 && len(cfg.Pool.Resources) == 2
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatchReportsInvalidConfig(t *testing.T) {
	path := writeFile(t, "pool.yaml", "pool: {}\n")
	var r reloads

	w, err := Watch(context.Background(), path, r.record, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o600))

	require.Eventually(t, func() bool {
		_, _, errs := r.last()
		return errs > 0
	}, 3*time.Second, 20*time.Millisecond)
	r.mu.Lock()
	assert.ErrorIs(t, r.errs[0], ErrInvalidConfig)
	r.mu.Unlock()
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	path := writeFile(t, "pool.yaml", "pool: {}\n")
	var r reloads

	w, err := Watch(context.Background(), path, r.record, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("x: 1\n"), 0o600))
	time.Sleep(100 * time.Millisecond)

	_, n, errs := r.last()
	assert.Zero(t, n)
	assert.Zero(t, errs)
}

func TestWatchStopsWithContext(t *testing.T) {
	path := writeFile(t, "pool.yaml", "pool: {}\n")
	ctx, cancel := context.WithCancel(context.Background())

	w, err := Watch(ctx, path, func(*Config, error) {})
	require.NoError(t, err)

	cancel()
	select {
	case <-w.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop")
	}
	require.NoError(t, w.Stop())
	// 重复 Stop 安全
	require.NoError(t, w.Stop())
}
