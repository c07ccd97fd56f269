package xconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce 默认防抖时间
const DefaultDebounce = 100 * time.Millisecond

// WatchOption 监视器配置选项
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
	load     []Option
}

// WithDebounce 设置防抖时间。在此时间内的多次变更只触发一次重载。
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithLoadOptions 设置重载时使用的加载选项。
func WithLoadOptions(opts ...Option) WatchOption {
	return func(o *watchOptions) {
		o.load = opts
	}
}

// Watcher 配置文件监视器。
type Watcher struct {
	path     string
	onChange func(*Config, error)
	opts     watchOptions
	fs       *fsnotify.Watcher
	cancel   context.CancelFunc
	done     chan struct{}

	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
	inflight sync.WaitGroup
	cbMu     sync.Mutex
}

// Watch 监视配置文件，变更时重新加载并调用 onChange。
//
// 重载失败时 cfg 为 nil、err 非 nil。监视在 ctx 结束或调用 Stop 后停止。
// 监视的是文件所在目录：编辑器保存时可能先删除再创建，直接监视文件会丢失事件。
//
// onChange 在定时器 goroutine 中串行调用，不要在其中调用 Stop。
func Watch(ctx context.Context, path string, onChange func(*Config, error), opts ...WatchOption) (*Watcher, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if _, err := detectFormat(path); err != nil {
		return nil, err
	}
	o := watchOptions{debounce: DefaultDebounce}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xconf: failed to create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		return nil, errors.Join(
			fmt.Errorf("xconf: failed to watch directory %s: %w", dir, err),
			fsw.Close(),
		)
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		path:     path,
		onChange: onChange,
		opts:     o,
		fs:       fsw,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go w.run(ctx)
	return w, nil
}

// Stop 停止监视。返回后不再有回调执行。可重复调用。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		<-w.done
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	w.cancel()
	err := w.fs.Close()
	<-w.done
	w.inflight.Wait()
	return err
}

// Done 在监视循环退出后关闭。
func (w *Watcher) Done() <-chan struct{} { return w.done }

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	filename := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.stopped = true
			if w.timer != nil {
				w.timer.Stop()
				w.timer = nil
			}
			w.mu.Unlock()
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event, filename)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.notify(nil, fmt.Errorf("xconf: watch error: %w", err))
		}
	}
}

// handleEvent 处理文件系统事件
func (w *Watcher) handleEvent(event fsnotify.Event, filename string) {
	if filepath.Base(event.Name) != filename {
		return
	}
	// Write 直接修改；Create 部分编辑器新建文件；Rename 原子写入（写临时文件后 rename）
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.debounce, func() {
		cfg, err := Load(w.path, w.opts.load...)
		w.notify(cfg, err)
	})
}

// notify 在未停止时调用回调，回调之间互斥。
func (w *Watcher) notify(cfg *Config, err error) {
	w.mu.Lock()
	if w.stopped || w.onChange == nil {
		w.mu.Unlock()
		return
	}
	w.inflight.Add(1)
	w.mu.Unlock()
	defer w.inflight.Done()

	w.cbMu.Lock()
	defer w.cbMu.Unlock()
	w.onChange(cfg, err)
}
