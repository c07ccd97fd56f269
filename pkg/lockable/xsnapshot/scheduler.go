package xsnapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/robfig/cron/v3"

	"github.com/omeyang/xlockable/pkg/lockable/xalloc"
	"github.com/omeyang/xlockable/pkg/observability/xlog"
)

// scheduleParser 支持可选的秒字段与 @every 等描述符。
var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule 校验 cron 表达式。
func ParseSchedule(spec string) error {
	if _, err := scheduleParser.Parse(spec); err != nil {
		return fmt.Errorf("xsnapshot: invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Scheduler 定期把分配器状态写入 Store。内容未变化的周期跳过写入。
type Scheduler struct {
	store  Store
	key    string
	source func() xalloc.State
	guard  *Guard
	logger xlog.Logger
	cron   *cron.Cron

	mu       sync.Mutex
	started  bool
	lastHash uint64
	saved    bool
}

// SchedulerOption 配置 Scheduler。
type SchedulerOption func(*Scheduler)

// WithGuard 每次保存前续期 Guard，续期失败则跳过本次保存。
func WithGuard(g *Guard) SchedulerOption {
	return func(s *Scheduler) {
		s.guard = g
	}
}

// WithSchedulerLogger 设置日志记录器。
func WithSchedulerLogger(l xlog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScheduler 创建 Scheduler。source 通常为 alloc.State。
func NewScheduler(store Store, key string, source func() xalloc.State, opts ...SchedulerOption) (*Scheduler, error) {
	if store == nil || source == nil {
		return nil, ErrNilClient
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	s := &Scheduler{
		store:  store,
		key:    key,
		source: source,
		logger: xlog.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = s.logger.With(xlog.Component("xsnapshot"), slog.String("key", key))
	s.cron = cron.New(cron.WithParser(scheduleParser))
	return s, nil
}

// Start 按 spec 启动定期保存，如 "@every 30s" 或 "*/10 * * * * *"。
func (s *Scheduler) Start(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrSchedulerStarted
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("xsnapshot: invalid schedule %q: %w", spec, err)
	}
	s.cron.Start()
	s.started = true
	s.logger.Info(context.Background(), "snapshot scheduler started", slog.String("schedule", spec))
	return nil
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	if err := s.SaveNow(ctx); err != nil && !errors.Is(err, ErrGuardLost) {
		s.logger.Error(ctx, "scheduled snapshot failed", xlog.Err(err))
	}
}

// SaveNow 立即保存一次。持有 Guard 时先续期，续期失败返回 [ErrGuardLost] 且不写入。
func (s *Scheduler) SaveNow(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.guard != nil {
		if err := s.guard.Extend(ctx); err != nil {
			s.logger.Warn(ctx, "snapshot skipped, guard not held", xlog.Err(err))
			return err
		}
	}
	st := s.source()
	// 信封含生成时间，只比较状态部分
	h := stateHash(st)
	if s.saved && h == s.lastHash {
		return nil
	}
	if err := s.store.Save(ctx, s.key, st); err != nil {
		return err
	}
	s.lastHash, s.saved = h, true
	return nil
}

func stateHash(st xalloc.State) uint64 {
	raw, err := json.Marshal(st)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(raw)
}

// Stop 停止调度，返回的 context 在进行中的保存结束后完成。
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
