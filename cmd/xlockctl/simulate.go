package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/omeyang/xlockable/pkg/config/xconf"
	"github.com/omeyang/xlockable/pkg/lifecycle/xrun"
	"github.com/omeyang/xlockable/pkg/lockable/xalloc"
	"github.com/omeyang/xlockable/pkg/lockable/xrequire"
	"github.com/omeyang/xlockable/pkg/lockable/xsnapshot"
	"github.com/omeyang/xlockable/pkg/lockable/xstep"
	"github.com/omeyang/xlockable/pkg/observability/xlog"
)

// errJobCanceled 是场景中 cancel_after 到期时的停止原因。
var errJobCanceled = errors.New("job canceled by scenario")

type simulateParams struct {
	configPath   string
	scenarioPath string
	watch        bool
	metrics      bool
	stats        time.Duration
	timeout      time.Duration
	stdout       io.Writer
	stderr       io.Writer

	// now 仅测试替换
	now func() time.Time
}

// jobResult 是一个作业的运行结果。
type jobResult struct {
	name     string
	started  bool
	granted  bool
	grant    xalloc.Grant
	err      error
	duration time.Duration
}

// cmdSimulate 运行场景。任一作业失败时退出码为 1，但所有作业都会运行完。
func cmdSimulate(ctx context.Context, p simulateParams) error {
	cfg, err := loadConfig(p.configPath)
	if err != nil {
		return err
	}
	sc, err := xconf.LoadScenario(p.scenarioPath)
	if err != nil {
		return wrapConfigError("load scenario", err)
	}

	logger, cleanup, err := buildLogger(cfg.Log, p.stderr)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	allocOpts := []xalloc.Option{xalloc.WithLogger(logger)}
	var reader *sdkmetric.ManualReader
	if p.metrics {
		mp, r := newMeterProvider()
		defer func() { _ = mp.Shutdown(context.WithoutCancel(ctx)) }()
		m, err := xalloc.NewMetrics(mp)
		if err != nil {
			return fmt.Errorf("create metrics: %w", err)
		}
		allocOpts = append(allocOpts, xalloc.WithMetrics(m))
		reader = r
	}
	alloc, err := xalloc.New(allocOpts...)
	if err != nil {
		return fmt.Errorf("create allocator: %w", err)
	}
	defer alloc.Close(context.WithoutCancel(ctx))

	backend, err := openSnapshot(cfg.Snapshot, logger)
	if err != nil {
		return fmt.Errorf("open snapshot backend: %w", err)
	}
	defer func() { _ = backend.Close() }()

	// 恢复必须在声明资源池之前：Restore 只接受空分配器
	if backend != nil {
		if backend.guard != nil {
			if err := backend.guard.Acquire(ctx); err != nil {
				return fmt.Errorf("acquire snapshot guard: %w", err)
			}
			defer releaseGuard(ctx, backend.guard, logger)
		}
		if err := restoreSnapshot(ctx, alloc, backend.store, cfg.Snapshot.Key, logger); err != nil {
			return err
		}
	}
	if _, err := xconf.Apply(ctx, alloc, cfg.Pool); err != nil {
		return fmt.Errorf("apply pool: %w", err)
	}

	if backend != nil {
		stop, err := startScheduler(alloc, backend, cfg.Snapshot, logger)
		if err != nil {
			return err
		}
		defer stop(ctx)
	}

	if p.watch {
		w, err := xconf.Watch(ctx, p.configPath, xconf.ApplyOnChange(ctx, alloc, logger))
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		defer func() { _ = w.Stop() }()
	}

	runCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	tl := newTimeline(p.stdout, p.now)
	results, runErr := runScenario(runCtx, alloc, sc, tl, p.stats, logger)

	fmt.Fprintln(p.stdout)
	failed := printSummary(p.stdout, results)
	if reader != nil {
		fmt.Fprintln(p.stdout)
		if err := printMetrics(context.WithoutCancel(ctx), p.stdout, reader); err != nil {
			logger.Warn(ctx, "print metrics failed", xlog.Err(err))
		}
	}

	var sigErr *xrun.SignalError
	switch {
	case errors.As(runErr, &sigErr):
		fmt.Fprintf(p.stderr, "已中断: %v\n", sigErr)
		return &exitError{code: 130}
	case runErr != nil:
		return fmt.Errorf("scenario: %w", runErr)
	case failed > 0:
		return &exitError{code: 1}
	}
	return nil
}

// restoreSnapshot 载入已保存的状态。
//
// 上一进程的执行已不存在：等待项无法找回而被丢弃，残留授权在这里释放。
func restoreSnapshot(ctx context.Context, alloc *xalloc.Allocator, store xsnapshot.Store, key string, logger xlog.Logger) error {
	st, err := store.Load(ctx, key)
	if xsnapshot.IsNotFound(err) {
		logger.Info(ctx, "no snapshot found, starting empty", slog.String("key", key))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := alloc.Restore(ctx, st, nil); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	for _, g := range alloc.Grants() {
		if _, err := alloc.Unlock(ctx, g); err != nil {
			logger.Warn(ctx, "release orphaned grant failed", xalloc.AttrGrant(g.ID), xlog.Err(err))
			continue
		}
		logger.Info(ctx, "released orphaned grant",
			xalloc.AttrGrant(g.ID), xalloc.AttrOwner(g.Owner), xalloc.AttrResources(g.Resources))
	}
	logger.Info(ctx, "snapshot restored",
		slog.String("key", key), slog.Int("resources", len(st.Resources)), slog.Int("grants", len(st.Grants)))
	return nil
}

// startScheduler 启动周期快照，返回的 stop 停止调度并写入最后一次快照。
func startScheduler(alloc *xalloc.Allocator, backend *snapshotBackend, cfg xconf.Snapshot, logger xlog.Logger) (func(context.Context), error) {
	opts := []xsnapshot.SchedulerOption{xsnapshot.WithSchedulerLogger(logger)}
	if backend.guard != nil {
		opts = append(opts, xsnapshot.WithGuard(backend.guard))
	}
	sched, err := xsnapshot.NewScheduler(backend.store, cfg.Key, alloc.State, opts...)
	if err != nil {
		return nil, fmt.Errorf("create snapshot scheduler: %w", err)
	}
	if err := sched.Start(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("start snapshot scheduler: %w", err)
	}
	return func(ctx context.Context) {
		<-sched.Stop().Done()
		if err := sched.SaveNow(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "final snapshot failed", xlog.Err(err))
		}
	}, nil
}

// runScenario 并发运行所有作业，直到全部结束、ctx 取消或收到信号。
func runScenario(ctx context.Context, alloc *xalloc.Allocator, sc *xconf.Scenario, tl *timeline, stats time.Duration, logger xlog.Logger) ([]jobResult, error) {
	results := make([]jobResult, len(sc.Jobs))

	// 作业全部结束时取消 scenarioCtx，使统计任务与信号监听退出
	scenarioCtx, finish := context.WithCancel(ctx)
	defer finish()

	tasks := []func(context.Context) error{
		func(ctx context.Context) error {
			defer finish()
			jobs, _ := xrun.NewGroup(ctx, xrun.WithLogger(logger), xrun.WithName("jobs"))
			for i, job := range sc.Jobs {
				jobs.GoWithName(job.Name, func(ctx context.Context) error {
					results[i] = runJob(ctx, alloc, job, tl, logger)
					return nil
				})
			}
			return jobs.Wait()
		},
	}
	if stats > 0 {
		tasks = append(tasks, xrun.Ticker(stats, false, func(context.Context) error {
			s := alloc.Stats()
			tl.Printf("stats: resources=%d locked=%d pending=%d grants=%d", s.Resources, s.Locked, s.Pending, s.Grants)
			return nil
		}))
	}

	err := xrun.Run(scenarioCtx, []xrun.Option{xrun.WithLogger(logger), xrun.WithName("simulate")}, tasks...)
	if err == nil {
		// 外层 ctx 超时或取消时 Run 会过滤 context.Canceled，这里还原原因
		err = ctx.Err()
	}
	return results, err
}

// runJob 运行一个作业：等待 Delay，申请资源，持有 Hold 后释放。
func runJob(ctx context.Context, alloc *xalloc.Allocator, job xconf.Job, tl *timeline, logger xlog.Logger) jobResult {
	res := jobResult{name: job.Name}
	if job.Delay > 0 {
		t := time.NewTimer(job.Delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			res.err = context.Cause(ctx)
			return res
		}
	}

	console := tl.For(job.Name)
	step := xstep.Step{
		Resources:         job.Specs(),
		InversePrecedence: job.InversePrecedence,
		Variable:          job.Variable,
	}
	body := func(ctx context.Context, lease xstep.Lease) error {
		if job.Variable != "" {
			fmt.Fprintf(console, "%s=%s\n", job.Variable, lease.Env[job.Variable])
		}
		t := time.NewTimer(job.Hold)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}

	start := time.Now()
	exec, err := xstep.Start(ctx, alloc, step, body,
		xstep.WithOwner(job.Name),
		xstep.WithEnv(xrequire.Env(job.Env)),
		xstep.WithConsole(console),
		xstep.WithLogger(logger.With(slog.String("job", job.Name))),
	)
	if err != nil {
		fmt.Fprintf(console, "failed to start: %v\n", err)
		res.err = err
		return res
	}
	res.started = true

	if job.CancelAfter > 0 {
		cancelTimer := time.AfterFunc(job.CancelAfter, func() {
			fmt.Fprintf(console, "canceling after %s\n", job.CancelAfter)
			exec.Stop(errJobCanceled)
		})
		defer cancelTimer.Stop()
	}

	select {
	case <-exec.Done():
	case <-ctx.Done():
		exec.Stop(context.Cause(ctx))
		<-exec.Done()
	}
	res.err = exec.Err()
	res.grant, res.granted = exec.Grant()
	res.duration = time.Since(start)
	return res
}

// printSummary 输出作业结果，返回失败数。被场景主动取消的作业不算失败。
func printSummary(w io.Writer, results []jobResult) int {
	failed := 0
	tw := newTable(w)
	fmt.Fprintln(tw, "JOB\tRESULT\tRESOURCES\tDURATION")
	for _, r := range results {
		result := "ok"
		switch {
		case errors.Is(r.err, errJobCanceled):
			result = "canceled"
		case r.err != nil:
			result = "failed: " + r.err.Error()
			failed++
		case !r.started:
			result = "not started"
		}
		names := "-"
		if r.granted {
			names = xalloc.FormatNames(r.grant.Resources)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", orDash(r.name), result, names, r.duration.Round(time.Millisecond))
	}
	_ = tw.Flush()
	return failed
}
