// Package xrun 基于 errgroup + context 管理 xlockctl 的进程生命周期。
//
// 当任一任务返回错误或收到终止信号时，共享的 context 被取消，所有任务应监听
// ctx.Done() 退出。[Run] 默认监听 SIGHUP、SIGINT、SIGTERM、SIGQUIT，
// 收到信号时以 [*SignalError] 作为退出原因：
//
//	err := xrun.Run(ctx, []xrun.Option{xrun.WithLogger(logger)},
//	    scenario.Run,
//	    watcher.Run,
//	)
//	if errors.Is(err, xrun.ErrSignal) {
//	    // 正常中断
//	}
//
// Wait 过滤由 Group 自身取消引起的 context.Canceled，但保留显式的取消原因。
// 任务内部产生的 context.Canceled（Group 未被取消）原样返回。
//
// [errgroup]: https://pkg.go.dev/golang.org/x/sync/errgroup
package xrun
