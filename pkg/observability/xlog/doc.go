// Package xlog 提供基于 log/slog 的结构化日志。
//
// 设计理念：
//   - 强制 context 传递，自动注入当前 span 的 trace_id / span_id
//   - 方法签名只接受 slog.Attr，类型安全
//   - 运行时动态调整级别（slog.LevelVar）
//   - Build() 返回 cleanup，负责关闭轮转文件
//
// 用法：
//
//	logger, cleanup, err := xlog.New().
//	    SetLevelString("debug").
//	    SetFormat("json").
//	    SetRotation("/var/log/xlockable/alloc.log", xlog.WithMaxBackups(3)).
//	    Build()
//	if err != nil {
//	    return err
//	}
//	defer cleanup()
//
//	logger.Info(ctx, "lock acquired", slog.String("resource", "printer-1"))
//
// 不需要日志的组件使用 [Discard]。
package xlog
