// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持按大小轮转的文件输出
//
// 指标与追踪直接使用 OpenTelemetry API，由各领域包（如 xalloc）自行注册。
//
// 设计原则：
//   - 日志方法以 context 为首参，自动注入 trace_id/span_id
//   - 只接受 slog.Attr，不接受松散的键值对
//   - 支持运行时调整级别
package observability
