// Package lockable 提供可锁定资源池相关的子包。
//
// 子包列表：
//   - xrequire: 资源需求声明、变量替换与标签表达式解析
//   - xalloc: 多资源原子分配器（注册表、选择、加锁、等待队列、释放重扫）
//   - xstep: 编排层适配器，负责创建缺失资源、排队提示、执行主体与释放
//   - xsnapshot: 按稳定名称/ID 持久化分配器状态，支持 Redis 与 etcd
//
// 设计原则：
//   - 分配器内部单临界区，所有注册表与队列变更串行执行
//   - 等待者不占用 goroutine，通过 Continuation 异步恢复
//   - 资源与等待项只按名称/ID 引用，可跨执行上下文读回
package lockable
