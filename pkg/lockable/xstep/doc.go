// Package xstep 把"持有资源执行一段工作"包装为可等待、可停止的执行。
//
// 一次执行的过程：
//
//  1. 解析步骤声明的需求，显式点名但尚不存在的资源被创建；
//  2. 向分配器申请资源，申请不到时排队等待；
//  3. 获得授权后在独立 goroutine 中运行 body；
//  4. body 返回后释放授权，唤醒等待者。
//
// 每一步都向 console 写一行进度，便于在构建日志中追踪：
//
//	Resource [db-dev] did not exist. Created.
//	Trying to acquire lock on [[db-dev], label:gpu x1]
//	[[db-dev], label:gpu x1] is locked, waiting...
//	Lock acquired on [[db-dev], label:gpu x1]
//	Lock released on resource [[db-dev], label:gpu x1]
//
// 停止执行（[Execution.Stop]）时，等待中的申请被移出队列，运行中的 body
// 通过 context 取消，其授权立即释放。
package xstep
