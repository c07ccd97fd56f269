// Package xalloc 实现多资源原子分配器：一个带公平排队与优先级的广义多单元互斥锁。
//
// # 组成
//
//   - 注册表：全部已知资源（名称、标签、空闲/持有、持有者）
//   - 选择：按声明顺序为一组需求挑选互不重叠的空闲资源，标签候选按名称升序
//   - 加锁事务：选择与提交在同一临界区内完成
//   - 等待队列：提升优先级的请求优先，其余按到达序号 FIFO
//   - 释放重扫：释放后反复扫描队列，直到一整轮没有新授权
//
// 等待者不占用 goroutine：无法满足的请求连同 [Continuation] 进入队列，
// 由之后某次释放的重扫在释放者的 goroutine 上恢复（可用 [WithDispatcher] 改变）。
//
// # 快速开始
//
//	alloc, _ := xalloc.New(xalloc.WithLogger(logger))
//	_, _ = alloc.Declare(ctx, xalloc.ResourceConfig{Name: "P1", Labels: []string{"pool"}})
//
//	reqs, _, err := alloc.Resolve(ctx, []xrequire.Spec{{Label: "pool", Quantity: 1}}, nil)
//	granted, err := alloc.Acquire(ctx, xalloc.Request{Continuation: cont, Requirements: reqs})
//	// granted == false 时 cont 已排队，之后通过 cont.Resume 收到授权
//
//	_, err = alloc.Unlock(ctx, grant)
//
// # 错误与警告
//
//   - [xrequire.ErrUnresolvedVariable]：解析失败，只中止该请求
//   - [ErrRequestNotFound]：取消时请求已不在队列，记录警告
//   - [ErrDoubleRelease]：重复释放，记录警告，不改变状态
//   - [ErrStaleGrant]：释放了他人持有的资源，作为错误返回
//
// 内部不变量被破坏（例如提交一个已被持有的资源）属于程序错误，直接 panic。
package xalloc
