// Package xsnapshot 持久化分配器状态。
//
// 状态以带校验和的 JSON 信封保存（[Encode]/[Decode]），后端为 Redis（[RedisStore]）
// 或 etcd（[EtcdStore]）。每次存取都经过熔断器与重试。
//
// 多个进程共享同一份快照时，只有持有 [Guard] 的进程应当写入；
// [Scheduler] 按 cron 表达式定期保存，并在每次保存前续期 Guard。
//
// 典型用法：
//
//	store, _ := xsnapshot.NewRedisStore(rdb)
//	st, err := store.Load(ctx, key)
//	if err == nil {
//	    _ = alloc.Restore(ctx, st, rehydrate)
//	}
//	sched, _ := xsnapshot.NewScheduler(store, key, alloc.State)
//	_ = sched.Start("@every 30s")
//	defer sched.Stop()
package xsnapshot
