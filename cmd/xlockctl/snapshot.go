package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/omeyang/xlockable/pkg/lockable/xalloc"
	"github.com/omeyang/xlockable/pkg/lockable/xsnapshot"
)

// snapshotTimeout 限制 snapshot show 的读取时间。
const snapshotTimeout = 10 * time.Second

// cmdSnapshotShow 读取快照并打印。快照不存在时退出码为 1。
func cmdSnapshotShow(ctx context.Context, stdout, stderr io.Writer, path string) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	if !cfg.Snapshot.Enabled() {
		return newUsageError("snapshot backend not configured in "+path, nil)
	}

	logger, cleanup, err := buildLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	backend, err := openSnapshot(cfg.Snapshot, logger)
	if err != nil {
		return fmt.Errorf("open snapshot backend: %w", err)
	}
	defer func() { _ = backend.Close() }()

	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()
	st, err := backend.store.Load(ctx, cfg.Snapshot.Key)
	if xsnapshot.IsNotFound(err) {
		fmt.Fprintf(stdout, "快照不存在: %s\n", cfg.Snapshot.Key)
		return &exitError{code: 1}
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	printState(stdout, st)
	return nil
}

// printState 输出快照内容。
func printState(w io.Writer, st xalloc.State) {
	fmt.Fprintf(w, "资源: %d  授权: %d  等待: %d  next_seq: %d\n\n",
		len(st.Resources), len(st.Grants), len(st.Pending), st.NextSeq)
	printResources(w, stateResources(st))
	fmt.Fprintln(w)
	printGrants(w, st.Grants)
	fmt.Fprintln(w)
	printPending(w, st.Pending)
}

// stateResources 由持久化状态推导资源视图，锁状态取自授权。
func stateResources(st xalloc.State) []xalloc.Resource {
	holders := make(map[string]xalloc.Grant)
	for _, g := range st.Grants {
		for _, name := range g.Resources {
			holders[name] = g
		}
	}
	out := make([]xalloc.Resource, 0, len(st.Resources))
	for _, rs := range st.Resources {
		r := xalloc.Resource{
			Name:      rs.Name,
			Labels:    rs.Labels,
			Note:      rs.Note,
			Ephemeral: rs.Ephemeral,
			Retired:   rs.Retired,
		}
		if g, ok := holders[rs.Name]; ok {
			r.Locked = true
			r.Holder = g.Owner
			r.GrantID = g.ID
			r.LockedAt = g.GrantedAt
		}
		out = append(out, r)
	}
	return out
}
