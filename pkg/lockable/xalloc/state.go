package xalloc

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/omeyang/xlockable/pkg/lockable/xrequire"
)

// State 是分配器的可持久化状态。资源、授权与等待项都只按名称和 ID 引用，
// 可以由另一个进程或执行上下文读回。
type State struct {
	Resources []ResourceState  `json:"resources"`
	Grants    []Grant          `json:"grants,omitempty"`
	Pending   []PendingRequest `json:"pending,omitempty"`
	NextSeq   uint64           `json:"next_seq"`
}

// ResourceState 是资源的持久化形式。锁状态由 Grants 推导。
type ResourceState struct {
	Name      string   `json:"name"`
	Labels    []string `json:"labels,omitempty"`
	Note      string   `json:"note,omitempty"`
	Ephemeral bool     `json:"ephemeral,omitempty"`
	Retired   bool     `json:"retired,omitempty"`
}

// Rehydrator 按 ID 找回存活的 Continuation。
type Rehydrator func(id string) (Continuation, bool)

// State 返回当前状态的快照。
func (a *Allocator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	names := a.reg.names()
	st := State{
		Resources: make([]ResourceState, 0, len(names)),
		Grants:    a.grantsLocked(),
		NextSeq:   a.nextSeq,
	}
	for _, name := range names {
		res, _ := a.reg.get(name)
		st.Resources = append(st.Resources, ResourceState{
			Name:      res.name,
			Labels:    slices.Clone(res.labels),
			Note:      res.note,
			Ephemeral: res.ephemeral,
			Retired:   res.retired,
		})
	}
	for _, p := range a.queue.entries {
		st.Pending = append(st.Pending, p.view())
	}
	return st
}

// Restore 把持久化状态载入空的分配器。
//
// 已存在的资源保留当前属性（配置优先），缺失的按状态创建。授权直接恢复为持有；
// 等待项通过 rehydrate 找回 Continuation，找不到的被丢弃并记录警告。
// 到达序号从状态中的最大值之后继续，不会复用。载入后执行一次重扫。
func (a *Allocator) Restore(ctx context.Context, st State, rehydrate Rehydrator) error {
	if rehydrate == nil {
		rehydrate = func(string) (Continuation, bool) { return nil, false }
	}
	if err := st.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if len(a.grants) > 0 || a.queue.len() > 0 {
		a.mu.Unlock()
		return ErrNotEmpty
	}

	for _, rs := range st.Resources {
		if _, ok := a.reg.get(rs.Name); ok {
			continue
		}
		a.reg.declare(ResourceConfig{Name: rs.Name, Labels: rs.Labels, Note: rs.Note})
		res, _ := a.reg.get(rs.Name)
		res.ephemeral = rs.Ephemeral
		res.retired = rs.Retired
	}

	locked := 0
	for _, g := range st.Grants {
		h := &held{Grant: g.clone()}
		if cont, ok := rehydrate(g.ContinuationID); ok {
			h.cont = cont
		}
		for _, name := range g.Resources {
			a.reg.ensure(name)
			res, _ := a.reg.get(name)
			a.reg.lock(res, g.Owner, g.ID, g.GrantedAt)
		}
		a.grants[g.ID] = h
		a.grantByCont[g.ContinuationID] = g.ID
		locked += len(g.Resources)
	}

	var dropped []string
	maxSeq := uint64(0)
	for _, pr := range st.Pending {
		maxSeq = max(maxSeq, pr.Seq)
		cont, ok := rehydrate(pr.ContinuationID)
		if !ok {
			dropped = append(dropped, pr.ContinuationID)
			continue
		}
		a.queue.push(&pending{
			cont:       cont,
			id:         pr.ContinuationID,
			owner:      pr.Owner,
			label:      pr.Label,
			reqs:       slices.Clone(pr.Requirements),
			inverse:    pr.InversePrecedence,
			seq:        pr.Seq,
			enqueuedAt: pr.EnqueuedAt,
		})
	}
	a.nextSeq = max(a.nextSeq, st.NextSeq, maxSeq+1)
	restoredPending := a.queue.len()
	rs := a.requeueLocked(ctx)
	a.mu.Unlock()

	a.metrics.addLocked(ctx, locked)
	a.metrics.addQueueDepth(ctx, restoredPending)
	a.logger.Info(ctx, "state restored",
		slog.Int("resources", len(st.Resources)),
		slog.Int("grants", len(st.Grants)),
		slog.Int("pending", restoredPending),
		slog.Int("dropped", len(dropped)))
	for _, id := range dropped {
		a.logger.Warn(ctx, "pending request dropped, continuation not found", AttrRequest(id))
	}
	a.resumeAll(rs)
	return nil
}

// Validate 检查状态的内部一致性：ID 唯一、资源不被两个授权持有、序号不重复。
func (st State) Validate() error {
	names := make(map[string]struct{}, len(st.Resources))
	for _, rs := range st.Resources {
		if err := validName(rs.Name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
		if _, dup := names[rs.Name]; dup {
			return fmt.Errorf("%w: duplicate resource %q", ErrInvalidState, rs.Name)
		}
		names[rs.Name] = struct{}{}
	}

	conts := make(map[string]struct{})
	grantIDs := make(map[string]struct{}, len(st.Grants))
	heldBy := make(map[string]string)
	for _, g := range st.Grants {
		if g.ID == "" || g.ContinuationID == "" || len(g.Resources) == 0 {
			return fmt.Errorf("%w: incomplete grant %q", ErrInvalidState, g.ID)
		}
		if _, dup := grantIDs[g.ID]; dup {
			return fmt.Errorf("%w: duplicate grant %q", ErrInvalidState, g.ID)
		}
		grantIDs[g.ID] = struct{}{}
		if _, dup := conts[g.ContinuationID]; dup {
			return fmt.Errorf("%w: continuation %q holds two grants", ErrInvalidState, g.ContinuationID)
		}
		conts[g.ContinuationID] = struct{}{}
		for _, name := range g.Resources {
			if err := validName(name); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidState, err)
			}
			if other, dup := heldBy[name]; dup {
				return fmt.Errorf("%w: resource %q held by grants %q and %q", ErrInvalidState, name, other, g.ID)
			}
			heldBy[name] = g.ID
		}
	}

	seqs := make(map[uint64]struct{}, len(st.Pending))
	for _, p := range st.Pending {
		if p.ContinuationID == "" || p.Seq == 0 || len(p.Requirements) == 0 {
			return fmt.Errorf("%w: incomplete pending request %q", ErrInvalidState, p.ContinuationID)
		}
		if _, dup := conts[p.ContinuationID]; dup {
			return fmt.Errorf("%w: continuation %q appears twice", ErrInvalidState, p.ContinuationID)
		}
		conts[p.ContinuationID] = struct{}{}
		if _, dup := seqs[p.Seq]; dup {
			return fmt.Errorf("%w: duplicate arrival sequence %d", ErrInvalidState, p.Seq)
		}
		seqs[p.Seq] = struct{}{}
		for _, r := range p.Requirements {
			if r.IsLabel() {
				if _, err := xrequire.Compile(r.Label); err != nil {
					return fmt.Errorf("%w: %w", ErrInvalidState, err)
				}
			}
		}
	}
	return nil
}
