package xalloc

import (
	"cmp"
	"slices"
	"time"

	"github.com/omeyang/xlockable/pkg/lockable/xrequire"
)

// pending 是等待队列中的请求。在队列中时不持有任何资源。
type pending struct {
	cont       Continuation
	id         string
	owner      string
	label      string
	reqs       []xrequire.Requirement
	inverse    bool
	seq        uint64
	enqueuedAt time.Time
}

func (p *pending) view() PendingRequest {
	return PendingRequest{
		ContinuationID:    p.id,
		Owner:             p.owner,
		Label:             p.label,
		Seq:               p.seq,
		InversePrecedence: p.inverse,
		Requirements:      slices.Clone(p.reqs),
		EnqueuedAt:        p.enqueuedAt,
	}
}

// waitQueue 按到达顺序保存等待请求，并按 ID 索引。
type waitQueue struct {
	entries []*pending
	byID    map[string]*pending
}

func newWaitQueue() *waitQueue {
	return &waitQueue{byID: make(map[string]*pending)}
}

func (q *waitQueue) len() int { return len(q.entries) }

func (q *waitQueue) has(id string) bool {
	_, ok := q.byID[id]
	return ok
}

// push 追加请求。恢复持久化状态时 seq 可能小于已有项，因此按 seq 插入。
func (q *waitQueue) push(p *pending) {
	i, _ := slices.BinarySearchFunc(q.entries, p.seq, func(e *pending, seq uint64) int {
		return cmp.Compare(e.seq, seq)
	})
	q.entries = slices.Insert(q.entries, i, p)
	q.byID[p.id] = p
}

func (q *waitQueue) remove(id string) (*pending, bool) {
	p, ok := q.byID[id]
	if !ok {
		return nil, false
	}
	delete(q.byID, id)
	q.entries = slices.DeleteFunc(q.entries, func(e *pending) bool { return e == p })
	return p, true
}

// drain 清空队列并按到达顺序返回全部请求。
func (q *waitQueue) drain() []*pending {
	out := q.entries
	q.entries = nil
	clear(q.byID)
	return out
}

// scanOrder 返回重扫顺序：提升优先级的请求在前，同一层内按到达序号升序。
func (q *waitQueue) scanOrder() []*pending {
	out := make([]*pending, 0, len(q.entries))
	for _, p := range q.entries {
		if p.inverse {
			out = append(out, p)
		}
	}
	for _, p := range q.entries {
		if !p.inverse {
			out = append(out, p)
		}
	}
	return out
}

// references 判断是否有等待请求显式点名该资源。
func (q *waitQueue) references(name string) bool {
	for _, p := range q.entries {
		for _, r := range p.reqs {
			if slices.Contains(r.Names, name) {
				return true
			}
		}
	}
	return false
}
