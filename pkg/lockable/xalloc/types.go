package xalloc

import (
	"time"

	"github.com/omeyang/xlockable/pkg/lockable/xrequire"
)

// Continuation 代表一个挂起等待资源的工作单元。
//
// 分配器只通过 ID 引用 Continuation，队列与持久化状态都不保存其他信息。
// Resume 与 Fail 总是在分配器释放内部锁之后调用，实现可以在回调中再次调用分配器；
// 回调应尽快返回，耗时工作交给自己的 goroutine。
type Continuation interface {
	// ID 返回稳定且唯一的标识。
	ID() string
	// Resume 以成功结果恢复，grant 为获得的授权。
	Resume(grant Grant)
	// Fail 以失败结果恢复。
	Fail(err error)
}

// Request 是一次加锁请求。
type Request struct {
	Continuation Continuation

	// Owner 持有者标识，空时使用 Continuation.ID()。
	Owner string

	// Requirements 已解析的需求，按声明顺序分配。
	Requirements []xrequire.Requirement

	// InversePrecedence 提升优先级：重扫时排在所有普通请求之前。
	InversePrecedence bool

	// Label 诊断用描述，空时由需求生成。
	Label string
}

// Grant 是请求与其持有资源之间的关联。值类型，可直接持久化。
type Grant struct {
	ID                string                 `json:"id"`
	Owner             string                 `json:"owner"`
	ContinuationID    string                 `json:"continuation_id"`
	Label             string                 `json:"label,omitempty"`
	Resources         []string               `json:"resources"`
	Requirements      []xrequire.Requirement `json:"requirements,omitempty"`
	InversePrecedence bool                   `json:"inverse_precedence,omitempty"`
	GrantedAt         time.Time              `json:"granted_at"`
}

// Resource 是资源的只读视图。
type Resource struct {
	Name      string
	Labels    []string
	Note      string
	Ephemeral bool // 首次引用时自动创建
	Retired   bool // 已从配置移除，空闲且无人引用后删除
	Locked    bool
	Holder    string
	GrantID   string
	LockedAt  time.Time
}

// ResourceConfig 是配置中预声明的资源。
type ResourceConfig struct {
	Name   string   `json:"name" koanf:"name"`
	Labels []string `json:"labels,omitempty" koanf:"labels"`
	Note   string   `json:"note,omitempty" koanf:"note"`
}

// PendingRequest 是等待队列项的只读视图。
type PendingRequest struct {
	ContinuationID    string                 `json:"continuation_id"`
	Owner             string                 `json:"owner"`
	Label             string                 `json:"label,omitempty"`
	Seq               uint64                 `json:"seq"`
	InversePrecedence bool                   `json:"inverse_precedence,omitempty"`
	Requirements      []xrequire.Requirement `json:"requirements"`
	EnqueuedAt        time.Time              `json:"enqueued_at"`
}

// Stats 是分配器状态摘要。
type Stats struct {
	Resources int
	Locked    int
	Pending   int
	Grants    int
	NextSeq   uint64
	Closed    bool
}

// CancelResult 描述 Cancel 命中的状态。
type CancelResult int

const (
	// CancelNotFound 请求既不在等待也没有持有授权。
	CancelNotFound CancelResult = iota
	// CancelUnqueued 请求从等待队列移除。
	CancelUnqueued
	// CancelReleased 请求持有的授权被释放。
	CancelReleased
)

func (r CancelResult) String() string {
	switch r {
	case CancelUnqueued:
		return "unqueued"
	case CancelReleased:
		return "released"
	default:
		return "not_found"
	}
}
