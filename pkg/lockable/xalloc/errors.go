package xalloc

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed 表示分配器已关闭。Close 后新的 Acquire/Lock/QueueContext 返回此错误，
	// 仍在等待的请求以此错误失败。
	ErrClosed = errors.New("xalloc: allocator closed")

	// ErrInvalidRequest 表示请求缺少 Continuation、ID 或需求。
	ErrInvalidRequest = errors.New("xalloc: invalid request")

	// ErrDuplicateRequest 表示同一 Continuation ID 已在等待或已持有授权。
	ErrDuplicateRequest = errors.New("xalloc: duplicate request")

	// ErrInvalidResource 表示资源名或标签不合法。
	ErrInvalidResource = errors.New("xalloc: invalid resource")

	// ErrStaleGrant 表示释放的资源并不由给定持有者持有。这是调用方的逻辑错误。
	ErrStaleGrant = errors.New("xalloc: stale grant")

	// ErrRequestNotFound 表示取消的请求不在等待队列中。仅作为警告上报。
	ErrRequestNotFound = errors.New("xalloc: request not found")

	// ErrDoubleRelease 表示释放已空闲的资源。仅作为警告上报，不改变状态。
	ErrDoubleRelease = errors.New("xalloc: double release")

	// ErrCancelled 是 Cancel 未提供原因时使用的默认原因。
	ErrCancelled = errors.New("xalloc: request cancelled")

	// ErrNotEmpty 表示 Restore 的目标分配器已有授权或等待请求。
	ErrNotEmpty = errors.New("xalloc: allocator not empty")

	// ErrInvalidState 表示持久化状态自相矛盾（同一资源被两个授权持有等）。
	ErrInvalidState = errors.New("xalloc: invalid state")
)

// StaleGrantError 描述一次越权释放。
type StaleGrantError struct {
	Resource string
	Owner    string // 请求释放的持有者
	Holder   string // 实际持有者，空表示资源不存在
}

func (e *StaleGrantError) Error() string {
	return fmt.Sprintf("xalloc: stale grant: resource %q is held by %q, not %q", e.Resource, e.Holder, e.Owner)
}

// Is 使 errors.Is(err, ErrStaleGrant) 成立。
func (e *StaleGrantError) Is(target error) bool { return target == ErrStaleGrant }

// IsStaleGrant 判断是否为越权释放。
func IsStaleGrant(err error) bool { return errors.Is(err, ErrStaleGrant) }

// IsRequestNotFound 判断是否为取消未找到的警告。
func IsRequestNotFound(err error) bool { return errors.Is(err, ErrRequestNotFound) }

// IsDoubleRelease 判断是否为重复释放的警告。
func IsDoubleRelease(err error) bool { return errors.Is(err, ErrDoubleRelease) }
