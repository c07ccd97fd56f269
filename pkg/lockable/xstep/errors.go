package xstep

import "errors"

var (
	// ErrStopped Stop 未给出原因时使用。
	ErrStopped = errors.New("xstep: execution stopped")

	// ErrNilAllocator 未提供分配器。
	ErrNilAllocator = errors.New("xstep: nil allocator")

	// ErrNilBody 未提供 body。
	ErrNilBody = errors.New("xstep: nil body")

	// ErrNoResources 步骤没有声明任何需求。
	ErrNoResources = errors.New("xstep: step declares no resources")
)
