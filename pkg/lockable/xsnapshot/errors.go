package xsnapshot

import "errors"

var (
	// ErrNotFound 快照不存在。
	ErrNotFound = errors.New("xsnapshot: snapshot not found")

	// ErrChecksumMismatch 快照内容与校验和不符。
	ErrChecksumMismatch = errors.New("xsnapshot: checksum mismatch")

	// ErrUnsupportedVersion 快照格式版本未知。
	ErrUnsupportedVersion = errors.New("xsnapshot: unsupported version")

	// ErrNilClient 未提供客户端。
	ErrNilClient = errors.New("xsnapshot: nil client")

	// ErrEmptyKey 快照键为空。
	ErrEmptyKey = errors.New("xsnapshot: empty key")

	// ErrGuardHeld 另一个进程持有 Guard。
	ErrGuardHeld = errors.New("xsnapshot: guard held by another process")

	// ErrGuardLost Guard 已过期或被抢占。
	ErrGuardLost = errors.New("xsnapshot: guard lost")

	// ErrSchedulerStarted Scheduler 已启动。
	ErrSchedulerStarted = errors.New("xsnapshot: scheduler already started")
)

// IsNotFound 判断快照是否不存在。
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
