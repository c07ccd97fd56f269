package xsnapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/omeyang/xlockable/pkg/lockable/xalloc"
)

// Version 当前快照格式版本
const Version = 1

// envelope 快照信封。checksum 为 state 原始字节的 xxhash64（16 位十六进制）。
type envelope struct {
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"`
	TakenAt  time.Time       `json:"taken_at"`
	State    json.RawMessage `json:"state"`
}

// 测试注入点
var now = time.Now

// Encode 把状态编码为快照。
func Encode(st xalloc.State) ([]byte, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("xsnapshot: encode state: %w", err)
	}
	return json.Marshal(envelope{
		Version:  Version,
		Checksum: checksum(raw),
		TakenAt:  now().UTC(),
		State:    raw,
	})
}

// Decode 校验并解码快照。
func Decode(data []byte) (xalloc.State, error) {
	st, _, err := decode(data)
	return st, err
}

// TakenAt 返回快照的生成时间，同时完成校验。
func TakenAt(data []byte) (time.Time, error) {
	_, at, err := decode(data)
	return at, err
}

func decode(data []byte) (xalloc.State, time.Time, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return xalloc.State{}, time.Time{}, fmt.Errorf("xsnapshot: decode envelope: %w", err)
	}
	if env.Version != Version {
		return xalloc.State{}, time.Time{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
	if got := checksum(env.State); got != env.Checksum {
		return xalloc.State{}, time.Time{}, fmt.Errorf("%w: want %s, got %s", ErrChecksumMismatch, env.Checksum, got)
	}
	var st xalloc.State
	if err := json.Unmarshal(env.State, &st); err != nil {
		return xalloc.State{}, time.Time{}, fmt.Errorf("xsnapshot: decode state: %w", err)
	}
	if err := st.Validate(); err != nil {
		return xalloc.State{}, time.Time{}, err
	}
	return st, env.TakenAt, nil
}

func checksum(b []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}
