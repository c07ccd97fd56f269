package xid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/sonyflake/v2"
)

var (
	// ErrInvalidConfig 配置无效或机器 ID 获取失败。
	ErrInvalidConfig = errors.New("xid: invalid config")

	// ErrInvalidID ID 字符串无法解析或不是正数。
	ErrInvalidID = errors.New("xid: invalid id")

	// ErrOverTimeLimit 时间分量溢出，不可恢复。
	ErrOverTimeLimit = errors.New("xid: time component overflow")

	// ErrWaitTimeout 重试等待超时。
	ErrWaitTimeout = errors.New("xid: wait timeout")
)

const (
	// DefaultMaxWait 默认最长等待时间
	DefaultMaxWait = 500 * time.Millisecond
	// DefaultRetryInterval 默认重试间隔
	DefaultRetryInterval = 10 * time.Millisecond
)

// Sonyflake v2 的固定位布局
const (
	machineBits  = 16
	sequenceBits = 8
	machineMask  = (1 << machineBits) - 1
	sequenceMask = (1 << sequenceBits) - 1
)

// Components 是 ID 的组成部分。
type Components struct {
	Time     int64 // 自 Sonyflake epoch 起的 10ms 单位
	Sequence int64
	Machine  int64
}

// Generator 并发安全的 ID 生成器。
type Generator struct {
	next          func() (int64, error)
	prefix        string
	maxWait       time.Duration
	retryInterval time.Duration
}

// NewGenerator 创建生成器。
func NewGenerator(opts ...Option) (*Generator, error) {
	o := options{
		machineID:     DefaultMachineID,
		maxWait:       DefaultMaxWait,
		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.maxWait < 0 || o.retryInterval < 0 {
		return nil, fmt.Errorf("%w: negative wait settings", ErrInvalidConfig)
	}
	if strings.ContainsAny(o.prefix, " \t\r\n") {
		return nil, fmt.Errorf("%w: prefix %q contains whitespace", ErrInvalidConfig, o.prefix)
	}

	machineID := o.machineID
	sf, err := sonyflake.New(sonyflake.Settings{
		MachineID: func() (int, error) {
			id, err := machineID()
			return int(id), err
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Generator{
		next:          sf.NextID,
		prefix:        o.prefix,
		maxWait:       o.maxWait,
		retryInterval: o.retryInterval,
	}, nil
}

// New 生成数值 ID。
func (g *Generator) New() (int64, error) {
	id, err := g.next()
	if err != nil {
		if errors.Is(err, sonyflake.ErrOverTimeLimit) {
			return 0, fmt.Errorf("%w: %w", ErrOverTimeLimit, err)
		}
		return 0, err
	}
	return id, nil
}

// NewString 生成字符串 ID。
func (g *Generator) NewString() (string, error) {
	id, err := g.New()
	if err != nil {
		return "", err
	}
	return g.format(id), nil
}

// NewStringWithRetry 生成字符串 ID，可重试的错误在 maxWait 内按间隔重试。
// 时间分量溢出不重试。
func (g *Generator) NewStringWithRetry(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := g.New()
	if err == nil {
		return g.format(id), nil
	}

	deadline := time.Now().Add(g.maxWait)
	timer := time.NewTimer(0)
	<-timer.C
	defer timer.Stop()
	for {
		if errors.Is(err, ErrOverTimeLimit) {
			return "", err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", fmt.Errorf("%w: %w", ErrWaitTimeout, err)
		}
		timer.Reset(min(g.retryInterval, remaining))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
		if id, err = g.New(); err == nil {
			return g.format(id), nil
		}
	}
}

func (g *Generator) format(id int64) string {
	s := strconv.FormatInt(id, 36)
	if g.prefix == "" {
		return s
	}
	return g.prefix + "-" + s
}

// Parse 解析 NewString 的输出，前缀可有可无。
func (g *Generator) Parse(s string) (int64, error) {
	if g.prefix != "" {
		s = strings.TrimPrefix(s, g.prefix+"-")
	}
	return Parse(s)
}

// Parse 解析不带前缀的 base36 ID。
func Parse(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 36, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidID, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: %d is not positive", ErrInvalidID, id)
	}
	return id, nil
}

// Decompose 按固定位布局分解 ID。
func Decompose(id int64) (Components, error) {
	if id <= 0 {
		return Components{}, fmt.Errorf("%w: %d is not positive", ErrInvalidID, id)
	}
	return Components{
		Machine:  id & machineMask,
		Sequence: (id >> machineBits) & sequenceMask,
		Time:     id >> (machineBits + sequenceBits),
	}, nil
}

// =============================================================================
// 默认生成器
// =============================================================================

var defaultGen = sync.OnceValues(func() (*Generator, error) {
	return NewGenerator()
})

// NewString 使用默认生成器生成字符串 ID。
func NewString() (string, error) {
	g, err := defaultGen()
	if err != nil {
		return "", err
	}
	return g.NewString()
}
