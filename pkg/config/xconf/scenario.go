package xconf

import (
	"fmt"
	"time"

	"github.com/omeyang/xlockable/pkg/lockable/xrequire"
)

// Scenario 是 xlockctl simulate 运行的作业列表。
type Scenario struct {
	Jobs []Job `koanf:"jobs" json:"jobs"`
}

// Job 描述一个加锁作业。Resources 与 Label 可以同时给出，分别形成两条需求。
type Job struct {
	Name              string            `koanf:"name" json:"name"`
	Resources         []string          `koanf:"resources" json:"resources,omitempty"`
	Label             string            `koanf:"label" json:"label,omitempty"`
	Quantity          int               `koanf:"quantity" json:"quantity,omitempty"`
	Variable          string            `koanf:"variable" json:"variable,omitempty"`
	Env               map[string]string `koanf:"env" json:"env,omitempty"`
	InversePrecedence bool              `koanf:"inverse_precedence" json:"inverse_precedence,omitempty"`

	// Delay 启动前等待；Hold 获得锁后持有的时间；CancelAfter 启动后多久取消，0 表示不取消。
	Delay       time.Duration `koanf:"delay" json:"delay,omitempty"`
	Hold        time.Duration `koanf:"hold" json:"hold,omitempty"`
	CancelAfter time.Duration `koanf:"cancel_after" json:"cancel_after,omitempty"`
}

// Specs 返回作业的需求声明。
func (j Job) Specs() []xrequire.Spec {
	var specs []xrequire.Spec
	if len(j.Resources) > 0 {
		specs = append(specs, xrequire.Spec{Resources: j.Resources})
	}
	if j.Label != "" {
		specs = append(specs, xrequire.Spec{Label: j.Label, Quantity: j.Quantity})
	}
	return specs
}

// LoadScenario 从文件加载场景。
func LoadScenario(path string, opts ...Option) (*Scenario, error) {
	data, format, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return LoadScenarioBytes(data, format, opts...)
}

// LoadScenarioBytes 从字节数据加载场景。
func LoadScenarioBytes(data []byte, format Format, opts ...Option) (*Scenario, error) {
	var sc Scenario
	if err := decode(data, format, &sc, applyOptions(opts)); err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate 检查场景。作业名必须唯一，每个作业至少有一条需求。
func (sc *Scenario) Validate() error {
	if len(sc.Jobs) == 0 {
		return fmt.Errorf("%w: no jobs", ErrInvalidScenario)
	}
	seen := make(map[string]struct{}, len(sc.Jobs))
	for i, j := range sc.Jobs {
		if j.Name == "" {
			return fmt.Errorf("%w: jobs[%d]: empty name", ErrInvalidScenario, i)
		}
		if _, dup := seen[j.Name]; dup {
			return fmt.Errorf("%w: jobs[%d]: duplicate name %q", ErrInvalidScenario, i, j.Name)
		}
		seen[j.Name] = struct{}{}

		if j.Quantity != 0 && j.Label == "" {
			return fmt.Errorf("%w: job %q: quantity without label", ErrInvalidScenario, j.Name)
		}
		specs := j.Specs()
		if len(specs) == 0 {
			return fmt.Errorf("%w: job %q: needs resources or label", ErrInvalidScenario, j.Name)
		}
		for _, s := range specs {
			if err := s.Validate(); err != nil {
				return fmt.Errorf("%w: job %q: %w", ErrInvalidScenario, j.Name, err)
			}
		}
		if j.Delay < 0 || j.Hold < 0 || j.CancelAfter < 0 {
			return fmt.Errorf("%w: job %q: negative duration", ErrInvalidScenario, j.Name)
		}
	}
	return nil
}
