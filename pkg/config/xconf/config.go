package xconf

import (
	"fmt"
	"time"

	"github.com/omeyang/xlockable/pkg/lockable/xalloc"
	"github.com/omeyang/xlockable/pkg/lockable/xrequire"
	"github.com/omeyang/xlockable/pkg/lockable/xsnapshot"
	"github.com/omeyang/xlockable/pkg/observability/xlog"
)

// Format 定义配置文件格式。
type Format string

// 支持的配置格式。
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// 快照后端
const (
	BackendNone  = ""
	BackendRedis = "redis"
	BackendEtcd  = "etcd"
)

// 默认值
const (
	DefaultSnapshotKey      = "xlockable/snapshot"
	DefaultSnapshotSchedule = "@every 30s"
)

// Config 是 xlockable 宿主配置。
type Config struct {
	Pool     Pool     `koanf:"pool" json:"pool"`
	Log      Log      `koanf:"log" json:"log"`
	Snapshot Snapshot `koanf:"snapshot" json:"snapshot"`
}

// Pool 预声明的资源池。
type Pool struct {
	Resources []xalloc.ResourceConfig `koanf:"resources" json:"resources"`
}

// Names 返回资源名，保持声明顺序。
func (p Pool) Names() []string {
	names := make([]string, len(p.Resources))
	for i, r := range p.Resources {
		names[i] = r.Name
	}
	return names
}

// Log 日志配置。File 非空时写入文件并按大小轮转。
type Log struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
	File   string `koanf:"file" json:"file,omitempty"`
}

// Snapshot 状态持久化配置。Backend 为空时不持久化。
type Snapshot struct {
	Backend  string        `koanf:"backend" json:"backend"`
	Addrs    []string      `koanf:"addrs" json:"addrs,omitempty"`
	Key      string        `koanf:"key" json:"key"`
	Schedule string        `koanf:"schedule" json:"schedule"`
	TTL      time.Duration `koanf:"ttl" json:"ttl,omitempty"`
	// Guard 仅 Redis 后端生效：多进程共享快照时只有持有者写入
	Guard bool `koanf:"guard" json:"guard"`
}

// Enabled 报告是否配置了快照后端。
func (s Snapshot) Enabled() bool { return s.Backend != BackendNone }

// Default 返回默认配置。
func Default() *Config {
	return &Config{
		Log: Log{Level: "info", Format: "text"},
		Snapshot: Snapshot{
			Key:      DefaultSnapshotKey,
			Schedule: DefaultSnapshotSchedule,
			Guard:    true,
		},
	}
}

// Validate 检查配置。返回的错误均包装 [ErrInvalidConfig]。
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Pool.Resources))
	for i, r := range c.Pool.Resources {
		if r.Name == "" {
			return fmt.Errorf("%w: pool.resources[%d]: empty name", ErrInvalidConfig, i)
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("%w: pool.resources[%d]: duplicate name %q", ErrInvalidConfig, i, r.Name)
		}
		seen[r.Name] = struct{}{}
		for _, l := range r.Labels {
			if !xrequire.ValidLabel(l) {
				return fmt.Errorf("%w: pool.resources[%d]: bad label %q", ErrInvalidConfig, i, l)
			}
		}
	}

	if _, err := xlog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}

	s := c.Snapshot
	switch s.Backend {
	case BackendNone:
		return nil
	case BackendRedis, BackendEtcd:
	default:
		return fmt.Errorf("%w: snapshot.backend %q", ErrInvalidConfig, s.Backend)
	}
	if len(s.Addrs) == 0 {
		return fmt.Errorf("%w: snapshot.addrs required for %s", ErrInvalidConfig, s.Backend)
	}
	if s.Key == "" {
		return fmt.Errorf("%w: snapshot.key is empty", ErrInvalidConfig)
	}
	if s.TTL < 0 {
		return fmt.Errorf("%w: snapshot.ttl is negative", ErrInvalidConfig)
	}
	if s.Schedule != "" {
		if err := xsnapshot.ParseSchedule(s.Schedule); err != nil {
			return fmt.Errorf("%w: snapshot.schedule: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}
