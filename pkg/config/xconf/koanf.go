package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Load 从文件加载配置。格式由扩展名决定（.yaml/.yml 或 .json）。
func Load(path string, opts ...Option) (*Config, error) {
	data, format, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return LoadBytes(data, format, opts...)
}

// LoadBytes 从字节数据加载配置。空数据得到默认配置。
func LoadBytes(data []byte, format Format, opts ...Option) (*Config, error) {
	cfg := Default()
	if err := decode(data, format, cfg, applyOptions(opts)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile 读取文件并检测格式。
func readFile(path string) ([]byte, Format, error) {
	if path == "" {
		return nil, "", ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return data, format, nil
}

// decode 把 data 解析到 target。target 中已有的值作为默认值保留。
func decode(data []byte, format Format, target any, o *Options) error {
	if !isValidFormat(format) {
		return ErrUnsupportedFormat
	}
	k := koanf.New(o.Delim)
	if len(data) > 0 {
		if err := loadData(k, data, format); err != nil {
			return err
		}
	}
	if err := k.UnmarshalWithConf("", target, koanf.UnmarshalConf{Tag: o.Tag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

// =============================================================================
// 内部辅助函数
// =============================================================================

// detectFormat 根据文件扩展名检测配置格式。
func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}

func isValidFormat(format Format) bool {
	switch format {
	case FormatYAML, FormatJSON:
		return true
	default:
		return false
	}
}

// loadData 加载数据到 koanf 实例。
func loadData(k *koanf.Koanf, data []byte, format Format) error {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return ErrUnsupportedFormat
	}

	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return nil
}
