package xrequire

import (
	"fmt"
	"strings"
)

// Spec 是一次请求中的单条资源需求声明，可能包含未替换的变量。
type Spec struct {
	// Resources 显式资源名。每项可以包含多个空白分隔的名称。
	Resources []string `json:"resources,omitempty" koanf:"resources"`

	// Label 标签表达式。与 Resources 互斥。
	Label string `json:"label,omitempty" koanf:"label"`

	// Quantity 需要匹配标签的资源数量，0 表示全部匹配资源。
	Quantity int `json:"quantity,omitempty" koanf:"quantity"`
}

// Validate 检查声明的结构是否合法，不做变量替换。
func (s Spec) Validate() error {
	hasNames := len(s.Resources) > 0
	hasLabel := strings.TrimSpace(s.Label) != ""
	switch {
	case hasNames && hasLabel:
		return fmt.Errorf("%w: resources and label are mutually exclusive", ErrInvalidSpec)
	case !hasNames && !hasLabel:
		return fmt.Errorf("%w: either resources or label is required", ErrInvalidSpec)
	case s.Quantity < 0:
		return fmt.Errorf("%w: negative quantity %d", ErrInvalidSpec, s.Quantity)
	case hasNames && s.Quantity != 0:
		return fmt.Errorf("%w: quantity only applies to label requirements", ErrInvalidSpec)
	}
	return nil
}

func (s Spec) String() string {
	if len(s.Resources) > 0 {
		return "[" + strings.Join(s.Resources, ", ") + "]"
	}
	return labelString(s.Label, s.Quantity)
}

// Requirement 是解析后的具体需求：固定名称集合，或标签 + 数量。
// 创建后不再修改，可安全持久化。
type Requirement struct {
	Names    []string `json:"names,omitempty"`
	Label    string   `json:"label,omitempty"`
	Quantity int      `json:"quantity,omitempty"`
}

// NamesRequirement 构造显式名称需求。名称去重，保持原有顺序。
func NamesRequirement(names ...string) Requirement {
	return Requirement{Names: dedupe(names)}
}

// DuplicateName 返回第一个被多条需求显式点名的资源。
func DuplicateName(reqs []Requirement) (string, bool) {
	seen := make(map[string]struct{})
	for _, r := range reqs {
		for _, name := range r.Names {
			if _, ok := seen[name]; ok {
				return name, true
			}
			seen[name] = struct{}{}
		}
	}
	return "", false
}

// LabelRequirement 构造标签需求，不校验表达式。
func LabelRequirement(label string, quantity int) Requirement {
	return Requirement{Label: label, Quantity: quantity}
}

// IsLabel 判断是否为标签需求。
func (r Requirement) IsLabel() bool { return r.Label != "" }

// Matches 使用默认解析器的表达式缓存判断标签集合是否满足本需求。
// 名称需求与非法表达式总是返回 false。
func (r Requirement) Matches(labels []string) bool {
	return defaultResolver.Match(r, labels)
}

func (r Requirement) String() string {
	if r.IsLabel() {
		return labelString(r.Label, r.Quantity)
	}
	return "[" + strings.Join(r.Names, ", ") + "]"
}

func labelString(label string, quantity int) string {
	if quantity == 0 {
		return "label:" + label + " (all)"
	}
	return fmt.Sprintf("label:%s x%d", label, quantity)
}

// Describe 返回一组需求的展示文本，用于等待提示和日志。
func Describe(reqs []Requirement) string {
	parts := make([]string, len(reqs))
	for i, r := range reqs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

func dedupe(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
