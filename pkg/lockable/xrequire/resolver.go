package xrequire

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Resolver 把 [Spec] 解析为 [Requirement]，并缓存编译后的标签表达式。
// 并发安全。
type Resolver struct {
	exprs *lru.Cache[string, *Expr]
}

var defaultResolver = mustNewResolver()

func mustNewResolver() *Resolver {
	r, err := NewResolver()
	if err != nil {
		panic(err)
	}
	return r
}

// NewResolver 创建解析器。
func NewResolver(opts ...Option) (*Resolver, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	cache, err := lru.New[string, *Expr](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("xrequire: create expression cache: %w", err)
	}
	return &Resolver{exprs: cache}, nil
}

// Compile 编译标签表达式。编译失败不缓存。
func (r *Resolver) Compile(src string) (*Expr, error) {
	src = strings.TrimSpace(src)
	if e, ok := r.exprs.Get(src); ok {
		return e, nil
	}
	e, err := parseExpr(src)
	if err != nil {
		return nil, err
	}
	r.exprs.Add(src, e)
	return e, nil
}

// Match 判断标签集合是否满足需求的标签表达式。
func (r *Resolver) Match(req Requirement, labels []string) bool {
	if !req.IsLabel() {
		return false
	}
	e, err := r.Compile(req.Label)
	if err != nil {
		return false
	}
	return e.Match(labels)
}

// Resolve 替换变量并校验声明，返回具体需求。
func (r *Resolver) Resolve(spec Spec, env Env) (Requirement, error) {
	if err := spec.Validate(); err != nil {
		return Requirement{}, err
	}

	if len(spec.Resources) > 0 {
		var names []string
		for _, raw := range spec.Resources {
			expanded, err := Expand(raw, env)
			if err != nil {
				return Requirement{}, err
			}
			names = append(names, strings.Fields(expanded)...)
		}
		if len(names) == 0 {
			return Requirement{}, fmt.Errorf("%w: resources %v expand to no names", ErrInvalidSpec, spec.Resources)
		}
		return NamesRequirement(names...), nil
	}

	label, err := Expand(spec.Label, env)
	if err != nil {
		return Requirement{}, err
	}
	label = strings.TrimSpace(label)
	if _, err := r.Compile(label); err != nil {
		return Requirement{}, err
	}
	return LabelRequirement(label, spec.Quantity), nil
}

// ResolveAll 按声明顺序解析全部需求。任一失败则整体失败。
func (r *Resolver) ResolveAll(specs []Spec, env Env) ([]Requirement, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no requirements", ErrInvalidSpec)
	}
	out := make([]Requirement, 0, len(specs))
	for i, s := range specs {
		req, err := r.Resolve(s, env)
		if err != nil {
			return nil, fmt.Errorf("requirement %d: %w", i, err)
		}
		out = append(out, req)
	}
	if name, ok := DuplicateName(out); ok {
		return nil, fmt.Errorf("%w: resource %q named by more than one requirement", ErrInvalidSpec, name)
	}
	return out, nil
}

// Resolve 使用默认解析器解析单条需求。
func Resolve(spec Spec, env Env) (Requirement, error) { return defaultResolver.Resolve(spec, env) }

// ResolveAll 使用默认解析器解析全部需求。
func ResolveAll(specs []Spec, env Env) ([]Requirement, error) {
	return defaultResolver.ResolveAll(specs, env)
}

// Compile 使用默认解析器编译标签表达式。
func Compile(src string) (*Expr, error) { return defaultResolver.Compile(src) }
