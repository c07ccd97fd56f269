package xalloc

import (
	"fmt"

	"github.com/omeyang/xlockable/pkg/lockable/xrequire"
)

// selectLocked 按声明顺序为需求列表选择一组互不重叠的空闲资源。
//
// 只读：不修改注册表，也不保留任何预留。任一需求不满足即整体失败。
// 标签候选按名称升序选取，结果可复现。
func (a *Allocator) selectLocked(reqs []xrequire.Requirement) ([]string, bool) {
	if len(reqs) == 0 {
		return nil, false
	}
	taken := make(map[string]struct{})
	var out []string

	for _, req := range reqs {
		if !req.IsLabel() {
			if len(req.Names) == 0 {
				return nil, false
			}
			for _, name := range req.Names {
				res, ok := a.reg.get(name)
				if !ok || !res.free() {
					return nil, false
				}
				if _, dup := taken[name]; dup {
					return nil, false
				}
				taken[name] = struct{}{}
				out = append(out, name)
			}
			continue
		}

		picks, ok := a.selectLabelLocked(req, taken)
		if !ok {
			return nil, false
		}
		for _, name := range picks {
			taken[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out, true
}

// selectLabelLocked 为单条标签需求选取候选，跳过本次请求已选中的资源。
// Quantity 为 0 时要求全部匹配资源空闲。已退役资源不参与标签匹配。
func (a *Allocator) selectLabelLocked(req xrequire.Requirement, taken map[string]struct{}) ([]string, bool) {
	expr, err := a.resolver.Compile(req.Label)
	if err != nil {
		return nil, false
	}

	var picks []string
	matched := false
	for _, name := range a.reg.names() {
		res, _ := a.reg.get(name)
		if res.retired || !expr.Match(res.labels) {
			continue
		}
		matched = true
		if _, ok := taken[name]; ok {
			continue
		}
		if req.Quantity == 0 {
			if !res.free() {
				return nil, false
			}
			picks = append(picks, name)
			continue
		}
		if res.free() {
			picks = append(picks, name)
			if len(picks) == req.Quantity {
				return picks, true
			}
		}
	}
	if req.Quantity == 0 {
		return picks, matched
	}
	return nil, false
}

// allFreeLocked 判断名称列表是否全部存在、空闲且不重复。
func (a *Allocator) allFreeLocked(names []string) bool {
	if len(names) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		res, ok := a.reg.get(name)
		if !ok || !res.free() {
			return false
		}
		if _, dup := seen[name]; dup {
			return false
		}
		seen[name] = struct{}{}
	}
	return true
}

// mustCommittable 在临界区内校验待提交的资源集合，违反即为程序错误。
func (a *Allocator) mustCommittable(names []string) []*resource {
	seen := make(map[string]struct{}, len(names))
	out := make([]*resource, 0, len(names))
	for _, name := range names {
		res, ok := a.reg.get(name)
		if !ok {
			panic(fmt.Sprintf("xalloc: invariant violated: committing unknown resource %q", name))
		}
		if !res.free() {
			panic(fmt.Sprintf("xalloc: invariant violated: resource %q already held by grant %s", name, res.grantID))
		}
		if _, dup := seen[name]; dup {
			panic(fmt.Sprintf("xalloc: invariant violated: resource %q selected twice", name))
		}
		seen[name] = struct{}{}
		out = append(out, res)
	}
	return out
}
