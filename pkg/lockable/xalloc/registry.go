package xalloc

import (
	"slices"
	"time"
)

// resource 是注册表中的资源条目。grantID 为空表示空闲。
type resource struct {
	name      string
	labels    []string // 有序去重
	note      string
	ephemeral bool
	retired   bool
	grantID   string
	owner     string
	lockedAt  time.Time
}

func (r *resource) free() bool { return r.grantID == "" }

func (r *resource) view() Resource {
	return Resource{
		Name:      r.name,
		Labels:    slices.Clone(r.labels),
		Note:      r.note,
		Ephemeral: r.ephemeral,
		Retired:   r.retired,
		Locked:    !r.free(),
		Holder:    r.owner,
		GrantID:   r.grantID,
		LockedAt:  r.lockedAt,
	}
}

// registry 是资源表。本身不加锁，只在 Allocator 临界区内使用。
type registry struct {
	byName map[string]*resource
	sorted []string // 名称升序缓存，nil 表示需要重建
}

func newRegistry() *registry {
	return &registry{byName: make(map[string]*resource)}
}

func (r *registry) get(name string) (*resource, bool) {
	res, ok := r.byName[name]
	return res, ok
}

func (r *registry) len() int { return len(r.byName) }

// ensure 不存在时创建无标签的临时资源，返回是否新建。
func (r *registry) ensure(name string) bool {
	if _, ok := r.byName[name]; ok {
		return false
	}
	r.byName[name] = &resource{name: name, ephemeral: true}
	r.sorted = nil
	return true
}

// declare 新建或更新预声明资源，保留锁状态。返回是否新建。
func (r *registry) declare(cfg ResourceConfig) bool {
	labels := normalizeLabels(cfg.Labels)
	if res, ok := r.byName[cfg.Name]; ok {
		res.labels = labels
		res.note = cfg.Note
		res.ephemeral = false
		res.retired = false
		return false
	}
	r.byName[cfg.Name] = &resource{name: cfg.Name, labels: labels, note: cfg.Note}
	r.sorted = nil
	return true
}

func (r *registry) remove(name string) {
	if _, ok := r.byName[name]; ok {
		delete(r.byName, name)
		r.sorted = nil
	}
}

// names 返回按名称升序排列的全部资源名。调用方不得修改返回值。
func (r *registry) names() []string {
	if r.sorted == nil {
		r.sorted = make([]string, 0, len(r.byName))
		for name := range r.byName {
			r.sorted = append(r.sorted, name)
		}
		slices.Sort(r.sorted)
	}
	return r.sorted
}

func (r *registry) lock(res *resource, owner, grantID string, at time.Time) {
	res.grantID = grantID
	res.owner = owner
	res.lockedAt = at
}

func (r *registry) unlock(res *resource) {
	res.grantID = ""
	res.owner = ""
	res.lockedAt = time.Time{}
}

func normalizeLabels(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}
	out := slices.Clone(labels)
	slices.Sort(out)
	return slices.Compact(out)
}
