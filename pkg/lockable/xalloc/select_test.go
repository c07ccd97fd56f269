package xalloc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xlockable/pkg/lockable/xrequire"
)

func poolAlloc(t *testing.T) *Allocator {
	t.Helper()
	a := newAlloc(t)
	// 故意乱序声明，选择结果仍按名称升序
	declare(t, a, "P3", "pool")
	declare(t, a, "P1", "pool")
	declare(t, a, "P2", "pool")
	return a
}

func TestSelect_LabelCountNameAscending(t *testing.T) {
	a := poolAlloc(t)

	got, ok := a.SelectFreeResources(label("pool", 2))
	require.True(t, ok)
	assert.Equal(t, []string{"P1", "P2"}, got)

	// 纯查询：不改变任何资源状态
	for _, r := range a.Resources() {
		assert.False(t, r.Locked, r.Name)
	}
}

func TestSelect_LabelInsufficient(t *testing.T) {
	a := poolAlloc(t)

	_, ok := a.SelectFreeResources(label("pool", 4))
	assert.False(t, ok)

	c := newCont("holder")
	granted, err := a.Acquire(context.Background(), req(c, names("P2")))
	require.NoError(t, err)
	require.True(t, granted)

	_, ok = a.SelectFreeResources(label("pool", 3))
	assert.False(t, ok)

	got, ok := a.SelectFreeResources(label("pool", 2))
	require.True(t, ok)
	assert.Equal(t, []string{"P1", "P3"}, got)
}

func TestSelect_LabelAll(t *testing.T) {
	a := poolAlloc(t)

	got, ok := a.SelectFreeResources(label("pool", 0))
	require.True(t, ok)
	assert.Equal(t, []string{"P1", "P2", "P3"}, got)

	_, err := a.Acquire(context.Background(), req(newCont("h"), names("P1")))
	require.NoError(t, err)
	_, ok = a.SelectFreeResources(label("pool", 0))
	assert.False(t, ok, "all-of-label requires every member free")

	_, ok = a.SelectFreeResources(label("missing", 0))
	assert.False(t, ok, "no matching resource at all")
}

func TestSelect_NoDoubleCounting(t *testing.T) {
	a := poolAlloc(t)

	reqs := []xrequire.Requirement{
		xrequire.NamesRequirement("P1"),
		xrequire.LabelRequirement("pool", 2),
	}
	got, ok := a.SelectFreeResources(reqs)
	require.True(t, ok)
	assert.Equal(t, []string{"P1", "P2", "P3"}, got)

	reqs = []xrequire.Requirement{
		xrequire.LabelRequirement("pool", 2),
		xrequire.LabelRequirement("pool", 2),
	}
	_, ok = a.SelectFreeResources(reqs)
	assert.False(t, ok)

	// 后面的显式名称与前面已选中的资源冲突
	reqs = []xrequire.Requirement{
		xrequire.LabelRequirement("pool", 1),
		xrequire.NamesRequirement("P1"),
	}
	_, ok = a.SelectFreeResources(reqs)
	assert.False(t, ok)
}

func TestSelect_LabelAllAfterExplicitMember(t *testing.T) {
	a := poolAlloc(t)

	reqs := []xrequire.Requirement{
		xrequire.NamesRequirement("P2"),
		xrequire.LabelRequirement("pool", 0),
	}
	got, ok := a.SelectFreeResources(reqs)
	require.True(t, ok)
	assert.Equal(t, []string{"P2", "P1", "P3"}, got)
}

func TestSelect_NamedAllOrNothing(t *testing.T) {
	a := newAlloc(t)
	declare(t, a, "A")
	declare(t, a, "B")

	_, err := a.Acquire(context.Background(), req(newCont("h"), names("B")))
	require.NoError(t, err)

	_, ok := a.SelectFreeResources(names("A", "B"))
	assert.False(t, ok)
	_, ok = a.SelectFreeResources(names("A", "unknown"))
	assert.False(t, ok)
	_, ok = a.SelectFreeResources(nil)
	assert.False(t, ok)

	got, ok := a.SelectFreeResources(names("A"))
	require.True(t, ok)
	assert.Equal(t, []string{"A"}, got)
}

func TestSelect_LabelExpression(t *testing.T) {
	a := newAlloc(t)
	declare(t, a, "gpu-1", "gpu", "broken")
	declare(t, a, "gpu-2", "gpu")
	declare(t, a, "cpu-1", "cpu")

	got, ok := a.SelectFreeResources(label("gpu && !broken", 1))
	require.True(t, ok)
	assert.Equal(t, []string{"gpu-2"}, got)

	got, ok = a.SelectFreeResources(label("gpu || cpu", 0))
	require.True(t, ok)
	assert.Equal(t, []string{"cpu-1", "gpu-1", "gpu-2"}, got)
}

func TestSelect_RetiredExcludedFromLabels(t *testing.T) {
	a := poolAlloc(t)

	_, err := a.Acquire(context.Background(), req(newCont("h"), names("P1")))
	require.NoError(t, err)
	require.True(t, a.Retire(context.Background(), "P1"))

	got, ok := a.SelectFreeResources(label("pool", 0))
	require.True(t, ok)
	assert.Equal(t, []string{"P2", "P3"}, got)
}

func TestSelectFree_WithEnv(t *testing.T) {
	a := poolAlloc(t)

	got, ok, err := a.SelectFree([]xrequire.Spec{{Resources: []string{"P${N}"}}}, xrequire.Env{"N": "3"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"P3"}, got)

	_, _, err = a.SelectFree([]xrequire.Spec{{Resources: []string{"P${N}"}}}, nil)
	assert.True(t, xrequire.IsUnresolvedVariable(err))

	// 不会懒创建
	_, ok, err = a.SelectFree([]xrequire.Spec{{Resources: []string{"Q1"}}}, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, a.GetResourcesFromNames([]string{"Q1"}))
}

func TestMustCommittable_Panics(t *testing.T) {
	a := poolAlloc(t)
	_, err := a.Acquire(context.Background(), req(newCont("h"), names("P1")))
	require.NoError(t, err)

	assert.PanicsWithValue(t, `xalloc: invariant violated: committing unknown resource "X"`, func() {
		a.mustCommittable([]string{"X"})
	})
	assert.Panics(t, func() { a.mustCommittable([]string{"P1"}) })
	assert.Panics(t, func() { a.mustCommittable([]string{"P2", "P2"}) })
}
