package xconf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xlockable/pkg/lockable/xalloc"
)

func newAllocator(t *testing.T) *xalloc.Allocator {
	t.Helper()
	a, err := xalloc.New()
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func resourceNames(a *xalloc.Allocator) []string {
	var names []string
	for _, r := range a.Resources() {
		names = append(names, r.Name)
	}
	return names
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	a := newAllocator(t)

	// 懒注册的临时资源不受配置影响
	_, err := a.CreateResource(ctx, "scratch")
	require.NoError(t, err)

	res, err := Apply(ctx, a, Pool{Resources: []xalloc.ResourceConfig{
		{Name: "a", Labels: []string{"x"}},
		{Name: "b"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.Created)
	assert.Empty(t, res.Retired)

	res, err = Apply(ctx, a, Pool{Resources: []xalloc.ResourceConfig{
		{Name: "a", Labels: []string{"y"}},
		{Name: "c"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, res.Created)
	assert.Equal(t, []string{"a"}, res.Updated)
	assert.Equal(t, []string{"b"}, res.Retired)

	assert.Equal(t, []string{"a", "c", "scratch"}, resourceNames(a))
	got := a.GetResourcesFromNames([]string{"a"})
	require.Len(t, got, 1)
	assert.Equal(t, []string{"y"}, got[0].Labels)
}

func TestApplyCollectsErrors(t *testing.T) {
	ctx := context.Background()
	a := newAllocator(t)

	res, err := Apply(ctx, a, Pool{Resources: []xalloc.ResourceConfig{
		{Name: "bad name"},
		{Name: "ok"},
	}})
	assert.ErrorIs(t, err, xalloc.ErrInvalidResource)
	assert.Equal(t, []string{"ok"}, res.Created)
}

func TestApplyOnChange(t *testing.T) {
	ctx := context.Background()
	a := newAllocator(t)
	fn := ApplyOnChange(ctx, a, nil)

	fn(nil, assert.AnError)
	assert.Empty(t, a.Resources())

	fn(&Config{Pool: Pool{Resources: []xalloc.ResourceConfig{{Name: "p1"}}}}, nil)
	assert.Equal(t, []string{"p1"}, resourceNames(a))
}
