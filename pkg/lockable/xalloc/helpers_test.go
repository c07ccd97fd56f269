package xalloc

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omeyang/xlockable/pkg/lockable/xrequire"
)

// recordingCont 记录回调结果的 Continuation。
type recordingCont struct {
	id string

	mu     sync.Mutex
	grants []Grant
	errs   []error
	onDone func(c *recordingCont)
}

func newCont(id string) *recordingCont { return &recordingCont{id: id} }

func (c *recordingCont) ID() string { return c.id }

func (c *recordingCont) Resume(g Grant) {
	c.mu.Lock()
	c.grants = append(c.grants, g)
	fn := c.onDone
	c.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func (c *recordingCont) Fail(err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	fn := c.onDone
	c.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func (c *recordingCont) granted() (Grant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.grants) == 0 {
		return Grant{}, false
	}
	return c.grants[len(c.grants)-1], true
}

func (c *recordingCont) failures() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.errs...)
}

func (c *recordingCont) resumeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.grants) + len(c.errs)
}

// grantOrder 记录授权先后顺序。
type grantOrder struct {
	mu  sync.Mutex
	ids []string
}

func (o *grantOrder) track(c *recordingCont) *recordingCont {
	c.onDone = func(c *recordingCont) {
		o.mu.Lock()
		o.ids = append(o.ids, c.id)
		o.mu.Unlock()
	}
	return c
}

func (o *grantOrder) get() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.ids...)
}

func newAlloc(t *testing.T, opts ...Option) *Allocator {
	t.Helper()
	a, err := New(opts...)
	require.NoError(t, err)
	return a
}

func declare(t *testing.T, a *Allocator, name string, labels ...string) {
	t.Helper()
	_, err := a.Declare(context.Background(), ResourceConfig{Name: name, Labels: labels})
	require.NoError(t, err)
}

func names(ns ...string) []xrequire.Requirement {
	return []xrequire.Requirement{xrequire.NamesRequirement(ns...)}
}

func label(expr string, n int) []xrequire.Requirement {
	return []xrequire.Requirement{xrequire.LabelRequirement(expr, n)}
}

func req(c Continuation, reqs []xrequire.Requirement) Request {
	return Request{Continuation: c, Requirements: reqs}
}

// warnings 收集 WithWarnHook 上报的警告。
type warnings struct {
	mu   sync.Mutex
	errs []error
}

func (w *warnings) hook() Option {
	return WithWarnHook(func(_ context.Context, err error) {
		w.mu.Lock()
		w.errs = append(w.errs, err)
		w.mu.Unlock()
	})
}

func (w *warnings) get() []error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]error(nil), w.errs...)
}
