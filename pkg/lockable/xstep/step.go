package xstep

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/omeyang/xlockable/pkg/lockable/xalloc"
	"github.com/omeyang/xlockable/pkg/lockable/xrequire"
	"github.com/omeyang/xlockable/pkg/observability/xlog"
)

// Step 描述需要持有资源才能执行的一段工作。
type Step struct {
	// Resources 需求声明，按顺序分配。
	Resources []xrequire.Spec `json:"resources" koanf:"resources"`

	// InversePrecedence 排队时优先于普通请求。
	InversePrecedence bool `json:"inverse_precedence,omitempty" koanf:"inverse_precedence"`

	// Label 进度输出中使用的描述，空时由需求生成。
	Label string `json:"label,omitempty" koanf:"label"`

	// Variable 非空时，Lease.Env 中以此为名给出逗号分隔的资源名，
	// 并以 Variable0、Variable1... 逐个给出。
	Variable string `json:"variable,omitempty" koanf:"variable"`
}

// Lease 是 body 持有的资源。
type Lease struct {
	Grant xalloc.Grant
	Env   xrequire.Env
}

// Names 返回持有的资源名。
func (l Lease) Names() []string { return l.Grant.Resources }

// Body 在持有资源期间运行。ctx 在执行被停止时取消，原因可由 context.Cause 获取。
type Body func(ctx context.Context, lease Lease) error

// 执行状态
const (
	stateWaiting = iota
	stateRunning
	stateDone
)

// Execution 是一次正在进行的步骤执行。
type Execution struct {
	id      string
	owner   string
	desc    string
	step    Step
	alloc   *xalloc.Allocator
	body    Body
	console io.Writer
	logger  xlog.Logger

	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}

	mu       sync.Mutex
	state    int
	grant    xalloc.Grant
	granted  bool
	released bool // 授权已由分配器在取消时释放
	err      error
}

var _ xalloc.Continuation = continuation{}

// continuation 把分配器回调转交给 Execution，不把 Resume/Fail 暴露在 Execution 上。
type continuation struct{ e *Execution }

func (c continuation) ID() string            { return c.e.id }
func (c continuation) Resume(g xalloc.Grant) { c.e.resume(g) }
func (c continuation) Fail(err error)        { c.e.fail(err) }

// Start 解析需求并申请资源，获得授权后在新 goroutine 中运行 body。
//
// 返回时请求已进入分配器：要么已获得授权，要么正在排队。
// ctx 只约束 Start 本身；执行的生命周期由 [Execution.Stop] 控制，body 的 ctx 继承 ctx 的值但不继承其取消。
func Start(ctx context.Context, alloc *xalloc.Allocator, step Step, body Body, opts ...Option) (*Execution, error) {
	if alloc == nil {
		return nil, ErrNilAllocator
	}
	if body == nil {
		return nil, ErrNilBody
	}
	if len(step.Resources) == 0 {
		return nil, ErrNoResources
	}
	o := options{console: io.Discard, logger: xlog.Discard()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.ids == nil {
		g, err := defaultIDs()
		if err != nil {
			return nil, err
		}
		o.ids = g
	}

	id, err := o.ids.NewStringWithRetry(ctx)
	if err != nil {
		return nil, fmt.Errorf("xstep: execution id: %w", err)
	}
	owner := o.owner
	if owner == "" {
		owner = id
	}

	reqs, created, err := alloc.Resolve(ctx, step.Resources, o.env)
	if err != nil {
		return nil, err
	}
	e := &Execution{
		id:      id,
		owner:   owner,
		step:    step,
		alloc:   alloc,
		body:    body,
		console: o.console,
		logger:  o.logger.With(xalloc.AttrRequest(id), xalloc.AttrOwner(owner)),
		done:    make(chan struct{}),
	}
	e.desc = step.Label
	if e.desc == "" {
		e.desc = xrequire.Describe(reqs)
	}
	e.ctx, e.cancel = context.WithCancelCause(context.WithoutCancel(ctx))

	for _, name := range created {
		e.printf("Resource [%s] did not exist. Created.", name)
	}
	e.printf("Trying to acquire lock on [%s]", e.desc)

	granted, err := alloc.Acquire(ctx, xalloc.Request{
		Continuation:      continuation{e},
		Owner:             owner,
		Requirements:      reqs,
		InversePrecedence: step.InversePrecedence,
		Label:             e.desc,
	})
	if err != nil {
		e.cancel(err)
		return nil, err
	}
	if !granted {
		e.printf("[%s] is locked, waiting...", e.desc)
	}
	return e, nil
}

// Lock 执行步骤并阻塞到结束。ctx 取消时以 context.Cause(ctx) 停止执行。
func Lock(ctx context.Context, alloc *xalloc.Allocator, step Step, body Body, opts ...Option) error {
	e, err := Start(ctx, alloc, step, body, opts...)
	if err != nil {
		return err
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		e.Stop(context.Cause(ctx))
		<-e.done
	}
	return e.Err()
}

// ID 返回执行 ID，也是分配器中的 Continuation ID。
func (e *Execution) ID() string { return e.id }

// Done 在执行结束时关闭。
func (e *Execution) Done() <-chan struct{} { return e.done }

// Err 返回执行结果，未结束时为 nil。
func (e *Execution) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Wait 等待执行结束并返回结果。ctx 取消只结束等待，不停止执行。
func (e *Execution) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return e.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Grant 返回获得的授权。
func (e *Execution) Grant() (xalloc.Grant, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grant, e.granted
}

// Stop 停止执行，cause 为 nil 时使用 [ErrStopped]。
//
// 等待中的申请被移出队列；运行中的 body 被取消且授权立即释放，Stop 不等待 body 返回。
// 分配器已不认识该执行时记录警告，执行仍以 cause 结束。
func (e *Execution) Stop(cause error) {
	if cause == nil {
		cause = ErrStopped
	}
	if e.alloc.Cancel(e.ctx, e.id, cause) == xalloc.CancelNotFound {
		e.fail(cause)
	}
}

// =============================================================================
// 分配器回调
// =============================================================================

func (e *Execution) resume(g xalloc.Grant) {
	e.mu.Lock()
	if e.state != stateWaiting {
		e.mu.Unlock()
		// 已结束的执行不再需要授权
		_, _ = e.alloc.Unlock(e.ctx, g)
		return
	}
	e.state = stateRunning
	e.grant = g
	e.granted = true
	e.mu.Unlock()

	e.printf("Lock acquired on [%s]", e.desc)
	e.logger.Info(e.ctx, "step body started", xalloc.AttrResources(g.Resources), xalloc.AttrGrant(g.ID))
	lease := Lease{Grant: g, Env: leaseEnv(e.step.Variable, g.Resources)}
	go e.run(lease)
}

func (e *Execution) run(lease Lease) {
	err := e.body(e.ctx, lease)
	e.finish(err)
}

// finish 在 body 返回后释放授权并结束执行。
func (e *Execution) finish(bodyErr error) {
	e.mu.Lock()
	released := e.released
	g := e.grant
	e.mu.Unlock()

	if !released {
		res := e.alloc.GetResourcesFromNames(g.Resources)
		if _, err := e.alloc.Unlock(e.ctx, g); err != nil {
			e.logger.Error(e.ctx, "release failed", xlog.Err(err))
			if bodyErr == nil {
				bodyErr = err
			}
		}
		e.printf("Lock released on resource [%s]", e.desc)
		e.logger.Debug(e.ctx, "lock released", xalloc.AttrResources(resourceNames(res)))
	}
	e.complete(bodyErr)
}

func (e *Execution) fail(err error) {
	e.mu.Lock()
	switch e.state {
	case stateWaiting:
		e.mu.Unlock()
		e.complete(err)
	case stateRunning:
		// 授权已被分配器释放，body 返回后直接以 err 结束
		e.released = true
		if e.err == nil {
			e.err = err
		}
		e.mu.Unlock()
		e.cancel(err)
		e.logger.Info(e.ctx, "running step stopped", xlog.Err(err))
	default:
		e.mu.Unlock()
	}
}

// complete 结束执行。已记录的停止原因优先于 err。
func (e *Execution) complete(err error) {
	e.mu.Lock()
	if e.state == stateDone {
		e.mu.Unlock()
		return
	}
	e.state = stateDone
	if e.err == nil {
		e.err = err
	}
	e.mu.Unlock()

	e.cancel(err)
	close(e.done)
}

func (e *Execution) printf(format string, args ...any) {
	fmt.Fprintf(e.console, format+"\n", args...)
}

func leaseEnv(variable string, names []string) xrequire.Env {
	if variable == "" {
		return nil
	}
	env := make(xrequire.Env, len(names)+1)
	env[variable] = strings.Join(names, ",")
	for i, name := range names {
		env[variable+strconv.Itoa(i)] = name
	}
	return env
}

func resourceNames(rs []xalloc.Resource) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}
