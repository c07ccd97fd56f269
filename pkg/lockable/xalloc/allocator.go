package xalloc

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xlockable/pkg/lockable/xrequire"
	"github.com/omeyang/xlockable/pkg/observability/xlog"
)

// Allocator 是多资源原子分配器。
//
// 注册表、等待队列与授权表是仅有的共享可变状态，全部由同一把互斥锁保护：
// 选择与提交、释放与重扫都在一个临界区内完成，其他请求无法观察到中间状态。
// Continuation 回调在锁外执行。
type Allocator struct {
	mu          sync.Mutex
	reg         *registry
	queue       *waitQueue
	grants      map[string]*held  // grant ID → 授权
	grantByCont map[string]string // continuation ID → grant ID
	nextSeq     uint64
	closed      bool

	logger   xlog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	now      func() time.Time
	dispatch func(func())
	resolver *xrequire.Resolver
	onWarn   func(context.Context, error)
}

// held 是仍然有效的授权。从持久化状态恢复的授权没有存活的 Continuation。
type held struct {
	Grant
	cont Continuation
}

// resumption 是一次待执行的 Continuation 回调。
type resumption struct {
	cont  Continuation
	grant Grant
	err   error
}

// New 创建分配器。
func New(opts ...Option) (*Allocator, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.resolver == nil {
		r, err := xrequire.NewResolver()
		if err != nil {
			return nil, err
		}
		o.resolver = r
	}
	return &Allocator{
		reg:         newRegistry(),
		queue:       newWaitQueue(),
		grants:      make(map[string]*held),
		grantByCont: make(map[string]string),
		nextSeq:     1,
		logger:      o.logger.With(xlog.Component("xalloc")),
		metrics:     o.metrics,
		tracer:      getTracer(o.tracerProvider),
		now:         o.now,
		dispatch:    o.dispatch,
		resolver:    o.resolver,
		onWarn:      o.onWarn,
	}, nil
}

// =============================================================================
// 资源注册
// =============================================================================

func validName(name string) error {
	if name == "" || strings.ContainsFunc(name, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }) {
		return fmt.Errorf("%w: bad name %q", ErrInvalidResource, name)
	}
	return nil
}

// CreateResource 懒注册资源。资源已存在时返回 false。
func (a *Allocator) CreateResource(ctx context.Context, name string) (bool, error) {
	if err := validName(name); err != nil {
		return false, err
	}
	a.mu.Lock()
	created := a.reg.ensure(name)
	var rs []resumption
	if created {
		rs = a.requeueLocked(ctx)
	}
	a.mu.Unlock()

	if created {
		a.logger.Info(ctx, "resource did not exist, created", AttrResource(name))
	}
	a.resumeAll(rs)
	return created, nil
}

// Declare 预声明或更新资源，保留其锁状态。新的容量可能满足等待请求，因此会触发重扫。
func (a *Allocator) Declare(ctx context.Context, cfg ResourceConfig) (bool, error) {
	if err := validName(cfg.Name); err != nil {
		return false, err
	}
	for _, l := range cfg.Labels {
		if !xrequire.ValidLabel(l) {
			return false, fmt.Errorf("%w: bad label %q on %q", ErrInvalidResource, l, cfg.Name)
		}
	}

	a.mu.Lock()
	created := a.reg.declare(cfg)
	rs := a.requeueLocked(ctx)
	a.mu.Unlock()

	a.logger.Debug(ctx, "resource declared", AttrResource(cfg.Name),
		slog.Any("labels", cfg.Labels), slog.Bool("created", created))
	a.resumeAll(rs)
	return created, nil
}

// Retire 标记资源退役。空闲且没有等待请求点名时立即删除，否则在下次释放后删除。
// 资源不存在时返回 false。
func (a *Allocator) Retire(ctx context.Context, name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	res, ok := a.reg.get(name)
	if !ok {
		return false
	}
	res.retired = true
	if res.free() && !a.queue.references(name) {
		a.reg.remove(name)
		a.logger.Info(ctx, "resource removed", AttrResource(name))
	} else {
		a.logger.Info(ctx, "resource retired, removal deferred", AttrResource(name))
	}
	return true
}

// Resolve 解析需求声明，并懒注册显式点名但尚不存在的资源。
// 返回解析结果与新建的资源名。解析失败时不创建任何资源。
func (a *Allocator) Resolve(ctx context.Context, specs []xrequire.Spec, env xrequire.Env) ([]xrequire.Requirement, []string, error) {
	reqs, err := a.resolver.ResolveAll(specs, env)
	if err != nil {
		return nil, nil, err
	}

	var created []string
	a.mu.Lock()
	for _, req := range reqs {
		for _, name := range req.Names {
			if a.reg.ensure(name) {
				created = append(created, name)
			}
		}
	}
	var rs []resumption
	if len(created) > 0 {
		rs = a.requeueLocked(ctx)
	}
	a.mu.Unlock()

	for _, name := range created {
		a.logger.Info(ctx, "resource did not exist, created", AttrResource(name))
	}
	a.resumeAll(rs)
	return reqs, created, nil
}

// =============================================================================
// 查询
// =============================================================================

// SelectFreeResources 返回当前能满足需求的资源集合，不修改任何状态。
func (a *Allocator) SelectFreeResources(reqs []xrequire.Requirement) ([]string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selectLocked(reqs)
}

// SelectFree 解析需求后查询可用资源。不存在的显式资源视为不可用，不会被创建。
func (a *Allocator) SelectFree(specs []xrequire.Spec, env xrequire.Env) ([]string, bool, error) {
	reqs, err := a.resolver.ResolveAll(specs, env)
	if err != nil {
		return nil, false, err
	}
	names, ok := a.SelectFreeResources(reqs)
	return names, ok, nil
}

// GetResourcesFromNames 按名称查找资源，未知名称被跳过，顺序与输入一致。
func (a *Allocator) GetResourcesFromNames(names []string) []Resource {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Resource, 0, len(names))
	for _, name := range names {
		if res, ok := a.reg.get(name); ok {
			out = append(out, res.view())
		}
	}
	return out
}

// Resources 返回按名称升序排列的全部资源。
func (a *Allocator) Resources() []Resource {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := a.reg.names()
	out := make([]Resource, 0, len(names))
	for _, name := range names {
		res, _ := a.reg.get(name)
		out = append(out, res.view())
	}
	return out
}

// Pending 按重扫顺序返回等待请求。
func (a *Allocator) Pending() []PendingRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	order := a.queue.scanOrder()
	out := make([]PendingRequest, 0, len(order))
	for _, p := range order {
		out = append(out, p.view())
	}
	return out
}

// Grants 按授权时间返回全部有效授权。
func (a *Allocator) Grants() []Grant {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.grantsLocked()
}

func (a *Allocator) grantsLocked() []Grant {
	out := make([]Grant, 0, len(a.grants))
	for _, h := range a.grants {
		out = append(out, h.clone())
	}
	slices.SortFunc(out, func(x, y Grant) int {
		if c := x.GrantedAt.Compare(y.GrantedAt); c != 0 {
			return c
		}
		return strings.Compare(x.ID, y.ID)
	})
	return out
}

// Stats 返回状态摘要。
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	locked := 0
	for _, h := range a.grants {
		locked += len(h.Resources)
	}
	return Stats{
		Resources: a.reg.len(),
		Locked:    locked,
		Pending:   a.queue.len(),
		Grants:    len(a.grants),
		NextSeq:   a.nextSeq,
		Closed:    a.closed,
	}
}

func (g Grant) clone() Grant {
	g.Resources = slices.Clone(g.Resources)
	g.Requirements = slices.Clone(g.Requirements)
	return g
}

// =============================================================================
// 加锁
// =============================================================================

func (a *Allocator) newPending(req Request) (*pending, error) {
	if req.Continuation == nil {
		return nil, fmt.Errorf("%w: nil continuation", ErrInvalidRequest)
	}
	id := req.Continuation.ID()
	if id == "" {
		return nil, fmt.Errorf("%w: empty continuation id", ErrInvalidRequest)
	}
	if len(req.Requirements) == 0 {
		return nil, fmt.Errorf("%w: no requirements", ErrInvalidRequest)
	}
	// 同一资源被两条需求点名时永远无法满足
	if name, ok := xrequire.DuplicateName(req.Requirements); ok {
		return nil, fmt.Errorf("%w: resource %q named more than once", ErrInvalidRequest, name)
	}
	owner := req.Owner
	if owner == "" {
		owner = id
	}
	label := req.Label
	if label == "" {
		label = xrequire.Describe(req.Requirements)
	}
	return &pending{
		cont:    req.Continuation,
		id:      id,
		owner:   owner,
		label:   label,
		reqs:    slices.Clone(req.Requirements),
		inverse: req.InversePrecedence,
	}, nil
}

// admitLocked 分配到达序号前的准入检查。
func (a *Allocator) admitLocked(p *pending) error {
	if a.closed {
		return ErrClosed
	}
	if a.queue.has(p.id) {
		return fmt.Errorf("%w: %s is already waiting", ErrDuplicateRequest, p.id)
	}
	if _, ok := a.grantByCont[p.id]; ok {
		return fmt.Errorf("%w: %s already holds a grant", ErrDuplicateRequest, p.id)
	}
	p.seq = a.nextSeq
	a.nextSeq++
	p.enqueuedAt = a.now()
	return nil
}

// Acquire 原子地选择并提交资源；不满足时把请求放入等待队列。
//
// 返回是否立即获得授权。立即授权时 Continuation.Resume 在返回前被调度。
// 排队的请求在之后的释放重扫中获得授权，或被 Cancel/UnqueueContext 移除。
func (a *Allocator) Acquire(ctx context.Context, req Request) (bool, error) {
	p, err := a.newPending(req)
	if err != nil {
		a.metrics.recordAcquire(ctx, resultFailed)
		return false, err
	}
	ctx, span := startSpan(ctx, a.tracer, spanNameAcquire, requestAttrs(p.id, p.owner)...)
	defer span.End()

	a.mu.Lock()
	if err := a.admitLocked(p); err != nil {
		a.mu.Unlock()
		a.metrics.recordAcquire(ctx, resultFailed)
		setSpanError(span, err)
		return false, err
	}
	a.logger.Debug(ctx, "trying to acquire lock", AttrRequest(p.id), AttrLabel(p.label))

	var rs []resumption
	names, granted := a.selectLocked(p.reqs)
	if granted {
		rs = append(rs, resumption{cont: p.cont, grant: a.commitLocked(ctx, names, p)})
	} else {
		a.enqueueLocked(ctx, p)
	}
	a.mu.Unlock()

	span.SetAttributes(attribute.Bool(attrGranted, granted))
	if granted {
		a.metrics.recordAcquire(ctx, resultGranted)
	} else {
		a.metrics.recordAcquire(ctx, resultQueued)
	}
	a.resumeAll(rs)
	return granted, nil
}

// Lock 尝试把给定资源提交给请求，不排队。
//
// 资源必须全部存在且空闲；在临界区内重新校验，选择与提交之间的变化会使其返回 false。
// 成功时调度 Continuation.Resume。
func (a *Allocator) Lock(ctx context.Context, names []string, req Request) (bool, error) {
	p, err := a.newPending(req)
	if err != nil {
		return false, err
	}
	ctx, span := startSpan(ctx, a.tracer, spanNameLock, requestAttrs(p.id, p.owner)...)
	defer span.End()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		setSpanError(span, ErrClosed)
		return false, ErrClosed
	}
	if !a.allFreeLocked(names) {
		a.mu.Unlock()
		span.SetAttributes(attribute.Bool(attrGranted, false))
		return false, nil
	}
	if err := a.admitLocked(p); err != nil {
		a.mu.Unlock()
		setSpanError(span, err)
		return false, err
	}
	g := a.commitLocked(ctx, names, p)
	a.mu.Unlock()

	span.SetAttributes(attribute.Bool(attrGranted, true))
	a.metrics.recordAcquire(ctx, resultGranted)
	a.resumeAll([]resumption{{cont: p.cont, grant: g}})
	return true, nil
}

// QueueContext 把请求放入等待队列。
//
// 入队后立即执行一次重扫：若在调用方上一次选择失败之后已有资源释放，
// 请求会在此处直接获得授权，不会无限等待已经空闲的资源。
func (a *Allocator) QueueContext(ctx context.Context, req Request) error {
	p, err := a.newPending(req)
	if err != nil {
		return err
	}
	a.mu.Lock()
	if err := a.admitLocked(p); err != nil {
		a.mu.Unlock()
		return err
	}
	a.enqueueLocked(ctx, p)
	rs := a.requeueLocked(ctx)
	a.mu.Unlock()

	a.metrics.recordAcquire(ctx, resultQueued)
	a.resumeAll(rs)
	return nil
}

// commitLocked 把资源标记为由请求持有并登记授权。
func (a *Allocator) commitLocked(ctx context.Context, names []string, p *pending) Grant {
	resources := a.mustCommittable(names)
	now := a.now()
	h := &held{
		Grant: Grant{
			ID:                uuid.NewString(),
			Owner:             p.owner,
			ContinuationID:    p.id,
			Label:             p.label,
			Resources:         slices.Clone(names),
			Requirements:      p.reqs,
			InversePrecedence: p.inverse,
			GrantedAt:         now,
		},
		cont: p.cont,
	}
	for _, res := range resources {
		a.reg.lock(res, h.Owner, h.ID, now)
	}
	a.grants[h.ID] = h
	a.grantByCont[p.id] = h.ID
	a.metrics.addLocked(ctx, len(names))
	a.logger.Info(ctx, "lock acquired", AttrRequest(p.id), AttrOwner(p.owner),
		AttrResources(names), AttrGrant(h.ID))
	return h.clone()
}

func (a *Allocator) enqueueLocked(ctx context.Context, p *pending) {
	a.queue.push(p)
	a.metrics.addQueueDepth(ctx, 1)
	a.logger.Info(ctx, "is locked, waiting...", AttrLabel(p.label), AttrRequest(p.id), AttrSeq(p.seq),
		slog.Bool("inverse_precedence", p.inverse), slog.Int("queue_depth", a.queue.len()))
}

// =============================================================================
// 释放与重扫
// =============================================================================

// Unlock 释放授权并重扫等待队列，返回被释放的资源名。
//
// 授权已释放时记录 DoubleRelease 警告并返回 (nil, nil)。
// grant.Owner 或 grant.Resources 与实际持有记录不一致时返回 [StaleGrantError]，不释放任何资源。
func (a *Allocator) Unlock(ctx context.Context, grant Grant) ([]string, error) {
	ctx, span := startSpan(ctx, a.tracer, spanNameUnlock,
		attribute.String(attrOwner, grant.Owner), attribute.StringSlice(attrResources, grant.Resources))
	defer span.End()

	a.mu.Lock()
	h, ok := a.grants[grant.ID]
	if !ok {
		a.mu.Unlock()
		a.metrics.recordRelease(ctx, resultDoubleRelease, len(grant.Resources))
		a.warn(ctx, ErrDoubleRelease, "grant already released", AttrGrant(grant.ID), AttrResources(grant.Resources))
		return nil, nil
	}
	if err := a.checkGrantLocked(h, grant); err != nil {
		a.mu.Unlock()
		a.metrics.recordRelease(ctx, resultStale, len(grant.Resources))
		a.logger.Error(ctx, "release rejected", AttrGrant(grant.ID), xlog.Err(err))
		setSpanError(span, err)
		return nil, err
	}
	freed := a.releaseLocked(ctx, h)
	rs := a.requeueLocked(ctx)
	a.mu.Unlock()

	a.resumeAll(rs)
	return freed, nil
}

// checkGrantLocked 校验调用方提供的授权与持有记录一致。
func (a *Allocator) checkGrantLocked(h *held, grant Grant) error {
	if grant.Owner != "" && grant.Owner != h.Owner {
		return &StaleGrantError{Resource: firstOr(h.Resources), Owner: grant.Owner, Holder: h.Owner}
	}
	for _, name := range grant.Resources {
		if !slices.Contains(h.Resources, name) {
			holder := ""
			if res, ok := a.reg.get(name); ok {
				holder = res.owner
			}
			return &StaleGrantError{Resource: name, Owner: h.Owner, Holder: holder}
		}
	}
	for _, name := range h.Resources {
		if res, ok := a.reg.get(name); !ok || res.grantID != h.ID {
			panic(fmt.Sprintf("xalloc: invariant violated: grant %s lost resource %q", h.ID, name))
		}
	}
	return nil
}

func firstOr(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// UnlockNames 在只持久化了资源名时释放持有者的授权。
//
// 触及 names 的该持有者的授权整体释放，不会只释放一部分。
// 已空闲的名称记录 DoubleRelease 警告；任一名称被其他持有者占用时返回
// [StaleGrantError] 且不释放任何资源；未知名称被忽略。
func (a *Allocator) UnlockNames(ctx context.Context, names []string, owner string) ([]string, error) {
	ctx, span := startSpan(ctx, a.tracer, spanNameUnlock,
		attribute.String(attrOwner, owner), attribute.StringSlice(attrResources, names))
	defer span.End()

	a.mu.Lock()
	var grantIDs, doubles, unknown []string
	for _, name := range names {
		res, ok := a.reg.get(name)
		switch {
		case !ok:
			unknown = append(unknown, name)
		case res.free():
			doubles = append(doubles, name)
		case res.owner != owner:
			a.mu.Unlock()
			err := &StaleGrantError{Resource: name, Owner: owner, Holder: res.owner}
			a.metrics.recordRelease(ctx, resultStale, len(names))
			a.logger.Error(ctx, "release rejected", AttrOwner(owner), xlog.Err(err))
			setSpanError(span, err)
			return nil, err
		case !slices.Contains(grantIDs, res.grantID):
			grantIDs = append(grantIDs, res.grantID)
		}
	}
	var freed []string
	for _, id := range grantIDs {
		freed = append(freed, a.releaseLocked(ctx, a.grants[id])...)
	}
	var rs []resumption
	if len(grantIDs) > 0 {
		rs = a.requeueLocked(ctx)
	}
	a.mu.Unlock()

	if len(unknown) > 0 {
		a.logger.Warn(ctx, "release ignored unknown resources", AttrOwner(owner), AttrResources(unknown))
	}
	if len(doubles) > 0 {
		a.metrics.recordRelease(ctx, resultDoubleRelease, len(doubles))
		a.warn(ctx, ErrDoubleRelease, "resources already free", AttrOwner(owner), AttrResources(doubles))
	}
	a.resumeAll(rs)
	return freed, nil
}

// releaseLocked 释放授权的全部资源。退役且无人点名的资源随之删除。
func (a *Allocator) releaseLocked(ctx context.Context, h *held) []string {
	for _, name := range h.Resources {
		res, ok := a.reg.get(name)
		if !ok {
			continue
		}
		a.reg.unlock(res)
		if res.retired && !a.queue.references(name) {
			a.reg.remove(name)
		}
	}
	delete(a.grants, h.ID)
	delete(a.grantByCont, h.ContinuationID)
	a.metrics.addLocked(ctx, -len(h.Resources))
	a.metrics.recordRelease(ctx, resultReleased, len(h.Resources))
	a.logger.Info(ctx, "lock released", AttrRequest(h.ContinuationID), AttrOwner(h.Owner),
		AttrResources(h.Resources), AttrGrant(h.ID))
	return slices.Clone(h.Resources)
}

// sweepRetiredLocked 在请求离开队列后删除它点名过的、已退役且空闲的资源。
func (a *Allocator) sweepRetiredLocked(ctx context.Context, p *pending) {
	for _, r := range p.reqs {
		for _, name := range r.Names {
			res, ok := a.reg.get(name)
			if !ok || !res.retired || !res.free() || a.queue.references(name) {
				continue
			}
			a.reg.remove(name)
			a.logger.Info(ctx, "resource removed", AttrResource(name))
		}
	}
}

// requeueLocked 按优先级与到达顺序重试等待请求，直到一整轮没有新的授权。
//
// 无法满足的请求被跳过，不阻塞后面可满足的请求。
func (a *Allocator) requeueLocked(ctx context.Context) []resumption {
	if a.queue.len() == 0 {
		return nil
	}
	ctx, span := startSpan(ctx, a.tracer, spanNameRequeue)
	defer span.End()

	var rs []resumption
	passes := 0
	for {
		passes++
		granted := 0
		for _, p := range a.queue.scanOrder() {
			names, ok := a.selectLocked(p.reqs)
			if !ok {
				continue
			}
			a.queue.remove(p.id)
			a.metrics.addQueueDepth(ctx, -1)
			g := a.commitLocked(ctx, names, p)
			a.metrics.recordGrantWait(ctx, g.GrantedAt.Sub(p.enqueuedAt))
			rs = append(rs, resumption{cont: p.cont, grant: g})
			granted++
		}
		if granted == 0 || a.queue.len() == 0 {
			break
		}
	}
	span.SetAttributes(attribute.Int(attrPasses, passes), attribute.Int(attrGrantCount, len(rs)))
	a.metrics.recordScan(ctx, passes)
	return rs
}

// =============================================================================
// 取消
// =============================================================================

// UnqueueContext 从等待队列移除请求，返回是否找到。
//
// 未找到记录 RequestNotFound 警告：取消可能与授权竞争，这是预期情况。
// 不会回调 Continuation，由调用方决定如何结束它。
func (a *Allocator) UnqueueContext(ctx context.Context, id string) bool {
	a.mu.Lock()
	p, ok := a.queue.remove(id)
	if ok {
		a.sweepRetiredLocked(ctx, p)
	}
	a.mu.Unlock()

	if !ok {
		a.metrics.recordCancel(ctx, CancelNotFound)
		a.warn(ctx, ErrRequestNotFound, "cannot remove request from waiting list", AttrRequest(id))
		return false
	}
	a.metrics.addQueueDepth(ctx, -1)
	a.metrics.recordCancel(ctx, CancelUnqueued)
	a.logger.Info(ctx, "request unqueued", AttrRequest(id))
	return true
}

// Cancel 取消请求并以 cause 结束其 Continuation。
//
// 等待中的请求被移出队列；已持有授权的请求释放授权并重扫队列。
// 两者都不是时记录 RequestNotFound 警告，返回 CancelNotFound。cause 为 nil 时使用 [ErrCancelled]。
func (a *Allocator) Cancel(ctx context.Context, id string, cause error) CancelResult {
	if cause == nil {
		cause = ErrCancelled
	}
	ctx, span := startSpan(ctx, a.tracer, spanNameCancel, attribute.String(attrRequest, id))
	defer span.End()

	a.mu.Lock()
	if p, ok := a.queue.remove(id); ok {
		a.sweepRetiredLocked(ctx, p)
		a.mu.Unlock()
		a.metrics.addQueueDepth(ctx, -1)
		a.metrics.recordCancel(ctx, CancelUnqueued)
		a.logger.Info(ctx, "waiting request cancelled", AttrRequest(id), xlog.Err(cause))
		span.SetAttributes(attribute.String(attrResult, CancelUnqueued.String()))
		a.resumeAll([]resumption{{cont: p.cont, err: cause}})
		return CancelUnqueued
	}
	if gid, ok := a.grantByCont[id]; ok {
		h := a.grants[gid]
		a.releaseLocked(ctx, h)
		rs := a.requeueLocked(ctx)
		a.mu.Unlock()

		a.metrics.recordCancel(ctx, CancelReleased)
		a.logger.Info(ctx, "running request cancelled, grant released", AttrRequest(id), xlog.Err(cause))
		span.SetAttributes(attribute.String(attrResult, CancelReleased.String()))
		if h.cont != nil {
			rs = append([]resumption{{cont: h.cont, err: cause}}, rs...)
		}
		a.resumeAll(rs)
		return CancelReleased
	}
	a.mu.Unlock()

	a.metrics.recordCancel(ctx, CancelNotFound)
	span.SetAttributes(attribute.String(attrResult, CancelNotFound.String()))
	a.warn(ctx, ErrRequestNotFound, "cancel found no waiting or running request", AttrRequest(id))
	return CancelNotFound
}

// Close 拒绝新的请求，并以 [ErrClosed] 结束全部等待请求。已有授权仍可正常释放。
func (a *Allocator) Close(ctx context.Context) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	drained := a.queue.drain()
	for _, p := range drained {
		a.sweepRetiredLocked(ctx, p)
	}
	a.mu.Unlock()

	a.metrics.addQueueDepth(ctx, -len(drained))
	a.logger.Info(ctx, "allocator closed", slog.Int("failed_waiters", len(drained)))
	rs := make([]resumption, 0, len(drained))
	for _, p := range drained {
		rs = append(rs, resumption{cont: p.cont, err: ErrClosed})
	}
	a.resumeAll(rs)
}

// =============================================================================
// 内部辅助
// =============================================================================

// resumeAll 在锁外按顺序调度回调。
func (a *Allocator) resumeAll(rs []resumption) {
	for _, r := range rs {
		a.dispatch(func() {
			if r.err != nil {
				r.cont.Fail(r.err)
				return
			}
			r.cont.Resume(r.grant)
		})
	}
}

func (a *Allocator) warn(ctx context.Context, err error, msg string, attrs ...slog.Attr) {
	a.logger.Warn(ctx, msg, append(attrs, xlog.Err(err))...)
	if a.onWarn != nil {
		a.onWarn(ctx, err)
	}
}
