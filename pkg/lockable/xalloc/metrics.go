package xalloc

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationVersion = "1.0.0"

const (
	metricNameAcquireTotal    = "xlockable.acquire.total"
	metricNameReleaseTotal    = "xlockable.release.total"
	metricNameCancelTotal     = "xlockable.cancel.total"
	metricNameGrantWait       = "xlockable.grant.wait"
	metricNameQueueDepth      = "xlockable.queue.depth"
	metricNameResourcesLocked = "xlockable.resources.locked"
	metricNameScanPasses      = "xlockable.scan.passes"
)

// 指标 result 属性取值
const (
	resultGranted       = "granted"
	resultQueued        = "queued"
	resultFailed        = "failed"
	resultReleased      = "released"
	resultDoubleRelease = "double_release"
	resultStale         = "stale"
)

// Metrics 分配器指标收集器。nil *Metrics 可安全调用，不记录任何指标。
type Metrics struct {
	acquireTotal    metric.Int64Counter
	releaseTotal    metric.Int64Counter
	cancelTotal     metric.Int64Counter
	grantWait       metric.Float64Histogram
	queueDepth      metric.Int64UpDownCounter
	resourcesLocked metric.Int64UpDownCounter
	scanPasses      metric.Int64Histogram
}

// waitBuckets 等待时长直方图的桶边界（秒）
var waitBuckets = []float64{0.001, 0.01, 0.1, 1, 5, 30, 60, 300, 1800, 3600}

// NewMetrics 创建指标收集器。meterProvider 为 nil 时返回 nil。
func NewMetrics(meterProvider metric.MeterProvider) (*Metrics, error) {
	if meterProvider == nil {
		return nil, nil
	}
	meter := meterProvider.Meter(tracerName, metric.WithInstrumentationVersion(instrumentationVersion))

	m := &Metrics{}
	var err error
	if m.acquireTotal, err = meter.Int64Counter(metricNameAcquireTotal,
		metric.WithDescription("加锁请求次数"), metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.releaseTotal, err = meter.Int64Counter(metricNameReleaseTotal,
		metric.WithDescription("释放次数"), metric.WithUnit("{release}")); err != nil {
		return nil, err
	}
	if m.cancelTotal, err = meter.Int64Counter(metricNameCancelTotal,
		metric.WithDescription("取消次数"), metric.WithUnit("{cancel}")); err != nil {
		return nil, err
	}
	if m.grantWait, err = meter.Float64Histogram(metricNameGrantWait,
		metric.WithDescription("从入队到获得授权的等待时长"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(waitBuckets...)); err != nil {
		return nil, err
	}
	if m.queueDepth, err = meter.Int64UpDownCounter(metricNameQueueDepth,
		metric.WithDescription("等待队列长度"), metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.resourcesLocked, err = meter.Int64UpDownCounter(metricNameResourcesLocked,
		metric.WithDescription("被持有的资源数"), metric.WithUnit("{resource}")); err != nil {
		return nil, err
	}
	if m.scanPasses, err = meter.Int64Histogram(metricNameScanPasses,
		metric.WithDescription("每次释放重扫的轮数"), metric.WithUnit("{pass}")); err != nil {
		return nil, err
	}
	return m, nil
}

func resultAttr(result string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String(attrResult, result))
}

func (m *Metrics) recordAcquire(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.acquireTotal.Add(context.WithoutCancel(ctx), 1, resultAttr(result))
}

func (m *Metrics) recordRelease(ctx context.Context, result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.releaseTotal.Add(context.WithoutCancel(ctx), int64(n), resultAttr(result))
}

func (m *Metrics) recordCancel(ctx context.Context, result CancelResult) {
	if m == nil {
		return
	}
	m.cancelTotal.Add(context.WithoutCancel(ctx), 1, resultAttr(result.String()))
}

func (m *Metrics) recordGrantWait(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.grantWait.Record(context.WithoutCancel(ctx), d.Seconds())
}

func (m *Metrics) addQueueDepth(ctx context.Context, delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.queueDepth.Add(context.WithoutCancel(ctx), int64(delta))
}

func (m *Metrics) addLocked(ctx context.Context, delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.resourcesLocked.Add(context.WithoutCancel(ctx), int64(delta))
}

func (m *Metrics) recordScan(ctx context.Context, passes int) {
	if m == nil {
		return
	}
	m.scanPasses.Record(context.WithoutCancel(ctx), int64(passes))
}
