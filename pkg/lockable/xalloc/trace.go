package xalloc

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "xlockable"

const (
	spanNameAcquire = "xalloc.Acquire"
	spanNameLock    = "xalloc.Lock"
	spanNameUnlock  = "xalloc.Unlock"
	spanNameCancel  = "xalloc.Cancel"
	spanNameRequeue = "xalloc.Requeue"
)

// Span 与 Metrics 共用的属性名
const (
	attrRequest    = "xlockable.request"
	attrOwner      = "xlockable.owner"
	attrResources  = "xlockable.resources"
	attrGranted    = "xlockable.granted"
	attrGrantCount = "xlockable.grant_count"
	attrResult     = "xlockable.result"
	attrPasses     = "xlockable.passes"
)

func getTracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName, trace.WithInstrumentationVersion(instrumentationVersion))
}

func startSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func setSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func requestAttrs(id, owner string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(attrRequest, id),
		attribute.String(attrOwner, owner),
	}
}
