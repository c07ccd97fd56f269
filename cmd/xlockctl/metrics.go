package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newMeterProvider 创建进程内指标管道，由 printMetrics 读取。
func newMeterProvider() (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), reader
}

// printMetrics 收集一次指标并按名称输出。
func printMetrics(ctx context.Context, w io.Writer, reader *sdkmetric.ManualReader) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}
	var lines []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			lines = append(lines, metricLines(m)...)
		}
	}
	sort.Strings(lines)
	tw := newTable(w)
	fmt.Fprintln(tw, "METRIC\tATTRIBUTES\tVALUE")
	for _, l := range lines {
		fmt.Fprintln(tw, l)
	}
	return tw.Flush()
}

func metricLines(m metricdata.Metrics) []string {
	var out []string
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		for _, dp := range data.DataPoints {
			out = append(out, fmt.Sprintf("%s\t%s\t%d", m.Name, attrString(dp.Attributes), dp.Value))
		}
	case metricdata.Histogram[float64]:
		for _, dp := range data.DataPoints {
			out = append(out, fmt.Sprintf("%s\t%s\tcount=%d sum=%.3f", m.Name, attrString(dp.Attributes), dp.Count, dp.Sum))
		}
	case metricdata.Histogram[int64]:
		for _, dp := range data.DataPoints {
			out = append(out, fmt.Sprintf("%s\t%s\tcount=%d sum=%d", m.Name, attrString(dp.Attributes), dp.Count, dp.Sum))
		}
	}
	return out
}

func attrString(set attribute.Set) string {
	return orDash(set.Encoded(attribute.DefaultEncoder()))
}
