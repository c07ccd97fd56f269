package xlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func buildJSON(t *testing.T, b *Builder) (LoggerWithLevel, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, cleanup, err := b.SetOutput(&buf).SetFormat("json").Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })
	return logger, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestBuilder_JSONOutput(t *testing.T) {
	logger, buf := buildJSON(t, New())

	logger.Info(context.Background(), "lock acquired", slog.String("resource", "printer-1"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "lock acquired", lines[0]["msg"])
	assert.Equal(t, "printer-1", lines[0]["resource"])
}

func TestBuilder_LevelFiltering(t *testing.T) {
	logger, buf := buildJSON(t, New().SetLevel(LevelWarn))
	ctx := context.Background()

	logger.Debug(ctx, "d")
	logger.Info(ctx, "i")
	logger.Warn(ctx, "w")
	logger.Error(ctx, "e")
	assert.Len(t, decodeLines(t, buf), 2)

	logger.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, logger.GetLevel())
	assert.True(t, logger.Enabled(ctx, LevelDebug))
	logger.Debug(ctx, "d2")
	assert.Len(t, decodeLines(t, buf), 3)
}

func TestBuilder_WithAndGroup(t *testing.T) {
	logger, buf := buildJSON(t, New())

	child := logger.With(Component("xalloc")).WithGroup("req")
	child.Info(context.Background(), "queued", slog.String("id", "c1"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "xalloc", lines[0][KeyComponent])
	group, ok := lines[0]["req"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "c1", group["id"])

	assert.Same(t, logger, logger.With())
	assert.Same(t, logger, logger.WithGroup(""))
}

func TestBuilder_DerivedShareLevel(t *testing.T) {
	logger, buf := buildJSON(t, New())
	child := logger.With(slog.String("k", "v"))

	logger.SetLevel(LevelError)
	child.Info(context.Background(), "hidden")
	assert.Empty(t, buf.String())
}

func TestBuilder_EnrichFromSpan(t *testing.T) {
	logger, buf := buildJSON(t, New())

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.Info(ctx, "with span")
	logger.Info(context.Background(), "without span")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, traceID.String(), lines[0][KeyTraceID])
	assert.Equal(t, spanID.String(), lines[0][KeySpanID])
	assert.NotContains(t, lines[1], KeyTraceID)
}

func TestBuilder_EnrichDisabled(t *testing.T) {
	logger, buf := buildJSON(t, New().SetEnrich(false))

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID,
	}))
	logger.Info(ctx, "x")
	assert.NotContains(t, decodeLines(t, buf)[0], KeyTraceID)
}

func TestBuilder_Errors(t *testing.T) {
	_, _, err := New().SetFormat("xml").Build()
	assert.Error(t, err)

	_, _, err = New().SetLevelString("verbose").Build()
	assert.Error(t, err)

	_, _, err = New().SetRotation("").Build()
	assert.ErrorIs(t, err, ErrEmptyFilename)

	_, _, err = New().SetOutput(nil).Build()
	assert.Error(t, err)

	// 保留第一个错误
	_, _, err = New().SetFormat("xml").SetLevelString("verbose").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format")
}

func TestBuilder_TextFormatDefault(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New().SetOutput(&buf).SetFormat("").Build()
	require.NoError(t, err)
	logger.Info(context.Background(), "hello", slog.Int("n", 1))
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "n=1")
}

func TestBuilder_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "alloc.log")
	logger, cleanup, err := New().SetRotation(path, WithMaxSizeMB(1), WithMaxBackups(1), WithMaxAgeDays(1), WithCompress(false)).Build()
	require.NoError(t, err)

	logger.Info(context.Background(), "to file")
	require.NoError(t, cleanup())
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestLogger_OnError(t *testing.T) {
	var got []error
	logger, _, err := New().SetOutput(failingWriter{}).SetOnError(func(err error) {
		got = append(got, err)
	}).Build()
	require.NoError(t, err)

	logger.Info(context.Background(), "lost")
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), logger.(*xlogger).ErrorCount())
}

func TestLogger_AddSource(t *testing.T) {
	logger, buf := buildJSON(t, New().SetAddSource(true))
	logger.Info(context.Background(), "src")
	src, ok := decodeLines(t, buf)[0]["source"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, src["file"], "xlog_test.go")
}

func TestLogger_NilContext(t *testing.T) {
	logger, buf := buildJSON(t, New())
	//nolint:staticcheck // 验证 nil ctx 不 panic
	logger.Info(nil, "nil ctx")
	assert.Len(t, decodeLines(t, buf), 1)
}

func TestDiscard(t *testing.T) {
	d := Discard()
	ctx := context.Background()
	d.Debug(ctx, "x")
	d.Info(ctx, "x")
	d.Warn(ctx, "x")
	d.Error(ctx, "x")
	assert.Equal(t, d, d.With(slog.String("k", "v")))
	assert.Equal(t, d, d.WithGroup("g"))
}

func TestAttrs(t *testing.T) {
	assert.Equal(t, slog.Attr{}, Err(nil))
	assert.Equal(t, "boom", Err(errors.New("boom")).Value.String())
	assert.Equal(t, "1.5s", Duration(1500*time.Millisecond).Value.String())
	assert.Equal(t, KeyComponent, Component("x").Key)
}
