package main

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

// timeline 把多个作业的进度输出合并到同一 Writer，每行带相对时间与作业名。
type timeline struct {
	mu    sync.Mutex
	w     io.Writer
	now   func() time.Time
	start time.Time
}

func newTimeline(w io.Writer, now func() time.Time) *timeline {
	if now == nil {
		now = time.Now
	}
	return &timeline{w: w, now: now, start: now()}
}

// For 返回作业专用的 Writer。
func (t *timeline) For(job string) io.Writer {
	return &jobWriter{t: t, job: job}
}

// Printf 输出一行不属于任何作业的事件。
func (t *timeline) Printf(format string, args ...any) {
	t.writeLine("", fmt.Sprintf(format, args...))
}

func (t *timeline) writeLine(job, line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	elapsed := t.now().Sub(t.start).Seconds()
	if job == "" {
		fmt.Fprintf(t.w, "[+%7.3fs] %s\n", elapsed, line)
		return
	}
	fmt.Fprintf(t.w, "[+%7.3fs] [%s] %s\n", elapsed, job, line)
}

type jobWriter struct {
	t   *timeline
	job string
}

// Write 按行拆分，每行单独加前缀。
func (w *jobWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		w.t.writeLine(w.job, string(line))
	}
	return len(p), nil
}
