package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xlockable/pkg/config/xconf"
	"github.com/omeyang/xlockable/pkg/lockable/xalloc"
	"github.com/omeyang/xlockable/pkg/lockable/xrequire"
	"github.com/omeyang/xlockable/pkg/lockable/xsnapshot"
)

const contendedScenario = `
jobs:
  - name: first
    resources: [printer-1]
    hold: 300ms
  - name: second
    resources: [printer-1]
    delay: 50ms
    hold: 10ms
  - name: both
    label: printer
    quantity: 2
    variable: PRINTERS
    delay: 100ms
`

func TestSimulateContention(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "pool.yaml", poolYAML)
	sc := writeFile(t, dir, "scenario.yaml", contendedScenario)

	code, stdout, stderr := runCLI(t, "simulate", "-c", cfg, "-s", sc, "--metrics")
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "[first] Lock acquired on [[printer-1]]")
	assert.Contains(t, stdout, "[second] [[printer-1]] is locked, waiting...")
	assert.Contains(t, stdout, "[both] PRINTERS=printer-1,printer-2")
	assert.Contains(t, stdout, "[second] Lock released on resource [[printer-1]]")
	assert.Contains(t, stdout, "xlockable.acquire.total")
	assert.Contains(t, stdout, "result=queued")
	assert.NotContains(t, stdout, "failed")
}

func TestSimulateCancelAfter(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "pool.yaml", poolYAML)
	sc := writeFile(t, dir, "scenario.yaml", `
jobs:
  - name: stuck
    resources: [printer-1]
    hold: 1h
    cancel_after: 50ms
  - name: waiter
    resources: [printer-1]
    delay: 10ms
    hold: 10ms
`)

	code, stdout, stderr := runCLI(t, "simulate", "-c", cfg, "-s", sc)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "[stuck] canceling after 50ms")
	assert.Regexp(t, `stuck\s+canceled`, stdout)
	assert.Regexp(t, `waiter\s+ok\s+\[printer-1\]`, stdout)
}

func TestSimulateFailedJob(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "pool.yaml", poolYAML)
	sc := writeFile(t, dir, "scenario.yaml", `
jobs:
  - name: unbound
    resources: ["${MISSING}"]
  - name: fine
    resources: [printer-2]
`)

	code, stdout, _ := runCLI(t, "simulate", "-c", cfg, "-s", sc)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "[unbound] failed to start")
	assert.Regexp(t, `fine\s+ok`, stdout)
}

func TestSimulateTimeout(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "pool.yaml", poolYAML)
	sc := writeFile(t, dir, "scenario.yaml", `
jobs:
  - name: forever
    label: printer
    quantity: 3
`)

	code, stdout, stderr := runCLI(t, "simulate", "-c", cfg, "-s", sc, "--timeout", "100ms")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "is locked, waiting...")
	assert.Contains(t, stderr, "deadline exceeded")
}

func TestSimulateInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "pool.yaml", poolYAML)
	sc := writeFile(t, dir, "scenario.yaml", `
jobs:
  - name: empty
`)
	code, _, _ := runCLI(t, "simulate", "-c", cfg, "-s", sc)
	assert.Equal(t, 2, code)
}

func redisConfig(addr string) string {
	return poolYAML + fmt.Sprintf(`
snapshot:
  backend: redis
  addrs: [%q]
  schedule: "@every 1h"
`, addr)
}

func TestSimulateRestoresAndSavesSnapshot(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := xsnapshot.NewRedisStore(client)
	require.NoError(t, err)
	// 上一进程遗留的授权：printer-1 被已不存在的 ghost 持有
	require.NoError(t, store.Save(ctx, xconf.DefaultSnapshotKey, xalloc.State{
		Resources: []xalloc.ResourceState{{Name: "printer-1", Labels: []string{"printer"}}},
		Grants: []xalloc.Grant{{
			ID:             "g-ghost",
			Owner:          "ghost",
			ContinuationID: "ghost",
			Resources:      []string{"printer-1"},
			Requirements:   []xrequire.Requirement{xrequire.NamesRequirement("printer-1")},
			GrantedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}},
		NextSeq: 5,
	}))

	dir := t.TempDir()
	cfg := writeFile(t, dir, "pool.yaml", redisConfig(mr.Addr()))
	sc := writeFile(t, dir, "scenario.yaml", `
jobs:
  - name: job
    resources: [printer-1]
`)

	code, stdout, stderr := runCLI(t, "simulate", "-c", cfg, "-s", sc)
	require.Equal(t, 0, code, stderr)
	assert.Regexp(t, `job\s+ok\s+\[printer-1\]`, stdout)

	st, err := store.Load(ctx, xconf.DefaultSnapshotKey)
	require.NoError(t, err)
	assert.Empty(t, st.Grants)
	assert.Greater(t, st.NextSeq, uint64(5))
	assert.Len(t, st.Resources, 2)
}

func TestSimulateGuardHeld(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	other, err := xsnapshot.NewGuard([]redis.UniversalClient{client}, xconf.DefaultSnapshotKey+":"+guardName)
	require.NoError(t, err)
	require.NoError(t, other.Acquire(ctx))
	t.Cleanup(func() { _ = other.Release(ctx) })

	dir := t.TempDir()
	cfg := writeFile(t, dir, "pool.yaml", redisConfig(mr.Addr()))
	sc := writeFile(t, dir, "scenario.yaml", "jobs:\n  - name: job\n    resources: [printer-1]\n")

	code, _, stderr := runCLI(t, "simulate", "-c", cfg, "-s", sc)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "acquire snapshot guard")
}
