package xsnapshot

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xlockable/pkg/lockable/xalloc"
)

// countingStore 统计 Save 次数。
type countingStore struct {
	Store
	saves atomic.Int32
}

func (s *countingStore) Save(ctx context.Context, key string, st xalloc.State) error {
	s.saves.Add(1)
	return s.Store.Save(ctx, key, st)
}

func newCountingStore(t *testing.T) (*countingStore, redis.UniversalClient) {
	t.Helper()
	_, client := newMiniredis(t)
	rs, err := NewRedisStore(client)
	require.NoError(t, err)
	return &countingStore{Store: rs}, client
}

func TestParseSchedule(t *testing.T) {
	assert.NoError(t, ParseSchedule("@every 30s"))
	assert.NoError(t, ParseSchedule("*/10 * * * * *"))
	assert.NoError(t, ParseSchedule("0 * * * *"))
	assert.Error(t, ParseSchedule("every thirty seconds"))
}

func TestNewSchedulerValidation(t *testing.T) {
	store, _ := newCountingStore(t)
	src := func() xalloc.State { return sampleState() }

	_, err := NewScheduler(nil, "k", src)
	assert.ErrorIs(t, err, ErrNilClient)
	_, err = NewScheduler(store, "k", nil)
	assert.ErrorIs(t, err, ErrNilClient)
	_, err = NewScheduler(store, "", src)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestSchedulerSkipsUnchangedState(t *testing.T) {
	ctx := context.Background()
	store, _ := newCountingStore(t)

	st := sampleState()
	s, err := NewScheduler(store, "pool", func() xalloc.State { return st })
	require.NoError(t, err)

	require.NoError(t, s.SaveNow(ctx))
	require.NoError(t, s.SaveNow(ctx))
	assert.EqualValues(t, 1, store.saves.Load())

	st.NextSeq++
	require.NoError(t, s.SaveNow(ctx))
	assert.EqualValues(t, 2, store.saves.Load())

	got, err := store.Load(ctx, "pool")
	require.NoError(t, err)
	assert.Equal(t, st, got)
}

func TestSchedulerRequiresGuard(t *testing.T) {
	ctx := context.Background()
	store, client := newCountingStore(t)

	g, err := NewGuard([]redis.UniversalClient{client}, "pool")
	require.NoError(t, err)

	s, err := NewScheduler(store, "pool", sampleState, WithGuard(g))
	require.NoError(t, err)

	// 未持有 Guard 时不写入
	assert.ErrorIs(t, s.SaveNow(ctx), ErrGuardLost)
	assert.Zero(t, store.saves.Load())

	require.NoError(t, g.Acquire(ctx))
	require.NoError(t, s.SaveNow(ctx))
	assert.EqualValues(t, 1, store.saves.Load())
	require.NoError(t, g.Release(ctx))
}

func TestSchedulerStartStop(t *testing.T) {
	store, _ := newCountingStore(t)

	var seq atomic.Uint64
	src := func() xalloc.State {
		st := sampleState()
		st.NextSeq = 3 + seq.Add(1)
		return st
	}
	s, err := NewScheduler(store, "pool", src)
	require.NoError(t, err)

	assert.Error(t, s.Start("not a schedule"))
	require.NoError(t, s.Start("@every 1s"))
	assert.ErrorIs(t, s.Start("@every 1s"), ErrSchedulerStarted)

	assert.Eventually(t, func() bool { return store.saves.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)

	select {
	case <-s.Stop().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
