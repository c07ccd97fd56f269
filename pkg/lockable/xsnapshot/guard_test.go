package xsnapshot

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGuardValidation(t *testing.T) {
	_, client := newMiniredis(t)

	_, err := NewGuard(nil, "pool")
	assert.ErrorIs(t, err, ErrNilClient)

	_, err = NewGuard([]redis.UniversalClient{client, nil}, "pool")
	assert.ErrorIs(t, err, ErrNilClient)

	_, err = NewGuard([]redis.UniversalClient{client}, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestGuardExclusive(t *testing.T) {
	ctx := context.Background()
	_, client := newMiniredis(t)
	clients := []redis.UniversalClient{client}

	a, err := NewGuard(clients, "pool")
	require.NoError(t, err)
	b, err := NewGuard(clients, "pool")
	require.NoError(t, err)
	assert.Equal(t, "pool", a.Name())

	require.NoError(t, a.Acquire(ctx))
	assert.ErrorIs(t, b.Acquire(ctx), ErrGuardHeld)

	require.NoError(t, a.Extend(ctx))
	require.NoError(t, a.Release(ctx))

	require.NoError(t, b.Acquire(ctx))
	require.NoError(t, b.Release(ctx))
}

func TestGuardLostAfterExpiry(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)

	g, err := NewGuard([]redis.UniversalClient{client}, "pool", WithGuardTTL(time.Second))
	require.NoError(t, err)
	require.NoError(t, g.Acquire(ctx))

	mr.FastForward(2 * time.Second)

	assert.ErrorIs(t, g.Extend(ctx), ErrGuardLost)
	assert.ErrorIs(t, g.Release(ctx), ErrGuardLost)
}
