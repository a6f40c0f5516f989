package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_AllowsBurst(t *testing.T) {
	l := New(1, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
}

func TestAcquire_BlocksBeyondBurstUntilCancelled(t *testing.T) {
	l := New(1, 1)
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))

	shortCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Acquire(shortCtx)
	assert.Error(t, err)
}
