package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gigharvest/internal/logger"
	"github.com/jonesrussell/gigharvest/internal/ratelimit"
)

func noop(context.Context) error { return nil }

func TestScheduleWithinBudgetDoesNotBlockLong(t *testing.T) {
	l := ratelimit.New(logger.NewNoOp(), ratelimit.WithInterval(time.Second))

	start := time.Now()
	require.NoError(t, l.Schedule(context.Background(), "a", 10, noop))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestScheduleBlocksWhenBudgetExhausted(t *testing.T) {
	interval := 400 * time.Millisecond
	l := ratelimit.New(logger.NewNoOp(), ratelimit.WithInterval(interval))

	ctx := context.Background()
	start := time.Now()
	require.NoError(t, l.Schedule(ctx, "a", 2, noop))
	require.NoError(t, l.Schedule(ctx, "a", 2, noop))

	// Third call exceeds the budget of two and must wait for the window.
	require.NoError(t, l.Schedule(ctx, "a", 2, noop))
	assert.GreaterOrEqual(t, time.Since(start), interval)
}

func TestScheduleBudgetsAreIndependentPerSource(t *testing.T) {
	interval := time.Second
	l := ratelimit.New(logger.NewNoOp(), ratelimit.WithInterval(interval))

	ctx := context.Background()
	require.NoError(t, l.Schedule(ctx, "a", 1, noop))

	// Source a is exhausted but source b must not be affected.
	start := time.Now()
	require.NoError(t, l.Schedule(ctx, "b", 1, noop))
	assert.Less(t, time.Since(start), interval)
}

func TestScheduleFailureGrowsBackoff(t *testing.T) {
	l := ratelimit.New(logger.NewNoOp(),
		ratelimit.WithInterval(10*time.Millisecond),
		ratelimit.WithBackoff(60*time.Millisecond, 500*time.Millisecond),
	)

	ctx := context.Background()
	boom := errors.New("boom")
	fail := func(context.Context) error { return boom }

	require.ErrorIs(t, l.Schedule(ctx, "a", 100, fail), boom)

	// The second attempt honors the base delay first.
	start := time.Now()
	require.ErrorIs(t, l.Schedule(ctx, "a", 100, fail), boom)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)

	// Third attempt honors the doubled delay.
	start = time.Now()
	require.ErrorIs(t, l.Schedule(ctx, "a", 100, fail), boom)
	assert.GreaterOrEqual(t, time.Since(start), 120*time.Millisecond)
}

func TestScheduleSuccessResetsBackoff(t *testing.T) {
	l := ratelimit.New(logger.NewNoOp(),
		ratelimit.WithInterval(10*time.Millisecond),
		ratelimit.WithBackoff(80*time.Millisecond, time.Second),
	)

	ctx := context.Background()
	boom := errors.New("boom")
	require.Error(t, l.Schedule(ctx, "a", 100, func(context.Context) error { return boom }))
	require.NoError(t, l.Schedule(ctx, "a", 100, noop))

	// After a success the next call must not sleep the backoff again.
	start := time.Now()
	require.NoError(t, l.Schedule(ctx, "a", 100, noop))
	assert.Less(t, time.Since(start), 80*time.Millisecond)
}

func TestBudgetChangeKeepsBackoffState(t *testing.T) {
	l := ratelimit.New(logger.NewNoOp(),
		ratelimit.WithInterval(10*time.Millisecond),
		ratelimit.WithBackoff(80*time.Millisecond, time.Second),
	)

	ctx := context.Background()
	boom := errors.New("boom")
	require.Error(t, l.Schedule(ctx, "a", 100, func(context.Context) error { return boom }))

	// A reconfigured budget must not discard the pending failure delay.
	start := time.Now()
	require.NoError(t, l.Schedule(ctx, "a", 50, noop))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestScheduleHonorsContextCancellation(t *testing.T) {
	l := ratelimit.New(logger.NewNoOp(), ratelimit.WithInterval(10*time.Second))

	ctx := context.Background()
	require.NoError(t, l.Schedule(ctx, "a", 1, noop))

	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	err := l.Schedule(cancelCtx, "a", 1, noop)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResetClearsBackoffState(t *testing.T) {
	l := ratelimit.New(logger.NewNoOp(),
		ratelimit.WithInterval(10*time.Millisecond),
		ratelimit.WithBackoff(300*time.Millisecond, time.Second),
	)

	ctx := context.Background()
	boom := errors.New("boom")
	require.Error(t, l.Schedule(ctx, "a", 100, func(context.Context) error { return boom }))

	l.Reset()

	start := time.Now()
	require.NoError(t, l.Schedule(ctx, "a", 100, noop))
	assert.Less(t, time.Since(start), 300*time.Millisecond)
}
