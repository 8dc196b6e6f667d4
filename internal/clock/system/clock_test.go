package system

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	require.Equal(t, time.UTC, got.Location())
	require.False(t, got.Before(before))
	require.False(t, got.After(after))
}

func TestSleeperPauseHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	NewSleeper().Pause(ctx, time.Minute)
	require.Less(t, time.Since(start), time.Second)
}

func TestSleeperPauseIgnoresNonPositive(t *testing.T) {
	t.Parallel()

	start := time.Now()
	NewSleeper().Pause(context.Background(), 0)
	NewSleeper().Pause(context.Background(), -time.Second)
	require.Less(t, time.Since(start), time.Second)
}
