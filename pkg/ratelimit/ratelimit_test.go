package ratelimit

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidRates(t *testing.T) {
	for _, rps := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := New(rps)
		assert.Error(t, err, "rps=%v", rps)
	}
}

func TestBurstIsCeilOfRate(t *testing.T) {
	tests := []struct {
		rps   float64
		burst int
	}{
		{rps: 0.5, burst: 1},
		{rps: 1, burst: 1},
		{rps: 2.5, burst: 3},
		{rps: 10, burst: 10},
	}
	for _, tt := range tests {
		l, err := New(tt.rps)
		require.NoError(t, err)
		assert.Equal(t, tt.burst, l.Burst())
		assert.InDelta(t, tt.rps, l.Rate(), 1e-9)
	}
}

func TestStartsEmpty(t *testing.T) {
	l, err := New(1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx), "no token is available before the first refill")
}

func TestWaitHonoursCancellation(t *testing.T) {
	l, err := New(0.1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = l.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAdmitCapsEveryWindow(t *testing.T) {
	l, err := New(3)
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		assert.Zero(t, l.admit(base.Add(time.Duration(i)*time.Millisecond)), "dispatch %d", i)
	}

	delay := l.admit(base.Add(10 * time.Millisecond))
	assert.Equal(t, 990*time.Millisecond, delay, "fourth dispatch waits for the first to leave the window")

	assert.Zero(t, l.admit(base.Add(time.Second)))
	assert.Equal(t, time.Millisecond, l.admit(base.Add(time.Second)))
}

// acquisitionTimes runs workers against l until ctx is done and returns the
// sorted acquisition times.
func acquisitionTimes(ctx context.Context, t *testing.T, l *Limiter, workers int) []time.Time {
	t.Helper()

	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for l.Wait(ctx) == nil {
				mu.Lock()
				times = append(times, time.Now())
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	require.NotEmpty(t, times)
	return times
}

// assertWindows checks every one-second window. One acquisition of slack
// absorbs the gap between a dispatch being admitted and its timestamp.
func assertWindows(t *testing.T, times []time.Time, rps float64) {
	t.Helper()

	limit := int(math.Ceil(rps)) + 1
	for i := range times {
		n := 0
		for j := i; j < len(times) && times[j].Sub(times[i]) < time.Second; j++ {
			n++
		}
		assert.LessOrEqual(t, n, limit, "window starting at acquisition %d", i)
	}
}

func TestSlidingWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	const rps = 20.0
	l, err := New(rps)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	assertWindows(t, acquisitionTimes(ctx, t, l, 8), rps)
}

func TestSlidingWindowAfterIdle(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	const rps = 10.0
	l, err := New(rps)
	require.NoError(t, err)

	// Let the bucket fill completely before the workers arrive.
	time.Sleep(1200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	times := acquisitionTimes(ctx, t, l, 8)
	assertWindows(t, times, rps)
	assert.GreaterOrEqual(t, len(times), int(rps), "the full bucket is still usable")
}
