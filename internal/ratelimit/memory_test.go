package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func TestSlidingWindow_AdmitsUpToLimit(t *testing.T) {
	sw := NewSlidingWindow(3, time.Minute, nil)

	for i := 0; i < 3; i++ {
		res := sw.AdmitAt("k", t0.Add(time.Duration(i)*time.Second))
		require.True(t, res.Allowed, "attempt %d", i)
		assert.Equal(t, 2-i, res.Remaining)
		assert.Equal(t, 3, res.Limit)
	}

	res := sw.AdmitAt("k", t0.Add(10*time.Second))
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, t0.Add(time.Minute), res.ResetAt, "reset is when the oldest attempt expires")
	assert.Equal(t, 50*time.Second, res.RetryAfter)
}

func TestSlidingWindow_RejectionDoesNotExtendWindow(t *testing.T) {
	sw := NewSlidingWindow(1, time.Minute, nil)

	require.True(t, sw.AdmitAt("k", t0).Allowed)
	for i := 1; i <= 5; i++ {
		assert.False(t, sw.AdmitAt("k", t0.Add(time.Duration(i)*10*time.Second)).Allowed)
	}
	assert.True(t, sw.AdmitAt("k", t0.Add(time.Minute+time.Millisecond)).Allowed)
}

func TestSlidingWindow_Slides(t *testing.T) {
	sw := NewSlidingWindow(2, time.Minute, nil)

	require.True(t, sw.AdmitAt("k", t0).Allowed)
	require.True(t, sw.AdmitAt("k", t0.Add(30*time.Second)).Allowed)
	require.False(t, sw.AdmitAt("k", t0.Add(59*time.Second)).Allowed)

	// the first attempt has left the window, the second has not
	assert.True(t, sw.AdmitAt("k", t0.Add(61*time.Second)).Allowed)
	assert.False(t, sw.AdmitAt("k", t0.Add(62*time.Second)).Allowed)
}

func TestSlidingWindow_KeysAreIndependent(t *testing.T) {
	sw := NewSlidingWindow(1, time.Minute, nil)

	assert.True(t, sw.AdmitAt("a", t0).Allowed)
	assert.True(t, sw.AdmitAt("b", t0).Allowed)
	assert.False(t, sw.AdmitAt("a", t0).Allowed)
}

func TestSlidingWindow_ResetAndSweep(t *testing.T) {
	sw := NewSlidingWindow(1, time.Minute, nil)

	sw.AdmitAt("a", t0)
	sw.AdmitAt("b", t0.Add(30*time.Second))

	assert.Equal(t, 1, sw.Sweep(t0.Add(70*time.Second)), "a expired, b still counted")
	assert.False(t, sw.AdmitAt("b", t0.Add(70*time.Second)).Allowed)

	sw.Reset()
	assert.True(t, sw.AdmitAt("b", t0.Add(70*time.Second)).Allowed)
}

func TestSlidingWindow_AllowUsesClock(t *testing.T) {
	now := t0
	sw := NewSlidingWindow(1, time.Minute, func() time.Time { return now })

	res, err := sw.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, _ = sw.Allow(context.Background(), "k")
	assert.False(t, res.Allowed)

	now = now.Add(2 * time.Minute)
	res, _ = sw.Allow(context.Background(), "k")
	assert.True(t, res.Allowed)
}

func TestSlidingWindow_ConcurrentAdmissionsNeverExceedLimit(t *testing.T) {
	sw := NewSlidingWindow(50, time.Minute, func() time.Time { return t0 })

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := sw.Allow(context.Background(), "shared")
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestSlidingWindow_Janitor(t *testing.T) {
	var mu sync.Mutex
	now := t0
	clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }
	sw := NewSlidingWindow(1, time.Minute, clock)

	for i := 0; i < 10; i++ {
		sw.AdmitAt(fmt.Sprintf("k%d", i), t0)
	}

	mu.Lock()
	now = t0.Add(time.Hour)
	mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sw.StartJanitor(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		sw.mu.Lock()
		defer sw.mu.Unlock()
		return len(sw.logs) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestUnlimited(t *testing.T) {
	res, err := Unlimited.Allow(context.Background(), "any")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
