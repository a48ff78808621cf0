package ratelimit

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow is an in-memory sliding-log limiter: at most limit attempts per
// key within any window-long interval.
type SlidingWindow struct {
	limit  int
	window time.Duration
	now    Clock

	mu   sync.Mutex
	logs map[string][]time.Time
}

// NewSlidingWindow creates a limiter. A nil clock means time.Now.
func NewSlidingWindow(limit int, window time.Duration, clock Clock) *SlidingWindow {
	if clock == nil {
		clock = time.Now
	}
	return &SlidingWindow{
		limit:  limit,
		window: window,
		now:    clock,
		logs:   make(map[string][]time.Time),
	}
}

// Allow implements Limiter. It never fails.
func (s *SlidingWindow) Allow(_ context.Context, key string) (Result, error) {
	return s.AdmitAt(key, s.now()), nil
}

// AdmitAt decides an attempt made at now. Only admitted attempts are recorded.
func (s *SlidingWindow) AdmitAt(key string, now time.Time) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := prune(s.logs[key], now.Add(-s.window))

	if len(log) >= s.limit {
		s.store(key, log)
		resetAt := now.Add(s.window)
		if len(log) > 0 {
			resetAt = log[0].Add(s.window)
		}
		return Result{
			Allowed:    false,
			Limit:      s.limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}
	}

	log = append(log, now)
	s.logs[key] = log
	return Result{
		Allowed:   true,
		Limit:     s.limit,
		Remaining: s.limit - len(log),
		ResetAt:   log[0].Add(s.window),
	}
}

func (s *SlidingWindow) store(key string, log []time.Time) {
	if len(log) == 0 {
		delete(s.logs, key)
		return
	}
	s.logs[key] = log
}

// prune drops entries at or before cutoff. log is sorted ascending.
func prune(log []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return log
	}
	return append(log[:0:0], log[i:]...)
}

// Reset forgets every key.
func (s *SlidingWindow) Reset() {
	s.mu.Lock()
	s.logs = make(map[string][]time.Time)
	s.mu.Unlock()
}

// Sweep removes keys whose whole log has left the window and returns how many
// keys remain.
func (s *SlidingWindow) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.window)
	for key, log := range s.logs {
		s.store(key, prune(log, cutoff))
	}
	return len(s.logs)
}

// StartJanitor sweeps every interval until ctx is done.
func (s *SlidingWindow) StartJanitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(s.now())
			}
		}
	}()
}
