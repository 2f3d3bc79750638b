// Package ratelimit counts requests per key over a time window, in
// process or shared through Redis.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Remaining int64
	RetryIn   time.Duration
}

// Limiter decides whether one more request for key fits the limit.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Memory is a fixed-window limiter for a single process.
type Memory struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int64
	window   time.Duration
	now      func() time.Time
}

type visitor struct {
	used  int64
	start time.Time
}

var _ Limiter = (*Memory)(nil)

// NewMemory allows rate requests per window for each key.
func NewMemory(rate int64, window time.Duration) *Memory {
	return &Memory{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	v, ok := m.visitors[key]
	if !ok || now.Sub(v.start) >= m.window {
		v = &visitor{start: now}
		m.visitors[key] = v
	}

	if v.used >= m.rate {
		return Result{Allowed: false, RetryIn: v.start.Add(m.window).Sub(now)}, nil
	}
	v.used++
	return Result{Allowed: true, Remaining: m.rate - v.used}, nil
}

// Cleanup drops keys whose window ended long ago.
func (m *Memory) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, v := range m.visitors {
		if now.Sub(v.start) > 2*m.window {
			delete(m.visitors, key)
			removed++
		}
	}
	return removed
}

// RunCleanup calls Cleanup every window until ctx is cancelled.
func (m *Memory) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(m.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}
