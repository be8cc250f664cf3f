// Package ratelimit implements a sliding one-minute window limiter for
// external AI API calls. Unlike a token bucket, the window empties all
// at once as records age out, so a burst after an idle period is
// admitted immediately up to the ceiling.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config bounds calls admitted per rolling window.
type Config struct {
	// RequestsPerMinute is the call ceiling. Zero disables the limiter
	// (every Acquire succeeds).
	RequestsPerMinute int

	// TokensPerMinute optionally caps the estimated token sum across
	// the window. Zero means no token ceiling.
	TokensPerMinute int

	// RetryWait is the single bounded backoff used by AcquireWait
	// before its one retry.
	RetryWait time.Duration
}

type call struct {
	at     time.Time
	tokens int
}

// Limiter admits or denies calls against a rolling 60-second window.
// All state mutation happens under one mutex so the evict-check-record
// sequence is atomic with respect to concurrent callers.
type Limiter struct {
	mu          sync.Mutex
	window      time.Duration
	maxRequests int
	maxTokens   int
	retryWait   time.Duration
	calls       []call
	now         func() time.Time
}

// New creates a Limiter from config.
func New(cfg Config) *Limiter {
	wait := cfg.RetryWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &Limiter{
		window:      time.Minute,
		maxRequests: cfg.RequestsPerMinute,
		maxTokens:   cfg.TokensPerMinute,
		retryWait:   wait,
		now:         time.Now,
	}
}

// NewWithClock creates a Limiter with an injected clock for tests.
func NewWithClock(cfg Config, now func() time.Time) *Limiter {
	l := New(cfg)
	l.now = now
	return l
}

// Acquire reports whether one call with the given estimated token cost
// may proceed, recording it if admitted. Callers that receive false
// must wait and retry or abandon the call.
func (l *Limiter) Acquire(estimatedTokens int) bool {
	if l.maxRequests <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictLocked(l.now())

	if len(l.calls) >= l.maxRequests {
		return false
	}
	if l.maxTokens > 0 {
		sum := 0
		for _, c := range l.calls {
			sum += c.tokens
		}
		if sum+estimatedTokens > l.maxTokens {
			return false
		}
	}

	l.calls = append(l.calls, call{at: l.now(), tokens: estimatedTokens})
	return true
}

// AcquireWait tries Acquire once and, if denied, waits the configured
// backoff and tries exactly once more. It never blocks past the single
// wait; a second denial returns false.
func (l *Limiter) AcquireWait(ctx context.Context, estimatedTokens int) bool {
	if l.Acquire(estimatedTokens) {
		return true
	}

	t := time.NewTimer(l.retryWait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
	}

	return l.Acquire(estimatedTokens)
}

// InWindow returns the number of calls currently inside the window.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictLocked(l.now())
	return len(l.calls)
}

// evictLocked drops records older than the window. Caller holds mu.
func (l *Limiter) evictLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.calls) && !l.calls[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}
