package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/namelens/ascgate/internal/core"
	"github.com/namelens/ascgate/internal/metrics"
)

const (
	DefaultMaxRequests = 50
	DefaultWindow      = time.Minute
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WindowLimiter is a process-local sliding-window limiter: at most
// MaxRequests requests are admitted within any trailing Window.
type WindowLimiter struct {
	MaxRequests int
	Window      time.Duration
	Clock       func() time.Time
	Sleep       SleepFunc
	Logger      core.Logger

	mu     sync.Mutex
	stamps []time.Time
}

// NewWindowLimiter returns a limiter with the given cap and window.
func NewWindowLimiter(maxRequests int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{MaxRequests: maxRequests, Window: window}
}

// Acquire blocks until a slot is free and records it. The wait itself has no
// deadline; only ctx cancellation ends it early.
func (l *WindowLimiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}

	for {
		l.mu.Lock()
		now := l.now()
		l.trim(now)
		if len(l.stamps) < l.limit() {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.window() - now.Sub(l.stamps[0])
		inWindow := len(l.stamps)
		l.mu.Unlock()

		metrics.RecordThrottleWait("local")
		core.LoggerOrNop(l.Logger).Info("Local rate window saturated, waiting",
			zap.Int("in_window", inWindow),
			zap.Duration("wait", wait))

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Stats reports the current window occupancy.
func (l *WindowLimiter) Stats() core.RateWindowStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.trim(l.now())
	stats := core.RateWindowStats{
		InWindow: len(l.stamps),
		Limit:    l.limit(),
		Window:   l.window(),
	}
	if len(l.stamps) > 0 {
		oldest := l.stamps[0]
		stats.OldestAt = &oldest
	}
	return stats
}

// trim drops timestamps that have aged out of the window. Callers hold mu.
func (l *WindowLimiter) trim(now time.Time) {
	cutoff := now.Add(-l.window())
	keep := 0
	for keep < len(l.stamps) && !l.stamps[keep].After(cutoff) {
		keep++
	}
	if keep > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[keep:]...)
	}
}

func (l *WindowLimiter) limit() int {
	if l.MaxRequests <= 0 {
		return DefaultMaxRequests
	}
	return l.MaxRequests
}

func (l *WindowLimiter) window() time.Duration {
	if l.Window <= 0 {
		return DefaultWindow
	}
	return l.Window
}

func (l *WindowLimiter) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}

func (l *WindowLimiter) sleep(ctx context.Context, d time.Duration) error {
	if l.Sleep != nil {
		return l.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}
