package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// ThrottlePolicy caps the number of sends per window. A sender over the cap
// pauses and retries; events are never dropped or queued.
type ThrottlePolicy struct {
	MaxSends int
	Window   time.Duration
	Pause    time.Duration
}

func DefaultThrottlePolicy() ThrottlePolicy {
	return ThrottlePolicy{MaxSends: 30, Window: 500 * time.Millisecond, Pause: 200 * time.Millisecond}
}

type Throttle struct {
	policy ThrottlePolicy

	mu          sync.Mutex
	windowStart time.Time
	count       int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	warn   rate.Sometimes
	logger *slog.Logger
	pauses prometheus.Counter
}

func NewThrottle(policy ThrottlePolicy) *Throttle {
	def := DefaultThrottlePolicy()
	if policy.MaxSends <= 0 {
		policy.MaxSends = def.MaxSends
	}
	if policy.Window <= 0 {
		policy.Window = def.Window
	}
	if policy.Pause <= 0 {
		policy.Pause = def.Pause
	}
	return &Throttle{
		policy: policy,
		now:    time.Now,
		sleep:  sleepContext,
		warn:   rate.Sometimes{First: 1, Interval: policy.Window},
		logger: slog.Default(),
	}
}

// Wait returns once the caller may send, pausing while the current window is
// full.
func (t *Throttle) Wait(ctx context.Context) error {
	for {
		if t.take() {
			return nil
		}
		t.warn.Do(func() {
			t.logger.Warn("Sending too fast, slowing down",
				"max_sends", t.policy.MaxSends, "window", t.policy.Window, "pause", t.policy.Pause)
		})
		if t.pauses != nil {
			t.pauses.Inc()
		}
		if err := t.sleep(ctx, t.policy.Pause); err != nil {
			return err
		}
	}
}

func (t *Throttle) take() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if t.windowStart.IsZero() || now.Sub(t.windowStart) >= t.policy.Window {
		t.windowStart = now
		t.count = 0
	}
	if t.count >= t.policy.MaxSends {
		return false
	}
	t.count++
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
