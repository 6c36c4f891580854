package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNextDelayBeforeTarget(t *testing.T) {
	now := time.Date(2024, 3, 10, 5, 59, 30, 0, time.UTC)
	delay := NextDelay(now, 6, 0, time.UTC)
	if delay <= 0 || delay >= time.Minute {
		t.Fatalf("expected delay under a minute, got %v", delay)
	}
}

func TestNextDelayAfterTarget(t *testing.T) {
	now := time.Date(2024, 3, 10, 6, 1, 0, 0, time.UTC)
	delay := NextDelay(now, 6, 0, time.UTC)
	if delay != 23*time.Hour+59*time.Minute {
		t.Fatalf("expected 23h59m, got %v", delay)
	}
}

func TestNextDelayExactlyAtTarget(t *testing.T) {
	now := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	if delay := NextDelay(now, 6, 0, time.UTC); delay != 24*time.Hour {
		t.Fatalf("expected 24h, got %v", delay)
	}
}

func TestNextInterval(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 10, 0, time.UTC)
	if delay := NextInterval(now, 30*time.Second, time.UTC); delay != 20*time.Second {
		t.Fatalf("expected 20s, got %v", delay)
	}

	// Exactly on a boundary schedules the next tick, not an immediate run.
	now = time.Date(2024, 3, 10, 0, 1, 0, 0, time.UTC)
	if delay := NextInterval(now, 30*time.Second, time.UTC); delay != 30*time.Second {
		t.Fatalf("expected 30s, got %v", delay)
	}
}

type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	fns  []func()
	dels []time.Duration
}

type fakeTimer struct{}

func (fakeTimer) Stop() bool { return true }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, f)
	c.dels = append(c.dels, d)
	return fakeTimer{}
}

func (c *fakeClock) fire(advance time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(advance)
	fns := c.fns
	c.fns = nil
	c.dels = nil
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func TestRunnerRearmsAfterRunAndError(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC)}
	runner := NewRunner(zap.NewNop(), time.UTC)
	runner.WithClock(clock)

	runs := 0
	runner.Daily(context.Background(), "report", 6, 0, func(context.Context) error {
		runs++
		if runs == 1 {
			return context.DeadlineExceeded
		}
		return nil
	})

	if len(clock.dels) != 1 || clock.dels[0] != time.Hour {
		t.Fatalf("expected initial 1h delay, got %v", clock.dels)
	}

	clock.fire(time.Hour)
	if runs != 1 {
		t.Fatalf("expected first run, got %d", runs)
	}

	// The error did not stop re-arming.
	clock.fire(24 * time.Hour)
	if runs != 2 {
		t.Fatalf("expected second run after error, got %d", runs)
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC)}
	runner := NewRunner(zap.NewNop(), time.UTC)
	runner.WithClock(clock)

	ctx, cancel := context.WithCancel(context.Background())
	runs := 0
	runner.Daily(ctx, "report", 6, 0, func(context.Context) error {
		runs++
		return nil
	})

	cancel()
	clock.fire(time.Hour)
	if runs != 0 {
		t.Fatalf("expected no runs after cancel, got %d", runs)
	}
}
