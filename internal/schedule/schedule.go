package schedule

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NextDelay computes the wait until the next daily occurrence of a
// wall-clock target in the given timezone. A target already passed today
// schedules for tomorrow.
func NextDelay(now time.Time, hour, minute int, loc *time.Location) time.Duration {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(local)
}

// NextInterval computes the wait until the next multiple of period since
// local midnight, aligning fixed-cadence jobs to the clock instead of to
// process start.
func NextInterval(now time.Time, period time.Duration, loc *time.Location) time.Duration {
	if loc == nil {
		loc = time.UTC
	}
	if period <= 0 {
		period = time.Second
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	elapsed := local.Sub(midnight)
	ticks := math.Ceil(elapsed.Seconds() / period.Seconds())
	next := midnight.Add(time.Duration(ticks) * period)
	if !next.After(local) {
		next = next.Add(period)
	}
	return next.Sub(local)
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// Runner hosts recurring jobs. Each job re-arms itself by recomputing its
// delay after every run, so drift does not accumulate and a changed clock
// (DST) is absorbed at the next wake-up. A failing job is logged and
// re-armed; it can never take the other jobs down with it.
type Runner struct {
	logger *zap.Logger
	loc    *time.Location
	clock  Clock

	mu     sync.Mutex
	timers map[string]Timer
	closed bool
}

func NewRunner(logger *zap.Logger, loc *time.Location) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	return &Runner{logger: logger, loc: loc, clock: realClock{}, timers: make(map[string]Timer)}
}

func (r *Runner) WithClock(clock Clock) {
	r.clock = clock
}

// Daily schedules fn at the given wall-clock time every day.
func (r *Runner) Daily(ctx context.Context, name string, hour, minute int, fn func(context.Context) error) {
	r.arm(ctx, name, fn, func(now time.Time) time.Duration {
		return NextDelay(now, hour, minute, r.loc)
	})
	r.logger.Info("job scheduled",
		zap.String("job", name),
		zap.Duration("first_run_in", NextDelay(r.clock.Now(), hour, minute, r.loc)))
}

// Every schedules fn on multiples of period since local midnight.
func (r *Runner) Every(ctx context.Context, name string, period time.Duration, fn func(context.Context) error) {
	r.arm(ctx, name, fn, func(now time.Time) time.Duration {
		return NextInterval(now, period, r.loc)
	})
	r.logger.Info("job scheduled",
		zap.String("job", name),
		zap.Duration("first_run_in", NextInterval(r.clock.Now(), period, r.loc)))
}

func (r *Runner) arm(ctx context.Context, name string, fn func(context.Context) error, delay func(time.Time) time.Duration) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	timer := r.clock.AfterFunc(delay(r.clock.Now()), func() {
		if ctx.Err() != nil {
			return
		}
		r.run(ctx, name, fn)
		r.arm(ctx, name, fn, delay)
	})
	// One pending timer per job; re-arming replaces the fired one.
	r.timers[name] = timer
	r.mu.Unlock()
}

func (r *Runner) run(ctx context.Context, name string, fn func(context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("job panicked", zap.String("job", name), zap.Any("panic", rec))
		}
	}()
	if err := fn(ctx); err != nil {
		r.logger.Error("job failed", zap.String("job", name), zap.Error(err))
	}
}

// Stop cancels all pending wake-ups. In-flight runs finish on their own.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for _, timer := range r.timers {
		timer.Stop()
	}
	r.timers = make(map[string]Timer)
}
