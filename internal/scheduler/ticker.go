// internal/scheduler/ticker.go
//
// In-process reset ticker.
//
// Context
// -------
// Deployments without an external cron enable `scheduler.enabled`, and the
// web process drives smart-mode cycles itself.  The ticker fires once at
// start (to catch up after downtime) and then on every interval boundary
// (top of the hour for the default 1h).  Boundary alignment keeps ticks
// predictable across restarts.
//
// Running the in-process ticker and an external cron together is safe: the
// reset date guard makes duplicate cycles no-ops.
//
// Notes
// -----
// • A tick never overlaps the previous one; a slow cycle delays the next
//   boundary instead of stacking.
// • Oxford commas, two spaces after periods.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/availability/internal/soldout"
)

// Runner runs one cycle.  *soldout.Driver satisfies it.
type Runner interface {
	RunCycle(ctx context.Context, mode soldout.Mode) (soldout.Report, error)
}

// Ticker drives Runner on interval boundaries.
type Ticker struct {
	runner   Runner
	interval time.Duration
	log      *zap.SugaredLogger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New returns a Ticker.  interval below one minute is raised to one minute.
func New(runner Runner, interval time.Duration, log *zap.SugaredLogger) *Ticker {
	if interval < time.Minute {
		interval = time.Minute
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Ticker{runner: runner, interval: interval, log: log, now: time.Now, after: time.After}
}

// Run blocks until ctx is done.
func (t *Ticker) Run(ctx context.Context) {
	t.log.Infow("reset ticker started", "interval", t.interval)
	for {
		t.tick(ctx)

		wait := t.untilNext(t.now())
		select {
		case <-ctx.Done():
			t.log.Infow("reset ticker stopped")
			return
		case <-t.after(wait):
		}
	}
}

func (t *Ticker) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	rep, err := t.runner.RunCycle(ctx, soldout.ModeSmart)
	if err != nil {
		t.log.Errorw("scheduled reset cycle failed", "err", err)
		return
	}
	t.log.Debugw("scheduled reset cycle done", "run_id", rep.RunID, "items_reset", rep.TotalReset)
}

// untilNext is the wait from now to the next interval boundary.
func (t *Ticker) untilNext(now time.Time) time.Duration {
	next := now.Truncate(t.interval).Add(t.interval)
	return next.Sub(now)
}
