// internal/soldout/driver.go
//
// Reset cycle driver.
//
// Context
// -------
// RunCycle is what the hourly trigger calls.  One cycle:
//
//  1. Lists active tenants.
//  2. Resolves each tenant's zone (unknown zones degrade to UTC and are
//     logged) and applies Eligible for the requested mode.
//  3. Runs Executor.ResetTenant for eligible tenants, with bounded
//     fan-out.  Tenants are independent; no cross-tenant lock exists.
//  4. Returns a Report with one Result per tenant, including the skipped
//     ones.
//
// Per-tenant failures are recorded in the Report and never abort the
// cycle.  Only a failure to list tenants returns an error.  If ctx is
// cancelled mid-cycle, resets already committed stay committed and the
// remaining tenants are reported as cancelled.
//
// Overlapping or retried cycles are safe: the date guard in IsDue, checked
// again under the row lock, allows one real reset per tenant-day.
package soldout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/availability/internal/clock"
	"github.com/yanizio/availability/internal/metrics"
	"github.com/yanizio/availability/internal/tenant"
)

var tracer = otel.Tracer("github.com/yanizio/availability/internal/soldout")

// Defaults used when Options leaves a field zero.
const (
	DefaultConcurrency   = 4
	DefaultTenantTimeout = 30 * time.Second
)

// Result is one tenant's line in a cycle report.
type Result struct {
	TenantID  uint64 `json:"tenant_id"`
	Slug      string `json:"slug"`
	Timezone  string `json:"timezone"`
	LocalDate string `json:"local_date"`
	Reset     int    `json:"reset"`
	Skipped   bool   `json:"skipped"`
	Reason    Reason `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Failed reports whether the tenant's reset errored.
func (r Result) Failed() bool { return r.Error != "" }

// Report aggregates one cycle.
type Report struct {
	RunID           uuid.UUID `json:"run_id"`
	Mode            Mode      `json:"mode"`
	TriggeredAt     time.Time `json:"triggered_at"`
	FinishedAt      time.Time `json:"finished_at"`
	TotalReset      int       `json:"total_reset"`
	TenantsReset    int       `json:"tenants_reset"`
	TenantsAffected int       `json:"tenants_affected"`
	Failed          int       `json:"failed"`
	Tenants         []Result  `json:"tenants"`
}

// Options tunes the driver.
type Options struct {
	Concurrency   int
	TenantTimeout time.Duration
	Zones         *clock.Resolver
}

// Driver runs reset cycles.  Safe for concurrent use.
type Driver struct {
	store         Store
	exec          *Executor
	zones         *clock.Resolver
	log           *zap.SugaredLogger
	concurrency   int
	tenantTimeout time.Duration
	now           func() time.Time
}

// NewDriver constructs a Driver over store.
func NewDriver(store Store, log *zap.SugaredLogger, opts Options) *Driver {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.TenantTimeout <= 0 {
		opts.TenantTimeout = DefaultTenantTimeout
	}
	if opts.Zones == nil {
		opts.Zones = clock.NewResolver(512)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Driver{
		store:         store,
		exec:          NewExecutor(store, opts.Zones, log),
		zones:         opts.Zones,
		log:           log,
		concurrency:   opts.Concurrency,
		tenantTimeout: opts.TenantTimeout,
		now:           time.Now,
	}
}

// RunCycle executes one cycle at the current instant.
func (d *Driver) RunCycle(ctx context.Context, mode Mode) (Report, error) {
	return d.RunCycleAt(ctx, mode, d.now())
}

// RunCycleAt executes one cycle as if invoked at now.
func (d *Driver) RunCycleAt(ctx context.Context, mode Mode, now time.Time) (Report, error) {
	now = now.UTC()
	rep := Report{RunID: uuid.New(), Mode: mode, TriggeredAt: now}

	ctx, span := tracer.Start(ctx, "soldout.RunCycle")
	defer span.End()
	span.SetAttributes(
		attribute.String("cycle.mode", string(mode)),
		attribute.String("cycle.run_id", rep.RunID.String()),
	)

	log := d.log.With("run_id", rep.RunID.String(), "mode", mode)
	start := time.Now()

	tenants, err := d.store.ActiveTenants(ctx)
	if err != nil {
		rep.FinishedAt = time.Now().UTC()
		span.RecordError(err)
		span.SetStatus(codes.Error, "list tenants")
		log.Errorw("reset cycle aborted", "err", err)
		return rep, fmt.Errorf("list tenants: %w: %w", ErrTenantStoreUnavailable, err)
	}

	rep.Tenants = make([]Result, len(tenants))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, t := range tenants {
		g.Go(func() error {
			rep.Tenants[i] = d.runTenant(ctx, log, mode, now, t)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range rep.Tenants {
		switch {
		case r.Failed():
			rep.Failed++
			metrics.TenantResetErrorsTotal.WithLabelValues(string(r.Reason)).Inc()
		case !r.Skipped:
			rep.TenantsReset++
			rep.TotalReset += r.Reset
			if r.Reset > 0 {
				rep.TenantsAffected++
			}
		}
	}
	rep.FinishedAt = time.Now().UTC()

	metrics.ResetCyclesTotal.WithLabelValues(string(mode)).Inc()
	metrics.ResetCycleDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	metrics.TenantsResetTotal.Add(float64(rep.TenantsReset))
	metrics.ItemsResetTotal.Add(float64(rep.TotalReset))

	span.SetAttributes(
		attribute.Int("cycle.tenants", len(tenants)),
		attribute.Int("cycle.items_reset", rep.TotalReset),
		attribute.Int("cycle.failed", rep.Failed),
	)
	log.Infow("reset cycle finished",
		"tenants", len(tenants),
		"tenants_reset", rep.TenantsReset,
		"items_reset", rep.TotalReset,
		"failed", rep.Failed,
		"elapsed", time.Since(start).Truncate(time.Millisecond),
	)
	return rep, nil
}

func (d *Driver) runTenant(ctx context.Context, log *zap.SugaredLogger, mode Mode, now time.Time, t tenant.Record) Result {
	res := Result{TenantID: t.ID, Slug: t.Slug, Timezone: t.Zone().String()}

	loc, err := d.zones.LocationOrUTC(t.Zone())
	if err != nil {
		metrics.UnknownTimezoneTotal.Inc()
		log.Warnw("tenant timezone unknown, using UTC", "tenant_id", t.ID, "timezone", res.Timezone, "err", err)
	}
	res.LocalDate = clock.WallClockIn(now, loc).Date.String()

	if ctx.Err() != nil {
		res.Skipped, res.Reason = true, ReasonCancelled
		return res
	}
	if !Eligible(mode, now, t, loc) {
		res.Skipped, res.Reason = true, ReasonNotDue
		return res
	}

	tctx, cancel := context.WithTimeout(ctx, d.tenantTimeout)
	defer cancel()

	out, err := d.exec.ResetTenant(tctx, t.ID, mode, now)
	if err != nil {
		res.Reason = reasonFor(err)
		res.Error = err.Error()
		log.Errorw("tenant reset failed", "tenant_id", t.ID, "reason", res.Reason, "err", err)
		return res
	}
	if out.Skipped {
		res.Skipped, res.Reason = true, out.Reason
		log.Debugw("tenant reset skipped", "tenant_id", t.ID, "reason", out.Reason)
		return res
	}

	res.Reset = out.Reset
	log.Infow("tenant reset", "tenant_id", t.ID, "slug", t.Slug, "local_date", res.LocalDate, "items", out.Reset)
	return res
}

// Preview reports, without writing, which active tenants a cycle in mode
// would reset at now.  Due tenants have Skipped false.
func (d *Driver) Preview(ctx context.Context, mode Mode, now time.Time) ([]Result, error) {
	tenants, err := d.store.ActiveTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w: %w", ErrTenantStoreUnavailable, err)
	}
	out := make([]Result, len(tenants))
	for i, t := range tenants {
		loc, _ := d.zones.LocationOrUTC(t.Zone())
		out[i] = Result{
			TenantID:  t.ID,
			Slug:      t.Slug,
			Timezone:  t.Zone().String(),
			LocalDate: clock.WallClockIn(now, loc).Date.String(),
		}
		if !Eligible(mode, now, t, loc) {
			out[i].Skipped, out[i].Reason = true, ReasonNotDue
		}
	}
	return out, nil
}
