// internal/soldout/executor.go
//
// Per-tenant sold-out reset.
//
// Context
// -------
// One reset is one transaction:
//
//  1. Lock the restaurant row (SELECT … FOR UPDATE).
//  2. In smart mode, re-run IsDue against the locked row.  A concurrent
//     cycle that committed first has already advanced the stamp, so the
//     loser sees "not due" and backs out without writing.
//  3. Collect sold-out ids with sold_out_auto_reset = TRUE and clear them.
//  4. Stamp last_sold_out_reset_at with the cycle instant.
//  5. Commit.
//
// Any failure rolls back the whole unit.  The item update and the stamp
// either both land or neither does.  A unit that lost a deadlock or timed
// out on a row lock is retried once in a fresh transaction.
package soldout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yanizio/availability/internal/clock"
	"github.com/yanizio/availability/internal/database"
	"github.com/yanizio/availability/internal/tenant"
)

// maxAttempts bounds retries of a unit that failed on a deadlock or lock
// wait timeout.
const maxAttempts = 2

// Outcome is the result of one tenant's reset unit.
type Outcome struct {
	Reset    int    // items changed; 0 is a valid result
	Skipped  bool   // nothing written
	Reason   Reason // set when Skipped
	Timezone string // zone of the locked row
}

// Executor runs per-tenant reset transactions.
type Executor struct {
	store Store
	zones *clock.Resolver
	log   *zap.SugaredLogger
}

// NewExecutor constructs an Executor.  A nil resolver uses a private one.
func NewExecutor(store Store, zones *clock.Resolver, log *zap.SugaredLogger) *Executor {
	if zones == nil {
		zones = clock.NewResolver(256)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Executor{store: store, zones: zones, log: log}
}

// ResetTenant clears sold-out flags for tenantID and stamps the reset at
// now, atomically.
func (e *Executor) ResetTenant(ctx context.Context, tenantID uint64, mode Mode, now time.Time) (out Outcome, err error) {
	ctx, span := tracer.Start(ctx, "soldout.ResetTenant",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int64("tenant.id", int64(tenantID))),
	)
	defer func() {
		span.SetAttributes(
			attribute.Int("reset.count", out.Reset),
			attribute.Bool("reset.skipped", out.Skipped),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	for attempt := 1; ; attempt++ {
		out, err = e.reset(ctx, tenantID, mode, now)
		if err == nil || attempt >= maxAttempts || !database.IsTransient(err) || ctx.Err() != nil {
			return out, err
		}
		e.log.Warnw("tenant reset hit a lock conflict, retrying", "tenant_id", tenantID, "attempt", attempt, "err", err)
	}
}

func (e *Executor) reset(ctx context.Context, tenantID uint64, mode Mode, now time.Time) (out Outcome, err error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("tenant %d: begin: %w: %w", tenantID, ErrTenantStoreUnavailable, err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			e.log.Warnw("reset rollback failed", "tenant_id", tenantID, "err", rbErr)
		}
	}()

	rec, err := tx.TenantForUpdate(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			return Outcome{Skipped: true, Reason: ReasonInactive}, nil
		}
		return Outcome{}, fmt.Errorf("tenant %d: lock: %w: %w", tenantID, ErrTenantStoreUnavailable, err)
	}
	out.Timezone = rec.Zone().String()

	if !rec.IsActive {
		return Outcome{Skipped: true, Reason: ReasonInactive, Timezone: out.Timezone}, nil
	}

	if mode != ModeAll {
		loc, tzErr := e.zones.LocationOrUTC(rec.Zone())
		if tzErr != nil {
			e.log.Warnw("tenant timezone unknown, using UTC", "tenant_id", tenantID, "err", tzErr)
		}
		if !IsDue(now, rec, loc) {
			return Outcome{Skipped: true, Reason: ReasonAlreadyReset, Timezone: out.Timezone}, nil
		}
	}

	ids, err := tx.SoldOutAutoResetIDs(ctx, tenantID)
	if err != nil {
		return Outcome{}, fmt.Errorf("tenant %d: list sold out: %w: %w", tenantID, ErrTenantStoreUnavailable, err)
	}

	n, err := tx.ClearSoldOut(ctx, tenantID, ids)
	if err != nil {
		return Outcome{}, fmt.Errorf("tenant %d: clear sold out: %w: %w", tenantID, ErrPartialCommit, err)
	}

	if err := tx.MarkSoldOutReset(ctx, tenantID, now); err != nil {
		return Outcome{}, fmt.Errorf("tenant %d: stamp reset: %w: %w", tenantID, ErrPartialCommit, err)
	}

	if err := tx.Commit(); err != nil {
		return Outcome{}, fmt.Errorf("tenant %d: commit: %w: %w", tenantID, ErrPartialCommit, err)
	}
	committed = true

	out.Reset = int(n)
	return out, nil
}
