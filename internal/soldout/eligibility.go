// internal/soldout/eligibility.go
//
// Reset eligibility.
//
// Context
// -------
// The cycle runs on a coarse shared tick (hourly), never at each tenant's
// exact midnight.  A tenant is due when its last reset happened on an
// earlier local calendar date than now.  That single date guard gives:
//
//   - exactly one reset per tenant-day, however often the tick fires or
//     overlaps, because the stamp written by the first reset makes every
//     later tick that day fail the guard;
//   - catch-up after a missed midnight (host downtime, DST gaps where
//     00:00 does not exist), because the guard asks "has today's reset
//     happened" rather than "is it hour 0".
//
// A tenant that has never been reset has no date to compare, so it waits
// for its first local hour 0.  That avoids clearing items a brand-new
// restaurant marked sold out mid-afternoon.
package soldout

import (
	"time"

	"github.com/yanizio/availability/internal/clock"
	"github.com/yanizio/availability/internal/tenant"
)

// IsDue reports whether t should be reset at now in smart mode.  loc is the
// tenant's resolved location (UTC when its zone is unknown).
func IsDue(now time.Time, t tenant.Record, loc *time.Location) bool {
	wc := clock.WallClockIn(now, loc)
	if t.LastSoldOutResetAt == nil {
		return wc.Hour == 0
	}
	last := clock.DateOf(t.LastSoldOutResetAt.In(loc))
	return last.Before(wc.Date)
}

// Eligible applies the mode: ModeAll includes every active tenant, ModeSmart
// defers to IsDue.
func Eligible(mode Mode, now time.Time, t tenant.Record, loc *time.Location) bool {
	if !t.IsActive {
		return false
	}
	if mode == ModeAll {
		return true
	}
	return IsDue(now, t, loc)
}
