// internal/soldout/mode.go
//
// Cycle modes and the error taxonomy shared by the evaluator, executor,
// and driver.
package soldout

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects how a cycle picks tenants.
type Mode string

const (
	// ModeSmart resets a tenant once per local day, on the first tick at or
	// after its local midnight.
	ModeSmart Mode = "smart"
	// ModeAll resets every active tenant regardless of local time.  Meant
	// for manual or forced runs.
	ModeAll Mode = "all"
)

// ParseMode maps a selector to a Mode.  The empty string means ModeSmart.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSmart:
		return ModeSmart, nil
	case ModeAll:
		return ModeAll, nil
	}
	return "", fmt.Errorf("unknown reset mode %q", s)
}

var (
	// ErrTenantStoreUnavailable means the tenant or menu store could not be
	// reached or read.  Per tenant it skips that tenant; when listing
	// tenants fails the whole cycle has nothing to work on.
	ErrTenantStoreUnavailable = errors.New("tenant store unavailable")

	// ErrPartialCommit means a tenant's reset transaction failed after it
	// started writing.  The transaction is rolled back, so neither the
	// items nor the bookkeeping stamp changed.
	ErrPartialCommit = errors.New("reset transaction failed")
)

// Reason tags why a tenant was skipped or failed in a cycle.
type Reason string

const (
	ReasonNotDue           Reason = "not_due"
	ReasonAlreadyReset     Reason = "already_reset"
	ReasonInactive         Reason = "inactive"
	ReasonCancelled        Reason = "cancelled"
	ReasonStoreUnavailable Reason = "store_unavailable"
	ReasonCommitFailed     Reason = "commit_failed"
)

func reasonFor(err error) Reason {
	if errors.Is(err, ErrPartialCommit) {
		return ReasonCommitFailed
	}
	return ReasonStoreUnavailable
}
