// internal/tenant/model.go
//
// `restaurant` table row model.
//
// Context
// -------
// A tenant is one restaurant account.  The availability service reads only
// the columns it needs: the timezone settings and the sold-out reset
// bookkeeping stamp.  Everything else on the row belongs to the CRUD side
// of the platform.
//
// Schema reference
//
//	CREATE TABLE restaurant (
//	    id                      BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
//	    slug                    VARCHAR(128) NOT NULL UNIQUE,
//	    timezone                VARCHAR(64)  NOT NULL DEFAULT '',
//	    utc_offset_minutes      INT          NULL,
//	    last_sold_out_reset_at  DATETIME(6)  NULL,
//	    is_active               TINYINT(1)   NOT NULL DEFAULT 1,
//	    created_at              TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	    updated_at              TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP
//	);
//
// Notes
// -----
// • Nullable columns are pointers; callers must nil-check before use.
// • `last_sold_out_reset_at` is written in UTC.
package tenant

import (
	"time"

	"github.com/yanizio/availability/internal/clock"
)

// Record mirrors the columns of one `restaurant` row used here.
type Record struct {
	ID                 uint64     `db:"id"`
	Slug               string     `db:"slug"`
	Timezone           string     `db:"timezone"`
	UTCOffsetMinutes   *int       `db:"utc_offset_minutes"`
	LastSoldOutResetAt *time.Time `db:"last_sold_out_reset_at"`
	IsActive           bool       `db:"is_active"`
}

// Zone returns the tenant's configured timezone.
func (r Record) Zone() clock.Zone {
	return clock.Zone{Name: r.Timezone, OffsetMinutes: r.UTCOffsetMinutes}
}
