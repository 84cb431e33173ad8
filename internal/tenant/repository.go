// internal/tenant/repository.go
//
// Restaurant-table query helpers.
//
// Context
// -------
// These helpers cover the questions the reset cycle asks of the tenant
// store:
//
//   - `ListActive`:       which restaurants take part in this tick?
//   - `ByIDForUpdate`:    lock one row inside the reset transaction.
//   - `MarkSoldOutReset`: stamp the bookkeeping timestamp.
//
// Each helper accepts a sqlx interface rather than *sqlx.DB so the same
// code runs on the pool or inside a *sqlx.Tx.
//
// Notes
// -----
//   - Column list matches the fields in `Record`; update both together.
//   - Errors are returned verbatim, except sql.ErrNoRows which maps to
//     ErrNotFound.
package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a restaurant id is not present.
var ErrNotFound = errors.New("tenant not found")

const columns = `id, slug, timezone, utc_offset_minutes, last_sold_out_reset_at, is_active`

// ListActive returns every active restaurant ordered by id.
func ListActive(ctx context.Context, q sqlx.QueryerContext) ([]Record, error) {
	const stmt = `
        SELECT ` + columns + `
        FROM   restaurant
        WHERE  is_active = TRUE
        ORDER  BY id`
	var rows []Record
	if err := sqlx.SelectContext(ctx, q, &rows, stmt); err != nil {
		return nil, err
	}
	return rows, nil
}

// ByID fetches one restaurant row.
func ByID(ctx context.Context, q sqlx.QueryerContext, id uint64) (Record, error) {
	const stmt = `
        SELECT ` + columns + `
        FROM   restaurant
        WHERE  id = ?
        LIMIT  1`
	return get(ctx, q, stmt, id)
}

// ByIDForUpdate fetches one restaurant row and holds a row lock until the
// surrounding transaction ends.  Only meaningful on a *sqlx.Tx.
func ByIDForUpdate(ctx context.Context, q sqlx.QueryerContext, id uint64) (Record, error) {
	const stmt = `
        SELECT ` + columns + `
        FROM   restaurant
        WHERE  id = ?
        FOR    UPDATE`
	return get(ctx, q, stmt, id)
}

// MarkSoldOutReset stamps last_sold_out_reset_at for one restaurant.
func MarkSoldOutReset(ctx context.Context, e sqlx.ExecerContext, id uint64, at time.Time) error {
	const stmt = `
        UPDATE restaurant
        SET    last_sold_out_reset_at = ?
        WHERE  id = ?`
	_, err := e.ExecContext(ctx, stmt, at.UTC(), id)
	return err
}

func get(ctx context.Context, q sqlx.QueryerContext, stmt string, id uint64) (Record, error) {
	var rec Record
	if err := sqlx.GetContext(ctx, q, &rec, stmt, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, fmt.Errorf("restaurant %d: %w", id, ErrNotFound)
		}
		return Record{}, err
	}
	return rec, nil
}
