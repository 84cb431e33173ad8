// internal/menu/repository.go
//
// Menu-item query helpers.
//
// Context
// -------
//   - `SoldOutAutoResetIDs`: ids the nightly reset is allowed to clear.
//   - `ClearSoldOut`:        flips `is_sold_out` back to 0 for those ids.
//   - `PrepTimes`:           prep-minute snapshot for the estimator.
//
// Like the tenant helpers, every function takes a sqlx interface so it can
// run inside the per-tenant reset transaction.
//
// Schema reference
//
//	CREATE TABLE menu_item (
//	    id                   BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
//	    restaurant_id        BIGINT UNSIGNED NOT NULL,
//	    name                 VARCHAR(256)    NOT NULL,
//	    is_sold_out          TINYINT(1)      NOT NULL DEFAULT 0,
//	    sold_out_auto_reset  TINYINT(1)      NOT NULL DEFAULT 1,
//	    prep_time_minutes    INT             NULL,
//	    KEY idx_menu_item_sold_out (restaurant_id, is_sold_out, sold_out_auto_reset)
//	);
//
// Notes
// -----
// • Only `is_sold_out` is ever written here, and only for rows with
//   `sold_out_auto_reset = 1`.  Items that opt out are cleared by staff
//   through the CRUD side.
package menu

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// SoldOutAutoResetIDs returns ids of items under restaurantID that are sold
// out and opted into automatic reset.
func SoldOutAutoResetIDs(ctx context.Context, q sqlx.QueryerContext, restaurantID uint64) ([]uint64, error) {
	const stmt = `
        SELECT id
        FROM   menu_item
        WHERE  restaurant_id = ?
          AND  is_sold_out = TRUE
          AND  sold_out_auto_reset = TRUE
        ORDER  BY id`
	ids := make([]uint64, 0, 16)
	if err := sqlx.SelectContext(ctx, q, &ids, stmt, restaurantID); err != nil {
		return nil, err
	}
	return ids, nil
}

// ClearSoldOut sets is_sold_out = FALSE on the given ids of restaurantID
// and reports how many rows changed.  The auto-reset predicate is repeated
// in the WHERE clause so an item that opted out between the SELECT and the
// UPDATE is left alone.
func ClearSoldOut(ctx context.Context, e sqlx.ExtContext, restaurantID uint64, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	stmt, args, err := sqlx.In(`
        UPDATE menu_item
        SET    is_sold_out = FALSE
        WHERE  restaurant_id = ?
          AND  id IN (?)
          AND  is_sold_out = TRUE
          AND  sold_out_auto_reset = TRUE`, restaurantID, ids)
	if err != nil {
		return 0, err
	}

	res, err := e.ExecContext(ctx, e.Rebind(stmt), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PrepTimes returns id → prep minutes for every item of restaurantID.  A nil
// value means the item has no prep time configured.
func PrepTimes(ctx context.Context, q sqlx.QueryerContext, restaurantID uint64) (map[uint64]*int, error) {
	const stmt = `
        SELECT id, prep_time_minutes
        FROM   menu_item
        WHERE  restaurant_id = ?`
	rows := make([]struct {
		ID   uint64 `db:"id"`
		Prep *int   `db:"prep_time_minutes"`
	}, 0, 32)

	if err := sqlx.SelectContext(ctx, q, &rows, stmt, restaurantID); err != nil {
		return nil, err
	}

	out := make(map[uint64]*int, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Prep
	}
	return out, nil
}
