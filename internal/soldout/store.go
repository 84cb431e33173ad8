// internal/soldout/store.go
//
// Persistence contract for the reset cycle, plus its MySQL binding.
//
// Context
// -------
// The executor needs the tenant store and the menu-item store inside one
// transaction, so the contract is shaped as Store → Begin → Tx.  SQLStore
// binds it to the `restaurant` and `menu_item` helpers over one *sqlx.DB;
// tests substitute an in-memory fake.
package soldout

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/availability/internal/menu"
	"github.com/yanizio/availability/internal/tenant"
)

// Store enumerates tenants and opens per-tenant transactions.
type Store interface {
	ActiveTenants(ctx context.Context) ([]tenant.Record, error)
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one tenant's atomic reset unit.  Rollback after Commit is a no-op.
type Tx interface {
	TenantForUpdate(ctx context.Context, tenantID uint64) (tenant.Record, error)
	SoldOutAutoResetIDs(ctx context.Context, tenantID uint64) ([]uint64, error)
	ClearSoldOut(ctx context.Context, tenantID uint64, ids []uint64) (int64, error)
	MarkSoldOutReset(ctx context.Context, tenantID uint64, at time.Time) error
	Commit() error
	Rollback() error
}

// SQLStore implements Store on MySQL.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps db.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// ActiveTenants lists active restaurants.
func (s *SQLStore) ActiveTenants(ctx context.Context) ([]tenant.Record, error) {
	return tenant.ListActive(ctx, s.db)
}

// Begin starts a transaction on the pool.
func (s *SQLStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

type sqlTx struct {
	tx *sqlx.Tx
}

func (t *sqlTx) TenantForUpdate(ctx context.Context, tenantID uint64) (tenant.Record, error) {
	return tenant.ByIDForUpdate(ctx, t.tx, tenantID)
}

func (t *sqlTx) SoldOutAutoResetIDs(ctx context.Context, tenantID uint64) ([]uint64, error) {
	return menu.SoldOutAutoResetIDs(ctx, t.tx, tenantID)
}

func (t *sqlTx) ClearSoldOut(ctx context.Context, tenantID uint64, ids []uint64) (int64, error) {
	return menu.ClearSoldOut(ctx, t.tx, tenantID, ids)
}

func (t *sqlTx) MarkSoldOutReset(ctx context.Context, tenantID uint64, at time.Time) error {
	return tenant.MarkSoldOutReset(ctx, t.tx, tenantID, at)
}

func (t *sqlTx) Commit() error { return t.tx.Commit() }

func (t *sqlTx) Rollback() error { return t.tx.Rollback() }
