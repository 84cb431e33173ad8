// internal/soldout/store_test.go
//
// Executor over SQLStore against sqlmock: statement order inside the
// transaction, and rollback when a write fails.
//
// Run: go test ./internal/soldout -run SQL -v

package soldout

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

var restaurantCols = []string{"id", "slug", "timezone", "utc_offset_minutes", "last_sold_out_reset_at", "is_active"}

const (
	lockSQL   = `FROM restaurant WHERE id = ? FOR UPDATE`
	selectSQL = `SELECT id FROM menu_item WHERE restaurant_id = ? AND is_sold_out = TRUE AND sold_out_auto_reset = TRUE ORDER BY id`
	clearSQL  = `UPDATE menu_item SET is_sold_out = FALSE WHERE restaurant_id = ? AND id IN (?, ?)`
	stampSQL  = `UPDATE restaurant SET last_sold_out_reset_at = ? WHERE id = ?`
)

func newSQLExecutor(t *testing.T) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewExecutor(NewSQLStore(sqlx.NewDb(db, "sqlmock")), nil, nil), mock
}

func TestSQLStore_ResetCommits(t *testing.T) {
	exec, mock := newSQLExecutor(t)
	now := time.Date(2025, 6, 2, 0, 3, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockSQL)).WithArgs(7).
		WillReturnRows(sqlmock.NewRows(restaurantCols).AddRow(7, "deli", "UTC", nil, yesterday, true))
	mock.ExpectQuery(regexp.QuoteMeta(selectSQL)).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta(clearSQL)).WithArgs(7, 3, 4).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(stampSQL)).WithArgs(sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	out, err := exec.ResetTenant(context.Background(), 7, ModeSmart, now)
	if err != nil {
		t.Fatalf("ResetTenant: %v", err)
	}
	if out.Reset != 2 || out.Skipped {
		t.Fatalf("outcome = %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestSQLStore_FailedClearRollsBack(t *testing.T) {
	exec, mock := newSQLExecutor(t)
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockSQL)).WithArgs(7).
		WillReturnRows(sqlmock.NewRows(restaurantCols).AddRow(7, "deli", "UTC", nil, nil, true))
	mock.ExpectQuery(regexp.QuoteMeta(selectSQL)).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta(clearSQL)).WithArgs(7, 3, 4).
		WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	_, err := exec.ResetTenant(context.Background(), 7, ModeAll, now)
	if !errors.Is(err, ErrPartialCommit) {
		t.Fatalf("err = %v, want ErrPartialCommit", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestSQLStore_NotDueUnderLockWritesNothing(t *testing.T) {
	exec, mock := newSQLExecutor(t)
	now := time.Date(2025, 6, 2, 0, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockSQL)).WithArgs(7).
		WillReturnRows(sqlmock.NewRows(restaurantCols).AddRow(7, "deli", "UTC", nil, now.Add(-time.Minute), true))
	mock.ExpectRollback()

	out, err := exec.ResetTenant(context.Background(), 7, ModeSmart, now)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Skipped || out.Reason != ReasonAlreadyReset {
		t.Fatalf("outcome = %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestSQLStore_BeginFails(t *testing.T) {
	exec, mock := newSQLExecutor(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	_, err := exec.ResetTenant(context.Background(), 7, ModeAll, time.Now())
	if !errors.Is(err, ErrTenantStoreUnavailable) {
		t.Fatalf("err = %v, want ErrTenantStoreUnavailable", err)
	}
}

func TestSQLStore_DeadlockRetriedOnce(t *testing.T) {
	exec, mock := newSQLExecutor(t)
	now := time.Date(2025, 6, 2, 0, 3, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockSQL)).WithArgs(7).
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockSQL)).WithArgs(7).
		WillReturnRows(sqlmock.NewRows(restaurantCols).AddRow(7, "deli", "UTC", nil, nil, true))
	mock.ExpectQuery(regexp.QuoteMeta(selectSQL)).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta(stampSQL)).WithArgs(sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	out, err := exec.ResetTenant(context.Background(), 7, ModeSmart, now)
	if err != nil {
		t.Fatalf("ResetTenant: %v", err)
	}
	if out.Skipped || out.Reset != 0 {
		t.Fatalf("outcome = %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}
