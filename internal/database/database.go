// Package database centralises sqlx connection helpers.  The driver is
// go-sql-driver/mysql, which also works with MariaDB.
//
// Public entry points:
//
//	Open(ctx, dsn)                  – conservative pool sizes.
//	OpenWithOptions(ctx, dsn, opts) – pool tuning and boot-time retries.
//	IsTransient(err)                – deadlock and lock-wait errors worth retrying.
//
// Both helpers Ping the database before returning so callers can fail fast
// during bootstrap.  Callers should Close() the returned *sqlx.DB when no
// longer needed.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Options tunes the pool and the boot-time ping.
type Options struct {
	DriverName      string // "mysql" when empty
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingAttempts    int           // 1 when zero
	PingBackoff     time.Duration // doubled after each failed attempt
}

// DefaultOptions is 15 max open, 5 idle, and a 30-minute connection
// lifetime, with three pings one second apart.
var DefaultOptions = Options{
	MaxOpenConns:    15,
	MaxIdleConns:    5,
	ConnMaxLifetime: 30 * time.Minute,
	PingAttempts:    3,
	PingBackoff:     time.Second,
}

// Open returns a *sqlx.DB configured with DefaultOptions.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(ctx, dsn, DefaultOptions)
}

// OpenWithOptions opens a pool and pings it, retrying while the database
// comes up.  The pool is closed if every attempt fails.
func OpenWithOptions(ctx context.Context, dsn string, opts Options) (*sqlx.DB, error) {
	driver := opts.DriverName
	if driver == "" {
		driver = "mysql"
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	attempts := max(opts.PingAttempts, 1)
	wait := opts.PingBackoff
	for i := 1; ; i++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if i >= attempts || ctx.Err() != nil {
			break
		}
		zap.S().Warnw("database ping failed, retrying", "attempt", i, "wait", wait, "err", err)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
		wait *= 2
	}

	_ = db.Close()
	return nil, fmt.Errorf("database ping: %w", err)
}

// MySQL server error numbers treated as transient.
const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// IsTransient reports whether err is a lock conflict that a fresh
// transaction may not hit again.
func IsTransient(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == errDeadlock || me.Number == errLockWaitTimeout
}
