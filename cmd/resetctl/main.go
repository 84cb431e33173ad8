// cmd/resetctl/main.go
//
// One-shot operator tool for the sold-out reset.
//
// Usage
// -----
//
//	resetctl run     [-mode smart|all] [-timeout 5m]   run one cycle, print the JSON report
//	resetctl preview [-mode smart|all] [-at RFC3339]   list who a cycle would reset, write nothing
//
// Config, Vault, and the database come from the same layers as cmd/web.
// `run` exits 1 when any tenant failed, so cron wrappers can alert on it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/availability/internal/config"
	"github.com/yanizio/availability/internal/database"
	"github.com/yanizio/availability/internal/logger"
	"github.com/yanizio/availability/internal/soldout"
	"github.com/yanizio/availability/internal/vault"
)

func main() {
	log := logger.Bootstrap()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, log); err != nil {
		log.Errorw("resetctl", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, log *zap.SugaredLogger) error {
	if len(args) < 1 {
		fmt.Fprintln(out, "Usage: resetctl <command> [flags]")
		fmt.Fprintln(out, "Commands: run, preview")
		return nil
	}

	switch args[0] {
	case "run":
		return runCycle(ctx, args[1:], out, log)
	case "preview":
		return runPreview(ctx, args[1:], out, log)
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func runCycle(ctx context.Context, args []string, out io.Writer, log *zap.SugaredLogger) error {
	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	modeStr := cmd.String("mode", "smart", "Cycle mode (smart, all)")
	timeout := cmd.Duration("timeout", 5*time.Minute, "Upper bound for the whole cycle")
	if err := cmd.Parse(args); err != nil {
		return err
	}
	mode, err := soldout.ParseMode(*modeStr)
	if err != nil {
		return err
	}

	driver, closeDB, err := buildDriver(ctx, log)
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	rep, err := driver.RunCycle(ctx, mode)
	if err != nil {
		return err
	}
	if err := writeJSON(out, rep); err != nil {
		return err
	}
	if rep.Failed > 0 {
		return fmt.Errorf("%d tenant(s) failed", rep.Failed)
	}
	return nil
}

func runPreview(ctx context.Context, args []string, out io.Writer, log *zap.SugaredLogger) error {
	cmd := flag.NewFlagSet("preview", flag.ContinueOnError)
	modeStr := cmd.String("mode", "smart", "Cycle mode (smart, all)")
	atStr := cmd.String("at", "", "Evaluate at this RFC3339 instant instead of now")
	if err := cmd.Parse(args); err != nil {
		return err
	}
	mode, err := soldout.ParseMode(*modeStr)
	if err != nil {
		return err
	}
	at := time.Now()
	if *atStr != "" {
		if at, err = time.Parse(time.RFC3339, *atStr); err != nil {
			return fmt.Errorf("invalid -at: %w", err)
		}
	}

	driver, closeDB, err := buildDriver(ctx, log)
	if err != nil {
		return err
	}
	defer closeDB()

	results, err := driver.Preview(ctx, mode, at)
	if err != nil {
		return err
	}
	return writeJSON(out, results)
}

// buildDriver loads config and opens the pool.
func buildDriver(ctx context.Context, log *zap.SugaredLogger) (*soldout.Driver, func(), error) {
	var secrets config.SecretResolver
	if vault.Enabled() {
		vc, err := vault.New(ctx, log)
		if err != nil {
			return nil, nil, err
		}
		secrets = vc
	}
	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		return nil, nil, err
	}
	lvl, err := logger.ParseLevel(cfg.Log.Level)
	if err == nil {
		log = log.Desugar().WithOptions(zap.IncreaseLevel(lvl)).Sugar()
	}

	dsn, err := cfg.Database.FullDSN()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.OpenWithOptions(ctx, dsn, database.Options{
		MaxOpenConns:    cfg.Scheduler.Concurrency + 1,
		MaxIdleConns:    cfg.Scheduler.Concurrency,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		PingAttempts:    1,
	})
	if err != nil {
		return nil, nil, err
	}

	driver := soldout.NewDriver(soldout.NewSQLStore(db), log, soldout.Options{
		Concurrency:   cfg.Scheduler.Concurrency,
		TenantTimeout: cfg.Scheduler.TenantTimeout,
	})
	return driver, func() { _ = db.Close() }, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
