// cmd/web/main.go
//
// Availability service – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Bootstrap console logger so config errors are visible.
//
//  2. Build a Vault client when VAULT_ADDR is set, then load config
//     (conf/.env → conf/global.yaml → AVAIL_* env → vault: refs).
//
//  3. Start the daily rotating logger (tees to console when running in a TTY).
//
//  4. Install the OTLP tracer provider when tracing.endpoint is set.
//
//  5. Open the MySQL pool and log the active-restaurant count.
//
//  6. Build the reset driver, the menu catalog, and the HTTP components.
//
//  7. Serve:
//
//     • /internal/soldout/reset  – guarded reset trigger
//     • /api/restaurants/{id}/prep-estimate
//     • /healthz, /metrics
//
//  8. Optionally run the in-process hourly ticker.
//
//  9. On SIGHUP, reload config and apply the new log level.
//
// 10. On SIGINT/SIGTERM, stop the ticker, drain HTTP, flush traces.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	prepcomp "github.com/yanizio/availability/components/prep"
	soldoutcomp "github.com/yanizio/availability/components/soldout"
	"github.com/yanizio/availability/internal/clock"
	"github.com/yanizio/availability/internal/component"
	"github.com/yanizio/availability/internal/config"
	"github.com/yanizio/availability/internal/database"
	"github.com/yanizio/availability/internal/logger"
	"github.com/yanizio/availability/internal/menu"
	"github.com/yanizio/availability/internal/middleware"
	"github.com/yanizio/availability/internal/respond"
	"github.com/yanizio/availability/internal/scheduler"
	"github.com/yanizio/availability/internal/server"
	"github.com/yanizio/availability/internal/soldout"
	"github.com/yanizio/availability/internal/tenant"
	"github.com/yanizio/availability/internal/tracing"
	"github.com/yanizio/availability/internal/vault"
)

func main() {
	boot := logger.Bootstrap()
	if err := run(); err != nil {
		boot.Fatalw("availability service stopped", "err", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Config (with Vault when available) ──────────────────────────
	//
	var secrets config.SecretResolver
	if vault.Enabled() {
		vc, err := vault.New(ctx, zap.S())
		if err != nil {
			return err
		}
		secrets = vc
	}
	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		return err
	}

	//
	// ── 2.  Logger and tracing ──────────────────────────────────────────
	//
	log, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Level: cfg.Log.Level, Tee: logger.IsTTY()})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	shutdownTracing, err := tracing.Init(ctx, tracing.Options{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.App.Env,
		Probability: cfg.Tracing.Probability,
		Insecure:    cfg.Tracing.Insecure,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warnw("tracing shutdown", "err", err)
		}
	}()

	//
	// ── 3.  Database ────────────────────────────────────────────────────
	//
	dsn, err := cfg.Database.FullDSN()
	if err != nil {
		return err
	}
	db, err := database.OpenWithOptions(ctx, dsn, database.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		PingAttempts:    database.DefaultOptions.PingAttempts,
		PingBackoff:     database.DefaultOptions.PingBackoff,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	// Active-restaurant count as an early sanity check.
	if active, err := tenant.ListActive(ctx, db); err == nil {
		log.Infow("database online", "active_restaurants", len(active))
	} else {
		log.Warnw("database online, restaurant listing failed", "err", err)
	}

	//
	// ── 4.  Domain services ─────────────────────────────────────────────
	//
	zones := clock.NewResolver(1024)
	driver := soldout.NewDriver(soldout.NewSQLStore(db), log, soldout.Options{
		Concurrency:   cfg.Scheduler.Concurrency,
		TenantTimeout: cfg.Scheduler.TenantTimeout,
		Zones:         zones,
	})

	catalog := menu.NewCatalog(db, menu.CatalogOptions{
		TTL:        cfg.Prep.CacheTTL,
		IdleTTL:    cfg.Prep.CacheIdleTTL,
		MaxEntries: cfg.Prep.CacheMaxEntries,
	}, log)
	defer catalog.Close()

	if err := component.Register(&soldoutcomp.Component{
		Runner:     driver,
		Secret:     cfg.Trigger.Secret,
		Production: cfg.App.Production(),
		Log:        log,
	}); err != nil {
		return err
	}
	if err := component.Register(&prepcomp.Component{
		Catalog:        catalog,
		DefaultMinutes: cfg.Prep.DefaultMinutes,
		Log:            log,
	}); err != nil {
		return err
	}

	//
	// ── 5.  Router ──────────────────────────────────────────────────────
	//
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.AccessLog(log), middleware.Security)
	r.Get("/healthz", healthz(db))
	r.Handle("/metrics", promhttp.Handler())
	component.Mount(r)

	srv := server.New(cfg.HTTP.ListenAddr, otelhttp.NewHandler(r, "http"), server.Timeouts{
		Read:  cfg.HTTP.ReadTimeout,
		Write: cfg.HTTP.WriteTimeout,
		Idle:  cfg.HTTP.IdleTimeout,
	})

	//
	// ── 6.  Ticker and serve ────────────────────────────────────────────
	//
	tickerDone := make(chan struct{})
	if cfg.Scheduler.Enabled {
		go func() {
			defer close(tickerDone)
			scheduler.New(driver, cfg.Scheduler.Interval, log).Run(ctx)
		}()
	} else {
		close(tickerDone)
		log.Infow("in-process reset ticker disabled; relying on the HTTP trigger")
	}

	go reloadOnHUP(ctx, secrets, log)

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", cfg.HTTP.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			<-tickerDone
			return err
		}
	case <-ctx.Done():
	}

	log.Infow("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warnw("http shutdown", "err", err)
	}
	<-tickerDone
	return nil
}

// reloadOnHUP re-reads config on SIGHUP.  Only the log level applies
// without a restart.
func reloadOnHUP(ctx context.Context, secrets config.SecretResolver, log *zap.SugaredLogger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}
		if err := config.Reload(ctx, secrets); err != nil {
			log.Errorw("config reload failed; keeping previous config", "err", err)
			continue
		}
		if err := logger.SetLevel(config.Get().Log.Level); err != nil {
			log.Warnw("log level not applied", "err", err)
			continue
		}
		log.Infow("config reloaded", "log_level", config.Get().Log.Level)
	}
}

// healthz reports 200 when the database answers a ping.
func healthz(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			respond.Error(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
