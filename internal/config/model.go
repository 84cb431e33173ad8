// internal/config/model.go
//
// Typed configuration model for the availability service.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                         – dotenv values,
//   • `conf/global.yaml`                      – primary static file,
//   • `AVAIL_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *before* unmarshalling, so the model never
// stores Vault URIs, only plain strings.
//
// Defaults() pre-fills every tunable; YAML and env only override what they
// set.  Validation happens immediately after unmarshal; the app fails fast
// if required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • Durations accept Go syntax ("90s", "1h").
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

//
// App section
//

// App identifies the deployment.
type App struct {
	Env  string `koanf:"env"  validate:"oneof=development staging production"`
	Name string `koanf:"name" validate:"required"`
}

// Production reports whether the service runs with production guards.
func (a App) Production() bool { return a.Env == "production" }

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr      string        `koanf:"listen_addr"      validate:"required,hostname_port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

//
// Database section
//

// Database holds the DSN template and its secret.
//
// The *template* (`DSN`) is kept in YAML so operators can tweak host, port,
// or flags without touching Vault.  The *secret* (`Password`) usually
// arrives as a `vault:` reference and is injected by FullDSN.
type Database struct {
	DSN             string        `koanf:"dsn"               validate:"required"`
	Password        string        `koanf:"password"`
	MaxOpenConns    int           `koanf:"max_open_conns"    validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns"    validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"min=0"`
}

// FullDSN returns DSN with Password injected and the flags this service
// depends on forced: parseTime for DATETIME scanning, UTC session location.
func (d Database) FullDSN() (string, error) {
	mc, err := mysql.ParseDSN(d.DSN)
	if err != nil {
		return "", fmt.Errorf("database dsn: %w", err)
	}
	if d.Password != "" {
		mc.Passwd = d.Password
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN(), nil
}

//
// Log section
//

// Log tunes the zap logger.
type Log struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	Dir   string `koanf:"dir"` // empty means <root>/logs
}

//
// Scheduler section
//

// Scheduler drives the in-process reset ticker and the cycle fan-out.
type Scheduler struct {
	Enabled       bool          `koanf:"enabled"`
	Interval      time.Duration `koanf:"interval"       validate:"gte=1m"`
	Concurrency   int           `koanf:"concurrency"    validate:"min=1,max=64"`
	TenantTimeout time.Duration `koanf:"tenant_timeout" validate:"gt=0"`
}

//
// Trigger section
//

// Trigger guards the HTTP reset endpoint.
type Trigger struct {
	Secret string `koanf:"secret"`
}

//
// Prep section
//

// Prep tunes the prep-time estimator and its menu cache.
type Prep struct {
	DefaultMinutes  int           `koanf:"default_minutes"   validate:"min=0"`
	CacheTTL        time.Duration `koanf:"cache_ttl"         validate:"gt=0"`
	CacheIdleTTL    time.Duration `koanf:"cache_idle_ttl"    validate:"gt=0"`
	CacheMaxEntries int           `koanf:"cache_max_entries" validate:"min=1"`
}

//
// Tracing section
//

// Tracing configures the OTLP exporter.  An empty Endpoint disables export.
type Tracing struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Probability float64 `koanf:"probability" validate:"min=0,max=1"`
	Insecure    bool    `koanf:"insecure"` // plaintext gRPC to a local collector
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // AVAIL_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	App       App       `koanf:"app"`
	HTTP      HTTP      `koanf:"http"`
	Database  Database  `koanf:"database"`
	Log       Log       `koanf:"log"`
	Scheduler Scheduler `koanf:"scheduler"`
	Trigger   Trigger   `koanf:"trigger"`
	Prep      Prep      `koanf:"prep"`
	Tracing   Tracing   `koanf:"tracing"`
	Paths     Paths     `koanf:"-"`
}

// Defaults returns the baseline every layer overrides.
func Defaults() Config {
	return Config{
		App: App{Env: "development", Name: "availability"},
		HTTP: HTTP{
			ListenAddr:      ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: Database{
			MaxOpenConns:    15,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Log: Log{Level: "info"},
		Scheduler: Scheduler{
			Interval:      time.Hour,
			Concurrency:   4,
			TenantTimeout: 30 * time.Second,
		},
		Prep: Prep{
			DefaultMinutes:  10,
			CacheTTL:        5 * time.Minute,
			CacheIdleTTL:    30 * time.Minute,
			CacheMaxEntries: 500,
		},
		Tracing: Tracing{ServiceName: "availability", Probability: 1},
	}
}
