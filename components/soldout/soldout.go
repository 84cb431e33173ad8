// components/soldout/soldout.go
//
// Sold-out reset trigger component.
//
// Context
// -------
// Exposes the reset cycle to an external scheduler (cron, Cloud Scheduler,
// an operator with curl):
//
//	POST /internal/soldout/reset?mode=smart|all
//	GET  /internal/soldout/reset?mode=smart|all
//
// The route is wrapped in the shared-secret guard, so unauthorized calls
// never start a cycle.  The response is the cycle Report as JSON.
//
// Notes
// -----
// • The cycle is detached from the request context.  A caller that hangs
//   up mid-cycle does not cancel resets that are already under way; the
//   cycle is bounded by CycleTimeout instead.
// • A failure to list tenants is 503.  Per-tenant failures still yield 200
//   with `failed` > 0 in the body.
// • Oxford commas, two spaces after periods.

package soldout

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/availability/internal/auth"
	"github.com/yanizio/availability/internal/component"
	"github.com/yanizio/availability/internal/respond"
	reset "github.com/yanizio/availability/internal/soldout"
)

// DefaultCycleTimeout bounds one HTTP-triggered cycle.
const DefaultCycleTimeout = 5 * time.Minute

// Runner runs one reset cycle.  *soldout.Driver satisfies it.
type Runner interface {
	RunCycle(ctx context.Context, mode reset.Mode) (reset.Report, error)
}

// Compile-time assertion: *Component satisfies component.Component.
var _ component.Component = (*Component)(nil)

// Component serves the reset trigger.
type Component struct {
	Runner       Runner
	Secret       string
	Production   bool
	CycleTimeout time.Duration
	Log          *zap.SugaredLogger
}

/*────────────────── component.Component methods ───────────────────────────*/

// Name returns the canonical component key.
func (c *Component) Name() string { return "soldout" }

// Pattern is the mount point.
func (c *Component) Pattern() string { return "/internal/soldout" }

// Routes builds the guarded router.
func (c *Component) Routes() chi.Router {
	if c.Log == nil {
		c.Log = zap.NewNop().Sugar()
	}
	r := chi.NewRouter()
	r.Use(auth.RequireSecret(c.Secret, c.Production, c.Log))
	r.Post("/reset", c.handleReset)
	r.Get("/reset", c.handleReset)
	return r
}

/*──────────────────────────── Handlers ─────────────────────────────────────*/

func (c *Component) handleReset(w http.ResponseWriter, r *http.Request) {
	mode, err := reset.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	timeout := c.CycleTimeout
	if timeout <= 0 {
		timeout = DefaultCycleTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), timeout)
	defer cancel()

	c.Log.Infow("reset cycle triggered", "mode", mode, "remote", r.RemoteAddr)
	rep, err := c.Runner.RunCycle(ctx, mode)
	if err != nil {
		c.Log.Errorw("reset cycle failed", "mode", mode, "err", err)
		respond.Error(w, http.StatusServiceUnavailable, "tenant store unavailable")
		return
	}
	respond.JSON(w, http.StatusOK, rep)
}
