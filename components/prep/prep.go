// components/prep/prep.go
//
// Prep-time estimate component.
//
// Context
// -------
// The order-creation flow asks for a promised ready time before it commits
// an order:
//
//	POST /api/restaurants/{restaurantID}/prep-estimate
//	{"items": [{"menu_item_id": 12, "quantity": 2}], "start": "2025-06-01T18:45:00Z"}
//
//	200 {"restaurant_id": 7, "minutes": 17, "ready_at": "2025-06-01T19:02:00Z"}
//
// Per-line prep times come from the request override, then the cached menu
// catalog, then the configured default.  `start` is optional; the server
// clock is used when it is absent.
//
// Notes
// -----
// • Malformed JSON is 400; a structurally valid order with bad lines
//   (quantity < 1, missing item id, negative override) is 422.
// • An unknown restaurant is 404 once the catalog has to be consulted.
// • If the catalog cannot be loaded the estimate still succeeds on
//   defaults and overrides, flagged `degraded` in the response.
// • Oxford commas, two spaces after periods.

package prep

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"
	"go.uber.org/zap"

	"github.com/yanizio/availability/internal/component"
	estimator "github.com/yanizio/availability/internal/prep"
	"github.com/yanizio/availability/internal/respond"
	"github.com/yanizio/availability/internal/tenant"
)

// maxBody caps the request body.
const maxBody = 64 << 10

// PrepTimeSource resolves menu prep times.  *menu.Catalog satisfies it.
type PrepTimeSource interface {
	PrepTimes(ctx context.Context, restaurantID uint64, ids []uint64) (map[uint64]*int, error)
}

// Compile-time assertion: *Component satisfies component.Component.
var _ component.Component = (*Component)(nil)

// Component serves prep estimates.
type Component struct {
	Catalog        PrepTimeSource
	DefaultMinutes int
	Log            *zap.SugaredLogger

	validate *validator.Validate
	trans    ut.Translator
}

type lineRequest struct {
	MenuItemID      uint64 `json:"menu_item_id"`
	Quantity        int    `json:"quantity"`
	PrepTimeMinutes *int   `json:"prep_time_minutes,omitempty"`
}

type estimateRequest struct {
	Items []lineRequest `json:"items" validate:"max=200"`
	Start *time.Time    `json:"start,omitempty"`
}

type estimateResponse struct {
	RestaurantID uint64    `json:"restaurant_id"`
	Minutes      int       `json:"minutes"`
	ReadyAt      time.Time `json:"ready_at"`
	Degraded     bool      `json:"degraded,omitempty"`
}

/*────────────────── component.Component methods ───────────────────────────*/

// Name returns the canonical component key.
func (c *Component) Name() string { return "prep" }

// Pattern is the mount point.
func (c *Component) Pattern() string { return "/api/restaurants" }

// Routes builds the router.
func (c *Component) Routes() chi.Router {
	if c.Log == nil {
		c.Log = zap.NewNop().Sugar()
	}
	c.validate = validator.New()
	c.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	eng := en.New()
	c.trans, _ = ut.New(eng, eng).GetTranslator("en")
	if err := entrans.RegisterDefaultTranslations(c.validate, c.trans); err != nil {
		c.Log.Warnw("validator translations unavailable", "err", err)
	}

	r := chi.NewRouter()
	r.Post("/{restaurantID}/prep-estimate", c.handleEstimate)
	return r
}

/*──────────────────────────── Handlers ─────────────────────────────────────*/

func (c *Component) handleEstimate(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := strconv.ParseUint(chi.URLParam(r, "restaurantID"), 10, 64)
	if err != nil || restaurantID == 0 {
		respond.Error(w, http.StatusBadRequest, "invalid restaurant id")
		return
	}

	var req estimateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := c.validate.Struct(req); err != nil {
		body := respond.ErrorBody{Error: "invalid order"}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			body.Fields = verrs.Translate(c.trans)
		}
		respond.JSON(w, http.StatusUnprocessableEntity, body)
		return
	}

	items := make([]estimator.Item, len(req.Items))
	ids := make([]uint64, 0, len(req.Items))
	for i, l := range req.Items {
		items[i] = estimator.Item{MenuItemID: l.MenuItemID, Quantity: l.Quantity, PrepTimeMinutes: l.PrepTimeMinutes}
		if l.PrepTimeMinutes == nil {
			ids = append(ids, l.MenuItemID)
		}
	}
	if err := estimator.Validate(items); err != nil {
		if errors.Is(err, estimator.ErrInvalidOrderItem) {
			respond.Error(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respond.Error(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	resp := estimateResponse{RestaurantID: restaurantID}

	var prepTimes map[uint64]*int
	if len(ids) > 0 {
		prepTimes, err = c.Catalog.PrepTimes(r.Context(), restaurantID, ids)
		if errors.Is(err, tenant.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "restaurant not found")
			return
		}
		if err != nil {
			c.Log.Warnw("menu prep times unavailable, using defaults", "restaurant_id", restaurantID, "err", err)
			resp.Degraded = true
		}
	}

	resp.Minutes = estimator.EstimateWithLookup(items, prepTimes, c.DefaultMinutes)
	resp.ReadyAt = estimator.ReadyTimeFrom(resp.Minutes, req.Start).UTC()
	respond.JSON(w, http.StatusOK, resp)
}
