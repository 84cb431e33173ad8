// internal/menu/catalog.go
//
// Per-restaurant prep-time catalog.
//
// Context
// -------
// The order path asks for prep minutes on every submission.  Rather than
// hitting `menu_item` each time, the Catalog lazily loads one snapshot per
// restaurant, keeps it in a sync.Map, and refreshes it once it is older
// than the TTL.  Concurrent misses for the same restaurant collapse into a
// single query through singleflight.  A background loop evicts snapshots
// that sat idle too long or that overflow MaxEntries (see evictor.go).
//
// Notes
// -----
// • Snapshots are immutable after load; callers get a fresh sub-map.
// • A shared load runs detached from the caller that started it, bounded
//   by LoadTimeout, so one cancelled request does not fail its waiters.
// • Staff edits to prep times show up after at most TTL, or immediately
//   after Invalidate.
package menu

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/availability/internal/metrics"
	"github.com/yanizio/availability/internal/tenant"
)

// Static defaults used when CatalogOptions leaves a field zero.
const (
	DefaultTTL         = 5 * time.Minute
	DefaultIdleTTL     = 30 * time.Minute
	DefaultMaxEntries  = 500
	DefaultLoadTimeout = 5 * time.Second
	EvictInterval      = time.Minute
)

// CatalogOptions tunes cache lifetimes.
type CatalogOptions struct {
	TTL         time.Duration // snapshot freshness
	IdleTTL     time.Duration // evict after this long without a hit
	MaxEntries  int           // LRU bound; 0 disables
	LoadTimeout time.Duration // bound on one shared snapshot load
}

// loader fetches one restaurant's snapshot.
type loader func(ctx context.Context, restaurantID uint64) (map[uint64]*int, error)

type entry struct {
	prep     map[uint64]*int
	loadedAt int64 // UnixNano
	lastSeen int64 // UnixNano, atomic
}

// Catalog caches prep-time snapshots keyed by restaurant id.
type Catalog struct {
	load        loader
	sfg         singleflight.Group
	m           sync.Map // uint64 → *entry
	ttl         time.Duration
	idleTTL     time.Duration
	maxEntries  int
	loadTimeout time.Duration
	log         *zap.SugaredLogger
	now         func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewCatalog constructs a Catalog backed by db and starts the evictor.
// Call Close to stop it.  Loading a restaurant id that does not exist fails
// with tenant.ErrNotFound.
func NewCatalog(db *sqlx.DB, opts CatalogOptions, log *zap.SugaredLogger) *Catalog {
	c := newCatalog(func(ctx context.Context, id uint64) (map[uint64]*int, error) {
		if _, err := tenant.ByID(ctx, db, id); err != nil {
			return nil, err
		}
		return PrepTimes(ctx, db, id)
	}, opts, log)
	go c.evictLoop(EvictInterval)
	return c
}

func newCatalog(load loader, opts CatalogOptions, log *zap.SugaredLogger) *Catalog {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Catalog{
		load:        load,
		ttl:         opts.TTL,
		idleTTL:     opts.IdleTTL,
		maxEntries:  opts.MaxEntries,
		loadTimeout: opts.LoadTimeout,
		log:         log,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
}

// PrepTimes returns the prep minutes for ids under restaurantID.  Ids that
// do not exist on the menu are absent from the result; ids with no prep
// time configured map to nil.
func (c *Catalog) PrepTimes(ctx context.Context, restaurantID uint64, ids []uint64) (map[uint64]*int, error) {
	snap, err := c.snapshot(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]*int, len(ids))
	for _, id := range ids {
		if v, ok := snap[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

// Invalidate drops the cached snapshot for restaurantID.
func (c *Catalog) Invalidate(restaurantID uint64) {
	if _, ok := c.m.LoadAndDelete(restaurantID); ok {
		metrics.CatalogEntries.Dec()
	}
}

// Close stops the background evictor.  Safe to call more than once.
func (c *Catalog) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Catalog) snapshot(ctx context.Context, restaurantID uint64) (map[uint64]*int, error) {
	if ent, ok := c.fresh(restaurantID); ok {
		return ent.prep, nil
	}

	// The shared load outlives any single caller; each caller still stops
	// waiting when its own ctx ends.
	ch := c.sfg.DoChan(strconv.FormatUint(restaurantID, 10), func() (any, error) {
		// Double-check after singleflight barrier.
		if ent, ok := c.fresh(restaurantID); ok {
			return ent.prep, nil
		}
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		prep, err := c.load(lctx, restaurantID)
		if err != nil {
			metrics.CatalogLoadErrorsTotal.Inc()
			return nil, err
		}
		now := c.now().UnixNano()
		if _, loaded := c.m.Swap(restaurantID, &entry{prep: prep, loadedAt: now, lastSeen: now}); !loaded {
			metrics.CatalogEntries.Inc()
		}
		metrics.CatalogLoadTotal.Inc()
		c.log.Debugw("prep catalog loaded", "restaurant_id", restaurantID, "items", len(prep))
		return prep, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[uint64]*int), nil
	}
}

func (c *Catalog) fresh(restaurantID uint64) (*entry, bool) {
	v, ok := c.m.Load(restaurantID)
	if !ok {
		return nil, false
	}
	ent := v.(*entry)
	now := c.now().UnixNano()
	if time.Duration(now-ent.loadedAt) > c.ttl {
		return nil, false
	}
	atomic.StoreInt64(&ent.lastSeen, now)
	return ent, true
}
