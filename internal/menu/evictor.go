// evictor.go houses the eviction loop for Catalog.  Every interval it scans
// the map and removes:
//
//   - snapshots idle longer than idleTTL
//   - least-recently-used snapshots when map size exceeds maxEntries
//
// Each eviction event is logged and updates Prometheus counters.
package menu

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/yanizio/availability/internal/metrics"
)

func (c *Catalog) evictLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			c.evict()
		}
	}
}

// evict runs one idle pass followed by one LRU pass.
func (c *Catalog) evict() {
	now := c.now().UnixNano()
	var count int

	// ----------------------------------------------------------------
	// Idle eviction pass
	// ----------------------------------------------------------------
	c.m.Range(func(key, value any) bool {
		ent := value.(*entry)
		idle := time.Duration(now - atomic.LoadInt64(&ent.lastSeen))
		if idle > c.idleTTL {
			if c.m.CompareAndDelete(key, value) {
				c.log.Debugw("prep catalog evicted", "restaurant_id", key, "idle", idle.Truncate(time.Second))
				metrics.CatalogEvictTotal.Inc()
				metrics.CatalogEntries.Dec()
			}
			return true
		}
		count++
		return true
	})

	// ----------------------------------------------------------------
	// LRU eviction pass
	// ----------------------------------------------------------------
	if c.maxEntries <= 0 || count <= c.maxEntries {
		return
	}
	type kv struct {
		key uint64
		ent *entry
		at  int64
	}
	all := make([]kv, 0, count)
	c.m.Range(func(key, value any) bool {
		ent := value.(*entry)
		all = append(all, kv{key: key.(uint64), ent: ent, at: atomic.LoadInt64(&ent.lastSeen)})
		return true
	})
	sort.Slice(all, func(i, j int) bool { return all[i].at < all[j].at })
	for i := 0; i < len(all)-c.maxEntries; i++ {
		if c.m.CompareAndDelete(all[i].key, all[i].ent) {
			c.log.Debugw("prep catalog evicted (LRU pressure)", "restaurant_id", all[i].key)
			metrics.CatalogEvictTotal.Inc()
			metrics.CatalogEntries.Dec()
		}
	}
}
