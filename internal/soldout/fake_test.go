package soldout

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/yanizio/availability/internal/tenant"
)

// memItem is one menu_item row in the in-memory store.
type memItem struct {
	ID        uint64
	SoldOut   bool
	AutoReset bool
}

// memStore is an in-memory Store.  Each tenant row has its own lock held
// from TenantForUpdate until Commit or Rollback; writes are staged on the
// transaction and applied at Commit.
type memStore struct {
	mu      sync.Mutex
	tenants map[uint64]tenant.Record
	items   map[uint64][]*memItem
	rows    map[uint64]*sync.Mutex
	resets  map[uint64][]time.Time // committed stamps per tenant

	listErr error
	failAt  map[uint64]string // tenant → step that errors
}

func newMemStore() *memStore {
	return &memStore{
		tenants: map[uint64]tenant.Record{},
		items:   map[uint64][]*memItem{},
		rows:    map[uint64]*sync.Mutex{},
		resets:  map[uint64][]time.Time{},
		failAt:  map[uint64]string{},
	}
}

func (m *memStore) addTenant(r tenant.Record, items ...memItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[r.ID] = r
	m.rows[r.ID] = &sync.Mutex{}
	for i := range items {
		it := items[i]
		m.items[r.ID] = append(m.items[r.ID], &it)
	}
}

// markAllSoldOut simulates staff selling out every item again.
func (m *memStore) markAllSoldOut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, list := range m.items {
		for _, it := range list {
			it.SoldOut = true
		}
	}
}

func (m *memStore) soldOut(tenantID, itemID uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items[tenantID] {
		if it.ID == itemID {
			return it.SoldOut
		}
	}
	return false
}

func (m *memStore) resetCount(tenantID uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resets[tenantID])
}

func (m *memStore) record(tenantID uint64) tenant.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tenants[tenantID]
}

func (m *memStore) ActiveTenants(ctx context.Context) ([]tenant.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]tenant.Record, 0, len(m.tenants))
	for _, r := range m.tenants {
		if r.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) Begin(ctx context.Context) (Tx, error) {
	return &memTx{m: m}, nil
}

func (m *memStore) fail(tenantID uint64, step string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAt[tenantID] == step {
		return errors.New(step + " failed")
	}
	return nil
}

type memTx struct {
	m        *memStore
	tenantID uint64
	locked   bool
	done     bool
	clear    []uint64
	stamp    *time.Time
}

func (t *memTx) TenantForUpdate(ctx context.Context, tenantID uint64) (tenant.Record, error) {
	if err := t.m.fail(tenantID, "lock"); err != nil {
		return tenant.Record{}, err
	}
	t.m.mu.Lock()
	row, ok := t.m.rows[tenantID]
	t.m.mu.Unlock()
	if !ok {
		return tenant.Record{}, tenant.ErrNotFound
	}
	row.Lock()
	t.tenantID, t.locked = tenantID, true
	return t.m.record(tenantID), nil
}

func (t *memTx) SoldOutAutoResetIDs(ctx context.Context, tenantID uint64) ([]uint64, error) {
	if err := t.m.fail(tenantID, "select"); err != nil {
		return nil, err
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	var ids []uint64
	for _, it := range t.m.items[tenantID] {
		if it.SoldOut && it.AutoReset {
			ids = append(ids, it.ID)
		}
	}
	return ids, nil
}

func (t *memTx) ClearSoldOut(ctx context.Context, tenantID uint64, ids []uint64) (int64, error) {
	if err := t.m.fail(tenantID, "clear"); err != nil {
		return 0, err
	}
	t.clear = append(t.clear, ids...)
	return int64(len(ids)), nil
}

func (t *memTx) MarkSoldOutReset(ctx context.Context, tenantID uint64, at time.Time) error {
	if err := t.m.fail(tenantID, "stamp"); err != nil {
		return err
	}
	at = at.UTC()
	t.stamp = &at
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return errors.New("tx done")
	}
	if err := t.m.fail(t.tenantID, "commit"); err != nil {
		return err
	}
	t.m.mu.Lock()
	want := make(map[uint64]bool, len(t.clear))
	for _, id := range t.clear {
		want[id] = true
	}
	for _, it := range t.m.items[t.tenantID] {
		if want[it.ID] && it.AutoReset {
			it.SoldOut = false
		}
	}
	if t.stamp != nil {
		r := t.m.tenants[t.tenantID]
		r.LastSoldOutResetAt = t.stamp
		t.m.tenants[t.tenantID] = r
		t.m.resets[t.tenantID] = append(t.m.resets[t.tenantID], *t.stamp)
	}
	t.m.mu.Unlock()
	t.finish()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *memTx) finish() {
	t.done = true
	if t.locked {
		t.m.mu.Lock()
		row := t.m.rows[t.tenantID]
		t.m.mu.Unlock()
		row.Unlock()
		t.locked = false
	}
}
