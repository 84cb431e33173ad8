package soldout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yanizio/availability/internal/clock"
	"github.com/yanizio/availability/internal/tenant"
)

func intPtr(v int) *int { return &v }

func stdItems() []memItem {
	return []memItem{
		{ID: 1, SoldOut: true, AutoReset: true},
		{ID: 2, SoldOut: true, AutoReset: false},
		{ID: 3, SoldOut: false, AutoReset: true},
	}
}

func newDriver(s Store) *Driver {
	return NewDriver(s, nil, Options{Concurrency: 3, TenantTimeout: time.Second})
}

func TestRunCycle_OneResetPerLocalDay(t *testing.T) {
	zones := []tenant.Record{
		{ID: 1, Slug: "utc", Timezone: "UTC"},
		{ID: 2, Slug: "nyc", Timezone: "America/New_York"},
		{ID: 3, Slug: "kolkata", Timezone: "Asia/Kolkata"},
		{ID: 4, Slug: "auckland", Timezone: "Pacific/Auckland"},
		{ID: 5, Slug: "kathmandu-offset", UTCOffsetMinutes: intPtr(345)},
		{ID: 6, Slug: "chatham", Timezone: "Pacific/Chatham"},
	}
	s := newMemStore()
	for _, r := range zones {
		r.IsActive = true
		s.addTenant(r, stdItems()...)
	}
	d := newDriver(s)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for h := 0; h < 48; h++ {
		s.markAllSoldOut()
		if _, err := d.RunCycleAt(context.Background(), ModeSmart, start.Add(time.Duration(h)*time.Hour)); err != nil {
			t.Fatalf("tick %d: %v", h, err)
		}
		for _, r := range zones {
			if !s.soldOut(r.ID, 2) {
				t.Fatalf("tick %d: %s opted-out item 2 was cleared", h, r.Slug)
			}
		}
	}

	res := clock.NewResolver(8)
	for _, r := range zones {
		if !s.soldOut(r.ID, 2) {
			t.Errorf("%s: opted-out item 2 cleared by a smart cycle", r.Slug)
		}
		if n := s.resetCount(r.ID); n != 2 {
			t.Errorf("%s: %d resets in 48 hourly ticks, want 2", r.Slug, n)
			continue
		}
		loc, err := res.Location(r.Zone())
		if err != nil {
			t.Fatalf("%s: %v", r.Slug, err)
		}
		s.mu.Lock()
		stamps := append([]time.Time(nil), s.resets[r.ID]...)
		s.mu.Unlock()
		for _, st := range stamps {
			if h := st.In(loc).Hour(); h != 0 {
				t.Errorf("%s: reset at local hour %d, want 0", r.Slug, h)
			}
		}
		if gap := stamps[1].Sub(stamps[0]); gap != 24*time.Hour {
			t.Errorf("%s: resets %v apart, want 24h", r.Slug, gap)
		}
	}
}

func TestRunCycle_Idempotent(t *testing.T) {
	s := newMemStore()
	s.addTenant(tenant.Record{ID: 1, Slug: "a", Timezone: "UTC", IsActive: true}, stdItems()...)
	d := newDriver(s)
	now := time.Date(2025, 6, 2, 0, 5, 0, 0, time.UTC)

	first, err := d.RunCycleAt(context.Background(), ModeSmart, now)
	if err != nil {
		t.Fatal(err)
	}
	if first.TotalReset != 1 || first.TenantsReset != 1 || first.TenantsAffected != 1 {
		t.Fatalf("first run = %+v", first)
	}

	s.markAllSoldOut()
	second, err := d.RunCycleAt(context.Background(), ModeSmart, now)
	if err != nil {
		t.Fatal(err)
	}
	if second.TotalReset != 0 || second.TenantsReset != 0 {
		t.Fatalf("second run reset again: %+v", second)
	}
	if r := second.Tenants[0]; !r.Skipped || r.Reason != ReasonNotDue {
		t.Fatalf("second run result = %+v", r)
	}
	if !s.soldOut(1, 1) {
		t.Fatalf("item re-sold-out after the day's reset was cleared again")
	}
	if first.RunID == second.RunID {
		t.Fatalf("run ids must differ")
	}
}

func TestRunCycle_CatchUpAfterMissedMidnight(t *testing.T) {
	last := time.Date(2025, 5, 30, 22, 0, 0, 0, time.UTC) // midnight Rome, May 31
	s := newMemStore()
	s.addTenant(tenant.Record{ID: 1, Slug: "rome", Timezone: "Europe/Rome", IsActive: true, LastSoldOutResetAt: &last}, stdItems()...)
	d := newDriver(s)

	now := time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC) // 09:00 Rome, June 1
	rep, err := d.RunCycleAt(context.Background(), ModeSmart, now)
	if err != nil {
		t.Fatal(err)
	}
	if rep.TotalReset != 1 {
		t.Fatalf("TotalReset = %d, want 1", rep.TotalReset)
	}
	if got := rep.Tenants[0].LocalDate; got != "2025-06-01" {
		t.Fatalf("LocalDate = %q", got)
	}
	if st := s.record(1).LastSoldOutResetAt; st == nil || !st.Equal(now) {
		t.Fatalf("stamp = %v, want %v", st, now)
	}
}

func TestRunCycle_AllModeResetsEveryActiveTenant(t *testing.T) {
	s := newMemStore()
	s.addTenant(tenant.Record{ID: 1, Slug: "a", Timezone: "Asia/Tokyo", IsActive: true}, stdItems()...)
	s.addTenant(tenant.Record{ID: 2, Slug: "b", Timezone: "America/Denver", IsActive: true},
		memItem{ID: 10, SoldOut: true, AutoReset: true},
		memItem{ID: 11, SoldOut: true, AutoReset: true})
	s.addTenant(tenant.Record{ID: 3, Slug: "closed", Timezone: "UTC"}, stdItems()...)

	now := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	rep, err := newDriver(s).RunCycleAt(context.Background(), ModeAll, now)
	if err != nil {
		t.Fatal(err)
	}

	if rep.TotalReset != 3 {
		t.Fatalf("TotalReset = %d, want 3", rep.TotalReset)
	}
	sum := 0
	for _, r := range rep.Tenants {
		sum += r.Reset
	}
	if sum != rep.TotalReset {
		t.Fatalf("per-tenant sum %d != total %d", sum, rep.TotalReset)
	}
	if len(rep.Tenants) != 2 {
		t.Fatalf("inactive tenant listed: %+v", rep.Tenants)
	}
	if !s.soldOut(1, 2) {
		t.Fatalf("opted-out item was cleared")
	}
	if !s.soldOut(3, 1) || s.resetCount(3) != 0 {
		t.Fatalf("inactive tenant was touched")
	}
}

func TestRunCycle_FailureIsIsolated(t *testing.T) {
	s := newMemStore()
	for id := uint64(1); id <= 3; id++ {
		s.addTenant(tenant.Record{ID: id, Slug: "t", Timezone: "UTC", IsActive: true}, stdItems()...)
	}
	s.failAt[2] = "stamp"

	rep, err := newDriver(s).RunCycleAt(context.Background(), ModeAll, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if rep.Failed != 1 || rep.TenantsReset != 2 || rep.TotalReset != 2 {
		t.Fatalf("report = %+v", rep)
	}
	bad := rep.Tenants[1]
	if !bad.Failed() || bad.Reason != ReasonCommitFailed {
		t.Fatalf("tenant 2 = %+v", bad)
	}
	if !s.soldOut(2, 1) || s.record(2).LastSoldOutResetAt != nil {
		t.Fatalf("failed tenant left partial writes")
	}
	if s.soldOut(1, 1) || s.soldOut(3, 1) {
		t.Fatalf("healthy tenants were not reset")
	}
}

func TestRunCycle_LockFailureIsStoreUnavailable(t *testing.T) {
	s := newMemStore()
	s.addTenant(tenant.Record{ID: 1, Timezone: "UTC", IsActive: true}, stdItems()...)
	s.failAt[1] = "lock"

	rep, err := newDriver(s).RunCycleAt(context.Background(), ModeAll, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if r := rep.Tenants[0]; r.Reason != ReasonStoreUnavailable || !r.Failed() {
		t.Fatalf("result = %+v", r)
	}
}

func TestRunCycle_ListFailure(t *testing.T) {
	s := newMemStore()
	s.listErr = errors.New("connection refused")

	_, err := newDriver(s).RunCycle(context.Background(), ModeSmart)
	if !errors.Is(err, ErrTenantStoreUnavailable) {
		t.Fatalf("err = %v, want ErrTenantStoreUnavailable", err)
	}
}

func TestRunCycle_Cancelled(t *testing.T) {
	s := newMemStore()
	s.addTenant(tenant.Record{ID: 1, Timezone: "UTC", IsActive: true}, stdItems()...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := newDriver(s).RunCycleAt(ctx, ModeAll, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if r := rep.Tenants[0]; !r.Skipped || r.Reason != ReasonCancelled {
		t.Fatalf("result = %+v", r)
	}
	if s.resetCount(1) != 0 {
		t.Fatalf("cancelled cycle wrote")
	}
}

func TestRunCycle_UnknownTimezoneFallsBackToUTC(t *testing.T) {
	s := newMemStore()
	s.addTenant(tenant.Record{ID: 1, Timezone: "Mars/Olympus_Mons", IsActive: true}, stdItems()...)
	d := newDriver(s)

	rep, err := d.RunCycleAt(context.Background(), ModeSmart, time.Date(2025, 6, 1, 0, 10, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if rep.TotalReset != 1 {
		t.Fatalf("tenant with unknown zone not reset at UTC midnight: %+v", rep.Tenants[0])
	}
}

func TestRunCycle_OverlappingCyclesResetOnce(t *testing.T) {
	s := newMemStore()
	for id := uint64(1); id <= 5; id++ {
		s.addTenant(tenant.Record{ID: id, Timezone: "UTC", IsActive: true}, stdItems()...)
	}
	d := newDriver(s)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rep, err := d.RunCycleAt(context.Background(), ModeSmart, now)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			total += rep.TotalReset
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 5 {
		t.Fatalf("items reset across overlapping cycles = %d, want 5", total)
	}
	for id := uint64(1); id <= 5; id++ {
		if n := s.resetCount(id); n != 1 {
			t.Errorf("tenant %d reset %d times", id, n)
		}
	}
}

func TestResetTenant_StaleListingRechecksUnderLock(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 20, 0, 0, time.UTC)
	stamped := now.Add(-10 * time.Minute)
	s := newMemStore()
	s.addTenant(tenant.Record{ID: 1, Timezone: "UTC", IsActive: true, LastSoldOutResetAt: &stamped}, stdItems()...)

	out, err := NewExecutor(s, nil, nil).ResetTenant(context.Background(), 1, ModeSmart, now)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Skipped || out.Reason != ReasonAlreadyReset {
		t.Fatalf("outcome = %+v", out)
	}
	if !s.soldOut(1, 1) {
		t.Fatalf("item cleared despite today's reset")
	}
}

func TestResetTenant_Missing(t *testing.T) {
	out, err := NewExecutor(newMemStore(), nil, nil).ResetTenant(context.Background(), 42, ModeAll, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !out.Skipped || out.Reason != ReasonInactive {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestPreview_WritesNothing(t *testing.T) {
	s := newMemStore()
	s.addTenant(tenant.Record{ID: 1, Timezone: "Asia/Tokyo", IsActive: true}, stdItems()...)
	s.addTenant(tenant.Record{ID: 2, Timezone: "UTC", IsActive: true}, stdItems()...)

	now := time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC) // 00:30 Tokyo
	got, err := newDriver(s).Preview(context.Background(), ModeSmart, now)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Skipped || got[0].LocalDate != "2025-06-02" {
		t.Fatalf("tokyo = %+v", got[0])
	}
	if !got[1].Skipped || got[1].Reason != ReasonNotDue {
		t.Fatalf("utc = %+v", got[1])
	}
	if s.resetCount(1) != 0 || !s.soldOut(1, 1) {
		t.Fatalf("preview wrote")
	}
}
