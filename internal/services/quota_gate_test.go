package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tbourn/go-review-reply-backend/internal/auth"
)

var gateNow = time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

func newTestGate(store QuotaStore, priv PrivilegeChecker) *QuotaGate {
	g := NewQuotaGate(store, priv, 10, FailClosed, time.UTC)
	g.Now = fixedClock(gateNow)
	return g
}

func TestQuotaGate_AnonymousAdmittedWithoutAccounting(t *testing.T) {
	store := newMemQuotaStore()
	g := newTestGate(store, &fakePrivileges{})

	for _, id := range []*auth.Identity{nil, {Subject: ""}} {
		d, err := g.Admit(context.Background(), id)
		if err != nil {
			t.Fatalf("Admit: %v", err)
		}
		if d.Metered || d.Exempt {
			t.Fatalf("anonymous decision = %+v", d)
		}
	}
	if store.resets != 0 || store.increments != 0 || len(store.recs) != 0 {
		t.Fatalf("store touched: resets=%d inc=%d recs=%d", store.resets, store.increments, len(store.recs))
	}
}

func TestQuotaGate_MonotonicUpToLimit(t *testing.T) {
	store := newMemQuotaStore()
	g := newTestGate(store, nil)
	id := &auth.Identity{Subject: "u1", Verified: true}

	for i := 1; i <= 10; i++ {
		d, err := g.Admit(context.Background(), id)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if !d.Metered || d.Used != i {
			t.Fatalf("request %d: decision=%+v", i, d)
		}
		if rec, _ := store.get("u1"); rec.DailyCount != i {
			t.Fatalf("after %d admits count=%d", i, rec.DailyCount)
		}
	}

	_, err := g.Admit(context.Background(), id)
	var qe *QuotaExceededError
	if !errors.As(err, &qe) {
		t.Fatalf("11th request err=%v, want QuotaExceededError", err)
	}
	if qe.Limit != 10 || qe.Used != 10 {
		t.Fatalf("qe=%+v", qe)
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatal("errors.Is(err, ErrQuotaExceeded) = false")
	}
	if rec, _ := store.get("u1"); rec.DailyCount != 10 {
		t.Fatalf("rejection mutated count: %d", rec.DailyCount)
	}
}

func TestQuotaGate_RejectAtLimitDoesNotMutate(t *testing.T) {
	store := newMemQuotaStore()
	last := gateNow.Add(-time.Hour)
	store.seed("u1", 10, last)
	g := newTestGate(store, nil)

	_, err := g.Admit(context.Background(), &auth.Identity{Subject: "u1"})
	if err == nil || err.Error() != "Daily limit reached (10/10)" {
		t.Fatalf("err=%v", err)
	}
	rec, _ := store.get("u1")
	if rec.DailyCount != 10 || !rec.LastReset.Equal(last) {
		t.Fatalf("record mutated: %+v", rec)
	}
	if store.increments != 0 {
		t.Fatalf("increments=%d", store.increments)
	}
}

func TestQuotaGate_DayRolloverResetsBeforeCeiling(t *testing.T) {
	store := newMemQuotaStore()
	store.seed("u1", 25, gateNow.AddDate(0, 0, -1))
	g := newTestGate(store, nil)

	d, err := g.Admit(context.Background(), &auth.Identity{Subject: "u1"})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if d.Used != 1 {
		t.Fatalf("used=%d want 1", d.Used)
	}
	rec, _ := store.get("u1")
	if rec.DailyCount != 1 || !rec.LastReset.Equal(gateNow) {
		t.Fatalf("record=%+v", rec)
	}
}

func TestQuotaGate_RolloverUsesReferenceZone(t *testing.T) {
	plus5 := time.FixedZone("UTC+5", 5*3600)
	store := newMemQuotaStore()
	// 23:30 UTC on the 13th is 04:30 on the 14th at UTC+5, the same day as gateNow there.
	store.seed("u1", 10, time.Date(2025, 3, 13, 23, 30, 0, 0, time.UTC))

	g := NewQuotaGate(store, nil, 10, FailClosed, plus5)
	g.Now = fixedClock(gateNow)
	if _, err := g.Admit(context.Background(), &auth.Identity{Subject: "u1"}); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("zoned gate err=%v, want quota exceeded", err)
	}

	utc := newTestGate(store, nil)
	if _, err := utc.Admit(context.Background(), &auth.Identity{Subject: "u1"}); err != nil {
		t.Fatalf("utc gate should roll over: %v", err)
	}
}

func TestQuotaGate_ExemptBypassesAndIsNotMetered(t *testing.T) {
	store := newMemQuotaStore()
	store.seed("vip", 10, gateNow)
	priv := &fakePrivileges{exempt: map[string]bool{"vip": true}}
	g := newTestGate(store, priv)

	for i := 0; i < 25; i++ {
		d, err := g.Admit(context.Background(), &auth.Identity{Subject: "vip"})
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if !d.Exempt || d.Metered {
			t.Fatalf("decision=%+v", d)
		}
	}
	if rec, _ := store.get("vip"); rec.DailyCount != 10 {
		t.Fatalf("exempt count changed: %d", rec.DailyCount)
	}
	if store.increments != 0 {
		t.Fatalf("increments=%d", store.increments)
	}
}

func TestQuotaGate_PrivilegeFailurePolicy(t *testing.T) {
	boom := errors.New("profile store down")

	t.Run("fail closed meters", func(t *testing.T) {
		store := newMemQuotaStore()
		store.seed("u1", 10, gateNow)
		g := newTestGate(store, &fakePrivileges{err: boom})
		if _, err := g.Admit(context.Background(), &auth.Identity{Subject: "u1"}); !errors.Is(err, ErrQuotaExceeded) {
			t.Fatalf("err=%v, want quota exceeded", err)
		}
	})

	t.Run("fail open admits unmetered", func(t *testing.T) {
		store := newMemQuotaStore()
		store.seed("u1", 10, gateNow)
		g := newTestGate(store, &fakePrivileges{err: boom})
		g.Policy = FailOpen
		d, err := g.Admit(context.Background(), &auth.Identity{Subject: "u1"})
		if err != nil {
			t.Fatalf("Admit: %v", err)
		}
		if !d.Exempt || store.increments != 0 {
			t.Fatalf("decision=%+v increments=%d", d, store.increments)
		}
	})
}

func TestQuotaGate_StoreErrorsPropagate(t *testing.T) {
	boom := errors.New("db down")

	store := newMemQuotaStore()
	store.resetErr = boom
	g := newTestGate(store, nil)
	if _, err := g.Admit(context.Background(), &auth.Identity{Subject: "u1"}); !errors.Is(err, boom) {
		t.Fatalf("reset err=%v", err)
	}

	store = newMemQuotaStore()
	store.incErr = boom
	g = newTestGate(store, nil)
	if _, err := g.Admit(context.Background(), &auth.Identity{Subject: "u1"}); !errors.Is(err, boom) {
		t.Fatalf("increment err=%v", err)
	}
}

func TestQuotaGate_ConcurrentAdmitsStopAtLimit(t *testing.T) {
	store := newMemQuotaStore()
	store.seed("u1", 4, gateNow)
	g := newTestGate(store, nil)

	const workers = 20
	var admitted, rejected atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := g.Admit(context.Background(), &auth.Identity{Subject: "u1"})
			switch {
			case err == nil:
				admitted.Add(1)
			case errors.Is(err, ErrQuotaExceeded):
				rejected.Add(1)
			default:
				t.Errorf("unexpected err: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if admitted.Load() != 6 || rejected.Load() != workers-6 {
		t.Fatalf("admitted=%d rejected=%d", admitted.Load(), rejected.Load())
	}
	if rec, _ := store.get("u1"); rec.DailyCount != 10 {
		t.Fatalf("count=%d want 10", rec.DailyCount)
	}
}

func TestQuotaGate_Usage(t *testing.T) {
	store := newMemQuotaStore()
	store.seed("u1", 3, gateNow.Add(-2*time.Hour))
	store.seed("old", 9, gateNow.AddDate(0, 0, -2))
	g := newTestGate(store, &fakePrivileges{exempt: map[string]bool{"vip": true}})

	u, err := g.Usage(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if u.Used != 3 || u.Limit != 10 || u.Remaining != 7 || u.Exempt {
		t.Fatalf("usage=%+v", u)
	}
	wantReset := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	if !u.ResetsAt.Equal(wantReset) {
		t.Fatalf("resetsAt=%v want %v", u.ResetsAt, wantReset)
	}

	u, _ = g.Usage(context.Background(), "old")
	if u.Used != 0 || u.Remaining != 10 {
		t.Fatalf("stale usage=%+v", u)
	}
	if rec, _ := store.get("old"); rec.DailyCount != 9 {
		t.Fatal("Usage must not write")
	}

	u, _ = g.Usage(context.Background(), "vip")
	if !u.Exempt {
		t.Fatalf("vip usage=%+v", u)
	}

	if _, err := g.Usage(context.Background(), " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank identity err=%v", err)
	}
}

func TestParsePrivilegePolicy(t *testing.T) {
	cases := map[string]PrivilegePolicy{
		"fail_open":   FailOpen,
		"Fail-Open":   FailOpen,
		"fail_closed": FailClosed,
		"":            FailClosed,
		"whatever":    FailClosed,
	}
	for in, want := range cases {
		if got := ParsePrivilegePolicy(in); got != want {
			t.Errorf("ParsePrivilegePolicy(%q)=%v want %v", in, got, want)
		}
	}
	if FailOpen.String() != "fail_open" || FailClosed.String() != "fail_closed" {
		t.Fatal("String mismatch")
	}
}
