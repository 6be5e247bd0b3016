package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kazuhito/yoyaku/internal/model"
)

// countingRuleStore wraps a MemoryRuleStore and counts reads; a non-nil
// fail makes reads error so fallback paths can be exercised.
type countingRuleStore struct {
	*MemoryRuleStore
	reads int
	fail  error
}

func (s *countingRuleStore) ActiveByStore(ctx context.Context, storeID string) ([]model.Rule, error) {
	s.reads++
	if s.fail != nil {
		return nil, s.fail
	}
	return s.MemoryRuleStore.ActiveByStore(ctx, storeID)
}

func cacheRule(id string) model.Rule {
	return model.Rule{
		ID: id, StoreID: "s1", Scope: model.ScopeStore,
		Limit: model.LimitPerDay, LimitValue: 10,
		CountUnit: model.CountGroups, Active: true,
	}
}

func TestCachedRuleStoreServesWithinTTL(t *testing.T) {
	inner := &countingRuleStore{MemoryRuleStore: NewMemoryRuleStore()}
	r := cacheRule("r1")
	if err := inner.Insert(context.Background(), &r); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	c := NewCachedRuleStore(inner, 5*time.Second)
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		rules, err := c.ActiveByStore(context.Background(), "s1")
		if err != nil || len(rules) != 1 {
			t.Fatalf("read %d: %v, %v", i, rules, err)
		}
	}
	if inner.reads != 1 {
		t.Errorf("inner reads = %d, want 1", inner.reads)
	}

	now = now.Add(6 * time.Second)
	if _, err := c.ActiveByStore(context.Background(), "s1"); err != nil {
		t.Fatal(err)
	}
	if inner.reads != 2 {
		t.Errorf("inner reads after expiry = %d, want 2", inner.reads)
	}
}

func TestCachedRuleStoreFallsBackToStale(t *testing.T) {
	inner := &countingRuleStore{MemoryRuleStore: NewMemoryRuleStore()}
	r := cacheRule("r1")
	if err := inner.Insert(context.Background(), &r); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	c := NewCachedRuleStore(inner, time.Second)
	c.now = func() time.Time { return now }

	if _, err := c.ActiveByStore(context.Background(), "s1"); err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Second)
	inner.fail = errors.New("datastore down")

	rules, err := c.ActiveByStore(context.Background(), "s1")
	if err != nil || len(rules) != 1 {
		t.Fatalf("stale fallback = %v, %v; want the cached rule", rules, err)
	}

	// With no cached entry the error surfaces.
	if _, err := c.ActiveByStore(context.Background(), "s2"); err == nil {
		t.Error("uncached store should propagate the read error")
	}
}

func TestCachedRuleStoreInvalidatesOnWrite(t *testing.T) {
	inner := &countingRuleStore{MemoryRuleStore: NewMemoryRuleStore()}
	c := NewCachedRuleStore(inner, time.Minute)

	ctx := context.Background()
	r1 := cacheRule("r1")
	if err := c.Insert(ctx, &r1); err != nil {
		t.Fatal(err)
	}
	rules, err := c.ActiveByStore(ctx, "s1")
	if err != nil || len(rules) != 1 {
		t.Fatalf("after insert: %v, %v", rules, err)
	}

	r2 := cacheRule("r2")
	if err := c.Insert(ctx, &r2); err != nil {
		t.Fatal(err)
	}
	rules, err = c.ActiveByStore(ctx, "s1")
	if err != nil || len(rules) != 2 {
		t.Fatalf("second insert not visible: %v, %v", rules, err)
	}

	if _, err := c.DeactivateByIDPrefix(ctx, "s1", "r1"); err != nil {
		t.Fatal(err)
	}
	rules, err = c.ActiveByStore(ctx, "s1")
	if err != nil || len(rules) != 1 {
		t.Fatalf("deactivation not visible: %v, %v", rules, err)
	}
}
