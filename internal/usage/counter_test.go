package usage

import (
	"context"
	"testing"

	"github.com/kazuhito/yoyaku/internal/model"
	"github.com/kazuhito/yoyaku/internal/repository"
)

func seeded(t *testing.T, reservations ...model.CommittedReservation) *repository.MemoryReservationStore {
	t.Helper()
	store := repository.NewMemoryReservationStore()
	for i := range reservations {
		if err := store.Insert(context.Background(), &reservations[i]); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}
	return store
}

func committed(id, tm string, party int) model.CommittedReservation {
	return model.CommittedReservation{
		ID:        id,
		StoreID:   "s1",
		Date:      "2026-03-07",
		Time:      tm,
		PartySize: party,
		Status:    model.StatusConfirmed,
	}
}

func candidate(tm string, party int) model.ReservationRequest {
	return model.ReservationRequest{StoreID: "s1", Date: "2026-03-07", Time: tm, PartySize: party}
}

func storeRule(limit model.LimitType, unit model.CountUnit) model.Rule {
	return model.Rule{
		ID: "r", StoreID: "s1", Scope: model.ScopeStore,
		Limit: limit, LimitValue: 10, CountUnit: unit, Active: true,
	}
}

func TestCountPerDay(t *testing.T) {
	c := NewCounter(seeded(t,
		committed("a", "11:00", 2),
		committed("b", "20:00", 4),
	))
	got, err := c.Count(context.Background(), storeRule(model.LimitPerDay, model.CountGroups), candidate("18:00", 2))
	if err != nil || got != 2 {
		t.Fatalf("Count = %d, %v; want 2 groups across the day", got, err)
	}
}

func TestCountPerHourWindow(t *testing.T) {
	c := NewCounter(seeded(t,
		committed("a", "18:00", 2),
		committed("b", "18:59", 2),
		committed("c", "19:00", 2), // next clock hour
		committed("d", "17:59", 2), // previous clock hour
	))
	got, err := c.Count(context.Background(), storeRule(model.LimitPerHour, model.CountGroups), candidate("18:30", 2))
	if err != nil || got != 2 {
		t.Fatalf("Count = %d, %v; want 2 in the 18:00 hour", got, err)
	}
}

func TestCountConcurrentExactSlot(t *testing.T) {
	c := NewCounter(seeded(t,
		committed("a", "18:00", 2),
		committed("b", "18:30", 2),
	))
	got, err := c.Count(context.Background(), storeRule(model.LimitConcurrent, model.CountGroups), candidate("18:00", 2))
	if err != nil || got != 1 {
		t.Fatalf("Count = %d, %v; want only the exact slot", got, err)
	}
}

func TestCountPeopleSumsPartySizes(t *testing.T) {
	c := NewCounter(seeded(t,
		committed("a", "18:00", 3),
		committed("b", "19:00", 4),
	))
	got, err := c.Count(context.Background(), storeRule(model.LimitPerDay, model.CountPeople), candidate("20:00", 2))
	if err != nil || got != 7 {
		t.Fatalf("Count = %d, %v; want 7 people", got, err)
	}
}

func TestCountIgnoresCancelled(t *testing.T) {
	cancelled := committed("a", "18:00", 2)
	cancelled.Status = model.StatusCancelled
	store := seeded(t, committed("b", "18:00", 2))
	// Insert the cancelled one directly; ListConfirmedByDate filters it,
	// and Count re-checks status for sources that do not.
	if err := store.Insert(context.Background(), &cancelled); err != nil {
		t.Fatal(err)
	}
	c := NewCounter(store)
	got, err := c.Count(context.Background(), storeRule(model.LimitPerDay, model.CountGroups), candidate("18:00", 2))
	if err != nil || got != 1 {
		t.Fatalf("Count = %d, %v; want 1", got, err)
	}
}

func TestCountScopedRule(t *testing.T) {
	counterSeat := committed("a", "18:00", 2)
	counterSeat.SeatType = "counter"
	tableSeat := committed("b", "18:00", 2)
	tableSeat.SeatType = "table"

	r := storeRule(model.LimitPerDay, model.CountGroups)
	r.Scope = model.ScopeSeatType
	r.ScopeIDs = []string{"counter"}

	c := NewCounter(seeded(t, counterSeat, tableSeat))
	got, err := c.Count(context.Background(), r, candidate("18:00", 2))
	if err != nil || got != 1 {
		t.Fatalf("Count = %d, %v; want 1 counter reservation", got, err)
	}
}

func TestContribution(t *testing.T) {
	groups := storeRule(model.LimitPerDay, model.CountGroups)
	people := storeRule(model.LimitPerDay, model.CountPeople)
	cand := candidate("18:00", 4)

	if got := Contribution(groups, cand); got != 1 {
		t.Errorf("group contribution = %d, want 1", got)
	}
	if got := Contribution(people, cand); got != 4 {
		t.Errorf("people contribution = %d, want 4", got)
	}
}

func TestHourWindow(t *testing.T) {
	cases := []struct{ in, start, end string }{
		{"13:45", "13:00", "14:00"},
		{"00:10", "00:00", "01:00"},
		{"09:00", "09:00", "10:00"},
		{"23:30", "23:00", "24:00"},
	}
	for _, tc := range cases {
		start, end := HourWindow(tc.in)
		if start != tc.start || end != tc.end {
			t.Errorf("HourWindow(%s) = %s, %s; want %s, %s", tc.in, start, end, tc.start, tc.end)
		}
	}
}
