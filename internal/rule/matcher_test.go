package rule

import (
	"math/rand"
	"testing"
	"time"

	"github.com/kazuhito/yoyaku/internal/model"
)

// 2026-03-07 is a Saturday.
var saturdayCandidate = model.ReservationRequest{
	StoreID:   "s1",
	Date:      "2026-03-07",
	Time:      "12:30",
	PartySize: 2,
	SeatType:  "counter",
}

func mkRule(id string, prio int, scope model.ScopeType, ids []string, created time.Time) model.Rule {
	return model.Rule{
		ID:         id,
		StoreID:    "s1",
		Scope:      scope,
		ScopeIDs:   ids,
		Limit:      model.LimitPerDay,
		LimitValue: 10,
		CountUnit:  model.CountGroups,
		Priority:   prio,
		Active:     true,
		CreatedAt:  created,
	}
}

func TestAppliesPredicates(t *testing.T) {
	base := mkRule("r", 0, model.ScopeStore, nil, time.Now())

	cases := []struct {
		name   string
		mutate func(*model.Rule)
		want   bool
	}{
		{"unbounded", func(r *model.Rule) {}, true},
		{"date inside", func(r *model.Rule) { r.DateStart, r.DateEnd = "2026-03-01", "2026-03-31" }, true},
		{"date before", func(r *model.Rule) { r.DateStart = "2026-03-08" }, false},
		{"date after", func(r *model.Rule) { r.DateEnd = "2026-03-06" }, false},
		{"weekday match", func(r *model.Rule) { r.Weekdays = []int{6, 0} }, true},
		{"weekday miss", func(r *model.Rule) { r.Weekdays = []int{1, 2} }, false},
		{"time inside", func(r *model.Rule) { r.TimeStart, r.TimeEnd = "11:00", "14:00" }, true},
		{"time boundary", func(r *model.Rule) { r.TimeStart, r.TimeEnd = "12:30", "12:30" }, true},
		{"time before window", func(r *model.Rule) { r.TimeStart = "13:00" }, false},
		{"time after window", func(r *model.Rule) { r.TimeEnd = "12:00" }, false},
		{"open-ended start", func(r *model.Rule) { r.TimeStart = "12:00" }, true},
		{"seat type match", func(r *model.Rule) { r.Scope = model.ScopeSeatType; r.ScopeIDs = []string{"counter"} }, true},
		{"seat type miss", func(r *model.Rule) { r.Scope = model.ScopeSeatType; r.ScopeIDs = []string{"table"} }, false},
		{"menu without attr", func(r *model.Rule) { r.Scope = model.ScopeMenu; r.ScopeIDs = []string{"omakase"} }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := base
			tc.mutate(&r)
			if got := Applies(r, saturdayCandidate); got != tc.want {
				t.Errorf("Applies = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMatchSkipsInactive(t *testing.T) {
	r := mkRule("r1", 0, model.ScopeStore, nil, time.Now())
	r.Active = false
	if got := Match(saturdayCandidate, []model.Rule{r}); len(got) != 0 {
		t.Errorf("inactive rule matched: %v", got)
	}
}

func TestMatchOrderIsInputOrderIndependent(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rules := []model.Rule{
		mkRule("older-high", 5, model.ScopeStore, nil, t0),
		mkRule("newer-high", 5, model.ScopeStore, nil, t0.Add(time.Hour)),
		mkRule("specific", 0, model.ScopeSeat, []string{"c1"}, t0),
		mkRule("seat-type", 0, model.ScopeSeatType, []string{"counter"}, t0),
		mkRule("store-wide", 0, model.ScopeStore, nil, t0),
	}
	candidate := saturdayCandidate
	candidate.SeatID = "c1"

	wantOrder := []string{"older-high", "newer-high", "specific", "seat-type", "store-wide"}

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		shuffled := append([]model.Rule(nil), rules...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got := Match(candidate, shuffled)
		if len(got) != len(wantOrder) {
			t.Fatalf("trial %d: matched %d rules, want %d", trial, len(got), len(wantOrder))
		}
		for i, id := range wantOrder {
			if got[i].ID != id {
				t.Fatalf("trial %d: position %d = %s, want %s", trial, i, got[i].ID, id)
			}
		}
	}
}

func TestMatchTieBreakByID(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := mkRule("aaa", 0, model.ScopeStore, nil, t0)
	b := mkRule("bbb", 0, model.ScopeStore, nil, t0)

	got := Match(saturdayCandidate, []model.Rule{b, a})
	if got[0].ID != "aaa" || got[1].ID != "bbb" {
		t.Errorf("tie-break order = %s, %s; want aaa, bbb", got[0].ID, got[1].ID)
	}
}

func TestScopeMatches(t *testing.T) {
	staffRule := mkRule("r", 0, model.ScopeStaff, []string{"tanaka", "sato"}, time.Now())

	if !ScopeMatches(staffRule, "", "", "", "sato") {
		t.Error("staff rule should match reservation naming a listed staff")
	}
	if ScopeMatches(staffRule, "", "", "", "suzuki") {
		t.Error("staff rule matched an unlisted staff")
	}
	if ScopeMatches(staffRule, "counter", "c1", "omakase", "") {
		t.Error("staff rule matched a reservation with no staff attribute")
	}
}
