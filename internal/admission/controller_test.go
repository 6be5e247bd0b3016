package admission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kazuhito/yoyaku/internal/lock"
	"github.com/kazuhito/yoyaku/internal/model"
	"github.com/kazuhito/yoyaku/internal/repository"
)

type fixture struct {
	ctl          *Controller
	rules        *repository.MemoryRuleStore
	reservations *repository.MemoryReservationStore
}

func newFixture(t *testing.T, rules ...model.Rule) *fixture {
	t.Helper()
	rs := repository.NewMemoryRuleStore()
	for i := range rules {
		if err := rs.Insert(context.Background(), &rules[i]); err != nil {
			t.Fatalf("seeding rule: %v", err)
		}
	}
	res := repository.NewMemoryReservationStore()
	ctl := NewController(rs, res, lock.NewLocal(), NewMemoryIdempotency(), Options{
		LockTimeout: 2 * time.Second,
	})
	return &fixture{ctl: ctl, rules: rs, reservations: res}
}

func request(tm string) model.ReservationRequest {
	return model.ReservationRequest{
		StoreID:   "s1",
		Date:      "2026-03-07", // Saturday
		Time:      tm,
		PartySize: 2,
		SeatType:  "counter",
	}
}

func activeRule(id string, limit model.LimitType, value int) model.Rule {
	return model.Rule{
		ID:         id,
		StoreID:    "s1",
		Scope:      model.ScopeStore,
		Limit:      limit,
		LimitValue: value,
		CountUnit:  model.CountGroups,
		Active:     true,
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func confirmedCount(t *testing.T, f *fixture) int {
	t.Helper()
	list, err := f.reservations.ListConfirmedByDate(context.Background(), "s1", "2026-03-07")
	if err != nil {
		t.Fatalf("listing reservations: %v", err)
	}
	return len(list)
}

func TestTryAdmitRejectsInvalidRequest(t *testing.T) {
	f := newFixture(t)
	bad := request("18:00")
	bad.PartySize = 0
	_, err := f.ctl.TryAdmit(context.Background(), bad)
	if !model.IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestTryAdmitNoRulesAccepts(t *testing.T) {
	f := newFixture(t)
	d, err := f.ctl.TryAdmit(context.Background(), request("18:00"))
	if err != nil {
		t.Fatalf("TryAdmit: %v", err)
	}
	if !d.Accepted || d.Reservation == nil {
		t.Fatalf("decision = %+v, want accepted with reservation", d)
	}
	if d.Reservation.Status != model.StatusConfirmed {
		t.Errorf("status = %s, want CONFIRMED", d.Reservation.Status)
	}
}

func TestTryAdmitDailyLimitSequential(t *testing.T) {
	f := newFixture(t, activeRule("r1", model.LimitPerDay, 2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := f.ctl.TryAdmit(ctx, request("18:00"))
		if err != nil || !d.Accepted {
			t.Fatalf("admission %d: decision=%+v err=%v", i, d, err)
		}
	}

	d, err := f.ctl.TryAdmit(ctx, request("19:00"))
	if err != nil {
		t.Fatalf("third admission: %v", err)
	}
	if d.Accepted {
		t.Fatal("third admission should be denied")
	}
	if d.ReasonCode != ReasonDailyLimit || d.RuleID != "r1" {
		t.Errorf("denial = %s by %s, want DAILY_LIMIT by r1", d.ReasonCode, d.RuleID)
	}
	if n := confirmedCount(t, f); n != 2 {
		t.Errorf("confirmed count = %d, want 2", n)
	}
}

func TestTryAdmitHourlyLimitIsPerClockHour(t *testing.T) {
	f := newFixture(t, activeRule("r1", model.LimitPerHour, 1))
	ctx := context.Background()

	if d, err := f.ctl.TryAdmit(ctx, request("18:00")); err != nil || !d.Accepted {
		t.Fatalf("first: %+v %v", d, err)
	}
	// 18:30 shares the 18:00-19:00 clock hour.
	d, err := f.ctl.TryAdmit(ctx, request("18:30"))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if d.Accepted || d.ReasonCode != ReasonHourlyLimit {
		t.Fatalf("second in same hour = %+v, want HOURLY_LIMIT denial", d)
	}
	// 19:00 is the next window.
	if d, err := f.ctl.TryAdmit(ctx, request("19:00")); err != nil || !d.Accepted {
		t.Fatalf("next hour: %+v %v", d, err)
	}
}

func TestTryAdmitConcurrentRequests(t *testing.T) {
	f := newFixture(t, activeRule("r1", model.LimitConcurrent, 2))
	ctx := context.Background()

	const attempts = 10
	var wg sync.WaitGroup
	decisions := make([]Decision, attempts)
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decisions[i], errs[i] = f.ctl.TryAdmit(ctx, request("18:00"))
		}(i)
	}
	wg.Wait()

	accepted, denied := 0, 0
	for i := 0; i < attempts; i++ {
		if errs[i] != nil {
			t.Fatalf("attempt %d errored: %v", i, errs[i])
		}
		if decisions[i].Accepted {
			accepted++
			continue
		}
		denied++
		if decisions[i].ReasonCode != ReasonConcurrentLimit {
			t.Errorf("attempt %d reason = %s, want CONCURRENT_LIMIT", i, decisions[i].ReasonCode)
		}
	}
	if accepted != 2 || denied != 8 {
		t.Fatalf("accepted=%d denied=%d, want 2/8", accepted, denied)
	}
	if n := confirmedCount(t, f); n != 2 {
		t.Errorf("stored reservations = %d, want 2", n)
	}
}

func TestTryAdmitRepeatedBurstsNeverExceedLimit(t *testing.T) {
	f := newFixture(t, activeRule("r1", model.LimitPerDay, 3))
	ctx := context.Background()

	for burst := 0; burst < 4; burst++ {
		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				f.ctl.TryAdmit(ctx, request("18:00")) //nolint:errcheck
			}()
		}
		wg.Wait()
	}
	if n := confirmedCount(t, f); n != 3 {
		t.Fatalf("confirmed = %d after bursts, want 3", n)
	}
}

func TestTryAdmitUnpaddedTimeSharesSlot(t *testing.T) {
	f := newFixture(t, activeRule("r1", model.LimitConcurrent, 1))
	ctx := context.Background()

	if d, err := f.ctl.TryAdmit(ctx, request("09:30")); err != nil || !d.Accepted {
		t.Fatalf("first: %+v %v", d, err)
	}

	// "9:30" is the same slot; the unpadded spelling must not slip past
	// the concurrent limit under a different key.
	unpadded := request("9:30")
	d, err := f.ctl.TryAdmit(ctx, unpadded)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if d.Accepted || d.ReasonCode != ReasonConcurrentLimit {
		t.Fatalf("second = %+v, want CONCURRENT_LIMIT denial", d)
	}
	if n := confirmedCount(t, f); n != 1 {
		t.Errorf("stored = %d, want 1", n)
	}

	unpaddedDate := request("10:30")
	unpaddedDate.Date = "2026-3-7"
	d, err = f.ctl.TryAdmit(ctx, unpaddedDate)
	if err != nil || !d.Accepted {
		t.Fatalf("unpadded date: %+v %v", d, err)
	}
	if d.Reservation.Date != "2026-03-07" {
		t.Errorf("stored date = %q, want canonical 2026-03-07", d.Reservation.Date)
	}
}

func TestTryAdmitStopDominates(t *testing.T) {
	stop := activeRule("stop", model.LimitStop, 0)
	stop.Priority = 5
	f := newFixture(t, activeRule("limit", model.LimitPerDay, 100), stop)

	d, err := f.ctl.TryAdmit(context.Background(), request("18:00"))
	if err != nil {
		t.Fatalf("TryAdmit: %v", err)
	}
	if d.Accepted || d.ReasonCode != ReasonStop || d.RuleID != "stop" {
		t.Fatalf("decision = %+v, want STOP denial by stop rule", d)
	}
}

func TestTryAdmitPeopleLimit(t *testing.T) {
	r := activeRule("r1", model.LimitPerDay, 5)
	r.CountUnit = model.CountPeople
	f := newFixture(t, r)
	ctx := context.Background()

	// Party of 4 fits under 5 people.
	first := request("18:00")
	first.PartySize = 4
	if d, err := f.ctl.TryAdmit(ctx, first); err != nil || !d.Accepted {
		t.Fatalf("first: %+v %v", d, err)
	}
	// Another party of 2 would make 6.
	second := request("19:00")
	if d, err := f.ctl.TryAdmit(ctx, second); err != nil {
		t.Fatalf("second: %v", err)
	} else if d.Accepted || d.ReasonCode != ReasonPeopleLimit {
		t.Fatalf("second = %+v, want PEOPLE_LIMIT denial", d)
	}
	// A party of 1 still fits exactly.
	third := request("19:00")
	third.PartySize = 1
	if d, err := f.ctl.TryAdmit(ctx, third); err != nil || !d.Accepted {
		t.Fatalf("third: %+v %v", d, err)
	}
}

func TestTryAdmitScopedRuleIgnoresOtherSeats(t *testing.T) {
	r := activeRule("counter-only", model.LimitPerDay, 1)
	r.Scope = model.ScopeSeatType
	r.ScopeIDs = []string{"counter"}
	f := newFixture(t, r)
	ctx := context.Background()

	if d, err := f.ctl.TryAdmit(ctx, request("18:00")); err != nil || !d.Accepted {
		t.Fatalf("counter admission: %+v %v", d, err)
	}

	table := request("19:00")
	table.SeatType = "table"
	if d, err := f.ctl.TryAdmit(ctx, table); err != nil || !d.Accepted {
		t.Fatalf("table seat should not be limited: %+v %v", d, err)
	}

	if d, err := f.ctl.TryAdmit(ctx, request("20:00")); err != nil {
		t.Fatalf("second counter: %v", err)
	} else if d.Accepted {
		t.Fatal("second counter reservation should be denied")
	}
}

func TestCancelFreesCapacity(t *testing.T) {
	f := newFixture(t, activeRule("r1", model.LimitPerDay, 1))
	ctx := context.Background()

	d, err := f.ctl.TryAdmit(ctx, request("18:00"))
	if err != nil || !d.Accepted {
		t.Fatalf("admission: %+v %v", d, err)
	}
	if d2, err := f.ctl.TryAdmit(ctx, request("19:00")); err != nil || d2.Accepted {
		t.Fatalf("store should be full: %+v %v", d2, err)
	}

	if err := f.ctl.Cancel(ctx, d.Reservation.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := f.ctl.Cancel(ctx, d.Reservation.ID); !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("second cancel err = %v, want ErrAlreadyCancelled", err)
	}
	if err := f.ctl.Cancel(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown cancel err = %v, want ErrNotFound", err)
	}

	if d3, err := f.ctl.TryAdmit(ctx, request("20:00")); err != nil || !d3.Accepted {
		t.Fatalf("capacity not freed after cancel: %+v %v", d3, err)
	}
}

func TestTryAdmitIdempotencyKeyDedupes(t *testing.T) {
	f := newFixture(t, activeRule("r1", model.LimitPerDay, 5))
	ctx := context.Background()

	req := request("18:00")
	req.IdempotencyKey = "client-key-1"

	first, err := f.ctl.TryAdmit(ctx, req)
	if err != nil || !first.Accepted {
		t.Fatalf("first: %+v %v", first, err)
	}
	second, err := f.ctl.TryAdmit(ctx, req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if second.Reservation == nil || second.Reservation.ID != first.Reservation.ID {
		t.Fatalf("replay created a new reservation: first=%+v second=%+v", first.Reservation, second.Reservation)
	}
	if n := confirmedCount(t, f); n != 1 {
		t.Errorf("stored = %d, want 1", n)
	}
}

func TestTryAdmitConcurrentSameIdempotencyKey(t *testing.T) {
	f := newFixture(t, activeRule("r1", model.LimitPerDay, 10))
	ctx := context.Background()

	req := request("18:00")
	req.IdempotencyKey = "burst-key"

	const attempts = 8
	var wg sync.WaitGroup
	ids := make([]string, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := f.ctl.TryAdmit(ctx, req)
			if err == nil && d.Reservation != nil {
				ids[i] = d.Reservation.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < attempts; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("attempt %d got id %q, attempt 0 got %q", i, ids[i], ids[0])
		}
	}
	if n := confirmedCount(t, f); n != 1 {
		t.Errorf("stored = %d, want 1", n)
	}
}

func TestLockKeyGranularity(t *testing.T) {
	mk := func(limit model.LimitType) model.Rule {
		r := activeRule("r", limit, 1)
		return r
	}

	cases := []struct {
		name  string
		rules []model.Rule
		want  string
	}{
		{"no rules", nil, "adm:s1:2026-03-07:18:30"},
		{"concurrent only", []model.Rule{mk(model.LimitConcurrent)}, "adm:s1:2026-03-07:18:30"},
		{"hourly", []model.Rule{mk(model.LimitConcurrent), mk(model.LimitPerHour)}, "adm:s1:2026-03-07:18"},
		{"daily wins", []model.Rule{mk(model.LimitPerHour), mk(model.LimitPerDay)}, "adm:s1:2026-03-07"},
		{"stop widens to day", []model.Rule{mk(model.LimitStop)}, "adm:s1:2026-03-07"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := lockKey("s1", "2026-03-07", "18:30", tc.rules); got != tc.want {
				t.Errorf("lockKey = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLockKeyIgnoresTimeWindowedRules(t *testing.T) {
	// A daily rule restricted to lunch still forces day-wide locking for a
	// dinner candidate on the same date: both could race on the same rule
	// seen from another request's perspective.
	r := activeRule("lunch-cap", model.LimitPerDay, 5)
	r.TimeStart, r.TimeEnd = "11:00", "14:00"

	got := lockKey("s1", "2026-03-07", "19:00", []model.Rule{r})
	if got != "adm:s1:2026-03-07" {
		t.Errorf("lockKey = %q, want day-granular key", got)
	}
}

func TestLockKeySkipsDateInapplicableRules(t *testing.T) {
	r := activeRule("other-day", model.LimitPerDay, 5)
	r.DateStart, r.DateEnd = "2026-04-01", "2026-04-01"

	got := lockKey("s1", "2026-03-07", "18:30", []model.Rule{r})
	if got != "adm:s1:2026-03-07:18:30" {
		t.Errorf("lockKey = %q, want slot-granular key", got)
	}
}
