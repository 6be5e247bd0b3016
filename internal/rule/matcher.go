// Package rule implements rule matching and the operator command grammar.
// Matching is a pure function of the rule fields and the candidate, so the
// write path (admission) and the read path (availability projection) share
// one evaluation logic instead of duplicating per-endpoint math.
package rule

import (
	"sort"

	"github.com/kazuhito/yoyaku/internal/model"
)

// Match returns the active rules applicable to the candidate, in
// deterministic evaluation order: priority descending, then scope
// specificity (seat > menu/staff > seat_type > store), then created_at
// ascending. The ordering never depends on the order rules arrive in.
func Match(candidate model.ReservationRequest, rules []model.Rule) []model.Rule {
	matched := make([]model.Rule, 0, len(rules))
	for _, r := range rules {
		if !r.Active {
			continue
		}
		if Applies(r, candidate) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if sa, sb := a.ScopeSpecificity(), b.ScopeSpecificity(); sa != sb {
			return sa > sb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return matched
}

// Applies reports whether every predicate of the rule holds for the
// candidate: date range, weekday set, time range and scope.
func Applies(r model.Rule, candidate model.ReservationRequest) bool {
	if r.DateStart != "" && candidate.Date < r.DateStart {
		return false
	}
	if r.DateEnd != "" && candidate.Date > r.DateEnd {
		return false
	}
	if len(r.Weekdays) > 0 {
		wd := candidate.Weekday()
		found := false
		for _, d := range r.Weekdays {
			if d == wd {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if r.TimeStart != "" && candidate.Time < r.TimeStart {
		return false
	}
	if r.TimeEnd != "" && candidate.Time > r.TimeEnd {
		return false
	}
	return ScopeMatches(r, candidate.SeatType, candidate.SeatID, candidate.Menu, candidate.Staff)
}

// ScopeMatches checks only the scope predicate. It is shared with usage
// counting, where committed reservations are tested against the same rule
// the candidate matched.
func ScopeMatches(r model.Rule, seatType, seatID, menu, staff string) bool {
	var attr string
	switch r.Scope {
	case model.ScopeStore:
		return true
	case model.ScopeSeatType:
		attr = seatType
	case model.ScopeSeat:
		attr = seatID
	case model.ScopeMenu:
		attr = menu
	case model.ScopeStaff:
		attr = staff
	default:
		return false
	}
	if attr == "" {
		return false
	}
	for _, id := range r.ScopeIDs {
		if id == attr {
			return true
		}
	}
	return false
}
