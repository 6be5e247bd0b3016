// Package usage computes committed usage for a rule's scope and window.
// The counter must run inside the same lock scope as the admission write;
// counting outside the lock reintroduces the check-then-act race this
// service exists to prevent.
package usage

import (
	"context"
	"fmt"

	"github.com/kazuhito/yoyaku/internal/model"
	"github.com/kazuhito/yoyaku/internal/rule"
)

// ReservationSource lists the confirmed reservations for one store and
// day. The counter narrows results to the rule's window and scope, so a
// day-granular query is all the storage layer has to provide.
type ReservationSource interface {
	ListConfirmedByDate(ctx context.Context, storeID, date string) ([]model.CommittedReservation, error)
}

// Counter computes current usage against a reservation source.
type Counter struct {
	Source ReservationSource
}

// NewCounter returns a Counter reading from src.
func NewCounter(src ReservationSource) *Counter { return &Counter{Source: src} }

// Count returns the usage a rule currently sees for the candidate's
// window: the number of matching confirmed reservations, or the sum of
// their party sizes when the rule counts people.
func (c *Counter) Count(ctx context.Context, r model.Rule, candidate model.ReservationRequest) (int, error) {
	reservations, err := c.Source.ListConfirmedByDate(ctx, candidate.StoreID, candidate.Date)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, res := range reservations {
		if res.Status != model.StatusConfirmed {
			continue
		}
		if !InWindow(r.Limit, candidate.Time, res.Time) {
			continue
		}
		if !rule.ScopeMatches(r, res.SeatType, res.SeatID, res.Menu, res.Staff) {
			continue
		}
		if r.CountUnit == model.CountPeople {
			total += res.PartySize
		} else {
			total++
		}
	}
	return total, nil
}

// Contribution is what admitting the candidate would add to the count:
// one group, or the whole party when the rule counts people.
func Contribution(r model.Rule, candidate model.ReservationRequest) int {
	if r.CountUnit == model.CountPeople {
		return candidate.PartySize
	}
	return 1
}

// InWindow reports whether a reservation at resTime falls in the counting
// window the limit type derives from candidateTime. All reservations
// compared here already share the candidate's date.
func InWindow(limit model.LimitType, candidateTime, resTime string) bool {
	switch limit {
	case model.LimitPerDay, model.LimitStop:
		return true
	case model.LimitPerHour:
		start, end := HourWindow(candidateTime)
		return resTime >= start && resTime < end
	case model.LimitConcurrent:
		return resTime == candidateTime
	default:
		return false
	}
}

// HourWindow returns the half-open clock-hour window containing t
// ("13:45" -> ["13:00", "14:00")). End is "24:00" for the last hour,
// which compares correctly as a string bound.
func HourWindow(t string) (start, end string) {
	hh := t[:2]
	start = hh + ":00"
	var h int
	fmt.Sscanf(hh, "%d", &h)
	end = fmt.Sprintf("%02d:00", h+1)
	return start, end
}
