// Package availability derives the per-slot status view UI calendars
// poll. It is a pure read path over the same rule evaluation the write
// path uses and never grants or denies admission itself.
package availability

import (
	"context"
	"time"

	"github.com/kazuhito/yoyaku/internal/model"
	"github.com/kazuhito/yoyaku/internal/rule"
	"github.com/kazuhito/yoyaku/internal/usage"
)

// Slot statuses, classified from the tightest-binding rule's usage ratio.
// The thresholds are fixed and shared by every consumer so the calendar
// and the admission responses can never disagree about what "almost full"
// means.
const (
	StatusAvailable = "available" // usage < 50%
	StatusModerate  = "moderate"  // 50-79%
	StatusLimited   = "limited"   // 80-99%
	StatusFull      = "full"      // >= 100% or stopped
	StatusUnknown   = "unknown"   // read-path failure; display only
)

// SlotStatus is the projection for one time slot. Remaining is -1 when
// no numeric rule binds the slot.
type SlotStatus struct {
	Status    string `json:"status"`
	Remaining int    `json:"remaining"`
	Message   string `json:"message,omitempty"`
}

// RuleSource yields the active rules for a store. The cached rule store
// satisfies it; slot projection tolerates rule lists a few seconds stale.
type RuleSource interface {
	ActiveByStore(ctx context.Context, storeID string) ([]model.Rule, error)
}

// Projector computes slot statuses over the store's business hours.
type Projector struct {
	rules   RuleSource
	counter *usage.Counter

	open        string
	close       string
	slotMinutes int
}

// NewProjector builds a Projector walking [open, close) in slotMinutes
// steps. Zero/empty arguments fall back to 11:00-22:00 every 30 minutes.
func NewProjector(rules RuleSource, reservations usage.ReservationSource, open, close string, slotMinutes int) *Projector {
	if open == "" {
		open = "11:00"
	}
	if close == "" {
		close = "22:00"
	}
	if slotMinutes <= 0 {
		slotMinutes = 30
	}
	return &Projector{
		rules:       rules,
		counter:     usage.NewCounter(reservations),
		open:        open,
		close:       close,
		slotMinutes: slotMinutes,
	}
}

// Project returns the status map for every slot of the given date. Rule
// or reservation read failures degrade to StatusUnknown instead of
// propagating: a broken calendar cell beats a blocked calendar, and the
// write path stays strict regardless.
func (p *Projector) Project(ctx context.Context, storeID, date string) map[string]SlotStatus {
	slots := p.slotTimes()
	out := make(map[string]SlotStatus, len(slots))

	rules, err := p.rules.ActiveByStore(ctx, storeID)
	if err != nil {
		for _, t := range slots {
			out[t] = SlotStatus{Status: StatusUnknown, Remaining: -1}
		}
		return out
	}

	for _, t := range slots {
		probe := model.ReservationRequest{StoreID: storeID, Date: date, Time: t, PartySize: 1}
		out[t] = p.slotStatus(ctx, probe, rules)
	}
	return out
}

// slotStatus classifies one slot by its tightest-binding rule: the
// matching rule with the highest usage ratio. A stop rule binds
// absolutely.
func (p *Projector) slotStatus(ctx context.Context, probe model.ReservationRequest, rules []model.Rule) SlotStatus {
	matched := rule.Match(probe, rules)
	if len(matched) == 0 {
		return SlotStatus{Status: StatusAvailable, Remaining: -1}
	}

	binding := SlotStatus{Status: StatusAvailable, Remaining: -1}
	bestRatio := -1.0
	for _, r := range matched {
		if r.Limit == model.LimitStop {
			return SlotStatus{Status: StatusFull, Remaining: 0, Message: r.Description}
		}
		used, err := p.counter.Count(ctx, r, probe)
		if err != nil {
			return SlotStatus{Status: StatusUnknown, Remaining: -1}
		}
		ratio := float64(used) / float64(r.LimitValue)
		if ratio > bestRatio {
			bestRatio = ratio
			remaining := r.LimitValue - used
			if remaining < 0 {
				remaining = 0
			}
			binding = SlotStatus{Status: classify(ratio), Remaining: remaining, Message: r.Description}
		}
	}
	return binding
}

func classify(ratio float64) string {
	switch {
	case ratio >= 1.0:
		return StatusFull
	case ratio >= 0.8:
		return StatusLimited
	case ratio >= 0.5:
		return StatusModerate
	default:
		return StatusAvailable
	}
}

func (p *Projector) slotTimes() []string {
	start, err := time.Parse(model.TimeLayout, p.open)
	if err != nil {
		return nil
	}
	end, err := time.Parse(model.TimeLayout, p.close)
	if err != nil {
		return nil
	}
	var out []string
	for t := start; t.Before(end); t = t.Add(time.Duration(p.slotMinutes) * time.Minute) {
		out = append(out, t.Format(model.TimeLayout))
	}
	return out
}
