package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ScopeType identifies the dimension a rule restricts. A rule scoped to
// the store applies to every reservation; the other scopes restrict the
// rule to reservations carrying a matching attribute.
type ScopeType string

const (
	ScopeStore    ScopeType = "store"
	ScopeSeatType ScopeType = "seat_type"
	ScopeSeat     ScopeType = "seat"
	ScopeMenu     ScopeType = "menu"
	ScopeStaff    ScopeType = "staff"
)

// LimitType determines the window over which usage is counted, or, for
// LimitStop, that any matching reservation is rejected outright.
type LimitType string

const (
	LimitStop       LimitType = "stop"
	LimitPerHour    LimitType = "per_hour"
	LimitPerDay     LimitType = "per_day"
	LimitConcurrent LimitType = "concurrent"
)

// CountUnit selects what a rule counts: reservations (groups) or the sum
// of party sizes (people).
type CountUnit string

const (
	CountGroups CountUnit = "groups"
	CountPeople CountUnit = "people"
)

// DateLayout and TimeLayout are the canonical encodings for rule and
// reservation dates/times. Both compare correctly as plain strings, so
// predicates throughout the codebase use lexicographic comparison.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Rule is an operator-authored constraint limiting reservations within a
// scope and time window. Rules are immutable once created except for the
// Active flag: deactivation is a soft delete so the audit history of why
// a booking was denied is never lost.
//
// Empty DateStart/DateEnd mean an unbounded date range, a nil Weekdays
// slice means all days, and empty TimeStart/TimeEnd mean open at that end.
// Weekday numbering follows time.Weekday: Sunday=0 .. Saturday=6.
type Rule struct {
	ID          string    `json:"id"`
	StoreID     string    `json:"store_id"`
	Scope       ScopeType `json:"scope_type"`
	ScopeIDs    []string  `json:"scope_ids,omitempty"`
	DateStart   string    `json:"date_start,omitempty"`
	DateEnd     string    `json:"date_end,omitempty"`
	Weekdays    []int     `json:"weekdays,omitempty"`
	TimeStart   string    `json:"time_start,omitempty"`
	TimeEnd     string    `json:"time_end,omitempty"`
	Limit       LimitType `json:"limit_type"`
	LimitValue  int       `json:"limit_value,omitempty"`
	CountUnit   CountUnit `json:"count_unit"`
	Priority    int       `json:"priority"`
	Active      bool      `json:"active"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
}

// Validation errors shared by the structured API and the command parser.
var (
	ErrScopeIDsRequired  = errors.New("scope_ids required for non-store scope")
	ErrScopeIDsForbidden = errors.New("scope_ids must be empty for store scope")
	ErrInvalidDateRange  = errors.New("date_start must not be after date_end")
	ErrInvalidTimeRange  = errors.New("time_start must not be after time_end")
	ErrInvalidLimitValue = errors.New("limit_value must be positive")
	ErrInvalidScopeType  = errors.New("unknown scope_type")
	ErrInvalidLimitType  = errors.New("unknown limit_type")
	ErrInvalidWeekday    = errors.New("weekday out of range")
)

// Validate checks the field-combination invariants. It is called once at
// construction time; rules loaded back from the store are trusted.
func (r *Rule) Validate() error {
	switch r.Scope {
	case ScopeStore:
		if len(r.ScopeIDs) > 0 {
			return ErrScopeIDsForbidden
		}
	case ScopeSeatType, ScopeSeat, ScopeMenu, ScopeStaff:
		if len(r.ScopeIDs) == 0 {
			return ErrScopeIDsRequired
		}
	default:
		return ErrInvalidScopeType
	}
	switch r.Limit {
	case LimitStop:
		// stop rules carry no numeric limit
	case LimitPerHour, LimitPerDay, LimitConcurrent:
		if r.LimitValue <= 0 {
			return ErrInvalidLimitValue
		}
	default:
		return ErrInvalidLimitType
	}
	if r.DateStart != "" {
		if _, err := time.Parse(DateLayout, r.DateStart); err != nil {
			return fmt.Errorf("invalid date_start: %w", err)
		}
	}
	if r.DateEnd != "" {
		if _, err := time.Parse(DateLayout, r.DateEnd); err != nil {
			return fmt.Errorf("invalid date_end: %w", err)
		}
	}
	if r.DateStart != "" && r.DateEnd != "" && r.DateStart > r.DateEnd {
		return ErrInvalidDateRange
	}
	if r.TimeStart != "" && r.TimeEnd != "" && r.TimeStart > r.TimeEnd {
		return ErrInvalidTimeRange
	}
	for _, wd := range r.Weekdays {
		if wd < 0 || wd > 6 {
			return ErrInvalidWeekday
		}
	}
	if r.CountUnit != CountGroups && r.CountUnit != CountPeople {
		return fmt.Errorf("unknown count_unit %q", r.CountUnit)
	}
	return nil
}

// ScopeSpecificity orders scopes from broadest to most specific. It is
// the tie-break used when two matching rules share the same priority:
// the rule naming a concrete seat beats one naming a seat type, which
// beats a store-wide rule.
func (r *Rule) ScopeSpecificity() int {
	switch r.Scope {
	case ScopeSeat:
		return 3
	case ScopeMenu, ScopeStaff:
		return 2
	case ScopeSeatType:
		return 1
	default:
		return 0
	}
}

var weekdayShort = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var scopeLabels = map[ScopeType]string{
	ScopeSeatType: "seat type",
	ScopeSeat:     "seat",
	ScopeMenu:     "menu",
	ScopeStaff:    "staff",
}

// Describe renders the deterministic human-readable description for a
// rule. The same structured fields always produce the same text, so the
// description is regenerated rather than stored as operator input.
func (r *Rule) Describe() string {
	var b strings.Builder

	switch {
	case r.DateStart != "" && r.DateStart == r.DateEnd:
		b.WriteString(r.DateStart)
	case r.DateStart != "" && r.DateEnd != "":
		b.WriteString(r.DateStart + ".." + r.DateEnd)
	case r.DateStart != "":
		b.WriteString("from " + r.DateStart)
	case r.DateEnd != "":
		b.WriteString("until " + r.DateEnd)
	}

	if len(r.Weekdays) > 0 {
		days := append([]int(nil), r.Weekdays...)
		sort.Ints(days)
		names := make([]string, 0, len(days))
		for _, d := range days {
			names = append(names, weekdayShort[d])
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(strings.Join(names, ","))
	}

	switch {
	case r.TimeStart != "" && r.TimeEnd != "":
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(r.TimeStart + "-" + r.TimeEnd)
	case r.TimeStart != "":
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("from " + r.TimeStart)
	case r.TimeEnd != "":
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("until " + r.TimeEnd)
	}

	if b.Len() == 0 {
		b.WriteString("always")
	}
	b.WriteString(": ")

	unit := "groups"
	if r.CountUnit == CountPeople {
		unit = "people"
	}
	switch r.Limit {
	case LimitStop:
		b.WriteString("reservations stopped")
	case LimitPerHour:
		fmt.Fprintf(&b, "max %d %s per hour", r.LimitValue, unit)
	case LimitPerDay:
		fmt.Fprintf(&b, "max %d %s per day", r.LimitValue, unit)
	case LimitConcurrent:
		fmt.Fprintf(&b, "max %d %s per slot", r.LimitValue, unit)
	}

	if r.Scope != ScopeStore && len(r.ScopeIDs) > 0 {
		fmt.Fprintf(&b, " (%s: %s)", scopeLabels[r.Scope], strings.Join(r.ScopeIDs, ","))
	}
	return b.String()
}
