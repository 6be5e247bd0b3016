// Package admission decides whether a prospective reservation may be
// accepted under the store's capacity rules. It is the concurrency core
// of the service: matching, counting and the accept/deny write happen
// under one scope lock so racing requests can never over-book a window.
package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kazuhito/yoyaku/internal/lock"
	"github.com/kazuhito/yoyaku/internal/model"
	"github.com/kazuhito/yoyaku/internal/rule"
	"github.com/kazuhito/yoyaku/internal/usage"
)

// Stable reason codes front-ends branch on. The message accompanying a
// code is the denying rule's description and may be shown verbatim.
const (
	ReasonStop            = "STOP"
	ReasonHourlyLimit     = "HOURLY_LIMIT"
	ReasonDailyLimit      = "DAILY_LIMIT"
	ReasonConcurrentLimit = "CONCURRENT_LIMIT"
	ReasonPeopleLimit     = "PEOPLE_LIMIT"
)

// Sentinel errors for the truly exceptional conditions. Capacity denial
// is a normal Decision, never an error.
var (
	// ErrConcurrencyConflict means the scope lock could not be acquired in
	// time. Retryable with backoff; must never be conflated with a denial.
	ErrConcurrencyConflict = errors.New("admission: concurrency conflict")
	// ErrNotFound is returned by Cancel for an unknown reservation.
	ErrNotFound = errors.New("admission: reservation not found")
	// ErrAlreadyCancelled is returned when cancelling twice.
	ErrAlreadyCancelled = errors.New("admission: reservation already cancelled")
)

// Decision is the outcome of an admission attempt. Reservation is set
// only when Accepted.
type Decision struct {
	Accepted    bool                        `json:"accepted"`
	Reservation *model.CommittedReservation `json:"reservation,omitempty"`
	ReasonCode  string                      `json:"reason_code,omitempty"`
	RuleID      string                      `json:"rule_id,omitempty"`
	Message     string                      `json:"message,omitempty"`
}

// RuleSource yields the active rules for a store.
type RuleSource interface {
	ActiveByStore(ctx context.Context, storeID string) ([]model.Rule, error)
}

// ReservationStore persists committed reservations. Insert and the
// queries feeding the usage counter execute while the controller holds
// the scope lock.
type ReservationStore interface {
	usage.ReservationSource
	Insert(ctx context.Context, res *model.CommittedReservation) error
	GetByID(ctx context.Context, id string) (*model.CommittedReservation, error)
	MarkCancelled(ctx context.Context, id string) error
}

// Controller orchestrates matching, counting and the atomic accept/deny
// decision.
type Controller struct {
	rules        RuleSource
	reservations ReservationStore
	locks        lock.ScopeLock
	counter      *usage.Counter
	idem         IdempotencyCache
	lockTimeout  time.Duration
	idemTTL      time.Duration
	now          func() time.Time
}

// Options tune controller behavior; zero values get sensible defaults.
type Options struct {
	LockTimeout    time.Duration // default 3s
	IdempotencyTTL time.Duration // default 1m
	Now            func() time.Time
}

// NewController wires the admission dependencies. rules, reservations and
// locks are required; idem may be nil when deduplication is handled
// elsewhere.
func NewController(rules RuleSource, reservations ReservationStore, locks lock.ScopeLock, idem IdempotencyCache, opts Options) *Controller {
	if rules == nil || reservations == nil || locks == nil {
		panic("nil dependency passed to NewController")
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 3 * time.Second
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		rules:        rules,
		reservations: reservations,
		locks:        locks,
		counter:      usage.NewCounter(reservations),
		idem:         idem,
		lockTimeout:  opts.LockTimeout,
		idemTTL:      opts.IdempotencyTTL,
		now:          opts.Now,
	}
}

// TryAdmit evaluates the candidate against all applicable rules and, when
// none denies, commits the reservation. Denial is reported in the
// Decision; the error channel is reserved for validation failures, lock
// timeouts and datastore errors. Write-path failures fail closed.
func (ctl *Controller) TryAdmit(ctx context.Context, candidate model.ReservationRequest) (Decision, error) {
	if err := candidate.Validate(); err != nil {
		return Decision{}, err
	}
	if ctl.idem == nil || candidate.IdempotencyKey == "" {
		return ctl.admit(ctx, candidate)
	}
	return ctl.idem.Do(ctx, candidate.IdempotencyKey, ctl.idemTTL, func() (Decision, error) {
		return ctl.admit(ctx, candidate)
	})
}

func (ctl *Controller) admit(ctx context.Context, candidate model.ReservationRequest) (Decision, error) {
	rules, err := ctl.rules.ActiveByStore(ctx, candidate.StoreID)
	if err != nil {
		return Decision{}, err
	}

	key := lockKey(candidate.StoreID, candidate.Date, candidate.Time, rules)
	if err := ctl.locks.Acquire(ctx, key, ctl.lockTimeout); err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return Decision{}, ErrConcurrencyConflict
		}
		return Decision{}, err
	}
	defer ctl.locks.Release(key)

	for _, r := range rule.Match(candidate, rules) {
		if r.Limit == model.LimitStop {
			return deny(r, ReasonStop), nil
		}
		used, err := ctl.counter.Count(ctx, r, candidate)
		if err != nil {
			return Decision{}, err
		}
		if used+usage.Contribution(r, candidate) > r.LimitValue {
			return deny(r, reasonFor(r)), nil
		}
	}

	res := &model.CommittedReservation{
		ID:        uuid.NewString(),
		StoreID:   candidate.StoreID,
		Date:      candidate.Date,
		Time:      candidate.Time,
		PartySize: candidate.PartySize,
		SeatType:  candidate.SeatType,
		SeatID:    candidate.SeatID,
		Menu:      candidate.Menu,
		Staff:     candidate.Staff,
		Status:    model.StatusConfirmed,
		CreatedAt: ctl.now().UTC(),
	}
	if err := ctl.reservations.Insert(ctx, res); err != nil {
		return Decision{}, err
	}
	return Decision{Accepted: true, Reservation: res}, nil
}

// Cancel transitions a confirmed reservation to cancelled under the same
// lock discipline as admission, so the freed capacity becomes visible
// atomically with respect to racing admissions.
func (ctl *Controller) Cancel(ctx context.Context, reservationID string) error {
	res, err := ctl.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return err
	}
	if res == nil {
		return ErrNotFound
	}

	rules, err := ctl.rules.ActiveByStore(ctx, res.StoreID)
	if err != nil {
		return err
	}
	key := lockKey(res.StoreID, res.Date, res.Time, rules)
	if err := ctl.locks.Acquire(ctx, key, ctl.lockTimeout); err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return ErrConcurrencyConflict
		}
		return err
	}
	defer ctl.locks.Release(key)

	current, err := ctl.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrNotFound
	}
	if current.Status == model.StatusCancelled {
		return ErrAlreadyCancelled
	}
	return ctl.reservations.MarkCancelled(ctx, reservationID)
}

// Reservation returns a committed reservation by ID, or nil when the ID
// is unknown. Read-only; no lock is taken.
func (ctl *Controller) Reservation(ctx context.Context, id string) (*model.CommittedReservation, error) {
	return ctl.reservations.GetByID(ctx, id)
}

func deny(r model.Rule, reason string) Decision {
	return Decision{
		Accepted:   false,
		ReasonCode: reason,
		RuleID:     r.ID,
		Message:    r.Description,
	}
}

// reasonFor maps the denying rule to its stable reason code. Rules that
// count people report PEOPLE_LIMIT regardless of window, matching what a
// guest is actually told ("we are full for that many people").
func reasonFor(r model.Rule) string {
	if r.CountUnit == model.CountPeople {
		return ReasonPeopleLimit
	}
	switch r.Limit {
	case model.LimitPerHour:
		return ReasonHourlyLimit
	case model.LimitPerDay:
		return ReasonDailyLimit
	case model.LimitConcurrent:
		return ReasonConcurrentLimit
	default:
		return ReasonStop
	}
}

// lockKey derives the serialization key for a candidate. The granularity
// is the broadest window among the store's active rules whose date and
// weekday predicates accept the candidate's date; time and scope
// predicates are deliberately ignored so two candidates that could share
// any rule always share a key. Over-locking is safe, under-locking is the
// over-booking hazard.
func lockKey(storeID, date, tm string, rules []model.Rule) string {
	level := model.LimitConcurrent
	for _, r := range rules {
		if !r.Active || !dateApplies(r, date) {
			continue
		}
		switch r.Limit {
		case model.LimitStop, model.LimitPerDay:
			level = model.LimitPerDay
		case model.LimitPerHour:
			if level != model.LimitPerDay {
				level = model.LimitPerHour
			}
		}
	}
	switch level {
	case model.LimitPerDay:
		return fmt.Sprintf("adm:%s:%s", storeID, date)
	case model.LimitPerHour:
		return fmt.Sprintf("adm:%s:%s:%s", storeID, date, tm[:2])
	default:
		return fmt.Sprintf("adm:%s:%s:%s", storeID, date, tm)
	}
}

func dateApplies(r model.Rule, date string) bool {
	if r.DateStart != "" && date < r.DateStart {
		return false
	}
	if r.DateEnd != "" && date > r.DateEnd {
		return false
	}
	if len(r.Weekdays) > 0 {
		cand := model.ReservationRequest{Date: date}
		wd := cand.Weekday()
		for _, d := range r.Weekdays {
			if d == wd {
				return true
			}
		}
		return false
	}
	return true
}
