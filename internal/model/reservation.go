package model

import (
	"errors"
	"fmt"
	"time"
)

// Reservation statuses. A committed reservation is immutable except for
// the single confirmed -> cancelled transition.
const (
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
)

// ReservationRequest is an ephemeral admission candidate. It is never
// persisted; only the controller turns an accepted request into a
// CommittedReservation.
//
// Date/Time use DateLayout/TimeLayout. The optional attributes carry the
// values rule scopes match against; leave them empty when not applicable.
type ReservationRequest struct {
	StoreID        string `json:"store_id"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	PartySize      int    `json:"party_size"`
	SeatType       string `json:"seat_type,omitempty"`
	SeatID         string `json:"seat_id,omitempty"`
	Menu           string `json:"menu,omitempty"`
	Staff          string `json:"staff,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// ValidationError reports a malformed reservation request. It is raised
// before any rule evaluation so invalid candidates never reach the
// admission path.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid reservation request: %s %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks the required fields and rewrites Date and Time into
// their canonical zero-padded encodings. Everything downstream compares
// these as plain strings, so "9:30" must become "09:30" here or two
// spellings of one slot would count and lock independently.
func (q *ReservationRequest) Validate() error {
	if q.StoreID == "" {
		return &ValidationError{Field: "store_id", Reason: "is required"}
	}
	d, err := time.Parse(DateLayout, q.Date)
	if err != nil {
		return &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	q.Date = d.Format(DateLayout)
	t, err := time.Parse(TimeLayout, q.Time)
	if err != nil {
		return &ValidationError{Field: "time", Reason: "must be HH:MM"}
	}
	q.Time = t.Format(TimeLayout)
	if q.PartySize <= 0 {
		return &ValidationError{Field: "party_size", Reason: "must be positive"}
	}
	return nil
}

// Weekday returns the candidate date's weekday (Sunday=0). The date must
// have passed Validate.
func (q *ReservationRequest) Weekday() int {
	t, _ := time.Parse(DateLayout, q.Date)
	return int(t.Weekday())
}

// CommittedReservation is a reservation that passed admission. Created
// exclusively by the admission controller while holding the scope lock;
// cancellation releases its counted usage.
type CommittedReservation struct {
	ID        string    `json:"id"`
	StoreID   string    `json:"store_id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	PartySize int       `json:"party_size"`
	SeatType  string    `json:"seat_type,omitempty"`
	SeatID    string    `json:"seat_id,omitempty"`
	Menu      string    `json:"menu,omitempty"`
	Staff     string    `json:"staff,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
