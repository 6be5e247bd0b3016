// Package repository implements persistence for rules, reservations and
// operator accounts. Sentinel errors defined here let handlers translate
// failure scenarios into HTTP responses without inspecting driver errors.
package repository

import "errors"

// ErrRuleNotFound is returned when no rule matches a lookup, for example
// a /limit off prefix that matches nothing.
var ErrRuleNotFound = errors.New("rule not found")

// ErrReservationNotFound is returned for lookups of unknown reservation
// IDs.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrOperatorNotFound is returned when an operator email has no account.
var ErrOperatorNotFound = errors.New("operator not found")

// ErrDuplicate is returned when an insert collides with an existing row,
// such as registering an operator email twice.
var ErrDuplicate = errors.New("duplicate entry")
