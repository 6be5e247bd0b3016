// Package queue defines message payloads exchanged over the message
// broker and the background consumer that turns them into the audit log.
package queue

// ReservationAcceptedEvent is published after an admission commits. It
// carries enough for downstream consumers (notifications, analytics, the
// audit log) without querying the primary database. Publishing happens
// strictly after the scope lock is released.
type ReservationAcceptedEvent struct {
	ReservationID string `json:"reservation_id"`
	StoreID       string `json:"store_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	PartySize     int    `json:"party_size"`
	SeatType      string `json:"seat_type,omitempty"`
	SeatID        string `json:"seat_id,omitempty"`
	Menu          string `json:"menu,omitempty"`
	Staff         string `json:"staff,omitempty"`
	AcceptedAt    string `json:"accepted_at"`
}

// ReservationCancelledEvent is published after a cancellation commits.
type ReservationCancelledEvent struct {
	ReservationID string `json:"reservation_id"`
	StoreID       string `json:"store_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	CancelledAt   string `json:"cancelled_at"`
}
