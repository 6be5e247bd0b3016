package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/kazuhito/yoyaku/internal/model"
)

// In-memory store implementations. They back the test suites and the
// datastore-free dev mode (DB_DRIVER=memory); the MySQL repos are the
// production path. Both sides satisfy the same interfaces so the
// admission controller cannot tell them apart.

// MemoryRuleStore is a mutex-guarded RuleStore.
type MemoryRuleStore struct {
	mu    sync.RWMutex
	rules []model.Rule
}

// NewMemoryRuleStore returns an empty in-memory rule store.
func NewMemoryRuleStore() *MemoryRuleStore { return &MemoryRuleStore{} }

// Insert stores a copy of the rule.
func (s *MemoryRuleStore) Insert(_ context.Context, r *model.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, *r)
	return nil
}

// ActiveByStore returns the active rules for a store in insertion order;
// the matcher re-sorts deterministically regardless.
func (s *MemoryRuleStore) ActiveByStore(_ context.Context, storeID string) ([]model.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Rule, 0)
	for _, r := range s.rules {
		if r.StoreID == storeID && r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

// DeactivateByIDPrefix flips the active flag on the first matching rule.
func (s *MemoryRuleStore) DeactivateByIDPrefix(_ context.Context, storeID, prefix string) (*model.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		r := &s.rules[i]
		if r.StoreID == storeID && r.Active && strings.HasPrefix(r.ID, prefix) {
			r.Active = false
			copied := *r
			return &copied, nil
		}
	}
	return nil, ErrRuleNotFound
}

// MemoryReservationStore is a mutex-guarded reservation store.
type MemoryReservationStore struct {
	mu           sync.RWMutex
	reservations map[string]model.CommittedReservation
}

// NewMemoryReservationStore returns an empty in-memory reservation store.
func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{reservations: make(map[string]model.CommittedReservation)}
}

// Insert stores a copy of the reservation.
func (s *MemoryReservationStore) Insert(_ context.Context, res *model.CommittedReservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[res.ID] = *res
	return nil
}

// GetByID returns a copy, or (nil, nil) when absent.
func (s *MemoryReservationStore) GetByID(_ context.Context, id string) (*model.CommittedReservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.reservations[id]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

// MarkCancelled performs the confirmed -> cancelled transition.
func (s *MemoryReservationStore) MarkCancelled(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.reservations[id]
	if !ok || res.Status != model.StatusConfirmed {
		return ErrReservationNotFound
	}
	res.Status = model.StatusCancelled
	s.reservations[id] = res
	return nil
}

// ListConfirmedByDate returns the confirmed reservations for a store/day.
func (s *MemoryReservationStore) ListConfirmedByDate(_ context.Context, storeID, date string) ([]model.CommittedReservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CommittedReservation, 0)
	for _, res := range s.reservations {
		if res.StoreID == storeID && res.Date == date && res.Status == model.StatusConfirmed {
			out = append(out, res)
		}
	}
	return out, nil
}

// ListByStoreAndDate returns every reservation for a store/day.
func (s *MemoryReservationStore) ListByStoreAndDate(_ context.Context, storeID, date string) ([]model.CommittedReservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CommittedReservation, 0)
	for _, res := range s.reservations {
		if res.StoreID == storeID && res.Date == date {
			out = append(out, res)
		}
	}
	return out, nil
}

// MemoryOperatorStore is a fixed-set OperatorStore for dev mode and
// tests.
type MemoryOperatorStore struct {
	mu        sync.RWMutex
	operators map[string]model.Operator // keyed by email
}

// NewMemoryOperatorStore returns an empty in-memory operator store.
func NewMemoryOperatorStore() *MemoryOperatorStore {
	return &MemoryOperatorStore{operators: make(map[string]model.Operator)}
}

// Put registers or replaces an operator account.
func (s *MemoryOperatorStore) Put(op model.Operator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operators[op.Email] = op
}

// GetByEmail returns the operator for an email, or ErrOperatorNotFound.
func (s *MemoryOperatorStore) GetByEmail(_ context.Context, email string) (*model.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.operators[email]
	if !ok {
		return nil, ErrOperatorNotFound
	}
	return &op, nil
}
