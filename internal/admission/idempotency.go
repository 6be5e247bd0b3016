package admission

import (
	"context"
	"sync"
	"time"
)

// IdempotencyCache deduplicates retried admission requests. The first
// caller for a key executes fn; concurrent callers with the same key wait
// for that result instead of re-evaluating, so a client retry can never
// double-count. Outcomes are remembered for a short TTL.
//
// It is an injected dependency (not a package-level singleton) so tests
// control time and isolate state per case.
type IdempotencyCache interface {
	Do(ctx context.Context, key string, ttl time.Duration, fn func() (Decision, error)) (Decision, error)
}

type idemEntry struct {
	done     chan struct{}
	decision Decision
	err      error
	expires  time.Time
}

// MemoryIdempotency is the in-process IdempotencyCache. Suited to the
// single-authoritative-process deployment model; the latch channel makes
// duplicate requests block until the leader finishes.
type MemoryIdempotency struct {
	mu      sync.Mutex
	entries map[string]*idemEntry
	now     func() time.Time
}

// NewMemoryIdempotency returns an empty cache.
func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{entries: make(map[string]*idemEntry), now: time.Now}
}

// Do runs fn once per key within the TTL. Errors are delivered to all
// waiters but never cached: a failed attempt may be retried with the
// same key.
func (m *MemoryIdempotency) Do(ctx context.Context, key string, ttl time.Duration, fn func() (Decision, error)) (Decision, error) {
	for {
		m.mu.Lock()
		e, ok := m.entries[key]
		if ok && e.err == nil {
			select {
			case <-e.done:
				// completed; honor the TTL
				if m.now().Before(e.expires) {
					m.mu.Unlock()
					return e.decision, nil
				}
				delete(m.entries, key)
				ok = false
			default:
				// in flight: wait outside the map lock
			}
		} else if ok {
			delete(m.entries, key)
			ok = false
		}
		if !ok {
			e = &idemEntry{done: make(chan struct{})}
			m.entries[key] = e
			m.mu.Unlock()

			dec, err := fn()
			m.mu.Lock()
			e.decision, e.err = dec, err
			e.expires = m.now().Add(ttl)
			close(e.done)
			if err != nil {
				delete(m.entries, key)
			}
			m.mu.Unlock()
			return dec, err
		}
		m.mu.Unlock()

		select {
		case <-e.done:
			if e.err != nil {
				return Decision{}, e.err
			}
			return e.decision, nil
		case <-ctx.Done():
			return Decision{}, ctx.Err()
		}
	}
}
