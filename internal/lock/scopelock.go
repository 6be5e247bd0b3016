// Package lock provides the ScopeLock serialization primitive used by
// admission. Two admission attempts that could match the same rule and
// window must never evaluate concurrently, so the controller locks a key
// at least as coarse as the broadest matching window before counting.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when a lock cannot be acquired within the
// requested timeout. Callers surface this as a retryable concurrency
// conflict, never as a capacity denial.
var ErrTimeout = errors.New("scope lock: acquisition timed out")

// ScopeLock serializes critical sections keyed by an arbitrary composite
// string. Release must only be called by the holder after a successful
// Acquire.
type ScopeLock interface {
	Acquire(ctx context.Context, key string, timeout time.Duration) error
	Release(key string)
}

// Local is an in-process ScopeLock backed by per-key wait channels. It is
// sufficient when a single process owns the authoritative datastore, and
// it is what the admission tests run against.
type Local struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewLocal returns an empty in-process lock table.
func NewLocal() *Local {
	return &Local{held: make(map[string]chan struct{})}
}

// Acquire blocks until the key is free, the timeout elapses, or the
// context is cancelled.
func (l *Local) Acquire(ctx context.Context, key string, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		l.mu.Lock()
		ch, taken := l.held[key]
		if !taken {
			l.held[key] = make(chan struct{})
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()
		select {
		case <-ch:
			// holder released; retry the claim
		case <-timer.C:
			return ErrTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Release frees the key and wakes all waiters. Releasing a key that is
// not held is a no-op.
func (l *Local) Release(key string) {
	l.mu.Lock()
	ch, ok := l.held[key]
	if ok {
		delete(l.held, key)
	}
	l.mu.Unlock()
	if ok {
		close(ch)
	}
}
