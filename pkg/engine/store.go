package engine

import (
	"sync"

	"github.com/getmockd/decoy/pkg/expect"
)

// Store is the ordered collection of registered expectations and
// requirements. Registration order is the match precedence order.
// Registration happens in the configuration phase; reads during the
// matching phase are concurrent-safe, and the per-expectation counters
// are atomic.
type Store struct {
	mu           sync.RWMutex
	expectations []*expect.Expectation
	requirements []*expect.Requirement

	// changed is closed and replaced whenever a counter increments or the
	// store is cleared, waking blocked verifiers.
	changed chan struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{changed: make(chan struct{})}
}

// Register appends an expectation. A configuration error recorded by the
// expectation's builders surfaces here, before any request is served.
func (s *Store) Register(e *expect.Expectation) error {
	if err := e.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.expectations = append(s.expectations, e)
	s.mu.Unlock()
	return nil
}

// RegisterRequirement appends a requirement.
func (s *Store) RegisterRequirement(r *expect.Requirement) error {
	if err := r.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.requirements = append(s.requirements, r)
	s.mu.Unlock()
	return nil
}

// All returns the expectations in registration order. The returned slice
// is a snapshot; the expectations themselves are shared.
func (s *Store) All() []*expect.Expectation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*expect.Expectation, len(s.expectations))
	copy(out, s.expectations)
	return out
}

// Requirements returns the registered requirements in order.
func (s *Store) Requirements() []*expect.Requirement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*expect.Requirement, len(s.requirements))
	copy(out, s.requirements)
	return out
}

// Clear discards all expectations and requirements. Counters live on the
// expectation objects and are discarded with them.
func (s *Store) Clear() {
	s.mu.Lock()
	s.expectations = nil
	s.requirements = nil
	s.mu.Unlock()
	s.Signal()
}

// Len returns the number of registered expectations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expectations)
}

// Signal wakes every goroutine blocked in WaitCh. Called after each
// counter increment so verification latency tracks real completion time.
func (s *Store) Signal() {
	s.mu.Lock()
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

// WaitCh returns a channel closed on the next state change.
func (s *Store) WaitCh() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}
