package engine

import (
	"time"
)

// WaitForever makes VerifyTimeout block until every call-count
// constraint is met, with no deadline.
const WaitForever time.Duration = -1

// VerifyNow reports whether every registered expectation's call-count
// constraint is currently met, along with any extra satisfaction checks
// (the WebSocket engine contributes one). It never blocks and never
// mutates counters.
func VerifyNow(store *Store, extra ...func() bool) bool {
	for _, e := range store.All() {
		if !e.Satisfied() {
			return false
		}
	}
	for _, fn := range extra {
		if !fn() {
			return false
		}
	}
	return true
}

// VerifyTimeout blocks until every constraint is met or the timeout
// elapses, returning the final satisfaction state. A zero timeout checks
// once without blocking; WaitForever blocks indefinitely. The wait wakes
// on every counter increment, so it returns as soon as the last needed
// call lands rather than at the deadline.
func VerifyTimeout(store *Store, timeout time.Duration, extra ...func() bool) bool {
	if timeout == 0 {
		return VerifyNow(store, extra...)
	}

	var deadline <-chan time.Time
	if timeout != WaitForever {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		// Grab the wait channel before checking so an increment between
		// check and wait still wakes us.
		ch := store.WaitCh()
		if VerifyNow(store, extra...) {
			return true
		}
		select {
		case <-ch:
		case <-deadline:
			return VerifyNow(store, extra...)
		}
	}
}
