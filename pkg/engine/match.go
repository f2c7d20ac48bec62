package engine

import (
	"github.com/getmockd/decoy/pkg/codec"
	"github.com/getmockd/decoy/pkg/expect"
)

// MatchOutcome is the result of running a request through the engine.
// Either Expectation is set (with the 1-indexed CallIndex used for
// responder cycling) or Report holds the full mismatch breakdown.
type MatchOutcome struct {
	Expectation *expect.Expectation
	CallIndex   int64
	Report      *Report
}

// Matched reports whether an expectation was selected.
func (o *MatchOutcome) Matched() bool {
	return o.Expectation != nil
}

// Match selects the first expectation, in registration order, whose own
// matchers plus every applicable requirement's matchers all pass. On
// selection the expectation's counter is atomically fetch-and-
// incremented (the returned CallIndex), so concurrent matches to one
// expectation each observe a distinct responder slot. When nothing
// matches, a full mismatch report is built instead.
//
// Matcher evaluation order per expectation is method, path, then
// auxiliary matchers in registration order, then requirement matchers;
// evaluation short-circuits on the first failure. A panicking or
// decode-failing matcher counts as a failed matcher for that expectation
// only and never aborts evaluation of later expectations.
func Match(view *expect.RequestView, store *Store, globalDecoders *codec.DecoderRegistry) *MatchOutcome {
	expectations := store.All()
	requirements := store.Requirements()

	var applicable []*expect.Requirement
	for _, r := range requirements {
		if r.AppliesTo(view) {
			applicable = append(applicable, r)
		}
	}

	for _, e := range expectations {
		view.SetDecoders(codec.NewChain(e.Decoders().Rebase(globalDecoders)))
		if !matchesAll(e, applicable, view) {
			continue
		}
		idx := e.NextCall()
		store.Signal()
		return &MatchOutcome{Expectation: e, CallIndex: idx}
	}

	return &MatchOutcome{Report: BuildReport(view, expectations, requirements, globalDecoders)}
}

func matchesAll(e *expect.Expectation, requirements []*expect.Requirement, view *expect.RequestView) bool {
	for _, m := range e.Matchers() {
		if !m.Matches(view) {
			return false
		}
	}
	for _, r := range requirements {
		for _, m := range r.Matchers() {
			if !m.Matches(view) {
				return false
			}
		}
	}
	return true
}
