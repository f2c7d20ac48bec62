package wsreact

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/getmockd/decoy/internal/matching"
	"github.com/getmockd/decoy/pkg/expect"
)

// ReactionRule pairs an inbound message matcher with the reaction to
// send when it fires. Each rule carries its own call counter and count
// constraint, fed into the same verification pass as HTTP expectations.
type ReactionRule struct {
	matcher *MessageMatcher
	react   Reaction
	count   expect.CountConstraint
	fires   atomic.Int64
}

// Fires returns how many times this rule has matched.
func (r *ReactionRule) Fires() int64 {
	return r.fires.Load()
}

// Satisfied reports whether the rule's count constraint holds.
func (r *ReactionRule) Satisfied() bool {
	return r.count.Satisfied(r.fires.Load())
}

// Expectation declares reactive behavior for WebSocket connections on a
// path. An upgrade to a matching path counts as a call; each inbound
// frame is checked against the rules in registration order, first match
// wins.
type Expectation struct {
	id    string
	path  string
	rules []*ReactionRule

	connectCount expect.CountConstraint
	connects     atomic.Int64
	unmatched    atomic.Int64
}

// Endpoint starts a WebSocket expectation for the given path. The path
// accepts the same exact, glob, and {name} forms as HTTP expectations.
// A connection must be upgraded at least once by default.
func Endpoint(path string) *Expectation {
	return &Expectation{
		id:           uuid.NewString(),
		path:         path,
		connectCount: expect.AtLeast(1),
	}
}

// React appends a (matcher, reaction) rule. The rule must fire at least
// once for verification to pass.
func (e *Expectation) React(m *MessageMatcher, r Reaction) *Expectation {
	return e.ReactTimes(m, r, expect.AtLeast(1))
}

// ReactTimes appends a rule with an explicit count constraint.
func (e *Expectation) ReactTimes(m *MessageMatcher, r Reaction, c expect.CountConstraint) *Expectation {
	e.rules = append(e.rules, &ReactionRule{matcher: m, react: r, count: c})
	return e
}

// Connected overrides the connect-count constraint.
func (e *Expectation) Connected(c expect.CountConstraint) *Expectation {
	e.connectCount = c
	return e
}

// ID returns the expectation's identifier.
func (e *Expectation) ID() string {
	return e.id
}

// Path returns the configured path pattern.
func (e *Expectation) Path() string {
	return e.path
}

// MatchesPath reports whether a request path selects this expectation.
func (e *Expectation) MatchesPath(path string) bool {
	return matching.MatchPath(e.path, path)
}

// Connects returns the number of accepted upgrades.
func (e *Expectation) Connects() int64 {
	return e.connects.Load()
}

// Unmatched returns the number of inbound frames that matched no rule.
func (e *Expectation) Unmatched() int64 {
	return e.unmatched.Load()
}

// Rules returns the rules in registration order.
func (e *Expectation) Rules() []*ReactionRule {
	return e.rules
}

// Satisfied reports whether the connect constraint and every rule's
// constraint hold.
func (e *Expectation) Satisfied() bool {
	if !e.connectCount.Satisfied(e.connects.Load()) {
		return false
	}
	for _, r := range e.rules {
		if !r.Satisfied() {
			return false
		}
	}
	return true
}

// match returns the first rule matching the frame, in registration
// order, or nil.
func (e *Expectation) match(msgType MessageType, data []byte) *ReactionRule {
	for _, r := range e.rules {
		if r.matcher.Matches(msgType, data) {
			return r
		}
	}
	return nil
}
