package expect

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/getmockd/decoy/pkg/codec"
)

// Expectation is one registered rule: a matcher set, an ordered responder
// list, and a call-count constraint. Expectations are built during the
// configuration phase and owned by the store that registers them; the
// call counter is the only field mutated after registration.
type Expectation struct {
	id     string
	name   string
	method Matcher
	path   Matcher
	aux    []Matcher

	responders []*Responder
	count      CountConstraint
	decoders   *codec.DecoderRegistry
	encoders   *codec.EncoderRegistry

	calls atomic.Int64
	err   error
}

// Request starts an expectation for a method ("GET", "any", "*") and a
// path pattern (exact, {name} segments, or glob).
func Request(method, path string) *Expectation {
	return &Expectation{
		id:     uuid.NewString(),
		method: MethodMatcher(method),
		path:   PathMatcher(path),
		count:  AtLeast(1),
	}
}

// RequestMatching starts an expectation with an arbitrary path predicate.
func RequestMatching(method, pathDesc string, pathFn func(string) bool) *Expectation {
	return &Expectation{
		id:     uuid.NewString(),
		method: MethodMatcher(method),
		path:   PathPredicateMatcher(pathDesc, pathFn),
		count:  AtLeast(1),
	}
}

// Method shorthands.
func GET(path string) *Expectation    { return Request("GET", path) }
func POST(path string) *Expectation   { return Request("POST", path) }
func PUT(path string) *Expectation    { return Request("PUT", path) }
func DELETE(path string) *Expectation { return Request("DELETE", path) }
func HEAD(path string) *Expectation   { return Request("HEAD", path) }
func ANY(path string) *Expectation    { return Request("any", path) }

// Named sets a display name used in mismatch reports.
func (e *Expectation) Named(name string) *Expectation {
	e.name = name
	return e
}

// Query adds a query parameter matcher.
func (e *Expectation) Query(name string, v Value) *Expectation {
	return e.add(QueryMatcher(name, v))
}

// QueryMap adds a full-query-map matcher.
func (e *Expectation) QueryMap(p MapPredicate) *Expectation {
	return e.add(QueryMapMatcher(p))
}

// Header adds a header matcher (name is case-insensitive).
func (e *Expectation) Header(name string, v Value) *Expectation {
	return e.add(HeaderMatcher(name, v))
}

// HeaderMap adds a full-header-map matcher.
func (e *Expectation) HeaderMap(p MapPredicate) *Expectation {
	return e.add(HeaderMapMatcher(p))
}

// Cookie adds a cookie matcher.
func (e *Expectation) Cookie(name string, v Value) *Expectation {
	return e.add(CookieMatcher(name, v))
}

// NoCookies requires the request to carry no cookies.
func (e *Expectation) NoCookies() *Expectation {
	return e.add(NoCookiesMatcher())
}

// Secure requires the request's TLS flag to equal want.
func (e *Expectation) Secure(want bool) *Expectation {
	return e.add(SecureMatcher(want))
}

// Body adds a decoded-body predicate matcher.
func (e *Expectation) Body(desc string, fn func(interface{}) bool) *Expectation {
	return e.add(BodyMatcher(desc, fn))
}

// BodyEquals requires the decoded body to deep-equal want.
func (e *Expectation) BodyEquals(want interface{}) *Expectation {
	return e.add(BodyEqualsMatcher(want))
}

// BodyBytes requires the raw body bytes to equal want.
func (e *Expectation) BodyBytes(want []byte) *Expectation {
	return e.add(BodyBytesMatcher(want))
}

// BodyContains requires the raw body to contain the substring.
func (e *Expectation) BodyContains(substr string) *Expectation {
	return e.add(BodyContainsMatcher(substr))
}

// BodyJSONPath requires the JSONPath expression to select expected.
func (e *Expectation) BodyJSONPath(path string, expected interface{}) *Expectation {
	m, err := BodyJSONPathMatcher(path, expected)
	if err != nil {
		return e.fail(err)
	}
	return e.add(m)
}

// BodySchema requires the JSON body to validate against the schema.
func (e *Expectation) BodySchema(schemaJSON string) *Expectation {
	m, err := BodySchemaMatcher(schemaJSON)
	if err != nil {
		return e.fail(err)
	}
	return e.add(m)
}

// BodyExpr requires the expression to evaluate to true for the request.
func (e *Expectation) BodyExpr(code string) *Expectation {
	m, err := BodyExprMatcher(code)
	if err != nil {
		return e.fail(err)
	}
	return e.add(m)
}

// Match adds an arbitrary auxiliary matcher.
func (e *Expectation) Match(m Matcher) *Expectation {
	return e.add(m)
}

// Called sets the call-count constraint (default: at least once).
func (e *Expectation) Called(c CountConstraint) *Expectation {
	e.count = c
	return e
}

// Decoder registers an expectation-local decoder.
func (e *Expectation) Decoder(contentType string, d codec.Decoder) *Expectation {
	if e.decoders == nil {
		e.decoders = codec.NewDecoderRegistry(nil)
	}
	e.decoders.Register(contentType, d)
	return e
}

// Encoder registers an expectation-local encoder.
func (e *Expectation) Encoder(contentType string, sample interface{}, enc codec.Encoder) *Expectation {
	if e.encoders == nil {
		e.encoders = codec.NewEncoderRegistry(nil)
	}
	e.encoders.Register(contentType, sample, enc)
	return e
}

// Respond appends a responder. The Nth successful match uses the Nth
// responder; after the list is exhausted the last one repeats.
func (e *Expectation) Respond(r *Responder) *Expectation {
	e.responders = append(e.responders, r)
	return e
}

func (e *Expectation) add(m Matcher) *Expectation {
	e.aux = append(e.aux, m)
	return e
}

func (e *Expectation) fail(err error) *Expectation {
	if e.err == nil {
		e.err = err
	}
	return e
}

// ID returns the expectation's generated identifier.
func (e *Expectation) ID() string { return e.id }

// Name returns the display name ("" when unset).
func (e *Expectation) Name() string { return e.name }

// Err returns the first configuration error recorded by a builder call.
func (e *Expectation) Err() error { return e.err }

// Count returns the call-count constraint.
func (e *Expectation) Count() CountConstraint { return e.count }

// Calls returns the current match count.
func (e *Expectation) Calls() int64 { return e.calls.Load() }

// NextCall atomically increments the match counter and returns the
// 1-indexed call number. Concurrent matchers each get a distinct number,
// which keeps responder cycling exact under load.
func (e *Expectation) NextCall() int64 { return e.calls.Add(1) }

// Satisfied reports whether the current count meets the constraint.
func (e *Expectation) Satisfied() bool { return e.count.Satisfied(e.calls.Load()) }

// Matchers returns the full ordered matcher set: method, path, then
// auxiliary matchers in registration order (the short-circuit order).
func (e *Expectation) Matchers() []Matcher {
	out := make([]Matcher, 0, len(e.aux)+2)
	out = append(out, e.method, e.path)
	return append(out, e.aux...)
}

// Responders returns the ordered responder list.
func (e *Expectation) Responders() []*Responder { return e.responders }

// Decoders returns the expectation-local decoder registry (may be nil).
func (e *Expectation) Decoders() *codec.DecoderRegistry { return e.decoders }

// Encoders returns the expectation-local encoder registry (may be nil).
func (e *Expectation) Encoders() *codec.EncoderRegistry { return e.encoders }

// Describe summarizes the expectation for diagnostics.
func (e *Expectation) Describe() string {
	label := e.name
	if label == "" {
		label = e.id
	}
	return fmt.Sprintf("%s (%s %s)", label, e.method.Expected, e.path.Expected)
}

// Requirement is a matcher-only rule: it has no responders and is ANDed
// into every expectation evaluated for a request its method and path
// matchers accept.
type Requirement struct {
	method Matcher
	path   Matcher
	aux    []Matcher
	err    error
}

// Require starts a requirement scoped to a method and path pattern.
func Require(method, path string) *Requirement {
	return &Requirement{
		method: MethodMatcher(method),
		path:   PathMatcher(path),
	}
}

// RequireAll starts a requirement applying to every request.
func RequireAll() *Requirement {
	return Require("any", "/**")
}

// Query adds a query parameter matcher.
func (r *Requirement) Query(name string, v Value) *Requirement {
	return r.add(QueryMatcher(name, v))
}

// Header adds a header matcher.
func (r *Requirement) Header(name string, v Value) *Requirement {
	return r.add(HeaderMatcher(name, v))
}

// Cookie adds a cookie matcher.
func (r *Requirement) Cookie(name string, v Value) *Requirement {
	return r.add(CookieMatcher(name, v))
}

// Secure requires the request's TLS flag to equal want.
func (r *Requirement) Secure(want bool) *Requirement {
	return r.add(SecureMatcher(want))
}

// Body adds a decoded-body predicate matcher.
func (r *Requirement) Body(desc string, fn func(interface{}) bool) *Requirement {
	return r.add(BodyMatcher(desc, fn))
}

// Match adds an arbitrary auxiliary matcher.
func (r *Requirement) Match(m Matcher) *Requirement {
	return r.add(m)
}

func (r *Requirement) add(m Matcher) *Requirement {
	r.aux = append(r.aux, m)
	return r
}

// Err returns the first configuration error recorded by a builder call.
func (r *Requirement) Err() error { return r.err }

// AppliesTo reports whether the requirement's method and path matchers
// accept the request; only then are its auxiliary matchers ANDed in.
func (r *Requirement) AppliesTo(v *RequestView) bool {
	return r.method.Matches(v) && r.path.Matches(v)
}

// Matchers returns the requirement's auxiliary matchers.
func (r *Requirement) Matchers() []Matcher { return r.aux }
