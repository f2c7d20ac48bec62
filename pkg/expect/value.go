package expect

import (
	"fmt"

	"github.com/getmockd/decoy/internal/matching"
)

type valueKind int

const (
	valueEqual valueKind = iota
	valuePattern
	valuePredicate
	valuePresent
	valueAbsent
	valueAny
)

// Value is a predicate over one entry of a structured request facet
// (a query parameter, header, or cookie value).
type Value struct {
	kind valueKind
	want string
	fn   func(string) bool
	desc string
}

// Equal matches the exact value.
func Equal(s string) Value {
	return Value{kind: valueEqual, want: s, desc: fmt.Sprintf("equals %q", s)}
}

// Pattern matches against a wildcard pattern ("Bearer *", "*json*").
func Pattern(p string) Value {
	return Value{kind: valuePattern, want: p, desc: fmt.Sprintf("matches pattern %q", p)}
}

// Satisfies matches when fn returns true for the value. The description
// is used in mismatch reports.
func Satisfies(desc string, fn func(string) bool) Value {
	if desc == "" {
		desc = "satisfies predicate"
	}
	return Value{kind: valuePredicate, fn: fn, desc: desc}
}

// Present matches any value, but the entry must exist.
func Present() Value {
	return Value{kind: valuePresent, desc: "is present"}
}

// Absent matches only when the entry does not exist.
func Absent() Value {
	return Value{kind: valueAbsent, desc: "is absent"}
}

// Any matches whether or not the entry exists.
func Any() Value {
	return Value{kind: valueAny, desc: "any"}
}

// Describe returns the human-readable form used in reports.
func (v Value) Describe() string {
	return v.desc
}

// check evaluates the predicate against an entry value and its presence.
// A nil error means pass.
func (v Value) check(val string, present bool) error {
	switch v.kind {
	case valueAny:
		return nil
	case valueAbsent:
		if present {
			return fmt.Errorf("expected absent, found %q", val)
		}
		return nil
	case valuePresent:
		if !present {
			return fmt.Errorf("expected present, not found")
		}
		return nil
	}

	if !present {
		return fmt.Errorf("not found (expected %s)", v.desc)
	}
	switch v.kind {
	case valueEqual:
		if val != v.want {
			return fmt.Errorf("expected %q, got %q", v.want, val)
		}
	case valuePattern:
		if !matching.MatchValuePattern(v.want, val) {
			return fmt.Errorf("%q does not match pattern %q", val, v.want)
		}
	case valuePredicate:
		if v.fn == nil || !v.fn(val) {
			return fmt.Errorf("%q does not satisfy: %s", val, v.desc)
		}
	}
	return nil
}
