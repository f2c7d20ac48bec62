package expect

import "fmt"

type countOp int

const (
	countAtLeast countOp = iota
	countAtMost
	countExactly
	countBetween
)

// CountConstraint is a declarative constraint on how many times an
// expectation must have matched, checked at verification time.
type CountConstraint struct {
	op   countOp
	n, m int64
}

// AtLeast requires n or more matches. AtLeast(1) is the default
// constraint for every expectation.
func AtLeast(n int) CountConstraint {
	return CountConstraint{op: countAtLeast, n: int64(n)}
}

// AtMost requires at most n matches.
func AtMost(n int) CountConstraint {
	return CountConstraint{op: countAtMost, n: int64(n)}
}

// Exactly requires exactly n matches.
func Exactly(n int) CountConstraint {
	return CountConstraint{op: countExactly, n: int64(n)}
}

// Between requires the match count to be within [n, m] inclusive.
func Between(n, m int) CountConstraint {
	return CountConstraint{op: countBetween, n: int64(n), m: int64(m)}
}

// Never requires zero matches.
func Never() CountConstraint {
	return Exactly(0)
}

// Satisfied reports whether the actual count meets the constraint.
func (c CountConstraint) Satisfied(actual int64) bool {
	switch c.op {
	case countAtMost:
		return actual <= c.n
	case countExactly:
		return actual == c.n
	case countBetween:
		return actual >= c.n && actual <= c.m
	default:
		return actual >= c.n
	}
}

// Describe returns the constraint in human-readable form.
func (c CountConstraint) Describe() string {
	switch c.op {
	case countAtMost:
		return fmt.Sprintf("at most %d calls", c.n)
	case countExactly:
		return fmt.Sprintf("exactly %d calls", c.n)
	case countBetween:
		return fmt.Sprintf("between %d and %d calls", c.n, c.m)
	default:
		return fmt.Sprintf("at least %d calls", c.n)
	}
}
