package expect

import (
	"fmt"
	"strings"

	"github.com/getmockd/decoy/internal/matching"
)

// Matcher is a named predicate over one request facet. Matchers compose
// via logical AND within an expectation and must be pure functions of the
// request view and their configured value.
type Matcher struct {
	// Facet names the request facet ("method", "path", "header:Accept"...).
	Facet string
	// Expected is the human-readable expected form, used in reports.
	Expected string

	fn func(*RequestView) error
}

// Result is the outcome of evaluating one matcher for the mismatch report.
type Result struct {
	Facet    string `json:"facet"`
	Expected string `json:"expected"`
	Passed   bool   `json:"passed"`
	// Reason holds the failure detail; empty on pass. A panicking
	// predicate fails with the panic value as its reason.
	Reason string `json:"reason,omitempty"`
}

// Describe returns the matcher's expected form.
func (m Matcher) Describe() string {
	return fmt.Sprintf("%s %s", m.Facet, m.Expected)
}

// Matches reports whether the request satisfies this matcher. A panic in
// the underlying predicate counts as a non-match, never a crash.
func (m Matcher) Matches(v *RequestView) bool {
	return m.Evaluate(v).Passed
}

// Evaluate runs the matcher and captures the outcome, recovering panics
// from user predicates into soft failures.
func (m Matcher) Evaluate(v *RequestView) (res Result) {
	res = Result{Facet: m.Facet, Expected: m.Expected}
	defer func() {
		if r := recover(); r != nil {
			res.Passed = false
			res.Reason = fmt.Sprintf("predicate panicked: %v", r)
		}
	}()
	if err := m.fn(v); err != nil {
		res.Reason = err.Error()
		return res
	}
	res.Passed = true
	return res
}

// MethodMatcher matches the HTTP method; "" , "*" and "any" match all.
func MethodMatcher(method string) Matcher {
	expected := method
	if method == "" || method == "*" {
		expected = "any"
	}
	return Matcher{
		Facet:    "method",
		Expected: expected,
		fn: func(v *RequestView) error {
			if !matching.MatchMethod(method, v.Method) {
				return fmt.Errorf("expected %s, got %s", expected, v.Method)
			}
			return nil
		},
	}
}

// PathMatcher matches the request path as an exact string, a {name}
// segment pattern, or a glob (doublestar semantics).
func PathMatcher(pattern string) Matcher {
	return Matcher{
		Facet:    "path",
		Expected: fmt.Sprintf("%q", pattern),
		fn: func(v *RequestView) error {
			if !matching.MatchPath(pattern, v.Path) {
				return fmt.Errorf("expected %q, got %q", pattern, v.Path)
			}
			return nil
		},
	}
}

// PathPredicateMatcher matches the path with an arbitrary predicate.
func PathPredicateMatcher(desc string, fn func(string) bool) Matcher {
	if desc == "" {
		desc = "satisfies predicate"
	}
	return Matcher{
		Facet:    "path",
		Expected: desc,
		fn: func(v *RequestView) error {
			if !fn(v.Path) {
				return fmt.Errorf("%q does not satisfy: %s", v.Path, desc)
			}
			return nil
		},
	}
}

// QueryMatcher matches one query parameter by name.
func QueryMatcher(name string, val Value) Matcher {
	return Matcher{
		Facet:    "query:" + name,
		Expected: val.Describe(),
		fn: func(v *RequestView) error {
			vals, present := v.Query[name]
			first := ""
			if present && len(vals) > 0 {
				first = vals[0]
			}
			return val.check(first, present)
		},
	}
}

// QueryMapMatcher matches the full query parameter map.
func QueryMapMatcher(p MapPredicate) Matcher {
	return Matcher{
		Facet:    "query",
		Expected: p.desc,
		fn: func(v *RequestView) error {
			return p.check(map[string][]string(v.Query))
		},
	}
}

// HeaderMatcher matches one header by case-insensitive name.
func HeaderMatcher(name string, val Value) Matcher {
	return Matcher{
		Facet:    "header:" + name,
		Expected: val.Describe(),
		fn: func(v *RequestView) error {
			got := ""
			present := false
			if v.Headers != nil {
				if vals := v.Headers.Values(name); len(vals) > 0 {
					got, present = vals[0], true
				}
			}
			return val.check(got, present)
		},
	}
}

// HeaderMapMatcher matches the full header map.
func HeaderMapMatcher(p MapPredicate) Matcher {
	return Matcher{
		Facet:    "headers",
		Expected: p.desc,
		fn: func(v *RequestView) error {
			return p.check(map[string][]string(v.Headers))
		},
	}
}

// CookieMatcher matches one cookie by name.
func CookieMatcher(name string, val Value) Matcher {
	return Matcher{
		Facet:    "cookie:" + name,
		Expected: val.Describe(),
		fn: func(v *RequestView) error {
			got, present := v.Cookies[name]
			return val.check(got, present)
		},
	}
}

// NoCookiesMatcher matches requests that carry no cookies at all.
func NoCookiesMatcher() Matcher {
	return Matcher{
		Facet:    "cookies",
		Expected: "none",
		fn: func(v *RequestView) error {
			if len(v.Cookies) > 0 {
				return fmt.Errorf("expected no cookies, found %d", len(v.Cookies))
			}
			return nil
		},
	}
}

// SecureMatcher matches on whether the request arrived over the encrypted
// listener.
func SecureMatcher(want bool) Matcher {
	return Matcher{
		Facet:    "secure",
		Expected: fmt.Sprintf("%t", want),
		fn: func(v *RequestView) error {
			if v.Secure != want {
				return fmt.Errorf("expected secure=%t, got secure=%t", want, v.Secure)
			}
			return nil
		},
	}
}

// MapPredicate is an aggregate predicate over a structured facet map
// (headers, query parameters, cookies).
type MapPredicate struct {
	desc string
	fn   func(map[string][]string) error
}

// ContainsAll requires every listed entry to be present with the exact
// first value.
func ContainsAll(want map[string]string) MapPredicate {
	return MapPredicate{
		desc: fmt.Sprintf("contains all of %v", want),
		fn: func(m map[string][]string) error {
			for k, v := range want {
				vals, ok := lookupFold(m, k)
				if !ok || len(vals) == 0 {
					return fmt.Errorf("missing %q", k)
				}
				if vals[0] != v {
					return fmt.Errorf("%s expected %q, got %q", k, v, vals[0])
				}
			}
			return nil
		},
	}
}

// EmptyMap requires the facet map to have no entries.
func EmptyMap() MapPredicate {
	return MapPredicate{
		desc: "is empty",
		fn: func(m map[string][]string) error {
			if len(m) > 0 {
				return fmt.Errorf("expected empty, found %d entries", len(m))
			}
			return nil
		},
	}
}

// MapSatisfies wraps an arbitrary predicate over the whole map.
func MapSatisfies(desc string, fn func(map[string][]string) bool) MapPredicate {
	if desc == "" {
		desc = "satisfies predicate"
	}
	return MapPredicate{
		desc: desc,
		fn: func(m map[string][]string) error {
			if !fn(m) {
				return fmt.Errorf("map does not satisfy: %s", desc)
			}
			return nil
		},
	}
}

func (p MapPredicate) check(m map[string][]string) error {
	if p.fn == nil {
		return nil
	}
	return p.fn(m)
}

// lookupFold finds a map entry by case-insensitive key, for header maps
// that may not be in canonical form.
func lookupFold(m map[string][]string, key string) ([]string, bool) {
	if vals, ok := m[key]; ok {
		return vals, true
	}
	for k, vals := range m {
		if strings.EqualFold(k, key) {
			return vals, true
		}
	}
	return nil, false
}
