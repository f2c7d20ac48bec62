package expect

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testView(method, path string) *RequestView {
	return &RequestView{
		Method:  method,
		Path:    path,
		Query:   url.Values{},
		Headers: http.Header{},
		Cookies: map[string]string{},
	}
}

func TestMethodMatcher(t *testing.T) {
	tests := []struct {
		name    string
		matcher Matcher
		method  string
		want    bool
	}{
		{"exact", MethodMatcher("GET"), "GET", true},
		{"case insensitive", MethodMatcher("get"), "GET", true},
		{"mismatch", MethodMatcher("GET"), "POST", false},
		{"any keyword", MethodMatcher("any"), "DELETE", true},
		{"star", MethodMatcher("*"), "PATCH", true},
		{"empty matches all", MethodMatcher(""), "PUT", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.matcher.Matches(testView(tt.method, "/")))
		})
	}
}

func TestPathMatcher(t *testing.T) {
	assert.True(t, PathMatcher("/api/users").Matches(testView("GET", "/api/users")))
	assert.True(t, PathMatcher("/api/users/{id}").Matches(testView("GET", "/api/users/9")))
	assert.True(t, PathMatcher("/api/**").Matches(testView("GET", "/api/a/b")))
	assert.False(t, PathMatcher("/api/users").Matches(testView("GET", "/api/orders")))

	res := PathMatcher("/api/users").Evaluate(testView("GET", "/api/orders"))
	assert.False(t, res.Passed)
	assert.Equal(t, "path", res.Facet)
	assert.Contains(t, res.Reason, "/api/orders")
}

func TestQueryMatcher(t *testing.T) {
	v := testView("GET", "/search")
	v.Query = url.Values{"q": {"golang"}, "page": {"2"}}

	assert.True(t, QueryMatcher("q", Equal("golang")).Matches(v))
	assert.False(t, QueryMatcher("q", Equal("rust")).Matches(v))
	assert.True(t, QueryMatcher("q", Pattern("go*")).Matches(v))
	assert.True(t, QueryMatcher("page", Present()).Matches(v))
	assert.True(t, QueryMatcher("missing", Absent()).Matches(v))
	assert.False(t, QueryMatcher("missing", Present()).Matches(v))
	assert.True(t, QueryMatcher("missing", Any()).Matches(v))
	assert.True(t, QueryMatcher("page", Satisfies("numeric", func(s string) bool {
		return s == "2"
	})).Matches(v))
}

func TestHeaderMatcherCaseInsensitiveName(t *testing.T) {
	v := testView("GET", "/")
	v.Headers = http.Header{}
	v.Headers.Set("Content-Type", "application/json")

	assert.True(t, HeaderMatcher("content-type", Equal("application/json")).Matches(v))
	assert.True(t, HeaderMatcher("CONTENT-TYPE", Pattern("*json*")).Matches(v))
	assert.False(t, HeaderMatcher("Authorization", Present()).Matches(v))
}

func TestCookieMatchers(t *testing.T) {
	v := testView("GET", "/")
	v.Cookies = map[string]string{"session": "abc123"}

	assert.True(t, CookieMatcher("session", Equal("abc123")).Matches(v))
	assert.False(t, CookieMatcher("session", Equal("zzz")).Matches(v))
	assert.False(t, NoCookiesMatcher().Matches(v))

	v.Cookies = map[string]string{}
	assert.True(t, NoCookiesMatcher().Matches(v))
}

func TestSecureMatcher(t *testing.T) {
	v := testView("GET", "/")
	assert.True(t, SecureMatcher(false).Matches(v))
	assert.False(t, SecureMatcher(true).Matches(v))

	v.Secure = true
	assert.True(t, SecureMatcher(true).Matches(v))
}

func TestMapPredicates(t *testing.T) {
	v := testView("GET", "/")
	v.Headers = http.Header{}
	v.Headers.Set("Accept", "application/json")
	v.Headers.Set("X-Tenant", "acme")

	assert.True(t, HeaderMapMatcher(ContainsAll(map[string]string{
		"accept":   "application/json",
		"x-tenant": "acme",
	})).Matches(v))
	assert.False(t, HeaderMapMatcher(ContainsAll(map[string]string{
		"accept": "text/html",
	})).Matches(v))

	assert.True(t, QueryMapMatcher(EmptyMap()).Matches(v))
	v.Query = url.Values{"a": {"1"}}
	assert.False(t, QueryMapMatcher(EmptyMap()).Matches(v))

	assert.True(t, QueryMapMatcher(MapSatisfies("has a", func(m map[string][]string) bool {
		_, ok := m["a"]
		return ok
	})).Matches(v))
}

func TestPanickingPredicateIsSoftFailure(t *testing.T) {
	m := PathPredicateMatcher("explodes", func(string) bool {
		panic("boom")
	})

	res := m.Evaluate(testView("GET", "/x"))
	require.False(t, res.Passed)
	assert.Contains(t, res.Reason, "predicate panicked")
	assert.Contains(t, res.Reason, "boom")

	// Matches must not propagate the panic either.
	assert.NotPanics(t, func() {
		assert.False(t, m.Matches(testView("GET", "/x")))
	})
}

func TestCountConstraints(t *testing.T) {
	tests := []struct {
		name       string
		constraint CountConstraint
		actual     int64
		want       bool
	}{
		{"at least met", AtLeast(2), 2, true},
		{"at least exceeded", AtLeast(2), 5, true},
		{"at least unmet", AtLeast(2), 1, false},
		{"at most met", AtMost(3), 3, true},
		{"at most exceeded", AtMost(3), 4, false},
		{"exactly met", Exactly(2), 2, true},
		{"exactly under", Exactly(2), 1, false},
		{"exactly over", Exactly(2), 3, false},
		{"between inside", Between(2, 4), 3, true},
		{"between edges", Between(2, 4), 2, true},
		{"between outside", Between(2, 4), 5, false},
		{"never met", Never(), 0, true},
		{"never violated", Never(), 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.constraint.Satisfied(tt.actual))
		})
	}
}
