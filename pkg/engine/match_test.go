package engine

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/decoy/pkg/codec"
	"github.com/getmockd/decoy/pkg/expect"
)

func viewFor(method, target string, body string) *expect.RequestView {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	return expect.NewRequestView(r, []byte(body))
}

func newTestStore(t *testing.T, expectations ...*expect.Expectation) *Store {
	t.Helper()
	store := NewStore()
	for _, e := range expectations {
		require.NoError(t, store.Register(e))
	}
	return store
}

func TestMatchFirstRegisteredWins(t *testing.T) {
	broad := expect.GET("/api/**").Named("broad")
	narrow := expect.GET("/api/users").Named("narrow")
	store := newTestStore(t, broad, narrow)
	decoders := codec.NewDefaultDecoderRegistry()

	outcome := Match(viewFor("GET", "/api/users", ""), store, decoders)
	require.True(t, outcome.Matched())
	assert.Same(t, broad, outcome.Expectation, "registration order, not specificity, decides")
	assert.EqualValues(t, 1, outcome.CallIndex)
	assert.EqualValues(t, 0, narrow.Calls(), "later expectations are not consulted")
}

func TestMatchFallsPastNonMatching(t *testing.T) {
	users := expect.GET("/users").Named("users")
	orders := expect.GET("/orders").Named("orders")
	store := newTestStore(t, users, orders)
	decoders := codec.NewDefaultDecoderRegistry()

	outcome := Match(viewFor("GET", "/orders", ""), store, decoders)
	require.True(t, outcome.Matched())
	assert.Same(t, orders, outcome.Expectation)
}

func TestMatchNoMatchBuildsReport(t *testing.T) {
	store := newTestStore(t,
		expect.GET("/users").Named("users"),
		expect.POST("/orders").Header("X-Key", expect.Present()).Named("orders"),
	)
	decoders := codec.NewDefaultDecoderRegistry()

	outcome := Match(viewFor("POST", "/orders", ""), store, decoders)
	require.False(t, outcome.Matched())
	report := outcome.Report
	require.NotNil(t, report)

	// One entry per registered expectation, every matcher evaluated.
	require.Len(t, report.Entries, 2)
	assert.Len(t, report.Entries[0].Matchers, 2, "method and path for the bare expectation")
	assert.Len(t, report.Entries[1].Matchers, 3)

	// Second entry: method and path pass, header fails.
	entry := report.Entries[1]
	assert.Equal(t, 2, entry.Passed)
	assert.Equal(t, 1, entry.Failed)
	assert.Contains(t, entry.Reason(), "header:X-Key failed")
	assert.Contains(t, entry.Reason(), "matched, but")
}

func TestMatchAppliesRequirements(t *testing.T) {
	e := expect.POST("/api/orders")
	store := newTestStore(t, e)
	require.NoError(t, store.RegisterRequirement(
		expect.Require("POST", "/api/**").Header("Authorization", expect.Present())))
	decoders := codec.NewDefaultDecoderRegistry()

	outcome := Match(viewFor("POST", "/api/orders", ""), store, decoders)
	assert.False(t, outcome.Matched(), "requirement aux matcher is ANDed in")

	v := viewFor("POST", "/api/orders", "")
	v.Headers.Set("Authorization", "Bearer t")
	outcome = Match(v, store, decoders)
	assert.True(t, outcome.Matched())
}

func TestMatchRequirementOutOfScopeIsIgnored(t *testing.T) {
	e := expect.GET("/public/ping")
	store := newTestStore(t, e)
	require.NoError(t, store.RegisterRequirement(
		expect.Require("any", "/api/**").Header("Authorization", expect.Present())))

	outcome := Match(viewFor("GET", "/public/ping", ""), store, codec.NewDefaultDecoderRegistry())
	assert.True(t, outcome.Matched(), "requirement scoped to /api must not bind /public")
}

func TestMatchRequirementFailureShowsInReport(t *testing.T) {
	store := newTestStore(t, expect.POST("/api/orders"))
	require.NoError(t, store.RegisterRequirement(
		expect.Require("POST", "/api/**").Header("Authorization", expect.Present())))

	outcome := Match(viewFor("POST", "/api/orders", ""), store, codec.NewDefaultDecoderRegistry())
	require.False(t, outcome.Matched())

	entry := outcome.Report.Entries[0]
	var found bool
	for _, res := range entry.Matchers {
		if res.Facet == "require:header:Authorization" {
			found = true
			assert.False(t, res.Passed)
		}
	}
	assert.True(t, found, "requirement matchers appear with the require: facet prefix")
}

func TestMatchExpectationLocalDecoderShadowsGlobal(t *testing.T) {
	// Global decoders cannot parse this vendor type; the expectation
	// brings its own.
	e := expect.POST("/ingest").
		Decoder("application/vnd.acme+csv", func(data []byte, _ *codec.DecodingContext) (interface{}, error) {
			return strings.Split(string(data), ","), nil
		}).
		Body("has three cells", func(decoded interface{}) bool {
			cells, ok := decoded.([]string)
			return ok && len(cells) == 3
		})
	store := newTestStore(t, e)

	v := viewFor("POST", "/ingest", "a,b,c")
	v.Headers.Set("Content-Type", "application/vnd.acme+csv")
	outcome := Match(v, store, codec.NewDefaultDecoderRegistry())
	assert.True(t, outcome.Matched())

	v = viewFor("POST", "/ingest", "a,b")
	v.Headers.Set("Content-Type", "application/vnd.acme+csv")
	outcome = Match(v, store, codec.NewDefaultDecoderRegistry())
	assert.False(t, outcome.Matched())
}

func TestMatchPanickingMatcherOnlyFailsItsExpectation(t *testing.T) {
	exploding := expect.RequestMatching("GET", "explodes", func(string) bool {
		panic("boom")
	})
	fallback := expect.GET("/ok").Named("fallback")
	store := newTestStore(t, exploding, fallback)

	outcome := Match(viewFor("GET", "/ok", ""), store, codec.NewDefaultDecoderRegistry())
	require.True(t, outcome.Matched())
	assert.Same(t, fallback, outcome.Expectation)
}

func TestMatchConcurrentCountersExact(t *testing.T) {
	e := expect.GET("/hot")
	store := newTestStore(t, e)
	decoders := codec.NewDefaultDecoderRegistry()

	const goroutines = 16
	const each = 25

	indexes := make(chan int64, goroutines*each)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				outcome := Match(viewFor("GET", "/hot", ""), store, decoders)
				if outcome.Matched() {
					indexes <- outcome.CallIndex
				}
			}
		}()
	}
	wg.Wait()
	close(indexes)

	seen := make(map[int64]bool, goroutines*each)
	for idx := range indexes {
		assert.False(t, seen[idx], "call index %d observed twice", idx)
		seen[idx] = true
	}
	assert.Len(t, seen, goroutines*each)
	assert.EqualValues(t, goroutines*each, e.Calls())
}

func TestStoreClearDiscardsCounters(t *testing.T) {
	e := expect.GET("/x")
	store := newTestStore(t, e)
	Match(viewFor("GET", "/x", ""), store, codec.NewDefaultDecoderRegistry())
	require.EqualValues(t, 1, e.Calls())

	store.Clear()
	assert.Zero(t, store.Len())
	assert.Empty(t, store.Requirements())
}

func TestStoreRegisterSurfacesConfigError(t *testing.T) {
	store := NewStore()
	err := store.Register(expect.POST("/x").BodyJSONPath("$[", nil))
	assert.Error(t, err, "builder errors surface at registration, not request time")
	assert.Zero(t, store.Len())
}
