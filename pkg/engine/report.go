package engine

import (
	"fmt"
	"strings"

	"github.com/getmockd/decoy/pkg/codec"
	"github.com/getmockd/decoy/pkg/expect"
)

// Report is the structured mismatch diagnostic built when a request
// matches zero expectations. It holds one entry per registered
// expectation with every matcher's outcome; rendering to text is the
// caller's concern (Summary is a convenience, not the format).
type Report struct {
	Method  string        `json:"method"`
	Path    string        `json:"path"`
	Entries []ReportEntry `json:"entries"`
	// TotalPassed/TotalFailed aggregate matcher outcomes across entries.
	TotalPassed int `json:"totalPassed"`
	TotalFailed int `json:"totalFailed"`
}

// ReportEntry is the per-expectation breakdown.
type ReportEntry struct {
	Index    int             `json:"index"`
	ID       string          `json:"id"`
	Name     string          `json:"name,omitempty"`
	Matchers []expect.Result `json:"matchers"`
	Passed   int             `json:"passed"`
	Failed   int             `json:"failed"`
}

// BuildReport evaluates every matcher of every expectation against the
// request without short-circuiting. Applicable requirements contribute
// their matchers to each entry with a "require:" facet prefix. The
// decoder chain is re-stacked per expectation so body matchers see the
// same local-over-global resolution they saw at match time.
func BuildReport(view *expect.RequestView, expectations []*expect.Expectation, requirements []*expect.Requirement, globalDecoders *codec.DecoderRegistry) *Report {
	report := &Report{Method: view.Method, Path: view.Path}

	var applicable []*expect.Requirement
	for _, r := range requirements {
		if r.AppliesTo(view) {
			applicable = append(applicable, r)
		}
	}

	for i, e := range expectations {
		view.SetDecoders(codec.NewChain(e.Decoders().Rebase(globalDecoders)))
		entry := ReportEntry{Index: i, ID: e.ID(), Name: e.Name()}
		for _, m := range e.Matchers() {
			entry.Matchers = append(entry.Matchers, m.Evaluate(view))
		}
		for _, r := range applicable {
			for _, m := range r.Matchers() {
				res := m.Evaluate(view)
				res.Facet = "require:" + res.Facet
				entry.Matchers = append(entry.Matchers, res)
			}
		}
		for _, res := range entry.Matchers {
			if res.Passed {
				entry.Passed++
			} else {
				entry.Failed++
			}
		}
		report.TotalPassed += entry.Passed
		report.TotalFailed += entry.Failed
		report.Entries = append(report.Entries, entry)
	}

	return report
}

// Summary renders a one-line-per-expectation prose summary of the report.
func (r *Report) Summary() string {
	if len(r.Entries) == 0 {
		return fmt.Sprintf("%s %s matched nothing: no expectations registered", r.Method, r.Path)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s matched none of %d expectations:\n", r.Method, r.Path, len(r.Entries))
	for _, entry := range r.Entries {
		label := entry.Name
		if label == "" {
			label = entry.ID
		}
		fmt.Fprintf(&b, "  [%d] %s: %s\n", entry.Index, label, entry.Reason())
	}
	return b.String()
}

// Reason summarizes an entry: which matchers passed, and the first
// mismatch with its failure detail.
func (e ReportEntry) Reason() string {
	var passed []string
	var first *expect.Result
	for i := range e.Matchers {
		if e.Matchers[i].Passed {
			passed = append(passed, e.Matchers[i].Facet)
		} else if first == nil {
			first = &e.Matchers[i]
		}
	}
	if first == nil {
		return "all matchers passed"
	}
	mismatch := fmt.Sprintf("%s failed (%s)", first.Facet, first.Reason)
	if len(passed) == 0 {
		return mismatch
	}
	return strings.Join(passed, ", ") + " matched, but " + mismatch
}
