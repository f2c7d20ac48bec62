// Package expect defines the expectation model for the decoy test double:
// request matchers and their composition, responders, call-count
// constraints, and the Expectation/Requirement builders registered with
// the engine.
//
// An expectation pairs a matcher set (method, path, and auxiliary facet
// matchers, ANDed) with an ordered responder list and a call-count
// constraint. A requirement carries matchers only; the engine ANDs it into
// every expectation it applies to.
package expect
