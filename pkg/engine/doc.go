// Package engine is the decoy server core: the expectation store, the
// first-match-wins match engine with mismatch diagnostics, the response
// synthesizer (responder cycling, codecs, stream plans, multipart,
// forwarding), the blocking verification tracker, and the thin net/http
// adapter that executes response descriptions.
package engine
