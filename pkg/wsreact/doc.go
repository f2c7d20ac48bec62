// Package wsreact implements the WebSocket expectation/reaction engine:
// path-routed upgrades, ordered message-matcher rules with first-match
// reactions sent off the reader goroutine, and connect/reaction counters
// that feed the same verification pass as HTTP expectations.
package wsreact
