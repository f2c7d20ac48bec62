// Package config loads declarative expectation files for the CLI.
package config

import "time"

// File is the root of a decoy configuration file.
type File struct {
	// Version is the config schema version. Currently "1".
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	Server       ServerConfig        `json:"server,omitempty" yaml:"server,omitempty"`
	Expectations []ExpectationConfig `json:"expectations,omitempty" yaml:"expectations,omitempty"`
	Requirements []RequirementConfig `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	WebSockets   []WebSocketConfig   `json:"websockets,omitempty" yaml:"websockets,omitempty"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:8080".
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
	// NoMatchStatus overrides the status served for unmatched requests.
	NoMatchStatus int `json:"noMatchStatus,omitempty" yaml:"noMatchStatus,omitempty"`
	// LogLevel is "debug", "info", "warn", or "error".
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	// LogFormat is "text" or "json".
	LogFormat string `json:"logFormat,omitempty" yaml:"logFormat,omitempty"`
}

// ExpectationConfig declares one HTTP expectation.
type ExpectationConfig struct {
	// Name labels the expectation in reports.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Method is the HTTP method; "any" or "*" matches all.
	Method string `json:"method,omitempty" yaml:"method,omitempty"`
	// Path is exact, glob (/api/**), or named-segment (/users/{id}).
	Path string `json:"path" yaml:"path"`

	// Query entries match parameter values; "*" wildcards are allowed.
	Query map[string]string `json:"query,omitempty" yaml:"query,omitempty"`
	// Headers entries match header values (names case-insensitive).
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	// Cookies entries match cookie values.
	Cookies map[string]string `json:"cookies,omitempty" yaml:"cookies,omitempty"`
	// Secure requires the request to arrive over TLS.
	Secure bool `json:"secure,omitempty" yaml:"secure,omitempty"`

	Body *BodyConfig `json:"body,omitempty" yaml:"body,omitempty"`

	// Times constrains how often the expectation must be called for
	// verification to pass. Defaults to at least once.
	Times *TimesConfig `json:"times,omitempty" yaml:"times,omitempty"`

	// Responses are cycled per call; the last one repeats.
	Responses []ResponseConfig `json:"responses,omitempty" yaml:"responses,omitempty"`
}

// BodyConfig declares a body matcher; exactly one field should be set.
type BodyConfig struct {
	// Equals matches the decoded body loosely (JSON-normalized).
	Equals interface{} `json:"equals,omitempty" yaml:"equals,omitempty"`
	// Contains matches a substring of the raw body.
	Contains string `json:"contains,omitempty" yaml:"contains,omitempty"`
	// JSONPath matches the value at a JSONPath expression.
	JSONPath *JSONPathConfig `json:"jsonPath,omitempty" yaml:"jsonPath,omitempty"`
	// Schema is an inline JSON Schema the body must satisfy.
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
	// Expr is an expression over body/method/path/query/headers, e.g.
	// "body.user.age > 21".
	Expr string `json:"expr,omitempty" yaml:"expr,omitempty"`
}

// JSONPathConfig pairs a JSONPath with its expected value.
type JSONPathConfig struct {
	Path  string      `json:"path" yaml:"path"`
	Value interface{} `json:"value" yaml:"value"`
}

// TimesConfig declares a call-count constraint; set one field, or
// AtLeast together with AtMost for a range.
type TimesConfig struct {
	AtLeast *int `json:"atLeast,omitempty" yaml:"atLeast,omitempty"`
	AtMost  *int `json:"atMost,omitempty" yaml:"atMost,omitempty"`
	Exactly *int `json:"exactly,omitempty" yaml:"exactly,omitempty"`
	Never   bool `json:"never,omitempty" yaml:"never,omitempty"`
}

// ResponseConfig declares one responder.
type ResponseConfig struct {
	Status      int               `json:"status,omitempty" yaml:"status,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body        string            `json:"body,omitempty" yaml:"body,omitempty"`
	BodyFile    string            `json:"bodyFile,omitempty" yaml:"bodyFile,omitempty"`
	ContentType string            `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	Charset     string            `json:"charset,omitempty" yaml:"charset,omitempty"`

	// DelayMs delays the whole response; DelayMinMs/DelayMaxMs pick a
	// uniform random delay instead.
	DelayMs    int `json:"delayMs,omitempty" yaml:"delayMs,omitempty"`
	DelayMinMs int `json:"delayMinMs,omitempty" yaml:"delayMinMs,omitempty"`
	DelayMaxMs int `json:"delayMaxMs,omitempty" yaml:"delayMaxMs,omitempty"`

	// Chunks splits the body into N chunked writes, each preceded by the
	// configured delay.
	Chunks int `json:"chunks,omitempty" yaml:"chunks,omitempty"`

	// Forward relays the request to this base URL instead of answering.
	Forward string `json:"forward,omitempty" yaml:"forward,omitempty"`

	// ContentEncoding declares the body is pre-compressed with this
	// coding; it suppresses the automatic compression signal.
	ContentEncoding string `json:"contentEncoding,omitempty" yaml:"contentEncoding,omitempty"`
}

// RequirementConfig declares a cross-cutting requirement ANDed into
// every expectation whose method and path it applies to.
type RequirementConfig struct {
	Method  string            `json:"method,omitempty" yaml:"method,omitempty"`
	Path    string            `json:"path,omitempty" yaml:"path,omitempty"`
	Query   map[string]string `json:"query,omitempty" yaml:"query,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Cookies map[string]string `json:"cookies,omitempty" yaml:"cookies,omitempty"`
	Secure  bool              `json:"secure,omitempty" yaml:"secure,omitempty"`
}

// WebSocketConfig declares a WebSocket expectation.
type WebSocketConfig struct {
	Path      string           `json:"path" yaml:"path"`
	Reactions []ReactionConfig `json:"reactions,omitempty" yaml:"reactions,omitempty"`
}

// ReactionConfig pairs a message matcher with the reaction to send.
type ReactionConfig struct {
	Match MessageMatchConfig `json:"match" yaml:"match"`
	Send  ReactionSendConfig `json:"send" yaml:"send"`
}

// MessageMatchConfig declares an inbound message matcher.
type MessageMatchConfig struct {
	// Type is "exact", "contains", "prefix", "suffix", "regex", or
	// "jsonPath".
	Type string `json:"type" yaml:"type"`
	// Value is the match value (or expected value for jsonPath).
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	// Path is the JSONPath expression for jsonPath matchers.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// ReactionSendConfig declares the reaction frame.
type ReactionSendConfig struct {
	// Type is "text" or "binary" (base64 value). Defaults to text.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	// Value is the payload.
	Value string `json:"value" yaml:"value"`
	// DelayMs delays the send.
	DelayMs int `json:"delayMs,omitempty" yaml:"delayMs,omitempty"`
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
