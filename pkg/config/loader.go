package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/decoy/pkg/engine"
	"github.com/getmockd/decoy/pkg/expect"
	"github.com/getmockd/decoy/pkg/wsreact"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound = errors.New("config: file not found")
	ErrEmptyFile    = errors.New("config: file is empty")
)

// Load reads and parses a YAML configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	return Parse(data)
}

// Parse parses YAML bytes into a File.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: invalid YAML: %w", err)
	}
	return &f, nil
}

// Apply registers every expectation, requirement, and WebSocket
// expectation declared in the file on the server. Configuration errors
// surface here, before the server serves anything.
func Apply(f *File, srv *engine.Server) error {
	for i, ec := range f.Expectations {
		e, err := buildExpectation(ec)
		if err != nil {
			return fmt.Errorf("config: expectation %d: %w", i, err)
		}
		if err := srv.Expect(e); err != nil {
			return fmt.Errorf("config: expectation %d: %w", i, err)
		}
	}
	for i, rc := range f.Requirements {
		r, err := buildRequirement(rc)
		if err != nil {
			return fmt.Errorf("config: requirement %d: %w", i, err)
		}
		if err := srv.Require(r); err != nil {
			return fmt.Errorf("config: requirement %d: %w", i, err)
		}
	}
	for i, wc := range f.WebSockets {
		ws, err := buildWebSocket(wc)
		if err != nil {
			return fmt.Errorf("config: websocket %d: %w", i, err)
		}
		srv.ExpectWebSocket(ws)
	}
	return nil
}

func buildExpectation(c ExpectationConfig) (*expect.Expectation, error) {
	if c.Path == "" {
		return nil, errors.New("path is required")
	}
	method := c.Method
	if method == "" {
		method = "any"
	}

	e := expect.Request(method, c.Path)
	if c.Name != "" {
		e.Named(c.Name)
	}
	for name, pattern := range c.Query {
		e.Query(name, valueFor(pattern))
	}
	for name, pattern := range c.Headers {
		e.Header(name, valueFor(pattern))
	}
	for name, pattern := range c.Cookies {
		e.Cookie(name, valueFor(pattern))
	}
	if c.Secure {
		e.Secure(true)
	}

	if c.Body != nil {
		applyBody(e, c.Body)
	}

	if c.Times != nil {
		count, err := buildCount(c.Times)
		if err != nil {
			return nil, err
		}
		e.Called(count)
	}

	for _, rc := range c.Responses {
		r, err := buildResponder(rc)
		if err != nil {
			return nil, err
		}
		e.Respond(r)
	}

	return e, e.Err()
}

func applyBody(e *expect.Expectation, b *BodyConfig) {
	switch {
	case b.Equals != nil:
		e.BodyEquals(b.Equals)
	case b.Contains != "":
		e.BodyContains(b.Contains)
	case b.JSONPath != nil:
		e.BodyJSONPath(b.JSONPath.Path, b.JSONPath.Value)
	case b.Schema != "":
		e.BodySchema(b.Schema)
	case b.Expr != "":
		e.BodyExpr(b.Expr)
	}
}

func buildCount(t *TimesConfig) (expect.CountConstraint, error) {
	switch {
	case t.Never:
		return expect.Never(), nil
	case t.Exactly != nil:
		return expect.Exactly(*t.Exactly), nil
	case t.AtLeast != nil && t.AtMost != nil:
		return expect.Between(*t.AtLeast, *t.AtMost), nil
	case t.AtLeast != nil:
		return expect.AtLeast(*t.AtLeast), nil
	case t.AtMost != nil:
		return expect.AtMost(*t.AtMost), nil
	default:
		return expect.CountConstraint{}, errors.New("times: no constraint set")
	}
}

func buildResponder(c ResponseConfig) (*expect.Responder, error) {
	r := expect.NewResponse()
	if c.Status != 0 {
		r.Status(c.Status)
	}
	for name, value := range c.Headers {
		r.Header(name, value)
	}

	switch {
	case c.Body != "" && c.BodyFile != "":
		return nil, errors.New("response: body and bodyFile are mutually exclusive")
	case c.Body != "":
		r.Body(c.Body)
	case c.BodyFile != "":
		data, err := os.ReadFile(c.BodyFile)
		if err != nil {
			return nil, fmt.Errorf("response: read bodyFile: %w", err)
		}
		r.Body(data)
	}

	if c.ContentType != "" {
		r.ContentType(c.ContentType)
	}
	if c.Charset != "" {
		r.Charset(c.Charset)
	}

	switch {
	case c.DelayMinMs != 0 || c.DelayMaxMs != 0:
		r.DelayRange(millis(c.DelayMinMs), millis(c.DelayMaxMs))
	case c.DelayMs != 0:
		r.Delay(millis(c.DelayMs))
	}

	if c.Chunks > 0 {
		r.Chunks(c.Chunks)
	}
	if c.Forward != "" {
		r.Forward(c.Forward)
	}
	if c.ContentEncoding != "" {
		r.Compressed(c.ContentEncoding)
	}
	return r, nil
}

func buildRequirement(c RequirementConfig) (*expect.Requirement, error) {
	method := c.Method
	if method == "" {
		method = "any"
	}
	path := c.Path
	if path == "" {
		path = "/**"
	}

	r := expect.Require(method, path)
	for name, pattern := range c.Query {
		r.Query(name, valueFor(pattern))
	}
	for name, pattern := range c.Headers {
		r.Header(name, valueFor(pattern))
	}
	for name, pattern := range c.Cookies {
		r.Cookie(name, valueFor(pattern))
	}
	if c.Secure {
		r.Secure(true)
	}
	return r, r.Err()
}

func buildWebSocket(c WebSocketConfig) (*wsreact.Expectation, error) {
	if c.Path == "" {
		return nil, errors.New("path is required")
	}

	e := wsreact.Endpoint(c.Path)
	for i, rc := range c.Reactions {
		m, err := buildMessageMatcher(rc.Match)
		if err != nil {
			return nil, fmt.Errorf("reaction %d: %w", i, err)
		}
		react, err := buildReaction(rc.Send)
		if err != nil {
			return nil, fmt.Errorf("reaction %d: %w", i, err)
		}
		e.React(m, react)
	}
	return e, nil
}

func buildMessageMatcher(c MessageMatchConfig) (*wsreact.MessageMatcher, error) {
	switch c.Type {
	case "exact":
		return wsreact.MessageEquals(c.Value), nil
	case "contains":
		return wsreact.MessageContains(c.Value), nil
	case "prefix":
		return wsreact.MessagePrefix(c.Value), nil
	case "suffix":
		return wsreact.MessageSuffix(c.Value), nil
	case "regex":
		return wsreact.MessagePattern(c.Value)
	case "jsonPath":
		return wsreact.MessageJSONPath(c.Path, c.Value)
	default:
		return nil, fmt.Errorf("unknown match type %q", c.Type)
	}
}

func buildReaction(c ReactionSendConfig) (wsreact.Reaction, error) {
	var react wsreact.Reaction
	switch c.Type {
	case "", "text":
		react = wsreact.Text(c.Value)
	case "binary":
		decoded, err := base64.StdEncoding.DecodeString(c.Value)
		if err != nil {
			return wsreact.Reaction{}, fmt.Errorf("binary value is not base64: %w", err)
		}
		react = wsreact.Binary(decoded)
	default:
		return wsreact.Reaction{}, fmt.Errorf("unknown send type %q", c.Type)
	}
	if c.DelayMs > 0 {
		react = react.Delayed(millis(c.DelayMs))
	}
	return react, nil
}

// valueFor interprets a config pattern string: "*" anywhere makes it a
// wildcard pattern, otherwise exact.
func valueFor(pattern string) expect.Value {
	if pattern == "*" {
		return expect.Present()
	}
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '*' {
			return expect.Pattern(pattern)
		}
	}
	return expect.Equal(pattern)
}

// ServerConfigFor converts the file's server section into an engine
// config, leaving the logger to the caller.
func ServerConfigFor(f *File) engine.Config {
	cfg := engine.DefaultConfig()
	if f.Server.Addr != "" {
		cfg.Addr = f.Server.Addr
	}
	if f.Server.NoMatchStatus != 0 {
		cfg.NoMatchStatus = f.Server.NoMatchStatus
	}
	return cfg
}
