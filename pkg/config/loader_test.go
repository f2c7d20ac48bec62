package config

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/decoy/pkg/engine"
	"github.com/getmockd/decoy/pkg/expect"
)

const sampleConfig = `
version: "1"
server:
  addr: "127.0.0.1:9090"
  noMatchStatus: 418
expectations:
  - name: get-user
    method: GET
    path: /api/users/{id}
    headers:
      Accept: "*json*"
    responses:
      - status: 200
        body: '{"id":"42"}'
        contentType: application/json
  - method: POST
    path: /api/orders
    body:
      contains: "sku"
    times:
      atLeast: 1
    responses:
      - status: 201
requirements:
  - method: any
    path: /api/**
    headers:
      X-Api-Key: "*"
websockets:
  - path: /ws/feed
    reactions:
      - match:
          type: exact
          value: ping
        send:
          value: pong
`

func TestParseAndApply(t *testing.T) {
	f, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "1", f.Version)
	require.Len(t, f.Expectations, 2)
	require.Len(t, f.Requirements, 1)
	require.Len(t, f.WebSockets, 1)

	srv := engine.NewDefault()
	require.NoError(t, Apply(f, srv))
	assert.True(t, srv.IsConfigured())

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// The requirement demands an API key on everything under /api.
	req, _ := http.NewRequest("GET", ts.URL+"/api/users/42", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "missing X-Api-Key")

	req.Header.Set("X-Api-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}

func TestServerConfigFor(t *testing.T) {
	f, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	cfg := ServerConfigFor(f)
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr)
	assert.Equal(t, 418, cfg.NoMatchStatus)

	// Defaults survive an empty server section.
	cfg = ServerConfigFor(&File{})
	assert.Equal(t, "127.0.0.1:0", cfg.Addr)
	assert.Equal(t, http.StatusNotFound, cfg.NoMatchStatus)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = Load(empty)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = Parse([]byte("version: [broken"))
	assert.Error(t, err)
}

func TestApplyRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			"expectation without path",
			"expectations:\n  - method: GET",
			"path is required",
		},
		{
			"times without constraint",
			"expectations:\n  - path: /x\n    times: {}",
			"no constraint",
		},
		{
			"body and bodyFile together",
			"expectations:\n  - path: /x\n    responses:\n      - body: a\n        bodyFile: b.txt",
			"mutually exclusive",
		},
		{
			"unknown websocket match type",
			"websockets:\n  - path: /ws\n    reactions:\n      - match: {type: glob, value: x}\n        send: {value: y}",
			"unknown match type",
		},
		{
			"binary reaction with bad base64",
			"websockets:\n  - path: /ws\n    reactions:\n      - match: {type: exact, value: x}\n        send: {type: binary, value: '!!'}",
			"base64",
		},
		{
			"bad regex matcher",
			"websockets:\n  - path: /ws\n    reactions:\n      - match: {type: regex, value: '(['}\n        send: {value: y}",
			"pattern",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			err = Apply(f, engine.NewDefault())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValueForPatterns(t *testing.T) {
	assert.Equal(t, "is present", valueFor("*").Describe(), "bare star is presence")
	assert.Contains(t, valueFor("application/*json*").Describe(), "pattern")
	assert.Contains(t, valueFor("exact-token").Describe(), "equals")
}

func TestBuildCount(t *testing.T) {
	two := 2
	five := 5

	c, err := buildCount(&TimesConfig{Exactly: &two})
	require.NoError(t, err)
	assert.True(t, c.Satisfied(2))
	assert.False(t, c.Satisfied(3))

	c, err = buildCount(&TimesConfig{AtLeast: &two, AtMost: &five})
	require.NoError(t, err)
	assert.False(t, c.Satisfied(1))
	assert.True(t, c.Satisfied(4))
	assert.False(t, c.Satisfied(6))

	c, err = buildCount(&TimesConfig{Never: true})
	require.NoError(t, err)
	assert.True(t, c.Satisfied(0))
	assert.False(t, c.Satisfied(1))
}

func TestBuildResponderBodyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"from":"file"}`), 0o644))

	r, err := buildResponder(ResponseConfig{Status: 200, BodyFile: path, ContentType: "application/json"})
	require.NoError(t, err)
	assert.Equal(t, 200, r.StatusCode)

	e := expect.GET("/f").Respond(r)
	require.NoError(t, e.Err())
}
