package expect

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/decoy/pkg/codec"
)

func jsonView(body string) *RequestView {
	v := testView("POST", "/data")
	v.Headers.Set("Content-Type", "application/json")
	v.Body = []byte(body)
	v.SetDecoders(codec.NewChain(codec.NewDefaultDecoderRegistry()))
	return v
}

func TestBodyMatcherDecodesThroughChain(t *testing.T) {
	v := jsonView(`{"user":{"name":"ada","age":30}}`)

	m := BodyMatcher("has user ada", func(decoded interface{}) bool {
		body, ok := decoded.(map[string]interface{})
		if !ok {
			return false
		}
		user, ok := body["user"].(map[string]interface{})
		return ok && user["name"] == "ada"
	})
	assert.True(t, m.Matches(v))
}

func TestBodyMatcherDecodeFailureFailsMatcher(t *testing.T) {
	v := jsonView(`{broken`)

	m := BodyMatcher("anything", func(interface{}) bool { return true })
	res := m.Evaluate(v)
	require.False(t, res.Passed)
	assert.Contains(t, res.Reason, "body decode failed")
}

func TestBodyMatcherUnknownContentType(t *testing.T) {
	v := testView("POST", "/data")
	v.Headers = http.Header{}
	v.Headers.Set("Content-Type", "application/msgpack")
	v.Body = []byte{0x81}
	v.SetDecoders(codec.NewChain(codec.NewDefaultDecoderRegistry()))

	m := BodyMatcher("anything", func(interface{}) bool { return true })
	res := m.Evaluate(v)
	require.False(t, res.Passed)
	assert.Contains(t, res.Reason, "no decoder registered")
}

func TestBodyEqualsMatcherNormalizesShapes(t *testing.T) {
	v := jsonView(`{"name":"ada","age":30}`)

	type payload struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	assert.True(t, BodyEqualsMatcher(payload{Name: "ada", Age: 30}).Matches(v))
	assert.True(t, BodyEqualsMatcher(map[string]interface{}{"name": "ada", "age": 30}).Matches(v))
	assert.False(t, BodyEqualsMatcher(payload{Name: "bob", Age: 30}).Matches(v))
}

func TestBodyBytesAndContains(t *testing.T) {
	v := testView("POST", "/raw")
	v.Body = []byte("hello world")

	assert.True(t, BodyBytesMatcher([]byte("hello world")).Matches(v))
	assert.False(t, BodyBytesMatcher([]byte("hello")).Matches(v))
	assert.True(t, BodyContainsMatcher("lo wo").Matches(v))
	assert.False(t, BodyContainsMatcher("xyz").Matches(v))
}

func TestBodyJSONPathMatcher(t *testing.T) {
	m, err := BodyJSONPathMatcher("$.user.age", 30)
	require.NoError(t, err)

	assert.True(t, m.Matches(jsonView(`{"user":{"age":30}}`)))
	assert.False(t, m.Matches(jsonView(`{"user":{"age":31}}`)))
	assert.False(t, m.Matches(jsonView(`{"user":{}}`)))

	_, err = BodyJSONPathMatcher("$[", nil)
	assert.Error(t, err, "malformed path is a configuration error")
}

func TestBodySchemaMatcher(t *testing.T) {
	m, err := BodySchemaMatcher(`{
		"type": "object",
		"required": ["name"],
		"properties": {"name": {"type": "string"}}
	}`)
	require.NoError(t, err)

	assert.True(t, m.Matches(jsonView(`{"name":"ada"}`)))
	assert.False(t, m.Matches(jsonView(`{"name":7}`)))
	assert.False(t, m.Matches(jsonView(`{}`)))

	_, err = BodySchemaMatcher(`{"type": 12}`)
	assert.Error(t, err)
}

func TestBodyExprMatcher(t *testing.T) {
	m, err := BodyExprMatcher(`body.user.age > 21 && method == "POST"`)
	require.NoError(t, err)

	assert.True(t, m.Matches(jsonView(`{"user":{"age":30}}`)))
	assert.False(t, m.Matches(jsonView(`{"user":{"age":18}}`)))

	_, err = BodyExprMatcher(`1 +`)
	assert.Error(t, err)

	// Non-boolean results fail the matcher, not the process.
	m, err = BodyExprMatcher(`1 + 1`)
	require.NoError(t, err)
	res := m.Evaluate(jsonView(`{}`))
	assert.False(t, res.Passed)
}
