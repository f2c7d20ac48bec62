package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeMultipart(t *testing.T) {
	parts := []Part{
		{Name: "field", ContentType: TypeText, Value: "hello"},
		{Name: "doc", FileName: "doc.json", ContentType: TypeJSON, Value: map[string]interface{}{"ok": true}},
		{Name: "blob", ContentType: TypeBytes, Data: []byte{0x01, 0x02}},
	}

	body, boundary, err := EncodeMultipart(parts, "", NewDefaultEncoderRegistry())
	require.NoError(t, err)
	require.NotEmpty(t, boundary)

	chain := NewChain(NewDefaultDecoderRegistry())
	v, err := chain.Decode("multipart/form-data; boundary="+boundary, body)
	require.NoError(t, err)

	decoded, ok := v.(Parts)
	require.True(t, ok)
	require.Len(t, decoded, 3)

	field, ok := decoded.Field("field")
	require.True(t, ok)
	assert.Equal(t, "hello", field.Value)

	doc, ok := decoded.Field("doc")
	require.True(t, ok)
	assert.Equal(t, "doc.json", doc.FileName)
	m, ok := doc.Value.(map[string]interface{})
	require.True(t, ok, "json part decodes through the chain")
	assert.Equal(t, true, m["ok"])

	blob, ok := decoded.Field("blob")
	require.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x02}, blob.Data)
}

func TestEncodeMultipartFixedBoundary(t *testing.T) {
	body, boundary, err := EncodeMultipart([]Part{
		{Name: "a", Value: "1"},
	}, "decoy-boundary", nil)
	require.NoError(t, err)
	assert.Equal(t, "decoy-boundary", boundary)
	assert.Contains(t, string(body), "--decoy-boundary")
	assert.Contains(t, string(body), `name="a"`)
}

func TestEncodeMultipartNoEncoder(t *testing.T) {
	_, _, err := EncodeMultipart([]Part{
		{Name: "bad", ContentType: "application/msgpack", Value: struct{ X int }{1}},
	}, "", NewDefaultEncoderRegistry())
	assert.ErrorContains(t, err, "no encoder for multipart part")
}

func TestDecodeMultipartMissingBoundary(t *testing.T) {
	_, err := DecodeMultipart([]byte("x"), &DecodingContext{Params: map[string]string{}})
	assert.ErrorContains(t, err, "boundary")
}
