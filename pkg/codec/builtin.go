package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Built-in content types.
const (
	TypeBytes     = "application/octet-stream"
	TypeText      = "text/plain"
	TypeJSON      = "application/json"
	TypeForm      = "application/x-www-form-urlencoded"
	TypeMultipart = "multipart/form-data"
)

// NewDefaultDecoderRegistry returns a root registry with the built-in
// decoders registered.
func NewDefaultDecoderRegistry() *DecoderRegistry {
	r := NewDecoderRegistry(nil)
	r.Register(TypeBytes, DecodeBytes)
	r.Register(TypeText, DecodeText)
	r.Register(TypeJSON, DecodeJSON)
	r.Register(TypeForm, DecodeForm)
	r.Register(TypeMultipart, DecodeMultipart)
	return r
}

// NewDefaultEncoderRegistry returns a root registry with the built-in
// encoders registered as content type wildcards.
func NewDefaultEncoderRegistry() *EncoderRegistry {
	r := NewEncoderRegistry(nil)
	r.Register(TypeBytes, nil, EncodeBytes)
	r.Register(TypeText, nil, EncodeText("utf-8"))
	r.Register(TypeJSON, nil, EncodeJSON)
	return r
}

// DecodeBytes passes the body through untouched.
func DecodeBytes(data []byte, _ *DecodingContext) (interface{}, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// DecodeText decodes the body into a string honoring the declared charset.
// An empty or unknown-to-be-empty charset is treated as UTF-8.
func DecodeText(data []byte, ctx *DecodingContext) (interface{}, error) {
	charset := ""
	if ctx != nil {
		charset = ctx.Charset
	}
	decoded, err := charsetDecode(data, charset)
	if err != nil {
		return nil, err
	}
	return string(decoded), nil
}

// DecodeJSON unmarshals the body into the generic JSON value shape
// (map[string]interface{}, []interface{}, string, float64, bool, nil).
func DecodeJSON(data []byte, _ *DecodingContext) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("invalid json body: %w", err)
	}
	return v, nil
}

// DecodeForm parses a URL-encoded form body into a url.Values map.
func DecodeForm(data []byte, _ *DecodingContext) (interface{}, error) {
	values, err := url.ParseQuery(string(data))
	if err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	return values, nil
}

// EncodeBytes encodes raw payloads. Accepted shapes: []byte and string
// as-is, io.Reader drained, *url.URL fetched over HTTP, and any other
// string-path-like source is rejected.
func EncodeBytes(obj interface{}) ([]byte, error) {
	switch v := obj.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case io.Reader:
		return io.ReadAll(v)
	case *url.URL:
		return fetchURL(v)
	default:
		return nil, fmt.Errorf("cannot encode %T as raw bytes", obj)
	}
}

// EncodeFile returns an encoder that reads the response body from a file
// path at encode time. The payload value is ignored.
func EncodeFile(path string) Encoder {
	return func(interface{}) ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read body file: %w", err)
		}
		return data, nil
	}
}

// EncodeText returns an encoder producing charset-encoded text from a
// string or []byte payload.
func EncodeText(charset string) Encoder {
	return func(obj interface{}) ([]byte, error) {
		var s string
		switch v := obj.(type) {
		case string:
			s = v
		case []byte:
			s = string(v)
		case fmt.Stringer:
			s = v.String()
		default:
			return nil, fmt.Errorf("cannot encode %T as text", obj)
		}
		return charsetEncode([]byte(s), charset)
	}
}

// EncodeJSON marshals the payload with encoding/json.
func EncodeJSON(obj interface{}) ([]byte, error) {
	return json.Marshal(obj)
}

// EncodeBase64 encodes the payload's raw bytes as standard base64 text.
func EncodeBase64(obj interface{}) ([]byte, error) {
	raw, err := EncodeBytes(obj)
	if err != nil {
		return nil, err
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	return out, nil
}

// charsetDecode converts bytes in the named charset to UTF-8.
func charsetDecode(data []byte, charset string) ([]byte, error) {
	if charset == "" || isUTF8Name(charset) {
		return data, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", charset, err)
	}
	return out, nil
}

// charsetEncode converts UTF-8 bytes into the named charset.
func charsetEncode(data []byte, charset string) ([]byte, error) {
	if charset == "" || isUTF8Name(charset) {
		return data, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	out, _, err := transform.Bytes(enc.NewEncoder(), data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", charset, err)
	}
	return out, nil
}

func isUTF8Name(name string) bool {
	switch name {
	case "utf-8", "UTF-8", "utf8", "UTF8":
		return true
	}
	return false
}

func fetchURL(u *url.URL) ([]byte, error) {
	resp, err := http.Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("fetch body source: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch body source: unexpected status %d", resp.StatusCode)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("fetch body source: %w", err)
	}
	return buf.Bytes(), nil
}
