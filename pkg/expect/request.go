package expect

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/getmockd/decoy/pkg/codec"
)

// RequestView is the normalized, immutable view of an inbound request
// that matchers evaluate against. The transport adapter builds one per
// request; matchers never see the underlying connection.
type RequestView struct {
	Method  string
	Path    string
	Query   url.Values
	Headers http.Header
	Cookies map[string]string
	Body    []byte
	// Secure reports whether the request arrived over the encrypted
	// listener.
	Secure bool

	// Decoders is the decoder chain in effect for this request
	// (expectation-local stacked over server-global). The engine sets it
	// before evaluating body matchers.
	Decoders *codec.Chain

	decoded     interface{}
	decodeErr   error
	decodeDone  bool
	decodedType string
}

// NewRequestView builds a RequestView from a parsed HTTP request and its
// already-read body bytes.
func NewRequestView(r *http.Request, body []byte) *RequestView {
	cookies := make(map[string]string)
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}
	return &RequestView{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.Query(),
		Headers: r.Header,
		Cookies: cookies,
		Body:    body,
		Secure:  r.TLS != nil,
	}
}

// SetDecoders installs the decoder chain in effect for the expectation
// being evaluated and invalidates any memoized decode from a previous
// chain (expectation-local decoders may differ per expectation).
func (v *RequestView) SetDecoders(chain *codec.Chain) {
	if v.Decoders == chain {
		return
	}
	v.Decoders = chain
	v.decodeDone = false
	v.decoded = nil
	v.decodeErr = nil
	v.decodedType = ""
}

// ContentType returns the request's Content-Type header value.
func (v *RequestView) ContentType() string {
	if v.Headers == nil {
		return ""
	}
	return v.Headers.Get("Content-Type")
}

// DecodedBody decodes the body through the decoder chain, memoizing the
// result. Not safe for concurrent use; a view belongs to one worker.
func (v *RequestView) DecodedBody() (interface{}, error) {
	ct := v.ContentType()
	if ct == "" {
		ct = codec.TypeBytes
	}
	if v.decodeDone && v.decodedType == ct {
		return v.decoded, v.decodeErr
	}
	v.decodeDone = true
	v.decodedType = ct
	v.decoded, v.decodeErr = v.Decoders.Decode(ct, v.Body)
	return v.decoded, v.decodeErr
}

// AcceptsEncoding reports whether the request's Accept-Encoding header
// lists the coding (ignoring quality values; q=0 disables it).
func (v *RequestView) AcceptsEncoding(coding string) bool {
	if v.Headers == nil {
		return false
	}
	accept := v.Headers.Get("Accept-Encoding")
	if accept == "" {
		return false
	}
	for _, entry := range strings.Split(accept, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(entry), ";")
		if !strings.EqualFold(strings.TrimSpace(name), coding) {
			continue
		}
		q := strings.TrimSpace(params)
		if strings.HasPrefix(q, "q=0") && !strings.HasPrefix(q, "q=0.") {
			return false
		}
		return true
	}
	return false
}
