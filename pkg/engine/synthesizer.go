package engine

import (
	"fmt"
	mathrand "math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/getmockd/decoy/pkg/codec"
	"github.com/getmockd/decoy/pkg/expect"
)

// ResponseDescription tells the transport adapter what to send. Exactly
// one of Body, Stream, or Forward carries the response content; the core
// computes what to send and when, never the socket I/O itself.
type ResponseDescription struct {
	Status  int
	Headers http.Header
	// Delay is slept before writing the body (non-chunked responses).
	Delay time.Duration
	// Body is the complete response body.
	Body []byte
	// Stream, when set, replaces Body with timed chunk writes.
	Stream *StreamPlan
	// Forward, when set, instructs the adapter to relay the request to an
	// upstream and mirror its response verbatim.
	Forward *ForwardDirective
	// Compress names the coding the adapter should apply to the body
	// ("" means none). Never set for pre-compressed responders.
	Compress string
}

// StreamPlan is a chunked write schedule: chunk i is written, then
// Delays[i] elapses before the next write.
type StreamPlan struct {
	Chunks [][]byte
	Delays []time.Duration
}

// ForwardDirective carries everything the adapter needs to replay the
// original request against an upstream base URL.
type ForwardDirective struct {
	Target   *url.URL
	Method   string
	Path     string
	RawQuery string
	Headers  http.Header
	Body     []byte
}

// Synthesize builds the response description for the callIndex-th match
// of an expectation. Responder selection is responders[min(n,K)-1]: the
// list is consumed in order and the last responder repeats once the list
// is exhausted. Unresolvable codecs and malformed forward targets are
// configuration errors surfaced here, not soft failures.
func Synthesize(e *expect.Expectation, callIndex int64, view *expect.RequestView, globalEncoders *codec.EncoderRegistry) (*ResponseDescription, error) {
	responders := e.Responders()
	if len(responders) == 0 {
		return &ResponseDescription{Status: http.StatusOK, Headers: make(http.Header)}, nil
	}

	idx := callIndex
	if idx > int64(len(responders)) {
		idx = int64(len(responders))
	}
	r := responders[idx-1]

	desc := &ResponseDescription{
		Status:  r.StatusCode,
		Headers: make(http.Header),
	}
	if desc.Status == 0 {
		desc.Status = http.StatusOK
	}
	for name, value := range r.HeaderMap {
		desc.Headers.Set(name, value)
	}

	if r.ForwardTarget != "" {
		target, err := url.Parse(r.ForwardTarget)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("invalid forward target %q", r.ForwardTarget)
		}
		desc.Forward = &ForwardDirective{
			Target:   target,
			Method:   view.Method,
			Path:     view.Path,
			RawQuery: view.Query.Encode(),
			Headers:  view.Headers.Clone(),
			Body:     view.Body,
		}
		return desc, nil
	}

	encoders := stackEncoders(r, e, globalEncoders)

	body, contentType, err := resolveBody(r, e, encoders)
	if err != nil {
		return nil, err
	}
	if contentType != "" && desc.Headers.Get("Content-Type") == "" {
		desc.Headers.Set("Content-Type", contentType)
	}

	if r.ContentEncoding != "" {
		desc.Headers.Set("Content-Encoding", r.ContentEncoding)
	} else if len(body) > 0 && view.AcceptsEncoding("gzip") {
		desc.Compress = "gzip"
	}

	if r.ChunkCount > 0 && len(body) > 0 {
		chunks := splitChunks(body, r.ChunkCount)
		delays := make([]time.Duration, len(chunks))
		for i := range delays {
			delays[i] = responderDelay(r)
		}
		desc.Stream = &StreamPlan{Chunks: chunks, Delays: delays}
		desc.Headers.Set("Transfer-Encoding", "chunked")
		return desc, nil
	}

	desc.Body = body
	desc.Delay = responderDelay(r)
	return desc, nil
}

// stackEncoders builds the local-over-global encoder resolution stack:
// responder-local, then expectation-local, then server-global.
func stackEncoders(r *expect.Responder, e *expect.Expectation, global *codec.EncoderRegistry) *codec.EncoderRegistry {
	return r.Encoders.Rebase(e.Encoders().Rebase(global))
}

// resolveBody produces the body bytes and the effective Content-Type for
// a responder.
func resolveBody(r *expect.Responder, e *expect.Expectation, encoders *codec.EncoderRegistry) ([]byte, string, error) {
	if r.Parts != nil {
		partEncoders := r.Parts.Encoders.Rebase(encoders)
		body, boundary, err := codec.EncodeMultipart(r.Parts.Parts, r.Parts.Boundary, partEncoders)
		if err != nil {
			return nil, "", fmt.Errorf("expectation %s: %w", e.Describe(), err)
		}
		return body, "multipart/form-data; boundary=" + boundary, nil
	}

	if r.Payload == nil {
		return nil, contentTypeWithCharset(r.MediaType, r.CharsetName), nil
	}

	switch payload := r.Payload.(type) {
	case []byte:
		return payload, rawContentType(r, string(payload)), nil
	case string:
		return []byte(payload), rawContentType(r, payload), nil
	}

	if r.MediaType == "" {
		return nil, "", fmt.Errorf("expectation %s: typed payload %T needs a content type", e.Describe(), r.Payload)
	}
	enc, ok := encoders.Lookup(r.MediaType, r.Payload)
	if !ok {
		return nil, "", fmt.Errorf("expectation %s: no encoder for (%s, %T)", e.Describe(), r.MediaType, r.Payload)
	}
	body, err := enc(r.Payload)
	if err != nil {
		return nil, "", fmt.Errorf("expectation %s: encode response: %w", e.Describe(), err)
	}
	return body, contentTypeWithCharset(r.MediaType, r.CharsetName), nil
}

// rawContentType picks the Content-Type for raw string/byte payloads:
// the declared type if any, otherwise a sniff between JSON, XML, and
// plain text.
func rawContentType(r *expect.Responder, body string) string {
	if r.MediaType != "" {
		return contentTypeWithCharset(r.MediaType, r.CharsetName)
	}
	trimmed := strings.TrimSpace(body)
	switch {
	case strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}"),
		strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"):
		return "application/json"
	case strings.HasPrefix(trimmed, "<?xml"), strings.HasPrefix(trimmed, "<"):
		return "application/xml"
	default:
		return "text/plain"
	}
}

func contentTypeWithCharset(mediaType, charset string) string {
	if mediaType == "" {
		return ""
	}
	if charset == "" {
		return mediaType
	}
	return mediaType + "; charset=" + charset
}

// splitChunks divides body into n byte-length-balanced chunks: the first
// len(body)%n chunks are one byte longer.
func splitChunks(body []byte, n int) [][]byte {
	if n <= 1 || n > len(body) {
		if n > len(body) {
			n = len(body)
		}
		if n <= 1 {
			return [][]byte{body}
		}
	}
	base := len(body) / n
	rem := len(body) % n

	chunks := make([][]byte, 0, n)
	pos := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		chunks = append(chunks, body[pos:pos+size])
		pos += size
	}
	return chunks
}

// responderDelay computes the configured delay: fixed, or uniform random
// within [MinDelay, MaxDelay].
func responderDelay(r *expect.Responder) time.Duration {
	if r.MaxDelay > 0 {
		if r.MaxDelay <= r.MinDelay {
			return r.MinDelay
		}
		return r.MinDelay + time.Duration(mathrand.Int64N(int64(r.MaxDelay-r.MinDelay)))
	}
	return r.FixedDelay
}
