package expect

import (
	"time"

	"github.com/getmockd/decoy/pkg/codec"
)

// Responder specifies one candidate response for an expectation: status,
// headers, body (raw or typed-plus-codec), timing, a multipart spec, or a
// forward target. An expectation cycles through its responders in order
// and reuses the last one once the list is exhausted.
type Responder struct {
	// StatusCode defaults to 200 when unset.
	StatusCode int
	// HeaderMap holds response headers set verbatim.
	HeaderMap map[string]string
	// Payload is the response body: []byte and string are written as-is,
	// anything else is encoded via the resolved encoder for MediaType.
	Payload interface{}
	// MediaType is the response Content-Type (and the encoder key for
	// typed payloads).
	MediaType string
	// CharsetName is appended to the Content-Type and used by text
	// encoders.
	CharsetName string
	// ChunkCount splits the body into N byte-balanced chunks written with
	// chunked transfer encoding.
	ChunkCount int
	// FixedDelay is the delay before the response (or between chunks when
	// chunking).
	FixedDelay time.Duration
	// MinDelay/MaxDelay define a uniform-random delay range; used instead
	// of FixedDelay when MaxDelay > 0.
	MinDelay time.Duration
	MaxDelay time.Duration
	// ForwardTarget is an upstream base URL; when set the responder
	// produces a forward directive instead of a body.
	ForwardTarget string
	// Parts assembles a multipart body instead of Payload.
	Parts *MultipartSpec
	// Encoders is the responder-local encoder registry, consulted before
	// the expectation-local and global registries.
	Encoders *codec.EncoderRegistry
	// ContentEncoding marks a pre-compressed body; the synthesizer never
	// re-compresses when it is set.
	ContentEncoding string
}

// NewResponse creates an empty responder (status 200, no body).
func NewResponse() *Responder {
	return &Responder{HeaderMap: make(map[string]string)}
}

// Status sets the response status code.
func (r *Responder) Status(code int) *Responder {
	r.StatusCode = code
	return r
}

// Header sets a response header.
func (r *Responder) Header(name, value string) *Responder {
	r.HeaderMap[name] = value
	return r
}

// Body sets the response payload.
func (r *Responder) Body(payload interface{}) *Responder {
	r.Payload = payload
	return r
}

// ContentType sets the response media type.
func (r *Responder) ContentType(mediaType string) *Responder {
	r.MediaType = mediaType
	return r
}

// Charset sets the response charset.
func (r *Responder) Charset(name string) *Responder {
	r.CharsetName = name
	return r
}

// Delay sets a fixed delay before the response body (or between chunks).
func (r *Responder) Delay(d time.Duration) *Responder {
	r.FixedDelay = d
	r.MinDelay, r.MaxDelay = 0, 0
	return r
}

// DelayRange sets a uniform-random delay range.
func (r *Responder) DelayRange(min, max time.Duration) *Responder {
	r.FixedDelay = 0
	r.MinDelay, r.MaxDelay = min, max
	return r
}

// Chunks splits the response body into n chunks sent with chunked
// transfer encoding, each followed by the configured delay.
func (r *Responder) Chunks(n int) *Responder {
	r.ChunkCount = n
	return r
}

// Forward makes the responder relay the request to an upstream base URL.
func (r *Responder) Forward(target string) *Responder {
	r.ForwardTarget = target
	return r
}

// Multipart makes the responder assemble a multipart body.
func (r *Responder) Multipart(spec *MultipartSpec) *Responder {
	r.Parts = spec
	return r
}

// Encoder registers a responder-local encoder.
func (r *Responder) Encoder(contentType string, sample interface{}, e codec.Encoder) *Responder {
	if r.Encoders == nil {
		r.Encoders = codec.NewEncoderRegistry(nil)
	}
	r.Encoders.Register(contentType, sample, e)
	return r
}

// Compressed marks the payload as already compressed with the given
// coding; the Content-Encoding header is set and the synthesizer will not
// compress again.
func (r *Responder) Compressed(coding string) *Responder {
	r.ContentEncoding = coding
	return r
}

// MultipartSpec declares a multipart response body.
type MultipartSpec struct {
	Boundary string
	Parts    []codec.Part
	// Encoders is the per-part encoder registry; parts fall back to the
	// responder/expectation/global registries.
	Encoders *codec.EncoderRegistry
}

// NewMultipart creates an empty multipart spec.
func NewMultipart() *MultipartSpec {
	return &MultipartSpec{}
}

// WithBoundary fixes the multipart boundary instead of generating one.
func (m *MultipartSpec) WithBoundary(boundary string) *MultipartSpec {
	m.Boundary = boundary
	return m
}

// Field adds a plain text/plain field part.
func (m *MultipartSpec) Field(name, value string) *MultipartSpec {
	m.Parts = append(m.Parts, codec.Part{Name: name, ContentType: codec.TypeText, Value: value})
	return m
}

// Part adds a typed part encoded via the part encoder registries.
func (m *MultipartSpec) Part(name, fileName, contentType string, payload interface{}) *MultipartSpec {
	m.Parts = append(m.Parts, codec.Part{
		Name:        name,
		FileName:    fileName,
		ContentType: contentType,
		Value:       payload,
	})
	return m
}

// Encoder registers a part-local encoder.
func (m *MultipartSpec) Encoder(contentType string, sample interface{}, e codec.Encoder) *MultipartSpec {
	if m.Encoders == nil {
		m.Encoders = codec.NewEncoderRegistry(nil)
	}
	m.Encoders.Register(contentType, sample, e)
	return m
}
