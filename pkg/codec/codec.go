package codec

import (
	"fmt"
	"mime"
	"reflect"
	"strings"
	"sync"
)

// Decoder transforms raw body bytes into a typed value.
// Decoders must be pure: no side effects beyond the transform.
type Decoder func(data []byte, ctx *DecodingContext) (interface{}, error)

// Encoder transforms a typed value into response body bytes.
type Encoder func(obj interface{}) ([]byte, error)

// DecodingContext carries the content metadata for a decode call and a
// handle to the remaining decoder chain so a decoder may delegate nested
// content (e.g. multipart parts) back through the registries.
type DecodingContext struct {
	// ContentType is the media type without parameters (e.g. "application/json").
	ContentType string
	// Charset is the charset parameter, if declared ("" means utf-8).
	Charset string
	// Params holds the remaining media type parameters (e.g. "boundary").
	Params map[string]string
	// Length is the declared or actual body length in bytes.
	Length int
	// Chain resolves decoders for nested content. May be nil.
	Chain *Chain
}

// ParseContentType splits a Content-Type header value into its media type
// and parameters. Malformed values fall back to the trimmed lowercase input.
func ParseContentType(value string) (mediaType string, params map[string]string) {
	mt, p, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(value)), nil
	}
	return mt, p
}

// DecoderRegistry maps content types to decoders. Lookups fall through to
// the parent registry when the type is not registered locally.
type DecoderRegistry struct {
	parent   *DecoderRegistry
	mu       sync.RWMutex
	decoders map[string]Decoder
}

// NewDecoderRegistry creates a registry that falls back to parent.
// A nil parent creates a root registry.
func NewDecoderRegistry(parent *DecoderRegistry) *DecoderRegistry {
	return &DecoderRegistry{
		parent:   parent,
		decoders: make(map[string]Decoder),
	}
}

// Register associates a decoder with a content type, replacing any local
// registration for the same type.
func (r *DecoderRegistry) Register(contentType string, d Decoder) {
	mt, _ := ParseContentType(contentType)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[mt] = d
}

// Lookup resolves the decoder for a content type, local first.
func (r *DecoderRegistry) Lookup(contentType string) (Decoder, bool) {
	mt, _ := ParseContentType(contentType)
	for reg := r; reg != nil; reg = reg.parent {
		reg.mu.RLock()
		d, ok := reg.decoders[mt]
		reg.mu.RUnlock()
		if ok {
			return d, true
		}
	}
	return nil, false
}

// Rebase returns a registry with the same local registrations but a new
// fallback parent. Used to graft an expectation-local registry onto the
// server-global one at request time.
func (r *DecoderRegistry) Rebase(parent *DecoderRegistry) *DecoderRegistry {
	if r == nil {
		return parent
	}
	clone := NewDecoderRegistry(parent)
	r.mu.RLock()
	for mt, d := range r.decoders {
		clone.decoders[mt] = d
	}
	r.mu.RUnlock()
	return clone
}

// encoderKey identifies an encoder registration. Encoders key on both the
// content type and the concrete payload type, so one content type can carry
// different encoders for different payload shapes.
type encoderKey struct {
	contentType string
	objectType  reflect.Type
}

// EncoderRegistry maps (content type, object type) pairs to encoders.
// A registration with a nil object type acts as a wildcard for the content
// type and is consulted after exact-type lookups fail.
type EncoderRegistry struct {
	parent   *EncoderRegistry
	mu       sync.RWMutex
	encoders map[encoderKey]Encoder
}

// NewEncoderRegistry creates a registry that falls back to parent.
func NewEncoderRegistry(parent *EncoderRegistry) *EncoderRegistry {
	return &EncoderRegistry{
		parent:   parent,
		encoders: make(map[encoderKey]Encoder),
	}
}

// Register associates an encoder with a content type and payload type.
// The payload type is taken from the sample value; pass a nil sample to
// register a wildcard encoder for the content type.
func (r *EncoderRegistry) Register(contentType string, sample interface{}, e Encoder) {
	mt, _ := ParseContentType(contentType)
	var t reflect.Type
	if sample != nil {
		t = reflect.TypeOf(sample)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoders[encoderKey{contentType: mt, objectType: t}] = e
}

// Lookup resolves the encoder for a content type and payload value.
// Resolution order per registry: exact payload type, then the content type
// wildcard; then the parent registry.
func (r *EncoderRegistry) Lookup(contentType string, obj interface{}) (Encoder, bool) {
	mt, _ := ParseContentType(contentType)
	var t reflect.Type
	if obj != nil {
		t = reflect.TypeOf(obj)
	}
	for reg := r; reg != nil; reg = reg.parent {
		reg.mu.RLock()
		e, ok := reg.encoders[encoderKey{contentType: mt, objectType: t}]
		if !ok && t != nil {
			e, ok = reg.encoders[encoderKey{contentType: mt}]
		}
		reg.mu.RUnlock()
		if ok {
			return e, true
		}
	}
	return nil, false
}

// Rebase returns a registry with the same local registrations but a new
// fallback parent.
func (r *EncoderRegistry) Rebase(parent *EncoderRegistry) *EncoderRegistry {
	if r == nil {
		return parent
	}
	clone := NewEncoderRegistry(parent)
	r.mu.RLock()
	for k, e := range r.encoders {
		clone.encoders[k] = e
	}
	r.mu.RUnlock()
	return clone
}

// Chain is the decoder resolution chain handed to decoders and matchers.
// It wraps the innermost registry of the local-over-global stack.
type Chain struct {
	reg *DecoderRegistry
}

// NewChain creates a chain over the given (already stacked) registry.
func NewChain(reg *DecoderRegistry) *Chain {
	return &Chain{reg: reg}
}

// Decode resolves a decoder for the full Content-Type value and runs it.
// The returned error distinguishes "no decoder" from a decode failure only
// in its message; both fail the matcher that required decoding.
func (c *Chain) Decode(contentType string, data []byte) (interface{}, error) {
	if c == nil || c.reg == nil {
		return nil, fmt.Errorf("no decoder chain")
	}
	mt, params := ParseContentType(contentType)
	d, ok := c.reg.Lookup(mt)
	if !ok {
		return nil, fmt.Errorf("no decoder registered for %q", mt)
	}
	ctx := &DecodingContext{
		ContentType: mt,
		Params:      params,
		Length:      len(data),
		Chain:       c,
	}
	if params != nil {
		ctx.Charset = params["charset"]
	}
	return d(data, ctx)
}
