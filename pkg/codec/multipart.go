package codec

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
)

// Part is one decoded part of a multipart body.
type Part struct {
	// Name is the form field name from Content-Disposition.
	Name string
	// FileName is the filename from Content-Disposition, if any.
	FileName string
	// ContentType is the part's declared media type (text/plain if absent).
	ContentType string
	// Data holds the raw part bytes.
	Data []byte
	// Value holds the part decoded through the chain, or the raw bytes
	// when no decoder is registered for the part's content type.
	Value interface{}
}

// Parts is a decoded multipart body, in document order.
type Parts []Part

// Field returns the first part with the given name.
func (p Parts) Field(name string) (Part, bool) {
	for _, part := range p {
		if part.Name == name {
			return part, true
		}
	}
	return Part{}, false
}

// DecodeMultipart parses a multipart body into Parts. Each part is
// additionally decoded through the remaining chain when a decoder exists
// for its content type; parts without one keep their raw bytes as Value.
func DecodeMultipart(data []byte, ctx *DecodingContext) (interface{}, error) {
	if ctx == nil || ctx.Params == nil || ctx.Params["boundary"] == "" {
		return nil, fmt.Errorf("multipart body without boundary")
	}
	reader := multipart.NewReader(bytes.NewReader(data), ctx.Params["boundary"])

	var parts Parts
	for {
		p, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read multipart part: %w", err)
		}
		raw, err := io.ReadAll(p)
		if err != nil {
			return nil, fmt.Errorf("read multipart part %q: %w", p.FormName(), err)
		}
		partType := p.Header.Get("Content-Type")
		if partType == "" {
			partType = TypeText
		}
		part := Part{
			Name:        p.FormName(),
			FileName:    p.FileName(),
			ContentType: partType,
			Data:        raw,
			Value:       raw,
		}
		if ctx.Chain != nil {
			if v, err := ctx.Chain.Decode(partType, raw); err == nil {
				part.Value = v
			}
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// EncodeMultipart assembles a boundary-delimited body from parts. Each
// part's payload is encoded through the registry (text/plain for plain
// fields); parts whose payload is already []byte or string are written
// as-is when no encoder matches. Returns the body and the boundary used.
func EncodeMultipart(parts []Part, boundary string, encoders *EncoderRegistry) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if boundary != "" {
		if err := w.SetBoundary(boundary); err != nil {
			return nil, "", fmt.Errorf("multipart boundary: %w", err)
		}
	}

	for _, part := range parts {
		contentType := part.ContentType
		if contentType == "" {
			contentType = TypeText
		}

		data := part.Data
		if data == nil && part.Value != nil {
			var err error
			data, err = encodePartValue(part, contentType, encoders)
			if err != nil {
				return nil, "", err
			}
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", partDisposition(part))
		header.Set("Content-Type", contentType)
		pw, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create multipart part %q: %w", part.Name, err)
		}
		if _, err := pw.Write(data); err != nil {
			return nil, "", fmt.Errorf("write multipart part %q: %w", part.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.Boundary(), nil
}

func encodePartValue(part Part, contentType string, encoders *EncoderRegistry) ([]byte, error) {
	if encoders != nil {
		if enc, ok := encoders.Lookup(contentType, part.Value); ok {
			data, err := enc(part.Value)
			if err != nil {
				return nil, fmt.Errorf("encode multipart part %q: %w", part.Name, err)
			}
			return data, nil
		}
	}
	switch v := part.Value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("no encoder for multipart part %q (%s, %T)", part.Name, contentType, part.Value)
}

func partDisposition(part Part) string {
	if part.FileName != "" {
		return fmt.Sprintf(`form-data; name=%q; filename=%q`, part.Name, part.FileName)
	}
	return fmt.Sprintf(`form-data; name=%q`, part.Name)
}
