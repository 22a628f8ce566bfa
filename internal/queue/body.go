package queue

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
)

// BodyKind discriminates the serialized shape of a queued request body.
// The discriminant is produced once at serialization time and consumed by
// an exhaustive switch at replay time, so a persisted body can always be
// reconstructed faithfully.
type BodyKind string

const (
	BodyNone      BodyKind = "none"
	BodyJSON      BodyKind = "json"
	BodyText      BodyKind = "text"
	BodyForm      BodyKind = "form"
	BodyMultipart BodyKind = "multipart"
)

// FormField is one text field of a multipart form.
type FormField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Body is the tagged union persisted inside a Mutation. Binary payloads are
// not supported: file parts of a multipart form are dropped (counted in
// DroppedFiles), and an entirely binary body degrades to BodyNone.
type Body struct {
	Kind         BodyKind    `json:"kind"`
	Text         string      `json:"text,omitempty"`
	ContentType  string      `json:"content_type,omitempty"`
	Fields       []FormField `json:"fields,omitempty"`
	DroppedFiles int         `json:"dropped_files,omitempty"`
}

// EncodeBody classifies and serializes a request body.
func EncodeBody(contentType string, data []byte) (Body, error) {
	if len(data) == 0 {
		return Body{Kind: BodyNone}, nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = ""
	}

	switch {
	case mediaType == "application/json":
		return Body{Kind: BodyJSON, Text: string(data), ContentType: contentType}, nil

	case mediaType == "application/x-www-form-urlencoded":
		return Body{Kind: BodyForm, Text: string(data), ContentType: contentType}, nil

	case mediaType == "multipart/form-data":
		boundary := params["boundary"]
		if boundary == "" {
			return Body{}, fmt.Errorf("multipart body without boundary")
		}
		return encodeMultipart(data, boundary)

	case strings.HasPrefix(mediaType, "text/") || mediaType == "":
		return Body{Kind: BodyText, Text: string(data), ContentType: contentType}, nil

	default:
		// Binary content cannot be persisted; the mutation is queued with
		// an empty body rather than lost entirely.
		return Body{Kind: BodyNone, ContentType: contentType, DroppedFiles: 1}, nil
	}
}

func encodeMultipart(data []byte, boundary string) (Body, error) {
	mr := multipart.NewReader(bytes.NewReader(data), boundary)

	b := Body{Kind: BodyMultipart}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Body{}, fmt.Errorf("failed to parse multipart body: %w", err)
		}

		if part.FileName() != "" {
			// File parts are binary; unsupported, dropped.
			b.DroppedFiles++
			_ = part.Close()
			continue
		}

		value, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return Body{}, fmt.Errorf("failed to read multipart field: %w", err)
		}
		b.Fields = append(b.Fields, FormField{Name: part.FormName(), Value: string(value)})
	}
	return b, nil
}

// DecodeBody reconstructs a request body and its Content-Type from the
// tagged serialization. The switch is exhaustive over BodyKind.
func DecodeBody(b Body) (io.Reader, string, error) {
	switch b.Kind {
	case BodyNone:
		return nil, "", nil

	case BodyJSON:
		ct := b.ContentType
		if ct == "" {
			ct = "application/json"
		}
		return strings.NewReader(b.Text), ct, nil

	case BodyText:
		return strings.NewReader(b.Text), b.ContentType, nil

	case BodyForm:
		ct := b.ContentType
		if ct == "" {
			ct = "application/x-www-form-urlencoded"
		}
		return strings.NewReader(b.Text), ct, nil

	case BodyMultipart:
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for _, f := range b.Fields {
			if err := w.WriteField(f.Name, f.Value); err != nil {
				return nil, "", fmt.Errorf("failed to rebuild multipart body: %w", err)
			}
		}
		if err := w.Close(); err != nil {
			return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
		}
		return &buf, w.FormDataContentType(), nil

	default:
		return nil, "", fmt.Errorf("unknown body kind %q", b.Kind)
	}
}
