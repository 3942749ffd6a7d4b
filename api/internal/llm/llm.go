// Package llm is the model capability the plant flows consume: "given instructions, a mix of text
// and image parts and a JSON Schema, return JSON text".
package llm

import (
	"context"
	"errors"
)

// ErrEmptyOutput is wrapped by engines when the provider answered but carried no payload.
var ErrEmptyOutput = errors.New("llm: empty output")

// ErrBlocked is wrapped by engines when the provider answered but withheld the content
// (safety filters, recitation).
var ErrBlocked = errors.New("llm: output blocked")

// Part is either text or an inline binary blob (an image).
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

func Text(s string) Part { return Part{Text: s} }

func Blob(mime string, data []byte) Part { return Part{MIMEType: mime, Data: data} }

func (p Part) IsBlob() bool { return p.Data != nil }

type Request struct {
	// Flow names the call ("diagnose", "summary"); providers use it as the response format name.
	Flow   string
	System string
	Parts  []Part
	// Schema is a JSON Schema for the expected output. Engines own it for the duration of the call
	// and may rewrite it.
	Schema map[string]any
}

// Response holds the raw JSON text produced by the model, code fences stripped.
type Response struct {
	Text   string
	Engine string
	Model  string
}

type Model interface {
	Name() string
	GetModel() string
	Generate(ctx context.Context, req Request) (Response, error)
}
