package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"plant-doctor/api/internal/llm"
	"plant-doctor/api/internal/util"
)

const DefaultModel = "gemini-1.5-flash"

// Engine shares one genai client across calls; the client is safe for concurrent use.
type Engine struct {
	client *genai.Client
	Model  string
}

// NewClient builds the process-wide client. Close it on shutdown.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("GOOGLE_API_KEY is empty")
	}
	return genai.NewClient(ctx, option.WithAPIKey(apiKey))
}

func New(client *genai.Client, model string) *Engine {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &Engine{client: client, Model: model}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	m := e.client.GenerativeModel(e.Model)
	if m == nil {
		return llm.Response{}, fmt.Errorf("gemini: model is nil")
	}
	// JSON only, shaped by the output schema
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   ToSchema(req.Schema),
	}
	if s := strings.TrimSpace(req.System); s != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(s)}}
	}

	resp, err := m.GenerateContent(ctx, toParts(req.Parts)...)
	if err != nil {
		return llm.Response{}, wrapError(req.Flow, err)
	}
	txt := util.StripCodeFences(firstText(resp))
	if txt == "" {
		return llm.Response{}, fmt.Errorf("gemini %s: %w", req.Flow, llm.ErrEmptyOutput)
	}
	return llm.Response{Text: txt, Engine: e.Name(), Model: e.Model}, nil
}

// sdkEmptyResponse is the text of the SDK error for a response without candidates.
const sdkEmptyResponse = "empty response from model"

// wrapError marks answers the SDK rejected after the call succeeded, so they are not
// reported as transport failures.
func wrapError(flow string, err error) error {
	var blocked *genai.BlockedError
	switch {
	case errors.As(err, &blocked):
		return fmt.Errorf("gemini %s: %w: %w", flow, llm.ErrBlocked, err)
	case strings.Contains(err.Error(), sdkEmptyResponse):
		return fmt.Errorf("gemini %s: %w: %w", flow, llm.ErrEmptyOutput, err)
	}
	return fmt.Errorf("gemini %s: %w", flow, err)
}

func toParts(in []llm.Part) []genai.Part {
	out := make([]genai.Part, 0, len(in))
	for _, p := range in {
		if p.IsBlob() {
			out = append(out, genai.Blob{MIMEType: p.MIMEType, Data: p.Data})
			continue
		}
		if p.Text != "" {
			out = append(out, genai.Text(p.Text))
		}
	}
	return out
}

// ToSchema converts a JSON Schema document into the subset genai understands. Keywords Gemini does
// not support ($schema, title, pattern, additionalProperties) are dropped.
func ToSchema(node map[string]any) *genai.Schema {
	if node == nil {
		return nil
	}
	s := &genai.Schema{}
	switch t, _ := node["type"].(string); t {
	case "object":
		s.Type = genai.TypeObject
	case "array":
		s.Type = genai.TypeArray
	case "string":
		s.Type = genai.TypeString
	case "boolean":
		s.Type = genai.TypeBoolean
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	}
	if d, ok := node["description"].(string); ok {
		s.Description = d
	}
	if n, ok := node["nullable"].(bool); ok {
		s.Nullable = n
	}
	if enum, ok := node["enum"].([]any); ok {
		for _, v := range enum {
			if sv, ok := v.(string); ok {
				s.Enum = append(s.Enum, sv)
			}
		}
	}
	if props, ok := node["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for k, v := range props {
			if pm, ok := v.(map[string]any); ok {
				s.Properties[k] = ToSchema(pm)
			}
		}
	}
	if req, ok := node["required"].([]any); ok {
		for _, v := range req {
			if sv, ok := v.(string); ok {
				s.Required = append(s.Required, sv)
			}
		}
	}
	if items, ok := node["items"].(map[string]any); ok {
		s.Items = ToSchema(items)
	}
	return s
}

// firstText joins the text parts of the first candidate that has any.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			return s
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
