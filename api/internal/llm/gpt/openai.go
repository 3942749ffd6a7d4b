package gpt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"plant-doctor/api/internal/llm"
	"plant-doctor/api/internal/util"
)

const (
	DefaultModel   = "gpt-4o-mini"
	DefaultBaseURL = "https://api.openai.com/v1"
)

// Engine talks to the OpenAI Responses API with strict json_schema output.
type Engine struct {
	APIKey  string
	Model   string
	BaseURL string
	httpc   *http.Client
}

func New(key, model string) *Engine {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		// the first byte can take long on image prompts
		ResponseHeaderTimeout: 120 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &Engine{
		APIKey:  strings.TrimSpace(key),
		Model:   model,
		BaseURL: DefaultBaseURL,
		// deadlines come from the caller's context
		httpc: &http.Client{Timeout: 0, Transport: tr},
	}
}

// WithHTTPClient overrides the internal HTTP client (e.g., for custom timeouts or tracing).
func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	if c != nil {
		e.httpc = c
	}
	return e
}

func (e *Engine) WithBaseURL(u string) *Engine {
	if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
		e.BaseURL = u
	}
	return e
}

func (e *Engine) Name() string     { return "gpt" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	if e.APIKey == "" {
		return llm.Response{}, fmt.Errorf("OPENAI_API_KEY is empty")
	}
	body, err := e.buildBody(req)
	if err != nil {
		return llm.Response{}, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return llm.Response{}, fmt.Errorf("openai %s: marshal request: %w", req.Flow, err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return llm.Response{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(hreq)
	if err != nil {
		return llm.Response{}, fmt.Errorf("openai %s: %w", req.Flow, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Response{}, fmt.Errorf("openai %s: read body: %w", req.Flow, err)
	}
	if resp.StatusCode != http.StatusOK {
		return llm.Response{}, fmt.Errorf("openai %s %d: %s", req.Flow, resp.StatusCode, truncateBytes(bytes.TrimSpace(raw), 1024))
	}

	out := util.StripCodeFences(extractResponsesText(raw))
	if out == "" {
		return llm.Response{}, fmt.Errorf("openai %s: %w; body=%s", req.Flow, llm.ErrEmptyOutput, truncateBytes(raw, 1024))
	}
	return llm.Response{Text: out, Engine: e.Name(), Model: e.Model}, nil
}

func (e *Engine) buildBody(req llm.Request) (map[string]any, error) {
	content := make([]any, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.IsBlob() {
			if !isOpenAIImageMIME(p.MIMEType) {
				return nil, fmt.Errorf("openai %s: unsupported image MIME %q", req.Flow, p.MIMEType)
			}
			content = append(content, map[string]any{
				"type":      "input_image",
				"image_url": util.MakeDataURL(p.MIMEType, p.Data),
			})
			continue
		}
		if p.Text != "" {
			content = append(content, map[string]any{"type": "input_text", "text": p.Text})
		}
	}

	input := make([]any, 0, 2)
	if s := strings.TrimSpace(req.System); s != "" {
		input = append(input, map[string]any{
			"role":    "system",
			"content": []any{map[string]any{"type": "input_text", "text": s}},
		})
	}
	input = append(input, map[string]any{"role": "user", "content": content})

	body := map[string]any{
		"model":       e.Model,
		"input":       input,
		"temperature": 0,
	}
	if strings.Contains(e.Model, "gpt-5") {
		body["temperature"] = 1
	}
	if req.Schema != nil {
		util.FixJSONSchemaStrict(req.Schema)
		name := req.Flow
		if name == "" {
			name = "result"
		}
		body["text"] = map[string]any{
			"format": map[string]any{
				"type":   "json_schema",
				"name":   name,
				"strict": true,
				"schema": req.Schema,
			},
		}
	}
	return body, nil
}

// extractResponsesText extracts model text from the Responses API envelope.
// It prefers `output_text`, and otherwise concatenates any text segments
// found in `output[i].content[j].text` where `type` is `output_text` or `text`.
func extractResponsesText(raw []byte) string {
	type content struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	type output struct {
		Content []content `json:"content"`
		Role    string    `json:"role,omitempty"`
	}
	var env struct {
		Object     string   `json:"object"`
		Status     string   `json:"status"`
		Output     []output `json:"output"`
		OutputText string   `json:"output_text"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}

	if s := strings.TrimSpace(env.OutputText); s != "" {
		return s
	}

	var b strings.Builder
	for _, o := range env.Output {
		for _, c := range o.Content {
			if strings.TrimSpace(c.Text) == "" {
				continue
			}
			if c.Type == "output_text" || c.Type == "text" || c.Type == "" {
				if b.Len() > 0 {
					b.WriteByte('\n')
				}
				b.WriteString(c.Text)
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func truncateBytes(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

func isOpenAIImageMIME(m string) bool {
	m = strings.ToLower(strings.TrimSpace(m))
	switch m {
	case "image/jpeg", "image/jpg", "image/png", "image/webp", "image/gif":
		return true
	}
	return false
}
