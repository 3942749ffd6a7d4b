package gpt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plant-doctor/api/internal/llm"
	"plant-doctor/api/internal/plant/schema"
)

func newServer(t *testing.T, status int, reply string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		if seen != nil {
			assert.NoError(t, json.Unmarshal(b, seen))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func diagnoseRequest(t *testing.T) llm.Request {
	sch, err := schema.Load(schema.DiagnoseOutput)
	require.NoError(t, err)
	return llm.Request{
		Flow:   "diagnose",
		System: "You are an expert botanist.",
		Parts: []llm.Part{
			llm.Text("Description: spots"),
			llm.Blob("image/png", []byte{0x89, 'P', 'N', 'G'}),
		},
		Schema: sch,
	}
}

func TestGenerateBuildsStrictRequest(t *testing.T) {
	var seen map[string]any
	srv := newServer(t, http.StatusOK, `{"output_text":"{\"summary\":\"ok\"}"}`, &seen)
	e := New("sk-test", "").WithHTTPClient(srv.Client()).WithBaseURL(srv.URL + "/")

	resp, err := e.Generate(context.Background(), diagnoseRequest(t))
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, resp.Text)
	assert.Equal(t, "gpt", resp.Engine)
	assert.Equal(t, DefaultModel, resp.Model)

	assert.Equal(t, DefaultModel, seen["model"])
	input := seen["input"].([]any)
	require.Len(t, input, 2)
	assert.Equal(t, "system", input[0].(map[string]any)["role"])

	user := input[1].(map[string]any)["content"].([]any)
	require.Len(t, user, 2)
	assert.Equal(t, "input_text", user[0].(map[string]any)["type"])
	assert.Equal(t, "input_image", user[1].(map[string]any)["type"])
	assert.Equal(t, "data:image/png;base64,iVBORw==", user[1].(map[string]any)["image_url"])

	format := seen["text"].(map[string]any)["format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, "diagnose", format["name"])
	assert.Equal(t, true, format["strict"])
	sch := format["schema"].(map[string]any)
	assert.NotContains(t, sch, "$schema")
	assert.Equal(t, false, sch["additionalProperties"])
}

func TestGenerateOutputArray(t *testing.T) {
	reply := `{"output":[{"role":"assistant","content":[{"type":"output_text","text":"` +
		"```json\\n{\\\"summary\\\":\\\"x\\\"}\\n```" + `"}]}]}`
	srv := newServer(t, http.StatusOK, reply, nil)
	e := New("sk-test", "gpt-4o").WithHTTPClient(srv.Client()).WithBaseURL(srv.URL)

	resp, err := e.Generate(context.Background(), llm.Request{Flow: "summary", Parts: []llm.Part{llm.Text("x")}})
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"x"}`, resp.Text)
}

func TestGenerateEmptyOutput(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"output":[]}`, nil)
	e := New("sk-test", "").WithBaseURL(srv.URL)

	_, err := e.Generate(context.Background(), llm.Request{Flow: "summary", Parts: []llm.Part{llm.Text("x")}})
	assert.True(t, errors.Is(err, llm.ErrEmptyOutput))
}

func TestGenerateHTTPError(t *testing.T) {
	srv := newServer(t, http.StatusTooManyRequests, `{"error":"rate limited"}`, nil)
	e := New("sk-test", "").WithBaseURL(srv.URL)

	_, err := e.Generate(context.Background(), llm.Request{Flow: "summary", Parts: []llm.Part{llm.Text("x")}})
	require.Error(t, err)
	assert.False(t, errors.Is(err, llm.ErrEmptyOutput))
	assert.Contains(t, err.Error(), "429")
}

func TestGenerateRejectsUnsupportedImage(t *testing.T) {
	e := New("sk-test", "").WithBaseURL("http://127.0.0.1:1")
	_, err := e.Generate(context.Background(), llm.Request{
		Flow:  "diagnose",
		Parts: []llm.Part{llm.Blob("image/heic", []byte{1})},
	})
	assert.ErrorContains(t, err, "unsupported image MIME")
}

func TestGenerateWithoutKey(t *testing.T) {
	_, err := New("", "").Generate(context.Background(), llm.Request{})
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}

type countingTransport struct {
	next  http.RoundTripper
	calls int
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls++
	return c.next.RoundTrip(r)
}

func TestWithHTTPClient(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"output_text":"{\"summary\":\"ok\"}"}`, nil)
	tr := &countingTransport{next: srv.Client().Transport}
	e := New("sk-test", "").WithHTTPClient(&http.Client{Transport: tr}).WithBaseURL(srv.URL)

	_, err := e.Generate(context.Background(), llm.Request{Flow: "summary", Parts: []llm.Part{llm.Text("x")}})
	require.NoError(t, err)
	assert.Equal(t, 1, tr.calls)

	assert.Same(t, e, e.WithHTTPClient(nil))
}
