package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"plant-doctor/api/internal/llm"
	"plant-doctor/api/internal/llm/llmtest"
	"plant-doctor/api/internal/logger"
)

func named(name string) *llmtest.Stub {
	s := llmtest.New(`{}`)
	s.EngineName = name
	return s
}

func TestEnginesGetEngine(t *testing.T) {
	gem, gpt := named("gemini"), named("gpt")
	e, err := llm.NewEngines("gemini", gem, gpt, nil)
	require.NoError(t, err)

	m, err := e.GetEngine("")
	require.NoError(t, err)
	assert.Same(t, gem, m)

	m, err = e.GetEngine("OpenAI")
	require.NoError(t, err)
	assert.Same(t, gpt, m)

	_, err = e.GetEngine("deepseek")
	assert.ErrorContains(t, err, "gemini, gpt")

	assert.Equal(t, []string{"gemini", "gpt"}, e.Names())
	assert.Same(t, gem, e.Default())
}

func TestNewEnginesRejectsMissingDefault(t *testing.T) {
	_, err := llm.NewEngines("gpt", named("gemini"))
	assert.Error(t, err)
}

func TestWithLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	stub := named("gemini")
	stub.Text = `{"summary":"ok"}`

	e, err := llm.NewEngines("gemini", stub)
	require.NoError(t, err)
	e.Wrap(func(m llm.Model) llm.Model { return llm.WithLogging(m, zap.New(core)) })

	m := e.Default()
	assert.Equal(t, "gemini", m.Name())
	assert.Equal(t, "stub-1", m.GetModel())

	resp, err := m.Generate(context.Background(), llm.Request{Flow: "summary", Parts: []llm.Part{llm.Text("x")}})
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, resp.Text)

	done := logs.FilterMessage("generate done").All()
	require.Len(t, done, 1)
	assert.Equal(t, "summary", done[0].ContextMap()["flow"])
	assert.EqualValues(t, 16, done[0].ContextMap()["output_bytes"])

	stub.Err = errors.New("boom")
	_, err = m.Generate(context.Background(), llm.Request{Flow: "summary"})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, logs.FilterMessage("generate failed").Len())
}

func TestParts(t *testing.T) {
	assert.False(t, llm.Text("hi").IsBlob())
	assert.True(t, llm.Blob("image/png", []byte{1}).IsBlob())
}

func TestWithLoggingTagsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := llm.WithLogging(llmtest.New(`{"summary":"ok"}`), zap.New(core))

	ctx := logger.WithRequestID(context.Background(), "req-7")
	_, err := m.Generate(ctx, llm.Request{Flow: "summary"})
	require.NoError(t, err)

	done := logs.FilterMessage("generate done").All()
	require.Len(t, done, 1)
	assert.Equal(t, "req-7", done[0].ContextMap()["request_id"])
}
