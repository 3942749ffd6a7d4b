package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plant-doctor/api/internal/llm"
	"plant-doctor/api/internal/plant/schema"
)

func TestToSchemaDiagnoseOutput(t *testing.T) {
	m, err := schema.Load(schema.DiagnoseOutput)
	require.NoError(t, err)

	s := ToSchema(m)
	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.ElementsMatch(t, []string{"identification", "diagnosis"}, s.Required)

	id := s.Properties["identification"]
	require.NotNil(t, id)
	assert.Equal(t, genai.TypeObject, id.Type)
	assert.Equal(t, genai.TypeBoolean, id.Properties["isPlant"].Type)
	assert.Equal(t, genai.TypeString, id.Properties["commonName"].Type)
	assert.Contains(t, id.Properties["commonName"].Description, `"Unknown"`)
	assert.Contains(t, id.Properties["latinName"].Description, `"N/A"`)
}

func TestToSchemaArraysAndEnums(t *testing.T) {
	s := ToSchema(map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "string",
			"enum": []any{"a", "b"},
		},
	})
	assert.Equal(t, genai.TypeArray, s.Type)
	assert.Equal(t, genai.TypeString, s.Items.Type)
	assert.Equal(t, []string{"a", "b"}, s.Items.Enum)
	assert.Nil(t, ToSchema(nil))
}

func TestFirstText(t *testing.T) {
	assert.Empty(t, firstText(nil))
	assert.Empty(t, firstText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"summary":`), genai.Text(`"x"}`)}}},
		},
	}
	assert.Equal(t, `{"summary":"x"}`, firstText(resp))
}

func TestToParts(t *testing.T) {
	parts := toParts([]llm.Part{
		llm.Text("Description: wilted"),
		llm.Blob("image/jpeg", []byte{0xFF, 0xD8}),
		llm.Text(""),
	})
	require.Len(t, parts, 2)
	assert.Equal(t, genai.Text("Description: wilted"), parts[0])
	assert.Equal(t, genai.Blob{MIMEType: "image/jpeg", Data: []byte{0xFF, 0xD8}}, parts[1])
}

func TestNewDefaultsModel(t *testing.T) {
	e := New(nil, " ")
	assert.Equal(t, DefaultModel, e.GetModel())
	assert.Equal(t, "gemini", e.Name())
}

func TestWrapErrorBlocked(t *testing.T) {
	blocked := &genai.BlockedError{PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety}}
	err := wrapError("diagnose", blocked)

	assert.ErrorIs(t, err, llm.ErrBlocked)
	assert.NotErrorIs(t, err, llm.ErrEmptyOutput)
	var be *genai.BlockedError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, genai.BlockReasonSafety, be.PromptFeedback.BlockReason)
	assert.Contains(t, err.Error(), "gemini diagnose")
}

func TestWrapErrorEmptyResponse(t *testing.T) {
	err := wrapError("summary", errors.New("empty response from model"))
	assert.ErrorIs(t, err, llm.ErrEmptyOutput)
	assert.NotErrorIs(t, err, llm.ErrBlocked)
}

func TestWrapErrorTransport(t *testing.T) {
	cause := errors.New("googleapi: Error 503: The model is overloaded")
	err := wrapError("diagnose", cause)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, llm.ErrBlocked)
	assert.NotErrorIs(t, err, llm.ErrEmptyOutput)

	err = wrapError("diagnose", context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, llm.ErrEmptyOutput)
}
