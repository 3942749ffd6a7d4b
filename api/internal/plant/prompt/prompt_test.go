package prompt

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plant-doctor/api/internal/catalog"
	"plant-doctor/api/internal/llm"
	"plant-doctor/api/internal/plant/types"
)

var jpeg = []byte{0xFF, 0xD8, 0xFF, 0xE0}

func newBinder(t *testing.T, dir string) *Binder {
	t.Helper()
	b, err := New(catalog.MustLoad(), dir)
	require.NoError(t, err)
	return b
}

func TestDiagnoseInterleavesPhoto(t *testing.T) {
	b := newBinder(t, "")
	req, err := b.Diagnose(types.DiagnosisRequest{Description: "Dark spots on the leaves."}, jpeg, "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, FlowDiagnose, req.Flow)
	assert.True(t, strings.HasPrefix(req.System, "You are an expert botanist"))
	assert.Contains(t, req.System, "1. Identify the plant.")
	assert.Contains(t, req.System, "3. Provide a concise diagnosis")

	require.Len(t, req.Parts, 3)
	assert.True(t, strings.HasSuffix(req.Parts[0].Text, "Photo: "))
	assert.Contains(t, req.Parts[0].Text, "Description: Dark spots on the leaves.")
	assert.Equal(t, llm.Blob("image/jpeg", jpeg), req.Parts[1])
	assert.Contains(t, req.Parts[2].Text, "Here is a list of known diseases you should use for your diagnosis:")
	assert.Nil(t, req.Schema)
}

func TestDiagnoseInlinesWholeCatalog(t *testing.T) {
	b := newBinder(t, "")
	req, err := b.Diagnose(types.DiagnosisRequest{}, jpeg, "image/jpeg")
	require.NoError(t, err)

	tail := req.Parts[len(req.Parts)-1].Text
	assert.True(t, strings.HasSuffix(tail, b.CatalogJSON()))

	var diseases []catalog.Disease
	require.NoError(t, json.Unmarshal([]byte(b.CatalogJSON()), &diseases))
	assert.Equal(t, catalog.MustLoad().Diseases(), diseases)
	assert.Contains(t, b.CatalogJSON(), `"slug":"late-blight-tomato"`)
	assert.NotContains(t, b.CatalogJSON(), "\n")
}

func TestSummaryRendersFields(t *testing.T) {
	b := newBinder(t, "")
	req, err := b.Summary(types.DiseaseSummaryRequest{
		DiseaseName:        "Late Blight",
		PotentialCauses:    "Phytophthora infestans, cool wet weather",
		RecommendedActions: "Remove infected plants; Copper fungicide",
	})
	require.NoError(t, err)

	assert.Equal(t, FlowSummary, req.Flow)
	assert.Contains(t, req.System, "You are an expert in plant diseases.")
	require.Len(t, req.Parts, 1)
	assert.Equal(t, "Disease Name: Late Blight\n"+
		"Potential Causes: Phytophthora infestans, cool wet weather\n"+
		"Recommended Actions: Remove infected plants; Copper fungicide\n\n"+
		"Summary:", req.Parts[0].Text)
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "diagnose.user.tmpl"), []byte("Notes: {{.Description}}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.system.tmpl"), []byte("  \n"), 0o644))

	b := newBinder(t, dir)
	req, err := b.Diagnose(types.DiagnosisRequest{Description: "wilted"}, jpeg, "image/jpeg")
	require.NoError(t, err)
	require.Len(t, req.Parts, 2)
	assert.Equal(t, "Notes: wilted", req.Parts[0].Text)
	assert.True(t, req.Parts[1].IsBlob())

	// blank override falls back to the built-in text
	sum, err := b.Summary(types.DiseaseSummaryRequest{DiseaseName: "x"})
	require.NoError(t, err)
	assert.Contains(t, sum.System, "expert in plant diseases")
}

func TestOverrideParseError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.user.tmpl"), []byte("{{.DiseaseName"), 0o644))

	_, err := New(catalog.MustLoad(), dir)
	assert.ErrorContains(t, err, "parse prompt summary.user")
}

func TestOverrideAtRuntime(t *testing.T) {
	b := newBinder(t, "")

	require.NoError(t, b.Override("summary.user", "Name={{.DiseaseName}}"))
	src, ok := b.Source("summary.user")
	require.True(t, ok)
	assert.Equal(t, "Name={{.DiseaseName}}", src)

	req, err := b.Summary(types.DiseaseSummaryRequest{DiseaseName: "Leaf Rust"})
	require.NoError(t, err)
	assert.Equal(t, "Name=Leaf Rust", req.Parts[0].Text)

	assert.ErrorIs(t, b.Override("hint.user", "x"), ErrUnknownTemplate)
	assert.Error(t, b.Override("summary.user", "{{.Nope"))
	assert.Error(t, b.Override("summary.user", "   "))

	// a template that references an unknown field fails at render time
	require.NoError(t, b.Override("summary.user", "{{.Unknown}}"))
	_, err = b.Summary(types.DiseaseSummaryRequest{})
	assert.Error(t, err)

	assert.Equal(t, []string{"diagnose.system", "diagnose.user", "summary.system", "summary.user"}, Names())
}

func TestCheckDoesNotInstall(t *testing.T) {
	b := newBinder(t, "")
	before, _ := b.Source("summary.user")

	require.NoError(t, b.Check("summary.user", "Name={{.DiseaseName}}"))
	after, _ := b.Source("summary.user")
	assert.Equal(t, before, after)

	assert.ErrorIs(t, b.Check("hint.user", "x"), ErrUnknownTemplate)
	assert.Error(t, b.Check("summary.user", "{{.Nope"))
	assert.Error(t, b.Check("summary.user", ""))
}
