package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plant-doctor/api/internal/apperr"
)

func TestLoadEmbedded(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	ds := c.Diseases()
	require.Len(t, ds, 4)
	for _, d := range ds {
		assert.NotEmpty(t, d.Name)
		assert.NotEmpty(t, d.Symptoms, d.Slug)
		assert.NotEmpty(t, d.Causes, d.Slug)
		assert.NotEmpty(t, d.Treatment.Organic, d.Slug)
		assert.NotEmpty(t, d.Treatment.Chemical, d.Slug)
	}
	assert.NotEmpty(t, c.History())
}

func TestDiseaseBySlug(t *testing.T) {
	c := MustLoad()

	d, err := c.DiseaseBySlug("late-blight-tomato")
	require.NoError(t, err)
	assert.Equal(t, "Late Blight", d.Name)
	assert.Equal(t, "1", d.ID)
	assert.Contains(t, d.Causes[2], "15-21°C")

	_, err = c.DiseaseBySlug("no-such-slug")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDiseaseByID(t *testing.T) {
	c := MustLoad()

	d, err := c.DiseaseByID("4")
	require.NoError(t, err)
	assert.Equal(t, "black-spot-rose", d.Slug)

	_, err = c.DiseaseByID("42")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestLookupIsIdempotentAndIsolated(t *testing.T) {
	c := MustLoad()

	first, err := c.DiseaseBySlug("powdery-mildew-squash")
	require.NoError(t, err)
	first.Symptoms[0] = "mutated"
	first.Treatment.Organic = nil

	second, err := c.DiseaseBySlug("powdery-mildew-squash")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", second.Symptoms[0])
	assert.NotEmpty(t, second.Treatment.Organic)

	third, err := c.DiseaseBySlug("powdery-mildew-squash")
	require.NoError(t, err)
	assert.Equal(t, second, third)
}

func TestDiagnosisByID(t *testing.T) {
	c := MustLoad()

	for _, r := range c.History() {
		got, err := c.DiagnosisByID(r.ID)
		require.NoError(t, err)
		assert.Equal(t, r, got)

		d, err := c.DiseaseByID(r.DiseaseID)
		require.NoError(t, err)
		assert.Equal(t, d.Name, r.DiseaseName)
		assert.False(t, r.Date.IsZero())
	}

	_, err := c.DiagnosisByID("missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestParseRejectsDuplicates(t *testing.T) {
	dup := `
- {id: "1", slug: a, name: A}
- {id: "1", slug: b, name: B}
`
	_, err := Parse(strings.NewReader(dup), nil)
	assert.ErrorContains(t, err, "duplicate disease id")

	dupSlug := `
- {id: "1", slug: a, name: A}
- {id: "2", slug: a, name: B}
`
	_, err = Parse(strings.NewReader(dupSlug), nil)
	assert.ErrorContains(t, err, "duplicate disease slug")
}

func TestParseRejectsDanglingHistory(t *testing.T) {
	diseases := `- {id: "1", slug: a, name: A}`
	history := `- {id: h1, diseaseId: "9", diseaseName: X, confidence: 50}`

	_, err := Parse(strings.NewReader(diseases), strings.NewReader(history))
	assert.ErrorContains(t, err, "unknown disease")
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader(`- {id: "1", slug: a, nmae: A}`), nil)
	assert.Error(t, err)
}
