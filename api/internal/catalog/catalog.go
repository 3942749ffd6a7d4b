// Package catalog serves the read-only disease reference data and the demo diagnosis history.
//
// Both files are embedded in the binary and parsed once; nothing in the package mutates them
// afterwards, and every accessor hands out copies.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"plant-doctor/api/internal/apperr"
)

//go:embed data/diseases.yaml
var diseasesYAML []byte

//go:embed data/history.yaml
var historyYAML []byte

// Treatment splits remedies by kind.
type Treatment struct {
	Organic  []string `json:"organic" yaml:"organic"`
	Chemical []string `json:"chemical" yaml:"chemical"`
}

// Disease is one entry of the crop disease knowledge base.
type Disease struct {
	ID          string    `json:"id" yaml:"id"`
	Slug        string    `json:"slug" yaml:"slug"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Symptoms    []string  `json:"symptoms" yaml:"symptoms"`
	Causes      []string  `json:"causes" yaml:"causes"`
	Prevention  []string  `json:"prevention" yaml:"prevention"`
	Treatment   Treatment `json:"treatment" yaml:"treatment"`
	ImageURL    string    `json:"imageUrl" yaml:"imageUrl"`
	ImageHint   string    `json:"imageHint" yaml:"imageHint"`
}

// DiagnosisRecord is a past submission shown on the history page.
type DiagnosisRecord struct {
	ID          string    `json:"id" yaml:"id"`
	DiseaseID   string    `json:"diseaseId" yaml:"diseaseId"`
	DiseaseName string    `json:"diseaseName" yaml:"diseaseName"`
	Confidence  int       `json:"confidence" yaml:"confidence"` // 0..100
	Date        time.Time `json:"date" yaml:"date"`
	ImageURL    string    `json:"imageUrl" yaml:"imageUrl"`
	ImageHint   string    `json:"imageHint" yaml:"imageHint"`
}

func (d Disease) clone() Disease {
	d.Symptoms = cloneStrings(d.Symptoms)
	d.Causes = cloneStrings(d.Causes)
	d.Prevention = cloneStrings(d.Prevention)
	d.Treatment.Organic = cloneStrings(d.Treatment.Organic)
	d.Treatment.Chemical = cloneStrings(d.Treatment.Chemical)
	return d
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

type Catalog struct {
	diseases []Disease
	byID     map[string]int
	bySlug   map[string]int

	history     []DiagnosisRecord
	historyByID map[string]int
}

// Load parses the embedded reference files.
func Load() (*Catalog, error) {
	return Parse(bytes.NewReader(diseasesYAML), bytes.NewReader(historyYAML))
}

// MustLoad is Load for process start, where a broken catalog is a build defect.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a catalog from YAML streams. Ids and slugs must be unique and every
// history record must point at a known disease.
func Parse(diseases, history io.Reader) (*Catalog, error) {
	c := &Catalog{
		byID:        map[string]int{},
		bySlug:      map[string]int{},
		historyByID: map[string]int{},
	}
	if err := decodeYAML(diseases, &c.diseases); err != nil {
		return nil, fmt.Errorf("catalog: diseases: %w", err)
	}
	for i, d := range c.diseases {
		if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.Slug) == "" {
			return nil, fmt.Errorf("catalog: disease #%d: id and slug are required", i)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate disease id %q", d.ID)
		}
		if _, dup := c.bySlug[d.Slug]; dup {
			return nil, fmt.Errorf("catalog: duplicate disease slug %q", d.Slug)
		}
		c.byID[d.ID] = i
		c.bySlug[d.Slug] = i
	}

	if history != nil {
		if err := decodeYAML(history, &c.history); err != nil {
			return nil, fmt.Errorf("catalog: history: %w", err)
		}
	}
	for i, r := range c.history {
		if _, dup := c.historyByID[r.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate history id %q", r.ID)
		}
		if _, ok := c.byID[r.DiseaseID]; !ok {
			return nil, fmt.Errorf("catalog: history %q references unknown disease %q", r.ID, r.DiseaseID)
		}
		c.historyByID[r.ID] = i
	}
	return c, nil
}

func decodeYAML(r io.Reader, v any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Diseases returns the whole catalog in file order.
func (c *Catalog) Diseases() []Disease {
	out := make([]Disease, len(c.diseases))
	for i, d := range c.diseases {
		out[i] = d.clone()
	}
	return out
}

func (c *Catalog) DiseaseByID(id string) (Disease, error) {
	i, ok := c.byID[id]
	if !ok {
		return Disease{}, apperr.NotFound("disease", id)
	}
	return c.diseases[i].clone(), nil
}

func (c *Catalog) DiseaseBySlug(slug string) (Disease, error) {
	i, ok := c.bySlug[slug]
	if !ok {
		return Disease{}, apperr.NotFound("disease", slug)
	}
	return c.diseases[i].clone(), nil
}

// History returns the demo submissions, newest first as stored.
func (c *Catalog) History() []DiagnosisRecord {
	return append([]DiagnosisRecord(nil), c.history...)
}

func (c *Catalog) DiagnosisByID(id string) (DiagnosisRecord, error) {
	i, ok := c.historyByID[id]
	if !ok {
		return DiagnosisRecord{}, apperr.NotFound("diagnosis", id)
	}
	return c.history[i], nil
}
