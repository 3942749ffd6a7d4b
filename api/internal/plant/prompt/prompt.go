// Package prompt renders the instruction text sent with each plant flow.
//
// Templates are text/template files named <flow>.<system|user>.tmpl. The built-in set is embedded;
// a directory given to New may override any of them. In the diagnose user template {{photo}} marks
// where the image part goes.
package prompt

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"plant-doctor/api/internal/catalog"
	"plant-doctor/api/internal/llm"
	"plant-doctor/api/internal/plant/types"
)

const (
	FlowDiagnose = "diagnose"
	FlowSummary  = "summary"
)

//go:embed templates/*.tmpl
var builtin embed.FS

const photoMarker = "\x00photo\x00"

var names = []string{
	FlowDiagnose + ".system",
	FlowDiagnose + ".user",
	FlowSummary + ".system",
	FlowSummary + ".user",
}

// ErrUnknownTemplate is returned by Override for a name outside the known set.
var ErrUnknownTemplate = errors.New("unknown prompt template")

type Binder struct {
	mu       sync.RWMutex
	tmpls    map[string]*template.Template
	srcs     map[string]string
	diseases string
}

type diagnoseData struct {
	Description string
	Diseases    string
}

// New parses the templates and serializes the catalog once. overrideDir may be empty.
func New(cat *catalog.Catalog, overrideDir string) (*Binder, error) {
	diseases, err := marshalCatalog(cat.Diseases())
	if err != nil {
		return nil, err
	}
	b := &Binder{
		tmpls:    make(map[string]*template.Template, len(names)),
		srcs:     make(map[string]string, len(names)),
		diseases: diseases,
	}
	for _, name := range names {
		src, err := loadTemplate(name, overrideDir)
		if err != nil {
			return nil, err
		}
		t, err := parseTemplate(name, src)
		if err != nil {
			return nil, err
		}
		b.tmpls[name] = t
		b.srcs[name] = src
	}
	return b, nil
}

func parseTemplate(name, src string) (*template.Template, error) {
	t, err := template.New(name).
		Funcs(template.FuncMap{"photo": func() string { return photoMarker }}).
		Option("missingkey=error").
		Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", name, err)
	}
	return t, nil
}

// Names lists the template names in a stable order.
func Names() []string { return append([]string(nil), names...) }

// Source returns the template text currently in use.
func (b *Binder) Source(name string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.srcs[name]
	return s, ok
}

// Check reports whether src could replace the named template, without installing it.
func (b *Binder) Check(name, src string) error {
	_, err := b.compile(name, src)
	return err
}

func (b *Binder) compile(name, src string) (*template.Template, error) {
	if _, ok := b.Source(name); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("prompt %s: empty text", name)
	}
	return parseTemplate(name, src)
}

// Override swaps one template at runtime. The text must parse; calls already rendering keep
// the old version.
func (b *Binder) Override(name, src string) error {
	t, err := b.compile(name, src)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.tmpls[name] = t
	b.srcs[name] = src
	b.mu.Unlock()
	return nil
}

func loadTemplate(name, overrideDir string) (string, error) {
	file := name + ".tmpl"
	if overrideDir != "" {
		p := filepath.Join(overrideDir, file)
		b, err := os.ReadFile(p)
		if err == nil && len(bytes.TrimSpace(b)) > 0 {
			return string(b), nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read prompt %s: %w", p, err)
		}
	}
	b, err := builtin.ReadFile("templates/" + file)
	if err != nil {
		return "", fmt.Errorf("prompt %q not found: %w", name, err)
	}
	return string(b), nil
}

// marshalCatalog mirrors JSON.stringify: compact, no HTML escaping.
func marshalCatalog(d []catalog.Disease) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return "", fmt.Errorf("marshal catalog: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func (b *Binder) render(name string, data any) (string, error) {
	b.mu.RLock()
	t := b.tmpls[name]
	b.mu.RUnlock()

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Diagnose binds the diagnosis prompt. photo is the decoded image from the request's data URI.
func (b *Binder) Diagnose(in types.DiagnosisRequest, photo []byte, mime string) (llm.Request, error) {
	system, err := b.render(FlowDiagnose+".system", nil)
	if err != nil {
		return llm.Request{}, err
	}
	user, err := b.render(FlowDiagnose+".user", diagnoseData{Description: in.Description, Diseases: b.diseases})
	if err != nil {
		return llm.Request{}, err
	}

	img := llm.Blob(mime, photo)
	chunks := strings.Split(user, photoMarker)
	parts := make([]llm.Part, 0, 2*len(chunks))
	for i, c := range chunks {
		if i > 0 {
			parts = append(parts, img)
		}
		if c != "" {
			parts = append(parts, llm.Text(c))
		}
	}
	// an override without {{photo}} still gets the image
	if len(chunks) == 1 {
		parts = append(parts, img)
	}
	return llm.Request{Flow: FlowDiagnose, System: system, Parts: parts}, nil
}

func (b *Binder) Summary(in types.DiseaseSummaryRequest) (llm.Request, error) {
	system, err := b.render(FlowSummary+".system", nil)
	if err != nil {
		return llm.Request{}, err
	}
	user, err := b.render(FlowSummary+".user", in)
	if err != nil {
		return llm.Request{}, err
	}
	return llm.Request{Flow: FlowSummary, System: system, Parts: []llm.Part{llm.Text(user)}}, nil
}

// CatalogJSON is the catalog exactly as it is inlined into diagnosis prompts.
func (b *Binder) CatalogJSON() string { return b.diseases }
