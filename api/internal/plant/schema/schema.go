// Package schema declares the input and output contracts of the plant flows.
//
// Each contract is a draft-07 JSON Schema shipped as <name>.schema.json. The same documents are
// handed to the model provider as the requested response format and used here to check what
// callers send and what the model returns.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const (
	DiagnoseInput  = "diagnose.input"
	DiagnoseOutput = "diagnose.output"
	SummaryInput   = "summary.input"
	SummaryOutput  = "summary.output"
)

//go:embed *.schema.json
var files embed.FS

var (
	compileOnce sync.Once
	compiled    map[string]*gojsonschema.Schema
	compileErr  error
)

// ValidationError lists every problem found in a document.
type ValidationError struct {
	Schema   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Schema, strings.Join(e.Problems, "; "))
}

// Names returns the known schema names in lexical order.
func Names() []string {
	entries, _ := files.ReadDir(".")
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".schema.json"))
	}
	sort.Strings(out)
	return out
}

// Raw returns the schema document bytes.
func Raw(name string) ([]byte, error) {
	b, err := files.ReadFile(name + ".schema.json")
	if err != nil {
		return nil, fmt.Errorf("unknown schema name: %s", name)
	}
	return b, nil
}

// Load returns a freshly decoded copy of the schema; callers may rewrite it.
func Load(name string) (map[string]any, error) {
	b, err := Raw(name)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("bad %s schema (embedded): %w", name, err)
	}
	return m, nil
}

func compile() {
	compiled = map[string]*gojsonschema.Schema{}
	for _, name := range Names() {
		b, err := Raw(name)
		if err != nil {
			compileErr = err
			return
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
		if err != nil {
			compileErr = fmt.Errorf("compile %s schema: %w", name, err)
			return
		}
		compiled[name] = s
	}
}

func get(name string) (*gojsonschema.Schema, error) {
	compileOnce.Do(compile)
	if compileErr != nil {
		return nil, compileErr
	}
	s, ok := compiled[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema name: %s", name)
	}
	return s, nil
}

// ValidateJSON checks a raw JSON document. A document that is not JSON at all is reported
// as a *ValidationError too.
func ValidateJSON(name string, raw []byte) error {
	return validate(name, gojsonschema.NewBytesLoader(raw))
}

// ValidateGo checks a Go value through its JSON encoding.
func ValidateGo(name string, v any) error {
	return validate(name, gojsonschema.NewGoLoader(v))
}

func validate(name string, doc gojsonschema.JSONLoader) error {
	s, err := get(name)
	if err != nil {
		return err
	}
	res, err := s.Validate(doc)
	if err != nil {
		return &ValidationError{Schema: name, Problems: []string{err.Error()}}
	}
	if res.Valid() {
		return nil
	}
	problems := make([]string, 0, len(res.Errors()))
	for _, d := range res.Errors() {
		problems = append(problems, d.String())
	}
	return &ValidationError{Schema: name, Problems: problems}
}
