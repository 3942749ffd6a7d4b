package llm

import (
	"fmt"
	"sort"
	"strings"
)

// Engines selects a model by the name callers pass as llmName.
type Engines struct {
	def    string
	byName map[string]Model
}

var aliases = map[string]string{
	"openai": "gpt",
	"google": "gemini",
}

func NewEngines(def string, models ...Model) (*Engines, error) {
	e := &Engines{byName: make(map[string]Model, len(models))}
	for _, m := range models {
		if m == nil {
			continue
		}
		e.byName[m.Name()] = m
	}
	def = canonical(def)
	if _, ok := e.byName[def]; !ok {
		return nil, fmt.Errorf("default llm %q is not configured (have: %s)", def, strings.Join(e.Names(), ", "))
	}
	e.def = def
	return e, nil
}

func canonical(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[name]; ok {
		return a
	}
	return name
}

// GetEngine returns the named engine; an empty name means the default one.
func (e *Engines) GetEngine(llmName string) (Model, error) {
	name := canonical(llmName)
	if name == "" {
		name = e.def
	}
	if m, ok := e.byName[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("unknown llmName %q; use one of: %s", llmName, strings.Join(e.Names(), ", "))
}

func (e *Engines) Default() Model { return e.byName[e.def] }

func (e *Engines) Names() []string {
	out := make([]string, 0, len(e.byName))
	for n := range e.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Wrap replaces every engine with wrap(engine), e.g. to add logging.
func (e *Engines) Wrap(wrap func(Model) Model) {
	for n, m := range e.byName {
		e.byName[n] = wrap(m)
	}
}
