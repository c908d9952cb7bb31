package core

// templates.go loads saved import templates from YAML files.
//
// A template pairs the column headers of a recurring export with the
// mapping paths and options that import it. A file may hold any number of
// templates:
//
//	templates:
//	  - name: quickbooks-invoices
//	    kind: invoice
//	    headers: [Customer, Invoice No, Date, Item, Amount]
//	    mapping: [customer, number, date, item, unit_cost]
//	    options:
//	      operation: upsert
//	      currency: usd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrTemplateNotFound is returned when no template has the requested name.
var ErrTemplateNotFound = errors.New("template not found")

// TemplateMatchThreshold is the minimum header overlap for MatchTemplates.
const TemplateMatchThreshold = 0.8

// ImportTemplate is a saved mapping for one import kind.
type ImportTemplate struct {
	Name        string        `yaml:"name" json:"name"`
	Kind        Kind          `yaml:"kind" json:"kind"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Headers     []string      `yaml:"headers,omitempty" json:"headers,omitempty"`
	Mapping     []string      `yaml:"mapping" json:"mapping"`
	Options     ImportOptions `yaml:"options,omitempty" json:"options"`
}

// TemplateMatch is a template with its header match score.
type TemplateMatch struct {
	Template   ImportTemplate `json:"template"`
	MatchScore float64        `json:"matchScore"`
}

type templateFile struct {
	Templates []ImportTemplate `yaml:"templates"`
}

// TemplateSet holds templates keyed by kind and name.
type TemplateSet struct {
	byKind map[Kind]map[string]ImportTemplate
}

// NewTemplateSet returns an empty set.
func NewTemplateSet() *TemplateSet {
	return &TemplateSet{byKind: make(map[Kind]map[string]ImportTemplate)}
}

// ParseTemplates decodes one YAML template file.
func ParseTemplates(data []byte) ([]ImportTemplate, error) {
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	for i := range f.Templates {
		t := &f.Templates[i]
		t.Name = strings.TrimSpace(t.Name)
		if err := t.validate(); err != nil {
			return nil, fmt.Errorf("template %d: %w", i+1, err)
		}
	}
	return f.Templates, nil
}

func (t ImportTemplate) validate() error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if _, ok := Get(t.Kind); !ok {
		return fmt.Errorf("template %q: %q: %w", t.Name, t.Kind, ErrUnknownKind)
	}
	if err := ValidateMapping(t.Mapping); err != nil {
		return fmt.Errorf("template %q: %w", t.Name, err)
	}
	if len(t.Headers) > 0 && len(t.Headers) != len(t.Mapping) {
		return fmt.Errorf("template %q: %d headers for %d mapping paths", t.Name, len(t.Headers), len(t.Mapping))
	}
	if _, err := ParseOperation(string(t.Options.Operation)); err != nil {
		return fmt.Errorf("template %q: %w", t.Name, err)
	}
	return nil
}

// LoadTemplates reads every *.yaml and *.yml file in dir.
// A missing directory yields an empty set.
func LoadTemplates(dir string) (*TemplateSet, error) {
	set := NewTemplateSet()
	if dir == "" {
		return set, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return set, nil
		}
		return nil, fmt.Errorf("read template dir %s: %w", dir, err)
	}

	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read template file %s: %w", path, err)
		}
		templates, err := ParseTemplates(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, t := range templates {
			if err := set.Add(t); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
	}
	return set, nil
}

// Add registers a template. Names are unique per kind.
func (s *TemplateSet) Add(t ImportTemplate) error {
	m := s.byKind[t.Kind]
	if m == nil {
		m = make(map[string]ImportTemplate)
		s.byKind[t.Kind] = m
	}
	if _, exists := m[t.Name]; exists {
		return fmt.Errorf("template '%s' already exists for %s", t.Name, t.Kind)
	}
	m[t.Name] = t
	return nil
}

// Get returns the named template of kind.
func (s *TemplateSet) Get(kind Kind, name string) (ImportTemplate, error) {
	t, ok := s.byKind[kind][name]
	if !ok {
		return ImportTemplate{}, fmt.Errorf("%s template %q: %w", kind, name, ErrTemplateNotFound)
	}
	return t, nil
}

// List returns the templates of kind sorted by name. An empty kind lists all.
func (s *TemplateSet) List(kind Kind) []ImportTemplate {
	var out []ImportTemplate
	for k, m := range s.byKind {
		if kind != "" && k != kind {
			continue
		}
		for _, t := range m {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Match finds templates of kind whose headers match the given column headers.
// Results are sorted by score, best first.
func (s *TemplateSet) Match(kind Kind, headers []string) []TemplateMatch {
	var matches []TemplateMatch
	for _, t := range s.List(kind) {
		score := matchTemplateHeaders(headers, t.Headers)
		if score >= TemplateMatchThreshold {
			matches = append(matches, TemplateMatch{
				Template:   t,
				MatchScore: score,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
	return matches
}

// matchTemplateHeaders calculates how well headers cover the template's headers.
func matchTemplateHeaders(headers, templateHeaders []string) float64 {
	if len(templateHeaders) == 0 {
		return 0
	}

	set := make(map[string]bool)
	for _, h := range headers {
		set[strings.ToLower(strings.TrimSpace(h))] = true
	}

	matched := 0
	for _, h := range templateHeaders {
		if set[strings.ToLower(strings.TrimSpace(h))] {
			matched++
		}
	}

	return float64(matched) / float64(len(templateHeaders))
}

// MappingFor aligns the template's mapping to headers in a different column order.
// Headers the template does not know map to "" and are skipped on import.
func (t ImportTemplate) MappingFor(headers []string) []string {
	if len(t.Headers) == 0 {
		return t.Mapping
	}

	byHeader := make(map[string]string, len(t.Headers))
	for i, h := range t.Headers {
		byHeader[strings.ToLower(strings.TrimSpace(h))] = t.Mapping[i]
	}

	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = byHeader[strings.ToLower(strings.TrimSpace(h))]
	}
	return out
}
