// Package prompts holds the embedded prompt catalogue and drafting field
// templates.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"
	"text/template"

	"condolex-backend/models"

	"gopkg.in/yaml.v3"
)

// Prompt names
const (
	GradeDocument         = "grade_document"
	GenerateAnswer        = "generate_answer"
	IdentifySources       = "identify_sources"
	ExtractClauses        = "extract_clauses"
	AnalyzeClause         = "analyze_clause"
	SuggestDocument       = "suggest_document"
	DetectDocumentRequest = "detect_document_request"
	DocumentFields        = "document_fields"
	WriteDocument         = "write_document"
	ExtractText           = "extract_text"
)

//go:embed prompts.yaml
var promptsYAML []byte

//go:embed document_fields.yaml
var fieldsYAML []byte

type promptDef struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type compiled struct {
	system *template.Template
	user   *template.Template
}

// Catalogue renders named prompts
type Catalogue struct {
	prompts map[string]compiled
	fields  map[models.DocumentType][]models.DocumentField
}

// Rendered is a prompt ready to send to a model
type Rendered struct {
	System string
	User   string
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalogue
	defaultErr  error
)

// Default returns the catalogue built from the embedded files
func Default() (*Catalogue, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(promptsYAML, fieldsYAML)
	})
	return defaultCat, defaultErr
}

// MustDefault is Default for program start-up
func MustDefault() *Catalogue {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a catalogue from YAML prompt and field definitions
func Parse(promptData, fieldData []byte) (*Catalogue, error) {
	var defs map[string]promptDef
	if err := yaml.Unmarshal(promptData, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}

	c := &Catalogue{prompts: make(map[string]compiled, len(defs))}
	for name, def := range defs {
		sys, err := template.New(name + ".system").Option("missingkey=error").Parse(def.System)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", name, err)
		}
		usr, err := template.New(name + ".user").Option("missingkey=error").Parse(def.User)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", name, err)
		}
		c.prompts[name] = compiled{system: sys, user: usr}
	}

	if len(fieldData) > 0 {
		if err := yaml.Unmarshal(fieldData, &c.fields); err != nil {
			return nil, fmt.Errorf("failed to parse document fields: %w", err)
		}
	}

	return c, nil
}

// Render executes the named prompt with data
func (c *Catalogue) Render(name string, data interface{}) (Rendered, error) {
	p, ok := c.prompts[name]
	if !ok {
		return Rendered{}, fmt.Errorf("unknown prompt %q", name)
	}

	var sys, usr bytes.Buffer
	if err := p.system.Execute(&sys, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s system: %w", name, err)
	}
	if err := p.user.Execute(&usr, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s user: %w", name, err)
	}
	return Rendered{System: sys.String(), User: usr.String()}, nil
}

// Fields returns a copy of the predefined fields for a document type
func (c *Catalogue) Fields(t models.DocumentType) ([]models.DocumentField, bool) {
	fields, ok := c.fields[t]
	if !ok {
		return nil, false
	}
	out := make([]models.DocumentField, len(fields))
	for i, f := range fields {
		out[i] = f
		if f.Options != nil {
			out[i].Options = append([]string(nil), f.Options...)
		}
	}
	return out, true
}
