// Package render turns a certificate field mapping into HTML. Field values are
// inserted verbatim: no HTML escaping is applied by either renderer.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"text/template"
)

// ErrRender marks template loading or execution failures.
var ErrRender = errors.New("render certificate")

// Renderer renders a field mapping into a document.
type Renderer interface {
	Render(fields map[string]any) ([]byte, error)
}

//go:embed templates
var templates embed.FS

//go:embed templates/certificate_simple.html
var simpleTemplate string

// DefaultTemplate is the engine template rendered by NewEngine.
const DefaultTemplate = "certificate.html.tmpl"

// Naive replaces every "{{ name }}" token with the string form of the matching
// field. Tokens without a field are left as they are.
type Naive struct {
	tmpl string
}

// NewNaive returns a Naive renderer over tmpl, or over the embedded
// certificate template when tmpl is empty.
func NewNaive(tmpl string) *Naive {
	if tmpl == "" {
		tmpl = simpleTemplate
	}
	return &Naive{tmpl: tmpl}
}

// Render implements Renderer.
func (n *Naive) Render(fields map[string]any) ([]byte, error) {
	out := n.tmpl
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		out = strings.ReplaceAll(out, "{{ "+k+" }}", fmt.Sprint(fields[k]))
	}
	return []byte(out), nil
}

// Engine executes a text/template loaded from a template directory.
type Engine struct {
	tmpl *template.Template
	name string
}

// NewEngine parses every *.tmpl file in fsys and renders the one called name.
// A nil fsys selects the embedded templates.
func NewEngine(fsys fs.FS, name string) (*Engine, error) {
	if fsys == nil {
		sub, err := fs.Sub(templates, "templates")
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRender, err)
		}
		fsys = sub
	}
	if name == "" {
		name = DefaultTemplate
	}
	set, err := template.ParseFS(fsys, "*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("%w: parse templates: %w", ErrRender, err)
	}
	t := set.Lookup(name)
	if t == nil {
		return nil, fmt.Errorf("%w: template %q not found", ErrRender, name)
	}
	return &Engine{tmpl: t.Option("missingkey=error"), name: name}, nil
}

// Render implements Renderer. A field referenced by the template but absent
// from fields is an error.
func (e *Engine) Render(fields map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, fields); err != nil {
		return nil, fmt.Errorf("%w: execute %s: %w", ErrRender, e.name, err)
	}
	return buf.Bytes(), nil
}
