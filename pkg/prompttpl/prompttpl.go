// Package prompttpl renders the small set of named-variable prompt
// templates used by pkg/agents. It narrows nexus's general-purpose
// internal/templates.VariableEngine (text/template with
// missingkey=error) to this domain: render refuses rather than silently
// emitting "<no value>" when a variable the template references wasn't
// supplied.
package prompttpl

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Template is a parsed, named prompt body ready for repeated rendering.
type Template struct {
	name string
	tmpl *template.Template
	vars []string
}

// Parse compiles body (using {{.Var}} placeholders) under name.
func Parse(name, body string) (*Template, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("prompttpl: parse %q: %w", name, err)
	}
	return &Template{name: name, tmpl: t, vars: extractVariables(body)}, nil
}

// MustParse is Parse but panics on error, for compiled-in templates.
func MustParse(name, body string) *Template {
	t, err := Parse(name, body)
	if err != nil {
		panic(err)
	}
	return t
}

// Variables returns the distinct {{.Var}} names body references.
func (t *Template) Variables() []string { return t.vars }

// Render substitutes vars into the template, refusing if any referenced
// variable is absent from vars (text/template's missingkey=error turns
// that into an execution error rather than a silent "<no value>").
func (t *Template) Render(vars map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("prompttpl: render %q: %w", t.name, err)
	}
	return buf.String(), nil
}

// extractVariables lists the distinct top-level {{.name}} references in
// body, mirroring nexus's ExtractVariablesFromContent.
func extractVariables(body string) []string {
	var names []string
	seen := make(map[string]struct{})

	i := 0
	for i < len(body) {
		start := strings.Index(body[i:], "{{")
		if start == -1 {
			break
		}
		start += i

		end := strings.Index(body[start:], "}}")
		if end == -1 {
			break
		}
		end += start

		expr := strings.TrimSpace(body[start+2 : end])
		if strings.HasPrefix(expr, ".") && !strings.Contains(expr, " ") {
			name := strings.TrimPrefix(expr, ".")
			if idx := strings.Index(name, "."); idx != -1 {
				name = name[:idx]
			}
			if name != "" {
				if _, ok := seen[name]; !ok {
					seen[name] = struct{}{}
					names = append(names, name)
				}
			}
		}

		i = end + 2
	}

	return names
}
