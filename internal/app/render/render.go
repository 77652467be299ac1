// Package render substitutes per-recipient context into subject and
// body templates. Rendering is deterministic: identical template and
// context always yield identical output.
package render

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"strings"
	"text/template"
)

var defaultTemplateFuncs = template.FuncMap{
	"default":    defaultValue,
	"join":       strings.Join,
	"replace":    strings.Replace,
	"replaceAll": strings.ReplaceAll,
	"upper":      strings.ToUpper,
	"lower":      strings.ToLower,
	"title":      titleCase,
	"contains":   strings.Contains,
	"trim":       strings.Trim,
	"trimSpace":  strings.TrimSpace,
}

type Renderer struct {
	funcs template.FuncMap
}

func NewRenderer() *Renderer {
	return &Renderer{funcs: defaultTemplateFuncs}
}

// Render executes the template against the recipient's field mapping.
// A parse failure or a reference to a field the recipient doesn't carry
// is reported as an error; the caller records it against that recipient
// only.
func (r *Renderer) Render(templateContent string, ctx map[string]string) (string, error) {
	tmpl, err := template.
		New(templateHash(templateContent)).
		Funcs(r.funcs).
		Option("missingkey=error").
		Parse(templateContent)
	if err != nil {
		return "", fmt.Errorf("template parsing: %w", err)
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("template rendering: %w", err)
	}

	return buf.String(), nil
}

func templateHash(s string) string {
	return string(fnv.New32().Sum([]byte(s)))
}

// defaultValue substitutes def when the piped value is empty,
// e.g. {{.first_name | default "there"}}.
func defaultValue(def, value string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
