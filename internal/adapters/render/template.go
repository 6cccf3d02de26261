package render

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/emiliopalmerini/promptreg/internal/domain"
)

// TemplateRenderer substitutes prompt variables using text/template syntax
// ({{.name}}). Undefined variables are an error, not an empty substitution.
type TemplateRenderer struct{}

func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{}
}

func (r *TemplateRenderer) Render(content string, variables map[string]any) (string, error) {
	if len(variables) == 0 {
		return content, nil
	}

	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRender, err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, variables); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRender, err)
	}
	return buf.String(), nil
}
