package task

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"text/template"

	"github.com/bkyoung/review-agent/internal/domain"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

// PromptData holds everything the prompt templates may reference.
type PromptData struct {
	Repository string
	Branch     string
	Number     int
	Title      string
	Body       string
	Author     string
	Comment    string
}

// PromptBuilder renders the per-kind prompt delivered on the provider's
// stdin.
type PromptBuilder struct {
	templates *template.Template
}

// NewPromptBuilder parses the embedded default templates and overlays
// any *.tmpl files found in overrideDir. Override templates replace
// same-named defaults; an empty or absent directory leaves the defaults
// in place.
func NewPromptBuilder(overrideDir string) (*PromptBuilder, error) {
	tmpl, err := template.New("prompts").Option("missingkey=error").ParseFS(defaultTemplates, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse embedded prompt templates: %w", err)
	}

	if overrideDir != "" {
		pattern := filepath.Join(overrideDir, "*.tmpl")
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("scan prompt override directory: %w", err)
		}
		if len(matches) > 0 {
			tmpl, err = tmpl.ParseGlob(pattern)
			if err != nil {
				return nil, fmt.Errorf("parse prompt overrides: %w", err)
			}
		}
	}

	return &PromptBuilder{templates: tmpl}, nil
}

// Build renders the prompt for the task's kind.
func (b *PromptBuilder) Build(t domain.Task) (string, error) {
	name := fmt.Sprintf("%s.md.tmpl", t.Kind)
	tmpl := b.templates.Lookup(name)
	if tmpl == nil {
		return "", fmt.Errorf("no prompt template for task kind %q", t.Kind)
	}

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, PromptData{
		Repository: t.Repository,
		Branch:     t.Branch,
		Number:     t.Number,
		Title:      t.Title,
		Body:       t.Body,
		Author:     t.Author,
		Comment:    t.Comment,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}
