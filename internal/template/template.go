// Package template loads, validates and saves named deployment templates
// from the configuration directory.
package template

import (
	"deployd/internal/apperrors"
	"deployd/internal/step"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Template is a named, ordered list of steps plus metadata.
type Template struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Ticket      string    `json:"ticket,omitempty"`
	TotalSteps  int       `json:"totalSteps"`
	Steps       step.List `json:"steps"`
}

// Summary is one catalog entry.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Ticket      string `json:"ticket,omitempty"`
	TotalSteps  int    `json:"totalSteps"`
}

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// Validate checks the name and every step. Steps must have unique orders.
func (t *Template) Validate() error {
	if t.Name == "" {
		return apperrors.Validation("name", "template name is required")
	}
	if len(t.Name) > 128 || !namePattern.MatchString(t.Name) {
		return apperrors.Validation("name", "template name must be alphanumeric (dots, hyphens and underscores allowed)")
	}
	return step.ValidateList(t.Steps)
}

func (t *Template) summary() Summary {
	return Summary{Name: t.Name, Description: t.Description, Ticket: t.Ticket, TotalSteps: t.TotalSteps}
}

// Parse decodes a template document.
func Parse(data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, apperrors.Validation("template", fmt.Sprintf("invalid template document: %v", err))
	}
	if t.TotalSteps == 0 {
		t.TotalSteps = len(t.Steps)
	}
	return &t, nil
}

// ParseFile reads and validates a template document from any path.
func ParseFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
