// Package plan loads and normalizes execution plans. A plan is an
// ordered list of step descriptions; authors may write plain strings or
// richer step records, and both collapse to the same normalized form
// before the engine ever sees them.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMalformed marks structurally invalid plan input. This is the only
// error class that aborts a run before it starts.
var ErrMalformed = errors.New("malformed plan")

// Plan is the normalized form the engine consumes.
type Plan struct {
	Goal  string
	Steps []string
}

// document is the on-disk shape. Steps entries may be plain strings or
// records with a description field.
type document struct {
	Goal  string        `yaml:"goal" json:"goal"`
	Steps []interface{} `yaml:"steps" json:"steps"`
}

// Load reads a plan file. JSON is detected by extension; everything
// else parses as YAML.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return parseJSON(data)
	}
	return Parse(data)
}

// Parse parses YAML plan input. The document may be a mapping with goal
// and steps, or a bare list of steps.
func Parse(data []byte) (*Plan, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Steps) > 0 {
		return normalize(doc.Goal, doc.Steps)
	}

	var bare []interface{}
	if err := yaml.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return normalize("", bare)
}

func parseJSON(data []byte) (*Plan, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err == nil && len(doc.Steps) > 0 {
		return normalize(doc.Goal, doc.Steps)
	}

	var bare []interface{}
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return normalize("", bare)
}

// FromSteps builds a plan from already-split step descriptions.
func FromSteps(goal string, steps []string) (*Plan, error) {
	items := make([]interface{}, len(steps))
	for i, s := range steps {
		items[i] = s
	}
	return normalize(goal, items)
}

// normalize collapses mixed step entries to a clean string list.
func normalize(goal string, items []interface{}) (*Plan, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: plan has no steps", ErrMalformed)
	}

	steps := make([]string, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				return nil, fmt.Errorf("%w: step %d is empty", ErrMalformed, i+1)
			}
			steps = append(steps, s)
		case map[string]interface{}:
			desc, _ := v["description"].(string)
			desc = strings.TrimSpace(desc)
			if desc == "" {
				return nil, fmt.Errorf("%w: step %d has no description", ErrMalformed, i+1)
			}
			// Richer records may carry a parallel hint; it is advisory
			// metadata and the description is all that survives.
			steps = append(steps, desc)
		default:
			return nil, fmt.Errorf("%w: step %d has unsupported type %T", ErrMalformed, i+1, item)
		}
	}

	return &Plan{Goal: strings.TrimSpace(goal), Steps: steps}, nil
}
