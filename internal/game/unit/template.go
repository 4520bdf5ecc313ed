// Package unit provides unit templates loaded from YAML and the live unit
// instances that act on the grid.
package unit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template defaults applied to fields absent from YAML.
const (
	DefaultMovementDelay  = 1
	DefaultAttackDelay    = 1
	DefaultAttackRange    = 1
	DefaultDetectionRange = 3
)

// Template defines a reusable unit archetype.
type Template struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	MaxHealth   int    `yaml:"max_health"`
	Attack      int    `yaml:"attack"`
	Defense     int    `yaml:"defense"`
	// AttackRange and DetectionRange are in tiles.
	AttackRange    int `yaml:"attack_range"`
	DetectionRange int `yaml:"detection_range"`
	// MovementDelay and AttackDelay are in beats; 0 and 1 both act every beat.
	MovementDelay int `yaml:"movement_delay"`
	AttackDelay   int `yaml:"attack_delay"`
}

// DefaultTemplate returns a Template carrying only the defaults.
func DefaultTemplate() Template {
	return Template{
		AttackRange:    DefaultAttackRange,
		DetectionRange: DefaultDetectionRange,
		MovementDelay:  DefaultMovementDelay,
		AttackDelay:    DefaultAttackDelay,
	}
}

// Validate checks the template invariants.
//
// Postcondition: Returns nil iff ID and Name are non-empty, MaxHealth >= 1,
// Attack and Defense >= 0, AttackRange >= 0, DetectionRange >= AttackRange,
// and both delays >= 0.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("unit template: id must not be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("unit template %q: name must not be empty", t.ID)
	}
	if t.MaxHealth < 1 {
		return fmt.Errorf("unit template %q: max_health must be >= 1", t.ID)
	}
	if t.Attack < 0 || t.Defense < 0 {
		return fmt.Errorf("unit template %q: attack and defense must be >= 0", t.ID)
	}
	if t.AttackRange < 0 {
		return fmt.Errorf("unit template %q: attack_range must be >= 0", t.ID)
	}
	if t.DetectionRange < t.AttackRange {
		return fmt.Errorf("unit template %q: detection_range %d must be >= attack_range %d", t.ID, t.DetectionRange, t.AttackRange)
	}
	if t.MovementDelay < 0 || t.AttackDelay < 0 {
		return fmt.Errorf("unit template %q: delays must be >= 0", t.ID)
	}
	return nil
}

// LoadTemplateFromBytes parses a single template, applying defaults for absent fields.
//
// Precondition: data must be valid YAML for a single Template.
// Postcondition: Returns a validated *Template, or an error.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	tmpl := DefaultTemplate()
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing unit template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadTemplates reads every *.yaml file in dir.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns the templates sorted by ID, or an error on the first
// parse/validate failure or duplicate ID.
func LoadTemplates(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading unit template dir %q: %w", dir, err)
	}

	seen := make(map[string]string)
	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		tmpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		if prev, dup := seen[tmpl.ID]; dup {
			return nil, fmt.Errorf("loading %q: template id %q already defined in %q", path, tmpl.ID, prev)
		}
		seen[tmpl.ID] = path
		templates = append(templates, tmpl)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })
	return templates, nil
}

// Index maps templates by ID.
func Index(templates []*Template) map[string]*Template {
	out := make(map[string]*Template, len(templates))
	for _, t := range templates {
		out[t.ID] = t
	}
	return out
}
