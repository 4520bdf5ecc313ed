// Package scenario loads declarative battle setups from YAML: the map, the
// buildings, the units with their orders, and timed reinforcement waves.
package scenario

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/hexbeat/internal/game/building"
	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/game/unit"
)

// UnitSpec places one unit.
type UnitSpec struct {
	Template  string         `yaml:"template"`
	Team      team.Team      `yaml:"team"`
	At        hexgrid.Coord  `yaml:"at"`
	Objective string         `yaml:"objective"`
	Rally     *hexgrid.Coord `yaml:"rally"`
}

// Objective is the default objective of every unit of a team.
type Objective struct {
	Team     team.Team `yaml:"team"`
	Building string    `yaml:"building"`
}

// Rally is a rally marker in force when the scenario starts.
type Rally struct {
	Team team.Team     `yaml:"team"`
	At   hexgrid.Coord `yaml:"at"`
}

// Wave spawns units when the given beat is reached.
type Wave struct {
	Name  string     `yaml:"name"`
	Beat  uint64     `yaml:"beat"`
	Units []UnitSpec `yaml:"units"`
}

// Scenario is a complete battle setup.
type Scenario struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Map         hexgrid.Map     `yaml:"map"`
	Buildings   []building.Spec `yaml:"buildings"`
	Units       []UnitSpec      `yaml:"units"`
	Objectives  []Objective     `yaml:"objectives"`
	Rally       []Rally         `yaml:"rally"`
	Waves       []Wave          `yaml:"waves"`
}

// Parse validates data against the scenario schema and decodes it.
//
// Postcondition: Returns a structurally valid Scenario or a non-nil error.
// Cross references are checked by Validate.
func Parse(data []byte) (*Scenario, error) {
	if err := ValidateDocument(data); err != nil {
		return nil, err
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}
	return &s, nil
}

// Load reads and parses the scenario file at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading scenario %s: %w", path, err)
	}
	return s, nil
}

// Validate checks the cross references of the scenario: templates exist,
// objectives name buildings, and every placement is on the map.
//
// Postcondition: Returns nil, or every violation joined into one error.
func (s *Scenario) Validate(templates map[string]*unit.Template) error {
	grid, err := s.Map.Build()
	if err != nil {
		return fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	var errs []error
	ids := make(map[string]bool, len(s.Buildings))
	for _, b := range s.Buildings {
		if err := b.Validate(); err != nil {
			errs = append(errs, err)
		}
		if ids[b.ID] {
			errs = append(errs, fmt.Errorf("building %q: duplicate id", b.ID))
		}
		ids[b.ID] = true
		for _, c := range append(append([]hexgrid.Coord(nil), b.Tiles...), b.ReserveTiles...) {
			if _, ok := grid.Tile(c); !ok {
				errs = append(errs, fmt.Errorf("building %q: tile %s is off the map", b.ID, c))
			}
		}
	}
	checkUnit := func(where string, u UnitSpec) {
		if _, ok := templates[u.Template]; !ok {
			errs = append(errs, fmt.Errorf("%s: unknown template %q", where, u.Template))
		}
		if u.Team == team.None {
			errs = append(errs, fmt.Errorf("%s: team must be set", where))
		}
		if _, ok := grid.Tile(u.At); !ok {
			errs = append(errs, fmt.Errorf("%s: tile %s is off the map", where, u.At))
		}
		if u.Objective != "" && !ids[u.Objective] {
			errs = append(errs, fmt.Errorf("%s: unknown objective %q", where, u.Objective))
		}
		if u.Rally != nil {
			if _, ok := grid.Tile(*u.Rally); !ok {
				errs = append(errs, fmt.Errorf("%s: rally %s is off the map", where, *u.Rally))
			}
		}
	}
	for i, u := range s.Units {
		checkUnit(fmt.Sprintf("unit %d", i), u)
	}
	for i, w := range s.Waves {
		if w.Beat == 0 {
			errs = append(errs, fmt.Errorf("wave %d: beat must be >= 1", i))
		}
		for j, u := range w.Units {
			checkUnit(fmt.Sprintf("wave %d unit %d", i, j), u)
		}
	}
	for _, o := range s.Objectives {
		if !o.Team.CanCapture() {
			errs = append(errs, fmt.Errorf("objective: team %s cannot hold objectives", o.Team))
		}
		if !ids[o.Building] {
			errs = append(errs, fmt.Errorf("objective for %s: unknown building %q", o.Team, o.Building))
		}
	}
	for _, r := range s.Rally {
		if !r.Team.CanCapture() {
			errs = append(errs, fmt.Errorf("rally: team %s cannot be commanded", r.Team))
		}
		if _, ok := grid.Tile(r.At); !ok {
			errs = append(errs, fmt.Errorf("rally for %s: tile %s is off the map", r.Team, r.At))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("scenario %q: %w", s.Name, errors.Join(errs...))
	}
	return nil
}

// objectiveFor returns the unit's own objective or its team's default.
func (s *Scenario) objectiveFor(u UnitSpec) string {
	if u.Objective != "" {
		return u.Objective
	}
	for _, o := range s.Objectives {
		if o.Team == u.Team {
			return o.Building
		}
	}
	return ""
}
