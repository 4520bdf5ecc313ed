package scenario

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hexbeat/internal/game/beat"
	"github.com/cory-johannsen/hexbeat/internal/game/building"
	"github.com/cory-johannsen/hexbeat/internal/game/engine"
	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/game/unit"
)

// Target is the part of the engine a scenario populates.
type Target interface {
	AddBuilding(spec building.Spec) (*building.Building, error)
	Spawn(tmpl *unit.Template, t team.Team, at hexgrid.Coord, orders engine.Orders) (*unit.Unit, error)
	IssueRally(t team.Team, at hexgrid.Coord) error
}

// Apply creates the buildings, issues the initial rallies and spawns the
// initial units. Waves are left to a Director.
//
// Precondition: s.Validate(templates) returned nil.
func (s *Scenario) Apply(target Target, templates map[string]*unit.Template) error {
	for _, spec := range s.Buildings {
		if _, err := target.AddBuilding(spec); err != nil {
			return fmt.Errorf("scenario.Apply %q: %w", s.Name, err)
		}
	}
	for _, r := range s.Rally {
		if err := target.IssueRally(r.Team, r.At); err != nil {
			return fmt.Errorf("scenario.Apply %q: %w", s.Name, err)
		}
	}
	for i, u := range s.Units {
		if err := s.spawn(target, templates, u); err != nil {
			return fmt.Errorf("scenario.Apply %q unit %d: %w", s.Name, i, err)
		}
	}
	return nil
}

func (s *Scenario) spawn(target Target, templates map[string]*unit.Template, u UnitSpec) error {
	tmpl, ok := templates[u.Template]
	if !ok {
		return fmt.Errorf("unknown template %q", u.Template)
	}
	_, err := target.Spawn(tmpl, u.Team, u.At, engine.Orders{Objective: s.objectiveFor(u), Rally: u.Rally})
	return err
}

// Director spawns the scenario's waves as their beats arrive. It is a
// beat.Listener for use after the engine has processed each beat.
type Director struct {
	scenario  *Scenario
	target    Target
	templates map[string]*unit.Template
	logger    *zap.Logger
	waves     []Wave
	next      int
}

// NewDirector creates a Director for s.
//
// Precondition: s, target and logger must be non-nil.
func (s *Scenario) NewDirector(target Target, templates map[string]*unit.Template, logger *zap.Logger) *Director {
	if target == nil {
		panic("scenario.NewDirector: target must not be nil")
	}
	if logger == nil {
		panic("scenario.NewDirector: logger must not be nil")
	}
	waves := append([]Wave(nil), s.Waves...)
	sort.SliceStable(waves, func(i, j int) bool { return waves[i].Beat < waves[j].Beat })
	return &Director{scenario: s, target: target, templates: templates, logger: logger, waves: waves}
}

// OnBeat spawns every wave due at or before b. A unit whose tile is occupied
// is skipped with a warning.
func (d *Director) OnBeat(b beat.Beat) {
	for d.next < len(d.waves) && d.waves[d.next].Beat <= b.Index {
		w := d.waves[d.next]
		d.next++
		spawned := 0
		for _, u := range w.Units {
			if err := d.scenario.spawn(d.target, d.templates, u); err != nil {
				d.logger.Warn("wave spawn failed",
					zap.String("wave", w.Name),
					zap.String("template", u.Template),
					zap.Stringer("at", u.At),
					zap.Error(err),
				)
				continue
			}
			spawned++
		}
		d.logger.Info("wave spawned", zap.String("wave", w.Name), zap.Uint64("beat", b.Index), zap.Int("units", spawned))
	}
}

// Pending returns how many waves have not spawned yet.
func (d *Director) Pending() int { return len(d.waves) - d.next }
