package engine

import (
	"github.com/cory-johannsen/hexbeat/internal/game/ai"
	"github.com/cory-johannsen/hexbeat/internal/game/capture"
	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
)

// UnitView is the externally visible state of a unit.
type UnitView struct {
	ID        string        `json:"id"`
	Template  string        `json:"template"`
	Name      string        `json:"name"`
	Team      team.Team     `json:"team"`
	Pos       hexgrid.Coord `json:"pos"`
	Health    int           `json:"health"`
	MaxHealth int           `json:"max_health"`
	Activity  string        `json:"activity"`
	Action    ai.Action     `json:"action"`
	Defensive bool          `json:"defensive,omitempty"`
	Objective string        `json:"objective,omitempty"`
}

// BuildingView is the externally visible state of a standing building.
type BuildingView struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Team       team.Team       `json:"team"`
	Tiles      []hexgrid.Coord `json:"tiles"`
	Health     int             `json:"health"`
	MaxHealth  int             `json:"max_health"`
	Capturable bool            `json:"capturable"`
}

// RallyView is a team's rally marker.
type RallyView struct {
	Team team.Team     `json:"team"`
	At   hexgrid.Coord `json:"at"`
}

// Snapshot is a consistent copy of the simulation state between beats.
type Snapshot struct {
	Beat      uint64          `json:"beat"`
	Units     []UnitView      `json:"units"`
	Buildings []BuildingView  `json:"buildings"`
	Captures  []capture.State `json:"captures"`
	Rallies   []RallyView     `json:"rallies"`
}

// Snapshot returns the current state. Units and buildings are in spawn and
// registration order.
//
// Postcondition: The result shares no mutable state with the engine.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Beat:      e.beat.Index,
		Units:     []UnitView{},
		Buildings: []BuildingView{},
		Captures:  e.captures.States(),
		Rallies:   []RallyView{},
	}
	for _, u := range e.world.Units() {
		v := UnitView{
			ID:        u.ID,
			Template:  u.TemplateID,
			Name:      u.Name,
			Team:      u.Team,
			Pos:       u.Pos,
			Health:    u.Health,
			MaxHealth: u.MaxHealth,
			Activity:  u.Activity().String(),
			Defensive: u.Defensive,
		}
		if a, ok := e.agents[u.ID]; ok {
			v.Action = a.ctx.Decision.Action
			v.Objective = a.ctx.Objective
		}
		s.Units = append(s.Units, v)
	}
	for _, b := range e.world.Buildings() {
		s.Buildings = append(s.Buildings, BuildingView{
			ID:         b.ID,
			Name:       b.Name,
			Team:       b.Team,
			Tiles:      append([]hexgrid.Coord(nil), b.Tiles...),
			Health:     b.Health,
			MaxHealth:  b.MaxHealth,
			Capturable: b.Capturable(),
		})
	}
	for _, t := range []team.Team{team.Player, team.Enemy} {
		if at, ok := e.rallies[t]; ok {
			s.Rallies = append(s.Rallies, RallyView{Team: t, At: at})
		}
	}
	return s
}

// Owner returns the team owning building id in the snapshot.
func (s Snapshot) Owner(id string) (team.Team, bool) {
	for _, b := range s.Buildings {
		if b.ID == id {
			return b.Team, true
		}
	}
	return team.None, false
}

// CountUnits returns how many units of t are in the snapshot.
func (s Snapshot) CountUnits(t team.Team) int {
	n := 0
	for _, u := range s.Units {
		if u.Team == t {
			n++
		}
	}
	return n
}
