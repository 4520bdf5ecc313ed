// Package building models static structures on the grid: their health,
// ownership, capture configuration, and reserve tiles for defenders.
package building

import (
	"fmt"

	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
)

// DefaultBeatsToCapture is the capture threshold used when none is configured.
const DefaultBeatsToCapture = 12

// CaptureConfig makes a building capturable.
type CaptureConfig struct {
	// BeatsToCapture is the capture-point threshold; one contributing unit adds
	// one point per beat.
	BeatsToCapture int `yaml:"beats_to_capture" json:"beats_to_capture"`
	// Recapturable buildings can change hands repeatedly and ignore damage
	// while owned.
	Recapturable bool `yaml:"recapturable" json:"recapturable"`
}

// Spec is the declarative description of a building.
type Spec struct {
	ID           string          `yaml:"id"`
	Name         string          `yaml:"name"`
	Team         team.Team       `yaml:"team"`
	Tiles        []hexgrid.Coord `yaml:"tiles"`
	MaxHealth    int             `yaml:"max_health"`
	Defense      int             `yaml:"defense"`
	Untargetable bool            `yaml:"untargetable"`
	Capture      *CaptureConfig  `yaml:"capture"`
	ReserveTiles []hexgrid.Coord `yaml:"reserve_tiles"`
}

// Validate checks the spec invariants.
func (s Spec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("building: id must not be empty")
	}
	if len(s.Tiles) == 0 {
		return fmt.Errorf("building %q: tiles must not be empty", s.ID)
	}
	if s.MaxHealth < 1 {
		return fmt.Errorf("building %q: max_health must be >= 1", s.ID)
	}
	if s.Defense < 0 {
		return fmt.Errorf("building %q: defense must be >= 0", s.ID)
	}
	if s.Capture != nil && s.Capture.BeatsToCapture < 0 {
		return fmt.Errorf("building %q: beats_to_capture must be >= 0", s.ID)
	}
	seen := make(map[hexgrid.Coord]bool, len(s.Tiles))
	for _, c := range s.Tiles {
		if seen[c] {
			return fmt.Errorf("building %q: duplicate tile %s", s.ID, c)
		}
		seen[c] = true
	}
	for _, c := range s.ReserveTiles {
		if seen[c] {
			return fmt.Errorf("building %q: reserve tile %s overlaps the footprint", s.ID, c)
		}
	}
	return nil
}

// Building is a live structure.
type Building struct {
	ID         string
	Name       string
	Team       team.Team
	Tiles      []hexgrid.Coord
	Health     int
	MaxHealth  int
	Defense    int
	Targetable bool
	Capture    *CaptureConfig

	reserve  []hexgrid.Coord
	assigned map[hexgrid.Coord]string
}

// New builds a Building from a validated spec.
//
// Postcondition: Health equals MaxHealth; a zero BeatsToCapture becomes DefaultBeatsToCapture.
func New(s Spec) (*Building, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	b := &Building{
		ID:         s.ID,
		Name:       s.Name,
		Team:       s.Team,
		Tiles:      append([]hexgrid.Coord(nil), s.Tiles...),
		Health:     s.MaxHealth,
		MaxHealth:  s.MaxHealth,
		Defense:    s.Defense,
		Targetable: !s.Untargetable,
		reserve:    append([]hexgrid.Coord(nil), s.ReserveTiles...),
		assigned:   make(map[hexgrid.Coord]string, len(s.ReserveTiles)),
	}
	if b.Name == "" {
		b.Name = b.ID
	}
	if b.Team == team.None {
		b.Team = team.Neutral
	}
	if s.Capture != nil {
		cfg := *s.Capture
		if cfg.BeatsToCapture == 0 {
			cfg.BeatsToCapture = DefaultBeatsToCapture
		}
		b.Capture = &cfg
	}
	return b, nil
}

// Capturable reports whether the building has a capture configuration.
func (b *Building) Capturable() bool { return b.Capture != nil }

// Recapturable reports whether the building can change hands repeatedly.
func (b *Building) Recapturable() bool { return b.Capture != nil && b.Capture.Recapturable }

// Owned reports whether a fighting team holds the building.
func (b *Building) Owned() bool { return b.Team.CanCapture() }

// Destroyed reports whether the building has no health left.
func (b *Building) Destroyed() bool { return b.Health <= 0 }

// Occupies reports whether c is part of the building's footprint.
func (b *Building) Occupies(c hexgrid.Coord) bool {
	for _, t := range b.Tiles {
		if t == c {
			return true
		}
	}
	return false
}

// TakeDamage applies a strike of dmg after defense.
//
// Postcondition: Returns the health removed and whether the building is now
// destroyed. Owned recapturable buildings and destroyed buildings take no damage.
func (b *Building) TakeDamage(dmg int) (dealt int, destroyed bool) {
	if b.Destroyed() || dmg <= 0 {
		return 0, false
	}
	if b.Recapturable() && b.Owned() {
		return 0, false
	}
	dealt = max(1, dmg-b.Defense)
	if dealt > b.Health {
		dealt = b.Health
	}
	b.Health -= dealt
	return dealt, b.Health <= 0
}

// ReserveTiles returns the defensive positions attached to the building.
func (b *Building) ReserveTiles() []hexgrid.Coord { return b.reserve }

// ReserveAssignee returns the unit assigned to reserve tile c.
func (b *Building) ReserveAssignee(c hexgrid.Coord) (string, bool) {
	id, ok := b.assigned[c]
	return id, ok
}

// ReserveTileFor returns a reserve tile for unitID: the tile already assigned
// to it if any, otherwise the first unassigned tile for which free reports true.
//
// Postcondition: Returns (tile, true), or (zero, false) when every reserve tile is taken.
func (b *Building) ReserveTileFor(unitID string, free func(hexgrid.Coord) bool) (hexgrid.Coord, bool) {
	for _, c := range b.reserve {
		if b.assigned[c] == unitID {
			return c, true
		}
	}
	for _, c := range b.reserve {
		if _, taken := b.assigned[c]; taken {
			continue
		}
		if free == nil || free(c) {
			return c, true
		}
	}
	return hexgrid.Coord{}, false
}

// AssignReserve binds unitID to reserve tile c, moving it off any previous one.
//
// Postcondition: Returns false if c is not a reserve tile or belongs to another unit.
func (b *Building) AssignReserve(unitID string, c hexgrid.Coord) bool {
	isReserve := false
	for _, r := range b.reserve {
		if r == c {
			isReserve = true
			break
		}
	}
	if !isReserve {
		return false
	}
	if holder, taken := b.assigned[c]; taken && holder != unitID {
		return false
	}
	b.ReleaseReserve(unitID)
	b.assigned[c] = unitID
	return true
}

// ReleaseReserve drops any reserve assignment held by unitID.
func (b *Building) ReleaseReserve(unitID string) {
	for c, holder := range b.assigned {
		if holder == unitID {
			delete(b.assigned, c)
		}
	}
}
