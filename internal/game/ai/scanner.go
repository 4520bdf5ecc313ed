package ai

import (
	"github.com/cory-johannsen/hexbeat/internal/game/building"
	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/unit"
	"github.com/cory-johannsen/hexbeat/internal/game/world"
)

// Scanner finds the nearest valid targets within a unit's detection range.
type Scanner struct {
	world *world.World
}

// NewScanner creates a Scanner over w.
//
// Precondition: w must be non-nil.
func NewScanner(w *world.World) *Scanner {
	if w == nil {
		panic("ai.NewScanner: world must not be nil")
	}
	return &Scanner{world: w}
}

// NearestUnit returns the closest unit that self may target within its
// detection range. Ties go to the earlier-spawned unit.
func (s *Scanner) NearestUnit(self *unit.Unit) (*unit.Unit, bool) {
	policy := s.world.Policy()
	var best *unit.Unit
	bestDist := 0
	for _, other := range s.world.Units() {
		if !policy.IsValidUnitTarget(self, other) {
			continue
		}
		d := hexgrid.Distance(self.Pos, other.Pos)
		if d > self.DetectionRange {
			continue
		}
		if best == nil || d < bestDist {
			best, bestDist = other, d
		}
	}
	return best, best != nil
}

// NearestBuilding returns the closest building that self may attack or
// capture within its detection range. Ties go to the earlier-registered building.
func (s *Scanner) NearestBuilding(self *unit.Unit) (*building.Building, bool) {
	policy := s.world.Policy()
	var best *building.Building
	bestDist := 0
	for _, b := range s.world.Buildings() {
		if !policy.IsValidBuildingTarget(self, b) {
			continue
		}
		d, ok := hexgrid.MinDistance(self.Pos, b.Tiles)
		if !ok || d > self.DetectionRange {
			continue
		}
		if best == nil || d < bestDist {
			best, bestDist = b, d
		}
	}
	return best, best != nil
}

// Scan records the nearest targets in ctx.Detected.
func (s *Scanner) Scan(self *unit.Unit, ctx *Context) Detection {
	var det Detection
	if u, ok := s.NearestUnit(self); ok {
		det.UnitID = u.ID
	}
	if b, ok := s.NearestBuilding(self); ok {
		det.BuildingID = b.ID
	}
	ctx.Detected = det
	return det
}
