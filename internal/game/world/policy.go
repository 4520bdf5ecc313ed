package world

import (
	"github.com/cory-johannsen/hexbeat/internal/game/building"
	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/game/unit"
)

// CaptureRange is the hex distance from which a unit may capture a building.
const CaptureRange = 1

// Policy encapsulates the team, health and targetability rules the tactical
// core depends on. Implementations must be pure functions of their arguments.
type Policy interface {
	IsValidUnitTarget(self, other *unit.Unit) bool
	IsValidBuildingTarget(self *unit.Unit, b *building.Building) bool
	IsUnitInRange(self, other *unit.Unit) bool
	IsBuildingInRange(self *unit.Unit, b *building.Building) bool
	IsBuildingInCaptureRange(self *unit.Unit, b *building.Building) bool
}

// DefaultPolicy implements the standard rules: units fight hostile teams,
// buildings are valid targets when hostile or capturable by the unit's team,
// and ranges are hex distances to the nearest occupied tile.
type DefaultPolicy struct{}

// IsValidUnitTarget reports whether other is a live hostile unit.
func (DefaultPolicy) IsValidUnitTarget(self, other *unit.Unit) bool {
	if self == nil || other == nil || self.ID == other.ID {
		return false
	}
	return other.Alive() && team.Hostile(self.Team, other.Team)
}

// IsValidBuildingTarget reports whether b can be attacked or captured by self.
func (DefaultPolicy) IsValidBuildingTarget(self *unit.Unit, b *building.Building) bool {
	if self == nil || b == nil || b.Destroyed() || !b.Targetable || b.Team == self.Team {
		return false
	}
	if team.Hostile(self.Team, b.Team) {
		return true
	}
	return CapturableBy(b, self.Team)
}

// IsUnitInRange reports whether other stands within self's attack range.
func (DefaultPolicy) IsUnitInRange(self, other *unit.Unit) bool {
	if self == nil || other == nil {
		return false
	}
	return hexgrid.Distance(self.Pos, other.Pos) <= self.AttackRange
}

// IsBuildingInRange reports whether any tile of b is within self's attack range.
func (DefaultPolicy) IsBuildingInRange(self *unit.Unit, b *building.Building) bool {
	if self == nil {
		return false
	}
	return buildingWithin(self, b, self.AttackRange)
}

// IsBuildingInCaptureRange reports whether any tile of b is within CaptureRange of self.
func (DefaultPolicy) IsBuildingInCaptureRange(self *unit.Unit, b *building.Building) bool {
	return buildingWithin(self, b, CaptureRange)
}

func buildingWithin(self *unit.Unit, b *building.Building, r int) bool {
	if self == nil || b == nil {
		return false
	}
	d, ok := hexgrid.MinDistance(self.Pos, b.Tiles)
	return ok && d <= r
}

// CapturableBy reports whether t may contest b: b must be capturable, not
// already held by t, and either unowned or recapturable.
func CapturableBy(b *building.Building, t team.Team) bool {
	if b == nil || !b.Capturable() || b.Destroyed() || !t.CanCapture() || b.Team == t {
		return false
	}
	return !b.Owned() || b.Recapturable()
}
