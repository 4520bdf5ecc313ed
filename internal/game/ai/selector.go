package ai

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/hexbeat/internal/game/building"
	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/unit"
	"github.com/cory-johannsen/hexbeat/internal/game/world"
)

// Selector runs the per-cycle decision for one unit at a time.
type Selector struct {
	world   *world.World
	scanner *Scanner
	logger  *zap.Logger
}

// NewSelector creates a Selector.
//
// Precondition: w and logger must be non-nil.
func NewSelector(w *world.World, logger *zap.Logger) *Selector {
	if w == nil {
		panic("ai.NewSelector: world must not be nil")
	}
	if logger == nil {
		panic("ai.NewSelector: logger must not be nil")
	}
	return &Selector{world: w, scanner: NewScanner(w), logger: logger}
}

// Decide evaluates the unit's situation in priority order and stores the
// result in ctx.Decision.
//
// Precondition: u and ctx must be non-nil and refer to the same unit.
// Postcondition: Returns the stored decision. A busy unit keeps its current decision.
func (s *Selector) Decide(u *unit.Unit, ctx *Context, beatIndex uint64) Decision {
	if u.Busy() {
		return ctx.Decision
	}
	d := s.decide(u, ctx)
	if d.Action.Moves() && ctx.PathFailed {
		d.Fallback = true
	}
	ctx.PathFailed = false
	if ctx.FallbackFailed {
		ctx.FallbackFailed = false
		d = Decision{Action: Idle, Destination: u.Pos}
	}
	if d != ctx.Decision {
		s.logger.Debug("decision",
			zap.String("unit", u.ID),
			zap.Stringer("decision", d),
			zap.Uint64("beat", beatIndex),
		)
	}
	ctx.Decision = d
	ctx.LastDecisionBeat = beatIndex
	return d
}

func (s *Selector) decide(u *unit.Unit, ctx *Context) Decision {
	if ctx.ObjectiveDone && !ctx.HasOrders() {
		return Decision{Action: Despawn, Destination: u.Pos}
	}

	policy := s.world.Policy()
	det := s.scanner.Scan(u, ctx)
	if det.UnitID != "" {
		target, _ := s.world.Unit(det.UnitID)
		switch {
		case policy.IsUnitInRange(u, target):
			return Decision{Action: AttackUnit, Destination: u.Pos, TargetUnitID: target.ID}
		case !u.Defensive:
			return Decision{Action: MoveToUnit, Destination: target.Pos, TargetUnitID: target.ID}
		}
	}
	if det.BuildingID != "" {
		b, _ := s.world.Building(det.BuildingID)
		if d := s.engageBuilding(u, b); !u.Defensive || d.Action != MoveToBuilding {
			return d
		}
	}

	if ctx.Objective != "" && !ctx.ObjectiveDone {
		// Only a destroyed, missing or already owned objective is complete. A
		// building the policy rejects stays the objective and is skipped.
		b, ok := s.world.Building(ctx.Objective)
		switch {
		case !ok || b.Destroyed() || b.Team == u.Team:
			ctx.ObjectiveDone = true
			s.logger.Debug("objective complete", zap.String("unit", u.ID), zap.String("building", ctx.Objective))
			if !ctx.HasOrders() {
				return Decision{Action: Despawn, Destination: u.Pos}
			}
		case policy.IsValidBuildingTarget(u, b):
			return s.engageBuilding(u, b)
		default:
			s.logger.Debug("objective rejected by policy", zap.String("unit", u.ID), zap.String("building", ctx.Objective))
		}
	}

	if ctx.HasRally {
		return s.rally(u, ctx)
	}
	if ctx.Defend != nil {
		return Decision{Action: DefendPosition, Destination: ctx.Defend.Tile, TargetBuildingID: ctx.Defend.BuildingID}
	}
	return Decision{Action: Idle, Destination: u.Pos}
}

// engageBuilding picks capture or attack against b, or a move toward it.
func (s *Selector) engageBuilding(u *unit.Unit, b *building.Building) Decision {
	policy := s.world.Policy()
	if world.CapturableBy(b, u.Team) {
		if policy.IsBuildingInCaptureRange(u, b) {
			return Decision{Action: CaptureBuilding, Destination: u.Pos, TargetBuildingID: b.ID}
		}
		return moveToBuilding(b)
	}
	if policy.IsBuildingInRange(u, b) {
		return Decision{Action: AttackBuilding, Destination: u.Pos, TargetBuildingID: b.ID}
	}
	return moveToBuilding(b)
}

func moveToBuilding(b *building.Building) Decision {
	return Decision{Action: MoveToBuilding, Destination: b.Tiles[0], TargetBuildingID: b.ID}
}

// rally follows the rally marker: a friendly building sends the unit to one of
// its reserve tiles, a hostile or capturable one is engaged, and open ground
// becomes a defend position.
func (s *Selector) rally(u *unit.Unit, ctx *Context) Decision {
	b, ok := s.world.BuildingAt(ctx.Rally)
	if !ok {
		ctx.Defend = &DefendAssignment{Tile: ctx.Rally}
		return Decision{Action: DefendPosition, Destination: ctx.Rally}
	}
	if b.Team == u.Team {
		tile, found := b.ReserveTileFor(u.ID, func(c hexgrid.Coord) bool { return s.freeFor(u.ID, c) })
		if found && b.AssignReserve(u.ID, tile) {
			ctx.Defend = &DefendAssignment{BuildingID: b.ID, Tile: tile}
			return Decision{Action: DefendPosition, Destination: tile, TargetBuildingID: b.ID}
		}
		return moveToBuilding(b)
	}
	if s.world.Policy().IsValidBuildingTarget(u, b) {
		return s.engageBuilding(u, b)
	}
	return moveToBuilding(b)
}

func (s *Selector) freeFor(unitID string, c hexgrid.Coord) bool {
	t, ok := s.world.Grid().Tile(c)
	if !ok || !t.Traversable() || t.BuildingID != "" {
		return false
	}
	if t.UnitID != "" && t.UnitID != unitID {
		return false
	}
	return !s.world.Reservations().IsReservedByOther(c, unitID)
}
