package executor

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/hexbeat/internal/game/ai"
	"github.com/cory-johannsen/hexbeat/internal/game/beat"
	"github.com/cory-johannsen/hexbeat/internal/game/building"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/game/unit"
)

// Attack strikes a unit or building each time the attack gate fires until the
// target dies, is destroyed, changes hands, or leaves range.
type Attack struct {
	base
	startTeam team.Team
}

// Start implements Executor.
func (a *Attack) Start() Status {
	a.unit.SetActivity(unit.Attacking)
	a.gate = beat.NewGate(a.unit.AttackDelay)
	if b, ok := a.building(); ok {
		a.startTeam = b.Team
	}
	a.status = Running
	if s := a.check(); s != Running {
		return s
	}
	a.subscribe(a)
	return Running
}

// OnBeat implements beat.Listener.
func (a *Attack) OnBeat(beat.Beat) {
	if !a.running() || a.check() != Running || !a.gate.Tick() {
		return
	}
	switch a.decision.Action {
	case ai.AttackUnit:
		target, _ := a.env.World.Unit(a.decision.TargetUnitID)
		dealt, killed := a.env.World.StrikeUnit(a.unit, target)
		a.env.Logger.Debug("strike",
			zap.String("unit", a.unit.ID),
			zap.String("target", target.ID),
			zap.Int("dealt", dealt),
			zap.Int("health", target.Health),
		)
		if killed {
			a.finish(Success, "target killed")
		}
	case ai.AttackBuilding:
		b, _ := a.building()
		dealt, destroyed := a.env.World.StrikeBuilding(a.unit, b)
		a.env.Logger.Debug("strike",
			zap.String("unit", a.unit.ID),
			zap.String("building", b.ID),
			zap.Int("dealt", dealt),
			zap.Int("health", b.Health),
		)
		if destroyed {
			if a.ctx.Objective == b.ID {
				a.ctx.ObjectiveDone = true
			}
			a.finish(Success, "building destroyed")
		}
	}
}

// Cancel implements Executor.
func (a *Attack) Cancel() {
	if a.status == Running {
		a.finish(Failure, "cancelled")
	}
}

func (a *Attack) building() (*building.Building, bool) {
	if a.decision.TargetBuildingID == "" {
		return nil, false
	}
	return a.env.World.Building(a.decision.TargetBuildingID)
}

// check ends the attack when the attacker or target is no longer valid.
func (a *Attack) check() Status {
	if !a.unit.Alive() {
		return a.finish(Failure, "attacker gone")
	}
	policy := a.env.World.Policy()
	switch a.decision.Action {
	case ai.AttackUnit:
		target, ok := a.env.World.Unit(a.decision.TargetUnitID)
		if !ok || !target.Alive() {
			return a.finish(Success, "target unit gone")
		}
		if !policy.IsUnitInRange(a.unit, target) {
			return a.finish(Failure, "target out of range")
		}
	case ai.AttackBuilding:
		b, ok := a.building()
		if !ok || b.Destroyed() {
			return a.finish(Success, "target building gone")
		}
		if b.Team != a.startTeam {
			return a.finish(Success, "target building changed hands")
		}
		if !policy.IsBuildingInRange(a.unit, b) {
			return a.finish(Failure, "target building out of range")
		}
	}
	return Running
}
