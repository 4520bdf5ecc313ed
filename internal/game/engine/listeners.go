package engine

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/hexbeat/internal/game/building"
	"github.com/cory-johannsen/hexbeat/internal/game/capture"
	"github.com/cory-johannsen/hexbeat/internal/game/executor"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/game/unit"
	"github.com/cory-johannsen/hexbeat/internal/game/world"
	"github.com/cory-johannsen/hexbeat/internal/journal"
)

// The listener methods below are invoked by the world and the capture ledger
// while an engine method holds e.mu; they must never lock it.

// OnUnitSpawned implements world.LifecycleListener.
func (e *Engine) OnUnitSpawned(u *unit.Unit) {
	pos := u.Pos
	e.record(journal.Event{Kind: journal.UnitSpawned, UnitID: u.ID, Team: u.Team, Coord: &pos, Detail: u.TemplateID})
}

// OnUnitRemoved implements world.LifecycleListener.
//
// Postcondition: The unit's executor is cancelled and its captures and
// decision state are dropped.
func (e *Engine) OnUnitRemoved(u *unit.Unit, reason world.Removal) {
	if a, ok := e.agents[u.ID]; ok {
		if a.exec != nil && a.exec.Status() == executor.Running {
			a.exec.Cancel()
		}
		delete(e.agents, u.ID)
	}
	e.captures.StopAll(u.ID)
	e.contexts.Remove(u.ID)
	e.logger.Info("unit removed", zap.String("unit", u.ID), zap.Stringer("reason", reason))
	pos := u.Pos
	e.record(journal.Event{Kind: journal.UnitRemoved, UnitID: u.ID, Team: u.Team, Coord: &pos, Detail: reason.String()})
}

// OnBuildingDestroyed implements world.LifecycleListener.
func (e *Engine) OnBuildingDestroyed(b *building.Building) {
	e.captures.Unregister(b.ID)
	e.logger.Info("building destroyed", zap.String("building", b.ID))
	e.record(journal.Event{Kind: journal.BuildingDestroyed, BuildingID: b.ID, Team: b.Team})
}

// OnStrike implements world.LifecycleListener.
func (e *Engine) OnStrike(attacker *unit.Unit, targetID string, dealt int) {
	e.record(journal.Event{Kind: journal.StrikeLanded, UnitID: attacker.ID, TargetID: targetID, Team: attacker.Team, Amount: float64(dealt)})
}

// OnBuildingTeamChanged implements world.TeamChangedListener.
func (e *Engine) OnBuildingTeamChanged(b *building.Building, old, t team.Team) {
	e.record(journal.Event{Kind: journal.BuildingTeamChanged, BuildingID: b.ID, Team: t, PrevTeam: old})
}

// OnCaptureStarted implements capture.Listener.
func (e *Engine) OnCaptureStarted(s capture.State) {
	e.record(journal.Event{Kind: journal.CaptureStarted, BuildingID: s.BuildingID, Team: s.Team, Amount: s.Progress, Units: s.Contributors})
}

// OnCaptureProgress implements capture.Listener.
func (e *Engine) OnCaptureProgress(s capture.State) {
	if ce := e.logger.Check(zap.DebugLevel, "capture progress"); ce != nil {
		ce.Write(zap.String("building", s.BuildingID), zap.Float64("progress", s.Progress), zap.Float64("threshold", s.Threshold))
	}
}

// OnCaptureInterrupted implements capture.Listener.
func (e *Engine) OnCaptureInterrupted(buildingID string, interrupted team.Team, unitIDs []string) {
	e.record(journal.Event{Kind: journal.CaptureInterrupted, BuildingID: buildingID, Team: interrupted, Units: unitIDs})
}

// OnCaptureCompleted implements capture.Listener.
func (e *Engine) OnCaptureCompleted(s capture.State) {
	e.record(journal.Event{Kind: journal.CaptureCompleted, BuildingID: s.BuildingID, Team: s.Team, Amount: s.Progress, Units: s.Contributors})
}
