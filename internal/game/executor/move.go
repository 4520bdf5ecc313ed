package executor

import (
	"errors"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hexbeat/internal/game/ai"
	"github.com/cory-johannsen/hexbeat/internal/game/beat"
	"github.com/cory-johannsen/hexbeat/internal/game/building"
	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/pathfind"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/game/unit"
	"github.com/cory-johannsen/hexbeat/internal/game/world"
)

// Move takes one step toward the decision's engagement tiles. It reserves the
// next tile, moves onto it when the movement gate fires, then releases the
// reservation. With defend set it walks onto the destination itself and puts
// the unit in defensive mode on arrival.
type Move struct {
	base
	defend    bool
	next      hexgrid.Coord
	holding   bool
	startTeam team.Team
}

// Start implements Executor.
func (m *Move) Start() Status {
	m.unit.SetActivity(unit.Moving)
	m.gate = beat.NewGate(m.unit.MovementDelay)
	if b, ok := m.targetBuilding(); ok {
		m.startTeam = b.Team
	}
	if done, reason := m.stale(); done {
		return m.finish(Success, reason)
	}
	m.status = Running
	if s := m.plan(); s != Running {
		return s
	}
	m.subscribe(m)
	return Running
}

// OnBeat implements beat.Listener.
func (m *Move) OnBeat(beat.Beat) {
	if !m.running() {
		return
	}
	if done, reason := m.stale(); done {
		m.finishMove(Success, reason)
		return
	}
	if !m.holding && m.plan() != Running {
		return
	}
	if !m.holding || !m.gate.Tick() {
		return
	}
	if err := m.env.World.MoveUnit(m.unit, m.next); err != nil {
		m.env.Logger.Warn("move blocked", zap.String("unit", m.unit.ID), zap.Error(err))
		m.release()
		return
	}
	m.release()
	if m.defend && m.unit.Pos == m.decision.Destination {
		m.unit.Defensive = true
	}
	m.finish(Success, "stepped")
}

// Cancel implements Executor.
func (m *Move) Cancel() {
	if m.status != Running {
		return
	}
	m.finishMove(Failure, "cancelled")
}

func (m *Move) finishMove(s Status, reason string) Status {
	m.release()
	return m.finish(s, reason)
}

func (m *Move) release() {
	if m.holding {
		m.env.World.Reservations().Release(m.next, m.unit.ID)
		m.holding = false
	}
}

func (m *Move) targetBuilding() (*building.Building, bool) {
	if m.decision.TargetBuildingID == "" {
		return nil, false
	}
	return m.env.World.Building(m.decision.TargetBuildingID)
}

// stale reports whether the move target is gone.
func (m *Move) stale() (bool, string) {
	switch m.decision.Action {
	case ai.MoveToUnit:
		t, ok := m.env.World.Unit(m.decision.TargetUnitID)
		if !ok || !t.Alive() {
			return true, "target unit gone"
		}
	case ai.MoveToBuilding:
		b, ok := m.targetBuilding()
		if !ok || b.Destroyed() {
			return true, "target building gone"
		}
		if b.Team != m.startTeam {
			return true, "target building changed hands"
		}
	}
	return false, ""
}

func (m *Move) request() pathfind.Request {
	req := pathfind.Request{UnitID: m.unit.ID, Team: m.unit.Team, Start: m.unit.Pos}
	switch m.decision.Action {
	case ai.MoveToUnit:
		t, _ := m.env.World.Unit(m.decision.TargetUnitID)
		req.Targets = []hexgrid.Coord{t.Pos}
		req.Range = m.unit.AttackRange
	case ai.MoveToBuilding:
		b, _ := m.targetBuilding()
		req.Targets = b.Tiles
		if world.CapturableBy(b, m.unit.Team) {
			req.Range = world.CaptureRange
		} else {
			req.Range = m.unit.AttackRange
			req.EnterTarget = true
		}
	default:
		req.Targets = []hexgrid.Coord{m.decision.Destination}
		req.Range = 0
	}
	return req
}

// direct picks the standable neighbour closest to the target tiles, provided
// it is strictly closer than the unit's own tile. It ignores the engagement
// set, so it makes progress when every engagement tile is cut off.
func (m *Move) direct(req pathfind.Request) (hexgrid.Coord, bool) {
	best, ok := hexgrid.MinDistance(req.Start, req.Targets)
	if !ok {
		return hexgrid.Coord{}, false
	}
	var next hexgrid.Coord
	found := false
	for _, c := range req.Start.Neighbors() {
		if !m.env.Finder.Standable(req, c) {
			continue
		}
		if d, _ := hexgrid.MinDistance(c, req.Targets); d < best {
			best, next, found = d, c, true
		}
	}
	return next, found
}

// plan computes the path and reserves its first step.
//
// Postcondition: Returns Success if already in position, Failure if no path
// exists, Running otherwise (holding the next tile or waiting for it).
func (m *Move) plan() Status {
	req := m.request()
	if m.decision.Fallback {
		return m.planDirect(req)
	}
	res, err := m.env.Finder.Find(req)
	if err != nil {
		if errors.Is(err, pathfind.ErrNoPath) {
			if m.decision.Fallback {
				m.ctx.FallbackFailed = true
			} else {
				m.ctx.PathFailed = true
			}
		}
		return m.finishMove(Failure, err.Error())
	}
	next, ok := res.Next()
	if !ok {
		if m.defend {
			m.unit.Defensive = true
		}
		return m.finishMove(Success, "in position")
	}
	if m.env.World.Reservations().TryReserve(next, m.unit.ID) {
		m.next = next
		m.holding = true
	}
	return Running
}

// planDirect is the one-cycle fallback after a failed path search: a single
// greedy step toward the target instead of a path to an engagement tile.
func (m *Move) planDirect(req pathfind.Request) Status {
	if d, ok := hexgrid.MinDistance(req.Start, req.Targets); ok && d <= req.Range {
		if m.defend {
			m.unit.Defensive = true
		}
		return m.finishMove(Success, "in position")
	}
	next, ok := m.direct(req)
	if !ok {
		m.ctx.FallbackFailed = true
		return m.finishMove(Failure, "no closer tile")
	}
	if m.env.World.Reservations().TryReserve(next, m.unit.ID) {
		m.next = next
		m.holding = true
	}
	return Running
}
