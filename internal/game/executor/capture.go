package executor

import (
	"errors"

	"github.com/cory-johannsen/hexbeat/internal/game/beat"
	"github.com/cory-johannsen/hexbeat/internal/game/building"
	"github.com/cory-johannsen/hexbeat/internal/game/capture"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/game/unit"
)

// Capture contributes the unit to a building's capture until the building
// becomes ours, changes hands otherwise, or the unit is interrupted or leaves range.
type Capture struct {
	base
	startTeam team.Team
}

// Start implements Executor.
func (c *Capture) Start() Status {
	b, ok := c.building()
	if !ok || b.Destroyed() {
		return c.finish(Success, "target building gone")
	}
	c.startTeam = b.Team
	if b.Team == c.unit.Team {
		return c.complete(b)
	}
	if err := c.env.Captures.StartCapture(b.ID, c.unit.Team, c.unit.ID); err != nil {
		if errors.Is(err, capture.ErrAlreadyOwned) {
			return c.complete(b)
		}
		return c.finish(Failure, err.Error())
	}
	c.unit.SetActivity(unit.Capturing)
	c.subscribe(c)
	return Running
}

// OnBeat implements beat.Listener.
func (c *Capture) OnBeat(beat.Beat) {
	if !c.running() {
		return
	}
	b, ok := c.building()
	switch {
	case !ok || b.Destroyed():
		c.stop(Success, "target building gone")
	case b.Team == c.unit.Team:
		c.complete(b)
	case b.Team != c.startTeam:
		c.stop(Success, "target building changed hands")
	case !c.env.Captures.IsContributing(b.ID, c.unit.ID):
		c.finish(Failure, "capture interrupted")
	case !c.env.World.Policy().IsBuildingInCaptureRange(c.unit, b):
		c.stop(Failure, "out of capture range")
	default:
		c.unit.BeatsCapturing = c.env.Captures.BeatsContributed(b.ID, c.unit.ID)
	}
}

// Cancel implements Executor.
func (c *Capture) Cancel() {
	if c.status == Running {
		c.stop(Failure, "cancelled")
	}
}

func (c *Capture) building() (*building.Building, bool) {
	return c.env.World.Building(c.decision.TargetBuildingID)
}

func (c *Capture) stop(s Status, reason string) Status {
	c.env.Captures.StopCapturing(c.decision.TargetBuildingID, c.unit.ID)
	return c.finish(s, reason)
}

func (c *Capture) complete(b *building.Building) Status {
	if c.ctx.Objective == b.ID {
		c.ctx.ObjectiveDone = true
	}
	return c.stop(Success, "building captured")
}
