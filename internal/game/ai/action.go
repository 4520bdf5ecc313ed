// Package ai selects what each unit does next. A Selector reads the world and
// a unit's typed Context and writes a Decision; executors carry it out.
package ai

import (
	"fmt"

	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
)

// Action is the kind of a decision.
type Action int

const (
	Idle Action = iota
	MoveToUnit
	MoveToBuilding
	AttackUnit
	AttackBuilding
	CaptureBuilding
	DefendPosition
	Despawn
)

var actionNames = [...]string{
	Idle:            "idle",
	MoveToUnit:      "move_to_unit",
	MoveToBuilding:  "move_to_building",
	AttackUnit:      "attack_unit",
	AttackBuilding:  "attack_building",
	CaptureBuilding: "capture_building",
	DefendPosition:  "defend_position",
	Despawn:         "despawn",
}

// String returns the snake_case action name.
func (a Action) String() string {
	if a >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(b []byte) error {
	for i, n := range actionNames {
		if n == string(b) {
			*a = Action(i)
			return nil
		}
	}
	return fmt.Errorf("ai.Action: unknown action %q", b)
}

// Moves reports whether the action walks the unit toward its destination.
func (a Action) Moves() bool {
	return a == MoveToUnit || a == MoveToBuilding || a == DefendPosition
}

// Decision is one unit's current intent.
type Decision struct {
	Action Action `json:"action"`
	// Destination is the tile the unit is heading to. For attack and capture
	// actions it is the unit's own tile.
	Destination      hexgrid.Coord `json:"destination"`
	TargetUnitID     string        `json:"target_unit_id,omitempty"`
	TargetBuildingID string        `json:"target_building_id,omitempty"`
	// Fallback replaces the path search with one greedy step toward the
	// target after a failed search.
	Fallback bool `json:"fallback,omitempty"`
}

// String formats the decision for logs.
func (d Decision) String() string {
	switch {
	case d.TargetUnitID != "":
		return fmt.Sprintf("%s unit=%s dest=%s", d.Action, d.TargetUnitID, d.Destination)
	case d.TargetBuildingID != "":
		return fmt.Sprintf("%s building=%s dest=%s", d.Action, d.TargetBuildingID, d.Destination)
	default:
		return fmt.Sprintf("%s dest=%s", d.Action, d.Destination)
	}
}
