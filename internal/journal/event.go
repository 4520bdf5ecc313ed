// Package journal records simulation events asynchronously and fans them out
// to durable sinks.
package journal

import (
	"context"
	"time"

	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
)

// Kind names an event type.
type Kind string

const (
	UnitSpawned         Kind = "unit_spawned"
	UnitRemoved         Kind = "unit_removed"
	StrikeLanded        Kind = "strike_landed"
	CaptureStarted      Kind = "capture_started"
	CaptureInterrupted  Kind = "capture_interrupted"
	CaptureCompleted    Kind = "capture_completed"
	BuildingTeamChanged Kind = "building_team_changed"
	BuildingDestroyed   Kind = "building_destroyed"
	RallyIssued         Kind = "rally_issued"
)

// Event is one journaled occurrence.
type Event struct {
	Seq        uint64         `json:"seq"`
	Beat       uint64         `json:"beat"`
	At         time.Time      `json:"at"`
	Kind       Kind           `json:"kind"`
	UnitID     string         `json:"unit_id,omitempty"`
	TargetID   string         `json:"target_id,omitempty"`
	BuildingID string         `json:"building_id,omitempty"`
	Team       team.Team      `json:"team,omitempty"`
	PrevTeam   team.Team      `json:"prev_team,omitempty"`
	Coord      *hexgrid.Coord `json:"coord,omitempty"`
	Amount     float64        `json:"amount,omitempty"`
	Units      []string       `json:"units,omitempty"`
	Detail     string         `json:"detail,omitempty"`
}

// Sink persists batches of events.
type Sink interface {
	WriteEvents(ctx context.Context, events []Event) error
	Close() error
}

// Discard is a Recorder target that drops every event.
type Discard struct{}

// Record implements the engine's recorder contract.
func (Discard) Record(Event) {}
