package executor

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/hexbeat/internal/game/beat"
	"github.com/cory-johannsen/hexbeat/internal/game/world"
)

// Despawn lets a unit that finished its objective linger for CheerBeats
// beats, then removes it from the world.
type Despawn struct {
	base
}

// Start implements Executor.
func (d *Despawn) Start() Status {
	if d.env.CheerBeats <= 0 {
		return d.remove()
	}
	d.gate = beat.NewGate(d.env.CheerBeats)
	d.subscribe(d)
	return Running
}

// OnBeat implements beat.Listener.
func (d *Despawn) OnBeat(beat.Beat) {
	if d.running() && d.gate.Tick() {
		d.remove()
	}
}

// Cancel implements Executor.
func (d *Despawn) Cancel() {
	if d.status == Running {
		d.finish(Failure, "cancelled")
	}
}

// remove finishes before removing the unit so that removal listeners see a
// completed executor.
func (d *Despawn) remove() Status {
	s := d.finish(Success, "despawned")
	if err := d.env.World.RemoveUnit(d.unit.ID, world.Despawned); err != nil {
		d.env.Logger.Warn("despawn failed", zap.String("unit", d.unit.ID), zap.Error(err))
	}
	return s
}
