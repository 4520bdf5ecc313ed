package app

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hexbeat/internal/game/beat"
)

// BeatLoop drives a Simulation from a real-time clock. It is a lifecycle
// service: Start blocks until Stop.
type BeatLoop struct {
	sim    *Simulation
	clock  *beat.Clock
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewBeatLoop creates a loop ticking at bpm.
//
// Precondition: sim must be non-nil; bpm > 0.
func NewBeatLoop(sim *Simulation, bpm float64, logger *zap.Logger) *BeatLoop {
	if sim == nil {
		panic("app.NewBeatLoop: simulation must not be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BeatLoop{
		sim:    sim,
		clock:  beat.NewClock(bpm),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Clock returns the loop's clock.
func (l *BeatLoop) Clock() *beat.Clock { return l.clock }

// Start runs the engine until Stop.
func (l *BeatLoop) Start() error {
	beats := make(chan beat.Beat, 4)
	l.clock.Subscribe(beats)
	defer l.clock.Unsubscribe(beats)
	stop := l.clock.Start()
	defer stop()

	l.logger.Info("beat loop running", zap.Duration("interval", l.clock.Interval()))
	err := l.sim.Engine.Run(l.ctx, beats, l.sim.Director)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop ends Start.
func (l *BeatLoop) Stop() { l.once.Do(l.cancel) }
