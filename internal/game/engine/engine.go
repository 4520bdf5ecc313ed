// Package engine drives the simulation: on every beat it advances in-flight
// executors, reaps the finished ones, and runs the decision cycle for each
// unit in spawn order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hexbeat/internal/game/ai"
	"github.com/cory-johannsen/hexbeat/internal/game/beat"
	"github.com/cory-johannsen/hexbeat/internal/game/building"
	"github.com/cory-johannsen/hexbeat/internal/game/capture"
	"github.com/cory-johannsen/hexbeat/internal/game/executor"
	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/pathfind"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/game/unit"
	"github.com/cory-johannsen/hexbeat/internal/game/world"
	"github.com/cory-johannsen/hexbeat/internal/journal"
)

// DefaultCheerBeats is how long a unit lingers after completing its objective.
const DefaultCheerBeats = 4

// ErrInvalidRally is returned when a rally order names a team that cannot be
// commanded or a coordinate outside the grid.
var ErrInvalidRally = errors.New("invalid rally order")

// Recorder receives journal events. *journal.Recorder satisfies it.
type Recorder interface {
	Record(ev journal.Event)
}

// Deps carries the engine's collaborators. World, Bus and Logger are
// required; the remaining services are built from World when nil.
type Deps struct {
	World    *world.World
	Bus      *beat.Bus
	Logger   *zap.Logger
	Captures *capture.Ledger
	Finder   *pathfind.Finder
	Selector *ai.Selector
	Recorder Recorder
	// CheerBeats overrides DefaultCheerBeats when > 0.
	CheerBeats int
}

// Orders are the standing orders a unit spawns with.
type Orders struct {
	// Objective is the ID of the building the unit should take or destroy.
	Objective string
	// Rally, when set, overrides the team's current rally marker.
	Rally *hexgrid.Coord
}

type agent struct {
	unit *unit.Unit
	ctx  *ai.Context
	exec executor.Executor
}

// Engine owns the simulation state. All exported methods are safe for
// concurrent use; beats, orders and snapshots are serialized by one mutex.
type Engine struct {
	mu       sync.Mutex
	world    *world.World
	bus      *beat.Bus
	captures *capture.Ledger
	selector *ai.Selector
	env      *executor.Env
	recorder Recorder
	logger   *zap.Logger

	agents   map[string]*agent
	contexts *ai.Registry
	rallies  map[team.Team]hexgrid.Coord
	beat     beat.Beat
}

// New wires an Engine.
//
// Precondition: deps.World, deps.Bus and deps.Logger must be non-nil.
// Postcondition: The engine is registered as world and capture listener.
func New(deps Deps) *Engine {
	if deps.World == nil {
		panic("engine.New: world must not be nil")
	}
	if deps.Bus == nil {
		panic("engine.New: bus must not be nil")
	}
	if deps.Logger == nil {
		panic("engine.New: logger must not be nil")
	}
	w := deps.World
	if deps.Captures == nil {
		deps.Captures = capture.NewLedger(deps.Bus, w, deps.Logger)
	}
	if deps.Finder == nil {
		deps.Finder = pathfind.NewFinder(w.Grid(), w.Reservations(), w)
	}
	if deps.Selector == nil {
		deps.Selector = ai.NewSelector(w, deps.Logger)
	}
	if deps.Recorder == nil {
		deps.Recorder = journal.Discard{}
	}
	if deps.CheerBeats <= 0 {
		deps.CheerBeats = DefaultCheerBeats
	}
	e := &Engine{
		world:    w,
		bus:      deps.Bus,
		captures: deps.Captures,
		selector: deps.Selector,
		recorder: deps.Recorder,
		logger:   deps.Logger,
		env: &executor.Env{
			World:      w,
			Bus:        deps.Bus,
			Finder:     deps.Finder,
			Captures:   deps.Captures,
			Logger:     deps.Logger,
			CheerBeats: deps.CheerBeats,
		},
		agents:   make(map[string]*agent),
		contexts: ai.NewRegistry(),
		rallies:  make(map[team.Team]hexgrid.Coord),
	}
	w.AddLifecycleListener(e)
	w.AddTeamChangedListener(e)
	deps.Captures.AddListener(e)
	return e
}

// World returns the simulated world. Callers other than the engine must treat
// it as read-only and must not call it while a beat is being processed
// except through Snapshot.
func (e *Engine) World() *world.World { return e.world }

// Grid returns the world grid, for registering tile observers.
func (e *Engine) Grid() *hexgrid.Grid { return e.world.Grid() }

// Beat returns the index of the last processed beat.
func (e *Engine) Beat() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.beat.Index
}

// AddBuilding creates a building and, when it is capturable, registers its
// capture state.
func (e *Engine) AddBuilding(spec building.Spec) (*building.Building, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.world.AddBuilding(spec)
	if err != nil {
		return nil, fmt.Errorf("engine.AddBuilding: %w", err)
	}
	if b.Capturable() {
		cfg := capture.Config{Threshold: float64(b.Capture.BeatsToCapture), Recapturable: b.Capture.Recapturable}
		if err := e.captures.Register(b.ID, cfg); err != nil {
			return nil, fmt.Errorf("engine.AddBuilding: %w", err)
		}
	}
	return b, nil
}

// Spawn places a new unit with its standing orders. A unit without an
// explicit rally inherits its team's current rally marker.
//
// Postcondition: Returns the unit, which takes part in the next decision cycle.
func (e *Engine) Spawn(tmpl *unit.Template, t team.Team, at hexgrid.Coord, orders Orders) (*unit.Unit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	u, err := e.world.Spawn(tmpl, t, at)
	if err != nil {
		return nil, fmt.Errorf("engine.Spawn: %w", err)
	}
	ctx := ai.NewContext(u.ID, orders.Objective)
	switch {
	case orders.Rally != nil:
		ctx.SetRally(*orders.Rally)
	default:
		if r, ok := e.rallies[t]; ok {
			ctx.SetRally(r)
		}
	}
	if err := e.contexts.Register(ctx); err != nil {
		return nil, fmt.Errorf("engine.Spawn: %w", err)
	}
	e.agents[u.ID] = &agent{unit: u, ctx: ctx}
	return u, nil
}

// IssueRally sets the rally marker of every unit of team t, and of units of t
// spawned later. Units holding a defend position give it up and re-decide.
//
// Postcondition: Returns an error wrapping ErrInvalidRally when t cannot
// capture or at is not on the grid.
func (e *Engine) IssueRally(t team.Team, at hexgrid.Coord) error {
	if !t.CanCapture() {
		return fmt.Errorf("engine.IssueRally: team %s: %w", t, ErrInvalidRally)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.world.Grid().Tile(at); !ok {
		return fmt.Errorf("engine.IssueRally: tile %s: %w", at, ErrInvalidRally)
	}
	e.rallies[t] = at

	buildings := e.world.Buildings()
	n := 0
	for _, id := range e.contexts.IDs() {
		a := e.agents[id]
		if a == nil || a.unit.Team != t {
			continue
		}
		a.ctx.SetRally(at)
		a.unit.Defensive = false
		for _, b := range buildings {
			b.ReleaseReserve(id)
		}
		if a.exec != nil && a.exec.Status() == executor.Running && a.exec.Action() == ai.DefendPosition {
			a.exec.Cancel()
			a.exec = nil
		}
		n++
	}
	e.logger.Info("rally issued", zap.Stringer("team", t), zap.Stringer("at", at), zap.Int("units", n))
	coord := at
	e.record(journal.Event{Kind: journal.RallyIssued, Team: t, Coord: &coord, Amount: float64(n)})
	return nil
}

// Rally returns the current rally marker of team t.
func (e *Engine) Rally(t team.Team) (hexgrid.Coord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.rallies[t]
	return c, ok
}

// OnBeat processes one beat.
//
// Postcondition: In-flight executors and captures advanced by one beat;
// finished executors were reaped; every idle living unit decided, in spawn
// order, and started its next executor.
func (e *Engine) OnBeat(b beat.Beat) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beat = b
	e.bus.Publish(b)

	for _, u := range e.world.Units() {
		a, ok := e.agents[u.ID]
		if !ok || !u.Alive() {
			continue
		}
		if a.exec != nil {
			if a.exec.Status() == executor.Running {
				continue
			}
			a.exec = nil
		}
		d := e.selector.Decide(u, a.ctx, b.Index)
		if d.Action == ai.Idle {
			continue
		}
		exec, err := executor.New(e.env, u, a.ctx)
		if err != nil {
			e.logger.Warn("no executor for decision", zap.String("unit", u.ID), zap.Error(err))
			continue
		}
		if exec.Start() == executor.Running {
			a.exec = exec
		}
	}
}

// Advance processes n consecutive beats of duration d without a clock.
func (e *Engine) Advance(n int, d time.Duration) {
	for i := 0; i < n; i++ {
		e.OnBeat(beat.Beat{Index: e.Beat() + 1, Duration: d})
	}
}

// Run feeds beats to OnBeat until ctx is done or beats is closed. Each after
// listener is called once the engine has processed the beat, outside the
// engine lock, so it may call back into the engine.
func (e *Engine) Run(ctx context.Context, beats <-chan beat.Beat, after ...beat.Listener) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-beats:
			if !ok {
				return nil
			}
			start := time.Now()
			e.OnBeat(b)
			for _, l := range after {
				l.OnBeat(b)
			}
			if ce := e.logger.Check(zap.DebugLevel, "beat"); ce != nil {
				ce.Write(zap.Uint64("index", b.Index), zap.Duration("elapsed", time.Since(start)))
			}
		}
	}
}

// Context returns a copy of the decision state of unit id.
func (e *Engine) Context(id string) (ai.Context, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.contexts.For(id)
	if !ok {
		return ai.Context{}, false
	}
	return *c, true
}

func (e *Engine) record(ev journal.Event) {
	ev.Beat = e.beat.Index
	e.recorder.Record(ev)
}
