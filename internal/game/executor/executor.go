// Package executor carries out unit decisions as beat-gated state machines.
// Each executor subscribes to the beat bus while it runs and applies at most
// one discrete effect (a step, a strike) when its gate fires.
package executor

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hexbeat/internal/game/ai"
	"github.com/cory-johannsen/hexbeat/internal/game/beat"
	"github.com/cory-johannsen/hexbeat/internal/game/capture"
	"github.com/cory-johannsen/hexbeat/internal/game/pathfind"
	"github.com/cory-johannsen/hexbeat/internal/game/unit"
	"github.com/cory-johannsen/hexbeat/internal/game/world"
)

// Status is the state of an executor.
type Status int

const (
	Running Status = iota
	Success
	Failure
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Success:
		return "success"
	case Failure:
		return "failure"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Executor runs one decision to completion.
type Executor interface {
	beat.Listener
	// Action is the decision kind being executed.
	Action() ai.Action
	// Start begins execution; a non-Running result means the executor finished
	// without subscribing.
	Start() Status
	Status() Status
	// Cancel stops execution and releases everything the executor holds.
	Cancel()
}

// Env carries the services executors act on.
type Env struct {
	World    *world.World
	Bus      *beat.Bus
	Finder   *pathfind.Finder
	Captures *capture.Ledger
	Logger   *zap.Logger
	// CheerBeats is how long a despawning unit lingers.
	CheerBeats int
}

// New returns the executor for ctx.Decision. Idle decisions have no executor.
//
// Precondition: env, u and ctx must be non-nil.
// Postcondition: Returns (nil, nil) for Idle, or an error for unknown actions.
func New(env *Env, u *unit.Unit, ctx *ai.Context) (Executor, error) {
	if env == nil || u == nil || ctx == nil {
		panic("executor.New: env, u and ctx must not be nil")
	}
	b := base{env: env, unit: u, ctx: ctx, decision: ctx.Decision}
	switch ctx.Decision.Action {
	case ai.Idle:
		return nil, nil
	case ai.MoveToUnit, ai.MoveToBuilding:
		return &Move{base: b}, nil
	case ai.DefendPosition:
		return &Move{base: b, defend: true}, nil
	case ai.AttackUnit, ai.AttackBuilding:
		return &Attack{base: b}, nil
	case ai.CaptureBuilding:
		return &Capture{base: b}, nil
	case ai.Despawn:
		return &Despawn{base: b}, nil
	}
	return nil, fmt.Errorf("executor.New: unit %q: unsupported action %s", u.ID, ctx.Decision.Action)
}

type base struct {
	env      *Env
	unit     *unit.Unit
	ctx      *ai.Context
	decision ai.Decision
	sub      *beat.Subscription
	status   Status
	gate     beat.Gate
}

func (b *base) Action() ai.Action { return b.decision.Action }

func (b *base) Status() Status { return b.status }

func (b *base) subscribe(l beat.Listener) {
	b.status = Running
	b.sub = b.env.Bus.Subscribe(l)
}

func (b *base) running() bool { return b.status == Running && b.sub.Active() }

// finish ends execution with s.
//
// Postcondition: the subscription is cancelled and the unit is idle.
func (b *base) finish(s Status, reason string) Status {
	b.status = s
	b.sub.Cancel()
	b.unit.SetActivity(unit.Idle)
	if ce := b.env.Logger.Check(zap.DebugLevel, "action finished"); ce != nil {
		ce.Write(
			zap.String("unit", b.unit.ID),
			zap.Stringer("action", b.decision.Action),
			zap.Stringer("status", s),
			zap.String("reason", reason),
		)
	}
	return s
}
