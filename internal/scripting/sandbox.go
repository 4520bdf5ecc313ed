// Package scripting runs sandboxed GopherLua scripts that override the
// targeting and range rules units decide with. Scripts see plain tables, never
// live simulation objects.
package scripting

import (
	"context"
	"errors"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the maximum number of Lua opcodes one hook call
// may execute when no override is configured.
const DefaultInstructionLimit = 100_000

// ErrInstructionLimit is reported by a hook that ran out of instructions.
var ErrInstructionLimit = errors.New("lua instruction limit exceeded")

var closed = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Budget is an opcode allowance for a Lua state. GopherLua's main loop calls
// Done once per opcode, so counting Done calls is an exact instruction limit.
// Unlike a cancelled context, a Budget can be refilled between calls.
type Budget struct {
	context.Context
	limit     int64
	remaining atomic.Int64
}

func newBudget(limit int) *Budget {
	b := &Budget{Context: context.Background(), limit: int64(limit)}
	b.remaining.Store(b.limit)
	return b
}

// Done returns a closed channel once the allowance is spent, and a nil
// channel, which never fires, before that.
func (b *Budget) Done() <-chan struct{} {
	if b.remaining.Add(-1) < 0 {
		return closed
	}
	return nil
}

// Err implements context.Context.
func (b *Budget) Err() error {
	if b.remaining.Load() < 0 {
		return ErrInstructionLimit
	}
	return nil
}

// Reset refills the allowance.
func (b *Budget) Reset() { b.remaining.Store(b.limit) }

// Limit returns the allowance per call.
func (b *Budget) Limit() int { return int(b.limit) }

// NewSandboxedState creates a GopherLua LState with:
//   - Only safe stdlib loaded: base, table, string, math
//   - Dangerous globals removed: dofile, loadfile, load, collectgarbage, require
//   - Execution limited by the returned Budget
//
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: The caller owns the LState and must call L.Close() when done.
func NewSandboxedState(instLimit int) (*lua.LState, *Budget) {
	limit := instLimit
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	budget := newBudget(limit)
	L.SetContext(budget)
	return L, budget
}
