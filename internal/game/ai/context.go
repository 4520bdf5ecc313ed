package ai

import (
	"fmt"
	"sort"

	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
)

// DefendAssignment is a defend position the unit was routed to by a rally.
// BuildingID is empty when the rally marker is on open ground.
type DefendAssignment struct {
	BuildingID string
	Tile       hexgrid.Coord
}

// Detection holds the nearest targets found by the last scan.
type Detection struct {
	UnitID     string
	BuildingID string
}

// Context is the per-unit decision state.
type Context struct {
	UnitID   string
	Decision Decision

	// Objective is the building the unit was spawned to take or destroy.
	Objective     string
	ObjectiveDone bool

	Rally    hexgrid.Coord
	HasRally bool
	Defend   *DefendAssignment

	Detected Detection

	// PathFailed is set by a mover whose path search failed; the next decision
	// steps directly toward the target once. FallbackFailed is set when no
	// neighbouring tile was closer.
	PathFailed     bool
	FallbackFailed bool

	LastDecisionBeat uint64
}

// NewContext returns the Context of a newly spawned unit.
func NewContext(unitID, objective string) *Context {
	return &Context{UnitID: unitID, Objective: objective}
}

// SetRally replaces the rally marker and drops any defend assignment.
func (c *Context) SetRally(at hexgrid.Coord) {
	c.Rally = at
	c.HasRally = true
	c.Defend = nil
}

// ClearRally removes the rally marker and any defend assignment.
func (c *Context) ClearRally() {
	c.Rally = hexgrid.Coord{}
	c.HasRally = false
	c.Defend = nil
}

// HasOrders reports whether a rally or defend assignment is pending.
func (c *Context) HasOrders() bool { return c.HasRally || c.Defend != nil }

// Registry holds one Context per unit.
//
// Invariant: each unit ID is registered at most once.
type Registry struct {
	contexts map[string]*Context
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{contexts: make(map[string]*Context)}
}

// Register stores ctx under its unit ID.
//
// Precondition: ctx must not be nil.
// Postcondition: returns error on unit ID collision.
func (r *Registry) Register(ctx *Context) error {
	if ctx == nil {
		panic("ai.Registry.Register: ctx must not be nil")
	}
	if _, exists := r.contexts[ctx.UnitID]; exists {
		return fmt.Errorf("ai.Registry: unit %q already registered", ctx.UnitID)
	}
	r.contexts[ctx.UnitID] = ctx
	return nil
}

// For returns the Context for unitID, or false if not registered.
func (r *Registry) For(unitID string) (*Context, bool) {
	c, ok := r.contexts[unitID]
	return c, ok
}

// Remove drops the Context for unitID.
func (r *Registry) Remove(unitID string) {
	delete(r.contexts, unitID)
}

// IDs returns the registered unit IDs in sorted order.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.contexts))
	for id := range r.contexts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
