// Package world is the registry of live units and buildings. It keeps them in
// spawn order, mirrors their positions onto the grid, applies damage and
// ownership changes, and notifies listeners.
package world

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hexbeat/internal/game/building"
	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/reservation"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/game/unit"
)

// ErrUnknownBuilding is returned for building IDs the world does not hold.
var ErrUnknownBuilding = errors.New("unknown building")

// ErrUnknownUnit is returned for unit IDs the world does not hold.
var ErrUnknownUnit = errors.New("unknown unit")

// Removal explains why a unit left the world.
type Removal int

const (
	// Killed units lost all health in combat.
	Killed Removal = iota
	// Despawned units left after completing their objective.
	Despawned
)

// String returns the removal reason.
func (r Removal) String() string {
	if r == Despawned {
		return "despawned"
	}
	return "killed"
}

// TeamChangedListener is notified exactly once per building ownership transfer.
type TeamChangedListener interface {
	OnBuildingTeamChanged(b *building.Building, oldTeam, newTeam team.Team)
}

// LifecycleListener is notified of entities entering and leaving the world
// and of landed strikes.
type LifecycleListener interface {
	OnUnitSpawned(u *unit.Unit)
	OnUnitRemoved(u *unit.Unit, reason Removal)
	OnBuildingDestroyed(b *building.Building)
	OnStrike(attacker *unit.Unit, targetID string, dealt int)
}

// Option customizes a World.
type Option func(*World)

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(w *World) { w.policy = p }
}

// WithLogger sets the logger used for failures that have no caller to return to.
func WithLogger(logger *zap.Logger) Option {
	return func(w *World) { w.logger = logger }
}

// WithIDGenerator replaces the UUID generator used for unit IDs.
func WithIDGenerator(gen func() string) Option {
	return func(w *World) { w.newID = gen }
}

// World owns every live unit and building.
//
// The registry maps are guarded by an RWMutex; the units and buildings
// themselves are mutated only by the engine goroutine.
type World struct {
	mu            sync.RWMutex
	grid          *hexgrid.Grid
	ledger        *reservation.Ledger
	policy        Policy
	newID         func() string
	logger        *zap.Logger
	units         map[string]*unit.Unit
	unitOrder     []string
	buildings     map[string]*building.Building
	buildingOrder []string

	teamListeners      []TeamChangedListener
	lifecycleListeners []LifecycleListener
}

// New creates an empty World on grid.
//
// Precondition: grid and ledger must be non-nil.
// Postcondition: Returns a World using DefaultPolicy and UUID unit IDs unless overridden.
func New(grid *hexgrid.Grid, ledger *reservation.Ledger, opts ...Option) *World {
	if grid == nil {
		panic("world.New: grid must not be nil")
	}
	if ledger == nil {
		panic("world.New: ledger must not be nil")
	}
	w := &World{
		grid:      grid,
		ledger:    ledger,
		policy:    DefaultPolicy{},
		newID:     uuid.NewString,
		logger:    zap.NewNop(),
		units:     make(map[string]*unit.Unit),
		buildings: make(map[string]*building.Building),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Grid returns the grid the world is placed on.
func (w *World) Grid() *hexgrid.Grid { return w.grid }

// Reservations returns the tile reservation ledger.
func (w *World) Reservations() *reservation.Ledger { return w.ledger }

// Policy returns the capability policy.
func (w *World) Policy() Policy { return w.policy }

// AddTeamChangedListener registers l.
func (w *World) AddTeamChangedListener(l TeamChangedListener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.teamListeners = append(w.teamListeners, l)
}

// AddLifecycleListener registers l.
func (w *World) AddLifecycleListener(l LifecycleListener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lifecycleListeners = append(w.lifecycleListeners, l)
}

// Spawn creates a unit from tmpl owned by t and places it at pos.
//
// Precondition: tmpl must be non-nil; pos must be a free traversable tile without a building.
// Postcondition: Returns the new unit registered after all earlier spawns, or an error.
func (w *World) Spawn(tmpl *unit.Template, t team.Team, pos hexgrid.Coord) (*unit.Unit, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("world.Spawn: tmpl must not be nil")
	}
	if tile, ok := w.grid.Tile(pos); ok && tile.BuildingID != "" {
		return nil, fmt.Errorf("world.Spawn: tile %s holds building %q", pos, tile.BuildingID)
	}
	u := unit.New(w.newID(), tmpl, t, pos)
	if err := w.grid.PlaceUnit(pos, u.ID); err != nil {
		return nil, fmt.Errorf("world.Spawn: %w", err)
	}

	w.mu.Lock()
	w.units[u.ID] = u
	w.unitOrder = append(w.unitOrder, u.ID)
	listeners := w.lifecycleListeners
	w.mu.Unlock()

	for _, l := range listeners {
		l.OnUnitSpawned(u)
	}
	return u, nil
}

// AddBuilding creates a building from spec and marks its footprint on the grid.
//
// Postcondition: Returns the building, or an error on invalid spec, duplicate ID,
// or an occupied footprint.
func (w *World) AddBuilding(spec building.Spec) (*building.Building, error) {
	b, err := building.New(spec)
	if err != nil {
		return nil, fmt.Errorf("world.AddBuilding: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, dup := w.buildings[b.ID]; dup {
		return nil, fmt.Errorf("world.AddBuilding: duplicate building id %q", b.ID)
	}
	for _, c := range b.ReserveTiles() {
		if _, ok := w.grid.Tile(c); !ok {
			return nil, fmt.Errorf("world.AddBuilding: building %q reserve tile %s is off the grid", b.ID, c)
		}
	}
	if err := w.grid.PlaceBuilding(b.ID, b.Tiles); err != nil {
		return nil, fmt.Errorf("world.AddBuilding: %w", err)
	}
	w.buildings[b.ID] = b
	w.buildingOrder = append(w.buildingOrder, b.ID)
	return b, nil
}

// Unit returns the live unit with id.
//
// Postcondition: Returns (u, true) if found, or (nil, false) otherwise.
func (w *World) Unit(id string) (*unit.Unit, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	u, ok := w.units[id]
	return u, ok
}

// Building returns the building with id, including destroyed ones still registered.
func (w *World) Building(id string) (*building.Building, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	b, ok := w.buildings[id]
	return b, ok
}

// Units returns a snapshot of live units in spawn order.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (w *World) Units() []*unit.Unit {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*unit.Unit, 0, len(w.unitOrder))
	for _, id := range w.unitOrder {
		out = append(out, w.units[id])
	}
	return out
}

// Buildings returns a snapshot of standing buildings in registration order.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (w *World) Buildings() []*building.Building {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*building.Building, 0, len(w.buildingOrder))
	for _, id := range w.buildingOrder {
		out = append(out, w.buildings[id])
	}
	return out
}

// UnitAt returns the unit standing on c.
func (w *World) UnitAt(c hexgrid.Coord) (*unit.Unit, bool) {
	tile, ok := w.grid.Tile(c)
	if !ok || tile.UnitID == "" {
		return nil, false
	}
	return w.Unit(tile.UnitID)
}

// BuildingAt returns the building occupying c.
func (w *World) BuildingAt(c hexgrid.Coord) (*building.Building, bool) {
	tile, ok := w.grid.Tile(c)
	if !ok || tile.BuildingID == "" {
		return nil, false
	}
	return w.Building(tile.BuildingID)
}

// BuildingTeam returns the team owning building id.
func (w *World) BuildingTeam(id string) (team.Team, bool) {
	b, ok := w.Building(id)
	if !ok {
		return team.None, false
	}
	return b.Team, true
}

// MoveUnit relocates u to an unoccupied traversable tile.
//
// Postcondition: u.Pos == to and the grid reflects the move, or an error is returned.
func (w *World) MoveUnit(u *unit.Unit, to hexgrid.Coord) error {
	if err := w.grid.MoveUnit(u.Pos, to, u.ID); err != nil {
		return fmt.Errorf("world.MoveUnit: %w", err)
	}
	u.Pos = to
	return nil
}

// StrikeUnit applies one strike from attacker to target.
//
// Postcondition: Returns the damage dealt and whether the target died; a
// killed target has been removed from the world.
func (w *World) StrikeUnit(attacker, target *unit.Unit) (dealt int, killed bool) {
	if attacker == nil || target == nil || !target.Alive() {
		return 0, false
	}
	before := target.Health
	killed = target.TakeDamage(unit.Damage(attacker.Attack, target.Defense))
	dealt = before - target.Health
	w.notifyStrike(attacker, target.ID, dealt)
	if killed {
		if err := w.RemoveUnit(target.ID, Killed); err != nil {
			w.logger.Warn("removing killed unit", zap.String("unit", target.ID), zap.Error(err))
		}
	}
	return dealt, killed
}

// StrikeBuilding applies one strike from attacker to b.
//
// Postcondition: Returns the damage dealt and whether the building was destroyed
// by this strike; a destroyed building's footprint is cleared from the grid.
func (w *World) StrikeBuilding(attacker *unit.Unit, b *building.Building) (dealt int, destroyed bool) {
	if attacker == nil || b == nil {
		return 0, false
	}
	dealt, destroyed = b.TakeDamage(attacker.Attack)
	w.notifyStrike(attacker, b.ID, dealt)
	if destroyed {
		w.destroyBuilding(b)
	}
	return dealt, destroyed
}

func (w *World) notifyStrike(attacker *unit.Unit, targetID string, dealt int) {
	if dealt <= 0 {
		return
	}
	w.mu.RLock()
	listeners := w.lifecycleListeners
	w.mu.RUnlock()
	for _, l := range listeners {
		l.OnStrike(attacker, targetID, dealt)
	}
}

func (w *World) destroyBuilding(b *building.Building) {
	w.mu.Lock()
	for i, id := range w.buildingOrder {
		if id == b.ID {
			w.buildingOrder = append(w.buildingOrder[:i:i], w.buildingOrder[i+1:]...)
			break
		}
	}
	listeners := w.lifecycleListeners
	w.mu.Unlock()
	w.grid.ClearBuilding(b.ID, b.Tiles)
	for _, l := range listeners {
		l.OnBuildingDestroyed(b)
	}
}

// RemoveUnit takes a unit out of the world, clearing its tile, its
// reservations, and its reserve-tile assignments.
//
// Postcondition: Returns an error wrapping ErrUnknownUnit if id is not registered.
func (w *World) RemoveUnit(id string, reason Removal) error {
	w.mu.Lock()
	u, ok := w.units[id]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("world.RemoveUnit %q: %w", id, ErrUnknownUnit)
	}
	delete(w.units, id)
	for i, cur := range w.unitOrder {
		if cur == id {
			w.unitOrder = append(w.unitOrder[:i:i], w.unitOrder[i+1:]...)
			break
		}
	}
	buildings := make([]*building.Building, 0, len(w.buildings))
	for _, b := range w.buildings {
		buildings = append(buildings, b)
	}
	listeners := w.lifecycleListeners
	w.mu.Unlock()

	if reason == Despawned {
		u.Despawn()
	}
	w.grid.ClearUnit(u.Pos, u.ID)
	w.ledger.ReleaseAll(u.ID)
	for _, b := range buildings {
		b.ReleaseReserve(u.ID)
	}
	for _, l := range listeners {
		l.OnUnitRemoved(u, reason)
	}
	return nil
}

// SetBuildingTeam changes the owner of building id.
//
// Postcondition: If the team changed, listeners were notified exactly once and
// the footprint tiles were re-announced to grid observers.
func (w *World) SetBuildingTeam(id string, t team.Team) error {
	w.mu.RLock()
	b, ok := w.buildings[id]
	listeners := w.teamListeners
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("world.SetBuildingTeam %q: %w", id, ErrUnknownBuilding)
	}
	if b.Team == t {
		return nil
	}
	old := b.Team
	b.Team = t
	w.grid.Touch(b.Tiles)
	for _, l := range listeners {
		l.OnBuildingTeamChanged(b, old, t)
	}
	return nil
}

// TransferBuilding implements the capture ledger's ownership hook.
func (w *World) TransferBuilding(id string, to team.Team) error {
	return w.SetBuildingTeam(id, to)
}

// InCaptureRange reports whether the unit stands within capture range of the building.
func (w *World) InCaptureRange(unitID, buildingID string) bool {
	u, ok := w.Unit(unitID)
	if !ok {
		return false
	}
	b, ok := w.Building(buildingID)
	if !ok || b.Destroyed() {
		return false
	}
	return w.policy.IsBuildingInCaptureRange(u, b)
}
