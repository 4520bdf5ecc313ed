package ai_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/hexbeat/internal/game/ai"
	"github.com/cory-johannsen/hexbeat/internal/game/building"
	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/reservation"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/game/unit"
	"github.com/cory-johannsen/hexbeat/internal/game/world"
)

func soldier() *unit.Template {
	tmpl := unit.DefaultTemplate()
	tmpl.ID = "soldier"
	tmpl.Name = "Soldier"
	tmpl.MaxHealth = 10
	tmpl.Attack = 3
	return &tmpl
}

type fixture struct {
	world    *world.World
	selector *ai.Selector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	n := 0
	w := world.New(hexgrid.NewRect(12, 12), reservation.NewLedger(), world.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("u%d", n)
	}))
	return &fixture{world: w, selector: ai.NewSelector(w, zaptest.NewLogger(t))}
}

func (f *fixture) spawn(t *testing.T, tm team.Team, c hexgrid.Coord) (*unit.Unit, *ai.Context) {
	t.Helper()
	u, err := f.world.Spawn(soldier(), tm, c)
	require.NoError(t, err)
	return u, ai.NewContext(u.ID, "")
}

func (f *fixture) building(t *testing.T, spec building.Spec) *building.Building {
	t.Helper()
	if spec.MaxHealth == 0 {
		spec.MaxHealth = 10
	}
	b, err := f.world.AddBuilding(spec)
	require.NoError(t, err)
	return b
}

func TestNewSelector_PanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { ai.NewSelector(nil, zaptest.NewLogger(t)) })
	assert.Panics(t, func() { ai.NewScanner(nil) })
}

func TestDecide_IdleWithNothingToDo(t *testing.T) {
	f := newFixture(t)
	u, ctx := f.spawn(t, team.Player, hexgrid.C(0, 0))
	d := f.selector.Decide(u, ctx, 7)
	assert.Equal(t, ai.Idle, d.Action)
	assert.Equal(t, uint64(7), ctx.LastDecisionBeat)
}

func TestDecide_BusyUnitKeepsDecision(t *testing.T) {
	f := newFixture(t)
	u, ctx := f.spawn(t, team.Player, hexgrid.C(0, 0))
	_, _ = f.spawn(t, team.Enemy, hexgrid.C(1, 0))
	ctx.Decision = ai.Decision{Action: ai.MoveToUnit, Destination: hexgrid.C(9, 9), TargetUnitID: "u2"}
	u.SetActivity(unit.Moving)
	assert.Equal(t, ctx.Decision, f.selector.Decide(u, ctx, 1))
}

func TestDecide_HostileUnitInRangeIsAttacked(t *testing.T) {
	f := newFixture(t)
	u, ctx := f.spawn(t, team.Player, hexgrid.C(2, 2))
	enemy, _ := f.spawn(t, team.Enemy, hexgrid.C(3, 2))
	d := f.selector.Decide(u, ctx, 1)
	assert.Equal(t, ai.AttackUnit, d.Action)
	assert.Equal(t, enemy.ID, d.TargetUnitID)
	assert.Equal(t, u.Pos, d.Destination)
	assert.Equal(t, enemy.ID, ctx.Detected.UnitID)
}

func TestDecide_DetectedHostileIsChased(t *testing.T) {
	f := newFixture(t)
	u, ctx := f.spawn(t, team.Player, hexgrid.C(2, 2))
	enemy, _ := f.spawn(t, team.Enemy, hexgrid.C(5, 2))
	d := f.selector.Decide(u, ctx, 1)
	assert.Equal(t, ai.MoveToUnit, d.Action)
	assert.Equal(t, enemy.Pos, d.Destination)

	_, _ = f.spawn(t, team.Enemy, hexgrid.C(2, 8))
	d = f.selector.Decide(u, ctx, 2)
	assert.Equal(t, enemy.ID, d.TargetUnitID, "far unit outside detection")
}

func TestDecide_DefensiveUnitDoesNotChase(t *testing.T) {
	f := newFixture(t)
	u, ctx := f.spawn(t, team.Player, hexgrid.C(2, 2))
	_, _ = f.spawn(t, team.Enemy, hexgrid.C(5, 2))
	ctx.Defend = &ai.DefendAssignment{Tile: u.Pos}
	u.Defensive = true

	d := f.selector.Decide(u, ctx, 1)
	assert.Equal(t, ai.DefendPosition, d.Action)
	assert.Equal(t, u.Pos, d.Destination)

	near, _ := f.spawn(t, team.Enemy, hexgrid.C(2, 3))
	d = f.selector.Decide(u, ctx, 2)
	assert.Equal(t, ai.AttackUnit, d.Action)
	assert.Equal(t, near.ID, d.TargetUnitID)
}

func TestDecide_CapturableBuilding(t *testing.T) {
	f := newFixture(t)
	u, ctx := f.spawn(t, team.Player, hexgrid.C(2, 2))
	mill := f.building(t, building.Spec{ID: "mill", Tiles: []hexgrid.Coord{{Col: 4, Row: 2}}, Capture: &building.CaptureConfig{}})

	d := f.selector.Decide(u, ctx, 1)
	assert.Equal(t, ai.MoveToBuilding, d.Action)
	assert.Equal(t, mill.ID, d.TargetBuildingID)
	assert.Equal(t, hexgrid.C(4, 2), d.Destination)

	require.NoError(t, f.world.MoveUnit(u, hexgrid.C(3, 2)))
	d = f.selector.Decide(u, ctx, 2)
	assert.Equal(t, ai.CaptureBuilding, d.Action)
	assert.Equal(t, u.Pos, d.Destination)
}

func TestDecide_HostileBuildingIsAttacked(t *testing.T) {
	f := newFixture(t)
	u, ctx := f.spawn(t, team.Player, hexgrid.C(2, 2))
	_ = f.building(t, building.Spec{ID: "camp", Team: team.Enemy, Tiles: []hexgrid.Coord{{Col: 3, Row: 2}}})
	d := f.selector.Decide(u, ctx, 1)
	assert.Equal(t, ai.AttackBuilding, d.Action)
	assert.Equal(t, "camp", d.TargetBuildingID)
}

func TestDecide_ObjectiveOutranksRally(t *testing.T) {
	f := newFixture(t)
	u, _ := f.spawn(t, team.Player, hexgrid.C(0, 0))
	_ = f.building(t, building.Spec{ID: "keep", Team: team.Enemy, Tiles: []hexgrid.Coord{{Col: 10, Row: 10}}})
	ctx := ai.NewContext(u.ID, "keep")
	ctx.SetRally(hexgrid.C(0, 5))

	d := f.selector.Decide(u, ctx, 1)
	assert.Equal(t, ai.MoveToBuilding, d.Action)
	assert.Equal(t, "keep", d.TargetBuildingID)
}

func TestDecide_CompletedObjectiveDespawns(t *testing.T) {
	f := newFixture(t)
	u, _ := f.spawn(t, team.Player, hexgrid.C(0, 0))
	_ = f.building(t, building.Spec{ID: "mill", Team: team.Player, Tiles: []hexgrid.Coord{{Col: 10, Row: 10}}, Capture: &building.CaptureConfig{}})
	ctx := ai.NewContext(u.ID, "mill")

	d := f.selector.Decide(u, ctx, 1)
	assert.Equal(t, ai.Despawn, d.Action)
	assert.True(t, ctx.ObjectiveDone)

	ctx.SetRally(hexgrid.C(5, 5))
	d = f.selector.Decide(u, ctx, 2)
	assert.Equal(t, ai.DefendPosition, d.Action, "a rally keeps the unit in play")
}

type rejectBuildings struct{ world.DefaultPolicy }

func (rejectBuildings) IsValidBuildingTarget(*unit.Unit, *building.Building) bool { return false }

func TestDecide_PolicyRejectedObjectiveIsKept(t *testing.T) {
	w := world.New(hexgrid.NewRect(12, 12), reservation.NewLedger(), world.WithPolicy(rejectBuildings{}))
	sel := ai.NewSelector(w, zaptest.NewLogger(t))
	u, err := w.Spawn(soldier(), team.Player, hexgrid.C(0, 0))
	require.NoError(t, err)
	tower, err := w.AddBuilding(building.Spec{ID: "tower", Team: team.Enemy, Tiles: []hexgrid.Coord{{Col: 8, Row: 8}}, MaxHealth: 30})
	require.NoError(t, err)
	ctx := ai.NewContext(u.ID, "tower")

	d := sel.Decide(u, ctx, 1)
	assert.Equal(t, ai.Idle, d.Action)
	assert.False(t, ctx.ObjectiveDone)
	assert.False(t, tower.Destroyed())

	ctx.SetRally(hexgrid.C(4, 4))
	d = sel.Decide(u, ctx, 2)
	assert.Equal(t, ai.DefendPosition, d.Action)
	assert.Equal(t, hexgrid.C(4, 4), d.Destination)
	assert.False(t, ctx.ObjectiveDone)
}

func TestDecide_RallyOnOpenGroundDefends(t *testing.T) {
	f := newFixture(t)
	u, ctx := f.spawn(t, team.Player, hexgrid.C(0, 0))
	ctx.SetRally(hexgrid.C(6, 6))
	d := f.selector.Decide(u, ctx, 1)
	assert.Equal(t, ai.DefendPosition, d.Action)
	assert.Equal(t, hexgrid.C(6, 6), d.Destination)
	require.NotNil(t, ctx.Defend)
	assert.Empty(t, ctx.Defend.BuildingID)
}

func TestDecide_RallyOnFriendlyBuildingUsesReserveTiles(t *testing.T) {
	f := newFixture(t)
	fort := f.building(t, building.Spec{
		ID:           "fort",
		Team:         team.Player,
		Tiles:        []hexgrid.Coord{{Col: 8, Row: 8}},
		ReserveTiles: []hexgrid.Coord{{Col: 7, Row: 8}, {Col: 9, Row: 8}},
	})
	first, c1 := f.spawn(t, team.Player, hexgrid.C(0, 0))
	second, c2 := f.spawn(t, team.Player, hexgrid.C(0, 2))
	third, c3 := f.spawn(t, team.Player, hexgrid.C(0, 4))
	for _, c := range []*ai.Context{c1, c2, c3} {
		c.SetRally(hexgrid.C(8, 8))
	}

	d := f.selector.Decide(first, c1, 1)
	assert.Equal(t, ai.DefendPosition, d.Action)
	assert.Equal(t, hexgrid.C(7, 8), d.Destination)
	assert.Equal(t, "fort", d.TargetBuildingID)

	d = f.selector.Decide(second, c2, 1)
	assert.Equal(t, hexgrid.C(9, 8), d.Destination)

	d = f.selector.Decide(third, c3, 1)
	assert.Equal(t, ai.MoveToBuilding, d.Action, "no reserve tile left")

	d = f.selector.Decide(first, c1, 2)
	assert.Equal(t, hexgrid.C(7, 8), d.Destination, "assignment is stable")
	holder, _ := fort.ReserveAssignee(hexgrid.C(7, 8))
	assert.Equal(t, first.ID, holder)
}

func TestDecide_PathFallback(t *testing.T) {
	f := newFixture(t)
	u, ctx := f.spawn(t, team.Player, hexgrid.C(2, 2))
	_, _ = f.spawn(t, team.Enemy, hexgrid.C(5, 2))

	ctx.PathFailed = true
	d := f.selector.Decide(u, ctx, 1)
	assert.Equal(t, ai.MoveToUnit, d.Action)
	assert.True(t, d.Fallback)
	assert.False(t, ctx.PathFailed)

	ctx.FallbackFailed = true
	d = f.selector.Decide(u, ctx, 2)
	assert.Equal(t, ai.Idle, d.Action)

	d = f.selector.Decide(u, ctx, 3)
	assert.Equal(t, ai.MoveToUnit, d.Action)
	assert.False(t, d.Fallback)
}

func TestScanner_TieGoesToEarlierSpawn(t *testing.T) {
	f := newFixture(t)
	u, _ := f.spawn(t, team.Player, hexgrid.C(4, 4))
	a, _ := f.spawn(t, team.Enemy, hexgrid.C(4, 6))
	_, _ = f.spawn(t, team.Enemy, hexgrid.C(4, 2))
	got, ok := ai.NewScanner(f.world).NearestUnit(u)
	require.True(t, ok)
	assert.Equal(t, a.ID, got.ID)
}

func TestRegistry(t *testing.T) {
	reg := ai.NewRegistry()
	require.NoError(t, reg.Register(ai.NewContext("b", "")))
	require.NoError(t, reg.Register(ai.NewContext("a", "keep")))
	assert.Error(t, reg.Register(ai.NewContext("a", "")))

	ctx, ok := reg.For("a")
	require.True(t, ok)
	assert.Equal(t, "keep", ctx.Objective)
	assert.Equal(t, []string{"a", "b"}, reg.IDs())

	reg.Remove("a")
	_, ok = reg.For("a")
	assert.False(t, ok)
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "capture_building", ai.CaptureBuilding.String())
	assert.Equal(t, "action(42)", ai.Action(42).String())
	assert.True(t, ai.DefendPosition.Moves())
	assert.False(t, ai.AttackUnit.Moves())
}
