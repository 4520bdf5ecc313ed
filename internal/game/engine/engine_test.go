package engine_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/hexbeat/internal/game/beat"
	"github.com/cory-johannsen/hexbeat/internal/game/building"
	"github.com/cory-johannsen/hexbeat/internal/game/engine"
	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/reservation"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/game/unit"
	"github.com/cory-johannsen/hexbeat/internal/game/world"
	"github.com/cory-johannsen/hexbeat/internal/journal"
)

type recorder struct {
	mu     sync.Mutex
	events []journal.Event
}

func (r *recorder) Record(ev journal.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(k journal.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == k {
			n++
		}
	}
	return n
}

func (r *recorder) first(k journal.Kind) (journal.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Kind == k {
			return ev, true
		}
	}
	return journal.Event{}, false
}

func newEngine(t *testing.T, cols, rows int) (*engine.Engine, *recorder) {
	t.Helper()
	n := 0
	w := world.New(hexgrid.NewRect(cols, rows), reservation.NewLedger(), world.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("u%d", n)
	}))
	rec := &recorder{}
	e := engine.New(engine.Deps{
		World:      w,
		Bus:        beat.NewBus(),
		Logger:     zaptest.NewLogger(t),
		Recorder:   rec,
		CheerBeats: 2,
	})
	return e, rec
}

func soldier() *unit.Template {
	tmpl := unit.DefaultTemplate()
	tmpl.ID = "soldier"
	tmpl.Name = "Soldier"
	tmpl.MaxHealth = 10
	tmpl.Attack = 3
	return &tmpl
}

func TestNew_PanicsOnMissingDeps(t *testing.T) {
	w := world.New(hexgrid.NewRect(2, 2), reservation.NewLedger())
	log := zaptest.NewLogger(t)
	assert.Panics(t, func() { engine.New(engine.Deps{Bus: beat.NewBus(), Logger: log}) })
	assert.Panics(t, func() { engine.New(engine.Deps{World: w, Logger: log}) })
	assert.Panics(t, func() { engine.New(engine.Deps{World: w, Bus: beat.NewBus()}) })
}

func TestEngine_ThreeUnitsCaptureInFourBeatsThenDespawn(t *testing.T) {
	e, rec := newEngine(t, 8, 4)
	_, err := e.AddBuilding(building.Spec{
		ID:        "mill",
		Tiles:     []hexgrid.Coord{hexgrid.C(4, 1)},
		MaxHealth: 20,
		Capture:   &building.CaptureConfig{BeatsToCapture: 12},
	})
	require.NoError(t, err)
	for _, c := range []hexgrid.Coord{hexgrid.C(4, 0), hexgrid.C(3, 1), hexgrid.C(5, 1)} {
		require.Equal(t, 1, hexgrid.Distance(c, hexgrid.C(4, 1)))
		_, err := e.Spawn(soldier(), team.Player, c, engine.Orders{Objective: "mill"})
		require.NoError(t, err)
	}

	// Beat 1 starts the capture; beats 2-4 accumulate 9 points.
	e.Advance(4, 0)
	snap := e.Snapshot()
	owner, ok := snap.Owner("mill")
	require.True(t, ok)
	assert.Equal(t, team.Neutral, owner)
	require.Len(t, snap.Captures, 1)
	assert.Equal(t, 9.0, snap.Captures[0].Progress)
	assert.Equal(t, team.Player, snap.Captures[0].Team)
	for _, u := range snap.Units {
		assert.Equal(t, "capturing", u.Activity)
	}

	e.Advance(1, 0)
	owner, _ = e.Snapshot().Owner("mill")
	assert.Equal(t, team.Player, owner)
	assert.Equal(t, 1, rec.count(journal.BuildingTeamChanged))
	assert.Equal(t, 1, rec.count(journal.CaptureCompleted))
	assert.Equal(t, 3, rec.count(journal.CaptureStarted))
	done, ok := rec.first(journal.CaptureCompleted)
	require.True(t, ok)
	assert.Equal(t, uint64(5), done.Beat)

	ctx, ok := e.Context("u1")
	require.True(t, ok)
	assert.True(t, ctx.ObjectiveDone)

	// Objective complete: the units cheer for two beats, then leave.
	e.Advance(1, 0)
	assert.Equal(t, 3, e.Snapshot().CountUnits(team.Player))
	e.Advance(1, 0)
	assert.Zero(t, e.Snapshot().CountUnits(team.Player))
	assert.Equal(t, 3, rec.count(journal.UnitRemoved))
	removed, _ := rec.first(journal.UnitRemoved)
	assert.Equal(t, "despawned", removed.Detail)
	_, ok = e.Context("u1")
	assert.False(t, ok)
}

func TestEngine_DuelEndsWithOneSurvivor(t *testing.T) {
	e, rec := newEngine(t, 6, 3)
	a, err := e.Spawn(soldier(), team.Player, hexgrid.C(1, 1), engine.Orders{})
	require.NoError(t, err)
	b, err := e.Spawn(soldier(), team.Enemy, hexgrid.C(4, 1), engine.Orders{})
	require.NoError(t, err)
	require.LessOrEqual(t, hexgrid.Distance(a.Pos, b.Pos), soldier().DetectionRange, "the duelists must see each other")

	e.Advance(40, 0)
	snap := e.Snapshot()
	require.Len(t, snap.Units, 1)
	assert.GreaterOrEqual(t, rec.count(journal.StrikeLanded), 4)
	assert.Equal(t, 1, rec.count(journal.UnitRemoved))
	ev, _ := rec.first(journal.UnitRemoved)
	assert.Equal(t, "killed", ev.Detail)
	assert.NotEqual(t, snap.Units[0].ID, ev.UnitID)
	strike, _ := rec.first(journal.StrikeLanded)
	assert.Equal(t, 3.0, strike.Amount)
}

func TestEngine_DestroyedBuildingDropsCaptureState(t *testing.T) {
	e, rec := newEngine(t, 5, 3)
	_, err := e.AddBuilding(building.Spec{
		ID:        "keep",
		Team:      team.Player,
		Tiles:     []hexgrid.Coord{hexgrid.C(2, 1)},
		MaxHealth: 3,
		Capture:   &building.CaptureConfig{},
	})
	require.NoError(t, err)
	require.Len(t, e.Snapshot().Captures, 1)

	_, err = e.Spawn(soldier(), team.Enemy, hexgrid.C(2, 0), engine.Orders{Objective: "keep"})
	require.NoError(t, err)

	e.Advance(2, 0)
	snap := e.Snapshot()
	assert.Empty(t, snap.Buildings)
	assert.Empty(t, snap.Captures)
	assert.Equal(t, 1, rec.count(journal.BuildingDestroyed))
	ctx, ok := e.Context("u1")
	require.True(t, ok)
	assert.True(t, ctx.ObjectiveDone)
}

func TestEngine_RallyOnOpenGroundDefends(t *testing.T) {
	e, rec := newEngine(t, 8, 8)
	u, err := e.Spawn(soldier(), team.Player, hexgrid.C(0, 0), engine.Orders{})
	require.NoError(t, err)

	require.NoError(t, e.IssueRally(team.Player, hexgrid.C(4, 4)))
	e.Advance(20, 0)

	snap := e.Snapshot()
	require.Len(t, snap.Units, 1)
	assert.Equal(t, hexgrid.C(4, 4), snap.Units[0].Pos)
	assert.True(t, snap.Units[0].Defensive)
	assert.Equal(t, []engine.RallyView{{Team: team.Player, At: hexgrid.C(4, 4)}}, snap.Rallies)

	ev, ok := rec.first(journal.RallyIssued)
	require.True(t, ok)
	assert.Equal(t, 1.0, ev.Amount)

	// Units spawned later inherit the marker.
	late, err := e.Spawn(soldier(), team.Player, hexgrid.C(7, 7), engine.Orders{})
	require.NoError(t, err)
	ctx, ok := e.Context(late.ID)
	require.True(t, ok)
	assert.True(t, ctx.HasRally)
	assert.Equal(t, hexgrid.C(4, 4), ctx.Rally)

	// A new rally lifts defensive mode.
	require.NoError(t, e.IssueRally(team.Player, hexgrid.C(1, 1)))
	v, _ := e.Context(u.ID)
	assert.Equal(t, hexgrid.C(1, 1), v.Rally)
	assert.False(t, e.Snapshot().Units[0].Defensive)
}

func TestEngine_IssueRallyRejectsInvalidOrders(t *testing.T) {
	e, _ := newEngine(t, 3, 3)
	assert.ErrorIs(t, e.IssueRally(team.Neutral, hexgrid.C(1, 1)), engine.ErrInvalidRally)
	assert.ErrorIs(t, e.IssueRally(team.Player, hexgrid.C(9, 9)), engine.ErrInvalidRally)
	_, ok := e.Rally(team.Player)
	assert.False(t, ok)
}

func TestEngine_SpawnAndAddBuildingErrors(t *testing.T) {
	e, _ := newEngine(t, 4, 4)
	spec := building.Spec{ID: "hut", Tiles: []hexgrid.Coord{hexgrid.C(1, 1)}, MaxHealth: 5}
	_, err := e.AddBuilding(spec)
	require.NoError(t, err)
	_, err = e.AddBuilding(spec)
	assert.Error(t, err)

	_, err = e.Spawn(soldier(), team.Player, hexgrid.C(1, 1), engine.Orders{})
	assert.Error(t, err)
	_, err = e.Spawn(soldier(), team.Player, hexgrid.C(0, 0), engine.Orders{})
	require.NoError(t, err)
	_, err = e.Spawn(soldier(), team.Enemy, hexgrid.C(0, 0), engine.Orders{})
	assert.Error(t, err)
	assert.Empty(t, e.Snapshot().Captures, "non-capturable buildings have no capture state")
}

func TestEngine_RunStopsWhenChannelCloses(t *testing.T) {
	e, _ := newEngine(t, 3, 3)
	beats := make(chan beat.Beat, 3)
	next := beat.Sequence(0)
	for i := 0; i < 3; i++ {
		beats <- next()
	}
	close(beats)
	require.NoError(t, e.Run(context.Background(), beats))
	assert.Equal(t, uint64(3), e.Beat())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Run(ctx, make(chan beat.Beat)), context.Canceled)
}

func TestSnapshot_JSONUsesNames(t *testing.T) {
	e, _ := newEngine(t, 3, 3)
	_, err := e.Spawn(soldier(), team.Enemy, hexgrid.C(2, 2), engine.Orders{Objective: "hq"})
	require.NoError(t, err)
	b, err := json.Marshal(e.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(b), `"team":"enemy"`)
	assert.Contains(t, string(b), `"action":"idle"`)
	assert.Contains(t, string(b), `"objective":"hq"`)

	var back engine.Snapshot
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, e.Snapshot(), back)
}

func TestEngine_RunCallsAfterListenersOutsideLock(t *testing.T) {
	e, _ := newEngine(t, 3, 3)
	beats := make(chan beat.Beat, 2)
	next := beat.Sequence(0)
	beats <- next()
	beats <- next()
	close(beats)

	var seen []uint64
	after := beat.ListenerFunc(func(b beat.Beat) {
		// Re-entering the engine must not deadlock.
		seen = append(seen, e.Beat())
	})
	require.NoError(t, e.Run(context.Background(), beats, after))
	assert.Equal(t, []uint64{1, 2}, seen)
}
