package pathfind_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/pathfind"
	"github.com/cory-johannsen/hexbeat/internal/game/reservation"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
)

type owners map[string]team.Team

func (o owners) BuildingTeam(id string) (team.Team, bool) {
	t, ok := o[id]
	return t, ok
}

func TestNewFinder_PanicsOnNil(t *testing.T) {
	g := hexgrid.NewRect(2, 2)
	l := reservation.NewLedger()
	assert.Panics(t, func() { pathfind.NewFinder(nil, l, owners{}) })
	assert.Panics(t, func() { pathfind.NewFinder(g, nil, owners{}) })
	assert.Panics(t, func() { pathfind.NewFinder(g, l, nil) })
}

func TestFind_RangeOneTowardBuilding(t *testing.T) {
	g := hexgrid.NewRect(6, 4)
	require.NoError(t, g.PlaceBuilding("camp", []hexgrid.Coord{{Col: 3, Row: 0}}))
	f := pathfind.NewFinder(g, reservation.NewLedger(), owners{"camp": team.Enemy})

	res, err := f.Find(pathfind.Request{
		UnitID:  "u1",
		Team:    team.Player,
		Start:   hexgrid.C(0, 0),
		Targets: []hexgrid.Coord{{Col: 3, Row: 0}},
		Range:   1,
	})
	require.NoError(t, err)
	require.Len(t, res.Path, 2)
	last := res.Path[len(res.Path)-1]
	assert.Equal(t, last, res.Goal)
	assert.Equal(t, 1, hexgrid.Distance(last, hexgrid.C(3, 0)))
	next, ok := res.Next()
	require.True(t, ok)
	assert.Equal(t, 1, hexgrid.Distance(next, hexgrid.C(0, 0)))
}

func TestFind_AlreadyInPosition(t *testing.T) {
	g := hexgrid.NewRect(4, 4)
	f := pathfind.NewFinder(g, reservation.NewLedger(), owners{})
	res, err := f.Find(pathfind.Request{UnitID: "u1", Start: hexgrid.C(1, 1), Targets: []hexgrid.Coord{{Col: 2, Row: 1}}, Range: 1})
	require.NoError(t, err)
	assert.Empty(t, res.Path)
	assert.NotNil(t, res.Path)
	assert.Equal(t, hexgrid.C(1, 1), res.Goal)
	_, ok := res.Next()
	assert.False(t, ok)
}

func TestFind_RangeZeroTargetsTheTileItself(t *testing.T) {
	g := hexgrid.NewRect(5, 5)
	f := pathfind.NewFinder(g, reservation.NewLedger(), owners{})
	res, err := f.Find(pathfind.Request{UnitID: "u1", Start: hexgrid.C(0, 0), Targets: []hexgrid.Coord{{Col: 3, Row: 3}}, Range: 0})
	require.NoError(t, err)
	assert.Equal(t, hexgrid.C(3, 3), res.Goal)
	assert.Len(t, res.Path, hexgrid.Distance(hexgrid.C(0, 0), hexgrid.C(3, 3)))
}

func TestFind_EnterFriendlyBuilding(t *testing.T) {
	g := hexgrid.NewRect(5, 3)
	require.NoError(t, g.PlaceBuilding("fort", []hexgrid.Coord{{Col: 4, Row: 1}}))
	require.NoError(t, g.PlaceBuilding("camp", []hexgrid.Coord{{Col: 2, Row: 2}}))
	f := pathfind.NewFinder(g, reservation.NewLedger(), owners{"fort": team.Player, "camp": team.Enemy})

	req := pathfind.Request{UnitID: "u1", Team: team.Player, Start: hexgrid.C(0, 1), Targets: []hexgrid.Coord{{Col: 4, Row: 1}}, Range: 1, EnterTarget: true}
	res, err := f.Find(req)
	require.NoError(t, err)
	assert.Equal(t, hexgrid.C(4, 1), res.Goal)

	assert.True(t, f.Standable(req, hexgrid.C(4, 1)))
	assert.False(t, f.Standable(req, hexgrid.C(2, 2)), "hostile building")
	hostile := req
	hostile.Targets = []hexgrid.Coord{{Col: 2, Row: 2}}
	assert.False(t, f.Standable(hostile, hexgrid.C(2, 2)), "hostile building even as target")

	res, err = f.Find(hostile)
	require.NoError(t, err)
	assert.Equal(t, 1, hexgrid.Distance(res.Goal, hexgrid.C(2, 2)))
}

func TestFind_BuildingTilesAreNotWalkedThrough(t *testing.T) {
	g := hexgrid.NewRect(3, 1)
	require.NoError(t, g.PlaceBuilding("wall", []hexgrid.Coord{{Col: 1, Row: 0}}))
	f := pathfind.NewFinder(g, reservation.NewLedger(), owners{"wall": team.Player})
	_, err := f.Find(pathfind.Request{UnitID: "u1", Team: team.Player, Start: hexgrid.C(0, 0), Targets: []hexgrid.Coord{{Col: 2, Row: 0}}, Range: 0})
	assert.ErrorIs(t, err, pathfind.ErrNoPath)
	assert.False(t, errors.Is(err, pathfind.ErrNoEngagementTile))
}

func TestFind_AvoidsUnitsReservationsAndTerrain(t *testing.T) {
	g, err := hexgrid.LoadMapFromBytes([]byte(`
rows:
  - "....."
  - ".~^#."
  - "....."
`))
	require.NoError(t, err)
	ledger := reservation.NewLedger()
	require.NoError(t, g.PlaceUnit(hexgrid.C(1, 0), "blocker"))
	require.True(t, ledger.TryReserve(hexgrid.C(1, 2), "other"))
	f := pathfind.NewFinder(g, ledger, owners{})

	req := pathfind.Request{UnitID: "u1", Start: hexgrid.C(0, 1), Targets: []hexgrid.Coord{{Col: 4, Row: 1}}, Range: 0}
	for _, c := range []hexgrid.Coord{{Col: 1, Row: 0}, {Col: 1, Row: 1}, {Col: 2, Row: 1}, {Col: 3, Row: 1}, {Col: 1, Row: 2}} {
		assert.False(t, f.Standable(req, c), "tile %s", c)
	}
	_, err = f.Find(req)
	assert.ErrorIs(t, err, pathfind.ErrNoPath)

	ledger.Release(hexgrid.C(1, 2), "other")
	res, err := f.Find(req)
	require.NoError(t, err)
	assert.Equal(t, hexgrid.C(4, 1), res.Goal)
	assert.NotContains(t, res.Path, hexgrid.C(1, 0))
}

func TestFind_NoEngagementTile(t *testing.T) {
	g := hexgrid.NewRect(3, 3)
	require.NoError(t, g.PlaceUnit(hexgrid.C(2, 2), "squatter"))
	f := pathfind.NewFinder(g, reservation.NewLedger(), owners{})
	_, err := f.Find(pathfind.Request{UnitID: "u1", Start: hexgrid.C(0, 0), Targets: []hexgrid.Coord{{Col: 2, Row: 2}}, Range: 0})
	assert.ErrorIs(t, err, pathfind.ErrNoEngagementTile)
	assert.ErrorIs(t, err, pathfind.ErrNoPath)

	_, err = f.Find(pathfind.Request{UnitID: "u1", Start: hexgrid.C(0, 0)})
	assert.ErrorIs(t, err, pathfind.ErrNoEngagementTile)
}

func TestEngagementTiles_ExcludeTargetWhenRanged(t *testing.T) {
	g := hexgrid.NewRect(7, 7)
	f := pathfind.NewFinder(g, reservation.NewLedger(), owners{})
	tiles := f.EngagementTiles(pathfind.Request{UnitID: "u1", Targets: []hexgrid.Coord{{Col: 3, Row: 3}}, Range: 2})
	assert.Len(t, tiles, 18)
	assert.NotContains(t, tiles, hexgrid.C(3, 3))
	for _, c := range tiles {
		assert.LessOrEqual(t, hexgrid.Distance(c, hexgrid.C(3, 3)), 2)
	}
}

// bfsDistance is the shortest number of standable steps from start to any goal.
func bfsDistance(f *pathfind.Finder, g *hexgrid.Grid, req pathfind.Request, goals []hexgrid.Coord) (int, bool) {
	goal := map[hexgrid.Coord]bool{}
	for _, c := range goals {
		goal[c] = true
	}
	dist := map[hexgrid.Coord]int{req.Start: 0}
	queue := []hexgrid.Coord{req.Start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if goal[cur] {
			return dist[cur], true
		}
		for _, nb := range g.Neighbors(cur) {
			if _, seen := dist[nb.Coord]; seen || !f.Standable(req, nb.Coord) {
				continue
			}
			dist[nb.Coord] = dist[cur] + 1
			queue = append(queue, nb.Coord)
		}
	}
	return 0, false
}

func TestProperty_PathIsShortestAndEndsOnEngagementTile(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		const cols, rows = 9, 7
		var specs []hexgrid.TileSpec
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				blocked := rapid.IntRange(0, 9).Draw(rt, "blocked") < 3
				specs = append(specs, hexgrid.TileSpec{Coord: hexgrid.C(c, r), Blocked: blocked})
			}
		}
		g, err := hexgrid.NewGrid(specs)
		require.NoError(rt, err)
		start := hexgrid.C(rapid.IntRange(0, cols-1).Draw(rt, "sc"), rapid.IntRange(0, rows-1).Draw(rt, "sr"))
		target := hexgrid.C(rapid.IntRange(0, cols-1).Draw(rt, "tc"), rapid.IntRange(0, rows-1).Draw(rt, "tr"))
		f := pathfind.NewFinder(g, reservation.NewLedger(), owners{})
		req := pathfind.Request{UnitID: "u1", Start: start, Targets: []hexgrid.Coord{target}, Range: rapid.IntRange(0, 3).Draw(rt, "range")}

		goals := f.EngagementTiles(req)
		res, err := f.Find(req)
		want, reachable := bfsDistance(f, g, req, goals)
		if !reachable {
			if err == nil {
				rt.Fatalf("found path %v but BFS found none", res.Path)
			}
			return
		}
		require.NoError(rt, err)
		if len(res.Path) != want {
			rt.Fatalf("path length %d, BFS shortest %d", len(res.Path), want)
		}
		end := start
		if len(res.Path) > 0 {
			end = res.Path[len(res.Path)-1]
		}
		if end != res.Goal || !contains(goals, end) {
			rt.Fatalf("path ends on %s, not an engagement tile", end)
		}
		prev := start
		for _, c := range res.Path {
			if hexgrid.Distance(prev, c) != 1 {
				rt.Fatalf("non-adjacent step %s -> %s", prev, c)
			}
			prev = c
		}
	})
}

func contains(cs []hexgrid.Coord, c hexgrid.Coord) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}
