// Package pathfind computes paths to engagement tiles: tiles from which a unit
// can act on its target.
package pathfind

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/reservation"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
)

var (
	// ErrNoPath is returned when no engagement tile is reachable.
	ErrNoPath = errors.New("no path to engagement tile")
	// ErrNoEngagementTile is returned when no standable engagement tile exists.
	// It matches ErrNoPath under errors.Is.
	ErrNoEngagementTile = fmt.Errorf("no standable engagement tile: %w", ErrNoPath)
)

// BuildingTeams resolves building ownership for standability checks.
type BuildingTeams interface {
	BuildingTeam(buildingID string) (team.Team, bool)
}

// Request describes one path query.
type Request struct {
	UnitID string
	Team   team.Team
	Start  hexgrid.Coord
	// Targets are the tiles of the target: a unit's tile, a building's
	// footprint, or a destination tile. They are the unit's final destination.
	Targets []hexgrid.Coord
	// Range is the engagement range in hex steps. With Range 0 the engagement
	// tiles are the targets themselves.
	Range int
	// EnterTarget makes a standable target tile its own engagement tile, as
	// when walking onto a building.
	EnterTarget bool
}

// Result is a computed path.
type Result struct {
	// Path excludes the start tile; it is empty when the unit is already in position.
	Path []hexgrid.Coord
	// Goal is the engagement tile the path ends on.
	Goal hexgrid.Coord
}

// Next returns the first step of the path.
func (r Result) Next() (hexgrid.Coord, bool) {
	if len(r.Path) == 0 {
		return hexgrid.Coord{}, false
	}
	return r.Path[0], true
}

// Finder runs engagement queries against the live grid and reservations.
type Finder struct {
	grid      *hexgrid.Grid
	ledger    *reservation.Ledger
	buildings BuildingTeams
}

// NewFinder creates a Finder.
//
// Precondition: grid, ledger and buildings must be non-nil.
func NewFinder(grid *hexgrid.Grid, ledger *reservation.Ledger, buildings BuildingTeams) *Finder {
	if grid == nil {
		panic("pathfind.NewFinder: grid must not be nil")
	}
	if ledger == nil {
		panic("pathfind.NewFinder: ledger must not be nil")
	}
	if buildings == nil {
		panic("pathfind.NewFinder: buildings must not be nil")
	}
	return &Finder{grid: grid, ledger: ledger, buildings: buildings}
}

// Standable reports whether the requesting unit may stand on c: ground kind,
// no blocking environment, no other unit, not reserved by another unit, and no
// building unless c is one of the targets and the building is not hostile.
func (f *Finder) Standable(req Request, c hexgrid.Coord) bool {
	return f.standable(req, c, targetSet(req.Targets))
}

func (f *Finder) standable(req Request, c hexgrid.Coord, targets map[hexgrid.Coord]bool) bool {
	t, ok := f.grid.Tile(c)
	if !ok || !t.Traversable() {
		return false
	}
	if t.UnitID != "" && t.UnitID != req.UnitID {
		return false
	}
	if f.ledger.IsReservedByOther(c, req.UnitID) {
		return false
	}
	if t.BuildingID == "" {
		return true
	}
	if !targets[c] {
		return false
	}
	owner, ok := f.buildings.BuildingTeam(t.BuildingID)
	if !ok {
		return false
	}
	return !team.Hostile(req.Team, owner) && (!owner.CanCapture() || owner == req.Team)
}

func targetSet(cs []hexgrid.Coord) map[hexgrid.Coord]bool {
	m := make(map[hexgrid.Coord]bool, len(cs))
	for _, c := range cs {
		m[c] = true
	}
	return m
}

// EngagementTiles returns the standable tiles within req.Range of any target,
// in deterministic discovery order.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (f *Finder) EngagementTiles(req Request) []hexgrid.Coord {
	targets := targetSet(req.Targets)
	seen := make(map[hexgrid.Coord]bool)
	out := []hexgrid.Coord{}
	add := func(c hexgrid.Coord) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	r := max(0, req.Range)
	for _, target := range req.Targets {
		if req.EnterTarget && f.standable(req, target, targets) {
			add(target)
			continue
		}
		if r == 0 {
			if f.standable(req, target, targets) {
				add(target)
			}
			continue
		}
		for _, c := range f.grid.CoordsWithinRange(target, r) {
			if c == target || !f.standable(req, c, targets) {
				continue
			}
			add(c)
		}
	}
	return out
}

// Find computes the shortest path from req.Start to the nearest engagement tile.
//
// Postcondition: On success the last path tile (or Start, for an empty path)
// is an engagement tile. Returns ErrNoEngagementTile or ErrNoPath otherwise.
func (f *Finder) Find(req Request) (Result, error) {
	goals := f.EngagementTiles(req)
	if len(goals) == 0 {
		return Result{}, fmt.Errorf("pathfind.Find unit %q: %w", req.UnitID, ErrNoEngagementTile)
	}
	goalSet := targetSet(goals)
	if goalSet[req.Start] {
		return Result{Path: []hexgrid.Coord{}, Goal: req.Start}, nil
	}
	if _, ok := f.grid.Tile(req.Start); !ok {
		return Result{}, fmt.Errorf("pathfind.Find unit %q: start %s off grid: %w", req.UnitID, req.Start, ErrNoPath)
	}

	targets := targetSet(req.Targets)
	h := func(c hexgrid.Coord) int {
		d, _ := hexgrid.MinDistance(c, goals)
		return d
	}
	nodes := map[hexgrid.Coord]*node{}
	closed := map[hexgrid.Coord]bool{}
	open := &openList{}
	seq := 0
	start := &node{coord: req.Start, g: 0, h: h(req.Start), seq: seq}
	nodes[req.Start] = start
	heap.Push(open, start)

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if closed[cur.coord] {
			continue
		}
		closed[cur.coord] = true
		if goalSet[cur.coord] {
			return Result{Path: reconstruct(cur), Goal: cur.coord}, nil
		}
		for _, nb := range f.grid.Neighbors(cur.coord) {
			c := nb.Coord
			if closed[c] || !f.standable(req, c, targets) {
				continue
			}
			g := cur.g + 1
			n, known := nodes[c]
			if known && g >= n.g {
				continue
			}
			seq++
			n = &node{coord: c, g: g, h: h(c), seq: seq, parent: cur}
			nodes[c] = n
			heap.Push(open, n)
		}
	}
	return Result{}, fmt.Errorf("pathfind.Find unit %q from %s: %w", req.UnitID, req.Start, ErrNoPath)
}

func reconstruct(n *node) []hexgrid.Coord {
	var rev []hexgrid.Coord
	for cur := n; cur.parent != nil; cur = cur.parent {
		rev = append(rev, cur.coord)
	}
	path := make([]hexgrid.Coord, len(rev))
	for i, c := range rev {
		path[len(rev)-1-i] = c
	}
	return path
}

type node struct {
	coord  hexgrid.Coord
	g, h   int
	seq    int
	parent *node
}

func (n *node) f() int { return n.g + n.h }

// openList orders nodes by F, then H, then insertion order.
type openList []*node

func (o openList) Len() int { return len(o) }

func (o openList) Less(i, j int) bool {
	a, b := o[i], o[j]
	if a.f() != b.f() {
		return a.f() < b.f()
	}
	if a.h != b.h {
		return a.h < b.h
	}
	return a.seq < b.seq
}

func (o openList) Swap(i, j int) { o[i], o[j] = o[j], o[i] }

func (o *openList) Push(x any) { *o = append(*o, x.(*node)) }

func (o *openList) Pop() any {
	old := *o
	n := old[len(old)-1]
	*o = old[:len(old)-1]
	return n
}
