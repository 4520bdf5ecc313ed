package hexgrid

import (
	"fmt"
	"sort"
)

// Kind is the terrain type of a tile.
type Kind int

const (
	// Ground is the only traversable terrain.
	Ground Kind = iota
	Water
	Mountain
)

// String returns the terrain name.
func (k Kind) String() string {
	switch k {
	case Ground:
		return "ground"
	case Water:
		return "water"
	case Mountain:
		return "mountain"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Tile is a single lattice cell.
//
// Invariant: UnitID and BuildingID each hold at most one occupant ("" = empty).
type Tile struct {
	Coord Coord
	Kind  Kind
	// Blocked marks a blocking environment object (rock, tree) on ground terrain.
	Blocked    bool
	UnitID     string
	BuildingID string

	neighbors []*Tile
}

// Neighbors returns the precomputed in-bounds neighbors of t in direction order.
// The returned slice must not be modified.
func (t *Tile) Neighbors() []*Tile { return t.neighbors }

// Traversable reports whether the terrain itself permits standing on t,
// regardless of occupants.
func (t *Tile) Traversable() bool {
	return t.Kind == Ground && !t.Blocked
}

// TileObserver receives tile change notifications. Observers are cosmetic
// consumers; they must not mutate the grid.
type TileObserver interface {
	OnTileChanged(t *Tile)
}

// TileObserverFunc adapts a function to TileObserver.
type TileObserverFunc func(t *Tile)

// OnTileChanged calls f(t).
func (f TileObserverFunc) OnTileChanged(t *Tile) { f(t) }

// Bounds is the inclusive rectangle of the lattice.
type Bounds struct {
	MinCol, MaxCol, MinRow, MaxRow int
}

// Contains reports whether c lies inside b.
func (b Bounds) Contains(c Coord) bool {
	return c.Col >= b.MinCol && c.Col <= b.MaxCol && c.Row >= b.MinRow && c.Row <= b.MaxRow
}

// Grid owns the tiles of one map. Adjacency is computed once at construction.
//
// Grid is not safe for concurrent mutation; the engine serializes all access.
type Grid struct {
	bounds    Bounds
	tiles     map[Coord]*Tile
	order     []*Tile
	observers []observerEntry
	nextObs   int
}

type observerEntry struct {
	id int
	o  TileObserver
}

// TileSpec describes one tile for NewGrid.
type TileSpec struct {
	Coord   Coord
	Kind    Kind
	Blocked bool
}

// NewGrid builds a grid from specs and precomputes every tile's neighbor list.
//
// Precondition: specs must not contain duplicate coordinates.
// Postcondition: Neighbor lists are symmetric and contain only tiles in specs.
func NewGrid(specs []TileSpec) (*Grid, error) {
	g := &Grid{tiles: make(map[Coord]*Tile, len(specs))}
	for i, s := range specs {
		if _, dup := g.tiles[s.Coord]; dup {
			return nil, fmt.Errorf("hexgrid.NewGrid: duplicate tile %s", s.Coord)
		}
		if i == 0 {
			g.bounds = Bounds{MinCol: s.Coord.Col, MaxCol: s.Coord.Col, MinRow: s.Coord.Row, MaxRow: s.Coord.Row}
		} else {
			g.bounds.MinCol = min(g.bounds.MinCol, s.Coord.Col)
			g.bounds.MaxCol = max(g.bounds.MaxCol, s.Coord.Col)
			g.bounds.MinRow = min(g.bounds.MinRow, s.Coord.Row)
			g.bounds.MaxRow = max(g.bounds.MaxRow, s.Coord.Row)
		}
		t := &Tile{Coord: s.Coord, Kind: s.Kind, Blocked: s.Blocked}
		g.tiles[s.Coord] = t
		g.order = append(g.order, t)
	}
	sort.Slice(g.order, func(i, j int) bool {
		a, b := g.order[i].Coord, g.order[j].Coord
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
	for _, t := range g.order {
		for _, nc := range t.Coord.Neighbors() {
			if n, ok := g.tiles[nc]; ok {
				t.neighbors = append(t.neighbors, n)
			}
		}
	}
	return g, nil
}

// NewRect builds a fully populated ground grid of cols x rows starting at (0,0).
//
// Precondition: cols > 0 and rows > 0.
func NewRect(cols, rows int) *Grid {
	if cols <= 0 || rows <= 0 {
		panic("hexgrid.NewRect: cols and rows must be positive")
	}
	specs := make([]TileSpec, 0, cols*rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			specs = append(specs, TileSpec{Coord: Coord{Col: c, Row: r}})
		}
	}
	g, _ := NewGrid(specs)
	return g
}

// Bounds returns the inclusive extent of the grid.
func (g *Grid) Bounds() Bounds { return g.bounds }

// Len returns the number of tiles.
func (g *Grid) Len() int { return len(g.order) }

// Tiles returns every tile in row-major order. The slice must not be modified.
func (g *Grid) Tiles() []*Tile { return g.order }

// Tile returns the tile at c.
//
// Postcondition: Returns (nil, false) for coordinates outside the grid.
func (g *Grid) Tile(c Coord) (*Tile, bool) {
	t, ok := g.tiles[c]
	return t, ok
}

// Neighbors returns the in-bounds neighbors of c, or nil if c is not a tile.
func (g *Grid) Neighbors(c Coord) []*Tile {
	t, ok := g.tiles[c]
	if !ok {
		return nil
	}
	return t.neighbors
}

// TilesWithinRange returns every tile reachable from center in at most radius
// hops of the adjacency graph, center included, in breadth-first discovery order.
//
// Precondition: radius >= 0; negative radius is treated as 0.
// Postcondition: Returns nil if center is not a tile.
func (g *Grid) TilesWithinRange(center Coord, radius int) []*Tile {
	start, ok := g.tiles[center]
	if !ok {
		return nil
	}
	if radius < 0 {
		radius = 0
	}
	depth := map[*Tile]int{start: 0}
	out := []*Tile{start}
	for i := 0; i < len(out); i++ {
		cur := out[i]
		d := depth[cur]
		if d == radius {
			continue
		}
		for _, n := range cur.neighbors {
			if _, seen := depth[n]; seen {
				continue
			}
			depth[n] = d + 1
			out = append(out, n)
		}
	}
	return out
}

// CoordsWithinRange is TilesWithinRange projected to coordinates.
func (g *Grid) CoordsWithinRange(center Coord, radius int) []Coord {
	tiles := g.TilesWithinRange(center, radius)
	out := make([]Coord, len(tiles))
	for i, t := range tiles {
		out[i] = t.Coord
	}
	return out
}

// AddObserver registers o for tile change notifications and returns a
// function that unregisters it. Calling remove more than once is harmless.
//
// Precondition: o must not be nil.
func (g *Grid) AddObserver(o TileObserver) (remove func()) {
	if o == nil {
		panic("hexgrid.Grid.AddObserver: observer must not be nil")
	}
	g.nextObs++
	id := g.nextObs
	g.observers = append(g.observers, observerEntry{id: id, o: o})
	return func() {
		for i, e := range g.observers {
			if e.id == id {
				g.observers = append(g.observers[:i:i], g.observers[i+1:]...)
				return
			}
		}
	}
}

// NotifyTileChanged fans t out to all observers in registration order.
func (g *Grid) NotifyTileChanged(t *Tile) {
	for _, e := range g.observers {
		e.o.OnTileChanged(t)
	}
}

// PlaceUnit puts unitID on the tile at c.
//
// Precondition: the tile is traversable and has no other unit.
// Postcondition: tile.UnitID == unitID and observers were notified, or an error is returned.
func (g *Grid) PlaceUnit(c Coord, unitID string) error {
	t, ok := g.tiles[c]
	if !ok {
		return fmt.Errorf("hexgrid.PlaceUnit: no tile at %s", c)
	}
	if t.UnitID != "" && t.UnitID != unitID {
		return fmt.Errorf("hexgrid.PlaceUnit: tile %s already holds unit %q", c, t.UnitID)
	}
	if !t.Traversable() {
		return fmt.Errorf("hexgrid.PlaceUnit: tile %s is not traversable", c)
	}
	t.UnitID = unitID
	g.NotifyTileChanged(t)
	return nil
}

// ClearUnit removes unitID from the tile at c. It is a no-op if the tile is
// missing or holds a different unit.
//
// Postcondition: Returns true iff the unit was removed.
func (g *Grid) ClearUnit(c Coord, unitID string) bool {
	t, ok := g.tiles[c]
	if !ok || t.UnitID != unitID {
		return false
	}
	t.UnitID = ""
	g.NotifyTileChanged(t)
	return true
}

// MoveUnit transfers unitID from one tile to an adjacent or distant tile.
//
// Precondition: from holds unitID; to is traversable and free.
// Postcondition: On success exactly `to` holds unitID and both tiles were notified.
func (g *Grid) MoveUnit(from, to Coord, unitID string) error {
	src, ok := g.tiles[from]
	if !ok || src.UnitID != unitID {
		return fmt.Errorf("hexgrid.MoveUnit: unit %q is not on %s", unitID, from)
	}
	if err := g.PlaceUnit(to, unitID); err != nil {
		return err
	}
	if from != to {
		src.UnitID = ""
		g.NotifyTileChanged(src)
	}
	return nil
}

// PlaceBuilding marks every tile in coords as holding buildingID.
//
// Precondition: each coordinate is a tile with no unit and no other building.
// Postcondition: All tiles hold buildingID, or none were changed and an error is returned.
func (g *Grid) PlaceBuilding(buildingID string, coords []Coord) error {
	for _, c := range coords {
		t, ok := g.tiles[c]
		if !ok {
			return fmt.Errorf("hexgrid.PlaceBuilding: no tile at %s", c)
		}
		if t.BuildingID != "" && t.BuildingID != buildingID {
			return fmt.Errorf("hexgrid.PlaceBuilding: tile %s already holds building %q", c, t.BuildingID)
		}
		if t.UnitID != "" {
			return fmt.Errorf("hexgrid.PlaceBuilding: tile %s holds unit %q", c, t.UnitID)
		}
	}
	for _, c := range coords {
		t := g.tiles[c]
		t.BuildingID = buildingID
		g.NotifyTileChanged(t)
	}
	return nil
}

// ClearBuilding removes buildingID from every tile that holds it.
func (g *Grid) ClearBuilding(buildingID string, coords []Coord) {
	for _, c := range coords {
		if t, ok := g.tiles[c]; ok && t.BuildingID == buildingID {
			t.BuildingID = ""
			g.NotifyTileChanged(t)
		}
	}
}

// Touch re-notifies observers for the tiles at coords, e.g. after a building
// on them changed ownership.
func (g *Grid) Touch(coords []Coord) {
	for _, c := range coords {
		if t, ok := g.tiles[c]; ok {
			g.NotifyTileChanged(t)
		}
	}
}
