// Package hexgrid implements an odd-q offset hexagonal lattice: coordinates,
// cube-coordinate distance, neighbor adjacency, and breadth-first range queries.
//
// Columns are the "q" axis. Odd columns are shoved down by half a tile, so the
// neighbor offsets of a tile depend on the parity of its column.
package hexgrid

import "fmt"

// Coord is an offset coordinate on the grid.
type Coord struct {
	Col int `json:"col" yaml:"col"`
	Row int `json:"row" yaml:"row"`
}

// C is shorthand for Coord{Col: col, Row: row}.
func C(col, row int) Coord { return Coord{Col: col, Row: row} }

// String returns "(col,row)".
func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Col, c.Row)
}

// Cube is a cube coordinate with the invariant X + Y + Z == 0.
type Cube struct {
	X, Y, Z int
}

// evenColOffsets and oddColOffsets are indexed by direction. Parity is taken
// with col&1 so that negative columns classify correctly.
var (
	evenColOffsets = [6]Coord{{0, -1}, {1, -1}, {1, 0}, {0, 1}, {-1, 0}, {-1, -1}}
	oddColOffsets  = [6]Coord{{0, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}}
)

// Cube converts an odd-q offset coordinate to cube coordinates.
//
// Postcondition: the result satisfies X + Y + Z == 0.
func (c Coord) Cube() Cube {
	x := c.Col
	z := c.Row - (c.Col-(c.Col&1))/2
	return Cube{X: x, Y: -x - z, Z: z}
}

// Offset converts a cube coordinate back to odd-q offset coordinates.
func (c Cube) Offset() Coord {
	return Coord{Col: c.X, Row: c.Z + (c.X-(c.X&1))/2}
}

// Distance returns the number of single-tile steps between a and b on an
// unbounded lattice.
//
// Postcondition: Distance is a metric (symmetric, zero iff a == b, triangle inequality).
func Distance(a, b Coord) int {
	ca, cb := a.Cube(), b.Cube()
	return (abs(ca.X-cb.X) + abs(ca.Y-cb.Y) + abs(ca.Z-cb.Z)) / 2
}

// MinDistance returns the smallest Distance from c to any coordinate in set.
//
// Postcondition: Returns (distance, true), or (0, false) if set is empty.
func MinDistance(c Coord, set []Coord) (int, bool) {
	if len(set) == 0 {
		return 0, false
	}
	best := Distance(c, set[0])
	for _, s := range set[1:] {
		if d := Distance(c, s); d < best {
			best = d
		}
	}
	return best, true
}

// Neighbors returns the six lattice neighbors of c in direction order,
// ignoring grid bounds.
func (c Coord) Neighbors() [6]Coord {
	offsets := &evenColOffsets
	if c.Col&1 == 1 {
		offsets = &oddColOffsets
	}
	var out [6]Coord
	for i, o := range offsets {
		out[i] = Coord{Col: c.Col + o.Col, Row: c.Row + o.Row}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
