package hexgrid

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Map is the YAML representation of a grid. Each string in Rows is one grid
// row; each rune is one column:
//
//	'.' ground   '#' ground with a blocking environment   '~' water
//	'^' mountain ' ' no tile
type Map struct {
	OriginCol int      `yaml:"origin_col"`
	OriginRow int      `yaml:"origin_row"`
	Rows      []string `yaml:"rows"`
}

// Specs converts the ASCII rows into tile specs.
//
// Postcondition: Returns the specs in row-major order, or an error naming the
// first unknown rune.
func (m Map) Specs() ([]TileSpec, error) {
	var specs []TileSpec
	for r, line := range m.Rows {
		for c, ch := range []rune(line) {
			coord := Coord{Col: m.OriginCol + c, Row: m.OriginRow + r}
			switch ch {
			case ' ':
				continue
			case '.':
				specs = append(specs, TileSpec{Coord: coord, Kind: Ground})
			case '#':
				specs = append(specs, TileSpec{Coord: coord, Kind: Ground, Blocked: true})
			case '~':
				specs = append(specs, TileSpec{Coord: coord, Kind: Water})
			case '^':
				specs = append(specs, TileSpec{Coord: coord, Kind: Mountain})
			default:
				return nil, fmt.Errorf("row %d col %d: unknown tile rune %q", r, c, ch)
			}
		}
	}
	return specs, nil
}

// Validate checks that the map describes at least one tile.
func (m Map) Validate() error {
	if len(m.Rows) == 0 {
		return fmt.Errorf("map: rows must not be empty")
	}
	for _, line := range m.Rows {
		if strings.TrimSpace(line) != "" {
			return nil
		}
	}
	return fmt.Errorf("map: contains no tiles")
}

// Build validates m and constructs its Grid.
//
// Postcondition: Returns a grid whose tiles match the rows, or a non-nil error.
func (m Map) Build() (*Grid, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	specs, err := m.Specs()
	if err != nil {
		return nil, fmt.Errorf("map: %w", err)
	}
	return NewGrid(specs)
}

// LoadMapFromBytes parses a Map from YAML and builds the grid.
//
// Precondition: data must be valid YAML for a single Map.
// Postcondition: Returns a grid or a non-nil error.
func LoadMapFromBytes(data []byte) (*Grid, error) {
	var m Map
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing map YAML: %w", err)
	}
	return m.Build()
}

// LoadMapFromFile reads path and delegates to LoadMapFromBytes.
func LoadMapFromFile(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map file %s: %w", path, err)
	}
	g, err := LoadMapFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("loading map %s: %w", path, err)
	}
	return g, nil
}
