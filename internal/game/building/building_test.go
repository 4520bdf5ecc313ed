package building_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/hexbeat/internal/game/building"
	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
)

func tower(t *testing.T, mutate func(*building.Spec)) *building.Building {
	t.Helper()
	spec := building.Spec{
		ID:        "tower",
		Tiles:     []hexgrid.Coord{{Col: 3, Row: 0}},
		MaxHealth: 20,
		Defense:   2,
	}
	if mutate != nil {
		mutate(&spec)
	}
	b, err := building.New(spec)
	require.NoError(t, err)
	return b
}

func TestNew_Defaults(t *testing.T) {
	b := tower(t, func(s *building.Spec) { s.Capture = &building.CaptureConfig{} })
	assert.Equal(t, "tower", b.Name)
	assert.Equal(t, team.Neutral, b.Team)
	assert.True(t, b.Targetable)
	assert.Equal(t, building.DefaultBeatsToCapture, b.Capture.BeatsToCapture)
	assert.True(t, b.Capturable())
	assert.False(t, b.Owned())
}

func TestSpec_Validate(t *testing.T) {
	cases := map[string]building.Spec{
		"no id":       {Tiles: []hexgrid.Coord{{}}, MaxHealth: 1},
		"no tiles":    {ID: "x", MaxHealth: 1},
		"no health":   {ID: "x", Tiles: []hexgrid.Coord{{}}},
		"dup tile":    {ID: "x", Tiles: []hexgrid.Coord{{}, {}}, MaxHealth: 1},
		"overlap":     {ID: "x", Tiles: []hexgrid.Coord{{}}, ReserveTiles: []hexgrid.Coord{{}}, MaxHealth: 1},
		"neg defense": {ID: "x", Tiles: []hexgrid.Coord{{}}, MaxHealth: 1, Defense: -1},
	}
	for name, spec := range cases {
		_, err := building.New(spec)
		assert.Error(t, err, name)
	}
}

func TestSpec_YAMLTeam(t *testing.T) {
	var spec building.Spec
	require.NoError(t, yaml.Unmarshal([]byte("id: keep\nteam: enemy\ntiles: [{col: 1, row: 2}]\nmax_health: 5\n"), &spec))
	assert.Equal(t, team.Enemy, spec.Team)
	assert.Equal(t, []hexgrid.Coord{{Col: 1, Row: 2}}, spec.Tiles)
}

func TestTakeDamage_DefenseAndMinimum(t *testing.T) {
	b := tower(t, nil)
	dealt, destroyed := b.TakeDamage(5)
	assert.Equal(t, 3, dealt)
	assert.False(t, destroyed)
	dealt, _ = b.TakeDamage(1)
	assert.Equal(t, 1, dealt, "every strike deals at least 1")
	_, destroyed = b.TakeDamage(100)
	assert.True(t, destroyed)
	assert.Equal(t, 0, b.Health)
	dealt, destroyed = b.TakeDamage(100)
	assert.Zero(t, dealt)
	assert.False(t, destroyed, "destruction is reported once")
}

func TestTakeDamage_OwnedRecapturableIgnored(t *testing.T) {
	b := tower(t, func(s *building.Spec) {
		s.Team = team.Player
		s.Capture = &building.CaptureConfig{Recapturable: true}
	})
	dealt, destroyed := b.TakeDamage(50)
	assert.Zero(t, dealt)
	assert.False(t, destroyed)
	assert.Equal(t, 20, b.Health)
}

func TestReserveTiles(t *testing.T) {
	b := tower(t, func(s *building.Spec) {
		s.ReserveTiles = []hexgrid.Coord{{Col: 2, Row: 0}, {Col: 4, Row: 0}}
	})
	c, ok := b.ReserveTileFor("a", nil)
	require.True(t, ok)
	require.True(t, b.AssignReserve("a", c))

	again, ok := b.ReserveTileFor("a", nil)
	require.True(t, ok)
	assert.Equal(t, c, again, "an assigned unit keeps its tile")

	other, ok := b.ReserveTileFor("b", nil)
	require.True(t, ok)
	assert.NotEqual(t, c, other)
	assert.False(t, b.AssignReserve("b", c))
	require.True(t, b.AssignReserve("b", other))

	_, ok = b.ReserveTileFor("c", nil)
	assert.False(t, ok)

	b.ReleaseReserve("a")
	_, ok = b.ReserveAssignee(c)
	assert.False(t, ok)
	assert.False(t, b.AssignReserve("c", hexgrid.C(9, 9)), "not a reserve tile")
}

func TestReserveTileFor_RespectsFreePredicate(t *testing.T) {
	b := tower(t, func(s *building.Spec) {
		s.ReserveTiles = []hexgrid.Coord{{Col: 2, Row: 0}, {Col: 4, Row: 0}}
	})
	c, ok := b.ReserveTileFor("a", func(c hexgrid.Coord) bool { return c.Col == 4 })
	require.True(t, ok)
	assert.Equal(t, hexgrid.C(4, 0), c)
}
