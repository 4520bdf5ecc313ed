package scenario_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/hexbeat/internal/game/beat"
	"github.com/cory-johannsen/hexbeat/internal/game/engine"
	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/reservation"
	"github.com/cory-johannsen/hexbeat/internal/game/scenario"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/game/unit"
	"github.com/cory-johannsen/hexbeat/internal/game/world"
)

const contentDir = "../../../content"

const small = `
name: small
map:
  rows:
    - "......"
    - "......"
    - "......"
buildings:
  - id: mill
    tiles: [{col: 3, row: 1}]
    max_health: 10
    capture: {beats_to_capture: 6}
units:
  - {template: soldier, team: player, at: {col: 0, row: 0}}
  - {template: soldier, team: enemy, at: {col: 5, row: 2}, objective: mill}
objectives:
  - {team: player, building: mill}
rally:
  - {team: enemy, at: {col: 4, row: 2}}
waves:
  - name: late
    beat: 3
    units:
      - {template: soldier, team: player, at: {col: 0, row: 2}}
`

func templates() map[string]*unit.Template {
	tmpl := unit.DefaultTemplate()
	tmpl.ID = "soldier"
	tmpl.Name = "Soldier"
	tmpl.MaxHealth = 10
	tmpl.Attack = 3
	return unit.Index([]*unit.Template{&tmpl})
}

func newEngine(t *testing.T, s *scenario.Scenario) *engine.Engine {
	t.Helper()
	grid, err := s.Map.Build()
	require.NoError(t, err)
	n := 0
	w := world.New(grid, reservation.NewLedger(), world.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("u%d", n)
	}))
	return engine.New(engine.Deps{World: w, Bus: beat.NewBus(), Logger: zaptest.NewLogger(t)})
}

func TestParse_DecodesDocument(t *testing.T) {
	s, err := scenario.Parse([]byte(small))
	require.NoError(t, err)
	assert.Equal(t, "small", s.Name)
	require.Len(t, s.Buildings, 1)
	assert.Equal(t, 6, s.Buildings[0].Capture.BeatsToCapture)
	require.Len(t, s.Units, 2)
	assert.Equal(t, team.Enemy, s.Units[1].Team)
	assert.Equal(t, hexgrid.C(5, 2), s.Units[1].At)
	require.Len(t, s.Waves, 1)
	assert.Equal(t, uint64(3), s.Waves[0].Beat)
	require.NoError(t, s.Validate(templates()))
}

func TestParse_SchemaRejections(t *testing.T) {
	cases := map[string]string{
		"missing map":   "name: x\n",
		"unknown key":   "name: x\nmap: {rows: ['.']}\nweather: rain\n",
		"bad team":      "name: x\nmap: {rows: ['.']}\nunits: [{template: s, team: pirates, at: {col: 0, row: 0}}]\n",
		"neutral rally": "name: x\nmap: {rows: ['.']}\nrally: [{team: neutral, at: {col: 0, row: 0}}]\n",
		"zero health":   "name: x\nmap: {rows: ['.']}\nbuildings: [{id: b, tiles: [{col: 0, row: 0}], max_health: 0}]\n",
		"wave beat 0":   "name: x\nmap: {rows: ['.']}\nwaves: [{beat: 0, units: [{template: s, team: enemy, at: {col: 0, row: 0}}]}]\n",
		"not yaml":      "name: [\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := scenario.Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestValidate_CrossReferences(t *testing.T) {
	doc := `
name: broken
map: {rows: ["...", "..."]}
buildings:
  - {id: a, tiles: [{col: 0, row: 0}], max_health: 1}
  - {id: a, tiles: [{col: 5, row: 5}], max_health: 1}
units:
  - {template: ghost, team: player, at: {col: 9, row: 9}, objective: nowhere}
objectives:
  - {team: enemy, building: missing}
`
	s, err := scenario.Parse([]byte(doc))
	require.NoError(t, err)
	err = s.Validate(templates())
	require.Error(t, err)
	for _, want := range []string{"duplicate id", "off the map", "unknown template", "unknown objective", `unknown building "missing"`} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestApply_PopulatesEngine(t *testing.T) {
	s, err := scenario.Parse([]byte(small))
	require.NoError(t, err)
	e := newEngine(t, s)
	require.NoError(t, s.Apply(e, templates()))

	snap := e.Snapshot()
	require.Len(t, snap.Buildings, 1)
	require.Len(t, snap.Captures, 1)
	assert.Equal(t, 6.0, snap.Captures[0].Threshold)
	require.Len(t, snap.Units, 2)

	player, ok := e.Context("u1")
	require.True(t, ok)
	assert.Equal(t, "mill", player.Objective, "team objective applies")
	assert.False(t, player.HasRally)

	enemy, ok := e.Context("u2")
	require.True(t, ok)
	assert.Equal(t, "mill", enemy.Objective)
	assert.True(t, enemy.HasRally, "initial rally is inherited")
	assert.Equal(t, hexgrid.C(4, 2), enemy.Rally)
}

func TestDirector_SpawnsWavesOnTheirBeat(t *testing.T) {
	s, err := scenario.Parse([]byte(small))
	require.NoError(t, err)
	e := newEngine(t, s)
	tmpls := templates()
	require.NoError(t, s.Apply(e, tmpls))
	d := s.NewDirector(e, tmpls, zaptest.NewLogger(t))
	assert.Equal(t, 1, d.Pending())

	next := beat.Sequence(0)
	for i := 0; i < 2; i++ {
		b := next()
		e.OnBeat(b)
		d.OnBeat(b)
	}
	assert.Equal(t, 1, d.Pending())
	assert.Equal(t, 1, e.Snapshot().CountUnits(team.Player))

	b := next()
	e.OnBeat(b)
	d.OnBeat(b)
	assert.Zero(t, d.Pending())
	assert.Equal(t, 2, e.Snapshot().CountUnits(team.Player))

	d.OnBeat(next())
	assert.Equal(t, 2, e.Snapshot().CountUnits(team.Player), "waves spawn once")
}

func TestContent_BorderScenarioIsValid(t *testing.T) {
	list, err := unit.LoadTemplates(filepath.Join(contentDir, "templates"))
	require.NoError(t, err)
	s, err := scenario.Load(filepath.Join(contentDir, "scenarios", "border.yaml"))
	require.NoError(t, err)
	tmpls := unit.Index(list)
	require.NoError(t, s.Validate(tmpls))

	e := newEngine(t, s)
	require.NoError(t, s.Apply(e, tmpls))
	d := s.NewDirector(e, tmpls, zaptest.NewLogger(t))
	next := beat.Sequence(0)
	for i := 0; i < 30; i++ {
		b := next()
		e.OnBeat(b)
		d.OnBeat(b)
	}
	assert.Zero(t, d.Pending())
	assert.Equal(t, uint64(30), e.Beat())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := scenario.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
