package team_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/hexbeat/internal/game/team"
)

var all = []team.Team{team.None, team.Neutral, team.NeutralPlayer, team.NeutralEnemy, team.Player, team.Enemy}

func TestParse_RoundTripsEveryTeam(t *testing.T) {
	for _, tm := range all {
		got, err := team.Parse(tm.String())
		require.NoError(t, err)
		assert.Equal(t, tm, got)
	}
}

func TestParse_Unknown(t *testing.T) {
	_, err := team.Parse("pirates")
	assert.Error(t, err)
}

func TestUnmarshalText(t *testing.T) {
	var tm team.Team
	require.NoError(t, tm.UnmarshalText([]byte(" Player ")))
	assert.Equal(t, team.Player, tm)
}

func TestHostile_PlayerEnemy(t *testing.T) {
	assert.True(t, team.Hostile(team.Player, team.Enemy))
	assert.True(t, team.Hostile(team.Player, team.NeutralEnemy))
	assert.False(t, team.Hostile(team.Player, team.Neutral))
	assert.False(t, team.Hostile(team.Player, team.NeutralPlayer))
}

func TestCanCapture(t *testing.T) {
	assert.True(t, team.Player.CanCapture())
	assert.True(t, team.Enemy.CanCapture())
	assert.False(t, team.Neutral.CanCapture())
	assert.False(t, team.None.CanCapture())
}

func TestProperty_HostileIsSymmetricAndIrreflexive(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.SampledFrom(all).Draw(rt, "a")
		b := rapid.SampledFrom(all).Draw(rt, "b")
		if team.Hostile(a, b) != team.Hostile(b, a) {
			rt.Fatalf("Hostile(%s,%s) not symmetric", a, b)
		}
		if team.Hostile(a, a) {
			rt.Fatalf("%s hostile to itself", a)
		}
	})
}
