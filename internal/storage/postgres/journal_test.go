package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/journal"
	"github.com/cory-johannsen/hexbeat/internal/storage/postgres"
	"github.com/cory-johannsen/hexbeat/internal/testutil"
)

func sampleEvents() []journal.Event {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []journal.Event{
		{Seq: 1, Beat: 1, At: at, Kind: journal.UnitSpawned, UnitID: "u1", Team: team.Player, Detail: "soldier"},
		{Seq: 2, Beat: 3, At: at, Kind: journal.CaptureStarted, BuildingID: "mill", Team: team.Player, Units: []string{"u1", "u2"}},
		{Seq: 3, Beat: 4, At: at, Kind: journal.RallyIssued, Team: team.Player, Coord: &hexgrid.Coord{Col: 4, Row: 2}, Amount: 2},
		{Seq: 4, Beat: 7, At: at, Kind: journal.BuildingTeamChanged, BuildingID: "mill", Team: team.Player, PrevTeam: team.Neutral},
	}
}

func TestJournalRepository_RoundTrip(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	ctx := context.Background()

	repo, err := postgres.BeginRun(ctx, pc.RawPool, "border")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, repo.RunID())

	run, err := repo.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "border", run.Scenario)

	want := sampleEvents()
	require.NoError(t, repo.WriteEvents(ctx, want[:2]))
	require.NoError(t, repo.WriteEvents(ctx, want[2:]))
	require.NoError(t, repo.WriteEvents(ctx, nil))

	got, err := repo.Events(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].At.Equal(got[i].At))
		got[i].At = want[i].At
	}
	assert.Equal(t, want, got)

	page, err := repo.Events(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(2), page[0].Seq)

	counts, err := repo.CountByKind(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[journal.CaptureStarted])
	assert.Len(t, counts, 4)
	assert.NoError(t, repo.Close())
}

func TestJournalRepository_RunsAreIsolated(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	ctx := context.Background()

	a, err := postgres.BeginRun(ctx, pc.RawPool, "a")
	require.NoError(t, err)
	b, err := postgres.BeginRun(ctx, pc.RawPool, "b")
	require.NoError(t, err)

	require.NoError(t, a.WriteEvents(ctx, sampleEvents()))
	got, err := b.Events(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestJournalRepository_DuplicateSeqFails(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	ctx := context.Background()

	repo, err := postgres.BeginRun(ctx, pc.RawPool, "dup")
	require.NoError(t, err)
	evs := sampleEvents()[:1]
	require.NoError(t, repo.WriteEvents(ctx, evs))
	assert.Error(t, repo.WriteEvents(ctx, evs))
}

func TestPool_Health(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	assert.NoError(t, pc.Pool.Health(context.Background(), time.Second))
}

func TestPool_CheckSchema(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	ctx := context.Background()
	err := pc.Pool.CheckSchema(ctx)
	require.ErrorIs(t, err, postgres.ErrSchemaMissing)
	assert.Contains(t, err.Error(), "journal_runs")

	pc.ApplyMigrations(t)
	assert.NoError(t, pc.Pool.CheckSchema(ctx))

	var name string
	require.NoError(t, pc.RawPool.QueryRow(ctx, `SELECT current_setting('application_name')`).Scan(&name))
	assert.Equal(t, postgres.ApplicationName, name)
}

func TestBeginRun_NilPoolPanics(t *testing.T) {
	assert.Panics(t, func() { _, _ = postgres.BeginRun(context.Background(), nil, "x") })
}
