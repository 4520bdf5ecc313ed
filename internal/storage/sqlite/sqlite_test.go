package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/journal"
	"github.com/cory-johannsen/hexbeat/internal/storage/sqlite"
)

func openJournal(t *testing.T) *sqlite.Journal {
	t.Helper()
	j, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "nested", "journal.db"), "border")
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_RoundTrip(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)
	want := []journal.Event{
		{Seq: 1, Beat: 2, At: at, Kind: journal.StrikeLanded, UnitID: "u1", TargetID: "u2", Amount: 3},
		{Seq: 2, Beat: 5, At: at, Kind: journal.CaptureCompleted, BuildingID: "mill", Team: team.Enemy, Units: []string{"u3"}},
		{Seq: 3, Beat: 6, At: at, Kind: journal.RallyIssued, Team: team.Player, Coord: &hexgrid.Coord{Col: 0, Row: 7}},
	}
	require.NoError(t, j.WriteEvents(ctx, want))
	require.NoError(t, j.WriteEvents(ctx, nil))

	got, err := j.Events(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	tail, err := j.Events(ctx, 2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, journal.RallyIssued, tail[0].Kind)
	assert.NotEmpty(t, j.RunID())
}

func TestJournal_DuplicateSeqRollsBack(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	require.NoError(t, j.WriteEvents(ctx, []journal.Event{{Seq: 1, Kind: journal.UnitSpawned}}))
	err := j.WriteEvents(ctx, []journal.Event{
		{Seq: 2, Kind: journal.UnitSpawned},
		{Seq: 1, Kind: journal.UnitRemoved},
	})
	require.Error(t, err)

	got, err := j.Events(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := sqlite.Open(context.Background(), "", "x")
	assert.Error(t, err)
}

func TestJournal_WithRecorder(t *testing.T) {
	j := openJournal(t)
	rec := journal.NewRecorder(zaptest.NewLogger(t), 16, keepOpen{j})
	go func() { _ = rec.Start() }()
	for i := 0; i < 10; i++ {
		rec.Record(journal.Event{Kind: journal.UnitSpawned, UnitID: "u"})
	}
	rec.Stop()

	got, err := j.Events(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, uint64(10), got[9].Seq)
}

func TestProperty_EventsRoundTrip(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	var seq uint64
	rapid.Check(t, func(rt *rapid.T) {
		seq++
		ev := journal.Event{
			Seq:    seq,
			Beat:   rapid.Uint64Range(0, 1<<40).Draw(rt, "beat"),
			At:     time.Unix(rapid.Int64Range(0, 1<<32).Draw(rt, "at"), 0).UTC(),
			Kind:   journal.StrikeLanded,
			Amount: float64(rapid.IntRange(0, 100).Draw(rt, "amount")),
			Team:   rapid.SampledFrom([]team.Team{team.None, team.Player, team.Enemy, team.Neutral}).Draw(rt, "team"),
		}
		if rapid.Bool().Draw(rt, "coord") {
			ev.Coord = &hexgrid.Coord{Col: rapid.IntRange(0, 50).Draw(rt, "col"), Row: rapid.IntRange(0, 50).Draw(rt, "row")}
		}
		if err := j.WriteEvents(ctx, []journal.Event{ev}); err != nil {
			rt.Fatalf("write: %v", err)
		}
		got, err := j.Events(ctx, seq-1)
		if err != nil || len(got) != 1 {
			rt.Fatalf("read back: %v %d", err, len(got))
		}
		assert.Equal(rt, ev, got[0])
	})
}

// keepOpen lets the test read back after the recorder closes its sinks.
type keepOpen struct{ *sqlite.Journal }

func (keepOpen) Close() error { return nil }
