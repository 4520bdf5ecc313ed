package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/journal"
)

// ErrRunNotFound is returned when a run ID has no journal_runs row.
var ErrRunNotFound = errors.New("journal run not found")

var eventColumns = []string{
	"run_id", "seq", "beat", "at", "kind", "unit_id", "target_id", "building_id",
	"team", "prev_team", "col", "row", "amount", "units", "detail",
}

// Run is one recorded simulation.
type Run struct {
	ID        uuid.UUID
	Scenario  string
	StartedAt time.Time
}

// JournalRepository stores journal events of one run. It implements
// journal.Sink.
type JournalRepository struct {
	db    *pgxpool.Pool
	runID uuid.UUID
}

// BeginRun inserts a journal_runs row and returns a repository writing to it.
//
// Precondition: db must be a valid, open connection pool with the journal
// migrations applied.
// Postcondition: Returns a repository bound to a fresh run ID, or an error.
func BeginRun(ctx context.Context, db *pgxpool.Pool, scenario string) (*JournalRepository, error) {
	if db == nil {
		panic("postgres.BeginRun: db must not be nil")
	}
	id := uuid.New()
	if _, err := db.Exec(ctx,
		`INSERT INTO journal_runs (id, scenario) VALUES ($1, $2)`, id, scenario,
	); err != nil {
		return nil, fmt.Errorf("postgres.BeginRun: inserting run: %w", err)
	}
	return &JournalRepository{db: db, runID: id}, nil
}

// RunID returns the run this repository writes to.
func (r *JournalRepository) RunID() uuid.UUID { return r.runID }

// WriteEvents copies events into journal_events in one round trip.
//
// Postcondition: Either every event is stored or none is.
func (r *JournalRepository) WriteEvents(ctx context.Context, events []journal.Event) error {
	if len(events) == 0 {
		return nil
	}
	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"journal_events"}, eventColumns,
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			return r.row(events[i]), nil
		}),
	)
	if err != nil {
		return fmt.Errorf("postgres.WriteEvents: copying %d events: %w", len(events), err)
	}
	if int(n) != len(events) {
		return fmt.Errorf("postgres.WriteEvents: copied %d of %d events", n, len(events))
	}
	return nil
}

func (r *JournalRepository) row(ev journal.Event) []any {
	var col, row *int
	if ev.Coord != nil {
		c, rw := ev.Coord.Col, ev.Coord.Row
		col, row = &c, &rw
	}
	units := ev.Units
	if units == nil {
		units = []string{}
	}
	return []any{
		r.runID, int64(ev.Seq), int64(ev.Beat), ev.At, string(ev.Kind),
		ev.UnitID, ev.TargetID, ev.BuildingID,
		teamText(ev.Team), teamText(ev.PrevTeam),
		col, row, ev.Amount, units, ev.Detail,
	}
}

// Close implements journal.Sink. The pool belongs to the caller.
func (r *JournalRepository) Close() error { return nil }

// Run loads the run's metadata.
//
// Postcondition: Returns ErrRunNotFound when the run does not exist.
func (r *JournalRepository) Run(ctx context.Context) (Run, error) {
	var run Run
	err := r.db.QueryRow(ctx,
		`SELECT id, scenario, started_at FROM journal_runs WHERE id = $1`, r.runID,
	).Scan(&run.ID, &run.Scenario, &run.StartedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("postgres.Run: %w", err)
	}
	return run, nil
}

// Events returns the run's events with seq > after, in order, at most limit
// of them. A limit <= 0 returns all.
func (r *JournalRepository) Events(ctx context.Context, after uint64, limit int) ([]journal.Event, error) {
	q := `SELECT seq, beat, at, kind, unit_id, target_id, building_id, team, prev_team,
	             col, "row", amount, units, detail
	      FROM journal_events WHERE run_id = $1 AND seq > $2 ORDER BY seq`
	args := []any{r.runID, int64(after)}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres.Events: %w", err)
	}
	defer rows.Close()

	var out []journal.Event
	for rows.Next() {
		var (
			ev        journal.Event
			seq, beat int64
			kind      string
			tm, prev  string
			col, row  *int
		)
		if err := rows.Scan(&seq, &beat, &ev.At, &kind, &ev.UnitID, &ev.TargetID, &ev.BuildingID,
			&tm, &prev, &col, &row, &ev.Amount, &ev.Units, &ev.Detail); err != nil {
			return nil, fmt.Errorf("postgres.Events: scanning: %w", err)
		}
		ev.Seq, ev.Beat, ev.Kind = uint64(seq), uint64(beat), journal.Kind(kind)
		ev.Team, ev.PrevTeam = parseTeam(tm), parseTeam(prev)
		if col != nil && row != nil {
			ev.Coord = &hexgrid.Coord{Col: *col, Row: *row}
		}
		if len(ev.Units) == 0 {
			ev.Units = nil
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres.Events: %w", err)
	}
	return out, nil
}

// CountByKind returns how many events of each kind the run holds.
func (r *JournalRepository) CountByKind(ctx context.Context) (map[journal.Kind]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT kind, COUNT(*) FROM journal_events WHERE run_id = $1 GROUP BY kind`, r.runID)
	if err != nil {
		return nil, fmt.Errorf("postgres.CountByKind: %w", err)
	}
	defer rows.Close()
	counts := make(map[journal.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("postgres.CountByKind: scanning: %w", err)
		}
		counts[journal.Kind(kind)] = n
	}
	return counts, rows.Err()
}

func teamText(t team.Team) string {
	if t == team.None {
		return ""
	}
	return t.String()
}

func parseTeam(s string) team.Team {
	if s == "" {
		return team.None
	}
	t, err := team.Parse(s)
	if err != nil {
		return team.None
	}
	return t
}
