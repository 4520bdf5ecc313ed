// Package sqlite stores the simulation journal in a local SQLite file using
// the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
	"github.com/cory-johannsen/hexbeat/internal/journal"
)

// Journal is a journal.Sink writing one run into a SQLite database.
type Journal struct {
	db    *sql.DB
	runID string
}

// Open creates or opens the database at path, applies the schema, and starts
// a new run for scenario.
//
// Postcondition: Returns a Journal ready for WriteEvents, or an error.
func Open(ctx context.Context, path, scenario string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("sqlite.Open: empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite.Open: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.Open: pragmas: %w", err)
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.Open: schema: %w", err)
	}

	id := uuid.NewString()
	if _, err := db.ExecContext(ctx,
		`INSERT INTO runs (id, scenario, started_at) VALUES (?, ?, ?)`,
		id, scenario, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.Open: inserting run: %w", err)
	}
	return &Journal{db: db, runID: id}, nil
}

func initPragmas(ctx context.Context, db *sql.DB) error {
	// WAL suits the append-only journal.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			scenario TEXT NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			beat INTEGER NOT NULL,
			at TEXT NOT NULL,
			kind TEXT NOT NULL,
			unit_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			building_id TEXT NOT NULL,
			team TEXT NOT NULL,
			prev_team TEXT NOT NULL,
			col INTEGER,
			row INTEGER,
			amount REAL NOT NULL,
			units TEXT NOT NULL,
			detail TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind ON events(run_id, kind, beat);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// RunID returns the run this journal writes to.
func (j *Journal) RunID() string { return j.runID }

// WriteEvents inserts events in one transaction.
func (j *Journal) WriteEvents(ctx context.Context, events []journal.Event) (err error) {
	if len(events) == 0 {
		return nil
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite.WriteEvents: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events
		(run_id, seq, beat, at, kind, unit_id, target_id, building_id, team, prev_team, col, row, amount, units, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite.WriteEvents: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		var col, row sql.NullInt64
		if ev.Coord != nil {
			col = sql.NullInt64{Int64: int64(ev.Coord.Col), Valid: true}
			row = sql.NullInt64{Int64: int64(ev.Coord.Row), Valid: true}
		}
		units, err := json.Marshal(ev.Units)
		if err != nil {
			return fmt.Errorf("sqlite.WriteEvents: encoding units: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			j.runID, int64(ev.Seq), int64(ev.Beat), ev.At.UTC().Format(time.RFC3339Nano), string(ev.Kind),
			ev.UnitID, ev.TargetID, ev.BuildingID, teamText(ev.Team), teamText(ev.PrevTeam),
			col, row, ev.Amount, string(units), ev.Detail,
		); err != nil {
			return fmt.Errorf("sqlite.WriteEvents: seq %d: %w", ev.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite.WriteEvents: commit: %w", err)
	}
	return nil
}

// Events returns the run's events with seq > after, in order.
func (j *Journal) Events(ctx context.Context, after uint64) ([]journal.Event, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT seq, beat, at, kind, unit_id, target_id, building_id,
		team, prev_team, col, row, amount, units, detail
		FROM events WHERE run_id = ? AND seq > ? ORDER BY seq`, j.runID, int64(after))
	if err != nil {
		return nil, fmt.Errorf("sqlite.Events: %w", err)
	}
	defer rows.Close()

	var out []journal.Event
	for rows.Next() {
		var (
			ev              journal.Event
			seq, beat       int64
			at, kind        string
			tm, prev, units string
			col, row        sql.NullInt64
		)
		if err := rows.Scan(&seq, &beat, &at, &kind, &ev.UnitID, &ev.TargetID, &ev.BuildingID,
			&tm, &prev, &col, &row, &ev.Amount, &units, &ev.Detail); err != nil {
			return nil, fmt.Errorf("sqlite.Events: scanning: %w", err)
		}
		ev.Seq, ev.Beat, ev.Kind = uint64(seq), uint64(beat), journal.Kind(kind)
		if ev.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("sqlite.Events: seq %d: %w", seq, err)
		}
		ev.Team, ev.PrevTeam = parseTeam(tm), parseTeam(prev)
		if col.Valid && row.Valid {
			ev.Coord = &hexgrid.Coord{Col: int(col.Int64), Row: int(row.Int64)}
		}
		if err := json.Unmarshal([]byte(units), &ev.Units); err != nil {
			return nil, fmt.Errorf("sqlite.Events: seq %d units: %w", seq, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

func teamText(t team.Team) string {
	if t == team.None {
		return ""
	}
	return t.String()
}

func parseTeam(s string) team.Team {
	t, err := team.Parse(s)
	if err != nil {
		return team.None
	}
	return t
}
