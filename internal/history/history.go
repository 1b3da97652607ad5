package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"calstats/internal/stats"
)

const currentVersion = 1

// Archive appends one snapshot row per pipeline run into a local sqlite
// database, so category totals can be reviewed as a trend over time.
// The workbook remains the report of record; archive failures are for
// the caller to log, never to abort on.
type Archive struct {
	db *sql.DB
}

// RunSnapshot is one archived run.
type RunSnapshot struct {
	ID          int64
	RunAt       time.Time
	Events      int
	OneOnOnes   float64
	Meetings    float64
	Blocked     float64
	Unscheduled float64
}

// Open opens (or creates) the archive database at dbPath and runs
// migrations.
func Open(dbPath string) (*Archive, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return a, nil
}

// OpenMemory creates an in-memory archive for testing.
func OpenMemory() (*Archive, error) {
	return Open(":memory:")
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) migrate() error {
	var version int
	if err := a.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		const ddl = `
		CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_at      TEXT NOT NULL,
			events      INTEGER NOT NULL,
			one_on_ones REAL NOT NULL DEFAULT 0,
			meetings    REAL NOT NULL DEFAULT 0,
			blocked     REAL NOT NULL DEFAULT 0,
			unscheduled REAL NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_runs_run_at ON runs(run_at);
		`
		if _, err := a.db.Exec(ddl); err != nil {
			return err
		}
	}

	_, err := a.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

// RecordRun appends one snapshot of a completed run.
func (a *Archive) RecordRun(runAt time.Time, events int, totals map[stats.Category]float64) error {
	_, err := a.db.Exec(
		`INSERT INTO runs (run_at, events, one_on_ones, meetings, blocked, unscheduled)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runAt.UTC().Format(time.RFC3339),
		events,
		totals[stats.CategoryOneOnOnes],
		totals[stats.CategoryMeetings],
		totals[stats.CategoryBlocked],
		totals[stats.CategoryUnscheduled],
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit snapshots, newest first.
func (a *Archive) RecentRuns(limit int) ([]RunSnapshot, error) {
	rows, err := a.db.Query(
		`SELECT id, run_at, events, one_on_ones, meetings, blocked, unscheduled
		 FROM runs ORDER BY run_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSnapshot
	for rows.Next() {
		var snap RunSnapshot
		var runAt string
		if err := rows.Scan(&snap.ID, &runAt, &snap.Events,
			&snap.OneOnOnes, &snap.Meetings, &snap.Blocked, &snap.Unscheduled); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339, runAt); perr == nil {
			snap.RunAt = t
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
