package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations. Statements are idempotent and rerun
// on every open.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS cut_plan_items (
		mark             TEXT PRIMARY KEY,
		bar_size         TEXT NOT NULL,
		cut_length_mm    REAL NOT NULL DEFAULT 0,
		pieces_per_bar   INTEGER NOT NULL DEFAULT 0,
		total_pieces     INTEGER NOT NULL DEFAULT 0 CHECK(total_pieces >= 0),
		completed_pieces INTEGER NOT NULL DEFAULT 0 CHECK(completed_pieces >= 0),
		shape            TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS runs (
		id            TEXT PRIMARY KEY,
		machine_id    TEXT NOT NULL,
		model         TEXT NOT NULL,
		bar_size      TEXT NOT NULL,
		item_mark     TEXT NOT NULL REFERENCES cut_plan_items(mark),
		plan          TEXT NOT NULL,
		slots         TEXT NOT NULL,
		status        TEXT NOT NULL
		              CHECK(status IN ('active','paused','finished','aborted')),
		committed     INTEGER NOT NULL DEFAULT 0,
		started_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL,
		last_event_at TEXT NOT NULL,
		finished_at   TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_machine ON runs(machine_id)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_item ON runs(item_mark)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,

	`CREATE TABLE IF NOT EXISTS run_events (
		id           TEXT PRIMARY KEY,
		run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq          INTEGER NOT NULL,
		action       TEXT NOT NULL,
		slot         INTEGER NOT NULL DEFAULT -1,
		changed      INTEGER NOT NULL DEFAULT 0,
		strokes_done INTEGER NOT NULL DEFAULT 0,
		at           TEXT NOT NULL,
		UNIQUE(run_id, seq)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id)`,
}
