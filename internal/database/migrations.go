package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "profile and alert history",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS bucket_profiles (
    bucket_id TEXT NOT NULL,
    week_start TEXT NOT NULL,
    bucket_name TEXT,
    heat_score REAL DEFAULT 0,
    payload TEXT NOT NULL,
    stored_at TEXT DEFAULT (datetime('now')),
    PRIMARY KEY (bucket_id, week_start)
);

CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    bucket_id TEXT NOT NULL,
    week_start TEXT NOT NULL,
    alert_type TEXT NOT NULL,
    severity TEXT NOT NULL,
    interpretation TEXT NOT NULL,
    magnitude REAL DEFAULT 0,
    position INTEGER DEFAULT 0,
    payload TEXT NOT NULL,
    dismissed_at TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now')),
    UNIQUE (bucket_id, week_start, alert_type)
);

CREATE INDEX IF NOT EXISTS idx_bucket_profiles_week ON bucket_profiles(week_start);
CREATE INDEX IF NOT EXISTS idx_alerts_week ON alerts(week_start);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "persistence counters and run reports",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS persistence_counters (
    bucket_id TEXT NOT NULL,
    alert_type TEXT NOT NULL,
    weeks INTEGER NOT NULL DEFAULT 0,
    first_detected TEXT,
    last_week TEXT,
    PRIMARY KEY (bucket_id, alert_type)
);

CREATE TABLE IF NOT EXISTS run_reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL CHECK(kind IN ('weekly', 'daily')),
    period_id TEXT NOT NULL,
    buckets_scored INTEGER DEFAULT 0,
    alerts_fired INTEGER DEFAULT 0,
    days_processed INTEGER DEFAULT 0,
    signals_active INTEGER DEFAULT 0,
    generated_at TEXT DEFAULT (datetime('now')),
    UNIQUE (kind, period_id)
);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
