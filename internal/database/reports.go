package database

import "database/sql"

// InsertRunReport inserts or replaces the report for (kind, period).
func (db *DB) InsertRunReport(r RunReport) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT OR REPLACE INTO run_reports (kind, period_id, buckets_scored, alerts_fired, days_processed, signals_active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Kind, r.PeriodID, r.BucketsScored, r.AlertsFired, r.DaysProcessed, r.SignalsActive,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetLastRun returns the most recent report of a kind by period, or nil if
// none exists.
func (db *DB) GetLastRun(kind string) (*RunReport, error) {
	row := db.conn.QueryRow(
		`SELECT id, kind, period_id, buckets_scored, alerts_fired, days_processed, signals_active, generated_at
		FROM run_reports WHERE kind = ? ORDER BY period_id DESC LIMIT 1`,
		kind,
	)

	var r RunReport
	if err := row.Scan(&r.ID, &r.Kind, &r.PeriodID, &r.BucketsScored, &r.AlertsFired,
		&r.DaysProcessed, &r.SignalsActive, &r.GeneratedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM bucket_profiles", &s.Profiles},
		{"SELECT COUNT(DISTINCT week_start) FROM bucket_profiles", &s.ProfileWeeks},
		{"SELECT COUNT(DISTINCT bucket_id) FROM bucket_profiles", &s.Buckets},
		{"SELECT COUNT(*) FROM alerts", &s.Alerts},
		{"SELECT COUNT(*) FROM alerts WHERE dismissed_at IS NOT NULL", &s.DismissedAlerts},
		{"SELECT COUNT(*) FROM persistence_counters WHERE weeks > 0", &s.ActiveStreaks},
		{"SELECT COUNT(*) FROM run_reports WHERE kind = 'weekly'", &s.WeeklyRuns},
		{"SELECT COUNT(*) FROM run_reports WHERE kind = 'daily'", &s.DailyRuns},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}
