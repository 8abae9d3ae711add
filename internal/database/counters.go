package database

import (
	"database/sql"
	"fmt"

	"github.com/TobiSchelling/techpulse/internal/alert"
	"github.com/TobiSchelling/techpulse/internal/period"
)

// SaveCounters replaces the stored persistence counters with records.
func (db *DB) SaveCounters(records []alert.StreakRecord) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM persistence_counters`); err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO persistence_counters (bucket_id, alert_type, weeks, first_detected, last_week)
		VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r.BucketID, string(r.AlertType), r.Weeks,
			nullDate(r.FirstDetected), nullDate(r.LastWeek)); err != nil {
			return fmt.Errorf("saving counter %s/%s: %w", r.BucketID, r.AlertType, err)
		}
	}
	return tx.Commit()
}

// LoadCounters returns every stored counter, sorted by bucket then alert type.
func (db *DB) LoadCounters() ([]alert.StreakRecord, error) {
	rows, err := db.conn.Query(
		`SELECT bucket_id, alert_type, weeks, first_detected, last_week
		FROM persistence_counters ORDER BY bucket_id, alert_type`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []alert.StreakRecord
	for rows.Next() {
		var r alert.StreakRecord
		var alertType string
		var first, last sql.NullString
		if err := rows.Scan(&r.BucketID, &alertType, &r.Weeks, &first, &last); err != nil {
			return nil, err
		}
		r.AlertType = alert.AlertType(alertType)
		if r.FirstDetected, err = parseNullDate(first); err != nil {
			return nil, err
		}
		if r.LastWeek, err = parseNullDate(last); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func nullDate(d period.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func parseNullDate(s sql.NullString) (period.Date, error) {
	if !s.Valid || s.String == "" {
		return period.Date{}, nil
	}
	return period.Parse(s.String)
}
