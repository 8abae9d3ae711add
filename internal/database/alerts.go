package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/TobiSchelling/techpulse/internal/alert"
	"github.com/TobiSchelling/techpulse/internal/period"
)

// ErrAlertNotFound is returned by ToggleDismiss for an unknown alert ID.
var ErrAlertNotFound = errors.New("alert not found")

// SaveWeekAlerts replaces the stored alerts for week with alerts, in order.
// An alert already stored for the same (bucket, week, type) keeps its ID and
// dismissal; stored alerts that no longer fire are removed.
func (db *DB) SaveWeekAlerts(week period.Date, alerts []alert.BucketAlert) ([]AlertRecord, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	records := make([]AlertRecord, 0, len(alerts))
	for i, a := range alerts {
		if !a.WeekStart.Equal(week) {
			return nil, fmt.Errorf("alert %s/%s is for week %s, not %s", a.BucketID, a.AlertType, a.WeekStart, week)
		}
		payload, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encoding alert %s/%s: %w", a.BucketID, a.AlertType, err)
		}

		_, err = tx.Exec(
			`INSERT INTO alerts (id, bucket_id, week_start, alert_type, severity, interpretation, magnitude, position, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (bucket_id, week_start, alert_type) DO UPDATE SET
				severity = excluded.severity,
				interpretation = excluded.interpretation,
				magnitude = excluded.magnitude,
				position = excluded.position,
				payload = excluded.payload,
				updated_at = datetime('now')`,
			uuid.NewString(), a.BucketID, week.String(), string(a.AlertType), string(a.Severity),
			string(a.Interpretation), a.DivergenceMagnitude, i, string(payload),
		)
		if err != nil {
			return nil, fmt.Errorf("saving alert %s/%s: %w", a.BucketID, a.AlertType, err)
		}

		rec := AlertRecord{Alert: a}
		err = tx.QueryRow(
			`SELECT id, dismissed_at, created_at FROM alerts
			WHERE bucket_id = ? AND week_start = ? AND alert_type = ?`,
			a.BucketID, week.String(), string(a.AlertType),
		).Scan(&rec.ID, &rec.DismissedAt, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	prune := `DELETE FROM alerts WHERE week_start = ?`
	args := []any{week.String()}
	if len(records) > 0 {
		prune += ` AND id NOT IN (?` + strings.Repeat(", ?", len(records)-1) + `)`
		for _, rec := range records {
			args = append(args, rec.ID)
		}
	}
	if _, err := tx.Exec(prune, args...); err != nil {
		return nil, fmt.Errorf("pruning stale alerts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return records, nil
}

// ListAlerts returns a week's alerts in detection order.
func (db *DB) ListAlerts(week period.Date, includeDismissed bool) ([]AlertRecord, error) {
	query := `SELECT id, payload, dismissed_at, created_at FROM alerts WHERE week_start = ?`
	if !includeDismissed {
		query += ` AND dismissed_at IS NULL`
	}
	query += ` ORDER BY position, id`

	rows, err := db.conn.Query(query, week.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []AlertRecord
	for rows.Next() {
		rec, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// GetAlert returns a single alert by ID, or nil if it does not exist.
func (db *DB) GetAlert(id string) (*AlertRecord, error) {
	row := db.conn.QueryRow(
		`SELECT id, payload, dismissed_at, created_at FROM alerts WHERE id = ?`, id,
	)
	rec, err := scanAlert(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// ToggleDismiss flips an alert's dismissal and returns the new state.
func (db *DB) ToggleDismiss(id string) (bool, error) {
	result, err := db.conn.Exec(
		`UPDATE alerts SET dismissed_at = CASE WHEN dismissed_at IS NULL THEN datetime('now') ELSE NULL END
		WHERE id = ?`, id,
	)
	if err != nil {
		return false, err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return false, fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}

	var dismissedAt sql.NullString
	if err := db.conn.QueryRow(`SELECT dismissed_at FROM alerts WHERE id = ?`, id).Scan(&dismissedAt); err != nil {
		return false, err
	}
	return dismissedAt.Valid, nil
}

// GetDismissedKeys returns the AlertKey of every dismissed alert in week.
func (db *DB) GetDismissedKeys(week period.Date) (map[string]bool, error) {
	rows, err := db.conn.Query(
		`SELECT bucket_id, alert_type FROM alerts WHERE week_start = ? AND dismissed_at IS NOT NULL`,
		week.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := make(map[string]bool)
	for rows.Next() {
		var bucketID, alertType string
		if err := rows.Scan(&bucketID, &alertType); err != nil {
			return nil, err
		}
		m[AlertKey(bucketID, alert.AlertType(alertType))] = true
	}
	return m, rows.Err()
}

// AlertKey identifies an alert within a week.
func AlertKey(bucketID string, t alert.AlertType) string {
	return bucketID + "/" + string(t)
}

// GetLatestAlertWeek returns the most recent week with stored alerts, or the
// zero date.
func (db *DB) GetLatestAlertWeek() (period.Date, error) {
	var week sql.NullString
	if err := db.conn.QueryRow(`SELECT MAX(week_start) FROM alerts`).Scan(&week); err != nil {
		return period.Date{}, err
	}
	if !week.Valid {
		return period.Date{}, nil
	}
	return period.Parse(week.String)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*AlertRecord, error) {
	var rec AlertRecord
	var payload string
	if err := row.Scan(&rec.ID, &payload, &rec.DismissedAt, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &rec.Alert); err != nil {
		return nil, fmt.Errorf("decoding alert %s: %w", rec.ID, err)
	}
	return &rec, nil
}
