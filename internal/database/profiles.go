package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/TobiSchelling/techpulse/internal/bucket"
	"github.com/TobiSchelling/techpulse/internal/period"
)

// InsertProfiles stores a week's profiles. A (bucket, week) already present is
// left untouched, so history is append-only. Returns the number inserted.
func (db *DB) InsertProfiles(profiles []bucket.Profile) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO bucket_profiles (bucket_id, week_start, bucket_name, heat_score, payload)
		VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range profiles {
		payload, err := json.Marshal(p)
		if err != nil {
			return 0, fmt.Errorf("encoding profile %s: %w", p.BucketID, err)
		}
		result, err := stmt.Exec(p.BucketID, p.WeekStart.String(), p.BucketName, p.HeatScore, string(payload))
		if err != nil {
			return 0, fmt.Errorf("inserting profile %s: %w", p.BucketID, err)
		}
		n, _ := result.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetProfileHistory returns every bucket's profiles for the weeks strictly
// before week, oldest first. weeks limits how far back to look; 0 means all.
func (db *DB) GetProfileHistory(week period.Date, weeks int) (map[string][]bucket.Profile, error) {
	query := `SELECT payload FROM bucket_profiles WHERE week_start < ?`
	args := []any{week.String()}
	if weeks > 0 {
		query += ` AND week_start >= ?`
		args = append(args, week.AddDays(-7*weeks).String())
	}
	query += ` ORDER BY bucket_id, week_start`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	profiles, err := scanProfiles(rows)
	if err != nil {
		return nil, err
	}

	history := make(map[string][]bucket.Profile)
	for _, p := range profiles {
		history[p.BucketID] = append(history[p.BucketID], p)
	}
	return history, nil
}

// GetProfilesForWeek returns the profiles stored for one week by bucket ID.
func (db *DB) GetProfilesForWeek(week period.Date) ([]bucket.Profile, error) {
	rows, err := db.conn.Query(
		`SELECT payload FROM bucket_profiles WHERE week_start = ? ORDER BY bucket_id`,
		week.String(),
	)
	if err != nil {
		return nil, err
	}
	return scanProfiles(rows)
}

// GetLatestProfileWeek returns the most recent stored week, or the zero date
// if the history is empty.
func (db *DB) GetLatestProfileWeek() (period.Date, error) {
	var week sql.NullString
	if err := db.conn.QueryRow(`SELECT MAX(week_start) FROM bucket_profiles`).Scan(&week); err != nil {
		return period.Date{}, err
	}
	if !week.Valid {
		return period.Date{}, nil
	}
	return period.Parse(week.String)
}

func scanProfiles(rows *sql.Rows) ([]bucket.Profile, error) {
	defer rows.Close()
	var profiles []bucket.Profile
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var p bucket.Profile
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("decoding stored profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
