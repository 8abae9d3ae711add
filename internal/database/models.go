package database

import "github.com/TobiSchelling/techpulse/internal/alert"

// Run kinds stored in run_reports.
const (
	RunWeekly = "weekly"
	RunDaily  = "daily"
)

// AlertRecord is a stored alert with its history metadata.
type AlertRecord struct {
	ID          string
	Alert       alert.BucketAlert
	DismissedAt *string
	CreatedAt   string
}

// Dismissed reports whether the alert has been dismissed.
func (r AlertRecord) Dismissed() bool {
	return r.DismissedAt != nil
}

// RunReport records one pipeline run. PeriodID is the week start for weekly
// runs and the last processed date for daily runs.
type RunReport struct {
	ID            int64
	Kind          string
	PeriodID      string
	BucketsScored int
	AlertsFired   int
	DaysProcessed int
	SignalsActive int
	GeneratedAt   string
}

// Stats holds aggregate database statistics.
type Stats struct {
	Profiles        int
	ProfileWeeks    int
	Buckets         int
	Alerts          int
	DismissedAlerts int
	ActiveStreaks   int
	WeeklyRuns      int
	DailyRuns       int
}
