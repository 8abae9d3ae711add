package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/TobiSchelling/techpulse/internal/alert"
	"github.com/TobiSchelling/techpulse/internal/bucket"
	"github.com/TobiSchelling/techpulse/internal/database"
	"github.com/TobiSchelling/techpulse/internal/fileutil"
	"github.com/TobiSchelling/techpulse/internal/period"
	"github.com/TobiSchelling/techpulse/internal/report"
	"github.com/TobiSchelling/techpulse/internal/snapshot"
)

// weeklyRun carries state between the weekly steps.
type weeklyRun struct {
	path     string
	week     period.Date
	cached   []bucket.Profile
	profiles []bucket.Profile
	history  map[string][]bucket.Profile
	counters *alert.Counters
	alerts   []alert.BucketAlert
}

// RunWeekly detects the week's alerts from a profile cache, stores the
// history and writes the report. Alert detection stops at the first failed
// step; the output steps run independently of each other.
func (p *Pipeline) RunWeekly(ctx context.Context, profilesPath string) *Result {
	start := p.now()
	r := &Result{}
	w := &weeklyRun{path: profilesPath}

	steps := []func(*weeklyRun) StepResult{
		p.stepLoadProfiles,
		p.stepStoreHistory,
		p.stepLoadHistory,
		p.stepRestoreCounters,
		p.stepDetect,
		p.stepSaveAlerts,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			r.add(StepResult{Name: "Cancelled", Err: err})
			return r
		}
		ok := r.add(step(w))
		r.PeriodID = w.week.String()
		if !ok {
			return r
		}
	}

	snap := snapshot.Build(w.week, w.profiles, w.alerts)
	r.add(p.stepReport(w, snap))
	r.add(p.stepRecordRun(snap))
	r.add(p.writeMetrics("weekly", start))
	return r
}

func (p *Pipeline) stepLoadProfiles(w *weeklyRun) StepResult {
	p.logger.Info().Str("path", w.path).Msg("loading bucket profiles")
	cache, err := bucket.LoadCache(w.path)
	if err != nil {
		return StepResult{Name: "Load", Err: err}
	}
	if cache.WeekStart.IsZero() {
		return StepResult{Name: "Load", Err: fmt.Errorf("profile cache %s has no week_start", w.path)}
	}
	w.week = cache.WeekStart
	w.cached = cache.Profiles

	// Profiles for other weeks are stored as history but not scored.
	for _, prof := range cache.Profiles {
		if prof.WeekStart.Equal(w.week) {
			w.profiles = append(w.profiles, prof)
		}
	}
	if other := len(cache.Profiles) - len(w.profiles); other > 0 {
		p.logger.Warn().Int("profiles", other).Str("week", w.week.String()).Msg("cache holds profiles for other weeks")
	}
	return StepResult{
		Name:    "Load",
		Summary: fmt.Sprintf("Loaded %d profiles for week %s", len(w.profiles), w.week),
	}
}

func (p *Pipeline) stepStoreHistory(w *weeklyRun) StepResult {
	n, err := p.db.InsertProfiles(w.cached)
	if err != nil {
		return StepResult{Name: "Store", Err: err}
	}
	return StepResult{
		Name:    "Store",
		Summary: fmt.Sprintf("Stored %d new profiles (%d already present)", n, len(w.cached)-n),
	}
}

func (p *Pipeline) stepLoadHistory(w *weeklyRun) StepResult {
	history, err := p.db.GetProfileHistory(w.week, p.cfg.Input.HistoryWeeks)
	if err != nil {
		return StepResult{Name: "History", Err: err}
	}
	w.history = history
	weeks := 0
	for _, h := range history {
		weeks = max(weeks, len(h))
	}
	return StepResult{
		Name:    "History",
		Summary: fmt.Sprintf("Loaded history for %d buckets (up to %d prior weeks)", len(history), weeks),
	}
}

func (p *Pipeline) stepRestoreCounters(w *weeklyRun) StepResult {
	records, err := p.db.LoadCounters()
	if err != nil {
		return StepResult{Name: "Counters", Err: err}
	}
	w.counters = alert.NewCounters()
	w.counters.Restore(records)
	return StepResult{Name: "Counters", Summary: fmt.Sprintf("Restored %d persistence counters", len(records))}
}

func (p *Pipeline) stepDetect(w *weeklyRun) StepResult {
	detector := alert.NewDetector(p.cfg.Alerts, w.counters, p.logger)
	w.alerts = detector.DetectAlerts(w.profiles, w.history)

	if p.recorder != nil {
		for _, a := range w.alerts {
			p.recorder.RecordAlert(string(a.AlertType), string(a.Severity))
		}
	}
	return StepResult{
		Name:    "Detect",
		Summary: fmt.Sprintf("Fired %d alerts across %d buckets", len(w.alerts), len(w.profiles)),
	}
}

func (p *Pipeline) stepSaveAlerts(w *weeklyRun) StepResult {
	if err := p.db.SaveCounters(w.counters.Export()); err != nil {
		return StepResult{Name: "Save", Err: fmt.Errorf("saving counters: %w", err)}
	}
	records, err := p.db.SaveWeekAlerts(w.week, w.alerts)
	if err != nil {
		return StepResult{Name: "Save", Err: fmt.Errorf("saving alerts: %w", err)}
	}
	dismissed := 0
	for _, rec := range records {
		if rec.Dismissed() {
			dismissed++
		}
	}
	return StepResult{
		Name:    "Save",
		Summary: fmt.Sprintf("Saved %d alerts (%d previously dismissed)", len(records), dismissed),
	}
}

func (p *Pipeline) stepReport(w *weeklyRun, snap snapshot.WeeklySnapshot) StepResult {
	keys, err := p.db.GetDismissedKeys(w.week)
	if err != nil {
		return StepResult{Name: "Report", Err: err}
	}
	hidden := func(a alert.BucketAlert) bool {
		if keys[database.AlertKey(a.BucketID, a.AlertType)] {
			if p.recorder != nil {
				p.recorder.RecordDismissed(string(a.AlertType))
			}
			return true
		}
		return false
	}

	rep, err := report.Build(snap, w.history, hidden, p.cfg.Presentation, p.now())
	if err != nil {
		return StepResult{Name: "Report", Err: err}
	}
	dir := p.cfg.ReportsDir()
	_, htmlPath, err := rep.Write(dir)
	if err != nil {
		return StepResult{Name: "Report", Err: err}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return StepResult{Name: "Report", Err: fmt.Errorf("encoding snapshot: %w", err)}
	}
	if err := fileutil.WriteFileAtomic(SnapshotPath(dir, w.week), data, 0o644); err != nil {
		return StepResult{Name: "Report", Err: err}
	}

	return StepResult{
		Name:    "Report",
		Summary: fmt.Sprintf("Wrote %s (%d cards, %d dismissed)", htmlPath, len(rep.Cards), rep.Dismissed),
	}
}

func (p *Pipeline) stepRecordRun(snap snapshot.WeeklySnapshot) StepResult {
	_, err := p.db.InsertRunReport(database.RunReport{
		Kind:          database.RunWeekly,
		PeriodID:      snap.WeekStart.String(),
		BucketsScored: snap.TotalBucketsScored,
		AlertsFired:   snap.TotalAlertsFired,
	})
	if err != nil {
		return StepResult{Name: "Record", Err: err}
	}
	return StepResult{
		Name: "Record",
		Summary: fmt.Sprintf("%d buckets scored, %d opportunities, %d risks",
			snap.TotalBucketsScored, snap.OpportunitiesCount, snap.RisksCount),
	}
}

// SnapshotPath returns where a week's snapshot JSON is written under dir.
func SnapshotPath(dir string, week period.Date) string {
	return filepath.Join(dir, "weekly_"+week.String()+".json")
}
