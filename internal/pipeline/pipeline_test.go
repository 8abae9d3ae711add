package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/techpulse/internal/alert"
	"github.com/TobiSchelling/techpulse/internal/bucket"
	"github.com/TobiSchelling/techpulse/internal/cluster"
	"github.com/TobiSchelling/techpulse/internal/config"
	"github.com/TobiSchelling/techpulse/internal/contract"
	"github.com/TobiSchelling/techpulse/internal/database"
	"github.com/TobiSchelling/techpulse/internal/period"
	"github.com/TobiSchelling/techpulse/internal/report"
)

func newTestPipeline(t *testing.T) (*Pipeline, *database.DB) {
	t.Helper()
	cfg := config.Default()
	cfg.Output.DataDir = t.TempDir()

	db, err := database.Open(cfg.DatabasePath(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	p := New(cfg, db, zerolog.Nop())
	p.now = func() time.Time { return time.Date(2026, 2, 12, 7, 0, 0, 0, time.UTC) }
	return p, db
}

func writeCache(t *testing.T, path, week string) {
	t.Helper()
	w := period.MustParse(week)
	cache := bucket.Cache{
		GeneratedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		WeekStart:   w,
		Profiles: []bucket.Profile{
			{
				BucketID: "agents", BucketName: "AI Agents", WeekStart: w,
				TMS: contract.Float(92), CCS: contract.Float(25), HeatScore: 80,
				SignalMetadata: map[string]contract.SignalMetadata{
					bucket.SignalTMS: contract.Present(92, 0.9, 0.85),
					bucket.SignalCCS: contract.Present(25, 0.8, 0.7),
				},
				TopTechnicalEntities: []string{"langchain"},
			},
			{
				BucketID: "quantum", BucketName: "Quantum", WeekStart: w,
				TMS: contract.Float(28), CCS: contract.Float(92), HeatScore: 40,
			},
		},
	}
	data, err := json.Marshal(cache)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestRunWeekly(t *testing.T) {
	p, db := newTestPipeline(t)
	path := p.cfg.GetProfilesPath()
	writeCache(t, path, "2026-02-02")
	week := period.MustParse("2026-02-02")

	r := p.RunWeekly(context.Background(), path)
	require.NoError(t, r.Err())
	assert.Equal(t, "2026-02-02", r.PeriodID)
	require.Len(t, r.Steps, 9)

	records, err := db.ListAlerts(week, true)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, alert.AlphaZone, records[0].Alert.AlertType)
	assert.Equal(t, 67.0, records[0].Alert.DivergenceMagnitude)
	assert.Equal(t, alert.HypeZone, records[1].Alert.AlertType)

	mdPath, htmlPath := report.Paths(p.cfg.ReportsDir(), week)
	assert.FileExists(t, mdPath)
	assert.FileExists(t, htmlPath)
	assert.FileExists(t, SnapshotPath(p.cfg.ReportsDir(), week))
	assert.FileExists(t, p.cfg.MetricsPath())

	last, err := db.GetLastRun(database.RunWeekly)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 2, last.BucketsScored)
	assert.Equal(t, 2, last.AlertsFired)
}

func TestRunWeeklyRerunKeepsDismissalAndCounters(t *testing.T) {
	p, db := newTestPipeline(t)
	path := p.cfg.GetProfilesPath()
	writeCache(t, path, "2026-02-02")
	week := period.MustParse("2026-02-02")

	require.NoError(t, p.RunWeekly(context.Background(), path).Err())
	records, err := db.ListAlerts(week, true)
	require.NoError(t, err)
	hype := records[1]
	_, err = db.ToggleDismiss(hype.ID)
	require.NoError(t, err)

	// Replaying the week neither double counts nor loses the dismissal.
	require.NoError(t, p.RunWeekly(context.Background(), path).Err())
	again, err := db.GetAlert(hype.ID)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.True(t, again.Dismissed())

	counters, err := db.LoadCounters()
	require.NoError(t, err)
	c := alert.NewCounters()
	c.Restore(counters)
	assert.Equal(t, 1, c.Get("agents", alert.AlphaZone).Weeks)

	mdPath, _ := report.Paths(p.cfg.ReportsDir(), week)
	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.NotContains(t, string(md), "Hype Zone")
	assert.Contains(t, string(md), "1 dismissed alert(s) hidden.")

	// The next week extends the streak.
	writeCache(t, path, "2026-02-09")
	require.NoError(t, p.RunWeekly(context.Background(), path).Err())
	next, err := db.ListAlerts(period.MustParse("2026-02-09"), true)
	require.NoError(t, err)
	require.NotEmpty(t, next)
	assert.Equal(t, alert.AlphaZone, next[0].Alert.AlertType)
	assert.Equal(t, 2, next[0].Alert.WeeksPersistent)
	assert.Equal(t, alert.SeverityWarn, next[0].Alert.Severity)
	assert.Equal(t, "2026-02-02", next[0].Alert.FirstDetected.String())
}

func TestRunWeeklyMissingCache(t *testing.T) {
	p, _ := newTestPipeline(t)
	r := p.RunWeekly(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, r.Err())
	require.Len(t, r.Steps, 1)
	assert.Equal(t, "Load", r.Steps[0].Name)
}

func writeFeed(t *testing.T, dir, date string, clusters ...cluster.Cluster) {
	t.Helper()
	data, err := json.Marshal(cluster.Feed{Date: date, Clusters: clusters})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, cluster.FileName(date)), data, 0o644))
}

func TestRunDaily(t *testing.T) {
	p, db := newTestPipeline(t)
	dir := p.cfg.GetSourceDir()
	writeFeed(t, dir, "2026-02-09",
		cluster.Cluster{ClusterID: "c1", Kind: cluster.KindTheme, RepresentativeTitle: "Agents everywhere", Entities: []string{"langchain", "agents"}})
	writeFeed(t, dir, "2026-02-10",
		cluster.Cluster{ClusterID: "c2", Kind: cluster.KindTheme, RepresentativeTitle: "More agents", Entities: []string{"langchain", "agents"}})

	r := p.RunDaily(context.Background(), []string{"2026-02-09", "2026-02-10", "2026-02-11"}, dir, false)
	require.NoError(t, r.Err())
	assert.Equal(t, "Track", r.Steps[0].Name)
	assert.Contains(t, r.Steps[0].Summary, "Processed 2 days (1 skipped)")

	st, err := p.SignalStore().Load()
	require.NoError(t, err)
	assert.Len(t, st.Signals, 1)
	assert.Equal(t, "2026-02-10", st.LastProcessedDate)

	last, err := db.GetLastRun(database.RunDaily)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "2026-02-10", last.PeriodID)
	assert.Equal(t, 2, last.DaysProcessed)
	assert.Equal(t, 1, last.SignalsActive)

	dates, err := p.PendingDates()
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-02-11", "2026-02-12"}, dates)

	r = p.RunDaily(context.Background(), nil, dir, true)
	require.NoError(t, r.Err())
	assert.Equal(t, "Reset", r.Steps[0].Name)
	st, err = p.SignalStore().Load()
	require.NoError(t, err)
	assert.Empty(t, st.Signals)
}

func TestPendingDatesFreshStore(t *testing.T) {
	p, _ := newTestPipeline(t)
	dates, err := p.PendingDates()
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-02-12"}, dates)
}
