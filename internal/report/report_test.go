package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/techpulse/internal/alert"
	"github.com/TobiSchelling/techpulse/internal/bucket"
	"github.com/TobiSchelling/techpulse/internal/contract"
	"github.com/TobiSchelling/techpulse/internal/period"
	"github.com/TobiSchelling/techpulse/internal/snapshot"
	"github.com/TobiSchelling/techpulse/internal/ui"
)

var week = period.MustParse("2026-02-09")

func fixture() snapshot.WeeklySnapshot {
	profiles := []bucket.Profile{
		{
			BucketID: "agents", BucketName: "AI Agents", WeekStart: week,
			TMS: contract.Float(92), CCS: contract.Float(25), HeatScore: 80,
			SignalMetadata: map[string]contract.SignalMetadata{
				bucket.SignalTMS: {Value: contract.Float(92), Confidence: 0.9, Coverage: 0.85},
				bucket.SignalCCS: {Value: contract.Float(25), Confidence: 0.4, Coverage: 0.7},
			},
		},
		{BucketID: "quantum", BucketName: "Quantum", WeekStart: week, TMS: contract.Float(28), CCS: contract.Float(92), HeatScore: 60},
	}
	alerts := []alert.BucketAlert{
		{
			BucketID: "agents", BucketName: "AI Agents", WeekStart: week,
			AlertType: alert.AlphaZone, Interpretation: alert.Opportunity, Cause: alert.CauseDivergence,
			Severity: alert.SeverityInfo, DivergenceMagnitude: 67, WeeksPersistent: 1,
			Rationale: "Builders are ahead of investors.", WhyNow: "Gap of 67 points.",
			FeaturesUsed: []string{bucket.SignalTMS, bucket.SignalCCS}, SupportingEntities: []string{"langchain"},
		},
		{
			BucketID: "quantum", BucketName: "Quantum", WeekStart: week,
			AlertType: alert.HypeZone, Interpretation: alert.Risk, Cause: alert.CauseDivergence,
			Severity: alert.SeverityCrit, DivergenceMagnitude: 64, WeeksPersistent: 3,
			FeaturesUsed: []string{bucket.SignalCCS, bucket.SignalTMS},
		},
	}
	return snapshot.Build(week, profiles, alerts)
}

func TestCompose(t *testing.T) {
	s := fixture()
	pres := ui.DefaultPresentation()
	var cards []ui.AlertCard
	for _, a := range s.Alerts {
		cards = append(cards, ui.BuildAlertCardData(a, s.Profile(a.BucketID), nil, pres))
	}

	md := Compose(s, cards, 0)
	assert.Contains(t, md, "# Tech Pulse: week of Feb 09 - Feb 15, 2026")
	assert.Contains(t, md, "2 buckets scored, 2 alerts fired (1 opportunities, 1 risks).")
	assert.Contains(t, md, "1. **AI Agents** (heat 80)")
	assert.Contains(t, md, "## Opportunities")
	assert.Contains(t, md, "### 🔵 Alpha Zone: AI Agents")
	assert.Contains(t, md, "> Builders are ahead of investors.")
	assert.Contains(t, md, "| Technical Momentum | 92 | 85% | HIGH |")
	assert.Contains(t, md, "Entities: langchain")
	// Card confidence is the weakest feature, 0.4, so the card is dashed.
	assert.Contains(t, md, "_low confidence_")
	assert.Contains(t, md, "## Risks")
	assert.NotContains(t, md, "## Signals")
	assert.Less(t, strings.Index(md, "## Opportunities"), strings.Index(md, "## Risks"))
}

func TestComposeNoAlerts(t *testing.T) {
	s := snapshot.Build(week, nil, nil)
	md := Compose(s, nil, 0)
	assert.Contains(t, md, "No alerts this week.")
	assert.NotContains(t, md, "## Top Heating")
}

func TestBuildHidesDismissed(t *testing.T) {
	s := fixture()
	hidden := func(a alert.BucketAlert) bool { return a.AlertType == alert.HypeZone }

	r, err := Build(s, nil, hidden, ui.DefaultPresentation(), time.Date(2026, 2, 16, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, r.Cards, 1)
	assert.Equal(t, 1, r.Dismissed)
	assert.Contains(t, r.Markdown, "2 alerts fired")
	assert.Contains(t, r.Markdown, "1 dismissed alert(s) hidden.")
	assert.NotContains(t, r.Markdown, "Hype Zone")

	assert.Contains(t, r.HTML, "<title>Tech Pulse: week of Feb 09 - Feb 15, 2026</title>")
	assert.Contains(t, r.HTML, "<h2>Opportunities</h2>")
	assert.Contains(t, r.HTML, "<table>")
	assert.Contains(t, r.HTML, "Mon, 16 Feb 2026 08:00:00 UTC")
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	r, err := Build(fixture(), nil, nil, ui.DefaultPresentation(), time.Now())
	require.NoError(t, err)

	mdPath, htmlPath, err := r.Write(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "weekly_2026-02-09.md"), mdPath)
	assert.Equal(t, filepath.Join(dir, "weekly_2026-02-09.html"), htmlPath)

	data, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Equal(t, r.Markdown, string(data))
	assert.FileExists(t, htmlPath)
}
