package snapshot

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/techpulse/internal/alert"
	"github.com/TobiSchelling/techpulse/internal/bucket"
	"github.com/TobiSchelling/techpulse/internal/period"
)

func TestBuild(t *testing.T) {
	week := period.MustParse("2026-02-09")

	var profiles []bucket.Profile
	for i := 0; i < 12; i++ {
		profiles = append(profiles, bucket.Profile{
			BucketID:  fmt.Sprintf("b%02d", i),
			WeekStart: week,
			HeatScore: float64(i % 6),
		})
	}
	alerts := []alert.BucketAlert{
		{BucketID: "b01", AlertType: alert.AlphaZone, Interpretation: alert.Opportunity},
		{BucketID: "b02", AlertType: alert.HypeZone, Interpretation: alert.Risk},
		{BucketID: "b01", AlertType: alert.DisruptionPressure, Interpretation: alert.Signal},
		{BucketID: "b03", AlertType: alert.EnterprisePull, Interpretation: alert.Opportunity},
	}

	s := Build(week, profiles, alerts)
	assert.Equal(t, "2026-02-09", s.WeekStart.String())
	assert.Equal(t, "2026-02-15", s.WeekEnd.String())
	assert.Equal(t, 12, s.TotalBucketsScored)
	assert.Equal(t, 4, s.TotalAlertsFired)
	assert.Equal(t, 2, s.OpportunitiesCount)
	assert.Equal(t, 1, s.RisksCount)

	require.Len(t, s.TopHeating, TopHeatingSize)
	// Heat 5,5,4,4,3,3,2,2,1,1 with ties in input order.
	assert.Equal(t, []string{"b05", "b11", "b04", "b10", "b03", "b09", "b02", "b08", "b01", "b07"}, s.TopHeating)

	// Ranking must not reorder the caller's profiles.
	assert.Equal(t, "b00", s.BucketProfiles[0].BucketID)

	require.NotNil(t, s.Profile("b03"))
	assert.Nil(t, s.Profile("missing"))
}

func TestBuild_Empty(t *testing.T) {
	s := Build(period.MustParse("2026-02-09"), nil, nil)
	assert.Empty(t, s.TopHeating)
	assert.Zero(t, s.TotalBucketsScored)
	assert.Zero(t, s.TotalAlertsFired)
}
