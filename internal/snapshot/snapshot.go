// Package snapshot aggregates one week's profiles and alerts into the weekly
// reporting artifact.
package snapshot

import (
	"sort"

	"github.com/TobiSchelling/techpulse/internal/alert"
	"github.com/TobiSchelling/techpulse/internal/bucket"
	"github.com/TobiSchelling/techpulse/internal/period"
)

// TopHeatingSize is the number of buckets listed in TopHeating.
const TopHeatingSize = 10

// WeeklySnapshot is the reportable summary of one ISO week.
type WeeklySnapshot struct {
	WeekStart      period.Date         `json:"week_start"`
	WeekEnd        period.Date         `json:"week_end"`
	BucketProfiles []bucket.Profile    `json:"bucket_profiles"`
	Alerts         []alert.BucketAlert `json:"alerts"`
	TopHeating     []string            `json:"top_heating"`

	TotalBucketsScored int `json:"total_buckets_scored"`
	TotalAlertsFired   int `json:"total_alerts_fired"`
	OpportunitiesCount int `json:"opportunities_count"`
	RisksCount         int `json:"risks_count"`
}

// Build assembles the snapshot for the week starting at weekStart. TopHeating
// holds up to TopHeatingSize bucket IDs by heat score descending; buckets with
// equal heat keep their input order.
func Build(weekStart period.Date, profiles []bucket.Profile, alerts []alert.BucketAlert) WeeklySnapshot {
	ranked := make([]bucket.Profile, len(profiles))
	copy(ranked, profiles)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].HeatScore > ranked[j].HeatScore
	})
	n := min(len(ranked), TopHeatingSize)
	top := make([]string, 0, n)
	for _, p := range ranked[:n] {
		top = append(top, p.BucketID)
	}

	s := WeeklySnapshot{
		WeekStart:          weekStart,
		WeekEnd:            period.WeekEnd(weekStart),
		BucketProfiles:     profiles,
		Alerts:             alerts,
		TopHeating:         top,
		TotalBucketsScored: len(profiles),
		TotalAlertsFired:   len(alerts),
	}
	for _, a := range alerts {
		switch a.Interpretation {
		case alert.Opportunity:
			s.OpportunitiesCount++
		case alert.Risk:
			s.RisksCount++
		}
	}
	return s
}

// Profile returns the profile for a bucket, or nil.
func (s WeeklySnapshot) Profile(bucketID string) *bucket.Profile {
	for i := range s.BucketProfiles {
		if s.BucketProfiles[i].BucketID == bucketID {
			return &s.BucketProfiles[i]
		}
	}
	return nil
}
