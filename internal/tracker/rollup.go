package tracker

import (
	"math"

	"github.com/TobiSchelling/techpulse/internal/period"
)

// mentions counts events in the window of days ending at (and including) day.
func mentions(events []Event, day period.Date, days int) int {
	from := day.AddDays(-(days - 1))
	n := 0
	for _, e := range events {
		if !e.Date.Before(from) && !e.Date.After(day) {
			n++
		}
	}
	return n
}

func distinctDomains(events []Event, day period.Date, days int) int {
	from := day.AddDays(-(days - 1))
	seen := make(map[string]bool)
	for _, e := range events {
		if e.Date.Before(from) || e.Date.After(day) {
			continue
		}
		for _, d := range e.Domains {
			seen[d] = true
		}
	}
	return len(seen)
}

func velocity(events []Event, day period.Date) float64 {
	return float64(mentions(events, day, 7) - mentions(events, day.AddDays(-7), 7))
}

// computeMetrics derives a signal's metrics as of day from its events alone,
// so processing the same history always yields the same numbers.
func computeMetrics(events []Event, lastSeen, day period.Date, cfg Config) Metrics {
	m := Metrics{
		Mentions7D:  mentions(events, day, 7),
		Mentions21D: mentions(events, day, 21),
		Domains7D:   distinctDomains(events, day, 7),
		Velocity:    velocity(events, day),
	}
	m.Acceleration = m.Velocity - velocity(events, day.AddDays(-7))

	volume := math.Min(1, float64(m.Mentions7D)/float64(cfg.ConfidenceEventSaturation))
	diversity := math.Min(1, float64(m.Domains7D)/float64(cfg.ConfidenceDomainSaturation))
	recency := 0.0
	if !lastSeen.IsZero() {
		recency = math.Max(0, 1-float64(day.DaysSince(lastSeen))/float64(cfg.DeadDays))
	}
	m.Confidence = round4(0.4*volume + 0.4*diversity + 0.2*recency)
	return m
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
