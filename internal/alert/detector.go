package alert

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/TobiSchelling/techpulse/internal/bucket"
)

// evaluation is a rule's verdict on one profile before persistence and
// severity are applied.
type evaluation struct {
	holds     bool
	magnitude float64
	scores    map[string]float64
	threshold string
	rationale string
	whyNow    string
	entities  []string
}

type rule struct {
	alertType AlertType
	id        string
	eval      func(d *Detector, p *bucket.Profile, prior []bucket.Profile) evaluation
}

var rules = []rule{
	{AlphaZone, "alpha_zone.tms_high_ccs_low.v1", (*Detector).evalAlpha},
	{HypeZone, "hype_zone.ccs_high_tms_low.v1", (*Detector).evalHype},
	{EnterprisePull, "enterprise_pull.eis_offensive_delta.v1", (*Detector).evalEnterprisePull},
	{DisruptionPressure, "disruption_pressure.eis_defensive_high.v1", (*Detector).evalDisruption},
	{Rotation, "rotation.tms_decline_ccs_stable.v1", (*Detector).evalRotation},
}

const dataHealthRuleID = "data_health.coverage_drop.v1"

// Detector evaluates the alert rules for every bucket each week. Its only
// mutable state is the persistence counter store.
type Detector struct {
	cfg      Config
	counters *Counters
	logger   zerolog.Logger
}

// NewDetector creates a detector. An invalid config is a programming error and
// panics; counters may be nil for a fresh store.
func NewDetector(cfg Config, counters *Counters, logger zerolog.Logger) *Detector {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	if counters == nil {
		counters = NewCounters()
	}
	return &Detector{cfg: cfg, counters: counters, logger: logger}
}

// Counters returns the detector's persistence store.
func (d *Detector) Counters() *Counters {
	return d.counters
}

// Config returns the detector thresholds.
func (d *Detector) Config() Config {
	return d.cfg
}

// DetectAlerts evaluates every rule for every profile. historical maps bucket
// IDs to that bucket's earlier profiles in any order. The result is sorted by
// divergence magnitude descending; ties keep input bucket order.
func (d *Detector) DetectAlerts(profiles []bucket.Profile, historical map[string][]bucket.Profile) []BucketAlert {
	type job struct {
		profile   *bucket.Profile
		partition *BucketCounters
	}

	seen := make(map[string]bool, len(profiles))
	jobs := make([]job, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		if seen[p.BucketID] {
			d.logger.Warn().Str("bucket", p.BucketID).Msg("duplicate bucket profile in one pass, keeping the first")
			continue
		}
		seen[p.BucketID] = true
		jobs = append(jobs, job{profile: p, partition: d.counters.Bucket(p.BucketID)})
	}

	results := make([][]BucketAlert, len(jobs))
	work := make(chan int)
	var wg sync.WaitGroup
	workers := min(d.cfg.Parallelism, len(jobs))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				j := jobs[i]
				results[i] = d.evaluate(j.profile, historical[j.profile.BucketID], j.partition)
			}
		}()
	}
	for i := range jobs {
		work <- i
	}
	close(work)
	wg.Wait()

	var alerts []BucketAlert
	for _, r := range results {
		alerts = append(alerts, r...)
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].DivergenceMagnitude > alerts[j].DivergenceMagnitude
	})

	d.logger.Info().
		Int("buckets", len(jobs)).
		Int("alerts", len(alerts)).
		Msg("alert detection complete")
	return alerts
}

func (d *Detector) evaluate(p *bucket.Profile, history []bucket.Profile, part *BucketCounters) []BucketAlert {
	prior := bucket.PriorTo(history, p.WeekStart)

	var out []BucketAlert
	for _, r := range rules {
		ev := r.eval(d, p, prior)

		// A week whose inputs fail the coverage gate is unknown: it neither
		// extends nor breaks the streak.
		if ok, reason := gate(p, r.alertType, d.cfg.CoverageThreshold, d.cfg.RequireMetadata); !ok {
			part.Skip(r.alertType, p.WeekStart)
			if ev.holds {
				d.logger.Debug().
					Str("bucket", p.BucketID).
					Str("alert_type", string(r.alertType)).
					Str("reason", reason).
					Msg("alert suppressed")
			}
			continue
		}

		streak := part.Observe(r.alertType, p.WeekStart, ev.holds)
		if !ev.holds {
			continue
		}

		// Only Alpha Zone carries a persistence gate; Hype Zone fires on the
		// first week it is seen.
		if r.alertType == AlphaZone && streak.Weeks < d.cfg.AlphaWeeksRequired {
			d.logger.Debug().
				Str("bucket", p.BucketID).
				Int("weeks", streak.Weeks).
				Int("required", d.cfg.AlphaWeeksRequired).
				Msg("alpha zone not yet persistent")
			continue
		}

		out = append(out, d.build(p, r.alertType, r.id, ev, streak))
	}

	var (
		health      evaluation
		healthHolds bool
	)
	if d.cfg.DataHealthEnabled && len(prior) > 0 {
		health, healthHolds = d.dataHealth(p, prior[len(prior)-1].Coverage())
	}
	streak := part.Observe(DataHealth, p.WeekStart, healthHolds)
	if healthHolds {
		out = append(out, d.build(p, DataHealth, dataHealthRuleID, health, streak))
	}
	return out
}

func (d *Detector) build(p *bucket.Profile, t AlertType, ruleID string, ev evaluation, streak Streak) BucketAlert {
	whyNow := ev.whyNow
	if streak.Weeks > 1 {
		whyNow = fmt.Sprintf("%s Condition has held for %d consecutive weeks since %s.",
			whyNow, streak.Weeks, streak.FirstDetected)
	}

	first := streak.FirstDetected
	if first.IsZero() {
		first = p.WeekStart
	}
	weeks := max(streak.Weeks, 1)

	features := RequiredSignals(t)
	if t == DataHealth {
		features = sortedKeys(ev.scores)
	}

	return BucketAlert{
		BucketID:            p.BucketID,
		BucketName:          p.BucketName,
		WeekStart:           p.WeekStart,
		AlertType:           t,
		Interpretation:      InterpretationOf(t),
		Cause:               CauseOf(t),
		Severity:            d.cfg.Bands(t).Grade(ev.magnitude, weeks),
		TriggerScores:       ev.scores,
		ThresholdUsed:       ev.threshold,
		DivergenceMagnitude: ev.magnitude,
		Rationale:           ev.rationale,
		WhyNow:              whyNow,
		TriggerRuleID:       ruleID,
		FeaturesUsed:        append([]string(nil), features...),
		SupportingEntities:  ev.entities,
		FirstDetected:       first,
		WeeksPersistent:     weeks,
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
