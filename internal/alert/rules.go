package alert

import (
	"fmt"
	"math"
	"sort"

	"github.com/TobiSchelling/techpulse/internal/bucket"
)

func (d *Detector) evalAlpha(p *bucket.Profile, _ []bucket.Profile) evaluation {
	tms, okT := p.Score(bucket.SignalTMS)
	ccs, okC := p.Score(bucket.SignalCCS)
	ev := evaluation{
		holds:     okT && okC && tms >= d.cfg.AlphaTMSMin && ccs <= d.cfg.AlphaCCSMax,
		magnitude: p.ScoreOrZero(bucket.SignalTMS) - p.ScoreOrZero(bucket.SignalCCS),
		scores:    map[string]float64{bucket.SignalTMS: tms, bucket.SignalCCS: ccs},
		threshold: fmt.Sprintf("TMS >= %.0f AND CCS <= %.0f for %d week(s)", d.cfg.AlphaTMSMin, d.cfg.AlphaCCSMax, d.cfg.AlphaWeeksRequired),
		entities:  p.TopTechnicalEntities,
	}
	ev.rationale = fmt.Sprintf("Technical momentum is at %.0f while capital conviction sits at %.0f; builders are moving ahead of investors.", tms, ccs)
	ev.whyNow = fmt.Sprintf("Momentum/capital gap of %.0f points this week.", ev.magnitude)
	return ev
}

func (d *Detector) evalHype(p *bucket.Profile, _ []bucket.Profile) evaluation {
	tms, okT := p.Score(bucket.SignalTMS)
	ccs, okC := p.Score(bucket.SignalCCS)
	ev := evaluation{
		holds:     okT && okC && ccs >= d.cfg.HypeCCSMin && tms <= d.cfg.HypeTMSMax,
		magnitude: p.ScoreOrZero(bucket.SignalCCS) - p.ScoreOrZero(bucket.SignalTMS),
		scores:    map[string]float64{bucket.SignalCCS: ccs, bucket.SignalTMS: tms},
		threshold: fmt.Sprintf("CCS >= %.0f AND TMS <= %.0f", d.cfg.HypeCCSMin, d.cfg.HypeTMSMax),
		entities:  p.TopCapitalEntities,
	}
	ev.rationale = fmt.Sprintf("Capital conviction is at %.0f but technical momentum is only %.0f; money is ahead of adoption.", ccs, tms)
	ev.whyNow = fmt.Sprintf("Capital/momentum gap of %.0f points this week.", ev.magnitude)
	return ev
}

func (d *Detector) evalEnterprisePull(p *bucket.Profile, prior []bucket.Profile) evaluation {
	ev := evaluation{
		threshold: fmt.Sprintf("EIS offensive week-over-week delta > %.0f AND TMS >= %.0f", d.cfg.EnterpriseDelta, d.cfg.EnterpriseTMSMin),
		entities:  p.TopEnterpriseEntities,
	}

	current, ok := p.Score(bucket.SignalEISOffensive)
	if !ok {
		return ev
	}

	var previous float64
	var previousWeek string
	found := false
	for i := len(prior) - 1; i >= 0; i-- {
		if v, ok := observed(&prior[i], bucket.SignalEISOffensive, d.cfg.CoverageThreshold); ok {
			previous, previousWeek, found = v, prior[i].WeekStart.String(), true
			break
		}
	}
	if !found {
		return ev
	}

	tms := p.ScoreOrZero(bucket.SignalTMS)
	delta := current - previous
	_, okT := p.Score(bucket.SignalTMS)

	ev.holds = okT && delta > d.cfg.EnterpriseDelta && tms >= d.cfg.EnterpriseTMSMin
	ev.magnitude = delta
	ev.scores = map[string]float64{
		bucket.SignalEISOffensive:           current,
		bucket.SignalEISOffensive + "_prev": previous,
		"eis_delta":                         delta,
		bucket.SignalTMS:                    tms,
	}
	ev.rationale = fmt.Sprintf("Enterprise offensive signal rose %.0f points (%.0f -> %.0f) with technical momentum at %.0f confirming adoption.", delta, previous, current, tms)
	ev.whyNow = fmt.Sprintf("Filings shifted since the week of %s.", previousWeek)
	return ev
}

func (d *Detector) evalDisruption(p *bucket.Profile, _ []bucket.Profile) evaluation {
	eis, ok := p.Score(bucket.SignalEISDefensive)
	ev := evaluation{
		holds:     ok && eis >= d.cfg.DisruptionEISMin,
		magnitude: p.ScoreOrZero(bucket.SignalEISDefensive),
		scores:    map[string]float64{bucket.SignalEISDefensive: eis},
		threshold: fmt.Sprintf("EIS defensive >= %.0f", d.cfg.DisruptionEISMin),
		entities:  p.TopEnterpriseEntities,
	}
	ev.rationale = fmt.Sprintf("Incumbents are flagging competitive risk in filings (defensive EIS at %.0f).", eis)
	ev.whyNow = "Defensive filing language crossed the disruption threshold this week."
	return ev
}

// evalRotation looks at the last RotationWindowWeeks observed weeks, the
// current week included, oldest first. TMS must never rise across the window
// while CCS stays inside a narrow, elevated band.
func (d *Detector) evalRotation(p *bucket.Profile, prior []bucket.Profile) evaluation {
	ev := evaluation{
		threshold: fmt.Sprintf("TMS non-increasing over %d weeks AND CCS range < %.0f AND CCS > %.0f",
			d.cfg.RotationWindowWeeks, d.cfg.RotationCCSRangeMax, d.cfg.RotationCCSMin),
		entities: p.TopCapitalEntities,
	}

	type point struct{ tms, ccs float64 }
	curTMS, okT := p.Score(bucket.SignalTMS)
	curCCS, okC := p.Score(bucket.SignalCCS)
	if !okT || !okC {
		return ev
	}

	window := []point{{curTMS, curCCS}}
	for i := len(prior) - 1; i >= 0 && len(window) < d.cfg.RotationWindowWeeks; i-- {
		t, ok1 := observed(&prior[i], bucket.SignalTMS, d.cfg.CoverageThreshold)
		c, ok2 := observed(&prior[i], bucket.SignalCCS, d.cfg.CoverageThreshold)
		if ok1 && ok2 {
			window = append(window, point{t, c})
		}
	}
	if len(window) < d.cfg.RotationWindowWeeks {
		return ev
	}
	// window[0] is the current week; reverse to oldest first.
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}

	nonIncreasing := true
	lo, hi := window[0].ccs, window[0].ccs
	for i := 1; i < len(window); i++ {
		if window[i].tms > window[i-1].tms {
			nonIncreasing = false
		}
		lo = math.Min(lo, window[i].ccs)
		hi = math.Max(hi, window[i].ccs)
	}
	ccsRange := hi - lo
	oldest := window[0].tms

	ev.holds = nonIncreasing && ccsRange < d.cfg.RotationCCSRangeMax && curCCS > d.cfg.RotationCCSMin
	ev.magnitude = oldest - curTMS
	ev.scores = map[string]float64{
		bucket.SignalTMS:            curTMS,
		bucket.SignalTMS + "_start": oldest,
		bucket.SignalCCS:            curCCS,
		"ccs_range":                 ccsRange,
	}
	ev.rationale = fmt.Sprintf("Technical momentum slid from %.0f to %.0f over %d weeks while capital held steady around %.0f; attention may be rotating out.",
		oldest, curTMS, len(window), curCCS)
	ev.whyNow = fmt.Sprintf("%d straight weeks without a momentum uptick; CCS range only %.0f points.", len(window), ccsRange)
	return ev
}

// CheckDataHealthAlert compares each signal's coverage with its previously
// observed coverage and returns an alert for the largest drop exceeding the
// configured delta, or nil. Values are ignored. The detector's persistence
// counters are not touched.
func (d *Detector) CheckDataHealthAlert(p *bucket.Profile, previousCoverage map[string]float64) *BucketAlert {
	ev, ok := d.dataHealth(p, previousCoverage)
	if !ok {
		return nil
	}
	a := d.build(p, DataHealth, dataHealthRuleID, ev, Streak{Weeks: 1, FirstDetected: p.WeekStart})
	return &a
}

func (d *Detector) dataHealth(p *bucket.Profile, previousCoverage map[string]float64) (evaluation, bool) {
	names := make([]string, 0, len(previousCoverage))
	for name := range previousCoverage {
		names = append(names, name)
	}
	sort.Strings(names)

	worst, worstDrop := "", 0.0
	var worstPrev, worstCur float64
	for _, name := range names {
		prev := previousCoverage[name]
		cur := 0.0
		if m, ok := p.Metadata(name); ok {
			cur = m.Coverage
		}
		drop := math.Round((prev-cur)*1e4) / 1e4
		if drop > d.cfg.DataHealthCoverageDrop && drop > worstDrop {
			worst, worstDrop, worstPrev, worstCur = name, drop, prev, cur
		}
	}
	if worst == "" {
		return evaluation{}, false
	}

	return evaluation{
		holds:     true,
		magnitude: worstDrop,
		scores: map[string]float64{
			worst + "_coverage_prev": worstPrev,
			worst + "_coverage":      worstCur,
		},
		threshold: fmt.Sprintf("coverage drop > %.2f versus previous observation", d.cfg.DataHealthCoverageDrop),
		rationale: fmt.Sprintf("Coverage for %s fell from %.2f to %.2f; scores for this signal are unreliable until sources recover.", worst, worstPrev, worstCur),
		whyNow:    "Source coverage dropped since the last observation.",
		entities:  nil,
	}, true
}
