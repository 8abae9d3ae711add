package alert

import (
	"fmt"

	"github.com/TobiSchelling/techpulse/internal/bucket"
	"github.com/TobiSchelling/techpulse/internal/contract"
)

// requiredSignals lists every subscore a rule reads. All of them must pass the
// coverage gate before the rule may fire.
var requiredSignals = map[AlertType][]string{
	AlphaZone:          {bucket.SignalTMS, bucket.SignalCCS},
	HypeZone:           {bucket.SignalCCS, bucket.SignalTMS},
	EnterprisePull:     {bucket.SignalEISOffensive, bucket.SignalTMS},
	DisruptionPressure: {bucket.SignalEISDefensive},
	Rotation:           {bucket.SignalTMS, bucket.SignalCCS},
}

// RequiredSignals returns the subscores gated for an alert type.
func RequiredSignals(t AlertType) []string {
	return requiredSignals[t]
}

// ShouldTriggerAlert reports whether every subscore the rule depends on is
// present and sufficiently covered. It never looks at whether the value
// satisfies the rule; callers evaluate that separately.
func ShouldTriggerAlert(p *bucket.Profile, t AlertType, coverageThreshold float64) (bool, string) {
	return gate(p, t, coverageThreshold, false)
}

func gate(p *bucket.Profile, t AlertType, coverageThreshold float64, requireMetadata bool) (bool, string) {
	for _, name := range requiredSignals[t] {
		if _, ok := p.Score(name); !ok {
			reason := contract.MissingNoData
			if m, ok := p.Metadata(name); ok && m.MissingReason != contract.MissingNone {
				reason = m.MissingReason
			}
			return false, fmt.Sprintf("missing %s (%s)", name, reason)
		}

		m, ok := p.Metadata(name)
		if !ok {
			if requireMetadata {
				return false, fmt.Sprintf("no coverage metadata for %s", name)
			}
			continue
		}
		if !m.IsValid() {
			return false, fmt.Sprintf("missing %s (%s)", name, m.MissingReason)
		}
		if m.Coverage < coverageThreshold {
			return false, fmt.Sprintf("insufficient coverage for %s (%.2f < %.2f)", name, m.Coverage, coverageThreshold)
		}
	}
	return true, "ok"
}

// observed returns a subscore only when it can count as evidence: present and,
// if metadata exists, covered above threshold.
func observed(p *bucket.Profile, name string, coverageThreshold float64) (float64, bool) {
	v, ok := p.Score(name)
	if !ok {
		return 0, false
	}
	if m, ok := p.Metadata(name); ok && (!m.IsValid() || m.Coverage < coverageThreshold) {
		return 0, false
	}
	return v, true
}
