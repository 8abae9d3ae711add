// Package alert detects divergence, inflection and regime-shift conditions
// between a bucket's signal categories and turns them into explainable alerts.
package alert

import "github.com/TobiSchelling/techpulse/internal/period"

// AlertType names the detection rule that produced an alert.
type AlertType string

const (
	AlphaZone          AlertType = "ALPHA_ZONE"
	HypeZone           AlertType = "HYPE_ZONE"
	EnterprisePull     AlertType = "ENTERPRISE_PULL"
	DisruptionPressure AlertType = "DISRUPTION_PRESSURE"
	Rotation           AlertType = "ROTATION"
	DataHealth         AlertType = "DATA_HEALTH"
)

// AlertTypes lists every type in evaluation order.
var AlertTypes = []AlertType{AlphaZone, HypeZone, EnterprisePull, DisruptionPressure, Rotation, DataHealth}

// Label returns a display name such as "Alpha Zone".
func (t AlertType) Label() string {
	switch t {
	case AlphaZone:
		return "Alpha Zone"
	case HypeZone:
		return "Hype Zone"
	case EnterprisePull:
		return "Enterprise Pull"
	case DisruptionPressure:
		return "Disruption Pressure"
	case Rotation:
		return "Rotation"
	case DataHealth:
		return "Data Health"
	}
	return string(t)
}

// Interpretation tells the reader which way an alert leans.
type Interpretation string

const (
	Opportunity Interpretation = "OPPORTUNITY"
	Risk        Interpretation = "RISK"
	Signal      Interpretation = "SIGNAL"
	Neutral     Interpretation = "NEUTRAL"
)

// Cause is the taxonomy of why an alert fired.
type Cause string

const (
	CauseDivergence  Cause = "DIVERGENCE"
	CauseInflection  Cause = "INFLECTION"
	CauseRegimeShift Cause = "REGIME_SHIFT"
	CauseDataHealth  Cause = "DATA_HEALTH"
)

// Severity grades an alert by magnitude and persistence.
type Severity string

const (
	SeverityInfo Severity = "INFO"
	SeverityWarn Severity = "WARN"
	SeverityCrit Severity = "CRIT"
)

// Rank orders severities, INFO lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCrit:
		return 2
	case SeverityWarn:
		return 1
	}
	return 0
}

var interpretations = map[AlertType]Interpretation{
	AlphaZone:          Opportunity,
	HypeZone:           Risk,
	EnterprisePull:     Opportunity,
	DisruptionPressure: Signal,
	Rotation:           Neutral,
	DataHealth:         Signal,
}

var causes = map[AlertType]Cause{
	AlphaZone:          CauseDivergence,
	HypeZone:           CauseDivergence,
	EnterprisePull:     CauseRegimeShift,
	DisruptionPressure: CauseRegimeShift,
	Rotation:           CauseInflection,
	DataHealth:         CauseDataHealth,
}

// InterpretationOf returns the fixed interpretation for an alert type.
func InterpretationOf(t AlertType) Interpretation { return interpretations[t] }

// CauseOf returns the fixed cause for an alert type.
func CauseOf(t AlertType) Cause { return causes[t] }

// BucketAlert is one detected condition for one bucket in one week.
type BucketAlert struct {
	BucketID       string         `json:"bucket_id"`
	BucketName     string         `json:"bucket_name"`
	WeekStart      period.Date    `json:"week_start"`
	AlertType      AlertType      `json:"alert_type"`
	Interpretation Interpretation `json:"interpretation"`
	Cause          Cause          `json:"cause"`
	Severity       Severity       `json:"severity"`

	TriggerScores       map[string]float64 `json:"trigger_scores"`
	ThresholdUsed       string             `json:"threshold_used"`
	DivergenceMagnitude float64            `json:"divergence_magnitude"`

	Rationale     string   `json:"rationale"`
	WhyNow        string   `json:"why_now"`
	TriggerRuleID string   `json:"trigger_rule_id"`
	FeaturesUsed  []string `json:"features_used"`

	SupportingEntities []string    `json:"supporting_entities"`
	FirstDetected      period.Date `json:"first_detected"`
	WeeksPersistent    int         `json:"weeks_persistent"`
}
