// Package contract defines the coverage/confidence contract carried by every
// signal measurement. A value without sufficient coverage is an unknown, not
// a low score, and downstream rules must consult the contract before reading
// the value.
package contract

import "fmt"

const (
	// CoverageThreshold is the minimum coverage for a value to count as evidence.
	CoverageThreshold = 0.6
	// StaleHours marks data older than seven days as stale.
	StaleHours = 168
)

// Quality grades a measurement by its confidence and coverage.
type Quality string

const (
	QualityHigh    Quality = "HIGH"
	QualityMedium  Quality = "MEDIUM"
	QualityLow     Quality = "LOW"
	QualityInvalid Quality = "INVALID"
)

// MissingReason explains why a value is absent or untrustworthy.
type MissingReason string

const (
	MissingNone                 MissingReason = ""
	MissingNoData               MissingReason = "NO_DATA"
	MissingScraperFailure       MissingReason = "SCRAPER_FAILURE"
	MissingRateLimited          MissingReason = "RATE_LIMITED"
	MissingStaleData            MissingReason = "STALE_DATA"
	MissingInsufficientCoverage MissingReason = "INSUFFICIENT_COVERAGE"
	MissingPlaceholder          MissingReason = "PLACEHOLDER"
)

// Valid reports whether r is one of the known reasons (or empty).
func (r MissingReason) Valid() bool {
	switch r {
	case MissingNone, MissingNoData, MissingScraperFailure, MissingRateLimited,
		MissingStaleData, MissingInsufficientCoverage, MissingPlaceholder:
		return true
	}
	return false
}

// Contributor traces a measurement back to a raw entity signal.
type Contributor struct {
	Entity       string  `json:"entity"`
	Contribution float64 `json:"contribution"`
}

// SignalMetadata is one measurement of one signal category.
type SignalMetadata struct {
	Value          *float64      `json:"value"`
	Confidence     float64       `json:"confidence"`
	Coverage       float64       `json:"coverage"`
	FreshnessHours int           `json:"freshness_hours"`
	MissingReason  MissingReason `json:"missing_reason,omitempty"`
	Contributors   []Contributor `json:"contributors,omitempty"`
}

// Classify grades a measurement method. It does not look at the value.
func Classify(confidence, coverage float64) Quality {
	switch {
	case confidence >= 0.8 && coverage >= CoverageThreshold:
		return QualityHigh
	case confidence >= 0.5 || coverage >= 0.4:
		return QualityMedium
	default:
		return QualityLow
	}
}

// Float returns a pointer to v, for building optional values.
func Float(v float64) *float64 {
	return &v
}

// Present builds metadata for an observed value.
func Present(value, confidence, coverage float64) SignalMetadata {
	m := SignalMetadata{Value: Float(value), Confidence: confidence, Coverage: coverage}
	return m.Normalize()
}

// Missing builds metadata for a value that could not be measured.
func Missing(reason MissingReason) SignalMetadata {
	if reason == MissingNone {
		reason = MissingNoData
	}
	return SignalMetadata{MissingReason: reason}
}

// IsValid reports whether a value is present.
func (m SignalMetadata) IsValid() bool {
	return m.Value != nil
}

// IsStale reports whether the underlying data is older than StaleHours.
func (m SignalMetadata) IsStale() bool {
	return m.FreshnessHours > StaleHours
}

// IsCoverageInsufficient reports whether too few sources contributed.
func (m SignalMetadata) IsCoverageInsufficient() bool {
	return m.Coverage < CoverageThreshold
}

// Quality grades the measurement; absent values are INVALID.
func (m SignalMetadata) Quality() Quality {
	if !m.IsValid() {
		return QualityInvalid
	}
	return Classify(m.Confidence, m.Coverage)
}

// Normalize fills in the missing reason the contract requires: NO_DATA when
// the value is absent, INSUFFICIENT_COVERAGE when coverage is below threshold.
// An explicit reason supplied by the producer is kept.
func (m SignalMetadata) Normalize() SignalMetadata {
	if m.MissingReason != MissingNone {
		return m
	}
	switch {
	case m.Value == nil:
		m.MissingReason = MissingNoData
	case m.IsCoverageInsufficient():
		m.MissingReason = MissingInsufficientCoverage
	}
	return m
}

// Validate checks the numeric ranges of the contract.
func (m SignalMetadata) Validate() error {
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("confidence %.3f outside [0,1]", m.Confidence)
	}
	if m.Coverage < 0 || m.Coverage > 1 {
		return fmt.Errorf("coverage %.3f outside [0,1]", m.Coverage)
	}
	if m.FreshnessHours < 0 {
		return fmt.Errorf("freshness_hours %d is negative", m.FreshnessHours)
	}
	if !m.MissingReason.Valid() {
		return fmt.Errorf("unknown missing_reason %q", m.MissingReason)
	}
	return nil
}
