package alert

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SeverityBands grades an alert: CRIT when either the crit magnitude or crit
// week count is reached, WARN likewise, INFO otherwise. A zero week bound
// disables grading by persistence.
type SeverityBands struct {
	WarnMagnitude float64 `yaml:"warn_magnitude" validate:"gte=0"`
	CritMagnitude float64 `yaml:"crit_magnitude" validate:"gtefield=WarnMagnitude"`
	WarnWeeks     int     `yaml:"warn_weeks" validate:"gte=0"`
	CritWeeks     int     `yaml:"crit_weeks" validate:"gte=0"`
}

// Grade returns the severity for a magnitude held for weeks.
func (b SeverityBands) Grade(magnitude float64, weeks int) Severity {
	switch {
	case magnitude >= b.CritMagnitude || (b.CritWeeks > 0 && weeks >= b.CritWeeks):
		return SeverityCrit
	case magnitude >= b.WarnMagnitude || (b.WarnWeeks > 0 && weeks >= b.WarnWeeks):
		return SeverityWarn
	}
	return SeverityInfo
}

// Config holds every detector threshold. Percentile thresholds are on the
// 0-100 bucket-relative scale; coverage values are fractions.
type Config struct {
	CoverageThreshold float64 `yaml:"coverage_threshold" default:"0.6" validate:"gte=0,lte=1"`
	// RequireMetadata gates out subscores that arrive without a metadata record.
	RequireMetadata bool `yaml:"require_metadata"`

	AlphaTMSMin        float64 `yaml:"alpha_tms_min" default:"90" validate:"gte=0,lte=100"`
	AlphaCCSMax        float64 `yaml:"alpha_ccs_max" default:"30" validate:"gte=0,lte=100"`
	AlphaWeeksRequired int     `yaml:"alpha_weeks_required" default:"1" validate:"gte=1"`

	HypeCCSMin float64 `yaml:"hype_ccs_min" default:"90" validate:"gte=0,lte=100"`
	HypeTMSMax float64 `yaml:"hype_tms_max" default:"30" validate:"gte=0,lte=100"`

	EnterpriseDelta  float64 `yaml:"enterprise_delta" default:"15" validate:"gte=0,lte=100"`
	EnterpriseTMSMin float64 `yaml:"enterprise_tms_min" default:"40" validate:"gte=0,lte=100"`

	DisruptionEISMin float64 `yaml:"disruption_eis_min" default:"85" validate:"gte=0,lte=100"`

	RotationWindowWeeks int     `yaml:"rotation_window_weeks" default:"4" validate:"gte=2"`
	RotationCCSRangeMax float64 `yaml:"rotation_ccs_range_max" default:"20" validate:"gte=0,lte=100"`
	RotationCCSMin      float64 `yaml:"rotation_ccs_min" default:"50" validate:"gte=0,lte=100"`

	DataHealthEnabled      bool    `yaml:"data_health_enabled" default:"true"`
	DataHealthCoverageDrop float64 `yaml:"data_health_coverage_drop" default:"0.3" validate:"gt=0,lte=1"`

	// Parallelism bounds the number of buckets evaluated concurrently.
	Parallelism int `yaml:"parallelism" default:"4" validate:"gte=1"`

	AlphaSeverity      SeverityBands `yaml:"alpha_severity"`
	HypeSeverity       SeverityBands `yaml:"hype_severity"`
	EnterpriseSeverity SeverityBands `yaml:"enterprise_severity"`
	DisruptionSeverity SeverityBands `yaml:"disruption_severity"`
	RotationSeverity   SeverityBands `yaml:"rotation_severity"`
	DataHealthSeverity SeverityBands `yaml:"data_health_severity"`
}

// SetDefaults fills severity bands left unset; called by defaults.Set.
func (c *Config) SetDefaults() {
	fill := func(b *SeverityBands, warn, crit float64, warnWeeks, critWeeks int) {
		if *b == (SeverityBands{}) {
			*b = SeverityBands{WarnMagnitude: warn, CritMagnitude: crit, WarnWeeks: warnWeeks, CritWeeks: critWeeks}
		}
	}
	fill(&c.AlphaSeverity, 70, 80, 2, 4)
	fill(&c.HypeSeverity, 70, 80, 2, 4)
	fill(&c.EnterpriseSeverity, 25, 40, 2, 4)
	fill(&c.DisruptionSeverity, 90, 95, 3, 6)
	fill(&c.RotationSeverity, 20, 35, 2, 4)
	fill(&c.DataHealthSeverity, 0.5, 0.7, 0, 0)
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("alert: applying defaults: %v", err))
	}
	return c
}

// Validate checks threshold ranges.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("alert config: %w", err)
	}
	return nil
}

// Bands returns the severity bands for an alert type.
func (c Config) Bands(t AlertType) SeverityBands {
	switch t {
	case AlphaZone:
		return c.AlphaSeverity
	case HypeZone:
		return c.HypeSeverity
	case EnterprisePull:
		return c.EnterpriseSeverity
	case DisruptionPressure:
		return c.DisruptionSeverity
	case Rotation:
		return c.RotationSeverity
	}
	return c.DataHealthSeverity
}
