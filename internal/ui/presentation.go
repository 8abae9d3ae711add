// Package ui turns detector output into flat, display-ready card and drawer
// data. It holds no business logic beyond the confidence and coverage to
// visual style contract.
package ui

import (
	"fmt"
	"sort"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/TobiSchelling/techpulse/internal/alert"
)

var validate = validator.New()

// Border styles.
const (
	BorderSolid  = "solid"
	BorderDashed = "dashed"
)

// ConfidenceStyle applies to measurements whose confidence is at least
// MinConfidence.
type ConfidenceStyle struct {
	MinConfidence float64 `yaml:"min_confidence" validate:"gte=0,lte=1"`
	Opacity       float64 `yaml:"opacity" validate:"gt=0,lte=1"`
	Border        string  `yaml:"border" validate:"oneof=solid dashed"`
}

// Presentation configures colors, icons and confidence styling.
type Presentation struct {
	SeverityColors       map[alert.Severity]string       `yaml:"severity_colors"`
	SeverityIcons        map[alert.Severity]string       `yaml:"severity_icons"`
	InterpretationColors map[alert.Interpretation]string `yaml:"interpretation_colors"`
	ConfidenceStyles     []ConfidenceStyle               `yaml:"confidence_styles" validate:"dive"`
	MissingBadge         string                          `yaml:"missing_badge" default:"?"`
	LowCoverageBadge     string                          `yaml:"low_coverage_badge" default:"!"`
	SparklineWeeks       int                             `yaml:"sparkline_weeks" default:"8" validate:"gte=2"`
}

// SetDefaults fills unset maps and styles; called by defaults.Set.
func (p *Presentation) SetDefaults() {
	if p.SeverityColors == nil {
		p.SeverityColors = map[alert.Severity]string{
			alert.SeverityCrit: "#d62728",
			alert.SeverityWarn: "#ff7f0e",
			alert.SeverityInfo: "#1f77b4",
		}
	}
	if p.SeverityIcons == nil {
		p.SeverityIcons = map[alert.Severity]string{
			alert.SeverityCrit: "🔴",
			alert.SeverityWarn: "🟠",
			alert.SeverityInfo: "🔵",
		}
	}
	if p.InterpretationColors == nil {
		p.InterpretationColors = map[alert.Interpretation]string{
			alert.Opportunity: "#2ca02c",
			alert.Risk:        "#d62728",
			alert.Signal:      "#9467bd",
			alert.Neutral:     "#7f7f7f",
		}
	}
	if len(p.ConfidenceStyles) == 0 {
		p.ConfidenceStyles = []ConfidenceStyle{
			{MinConfidence: 0.8, Opacity: 1.0, Border: BorderSolid},
			{MinConfidence: 0.5, Opacity: 0.85, Border: BorderSolid},
			{MinConfidence: 0, Opacity: 0.6, Border: BorderDashed},
		}
	}
}

// DefaultPresentation returns the default styling.
func DefaultPresentation() Presentation {
	var p Presentation
	if err := defaults.Set(&p); err != nil {
		panic(fmt.Sprintf("ui: applying defaults: %v", err))
	}
	return p
}

// Validate checks the styling config.
func (p Presentation) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("presentation config: %w", err)
	}
	return nil
}

// StyleFor returns the style of the highest band confidence reaches. Below
// every band the weakest style applies.
func (p Presentation) StyleFor(confidence float64) ConfidenceStyle {
	styles := append([]ConfidenceStyle(nil), p.ConfidenceStyles...)
	sort.Slice(styles, func(i, j int) bool { return styles[i].MinConfidence > styles[j].MinConfidence })
	for _, s := range styles {
		if confidence >= s.MinConfidence {
			return s
		}
	}
	if len(styles) == 0 {
		return ConfidenceStyle{Opacity: 1, Border: BorderSolid}
	}
	return styles[len(styles)-1]
}

func (p Presentation) severityColor(s alert.Severity) string {
	if c, ok := p.SeverityColors[s]; ok {
		return c
	}
	return "#7f7f7f"
}
