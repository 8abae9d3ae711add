package ui

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/TobiSchelling/techpulse/internal/alert"
	"github.com/TobiSchelling/techpulse/internal/bucket"
	"github.com/TobiSchelling/techpulse/internal/contract"
)

var signalLabels = map[string]string{
	bucket.SignalTMS:          "Technical Momentum",
	bucket.SignalCCS:          "Capital Conviction",
	bucket.SignalEISOffensive: "Enterprise Signal (offensive)",
	bucket.SignalEISDefensive: "Enterprise Signal (defensive)",
	bucket.SignalNAS:          "Narrative/Attention",
	bucket.SignalPMS:          "Public Markets",
	bucket.SignalCSS:          "Crypto Sentiment",
}

// SignalLabel returns the display name of a subscore.
func SignalLabel(name string) string {
	if l, ok := signalLabels[name]; ok {
		return l
	}
	return name
}

// FeatureBadge is one subscore as shown on a card.
type FeatureBadge struct {
	Signal        string                 `json:"signal"`
	Label         string                 `json:"label"`
	Value         *float64               `json:"value"`
	Display       string                 `json:"display"`
	Badge         string                 `json:"badge,omitempty"`
	Missing       bool                   `json:"missing"`
	MissingReason contract.MissingReason `json:"missing_reason,omitempty"`
	Coverage      *float64               `json:"coverage"`
	Confidence    *float64               `json:"confidence"`
	Quality       contract.Quality       `json:"quality"`
	Opacity       float64                `json:"opacity"`
	Border        string                 `json:"border"`
}

// SparkPoint is one week of a sparkline. Value is nil for weeks without a
// usable measurement.
type SparkPoint struct {
	WeekStart string   `json:"week_start"`
	Value     *float64 `json:"value"`
}

// AlertCard is the flat display model of one alert.
type AlertCard struct {
	BucketID       string               `json:"bucket_id"`
	BucketName     string               `json:"bucket_name"`
	WeekStart      string               `json:"week_start"`
	AlertType      alert.AlertType      `json:"alert_type"`
	Title          string               `json:"title"`
	Severity       alert.Severity       `json:"severity"`
	SeverityColor  string               `json:"severity_color"`
	SeverityIcon   string               `json:"severity_icon"`
	Interpretation alert.Interpretation `json:"interpretation"`
	AccentColor    string               `json:"accent_color"`
	Cause          alert.Cause          `json:"cause"`

	Headline         string  `json:"headline"`
	WhyNow           string  `json:"why_now"`
	Magnitude        float64 `json:"magnitude"`
	MagnitudeLabel   string  `json:"magnitude_label"`
	WeeksPersistent  int     `json:"weeks_persistent"`
	PersistenceLabel string  `json:"persistence_label"`

	Confidence float64 `json:"confidence"`
	Opacity    float64 `json:"opacity"`
	Border     string  `json:"border"`

	Features           []FeatureBadge `json:"features"`
	SparklineSignal    string         `json:"sparkline_signal"`
	Sparkline          []SparkPoint   `json:"sparkline"`
	SupportingEntities []string       `json:"supporting_entities"`
}

// BuildAlertCardData builds the card for an alert. profile is the bucket's
// profile for the alert week and may be nil; history holds earlier profiles
// in any order and feeds the sparkline.
func BuildAlertCardData(a alert.BucketAlert, profile *bucket.Profile, history []bucket.Profile, pres Presentation) AlertCard {
	card := AlertCard{
		BucketID:           a.BucketID,
		BucketName:         a.BucketName,
		WeekStart:          a.WeekStart.String(),
		AlertType:          a.AlertType,
		Title:              a.AlertType.Label(),
		Severity:           a.Severity,
		SeverityColor:      pres.severityColor(a.Severity),
		SeverityIcon:       pres.SeverityIcons[a.Severity],
		Interpretation:     a.Interpretation,
		AccentColor:        pres.InterpretationColors[a.Interpretation],
		Cause:              a.Cause,
		Headline:           a.Rationale,
		WhyNow:             a.WhyNow,
		Magnitude:          a.DivergenceMagnitude,
		MagnitudeLabel:     magnitudeLabel(a),
		WeeksPersistent:    a.WeeksPersistent,
		PersistenceLabel:   persistenceLabel(a.WeeksPersistent),
		SupportingEntities: a.SupportingEntities,
	}

	features := cardSignals(a)
	confidence := 1.0
	for _, name := range features {
		b := badge(profile, name, pres)
		card.Features = append(card.Features, b)
		switch {
		case b.Missing:
			confidence = 0
		case b.Confidence != nil:
			confidence = math.Min(confidence, *b.Confidence)
		}
	}
	style := pres.StyleFor(confidence)
	card.Confidence = confidence
	card.Opacity = style.Opacity
	card.Border = style.Border

	if len(features) > 0 {
		card.SparklineSignal = features[0]
		series := append([]bucket.Profile(nil), history...)
		if profile != nil {
			series = append(bucket.PriorTo(series, profile.WeekStart), *profile)
		} else {
			bucket.SortHistory(series)
		}
		card.Sparkline = sparkline(series, features[0], pres.SparklineWeeks)
	}
	return card
}

// cardSignals returns the subscores a card displays. Data health alerts
// carry coverage keys, so they are mapped back to the signal name.
func cardSignals(a alert.BucketAlert) []string {
	if a.AlertType != alert.DataHealth {
		return a.FeaturesUsed
	}
	seen := make(map[string]bool)
	var out []string
	for _, f := range a.FeaturesUsed {
		name := strings.TrimSuffix(strings.TrimSuffix(f, "_coverage_prev"), "_coverage")
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func badge(p *bucket.Profile, name string, pres Presentation) FeatureBadge {
	b := FeatureBadge{Signal: name, Label: SignalLabel(name)}

	var value float64
	var present bool
	var meta contract.SignalMetadata
	var hasMeta bool
	if p != nil {
		value, present = p.Score(name)
		meta, hasMeta = p.Metadata(name)
	}

	if !present {
		b.Missing = true
		b.Display = pres.MissingBadge
		b.Badge = pres.MissingBadge
		b.Quality = contract.QualityInvalid
		b.MissingReason = contract.MissingNoData
		if hasMeta && meta.MissingReason != contract.MissingNone {
			b.MissingReason = meta.MissingReason
		}
		style := pres.StyleFor(0)
		b.Opacity, b.Border = style.Opacity, style.Border
		return b
	}

	b.Value = contract.Float(value)
	b.Display = fmt.Sprintf("%.0f", value)
	confidence := 1.0
	b.Quality = contract.QualityHigh
	if hasMeta {
		b.Coverage = contract.Float(meta.Coverage)
		b.Confidence = contract.Float(meta.Confidence)
		b.Quality = contract.Classify(meta.Confidence, meta.Coverage)
		confidence = meta.Confidence
		if meta.IsCoverageInsufficient() {
			b.Badge = pres.LowCoverageBadge
			b.MissingReason = contract.MissingInsufficientCoverage
		}
	}
	style := pres.StyleFor(confidence)
	b.Opacity, b.Border = style.Opacity, style.Border
	return b
}

func sparkline(series []bucket.Profile, name string, weeks int) []SparkPoint {
	if len(series) > weeks {
		series = series[len(series)-weeks:]
	}
	points := make([]SparkPoint, 0, len(series))
	for i := range series {
		p := &series[i]
		pt := SparkPoint{WeekStart: p.WeekStart.String()}
		if v, ok := p.Score(name); ok {
			if m, hasMeta := p.Metadata(name); !hasMeta || !m.IsCoverageInsufficient() {
				pt.Value = contract.Float(v)
			}
		}
		points = append(points, pt)
	}
	return points
}

func magnitudeLabel(a alert.BucketAlert) string {
	if a.AlertType == alert.DataHealth {
		return fmt.Sprintf("-%.2f coverage", a.DivergenceMagnitude)
	}
	return fmt.Sprintf("%.0f pts", a.DivergenceMagnitude)
}

func persistenceLabel(weeks int) string {
	if weeks <= 1 {
		return "new this week"
	}
	return fmt.Sprintf("%d weeks", weeks)
}

// ScoreRow is one trigger score in the explain drawer.
type ScoreRow struct {
	Name  string  `json:"name"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ExplainDrawer is the detailed "why did this fire" view of an alert.
type ExplainDrawer struct {
	BucketID        string                            `json:"bucket_id"`
	BucketName      string                            `json:"bucket_name"`
	WeekStart       string                            `json:"week_start"`
	AlertType       alert.AlertType                   `json:"alert_type"`
	Title           string                            `json:"title"`
	TriggerRuleID   string                            `json:"trigger_rule_id"`
	ThresholdUsed   string                            `json:"threshold_used"`
	Rationale       string                            `json:"rationale"`
	WhyNow          string                            `json:"why_now"`
	Cause           alert.Cause                       `json:"cause"`
	FirstDetected   string                            `json:"first_detected"`
	WeeksPersistent int                               `json:"weeks_persistent"`
	TriggerScores   []ScoreRow                        `json:"trigger_scores"`
	FeaturesUsed    []string                          `json:"features_used"`
	Signals         []FeatureBadge                    `json:"signals"`
	Contributors    map[string][]contract.Contributor `json:"contributors,omitempty"`
	Entities        []string                          `json:"entities"`
	DataQualityNote string                            `json:"data_quality_note"`
}

// BuildExplainDrawerData builds the explain view for an alert against the
// bucket's profile for that week. profile may be nil.
func BuildExplainDrawerData(profile *bucket.Profile, a alert.BucketAlert, pres Presentation) ExplainDrawer {
	d := ExplainDrawer{
		BucketID:        a.BucketID,
		BucketName:      a.BucketName,
		WeekStart:       a.WeekStart.String(),
		AlertType:       a.AlertType,
		Title:           a.AlertType.Label(),
		TriggerRuleID:   a.TriggerRuleID,
		ThresholdUsed:   a.ThresholdUsed,
		Rationale:       a.Rationale,
		WhyNow:          a.WhyNow,
		Cause:           a.Cause,
		FirstDetected:   a.FirstDetected.String(),
		WeeksPersistent: a.WeeksPersistent,
		FeaturesUsed:    a.FeaturesUsed,
		Entities:        a.SupportingEntities,
	}

	names := make([]string, 0, len(a.TriggerScores))
	for k := range a.TriggerScores {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		d.TriggerScores = append(d.TriggerScores, ScoreRow{Name: k, Label: SignalLabel(k), Value: a.TriggerScores[k]})
	}

	if profile == nil {
		d.DataQualityNote = "Bucket profile unavailable for this week."
		return d
	}
	if len(d.Entities) == 0 {
		d.Entities = profile.Entities()
	}

	missing, weak := 0, 0
	for _, name := range bucket.SignalNames {
		_, present := profile.Score(name)
		_, hasMeta := profile.Metadata(name)
		if !present && !hasMeta {
			// pms and css are optional; leave them out entirely when absent.
			if name == bucket.SignalPMS || name == bucket.SignalCSS {
				continue
			}
		}
		b := badge(profile, name, pres)
		d.Signals = append(d.Signals, b)
		switch {
		case b.Missing:
			missing++
		case b.MissingReason == contract.MissingInsufficientCoverage:
			weak++
		}
		if m, ok := profile.Metadata(name); ok && len(m.Contributors) > 0 {
			if d.Contributors == nil {
				d.Contributors = make(map[string][]contract.Contributor)
			}
			d.Contributors[name] = m.Contributors
		}
	}

	switch {
	case missing == 0 && weak == 0:
		d.DataQualityNote = "All signals reported with sufficient coverage."
	default:
		d.DataQualityNote = fmt.Sprintf("%d of %d signals missing, %d below the coverage threshold.", missing, len(d.Signals), weak)
	}
	return d
}
