package bucket

import (
	"sort"

	"github.com/TobiSchelling/techpulse/internal/contract"
	"github.com/TobiSchelling/techpulse/internal/period"
)

// Signal names used as keys in Profile.SignalMetadata and in alert features.
const (
	SignalTMS          = "tms"
	SignalCCS          = "ccs"
	SignalEISOffensive = "eis_offensive"
	SignalEISDefensive = "eis_defensive"
	SignalNAS          = "nas"
	SignalPMS          = "pms"
	SignalCSS          = "css"
)

// SignalNames lists every subscore in display order.
var SignalNames = []string{
	SignalTMS, SignalCCS, SignalEISOffensive, SignalEISDefensive, SignalNAS, SignalPMS, SignalCSS,
}

// Profile is one bucket's percentile snapshot for one ISO week. Subscores are
// percentiles within the week's cross-section (0-100); nil means unavailable.
type Profile struct {
	BucketID   string      `json:"bucket_id"`
	BucketName string      `json:"bucket_name"`
	WeekStart  period.Date `json:"week_start"`

	TMS          *float64 `json:"tms"`
	CCS          *float64 `json:"ccs"`
	EISOffensive *float64 `json:"eis_offensive"`
	EISDefensive *float64 `json:"eis_defensive"`
	NAS          *float64 `json:"nas"`
	PMS          *float64 `json:"pms,omitempty"`
	CSS          *float64 `json:"css,omitempty"`

	SignalMetadata map[string]contract.SignalMetadata `json:"signal_metadata,omitempty"`

	TopTechnicalEntities  []string `json:"top_technical_entities,omitempty"`
	TopCapitalEntities    []string `json:"top_capital_entities,omitempty"`
	TopEnterpriseEntities []string `json:"top_enterprise_entities,omitempty"`

	HeatScore float64 `json:"heat_score"`
}

// Score returns the named subscore and whether it is present.
func (p *Profile) Score(name string) (float64, bool) {
	v := p.scorePtr(name)
	if v == nil {
		return 0, false
	}
	return *v, true
}

// ScoreOrZero returns the named subscore, treating an absent one as 0 for
// arithmetic. Never use it to decide whether a score is low.
func (p *Profile) ScoreOrZero(name string) float64 {
	v, _ := p.Score(name)
	return v
}

// Metadata returns the contract record for a subscore, if one was supplied.
func (p *Profile) Metadata(name string) (contract.SignalMetadata, bool) {
	if p.SignalMetadata == nil {
		return contract.SignalMetadata{}, false
	}
	m, ok := p.SignalMetadata[name]
	return m, ok
}

// Coverage returns the coverage recorded for each subscore that has metadata.
func (p *Profile) Coverage() map[string]float64 {
	out := make(map[string]float64, len(p.SignalMetadata))
	for name, m := range p.SignalMetadata {
		out[name] = m.Coverage
	}
	return out
}

// Entities returns the supporting entities across all categories, deduplicated
// in first-seen order.
func (p *Profile) Entities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range [][]string{p.TopTechnicalEntities, p.TopCapitalEntities, p.TopEnterpriseEntities} {
		for _, e := range group {
			if e != "" && !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}

// Normalize applies the metadata contract to every subscore: metadata values
// are aligned with the subscore field and missing reasons are filled in.
func (p *Profile) Normalize() {
	if p.SignalMetadata == nil {
		return
	}
	for name, m := range p.SignalMetadata {
		if m.Value == nil {
			if v := p.scorePtr(name); v != nil {
				m.Value = contract.Float(*v)
			}
		}
		p.SignalMetadata[name] = m.Normalize()
	}
}

func (p *Profile) scorePtr(name string) *float64 {
	switch name {
	case SignalTMS:
		return p.TMS
	case SignalCCS:
		return p.CCS
	case SignalEISOffensive:
		return p.EISOffensive
	case SignalEISDefensive:
		return p.EISDefensive
	case SignalNAS:
		return p.NAS
	case SignalPMS:
		return p.PMS
	case SignalCSS:
		return p.CSS
	}
	return nil
}

// SortHistory orders profiles oldest week first. The sort is stable so
// duplicate weeks keep their input order.
func SortHistory(history []Profile) {
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].WeekStart.Before(history[j].WeekStart)
	})
}

// PriorTo returns the profiles strictly before week, oldest first.
func PriorTo(history []Profile, week period.Date) []Profile {
	out := make([]Profile, 0, len(history))
	for _, p := range history {
		if p.WeekStart.Before(week) {
			out = append(out, p)
		}
	}
	SortHistory(out)
	return out
}
