package tracker

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config holds the linking weights and state machine thresholds.
type Config struct {
	EmergingMentions7D int     `yaml:"emerging_mentions_7d" default:"3" validate:"gte=1"`
	EmergingConfidence float64 `yaml:"emerging_confidence" default:"0.3" validate:"gte=0,lte=1"`

	TrendingMentions7D int     `yaml:"trending_mentions_7d" default:"6" validate:"gtefield=EmergingMentions7D"`
	TrendingVelocity   float64 `yaml:"trending_velocity" default:"2"`
	TrendingConfidence float64 `yaml:"trending_confidence" default:"0.5" validate:"gte=0,lte=1"`

	MainstreamMentions21D int     `yaml:"mainstream_mentions_21d" default:"15" validate:"gte=1"`
	MainstreamDomains7D   int     `yaml:"mainstream_domains_7d" default:"5" validate:"gte=0"`
	MainstreamConfidence  float64 `yaml:"mainstream_confidence" default:"0.7" validate:"gte=0,lte=1"`

	// FadingVelocity is the week-over-week mention change at or below which an
	// established signal starts fading.
	FadingVelocity float64 `yaml:"fading_velocity" default:"-2" validate:"lt=0"`
	DeadDays       int     `yaml:"dead_days" default:"14" validate:"gte=1"`

	LinkThreshold   float64 `yaml:"link_threshold" default:"0.3" validate:"gte=0,lte=1"`
	OverlapWeight   float64 `yaml:"overlap_weight" default:"0.5" validate:"gt=0"`
	EmbeddingWeight float64 `yaml:"embedding_weight" default:"0.5" validate:"gte=0"`

	// Event and domain counts at which those confidence components saturate.
	ConfidenceEventSaturation  int `yaml:"confidence_event_saturation" default:"8" validate:"gte=1"`
	ConfidenceDomainSaturation int `yaml:"confidence_domain_saturation" default:"5" validate:"gte=1"`

	MaxExampleTitles int  `yaml:"max_example_titles" default:"5" validate:"gte=1"`
	WriteSnapshots   bool `yaml:"write_snapshots" default:"true"`
}

// DefaultConfig returns the tracker defaults.
func DefaultConfig() Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("tracker: applying defaults: %v", err))
	}
	return c
}

// Validate checks threshold ranges.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("tracker config: %w", err)
	}
	return nil
}
