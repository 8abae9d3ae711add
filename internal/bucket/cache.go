package bucket

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/TobiSchelling/techpulse/internal/period"
)

// Cache is the on-disk profile cache produced by the bucket aggregator.
type Cache struct {
	GeneratedAt time.Time   `json:"generated_at"`
	WeekStart   period.Date `json:"week_start"`
	Profiles    []Profile   `json:"profiles"`
}

// LoadCache reads bucket_profiles.json. Profiles missing a week_start inherit
// the cache's week, and every profile is normalized against the metadata
// contract.
func LoadCache(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile cache: %w", err)
	}
	return ParseCache(data)
}

// ParseCache decodes a profile cache document.
func ParseCache(data []byte) (*Cache, error) {
	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing profile cache: %w", err)
	}

	for i := range c.Profiles {
		p := &c.Profiles[i]
		if p.BucketID == "" {
			return nil, fmt.Errorf("profile %d has no bucket_id", i)
		}
		if p.WeekStart.IsZero() {
			p.WeekStart = c.WeekStart
		}
		if p.WeekStart.IsZero() {
			return nil, fmt.Errorf("profile %s has no week_start", p.BucketID)
		}
		p.WeekStart = period.WeekStart(p.WeekStart)
		for name, m := range p.SignalMetadata {
			if err := m.Validate(); err != nil {
				return nil, fmt.Errorf("profile %s signal %s: %w", p.BucketID, name, err)
			}
		}
		p.Normalize()
	}

	if c.WeekStart.IsZero() && len(c.Profiles) > 0 {
		c.WeekStart = c.Profiles[0].WeekStart
	}
	return &c, nil
}
