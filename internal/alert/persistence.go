package alert

import (
	"sort"
	"sync"

	"github.com/TobiSchelling/techpulse/internal/period"
)

// Streak is the persistence counter for one (bucket, alert type).
type Streak struct {
	Weeks         int         `json:"weeks"`
	FirstDetected period.Date `json:"first_detected"`
	LastWeek      period.Date `json:"last_week"`
}

// StreakRecord is a flattened Streak for saving and restoring.
type StreakRecord struct {
	BucketID  string    `json:"bucket_id"`
	AlertType AlertType `json:"alert_type"`
	Streak
}

// Counters owns the persistence counters for every bucket. Each bucket's
// counters live in their own partition so buckets can be evaluated
// concurrently without locking; only partition lookup takes the mutex.
type Counters struct {
	mu      sync.Mutex
	buckets map[string]*BucketCounters
}

// BucketCounters holds one bucket's streaks. A partition must only be used by
// one goroutine at a time.
type BucketCounters struct {
	streaks map[AlertType]*Streak
}

// NewCounters returns an empty counter store.
func NewCounters() *Counters {
	return &Counters{buckets: make(map[string]*BucketCounters)}
}

// Bucket returns the partition for a bucket, creating it on first use.
func (c *Counters) Bucket(bucketID string) *BucketCounters {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[bucketID]
	if !ok {
		b = &BucketCounters{streaks: make(map[AlertType]*Streak)}
		c.buckets[bucketID] = b
	}
	return b
}

// Get returns the current streak for a bucket and alert type.
func (c *Counters) Get(bucketID string, t AlertType) Streak {
	c.mu.Lock()
	b, ok := c.buckets[bucketID]
	c.mu.Unlock()
	if !ok {
		return Streak{}
	}
	return b.Get(t)
}

// Export returns every streak, sorted by bucket then alert type.
func (c *Counters) Export() []StreakRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []StreakRecord
	for id, b := range c.buckets {
		for t, s := range b.streaks {
			out = append(out, StreakRecord{BucketID: id, AlertType: t, Streak: *s})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BucketID != out[j].BucketID {
			return out[i].BucketID < out[j].BucketID
		}
		return out[i].AlertType < out[j].AlertType
	})
	return out
}

// Restore replaces all streaks with saved records.
func (c *Counters) Restore(records []StreakRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buckets = make(map[string]*BucketCounters)
	for _, r := range records {
		b, ok := c.buckets[r.BucketID]
		if !ok {
			b = &BucketCounters{streaks: make(map[AlertType]*Streak)}
			c.buckets[r.BucketID] = b
		}
		s := r.Streak
		b.streaks[r.AlertType] = &s
	}
}

// Get returns the streak for t.
func (b *BucketCounters) Get(t AlertType) Streak {
	if s, ok := b.streaks[t]; ok {
		return *s
	}
	return Streak{}
}

// Observe records whether t's condition held in week and returns the updated
// streak. The counter increments while the condition holds in consecutive
// weeks and resets to 0 the first week it does not. Observing the same week
// twice is a no-op; a week older than the last observed one is evaluated in
// isolation and does not touch the stored streak.
func (b *BucketCounters) Observe(t AlertType, week period.Date, holds bool) Streak {
	s, ok := b.streaks[t]
	if !ok {
		s = &Streak{}
		b.streaks[t] = s
	}

	if !s.LastWeek.IsZero() {
		if week.Equal(s.LastWeek) {
			return *s
		}
		if week.Before(s.LastWeek) {
			if holds {
				return Streak{Weeks: 1, FirstDetected: week, LastWeek: week}
			}
			return Streak{LastWeek: week}
		}
	}

	if !holds {
		*s = Streak{LastWeek: week}
		return *s
	}

	// A skipped week breaks the run.
	if s.Weeks > 0 && week.DaysSince(s.LastWeek) > 7 {
		s.Weeks = 0
	}
	if s.Weeks == 0 {
		s.FirstDetected = week
	}
	s.Weeks++
	s.LastWeek = week
	return *s
}

// Skip records week as unobservable for t. The streak neither grows nor
// breaks; the week still counts as seen, so the run stays consecutive.
// Weeks at or before the last observed one leave the store untouched.
func (b *BucketCounters) Skip(t AlertType, week period.Date) Streak {
	s, ok := b.streaks[t]
	if !ok {
		s = &Streak{}
		b.streaks[t] = s
	}

	if !s.LastWeek.IsZero() {
		if week.Equal(s.LastWeek) {
			return *s
		}
		if week.Before(s.LastWeek) {
			return Streak{LastWeek: week}
		}
	}

	if s.Weeks > 0 && week.DaysSince(s.LastWeek) > 7 {
		*s = Streak{}
	}
	s.LastWeek = week
	return *s
}
