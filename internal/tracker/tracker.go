// Package tracker links daily topic clusters into long-lived signals, keeps
// their rolling metrics and drives each signal's lifecycle.
//
// Dates are processed strictly in the order given: a day's metrics depend on
// the state left by the previous day, so one store must never be processed
// concurrently.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"github.com/TobiSchelling/techpulse/internal/cluster"
	"github.com/TobiSchelling/techpulse/internal/llm"
	"github.com/TobiSchelling/techpulse/internal/period"
)

// maxProfileEntities bounds the entity set a signal accumulates.
const maxProfileEntities = 50

// ErrNoClusterFile marks a day skipped because its cluster file is missing.
var ErrNoClusterFile = errors.New("no cluster file")

// ErrDateBehindState marks a day skipped because the store has already moved
// past it. Replaying history requires a reset.
var ErrDateBehindState = errors.New("date precedes last processed date")

// DayStats summarizes one processed (or skipped) date.
type DayStats struct {
	Date        string `json:"date"`
	Clusters    int    `json:"clusters"`
	Linked      int    `json:"linked"`
	Created     int    `json:"created"`
	Duplicates  int    `json:"duplicates"`
	Transitions int    `json:"transitions"`
	Active      int    `json:"active"`
	Skipped     bool   `json:"skipped"`
	Err         error  `json:"-"`
}

// Tracker processes daily cluster files against a signal store.
type Tracker struct {
	cfg      Config
	store    *Store
	embedder llm.Embedder
	logger   zerolog.Logger
}

// New creates a tracker. An invalid config panics. embedder may be nil, in
// which case clusters without embeddings link on entity overlap alone.
func New(cfg Config, store *Store, embedder llm.Embedder, logger zerolog.Logger) *Tracker {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return &Tracker{cfg: cfg, store: store, embedder: embedder, logger: logger}
}

// Store returns the tracker's state store.
func (t *Tracker) Store() *Store {
	return t.store
}

// ProcessDays processes each date in order. A missing or malformed cluster
// file skips that date with a warning, as does a date earlier than the
// store's last processed date. Reprocessing the last processed date itself
// only links clusters not yet seen. State is saved after every processed
// date, so an interrupted run loses at most the day in flight. A corrupt
// state file aborts before anything is processed.
func (t *Tracker) ProcessDays(ctx context.Context, dates []string, sourceDir string) ([]DayStats, error) {
	st, err := t.store.Load()
	if err != nil {
		return nil, err
	}

	var stats []DayStats
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		day, err := period.Parse(date)
		if err != nil {
			t.logger.Warn().Str("date", date).Err(err).Msg("skipping day: bad date")
			stats = append(stats, DayStats{Date: date, Skipped: true, Err: err})
			continue
		}

		if st.LastProcessedDate != "" && day.String() < st.LastProcessedDate {
			err := fmt.Errorf("%w: %s is before %s", ErrDateBehindState, date, st.LastProcessedDate)
			t.logger.Warn().Str("date", date).Err(err).Msg("skipping day: reset the store to replay history")
			stats = append(stats, DayStats{Date: date, Skipped: true, Err: err})
			continue
		}

		feed, err := cluster.LoadDay(sourceDir, date)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				err = fmt.Errorf("%w for %s in %s", ErrNoClusterFile, date, sourceDir)
			}
			t.logger.Warn().Str("date", date).Err(err).Msg("skipping day")
			stats = append(stats, DayStats{Date: date, Skipped: true, Err: err})
			continue
		}

		if t.embedder != nil {
			n, err := cluster.Backfill(ctx, t.embedder, feed.Clusters, t.logger)
			if err != nil {
				t.logger.Warn().Str("date", date).Err(err).Msg("embedding backfill failed, linking on overlap only")
			} else if n > 0 {
				t.logger.Debug().Str("date", date).Int("embedded", n).Msg("backfilled cluster embeddings")
			}
		}

		ds := t.processDay(st, day, feed.Clusters)
		if st.LastProcessedDate == "" || date > st.LastProcessedDate {
			st.LastProcessedDate = date
		}

		if err := t.store.Save(st); err != nil {
			return stats, err
		}
		if t.cfg.WriteSnapshots {
			if err := t.store.WriteSnapshot(date, st); err != nil {
				return stats, err
			}
		}

		t.logger.Info().
			Str("date", date).
			Int("clusters", ds.Clusters).
			Int("linked", ds.Linked).
			Int("created", ds.Created).
			Int("duplicates", ds.Duplicates).
			Int("transitions", ds.Transitions).
			Int("active", ds.Active).
			Msg("processed day")
		stats = append(stats, ds)
	}
	return stats, nil
}

func (t *Tracker) processDay(st *State, day period.Date, clusters []cluster.Cluster) DayStats {
	ds := DayStats{Date: day.String(), Clusters: len(clusters)}

	for _, c := range clusters {
		if st.Linked(day, c.ClusterID) {
			ds.Duplicates++
			continue
		}

		best, score := t.bestMatch(st, c)
		if best != nil && score >= t.cfg.LinkThreshold {
			t.link(best, c, day, score)
			ds.Linked++
			continue
		}

		sig := t.newSignal(c, day)
		if _, exists := st.Signals[sig.SignalID]; exists {
			ds.Duplicates++
			continue
		}
		st.Signals[sig.SignalID] = sig
		ds.Created++
	}

	for _, sig := range st.Sorted() {
		if !sig.Status.Active() {
			continue
		}
		sig.Metrics = computeMetrics(sig.Events, sig.LastSeen, day, t.cfg)
		sig.UpdatedAt = day
		if next := nextStatus(sig, day, t.cfg); next != sig.Status {
			t.logger.Debug().
				Str("signal", sig.SignalID).
				Str("from", string(sig.Status)).
				Str("to", string(next)).
				Msg("signal status changed")
			sig.setStatus(next, day)
			ds.Transitions++
		}
		if sig.Status.Active() {
			ds.Active++
		}
	}
	return ds
}

// Score returns how well a cluster matches a signal: entity overlap, blended
// with embedding similarity when both sides carry a vector.
func (t *Tracker) Score(c cluster.Cluster, sig *Signal) float64 {
	overlap := cluster.Jaccard(c.Terms(), cluster.Terms(sig.Profile.Entities, sig.Profile.Bucket))
	cos, ok := cluster.Cosine(c.Embedding, sig.Profile.Embedding)
	if !ok {
		return overlap
	}
	w := t.cfg.OverlapWeight + t.cfg.EmbeddingWeight
	return (t.cfg.OverlapWeight*overlap + t.cfg.EmbeddingWeight*cos) / w
}

// bestMatch returns the active signal scoring highest for c. Equal scores
// prefer the signal seen most recently, then the lower ID.
func (t *Tracker) bestMatch(st *State, c cluster.Cluster) (*Signal, float64) {
	var best *Signal
	bestScore := math.Inf(-1)
	for _, sig := range st.Sorted() {
		if !sig.Status.Active() {
			continue
		}
		score := t.Score(c, sig)
		if score > bestScore || (score == bestScore && sig.LastSeen.After(best.LastSeen)) {
			best, bestScore = sig, score
		}
	}
	return best, bestScore
}

func (t *Tracker) newSignal(c cluster.Cluster, day period.Date) *Signal {
	sig := &Signal{
		SignalID:  NewSignalID(day.String(), c.ClusterID),
		Name:      cluster.Name(c),
		Status:    StatusWeak,
		FirstSeen: day,
		LastSeen:  day,
		UpdatedAt: day,
		Profile: Profile{
			ExampleTitles: []string{},
			Entities:      []string{},
			Bucket:        c.Bucket,
		},
	}
	t.absorb(sig, c)
	sig.Events = []Event{{ClusterID: c.ClusterID, Date: day, MatchScore: 1, Domains: dedupSorted(c.Domains)}}
	return sig
}

func (t *Tracker) link(sig *Signal, c cluster.Cluster, day period.Date, score float64) {
	sig.Events = append(sig.Events, Event{
		ClusterID:  c.ClusterID,
		Date:       day,
		MatchScore: round4(score),
		Domains:    dedupSorted(c.Domains),
	})
	sort.SliceStable(sig.Events, func(i, j int) bool {
		return sig.Events[i].Date.Before(sig.Events[j].Date)
	})
	if day.After(sig.LastSeen) {
		sig.LastSeen = day
	}
	if sig.Profile.Bucket == "" {
		sig.Profile.Bucket = c.Bucket
	}
	t.absorb(sig, c)
}

// absorb merges a cluster's titles, entities and embedding into the profile.
func (t *Tracker) absorb(sig *Signal, c cluster.Cluster) {
	p := &sig.Profile

	titles := append([]string{c.RepresentativeTitle}, c.Titles...)
	for _, title := range titles {
		if len(p.ExampleTitles) >= t.cfg.MaxExampleTitles {
			break
		}
		if title != "" && !contains(p.ExampleTitles, title) {
			p.ExampleTitles = append(p.ExampleTitles, title)
		}
	}

	for _, e := range c.Entities {
		if len(p.Entities) >= maxProfileEntities {
			break
		}
		if e != "" && !contains(p.Entities, e) {
			p.Entities = append(p.Entities, e)
		}
	}

	if len(c.Embedding) == 0 {
		return
	}
	if len(p.Embedding) != len(c.Embedding) {
		// First vector, or the embedding model changed dimension.
		p.Embedding = append([]float64(nil), c.Embedding...)
		p.EmbeddingCount = 1
		return
	}
	n := float64(p.EmbeddingCount)
	for i, v := range c.Embedding {
		p.Embedding[i] = (p.Embedding[i]*n + v) / (n + 1)
	}
	p.EmbeddingCount++
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func dedupSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
