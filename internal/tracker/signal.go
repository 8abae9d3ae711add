package tracker

import (
	"crypto/sha1"
	"encoding/hex"

	"github.com/TobiSchelling/techpulse/internal/period"
)

// Status is a signal's lifecycle stage.
type Status string

const (
	StatusWeak       Status = "weak_signal"
	StatusEmerging   Status = "emerging"
	StatusTrending   Status = "trending"
	StatusMainstream Status = "mainstream"
	StatusFading     Status = "fading"
	StatusDead       Status = "dead"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusWeak, StatusEmerging, StatusTrending, StatusMainstream, StatusFading, StatusDead}

// ParseStatus returns the status named s.
func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// strength orders the growth stages; fading and dead sit outside the ladder.
func (s Status) strength() int {
	switch s {
	case StatusEmerging:
		return 1
	case StatusTrending:
		return 2
	case StatusMainstream:
		return 3
	}
	return 0
}

// Active reports whether a signal can still link new clusters.
func (s Status) Active() bool {
	return s != StatusDead
}

// Metrics are the rolling statistics of a signal as of its last update.
type Metrics struct {
	Mentions7D   int     `json:"mentions_7d"`
	Mentions21D  int     `json:"mentions_21d"`
	Velocity     float64 `json:"velocity"`
	Acceleration float64 `json:"acceleration"`
	Confidence   float64 `json:"confidence"`
	Domains7D    int     `json:"domains_7d"`
}

// Profile describes what a signal is about. Embedding is the running mean of
// the linked clusters' vectors.
type Profile struct {
	ExampleTitles  []string  `json:"example_titles"`
	Entities       []string  `json:"entities"`
	Bucket         string    `json:"bucket,omitempty"`
	Embedding      []float64 `json:"embedding,omitempty"`
	EmbeddingCount int       `json:"embedding_count,omitempty"`
}

// Event records one cluster linked to a signal on one day.
type Event struct {
	ClusterID  string      `json:"cluster_id"`
	Date       period.Date `json:"date"`
	MatchScore float64     `json:"match_score"`
	Domains    []string    `json:"domains,omitempty"`
}

// Transition records a status change.
type Transition struct {
	Date period.Date `json:"date"`
	From Status      `json:"from"`
	To   Status      `json:"to"`
}

// Signal is a long-lived trend assembled from daily clusters.
type Signal struct {
	SignalID      string       `json:"signal_id"`
	Name          string       `json:"name"`
	Status        Status       `json:"status"`
	Metrics       Metrics      `json:"metrics"`
	Profile       Profile      `json:"profile"`
	Events        []Event      `json:"events"`
	StatusHistory []Transition `json:"status_history,omitempty"`
	FirstSeen     period.Date  `json:"first_seen"`
	LastSeen      period.Date  `json:"last_seen"`
	UpdatedAt     period.Date  `json:"updated_at"`
}

// NewSignalID derives a stable ID from the founding cluster.
func NewSignalID(date, clusterID string) string {
	sum := sha1.Sum([]byte(date + "|" + clusterID))
	return "sig_" + hex.EncodeToString(sum[:])[:12]
}

// HasEvent reports whether the cluster was already linked on date.
func (s *Signal) HasEvent(date period.Date, clusterID string) bool {
	for _, e := range s.Events {
		if e.ClusterID == clusterID && e.Date.Equal(date) {
			return true
		}
	}
	return false
}

func (s *Signal) setStatus(to Status, day period.Date) {
	if s.Status == to {
		return
	}
	s.StatusHistory = append(s.StatusHistory, Transition{Date: day, From: s.Status, To: to})
	s.Status = to
}
