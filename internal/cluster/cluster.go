// Package cluster reads the daily dual-feed cluster files and scores how
// similar two clusters are.
package cluster

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KindTheme marks the clusters the signal tracker consumes.
const KindTheme = "THEME"

// Cluster is one topic cluster from a daily feed.
type Cluster struct {
	ClusterID           string    `json:"cluster_id"`
	Kind                string    `json:"kind,omitempty"`
	Type                string    `json:"type,omitempty"`
	RepresentativeTitle string    `json:"representative_title"`
	Titles              []string  `json:"titles,omitempty"`
	Entities            []string  `json:"entities"`
	Bucket              string    `json:"bucket,omitempty"`
	Embedding           []float64 `json:"embedding,omitempty"`
	Domains             []string  `json:"domains,omitempty"`
}

// IsTheme reports whether the cluster is a THEME cluster. Files written
// before the kind field existed carry only themes, so an empty kind counts.
func (c Cluster) IsTheme() bool {
	k := c.Kind
	if k == "" {
		k = c.Type
	}
	return k == "" || strings.EqualFold(k, KindTheme)
}

// Terms returns the cluster's normalized entity set including its bucket tag.
func (c Cluster) Terms() []string {
	return Terms(c.Entities, c.Bucket)
}

// Feed is the content of one dual_feed_<date>.json file.
type Feed struct {
	Date     string    `json:"date"`
	Clusters []Cluster `json:"clusters"`
}

// FileName returns the cluster file name for a date.
func FileName(date string) string {
	return "dual_feed_" + date + ".json"
}

// LoadDay reads the feed for date from dir and keeps only THEME clusters.
// A missing file returns an error wrapping os.ErrNotExist.
func LoadDay(dir, date string) (*Feed, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName(date)))
	if err != nil {
		return nil, err
	}
	return ParseFeed(data, date)
}

// ParseFeed decodes a feed. Clusters without an ID are rejected because the
// tracker deduplicates on it.
func ParseFeed(data []byte, date string) (*Feed, error) {
	var f Feed
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing cluster feed: %w", err)
	}
	if f.Date == "" {
		f.Date = date
	}
	if f.Date != date {
		return nil, fmt.Errorf("cluster feed dated %s, expected %s", f.Date, date)
	}

	themes := f.Clusters[:0]
	for _, c := range f.Clusters {
		if !c.IsTheme() {
			continue
		}
		if c.ClusterID == "" {
			return nil, fmt.Errorf("cluster %q has no cluster_id", c.RepresentativeTitle)
		}
		themes = append(themes, c)
	}
	f.Clusters = themes
	return &f, nil
}

// Terms lowercases and deduplicates entities, adding the bucket tag when set.
func Terms(entities []string, bucket string) []string {
	seen := make(map[string]bool, len(entities)+1)
	var out []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, e := range entities {
		add(e)
	}
	if bucket != "" {
		add("bucket:" + bucket)
	}
	sort.Strings(out)
	return out
}

// Jaccard returns |a ∩ b| / |a ∪ b| over the normalized term sets. Two empty
// sets score 0.
func Jaccard(a, b []string) float64 {
	setA := make(map[string]bool, len(a))
	for _, s := range a {
		setA[strings.ToLower(s)] = true
	}
	setB := make(map[string]bool, len(b))
	for _, s := range b {
		setB[strings.ToLower(s)] = true
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	inter := 0
	for s := range setA {
		if setB[s] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// Cosine returns the cosine similarity of two vectors. It reports false when
// the vectors are empty, differ in length, or either has zero norm.
func Cosine(a, b []float64) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

// EmbeddingText is the text sent to the embedder for a cluster lacking a
// vector.
func EmbeddingText(c Cluster) string {
	parts := []string{c.RepresentativeTitle}
	if len(c.Entities) > 0 {
		parts = append(parts, strings.Join(c.Entities, ", "))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
