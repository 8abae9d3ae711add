package cluster

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/TobiSchelling/techpulse/internal/llm"
)

// Backfill requests embeddings for clusters that arrived without one and
// stores them in place. It returns how many clusters were filled. On failure
// the clusters are left untouched so linking falls back to entity overlap.
func Backfill(ctx context.Context, embedder llm.Embedder, clusters []Cluster, logger zerolog.Logger) (int, error) {
	var idx []int
	var texts []string
	for i, c := range clusters {
		if len(c.Embedding) == 0 {
			if text := EmbeddingText(c); text != "" {
				idx = append(idx, i)
				texts = append(texts, text)
			}
		}
	}
	if len(texts) == 0 {
		return 0, nil
	}

	logger.Debug().Int("clusters", len(texts)).Msg("generating cluster embeddings")
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	filled := 0
	for j, i := range idx {
		if j < len(vectors) && len(vectors[j]) > 0 {
			clusters[i].Embedding = vectors[j]
			filled++
		}
	}
	return filled, nil
}
