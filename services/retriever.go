package services

import (
	"context"
	"fmt"

	"aim-assistant-backend/internal/ai"
	"aim-assistant-backend/models"
)

// Retriever embeds a query and ranks stored chunks against it.
type Retriever struct {
	embedder ai.Embedder
	store    Store
}

func NewRetriever(embedder ai.Embedder, store Store) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve runs a similarity search for query under filter. Chunks scoring
// below filter.MinRelevance are discarded after ranking; confidence is the
// mean relevance of what survives, 0 when nothing does.
func (r *Retriever) Retrieve(ctx context.Context, query string, filter models.SearchFilter) (*models.RetrievalResult, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	scored, err := r.store.Search(ctx, vector, filter)
	if err != nil {
		return nil, err
	}

	if filter.MinRelevance > 0 {
		kept := scored[:0]
		for _, sc := range scored {
			if sc.Relevance >= filter.MinRelevance {
				kept = append(kept, sc)
			}
		}
		scored = kept
	}

	return &models.RetrievalResult{
		Chunks:     scored,
		Confidence: meanRelevance(scored),
	}, nil
}

func meanRelevance(scored []models.ScoredChunk) float64 {
	if len(scored) == 0 {
		return 0
	}
	var sum float64
	for _, sc := range scored {
		sum += sc.Relevance
	}
	mean := sum / float64(len(scored))
	if mean > 1 {
		mean = 1
	}
	return mean
}
