package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"aim-assistant-backend/internal/ai"
	"aim-assistant-backend/models"
)

func seedRetrieverStore(t *testing.T, embedder *fakeEmbedder) Store {
	t.Helper()
	ctx := context.Background()
	store := NewMemoryStore()

	embedder.set("query", []float32{1, 0, 0, 0})

	_, err := ingestDoc(ctx, store, "guide", models.SafetyGeneral, nil, []ChunkRecord{
		{Index: 0, Content: "strong", Vector: []float32{1, 0, 0, 0}},
		{Index: 1, Content: "medium", Vector: []float32{0.6, 0.8, 0, 0}},
		{Index: 2, Content: "weak", Vector: []float32{0.1, 0.995, 0, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestRetrieveConfidenceIsMeanRelevance(t *testing.T) {
	embedder := newFakeEmbedder()
	store := seedRetrieverStore(t, embedder)
	retriever := NewRetriever(embedder, store)

	result, err := retriever.Retrieve(context.Background(), "query", models.SearchFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(result.Chunks))
	}

	var sum float64
	for _, sc := range result.Chunks {
		sum += sc.Relevance
	}
	want := sum / 3
	if math.Abs(result.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %f, want mean %f", result.Confidence, want)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		t.Errorf("confidence %f outside [0,1]", result.Confidence)
	}
}

func TestRetrieveEmptyStoreZeroConfidence(t *testing.T) {
	embedder := newFakeEmbedder()
	retriever := NewRetriever(embedder, NewMemoryStore())

	result, err := retriever.Retrieve(context.Background(), "anything", models.SearchFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Chunks) != 0 {
		t.Errorf("got %d chunks from empty store", len(result.Chunks))
	}
	if result.Confidence != 0 {
		t.Errorf("confidence = %f, want 0", result.Confidence)
	}
}

func TestRetrieveThresholdDropsWeakChunks(t *testing.T) {
	embedder := newFakeEmbedder()
	store := seedRetrieverStore(t, embedder)
	retriever := NewRetriever(embedder, store)

	result, err := retriever.Retrieve(context.Background(), "query",
		models.SearchFilter{MinRelevance: 0.5})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Chunks) != 2 {
		t.Fatalf("got %d chunks above threshold, want 2", len(result.Chunks))
	}
	for _, sc := range result.Chunks {
		if sc.Relevance < 0.5 {
			t.Errorf("chunk %q below threshold: %f", sc.Chunk.Content, sc.Relevance)
		}
	}
}

func TestRetrieveEmbedderErrorPropagates(t *testing.T) {
	embedder := newFakeEmbedder()
	embedder.failWith = ai.ErrEmbeddingUnavailable
	retriever := NewRetriever(embedder, NewMemoryStore())

	_, err := retriever.Retrieve(context.Background(), "query", models.SearchFilter{})
	if !errors.Is(err, ai.ErrEmbeddingUnavailable) {
		t.Errorf("got %v, want ErrEmbeddingUnavailable", err)
	}
}
