package services

import (
	"context"
	"errors"
	"testing"

	"aim-assistant-backend/internal/ai"
	"aim-assistant-backend/models"
)

func newTestPipeline(embedder *fakeEmbedder, store Store) *IngestionPipeline {
	return NewIngestionPipeline(NewExtractor(), NewChunker(500, 50, 100), embedder, store, nil)
}

func TestIngestTextCreatesSearchableChunks(t *testing.T) {
	ctx := context.Background()
	embedder := newFakeEmbedder()
	store := NewMemoryStore()
	pipeline := newTestPipeline(embedder, store)

	text := repeatSentence("Start every session with a tracking warmup.", 400) +
		"\n\n" + repeatSentence("Finish with target switching under fatigue.", 400)

	result, err := pipeline.IngestText(ctx, text, IngestMeta{
		Title:   "Session Structure",
		Source:  "manual",
		DocType: "text",
		Topics:  []string{"routine"},
		Safety:  models.SafetyGeneral,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.DocumentID == "" {
		t.Fatal("empty document id")
	}
	if result.ChunksCreated < 2 {
		t.Errorf("chunks created = %d, want at least 2", result.ChunksCreated)
	}

	docs, err := store.ListDocuments(ctx, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Title != "Session Structure" {
		t.Errorf("documents = %+v", docs)
	}

	vector, _ := embedder.Embed(ctx, "probe")
	scored, err := store.Search(ctx, vector, models.SearchFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(scored) != result.ChunksCreated {
		t.Errorf("searchable chunks = %d, want %d", len(scored), result.ChunksCreated)
	}

	// Chunk indices reflect original order.
	seen := make(map[int]bool)
	for _, sc := range scored {
		seen[sc.Chunk.ChunkIndex] = true
	}
	for i := 0; i < result.ChunksCreated; i++ {
		if !seen[i] {
			t.Errorf("chunk index %d missing", i)
		}
	}
}

func TestIngestTextEmptyContent(t *testing.T) {
	pipeline := newTestPipeline(newFakeEmbedder(), NewMemoryStore())

	for _, content := range []string{"", "   \n\n  "} {
		_, err := pipeline.IngestText(context.Background(), content, IngestMeta{Title: "empty"})
		if !errors.Is(err, ErrEmptyDocument) {
			t.Errorf("IngestText(%q): got %v, want ErrEmptyDocument", content, err)
		}
	}
}

func TestIngestTextEmbedFailureLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	embedder := newFakeEmbedder()
	embedder.failWith = ai.ErrEmbeddingUnavailable
	store := NewMemoryStore()
	pipeline := newTestPipeline(embedder, store)

	_, err := pipeline.IngestText(ctx, "Some perfectly valid training notes.", IngestMeta{Title: "doomed"})
	if !errors.Is(err, ai.ErrEmbeddingUnavailable) {
		t.Fatalf("got %v, want ErrEmbeddingUnavailable", err)
	}

	docs, _ := store.ListDocuments(ctx, "", nil)
	if len(docs) != 0 {
		t.Errorf("failed ingestion left %d documents behind", len(docs))
	}
}

func TestIngestRejectsNonPDF(t *testing.T) {
	pipeline := newTestPipeline(newFakeEmbedder(), NewMemoryStore())

	_, err := pipeline.Ingest(context.Background(), []byte("just plain text"), IngestMeta{Title: "nope"})
	if !errors.Is(err, ErrExtractionFailed) {
		t.Errorf("got %v, want ErrExtractionFailed", err)
	}
}

func TestDeleteThroughPipeline(t *testing.T) {
	ctx := context.Background()
	embedder := newFakeEmbedder()
	store := NewMemoryStore()
	pipeline := newTestPipeline(embedder, store)

	result, err := pipeline.IngestText(ctx, "Deliberate practice requires measurable goals and honest review.",
		IngestMeta{Title: "short"})
	if err != nil {
		t.Fatal(err)
	}

	if err := pipeline.Delete(ctx, result.DocumentID); err != nil {
		t.Fatal(err)
	}
	if err := pipeline.Delete(ctx, result.DocumentID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}
