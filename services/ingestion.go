package services

import (
	"context"
	"fmt"
	"strings"

	"aim-assistant-backend/internal/ai"
	"aim-assistant-backend/internal/logger"
	"aim-assistant-backend/models"
)

// IngestMeta carries the caller-supplied metadata for one ingestion.
type IngestMeta struct {
	Title   string
	Source  string
	DocType string
	Topics  []string
	Safety  models.SafetyLevel
}

// IngestResult reports a completed ingestion.
type IngestResult struct {
	DocumentID    string
	ChunksCreated int
}

// IngestionPipeline runs the full path from raw input to searchable chunks:
// extract, clean, chunk, embed, persist. Embedding happens before anything is
// written, so a provider failure leaves the store untouched.
type IngestionPipeline struct {
	extractor *Extractor
	chunker   *Chunker
	embedder  ai.Embedder
	store     Store
	cache     *QueryCache
}

func NewIngestionPipeline(extractor *Extractor, chunker *Chunker, embedder ai.Embedder, store Store, cache *QueryCache) *IngestionPipeline {
	return &IngestionPipeline{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		cache:     cache,
	}
}

// Ingest processes one PDF document.
func (p *IngestionPipeline) Ingest(ctx context.Context, content []byte, meta IngestMeta) (*IngestResult, error) {
	if err := ValidatePDFHeader(content); err != nil {
		return nil, err
	}

	text, err := p.extractor.ExtractText(ctx, content)
	if err != nil {
		return nil, err
	}

	return p.ingestText(ctx, text, meta)
}

// IngestText processes manually supplied text, skipping PDF extraction.
func (p *IngestionPipeline) IngestText(ctx context.Context, text string, meta IngestMeta) (*IngestResult, error) {
	return p.ingestText(ctx, text, meta)
}

func (p *IngestionPipeline) ingestText(ctx context.Context, text string, meta IngestMeta) (*IngestResult, error) {
	cleaned := CleanText(text)
	pieces := p.chunker.Split(cleaned)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: no usable text in %q", ErrEmptyDocument, meta.Title)
	}

	vectors, err := p.embedAll(ctx, pieces)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		Title:   strings.TrimSpace(meta.Title),
		Source:  meta.Source,
		DocType: meta.DocType,
		Topics:  meta.Topics,
		Safety:  meta.Safety,
	}
	docID, err := p.store.InsertDocument(ctx, doc)
	if err != nil {
		return nil, err
	}

	records := make([]ChunkRecord, 0, len(pieces))
	for i, piece := range pieces {
		records = append(records, ChunkRecord{Index: i, Content: piece, Vector: vectors[i]})
	}

	if err := p.store.InsertChunks(ctx, docID, records); err != nil {
		// The document never became visible; remove the stub.
		if delErr := p.store.DeleteDocument(context.WithoutCancel(ctx), docID); delErr != nil {
			logger.Error("failed to clean up document after chunk insert failure",
				"document_id", docID, "error", delErr)
		}
		return nil, err
	}

	p.cache.Invalidate(ctx)

	logger.Info("document ingested",
		"document_id", docID, "title", doc.Title, "chunks", len(records))

	return &IngestResult{DocumentID: docID, ChunksCreated: len(records)}, nil
}

// Delete removes a document and its chunks, then invalidates cached answers.
func (p *IngestionPipeline) Delete(ctx context.Context, documentID string) error {
	if err := p.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	p.cache.Invalidate(ctx)
	return nil
}

func (p *IngestionPipeline) embedAll(ctx context.Context, pieces []string) ([][]float32, error) {
	const batchSize = 50

	vectors := make([][]float32, 0, len(pieces))
	for start := 0; start < len(pieces); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + batchSize
		if end > len(pieces) {
			end = len(pieces)
		}
		batch, err := p.embedder.EmbedBatch(ctx, pieces[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding chunk batch %d: %w", start/batchSize, err)
		}
		vectors = append(vectors, batch...)
	}

	if len(vectors) != len(pieces) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks",
			ai.ErrEmbeddingUnavailable, len(vectors), len(pieces))
	}
	return vectors, nil
}
