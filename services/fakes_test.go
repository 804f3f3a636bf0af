package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"aim-assistant-backend/internal/ai"
	"aim-assistant-backend/models"
)

// fakeEmbedder returns fixed vectors for known texts and a deterministic
// hash-derived vector otherwise. Setting failWith makes every call fail.
type fakeEmbedder struct {
	dim      int
	vectors  map[string][]float32
	failWith error
	calls    int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{dim: 4, vectors: make(map[string][]float32)}
}

func (f *fakeEmbedder) set(text string, vector []float32) {
	f.vectors[text] = vector
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}

	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, f.dim)
	var norm float64
	for i := range vector {
		seed = seed*1664525 + 1013904223
		vector[i] = float32(seed%1000)/1000 + 0.001
		norm += float64(vector[i]) * float64(vector[i])
	}
	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
	return vector, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func (f *fakeEmbedder) Dimension() int    { return f.dim }
func (f *fakeEmbedder) ModelInfo() string { return "fake-embedder" }
func (f *fakeEmbedder) Close() error      { return nil }

// fakeCompleter echoes a canned reply and records the prompts it saw.
type fakeCompleter struct {
	reply    string
	failWith error
	calls    int

	lastSystem string
	lastPrompt string
}

func newFakeCompleter(reply string) *fakeCompleter {
	return &fakeCompleter{reply: reply}
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, prompt string) (*ai.Completion, error) {
	f.calls++
	f.lastSystem = systemPrompt
	f.lastPrompt = prompt
	if f.failWith != nil {
		return nil, f.failWith
	}
	return &ai.Completion{Text: f.reply, Model: "fake-model"}, nil
}

func (f *fakeCompleter) Close() error { return nil }

// ingestDoc is a test helper that pushes one ready document with the given
// chunks into a store.
func ingestDoc(ctx context.Context, store Store, title string, safety models.SafetyLevel, topics []string, chunks []ChunkRecord) (string, error) {
	docID, err := store.InsertDocument(ctx, &models.Document{
		Title:   title,
		Source:  "test",
		DocType: "text",
		Topics:  topics,
		Safety:  safety,
	})
	if err != nil {
		return "", err
	}
	if err := store.InsertChunks(ctx, docID, chunks); err != nil {
		return "", fmt.Errorf("inserting chunks: %w", err)
	}
	return docID, nil
}
