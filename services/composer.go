package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"aim-assistant-backend/internal/ai"
	"aim-assistant-backend/models"
)

// RAGMode controls how retrieved context participates in an answer.
type RAGMode string

const (
	// ModeOff answers from the model alone; retrieval is skipped entirely.
	ModeOff RAGMode = "off"
	// ModeHybrid grounds the answer in retrieved context when any exists,
	// falling back to model knowledge when none does.
	ModeHybrid RAGMode = "hybrid"
	// ModeOnly answers strictly from retrieved context. With nothing
	// retrieved it returns a fixed fallback and never calls the model.
	ModeOnly RAGMode = "only"
)

// ParseRAGMode validates a mode string. An empty value defaults to hybrid.
func ParseRAGMode(s string) (RAGMode, error) {
	switch RAGMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeHybrid:
		return ModeHybrid, nil
	case ModeOff:
		return ModeOff, nil
	case ModeOnly:
		return ModeOnly, nil
	}
	return "", fmt.Errorf("unknown rag mode %q", s)
}

const noContextAnswer = "I don't have relevant information to answer your question. Please try rephrasing or check if relevant documents have been ingested."

const coachSystemPrompt = `You are an expert aim training coach for FPS games. You help players improve their mechanical skill, crosshair placement, flick accuracy and tracking. Give practical, specific advice grounded in deliberate practice principles. Keep answers focused and actionable.`

const groundedSystemPrompt = `You are an expert aim training coach for FPS games. Answer using the reference material provided below. Prefer the reference material over your own knowledge when they conflict, and cite which source you drew from when it matters.`

const safetyMedicalSuffix = ` Some of the reference material covers injury, strain or health topics. Be conservative: describe what the material says, recommend rest and professional medical advice for anything persistent, and never diagnose.`

const safetyTrainingSuffix = ` The reference material includes structured training plans. Respect the plan structure when recommending routines and do not invent drill names that are not in the material.`

// Composer turns a user query into an answer, wiring retrieval and
// completion together according to the active mode.
type Composer struct {
	retriever *Retriever
	completer ai.Completer
}

// ComposedAnswer is the outcome of one Answer call.
type ComposedAnswer struct {
	Answer       string
	Sources      []models.SourceRef
	Confidence   float64
	ModelUsed    string
	ResponseTime time.Duration
}

func NewComposer(retriever *Retriever, completer ai.Completer) *Composer {
	return &Composer{retriever: retriever, completer: completer}
}

// Answer composes a response to query under mode. In hybrid mode an empty
// retrieval degrades to the off-mode path; in only mode it short-circuits to
// the fixed no-context answer without a completion call.
func (c *Composer) Answer(ctx context.Context, query string, mode RAGMode, filter models.SearchFilter) (*ComposedAnswer, error) {
	start := time.Now()

	if mode == ModeOff {
		return c.direct(ctx, query, start)
	}

	result, err := c.retriever.Retrieve(ctx, query, filter)
	if err != nil {
		return nil, err
	}

	if len(result.Chunks) == 0 {
		if mode == ModeOnly {
			return &ComposedAnswer{
				Answer:       noContextAnswer,
				Sources:      []models.SourceRef{},
				Confidence:   0,
				ModelUsed:    "none",
				ResponseTime: time.Since(start),
			}, nil
		}
		return c.direct(ctx, query, start)
	}

	system := groundedSystemPrompt + safetySuffix(filter.Safety)
	prompt := groundedPrompt(query, result.Chunks, mode == ModeOnly)

	completion, err := c.completer.Complete(ctx, system, prompt)
	if err != nil {
		return nil, err
	}

	return &ComposedAnswer{
		Answer:       completion.Text,
		Sources:      sourceRefs(result.Chunks),
		Confidence:   result.Confidence,
		ModelUsed:    completion.Model,
		ResponseTime: time.Since(start),
	}, nil
}

// Query serves the retrieval endpoint: always grounded, fixed fallback when
// nothing relevant exists.
func (c *Composer) Query(ctx context.Context, query string, filter models.SearchFilter) (*models.QueryResponse, error) {
	result, err := c.retriever.Retrieve(ctx, query, filter)
	if err != nil {
		return nil, err
	}

	if len(result.Chunks) == 0 {
		return &models.QueryResponse{
			Answer:     noContextAnswer,
			Sources:    []models.SourceRef{},
			Confidence: 0,
		}, nil
	}

	system := groundedSystemPrompt + safetySuffix(filter.Safety)
	completion, err := c.completer.Complete(ctx, system, groundedPrompt(query, result.Chunks, true))
	if err != nil {
		return nil, err
	}

	return &models.QueryResponse{
		Answer:     completion.Text,
		Sources:    sourceRefs(result.Chunks),
		Confidence: result.Confidence,
	}, nil
}

func (c *Composer) direct(ctx context.Context, query string, start time.Time) (*ComposedAnswer, error) {
	completion, err := c.completer.Complete(ctx, coachSystemPrompt, query)
	if err != nil {
		return nil, err
	}
	return &ComposedAnswer{
		Answer:       completion.Text,
		Sources:      nil,
		Confidence:   0,
		ModelUsed:    completion.Model,
		ResponseTime: time.Since(start),
	}, nil
}

func safetySuffix(level models.SafetyLevel) string {
	switch level {
	case models.SafetyMedical:
		return safetyMedicalSuffix
	case models.SafetyTraining:
		return safetyTrainingSuffix
	}
	return ""
}

func groundedPrompt(query string, chunks []models.ScoredChunk, strict bool) string {
	var b strings.Builder
	b.WriteString("Reference material:\n\n")
	for i, sc := range chunks {
		fmt.Fprintf(&b, "[Source %d: %s]\n%s\n\n", i+1, sc.Title, sc.Chunk.Content)
	}
	if strict {
		b.WriteString("CRITICAL INSTRUCTIONS: Answer ONLY from the reference material above. If the material does not contain the answer, say so explicitly instead of guessing.\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}

func sourceRefs(chunks []models.ScoredChunk) []models.SourceRef {
	refs := make([]models.SourceRef, 0, len(chunks))
	for _, sc := range chunks {
		refs = append(refs, models.SourceRef{
			Title:     sc.Title,
			Chunk:     sc.Chunk.Content,
			Relevance: sc.Relevance,
		})
	}
	return refs
}
