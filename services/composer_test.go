package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"aim-assistant-backend/models"
)

func TestParseRAGMode(t *testing.T) {
	cases := []struct {
		input   string
		want    RAGMode
		wantErr bool
	}{
		{"off", ModeOff, false},
		{"hybrid", ModeHybrid, false},
		{"only", ModeOnly, false},
		{"  Only ", ModeOnly, false},
		{"", ModeHybrid, false},
		{"full", "", true},
	}

	for _, tc := range cases {
		got, err := ParseRAGMode(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseRAGMode(%q): expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRAGMode(%q): %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseRAGMode(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestAnswerModeOffSkipsRetrieval(t *testing.T) {
	// A failing embedder proves retrieval never runs in off mode.
	embedder := newFakeEmbedder()
	embedder.failWith = errors.New("embedder must not be called")
	completer := newFakeCompleter("train smarter")
	composer := NewComposer(NewRetriever(embedder, NewMemoryStore()), completer)

	answer, err := composer.Answer(context.Background(), "how do I aim", ModeOff, models.SearchFilter{})
	if err != nil {
		t.Fatal(err)
	}

	if answer.Answer != "train smarter" {
		t.Errorf("answer = %q", answer.Answer)
	}
	if len(answer.Sources) != 0 {
		t.Errorf("off mode returned %d sources", len(answer.Sources))
	}
	if completer.lastSystem != coachSystemPrompt {
		t.Errorf("off mode used grounded system prompt")
	}
	if embedder.calls != 0 {
		t.Errorf("embedder called %d times in off mode", embedder.calls)
	}
}

func TestAnswerModeOnlyEmptyStoreFallback(t *testing.T) {
	embedder := newFakeEmbedder()
	completer := newFakeCompleter("should not run")
	composer := NewComposer(NewRetriever(embedder, NewMemoryStore()), completer)

	answer, err := composer.Answer(context.Background(), "what is kovaaks", ModeOnly, models.SearchFilter{})
	if err != nil {
		t.Fatal(err)
	}

	if answer.Answer != noContextAnswer {
		t.Errorf("answer = %q, want the fixed fallback", answer.Answer)
	}
	if answer.ModelUsed != "none" {
		t.Errorf("model = %q, want none", answer.ModelUsed)
	}
	if answer.Confidence != 0 {
		t.Errorf("confidence = %f, want 0", answer.Confidence)
	}
	if completer.calls != 0 {
		t.Errorf("completion model called %d times for empty only-mode retrieval", completer.calls)
	}
}

func TestAnswerModeHybridEmptyStoreDegradesToDirect(t *testing.T) {
	embedder := newFakeEmbedder()
	completer := newFakeCompleter("general advice")
	composer := NewComposer(NewRetriever(embedder, NewMemoryStore()), completer)

	answer, err := composer.Answer(context.Background(), "mouse grip tips", ModeHybrid, models.SearchFilter{})
	if err != nil {
		t.Fatal(err)
	}

	if answer.Answer != "general advice" {
		t.Errorf("answer = %q", answer.Answer)
	}
	if completer.lastSystem != coachSystemPrompt {
		t.Errorf("hybrid with no context should use the ungrounded system prompt")
	}
	if len(answer.Sources) != 0 {
		t.Errorf("got %d sources from empty store", len(answer.Sources))
	}
}

func TestAnswerGroundedPromptCitesSources(t *testing.T) {
	ctx := context.Background()
	embedder := newFakeEmbedder()
	embedder.set("query", []float32{1, 0, 0, 0})

	store := NewMemoryStore()
	_, err := ingestDoc(ctx, store, "Tracking Guide", models.SafetyGeneral, nil, []ChunkRecord{
		{Index: 0, Content: "smooth tracking beats twitch corrections", Vector: []float32{1, 0, 0, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}

	completer := newFakeCompleter("grounded reply")
	composer := NewComposer(NewRetriever(embedder, store), completer)

	answer, err := composer.Answer(ctx, "query", ModeHybrid, models.SearchFilter{})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(completer.lastPrompt, "[Source 1: Tracking Guide]") {
		t.Errorf("prompt missing source citation:\n%s", completer.lastPrompt)
	}
	if !strings.Contains(completer.lastPrompt, "smooth tracking beats twitch corrections") {
		t.Errorf("prompt missing chunk content")
	}
	if len(answer.Sources) != 1 || answer.Sources[0].Title != "Tracking Guide" {
		t.Errorf("sources = %+v", answer.Sources)
	}
	if answer.ModelUsed != "fake-model" {
		t.Errorf("model = %q", answer.ModelUsed)
	}
}

func TestAnswerOnlyModeAddsStrictInstructions(t *testing.T) {
	ctx := context.Background()
	embedder := newFakeEmbedder()
	embedder.set("query", []float32{1, 0, 0, 0})

	store := NewMemoryStore()
	_, err := ingestDoc(ctx, store, "doc", models.SafetyGeneral, nil, []ChunkRecord{
		{Index: 0, Content: "context", Vector: []float32{1, 0, 0, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}

	completer := newFakeCompleter("strict reply")
	composer := NewComposer(NewRetriever(embedder, store), completer)

	if _, err := composer.Answer(ctx, "query", ModeOnly, models.SearchFilter{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(completer.lastPrompt, "CRITICAL INSTRUCTIONS") {
		t.Errorf("only mode prompt missing strict instructions")
	}

	if _, err := composer.Answer(ctx, "query", ModeHybrid, models.SearchFilter{}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(completer.lastPrompt, "CRITICAL INSTRUCTIONS") {
		t.Errorf("hybrid mode prompt should not carry strict instructions")
	}
}

func TestAnswerSafetySuffixApplied(t *testing.T) {
	ctx := context.Background()
	embedder := newFakeEmbedder()
	embedder.set("query", []float32{1, 0, 0, 0})

	store := NewMemoryStore()
	_, err := ingestDoc(ctx, store, "wrist care", models.SafetyMedical, nil, []ChunkRecord{
		{Index: 0, Content: "stretch before sessions", Vector: []float32{1, 0, 0, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}

	completer := newFakeCompleter("careful reply")
	composer := NewComposer(NewRetriever(embedder, store), completer)

	_, err = composer.Answer(ctx, "query", ModeHybrid,
		models.SearchFilter{Safety: models.SafetyMedical})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(completer.lastSystem, safetyMedicalSuffix) {
		t.Errorf("medical safety suffix missing from system prompt")
	}
}

func TestAnswerCompleterErrorSurfaces(t *testing.T) {
	embedder := newFakeEmbedder()
	completer := newFakeCompleter("")
	completer.failWith = errors.New("model overloaded")
	composer := NewComposer(NewRetriever(embedder, NewMemoryStore()), completer)

	_, err := composer.Answer(context.Background(), "query", ModeOff, models.SearchFilter{})
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("got %v, want completer error", err)
	}
}

func TestQueryEmptyStoreFixedFallback(t *testing.T) {
	embedder := newFakeEmbedder()
	completer := newFakeCompleter("should not run")
	composer := NewComposer(NewRetriever(embedder, NewMemoryStore()), completer)

	resp, err := composer.Query(context.Background(), "anything", models.SearchFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != noContextAnswer {
		t.Errorf("answer = %q, want the fixed fallback", resp.Answer)
	}
	if resp.Confidence != 0 || len(resp.Sources) != 0 {
		t.Errorf("fallback response carries sources or confidence: %+v", resp)
	}
	if completer.calls != 0 {
		t.Errorf("completion model called for empty retrieval")
	}
}
