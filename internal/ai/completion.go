package ai

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"

	"aim-assistant-backend/internal/config"
)

// Completion is the result of one completion call.
type Completion struct {
	Text    string
	Model   string
	Elapsed time.Duration
}

// Completer is the opaque completion provider: given a prompt, it returns
// text, a model identifier and elapsed time.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, prompt string) (*Completion, error)
	Close() error
}

// GeminiCompleter generates answers through the Gemini API.
type GeminiCompleter struct {
	client  *genai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewGeminiCompleter(ctx context.Context, cfg *config.Config) (*GeminiCompleter, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for completions")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	limits := getRateLimits(cfg.GeminiTier)

	return &GeminiCompleter{
		client:  client,
		model:   cfg.CompletionModel,
		breaker: newAPIBreaker("GeminiCompletion"),
		limiter: rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), burstFor(limits.RPM)),
	}, nil
}

func (gc *GeminiCompleter) Complete(ctx context.Context, systemPrompt, prompt string) (*Completion, error) {
	tracer := otel.Tracer("gemini-completer")
	ctx, span := tracer.Start(ctx, "gemini.generate_content")
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", gc.model),
		attribute.Int("gemini.prompt_chars", len(prompt)),
	)

	if err := gc.limiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, err
	}

	start := time.Now()

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.model)
		model.SetTemperature(0.7)
		model.SetMaxOutputTokens(2048)
		if systemPrompt != "" {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(systemPrompt)},
			}
		}

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}

		text := extractText(resp)
		if text == "" {
			return nil, fmt.Errorf("no text returned by model")
		}
		return text, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))

	return &Completion{
		Text:    result.(string),
		Model:   gc.model,
		Elapsed: time.Since(start),
	}, nil
}

func (gc *GeminiCompleter) Close() error {
	return gc.client.Close()
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	text := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	return text
}
