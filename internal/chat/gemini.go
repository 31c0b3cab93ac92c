package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/fpang/minipaint/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// GeminiClient is the hosted backend.
type GeminiClient struct {
	client *genai.Client
	models []string
}

// NewGeminiClient creates a Gemini API client. models is the priority list
// (see GetModelNames); empty uses the default.
func NewGeminiClient(ctx context.Context, apiKey string, models ...string) (*GeminiClient, error) {
	return newGeminiClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, models)
}

func newGeminiClient(ctx context.Context, cfg *genai.ClientConfig, models []string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if len(models) == 0 {
		models = GetModelNames()
	}
	log.Debug().Strs("models", models).Msg("Gemini client initialized")
	return &GeminiClient{client: client, models: models}, nil
}

// GenAI exposes the underlying SDK client (used for API key validation).
func (g *GeminiClient) GenAI() *genai.Client {
	return g.client
}

// Profile implements Client.
func (g *GeminiClient) Profile() Profile {
	return Profile{Backend: BackendGemini, Structured: true}
}

// CompleteText implements Client.
func (g *GeminiClient) CompleteText(ctx context.Context, prompt string, opts Options) (*Completion, error) {
	return g.generate(ctx, []*genai.Part{{Text: prompt}}, opts)
}

// CompleteVision implements Client. The image goes first, then the prompt.
func (g *GeminiClient) CompleteVision(ctx context.Context, prompt string, img Image, opts Options) (*Completion, error) {
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: img.Data}},
		{Text: prompt},
	}
	return g.generate(ctx, parts, opts)
}

func (g *GeminiClient) config(opts Options) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(opts.Temperature),
	}
	if opts.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxOutputTokens)
	}
	if opts.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: opts.System}}}
	}
	if opts.JSON {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = opts.Schema
	}
	return config
}

// generate tries each model in priority order, moving on only when a model
// is rate limited. The last rate-limit error is returned unclassified so
// WithRetry can back off.
func (g *GeminiClient) generate(ctx context.Context, parts []*genai.Part, opts Options) (*Completion, error) {
	contents := []*genai.Content{{Role: "user", Parts: parts}}
	config := g.config(opts)

	var lastErr error
	for _, model := range g.models {
		log.Debug().
			Str("op", opts.Op).
			Str("model", model).
			Int("part_count", len(parts)).
			Bool("json", opts.JSON).
			Msg("Starting Gemini API call")

		start := time.Now()
		resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
		elapsed := time.Since(start)

		m := metrics.New(metrics.Namespace).
			Dimension("Operation", opts.Op).
			Dimension("Backend", BackendGemini).
			Metric("ModelLatencyMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
			Count("ModelCalls")
		if err != nil {
			m.Count("ModelErrors")
		}
		if resp != nil && resp.UsageMetadata != nil {
			m.Metric("ModelInputTokens", float64(resp.UsageMetadata.PromptTokenCount), metrics.UnitCount)
			m.Metric("ModelOutputTokens", float64(resp.UsageMetadata.CandidatesTokenCount), metrics.UnitCount)
		}
		m.Property("model", model).Flush()

		if err != nil {
			if IsRateLimit(err) {
				log.Warn().Err(err).Str("model", model).Str("op", opts.Op).Msg("Gemini model rate limited")
				lastErr = err
				continue
			}
			log.Error().Err(err).Str("model", model).Dur("duration", elapsed).Msg("Gemini API call failed")
			return nil, fmt.Errorf("generate content with %s: %w", model, err)
		}
		if resp == nil || len(resp.Candidates) == 0 {
			return nil, fmt.Errorf("received empty response from Gemini API")
		}
		return completionFromResponse(resp, opts.Op, elapsed), nil
	}
	return nil, lastErr
}

func completionFromResponse(resp *genai.GenerateContentResponse, op string, elapsed time.Duration) *Completion {
	c := &Completion{
		Text:         resp.Text(),
		FinishReason: string(resp.Candidates[0].FinishReason),
	}
	c.Truncated = resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens
	if resp.UsageMetadata != nil {
		c.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		c.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	ev := log.Debug()
	if c.Truncated {
		ev = log.Warn()
	}
	ev.Str("op", op).
		Str("finish_reason", c.FinishReason).
		Int("response_length", len(c.Text)).
		Dur("duration", elapsed).
		Msg("Gemini API response received")
	return c
}
