package chat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fpang/minipaint/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultLocalEndpoint is where LM Studio serves its OpenAI-compatible API.
	DefaultLocalEndpoint = "http://localhost:1234/v1"

	// LocalMaxImageDim caps reference images sent to local vision models.
	LocalMaxImageDim = 768

	localTimeout       = 5 * time.Minute
	localTopP          = 0.9
	localRepeatPenalty = 1.1
)

// maxLocalResponseBytes bounds how much of a local server reply is read.
var maxLocalResponseBytes int64 = 16 << 20

// LocalClient talks to a local OpenAI-compatible chat server (LM Studio,
// llama.cpp server, Ollama's /v1 endpoint).
type LocalClient struct {
	httpClient *http.Client
	url        string
	model      string
}

// NewLocalClient creates a client for endpoint, the server's API base
// ("http://localhost:1234/v1"). A full ".../chat/completions" URL is also
// accepted. An empty model sends DefaultLocalModel.
func NewLocalClient(endpoint, model string) *LocalClient {
	if model == "" {
		model = DefaultLocalModel
	}
	return &LocalClient{
		httpClient: &http.Client{Timeout: localTimeout},
		url:        BuildChatURL(endpoint),
		model:      model,
	}
}

// BuildChatURL appends the chat completions path to an API base URL unless
// it is already there.
func BuildChatURL(endpoint string) string {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if base == "" {
		base = DefaultLocalEndpoint
	}
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

// Profile implements Client.
func (c *LocalClient) Profile() Profile {
	return Profile{Backend: BackendLocal, MaxImageDim: LocalMaxImageDim, Compact: true}
}

// --- wire types ---

type localRequest struct {
	Model         string         `json:"model"`
	Messages      []localMessage `json:"messages"`
	Temperature   float32        `json:"temperature"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	TopP          float32        `json:"top_p"`
	RepeatPenalty float32        `json:"repeat_penalty"`
	Stream        bool           `json:"stream"`
}

// localMessage content is a string, or a list of parts for vision messages.
type localMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type localPart struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *localImageURL `json:"image_url,omitempty"`
}

type localImageURL struct {
	URL string `json:"url"`
}

type localResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// CompleteText implements Client.
func (c *LocalClient) CompleteText(ctx context.Context, prompt string, opts Options) (*Completion, error) {
	return c.post(ctx, c.messages(opts, prompt), opts)
}

// CompleteVision implements Client. The image is sent as a data URL part
// ahead of the prompt text.
func (c *LocalClient) CompleteVision(ctx context.Context, prompt string, img Image, opts Options) (*Completion, error) {
	dataURL := "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	content := []localPart{
		{Type: "image_url", ImageURL: &localImageURL{URL: dataURL}},
		{Type: "text", Text: prompt},
	}
	return c.post(ctx, c.messages(opts, content), opts)
}

func (c *LocalClient) messages(opts Options, user any) []localMessage {
	var msgs []localMessage
	if opts.System != "" {
		msgs = append(msgs, localMessage{Role: "system", Content: opts.System})
	}
	return append(msgs, localMessage{Role: "user", Content: user})
}

func (c *LocalClient) post(ctx context.Context, msgs []localMessage, opts Options) (*Completion, error) {
	payload := localRequest{
		Model:         c.model,
		Messages:      msgs,
		Temperature:   opts.Temperature,
		MaxTokens:     opts.MaxOutputTokens,
		TopP:          localTopP,
		RepeatPenalty: localRepeatPenalty,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	log.Debug().
		Str("op", opts.Op).
		Str("url", c.url).
		Int("request_bytes", len(body)).
		Int("max_tokens", opts.MaxOutputTokens).
		Msg("Local model request")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)

	m := metrics.New(metrics.Namespace).
		Dimension("Operation", opts.Op).
		Dimension("Backend", BackendLocal).
		Metric("ModelLatencyMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("ModelCalls")
	defer m.Flush()

	if err != nil {
		m.Count("ModelErrors")
		log.Debug().Int("statusCode", 0).Dur("duration", elapsed).Err(err).Msg("Local model response")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxLocalResponseBytes+1))
	if err != nil {
		m.Count("ModelErrors")
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(raw)) > maxLocalResponseBytes {
		m.Count("ModelErrors")
		return nil, fmt.Errorf("local model response exceeds %d bytes", maxLocalResponseBytes)
	}
	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", elapsed).Int("response_bytes", len(raw)).Msg("Local model response")

	if httpResp.StatusCode != http.StatusOK {
		m.Count("ModelErrors")
		return nil, fmt.Errorf("local model returned HTTP %d: %s", httpResp.StatusCode, truncateString(string(raw), 200))
	}

	var resp localResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		m.Count("ModelErrors")
		return nil, fmt.Errorf("parse response: %w (body: %s)", err, truncateString(string(raw), 200))
	}
	if resp.Error != nil {
		m.Count("ModelErrors")
		return nil, fmt.Errorf("local model error: %s (type: %s)", resp.Error.Message, resp.Error.Type)
	}
	if len(resp.Choices) == 0 {
		m.Count("ModelErrors")
		return nil, fmt.Errorf("local model returned no choices")
	}

	choice := resp.Choices[0]
	out := &Completion{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
		Truncated:    choice.FinishReason == "length" || strings.EqualFold(choice.FinishReason, "max_tokens"),
	}
	if resp.Usage != nil {
		out.InputTokens = resp.Usage.PromptTokens
		out.OutputTokens = resp.Usage.CompletionTokens
		m.Metric("ModelInputTokens", float64(out.InputTokens), metrics.UnitCount)
		m.Metric("ModelOutputTokens", float64(out.OutputTokens), metrics.UnitCount)
	}

	if out.Truncated {
		log.Warn().
			Str("op", opts.Op).
			Str("finish_reason", out.FinishReason).
			Int("response_length", len(out.Text)).
			Msg("Local model output truncated by token budget; repairing")
	}
	return out, nil
}
