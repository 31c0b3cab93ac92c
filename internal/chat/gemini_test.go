package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"google.golang.org/genai"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc, models ...string) *GeminiClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g, err := newGeminiClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  server.Client(),
		HTTPOptions: genai.HTTPOptions{BaseURL: server.URL},
	}, models)
	if err != nil {
		t.Fatalf("newGeminiClient: %v", err)
	}
	return g
}

const geminiOK = `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"colors\":[]}"}]},"finishReason":"MAX_TOKENS"}],
	"usageMetadata":{"promptTokenCount":100,"candidatesTokenCount":20}}`

func TestGeminiFallsThroughRateLimitedModel(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.Path)
		mu.Unlock()

		if strings.Contains(r.URL.Path, ModelGemini25Pro) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("request is not JSON: %v", err)
		}
		if gc, _ := req["generationConfig"].(map[string]any); gc["responseMimeType"] != "application/json" {
			t.Errorf("expected JSON mode in generationConfig, got %v", req["generationConfig"])
		}
		w.Write([]byte(geminiOK))
	}, ModelGemini25Pro, ModelGemini25Flash)

	got, err := g.CompleteText(context.Background(), "cores?", Options{Op: "colors", JSON: true, MaxOutputTokens: 64})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != `{"colors":[]}` {
		t.Errorf("unexpected text %q", got.Text)
	}
	if !got.Truncated || got.InputTokens != 100 || got.OutputTokens != 20 {
		t.Errorf("unexpected completion metadata: %+v", got)
	}
	if len(seen) != 2 {
		t.Errorf("expected 2 requests (pro then flash), got %v", seen)
	}
}

func TestGeminiAllModelsRateLimited(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
	}, ModelGemini25Flash)

	_, err := g.CompleteVision(context.Background(), "partes?", Image{Data: []byte{1, 2, 3}, MIMEType: "image/png"}, Options{Op: "parts"})
	if !IsRateLimit(err) {
		t.Errorf("expected a rate-limit error for WithRetry to back off on, got %v", err)
	}
	if g.Profile().Backend != BackendGemini || !g.Profile().Structured {
		t.Errorf("unexpected profile %+v", g.Profile())
	}
}
