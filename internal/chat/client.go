// Package chat is the language-model capability used by the planner: a
// small Client interface with two implementations (the hosted Gemini API
// through google.golang.org/genai, and a local OpenAI-compatible chat
// server), the retry policy for rate-limited calls, and the error taxonomy
// surfaced to users.
package chat

import (
	"context"

	"google.golang.org/genai"
)

// Backend identifiers, as stored in settings.
const (
	BackendGemini = "gemini"
	BackendLocal  = "local"
)

// Options tune a single completion.
type Options struct {
	// Op names the calling operation ("colors", "steps", "hex", ...). It is
	// used for logs, metrics and user-facing error messages.
	Op string

	System          string
	Temperature     float32
	MaxOutputTokens int

	// JSON asks for a JSON body. The hosted backend enforces Schema through
	// structured output; the local backend only gets the instruction in the
	// prompt and ignores Schema.
	JSON   bool
	Schema *genai.Schema
}

// Image is an inline image sent with a vision completion.
type Image struct {
	Data     []byte
	MIMEType string
}

// Completion is the raw model output plus what the backend reported about it.
type Completion struct {
	Text         string
	FinishReason string
	// Truncated is set when generation stopped on the output-token budget.
	// The text is still returned; callers repair it rather than abort.
	Truncated    bool
	InputTokens  int
	OutputTokens int
}

// Profile describes backend differences the planner adapts to.
type Profile struct {
	Backend string
	// MaxImageDim caps the longest side of images sent to the backend.
	// Zero means images are sent as-is.
	MaxImageDim int
	// Structured reports whether Options.Schema is enforced server-side.
	Structured bool
	// Compact selects the shorter prompt variants and smaller token budgets.
	Compact bool
}

// Client is a language-model backend.
type Client interface {
	CompleteText(ctx context.Context, prompt string, opts Options) (*Completion, error)
	CompleteVision(ctx context.Context, prompt string, img Image, opts Options) (*Completion, error)
	Profile() Profile
}

// truncateString returns the first n bytes of s, appending "..." if truncated.
func truncateString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
