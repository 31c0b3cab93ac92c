// Package planner orchestrates plan generation over a chat.Client: colour
// identification, part segmentation and step generation, each one model
// call whose output is repaired (jsonutil) and normalized (plan). It also
// hosts the single-call helpers used by the inventory screens: part
// suggestions, paint hex lookup and bulk inventory import.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fpang/minipaint/internal/assets"
	"github.com/fpang/minipaint/internal/chat"
	"github.com/fpang/minipaint/internal/colormatch"
	"github.com/fpang/minipaint/internal/filehandler"
	"github.com/fpang/minipaint/internal/jsonutil"
	"github.com/fpang/minipaint/internal/plan"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// ErrNoPlan means a generation produced nothing usable: a phase returned
// no recoverable JSON or an empty required array. Classified backend
// failures (quota, unreachable server) are returned as *chat.Error instead.
var ErrNoPlan = errors.New("plan generation produced no usable result")

// MinColors is the colour count asked for during full discovery.
const MinColors = 10

// MinParts is the lower bound asked for during part segmentation.
const MinParts = 5

// IdentifyMaxDim caps the image sent for part suggestions.
const IdentifyMaxDim = 768

// budget is an output-token budget per backend flavour.
type budget struct {
	hosted, compact int
}

var (
	colorsBudget   = budget{8192, 1500}
	partsBudget    = budget{4096, 1000}
	stepsBudget    = budget{16384, 2000}
	identifyBudget = budget{2048, 800}
	hexBudget      = budget{0, 12}
	importBudget   = budget{8192, 0}
)

const (
	colorsTemperature    = 0.4
	partsTemperature     = 0.3
	stepsTemperature     = 0.5
	identifyTemperature  = 0.2
	hexTemperature       = 0
	inventoryTemperature = 0.1
)

// Planner runs generations against one backend. It holds no per-request
// state, so one Planner can serve concurrent requests; each generation
// works on its own inventory snapshot.
type Planner struct {
	client   chat.Client
	profile  chat.Profile
	retry    chat.RetryPolicy
	matcher  *colormatch.Matcher
	fallback bool
}

// Option configures a Planner.
type Option func(*Planner)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p chat.RetryPolicy) Option {
	return func(pl *Planner) { pl.retry = p }
}

// WithMatcher sets the colour matcher (and so the closeness threshold).
func WithMatcher(m *colormatch.Matcher) Option {
	return func(pl *Planner) { pl.matcher = m }
}

// WithFallback forces the heuristic fallback plan on or off. By default it
// is on for the local backend only.
func WithFallback(enabled bool) Option {
	return func(pl *Planner) { pl.fallback = enabled }
}

// New returns a Planner for client.
func New(client chat.Client, opts ...Option) *Planner {
	p := &Planner{
		client:  client,
		profile: client.Profile(),
		retry:   chat.DefaultRetryPolicy(),
		matcher: colormatch.NewMatcher(colormatch.DefaultThreshold),
	}
	p.fallback = p.profile.Backend == chat.BackendLocal
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Profile returns the backend profile the planner adapts to.
func (p *Planner) Profile() chat.Profile {
	return p.profile
}

func (p *Planner) tokens(b budget) int {
	if p.profile.Compact {
		return b.compact
	}
	return b.hosted
}

// call is one model request of a phase.
type call struct {
	op          string
	prompt      string
	image       *chat.Image
	schema      *genai.Schema
	temperature float32
	budget      budget
	json        bool
}

// complete runs c through the retry policy and returns the raw completion.
func (p *Planner) complete(ctx context.Context, c call) (*chat.Completion, error) {
	opts := chat.Options{
		Op:              c.op,
		System:          assets.System(p.profile.Compact),
		Temperature:     c.temperature,
		MaxOutputTokens: p.tokens(c.budget),
		JSON:            c.json,
		Schema:          c.schema,
	}
	if !c.json {
		opts.System = ""
	}

	log.Debug().
		Str("op", c.op).
		Str("backend", p.profile.Backend).
		Int("prompt_length", len(c.prompt)).
		Bool("vision", c.image != nil).
		Msg("Starting model phase")

	start := time.Now()
	completion, err := chat.WithRetry(ctx, p.retry, c.op, func(ctx context.Context) (*chat.Completion, error) {
		if c.image != nil {
			return p.client.CompleteVision(ctx, c.prompt, *c.image, opts)
		}
		return p.client.CompleteText(ctx, c.prompt, opts)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("op", c.op).
		Str("backend", p.profile.Backend).
		Int("response_length", len(completion.Text)).
		Bool("truncated", completion.Truncated).
		Dur("duration", time.Since(start)).
		Msg("Model phase complete")
	return completion, nil
}

// run completes c and repairs the response into a generic JSON value.
func (p *Planner) run(ctx context.Context, c call) (any, error) {
	c.json = true
	completion, err := p.complete(ctx, c)
	if err != nil {
		return nil, err
	}
	raw := jsonutil.ParseLenient(completion.Text)
	if raw == nil {
		log.Warn().
			Str("op", c.op).
			Str("preview", preview(completion.Text)).
			Msg("No JSON could be recovered from model response")
		return nil, chat.Malformed(c.op, fmt.Errorf("no JSON in %d-byte response", len(completion.Text)))
	}
	return raw, nil
}

// prepareImage downsamples img for backends with an image size cap.
func prepareImage(img *filehandler.ImageFile, maxDim int) (*chat.Image, error) {
	if maxDim > 0 {
		prepared, err := filehandler.PrepareImage(img, maxDim)
		if err != nil {
			return nil, fmt.Errorf("prepare reference image: %w", err)
		}
		img = prepared
	}
	return &chat.Image{Data: img.Data, MIMEType: img.MIMEType}, nil
}

// noPlan marks phase-shape failures as ErrNoPlan. Terminal backend errors
// pass through unchanged.
func noPlan(err error) error {
	var ne *plan.NormalizationError
	if errors.As(err, &ne) || chat.KindOf(err) == chat.KindMalformedResponse {
		return fmt.Errorf("%w: %w", ErrNoPlan, err)
	}
	return err
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
