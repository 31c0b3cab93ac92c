package planner

import (
	"context"
	"errors"
	"time"

	"github.com/fpang/minipaint/internal/assets"
	"github.com/fpang/minipaint/internal/chat"
	"github.com/fpang/minipaint/internal/filehandler"
	"github.com/fpang/minipaint/internal/inventory"
	"github.com/fpang/minipaint/internal/metrics"
	"github.com/fpang/minipaint/internal/plan"
	"github.com/rs/zerolog/log"
)

// Request is the input of a plan generation. Inventory is a snapshot taken
// by the caller; the planner never re-reads the store mid-generation.
type Request struct {
	ProjectName string
	Source      string
	Image       *filehandler.ImageFile
	Inventory   inventory.Inventory
}

// generation is the per-request state shared by the phases.
type generation struct {
	req      Request
	protocol string
	norm     *plan.Normalizer
	image    *chat.Image
	start    time.Time
}

func (p *Planner) begin(req Request, protocol string) (*generation, error) {
	if req.Image == nil || len(req.Image.Data) == 0 {
		return nil, errors.New("a reference image is required")
	}
	img, err := prepareImage(req.Image, p.profile.MaxImageDim)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("project", req.ProjectName).
		Str("protocol", protocol).
		Str("backend", p.profile.Backend).
		Int("paints", len(req.Inventory.Paints)).
		Int("image_bytes", len(img.Data)).
		Msg("Starting plan generation")
	return &generation{
		req:      req,
		protocol: protocol,
		norm:     plan.NewNormalizer(req.Inventory, p.matcher),
		image:    img,
		start:    time.Now(),
	}, nil
}

func (g *generation) context(parts []plan.Part, colors []plan.IdentifiedColor) plan.PlanContext {
	return plan.PlanContext{
		ProjectName: g.req.ProjectName,
		Source:      g.req.Source,
		Parts:       parts,
		Colors:      colors,
		Image:       plan.ReferenceImage{Data: g.req.Image.Base64(), Type: g.req.Image.MIMEType},
	}
}

func (p *Planner) promptData(g *generation) assets.PlanPromptData {
	return assets.PlanPromptData{
		ProjectName: g.req.ProjectName,
		Source:      g.req.Source,
		Inventory:   formatInventory(g.req.Inventory),
		Thinners:    formatThinners(g.req.Inventory),
		Varnishes:   formatVarnishes(g.req.Inventory),
		MinColors:   MinColors,
		MinParts:    MinParts,
		MaxParts:    plan.MaxParts,
		Compact:     p.profile.Compact,
	}
}

// GenerateWithRegions runs the two-phase protocol for parts the user has
// already marked: colours per part, then one step per part plus varnish.
// Every step of a confirmed part carries exactly the user's rectangles.
// Without any named region it falls back to Generate.
func (p *Planner) GenerateWithRegions(ctx context.Context, req Request, regions []plan.RegionItem) (*plan.ProjectPlan, error) {
	items := plan.NormalizeRegionItems(regions)
	if len(items) == 0 {
		return p.Generate(ctx, req)
	}

	g, err := p.begin(req, "regions")
	if err != nil {
		return nil, err
	}

	parts := make([]plan.Part, 0, len(items))
	for _, it := range items {
		parts = append(parts, plan.Part{Name: it.PartName, Regions: it.Regions})
	}

	data := p.promptData(g)
	data.Parts = regionPrompts(parts)
	colors, err := p.identifyColors(ctx, g, data)
	if err != nil {
		return nil, p.failed(g, err)
	}

	result, outcome, err := p.generateSteps(ctx, g, parts, colors)
	if err != nil {
		return nil, p.failed(g, err)
	}
	plan.ApplyUserRegions(result, items)

	p.finished(g, result, outcome)
	return result, nil
}

// Generate runs full discovery: colours, part segmentation (backfilled
// from the colours when the model finds too few parts), then steps.
func (p *Planner) Generate(ctx context.Context, req Request) (*plan.ProjectPlan, error) {
	g, err := p.begin(req, "discovery")
	if err != nil {
		return nil, err
	}

	colors, err := p.identifyColors(ctx, g, p.promptData(g))
	if err != nil {
		return nil, p.failed(g, err)
	}

	parts, err := p.segmentParts(ctx, g, colors)
	if err != nil {
		return nil, p.failed(g, err)
	}

	result, outcome, err := p.generateSteps(ctx, g, parts, colors)
	if err != nil {
		return nil, p.failed(g, err)
	}

	p.finished(g, result, outcome)
	return result, nil
}

func (p *Planner) identifyColors(ctx context.Context, g *generation, data assets.PlanPromptData) ([]plan.IdentifiedColor, error) {
	raw, err := p.run(ctx, call{
		op:          plan.PhaseColors,
		prompt:      assets.RenderColorsPrompt(data),
		image:       g.image,
		schema:      colorsSchema(),
		temperature: colorsTemperature,
		budget:      colorsBudget,
	})
	if err != nil {
		return nil, noPlan(err)
	}
	colors, err := g.norm.NormalizeColors(raw)
	if err != nil {
		return nil, noPlan(err)
	}
	log.Debug().Int("colors", len(colors)).Msg("Colors identified")
	return colors, nil
}

// segmentParts asks for parts and backfills from the colours. An
// unparseable answer counts as no parts; only an empty list after backfill
// fails the generation.
func (p *Planner) segmentParts(ctx context.Context, g *generation, colors []plan.IdentifiedColor) ([]plan.Part, error) {
	data := p.promptData(g)
	data.Colors = formatColors(colors)

	var parts []plan.Part
	raw, err := p.run(ctx, call{
		op:          plan.PhaseParts,
		prompt:      assets.RenderPartsPrompt(data),
		image:       g.image,
		schema:      partsSchema(),
		temperature: partsTemperature,
		budget:      partsBudget,
	})
	switch {
	case err == nil:
		if parts, err = g.norm.NormalizeParts(raw); err != nil {
			log.Warn().Err(err).Msg("Part segmentation unusable, backfilling from colors")
		}
	case chat.KindOf(err) == chat.KindMalformedResponse:
		log.Warn().Err(err).Msg("Part segmentation malformed, backfilling from colors")
	default:
		return nil, err
	}

	found := len(parts)
	parts = plan.BackfillParts(parts, colors)
	if len(parts) == 0 {
		return nil, noPlan(&plan.NormalizationError{Phase: plan.PhaseParts, Reason: "no parts after backfill"})
	}
	if len(parts) > found {
		log.Info().Int("model_parts", found).Int("backfilled", len(parts)-found).Msg("Parts backfilled from colors")
	}
	return parts, nil
}

// outcome records how the steps phase ended.
type outcome struct {
	fallback   bool
	lowQuality bool
}

// generateSteps runs the steps phase. A low-quality answer only earns a
// warning, unless fallback is enabled, in which case it and any failure of
// the phase are replaced by the heuristic plan.
func (p *Planner) generateSteps(ctx context.Context, g *generation, parts []plan.Part, colors []plan.IdentifiedColor) (*plan.ProjectPlan, outcome, error) {
	pc := g.context(parts, colors)
	data := p.promptData(g)
	data.Colors = formatColors(colors)
	data.Parts = stepPrompts(parts, colors)

	raw, err := p.run(ctx, call{
		op:          plan.PhaseSteps,
		prompt:      assets.RenderStepsPrompt(data),
		schema:      stepsSchema(),
		temperature: stepsTemperature,
		budget:      stepsBudget,
	})
	if err != nil {
		if p.fallback && ctx.Err() == nil {
			log.Warn().Err(err).Msg("Step generation failed, using fallback plan")
			return g.norm.FallbackPlan(pc), outcome{fallback: true}, nil
		}
		return nil, outcome{}, noPlan(err)
	}

	quality := plan.AssessQuality(raw)
	if quality.Bad {
		log.Warn().Str("reason", quality.Reason).Bool("fallback", p.fallback).Msg("Low quality model response")
		if p.fallback {
			fp := g.norm.FallbackPlan(pc)
			fp.Warnings = append(fp.Warnings, plan.LowQualityWarning)
			return fp, outcome{fallback: true, lowQuality: true}, nil
		}
	}

	result, err := g.norm.NormalizePlan(raw, pc)
	if err != nil {
		if p.fallback {
			log.Warn().Err(err).Msg("Steps could not be normalized, using fallback plan")
			return g.norm.FallbackPlan(pc), outcome{fallback: true}, nil
		}
		return nil, outcome{}, noPlan(err)
	}
	if quality.Bad {
		result.Warnings = append(result.Warnings, plan.LowQualityWarning)
	}
	return result, outcome{lowQuality: quality.Bad}, nil
}

func (p *Planner) finished(g *generation, result *plan.ProjectPlan, o outcome) {
	elapsed := time.Since(g.start)
	m := metrics.New(metrics.Namespace).
		Dimension("Operation", "generate").
		Dimension("Protocol", g.protocol).
		Dimension("Backend", p.profile.Backend).
		Metric("GenerationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Metric("PlanSteps", float64(len(result.Steps)), metrics.UnitCount).
		Count("Generations")
	if o.fallback {
		m.Count("FallbackPlans")
	}
	if o.lowQuality {
		m.Count("LowQualityResponses")
	}
	m.Flush()

	log.Info().
		Str("project", g.req.ProjectName).
		Str("protocol", g.protocol).
		Int("steps", len(result.Steps)).
		Int("colors", len(result.IdentifiedColors)).
		Bool("fallback", o.fallback).
		Dur("duration", elapsed).
		Msg("Plan generation complete")
}

func (p *Planner) failed(g *generation, err error) error {
	metrics.New(metrics.Namespace).
		Dimension("Operation", "generate").
		Dimension("Protocol", g.protocol).
		Dimension("Backend", p.profile.Backend).
		Count("GenerationFailures").
		Property("kind", chat.KindOf(err).String()).
		Flush()
	log.Error().Err(err).Str("protocol", g.protocol).Msg("Plan generation failed")
	return err
}
