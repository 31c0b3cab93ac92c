package plan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fpang/minipaint/internal/colormatch"
	"github.com/fpang/minipaint/internal/inventory"
	"github.com/rs/zerolog/log"
)

// VarnishPartName names the synthesized final step.
const VarnishPartName = "Verniz final"

const varnishHex = "#F5F5F5"

var ratioPattern = regexp.MustCompile(`\d+\s*:\s*\d+`)

// PlanContext carries what step normalization needs besides the raw steps.
// Parts fixes the step order: one step per part, plus the varnish step.
type PlanContext struct {
	ProjectName string
	Source      string
	Parts       []Part
	Colors      []IdentifiedColor
	Image       ReferenceImage
}

// NormalizePlan coerces a step-generation result (an object with a "steps"
// array, or the array itself) into a ProjectPlan. Steps are aligned to
// pc.Parts: matched by part name (exact, then substring), then by position;
// parts the model skipped get a synthesized step and surplus steps are
// dropped. Exactly one varnish step closes the plan: a step named as varnish
// is preferred over one that only uses a varnish technique, and a step for a
// requested part is never taken as the varnish step.
func (n *Normalizer) NormalizePlan(raw any, pc PlanContext) (*ProjectPlan, error) {
	top := asMap(raw)
	var list []any
	if top != nil {
		list = asList(field(top, "steps", "passos", "etapas"))
	} else {
		list = asList(raw)
		top = map[string]any{}
	}

	var rawSteps []map[string]any
	for _, item := range list {
		switch t := item.(type) {
		case map[string]any:
			rawSteps = append(rawSteps, t)
		case string:
			if strings.TrimSpace(t) != "" {
				rawSteps = append(rawSteps, map[string]any{"partDescription": t})
			}
		}
	}
	if len(rawSteps) == 0 {
		return nil, &NormalizationError{Phase: PhaseSteps, Reason: "no steps in " + describeValue(raw)}
	}

	var byName, byTechnique map[string]any
	var regular []map[string]any
	for _, s := range rawSteps {
		switch varnishMatch(s, pc.Parts) {
		case varnishByName:
			if byName != nil {
				log.Debug().Str("part", stepPartName(s)).Msg("Dropping extra varnish step")
				continue
			}
			byName = s
		case varnishByTechnique:
			if byTechnique != nil {
				log.Debug().Str("part", stepPartName(s)).Msg("Dropping extra varnish step")
				continue
			}
			byTechnique = s
		default:
			regular = append(regular, s)
		}
	}
	varnishRaw := byName
	if varnishRaw == nil {
		varnishRaw = byTechnique
	} else if byTechnique != nil {
		log.Debug().Str("part", stepPartName(byTechnique)).Msg("Dropping varnish-technique step in favour of the named varnish step")
	}

	parts := pc.Parts
	if len(parts) == 0 {
		for i, s := range regular {
			parts = append(parts, Part{Name: orDefault(stepPartName(s), fmt.Sprintf("Etapa %d", i+1))})
		}
		if len(parts) == 0 {
			return nil, &NormalizationError{Phase: PhaseSteps, Reason: "only a varnish step"}
		}
	}

	steps := make([]ProjectStep, 0, len(parts)+1)
	for i, m := range alignSteps(parts, regular) {
		if m == nil {
			log.Debug().Str("part", parts[i].Name).Msg("No step for part; synthesizing one")
		}
		steps = append(steps, n.normalizeStep(m, parts[i], pc.Colors))
	}
	steps = append(steps, n.varnishStep(varnishRaw))

	return n.assemble(top, steps, pc), nil
}

func stepPartName(m map[string]any) string {
	return text(m, "partName", "part", "parte", "area", "name")
}

type varnishKind int

const (
	notVarnish varnishKind = iota
	varnishByName
	varnishByTechnique
)

// varnishMatch classifies a raw step as the varnish step by its part name,
// or by its technique when its part name points at no requested part.
func varnishMatch(m map[string]any, parts []Part) varnishKind {
	name := stepPartName(m)
	if IsVarnishPart(name) {
		return varnishByName
	}
	tech, ok := canonicalTechnique(text(m, "technique", "tecnica"))
	if !ok || tech != TechVarnish || namesPart(name, parts) {
		return notVarnish
	}
	return varnishByTechnique
}

// namesPart reports whether a step's part name matches one of parts, exactly
// or as a substring either way.
func namesPart(name string, parts []Part) bool {
	s := strings.TrimSpace(colormatch.Fold(name))
	if s == "" {
		return false
	}
	for _, p := range parts {
		k := strings.TrimSpace(colormatch.Fold(p.Name))
		if k != "" && (k == s || strings.Contains(k, s) || strings.Contains(s, k)) {
			return true
		}
	}
	return false
}

// alignSteps returns, per part, the raw step assigned to it (nil when the
// model produced none).
func alignSteps(parts []Part, steps []map[string]any) []map[string]any {
	assigned := make([]map[string]any, len(parts))
	used := make([]bool, len(steps))
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = strings.TrimSpace(colormatch.Fold(stepPartName(s)))
	}
	partKeys := make([]string, len(parts))
	for i, p := range parts {
		partKeys[i] = strings.TrimSpace(colormatch.Fold(p.Name))
	}

	match := func(pred func(part, step string) bool) {
		for i := range parts {
			if assigned[i] != nil {
				continue
			}
			for j := range steps {
				if !used[j] && names[j] != "" && pred(partKeys[i], names[j]) {
					assigned[i], used[j] = steps[j], true
					break
				}
			}
		}
	}
	match(func(p, s string) bool { return p == s })
	match(func(p, s string) bool { return strings.Contains(p, s) || strings.Contains(s, p) })

	// Positional pass: leftover steps whose name points at no requested
	// part fill the remaining gaps in order.
	refersToPart := func(s string) bool {
		for _, p := range partKeys {
			if s != "" && (strings.Contains(p, s) || strings.Contains(s, p)) {
				return true
			}
		}
		return false
	}
	j := 0
	for i := range parts {
		if assigned[i] != nil {
			continue
		}
		for ; j < len(steps); j++ {
			if !used[j] && !refersToPart(names[j]) {
				assigned[i], used[j] = steps[j], true
				j++
				break
			}
		}
	}
	for j, s := range steps {
		if !used[j] {
			log.Warn().Str("part", stepPartName(s)).Int("parts", len(parts)).Msg("Dropping surplus step")
		}
	}
	return assigned
}

// colorForPart finds the identified colour located on the named part.
func colorForPart(name string, colors []IdentifiedColor) *IdentifiedColor {
	key := colormatch.Fold(strings.TrimSpace(name))
	if key == "" {
		return nil
	}
	for i := range colors {
		loc := colormatch.Fold(strings.TrimSpace(colors[i].Location))
		if loc != "" && (strings.Contains(loc, key) || strings.Contains(key, loc)) {
			return &colors[i]
		}
	}
	return nil
}

// paintEntries collects the paint entries of a raw step: the paintsToUse
// list (or a comma separated string) plus the legacy single paintName.
func paintEntries(m map[string]any) []any {
	var entries []any
	switch v := field(m, "paintsToUse", "paints", "tintas").(type) {
	case string:
		for _, s := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' }) {
			if s = strings.TrimSpace(s); s != "" {
				entries = append(entries, s)
			}
		}
	default:
		entries = append(entries, asList(v)...)
	}
	if legacy := text(m, "paintName", "paint", "tinta"); legacy != "" {
		entries = append(entries, legacy)
	}
	return entries
}

// normalizeStep coerces one raw step (nil for a synthesized step) for part.
func (n *Normalizer) normalizeStep(m map[string]any, part Part, colors []IdentifiedColor) ProjectStep {
	if m == nil {
		m = map[string]any{}
	}
	color := colorForPart(part.Name, colors)

	st := ProjectStep{
		PartName:        part.Name,
		PartDescription: orDefault(text(m, "partDescription", "description", "descricao"), part.Description),
		BaseColor:       text(m, "baseColor", "mainColor", "color", "cor"),
	}
	if st.PartDescription == "" {
		st.PartDescription = "Pintura de " + part.Name
	}

	st.PaintsToUse = n.resolvePaints(paintEntries(m))
	if len(st.PaintsToUse) == 0 {
		st.PaintsToUse = []PaintRef{n.defaultPaint(part, st.BaseColor, color)}
	}
	if colormatch.IsHexLike(st.BaseColor) {
		h, _ := hexField(st.BaseColor)
		st.BaseColor = fmt.Sprintf("%s (%s)", colormatch.DescribeColor(h), h)
	}
	if st.BaseColor == "" {
		if color != nil {
			st.BaseColor = color.ColorName
		} else {
			st.BaseColor = st.PaintsToUse[0].Name
		}
	}

	st.PaintMix = n.normalizeMix(field(m, "paintMix", "mix", "mixRecipe"), st.BaseColor)
	if st.PaintMix == nil && color != nil && color.NeedsMixing && color.MixRecipe != nil {
		mix := *color.MixRecipe
		mix.Components = append([]MixComponent(nil), color.MixRecipe.Components...)
		st.PaintMix = &mix
	}

	tech, overridden := n.resolveTechnique(part.Name, text(m, "technique", "tecnica"))
	st.Technique = tech
	defTool, defDetails := toolFor(part.Name, tech)
	st.Tool, st.ToolDetails = defTool, defDetails
	if !overridden {
		st.Tool = orDefault(text(m, "tool", "ferramenta"), defTool)
		st.ToolDetails = orDefault(text(m, "toolDetails", "brushSize", "details", "pincel"), defDetails)
	}

	st.Dilution = n.normalizeDilution(field(m, "dilution", "diluicao"), tech)

	st.ImageRegions = normalizeRects(field(m, "imageRegions", "regions", "region"))
	if len(st.ImageRegions) == 0 {
		st.ImageRegions = append([]RegionRect{}, part.Regions...)
	}

	st.Tips = stringList(field(m, "tips", "dicas"))
	if len(st.Tips) == 0 {
		st.Tips = []string{genericTip}
	}
	st.Warnings = stringList(field(m, "warnings", "avisos"))
	return st
}

// defaultPaint picks a paint for a step the model left without one: the
// base colour name, the part's identified colour, colour words in the part
// name, then the first inventory paint.
func (n *Normalizer) defaultPaint(part Part, baseColor string, color *IdentifiedColor) PaintRef {
	withBase := func(r PaintRef) PaintRef {
		r.Purpose = PurposeBase
		return r
	}
	if baseColor != "" {
		if p, ok := n.findPaint(baseColor); ok {
			return withBase(refFromPaint(p))
		}
	}
	var hexes []string
	if color != nil {
		if color.MatchedPaint != nil {
			return withBase(*color.MatchedPaint)
		}
		hexes = append(hexes, color.Hex)
	}
	for _, c := range part.Colors {
		if h, ok := hexField(c); ok {
			hexes = append(hexes, h)
		}
	}
	if h, ok := colormatch.HexForName(part.Name + " " + baseColor); ok {
		hexes = append(hexes, h)
	}
	for _, h := range hexes {
		if p, _ := colormatch.ClosestPaint(h, n.inv.Paints); p != nil {
			return withBase(refFromPaint(*p))
		}
	}
	if len(n.inv.Paints) > 0 {
		log.Debug().Str("part", part.Name).Str("paint", n.inv.Paints[0].Name).Msg("No colour lead for part; using first inventory paint")
		return withBase(refFromPaint(n.inv.Paints[0]))
	}
	log.Warn().Str("part", part.Name).Str("baseColor", baseColor).Msg("Empty paint inventory; using placeholder paint")
	hex := colormatch.NeutralHex
	if len(hexes) > 0 {
		hex = hexes[0]
	}
	return PaintRef{Name: orDefault(baseColor, "Cor base"), Brand: PlaceholderBrand, Hex: hex, Purpose: PurposeBase}
}

// varnishStep normalizes the model's varnish step, or synthesizes one.
func (n *Normalizer) varnishStep(m map[string]any) ProjectStep {
	if m == nil {
		m = map[string]any{}
	}
	name := stepPartName(m)
	if !IsVarnishPart(name) {
		name = VarnishPartName
	}
	rule := ruleForPart(VarnishPartName)
	st := ProjectStep{
		PartName:        name,
		PartDescription: orDefault(text(m, "partDescription", "description", "descricao"), "Proteção final da pintura com verniz"),
		BaseColor:       "Transparente",
		PaintsToUse:     n.varnishPaints(),
		Technique:       TechVarnish,
		Tool:            orDefault(text(m, "tool", "ferramenta"), rule.tool),
		ToolDetails:     orDefault(text(m, "toolDetails", "brushSize", "details"), rule.details),
		Dilution:        n.normalizeDilution(field(m, "dilution", "diluicao"), TechVarnish),
		ImageRegions:    normalizeRects(field(m, "imageRegions", "regions")),
		Tips:            stringList(field(m, "tips", "dicas")),
		Warnings:        stringList(field(m, "warnings", "avisos")),
	}
	if len(st.Tips) == 0 {
		st.Tips = []string{defaultFixationTips[0]}
	}
	return st
}

// varnishPaints lists inventory varnishes, matte first.
func (n *Normalizer) varnishPaints() []PaintRef {
	var matte, other []PaintRef
	for _, v := range n.inv.Varnishes {
		ref := PaintRef{Name: orDefault(v.Name, "Verniz "+v.Finish), Brand: v.Brand, Hex: varnishHex}
		if v.Finish == inventory.FinishFosco {
			matte = append(matte, ref)
		} else {
			other = append(other, ref)
		}
	}
	all := append(matte, other...)
	if len(all) == 0 {
		return []PaintRef{{Name: "Verniz fosco", Brand: PlaceholderBrand, Hex: varnishHex, Purpose: PurposeBase}}
	}
	all[0].Purpose = PurposeBase
	if len(all) > 1 {
		all[1].Purpose = PurposeHighlight
		all = all[:2]
	}
	return all
}

// normalizeDilution accepts a bare string (used as ratio and description),
// a number, or an object, and fills gaps from the technique defaults.
func (n *Normalizer) normalizeDilution(v any, tech string) Dilution {
	d := defaultsByTechnique[tech]
	out := Dilution{Ratio: d.ratio, Description: d.description, ThinnerNote: n.thinnerNote()}

	switch t := v.(type) {
	case string, float64:
		s := asString(t)
		if s == "" {
			break
		}
		out.Description = s
		out.Ratio = s
		if r := ratioPattern.FindString(s); r != "" {
			out.Ratio = strings.ReplaceAll(r, " ", "")
		}
	case map[string]any:
		if r := text(t, "ratio", "proporcao"); r != "" {
			out.Ratio = r
		}
		if s := text(t, "description", "descricao"); s != "" {
			out.Description = s
		}
		if s := text(t, "thinnerNote", "thinner", "diluente"); s != "" {
			out.ThinnerNote = s
		}
	}
	return out
}

func (n *Normalizer) thinnerNote() string {
	if len(n.inv.Thinners) == 0 {
		return "Sem diluente no inventário: use água destilada."
	}
	t := n.inv.Thinners[0]
	return fmt.Sprintf("Dilua com %s %s (%s).", orDefault(t.Name, "diluente"), t.Brand, orDefault(t.Composition, inventory.CompositionOriginal))
}

// assemble fills the plan-level fields around normalized steps.
func (n *Normalizer) assemble(top map[string]any, steps []ProjectStep, pc PlanContext) *ProjectPlan {
	p := &ProjectPlan{
		ProjectName:      orDefault(pc.ProjectName, text(top, "projectName", "name")),
		Source:           orDefault(pc.Source, text(top, "source", "fonte")),
		IdentifiedColors: pc.Colors,
		Steps:            steps,
		FixationTips:     stringList(field(top, "fixationTips", "fixation")),
		Warnings:         stringList(field(top, "warnings", "avisos")),
		ReferenceImage:   pc.Image,
	}
	if p.IdentifiedColors == nil {
		if colors, err := n.NormalizeColors(field(top, "identifiedColors", "colors")); err == nil {
			p.IdentifiedColors = colors
		} else {
			p.IdentifiedColors = []IdentifiedColor{}
		}
	}
	if len(p.FixationTips) == 0 {
		p.FixationTips = append([]string(nil), defaultFixationTips...)
	}
	Renumber(p)
	p.PaintsToUse, p.RequiredMixes = collectPaints(p)

	var missing []string
	for _, ref := range p.PaintsToUse {
		if ref.Brand == PlaceholderBrand {
			missing = append(missing, ref.Name)
		}
	}
	if len(missing) > 0 {
		p.Warnings = append(p.Warnings, "Tintas sugeridas que não estão no inventário: "+strings.Join(missing, ", ")+".")
	}
	return p
}

// Renumber makes step numbers run densely from 1 in slice order.
func Renumber(p *ProjectPlan) {
	for i := range p.Steps {
		p.Steps[i].StepNumber = i + 1
	}
}

// collectPaints returns the de-duplicated union of paints used by steps and
// mixes, and the distinct mixes of steps and identified colours.
func collectPaints(p *ProjectPlan) ([]PaintRef, []PaintMix) {
	paints := []PaintRef{}
	mixes := []PaintMix{}
	seenPaint := map[string]bool{}
	addPaint := func(r PaintRef) {
		key := colormatch.Fold(r.Brand + "|" + r.Name)
		if !seenPaint[key] {
			seenPaint[key] = true
			r.Purpose = ""
			paints = append(paints, r)
		}
	}
	seenMix := map[string]bool{}
	addMix := func(m *PaintMix) {
		if m == nil {
			return
		}
		key := colormatch.Fold(m.TargetColor) + "|" + m.TargetHex
		if seenMix[key] {
			return
		}
		seenMix[key] = true
		mixes = append(mixes, *m)
		for _, c := range m.Components {
			addPaint(PaintRef{Name: c.Paint, Brand: c.Brand, Hex: c.Hex})
		}
	}

	for _, st := range p.Steps {
		if st.Technique == TechVarnish {
			continue
		}
		for _, r := range st.PaintsToUse {
			addPaint(r)
		}
		addMix(st.PaintMix)
	}
	for _, c := range p.IdentifiedColors {
		if c.NeedsMixing {
			addMix(c.MixRecipe)
		}
	}
	return paints, mixes
}
