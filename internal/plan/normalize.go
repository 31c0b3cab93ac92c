package plan

import (
	"fmt"
	"strings"

	"github.com/fpang/minipaint/internal/colormatch"
	"github.com/fpang/minipaint/internal/inventory"
	"github.com/rs/zerolog/log"
)

// MaxParts caps part segmentation, backfill included.
const MaxParts = 15

const genericTip = "Deixe cada camada secar completamente antes de aplicar a próxima."

var defaultFixationTips = []string{
	"Aplique o verniz em camadas finas, em ambiente seco e sem poeira.",
	"Aguarde 24 horas de cura antes de manusear a miniatura.",
	"Use verniz fosco para tecidos e pele e brilhante apenas em gemas e olhos.",
}

// Normalizer coerces phase results for one generation against a fixed
// inventory snapshot. It carries the round-robin technique counter, so use
// one Normalizer per generation; it is not safe for concurrent use.
type Normalizer struct {
	inv     inventory.Inventory
	matcher *colormatch.Matcher
	rr      int
}

// NewNormalizer returns a Normalizer over inv. A nil matcher uses the
// default threshold.
func NewNormalizer(inv inventory.Inventory, matcher *colormatch.Matcher) *Normalizer {
	if matcher == nil {
		matcher = colormatch.NewMatcher(colormatch.DefaultThreshold)
	}
	return &Normalizer{inv: inv.Clone(), matcher: matcher}
}

// NormalizeColors coerces a colour-identification result: an object with a
// "colors" array, or the array itself. Matching against the inventory is
// decided by colour distance, not by the model's claim: a close paint
// becomes MatchedPaint, otherwise a mix recipe is kept (when it references
// inventory paints) or synthesized.
func (n *Normalizer) NormalizeColors(raw any) ([]IdentifiedColor, error) {
	list := asList(raw)
	if m := asMap(raw); m != nil {
		list = asList(field(m, "colors", "identifiedColors", "cores"))
	}
	if len(list) == 0 {
		return nil, &NormalizationError{Phase: PhaseColors, Reason: "no colors in " + describeValue(raw)}
	}

	out := []IdentifiedColor{}
	for _, item := range list {
		c, ok := n.normalizeColor(item)
		if ok {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, &NormalizationError{Phase: PhaseColors, Reason: "no usable color entries"}
	}
	return out, nil
}

func (n *Normalizer) normalizeColor(item any) (IdentifiedColor, bool) {
	var m map[string]any
	switch t := item.(type) {
	case map[string]any:
		m = t
	case string:
		m = map[string]any{"colorName": t}
	default:
		log.Debug().Str("entry", describeValue(item)).Msg("Dropping non-object color entry")
		return IdentifiedColor{}, false
	}

	c := IdentifiedColor{
		ColorName: text(m, "colorName", "name", "color", "cor"),
		Location:  text(m, "location", "part", "partName", "area", "local"),
	}
	if h, ok := hexField(text(m, "hex", "hexCode", "colorHex")); ok {
		c.Hex = h
	} else if h, ok := hexField(c.ColorName); ok {
		c.Hex = h
	} else if h, ok := colormatch.HexForName(c.ColorName); ok {
		c.Hex = h
	} else {
		log.Debug().Str("color", c.ColorName).Str("location", c.Location).Msg("Dropping color entry without usable hex")
		return IdentifiedColor{}, false
	}
	if c.ColorName == "" || colormatch.IsHexLike(c.ColorName) {
		c.ColorName = colormatch.DescribeColor(c.Hex)
	}
	if c.Location == "" {
		c.Location = "geral"
	}

	if p := n.matcher.Match(c.Hex, n.inv.Paints); p != nil {
		ref := refFromPaint(*p)
		c.MatchedPaint = &ref
		return c, true
	}

	if len(n.inv.Paints) == 0 {
		// Nothing to mix from: carry the model's paint (or the colour itself)
		// as an out-of-inventory reference.
		ref, ok := n.resolveRef(field(m, "matchedPaint", "paint"))
		if !ok {
			ref = PaintRef{Name: c.ColorName, Brand: PlaceholderBrand, Hex: c.Hex}
		}
		c.MatchedPaint = &ref
		return c, true
	}

	c.NeedsMixing = true
	if mv := field(m, "mixRecipe", "mix", "paintMix"); mv != nil {
		if mm := asMap(mv); mm != nil {
			if mm["targetHex"] == nil && mm["hex"] == nil {
				mm = cloneMap(mm)
				mm["targetHex"] = c.Hex
			}
			mv = mm
		}
		c.MixRecipe = n.normalizeMix(mv, c.ColorName)
	}
	if c.MixRecipe == nil {
		c.MixRecipe = mixFromRecipe(colormatch.SuggestMix(c.Hex, n.inv.Paints), c.ColorName)
	}
	return c, c.MixRecipe != nil
}

// hexField reads a hex colour from a field that may omit the '#' or wrap
// the code in prose.
func hexField(s string) (string, bool) {
	if colormatch.IsHexLike(s) {
		if !strings.HasPrefix(s, "#") {
			s = "#" + s
		}
		h, err := colormatch.NormalizeHex(s)
		return h, err == nil
	}
	return colormatch.ExtractHex(s)
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// NormalizeParts coerces a part-segmentation result: an object with a
// "parts" array, or the array itself. An empty list is returned without
// error so callers can backfill; a missing array is an error.
func (n *Normalizer) NormalizeParts(raw any) ([]Part, error) {
	var list []any
	switch t := raw.(type) {
	case []any:
		list = t
	case map[string]any:
		v := field(t, "parts", "partes", "regions")
		if v == nil {
			return nil, &NormalizationError{Phase: PhaseParts, Reason: "missing parts array"}
		}
		list = asList(v)
	default:
		return nil, &NormalizationError{Phase: PhaseParts, Reason: "unexpected " + describeValue(raw)}
	}

	out := []Part{}
	seen := map[string]bool{}
	for _, item := range list {
		var p Part
		switch t := item.(type) {
		case string:
			p.Name = strings.TrimSpace(t)
		case map[string]any:
			p.Name = text(t, "name", "partName", "part", "nome")
			p.Description = text(t, "description", "descricao", "partDescription")
			p.Regions = normalizeRects(field(t, "regions", "region", "imageRegions", "bbox"))
			for _, c := range asList(field(t, "colors", "cores")) {
				if s := asString(c); s != "" {
					p.Colors = append(p.Colors, s)
				}
			}
			if s := asString(field(t, "colors", "color", "cor")); s != "" {
				p.Colors = append(p.Colors, s)
			}
		}
		key := colormatch.Fold(p.Name)
		if key == "" || seen[key] || IsVarnishPart(p.Name) {
			continue
		}
		seen[key] = true
		if p.Regions == nil {
			p.Regions = []RegionRect{}
		}
		out = append(out, p)
		if len(out) == MaxParts {
			break
		}
	}
	return out, nil
}

// BackfillParts adds one synthetic part per identified colour whose
// location is not covered by an existing part, when segmentation returned
// fewer parts than half the colour count. The result never exceeds
// MaxParts.
func BackfillParts(parts []Part, colors []IdentifiedColor) []Part {
	out := append([]Part(nil), parts...)
	if len(out)*2 >= len(colors) {
		return out
	}
	covered := func(name string) bool {
		f := colormatch.Fold(name)
		for _, p := range out {
			pf := colormatch.Fold(p.Name)
			if strings.Contains(pf, f) || strings.Contains(f, pf) {
				return true
			}
		}
		return false
	}
	for _, c := range colors {
		if len(out) >= MaxParts {
			break
		}
		name := c.Location
		if name == "" || colormatch.Fold(name) == "geral" {
			name = c.ColorName
		}
		if covered(name) {
			continue
		}
		out = append(out, Part{
			Name:        name,
			Description: fmt.Sprintf("Área em %s (%s)", c.ColorName, c.Hex),
			Regions:     []RegionRect{},
			Colors:      []string{c.Hex},
		})
	}
	return out
}
