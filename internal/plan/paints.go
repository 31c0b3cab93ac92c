package plan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fpang/minipaint/internal/colormatch"
	"github.com/fpang/minipaint/internal/inventory"
	"github.com/rs/zerolog/log"
)

// PlaceholderBrand marks a paint reference that is not in the inventory.
const PlaceholderBrand = "Genérica"

// keywordMatchLimit bounds how far a colour-keyword guess may be from the
// paint it resolves to.
const keywordMatchLimit = 0.3

var stopwords = map[string]bool{
	"de": true, "da": true, "do": true, "das": true, "dos": true, "e": true,
	"the": true, "of": true, "and": true, "tinta": true, "paint": true,
	"cor": true, "color": true, "colour": true, "acrilica": true, "acrylic": true,
}

var purposeSynonyms = []struct {
	prefix  string
	purpose string
}{
	{"base", PurposeBase}, {"principal", PurposeBase}, {"main", PurposeBase}, {"primary", PurposeBase},
	{"shadow", PurposeShadow}, {"sombra", PurposeShadow}, {"escur", PurposeShadow},
	{"highlight", PurposeHighlight}, {"luz", PurposeHighlight}, {"luzes", PurposeHighlight},
	{"realce", PurposeHighlight}, {"light", PurposeHighlight}, {"clare", PurposeHighlight},
	{"wash", PurposeWash}, {"lavad", PurposeWash}, {"lavagem", PurposeWash},
	{"glaz", PurposeGlaze}, {"veladura", PurposeGlaze}, {"filtro", PurposeGlaze}, {"filter", PurposeGlaze},
}

func canonicalPurpose(raw string) string {
	t := strings.TrimSpace(colormatch.Fold(raw))
	for _, s := range purposeSynonyms {
		if strings.HasPrefix(t, s.prefix) {
			return s.purpose
		}
	}
	return ""
}

func refFromPaint(p inventory.Paint) PaintRef {
	return PaintRef{Name: p.Name, Brand: p.Brand, Hex: colormatch.CoerceHex(p.Hex, colormatch.NeutralHex)}
}

// findPaint resolves a free-text paint name against the inventory using,
// in order: exact name, substring either way, token overlap, colour
// keyword. The first layer that matches wins.
func (n *Normalizer) findPaint(name string) (inventory.Paint, bool) {
	paints := n.inv.Paints
	q := strings.TrimSpace(colormatch.Fold(name))
	if q == "" || len(paints) == 0 {
		return inventory.Paint{}, false
	}

	for _, p := range paints {
		pn := colormatch.Fold(strings.TrimSpace(p.Name))
		if pn == q || colormatch.Fold(p.Brand+" "+p.Name) == q {
			return p, true
		}
	}

	best, bestDiff := -1, 0
	for i, p := range paints {
		pn := colormatch.Fold(strings.TrimSpace(p.Name))
		if len(pn) < 3 || len(q) < 3 {
			continue
		}
		if strings.Contains(pn, q) || strings.Contains(q, pn) {
			diff := len(pn) - len(q)
			if diff < 0 {
				diff = -diff
			}
			if best < 0 || diff < bestDiff {
				best, bestDiff = i, diff
			}
		}
	}
	if best >= 0 {
		return paints[best], true
	}

	qt := contentTokens(name)
	best, bestScore := -1, 0
	for i, p := range paints {
		score := overlap(qt, contentTokens(p.Name))
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 {
		return paints[best], true
	}

	if hex, ok := colormatch.HexForName(name); ok {
		if p, d := colormatch.ClosestPaint(hex, paints); p != nil && d <= keywordMatchLimit {
			return *p, true
		}
	}
	return inventory.Paint{}, false
}

func contentTokens(s string) []string {
	var out []string
	for _, t := range colormatch.Tokens(s) {
		if len(t) > 1 && !stopwords[t] {
			out = append(out, t)
		}
	}
	return out
}

func overlap(a, b []string) int {
	n := 0
	for _, x := range a {
		for _, y := range b {
			if x == y {
				n++
				break
			}
		}
	}
	return n
}

// resolveRef turns a paint entry (a bare name or an object) into a
// PaintRef. ok is false when the entry carries neither a name nor a colour.
func (n *Normalizer) resolveRef(v any) (PaintRef, bool) {
	var name, brand, hex, purpose string
	switch t := v.(type) {
	case string:
		name = strings.TrimSpace(t)
	case map[string]any:
		name = text(t, "name", "paint", "paintName", "nome")
		brand = text(t, "brand", "marca")
		hex = text(t, "hex", "color", "cor")
		purpose = text(t, "purpose", "use", "role", "uso", "funcao")
	default:
		return PaintRef{}, false
	}
	purpose = canonicalPurpose(purpose)

	if colormatch.IsHexLike(name) {
		if hex == "" || !colormatch.IsHexLike(hex) {
			hex = name
			if !strings.HasPrefix(hex, "#") {
				hex = "#" + hex
			}
		}
		name = ""
	}
	if name == "" {
		h, err := colormatch.NormalizeHex(hex)
		if err != nil {
			return PaintRef{}, false
		}
		if p, _ := colormatch.ClosestPaint(h, n.inv.Paints); p != nil {
			ref := refFromPaint(*p)
			ref.Purpose = purpose
			return ref, true
		}
		log.Debug().Str("hex", h).Msg("No inventory paint for hex-only entry; using placeholder")
		return PaintRef{Name: colormatch.DescribeColor(h), Brand: PlaceholderBrand, Hex: h, Purpose: purpose}, true
	}

	if p, ok := n.findPaint(name); ok {
		ref := refFromPaint(p)
		ref.Purpose = purpose
		return ref, true
	}
	log.Debug().Str("paint", name).Str("brand", brand).Msg("Paint not in inventory; keeping as placeholder")
	return PaintRef{
		Name:    name,
		Brand:   orDefault(brand, PlaceholderBrand),
		Hex:     colormatch.CoerceHex(hex, colormatch.NeutralHex),
		Purpose: purpose,
	}, true
}

// resolvePaints builds a step's paint list: entries are resolved, exact
// duplicates dropped, and purposes made unique (entries without a free
// purpose get the next unused one; extras beyond five are dropped).
func (n *Normalizer) resolvePaints(entries []any) []PaintRef {
	var refs []PaintRef
	seen := map[string]bool{}
	for _, e := range entries {
		ref, ok := n.resolveRef(e)
		if !ok {
			continue
		}
		key := colormatch.Fold(ref.Brand + "|" + ref.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, ref)
	}

	used := map[string]bool{}
	out := []PaintRef{}
	var pending []PaintRef
	for _, r := range refs {
		if r.Purpose != "" && !used[r.Purpose] {
			used[r.Purpose] = true
			out = append(out, r)
			continue
		}
		pending = append(pending, r)
	}
	for _, r := range pending {
		r.Purpose = ""
		for _, p := range purposeOrder {
			if !used[p] {
				used[p] = true
				r.Purpose = p
				break
			}
		}
		if r.Purpose != "" {
			out = append(out, r)
		}
	}
	return out
}

// mixFromRecipe converts a synthesized recipe into a PaintMix.
func mixFromRecipe(r *colormatch.Recipe, targetName string) *PaintMix {
	if r == nil || len(r.Components) == 0 {
		return nil
	}
	mix := &PaintMix{
		TargetColor: orDefault(targetName, colormatch.DescribeColor(r.TargetHex)),
		TargetHex:   r.TargetHex,
	}
	for _, c := range r.Components {
		mix.Components = append(mix.Components, MixComponent{
			Paint: c.Paint.Name,
			Brand: c.Paint.Brand,
			Hex:   colormatch.CoerceHex(c.Paint.Hex, colormatch.NeutralHex),
			Ratio: c.Ratio,
		})
	}
	mix.Instructions = mixInstructions(mix)
	return mix
}

func mixInstructions(m *PaintMix) string {
	if len(m.Components) == 1 {
		c := m.Components[0]
		return fmt.Sprintf("Use %s (%s) como aproximação de %s; ajuste com glazes finos.", c.Paint, c.Brand, m.TargetColor)
	}
	parts := make([]string, 0, len(m.Components))
	for _, c := range m.Components {
		unit := "partes"
		if c.Ratio == 1 {
			unit = "parte"
		}
		parts = append(parts, fmt.Sprintf("%d %s de %s", c.Ratio, unit, c.Paint))
	}
	return fmt.Sprintf("Misture %s para obter %s.", strings.Join(parts, " com "), m.TargetColor)
}

var ratioInText = regexp.MustCompile(`\d+`)

// normalizeMix coerces a model-supplied mix. Components not found in the
// inventory are dropped; if none remain, a recipe is synthesized from the
// target colour. Nil unless the result has a target and a component.
func (n *Normalizer) normalizeMix(v any, fallbackTarget string) *PaintMix {
	switch t := v.(type) {
	case string:
		return n.mixFromText(t, fallbackTarget)
	case map[string]any:
		return n.mixFromObject(t, fallbackTarget)
	default:
		return nil
	}
}

func (n *Normalizer) mixFromObject(m map[string]any, fallbackTarget string) *PaintMix {
	target := text(m, "targetColor", "target", "color", "name")
	targetHex := ""
	if h, err := colormatch.NormalizeHex(text(m, "targetHex", "hex")); err == nil {
		targetHex = h
	}
	if target == "" && targetHex != "" {
		target = colormatch.DescribeColor(targetHex)
	}
	if target == "" {
		target = fallbackTarget
	}
	if strings.TrimSpace(target) == "" {
		return nil
	}
	if targetHex == "" {
		targetHex = colormatch.HexForNameOrNeutral(target)
	}

	mix := &PaintMix{TargetColor: target, TargetHex: targetHex, Instructions: text(m, "instructions", "instrucoes", "description")}
	for _, c := range asList(field(m, "components", "paints", "ingredients")) {
		var name string
		ratio := 1
		switch ct := c.(type) {
		case string:
			name = ct
		case map[string]any:
			name = text(ct, "paint", "name", "paintName")
			if r, ok := asInt(field(ct, "ratio", "parts", "proportion")); ok && r > 0 {
				ratio = r
			} else if s := ratioInText.FindString(text(ct, "ratio", "parts", "proportion")); s != "" {
				if r, ok := asInt(s); ok && r > 0 {
					ratio = r
				}
			}
		}
		p, ok := n.findPaint(name)
		if !ok {
			log.Debug().Str("target", target).Str("paint", name).Msg("Dropping mix component not in inventory")
			continue
		}
		mix.Components = append(mix.Components, MixComponent{
			Paint: p.Name, Brand: p.Brand, Hex: colormatch.CoerceHex(p.Hex, colormatch.NeutralHex), Ratio: ratio,
		})
	}
	if len(mix.Components) == 0 {
		log.Debug().Str("target", target).Str("targetHex", targetHex).Msg("No usable mix components; synthesizing recipe")
		return mixFromRecipe(colormatch.SuggestMix(targetHex, n.inv.Paints), target)
	}
	if mix.Instructions == "" {
		mix.Instructions = mixInstructions(mix)
	}
	return mix
}

// mixFromText handles the legacy shape where the mix is prose such as
// "2 partes de Azul Escuro com 1 parte de Preto".
func (n *Normalizer) mixFromText(s, target string) *PaintMix {
	s = strings.TrimSpace(s)
	folded := colormatch.Fold(s)
	switch folded {
	case "", "null", "none", "nenhuma", "n/a", "-":
		return nil
	}
	if strings.TrimSpace(target) == "" {
		return nil
	}
	mix := &PaintMix{TargetColor: target, TargetHex: colormatch.HexForNameOrNeutral(target), Instructions: s}
	for _, p := range n.inv.Paints {
		pn := colormatch.Fold(strings.TrimSpace(p.Name))
		if len(pn) >= 3 && strings.Contains(folded, pn) {
			mix.Components = append(mix.Components, MixComponent{
				Paint: p.Name, Brand: p.Brand, Hex: colormatch.CoerceHex(p.Hex, colormatch.NeutralHex), Ratio: 1,
			})
		}
	}
	if len(mix.Components) == 0 {
		return nil
	}
	return mix
}
