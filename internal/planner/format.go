package planner

import (
	"fmt"
	"strings"

	"github.com/fpang/minipaint/internal/assets"
	"github.com/fpang/minipaint/internal/colormatch"
	"github.com/fpang/minipaint/internal/inventory"
	"github.com/fpang/minipaint/internal/plan"
)

const emptyInventory = "(inventário vazio: sugira tintas comuns de qualquer marca)"

// formatInventory lists the paints one per line with a coarse colour name,
// which helps models that misread hex codes.
func formatInventory(inv inventory.Inventory) string {
	if len(inv.Paints) == 0 {
		return emptyInventory
	}
	var b strings.Builder
	for _, p := range inv.Paints {
		fmt.Fprintf(&b, "- %s | %s | %s (%s)\n", p.Name, p.Brand, p.Hex, colormatch.DescribeColor(p.Hex))
	}
	for _, w := range inv.Washes {
		fmt.Fprintf(&b, "- %s | %s | %s (wash)\n", orName(w.Name, w.Composition), w.Brand, orName(w.Hex, colormatch.NeutralHex))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatThinners(inv inventory.Inventory) string {
	var out []string
	for _, t := range inv.Thinners {
		out = append(out, fmt.Sprintf("%s (%s)", strings.TrimSpace(t.Brand+" "+t.Name), t.Composition))
	}
	return strings.Join(out, ", ")
}

func formatVarnishes(inv inventory.Inventory) string {
	var out []string
	for _, v := range inv.Varnishes {
		out = append(out, fmt.Sprintf("%s (%s)", strings.TrimSpace(v.Brand+" "+v.Name), v.Finish))
	}
	return strings.Join(out, ", ")
}

// formatColors renders identified colours with their paint or mix.
func formatColors(colors []plan.IdentifiedColor) string {
	var b strings.Builder
	for _, c := range colors {
		fmt.Fprintf(&b, "- %s (%s) em %s: ", c.ColorName, c.Hex, c.Location)
		switch {
		case c.MatchedPaint != nil:
			fmt.Fprintf(&b, "tinta %s (%s)", c.MatchedPaint.Name, c.MatchedPaint.Brand)
		case c.MixRecipe != nil:
			var parts []string
			for _, comp := range c.MixRecipe.Components {
				parts = append(parts, fmt.Sprintf("%d %s", comp.Ratio, comp.Paint))
			}
			fmt.Fprintf(&b, "mistura %s", strings.Join(parts, " + "))
		default:
			b.WriteString("sem tinta")
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatRegions(rects []plan.RegionRect) string {
	var out []string
	for _, r := range rects {
		out = append(out, fmt.Sprintf("x=%.2f y=%.2f w=%.2f h=%.2f", r.X, r.Y, r.Width, r.Height))
	}
	return strings.Join(out, "; ")
}

// regionPrompts lists user parts for the colour phase.
func regionPrompts(parts []plan.Part) []assets.PartPrompt {
	out := make([]assets.PartPrompt, 0, len(parts))
	for _, p := range parts {
		out = append(out, assets.PartPrompt{Name: p.Name, Regions: formatRegions(p.Regions)})
	}
	return out
}

// stepPrompts lists parts for the steps phase, hinting each with the
// colours observed on it.
func stepPrompts(parts []plan.Part, colors []plan.IdentifiedColor) []assets.PartPrompt {
	out := make([]assets.PartPrompt, 0, len(parts))
	for _, p := range parts {
		var hints []string
		pf := colormatch.Fold(p.Name)
		for _, c := range colors {
			lf := colormatch.Fold(c.Location)
			if lf != "" && (strings.Contains(lf, pf) || strings.Contains(pf, lf)) {
				hints = append(hints, fmt.Sprintf("%s %s", c.ColorName, c.Hex))
			}
		}
		if len(hints) == 0 {
			hints = append(hints, p.Colors...)
		}
		out = append(out, assets.PartPrompt{Name: p.Name, Hint: strings.Join(hints, ", ")})
	}
	return out
}

func orName(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
