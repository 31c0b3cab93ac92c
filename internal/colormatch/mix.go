package colormatch

import (
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/fpang/minipaint/internal/inventory"
)

// maxMixCandidates bounds the pair search; the nearest paints plus the
// lightest and darkest are considered.
const maxMixCandidates = 12

const maxRatioPart = 4

// Component is one paint of a Recipe with its integer share.
type Component struct {
	Paint inventory.Paint
	Ratio int
}

// Recipe approximates a target colour from inventory paints.
type Recipe struct {
	TargetHex  string
	Components []Component
	ResultHex  string  // colour the blend is expected to produce
	Distance   float64 // between ResultHex and TargetHex
}

type candidate struct {
	paint inventory.Paint
	color colorful.Color
	dist  float64
}

// SuggestMix searches single paints and two-paint blends (ratios up to 4:4,
// blended in linear RGB) for the closest approximation of targetHex. Every
// component is a real inventory paint. Nil when the target or every paint
// hex is unusable.
func SuggestMix(targetHex string, paints []inventory.Paint) *Recipe {
	target, ok := parse(targetHex)
	if !ok {
		return nil
	}

	cands := mixCandidates(target, paints)
	if len(cands) == 0 {
		return nil
	}

	best := &Recipe{
		Components: []Component{{Paint: cands[0].paint, Ratio: 1}},
		ResultHex:  cands[0].color.Hex(),
		Distance:   cands[0].dist,
	}

	for i := 0; i < len(cands); i++ {
		for j := i + 1; j < len(cands); j++ {
			for a := 1; a <= maxRatioPart; a++ {
				for b := 1; b <= maxRatioPart; b++ {
					if gcd(a, b) != 1 {
						continue
					}
					t := float64(b) / float64(a+b)
					blend := cands[i].color.BlendLinearRgb(cands[j].color, t).Clamped()
					// Require a real improvement so a one-paint answer is kept
					// when mixing barely helps.
					if d := distance(target, blend); d < best.Distance-0.005 {
						best = &Recipe{
							Components: []Component{
								{Paint: cands[i].paint, Ratio: a},
								{Paint: cands[j].paint, Ratio: b},
							},
							ResultHex: blend.Hex(),
							Distance:  d,
						}
					}
				}
			}
		}
	}

	best.TargetHex = upper(target.Hex())
	best.ResultHex = upper(best.ResultHex)
	return best
}

func mixCandidates(target colorful.Color, paints []inventory.Paint) []candidate {
	var all []candidate
	for _, p := range paints {
		c, ok := parse(p.Hex)
		if !ok {
			continue
		}
		all = append(all, candidate{paint: p, color: c, dist: distance(target, c)})
	}
	if len(all) == 0 {
		return nil
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].dist < all[j].dist })

	if len(all) <= maxMixCandidates {
		return all
	}
	picked := append([]candidate(nil), all[:maxMixCandidates]...)
	lightest, darkest := all[0], all[0]
	for _, c := range all {
		_, _, l := c.color.Hsl()
		_, _, ll := lightest.color.Hsl()
		_, _, dl := darkest.color.Hsl()
		if l > ll {
			lightest = c
		}
		if l < dl {
			darkest = c
		}
	}
	for _, extra := range []candidate{lightest, darkest} {
		dup := false
		for _, c := range picked {
			if c.paint == extra.paint {
				dup = true
				break
			}
		}
		if !dup {
			picked = append(picked, extra)
		}
	}
	return picked
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func upper(hex string) string {
	if h, err := NormalizeHex(hex); err == nil {
		return h
	}
	return hex
}
