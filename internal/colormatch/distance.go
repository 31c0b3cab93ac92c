package colormatch

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/fpang/minipaint/internal/inventory"
)

// DefaultThreshold is the "close enough" distance: 15% of the maximum
// possible distance between two colours.
const DefaultThreshold = 0.15

// Perceptual luminance weights (ITU-R BT.601) applied per channel.
const (
	weightR = 0.299
	weightG = 0.587
	weightB = 0.114
)

// Distance returns the luminance-weighted Euclidean distance between two
// hex colours, normalized to [0,1] (0 identical, 1 black vs white). Invalid
// input is treated as infinitely far away.
func Distance(a, b string) float64 {
	ca, okA := parse(a)
	cb, okB := parse(b)
	if !okA || !okB {
		return math.Inf(1)
	}
	return distance(ca, cb)
}

func distance(a, b colorful.Color) float64 {
	dr := a.R - b.R
	dg := a.G - b.G
	db := a.B - b.B
	return math.Sqrt(weightR*dr*dr + weightG*dg*dg + weightB*db*db)
}

func parse(hex string) (colorful.Color, bool) {
	norm, err := NormalizeHex(hex)
	if err != nil {
		return colorful.Color{}, false
	}
	c, err := colorful.Hex(norm)
	if err != nil {
		return colorful.Color{}, false
	}
	return c, true
}

// Matcher resolves colours to inventory paints using a configurable
// closeness threshold.
type Matcher struct {
	Threshold float64
}

// NewMatcher returns a Matcher; a non-positive threshold selects
// DefaultThreshold.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Matcher{Threshold: threshold}
}

var defaultMatcher = NewMatcher(DefaultThreshold)

// ClosestPaint returns a copy of the paint nearest to hex and its distance.
// Paints with unusable hex values are skipped. Nil when nothing qualifies.
func ClosestPaint(hex string, paints []inventory.Paint) (*inventory.Paint, float64) {
	target, ok := parse(hex)
	if !ok {
		return nil, math.Inf(1)
	}
	best := -1
	bestDist := math.Inf(1)
	for i, p := range paints {
		c, ok := parse(p.Hex)
		if !ok {
			continue
		}
		if d := distance(target, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return nil, bestDist
	}
	p := paints[best]
	return &p, bestDist
}

// Match returns the closest paint when it lies within the threshold, nil
// otherwise (meaning the caller should build a mix instead).
func (m *Matcher) Match(hex string, paints []inventory.Paint) *inventory.Paint {
	p, d := ClosestPaint(hex, paints)
	if p == nil || d > m.Threshold {
		return nil
	}
	return p
}

// MatchPaintToColor is Match with DefaultThreshold.
func MatchPaintToColor(hex string, paints []inventory.Paint) *inventory.Paint {
	return defaultMatcher.Match(hex, paints)
}
