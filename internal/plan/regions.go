package plan

import (
	"math"
	"strings"

	"github.com/fpang/minipaint/internal/colormatch"
)

// normalizeRect coerces a region object into the unit square. Values that
// look like percentages (any coordinate above 1) are scaled down by 100.
// ok is false for missing fields or a zero-area result.
func normalizeRect(v any) (RegionRect, bool) {
	m := asMap(v)
	if m == nil {
		return RegionRect{}, false
	}
	x, okX := asFloat(field(m, "x", "left"))
	y, okY := asFloat(field(m, "y", "top"))
	w, okW := asFloat(field(m, "width", "w"))
	h, okH := asFloat(field(m, "height", "h"))
	if !okX || !okY || !okW || !okH {
		return RegionRect{}, false
	}
	if x > 1 || y > 1 || w > 1 || h > 1 {
		x, y, w, h = x/100, y/100, w/100, h/100
	}
	r := RegionRect{X: clamp01(x), Y: clamp01(y)}
	r.Width = math.Min(clamp01(w), 1-r.X)
	r.Height = math.Min(clamp01(h), 1-r.Y)
	if r.Width <= 0 || r.Height <= 0 {
		return RegionRect{}, false
	}
	return r, true
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}

// normalizeRects accepts a single region object or a list of them.
func normalizeRects(v any) []RegionRect {
	out := []RegionRect{}
	for _, item := range asList(v) {
		if r, ok := normalizeRect(item); ok {
			out = append(out, r)
		}
	}
	return out
}

// SetRegions replaces the item's regions and keeps Confirmed in sync.
func (r *RegionItem) SetRegions(rects []RegionRect) {
	r.Regions = append([]RegionRect(nil), rects...)
	r.Confirmed = len(r.Regions) > 0
}

// Confirm accepts the pending suggestion as the item's region, if there is
// one and the user has not drawn regions already.
func (r *RegionItem) Confirm() {
	if len(r.Regions) == 0 && r.SuggestedRegion != nil {
		r.Regions = []RegionRect{*r.SuggestedRegion}
	}
	r.SuggestedRegion = nil
	r.Confirmed = len(r.Regions) > 0
}

// NormalizeRegionItems trims names, drops nameless and duplicate items
// (first wins, case-insensitively) and re-derives Confirmed from Regions.
func NormalizeRegionItems(items []RegionItem) []RegionItem {
	out := make([]RegionItem, 0, len(items))
	seen := map[string]bool{}
	for _, it := range items {
		it.PartName = strings.TrimSpace(it.PartName)
		key := colormatch.Fold(it.PartName)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		var rects []RegionRect
		for _, r := range it.Regions {
			if rr, ok := normalizeRect(map[string]any{"x": r.X, "y": r.Y, "width": r.Width, "height": r.Height}); ok {
				rects = append(rects, rr)
			}
		}
		it.SetRegions(rects)
		out = append(out, it)
	}
	return out
}

// ApplyUserRegions overwrites each step's image regions with the regions of
// the confirmed user item of the same part name (case-insensitive). User
// input always wins over regions proposed by the model.
func ApplyUserRegions(p *ProjectPlan, items []RegionItem) {
	if p == nil {
		return
	}
	byName := map[string][]RegionRect{}
	for _, it := range items {
		if !it.Confirmed || len(it.Regions) == 0 {
			continue
		}
		key := colormatch.Fold(strings.TrimSpace(it.PartName))
		if _, dup := byName[key]; !dup {
			byName[key] = it.Regions
		}
	}
	for i := range p.Steps {
		if rects, ok := byName[colormatch.Fold(strings.TrimSpace(p.Steps[i].PartName))]; ok {
			p.Steps[i].ImageRegions = append([]RegionRect(nil), rects...)
		}
	}
}

// MergeSuggestions folds model part suggestions into the user's region
// list. Existing parts (matched case-insensitively) keep their regions and
// only gain a suggestion when they have none; new parts are appended
// unconfirmed, carrying the suggested region.
func MergeSuggestions(items []RegionItem, suggestions []PartSuggestion) []RegionItem {
	out := append([]RegionItem(nil), items...)
	index := map[string]int{}
	for i, it := range out {
		index[colormatch.Fold(strings.TrimSpace(it.PartName))] = i
	}
	for _, s := range suggestions {
		name := strings.TrimSpace(s.Name)
		key := colormatch.Fold(name)
		if key == "" {
			continue
		}
		var region *RegionRect
		if s.Region != nil {
			r := *s.Region
			region = &r
		}
		if i, ok := index[key]; ok {
			if !out[i].Confirmed && out[i].SuggestedRegion == nil {
				out[i].SuggestedRegion = region
			}
			continue
		}
		index[key] = len(out)
		out = append(out, RegionItem{PartName: name, Regions: []RegionRect{}, SuggestedRegion: region})
	}
	return out
}
