// Package plan defines the painting-plan data model and turns loosely typed
// model output into it. Every normalizer accepts the generic value produced
// by jsonutil.ParseLenient, coerces it into the strict types below and
// reports shape failures as *NormalizationError. Normalizers never panic.
package plan

// RegionRect is a rectangle relative to the unit square of the reference
// image; all fields lie in [0,1].
type RegionRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RegionItem ties a physical part of the miniature to image regions.
// Confirmed is true exactly when Regions is non-empty. SuggestedRegion holds
// a model proposal awaiting user confirmation.
type RegionItem struct {
	PartName        string       `json:"partName"`
	Regions         []RegionRect `json:"regions"`
	Confirmed       bool         `json:"confirmed"`
	SuggestedRegion *RegionRect  `json:"suggestedRegion,omitempty"`
}

// Paint purposes within a step. Each appears at most once per step.
const (
	PurposeBase      = "base"
	PurposeShadow    = "shadow"
	PurposeHighlight = "highlight"
	PurposeWash      = "wash"
	PurposeGlaze     = "glaze"
)

var purposeOrder = []string{PurposeBase, PurposeShadow, PurposeHighlight, PurposeWash, PurposeGlaze}

type PaintRef struct {
	Name    string `json:"name"`
	Brand   string `json:"brand"`
	Hex     string `json:"hex"`
	Purpose string `json:"purpose,omitempty"`
}

type MixComponent struct {
	Paint string `json:"paint"`
	Brand string `json:"brand"`
	Hex   string `json:"hex"`
	Ratio int    `json:"ratio"`
}

// PaintMix is a ratio-based blend of inventory paints approximating a
// colour missing from the inventory.
type PaintMix struct {
	TargetColor  string         `json:"targetColor"`
	TargetHex    string         `json:"targetHex"`
	Components   []MixComponent `json:"components"`
	Instructions string         `json:"instructions"`
}

// IdentifiedColor is one distinct colour observed on the reference image.
// NeedsMixing implies MixRecipe != nil; !NeedsMixing implies
// MatchedPaint != nil.
type IdentifiedColor struct {
	ColorName    string    `json:"colorName"`
	Hex          string    `json:"hex"`
	Location     string    `json:"location"`
	MatchedPaint *PaintRef `json:"matchedPaint,omitempty"`
	NeedsMixing  bool      `json:"needsMixing"`
	MixRecipe    *PaintMix `json:"mixRecipe,omitempty"`
}

type Dilution struct {
	Ratio       string `json:"ratio"`
	Description string `json:"description"`
	ThinnerNote string `json:"thinnerNote"`
}

type ProjectStep struct {
	StepNumber      int          `json:"stepNumber"`
	PartName        string       `json:"partName"`
	PartDescription string       `json:"partDescription"`
	BaseColor       string       `json:"baseColor"`
	PaintsToUse     []PaintRef   `json:"paintsToUse"`
	PaintMix        *PaintMix    `json:"paintMix"`
	Technique       string       `json:"technique"`
	Tool            string       `json:"tool"`
	ToolDetails     string       `json:"toolDetails"`
	Dilution        Dilution     `json:"dilution"`
	ImageRegions    []RegionRect `json:"imageRegions"`
	Tips            []string     `json:"tips"`
	Warnings        []string     `json:"warnings"`
}

// ReferenceImage is the caller's original image, base64 encoded.
type ReferenceImage struct {
	Data string `json:"data"`
	Type string `json:"type"`
}

// ProjectPlan is the terminal output of a generation. The last step is
// always the varnish step and step numbers run densely from 1.
type ProjectPlan struct {
	ProjectName      string            `json:"projectName"`
	Source           string            `json:"source"`
	IdentifiedColors []IdentifiedColor `json:"identifiedColors"`
	PaintsToUse      []PaintRef        `json:"paintsToUse"`
	RequiredMixes    []PaintMix        `json:"requiredMixes"`
	Steps            []ProjectStep     `json:"steps"`
	FixationTips     []string          `json:"fixationTips"`
	Warnings         []string          `json:"warnings"`
	ReferenceImage   ReferenceImage    `json:"referenceImage"`
}

// Part is a named, physically distinct area of the miniature discovered
// by part segmentation.
type Part struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Regions     []RegionRect `json:"regions"`
	Colors      []string     `json:"colors,omitempty"`
}

// PartSuggestion is a provisional part proposed for the region editor.
type PartSuggestion struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Region      *RegionRect `json:"region,omitempty"`
}
