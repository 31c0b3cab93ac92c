package assets

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
)

//go:embed prompts/colors.txt
var colorsTemplate string

//go:embed prompts/parts.txt
var partsTemplate string

//go:embed prompts/steps.txt
var stepsTemplate string

//go:embed prompts/identify-parts.txt
var identifyPartsTemplate string

//go:embed prompts/hex.txt
var hexTemplate string

//go:embed prompts/hex-local.txt
var hexLocalTemplate string

//go:embed prompts/inventory.txt
var inventoryTemplate string

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// Pre-parsed templates. template.Must panics on malformed templates,
// catching errors at program startup rather than at call time.
var (
	colorsPromptTmpl        = template.Must(template.New("colors").Funcs(funcs).Parse(colorsTemplate))
	partsPromptTmpl         = template.Must(template.New("parts").Funcs(funcs).Parse(partsTemplate))
	stepsPromptTmpl         = template.Must(template.New("steps").Funcs(funcs).Parse(stepsTemplate))
	identifyPartsPromptTmpl = template.Must(template.New("identify-parts").Funcs(funcs).Parse(identifyPartsTemplate))
	hexPromptTmpl           = template.Must(template.New("hex").Parse(hexTemplate))
	hexLocalPromptTmpl      = template.Must(template.New("hex-local").Parse(hexLocalTemplate))
	inventoryPromptTmpl     = template.Must(template.New("inventory").Parse(inventoryTemplate))
)

// PartPrompt is one part as listed in a prompt.
type PartPrompt struct {
	Name string
	// Regions is a short textual rendering of the part's rectangles.
	Regions string
	// Hint is extra context for the steps phase, e.g. the part's colours.
	Hint string
}

// PlanPromptData holds the dynamic data for the plan-generation phases.
// Inventory, Colors, Thinners and Varnishes are preformatted text.
type PlanPromptData struct {
	ProjectName string
	Source      string
	Inventory   string
	Thinners    string
	Varnishes   string
	Colors      string
	Parts       []PartPrompt
	MinColors   int
	MinParts    int
	MaxParts    int
	Compact     bool
}

// RenderColorsPrompt renders the colour-identification prompt. With Parts
// set, the model is asked for one colour per user part; otherwise for every
// distinct colour.
func RenderColorsPrompt(d PlanPromptData) string {
	return render(colorsPromptTmpl, d)
}

// RenderPartsPrompt renders the part-segmentation prompt.
func RenderPartsPrompt(d PlanPromptData) string {
	return render(partsPromptTmpl, d)
}

// RenderStepsPrompt renders the step-generation prompt.
func RenderStepsPrompt(d PlanPromptData) string {
	return render(stepsPromptTmpl, d)
}

// RenderIdentifyPartsPrompt renders the part-suggestion prompt.
func RenderIdentifyPartsPrompt(maxParts int, compact bool) string {
	return render(identifyPartsPromptTmpl, PlanPromptData{MaxParts: maxParts, Compact: compact})
}

// RenderHexPrompt renders the paint hex lookup prompt.
func RenderHexPrompt(brand, name string, compact bool) string {
	data := struct{ Brand, Name string }{brand, name}
	if compact {
		return render(hexLocalPromptTmpl, data)
	}
	return render(hexPromptTmpl, data)
}

// RenderInventoryPrompt renders the bulk inventory categorization prompt.
func RenderInventoryPrompt(list, brand string) string {
	return render(inventoryPromptTmpl, struct{ List, Brand string }{list, brand})
}

// render executes a pre-parsed template. Execution only fails on a template
// bug, which is reported inline so it shows up in the prompt logs.
func render(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return buf.String() + fmt.Sprintf("\n[template %s: %v]", tmpl.Name(), err)
	}
	return buf.String()
}
