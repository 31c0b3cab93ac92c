package plan

import (
	"github.com/fpang/minipaint/internal/colormatch"
)

// FallbackWarning is attached to plans built by FallbackPlan.
const FallbackWarning = "O modelo local não produziu um plano utilizável; este guia foi montado automaticamente a partir do seu inventário."

// tutorialStage is one step of the generic tutorial used when no parts are
// known. target is the colour the step's paint should approximate.
type tutorialStage struct {
	name        string
	description string
	technique   string
	target      string
	purpose     string
}

var genericTutorial = []tutorialStage{
	{"Primer", "Aplique primer em toda a miniatura para dar aderência à tinta", TechBasecoat, "#000000", PurposeBase},
	{"Pele", "Pinte as áreas de pele com o tom base", TechLayering, "#FFDBAC", PurposeBase},
	{"Cor principal", "Cubra as áreas maiores com a cor dominante da referência", TechBasecoat, "", PurposeBase},
	{"Sombras", "Aplique wash para escurecer recessos e dobras", TechWashing, "#3B2A1A", PurposeWash},
	{"Camadas e luzes", "Suba a luz em camadas nas áreas elevadas", TechLayering, "#FFFFFF", PurposeHighlight},
	{"Detalhes finos", "Pinte olhos, fivelas e pequenos detalhes", TechFineDetail, "#F5F5F5", PurposeBase},
	{"Base e terreno", "Pinte e texture a base da miniatura", TechDrybrushing, "#8B4513", PurposeBase},
}

// FallbackPlan builds a plan from inventory heuristics alone, without any
// model output. With known parts it produces one step per part plus the
// varnish step; without parts it produces the generic eight-step tutorial
// (primer, skin, main colour, shadow wash, layering and highlights, fine
// details, base and terrain, varnish).
func (n *Normalizer) FallbackPlan(pc PlanContext) *ProjectPlan {
	var steps []ProjectStep
	if len(pc.Parts) > 0 {
		for _, part := range pc.Parts {
			steps = append(steps, n.normalizeStep(nil, part, pc.Colors))
		}
	} else {
		for _, stage := range genericTutorial {
			steps = append(steps, n.tutorialStep(stage, pc.Colors))
		}
	}
	steps = append(steps, n.varnishStep(nil))

	p := n.assemble(map[string]any{}, steps, pc)
	p.Warnings = append(p.Warnings, FallbackWarning)
	return p
}

func (n *Normalizer) tutorialStep(stage tutorialStage, colors []IdentifiedColor) ProjectStep {
	target := stage.target
	if target == "" && len(colors) > 0 {
		target = colors[0].Hex
	}
	if target == "" {
		target = colormatch.NeutralHex
	}

	var paint any = map[string]any{"hex": target, "purpose": stage.purpose}
	if stage.technique == TechWashing && len(n.inv.Washes) > 0 {
		w := n.inv.Washes[0]
		paint = map[string]any{
			"name":    orDefault(w.Name, w.Composition),
			"brand":   w.Brand,
			"hex":     colormatch.CoerceHex(w.Hex, target),
			"purpose": PurposeWash,
		}
	}

	raw := map[string]any{
		"partDescription": stage.description,
		"technique":       stage.technique,
		"paintsToUse":     []any{paint},
	}
	return n.normalizeStep(raw, Part{Name: stage.name, Regions: []RegionRect{}}, nil)
}
