package plan

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fpang/minipaint/internal/inventory"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return v
}

func testInventory() inventory.Inventory {
	return inventory.Inventory{
		Paints: []inventory.Paint{
			{ID: "p1", Type: inventory.PaintAcrylic, Brand: "VMC", Name: "Gold", Hex: "#D4AF37"},
			{ID: "p2", Type: inventory.PaintAcrylic, Brand: "VMC", Name: "Black", Hex: "#101010"},
			{ID: "p3", Type: inventory.PaintAcrylic, Brand: "VMC", Name: "White", Hex: "#FAFAFA"},
		},
		Thinners:  []inventory.Thinner{{ID: "t1", Brand: "VMC", Composition: inventory.CompositionOriginal}},
		Varnishes: []inventory.Varnish{{ID: "v1", Brand: "VMC", Finish: inventory.FinishFosco}},
	}
}

func partsNamed(names ...string) []Part {
	parts := make([]Part, len(names))
	for i, n := range names {
		parts[i] = Part{Name: n, Regions: []RegionRect{}}
	}
	return parts
}

func assertDense(t *testing.T, p *ProjectPlan) {
	t.Helper()
	for i, st := range p.Steps {
		if st.StepNumber != i+1 {
			t.Errorf("step %d has StepNumber %d", i, st.StepNumber)
		}
	}
	if last := p.Steps[len(p.Steps)-1]; last.Technique != TechVarnish {
		t.Errorf("last step technique = %q, want varnish", last.Technique)
	}
}

func TestNormalizePlanCoercesFields(t *testing.T) {
	raw := decode(t, `{
		"steps": [
			{"stepNumber": 7, "partName": "Capa", "partDescription": "Capa longa",
			 "paintsToUse": [{"name": "Gold", "brand": "VMC", "hex": "#D4AF37", "purpose": "base"}],
			 "technique": "layering", "dilution": "1:2 com água",
			 "tips": "Dilua bem. Use camadas finas! Seque."},
			{"stepNumber": 3, "partName": "Olhos", "technique": "drybrushing", "paintName": "Black"},
			{"partName": "Verniz", "technique": "varnish"}
		]
	}`)

	n := NewNormalizer(testInventory(), nil)
	p, err := n.NormalizePlan(raw, PlanContext{ProjectName: "Cavaleiro", Parts: partsNamed("Capa", "Olhos")})
	if err != nil {
		t.Fatalf("NormalizePlan() error = %v", err)
	}
	if len(p.Steps) != 3 {
		t.Fatalf("len(Steps) = %d, want 3", len(p.Steps))
	}
	assertDense(t, p)

	capa := p.Steps[0]
	if capa.Dilution.Ratio != "1:2" || capa.Dilution.Description != "1:2 com água" {
		t.Errorf("Dilution = %+v", capa.Dilution)
	}
	if capa.Dilution.ThinnerNote == "" {
		t.Error("ThinnerNote is empty")
	}
	wantTips := []string{"Dilua bem.", "Use camadas finas!", "Seque."}
	if strings.Join(capa.Tips, "|") != strings.Join(wantTips, "|") {
		t.Errorf("Tips = %q, want %q", capa.Tips, wantTips)
	}
	if capa.Warnings == nil {
		t.Error("Warnings is nil, want empty list")
	}

	olhos := p.Steps[1]
	if olhos.Technique == TechDrybrushing {
		t.Error("eye step kept drybrushing")
	}
	if len(olhos.PaintsToUse) != 1 || olhos.PaintsToUse[0].Name != "Black" || olhos.PaintsToUse[0].Purpose != PurposeBase {
		t.Errorf("eye paints = %+v", olhos.PaintsToUse)
	}
	if len(olhos.Tips) != 1 {
		t.Errorf("default tips = %q", olhos.Tips)
	}

	if p.ProjectName != "Cavaleiro" || p.FixationTips == nil || p.RequiredMixes == nil || p.IdentifiedColors == nil {
		t.Errorf("plan-level fields not populated: %+v", p)
	}
	if len(p.PaintsToUse) != 2 {
		t.Errorf("PaintsToUse = %+v, want Gold and Black", p.PaintsToUse)
	}
}

func TestEyeAndGemNeverDrybrushed(t *testing.T) {
	for _, part := range []string{"Olhos", "Eyes", "Gema do elmo", "Gem on sword", "olho esquerdo"} {
		t.Run(part, func(t *testing.T) {
			raw := map[string]any{"steps": []any{
				map[string]any{"partName": part, "technique": "drybrushing", "tool": "Pincel de drybrush"},
			}}
			n := NewNormalizer(testInventory(), nil)
			p, err := n.NormalizePlan(raw, PlanContext{Parts: partsNamed(part)})
			if err != nil {
				t.Fatalf("NormalizePlan() error = %v", err)
			}
			st := p.Steps[0]
			if st.Technique == TechDrybrushing {
				t.Errorf("technique = %q", st.Technique)
			}
			if st.Tool == "Pincel de drybrush" {
				t.Errorf("tool kept from overridden technique: %q", st.Tool)
			}
		})
	}
}

func TestNormalizePlanAlignsStepsToParts(t *testing.T) {
	raw := decode(t, `{"steps": [
		{"partName": "Espada longa", "technique": "basecoat"},
		{"partName": "capa", "technique": "layering"},
		{"partName": "Cabelo", "technique": "layering"},
		{"partName": "Capa", "technique": "glazing"}
	]}`)

	n := NewNormalizer(testInventory(), nil)
	p, err := n.NormalizePlan(raw, PlanContext{Parts: partsNamed("Capa", "Olhos", "Espada", "Botas")})
	if err != nil {
		t.Fatalf("NormalizePlan() error = %v", err)
	}

	var names []string
	for _, st := range p.Steps {
		names = append(names, st.PartName)
	}
	want := []string{"Capa", "Olhos", "Espada", "Botas", VarnishPartName}
	if strings.Join(names, "|") != strings.Join(want, "|") {
		t.Fatalf("parts = %q, want %q", names, want)
	}
	assertDense(t, p)

	if p.Steps[0].Technique != TechLayering {
		t.Errorf("Capa technique = %q, want the exact-name step", p.Steps[0].Technique)
	}
	if p.Steps[3].PartDescription != "Pintura de Botas" {
		t.Errorf("synthesized step description = %q", p.Steps[3].PartDescription)
	}
	for _, st := range p.Steps[:4] {
		if len(st.PaintsToUse) == 0 {
			t.Errorf("step %q has no paints", st.PartName)
		}
	}
}

func TestVarnishTechniqueOnRequestedPart(t *testing.T) {
	tests := []struct {
		name        string
		steps       string
		parts       []Part
		wantDesc    []string
		wantVarnish string
	}{
		{
			name: "gloss varnish on a gem stays with the gem",
			steps: `[
				{"partName": "Gema", "technique": "verniz brilhante", "partDescription": "Pinte a gema de vermelho com ponto de luz e finalize com verniz brilhante"},
				{"partName": "Capa", "technique": "layering", "partDescription": "Camadas de azul na capa"},
				{"partName": "Verniz final", "technique": "varnish", "partDescription": "Verniz fosco em spray sobre toda a miniatura"}
			]`,
			parts:       partsNamed("Gema", "Capa"),
			wantDesc:    []string{"Pinte a gema de vermelho com ponto de luz e finalize com verniz brilhante", "Camadas de azul na capa"},
			wantVarnish: "Verniz fosco em spray sobre toda a miniatura",
		},
		{
			name: "named varnish step wins over a varnish technique",
			steps: `[
				{"partName": "Acabamento", "technique": "verniz", "partDescription": "Selar tudo"},
				{"partName": "Capa", "technique": "layering", "partDescription": "Camadas de azul na capa"},
				{"partName": "Verniz final", "partDescription": "Verniz fosco em duas camadas"}
			]`,
			parts:       partsNamed("Capa"),
			wantDesc:    []string{"Camadas de azul na capa"},
			wantVarnish: "Verniz fosco em duas camadas",
		},
		{
			name: "varnish technique on an unrequested part closes the plan",
			steps: `[
				{"partName": "Capa", "technique": "layering", "partDescription": "Camadas de azul na capa"},
				{"partName": "Acabamento", "technique": "verniz", "partDescription": "Selar tudo com verniz fosco"}
			]`,
			parts:       partsNamed("Capa"),
			wantDesc:    []string{"Camadas de azul na capa"},
			wantVarnish: "Selar tudo com verniz fosco",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer(testInventory(), nil)
			p, err := n.NormalizePlan(decode(t, tt.steps), PlanContext{Parts: tt.parts})
			if err != nil {
				t.Fatalf("NormalizePlan() error = %v", err)
			}
			if len(p.Steps) != len(tt.parts)+1 {
				t.Fatalf("got %d steps, want %d", len(p.Steps), len(tt.parts)+1)
			}
			assertDense(t, p)
			for i, want := range tt.wantDesc {
				if p.Steps[i].PartName != tt.parts[i].Name || p.Steps[i].PartDescription != want {
					t.Errorf("step %d = %q: %q, want %q: %q", i+1, p.Steps[i].PartName, p.Steps[i].PartDescription, tt.parts[i].Name, want)
				}
			}
			last := p.Steps[len(p.Steps)-1]
			if last.Technique != TechVarnish || last.PartDescription != tt.wantVarnish {
				t.Errorf("varnish step = %q (%s), want %q", last.PartDescription, last.Technique, tt.wantVarnish)
			}
		})
	}
}

func TestNormalizePlanLogsCoercions(t *testing.T) {
	var buf bytes.Buffer
	savedLogger, savedLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer func() {
		log.Logger = savedLogger
		zerolog.SetGlobalLevel(savedLevel)
	}()

	raw := decode(t, `{"steps": [
		{"partName": "Olhos", "technique": "drybrushing", "paintsToUse": ["Xyzzy Qwfp"]},
		{"partName": "Capa", "technique": "layering",
		 "paintMix": {"targetColor": "Cinza", "components": [{"paint": "Xyzzy Qwfp", "ratio": 2}, {"paint": "Black", "ratio": 1}]}},
		{"partName": "Extra", "technique": "layering"}
	]}`)
	n := NewNormalizer(testInventory(), nil)
	if _, err := n.NormalizePlan(raw, PlanContext{Parts: partsNamed("Olhos", "Capa")}); err != nil {
		t.Fatalf("NormalizePlan() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Technique not allowed for part; overriding",
		"Paint not in inventory; keeping as placeholder",
		"Dropping mix component not in inventory",
		"Dropping surplus step",
		`"part":"Extra"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output lacks %q:\n%s", want, out)
		}
	}
}

func TestNormalizePlanWithoutParts(t *testing.T) {
	raw := decode(t, `[{"partName": "Manto"}, {"description": "sem nome"}]`)
	n := NewNormalizer(testInventory(), nil)
	p, err := n.NormalizePlan(raw, PlanContext{})
	if err != nil {
		t.Fatalf("NormalizePlan() error = %v", err)
	}
	if len(p.Steps) != 3 || p.Steps[1].PartName != "Etapa 2" {
		t.Errorf("steps = %+v", p.Steps)
	}
}

func TestNormalizePlanErrors(t *testing.T) {
	n := NewNormalizer(testInventory(), nil)
	for _, raw := range []any{nil, map[string]any{}, map[string]any{"steps": []any{}}, "text"} {
		_, err := n.NormalizePlan(raw, PlanContext{Parts: partsNamed("Capa")})
		if _, ok := err.(*NormalizationError); !ok {
			t.Errorf("NormalizePlan(%#v) error = %v, want *NormalizationError", raw, err)
		}
	}
}

func TestPaintMixRequiresTargetAndComponents(t *testing.T) {
	n := NewNormalizer(testInventory(), nil)

	if m := n.normalizeMix(map[string]any{"targetColor": "", "components": []any{}}, ""); m != nil {
		t.Errorf("empty mix = %+v, want nil", m)
	}
	if m := n.normalizeMix("null", "Verde"); m != nil {
		t.Errorf("\"null\" mix = %+v, want nil", m)
	}

	m := n.normalizeMix(decode(t, `{"targetColor": "Ouro escuro", "components": [
		{"paint": "Gold", "ratio": 2}, {"paint": "Black", "ratio": "1 parte"}, {"paint": "Unobtainium"}]}`), "")
	if m == nil {
		t.Fatal("mix = nil")
	}
	if len(m.Components) != 2 || m.Components[0].Ratio != 2 || m.Components[1].Ratio != 1 {
		t.Errorf("components = %+v", m.Components)
	}

	legacy := n.normalizeMix("Misture 2 partes de Gold com 1 de Black", "Ouro escuro")
	if legacy == nil || len(legacy.Components) != 2 {
		t.Errorf("legacy mix = %+v", legacy)
	}
}

func TestResolvePaintLayers(t *testing.T) {
	inv := inventory.Inventory{Paints: []inventory.Paint{
		{Brand: "VMC", Name: "Model Color Gold", Hex: "#D4AF37"},
		{Brand: "VMC", Name: "Dark Prussian Blue", Hex: "#1C3A5E"},
		{Brand: "Acrilex", Name: "Vermelho Escarlate", Hex: "#FF2400"},
	}}
	n := NewNormalizer(inv, nil)

	tests := []struct {
		input     string
		wantName  string
		wantBrand string
	}{
		{"model color gold", "Model Color Gold", "VMC"},
		{"Gold", "Model Color Gold", "VMC"},
		{"Prussian Blue Paint", "Dark Prussian Blue", "VMC"},
		{"Red", "Vermelho Escarlate", "Acrilex"},
		{"#D0AC35", "Model Color Gold", "VMC"},
		{"Unobtainium", "Unobtainium", PlaceholderBrand},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ref, ok := n.resolveRef(tt.input)
			if !ok {
				t.Fatal("resolveRef() not ok")
			}
			if ref.Name != tt.wantName || ref.Brand != tt.wantBrand {
				t.Errorf("resolveRef(%q) = %+v, want %s/%s", tt.input, ref, tt.wantBrand, tt.wantName)
			}
		})
	}

	if ref, _ := n.resolveRef("Unobtainium"); ref.Hex != "#808080" {
		t.Errorf("fabricated hex = %q, want neutral gray", ref.Hex)
	}
}

func TestResolvePaintsUniquePurposes(t *testing.T) {
	n := NewNormalizer(testInventory(), nil)
	refs := n.resolvePaints([]any{
		map[string]any{"name": "Gold", "purpose": "base"},
		map[string]any{"name": "Black", "purpose": "base"},
		map[string]any{"name": "White", "purpose": "luz"},
		"Gold",
	})
	if len(refs) != 3 {
		t.Fatalf("refs = %+v, want 3 (duplicate Gold dropped)", refs)
	}
	seen := map[string]bool{}
	for _, r := range refs {
		if r.Purpose == "" || seen[r.Purpose] {
			t.Errorf("purpose %q missing or repeated in %+v", r.Purpose, refs)
		}
		seen[r.Purpose] = true
	}
	if !seen[PurposeHighlight] {
		t.Error("\"luz\" was not mapped to highlight")
	}
}

func TestUninferrableTechniquesVary(t *testing.T) {
	raw := decode(t, `{"steps": [
		{"partName": "Bandeira", "technique": "xyzzy"},
		{"partName": "Estandarte", "technique": "xyzzy"}
	]}`)
	n := NewNormalizer(testInventory(), nil)
	p, err := n.NormalizePlan(raw, PlanContext{Parts: partsNamed("Bandeira", "Estandarte")})
	if err != nil {
		t.Fatalf("NormalizePlan() error = %v", err)
	}
	if p.Steps[0].Technique == p.Steps[1].Technique {
		t.Errorf("both steps got %q", p.Steps[0].Technique)
	}
}

func TestTechniqueSynonyms(t *testing.T) {
	tests := map[string]string{
		"Wash":            TechWashing,
		"Dry-Brushing":    TechDrybrushing,
		"edge highlight":  TechEdgeHighlight,
		"Highlight":       TechEdgeHighlight,
		"Camada base":     TechBasecoat,
		"veladura":        TechGlazing,
		"fine-detail":     TechFineDetail,
		"Layering suave":  TechLayering,
		"pincel seco":     TechDrybrushing,
		"lavado de sépia": TechWashing,
	}
	for in, want := range tests {
		if got, ok := canonicalTechnique(in); !ok || got != want {
			t.Errorf("canonicalTechnique(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := canonicalTechnique("stippling"); ok {
		t.Error("stippling should not be recognized")
	}
}

func TestNormalizeColorsGoldScenario(t *testing.T) {
	inv := inventory.Inventory{Paints: []inventory.Paint{{ID: "g", Type: inventory.PaintAcrylic, Brand: "VMC", Name: "Gold", Hex: "#D4AF37"}}}
	n := NewNormalizer(inv, nil)

	raw := decode(t, `{"colors": [
		{"colorName": "Dourado", "hex": "#D0AC35", "location": "Armadura", "needsMixing": true},
		{"colorName": "Magenta", "hex": "#FF00FF", "location": "Capa",
		 "matchedPaint": {"name": "Gold"},
		 "mixRecipe": {"components": [{"paint": "Purple Haze", "ratio": 1}]}}
	]}`)
	colors, err := n.NormalizeColors(raw)
	if err != nil {
		t.Fatalf("NormalizeColors() error = %v", err)
	}
	if len(colors) != 2 {
		t.Fatalf("len(colors) = %d", len(colors))
	}

	gold := colors[0]
	if gold.NeedsMixing || gold.MatchedPaint == nil || gold.MatchedPaint.Name != "Gold" || gold.MatchedPaint.Brand != "VMC" {
		t.Errorf("near-gold = %+v", gold)
	}

	magenta := colors[1]
	if !magenta.NeedsMixing || magenta.MixRecipe == nil {
		t.Fatalf("magenta = %+v, want a mix", magenta)
	}
	if magenta.MixRecipe.TargetColor == "" || len(magenta.MixRecipe.Components) == 0 {
		t.Errorf("mix recipe is trivial: %+v", magenta.MixRecipe)
	}
	for _, c := range magenta.MixRecipe.Components {
		if c.Paint != "Gold" {
			t.Errorf("component %q is not an inventory paint", c.Paint)
		}
	}
}

func TestNormalizeColorsErrors(t *testing.T) {
	n := NewNormalizer(testInventory(), nil)
	if _, err := n.NormalizeColors(map[string]any{"colors": []any{}}); err == nil {
		t.Error("expected error for empty colors")
	}
	if _, err := n.NormalizeColors(decode(t, `[{"colorName": "??"}]`)); err == nil {
		t.Error("expected error when no entry has a usable colour")
	}
	colors, err := n.NormalizeColors(decode(t, `["Vermelho", {"name": "Azul", "hex": "0000FF"}]`))
	if err != nil || len(colors) != 2 || colors[1].Hex != "#0000FF" {
		t.Errorf("NormalizeColors() = %+v, %v", colors, err)
	}
}

func TestNormalizePartsAndBackfill(t *testing.T) {
	n := NewNormalizer(testInventory(), nil)
	parts, err := n.NormalizeParts(decode(t, `{"parts": [
		{"name": "Capa", "region": {"x": 10, "y": 20, "width": 30, "height": 40}},
		{"name": "capa"},
		{"name": "Verniz"},
		"Elmo"
	]}`))
	if err != nil {
		t.Fatalf("NormalizeParts() error = %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("parts = %+v, want Capa and Elmo", parts)
	}
	if len(parts[0].Regions) != 1 || parts[0].Regions[0].X != 0.1 {
		t.Errorf("Capa regions = %+v", parts[0].Regions)
	}

	if _, err := n.NormalizeParts(map[string]any{"other": 1}); err == nil {
		t.Error("expected error for missing parts array")
	}

	colors := []IdentifiedColor{
		{ColorName: "Vermelho", Hex: "#FF0000", Location: "Capa"},
		{ColorName: "Prata", Hex: "#C0C0C0", Location: "Elmo"},
		{ColorName: "Marrom", Hex: "#8B4513", Location: "Botas"},
		{ColorName: "Dourado", Hex: "#FFD700", Location: "Fivela"},
		{ColorName: "Pele", Hex: "#FFDBAC", Location: "Rosto"},
		{ColorName: "Preto", Hex: "#000000", Location: "Botas"},
	}
	filled := BackfillParts(parts, colors)
	if len(filled) != 5 {
		t.Errorf("backfilled = %d parts, want 5 (Capa, Elmo, Botas, Fivela, Rosto)", len(filled))
	}

	enough := BackfillParts(partsNamed("A", "B", "C"), colors)
	if len(enough) != 3 {
		t.Errorf("no backfill expected when parts >= colors/2, got %d", len(enough))
	}
}
