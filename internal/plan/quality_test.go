package plan

import (
	"testing"

	"github.com/fpang/minipaint/internal/inventory"
)

func TestAssessQuality(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantBad bool
	}{
		{
			name: "hex paint names",
			raw: `{"steps": [{"partName": "Capa", "partDescription": "Capa vermelha",
				"paintsToUse": [{"name": "#FF0000"}, {"name": "00FF00"}, {"name": "Gold"}]}]}`,
			wantBad: true,
		},
		{
			name: "missing paint names",
			raw: `{"steps": [{"partName": "Capa", "partDescription": "Capa vermelha",
				"paintsToUse": [{"brand": "VMC"}, ""]}]}`,
			wantBad: true,
		},
		{
			name: "empty steps",
			raw: `[{"partName": "", "partDescription": ""}, {"partName": "a"}, {}, {"description": "ok"},
				{"partName": "Capa", "partDescription": "Capa vermelha com dobras"}]`,
			wantBad: true,
		},
		{
			name: "reasonable plan",
			raw: `{"steps": [
				{"partName": "Capa", "partDescription": "Capa vermelha", "paintsToUse": [{"name": "Gold"}, {"name": "#101010"}]},
				{"partName": "Olhos", "partDescription": "Olhos azuis", "paintName": "White"}]}`,
			wantBad: false,
		},
		{name: "nothing to judge", raw: `{}`, wantBad: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := AssessQuality(decode(t, tt.raw))
			if q.Bad != tt.wantBad {
				t.Errorf("AssessQuality() = %+v, want Bad=%v", q, tt.wantBad)
			}
			if q.Bad && q.Reason == "" {
				t.Error("bad verdict without a reason")
			}
		})
	}
}

func TestFallbackPlanTutorial(t *testing.T) {
	n := NewNormalizer(testInventory(), nil)
	p := n.FallbackPlan(PlanContext{ProjectName: "Orc"})

	if len(p.Steps) != 8 {
		t.Fatalf("len(Steps) = %d, want 8", len(p.Steps))
	}
	assertDense(t, p)
	for _, st := range p.Steps {
		if len(st.PaintsToUse) == 0 {
			t.Errorf("step %q has no paints", st.PartName)
		}
		if st.Technique == "" || st.Tool == "" || len(st.Tips) == 0 {
			t.Errorf("step %q incomplete: %+v", st.PartName, st)
		}
	}
	if !hasWarning(p.Warnings, FallbackWarning) {
		t.Errorf("warnings = %q", p.Warnings)
	}
}

func TestFallbackPlanPerPart(t *testing.T) {
	n := NewNormalizer(inventory.Inventory{}, nil)
	p := n.FallbackPlan(PlanContext{Parts: partsNamed("Capa", "Olhos")})

	if len(p.Steps) != 3 {
		t.Fatalf("len(Steps) = %d, want 3", len(p.Steps))
	}
	assertDense(t, p)
	if p.Steps[1].Technique == TechDrybrushing {
		t.Error("fallback drybrushed the eyes")
	}
	if !hasWarning(p.Warnings, FallbackWarning) || len(p.Warnings) < 2 {
		t.Errorf("expected fallback and missing-paint warnings, got %q", p.Warnings)
	}
}

func hasWarning(ws []string, want string) bool {
	for _, w := range ws {
		if w == want {
			return true
		}
	}
	return false
}
