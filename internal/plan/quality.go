package plan

import (
	"fmt"
	"strings"

	"github.com/fpang/minipaint/internal/colormatch"
)

// LowQualityWarning is appended to plans flagged by AssessQuality.
const LowQualityWarning = "A resposta do modelo parece incompleta ou genérica (nomes de tinta ausentes ou em código hex, passos sem descrição). Revise o plano com atenção."

// Quality is the verdict of AssessQuality.
type Quality struct {
	Bad    bool
	Reason string
}

// AssessQuality inspects a raw step-generation result before
// normalization. It flags the response when more than half of the paint
// entries have a missing or hex-shaped name, or when more than 60% of the
// steps have both a near-empty description and a near-empty part name.
func AssessQuality(raw any) Quality {
	top := asMap(raw)
	var steps []any
	if top != nil {
		steps = asList(field(top, "steps", "passos", "etapas"))
	} else {
		steps = asList(raw)
	}

	var entries []any
	if top != nil {
		entries = append(entries, asList(field(top, "paintsToUse"))...)
	}
	emptySteps := 0
	for _, s := range steps {
		m := asMap(s)
		if m == nil {
			emptySteps++
			continue
		}
		entries = append(entries, asList(field(m, "paintsToUse", "paints"))...)
		if _, present := m["paintName"]; present {
			entries = append(entries, m["paintName"])
		}
		desc := text(m, "partDescription", "description", "descricao")
		name := stepPartName(m)
		if len([]rune(desc)) < 5 && len([]rune(name)) < 3 {
			emptySteps++
		}
	}

	badNames := 0
	for _, e := range entries {
		var name string
		switch t := e.(type) {
		case string:
			name = t
		case map[string]any:
			name = text(t, "name", "paint", "paintName")
		}
		name = strings.TrimSpace(name)
		if name == "" || colormatch.IsHexLike(name) {
			badNames++
		}
	}

	switch {
	case len(entries) > 0 && badNames*2 > len(entries):
		return Quality{Bad: true, Reason: fmt.Sprintf("%d of %d paint names missing or hex", badNames, len(entries))}
	case len(steps) > 0 && float64(emptySteps) > 0.6*float64(len(steps)):
		return Quality{Bad: true, Reason: fmt.Sprintf("%d of %d steps nearly empty", emptySteps, len(steps))}
	default:
		return Quality{}
	}
}
