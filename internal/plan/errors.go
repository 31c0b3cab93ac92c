package plan

import "fmt"

// Normalization phases.
const (
	PhaseColors = "colors"
	PhaseParts  = "parts"
	PhaseSteps  = "steps"
)

// NormalizationError reports that a phase result could not be coerced into
// its schema, typically because a required array is missing or empty.
type NormalizationError struct {
	Phase  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s: %s", e.Phase, e.Reason)
}
