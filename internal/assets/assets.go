// Package assets provides the embedded prompt templates.
//
// Each phase has one template. Templates branch on Compact for the local
// backend, which gets shorter prompts with an inline JSON example in place
// of a response schema.
package assets

import (
	_ "embed"
)

// SystemPrompt is the system instruction for the hosted backend.
//
//go:embed prompts/system.txt
var SystemPrompt string

// CompactSystemPrompt is the system instruction for local models.
//
//go:embed prompts/system-compact.txt
var CompactSystemPrompt string

// System returns the system instruction for a backend.
func System(compact bool) string {
	if compact {
		return CompactSystemPrompt
	}
	return SystemPrompt
}
