package chat

import (
	"os"
	"strings"
)

// Gemini Model IDs
//
// | Model Name             | API Model ID           | Use Case                      |
// |------------------------|------------------------|-------------------------------|
// | Gemini 2.5 Flash       | gemini-2.5-flash       | Vetted for plan generation    |
// | Gemini 2.5 Flash-Lite  | gemini-2.5-flash-lite  | Cheaper, weaker at vision     |
// | Gemini 2.5 Pro         | gemini-2.5-pro         | Slower, stronger reasoning    |
const (
	ModelGemini25Flash     = "gemini-2.5-flash"
	ModelGemini25FlashLite = "gemini-2.5-flash-lite"
	ModelGemini25Pro       = "gemini-2.5-pro"
)

// DefaultModelName is the vetted hosted model.
const DefaultModelName = ModelGemini25Flash

// DefaultLocalModel is sent as "model" to local servers, which generally
// ignore it and use whatever model is loaded.
const DefaultLocalModel = "local-model"

// GetModelNames returns the hosted model priority list, resolved from:
//  1. GEMINI_MODEL environment variable, comma separated (if set)
//  2. Default: [gemini-2.5-flash]
//
// When a model is rate limited the next one in the list is tried before
// the call is reported as rate limited.
func GetModelNames() []string {
	if env := os.Getenv("GEMINI_MODEL"); env != "" {
		var models []string
		for _, m := range strings.Split(env, ",") {
			if m = strings.TrimSpace(m); m != "" {
				models = append(models, m)
			}
		}
		if len(models) > 0 {
			return models
		}
	}
	return []string{DefaultModelName}
}
