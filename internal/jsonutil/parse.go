// Package jsonutil provides utilities for extracting and parsing JSON from
// LLM responses that may be wrapped in markdown code fences, embedded in
// prose, or cut off mid-document by an output-token limit.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripMarkdownFences removes ```json ... ``` or ``` ... ``` wrapping from text.
// A missing closing fence (truncated response) is tolerated: everything after
// the opening fence line is returned. Text without an opening fence is
// returned trimmed but otherwise unchanged.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	nl := strings.Index(text, "\n")
	if nl == -1 {
		// Single line: ```{"a":1}``` or a bare opening fence.
		inner := strings.TrimPrefix(text, "```")
		inner = strings.TrimPrefix(inner, "json")
		return strings.TrimSpace(strings.TrimSuffix(inner, "```"))
	}

	body := text[nl+1:]
	if idx := strings.LastIndex(body, "```"); idx != -1 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// ExtractJSON finds and returns the JSON content (object or array) from text
// that may contain surrounding non-JSON content.
// It finds the first { or [ and matches it with the last corresponding } or ].
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)

	startIdx := firstJSONStart(text)
	if startIdx == -1 {
		return "", fmt.Errorf("no JSON content found")
	}

	endChar := "}"
	if text[startIdx] == '[' {
		endChar = "]"
	}

	text = text[startIdx:]
	endIdx := strings.LastIndex(text, endChar)
	if endIdx == -1 {
		return "", fmt.Errorf("no closing %s found", endChar)
	}

	return text[:endIdx+1], nil
}

// firstJSONStart returns the offset of the first { or [ in text, or -1.
func firstJSONStart(text string) int {
	objIdx := strings.Index(text, "{")
	arrIdx := strings.Index(text, "[")
	switch {
	case objIdx == -1:
		return arrIdx
	case arrIdx == -1:
		return objIdx
	case objIdx < arrIdx:
		return objIdx
	default:
		return arrIdx
	}
}

// ParseJSON strips markdown fences from raw LLM response text, extracts JSON
// content (object or array), and unmarshals it into the provided type T.
//
// Use ParseJSON when the model ran in structured-output mode and the payload
// is expected to be complete. Use ParseLenient for free-text backends whose
// responses may be truncated or malformed.
func ParseJSON[T any](raw string) (T, error) {
	text := StripMarkdownFences(raw)
	jsonStr, err := ExtractJSON(text)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w (raw length: %d)", err, len(raw))
	}

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		var zero T
		// Include a truncated preview in the error for debugging
		preview := jsonStr
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return zero, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview)
	}
	return result, nil
}
