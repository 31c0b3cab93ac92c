package plan

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Helpers for reading the generic values produced by encoding/json
// (map[string]any, []any, string, float64, bool, nil).

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// asList returns v as a list; a lone object becomes a one-element list.
func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		return []any{t}
	default:
		return nil
	}
}

// asString renders scalars as text; objects and lists yield "".
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(t), "%")
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(math.Round(f)), true
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "sim", "yes", "1":
			return true
		}
	case float64:
		return t != 0
	}
	return false
}

// field returns the first present, non-null value among keys.
func field(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// text returns the first non-empty scalar text among keys.
func text(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// stringList coerces a list of scalars, or a single string split into
// sentences, into a list of non-empty strings. Never nil.
func stringList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case string:
		out = append(out, splitSentences(t)...)
	case []any:
		for _, item := range t {
			if s := asString(item); s != "" {
				out = append(out, s)
			} else if m := asMap(item); m != nil {
				if s := text(m, "text", "tip", "warning", "description"); s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// splitSentences breaks prose on sentence terminators followed by
// whitespace, and on newlines. Decimal points ("1.5") do not split.
func splitSentences(s string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if t := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(cur.String()), "-•*")); t != "" {
			out = append(out, t)
		}
		cur.Reset()
	}
	runes := []rune(s)
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		cur.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			flush()
		}
	}
	flush()
	return out
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func describeValue(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
