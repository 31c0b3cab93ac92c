package jsonutil

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"
)

var colorsArrayPattern = regexp.MustCompile(`"colors"\s*:\s*\[`)

// ParseLenient turns possibly-truncated, possibly-fenced model output into a
// generic JSON value (map[string]any, []any, or a scalar). Well-formed input
// parses exactly as encoding/json would. Truncated input is closed at the
// last structurally safe point: open strings are terminated, dangling keys
// get a null value, and a partially written array element is dropped in
// full. Nil means nothing usable could be recovered. ParseLenient never
// panics.
func ParseLenient(text string) any {
	t := StripMarkdownFences(text)
	if v, ok := tryUnmarshal(t); ok {
		return v
	}

	start := firstJSONStart(t)
	if start == -1 {
		return nil
	}
	body := sanitize(t[start:])
	if v, ok := tryUnmarshal(body); ok {
		return v
	}
	if v, ok := tryUnmarshal(repairTruncated(body)); ok {
		// An array recovered from leading prose such as "[see below]" loses
		// to an explicit colour list further on.
		if _, isArray := v.([]any); !isArray || !colorsArrayPattern.MatchString(body) {
			return v
		}
	}

	// Last resort: salvage the colour list on its own.
	if loc := colorsArrayPattern.FindStringIndex(body); loc != nil {
		arr := repairTruncated(body[loc[1]-1:])
		if v, ok := tryUnmarshal(arr); ok {
			if list, ok := v.([]any); ok {
				return map[string]any{"colors": list}
			}
		}
	}
	return nil
}

func tryUnmarshal(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

// sanitize escapes raw control characters inside strings and drops commas
// that directly precede a closing bracket. Both are common in free-text
// model output and otherwise make a complete document unparseable.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	pendingComma := -1 // offset in b of a comma not yet known to be valid

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
				b.WriteByte(c)
			case c == '\\':
				escaped = true
				b.WriteByte(c)
			case c == '"':
				inString = false
				b.WriteByte(c)
			case c == '\n':
				b.WriteString(`\n`)
			case c == '\r':
				b.WriteString(`\r`)
			case c == '\t':
				b.WriteString(`\t`)
			case c < 0x20:
				// other control bytes carry no meaning in prose
			default:
				b.WriteByte(c)
			}
			continue
		}

		switch c {
		case ' ', '\t', '\n', '\r':
			b.WriteByte(c)
			continue
		case '}', ']':
			if pendingComma >= 0 {
				out := b.String()
				b.Reset()
				b.WriteString(out[:pendingComma])
				b.WriteString(out[pendingComma+1:])
			}
		case '"':
			inString = true
		}
		pendingComma = -1
		if c == ',' {
			pendingComma = b.Len()
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Object states. Arrays only use stateValue and stateAfter.
const (
	stateKey   = iota // expecting a key or '}'
	stateColon        // key read, expecting ':'
	stateValue        // expecting a value
	stateAfter        // value read, expecting ',' or a closer
)

type frame struct {
	open    byte
	safeEnd int // offset just past the last complete member
	state   int
}

type scanner struct {
	src         string
	stack       []frame
	done        int // offset where the top-level value completed, or -1
	inString    bool
	escapeAt    int // offset of a pending backslash, or -1
	unicodeLeft int
	scalarStart int // offset of an unterminated bare literal, or -1
}

// repairTruncated returns s (which must start with { or [) closed at the
// last safe point, or "" if nothing can be kept.
func repairTruncated(s string) string {
	sc := &scanner{src: s, done: -1, escapeAt: -1, scalarStart: -1}
	cut := sc.run()
	if sc.done >= 0 {
		return s[:sc.done]
	}
	if len(sc.stack) == 0 {
		return ""
	}
	return sc.close(cut)
}

// run scans until the top-level value completes, the input ends, or the
// structure breaks. It returns the offset where scanning stopped.
func (sc *scanner) run() int {
	s := sc.src
	for i := 0; i < len(s); i++ {
		c := s[i]
		if sc.inString {
			switch {
			case sc.unicodeLeft > 0:
				if !isHexDigit(c) {
					return sc.escapeAt
				}
				sc.unicodeLeft--
				if sc.unicodeLeft == 0 {
					sc.escapeAt = -1
				}
			case sc.escapeAt >= 0:
				if c == 'u' {
					sc.unicodeLeft = 4
				} else {
					sc.escapeAt = -1
				}
			case c == '\\':
				sc.escapeAt = i
			case c == '"':
				sc.inString = false
				sc.endString(i + 1)
			}
			if sc.done >= 0 {
				return i + 1
			}
			continue
		}

		if sc.scalarStart >= 0 {
			if isLiteralByte(c) {
				continue
			}
			if !json.Valid([]byte(s[sc.scalarStart:i])) {
				return i
			}
			sc.scalarStart = -1
			sc.endValue(i)
			if sc.done >= 0 {
				return i
			}
		}

		switch c {
		case ' ', '\t', '\n', '\r':
		case '{', '[':
			if !sc.valueAllowed() {
				return i
			}
			f := frame{open: c, safeEnd: i + 1, state: stateValue}
			if c == '{' {
				f.state = stateKey
			}
			sc.stack = append(sc.stack, f)
		case '}', ']':
			if len(sc.stack) == 0 {
				return i
			}
			top := sc.stack[len(sc.stack)-1]
			if (c == '}') != (top.open == '{') {
				return i
			}
			if top.state != stateAfter && !onlySpace(s[top.safeEnd:i]) {
				return i
			}
			sc.stack = sc.stack[:len(sc.stack)-1]
			sc.endValue(i + 1)
			if sc.done >= 0 {
				return i + 1
			}
		case ',':
			if len(sc.stack) == 0 {
				return i
			}
			top := &sc.stack[len(sc.stack)-1]
			if top.state != stateAfter {
				return i
			}
			if top.open == '{' {
				top.state = stateKey
			} else {
				top.state = stateValue
			}
		case ':':
			if len(sc.stack) == 0 {
				return i
			}
			top := &sc.stack[len(sc.stack)-1]
			if top.open != '{' || top.state != stateColon {
				return i
			}
			top.state = stateValue
		case '"':
			if len(sc.stack) > 0 {
				top := sc.stack[len(sc.stack)-1]
				if top.open == '{' && top.state != stateKey && top.state != stateValue {
					return i
				}
				if top.open == '[' && top.state != stateValue {
					return i
				}
			}
			sc.inString = true
		default:
			if !isLiteralStart(c) || !sc.valueAllowed() {
				return i
			}
			sc.scalarStart = i
		}
	}
	return len(s)
}

func (sc *scanner) valueAllowed() bool {
	if len(sc.stack) == 0 {
		return sc.done < 0
	}
	return sc.stack[len(sc.stack)-1].state == stateValue
}

// endString handles a closing quote: either an object key or a value.
func (sc *scanner) endString(end int) {
	if n := len(sc.stack); n > 0 {
		top := &sc.stack[n-1]
		if top.open == '{' && top.state == stateKey {
			top.state = stateColon
			return
		}
	}
	sc.endValue(end)
}

func (sc *scanner) endValue(end int) {
	n := len(sc.stack)
	if n == 0 {
		sc.done = end
		return
	}
	top := &sc.stack[n-1]
	top.state = stateAfter
	top.safeEnd = end
}

// close builds the repaired document for input cut at offset cut.
func (sc *scanner) close(cut int) string {
	s := sc.src
	if cut > len(s) {
		cut = len(s)
	}

	// A partially written element of an array is dropped as a whole.
	for i := 1; i < len(sc.stack); i++ {
		if sc.stack[i-1].open == '[' {
			return appendClosers(s[:sc.stack[i-1].safeEnd], sc.stack[:i])
		}
	}

	top := sc.stack[len(sc.stack)-1]
	var out string
	switch {
	case sc.inString && top.open == '{' && top.state == stateKey:
		out = s[:top.safeEnd]
	case sc.inString:
		end := cut
		if sc.escapeAt >= 0 && sc.escapeAt < end {
			end = sc.escapeAt
		}
		out = trimPartialRune(s[:end]) + `"`
	case sc.scalarStart >= 0:
		lit := s[sc.scalarStart:cut]
		switch {
		case json.Valid([]byte(lit)):
			out = s[:cut]
		case top.open == '{':
			out = s[:sc.scalarStart] + "null"
		default:
			out = s[:top.safeEnd]
		}
	case top.open == '{' && top.state == stateValue:
		out = strings.TrimRight(s[:cut], " \t\r\n") + "null"
	default:
		out = s[:top.safeEnd]
	}
	return appendClosers(out, sc.stack)
}

func appendClosers(out string, stack []frame) string {
	var b strings.Builder
	b.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].open == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

// trimPartialRune drops an incomplete trailing UTF-8 sequence.
func trimPartialRune(s string) string {
	for i := 0; i < utf8.UTFMax && len(s) > 0; i++ {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size > 1 {
			return s
		}
		s = s[:len(s)-1]
	}
	return s
}

func onlySpace(s string) bool {
	return strings.TrimSpace(s) == ""
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isLiteralStart(c byte) bool {
	return c == '-' || (c >= '0' && c <= '9') || c == 't' || c == 'f' || c == 'n'
}

func isLiteralByte(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		c == '.' || c == '+' || c == '-'
}
