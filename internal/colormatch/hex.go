// Package colormatch maps colours and free-text product names onto a paint
// inventory: hex normalization, perceptual distance, closest-paint lookup,
// coarse colour naming, keyword-based categorization of shop listings and
// mix-recipe synthesis. Nothing in this package panics or returns an error
// for bad input; callers get a neutral fallback instead.
package colormatch

import (
	"errors"
	"regexp"
	"strings"
)

// NeutralHex is the placeholder colour used when nothing better is known.
const NeutralHex = "#808080"

// ErrInvalidHex is returned by NormalizeHex for anything that is not '#'
// followed by 3, 4, 5 or 6 hex digits.
var ErrInvalidHex = errors.New("invalid hex colour")

var (
	hexPattern       = regexp.MustCompile(`^#[0-9a-fA-F]{3,6}$`)
	embeddedHexRegex = regexp.MustCompile(`#([0-9a-fA-F]{3,6})(?:[^0-9a-fA-F]|$)`)
)

// NormalizeHex converts a short or odd-length hex colour to #RRGGBB:
//
//	#FFF    -> #FFFFFF (each digit doubled)
//	#F0A8   -> #FF00AA (RGBA shorthand, alpha dropped)
//	#A68A6  -> #A68A60 (padded with 0)
//	#d4af37 -> #D4AF37
func NormalizeHex(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !hexPattern.MatchString(s) {
		return "", ErrInvalidHex
	}
	digits := strings.ToUpper(s[1:])
	switch len(digits) {
	case 3, 4:
		var b strings.Builder
		b.WriteByte('#')
		for i := 0; i < 3; i++ {
			b.WriteByte(digits[i])
			b.WriteByte(digits[i])
		}
		return b.String(), nil
	case 5:
		return "#" + digits + "0", nil
	default:
		return "#" + digits, nil
	}
}

// ExtractHex finds the first hex colour embedded in free text (for example a
// chatty model reply such as "The colour is #d4af37.") and normalizes it.
func ExtractHex(text string) (string, bool) {
	m := embeddedHexRegex.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	hex, err := NormalizeHex("#" + m[1])
	if err != nil {
		return "", false
	}
	return hex, true
}

// IsHexLike reports whether s looks like a bare hex colour rather than a
// product name. Models sometimes put "#A1B2C3" where a paint name belongs.
func IsHexLike(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "#") {
		return hexPattern.MatchString(s)
	}
	// Without the '#', only a full six-digit code counts; "Bad" or "Cafe"
	// are plausible names.
	return len(s) == 6 && hexPattern.MatchString("#"+s)
}

// CoerceHex returns the normalized form of s, or fallback when s is not a
// usable hex colour.
func CoerceHex(s, fallback string) string {
	if hex, err := NormalizeHex(s); err == nil {
		return hex
	}
	if hex, ok := ExtractHex(s); ok {
		return hex
	}
	return fallback
}
