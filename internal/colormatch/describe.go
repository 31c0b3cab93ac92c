package colormatch

import "math"

// DescribeColor names the coarse colour family of hex ("black", "warm red",
// "skin tone", "gold", ...). The result only enriches prompts; no logic
// branches on it. Invalid input yields "unknown".
func DescribeColor(hex string) string {
	c, ok := parse(hex)
	if !ok {
		return "unknown"
	}
	h, s, l := c.Hsl()
	if math.IsNaN(h) {
		h = 0
	}

	switch {
	case l < 0.08:
		return "black"
	case l > 0.95:
		return "white"
	case s < 0.12:
		switch {
		case l < 0.35:
			return "dark gray"
		case l > 0.7:
			return "light gray"
		default:
			return "gray"
		}
	}

	switch {
	case h < 15 || h >= 345:
		switch {
		case l < 0.3:
			return "deep red"
		case l > 0.75:
			return "pink"
		default:
			return "warm red"
		}
	case h < 40:
		switch {
		case l < 0.4:
			return "brown"
		case l > 0.6:
			return "skin tone"
		default:
			return "orange"
		}
	case h < 55:
		switch {
		case l < 0.35:
			return "brown"
		case l < 0.7 && s > 0.4:
			return "gold"
		default:
			return "yellow"
		}
	case h < 70:
		if l < 0.35 {
			return "olive"
		}
		return "yellow"
	case h < 165:
		if l < 0.3 {
			return "dark green"
		}
		return "green"
	case h < 200:
		return "teal"
	case h < 250:
		if l < 0.3 {
			return "navy"
		}
		return "blue"
	case h < 290:
		return "purple"
	default:
		if l > 0.75 {
			return "pink"
		}
		return "magenta"
	}
}
