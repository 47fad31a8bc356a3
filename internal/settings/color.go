package settings

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ParseHexColor parses "#rrggbb" or "#rgb" (the '#' is optional) into an
// opaque color.
func ParseHexColor(hex string) (color.NRGBA, error) {
	digits := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(digits) == 3 {
		digits = string([]byte{digits[0], digits[0], digits[1], digits[1], digits[2], digits[2]})
	}
	if len(digits) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: must be 3 or 6 hex digits", hex)
	}
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// NormalizeHex returns hex in canonical lowercase "#rrggbb" form.
func NormalizeHex(hex string) (string, bool) {
	c, err := ParseHexColor(hex)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B), true
}

// MustColor parses hex, falling back to fallback when hex is malformed.
func MustColor(hex string, fallback color.NRGBA) color.NRGBA {
	c, err := ParseHexColor(hex)
	if err != nil {
		return fallback
	}
	return c
}
