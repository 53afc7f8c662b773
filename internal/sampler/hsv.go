package sampler

import (
	"image/color"
	"math"
)

// rgbToHSV converts a color to HSV with hue in degrees [0, 360) and
// saturation/value in [0, 1].
func rgbToHSV(c color.Color) (h, s, v float64) {
	r16, g16, b16, _ := c.RGBA()
	r := float64(r16) / 65535
	g := float64(g16) / 65535
	b := float64(b16) / 65535

	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min

	v = max
	if max > 0 {
		s = delta / max
	}

	if delta == 0 {
		return 0, s, v
	}

	switch max {
	case r:
		h = 60 * math.Mod((g-b)/delta, 6)
	case g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}

	if h < 0 {
		h += 360
	}
	return h, s, v
}
