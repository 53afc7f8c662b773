package threshold

import (
	"github.com/ivlev/satwatch/internal/profile"
	"github.com/ivlev/satwatch/internal/signal"
)

// Evaluate checks every present condition of the profile against the
// smoothed values of the latest filtered sample, never the raw ones.
// It returns true iff all present conditions hold.
//
// A profile with zero conditions evaluates to false by convention: an
// empty rule set knows nothing, so it must not produce a default-true
// alert. The result is level-triggered, recomputed from scratch each
// frame with no latching state.
func Evaluate(p profile.Profile, fs signal.FrameSample) bool {
	if len(p.Conditions) == 0 {
		return false
	}

	for _, c := range p.Conditions {
		v, ok := seriesValue(fs, c.Channel, c.Order)
		if !ok {
			return false
		}
		if c.Min != nil && v < *c.Min {
			return false
		}
		if c.Max != nil && v > *c.Max {
			return false
		}
	}
	return true
}

// seriesValue selects the smoothed series value for a channel and
// derivative order.
func seriesValue(fs signal.FrameSample, ch profile.Channel, order int) (float64, bool) {
	var s signal.Sample
	switch ch {
	case profile.ChannelHue:
		s = fs.Hue
	case profile.ChannelSaturation:
		s = fs.Saturation
	case profile.ChannelValue:
		s = fs.Value
	default:
		return 0, false
	}

	switch order {
	case 0:
		return s.Smooth, true
	case 1:
		return s.Deriv1, true
	case 2:
		return s.Deriv2, true
	default:
		return 0, false
	}
}
