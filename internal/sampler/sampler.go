package sampler

import (
	"errors"
	"image"
	"math"

	"github.com/ivlev/satwatch/internal/vision"
)

// ChannelSample holds the mean hue/saturation/value over the sampled
// region for one frame. Hue is in degrees [0, 360); saturation and
// value are in [0, 1]. Immutable once produced.
type ChannelSample struct {
	H float64 `json:"h"`
	S float64 `json:"s"`
	V float64 `json:"v"`
}

// ErrEmptyMask is returned when the inner mask covers no pixels of the
// frame, e.g. a tiny shape or one sitting at the frame border.
var ErrEmptyMask = errors.New("inner mask covers no pixels")

// Sample computes the mean HSV over the pixels inside the inner mask:
// the accepted shape shrunk by margin about its own center. The outer
// boundary exists for display only; rim pixels are noisy, so sampling
// never touches them. Hue is averaged circularly so red tones around
// the 0/360 wrap do not cancel out.
//
// Pure function of its inputs, no retained state.
func Sample(img image.Image, shape vision.Ellipse, margin float64) (ChannelSample, error) {
	inner := shape.Scale(1 - margin)

	// Bounding box of the inner mask, clipped to the frame
	box := image.Rect(
		int(math.Floor(inner.Cx-inner.A)),
		int(math.Floor(inner.Cy-inner.A)),
		int(math.Ceil(inner.Cx+inner.A))+1,
		int(math.Ceil(inner.Cy+inner.A))+1,
	).Intersect(img.Bounds())

	var sumSin, sumCos, sumS, sumV float64
	count := 0

	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			if !inner.Contains(float64(x), float64(y)) {
				continue
			}
			h, s, v := rgbToHSV(img.At(x, y))
			rad := h * math.Pi / 180
			sumSin += math.Sin(rad)
			sumCos += math.Cos(rad)
			sumS += s
			sumV += v
			count++
		}
	}

	if count == 0 {
		return ChannelSample{}, ErrEmptyMask
	}

	hue := math.Atan2(sumSin, sumCos) * 180 / math.Pi
	if hue < 0 {
		hue += 360
	}

	return ChannelSample{
		H: hue,
		S: sumS / float64(count),
		V: sumV / float64(count),
	}, nil
}
