package signal

import (
	"gonum.org/v1/gonum/stat"

	"github.com/ivlev/satwatch/internal/sampler"
)

// Sample is the per-channel fan-out produced for one frame: the raw
// relative value and every filtered stage derived from it.
type Sample struct {
	Raw    float64 `json:"raw"`    // Reference-relative channel value
	Decay  float64 `json:"decay"`  // Exponential decay smoothing
	Smooth float64 `json:"smooth"` // Sliding-window mean of the decay series
	Deriv1 float64 `json:"deriv1"` // Smoothed first derivative
	Deriv2 float64 `json:"deriv2"` // Smoothed second derivative
}

// FrameSample groups the three channel samples of one frame.
type FrameSample struct {
	Hue        Sample `json:"hue"`
	Saturation Sample `json:"saturation"`
	Value      Sample `json:"value"`
}

// Settings are the filter knobs, read once per frame. A change is
// never retroactive: history keeps the values that were in effect when
// it was computed.
type Settings struct {
	Alpha  float64 // Decay factor in (0,1]; 1 disables decay smoothing
	Window int     // Base window W >= 1; derivatives use 2W and 4W
}

// channelSeries is the append-only history of one channel. Parallel
// slices grow in lockstep so frame alignment is an invariant, not a
// convention. d1raw/d2raw hold the unsmoothed finite differences the
// smoothed outputs are computed from.
type channelSeries struct {
	raw    []float64
	decay  []float64
	smooth []float64
	d1raw  []float64
	d1     []float64
	d2raw  []float64
	d2     []float64
}

// push appends one raw relative value and computes the cascade:
// decay recurrence, window mean, then first and second backward
// differences over dt, each window-smoothed with 2W and 4W. Frames
// with less history than a window use the available prefix.
func (c *channelSeries) push(x, dt float64, s Settings) Sample {
	n := len(c.raw)

	d := x
	if n > 0 {
		d = s.Alpha*x + (1-s.Alpha)*c.decay[n-1]
	}
	c.raw = append(c.raw, x)
	c.decay = append(c.decay, d)

	smooth := tailMean(c.decay, s.Window)
	c.smooth = append(c.smooth, smooth)

	var d1raw float64
	if n > 0 && dt > 0 {
		d1raw = (smooth - c.smooth[n-1]) / dt
	}
	c.d1raw = append(c.d1raw, d1raw)
	d1 := tailMean(c.d1raw, 2*s.Window)
	c.d1 = append(c.d1, d1)

	var d2raw float64
	if n > 0 && dt > 0 {
		d2raw = (d1 - c.d1[n-1]) / dt
	}
	c.d2raw = append(c.d2raw, d2raw)
	d2 := tailMean(c.d2raw, 4*s.Window)
	c.d2 = append(c.d2, d2)

	return Sample{Raw: x, Decay: d, Smooth: smooth, Deriv1: d1, Deriv2: d2}
}

// tailMean averages the last window elements, or the whole series when
// it is still shorter than the window.
func tailMean(series []float64, window int) float64 {
	if window < 1 {
		window = 1
	}
	start := len(series) - window
	if start < 0 {
		start = 0
	}
	return stat.Mean(series[start:], nil)
}

// Filter runs the decay/window/derivative cascade for all three
// channels. It is driven by the single frame loop and holds the only
// mutable filter state.
type Filter struct {
	hue channelSeries
	sat channelSeries
	val channelSeries
	n   int
}

// NewFilter creates an empty filter.
func NewFilter() *Filter {
	return &Filter{}
}

// Push consumes one reference-relative sample together with the
// inter-frame time delta in seconds and returns the filtered fan-out
// for the frame.
func (f *Filter) Push(rel sampler.ChannelSample, dt float64, s Settings) FrameSample {
	out := FrameSample{
		Hue:        f.hue.push(rel.H, dt, s),
		Saturation: f.sat.push(rel.S, dt, s),
		Value:      f.val.push(rel.V, dt, s),
	}
	f.n++
	return out
}

// Len returns the number of frames pushed since the last reset.
func (f *Filter) Len() int {
	return f.n
}

// Reset discards all filter history. Used when the operator recaptures
// the baseline: the old series is relative to a reference that no
// longer exists.
func (f *Filter) Reset() {
	*f = Filter{}
}
