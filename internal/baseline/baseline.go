package baseline

import (
	"errors"
	"math"
	"sync"

	"github.com/ivlev/satwatch/internal/sampler"
)

// ErrNoBaseline is returned by RelativeOf before any capture. Callers
// suppress filtering and thresholding until a baseline exists; this is
// an expected startup state, not a fault.
var ErrNoBaseline = errors.New("no reference baseline captured")

// Baseline stores the reference sample captured before injection
// starts. Later samples are expressed relative to it as per-channel
// differences (sample minus baseline); the hue difference is wrapped
// to [-180, 180) so reference hues near the 0/360 seam behave.
type Baseline struct {
	mu  sync.Mutex
	ref *sampler.ChannelSample
}

// New creates an empty baseline.
func New() *Baseline {
	return &Baseline{}
}

// Capture stores sample as the reference, overwriting any prior one.
func (b *Baseline) Capture(sample sampler.ChannelSample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ref := sample
	b.ref = &ref
}

// Captured reports whether a reference exists.
func (b *Baseline) Captured() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ref != nil
}

// Reference returns the stored reference sample, if any.
func (b *Baseline) Reference() (sampler.ChannelSample, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ref == nil {
		return sampler.ChannelSample{}, false
	}
	return *b.ref, true
}

// Reset discards the reference, returning to the pre-capture state.
func (b *Baseline) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ref = nil
}

// RelativeOf returns sample expressed relative to the reference.
func (b *Baseline) RelativeOf(sample sampler.ChannelSample) (sampler.ChannelSample, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ref == nil {
		return sampler.ChannelSample{}, ErrNoBaseline
	}

	return sampler.ChannelSample{
		H: wrapHue(sample.H - b.ref.H),
		S: sample.S - b.ref.S,
		V: sample.V - b.ref.V,
	}, nil
}

// wrapHue maps a hue difference onto [-180, 180).
func wrapHue(d float64) float64 {
	return math.Mod(d+540, 360) - 180
}
