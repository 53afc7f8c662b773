package track

import (
	"math"

	"github.com/ivlev/satwatch/internal/vision"
)

// AcceptedShape is the ellipse currently trusted as the region of
// interest, together with the frame index it was accepted at.
type AcceptedShape struct {
	Shape      vision.Ellipse
	FrameIndex int
}

// Status describes what evidence backed the latest update.
type Status int

const (
	// StatusUnlocated means no shape has ever been accepted.
	StatusUnlocated Status = iota
	// StatusLocated means the accepted shape was refreshed from a candidate.
	StatusLocated
	// StatusTrackingOnly means no candidates arrived and the previous
	// shape was reused without new geometric evidence.
	StatusTrackingOnly
)

func (s Status) String() string {
	switch s {
	case StatusLocated:
		return "located"
	case StatusTrackingOnly:
		return "tracking-only"
	default:
		return "unlocated"
	}
}

// Config holds the per-update tracking knobs. A snapshot is passed
// into every Update so a knob change takes effect on the next frame.
type Config struct {
	Lambda       float64 // Temporal-stability weight on the distance term
	Smoothing    float64 // Blend factor s in (0,1]; 1 snaps to the candidate
	CenterWeight float64 // Weight of center displacement in the distance
	AxisWeight   float64 // Weight of axis-length change in the distance
}

// DefaultConfig returns the tracking knobs used until the operator
// changes them.
func DefaultConfig() Config {
	return Config{
		Lambda:       0.5,
		Smoothing:    0.3,
		CenterWeight: 1.0,
		AxisWeight:   0.5,
	}
}

// Tracker owns the single live AcceptedShape and replaces it on each
// update. It is not safe for concurrent use; the frame loop is the
// only caller.
type Tracker struct {
	previous *AcceptedShape
}

// NewTracker creates a tracker in the unlocated state.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Current returns the live accepted shape, if any.
func (t *Tracker) Current() (AcceptedShape, bool) {
	if t.previous == nil {
		return AcceptedShape{}, false
	}
	return *t.previous, true
}

// Reset discards the accepted shape, returning the tracker to the
// unlocated bootstrap state.
func (t *Tracker) Reset() {
	t.previous = nil
}

// Update scores this frame's candidates against the previous accepted
// shape and produces the next accepted shape.
//
// Bootstrap (no previous shape) accepts the best-fit candidate
// outright. Otherwise the candidate minimising
// fit + lambda*distance(candidate, previous) wins and is blended with
// the previous shape by the smoothing factor, so a single outlier can
// move the accepted shape by at most the fraction s of the distance to
// it. With no candidates the previous shape is reused unchanged.
func (t *Tracker) Update(frameIndex int, candidates []vision.Candidate, cfg Config) (AcceptedShape, Status) {
	if len(candidates) == 0 {
		if t.previous == nil {
			return AcceptedShape{}, StatusUnlocated
		}
		return *t.previous, StatusTrackingOnly
	}

	if t.previous == nil {
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.Score < best.Score {
				best = c
			}
		}
		accepted := AcceptedShape{Shape: best.Shape, FrameIndex: frameIndex}
		t.previous = &accepted
		return accepted, StatusLocated
	}

	prev := t.previous.Shape
	best := candidates[0]
	bestScore := t.combinedScore(best, prev, cfg)
	for _, c := range candidates[1:] {
		if s := t.combinedScore(c, prev, cfg); s < bestScore {
			best = c
			bestScore = s
		}
	}

	blended := blend(prev, best.Shape, cfg.Smoothing)
	accepted := AcceptedShape{Shape: blended, FrameIndex: frameIndex}
	t.previous = &accepted
	return accepted, StatusLocated
}

func (t *Tracker) combinedScore(c vision.Candidate, prev vision.Ellipse, cfg Config) float64 {
	distance := cfg.CenterWeight*c.Shape.CenterDistance(prev) + cfg.AxisWeight*c.Shape.AxisDelta(prev)
	return c.Score + cfg.Lambda*distance
}

// blend interpolates component-wise from prev towards next by factor
// s. Center and axes use plain lerp; the angle takes the shortest path
// on the 180 degree period of an ellipse orientation.
func blend(prev, next vision.Ellipse, s float64) vision.Ellipse {
	return vision.Ellipse{
		Cx:    lerp(prev.Cx, next.Cx, s),
		Cy:    lerp(prev.Cy, next.Cy, s),
		A:     lerp(prev.A, next.A, s),
		B:     lerp(prev.B, next.B, s),
		Angle: blendAngle(prev.Angle, next.Angle, s),
	}
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// blendAngle interpolates two orientations on the half-circle,
// keeping the result within [0, 180).
func blendAngle(prev, next, s float64) float64 {
	diff := math.Mod(next-prev+270, 180) - 90
	return math.Mod(prev+diff*s+180, 180)
}
