package vision

import "math"

// Ellipse is a rotated ellipse in image coordinates.
// Invariant: A >= B > 0, Angle in degrees within [0, 180).
type Ellipse struct {
	Cx    float64 // Center X in pixels
	Cy    float64 // Center Y in pixels
	A     float64 // Semi-major axis in pixels
	B     float64 // Semi-minor axis in pixels
	Angle float64 // Major-axis angle in degrees
}

// Scale returns a copy with both semi-axes multiplied by f,
// keeping the same center and orientation.
func (e Ellipse) Scale(f float64) Ellipse {
	e.A *= f
	e.B *= f
	return e
}

// Contains reports whether the point (x, y) lies inside the ellipse.
func (e Ellipse) Contains(x, y float64) bool {
	rad := e.Angle * math.Pi / 180
	sin, cos := math.Sincos(rad)

	dx := x - e.Cx
	dy := y - e.Cy

	// Rotate into the ellipse frame
	u := dx*cos + dy*sin
	v := -dx*sin + dy*cos

	return (u*u)/(e.A*e.A)+(v*v)/(e.B*e.B) <= 1
}

// CenterDistance returns the Euclidean distance between the centers
// of two ellipses.
func (e Ellipse) CenterDistance(other Ellipse) float64 {
	return math.Hypot(e.Cx-other.Cx, e.Cy-other.Cy)
}

// AxisDelta returns the summed absolute change of both semi-axes
// relative to other.
func (e Ellipse) AxisDelta(other Ellipse) float64 {
	return math.Abs(e.A-other.A) + math.Abs(e.B-other.B)
}
