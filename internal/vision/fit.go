package vision

import (
	"errors"
	"image"
	"math"

	"gonum.org/v1/gonum/mat"
)

var errDegenerateFit = errors.New("degenerate conic fit")

// maxFitPoints caps the number of contour points fed into the solver.
// Larger contours are subsampled with a fixed stride so the fit stays
// deterministic.
const maxFitPoints = 400

// fitEllipse fits an ellipse to contour points with an algebraic
// least-squares conic fit: a·x² + b·xy + c·y² + d·x + e·y = 1 solved
// via QR, then converted to center/axes/angle form. The returned score
// is the mean absolute conic residual over the points (lower = better
// geometric fit).
func fitEllipse(points []image.Point) (Ellipse, float64, error) {
	if len(points) < 6 {
		return Ellipse{}, 0, errDegenerateFit
	}

	pts := points
	if len(pts) > maxFitPoints {
		stride := (len(pts) + maxFitPoints - 1) / maxFitPoints
		sub := make([]image.Point, 0, maxFitPoints)
		for i := 0; i < len(pts); i += stride {
			sub = append(sub, pts[i])
		}
		pts = sub
	}

	m := mat.NewDense(len(pts), 5, nil)
	rhs := mat.NewVecDense(len(pts), nil)
	for i, p := range pts {
		x := float64(p.X)
		y := float64(p.Y)
		m.SetRow(i, []float64{x * x, x * y, y * y, x, y})
		rhs.SetVec(i, 1)
	}

	var qr mat.QR
	qr.Factorize(m)

	var theta mat.VecDense
	if err := qr.SolveVecTo(&theta, false, rhs); err != nil {
		return Ellipse{}, 0, errDegenerateFit
	}

	a := theta.AtVec(0)
	b := theta.AtVec(1)
	c := theta.AtVec(2)
	d := theta.AtVec(3)
	e := theta.AtVec(4)
	f := -1.0

	el, err := conicToEllipse(a, b, c, d, e, f)
	if err != nil {
		return Ellipse{}, 0, err
	}

	return el, conicResidual(a, b, c, d, e, f, points), nil
}

// conicToEllipse converts general conic coefficients to center/axes/
// angle form. Fails when the conic is not a real ellipse.
func conicToEllipse(a, b, c, d, e, f float64) (Ellipse, error) {
	disc := b*b - 4*a*c
	if disc >= 0 {
		// Parabola or hyperbola
		return Ellipse{}, errDegenerateFit
	}

	cx := (2*c*d - b*e) / disc
	cy := (2*a*e - b*d) / disc

	// Determinant of the full 3x3 conic matrix
	detQ := a*(c*f-e*e/4) - (b/2)*(b*f/2-e*d/4) + (d/2)*(b*e/4-c*d/2)
	detA := a*c - b*b/4

	// Eigenvalues of the quadratic part [[a, b/2], [b/2, c]]
	tr := a + c
	gap := math.Hypot(a-c, b)
	lmin := (tr - gap) / 2
	lmax := (tr + gap) / 2

	k := -detQ / detA
	if lmin == 0 || lmax == 0 || k/lmin <= 0 || k/lmax <= 0 {
		return Ellipse{}, errDegenerateFit
	}

	// Smaller eigenvalue corresponds to the longer axis
	major := math.Sqrt(k / lmin)
	minor := math.Sqrt(k / lmax)

	var angle float64
	if math.Abs(b) < 1e-12 {
		if a > c {
			angle = 90
		}
	} else {
		// Eigenvector of lmin gives the major-axis direction
		angle = math.Atan2(lmin-a, b/2) * 180 / math.Pi
	}
	angle = math.Mod(angle+180, 180)

	return Ellipse{Cx: cx, Cy: cy, A: major, B: minor, Angle: angle}, nil
}

// conicResidual computes the mean absolute algebraic residual of the
// conic over all contour points, with the coefficient vector
// normalised so scores are comparable between candidates.
func conicResidual(a, b, c, d, e, f float64, points []image.Point) float64 {
	norm := math.Sqrt(a*a + b*b + c*c + d*d + e*e + f*f)
	if norm == 0 {
		return math.Inf(1)
	}

	sum := 0.0
	for _, p := range points {
		x := float64(p.X)
		y := float64(p.Y)
		sum += math.Abs(a*x*x + b*x*y + c*y*y + d*x + e*y + f)
	}
	return sum / (norm * float64(len(points)))
}
