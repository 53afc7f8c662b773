package vision

import (
	"image"
	"image/color"
	"math"
	"sort"
)

// Candidate is one proposed region-of-interest fit for a frame.
type Candidate struct {
	Shape Ellipse
	Score float64 // Mean fit residual, lower = better
}

// Finder proposes ellipse candidates for a single frame. A frame with
// no usable contour yields an empty slice, not an error.
type Finder interface {
	Find(img image.Image) ([]Candidate, error)
}

// ContrastFinder locates the container rim using Sobel edge detection,
// morphological dilation and connected-component extraction, then fits
// an ellipse to each sufficiently large contour.
type ContrastFinder struct {
	MinContourArea int     // Minimum bounding-box area in pixels²
	MinPoints      int     // Minimum contour points for a fit
	EdgeThreshold  float64 // Gradient magnitude threshold
	MinAxisRatio   float64 // Reject contours flatter than this b/a
}

// NewContrastFinder creates a finder with default settings tuned for a
// container rim filling a meaningful part of the frame.
func NewContrastFinder() *ContrastFinder {
	return &ContrastFinder{
		MinContourArea: 900, // ~30x30 pixels minimum
		MinPoints:      24,
		EdgeThreshold:  40.0,
		MinAxisRatio:   0.25,
	}
}

// Find runs the edge pipeline and returns candidates sorted by score,
// best fit first.
func (f *ContrastFinder) Find(img image.Image) ([]Candidate, error) {
	gray := toGrayscale(img)
	edges := sobelEdges(gray, f.EdgeThreshold)
	putGray(gray)
	dilated := dilate(edges, 3, 1)
	putGray(edges)
	contours := findContours(dilated)
	putGray(dilated)

	var out []Candidate
	for _, contour := range contours {
		area := contour.bounds.Dx() * contour.bounds.Dy()
		if area < f.MinContourArea || len(contour.points) < f.MinPoints {
			continue
		}

		el, score, err := fitEllipse(contour.points)
		if err != nil {
			continue
		}
		if el.A <= 0 || el.B <= 0 || el.B/el.A < f.MinAxisRatio {
			continue
		}
		if !inBounds(el, img.Bounds()) {
			continue
		}

		out = append(out, Candidate{Shape: el, Score: score})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out, nil
}

// inBounds rejects fits whose center falls outside the frame or whose
// axes exceed the frame diagonal, which happens on noise contours.
func inBounds(e Ellipse, bounds image.Rectangle) bool {
	if e.Cx < float64(bounds.Min.X) || e.Cx >= float64(bounds.Max.X) {
		return false
	}
	if e.Cy < float64(bounds.Min.Y) || e.Cy >= float64(bounds.Max.Y) {
		return false
	}
	diag := math.Hypot(float64(bounds.Dx()), float64(bounds.Dy()))
	return e.A <= diag
}

// toGrayscale converts an image to grayscale.
func toGrayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := getGray(bounds)

	if src, ok := img.(*image.Gray); ok && src.Stride == gray.Stride {
		copy(gray.Pix, src.Pix)
		return gray
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}

	return gray
}

// sobelEdges applies the Sobel operator and thresholds the gradient
// magnitude into a binary edge map.
func sobelEdges(gray *image.Gray, threshold float64) *image.Gray {
	bounds := gray.Bounds()
	edges := getGray(bounds)

	gx := [][]int{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	gy := [][]int{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			var sumX, sumY float64

			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					pixel := float64(gray.GrayAt(x+kx, y+ky).Y)
					sumX += pixel * float64(gx[ky+1][kx+1])
					sumY += pixel * float64(gy[ky+1][kx+1])
				}
			}

			magnitude := math.Sqrt(sumX*sumX + sumY*sumY)

			if magnitude > threshold {
				edges.SetGray(x, y, color.Gray{Y: 255})
			} else {
				edges.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}

	return edges
}

// dilate performs morphological dilation to close small gaps in the
// rim contour.
func dilate(img *image.Gray, kernelSize, iterations int) *image.Gray {
	bounds := img.Bounds()
	result := getGray(bounds)
	copy(result.Pix, img.Pix)

	half := kernelSize / 2

	for iter := 0; iter < iterations; iter++ {
		temp := getGray(bounds)

		for y := bounds.Min.Y + half; y < bounds.Max.Y-half; y++ {
			for x := bounds.Min.X + half; x < bounds.Max.X-half; x++ {
				maxVal := uint8(0)

				for ky := -half; ky <= half; ky++ {
					for kx := -half; kx <= half; kx++ {
						val := result.GrayAt(x+kx, y+ky).Y
						if val > maxVal {
							maxVal = val
						}
					}
				}

				temp.SetGray(x, y, color.Gray{Y: maxVal})
			}
		}

		putGray(result)
		result = temp
	}

	return result
}

type contour struct {
	points []image.Point
	bounds image.Rectangle
}

// findContours extracts connected white components together with their
// member points and bounding rectangles.
func findContours(img *image.Gray) []contour {
	bounds := img.Bounds()
	visited := make([][]bool, bounds.Dy())
	for i := range visited {
		visited[i] = make([]bool, bounds.Dx())
	}

	var contours []contour

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.GrayAt(x, y).Y > 128 && !visited[y-bounds.Min.Y][x-bounds.Min.X] {
				contours = append(contours, floodFill(img, visited, x, y))
			}
		}
	}

	return contours
}

// floodFill collects the component containing (startX, startY) and
// returns its points plus bounding rectangle.
func floodFill(img *image.Gray, visited [][]bool, startX, startY int) contour {
	bounds := img.Bounds()
	minX, minY := startX, startY
	maxX, maxY := startX, startY

	var points []image.Point
	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x, y := p.X, p.Y

		if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}

		if visited[y-bounds.Min.Y][x-bounds.Min.X] || img.GrayAt(x, y).Y <= 128 {
			continue
		}

		visited[y-bounds.Min.Y][x-bounds.Min.X] = true
		points = append(points, p)

		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}

		stack = append(stack,
			image.Point{X: x + 1, Y: y},
			image.Point{X: x - 1, Y: y},
			image.Point{X: x, Y: y + 1},
			image.Point{X: x, Y: y - 1},
		)
	}

	return contour{points: points, bounds: image.Rect(minX, minY, maxX+1, maxY+1)}
}
