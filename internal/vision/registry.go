package vision

import "fmt"

// NewFinder creates a candidate finder based on the specified variant
func NewFinder(variant string) (Finder, error) {
	switch variant {
	case "contrast", "":
		return NewContrastFinder(), nil
	case "hough":
		return nil, fmt.Errorf("hough-transform finder not yet implemented")
	default:
		return nil, fmt.Errorf("unknown finder variant: %s", variant)
	}
}
