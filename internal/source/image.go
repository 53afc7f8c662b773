package source

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/image/draw"
)

// ImageDirSource plays back a recorded run stored as an ordered
// directory of frame images. Timestamps are synthesized at a fixed
// interval from the playback start, so reprocessing a recording is
// deterministic.
type ImageDirSource struct {
	paths    []string
	interval time.Duration
	maxWidth int
	start    time.Time
	next     int
}

// NewImageDirSource lists the jpg/png files of dir in name order. A
// maxWidth > 0 downscales wider frames before they reach the pipeline.
func NewImageDirSource(dir string, interval time.Duration, maxWidth int) (*ImageDirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".jpg", ".jpeg", ".png":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	return &ImageDirSource{
		paths:    paths,
		interval: interval,
		maxWidth: maxWidth,
		start:    time.Now(),
	}, nil
}

// Len returns the number of frames in the recording.
func (s *ImageDirSource) Len() int {
	return len(s.paths)
}

// Next decodes the next frame. An unreadable file is reported as
// ErrFrameUnavailable and skipped on the following call; the end of
// the directory is io.EOF.
func (s *ImageDirSource) Next() (Frame, error) {
	if s.next >= len(s.paths) {
		return Frame{}, io.EOF
	}

	index := s.next
	path := s.paths[index]
	s.next++

	f, err := os.Open(path)
	if err != nil {
		return Frame{}, ErrFrameUnavailable
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return Frame{}, ErrFrameUnavailable
	}

	return Frame{
		Image:     downscale(img, s.maxWidth),
		Timestamp: s.start.Add(time.Duration(index) * s.interval),
		Index:     index,
	}, nil
}

func (s *ImageDirSource) Close() error {
	return nil
}

// downscale shrinks img to maxWidth preserving aspect ratio. Frames at
// or under the limit pass through untouched.
func downscale(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	if maxWidth <= 0 || bounds.Dx() <= maxWidth {
		return img
	}

	h := bounds.Dy() * maxWidth / bounds.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
