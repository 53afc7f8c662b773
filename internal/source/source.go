package source

import (
	"errors"
	"image"
	"time"
)

// Frame is one color frame plus a monotonic timestamp.
type Frame struct {
	Image     image.Image
	Timestamp time.Time
	Index     int
}

// ErrFrameUnavailable signals a transient hiccup (camera dropout,
// unreadable file). The caller skips the frame and tries again without
// touching any pipeline state.
var ErrFrameUnavailable = errors.New("frame unavailable")

// FrameSource yields frames in order. Next returns io.EOF when a
// recorded stream is exhausted and ErrFrameUnavailable on a transient
// failure; both are expected conditions, not faults.
type FrameSource interface {
	Next() (Frame, error)
	Close() error
}
