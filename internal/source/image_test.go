package source

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFrame(t *testing.T, dir, name string, w, h int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: 100, B: 50, A: 255})
		}
	}

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
}

func TestImageDirSourcePlayback(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "frame_000.png", 32, 24)
	writeFrame(t, dir, "frame_001.png", 32, 24)
	writeFrame(t, dir, "frame_002.png", 32, 24)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644)

	src, err := NewImageDirSource(dir, 100*time.Millisecond, 0)
	if err != nil {
		t.Fatalf("NewImageDirSource failed: %v", err)
	}
	defer src.Close()

	if src.Len() != 3 {
		t.Fatalf("expected 3 frames, got %d", src.Len())
	}

	var prev time.Time
	for i := 0; i < 3; i++ {
		frame, err := src.Next()
		if err != nil {
			t.Fatalf("Next %d failed: %v", i, err)
		}
		if frame.Index != i {
			t.Errorf("expected index %d, got %d", i, frame.Index)
		}
		if i > 0 && frame.Timestamp.Sub(prev) != 100*time.Millisecond {
			t.Errorf("expected fixed 100ms spacing, got %v", frame.Timestamp.Sub(prev))
		}
		prev = frame.Timestamp
	}

	if _, err := src.Next(); err != io.EOF {
		t.Errorf("expected io.EOF at end of recording, got %v", err)
	}
}

func TestImageDirSourceSkipsCorruptFrame(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "a.png", 16, 16)
	os.WriteFile(filepath.Join(dir, "b.png"), []byte("not a png"), 0644)
	writeFrame(t, dir, "c.png", 16, 16)

	src, err := NewImageDirSource(dir, 50*time.Millisecond, 0)
	if err != nil {
		t.Fatalf("NewImageDirSource failed: %v", err)
	}

	if _, err := src.Next(); err != nil {
		t.Fatalf("first frame should decode: %v", err)
	}
	if _, err := src.Next(); err != ErrFrameUnavailable {
		t.Fatalf("corrupt frame should be unavailable, got %v", err)
	}
	if frame, err := src.Next(); err != nil || frame.Index != 2 {
		t.Fatalf("playback should continue past the corrupt frame: %v", err)
	}
}

func TestDownscale(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "wide.png", 800, 400)

	src, err := NewImageDirSource(dir, 50*time.Millisecond, 200)
	if err != nil {
		t.Fatalf("NewImageDirSource failed: %v", err)
	}

	frame, err := src.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	bounds := frame.Image.Bounds()
	if bounds.Dx() != 200 || bounds.Dy() != 100 {
		t.Errorf("expected 200x100 after downscale, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}
