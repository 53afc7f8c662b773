package baseline

import (
	"math"
	"testing"

	"github.com/ivlev/satwatch/internal/sampler"
)

func TestRelativeOfWithoutCapture(t *testing.T) {
	b := New()

	if _, err := b.RelativeOf(sampler.ChannelSample{H: 10}); err != ErrNoBaseline {
		t.Errorf("expected ErrNoBaseline, got %v", err)
	}
	if b.Captured() {
		t.Error("baseline must start empty")
	}
}

func TestRelativeDifference(t *testing.T) {
	b := New()
	b.Capture(sampler.ChannelSample{H: 120, S: 0.5, V: 0.6})

	rel, err := b.RelativeOf(sampler.ChannelSample{H: 125, S: 0.45, V: 0.7})
	if err != nil {
		t.Fatalf("RelativeOf failed: %v", err)
	}

	if math.Abs(rel.H-5) > 1e-9 {
		t.Errorf("expected hue delta 5, got %.3f", rel.H)
	}
	if math.Abs(rel.S+0.05) > 1e-9 {
		t.Errorf("expected saturation delta -0.05, got %.3f", rel.S)
	}
	if math.Abs(rel.V-0.1) > 1e-9 {
		t.Errorf("expected value delta 0.1, got %.3f", rel.V)
	}
}

func TestHueDeltaWrapsAtSeam(t *testing.T) {
	b := New()
	b.Capture(sampler.ChannelSample{H: 355})

	rel, err := b.RelativeOf(sampler.ChannelSample{H: 5})
	if err != nil {
		t.Fatalf("RelativeOf failed: %v", err)
	}
	if math.Abs(rel.H-10) > 1e-9 {
		t.Errorf("expected wrapped hue delta 10, got %.3f", rel.H)
	}
}

func TestCaptureOverwrites(t *testing.T) {
	b := New()
	b.Capture(sampler.ChannelSample{V: 0.2})
	b.Capture(sampler.ChannelSample{V: 0.8})

	rel, err := b.RelativeOf(sampler.ChannelSample{V: 0.8})
	if err != nil {
		t.Fatalf("RelativeOf failed: %v", err)
	}
	if rel.V != 0 {
		t.Errorf("expected delta against the latest capture, got %.3f", rel.V)
	}
}

func TestReset(t *testing.T) {
	b := New()
	b.Capture(sampler.ChannelSample{})
	b.Reset()

	if b.Captured() {
		t.Error("reset must clear the reference")
	}
	if _, err := b.RelativeOf(sampler.ChannelSample{}); err != ErrNoBaseline {
		t.Errorf("expected ErrNoBaseline after reset, got %v", err)
	}
}
