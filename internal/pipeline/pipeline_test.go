package pipeline

import (
	"context"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/satwatch/internal/config"
	"github.com/ivlev/satwatch/internal/profile"
	"github.com/ivlev/satwatch/internal/source"
	"github.com/ivlev/satwatch/internal/store"
	"github.com/ivlev/satwatch/internal/vision"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()

	holder, err := config.NewHolder(config.DefaultSettings())
	require.NoError(t, err)

	finder, err := vision.NewFinder("contrast")
	require.NoError(t, err)

	logger := testLogger()
	return NewMonitor(logger, holder, finder, profile.NewManager(logger), store.New())
}

// vesselFrame draws a filled bright-green ellipse on a dark background,
// the same silhouette the finder is built to pick up.
func vesselFrame(shape vision.Ellipse) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 240, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 240; x++ {
			if shape.Contains(float64(x), float64(y)) {
				img.Set(x, y, color.RGBA{R: 40, G: 200, B: 80, A: 255})
			} else {
				img.Set(x, y, color.RGBA{R: 20, G: 20, B: 20, A: 255})
			}
		}
	}
	return img
}

func blankFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 240, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 240; x++ {
			img.Set(x, y, color.RGBA{R: 20, G: 20, B: 20, A: 255})
		}
	}
	return img
}

var testShape = vision.Ellipse{Cx: 120, Cy: 120, A: 70, B: 50}

func frameAt(img image.Image, n int) source.Frame {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return source.Frame{
		Image:     img,
		Timestamp: base.Add(time.Duration(n) * 100 * time.Millisecond),
		Index:     n,
	}
}

func TestStepUnlocatedProducesNoRecord(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t)
	m.Step(frameAt(blankFrame(), 0))

	st := m.Status()
	assert.Equal(t, "unlocated", st.Tracking)
	assert.Equal(t, 0, m.Store().Len())
	assert.Nil(t, st.Shape)
}

func TestStepRequiresBaseline(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t)
	img := vesselFrame(testShape)

	m.Step(frameAt(img, 0))
	m.Step(frameAt(img, 1))

	st := m.Status()
	assert.Equal(t, "located", st.Tracking, "region should be located")
	require.NotNil(t, st.Shape)
	assert.False(t, st.Baseline)
	assert.Equal(t, 0, m.Store().Len(), "no records before a baseline exists")

	m.RequestBaseline()
	m.Step(frameAt(img, 2))

	st = m.Status()
	assert.True(t, st.Baseline)
	assert.Equal(t, 1, m.Store().Len(), "capture frame produces the first record")

	m.Step(frameAt(img, 3))
	assert.Equal(t, 2, m.Store().Len())

	last, ok := m.Store().Last()
	require.True(t, ok)
	assert.Equal(t, 3, last.Frame)
	assert.InDelta(t, 0, last.Sample.Hue.Smooth, 1.0, "static scene stays near the reference")
	assert.InDelta(t, 0, last.Sample.Value.Smooth, 0.05)
}

func TestStepDeterministicReplay(t *testing.T) {
	t.Parallel()

	run := func() []store.Record {
		m := newTestMonitor(t)
		img := vesselFrame(testShape)
		m.Step(frameAt(img, 0))
		m.RequestBaseline()
		for i := 1; i < 8; i++ {
			m.Step(frameAt(img, i))
		}
		return m.Store().All()
	}

	first := run()
	second := run()
	require.NotEmpty(t, first)
	assert.Equal(t, first, second, "replaying the same frames must reproduce the series")
}

func TestStepAlertFollowsActiveProfile(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t)

	path := filepath.Join(t.TempDir(), "profiles.csv")
	data := "profile,channel,order,min,max\n" +
		"always,value,0,-1,1\n" +
		"never,value,0,5,\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	require.NoError(t, m.Profiles().LoadCSV(path))

	img := vesselFrame(testShape)
	m.Step(frameAt(img, 0))
	m.RequestBaseline()
	m.Step(frameAt(img, 1))

	// No active profile: never alert
	m.Step(frameAt(img, 2))
	assert.False(t, m.Status().Alert)

	holder := m.settings
	s := holder.Load()
	s.ActiveProfile = "always"
	require.NoError(t, holder.Store(s))
	m.Step(frameAt(img, 3))
	assert.True(t, m.Status().Alert)

	s.ActiveProfile = "never"
	require.NoError(t, holder.Store(s))
	m.Step(frameAt(img, 4))
	assert.False(t, m.Status().Alert)

	records := m.Store().All()
	require.Len(t, records, 4)
	assert.True(t, records[2].Alert)
	assert.False(t, records[3].Alert)
}

func TestFreezeMaskReusesShape(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t)
	m.Step(frameAt(vesselFrame(testShape), 0))

	st := m.Status()
	require.NotNil(t, st.Shape)
	located := *st.Shape

	s := m.settings.Load()
	s.FreezeMask = true
	require.NoError(t, m.settings.Store(s))

	// The vessel moves, but the frozen mask must not follow it
	moved := testShape
	moved.Cx += 30
	m.Step(frameAt(vesselFrame(moved), 1))

	st = m.Status()
	assert.Equal(t, "tracking-only", st.Tracking)
	require.NotNil(t, st.Shape)
	assert.Equal(t, located, *st.Shape)
}

func TestResetBaselineStopsRecords(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t)
	img := vesselFrame(testShape)
	m.Step(frameAt(img, 0))
	m.RequestBaseline()
	m.Step(frameAt(img, 1))
	m.Step(frameAt(img, 2))
	require.Equal(t, 2, m.Store().Len())

	m.ResetBaseline()
	m.Step(frameAt(img, 3))

	assert.False(t, m.Status().Baseline)
	assert.Equal(t, 2, m.Store().Len(), "history is preserved but no longer grows")
}

type scriptedSource struct {
	frames []source.Frame
	next   int
	closed bool
}

func (s *scriptedSource) Next() (source.Frame, error) {
	if s.next >= len(s.frames) {
		return source.Frame{}, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

func (s *scriptedSource) Close() error {
	s.closed = true
	return nil
}

func TestRunPausesAtEndOfStream(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t)
	img := vesselFrame(testShape)
	src := &scriptedSource{frames: []source.Frame{frameAt(img, 0), frameAt(img, 1)}}
	m.SetSource(src, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for !m.Status().Paused {
		select {
		case <-deadline:
			t.Fatal("monitor never paused at end of stream")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	st := m.Status()
	assert.Equal(t, 2, st.Frame, "both frames were processed before the pause")
	assert.Equal(t, "located", st.Tracking)
}

func TestSetSourceClosesPrevious(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t)
	old := &scriptedSource{}
	m.SetSource(old, time.Millisecond)
	m.SetSource(&scriptedSource{}, time.Millisecond)
	assert.True(t, old.closed)
}
