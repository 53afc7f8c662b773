package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ivlev/satwatch/internal/baseline"
	"github.com/ivlev/satwatch/internal/config"
	"github.com/ivlev/satwatch/internal/profile"
	"github.com/ivlev/satwatch/internal/sampler"
	"github.com/ivlev/satwatch/internal/signal"
	"github.com/ivlev/satwatch/internal/source"
	"github.com/ivlev/satwatch/internal/store"
	"github.com/ivlev/satwatch/internal/threshold"
	"github.com/ivlev/satwatch/internal/track"
	"github.com/ivlev/satwatch/internal/vision"
)

// Monitor drives the per-frame cycle: locate candidates, stabilize the
// accepted shape, sample the inner mask, express the sample relative
// to the baseline, run the filter cascade and evaluate the active
// threshold profile. All stages run synchronously inside Step; the
// web layer only flips knobs and reads snapshots.
type Monitor struct {
	logger   *logrus.Logger
	settings *config.Holder
	finder   vision.Finder
	profiles *profile.Manager
	series   *store.Store

	tracker *track.Tracker
	ref     *baseline.Baseline
	filter  *signal.Filter

	mu          sync.Mutex
	src         source.FrameSource
	interval    time.Duration
	paused      bool
	frameIndex  int
	lastStatus  track.Status
	lastTime    time.Time
	haveLast    bool
	captureNext bool
	alert       bool
}

// Status is a read-only snapshot of the monitor for the web layer.
type Status struct {
	Paused    bool            `json:"paused"`
	Tracking  string          `json:"tracking"`
	Frame     int             `json:"frame"`
	Alert     bool            `json:"alert"`
	Baseline  bool            `json:"baseline"`
	Records   int             `json:"records"`
	Shape     *vision.Ellipse `json:"shape,omitempty"`
	InnerMask *vision.Ellipse `json:"inner_mask,omitempty"`
}

// NewMonitor wires the pipeline stages together. The monitor starts
// without a frame source and paused-equivalent: Run idles until
// SetSource is called.
func NewMonitor(logger *logrus.Logger, settings *config.Holder, finder vision.Finder, profiles *profile.Manager, series *store.Store) *Monitor {
	return &Monitor{
		logger:   logger,
		settings: settings,
		finder:   finder,
		profiles: profiles,
		series:   series,
		tracker:  track.NewTracker(),
		ref:      baseline.New(),
		filter:   signal.NewFilter(),
	}
}

// Store exposes the time-series log for read-only consumers.
func (m *Monitor) Store() *store.Store {
	return m.series
}

// Profiles exposes the threshold-profile manager.
func (m *Monitor) Profiles() *profile.Manager {
	return m.profiles
}

// SetSource atomically swaps the frame source. Tracker, baseline and
// recorded history carry over untouched; only the stream changes.
func (m *Monitor) SetSource(src source.FrameSource, interval time.Duration) {
	m.mu.Lock()
	old := m.src
	m.src = src
	m.interval = interval
	m.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			m.logger.Warnf("Failed to close previous frame source: %v", err)
		}
	}
}

// Pause halts the frame cycle, preserving all accumulated state.
func (m *Monitor) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
	m.logger.Info("Analysis paused")
}

// Resume restarts the frame cycle.
func (m *Monitor) Resume() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
	m.logger.Info("Analysis resumed")
}

// RequestBaseline asks the monitor to capture the reference from the
// next located frame. The capture resets the filter history: the old
// series was relative to a reference that no longer exists.
func (m *Monitor) RequestBaseline() {
	m.mu.Lock()
	m.captureNext = true
	m.mu.Unlock()
	m.logger.Info("Baseline capture requested for the next located frame")
}

// ResetBaseline discards the reference and the filter history,
// returning to the pre-capture startup state.
func (m *Monitor) ResetBaseline() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ref.Reset()
	m.filter.Reset()
	m.haveLast = false
	m.logger.Info("Baseline reset")
}

// Status returns a consistent snapshot for the web layer.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		Paused:   m.paused,
		Tracking: m.lastStatus.String(),
		Frame:    m.frameIndex,
		Alert:    m.alert,
		Baseline: m.ref.Captured(),
		Records:  m.series.Len(),
	}

	if accepted, ok := m.tracker.Current(); ok {
		shape := accepted.Shape
		inner := shape.Scale(1 - m.settings.Load().Margin)
		st.Shape = &shape
		st.InnerMask = &inner
	}
	return st
}

// Run drives the frame cycle until the context is cancelled. End of a
// recorded stream pauses the monitor without discarding history;
// transient frame dropouts are skipped.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		m.mu.Lock()
		src := m.src
		interval := m.interval
		paused := m.paused
		m.mu.Unlock()

		if interval <= 0 {
			interval = 100 * time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		if paused || src == nil {
			continue
		}

		frame, err := src.Next()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			m.logger.Info("Frame source exhausted, pausing")
			m.Pause()
			continue
		case errors.Is(err, source.ErrFrameUnavailable):
			m.logger.Debug("Frame unavailable, skipping")
			continue
		default:
			m.logger.Warnf("Frame source error: %v", err)
			continue
		}

		m.mu.Lock()
		stale := m.src != src
		m.mu.Unlock()
		if stale {
			// The source was swapped while this frame was in flight
			continue
		}

		m.Step(frame)
	}
}

// Step processes one frame through every stage. It is the only writer
// of tracker, baseline, filter and store state.
func (m *Monitor) Step(frame source.Frame) {
	snap := m.settings.Load()

	m.mu.Lock()
	defer m.mu.Unlock()

	index := m.frameIndex
	m.frameIndex++

	var candidates []vision.Candidate
	if !snap.FreezeMask {
		var err error
		candidates, err = m.finder.Find(frame.Image)
		if err != nil {
			m.logger.Warnf("Candidate finder failed on frame %d: %v", index, err)
			candidates = nil
		}
	}

	accepted, status := m.tracker.Update(index, candidates, track.Config{
		Lambda:       snap.Lambda,
		Smoothing:    snap.Smoothing,
		CenterWeight: 1.0,
		AxisWeight:   0.5,
	})
	m.lastStatus = status

	if status == track.StatusUnlocated {
		// No region has ever been found; nothing to sample
		m.alert = false
		return
	}

	sample, err := sampler.Sample(frame.Image, accepted.Shape, snap.Margin)
	if err != nil {
		m.logger.Debugf("Frame %d: %v", index, err)
		return
	}

	if m.captureNext {
		m.ref.Capture(sample)
		m.filter.Reset()
		m.haveLast = false
		m.captureNext = false
		m.logger.Infof("Baseline captured at frame %d: h=%.2f s=%.3f v=%.3f",
			index, sample.H, sample.S, sample.V)
	}

	rel, err := m.ref.RelativeOf(sample)
	if err != nil {
		// No baseline yet: an expected startup state, downstream stays off
		return
	}

	var dt float64
	if m.haveLast {
		dt = frame.Timestamp.Sub(m.lastTime).Seconds()
	}
	m.lastTime = frame.Timestamp
	m.haveLast = true

	filtered := m.filter.Push(rel, dt, signal.Settings{
		Alpha:  snap.Alpha,
		Window: snap.Window,
	})

	alert := false
	if snap.ActiveProfile != "" {
		if p, ok := m.profiles.Get(snap.ActiveProfile); ok {
			alert = threshold.Evaluate(p, filtered)
		} else {
			m.logger.Debugf("Active profile %q not loaded", snap.ActiveProfile)
		}
	}
	if alert && !m.alert {
		m.logger.Warnf("Threshold profile %q satisfied at frame %d", snap.ActiveProfile, index)
	}
	m.alert = alert

	m.series.Append(store.Record{
		Frame:     index,
		Timestamp: frame.Timestamp,
		Status:    status,
		Shape:     accepted.Shape,
		Sample:    filtered,
		Alert:     alert,
	})
}
