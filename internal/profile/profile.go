package profile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Channel names one of the monitored color channels.
type Channel string

const (
	ChannelHue        Channel = "hue"
	ChannelSaturation Channel = "saturation"
	ChannelValue      Channel = "value"
)

// Condition bounds one smoothed channel series at a derivative order.
// Nil bounds are unconstrained on that side; presence is explicit,
// never encoded in a sentinel value.
type Condition struct {
	Channel Channel
	Order   int // 0 = smoothed signal, 1 = first derivative, 2 = second
	Min     *float64
	Max     *float64
}

// Profile is a named sparse set of conditions. Immutable once loaded.
type Profile struct {
	Name       string
	Conditions []Condition
}

// Manager loads threshold profiles from tabular data and serves them
// by name. Profiles are replaced wholesale on reload; individual
// profiles never mutate.
type Manager struct {
	logger   *logrus.Logger
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewManager creates an empty profile manager.
func NewManager(logger *logrus.Logger) *Manager {
	return &Manager{
		logger:   logger,
		profiles: make(map[string]Profile),
	}
}

// LoadCSV reads threshold profiles from a CSV file with the columns
// profile,channel,order,min,max, one row per condition, rows grouped
// into profiles by name. An empty min or max cell means unconstrained
// on that side.
func (m *Manager) LoadCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open profiles file: %w", err)
	}
	defer f.Close()

	profiles, err := parseCSV(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	m.mu.Lock()
	m.profiles = profiles
	m.mu.Unlock()

	m.logger.Infof("Loaded threshold profiles: %s", strings.Join(m.Names(), ", "))
	return nil
}

// Names returns the available profile names, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.profiles))
	for name := range m.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the profile with the given name.
func (m *Manager) Get(name string) (Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[name]
	return p, ok
}

func parseCSV(r io.Reader) (map[string]Profile, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header row: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"profile", "channel", "order"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	profiles := make(map[string]Profile)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		name := strings.TrimSpace(record[col["profile"]])
		if name == "" {
			return nil, fmt.Errorf("line %d: empty profile name", line)
		}

		cond, err := parseCondition(record, col)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		p := profiles[name]
		p.Name = name
		p.Conditions = append(p.Conditions, cond)
		profiles[name] = p
	}

	return profiles, nil
}

func parseCondition(record []string, col map[string]int) (Condition, error) {
	channel := Channel(strings.ToLower(strings.TrimSpace(record[col["channel"]])))
	switch channel {
	case ChannelHue, ChannelSaturation, ChannelValue:
	default:
		return Condition{}, fmt.Errorf("unknown channel %q", channel)
	}

	order, err := strconv.Atoi(strings.TrimSpace(record[col["order"]]))
	if err != nil || order < 0 || order > 2 {
		return Condition{}, fmt.Errorf("derivative order must be 0, 1 or 2, got %q", record[col["order"]])
	}

	cond := Condition{Channel: channel, Order: order}

	if cond.Min, err = parseBound(record, col, "min"); err != nil {
		return Condition{}, err
	}
	if cond.Max, err = parseBound(record, col, "max"); err != nil {
		return Condition{}, err
	}

	if cond.Min != nil && cond.Max != nil && *cond.Min > *cond.Max {
		return Condition{}, fmt.Errorf("min %g exceeds max %g", *cond.Min, *cond.Max)
	}
	return cond, nil
}

// parseBound reads an optional numeric cell; an absent column or empty
// cell means the bound is unconstrained.
func parseBound(record []string, col map[string]int, name string) (*float64, error) {
	idx, ok := col[name]
	if !ok || idx >= len(record) {
		return nil, nil
	}
	cell := strings.TrimSpace(record[idx])
	if cell == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s bound %q", name, cell)
	}
	return &v, nil
}
