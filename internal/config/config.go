package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Settings are the runtime-tunable pipeline knobs. The frame loop
// reads one consistent snapshot per frame via Holder, so a change
// takes effect on the next frame, never mid-computation.
type Settings struct {
	Margin        float64 `yaml:"margin" json:"margin"`                 // Inner-mask shrink, [0, 1)
	Lambda        float64 `yaml:"lambda" json:"lambda"`                 // Temporal-stability weight, >= 0
	Smoothing     float64 `yaml:"smoothing" json:"smoothing"`           // Shape blend factor s, (0, 1]
	Alpha         float64 `yaml:"alpha" json:"alpha"`                   // Decay factor, (0, 1]
	Window        int     `yaml:"window" json:"window"`                 // Base smoothing window W, >= 1
	ActiveProfile string  `yaml:"active_profile" json:"active_profile"` // Threshold profile name, may be empty
	FreezeMask    bool    `yaml:"freeze_mask" json:"freeze_mask"`       // Stop consuming new geometric evidence
}

// DefaultSettings returns the knobs used until the operator changes
// them.
func DefaultSettings() Settings {
	return Settings{
		Margin:    0.15,
		Lambda:    0.5,
		Smoothing: 0.3,
		Alpha:     0.05,
		Window:    5,
	}
}

// Validate rejects out-of-range knobs. Called at configuration time;
// the frame loop never sees an invalid snapshot.
func (s Settings) Validate() error {
	if s.Margin < 0 || s.Margin >= 1 {
		return fmt.Errorf("margin must be in [0, 1), got %g", s.Margin)
	}
	if s.Lambda < 0 {
		return fmt.Errorf("lambda must be >= 0, got %g", s.Lambda)
	}
	if s.Smoothing <= 0 || s.Smoothing > 1 {
		return fmt.Errorf("smoothing must be in (0, 1], got %g", s.Smoothing)
	}
	if s.Alpha <= 0 || s.Alpha > 1 {
		return fmt.Errorf("alpha must be in (0, 1], got %g", s.Alpha)
	}
	if s.Window < 1 {
		return fmt.Errorf("window must be >= 1, got %d", s.Window)
	}
	return nil
}

// Holder publishes settings snapshots. The web layer stores new
// snapshots; the frame loop loads exactly one per frame, so it can
// never observe a half-written update.
type Holder struct {
	v atomic.Pointer[Settings]
}

// NewHolder creates a holder with the given initial settings.
func NewHolder(s Settings) (*Holder, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	h := &Holder{}
	h.v.Store(&s)
	return h, nil
}

// Load returns the current snapshot by value.
func (h *Holder) Load() Settings {
	return *h.v.Load()
}

// Store validates and publishes a new snapshot.
func (h *Holder) Store(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	h.v.Store(&s)
	return nil
}

// Config is the startup configuration read from YAML; everything here
// is fixed for the lifetime of the process except Settings, which
// seeds the runtime Holder.
type Config struct {
	Listen string `yaml:"listen"`

	Source struct {
		Dir           string  `yaml:"dir"`
		FrameInterval float64 `yaml:"frame_interval"` // Seconds between frames
		MaxWidth      int     `yaml:"max_width"`      // Frames wider than this are downscaled
	} `yaml:"source"`

	Profiles string `yaml:"profiles"` // Path to the threshold-profile CSV
	Archive  string `yaml:"archive"`  // SQLite session archive, empty disables
	Finder   string `yaml:"finder"`   // Candidate finder variant
	LogLevel string `yaml:"log_level"`

	Settings Settings `yaml:"settings"`
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := Config{
		Listen:   ":8080",
		LogLevel: "info",
		Settings: DefaultSettings(),
	}
	cfg.Source.FrameInterval = 0.1 // 10 Hz analysis rate
	cfg.Source.MaxWidth = 640
	return cfg
}

// Load reads a YAML config file over the defaults and validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the full startup configuration.
func (c Config) Validate() error {
	if c.Source.FrameInterval <= 0 {
		return fmt.Errorf("source.frame_interval must be > 0, got %g", c.Source.FrameInterval)
	}
	if c.Source.MaxWidth < 0 {
		return fmt.Errorf("source.max_width must be >= 0, got %d", c.Source.MaxWidth)
	}
	return c.Settings.Validate()
}
