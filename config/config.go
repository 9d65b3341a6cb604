// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/chemotaxis/larva"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Arena      ArenaConfig      `yaml:"arena"`
	Larva      LarvaConfig      `yaml:"larva"`
	Population PopulationConfig `yaml:"population"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds clock and scheduling parameters.
type SimulationConfig struct {
	DT                float64 `yaml:"dt"`                 // Seconds per tick
	MaxTicks          int     `yaml:"max_ticks"`          // 0 = unlimited
	Seed              int64   `yaml:"seed"`               // 0 = time-based
	Workers           int     `yaml:"workers"`            // 0 = GOMAXPROCS
	ParallelThreshold int     `yaml:"parallel_threshold"` // Larva count at which updates fan out
}

// ArenaConfig holds arena geometry and concentration field parameters.
type ArenaConfig struct {
	Length float64 `yaml:"length"` // Extent along x (mm)
	Width  float64 `yaml:"width"`  // Extent along y (mm)

	Field    string  `yaml:"field"`    // "gaussian", "exponential", "uniform" or "noisy"
	SourceX  float64 `yaml:"source_x"` // Odor source location
	SourceY  float64 `yaml:"source_y"`
	Sigma    float64 `yaml:"sigma"`    // Gaussian spread (mm)
	Peak     float64 `yaml:"peak"`     // Concentration added at the source
	Baseline float64 `yaml:"baseline"` // Concentration floor everywhere
	Slope    float64 `yaml:"slope"`    // Exponential field: d ln(C)/dx

	NoiseScale     float64 `yaml:"noise_scale"`     // Noise frequency (1/mm)
	NoiseAmplitude float64 `yaml:"noise_amplitude"` // Relative modulation [0, 1)
}

// LarvaConfig mirrors the larva constructor options.
type LarvaConfig struct {
	HeadLength    float64 `yaml:"head_length"`
	ThetaMax      float64 `yaml:"theta_max"`
	ThetaMin      float64 `yaml:"theta_min"`
	CastSpeed     float64 `yaml:"cast_speed"`
	WVThetaMax    float64 `yaml:"wv_theta_max"`
	WVCastSpeed   float64 `yaml:"wv_cast_speed"`
	VFwd          float64 `yaml:"v_fwd"`
	TMinRun       float64 `yaml:"t_min_run"`
	RunTermBase   float64 `yaml:"run_term_base"`
	CastTermBase  float64 `yaml:"cast_term_base"`
	WVTermBase    float64 `yaml:"wv_term_base"`
	WVCastResume  float64 `yaml:"wv_cast_resume"`
	RWVCastResume float64 `yaml:"r_wv_cast_resume"`
	TRunTerm      float64 `yaml:"t_run_term"`
	TCastTerm     float64 `yaml:"t_cast_term"`
	TWVLongAvg    float64 `yaml:"t_wv_long_avg"`
	TWVShortAvg   float64 `yaml:"t_wv_short_avg"`
	KWVMult       float64 `yaml:"k_wv_mult"`
	Verbose       bool    `yaml:"verbose"`
}

// PopulationConfig holds spawning parameters.
type PopulationConfig struct {
	Count       int     `yaml:"count"`        // Number of independent larvae
	SpawnX      float64 `yaml:"spawn_x"`      // Center of the spawn disc
	SpawnY      float64 `yaml:"spawn_y"`
	SpawnRadius float64 `yaml:"spawn_radius"` // 0 = all larvae start at the center
}

// TelemetryConfig holds recording parameters.
type TelemetryConfig struct {
	RecordEvery  int    `yaml:"record_every"`  // Ticks between track rows (0 = off)
	SummaryEvery int    `yaml:"summary_every"` // Ticks between summary rows (0 = end of run only)
	LogEvery     int    `yaml:"log_every"`     // Ticks between census log lines (0 = off)
	SQLitePath   string `yaml:"sqlite_path"`   // Empty = no track store

	ArrivalRadius   float64 `yaml:"arrival_radius"`   // Distance from the source that counts as arrived (mm)
	BookmarkHistory int     `yaml:"bookmark_history"` // Summary windows kept for bookmark detection
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	HalfLength float64 // Arena.Length / 2
	HalfWidth  float64 // Arena.Width / 2
	Params     larva.Params
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Clone returns an independent copy.
func (c *Config) Clone() *Config {
	out := *c
	return &out
}

// Rederive recomputes derived values after fields were set in code, and
// validates the result.
func (c *Config) Rederive() error {
	c.computeDerived()
	return c.Validate()
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.HalfLength = c.Arena.Length / 2
	c.Derived.HalfWidth = c.Arena.Width / 2
	c.Derived.Params = c.Larva.Params()
}

// Params converts the larva section to constructor parameters.
func (l LarvaConfig) Params() larva.Params {
	return larva.Params{
		HeadLength:    l.HeadLength,
		ThetaMax:      l.ThetaMax,
		ThetaMin:      l.ThetaMin,
		WVThetaMax:    l.WVThetaMax,
		CastSpeed:     l.CastSpeed,
		WVCastSpeed:   l.WVCastSpeed,
		VFwd:          l.VFwd,
		TMinRun:       l.TMinRun,
		RunTermBase:   l.RunTermBase,
		CastTermBase:  l.CastTermBase,
		WVTermBase:    l.WVTermBase,
		WVCastResume:  l.WVCastResume,
		RWVCastResume: l.RWVCastResume,
		TRunTerm:      l.TRunTerm,
		TCastTerm:     l.TCastTerm,
		TWVLongAvg:    l.TWVLongAvg,
		TWVShortAvg:   l.TWVShortAvg,
		KWVMult:       l.KWVMult,
		Verbose:       l.Verbose,
	}
}

// Validate checks the configuration for values the simulation cannot run with.
func (c *Config) Validate() error {
	if !(c.Simulation.DT > 0) || math.IsInf(c.Simulation.DT, 0) {
		return fmt.Errorf("simulation.dt must be positive, got %v", c.Simulation.DT)
	}
	if !(c.Arena.Length > 0) || !(c.Arena.Width > 0) {
		return fmt.Errorf("arena must have positive extents, got %v x %v", c.Arena.Length, c.Arena.Width)
	}
	switch c.Arena.Field {
	case "gaussian", "exponential", "uniform", "noisy":
	default:
		return fmt.Errorf("unknown arena.field %q", c.Arena.Field)
	}
	if !(c.Arena.Baseline > 0) {
		return fmt.Errorf("arena.baseline must be positive, got %v", c.Arena.Baseline)
	}
	if c.Arena.NoiseAmplitude < 0 || c.Arena.NoiseAmplitude >= 1 {
		return fmt.Errorf("arena.noise_amplitude must be in [0, 1), got %v", c.Arena.NoiseAmplitude)
	}
	if c.Population.Count < 0 {
		return fmt.Errorf("population.count must not be negative, got %d", c.Population.Count)
	}
	if err := c.Derived.Params.Validate(); err != nil {
		return fmt.Errorf("larva: %w", err)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// YAML returns the configuration serialized as YAML.
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}
	return string(data), nil
}
