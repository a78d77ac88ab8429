// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure. Invalid configuration is
// fatal at startup; nothing is spawned from a config that fails Validate.
var ErrInvalid = errors.New("invalid config")

// Parallel execution modes.
const (
	ModePool = "pool" // persistent workers, joined per stage
	ModeFork = "fork" // goroutines spawned per stage
)

// Config holds all simulation configuration parameters.
type Config struct {
	Domain    DomainConfig    `yaml:"domain"`
	Spawn     SpawnConfig     `yaml:"spawn"`
	Fluid     FluidConfig     `yaml:"fluid"`
	Blast     BlastConfig     `yaml:"blast"`
	Parallel  ParallelConfig  `yaml:"parallel"`
	Run       RunConfig       `yaml:"run"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Impulses  []ImpulseEvent  `yaml:"impulses"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// DomainConfig holds the simulation domain size. This is independent of
// whatever surface the occupancy grid is eventually drawn on.
type DomainConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// SpawnConfig holds initial particle placement parameters.
type SpawnConfig struct {
	Count   int     `yaml:"count"`
	Seed    int64   `yaml:"seed"`
	Spacing float64 `yaml:"spacing"` // Distance between neighbouring spawn points
	Jitter  float64 `yaml:"jitter"`  // vx = jitter * (rand.Intn(10) - 5)
}

// FluidConfig holds SPH physics parameters.
type FluidConfig struct {
	SmoothingRadius float64 `yaml:"smoothing_radius"` // H
	Mass            float64 `yaml:"mass"`
	RestDensity     float64 `yaml:"rest_density"`
	Stiffness       float64 `yaml:"stiffness"`
	Viscosity       float64 `yaml:"viscosity"`
	Gravity         float64 `yaml:"gravity"`
	DT              float64 `yaml:"dt"`
	BounceDamping   float64 `yaml:"bounce_damping"`
	CellSize        float64 `yaml:"cell_size"` // Spatial hash cell width; should be >= H
}

// BlastConfig holds impulse parameters.
type BlastConfig struct {
	Radius   float64 `yaml:"radius"`
	Strength float64 `yaml:"strength"`
}

// ParallelConfig holds worker settings.
type ParallelConfig struct {
	Workers int    `yaml:"workers"` // 1 = sequential, 0 = GOMAXPROCS
	Mode    string `yaml:"mode"`    // "pool" or "fork"
}

// RunConfig holds the tick budget for headless runs.
type RunConfig struct {
	MaxTicks int `yaml:"max_ticks"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	WindowTicks int `yaml:"window_ticks"` // Ticks between stats samples
	PerfWindow  int `yaml:"perf_window"`  // Rolling window for perf averages
}

// ImpulseEvent is a scripted blast applied before the given tick runs.
type ImpulseEvent struct {
	Tick int     `yaml:"tick"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT32       float32 // Fluid.DT as float32
	H32        float32 // Fluid.SmoothingRadius as float32
	CellSize32 float32 // Fluid.CellSize as float32
	GridCells  int     // Domain.Width * Domain.Height
	SpawnCols  int     // Spawn points along x
	SpawnRows  int     // Spawn points along y
	Capacity   int     // SpawnCols * SpawnRows
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
		panic(fmt.Sprintf("config: embedded defaults are broken: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.ComputeDerived()

	return cfg, nil
}

// ComputeDerived calculates values derived from loaded config. Call it again
// after changing fields programmatically.
func (c *Config) ComputeDerived() {
	c.Derived.DT32 = float32(c.Fluid.DT)
	c.Derived.H32 = float32(c.Fluid.SmoothingRadius)
	c.Derived.CellSize32 = float32(c.Fluid.CellSize)
	c.Derived.GridCells = c.Domain.Width * c.Domain.Height

	c.Derived.SpawnCols = SpawnPoints(c.Domain.Width, c.Spawn.Spacing)
	c.Derived.SpawnRows = SpawnPoints(c.Domain.Height, c.Spawn.Spacing)
	c.Derived.Capacity = c.Derived.SpawnCols * c.Derived.SpawnRows
}

// SpawnPoints returns how many points k*spacing (k = 0, 1, ...) lie in
// [0, extent), evaluated in float64 exactly as spawn places them.
func SpawnPoints(extent int, spacing float64) int {
	if extent <= 0 || !(spacing > 0) {
		return 0
	}
	limit := float64(extent)
	n := int(math.Ceil(limit / spacing))
	for n > 0 && float64(n-1)*spacing >= limit {
		n--
	}
	for float64(n)*spacing < limit {
		n++
	}
	return n
}

// Validate reports the first configuration fault. All returned errors wrap ErrInvalid.
func (c *Config) Validate() error {
	switch {
	case c.Domain.Width <= 0 || c.Domain.Height <= 0:
		return fmt.Errorf("%w: domain must be positive, got %dx%d", ErrInvalid, c.Domain.Width, c.Domain.Height)
	case c.Spawn.Count <= 0:
		return fmt.Errorf("%w: spawn.count must be positive, got %d", ErrInvalid, c.Spawn.Count)
	case c.Spawn.Spacing <= 0:
		return fmt.Errorf("%w: spawn.spacing must be positive, got %g", ErrInvalid, c.Spawn.Spacing)
	case c.Fluid.SmoothingRadius <= 0:
		return fmt.Errorf("%w: fluid.smoothing_radius must be positive, got %g", ErrInvalid, c.Fluid.SmoothingRadius)
	case c.Fluid.Mass <= 0:
		return fmt.Errorf("%w: fluid.mass must be positive, got %g", ErrInvalid, c.Fluid.Mass)
	case c.Fluid.DT <= 0:
		return fmt.Errorf("%w: fluid.dt must be positive, got %g", ErrInvalid, c.Fluid.DT)
	case c.Fluid.CellSize <= 0:
		return fmt.Errorf("%w: fluid.cell_size must be positive, got %g", ErrInvalid, c.Fluid.CellSize)
	case c.Parallel.Workers < 0:
		return fmt.Errorf("%w: parallel.workers must be >= 0, got %d", ErrInvalid, c.Parallel.Workers)
	case c.Parallel.Mode != ModePool && c.Parallel.Mode != ModeFork:
		return fmt.Errorf("%w: unknown parallel.mode %q", ErrInvalid, c.Parallel.Mode)
	case c.Run.MaxTicks <= 0:
		return fmt.Errorf("%w: run.max_ticks must be positive, got %d", ErrInvalid, c.Run.MaxTicks)
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
