// Package config provides configuration loading and access for the
// simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"snowsim/solver"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Grid       GridConfig       `yaml:"grid"`
	Physics    PhysicsConfig    `yaml:"physics"`
	Snow       SnowConfig       `yaml:"snow"`
	Integrator IntegratorConfig `yaml:"integrator"`
	Collision  CollisionConfig  `yaml:"collision"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Runtime    RuntimeConfig    `yaml:"runtime"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// GridConfig holds the background lattice dimensions.
type GridConfig struct {
	CellSize float64 `yaml:"cell_size"` // Cell edge length in meters
	Size     [3]int  `yaml:"size"`      // Node count per axis
}

// PhysicsConfig holds time stepping and gravity.
type PhysicsConfig struct {
	DT            float64 `yaml:"dt"`              // Step size in seconds
	Gravity       float64 `yaml:"gravity"`         // Magnitude, applied along -z
	Frames        int     `yaml:"frames"`          // Frames to simulate in the run routine
	StepsPerFrame int     `yaml:"steps_per_frame"` // Solver steps between saved frames
}

// SnowConfig holds the constitutive model parameters.
type SnowConfig struct {
	Density             float64 `yaml:"density"`              // Rest density for scene seeding, kg/m3
	ParticleSize        float64 `yaml:"particle_size"`        // Seeding lattice spacing, m
	YoungsModulus       float64 `yaml:"youngs_modulus"`       // E
	PoissonsRatio       float64 `yaml:"poissons_ratio"`       // nu
	CriticalCompression float64 `yaml:"critical_compression"` // Singular value lower clamp offset
	CriticalStretch     float64 `yaml:"critical_stretch"`     // Singular value upper clamp offset
	Hardening           float64 `yaml:"hardening"`            // Plastic hardening coefficient
	FlipAlpha           float64 `yaml:"flip_alpha"`           // PIC/FLIP blend, 1 = pure FLIP
}

// IntegratorConfig selects explicit or semi-implicit velocity integration.
type IntegratorConfig struct {
	Mode          string  `yaml:"mode"`           // "explicit" or "implicit"
	Beta          float64 `yaml:"beta"`           // Implicitness factor, 1 = backward Euler
	MaxIterations int     `yaml:"max_iterations"` // Conjugate residual iteration cap
	Tolerance     float64 `yaml:"tolerance"`      // Residual norm threshold
}

// CollisionConfig holds the static floor collider.
type CollisionConfig struct {
	FloorHeight float64 `yaml:"floor_height"` // Contact threshold on z
	Friction    float64 `yaml:"friction"`     // Coulomb friction coefficient
}

// TelemetryConfig controls frame statistics output.
type TelemetryConfig struct {
	StatsInterval int `yaml:"stats_interval"` // Frames between CSV records, 1 = every frame
}

// RuntimeConfig holds execution parameters.
type RuntimeConfig struct {
	Workers int `yaml:"workers"` // Worker goroutines, 0 = GOMAXPROCS
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Mu0     float64 // E / (2(1+nu))
	Lambda0 float64 // E·nu / ((1+nu)(1-2nu))
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if
// path is empty. Must be called before Cfg().
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

	return cfg, nil
}

// computeDerived calculates the Lamé parameters from the elastic moduli.
func (c *Config) computeDerived() {
	e := c.Snow.YoungsModulus
	nu := c.Snow.PoissonsRatio
	c.Derived.Mu0 = e / (2 * (1 + nu))
	c.Derived.Lambda0 = e * nu / ((1 + nu) * (1 - 2*nu))
}

// SolverParams converts the configuration into solver parameters.
func (c *Config) SolverParams() solver.Params {
	return solver.Params{
		CellSize:             c.Grid.CellSize,
		GridSize:             c.Grid.Size,
		Mu0:                  c.Derived.Mu0,
		Lambda0:              c.Derived.Lambda0,
		HardeningCoefficient: c.Snow.Hardening,
		CriticalCompression:  c.Snow.CriticalCompression,
		CriticalStretch:      c.Snow.CriticalStretch,
		FlipAlpha:            c.Snow.FlipAlpha,
		Gravity:              c.Physics.Gravity,
		Implicit:             c.Integrator.Mode == "implicit",
		ImplicitBeta:         c.Integrator.Beta,
		MaxIterations:        c.Integrator.MaxIterations,
		Tolerance:            c.Integrator.Tolerance,
		FloorHeight:          c.Collision.FloorHeight,
		FloorFriction:        c.Collision.Friction,
		Workers:              c.Runtime.Workers,
	}
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
