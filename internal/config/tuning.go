package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/mpc.driver/internal/units"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// knownBackends mirrors the solver registry. Kept here rather than imported
// so config does not depend on the solver.
var knownBackends = map[string]bool{"shooting": true, "auglag": true}

// TuningConfig represents the root configuration for the controller.
// Every field is optional; the Get* accessors supply defaults so partial
// files are safe.
type TuningConfig struct {
	// Horizon
	HorizonSteps *int     `json:"horizon_steps,omitempty"`
	Timestep     *string  `json:"timestep,omitempty"` // duration string like "100ms"
	RefSpeedMPS  *float64 `json:"ref_speed_mps,omitempty"`

	// Objective weights
	CTEWeight       *float64 `json:"cte_weight,omitempty"`
	EPsiWeight      *float64 `json:"epsi_weight,omitempty"`
	SpeedWeight     *float64 `json:"speed_weight,omitempty"`
	SteerWeight     *float64 `json:"steer_weight,omitempty"`
	AccelWeight     *float64 `json:"accel_weight,omitempty"`
	SteerRateWeight *float64 `json:"steer_rate_weight,omitempty"`
	AccelRateWeight *float64 `json:"accel_rate_weight,omitempty"`

	// Vehicle
	MaxSteerDeg *float64 `json:"max_steer_deg,omitempty"`
	AccelMin    *float64 `json:"accel_min,omitempty"`
	AccelMax    *float64 `json:"accel_max,omitempty"`
	WheelbaseLf *float64 `json:"wheelbase_lf,omitempty"`

	// Reference path
	PolyOrder        *int     `json:"poly_order,omitempty"`
	ReferencePoints  *int     `json:"reference_points,omitempty"`
	ReferenceSpacing *float64 `json:"reference_spacing,omitempty"`

	// Latency
	InitialDelay   *string  `json:"initial_delay,omitempty"`
	DelaySmoothing *float64 `json:"delay_smoothing,omitempty"`
	ActuationSleep *string  `json:"actuation_sleep,omitempty"`

	// Solver
	SolverBackend       *string  `json:"solver_backend,omitempty"`
	SolverMaxIterations *int     `json:"solver_max_iterations,omitempty"`
	SolverTimeBudget    *string  `json:"solver_time_budget,omitempty"`
	SolverTolerance     *float64 `json:"solver_tolerance,omitempty"`
	SanityMaxViolation  *float64 `json:"sanity_max_violation,omitempty"`

	// Transport
	SpeedUnit *string `json:"speed_unit,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the Get* defaults.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		HorizonSteps:        ptrInt(e.GetHorizonSteps()),
		Timestep:            ptrString(e.GetTimestep().String()),
		RefSpeedMPS:         ptrFloat64(e.GetRefSpeedMPS()),
		CTEWeight:           ptrFloat64(e.GetCTEWeight()),
		EPsiWeight:          ptrFloat64(e.GetEPsiWeight()),
		SpeedWeight:         ptrFloat64(e.GetSpeedWeight()),
		SteerWeight:         ptrFloat64(e.GetSteerWeight()),
		AccelWeight:         ptrFloat64(e.GetAccelWeight()),
		SteerRateWeight:     ptrFloat64(e.GetSteerRateWeight()),
		AccelRateWeight:     ptrFloat64(e.GetAccelRateWeight()),
		MaxSteerDeg:         ptrFloat64(e.GetMaxSteerDeg()),
		AccelMin:            ptrFloat64(e.GetAccelMin()),
		AccelMax:            ptrFloat64(e.GetAccelMax()),
		WheelbaseLf:         ptrFloat64(e.GetWheelbaseLf()),
		PolyOrder:           ptrInt(e.GetPolyOrder()),
		ReferencePoints:     ptrInt(e.GetReferencePoints()),
		ReferenceSpacing:    ptrFloat64(e.GetReferenceSpacing()),
		InitialDelay:        ptrString(e.GetInitialDelay().String()),
		DelaySmoothing:      ptrFloat64(e.GetDelaySmoothing()),
		ActuationSleep:      ptrString(e.GetActuationSleep().String()),
		SolverBackend:       ptrString(e.GetSolverBackend()),
		SolverMaxIterations: ptrInt(e.GetSolverMaxIterations()),
		SolverTimeBudget:    ptrString(e.GetSolverTimeBudget().String()),
		SolverTolerance:     ptrFloat64(e.GetSolverTolerance()),
		SanityMaxViolation:  ptrFloat64(e.GetSanityMaxViolation()),
		SpeedUnit:           ptrString(e.GetSpeedUnit()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from cmd/tools/plot-run/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.HorizonSteps != nil && *c.HorizonSteps < 2 {
		return fmt.Errorf("horizon_steps must be at least 2, got %d", *c.HorizonSteps)
	}

	for _, d := range []struct {
		name string
		val  *string
		zero bool // zero duration allowed
	}{
		{"timestep", c.Timestep, false},
		{"initial_delay", c.InitialDelay, true},
		{"actuation_sleep", c.ActuationSleep, true},
		{"solver_time_budget", c.SolverTimeBudget, true},
	} {
		if d.val == nil || *d.val == "" {
			continue
		}
		v, err := time.ParseDuration(*d.val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.val, err)
		}
		if v < 0 || (v == 0 && !d.zero) {
			return fmt.Errorf("%s must be positive, got %s", d.name, *d.val)
		}
	}

	for _, w := range []struct {
		name string
		val  *float64
	}{
		{"ref_speed_mps", c.RefSpeedMPS},
		{"cte_weight", c.CTEWeight},
		{"epsi_weight", c.EPsiWeight},
		{"speed_weight", c.SpeedWeight},
		{"steer_weight", c.SteerWeight},
		{"accel_weight", c.AccelWeight},
		{"steer_rate_weight", c.SteerRateWeight},
		{"accel_rate_weight", c.AccelRateWeight},
		{"reference_spacing", c.ReferenceSpacing},
		{"solver_tolerance", c.SolverTolerance},
		{"sanity_max_violation", c.SanityMaxViolation},
	} {
		if w.val == nil {
			continue
		}
		if math.IsNaN(*w.val) || math.IsInf(*w.val, 0) || *w.val < 0 {
			return fmt.Errorf("%s must be a finite non-negative number, got %v", w.name, *w.val)
		}
	}

	if c.MaxSteerDeg != nil && (*c.MaxSteerDeg <= 0 || *c.MaxSteerDeg >= 90) {
		return fmt.Errorf("max_steer_deg must be in (0, 90), got %v", *c.MaxSteerDeg)
	}
	if lo, hi := c.GetAccelMin(), c.GetAccelMax(); !(lo < hi) {
		return fmt.Errorf("accel_min (%v) must be below accel_max (%v)", lo, hi)
	}
	if c.WheelbaseLf != nil && !(*c.WheelbaseLf > 0) {
		return fmt.Errorf("wheelbase_lf must be positive, got %v", *c.WheelbaseLf)
	}
	if c.PolyOrder != nil && *c.PolyOrder < 1 {
		return fmt.Errorf("poly_order must be at least 1, got %d", *c.PolyOrder)
	}
	if c.ReferencePoints != nil && *c.ReferencePoints < 0 {
		return fmt.Errorf("reference_points must be non-negative, got %d", *c.ReferencePoints)
	}
	if c.DelaySmoothing != nil && (*c.DelaySmoothing <= 0 || *c.DelaySmoothing > 1) {
		return fmt.Errorf("delay_smoothing must be in (0, 1], got %v", *c.DelaySmoothing)
	}
	if c.SolverBackend != nil && !knownBackends[*c.SolverBackend] {
		return fmt.Errorf("unknown solver_backend %q", *c.SolverBackend)
	}
	if c.SolverMaxIterations != nil && *c.SolverMaxIterations < 1 {
		return fmt.Errorf("solver_max_iterations must be positive, got %d", *c.SolverMaxIterations)
	}
	if c.SpeedUnit != nil && !units.IsValid(*c.SpeedUnit) {
		return fmt.Errorf("speed_unit must be one of %s, got %q", units.GetValidUnitsString(), *c.SpeedUnit)
	}

	return nil
}

func durationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def // default on parse error
	}
	return d
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// GetHorizonSteps returns the number of prediction steps N.
func (c *TuningConfig) GetHorizonSteps() int { return intOr(c.HorizonSteps, 10) }

// GetTimestep returns the prediction step dt.
func (c *TuningConfig) GetTimestep() time.Duration {
	return durationOr(c.Timestep, 100*time.Millisecond)
}

// GetRefSpeedMPS returns the target speed in metres per second.
func (c *TuningConfig) GetRefSpeedMPS() float64 { return floatOr(c.RefSpeedMPS, 25) }

func (c *TuningConfig) GetCTEWeight() float64       { return floatOr(c.CTEWeight, 2000) }
func (c *TuningConfig) GetEPsiWeight() float64      { return floatOr(c.EPsiWeight, 2000) }
func (c *TuningConfig) GetSpeedWeight() float64     { return floatOr(c.SpeedWeight, 1) }
func (c *TuningConfig) GetSteerWeight() float64     { return floatOr(c.SteerWeight, 5) }
func (c *TuningConfig) GetAccelWeight() float64     { return floatOr(c.AccelWeight, 5) }
func (c *TuningConfig) GetSteerRateWeight() float64 { return floatOr(c.SteerRateWeight, 200) }
func (c *TuningConfig) GetAccelRateWeight() float64 { return floatOr(c.AccelRateWeight, 10) }

// GetMaxSteerDeg returns the steering limit in degrees.
func (c *TuningConfig) GetMaxSteerDeg() float64 { return floatOr(c.MaxSteerDeg, 25) }

func (c *TuningConfig) GetAccelMin() float64 { return floatOr(c.AccelMin, -1) }
func (c *TuningConfig) GetAccelMax() float64 { return floatOr(c.AccelMax, 1) }

// GetWheelbaseLf returns the distance from the front axle to the centre of gravity.
func (c *TuningConfig) GetWheelbaseLf() float64 { return floatOr(c.WheelbaseLf, 2.67) }

func (c *TuningConfig) GetPolyOrder() int              { return intOr(c.PolyOrder, 3) }
func (c *TuningConfig) GetReferencePoints() int        { return intOr(c.ReferencePoints, 25) }
func (c *TuningConfig) GetReferenceSpacing() float64   { return floatOr(c.ReferenceSpacing, 2.5) }
func (c *TuningConfig) GetDelaySmoothing() float64     { return floatOr(c.DelaySmoothing, 1) }
func (c *TuningConfig) GetSolverMaxIterations() int    { return intOr(c.SolverMaxIterations, 200) }
func (c *TuningConfig) GetSolverTolerance() float64    { return floatOr(c.SolverTolerance, 1e-6) }
func (c *TuningConfig) GetSanityMaxViolation() float64 { return floatOr(c.SanityMaxViolation, 1e-2) }

// GetInitialDelay returns the latency estimate used before any cycle is measured.
func (c *TuningConfig) GetInitialDelay() time.Duration {
	return durationOr(c.InitialDelay, 150*time.Millisecond)
}

// GetActuationSleep returns the simulated actuator delay applied before sending a command.
func (c *TuningConfig) GetActuationSleep() time.Duration {
	return durationOr(c.ActuationSleep, 100*time.Millisecond)
}

func (c *TuningConfig) GetSolverTimeBudget() time.Duration {
	return durationOr(c.SolverTimeBudget, 50*time.Millisecond)
}

func (c *TuningConfig) GetSolverBackend() string {
	if c.SolverBackend == nil || *c.SolverBackend == "" {
		return "shooting"
	}
	return *c.SolverBackend
}

// GetSpeedUnit returns the unit the simulator reports speed in.
func (c *TuningConfig) GetSpeedUnit() string {
	if c.SpeedUnit == nil || *c.SpeedUnit == "" {
		return units.MPH
	}
	return *c.SpeedUnit
}
