package mpc

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/mpc.driver/internal/config"
	"github.com/banshee-data/mpc.driver/internal/faults"
	"github.com/banshee-data/mpc.driver/internal/nlp"
	"github.com/banshee-data/mpc.driver/internal/units"
)

// Weights scale the terms of the tracking objective.
type Weights struct {
	CTE       float64
	EPsi      float64
	Speed     float64
	Steer     float64
	Accel     float64
	SteerRate float64
	AccelRate float64
}

// Config holds the controller parameters.
type Config struct {
	Horizon  int           // N, number of predicted states
	Timestep time.Duration // dt between predicted states
	RefSpeed float64       // m/s
	Weights  Weights

	MaxSteer float64 // rad, symmetric limit
	AccelMin float64
	AccelMax float64
	Lf       float64

	PolyOrder        int
	ReferencePoints  int
	ReferenceSpacing float64

	InitialDelay   time.Duration
	DelaySmoothing float64 // EMA weight of a new latency sample; 1 takes it as is

	Backend            string
	Solver             nlp.Settings
	SanityMaxViolation float64
}

// DefaultConfig returns the canonical defaults from config/tuning.defaults.json.
// Panics if the file is not found, intended for tests.
func DefaultConfig() Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded tuning file.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Horizon:  cfg.GetHorizonSteps(),
		Timestep: cfg.GetTimestep(),
		RefSpeed: cfg.GetRefSpeedMPS(),
		Weights: Weights{
			CTE:       cfg.GetCTEWeight(),
			EPsi:      cfg.GetEPsiWeight(),
			Speed:     cfg.GetSpeedWeight(),
			Steer:     cfg.GetSteerWeight(),
			Accel:     cfg.GetAccelWeight(),
			SteerRate: cfg.GetSteerRateWeight(),
			AccelRate: cfg.GetAccelRateWeight(),
		},
		MaxSteer:         units.DegToRad(cfg.GetMaxSteerDeg()),
		AccelMin:         cfg.GetAccelMin(),
		AccelMax:         cfg.GetAccelMax(),
		Lf:               cfg.GetWheelbaseLf(),
		PolyOrder:        cfg.GetPolyOrder(),
		ReferencePoints:  cfg.GetReferencePoints(),
		ReferenceSpacing: cfg.GetReferenceSpacing(),
		InitialDelay:     cfg.GetInitialDelay(),
		DelaySmoothing:   cfg.GetDelaySmoothing(),
		Backend:          cfg.GetSolverBackend(),
		Solver: nlp.Settings{
			MaxIterations: cfg.GetSolverMaxIterations(),
			TimeBudget:    cfg.GetSolverTimeBudget(),
			Tolerance:     cfg.GetSolverTolerance(),
		},
		SanityMaxViolation: cfg.GetSanityMaxViolation(),
	}
}

// dt is the timestep in seconds.
func (c Config) dt() float64 { return c.Timestep.Seconds() }

// Validate checks the invariants the builder and controller rely on.
func (c Config) Validate() error {
	switch {
	case c.Horizon < 2:
		return fmt.Errorf("%w: horizon must be at least 2, got %d", faults.ErrInvalidInput, c.Horizon)
	case c.Timestep <= 0:
		return fmt.Errorf("%w: timestep must be positive, got %v", faults.ErrInvalidInput, c.Timestep)
	case !(c.MaxSteer > 0) || c.MaxSteer >= math.Pi/2:
		return fmt.Errorf("%w: steering limit must be in (0, pi/2), got %v", faults.ErrInvalidInput, c.MaxSteer)
	case !(c.AccelMin < c.AccelMax):
		return fmt.Errorf("%w: accel bounds [%v, %v] are not ordered", faults.ErrInvalidInput, c.AccelMin, c.AccelMax)
	case !(c.Lf > 0):
		return fmt.Errorf("%w: wheelbase must be positive, got %v", faults.ErrInvalidInput, c.Lf)
	case c.PolyOrder < 1:
		return fmt.Errorf("%w: polynomial order must be at least 1, got %d", faults.ErrInvalidInput, c.PolyOrder)
	case c.InitialDelay < 0:
		return fmt.Errorf("%w: initial delay must be non-negative, got %v", faults.ErrInvalidInput, c.InitialDelay)
	case !(c.DelaySmoothing > 0 && c.DelaySmoothing <= 1):
		return fmt.Errorf("%w: delay smoothing must be in (0, 1], got %v", faults.ErrInvalidInput, c.DelaySmoothing)
	case !nlp.IsBackend(c.Backend):
		return fmt.Errorf("%w: unknown solver backend %q", faults.ErrInvalidInput, c.Backend)
	}
	w := c.Weights
	for _, v := range []float64{w.CTE, w.EPsi, w.Speed, w.Steer, w.Accel, w.SteerRate, w.AccelRate, c.RefSpeed} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: weights and reference speed must be finite and non-negative", faults.ErrInvalidInput)
		}
	}
	return nil
}

// Span is the predicted time covered by the horizon.
func (c Config) Span() time.Duration {
	return time.Duration(c.Horizon-1) * c.Timestep
}
