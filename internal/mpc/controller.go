// Package mpc runs one receding-horizon control cycle: it fits the
// reference path, compensates for actuation latency, builds the trajectory
// program and turns the solver's plan into an actuator command.
package mpc

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/mpc.driver/internal/faults"
	"github.com/banshee-data/mpc.driver/internal/frame"
	"github.com/banshee-data/mpc.driver/internal/monitoring"
	"github.com/banshee-data/mpc.driver/internal/nlp"
	"github.com/banshee-data/mpc.driver/internal/polyfit"
	"github.com/banshee-data/mpc.driver/internal/timeutil"
	"github.com/banshee-data/mpc.driver/internal/vehicle"
)

// boundsSlack absorbs rounding in the box transform when checking a plan
// against the actuator limits.
const boundsSlack = 1e-9

// Point is a 2-D position in the vehicle frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Observation is one telemetry sample, already in SI units and the model's
// steering convention.
type Observation struct {
	WaypointsX []float64 // global frame
	WaypointsY []float64
	Pose       frame.Pose
	Speed      float64 // m/s
	Steer      float64 // steering currently applied (rad)
}

// Solution is the outcome of one trajectory solve.
type Solution struct {
	Steer      float64
	Throttle   float64
	Predicted  []Point // states 1..N-1
	States     []vehicle.State
	Plan       []vehicle.Actuation
	Status     nlp.Status
	Objective  float64
	Violation  float64
	Iterations int
	Elapsed    time.Duration
	Backend    string
}

// Command is what a control cycle hands to the transport. Steer is in
// radians, model convention.
type Command struct {
	Steer      float64       `json:"steer"`
	Throttle   float64       `json:"throttle"`
	Predicted  []Point       `json:"predicted"`
	Reference  []Point       `json:"reference"`
	Status     string        `json:"status"`
	Fallback   bool          `json:"fallback"`
	Delay      time.Duration `json:"delay"`
	State      vehicle.State `json:"state"`
	Coeffs     polyfit.Poly  `json:"coeffs"`
	Objective  float64       `json:"objective"`
	Violation  float64       `json:"violation"`
	Iterations int           `json:"iterations"`
	SolveTime  time.Duration `json:"solve_time"`
}

// SafeCommand is the neutral command applied when a cycle fails: no
// steering, no throttle.
func SafeCommand() Command {
	return Command{Fallback: true, Status: "fallback"}
}

// Snapshot is the most recent cycle, for debug surfaces.
type Snapshot struct {
	Seq     uint64    `json:"seq"`
	At      time.Time `json:"at"`
	Command Command   `json:"command"`
	Err     string    `json:"error,omitempty"`
}

// Controller owns the configuration, model, solver and latency estimate. It
// is safe for concurrent use; cycles and latency updates are serialised.
type Controller struct {
	cfg    Config
	model  vehicle.Model
	solver nlp.Solver
	clock  timeutil.Clock

	mu     sync.Mutex
	delay  time.Duration
	seq    uint64
	latest *Snapshot
}

// NewController validates cfg and selects the configured solver backend.
func NewController(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	solver, err := nlp.New(cfg.Backend, cfg.Solver)
	if err != nil {
		return nil, err
	}
	if cfg.Span() <= cfg.InitialDelay {
		monitoring.Logf("mpc: horizon %v does not cover the initial delay %v", cfg.Span(), cfg.InitialDelay)
	}
	return &Controller{
		cfg:    cfg,
		model:  vehicle.Model{Lf: cfg.Lf},
		solver: solver,
		clock:  timeutil.RealClock{},
		delay:  cfg.InitialDelay,
	}, nil
}

// SetClock replaces the clock used to timestamp snapshots.
func (c *Controller) SetClock(clock timeutil.Clock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = clock
}

func (c *Controller) Config() Config { return c.cfg }

// Delay returns the current latency estimate.
func (c *Controller) Delay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delay
}

// RecordLatency folds the measured duration of a solve-and-send cycle into
// the latency estimate used by the next cycle.
func (c *Controller) RecordLatency(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = smoothDelay(c.delay, d, c.cfg.DelaySmoothing)
}

// Latest returns the most recent cycle, if any.
func (c *Controller) Latest() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return Snapshot{}, false
	}
	return *c.latest, true
}

// Solve plans from x0 along the reference polynomial.
func (c *Controller) Solve(x0 vehicle.State, coeffs polyfit.Poly) (Solution, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.solve(x0, coeffs)
}

// Step runs one full cycle. On any failure it returns SafeCommand (with
// whatever diagnostics were gathered) together with the error; it never
// leaves the caller without a command to send.
func (c *Controller) Step(obs Observation) (Command, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmd, err := c.step(obs)
	c.seq++
	snap := &Snapshot{Seq: c.seq, At: c.clock.Now(), Command: cmd}
	if err != nil {
		snap.Err = err.Error()
	}
	c.latest = snap
	return cmd, err
}

func (c *Controller) step(obs Observation) (Command, error) {
	safe := SafeCommand()
	safe.Delay = c.delay

	if err := validateObservation(obs, c.cfg.PolyOrder); err != nil {
		return safe, err
	}

	lx, ly, err := frame.ToLocal(obs.Pose, obs.WaypointsX, obs.WaypointsY)
	if err != nil {
		return safe, err
	}
	coeffs, err := polyfit.Fit(lx, ly, c.cfg.PolyOrder)
	if err != nil {
		return safe, err
	}
	safe.Coeffs = coeffs
	safe.Reference = c.reference(coeffs)

	measured := vehicle.State{
		V:    obs.Speed,
		CTE:  coeffs.Eval(0),
		EPsi: vehicle.NormalizeAngle(-math.Atan(coeffs.Slope(0))),
	}
	x0 := Compensate(c.model, measured, obs.Steer, c.delay, coeffs)
	safe.State = x0

	sol, err := c.solve(x0, coeffs)
	if err != nil {
		safe.Status = sol.Status.String()
		safe.Objective = finiteOrZero(sol.Objective)
		safe.Violation = finiteOrZero(sol.Violation)
		safe.Iterations = sol.Iterations
		safe.SolveTime = sol.Elapsed
		return safe, err
	}

	return Command{
		Steer:      sol.Steer,
		Throttle:   sol.Throttle,
		Predicted:  sol.Predicted,
		Reference:  safe.Reference,
		Status:     sol.Status.String(),
		Delay:      c.delay,
		State:      x0,
		Coeffs:     coeffs,
		Objective:  sol.Objective,
		Violation:  sol.Violation,
		Iterations: sol.Iterations,
		SolveTime:  sol.Elapsed,
	}, nil
}

func (c *Controller) solve(x0 vehicle.State, coeffs polyfit.Poly) (Solution, error) {
	if !x0.Finite() {
		return Solution{}, fmt.Errorf("%w: initial state is not finite", faults.ErrInvalidInput)
	}
	if len(coeffs) == 0 {
		return Solution{}, fmt.Errorf("%w: empty reference polynomial", faults.ErrInvalidInput)
	}

	p := Build(c.cfg, x0, coeffs)
	res, err := c.solver.Solve(p)
	if res == nil {
		if err == nil {
			err = errors.New("solver returned no iterate")
		}
		return Solution{}, fmt.Errorf("%s solve: %w", c.solver.Name(), err)
	}
	if err != nil && !faults.SolverFault(err) {
		return Solution{}, fmt.Errorf("%s solve: %w", c.solver.Name(), err)
	}

	sol := c.solution(p, res)
	if serr := c.check(p, res); serr != nil {
		if err != nil {
			return sol, fmt.Errorf("%w; best iterate rejected: %v", err, serr)
		}
		return sol, serr
	}
	if err != nil {
		monitoring.Logf("mpc: applying best iterate (%s, violation %.3g): %v", res.Status, res.Violation, err)
	}
	return sol, nil
}

// check is the sanity gate every plan passes before it reaches an actuator.
func (c *Controller) check(p *Problem, res *nlp.Result) error {
	for _, v := range res.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: plan contains non-finite values", faults.ErrNumericalFailure)
		}
	}
	if math.IsNaN(res.Objective) || math.IsInf(res.Objective, 0) {
		return fmt.Errorf("%w: objective is %v", faults.ErrNumericalFailure, res.Objective)
	}
	if !nlp.WithinBounds(p, res.X, boundsSlack) {
		return fmt.Errorf("%w: plan exceeds actuator limits", faults.ErrNumericalFailure)
	}
	if res.Violation > c.cfg.SanityMaxViolation {
		return fmt.Errorf("%w: dynamics violation %.3g exceeds %.3g", faults.ErrInfeasibleProgram, res.Violation, c.cfg.SanityMaxViolation)
	}
	return nil
}

func (c *Controller) solution(p *Problem, res *nlp.Result) Solution {
	states, plan := p.Trajectory(res.X)
	predicted := make([]Point, 0, len(states)-1)
	for _, s := range states[1:] {
		predicted = append(predicted, Point{X: s.X, Y: s.Y})
	}
	return Solution{
		Steer:      plan[0].Steer,
		Throttle:   plan[0].Accel,
		Predicted:  predicted,
		States:     states,
		Plan:       plan,
		Status:     res.Status,
		Objective:  res.Objective,
		Violation:  res.Violation,
		Iterations: res.Iterations,
		Elapsed:    res.Elapsed,
		Backend:    res.Backend,
	}
}

func (c *Controller) reference(coeffs polyfit.Poly) []Point {
	xs, ys := coeffs.Sample(c.cfg.ReferenceSpacing, c.cfg.ReferencePoints)
	ref := make([]Point, len(xs))
	for i := range xs {
		ref[i] = Point{X: xs[i], Y: ys[i]}
	}
	return ref
}

// finiteOrZero keeps rejected diagnostics encodable as JSON.
func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func validateObservation(obs Observation, order int) error {
	if len(obs.WaypointsX) != len(obs.WaypointsY) {
		return fmt.Errorf("%w: waypoint x/y lengths differ (%d != %d)", faults.ErrInvalidInput, len(obs.WaypointsX), len(obs.WaypointsY))
	}
	if len(obs.WaypointsX) < order+1 {
		return fmt.Errorf("%w: need at least %d waypoints for an order %d fit, got %d", faults.ErrInvalidInput, order+1, order, len(obs.WaypointsX))
	}
	for _, v := range []float64{obs.Pose.X, obs.Pose.Y, obs.Pose.Psi, obs.Speed, obs.Steer} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite pose, speed or steering", faults.ErrInvalidInput)
		}
	}
	return nil
}
