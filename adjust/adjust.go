// Package adjust estimates corrections to the boresight angles or the lever
// arm from batches of measurements gathered over overlapping passes.
//
// The estimator is Gauss-Newton: at each step it linearizes the body-frame
// misalignment of every measurement around the current parameter estimate,
// solves the normal equations for a parameter step, and re-evaluates. The
// iteration sequence is strictly ordered and bounded.
package adjust

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/flightlines/lasward/config"
	"github.com/flightlines/lasward/measurement"
	"github.com/flightlines/lasward/spatialmath"
)

// ErrDidNotConverge is returned when the iteration bound is reached before
// the residual change falls under the tolerance.
var ErrDidNotConverge = errors.New("adjustment did not converge")

const (
	defaultTolerance     = 1e-6
	defaultMaxIterations = 100
)

// Iteration records the state after one Gauss-Newton step.
type Iteration struct {
	RMSE   float64
	Values []float64
}

// Result is an estimated correction: the adjusted mounting parameters, the
// final fit quality, and the path taken to get there. History starts with
// the initial state.
type Result struct {
	Boresight spatialmath.EulerAngles
	LeverArm  r3.Vector
	RMSE      float64
	History   []Iteration
}

// Adjuster estimates boresight (default) or lever-arm corrections for a
// batch of measurements that share a sensor configuration.
type Adjuster struct {
	measurements  []*measurement.Measurement
	cfg           config.Sensor
	variables     []measurement.Variable
	tolerance     float64
	maxIterations int
	logger        golog.Logger
}

// New creates an adjuster over the given measurements, starting from the
// mounting parameters in cfg.
func New(measurements []*measurement.Measurement, cfg *config.Sensor, logger golog.Logger) (*Adjuster, error) {
	if len(measurements) == 0 {
		return nil, errors.New("cannot adjust with no measurements")
	}
	return &Adjuster{
		measurements:  measurements,
		cfg:           *cfg,
		variables:     measurement.BoresightVariables(),
		tolerance:     defaultTolerance,
		maxIterations: defaultMaxIterations,
		logger:        logger,
	}, nil
}

// AdjustLeverArm switches the estimated parameters between the lever arm
// and the boresight angles (the default).
func (a *Adjuster) AdjustLeverArm(leverArm bool) {
	if leverArm {
		a.variables = measurement.LeverArmVariables()
	} else {
		a.variables = measurement.BoresightVariables()
	}
}

// SetTolerance overrides the convergence tolerance on the change in RMSE
// between iterations.
func (a *Adjuster) SetTolerance(tolerance float64) {
	a.tolerance = tolerance
}

// SetMaxIterations overrides the iteration bound.
func (a *Adjuster) SetMaxIterations(n int) {
	a.maxIterations = n
}

// Run iterates to convergence or to the iteration bound.
func (a *Adjuster) Run() (*Result, error) {
	cfg := a.cfg
	ms := a.measurements
	values := configValues(&cfg, a.variables)
	prev := rmse(ms)
	history := []Iteration{{RMSE: prev, Values: append([]float64{}, values...)}}
	a.logger.Debugw("starting adjustment", "variables", len(a.variables), "rmse", prev)

	for iteration := 0; iteration < a.maxIterations; iteration++ {
		step, err := a.step(ms)
		if err != nil {
			return nil, err
		}
		for i := range values {
			values[i] -= step[i]
		}
		cfg = configWithValues(&a.cfg, a.variables, values)
		next := make([]*measurement.Measurement, len(ms))
		for i, m := range ms {
			next[i] = m.WithConfig(&cfg)
		}
		ms = next

		current := rmse(ms)
		history = append(history, Iteration{RMSE: current, Values: append([]float64{}, values...)})
		a.logger.Debugw("adjustment iteration", "iteration", iteration, "rmse", current)
		if math.Abs(prev-current) < a.tolerance {
			return &Result{
				Boresight: cfg.Boresight,
				LeverArm:  cfg.LeverArm,
				RMSE:      current,
				History:   history,
			}, nil
		}
		prev = current
	}
	return nil, errors.Wrapf(ErrDidNotConverge, "after %d iterations, rmse %f", a.maxIterations, prev)
}

// step solves the Gauss-Newton normal equations for one parameter update.
func (a *Adjuster) step(ms []*measurement.Measurement) ([]float64, error) {
	rows := 3 * len(ms)
	jacobian := mat.NewDense(rows, len(a.variables), nil)
	residuals := mat.NewVecDense(rows, nil)
	for i, m := range ms {
		misalignment := m.BodyFrameMisalignment()
		residuals.SetVec(3*i, misalignment.X)
		residuals.SetVec(3*i+1, misalignment.Y)
		residuals.SetVec(3*i+2, misalignment.Z)
		for j, dimension := range measurement.Dimensions() {
			for k, variable := range a.variables {
				jacobian.Set(3*i+j, k, m.PartialInBodyFrame(dimension, variable))
			}
		}
	}

	var normal mat.Dense
	normal.Mul(jacobian.T(), jacobian)
	var rhs mat.VecDense
	rhs.MulVec(jacobian.T(), residuals)

	var step mat.VecDense
	if err := step.SolveVec(&normal, &rhs); err != nil {
		return nil, errors.Wrap(err, "normal equations are singular")
	}
	out := make([]float64, len(a.variables))
	for i := range out {
		out[i] = step.AtVec(i)
	}
	return out, nil
}

// rmse is the root mean square of the per-axis body-frame misalignments.
func rmse(ms []*measurement.Measurement) float64 {
	var sum float64
	for _, m := range ms {
		misalignment := m.BodyFrameMisalignment()
		sum += misalignment.Norm2()
	}
	return math.Sqrt(sum / float64(3*len(ms)))
}

func configValues(cfg *config.Sensor, variables []measurement.Variable) []float64 {
	values := make([]float64, len(variables))
	for i, variable := range variables {
		switch variable {
		case measurement.BoresightRoll:
			values[i] = cfg.Boresight.Roll
		case measurement.BoresightPitch:
			values[i] = cfg.Boresight.Pitch
		case measurement.BoresightYaw:
			values[i] = cfg.Boresight.Yaw
		case measurement.LeverArmX:
			values[i] = cfg.LeverArm.X
		case measurement.LeverArmY:
			values[i] = cfg.LeverArm.Y
		case measurement.LeverArmZ:
			values[i] = cfg.LeverArm.Z
		}
	}
	return values
}

func configWithValues(cfg *config.Sensor, variables []measurement.Variable, values []float64) config.Sensor {
	out := *cfg
	for i, variable := range variables {
		switch variable {
		case measurement.BoresightRoll:
			out.Boresight.Roll = values[i]
		case measurement.BoresightPitch:
			out.Boresight.Pitch = values[i]
		case measurement.BoresightYaw:
			out.Boresight.Yaw = values[i]
		case measurement.LeverArmX:
			out.LeverArm.X = values[i]
		case measurement.LeverArmY:
			out.LeverArm.Y = values[i]
		case measurement.LeverArmZ:
			out.LeverArm.Z = values[i]
		}
	}
	return out
}
