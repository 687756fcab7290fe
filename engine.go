// Package lasward computes geolocation uncertainty for airborne lidar.
//
// The package ties the lower-level pieces together behind a small facade:
// an Engine owns a trajectory and a sensor configuration for the duration
// of a processing run and turns individual lidar returns into uncertainty
// estimates or body-frame coordinates. Which outputs a run produces is
// selected with a capability flag at construction rather than with
// distinct engine types.
package lasward

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/flightlines/lasward/config"
	"github.com/flightlines/lasward/measurement"
	"github.com/flightlines/lasward/planefit"
	"github.com/flightlines/lasward/tpu"
	"github.com/flightlines/lasward/trajectory"
)

// Capability selects which outputs an Engine produces.
type Capability int

// Capabilities can be combined with bitwise or.
const (
	// CapabilityTPU propagates uncertainty for each return.
	CapabilityTPU Capability = 1 << iota
	// CapabilityBodyFrame expresses each return in the platform body frame.
	CapabilityBodyFrame
)

// Has reports whether every capability in other is enabled.
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

// Return is one lidar return as read from a point cloud: projected
// coordinates, the recorded scan angle in degrees, and the GPS time used to
// interpolate the platform pose. A surface normal is optional and only
// affects the incidence angle.
type Return struct {
	X         float64
	Y         float64
	Z         float64
	ScanAngle float64
	Time      float64
	Normal    r3.Vector
	HasNormal bool
}

// BodyFrame is a return expressed in the platform body frame, together with
// the platform attitude at the return's time.
type BodyFrame struct {
	X     float64
	Y     float64
	Z     float64
	Roll  float64
	Pitch float64
	Yaw   float64
}

// Result pairs a return with the outputs the engine's capabilities produced
// for it.
type Result struct {
	Return      Return
	Uncertainty *tpu.Uncertainty
	BodyFrame   *BodyFrame
}

// Engine computes per-return outputs against a fixed trajectory and sensor
// configuration. It is safe for concurrent use once constructed.
type Engine struct {
	trajectory *trajectory.Trajectory
	cfg        config.Sensor
	capability Capability
	logger     golog.Logger
}

// NewEngine validates the configuration and binds it with the trajectory.
func NewEngine(
	traj *trajectory.Trajectory,
	cfg *config.Sensor,
	capability Capability,
	logger golog.Logger,
) (*Engine, error) {
	if traj == nil {
		return nil, errors.New("engine requires a trajectory")
	}
	if capability == 0 {
		return nil, errors.New("engine requires at least one capability")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid sensor configuration")
	}
	return &Engine{
		trajectory: traj,
		cfg:        *cfg,
		capability: capability,
		logger:     logger,
	}, nil
}

// Capability returns the outputs this engine was constructed to produce.
func (e *Engine) Capability() Capability {
	return e.capability
}

// Measurement interpolates the pose at the return's time and binds the
// return to it.
func (e *Engine) Measurement(ret Return) (*measurement.Measurement, error) {
	pose, err := e.trajectory.Interpolate(ret.Time)
	if err != nil {
		return nil, err
	}
	m := measurement.New(pose, r3.Vector{X: ret.X, Y: ret.Y, Z: ret.Z}, ret.ScanAngle, &e.cfg)
	if ret.HasNormal {
		if err := m.SetNormal(ret.Normal); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Uncertainty propagates the sensor error model through the return's
// measurement.
func (e *Engine) Uncertainty(ret Return) (*tpu.Uncertainty, error) {
	m, err := e.Measurement(ret)
	if err != nil {
		return nil, err
	}
	return tpu.Propagate(m, &e.cfg.Errors)
}

// BodyFrame expresses the return in the platform body frame at its time.
func (e *Engine) BodyFrame(ret Return) (*BodyFrame, error) {
	m, err := e.Measurement(ret)
	if err != nil {
		return nil, err
	}
	body := m.BodyFrame()
	attitude := m.Imu()
	return &BodyFrame{
		X:     body.X,
		Y:     body.Y,
		Z:     body.Z,
		Roll:  attitude.Roll,
		Pitch: attitude.Pitch,
		Yaw:   attitude.Yaw,
	}, nil
}

// Process runs the engine's capabilities over a batch of returns. Returns
// that fail, for example because their time falls outside the trajectory,
// are skipped; their errors are aggregated into the returned error alongside
// the results that did succeed.
func (e *Engine) Process(returns []Return) ([]Result, error) {
	results := make([]Result, 0, len(returns))
	var errs error
	for i, ret := range returns {
		result, err := e.process(ret)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "return %d", i))
			continue
		}
		results = append(results, result)
	}
	if errs != nil {
		e.logger.Debugw("batch finished with failures",
			"returns", len(returns),
			"failed", len(multierr.Errors(errs)),
		)
	}
	return results, errs
}

// EstimateNormals fits a local plane to a window of surrounding returns, in
// file order, and attaches the resulting surface normal to each return.
// Points come off the scanner in scan order, so neighboring records sample
// the same patch of ground. Normals are oriented toward the platform at the
// return's time. Returns whose neighborhood is degenerate, or whose time
// falls outside the trajectory, are passed through without a normal.
func (e *Engine) EstimateNormals(returns []Return, window int) []Return {
	out := make([]Return, len(returns))
	copy(out, returns)
	if window < 3 {
		return out
	}
	half := window / 2
	neighborhood := make([]r3.Vector, 0, window+1)
	for i := range out {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > len(out)-1 {
			hi = len(out) - 1
		}
		neighborhood = neighborhood[:0]
		for j := lo; j <= hi; j++ {
			// Relative to the return itself to keep the fit well
			// conditioned at projected coordinate magnitudes.
			neighborhood = append(neighborhood, r3.Vector{
				X: out[j].X - out[i].X,
				Y: out[j].Y - out[i].Y,
				Z: out[j].Z - out[i].Z,
			})
		}
		plane, err := planefit.Fit(neighborhood)
		if err != nil {
			continue
		}
		pose, err := e.trajectory.Interpolate(out[i].Time)
		if err != nil {
			continue
		}
		normal := plane.Normal
		toPlatform := pose.Position.Sub(r3.Vector{X: out[i].X, Y: out[i].Y, Z: out[i].Z})
		if normal.Dot(toPlatform) < 0 {
			normal = normal.Mul(-1)
		}
		out[i].Normal = normal
		out[i].HasNormal = true
	}
	return out
}

func (e *Engine) process(ret Return) (Result, error) {
	result := Result{Return: ret}
	if e.capability.Has(CapabilityTPU) {
		uncertainty, err := e.Uncertainty(ret)
		if err != nil {
			return Result{}, err
		}
		result.Uncertainty = uncertainty
	}
	if e.capability.Has(CapabilityBodyFrame) {
		body, err := e.BodyFrame(ret)
		if err != nil {
			return Result{}, err
		}
		result.BodyFrame = body
	}
	return result, nil
}
