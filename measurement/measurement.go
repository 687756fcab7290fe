// Package measurement implements the lidar measurement equation: the forward
// function mapping platform pose, scanner geometry, and sensor configuration
// to a world-frame point, plus the partial derivatives of that function
// needed for uncertainty propagation and calibration.
//
// The equation, in the repository's fixed convention, is
//
//	X = gnss + S * R(imu) * (B(boresight) * s - leverArm)
//
// where S is the NED-to-world axis swap, R and B are Rx*Ry*Rz rotation
// matrices, and s = (range*cos(scanAngle), 0, range*sin(scanAngle)) is the
// scanner-frame beam vector.
package measurement

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/flightlines/lasward/config"
	"github.com/flightlines/lasward/spatialmath"
	"github.com/flightlines/lasward/trajectory"
)

// Measurement is one lidar return bound to the platform pose at its
// timestamp and the sensor configuration. It carries everything the
// uncertainty propagator and the adjustment estimator need, and nothing
// else; it is created per point and discarded with its result.
type Measurement struct {
	gnss      r3.Vector
	imu       spatialmath.EulerAngles
	boresight spatialmath.EulerAngles
	leverArm  r3.Vector
	scanAngle float64
	rng       float64
	point     r3.Vector
	pose      trajectory.PoseSample
	normal    r3.Vector
	hasNormal bool
}

// New binds a world-frame point and its scan angle (degrees, as recorded by
// the scanner) to the interpolated pose and the sensor configuration. The
// range is reconstructed from the distance between the platform and the
// point.
func New(pose trajectory.PoseSample, point r3.Vector, scanAngleDegrees float64, cfg *config.Sensor) *Measurement {
	return &Measurement{
		gnss:      pose.Position,
		imu:       pose.Attitude,
		boresight: cfg.Boresight,
		leverArm:  cfg.LeverArm,
		scanAngle: scanAngleDegrees * math.Pi / 180,
		rng:       pose.Position.Sub(point).Norm(),
		point:     point,
		pose:      pose,
	}
}

// Point returns the measured world-frame point.
func (m *Measurement) Point() r3.Vector { return m.point }

// Gnss returns the platform position at the measurement time.
func (m *Measurement) Gnss() r3.Vector { return m.gnss }

// Imu returns the platform attitude at the measurement time.
func (m *Measurement) Imu() spatialmath.EulerAngles { return m.imu }

// Boresight returns the boresight angles in effect for this measurement.
func (m *Measurement) Boresight() spatialmath.EulerAngles { return m.boresight }

// LeverArm returns the lever arm in effect for this measurement.
func (m *Measurement) LeverArm() r3.Vector { return m.leverArm }

// Range returns the reconstructed scanner-to-point distance.
func (m *Measurement) Range() float64 { return m.rng }

// ScanAngle returns the scan angle in radians.
func (m *Measurement) ScanAngle() float64 { return m.scanAngle }

// Pose returns the interpolated pose this measurement was built from.
func (m *Measurement) Pose() trajectory.PoseSample { return m.pose }

// SetNormal attaches a local surface normal, enabling incidence-angle
// computation. The normal is unitized here.
func (m *Measurement) SetNormal(normal r3.Vector) error {
	if normal.Norm() == 0 {
		return errors.New("surface normal must be nonzero")
	}
	m.normal = normal.Normalize()
	m.hasNormal = true
	return nil
}

// Normal returns the unit surface normal and whether one was set.
func (m *Measurement) Normal() (r3.Vector, bool) {
	return m.normal, m.hasNormal
}

// WithConfig returns a copy of this measurement with the boresight and lever
// arm replaced. The adjustment estimator uses this to re-evaluate residuals
// as its parameter estimate moves.
func (m *Measurement) WithConfig(cfg *config.Sensor) *Measurement {
	out := *m
	out.boresight = cfg.Boresight
	out.leverArm = cfg.LeverArm
	return &out
}

// platformToWorld is the rotation taking body-frame vectors into the
// projected world frame.
func (m *Measurement) platformToWorld() *spatialmath.RotationMatrix {
	return spatialmath.NEDToWorld.Mul(m.imu.RotationMatrix())
}

// scannerVector is the beam vector in the scanner frame.
func (m *Measurement) scannerVector() r3.Vector {
	return r3.Vector{
		X: m.rng * math.Cos(m.scanAngle),
		Y: 0,
		Z: m.rng * math.Sin(m.scanAngle),
	}
}

// Backconvert evaluates the forward lidar equation: the world-frame point
// predicted from pose, scan angle, range, and mounting geometry. Comparing
// it against the measured point checks the equation end to end.
func (m *Measurement) Backconvert() r3.Vector {
	beam := m.boresight.RotationMatrix().MulVec(m.scannerVector())
	return m.gnss.Add(m.platformToWorld().MulVec(beam.Sub(m.leverArm)))
}

// BodyFrame expresses the measured point in the platform body frame at the
// measurement time.
func (m *Measurement) BodyFrame() r3.Vector {
	return m.platformToWorld().Transpose().MulVec(m.point.Sub(m.gnss))
}

// WorldFromBody is the inverse of BodyFrame.
func (m *Measurement) WorldFromBody(body r3.Vector) r3.Vector {
	return m.gnss.Add(m.platformToWorld().MulVec(body))
}

// Misalignment is the discrepancy between the backconverted point and the
// measured point in world coordinates.
func (m *Measurement) Misalignment() r3.Vector {
	return m.Backconvert().Sub(m.point)
}

// BodyFrameMisalignment is the misalignment rotated into the body frame,
// which is where the adjustment estimator minimizes it.
func (m *Measurement) BodyFrameMisalignment() r3.Vector {
	return m.platformToWorld().Transpose().MulVec(m.Misalignment())
}

// LineOfSight is the unit vector from the measured point toward the
// platform.
func (m *Measurement) LineOfSight() r3.Vector {
	return m.gnss.Sub(m.point).Normalize()
}

// IncidenceAngle is the angle in radians between the line of sight and the
// surface normal. Without a normal it is NaN; the caller decides whether
// that is acceptable for the requested outputs.
func (m *Measurement) IncidenceAngle() float64 {
	if !m.hasNormal {
		return math.NaN()
	}
	dot := m.LineOfSight().Dot(m.normal)
	return math.Acos(math.Max(-1, math.Min(1, dot)))
}
