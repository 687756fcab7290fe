// Package spatialmath defines the rotation and orientation primitives shared
// by the trajectory, measurement, and adjustment packages.
//
// All angles are radians. The Euler convention is fixed across the whole
// repository: an intrinsic Z -> Y' -> X'' (yaw, pitch, roll) rotation, which
// composes as the extrinsic product Rx(roll) * Ry(pitch) * Rz(yaw). Active
// rotations throughout.
package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// EulerAngles are three angles used to represent the rotation of a platform
// or sensor in its reference frame.
type EulerAngles struct {
	Roll  float64
	Pitch float64
	Yaw   float64
}

// NewEulerAngles creates an empty EulerAngles struct.
func NewEulerAngles() *EulerAngles {
	return &EulerAngles{Roll: 0, Pitch: 0, Yaw: 0}
}

// RotationMatrix returns the 3x3 rotation matrix for these angles,
// Rx(roll) * Ry(pitch) * Rz(yaw).
func (ea EulerAngles) RotationMatrix() *RotationMatrix {
	c1, s1 := math.Cos(ea.Roll), math.Sin(ea.Roll)
	c2, s2 := math.Cos(ea.Pitch), math.Sin(ea.Pitch)
	c3, s3 := math.Cos(ea.Yaw), math.Sin(ea.Yaw)
	return &RotationMatrix{
		c2 * c3, -c2 * s3, s2,
		c1*s3 + c3*s1*s2, c1*c3 - s1*s2*s3, -c2 * s1,
		s1*s3 - c1*c3*s2, c3*s1 + c1*s2*s3, c1 * c2,
	}
}

// Quaternion returns the unit quaternion with the same rotation as these
// angles.
func (ea EulerAngles) Quaternion() quat.Number {
	qx := quat.Number{Real: math.Cos(ea.Roll / 2), Imag: math.Sin(ea.Roll / 2)}
	qy := quat.Number{Real: math.Cos(ea.Pitch / 2), Jmag: math.Sin(ea.Pitch / 2)}
	qz := quat.Number{Real: math.Cos(ea.Yaw / 2), Kmag: math.Sin(ea.Yaw / 2)}
	return quat.Mul(quat.Mul(qx, qy), qz)
}

// EulerAnglesFromQuaternion converts a quaternion back into roll, pitch, and
// yaw under the repository's rotation convention.
func EulerAnglesFromQuaternion(q quat.Number) EulerAngles {
	m := RotationMatrixFromQuaternion(q)
	return EulerAngles{
		Roll:  math.Atan2(-m.At(1, 2), m.At(2, 2)),
		Pitch: math.Asin(clamp(m.At(0, 2), -1, 1)),
		Yaw:   math.Atan2(-m.At(0, 1), m.At(0, 0)),
	}
}

// WithRoll returns a copy of these angles with the roll replaced.
func (ea EulerAngles) WithRoll(roll float64) EulerAngles {
	return EulerAngles{Roll: roll, Pitch: ea.Pitch, Yaw: ea.Yaw}
}

// WithPitch returns a copy of these angles with the pitch replaced.
func (ea EulerAngles) WithPitch(pitch float64) EulerAngles {
	return EulerAngles{Roll: ea.Roll, Pitch: pitch, Yaw: ea.Yaw}
}

// WithYaw returns a copy of these angles with the yaw replaced.
func (ea EulerAngles) WithYaw(yaw float64) EulerAngles {
	return EulerAngles{Roll: ea.Roll, Pitch: ea.Pitch, Yaw: yaw}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
