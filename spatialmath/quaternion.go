package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// QuaternionAlmostEqual returns whether two quaternions represent nearly the
// same rotation, to within tol per component. q and -q are the same rotation.
func QuaternionAlmostEqual(q1, q2 quat.Number, tol float64) bool {
	if quatDot(q1, q2) < 0 {
		q2 = quat.Scale(-1, q2)
	}
	diff := quat.Sub(q1, q2)
	return math.Abs(diff.Real) < tol && math.Abs(diff.Imag) < tol &&
		math.Abs(diff.Jmag) < tol && math.Abs(diff.Kmag) < tol
}

// Slerp spherically interpolates between two unit quaternions. t is in
// [0, 1]; t=0 returns q1 and t=1 returns q2. The shorter arc is always
// taken, so interpolation is stable across angle wraparound.
func Slerp(q1, q2 quat.Number, t float64) quat.Number {
	dot := quatDot(q1, q2)
	if dot < 0 {
		q2 = quat.Scale(-1, q2)
		dot = -dot
	}
	// Nearly parallel quaternions degrade slerp numerically; fall back to a
	// normalized linear blend.
	if dot > 0.9995 {
		lerp := quat.Add(q1, quat.Scale(t, quat.Sub(q2, q1)))
		return Normalize(lerp)
	}
	theta0 := math.Acos(clamp(dot, -1, 1))
	theta := theta0 * t
	sinTheta0 := math.Sin(theta0)
	s1 := math.Sin(theta0-theta) / sinTheta0
	s2 := math.Sin(theta) / sinTheta0
	return quat.Add(quat.Scale(s1, q1), quat.Scale(s2, q2))
}

// Normalize scales a quaternion to unit length.
func Normalize(q quat.Number) quat.Number {
	norm := math.Sqrt(quatDot(q, q))
	if norm == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/norm, q)
}

func quatDot(q1, q2 quat.Number) float64 {
	return q1.Real*q2.Real + q1.Imag*q2.Imag + q1.Jmag*q2.Jmag + q1.Kmag*q2.Kmag
}
