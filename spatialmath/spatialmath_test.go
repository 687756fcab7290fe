package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

func TestRotationMatrixZero(t *testing.T) {
	m := EulerAngles{}.RotationMatrix()
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			expected := 0.
			if row == col {
				expected = 1.
			}
			test.That(t, m.At(row, col), test.ShouldAlmostEqual, expected)
		}
	}
}

func TestRotationMatrixSingleAxis(t *testing.T) {
	theta := math.Pi / 2

	// yaw only rotates about z
	m := EulerAngles{Yaw: theta}.RotationMatrix()
	v := m.MulVec(r3.Vector{X: 1})
	test.That(t, v.X, test.ShouldAlmostEqual, 0)
	test.That(t, v.Y, test.ShouldAlmostEqual, 1)
	test.That(t, v.Z, test.ShouldAlmostEqual, 0)

	// pitch only rotates about y
	m = EulerAngles{Pitch: theta}.RotationMatrix()
	v = m.MulVec(r3.Vector{X: 1})
	test.That(t, v.X, test.ShouldAlmostEqual, 0)
	test.That(t, v.Y, test.ShouldAlmostEqual, 0)
	test.That(t, v.Z, test.ShouldAlmostEqual, -1)

	// roll only rotates about x
	m = EulerAngles{Roll: theta}.RotationMatrix()
	v = m.MulVec(r3.Vector{Y: 1})
	test.That(t, v.X, test.ShouldAlmostEqual, 0)
	test.That(t, v.Y, test.ShouldAlmostEqual, 0)
	test.That(t, v.Z, test.ShouldAlmostEqual, 1)
}

func TestQuaternionMatchesMatrix(t *testing.T) {
	ea := EulerAngles{Roll: 0.1, Pitch: -0.25, Yaw: 2.9}
	direct := ea.RotationMatrix()
	viaQuat := RotationMatrixFromQuaternion(ea.Quaternion())
	for i := 0; i < 9; i++ {
		test.That(t, viaQuat[i], test.ShouldAlmostEqual, direct[i], 1e-12)
	}
}

func TestEulerAnglesRoundTrip(t *testing.T) {
	for _, ea := range []EulerAngles{
		{},
		{Roll: 0.5},
		{Pitch: -0.3},
		{Yaw: 3.0},
		{Roll: 0.02, Pitch: -0.015, Yaw: -2.2},
		{Roll: -1.2, Pitch: 0.7, Yaw: 0.4},
	} {
		back := EulerAnglesFromQuaternion(ea.Quaternion())
		test.That(t, back.Roll, test.ShouldAlmostEqual, ea.Roll, 1e-9)
		test.That(t, back.Pitch, test.ShouldAlmostEqual, ea.Pitch, 1e-9)
		test.That(t, back.Yaw, test.ShouldAlmostEqual, ea.Yaw, 1e-9)
	}
}

func TestTransposeIsInverse(t *testing.T) {
	m := EulerAngles{Roll: 0.3, Pitch: 0.2, Yaw: -1.1}.RotationMatrix()
	identity := m.Mul(m.Transpose())
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			expected := 0.
			if row == col {
				expected = 1.
			}
			test.That(t, identity.At(row, col), test.ShouldAlmostEqual, expected, 1e-12)
		}
	}
}

func TestNEDToWorldInvolution(t *testing.T) {
	identity := NEDToWorld.Mul(&NEDToWorld)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			expected := 0.
			if row == col {
				expected = 1.
			}
			test.That(t, identity.At(row, col), test.ShouldEqual, expected)
		}
	}
}

func TestSlerp(t *testing.T) {
	q1 := EulerAngles{Roll: math.Pi / 4}.Quaternion()
	q2 := quat.Conj(q1)
	s1 := Slerp(q1, q2, 0.25)
	s2 := Slerp(q1, q2, 0.5)

	test.That(t, s1.Real, test.ShouldAlmostEqual, 0.9808, 0.001)
	test.That(t, s1.Imag, test.ShouldAlmostEqual, 0.1951, 0.001)
	test.That(t, s1.Jmag, test.ShouldAlmostEqual, 0)
	test.That(t, s1.Kmag, test.ShouldAlmostEqual, 0)
	test.That(t, s2.Real, test.ShouldAlmostEqual, 1)
	test.That(t, s2.Imag, test.ShouldAlmostEqual, 0)

	// endpoints
	s0 := Slerp(q1, q2, 0)
	test.That(t, QuaternionAlmostEqual(s0, q1, 1e-9), test.ShouldBeTrue)
	sEnd := Slerp(q1, q2, 1)
	test.That(t, QuaternionAlmostEqual(sEnd, q2, 1e-9), test.ShouldBeTrue)
}

func TestSlerpTakesShortArc(t *testing.T) {
	// yaw wraps at +/- pi; halfway between 179 and -179 degrees is 180, not 0
	q1 := EulerAngles{Yaw: 179 * math.Pi / 180}.Quaternion()
	q2 := EulerAngles{Yaw: -179 * math.Pi / 180}.Quaternion()
	mid := EulerAnglesFromQuaternion(Slerp(q1, q2, 0.5))
	test.That(t, math.Abs(mid.Yaw), test.ShouldAlmostEqual, math.Pi, 1e-9)
}
