package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// RotationMatrix is a 3x3 rotation matrix in row major order.
type RotationMatrix [9]float64

// NEDToWorld is the fixed axis swap between the navigation (north, east,
// down) frame the attitude angles are defined in and the projected world
// frame (easting, northing, up).
var NEDToWorld = RotationMatrix{
	0, 1, 0,
	1, 0, 0,
	0, 0, -1,
}

// At returns the value of the matrix at the given row and column.
func (rm *RotationMatrix) At(row, col int) float64 {
	return rm[row*3+col]
}

// Row returns the a vector representing a particular row of the matrix.
func (rm *RotationMatrix) Row(row int) r3.Vector {
	return r3.Vector{X: rm[row*3], Y: rm[row*3+1], Z: rm[row*3+2]}
}

// MulVec returns the matrix-vector product rm * v.
func (rm *RotationMatrix) MulVec(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: rm.Row(0).Dot(v),
		Y: rm.Row(1).Dot(v),
		Z: rm.Row(2).Dot(v),
	}
}

// Transpose returns the transpose, which for a rotation matrix is also its
// inverse.
func (rm *RotationMatrix) Transpose() *RotationMatrix {
	return &RotationMatrix{
		rm[0], rm[3], rm[6],
		rm[1], rm[4], rm[7],
		rm[2], rm[5], rm[8],
	}
}

// Mul returns the matrix product rm * other.
func (rm *RotationMatrix) Mul(other *RotationMatrix) *RotationMatrix {
	var out RotationMatrix
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += rm.At(row, k) * other.At(k, col)
			}
			out[row*3+col] = sum
		}
	}
	return &out
}

// RotationMatrixFromQuaternion returns the rotation matrix of a unit
// quaternion.
func RotationMatrixFromQuaternion(q quat.Number) *RotationMatrix {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return &RotationMatrix{
		1 - 2*y*y - 2*z*z, 2*x*y - 2*w*z, 2*x*z + 2*w*y,
		2*x*y + 2*w*z, 1 - 2*x*x - 2*z*z, 2*y*z - 2*w*x,
		2*x*z - 2*w*y, 2*y*z + 2*w*x, 1 - 2*x*x - 2*y*y,
	}
}
