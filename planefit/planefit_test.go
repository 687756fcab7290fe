package planefit

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestFitHorizontalPlane(t *testing.T) {
	// a flat patch 100 m below the platform, the usual body-frame geometry
	points := []r3.Vector{
		{X: 0, Y: 0, Z: 100},
		{X: 10, Y: 0, Z: 100},
		{X: 0, Y: 10, Z: 100},
		{X: 10, Y: 10, Z: 100},
		{X: 5, Y: 5, Z: 100},
	}
	plane, err := Fit(points)
	test.That(t, err, test.ShouldBeNil)
	// normal points back up toward the sensor at the origin
	test.That(t, plane.Normal.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, plane.Normal.Y, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, plane.Normal.Z, test.ShouldAlmostEqual, -1, 1e-12)
	test.That(t, plane.Centroid.Z, test.ShouldAlmostEqual, 100)
	test.That(t, plane.Distance(r3.Vector{X: 3, Y: 7, Z: 100}), test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, math.Abs(plane.Distance(r3.Vector{Z: 99})), test.ShouldAlmostEqual, 1, 1e-12)
}

func TestFitSlopedPlane(t *testing.T) {
	// z = x + 50, normal proportional to (1, 0, -1)
	var points []r3.Vector
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			x, y := float64(i), float64(j)
			points = append(points, r3.Vector{X: x, Y: y, Z: x + 50})
		}
	}
	plane, err := Fit(points)
	test.That(t, err, test.ShouldBeNil)
	invSqrt2 := 1 / math.Sqrt(2)
	test.That(t, plane.Normal.X, test.ShouldAlmostEqual, invSqrt2, 1e-9)
	test.That(t, plane.Normal.Y, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, plane.Normal.Z, test.ShouldAlmostEqual, -invSqrt2, 1e-9)
	test.That(t, plane.RMSDistance(points), test.ShouldAlmostEqual, 0, 1e-9)
}

func TestFitNoisyPlane(t *testing.T) {
	// deterministic millimeter-scale roughness on a flat patch
	var points []r3.Vector
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			x, y := float64(i), float64(j)
			noise := 0.001 * math.Sin(3*x+5*y)
			points = append(points, r3.Vector{X: x, Y: y, Z: 80 + noise})
		}
	}
	plane, err := Fit(points)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, plane.Normal.Z, test.ShouldAlmostEqual, -1, 1e-4)
	test.That(t, plane.RMSDistance(points), test.ShouldBeLessThan, 0.01)
}

func TestFitTooFewPoints(t *testing.T) {
	_, err := Fit(nil)
	test.That(t, errors.Is(err, ErrDegeneratePlane), test.ShouldBeTrue)
	_, err = Fit([]r3.Vector{{X: 1}, {X: 2}})
	test.That(t, errors.Is(err, ErrDegeneratePlane), test.ShouldBeTrue)
}

func TestFitCollinearPoints(t *testing.T) {
	points := []r3.Vector{
		{X: 1, Y: 1, Z: 1},
		{X: 2, Y: 2, Z: 2},
		{X: 3, Y: 3, Z: 3},
		{X: 4, Y: 4, Z: 4},
	}
	_, err := Fit(points)
	test.That(t, errors.Is(err, ErrDegeneratePlane), test.ShouldBeTrue)
}

func TestFitCoincidentPoints(t *testing.T) {
	points := []r3.Vector{
		{X: 1, Y: 2, Z: 3},
		{X: 1, Y: 2, Z: 3},
		{X: 1, Y: 2, Z: 3},
	}
	_, err := Fit(points)
	test.That(t, errors.Is(err, ErrDegeneratePlane), test.ShouldBeTrue)
}

func TestEquationAndOffset(t *testing.T) {
	plane := &Plane{Normal: r3.Vector{Z: -1}, Centroid: r3.Vector{Z: 100}}
	test.That(t, plane.Offset(), test.ShouldAlmostEqual, 100)
	eq := plane.Equation()
	test.That(t, eq[2], test.ShouldEqual, -1.)
	test.That(t, eq[3], test.ShouldAlmostEqual, 100)
}
