package measurement

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/flightlines/lasward/config"
	"github.com/flightlines/lasward/spatialmath"
	"github.com/flightlines/lasward/trajectory"
)

func testConfig() *config.Sensor {
	return &config.Sensor{
		UTMZone: 11,
		Boresight: spatialmath.EulerAngles{
			Roll:  0.002,
			Pitch: -0.0015,
			Yaw:   0.001,
		},
		LeverArm: r3.Vector{X: 0.1, Y: -0.05, Z: 0.2},
		Errors:   config.DefaultErrorModel(),
	}
}

func testPose() trajectory.PoseSample {
	return trajectory.PoseSample{
		Time:     400825.80,
		Position: r3.Vector{X: 100, Y: -50, Z: 1200},
		Attitude: spatialmath.EulerAngles{Roll: 0.01, Pitch: -0.02, Yaw: 1.3},
	}
}

func testMeasurement() *Measurement {
	return New(testPose(), r3.Vector{X: 350, Y: 125, Z: 80}, -11.5, testConfig())
}

func TestNewDerivesRange(t *testing.T) {
	m := testMeasurement()
	expected := testPose().Position.Sub(m.Point()).Norm()
	test.That(t, m.Range(), test.ShouldAlmostEqual, expected)
	test.That(t, m.ScanAngle(), test.ShouldAlmostEqual, -11.5*math.Pi/180)
}

func TestBackconvertConsistentGeometry(t *testing.T) {
	// with no lever arm the reconstructed range equals the beam length, so
	// a point generated by the forward equation must backconvert exactly
	cfg := testConfig()
	cfg.LeverArm = r3.Vector{}
	pose := testPose()
	scanAngle := 13.25
	seed := New(pose, pose.Position.Add(r3.Vector{Z: -100}), scanAngle, cfg)
	seed.rng = 1350
	point := seed.Backconvert()

	m := New(pose, point, scanAngle, cfg)
	back := m.Backconvert()
	test.That(t, back.X, test.ShouldAlmostEqual, point.X, 1e-9)
	test.That(t, back.Y, test.ShouldAlmostEqual, point.Y, 1e-9)
	test.That(t, back.Z, test.ShouldAlmostEqual, point.Z, 1e-9)
	misalignment := m.Misalignment()
	test.That(t, misalignment.Norm(), test.ShouldAlmostEqual, 0, 1e-9)
}

func TestBodyFrameRoundTrip(t *testing.T) {
	m := testMeasurement()
	body := m.BodyFrame()
	world := m.WorldFromBody(body)
	test.That(t, world.X, test.ShouldAlmostEqual, m.Point().X, 1e-9)
	test.That(t, world.Y, test.ShouldAlmostEqual, m.Point().Y, 1e-9)
	test.That(t, world.Z, test.ShouldAlmostEqual, m.Point().Z, 1e-9)
}

func TestBodyFrameZeroAttitude(t *testing.T) {
	cfg := testConfig()
	pose := trajectory.PoseSample{Position: r3.Vector{}, Attitude: spatialmath.EulerAngles{}}
	m := New(pose, r3.Vector{X: 1, Y: 2, Z: 3}, 0, cfg)
	// with zero attitude only swap axes remain: world (x, y, z) is body
	// (y, x, -z)
	body := m.BodyFrame()
	test.That(t, body.X, test.ShouldAlmostEqual, 2)
	test.That(t, body.Y, test.ShouldAlmostEqual, 1)
	test.That(t, body.Z, test.ShouldAlmostEqual, -3)
}

func TestPartialsAgainstFiniteDifferences(t *testing.T) {
	m := testMeasurement()
	const delta = 1e-5
	for _, variable := range Variables() {
		for _, dimension := range Dimensions() {
			analytic := m.Partial(dimension, variable)
			numeric := m.FiniteDifference(dimension, variable, delta)
			tol := 1e-4 + 1e-6*math.Abs(analytic)
			test.That(t, analytic, test.ShouldAlmostEqual, numeric, tol)
		}
	}
}

func TestPartialsGnssIdentity(t *testing.T) {
	m := testMeasurement()
	test.That(t, m.Partial(DimX, GnssX), test.ShouldEqual, 1)
	test.That(t, m.Partial(DimY, GnssX), test.ShouldEqual, 0)
	test.That(t, m.Partial(DimY, GnssY), test.ShouldEqual, 1)
	test.That(t, m.Partial(DimZ, GnssZ), test.ShouldEqual, 1)
}

func TestJacobianShapeAndEntries(t *testing.T) {
	m := testMeasurement()
	jacobian := m.Jacobian()
	rows, cols := jacobian.Dims()
	test.That(t, rows, test.ShouldEqual, 3)
	test.That(t, cols, test.ShouldEqual, NumVariables)
	for col, variable := range Variables() {
		for row, dimension := range Dimensions() {
			test.That(t, jacobian.At(row, col), test.ShouldEqual, m.Partial(dimension, variable))
		}
	}
}

func TestCheckPartialLinearVariable(t *testing.T) {
	m := testMeasurement()
	check := m.CheckPartial(DimX, GnssX, 0.01)
	// gnss partials are exactly linear, so the realized error is zero
	test.That(t, check.Error, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, check.Partial, test.ShouldEqual, 1)
}

func TestCheckPartialAngularVariable(t *testing.T) {
	m := testMeasurement()
	check := m.CheckPartial(DimZ, ImuRoll, 0.001)
	// nonlinear in roll, but a millimeter-scale perturbation should land
	// within a few micrometers of the prediction
	test.That(t, math.Abs(check.Error), test.ShouldBeLessThan, 1e-5)
}

func TestIncidenceAngle(t *testing.T) {
	cfg := testConfig()
	pose := trajectory.PoseSample{Position: r3.Vector{Z: 1000}}
	m := New(pose, r3.Vector{}, 0, cfg)

	test.That(t, math.IsNaN(m.IncidenceAngle()), test.ShouldBeTrue)

	// normal parallel to the line of sight
	test.That(t, m.SetNormal(r3.Vector{Z: 1}), test.ShouldBeNil)
	test.That(t, m.IncidenceAngle(), test.ShouldAlmostEqual, 0, 1e-12)

	// normal perpendicular to the line of sight
	test.That(t, m.SetNormal(r3.Vector{X: 1}), test.ShouldBeNil)
	test.That(t, m.IncidenceAngle(), test.ShouldAlmostEqual, math.Pi/2, 1e-12)

	test.That(t, m.SetNormal(r3.Vector{}), test.ShouldNotBeNil)
}

func TestWithConfig(t *testing.T) {
	m := testMeasurement()
	cfg := testConfig()
	cfg.Boresight = spatialmath.EulerAngles{Roll: 0.1}
	cfg.LeverArm = r3.Vector{X: 1}
	updated := m.WithConfig(cfg)
	test.That(t, updated.Boresight().Roll, test.ShouldEqual, 0.1)
	test.That(t, updated.LeverArm().X, test.ShouldEqual, 1.)
	// original untouched, and pose geometry carries over
	test.That(t, m.Boresight().Roll, test.ShouldEqual, 0.002)
	test.That(t, updated.Range(), test.ShouldEqual, m.Range())
	test.That(t, updated.Point(), test.ShouldResemble, m.Point())
}

func TestBodyFrameMisalignment(t *testing.T) {
	m := testMeasurement()
	world := m.Misalignment()
	body := m.BodyFrameMisalignment()
	// rotation preserves length
	test.That(t, body.Norm(), test.ShouldAlmostEqual, world.Norm(), 1e-9)
}
