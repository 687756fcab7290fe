package trajectory

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/flightlines/lasward/spatialmath"
)

func testSamples() []PoseSample {
	return []PoseSample{
		{
			Time:          100,
			Position:      r3.Vector{X: 0, Y: 0, Z: 1000},
			Attitude:      spatialmath.EulerAngles{Yaw: 0},
			PositionSigma: r3.Vector{X: 0.02, Y: 0.02, Z: 0.04},
			AttitudeSigma: spatialmath.EulerAngles{Roll: 0.001, Pitch: 0.001, Yaw: 0.002},
		},
		{
			Time:          101,
			Position:      r3.Vector{X: 10, Y: 20, Z: 1010},
			Attitude:      spatialmath.EulerAngles{Yaw: 0.2},
			PositionSigma: r3.Vector{X: 0.04, Y: 0.04, Z: 0.08},
			AttitudeSigma: spatialmath.EulerAngles{Roll: 0.003, Pitch: 0.003, Yaw: 0.006},
		},
		{
			Time:     103,
			Position: r3.Vector{X: 30, Y: 60, Z: 1030},
			Attitude: spatialmath.EulerAngles{Yaw: 0.4},
		},
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil)
	test.That(t, err, test.ShouldNotBeNil)

	samples := testSamples()
	samples[2].Time = samples[1].Time
	_, err = New(samples)
	test.That(t, err, test.ShouldNotBeNil)

	traj, err := New(testSamples())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, traj.Len(), test.ShouldEqual, 3)
	test.That(t, traj.StartTime(), test.ShouldEqual, 100.)
	test.That(t, traj.EndTime(), test.ShouldEqual, 103.)
}

func TestInterpolateAtBreakpoints(t *testing.T) {
	traj, err := New(testSamples())
	test.That(t, err, test.ShouldBeNil)
	for _, sample := range traj.Samples() {
		got, err := traj.Interpolate(sample.Time)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldResemble, sample)
	}
}

func TestInterpolateConvexCombination(t *testing.T) {
	traj, err := New(testSamples())
	test.That(t, err, test.ShouldBeNil)
	got, err := traj.Interpolate(100.25)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Position.X, test.ShouldAlmostEqual, 2.5)
	test.That(t, got.Position.Y, test.ShouldAlmostEqual, 5)
	test.That(t, got.Position.Z, test.ShouldAlmostEqual, 1002.5)
	test.That(t, got.Attitude.Yaw, test.ShouldAlmostEqual, 0.05, 1e-9)
	test.That(t, got.PositionSigma.X, test.ShouldAlmostEqual, 0.025)
	test.That(t, got.PositionSigma.Z, test.ShouldAlmostEqual, 0.05)
	test.That(t, got.AttitudeSigma.Yaw, test.ShouldAlmostEqual, 0.003)
}

func TestInterpolateOutOfRange(t *testing.T) {
	traj, err := New(testSamples())
	test.That(t, err, test.ShouldBeNil)
	_, err = traj.Interpolate(99.999)
	test.That(t, errors.Is(err, ErrOutOfRange), test.ShouldBeTrue)
	_, err = traj.Interpolate(103.001)
	test.That(t, errors.Is(err, ErrOutOfRange), test.ShouldBeTrue)
}

func TestInterpolateYawWraparound(t *testing.T) {
	traj, err := New([]PoseSample{
		{Time: 0, Attitude: spatialmath.EulerAngles{Yaw: 179 * math.Pi / 180}},
		{Time: 1, Attitude: spatialmath.EulerAngles{Yaw: -179 * math.Pi / 180}},
	})
	test.That(t, err, test.ShouldBeNil)
	got, err := traj.Interpolate(0.5)
	test.That(t, err, test.ShouldBeNil)
	// halfway between 179 and -179 degrees is 180, not 0
	test.That(t, math.Abs(got.Attitude.Yaw), test.ShouldAlmostEqual, math.Pi, 1e-9)
}

func sbetBytes(records ...[17]float64) []byte {
	var buf bytes.Buffer
	for _, record := range records {
		for _, field := range record {
			binary.Write(&buf, binary.LittleEndian, field) //nolint:errcheck
		}
	}
	return buf.Bytes()
}

func TestReadSbet(t *testing.T) {
	lat := 37.76 * math.Pi / 180
	lon := -119.04 * math.Pi / 180
	data := sbetBytes(
		[17]float64{400825.80, lat, lon, 2687.59, 1, 2, 3, 0.01, 0.02, 0.03},
		[17]float64{400825.81, lat, lon, 2688.59, 1, 2, 3, 0.01, 0.02, 0.03},
	)
	samples, err := ReadSbet(bytes.NewReader(data))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(samples), test.ShouldEqual, 2)
	test.That(t, samples[0].Time, test.ShouldEqual, 400825.80)
	test.That(t, samples[0].Latitude, test.ShouldAlmostEqual, lat)
	test.That(t, samples[0].Longitude, test.ShouldAlmostEqual, lon)
	test.That(t, samples[0].Altitude, test.ShouldEqual, 2687.59)
	test.That(t, samples[0].Attitude.Roll, test.ShouldEqual, 0.01)
	test.That(t, samples[1].Altitude, test.ShouldEqual, 2688.59)
}

func TestReadSbetTruncated(t *testing.T) {
	data := sbetBytes([17]float64{400825.80})
	_, err := ReadSbet(bytes.NewReader(data[:sbetRecordSize-8]))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestProject(t *testing.T) {
	samples := []GeodeticSample{
		{
			Time:      1,
			Latitude:  37.76149775590434 * math.Pi / 180,
			Longitude: -119.043462374326 * math.Pi / 180,
			Altitude:  2687.59,
		},
		{Time: 2, Latitude: 37.762 * math.Pi / 180, Longitude: -119.044 * math.Pi / 180, Altitude: 2690},
	}
	traj, err := Project(samples, 11, r3.Vector{X: 0.02, Y: 0.02, Z: 0.04}, spatialmath.EulerAngles{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, traj.Len(), test.ShouldEqual, 2)
	first := traj.Samples()[0]
	test.That(t, first.Position.X, test.ShouldAlmostEqual, 320000.34, 0.01)
	test.That(t, first.Position.Y, test.ShouldAlmostEqual, 4181319.35, 0.01)
	test.That(t, first.PositionSigma.Z, test.ShouldEqual, 0.04)

	_, err = Project(samples, 0, r3.Vector{}, spatialmath.EulerAngles{})
	test.That(t, err, test.ShouldNotBeNil)
}
