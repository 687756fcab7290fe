// Package trajectory stores time-ordered platform pose samples and answers
// interpolation queries by timestamp.
package trajectory

import (
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/flightlines/lasward/spatialmath"
)

// ErrOutOfRange is returned when a query time falls outside the time span
// covered by a trajectory. There is no extrapolation; a caller that wants
// points near the ends of a flight line needs trajectory data that covers
// them.
var ErrOutOfRange = errors.New("query time outside trajectory coverage")

// PoseSample is one platform pose: where the platform was, how it was
// oriented, and how well both are known. Positions are in the projected
// world frame, attitude angles in radians. The sigma fields are one-standard
// -deviation uncertainties per axis; zero means unknown.
type PoseSample struct {
	Time          float64
	Position      r3.Vector
	Attitude      spatialmath.EulerAngles
	PositionSigma r3.Vector
	AttitudeSigma spatialmath.EulerAngles
}

// Trajectory is an immutable, time-ordered sequence of pose samples.
type Trajectory struct {
	samples []PoseSample
}

// New validates and wraps a sequence of pose samples. The samples must be
// nonempty with strictly increasing timestamps.
func New(samples []PoseSample) (*Trajectory, error) {
	if len(samples) == 0 {
		return nil, errors.New("cannot create a trajectory with no samples")
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Time <= samples[i-1].Time {
			return nil, errors.Errorf(
				"trajectory timestamps must be strictly increasing: sample %d at %f does not follow %f",
				i, samples[i].Time, samples[i-1].Time)
		}
	}
	return &Trajectory{samples: samples}, nil
}

// Len returns the number of samples.
func (t *Trajectory) Len() int {
	return len(t.samples)
}

// StartTime returns the timestamp of the first sample.
func (t *Trajectory) StartTime() float64 {
	return t.samples[0].Time
}

// EndTime returns the timestamp of the last sample.
func (t *Trajectory) EndTime() float64 {
	return t.samples[len(t.samples)-1].Time
}

// Samples returns the underlying samples. Callers must not modify them.
func (t *Trajectory) Samples() []PoseSample {
	return t.samples
}

// Interpolate returns the pose at an arbitrary time within the trajectory's
// coverage. Position and the sigma fields blend linearly between the
// bracketing samples; attitude goes through quaternion slerp so angles stay
// correct across wraparound. Querying the exact timestamp of a stored
// sample returns that sample. Times before the first or after the last
// sample fail with ErrOutOfRange.
func (t *Trajectory) Interpolate(time float64) (PoseSample, error) {
	if time < t.StartTime() || time > t.EndTime() {
		return PoseSample{}, errors.Wrapf(ErrOutOfRange,
			"time %f not in [%f, %f]", time, t.StartTime(), t.EndTime())
	}
	// index of the first sample at or after the query time
	i := sort.Search(len(t.samples), func(i int) bool {
		return t.samples[i].Time >= time
	})
	if t.samples[i].Time == time {
		return t.samples[i], nil
	}
	before, after := t.samples[i-1], t.samples[i]
	w := (time - before.Time) / (after.Time - before.Time)
	attitude := spatialmath.EulerAnglesFromQuaternion(spatialmath.Slerp(
		before.Attitude.Quaternion(), after.Attitude.Quaternion(), w))
	return PoseSample{
		Time:          time,
		Position:      lerpVector(before.Position, after.Position, w),
		Attitude:      attitude,
		PositionSigma: lerpVector(before.PositionSigma, after.PositionSigma, w),
		AttitudeSigma: spatialmath.EulerAngles{
			Roll:  lerp(before.AttitudeSigma.Roll, after.AttitudeSigma.Roll, w),
			Pitch: lerp(before.AttitudeSigma.Pitch, after.AttitudeSigma.Pitch, w),
			Yaw:   lerp(before.AttitudeSigma.Yaw, after.AttitudeSigma.Yaw, w),
		},
	}, nil
}

func lerp(a, b, w float64) float64 {
	return a + (b-a)*w
}

func lerpVector(a, b r3.Vector, w float64) r3.Vector {
	return a.Add(b.Sub(a).Mul(w))
}
