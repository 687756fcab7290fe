package trajectory

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/flightlines/lasward/geodesy"
	"github.com/flightlines/lasward/spatialmath"
)

// sbetRecordSize is the fixed width of one smoothed best estimate of
// trajectory (SBET) record: seventeen little-endian float64 fields.
const sbetRecordSize = 17 * 8

// GeodeticSample is one SBET record. Angles are radians; the altitude is
// ellipsoidal meters.
type GeodeticSample struct {
	Time      float64
	Latitude  float64
	Longitude float64
	Altitude  float64
	Velocity  r3.Vector
	Attitude  spatialmath.EulerAngles
}

// ReadSbet decodes every record from an SBET stream.
func ReadSbet(r io.Reader) ([]GeodeticSample, error) {
	var samples []GeodeticSample
	buf := make([]byte, sbetRecordSize)
	for {
		_, err := io.ReadFull(r, buf)
		if errors.Is(err, io.EOF) {
			return samples, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.Errorf("truncated sbet record after %d samples", len(samples))
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading sbet record")
		}
		field := func(i int) float64 {
			return math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		samples = append(samples, GeodeticSample{
			Time:      field(0),
			Latitude:  field(1),
			Longitude: field(2),
			Altitude:  field(3),
			Velocity:  r3.Vector{X: field(4), Y: field(5), Z: field(6)},
			Attitude: spatialmath.EulerAngles{
				Roll:  field(7),
				Pitch: field(8),
				Yaw:   field(9),
			},
		})
	}
}

// ReadSbetFile reads a whole SBET file into memory.
func ReadSbetFile(path string, logger golog.Logger) (samples []GeodeticSample, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening sbet file %s", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	samples, err = ReadSbet(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading sbet file %s", path)
	}
	logger.Debugw("read sbet file", "path", path, "samples", len(samples))
	return samples, nil
}

// Project places geodetic samples into the projected world frame for a UTM
// zone and builds a trajectory from them. The given sigmas are attached to
// every sample; pass zero values if the trajectory's uncertainty comes from
// the sensor configuration instead.
func Project(
	samples []GeodeticSample,
	zone uint8,
	positionSigma r3.Vector,
	attitudeSigma spatialmath.EulerAngles,
) (*Trajectory, error) {
	if err := geodesy.ValidateZone(zone); err != nil {
		return nil, err
	}
	poses := make([]PoseSample, 0, len(samples))
	for _, sample := range samples {
		projected := geodesy.GeodeticToProjected(
			r3.Vector{X: sample.Longitude, Y: sample.Latitude, Z: sample.Altitude}, zone)
		poses = append(poses, PoseSample{
			Time:          sample.Time,
			Position:      projected,
			Attitude:      sample.Attitude,
			PositionSigma: positionSigma,
			AttitudeSigma: attitudeSigma,
		})
	}
	return New(poses)
}
