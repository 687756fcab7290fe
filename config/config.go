// Package config holds the static sensor and platform configuration: the
// mounting geometry of the scanner and the one-sigma error model for every
// measured quantity. A Sensor is loaded once per processing run and is
// read-only afterwards, so it is safe to share across goroutines.
package config

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/flightlines/lasward/geodesy"
	"github.com/flightlines/lasward/spatialmath"
)

// Sensor is the per-sensor configuration: the fixed rotational misalignment
// between scanner and platform (boresight), the translational offset between
// the scanner reference point and the navigation reference point (lever
// arm), the UTM zone the survey is projected into, and the measurement error
// model.
type Sensor struct {
	UTMZone   uint8
	Boresight spatialmath.EulerAngles
	LeverArm  r3.Vector
	Errors    ErrorModel
}

// ErrorModel holds one standard deviation for each of the fourteen variables
// of the lidar equation. Distances are meters, angles radians.
type ErrorModel struct {
	GnssX          float64
	GnssY          float64
	GnssZ          float64
	ImuRoll        float64
	ImuPitch       float64
	ImuYaw         float64
	BoresightRoll  float64
	BoresightPitch float64
	BoresightYaw   float64
	Range          float64
	ScanAngle      float64
	LeverArmX      float64
	LeverArmY      float64
	LeverArmZ      float64
}

// DefaultErrorModel returns the error model for a typical survey-grade
// GNSS/IMU and scanner combination.
func DefaultErrorModel() ErrorModel {
	const degree = math.Pi / 180
	return ErrorModel{
		GnssX:          0.02,
		GnssY:          0.02,
		GnssZ:          0.04,
		ImuRoll:        0.0025 * degree,
		ImuPitch:       0.0025 * degree,
		ImuYaw:         0.005 * degree,
		BoresightRoll:  0.001 * degree,
		BoresightPitch: 0.001 * degree,
		BoresightYaw:   0.004 * degree,
		Range:          0.02,
		ScanAngle:      0.001 * degree,
		LeverArmX:      0.02,
		LeverArmY:      0.02,
		LeverArmZ:      0.02,
	}
}

// Validate checks that the configuration can support uncertainty
// propagation.
func (s *Sensor) Validate() error {
	if err := geodesy.ValidateZone(s.UTMZone); err != nil {
		return err
	}
	return s.Errors.Validate()
}

// Validate checks that every sigma in the model is positive and finite.
func (em *ErrorModel) Validate() error {
	for _, sigma := range []struct {
		name  string
		value float64
	}{
		{"gnss x", em.GnssX},
		{"gnss y", em.GnssY},
		{"gnss z", em.GnssZ},
		{"imu roll", em.ImuRoll},
		{"imu pitch", em.ImuPitch},
		{"imu yaw", em.ImuYaw},
		{"boresight roll", em.BoresightRoll},
		{"boresight pitch", em.BoresightPitch},
		{"boresight yaw", em.BoresightYaw},
		{"range", em.Range},
		{"scan angle", em.ScanAngle},
		{"lever arm x", em.LeverArmX},
		{"lever arm y", em.LeverArmY},
		{"lever arm z", em.LeverArmZ},
	} {
		if sigma.value <= 0 || math.IsNaN(sigma.value) || math.IsInf(sigma.value, 0) {
			return errors.Errorf("error model sigma for %s must be positive and finite, got %f",
				sigma.name, sigma.value)
		}
	}
	return nil
}
