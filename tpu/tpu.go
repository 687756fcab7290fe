// Package tpu propagates measurement-input uncertainty through the lidar
// equation to a per-point total propagated uncertainty.
//
// Propagation is standard first order: the 3x3 output covariance is
// J * C * J^T, where J is the 3x14 Jacobian of the lidar equation and C is
// the block-diagonal input covariance assembled from the trajectory's
// per-sample sigmas and the sensor error model.
package tpu

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/flightlines/lasward/config"
	"github.com/flightlines/lasward/measurement"
)

var (
	// ErrSingularJacobian is returned when the Jacobian is too
	// ill-conditioned for the propagated covariance to mean anything.
	ErrSingularJacobian = errors.New("jacobian is singular or ill-conditioned")

	// ErrMissingInput is returned when a required sigma is absent from
	// both the pose sample and the error model.
	ErrMissingInput = errors.New("missing input sigma for uncertainty propagation")
)

// maxConditionNumber bounds the acceptable 2-norm condition number of the
// Jacobian.
const maxConditionNumber = 1e12

// Uncertainty is the total propagated uncertainty of one lidar point. All
// sigmas are one-standard-deviation values in meters.
//
// Conventions: SigmaX and SigmaY are the square roots of the horizontal
// diagonal elements of the output covariance; Horizontal is their quadrature
// sum sqrt(cxx + cyy); Vertical is sqrt(czz); Magnitude is the full
// quadrature sum sqrt(cxx + cyy + czz). IncidenceAngle is degrees, NaN when
// no surface normal was available.
type Uncertainty struct {
	SigmaX         float64
	SigmaY         float64
	Horizontal     float64
	Vertical       float64
	Magnitude      float64
	IncidenceAngle float64
}

// Propagate computes the total propagated uncertainty for one measurement.
// Per-sample trajectory sigmas take precedence over the error model for the
// gnss and imu blocks; everything else comes from the model. It returns an
// error, never a partially valid result.
func Propagate(m *measurement.Measurement, em *config.ErrorModel) (*Uncertainty, error) {
	covariance, err := Covariance(m, em)
	if err != nil {
		return nil, err
	}
	cxx, cyy, czz := covariance.At(0, 0), covariance.At(1, 1), covariance.At(2, 2)
	return &Uncertainty{
		SigmaX:         math.Sqrt(cxx),
		SigmaY:         math.Sqrt(cyy),
		Horizontal:     math.Sqrt(cxx + cyy),
		Vertical:       math.Sqrt(czz),
		Magnitude:      math.Sqrt(cxx + cyy + czz),
		IncidenceAngle: m.IncidenceAngle() * 180 / math.Pi,
	}, nil
}

// Covariance returns the propagated 3x3 covariance for one measurement.
func Covariance(m *measurement.Measurement, em *config.ErrorModel) (*mat.SymDense, error) {
	sigmas, err := inputSigmas(m, em)
	if err != nil {
		return nil, err
	}
	return PropagateMatrix(m.Jacobian(), sigmas)
}

// PropagateMatrix pushes a diagonal input covariance, given as per-variable
// standard deviations, through a Jacobian: J * diag(sigma^2) * J^T. The
// Jacobian must have one column per sigma.
func PropagateMatrix(jacobian *mat.Dense, sigmas []float64) (*mat.SymDense, error) {
	rows, cols := jacobian.Dims()
	if cols != len(sigmas) {
		return nil, errors.Errorf("jacobian has %d columns but %d sigmas were supplied", cols, len(sigmas))
	}
	if err := checkConditioning(jacobian); err != nil {
		return nil, err
	}

	covariance := mat.NewDiagDense(cols, nil)
	for i, sigma := range sigmas {
		covariance.SetDiag(i, sigma*sigma)
	}
	var jc, out mat.Dense
	jc.Mul(jacobian, covariance)
	out.Mul(&jc, jacobian.T())

	sym := mat.NewSymDense(rows, nil)
	for i := 0; i < rows; i++ {
		if diag := out.At(i, i); diag < 0 || math.IsNaN(diag) {
			return nil, errors.Wrapf(ErrSingularJacobian,
				"propagated covariance has invalid diagonal element %f", diag)
		}
		for j := i; j < rows; j++ {
			sym.SetSym(i, j, out.At(i, j))
		}
	}
	return sym, nil
}

// inputSigmas assembles the fourteen input standard deviations, in
// measurement.Variables order.
func inputSigmas(m *measurement.Measurement, em *config.ErrorModel) ([]float64, error) {
	if em == nil {
		return nil, errors.Wrap(ErrMissingInput, "no error model")
	}
	if err := em.Validate(); err != nil {
		return nil, errors.Wrap(ErrMissingInput, err.Error())
	}
	pose := m.Pose()
	pick := func(poseSigma, modelSigma float64) float64 {
		if poseSigma > 0 {
			return poseSigma
		}
		return modelSigma
	}
	sigmas := make([]float64, 0, measurement.NumVariables)
	for _, variable := range measurement.Variables() {
		var sigma float64
		switch variable {
		case measurement.GnssX:
			sigma = pick(pose.PositionSigma.X, em.GnssX)
		case measurement.GnssY:
			sigma = pick(pose.PositionSigma.Y, em.GnssY)
		case measurement.GnssZ:
			sigma = pick(pose.PositionSigma.Z, em.GnssZ)
		case measurement.ImuRoll:
			sigma = pick(pose.AttitudeSigma.Roll, em.ImuRoll)
		case measurement.ImuPitch:
			sigma = pick(pose.AttitudeSigma.Pitch, em.ImuPitch)
		case measurement.ImuYaw:
			sigma = pick(pose.AttitudeSigma.Yaw, em.ImuYaw)
		case measurement.BoresightRoll:
			sigma = em.BoresightRoll
		case measurement.BoresightPitch:
			sigma = em.BoresightPitch
		case measurement.BoresightYaw:
			sigma = em.BoresightYaw
		case measurement.Range:
			sigma = em.Range
		case measurement.ScanAngle:
			sigma = em.ScanAngle
		case measurement.LeverArmX:
			sigma = em.LeverArmX
		case measurement.LeverArmY:
			sigma = em.LeverArmY
		case measurement.LeverArmZ:
			sigma = em.LeverArmZ
		}
		if sigma <= 0 || math.IsNaN(sigma) {
			return nil, errors.Wrapf(ErrMissingInput, "sigma for %s", variable)
		}
		sigmas = append(sigmas, sigma)
	}
	return sigmas, nil
}

func checkConditioning(jacobian *mat.Dense) error {
	var svd mat.SVD
	if !svd.Factorize(jacobian, mat.SVDNone) {
		return errors.Wrap(ErrSingularJacobian, "svd did not converge")
	}
	values := svd.Values(nil)
	for _, value := range values {
		if math.IsNaN(value) {
			return errors.Wrap(ErrSingularJacobian, "jacobian contains NaN")
		}
	}
	smallest := values[len(values)-1]
	if smallest == 0 || values[0]/smallest > maxConditionNumber {
		return errors.Wrapf(ErrSingularJacobian, "condition number %e", values[0]/smallest)
	}
	return nil
}
