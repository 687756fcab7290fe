package measurement

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Partial returns the analytic first partial derivative of the given world
// dimension of the forward lidar equation with respect to the given
// variable, evaluated at this measurement. The expressions are the
// closed-form partials of the composed rotation chain; FiniteDifference
// cross-checks them in tests.
//
//nolint:gocyclo
func (m *Measurement) Partial(dim Dimension, v Variable) float64 {
	cr, sr := math.Cos(m.imu.Roll), math.Sin(m.imu.Roll)
	cp, sp := math.Cos(m.imu.Pitch), math.Sin(m.imu.Pitch)
	cy, sy := math.Cos(m.imu.Yaw), math.Sin(m.imu.Yaw)
	cbr, sbr := math.Cos(m.boresight.Roll), math.Sin(m.boresight.Roll)
	cbp, sbp := math.Cos(m.boresight.Pitch), math.Sin(m.boresight.Pitch)
	cby, sby := math.Cos(m.boresight.Yaw), math.Sin(m.boresight.Yaw)
	ca, sa := math.Cos(m.scanAngle), math.Sin(m.scanAngle)
	d := m.rng
	lx, ly, lz := m.leverArm.X, m.leverArm.Y, m.leverArm.Z

	switch v {
	case GnssX:
		if dim == DimX {
			return 1
		}
		return 0
	case GnssY:
		if dim == DimY {
			return 1
		}
		return 0
	case GnssZ:
		if dim == DimZ {
			return 1
		}
		return 0
	case ImuRoll:
		switch dim {
		case DimX:
			return cp*cr*(-ca*d*(-cbr*cby*sbp+sbr*sby)-cbp*cbr*d*sa+lz) +
				(cr*cy*sp-sr*sy)*(ca*cbp*cby*d+d*sa*sbp-lx) +
				(-cr*sp*sy-cy*sr)*(ca*d*(cbr*sby+cby*sbp*sbr)-cbp*d*sa*sbr-ly)
		case DimY:
			return 0
		case DimZ:
			return -cp*sr*(-ca*d*(-cbr*cby*sbp+sbr*sby)-cbp*cbr*d*sa+lz) +
				(-cr*cy+sp*sr*sy)*(ca*d*(cbr*sby+cby*sbp*sbr)-cbp*d*sa*sbr-ly) +
				(-cr*sy-cy*sp*sr)*(ca*cbp*cby*d+d*sa*sbp-lx)
		}
	case ImuPitch:
		switch dim {
		case DimX:
			return cp*cy*sr*(ca*cbp*cby*d+d*sa*sbp-lx) -
				cp*sr*sy*(ca*d*(cbr*sby+cby*sbp*sbr)-cbp*d*sa*sbr-ly) -
				sp*sr*(-ca*d*(-cbr*cby*sbp+sbr*sby)-cbp*cbr*d*sa+lz)
		case DimY:
			return cp*(ca*d*(-cbr*cby*sbp+sbr*sby)+cbp*cbr*d*sa-lz) -
				cy*sp*(ca*cbp*cby*d+d*sa*sbp-lx) -
				sp*sy*(-ca*d*(cbr*sby+cby*sbp*sbr)+cbp*d*sa*sbr+ly)
		case DimZ:
			return cp*cr*cy*(ca*cbp*cby*d+d*sa*sbp-lx) -
				cp*cr*sy*(ca*d*(cbr*sby+cby*sbp*sbr)-cbp*d*sa*sbr-ly) -
				cr*sp*(-ca*d*(-cbr*cby*sbp+sbr*sby)-cbp*cbr*d*sa+lz)
		}
	case ImuYaw:
		switch dim {
		case DimX:
			return (cr*cy-sp*sr*sy)*(ca*cbp*cby*d+d*sa*sbp-lx) +
				(-cr*sy-cy*sp*sr)*(ca*d*(cbr*sby+cby*sbp*sbr)-cbp*d*sa*sbr-ly)
		case DimY:
			return cp*cy*(-ca*d*(cbr*sby+cby*sbp*sbr)+cbp*d*sa*sbr+ly) -
				cp*sy*(ca*cbp*cby*d+d*sa*sbp-lx)
		case DimZ:
			return (-cr*cy*sp+sr*sy)*(ca*d*(cbr*sby+cby*sbp*sbr)-cbp*d*sa*sbr-ly) +
				(-cr*sp*sy-cy*sr)*(ca*cbp*cby*d+d*sa*sbp-lx)
		}
	case BoresightRoll:
		switch dim {
		case DimX:
			return cp*sr*(-ca*d*(cbr*sby+cby*sbp*sbr)+cbp*d*sa*sbr) +
				(cr*cy-sp*sr*sy)*(ca*d*(cbr*cby*sbp-sbr*sby)-cbp*cbr*d*sa)
		case DimY:
			return cp*sy*(-ca*d*(cbr*cby*sbp-sbr*sby)+cbp*cbr*d*sa) +
				sp*(ca*d*(cbr*sby+cby*sbp*sbr)-cbp*d*sa*sbr)
		case DimZ:
			return cp*cr*(-ca*d*(cbr*sby+cby*sbp*sbr)+cbp*d*sa*sbr) +
				(ca*d*(cbr*cby*sbp-sbr*sby)-cbp*cbr*d*sa)*(-cr*sp*sy-cy*sr)
		}
	case BoresightPitch:
		switch dim {
		case DimX:
			return cp*sr*(ca*cbp*cbr*cby*d+cbr*d*sa*sbp) +
				(cr*cy-sp*sr*sy)*(ca*cbp*cby*d*sbr+d*sa*sbp*sbr) +
				(cr*sy+cy*sp*sr)*(-ca*cby*d*sbp+cbp*d*sa)
		case DimY:
			return cp*cy*(-ca*cby*d*sbp+cbp*d*sa) +
				cp*sy*(-ca*cbp*cby*d*sbr-d*sa*sbp*sbr) +
				sp*(-ca*cbp*cbr*cby*d-cbr*d*sa*sbp)
		case DimZ:
			return cp*cr*(ca*cbp*cbr*cby*d+cbr*d*sa*sbp) +
				(cr*cy*sp-sr*sy)*(-ca*cby*d*sbp+cbp*d*sa) +
				(-cr*sp*sy-cy*sr)*(ca*cbp*cby*d*sbr+d*sa*sbp*sbr)
		}
	case BoresightYaw:
		switch dim {
		case DimX:
			return -ca*cbp*d*sby*(cr*sy+cy*sp*sr) -
				ca*cp*d*sr*(cbr*sbp*sby+cby*sbr) +
				ca*d*(cbr*cby-sbp*sbr*sby)*(cr*cy-sp*sr*sy)
		case DimY:
			return -ca*cbp*cp*cy*d*sby -
				ca*cp*d*sy*(cbr*cby-sbp*sbr*sby) +
				ca*d*sp*(cbr*sbp*sby+cby*sbr)
		case DimZ:
			return -ca*cbp*d*sby*(cr*cy*sp-sr*sy) -
				ca*cp*cr*d*(cbr*sbp*sby+cby*sbr) +
				ca*d*(cbr*cby-sbp*sbr*sby)*(-cr*sp*sy-cy*sr)
		}
	case Range:
		switch dim {
		case DimX:
			return cp*sr*(-ca*(-cbr*cby*sbp+sbr*sby)-cbp*cbr*sa) +
				(ca*(cbr*sby+cby*sbp*sbr)-cbp*sa*sbr)*(cr*cy-sp*sr*sy) +
				(cr*sy+cy*sp*sr)*(ca*cbp*cby+sa*sbp)
		case DimY:
			return cp*cy*(ca*cbp*cby+sa*sbp) +
				cp*sy*(-ca*(cbr*sby+cby*sbp*sbr)+cbp*sa*sbr) +
				sp*(ca*(-cbr*cby*sbp+sbr*sby)+cbp*cbr*sa)
		case DimZ:
			return cp*cr*(-ca*(-cbr*cby*sbp+sbr*sby)-cbp*cbr*sa) +
				(ca*(cbr*sby+cby*sbp*sbr)-cbp*sa*sbr)*(-cr*sp*sy-cy*sr) +
				(ca*cbp*cby+sa*sbp)*(cr*cy*sp-sr*sy)
		}
	case ScanAngle:
		switch dim {
		case DimX:
			return cp*sr*(-ca*cbp*cbr*d+d*sa*(-cbr*cby*sbp+sbr*sby)) +
				(cr*cy-sp*sr*sy)*(-ca*cbp*d*sbr-d*sa*(cbr*sby+cby*sbp*sbr)) +
				(cr*sy+cy*sp*sr)*(ca*d*sbp-cbp*cby*d*sa)
		case DimY:
			return cp*cy*(ca*d*sbp-cbp*cby*d*sa) +
				cp*sy*(ca*cbp*d*sbr+d*sa*(cbr*sby+cby*sbp*sbr)) +
				sp*(ca*cbp*cbr*d-d*sa*(-cbr*cby*sbp+sbr*sby))
		case DimZ:
			return cp*cr*(-ca*cbp*cbr*d+d*sa*(-cbr*cby*sbp+sbr*sby)) +
				(ca*d*sbp-cbp*cby*d*sa)*(cr*cy*sp-sr*sy) +
				(-cr*sp*sy-cy*sr)*(-ca*cbp*d*sbr-d*sa*(cbr*sby+cby*sbp*sbr))
		}
	case LeverArmX:
		switch dim {
		case DimX:
			return -cr*sy - cy*sp*sr
		case DimY:
			return -cp * cy
		case DimZ:
			return -cr*cy*sp + sr*sy
		}
	case LeverArmY:
		switch dim {
		case DimX:
			return -cr*cy + sp*sr*sy
		case DimY:
			return cp * sy
		case DimZ:
			return cr*sp*sy + cy*sr
		}
	case LeverArmZ:
		switch dim {
		case DimX:
			return cp * sr
		case DimY:
			return -sp
		case DimZ:
			return cp * cr
		}
	}
	return math.NaN()
}

// PartialInBodyFrame rotates the partial derivative into the platform body
// frame. The adjustment estimator works there because the surfaces it
// aligns are defined in body coordinates.
func (m *Measurement) PartialInBodyFrame(dim Dimension, v Variable) float64 {
	world := r3.Vector{
		X: m.Partial(DimX, v),
		Y: m.Partial(DimY, v),
		Z: m.Partial(DimZ, v),
	}
	body := m.platformToWorld().Transpose().MulVec(world)
	switch dim {
	case DimX:
		return body.X
	case DimY:
		return body.Y
	default:
		return body.Z
	}
}

// Jacobian assembles the full 3x14 matrix of partials, rows in Dimensions()
// order and columns in Variables() order.
func (m *Measurement) Jacobian() *mat.Dense {
	jacobian := mat.NewDense(3, NumVariables, nil)
	for col, variable := range Variables() {
		for row, dimension := range Dimensions() {
			jacobian.Set(row, col, m.Partial(dimension, variable))
		}
	}
	return jacobian
}

// FiniteDifference approximates the same partial by central difference. It
// exists as a cross-check on the closed forms, not as the production path.
func (m *Measurement) FiniteDifference(dim Dimension, v Variable, delta float64) float64 {
	plus := *m
	plus.applyDelta(v, delta)
	minus := *m
	minus.applyDelta(v, -delta)
	return (plus.value(dim) - minus.value(dim)) / (2 * delta)
}

// PartialCheck records how well a single analytic partial predicts the
// effect of perturbing its variable.
type PartialCheck struct {
	Expected   float64
	Partial    float64
	Adjustment float64
	Actual     float64
	Error      float64
}

// CheckPartial perturbs the backconverted point by delta along one dimension
// using the analytic partial to size the variable adjustment, then reports
// the realized error.
func (m *Measurement) CheckPartial(dim Dimension, v Variable, delta float64) PartialCheck {
	expected := m.value(dim) + delta
	partial := m.Partial(dim, v)
	adjustment := delta / partial
	perturbed := *m
	perturbed.applyDelta(v, adjustment)
	actual := perturbed.value(dim)
	return PartialCheck{
		Expected:   expected,
		Partial:    partial,
		Adjustment: adjustment,
		Actual:     actual,
		Error:      actual - expected,
	}
}

func (m *Measurement) value(dim Dimension) float64 {
	point := m.Backconvert()
	switch dim {
	case DimX:
		return point.X
	case DimY:
		return point.Y
	default:
		return point.Z
	}
}

func (m *Measurement) applyDelta(v Variable, delta float64) {
	switch v {
	case GnssX:
		m.gnss.X += delta
	case GnssY:
		m.gnss.Y += delta
	case GnssZ:
		m.gnss.Z += delta
	case ImuRoll:
		m.imu.Roll += delta
	case ImuPitch:
		m.imu.Pitch += delta
	case ImuYaw:
		m.imu.Yaw += delta
	case BoresightRoll:
		m.boresight.Roll += delta
	case BoresightPitch:
		m.boresight.Pitch += delta
	case BoresightYaw:
		m.boresight.Yaw += delta
	case Range:
		m.rng += delta
	case ScanAngle:
		m.scanAngle += delta
	case LeverArmX:
		m.leverArm.X += delta
	case LeverArmY:
		m.leverArm.Y += delta
	case LeverArmZ:
		m.leverArm.Z += delta
	}
}
