package measurement

// Dimension is one output axis of the lidar equation.
type Dimension int

// The three world-frame output dimensions.
const (
	DimX Dimension = iota
	DimY
	DimZ
)

// Dimensions returns the output dimensions in Jacobian row order.
func Dimensions() []Dimension {
	return []Dimension{DimX, DimY, DimZ}
}

func (d Dimension) String() string {
	switch d {
	case DimX:
		return "X"
	case DimY:
		return "Y"
	case DimZ:
		return "Z"
	}
	return "unknown"
}

// Variable is one uncertain input of the lidar equation.
type Variable int

// The fourteen variables of the lidar equation, in Jacobian column order.
const (
	GnssX Variable = iota
	GnssY
	GnssZ
	ImuRoll
	ImuPitch
	ImuYaw
	BoresightRoll
	BoresightPitch
	BoresightYaw
	Range
	ScanAngle
	LeverArmX
	LeverArmY
	LeverArmZ
)

// NumVariables is the number of variables in the lidar equation.
const NumVariables = 14

// Variables returns every variable in Jacobian column order.
func Variables() []Variable {
	return []Variable{
		GnssX, GnssY, GnssZ,
		ImuRoll, ImuPitch, ImuYaw,
		BoresightRoll, BoresightPitch, BoresightYaw,
		Range, ScanAngle,
		LeverArmX, LeverArmY, LeverArmZ,
	}
}

// BoresightVariables are the variables the boresight adjustment estimates.
func BoresightVariables() []Variable {
	return []Variable{BoresightRoll, BoresightPitch, BoresightYaw}
}

// LeverArmVariables are the variables the lever-arm adjustment estimates.
func LeverArmVariables() []Variable {
	return []Variable{LeverArmX, LeverArmY, LeverArmZ}
}

// IsAngle reports whether the variable is angular rather than linear.
func (v Variable) IsAngle() bool {
	switch v {
	case ImuRoll, ImuPitch, ImuYaw, BoresightRoll, BoresightPitch, BoresightYaw, ScanAngle:
		return true
	default:
		return false
	}
}

func (v Variable) String() string {
	switch v {
	case GnssX:
		return "GnssX"
	case GnssY:
		return "GnssY"
	case GnssZ:
		return "GnssZ"
	case ImuRoll:
		return "ImuRoll"
	case ImuPitch:
		return "ImuPitch"
	case ImuYaw:
		return "ImuYaw"
	case BoresightRoll:
		return "BoresightRoll"
	case BoresightPitch:
		return "BoresightPitch"
	case BoresightYaw:
		return "BoresightYaw"
	case Range:
		return "Range"
	case ScanAngle:
		return "ScanAngle"
	case LeverArmX:
		return "LeverArmX"
	case LeverArmY:
		return "LeverArmY"
	case LeverArmZ:
		return "LeverArmZ"
	}
	return "unknown"
}
