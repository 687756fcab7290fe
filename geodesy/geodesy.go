// Package geodesy converts between the coordinate frames a lidar survey
// touches: projected (UTM), geodetic, earth-centered (ECEF), local
// navigation, and platform body.
//
// Geodetic points are packed into r3.Vector as {X: longitude, Y: latitude,
// Z: height} with angles in radians. Projected points are {easting,
// northing, height} in meters.
package geodesy

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/flightlines/lasward/spatialmath"
)

// Ellipsoid is a reference ellipsoid. The squared fields are precomputed
// because the normal radius is evaluated per point.
type Ellipsoid struct {
	A  float64
	A2 float64
	F  float64
	B  float64
	B2 float64
}

// WGS84 is the World Geodetic System 1984 ellipsoid.
var WGS84 = Ellipsoid{
	A:  6378137.,
	A2: 6378137. * 6378137.,
	F:  1. / 298.257223563,
	B:  6356752.3142,
	B2: 6356752.3142 * 6356752.3142,
}

const utmScaleFactor = 0.9996

// falseEasting offsets UTM eastings so they stay positive across the zone.
const falseEasting = 500e3

// ValidateZone returns an error unless zone is a real UTM zone number.
func ValidateZone(zone uint8) error {
	if zone < 1 || zone > 60 {
		return errors.Errorf("invalid utm zone %d: must be in [1, 60]", zone)
	}
	return nil
}

// n returns the prime vertical radius of curvature at a latitude.
func (e Ellipsoid) n(latitude float64) float64 {
	sin, cos := math.Sin(latitude), math.Cos(latitude)
	return e.A2 / math.Sqrt(e.A2*cos*cos+e.B2*sin*sin)
}

func (e Ellipsoid) thirdFlattening() float64 {
	return e.F / (2. - e.F)
}

// meridianRadius is the rectifying radius used by the transverse Mercator
// series.
func (e Ellipsoid) meridianRadius() float64 {
	n := e.thirdFlattening()
	return e.A / (1. + n) * (1. + n*n/4. + n*n*n*n/64.)
}

func centralMeridian(zone uint8) float64 {
	return float64(zone)*6.*math.Pi/180. - 183.*math.Pi/180.
}

// ProjectedToGeodetic converts UTM easting/northing/height into geodetic
// longitude/latitude/height using the inverse Krueger series, good to well
// under a millimeter within a zone.
func ProjectedToGeodetic(point r3.Vector, zone uint8) r3.Vector {
	e := WGS84
	n := e.thirdFlattening()
	a := e.meridianRadius()
	xi := point.Y / (utmScaleFactor * a)
	nu := (point.X - falseEasting) / (utmScaleFactor * a)
	b1 := 0.5*n - (2./3.)*n*n - (37./96.)*n*n*n
	b2 := (1./48.)*n*n - (1./15.)*n*n*n
	b3 := (17. / 480.) * n * n * n
	d1 := 2.*n - (2./3.)*n*n - 2.*n*n*n
	d2 := (7./3.)*n*n - (8./5.)*n*n*n
	d3 := (56. / 15.) * n * n * n
	xiPrime := xi -
		(b1*math.Sin(2*xi)*math.Cosh(2*nu) +
			b2*math.Sin(4*xi)*math.Cosh(4*nu) +
			b3*math.Sin(6*xi)*math.Cosh(6*nu))
	nuPrime := nu -
		(b1*math.Cos(2*xi)*math.Sinh(2*nu) +
			b2*math.Cos(4*xi)*math.Sinh(4*nu) +
			b3*math.Cos(6*xi)*math.Sinh(6*nu))
	chi := math.Asin(math.Sin(xiPrime) / math.Cosh(nuPrime))
	latitude := chi + d1*math.Sin(2*chi) + d2*math.Sin(4*chi) + d3*math.Sin(6*chi)
	longitude := centralMeridian(zone) + math.Atan(math.Sinh(nuPrime)/math.Cos(xiPrime))
	return r3.Vector{X: longitude, Y: latitude, Z: point.Z}
}

// GeodeticToProjected converts geodetic longitude/latitude/height into UTM
// easting/northing/height for the given zone, via the forward Krueger
// series. It is the inverse of ProjectedToGeodetic.
func GeodeticToProjected(point r3.Vector, zone uint8) r3.Vector {
	e := WGS84
	n := e.thirdFlattening()
	a := e.meridianRadius()
	longitude, latitude := point.X, point.Y
	dLon := longitude - centralMeridian(zone)
	sinLat := math.Sin(latitude)
	twoSqrtN := 2. * math.Sqrt(n) / (1. + n)
	t := math.Sinh(math.Atanh(sinLat) - twoSqrtN*math.Atanh(twoSqrtN*sinLat))
	xiPrime := math.Atan2(t, math.Cos(dLon))
	nuPrime := math.Atanh(math.Sin(dLon) / math.Sqrt(1.+t*t))
	a1 := 0.5*n - (2./3.)*n*n + (5./16.)*n*n*n
	a2 := (13./48.)*n*n - (3./5.)*n*n*n
	a3 := (61. / 240.) * n * n * n
	easting := falseEasting + utmScaleFactor*a*
		(nuPrime+
			a1*math.Cos(2*xiPrime)*math.Sinh(2*nuPrime)+
			a2*math.Cos(4*xiPrime)*math.Sinh(4*nuPrime)+
			a3*math.Cos(6*xiPrime)*math.Sinh(6*nuPrime))
	northing := utmScaleFactor * a *
		(xiPrime +
			a1*math.Sin(2*xiPrime)*math.Cosh(2*nuPrime) +
			a2*math.Sin(4*xiPrime)*math.Cosh(4*nuPrime) +
			a3*math.Sin(6*xiPrime)*math.Cosh(6*nuPrime))
	return r3.Vector{X: easting, Y: northing, Z: point.Z}
}

// GeodeticToECEF converts a geodetic point to earth-centered, earth-fixed
// coordinates on the WGS84 ellipsoid.
func GeodeticToECEF(point r3.Vector) r3.Vector {
	e := WGS84
	n := e.n(point.Y)
	cosLat, sinLat := math.Cos(point.Y), math.Sin(point.Y)
	return r3.Vector{
		X: (n + point.Z) * cosLat * math.Cos(point.X),
		Y: (n + point.Z) * cosLat * math.Sin(point.X),
		Z: (e.B2/e.A2*n + point.Z) * sinLat,
	}
}

// ECEFToNavigation converts an ECEF point into the local navigation frame
// (north, east, down) centered on the given geodetic platform position.
func ECEFToNavigation(point, platform r3.Vector) r3.Vector {
	platformECEF := GeodeticToECEF(platform)
	return ecefToNavigationMatrix(platform).MulVec(point.Sub(platformECEF))
}

// NavigationToBody rotates a navigation-frame point into the platform body
// frame given the platform attitude.
func NavigationToBody(point r3.Vector, attitude spatialmath.EulerAngles) r3.Vector {
	return attitude.RotationMatrix().Transpose().MulVec(point)
}

// ProjectedToBody chains the full conversion from a projected world point to
// the platform body frame.
func ProjectedToBody(point, platform r3.Vector, attitude spatialmath.EulerAngles, zone uint8) r3.Vector {
	geodetic := ProjectedToGeodetic(point, zone)
	geocentric := GeodeticToECEF(geodetic)
	navigation := ECEFToNavigation(geocentric, platform)
	return NavigationToBody(navigation, attitude)
}

func ecefToNavigationMatrix(platform r3.Vector) *spatialmath.RotationMatrix {
	longitude, latitude := platform.X, platform.Y
	sinLat, cosLat := math.Sin(latitude), math.Cos(latitude)
	sinLon, cosLon := math.Sin(longitude), math.Cos(longitude)
	return &spatialmath.RotationMatrix{
		-sinLat * cosLon, -sinLat * sinLon, cosLat,
		-sinLon, cosLon, 0,
		-cosLat * cosLon, -cosLat * sinLon, -sinLat,
	}
}
