// Package planefit estimates best-fit planes from neighborhoods of
// body-frame points, supplying surface normals when the point cloud does not
// carry them.
package planefit

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrDegeneratePlane is returned when the input points do not determine a
// plane: fewer than three points, or a collinear (rank < 2) neighborhood.
var ErrDegeneratePlane = errors.New("points are degenerate, no plane fits them")

// rankTolerance is the ratio of the second singular value to the first
// below which the point set is treated as collinear.
const rankTolerance = 1e-9

// Plane is a unit normal plus a point on the plane.
type Plane struct {
	Normal   r3.Vector
	Centroid r3.Vector
}

// Offset is the d in the plane equation n.p + d = 0.
func (p *Plane) Offset() float64 {
	return -p.Normal.Dot(p.Centroid)
}

// Equation returns the plane as [a b c d] with ax + by + cz + d = 0.
func (p *Plane) Equation() [4]float64 {
	return [4]float64{p.Normal.X, p.Normal.Y, p.Normal.Z, p.Offset()}
}

// Distance returns the signed distance from a point to the plane, positive
// on the side the normal points toward.
func (p *Plane) Distance(point r3.Vector) float64 {
	return p.Normal.Dot(point) + p.Offset()
}

// Fit computes the least-squares plane through at least three body-frame
// points, as the direction of least variance of the centered coordinates.
// The normal is oriented toward the body-frame origin, where the sensor
// sits, so incidence angles computed from it are stable.
func Fit(points []r3.Vector) (*Plane, error) {
	if len(points) < 3 {
		return nil, errors.Wrapf(ErrDegeneratePlane, "%d points", len(points))
	}

	centroid := r3.Vector{}
	for _, point := range points {
		centroid = centroid.Add(point)
	}
	centroid = centroid.Mul(1 / float64(len(points)))

	centered := mat.NewDense(len(points), 3, nil)
	for i, point := range points {
		diff := point.Sub(centroid)
		centered.SetRow(i, []float64{diff.X, diff.Y, diff.Z})
	}

	var svd mat.SVD
	if !svd.Factorize(centered, mat.SVDThin) {
		return nil, errors.Wrap(ErrDegeneratePlane, "svd did not converge")
	}
	values := svd.Values(nil)
	if values[0] == 0 || values[1]/values[0] < rankTolerance {
		return nil, errors.Wrap(ErrDegeneratePlane, "points are collinear")
	}

	var v mat.Dense
	svd.VTo(&v)
	normal := r3.Vector{X: v.At(0, 2), Y: v.At(1, 2), Z: v.At(2, 2)}
	if norm := normal.Norm(); norm == 0 || math.IsNaN(norm) {
		return nil, errors.Wrap(ErrDegeneratePlane, "could not extract a normal")
	}
	normal = normal.Normalize()
	// resolve the sign ambiguity: point the normal from the plane toward
	// the sensor at the body-frame origin
	if normal.Dot(centroid) > 0 {
		normal = normal.Mul(-1)
	}
	return &Plane{Normal: normal, Centroid: centroid}, nil
}

// RMSDistance is the root-mean-square distance of a point set from the
// plane, a fit-quality metric.
func (p *Plane) RMSDistance(points []r3.Vector) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, point := range points {
		d := p.Distance(point)
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(points)))
}
