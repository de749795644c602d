// Package orientation converts dominant direction fields into fiber
// misalignment angles and removes the global misalignment of a scan.
//
// Angles follow the material frame (x = length, y = thickness, z = width):
// the azimuth theta is the angle of the direction projected into the y-z
// plane, the elevation phi is the angle between the direction and the x axis,
// signed by the y component. Both are in degrees.
package orientation

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"fiberorient/internal/models"
)

const degrees = 180 / math.Pi

// ToAngles returns the azimuth and elevation of v in degrees.
//
// The azimuth atan(vz/vy) has no value at vy = 0; it is taken as the limit
// +90 when vz != 0 (the undirected axis makes +90 and -90 the same) and 0
// when vz = 0 too. The elevation sign falls back from sign(vy) to sign(vz)
// when vy = 0 so that it stays consistent with that azimuth. A zero vector
// maps to (0, 0). v and -v always give identical angles.
func ToAngles(v r3.Vec) (theta, phi float64) {
	switch {
	case v.Y != 0:
		theta = math.Atan(v.Z/v.Y) * degrees
	case v.Z != 0:
		theta = 90
	}

	r := math.Hypot(v.Y, v.Z)
	if r == 0 {
		return theta, 0
	}
	s := sign(v.Y)
	if v.Y == 0 {
		s = sign(v.Z)
	}
	phi = math.Atan(r/v.X) * s * degrees
	return theta, phi
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// FieldAngles converts every vector of f into azimuth and elevation fields.
// Degenerate voxels have no direction and get NaN in both fields; the
// neutral default replaces it only when angles are exported.
func FieldAngles(f *models.VectorField) (theta, phi *models.ScalarField) {
	theta = models.NewScalarField(f.Nx, f.Ny, f.Nz)
	phi = models.NewScalarField(f.Nx, f.Ny, f.Nz)
	nan := float32(math.NaN())
	for i := 0; i < f.Len(); i++ {
		if f.Degenerate != nil && f.Degenerate[i] {
			theta.Data[i], phi.Data[i] = nan, nan
			continue
		}
		x, y, z := f.Vec(i)
		t, p := ToAngles(r3.Vec{X: x, Y: y, Z: z})
		theta.Data[i] = float32(t)
		phi.Data[i] = float32(p)
	}
	return theta, phi
}
