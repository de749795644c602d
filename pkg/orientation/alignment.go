package orientation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"fiberorient/internal/models"
)

// degenerateNorm is the mean vector length below which a population is
// considered to have no preferred direction.
const degenerateNorm = 1e-12

// AverageDirection returns the normalised mean of all non-degenerate vectors
// of f. A mean that cancels out yields ErrDegenerateInput.
func AverageDirection(f *models.VectorField) (r3.Vec, error) {
	var sum r3.Vec
	n := 0
	for i := 0; i < f.Len(); i++ {
		if f.Degenerate[i] {
			continue
		}
		x, y, z := f.Vec(i)
		sum = r3.Add(sum, r3.Vec{X: x, Y: y, Z: z})
		n++
	}
	if n == 0 {
		return r3.Vec{}, fmt.Errorf("%w: no usable orientation vectors", models.ErrDegenerateInput)
	}

	mean := r3.Scale(1/float64(n), sum)
	if norm := r3.Norm(mean); !(norm > degenerateNorm) {
		return r3.Vec{}, fmt.Errorf("%w: mean direction norm %g over %d vectors", models.ErrDegenerateInput, norm, n)
	}
	return r3.Unit(mean), nil
}

// Alignment is the global correction of one scan.
type Alignment struct {
	// Rotation maps the mean direction onto the x axis
	Rotation *r3.Mat

	// Mean is the unit mean direction the rotation was derived from
	Mean r3.Vec

	// MeanTheta and MeanPhi are the azimuth and elevation of Mean in degrees
	MeanTheta float64
	MeanPhi   float64
}

// AlignmentRotation builds the rotation undoing the misalignment of avg:
// a rotation about x by -theta brings avg into the x-y plane, followed by a
// rotation about z by -phi that brings it onto the x axis (R = Rz * Rx).
func AlignmentRotation(avg r3.Vec) Alignment {
	theta, phi := ToAngles(avg)
	t := -theta / degrees
	p := -phi / degrees

	ct, st := math.Cos(t), math.Sin(t)
	cp, sp := math.Cos(p), math.Sin(p)

	rz := mat.NewDense(3, 3, []float64{
		cp, -sp, 0,
		sp, cp, 0,
		0, 0, 1,
	})
	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, ct, -st,
		0, st, ct,
	})
	var r mat.Dense
	r.Mul(rz, rx)

	data := make([]float64, 9)
	copy(data, r.RawMatrix().Data)
	return Alignment{
		Rotation:  r3.NewMat(data),
		Mean:      avg,
		MeanTheta: theta,
		MeanPhi:   phi,
	}
}

// ApplyRotation returns a new field holding rot*v for every vector of f.
// Eigenvalues and degenerate flags are carried over unchanged.
func ApplyRotation(rot *r3.Mat, f *models.VectorField) *models.VectorField {
	out := models.NewVectorField(f.Nx, f.Ny, f.Nz)
	copy(out.Values, f.Values)
	copy(out.Degenerate, f.Degenerate)
	for i := 0; i < f.Len(); i++ {
		x, y, z := f.Vec(i)
		v := rot.MulVec(r3.Vec{X: x, Y: y, Z: z})
		out.X[i] = float32(v.X)
		out.Y[i] = float32(v.Y)
		out.Z[i] = float32(v.Z)
	}
	return out
}

// Correct computes the mean direction of f, its alignment rotation, and the
// rotated field in one step.
func Correct(f *models.VectorField) (*models.VectorField, Alignment, error) {
	avg, err := AverageDirection(f)
	if err != nil {
		return nil, Alignment{}, err
	}
	al := AlignmentRotation(avg)
	return ApplyRotation(al.Rotation, f), al, nil
}
