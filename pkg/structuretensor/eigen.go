package structuretensor

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"fiberorient/internal/models"
)

// EigenReport summarises voxels whose tensor could not be decomposed.
type EigenReport struct {
	Voxels     int
	Degenerate int
	// FirstDegenerate holds up to maxReported flat indices of degenerate voxels
	FirstDegenerate []int
}

const maxReported = 16

// EigenDecompose solves the symmetric eigenproblem of every voxel and keeps
// the eigenvector of the smallest eigenvalue together with that eigenvalue,
// narrowed to float32. All-zero or non-finite tensors, and tensors the solver
// rejects, produce a zero vector flagged as degenerate.
func (e *Engine) EigenDecompose(t *models.TensorField) (*models.VectorField, EigenReport) {
	f := models.NewVectorField(t.Nx, t.Ny, t.Nz)

	parallelRange(t.Len(), e.Workers, func(start, end int) {
		sym := mat.NewSymDense(3, nil)
		var es mat.EigenSym
		var vecs mat.Dense
		values := make([]float64, 3)

		for i := start; i < end; i++ {
			c := [6]float64{t.XX[i], t.YY[i], t.ZZ[i], t.XY[i], t.XZ[i], t.YZ[i]}
			if !usable(c) {
				f.Degenerate[i] = true
				continue
			}
			sym.SetSym(0, 0, c[0])
			sym.SetSym(1, 1, c[1])
			sym.SetSym(2, 2, c[2])
			sym.SetSym(0, 1, c[3])
			sym.SetSym(0, 2, c[4])
			sym.SetSym(1, 2, c[5])

			if ok := es.Factorize(sym, true); !ok {
				f.Degenerate[i] = true
				continue
			}
			es.Values(values)
			es.VectorsTo(&vecs)

			// Values are ascending; column 0 belongs to the smallest
			f.X[i] = float32(vecs.At(0, 0))
			f.Y[i] = float32(vecs.At(1, 0))
			f.Z[i] = float32(vecs.At(2, 0))
			f.Values[i] = float32(values[0])
		}
	})

	report := EigenReport{Voxels: f.Len()}
	for i, d := range f.Degenerate {
		if !d {
			continue
		}
		report.Degenerate++
		if len(report.FirstDegenerate) < maxReported {
			report.FirstDegenerate = append(report.FirstDegenerate, i)
		}
	}
	return f, report
}

func usable(c [6]float64) bool {
	zero := true
	for _, v := range c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
		if v != 0 {
			zero = false
		}
	}
	return !zero
}

// ResolveSign multiplies every vector by the sign of its component along
// axis so that v and -v, which describe the same undirected axis, collapse
// to one representative. A zero component counts as positive. The field is
// modified in place and returned.
func ResolveSign(f *models.VectorField, axis int) *models.VectorField {
	var ref []float32
	switch axis {
	case 1:
		ref = f.Y
	case 2:
		ref = f.Z
	default:
		ref = f.X
	}
	for i := range ref {
		if ref[i] < 0 {
			f.X[i] = -f.X[i]
			f.Y[i] = -f.Y[i]
			f.Z[i] = -f.Z[i]
		}
	}
	return f
}

// ResolveSignVec applies the same rule to a single vector.
func ResolveSignVec(v [3]float64, axis int) [3]float64 {
	if v[axis] < 0 {
		return [3]float64{-v[0], -v[1], -v[2]}
	}
	return v
}
