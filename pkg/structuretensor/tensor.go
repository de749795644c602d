// Package structuretensor computes windowed 3D structure tensors of scalar
// volumes and extracts the locally dominant direction of every voxel.
//
// The structure tensor of a voxel is the outer product of the intensity
// gradient (taken at the noise scale sigma) with itself, integrated over a
// Gaussian window of scale rho. Intensity varies least along a fiber, so
// the eigenvector of the smallest eigenvalue is the local fiber direction.
package structuretensor

import (
	"fmt"

	"fiberorient/internal/models"
)

// Engine computes structure tensor fields. Per-voxel work is spread over
// Workers goroutines; every voxel is computed independently, so the output
// is the same for any worker count.
type Engine struct {
	Workers int
}

// NewEngine creates an engine using the given number of workers.
func NewEngine(workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{Workers: workers}
}

// KernelRadius returns the width of the border whose tensors lack a fully
// supported window: floor(max(sigma, rho)*Truncate + 0.5).
func KernelRadius(sigma, rho float64) int {
	s := sigma
	if rho > s {
		s = rho
	}
	return kernelRadius(s)
}

// ValidateScales checks rho >= sigma > 0.
func ValidateScales(sigma, rho float64) error {
	if !(sigma > 0) {
		return models.InvalidParam("sigma", sigma, "must be positive")
	}
	if !(rho >= sigma) {
		return models.InvalidParam("rho", rho, fmt.Sprintf("must be at least sigma=%g", sigma))
	}
	return nil
}

// Compute returns the structure tensor of every voxel of v together with the
// kernel radius that must be trimmed before the field is used.
func (e *Engine) Compute(v *models.Volume, sigma, rho float64) (*models.TensorField, int, error) {
	if err := ValidateScales(sigma, rho); err != nil {
		return nil, 0, err
	}
	if err := v.Validate(); err != nil {
		return nil, 0, err
	}

	radius := KernelRadius(sigma, rho)
	shape := v.Shape()
	for i, n := range shape {
		if n <= 2*radius {
			return nil, 0, models.InvalidParam("rho", rho,
				fmt.Sprintf("kernel radius %d leaves no voxels on axis %d of extent %d", radius, i, n))
		}
	}

	// Gradients at the noise scale
	gx := gaussianFilter(v.Data, shape, sigma, [3]bool{true, false, false}, e.Workers)
	gy := gaussianFilter(v.Data, shape, sigma, [3]bool{false, true, false}, e.Workers)
	gz := gaussianFilter(v.Data, shape, sigma, [3]bool{false, false, true}, e.Workers)

	t := &models.TensorField{Nx: v.Nx, Ny: v.Ny, Nz: v.Nz}
	integrate := func(a, b []float64) []float64 {
		prod := make([]float64, len(a))
		parallelRange(len(a), e.Workers, func(start, end int) {
			for i := start; i < end; i++ {
				prod[i] = a[i] * b[i]
			}
		})
		return gaussianFilter(prod, shape, rho, [3]bool{}, e.Workers)
	}

	t.XX = integrate(gx, gx)
	t.YY = integrate(gy, gy)
	t.ZZ = integrate(gz, gz)
	t.XY = integrate(gx, gy)
	t.XZ = integrate(gx, gz)
	t.YZ = integrate(gy, gz)

	return t, radius, nil
}

// TrimTensor drops r voxels from both ends of every axis of t.
func TrimTensor(t *models.TensorField, r int) (*models.TensorField, error) {
	if r < 0 {
		return nil, models.InvalidParam("kernelRadius", r, "must be non-negative")
	}
	shape := t.Shape()
	for i, n := range shape {
		if n <= 2*r {
			return nil, models.InvalidParam("kernelRadius", r, fmt.Sprintf("exceeds half of axis %d extent %d", i, n))
		}
	}
	if r == 0 {
		return t, nil
	}

	out := models.NewTensorField(t.Nx-2*r, t.Ny-2*r, t.Nz-2*r)
	src := [][]float64{t.XX, t.YY, t.ZZ, t.XY, t.XZ, t.YZ}
	dst := [][]float64{out.XX, out.YY, out.ZZ, out.XY, out.XZ, out.YZ}
	for z := 0; z < out.Nz; z++ {
		for y := 0; y < out.Ny; y++ {
			s := t.Index(r, y+r, z+r)
			d := out.Index(0, y, z)
			for c := range src {
				copy(dst[c][d:d+out.Nx], src[c][s:s+out.Nx])
			}
		}
	}
	return out, nil
}
