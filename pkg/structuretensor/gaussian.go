package structuretensor

import (
	"math"
	"sync"
)

// Truncate is the number of standard deviations captured by every Gaussian window.
const Truncate = 4.0

// kernelRadius returns the half width of a Gaussian window of scale s.
func kernelRadius(s float64) int {
	return int(Truncate*s + 0.5)
}

// gaussianKernel returns the normalised sampled Gaussian of scale s, or its
// first derivative when derivative is set. Index r is the window centre.
func gaussianKernel(s float64, derivative bool) []float64 {
	r := kernelRadius(s)
	k := make([]float64, 2*r+1)
	s2 := s * s

	sum := 0.0
	for i := -r; i <= r; i++ {
		x := float64(i)
		k[i+r] = math.Exp(-0.5 / s2 * x * x)
		sum += k[i+r]
	}
	for i := range k {
		k[i] /= sum
	}

	if derivative {
		for i := -r; i <= r; i++ {
			k[i+r] *= -float64(i) / s2
		}
	}
	return k
}

// lineLayout describes how the voxels along one axis are strided in a flat
// x-fastest array.
type lineLayout struct {
	n      int // voxels per line
	stride int
	lines  int
}

func layoutFor(shape [3]int, axis int) lineLayout {
	nx, ny, nz := shape[0], shape[1], shape[2]
	switch axis {
	case 0:
		return lineLayout{n: nx, stride: 1, lines: ny * nz}
	case 1:
		return lineLayout{n: ny, stride: nx, lines: nx * nz}
	default:
		return lineLayout{n: nz, stride: nx * ny, lines: nx * ny}
	}
}

// lineBase returns the flat offset of the first voxel of line l.
func lineBase(shape [3]int, axis, l int) int {
	nx, ny := shape[0], shape[1]
	switch axis {
	case 0:
		return l * nx
	case 1:
		z, x := l/nx, l%nx
		return z*nx*ny + x
	default:
		return l
	}
}

// convolveAxis convolves src along one axis with kernel k and writes dst.
// Samples beyond the volume replicate the nearest edge voxel. Lines are
// independent, so the result does not depend on the worker count.
func convolveAxis(dst, src []float64, shape [3]int, axis int, k []float64, workers int) {
	lay := layoutFor(shape, axis)
	r := len(k) / 2

	parallelRange(lay.lines, workers, func(start, end int) {
		in := make([]float64, lay.n)
		for l := start; l < end; l++ {
			base := lineBase(shape, axis, l)
			for i := 0; i < lay.n; i++ {
				in[i] = src[base+i*lay.stride]
			}
			for i := 0; i < lay.n; i++ {
				acc := 0.0
				for j := -r; j <= r; j++ {
					idx := i - j
					if idx < 0 {
						idx = 0
					} else if idx >= lay.n {
						idx = lay.n - 1
					}
					acc += k[j+r] * in[idx]
				}
				dst[base+i*lay.stride] = acc
			}
		}
	})
}

// gaussianFilter applies a separable Gaussian of scale s to data. order[a]
// selects the first derivative along axis a. A new slice is returned.
func gaussianFilter(data []float64, shape [3]int, s float64, order [3]bool, workers int) []float64 {
	smooth := gaussianKernel(s, false)
	deriv := gaussianKernel(s, true)

	cur := make([]float64, len(data))
	copy(cur, data)
	tmp := make([]float64, len(data))
	for axis := 0; axis < 3; axis++ {
		k := smooth
		if order[axis] {
			k = deriv
		}
		convolveAxis(tmp, cur, shape, axis, k, workers)
		cur, tmp = tmp, cur
	}
	return cur
}

// parallelRange splits [0, n) into contiguous chunks, one per worker, and
// waits for all of them.
func parallelRange(n, workers int, fn func(start, end int)) {
	if workers <= 1 || n < 2 {
		fn(0, n)
		return
	}
	if workers > n {
		workers = n
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}
