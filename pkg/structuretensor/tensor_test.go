package structuretensor

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"fiberorient/internal/models"
)

// lineVolume plants a bright line parallel to the x axis through (y0, z0)
func lineVolume(n, y0, z0 int) *models.Volume {
	v := models.NewVolume(n, n, n, 1)
	for x := 0; x < n; x++ {
		v.Set(x, y0, z0, 1)
	}
	return v
}

// noiseVolume fills a volume with a deterministic pseudo random pattern
func noiseVolume(nx, ny, nz int) *models.Volume {
	v := models.NewVolume(nx, ny, nz, 1)
	seed := uint32(12345)
	for i := range v.Data {
		seed = seed*1664525 + 1013904223
		v.Data[i] = float64(seed>>8) / float64(1<<24)
	}
	return v
}

func TestKernelRadius(t *testing.T) {
	assert.Equal(t, 12, KernelRadius(1.5, 3))
	assert.Equal(t, 12, KernelRadius(3, 1.5))
	assert.Equal(t, 4, KernelRadius(1, 1))
	// 1.1*4 + 0.5 = 4.9
	assert.Equal(t, 4, KernelRadius(0.5, 1.1))
}

func TestGaussianKernels(t *testing.T) {
	smooth := gaussianKernel(1.5, false)
	require.Len(t, smooth, 2*6+1)
	assert.InDelta(t, 1.0, floats.Sum(smooth), 1e-12)

	deriv := gaussianKernel(1.5, true)
	r := len(deriv) / 2
	assert.Equal(t, 0.0, deriv[r])
	for j := 1; j <= r; j++ {
		assert.Equal(t, -deriv[r+j], deriv[r-j])
	}
}

func TestConvolveAxisLinearRamp(t *testing.T) {
	// The derivative of a ramp along y is its slope away from the edges
	shape := [3]int{3, 20, 2}
	data := make([]float64, 3*20*2)
	for z := 0; z < 2; z++ {
		for y := 0; y < 20; y++ {
			for x := 0; x < 3; x++ {
				data[z*60+y*3+x] = 2 * float64(y)
			}
		}
	}
	out := make([]float64, len(data))
	convolveAxis(out, data, shape, 1, gaussianKernel(1, true), 1)
	for y := 5; y < 15; y++ {
		assert.InDelta(t, 2.0, out[y*3+1], 1e-2)
	}
}

func TestValidateScales(t *testing.T) {
	require.NoError(t, ValidateScales(1, 2))
	require.NoError(t, ValidateScales(1, 1))

	for _, sr := range [][2]float64{{0, 1}, {-1, 1}, {2, 1}, {math.NaN(), 1}} {
		err := ValidateScales(sr[0], sr[1])
		assert.True(t, errors.Is(err, models.ErrInvalidParameter), "sigma=%g rho=%g", sr[0], sr[1])
	}
}

func TestComputeRejectsSmallVolume(t *testing.T) {
	e := NewEngine(1)
	_, _, err := e.Compute(noiseVolume(10, 30, 30), 1, 2)
	assert.True(t, errors.Is(err, models.ErrInvalidParameter))
}

func TestComputeIsDeterministic(t *testing.T) {
	v := noiseVolume(22, 20, 18)

	a, ra, err := NewEngine(1).Compute(v, 1, 2)
	require.NoError(t, err)
	b, rb, err := NewEngine(1).Compute(v, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, ra, rb)
	assert.Equal(t, a.XX, b.XX)
	assert.Equal(t, a.YZ, b.YZ)

	// Lines are filtered independently, so splitting them across workers
	// leaves every value unchanged
	c, _, err := NewEngine(4).Compute(v, 1, 2)
	require.NoError(t, err)
	for i := range a.XX {
		assert.InDelta(t, a.XX[i], c.XX[i], 1e-6*math.Abs(a.XX[i])+1e-300)
		assert.InDelta(t, a.XY[i], c.XY[i], 1e-6*math.Abs(a.XY[i])+1e-300)
	}

	fa, _ := NewEngine(1).EigenDecompose(a)
	fc, _ := NewEngine(3).EigenDecompose(c)
	assert.Equal(t, fa.X, fc.X)
	assert.Equal(t, fa.Values, fc.Values)
}

func TestTrimTensor(t *testing.T) {
	tf := models.NewTensorField(7, 6, 5)
	for i := range tf.XX {
		tf.XX[i] = float64(i)
		tf.YZ[i] = -float64(i)
	}
	out, err := TrimTensor(tf, 2)
	require.NoError(t, err)
	assert.Equal(t, [3]int{3, 2, 1}, out.Shape())
	assert.Equal(t, tf.XX[tf.Index(2, 2, 2)], out.XX[0])
	assert.Equal(t, tf.YZ[tf.Index(4, 3, 2)], out.YZ[out.Index(2, 1, 0)])

	_, err = TrimTensor(tf, 3)
	assert.True(t, errors.Is(err, models.ErrInvalidParameter))

	same, err := TrimTensor(tf, 0)
	require.NoError(t, err)
	assert.Same(t, tf, same)
}

func TestEigenDecomposeLineFollowsX(t *testing.T) {
	n := 30
	e := NewEngine(2)
	tf, r, err := e.Compute(lineVolume(n, n/2, n/2), 1, 2)
	require.NoError(t, err)
	tf, err = TrimTensor(tf, r)
	require.NoError(t, err)

	f, report := e.EigenDecompose(tf)
	ResolveSign(f, 0)
	assert.Equal(t, f.Len(), report.Voxels)

	c := n/2 - r
	checked := 0
	for z := c - 2; z <= c+2; z++ {
		for y := c - 2; y <= c+2; y++ {
			for x := 0; x < f.Nx; x++ {
				i := f.Index(x, y, z)
				require.False(t, f.Degenerate[i])
				assert.InDelta(t, 1.0, float64(f.X[i]), 1e-4)
				assert.InDelta(t, 0.0, float64(f.Values[i]), 1e-6)
				checked++
			}
		}
	}
	assert.Greater(t, checked, 0)
}

func TestEigenDecomposeFlagsZeroTensor(t *testing.T) {
	tf := models.NewTensorField(2, 2, 1)
	tf.XX[1], tf.YY[1], tf.ZZ[1] = 3, 2, 1
	tf.XX[2] = math.NaN()

	f, report := NewEngine(1).EigenDecompose(tf)
	assert.Equal(t, 3, report.Degenerate)
	assert.Equal(t, []int{0, 2, 3}, report.FirstDegenerate)
	assert.Equal(t, float32(0), f.X[0])

	// Smallest eigenvalue of diag(3, 2, 1) is 1 along z
	assert.False(t, f.Degenerate[1])
	assert.InDelta(t, 1.0, float64(f.Values[1]), 1e-6)
	assert.InDelta(t, 1.0, math.Abs(float64(f.Z[1])), 1e-6)
}

func TestResolveSign(t *testing.T) {
	f := models.NewVectorField(3, 1, 1)
	f.X[0], f.Y[0], f.Z[0] = -0.6, 0.8, 0
	f.X[1], f.Y[1], f.Z[1] = 0, -1, 0
	f.X[2], f.Y[2], f.Z[2] = 0.6, -0.8, 0

	ResolveSign(f, 0)
	assert.Equal(t, []float32{0.6, 0, 0.6}, f.X)
	assert.Equal(t, []float32{-0.8, -1, -0.8}, f.Y)

	ResolveSign(f, 1)
	assert.Equal(t, []float32{-0.6, 0, -0.6}, f.X)
	assert.Equal(t, []float32{0.8, 1, 0.8}, f.Y)

	assert.Equal(t, [3]float64{1, 2, 3}, ResolveSignVec([3]float64{-1, -2, -3}, 0))
	assert.Equal(t, [3]float64{0, -2, 3}, ResolveSignVec([3]float64{0, -2, 3}, 0))
}
