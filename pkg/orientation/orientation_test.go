package orientation

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"fiberorient/internal/models"
	"fiberorient/pkg/structuretensor"
)

func fieldOf(vecs ...r3.Vec) *models.VectorField {
	f := models.NewVectorField(len(vecs), 1, 1)
	for i, v := range vecs {
		f.X[i], f.Y[i], f.Z[i] = float32(v.X), float32(v.Y), float32(v.Z)
	}
	return f
}

func TestToAnglesKnownDirections(t *testing.T) {
	cases := []struct {
		v          r3.Vec
		theta, phi float64
	}{
		{r3.Vec{X: 1}, 0, 0},
		{r3.Unit(r3.Vec{X: 1, Y: 1}), 0, 45},
		{r3.Unit(r3.Vec{X: 1, Y: -1}), 0, -45},
		{r3.Unit(r3.Vec{X: 1, Y: 1, Z: 1}), 45, math.Atan(math.Sqrt2) * 180 / math.Pi},
		{r3.Vec{Z: 1}, 90, 90},
		{r3.Unit(r3.Vec{X: 1, Z: -1}), 90, -45},
		{r3.Vec{}, 0, 0},
	}
	for _, tc := range cases {
		theta, phi := ToAngles(tc.v)
		assert.InDelta(t, tc.theta, theta, 1e-9, "theta of %v", tc.v)
		assert.InDelta(t, tc.phi, phi, 1e-9, "phi of %v", tc.v)
	}
}

func TestToAnglesUndirectedInvariance(t *testing.T) {
	seed := uint32(7)
	next := func() float64 {
		seed = seed*1664525 + 1013904223
		return float64(seed)/float64(1<<32)*2 - 1
	}
	vecs := []r3.Vec{{X: 0, Y: 1, Z: 0}, {X: 0, Y: 0, Z: -1}, {X: -1, Y: 0, Z: 0}}
	for i := 0; i < 200; i++ {
		vecs = append(vecs, r3.Unit(r3.Vec{X: next(), Y: next(), Z: next()}))
	}

	for _, v := range vecs {
		neg := r3.Scale(-1, v)
		res := structuretensor.ResolveSignVec([3]float64{neg.X, neg.Y, neg.Z}, 0)

		t0, p0 := ToAngles(v)
		t1, p1 := ToAngles(neg)
		t2, p2 := ToAngles(r3.Vec{X: res[0], Y: res[1], Z: res[2]})
		assert.Equal(t, t0, t1, "theta of %v", v)
		assert.Equal(t, p0, p1, "phi of %v", v)
		assert.Equal(t, t0, t2, "theta of resolved %v", v)
		assert.Equal(t, p0, p2, "phi of resolved %v", v)
		assert.True(t, t0 > -90 && t0 <= 90, "theta %g out of range", t0)
	}
}

func TestAlignmentRotationZeroesMean(t *testing.T) {
	dirs := []r3.Vec{
		{X: 1, Y: 0.05, Z: 0.02},
		{X: 1, Y: -0.1, Z: 0.3},
		{X: 0.9, Y: 0.4, Z: -0.2},
		{X: 0.7, Y: 0, Z: 0.5},
		{X: 1, Y: 0, Z: 0},
	}
	for _, d := range dirs {
		avg := r3.Unit(d)
		al := AlignmentRotation(avg)

		// On the x axis the azimuth has no meaning; vanishing y and z
		// components are what both angles measure
		rotated := al.Rotation.MulVec(avg)
		_, phi := ToAngles(rotated)
		assert.InDelta(t, 0, phi, 1e-9, "phi after aligning %v", d)
		assert.InDelta(t, 1, rotated.X, 1e-12)
		assert.InDelta(t, 0, rotated.Y, 1e-12)
		assert.InDelta(t, 0, rotated.Z, 1e-12)

		// The rotation is orthonormal
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				dot := 0.0
				for k := 0; k < 3; k++ {
					dot += al.Rotation.At(k, i) * al.Rotation.At(k, j)
				}
				want := 0.0
				if i == j {
					want = 1
				}
				assert.InDelta(t, want, dot, 1e-12)
			}
		}
	}
}

func TestAverageDirection(t *testing.T) {
	f := fieldOf(r3.Vec{X: 1, Y: 0.2}, r3.Vec{X: 1, Y: -0.2}, r3.Vec{X: 0, Y: 0, Z: 0})
	f.Degenerate[2] = true

	avg, err := AverageDirection(f)
	require.NoError(t, err)
	assert.InDelta(t, 1, avg.X, 1e-7)
	assert.InDelta(t, 0, avg.Y, 1e-7)
	assert.InDelta(t, 1, r3.Norm(avg), 1e-12)
}

func TestAverageDirectionAntiparallelIsDegenerate(t *testing.T) {
	v := r3.Unit(r3.Vec{X: 0.8, Y: 0.5, Z: -0.3})
	var vecs []r3.Vec
	for i := 0; i < 10; i++ {
		vecs = append(vecs, v, r3.Scale(-1, v))
	}
	_, err := AverageDirection(fieldOf(vecs...))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDegenerateInput))

	allFlagged := fieldOf(r3.Vec{X: 1})
	allFlagged.Degenerate[0] = true
	_, err = AverageDirection(allFlagged)
	assert.True(t, errors.Is(err, models.ErrDegenerateInput))
}

func TestCorrectRemovesGlobalTilt(t *testing.T) {
	// A population tilted by 5 degrees in the x-y plane around its mean
	tilt := 5 * math.Pi / 180
	var vecs []r3.Vec
	for _, d := range []float64{-0.02, -0.01, 0, 0.01, 0.02} {
		a := tilt + d
		vecs = append(vecs, r3.Vec{X: math.Cos(a), Y: math.Sin(a)})
	}
	f := fieldOf(vecs...)

	_, phiBefore := FieldAngles(f)
	corrected, al, err := Correct(f)
	require.NoError(t, err)
	_, phiAfter := FieldAngles(corrected)

	assert.InDelta(t, 5, al.MeanPhi, 1e-3)
	assert.InDelta(t, 5, Summarize(phiBefore.Data, 90, 180).Mean, 1e-3)
	assert.InDelta(t, 0, Summarize(phiAfter.Data, 90, 180).Mean, 1e-3)
	assert.Equal(t, f.Shape(), corrected.Shape())
}

func TestApplyRotationKeepsFlags(t *testing.T) {
	f := fieldOf(r3.Vec{X: 1}, r3.Vec{})
	f.Degenerate[1] = true
	f.Values[0] = 0.5

	rot := r3.NewMat([]float64{0, -1, 0, 1, 0, 0, 0, 0, 1})
	out := ApplyRotation(rot, f)
	assert.InDelta(t, 0, float64(out.X[0]), 1e-7)
	assert.InDelta(t, 1, float64(out.Y[0]), 1e-7)
	assert.True(t, out.Degenerate[1])
	assert.Equal(t, float32(0.5), out.Values[0])
	// the input is left untouched
	assert.Equal(t, float32(1), f.X[0])
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float32{-2, -1, 1, 2, 4, float32(math.NaN()), 30}, 5, 10)
	assert.Equal(t, 6, s.N)
	assert.InDelta(t, 34.0/6, s.Mean, 1e-6)
	assert.InDelta(t, 40.0/6, s.MeanAbs, 1e-6)
	assert.Equal(t, -2.0, s.Min)
	assert.Equal(t, 30.0, s.Max)
	require.Len(t, s.Dividers, 11)
	require.Len(t, s.Density, 10)

	total := 0.0
	for _, d := range s.Density {
		total += d
	}
	// 5 of 6 samples fall inside [-5, 5), bin width 1
	assert.InDelta(t, 5.0/6, total, 1e-12)

	empty := Summarize(nil, 5, 10)
	assert.Equal(t, 0, empty.N)
}

func TestFieldAnglesMarksDegenerateVoxels(t *testing.T) {
	f := fieldOf(r3.Unit(r3.Vec{X: 1, Y: 1}), r3.Vec{}, r3.Vec{X: 1})
	f.Degenerate[1] = true

	theta, phi := FieldAngles(f)
	assert.InDelta(t, 45, float64(phi.Data[0]), 1e-5)
	assert.True(t, math.IsNaN(float64(theta.Data[1])))
	assert.True(t, math.IsNaN(float64(phi.Data[1])))
	assert.Equal(t, float32(0), phi.Data[2])

	s := Summarize(phi.Data, 90, 180)
	assert.Equal(t, 2, s.N)
	assert.InDelta(t, 22.5, s.Mean, 1e-5)
}
