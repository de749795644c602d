package postproc

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLoadDisplacement(t *testing.T) {
	c, err := ReadLoadDisplacement(strings.NewReader("# disp load\n0 0\n0.01 50 extra\n\n0.02 100\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.01, 0.02}, c.Displacement)
	assert.Equal(t, []float64{0, 50, 100}, c.Load)

	_, err = ReadLoadDisplacement(strings.NewReader("0 0\n0.1\n"))
	assert.ErrorContains(t, err, "line 2")
	_, err = ReadLoadDisplacement(strings.NewReader(""))
	assert.Error(t, err)
}

func TestStressStrainAndModulus(t *testing.T) {
	// 100 mm long, 2 x 10 mm section, dims in um
	dims := [3]float64{100000, 2000, 10000}
	c := &Curve{}
	// linear up to 0.4 mm (0.4 %), then softening
	for i := 0; i <= 60; i++ {
		d := float64(i) * 0.01
		l := 20 * 1000 * d // 1000 N/mm^2 per % strain over 20 mm^2
		if d > 0.4 {
			l = 20*1000*0.4 - 5000*(d-0.4)
		}
		c.Displacement = append(c.Displacement, d)
		c.Load = append(c.Load, l)
	}

	ss, err := StressStrain(c, dims, 1e-3)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, ss.Strain[30], 1e-12)
	assert.InDelta(t, 300.0, ss.Stress[30], 1e-9)

	m, err := FitModulus(ss, 0.05, 0.25)
	require.NoError(t, err)
	// 1000 MPa per % strain is 100 GPa
	assert.InDelta(t, 100.0, m.E, 1e-9)
	assert.InDelta(t, 0.0, m.Intercept, 1e-9)
	assert.InDelta(t, 400.0, m.PeakStress, 1e-9)
	assert.InDelta(t, 0.4, m.StrainAtPeak, 1e-12)
	assert.Greater(t, m.Points, 20)

	_, err = FitModulus(ss, 0.25, 0.05)
	assert.Error(t, err)
	_, err = FitModulus(ss, 10, 20)
	assert.Error(t, err)
	_, err = StressStrain(c, [3]float64{1, 0, 1}, 1)
	assert.Error(t, err)
}

func TestPointGridNearest(t *testing.T) {
	var coords [][3]float64
	var values []float64
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			coords = append(coords, [3]float64{float64(i), float64(j), 0})
			values = append(values, float64(i*10+j))
		}
	}
	g, err := NewPointGrid(coords, values)
	require.NoError(t, err)

	v, d := g.Nearest([3]float64{3.2, 6.9, 0.1})
	assert.Equal(t, 37.0, v)
	assert.InDelta(t, math.Sqrt(0.04+0.01+0.01), d, 1e-12)

	// a field of 10x10x1 voxels on the points themselves reproduces them
	f := g.ResampleField([3]int{10, 10, 1}, func(x, y, z int) [3]float64 {
		return [3]float64{float64(x), float64(y), float64(z)}
	}, 0.5)
	assert.Equal(t, float32(37), f.At(3, 7, 0))

	far := g.ResampleField([3]int{2, 1, 1}, func(x, y, z int) [3]float64 {
		return [3]float64{float64(x) * 100, 0, 0}
	}, 0.5)
	assert.Equal(t, float32(0), far.Data[0])
	assert.True(t, math.IsNaN(float64(far.Data[1])))

	_, err = NewPointGrid(coords, values[:3])
	assert.Error(t, err)
	_, err = NewPointGrid(nil, nil)
	assert.Error(t, err)
}

func TestCorrelation(t *testing.T) {
	a := []float64{1, 2, 3, 4, math.NaN()}
	b := []float64{2, 4, 6, 8, 1}
	assert.InDelta(t, 1.0, Correlation(a, b), 1e-12)

	neg := []float64{-1, -2, -3, -4, 0}
	assert.InDelta(t, -1.0, Correlation(a, neg), 1e-12)
	assert.True(t, math.IsNaN(Correlation([]float64{1}, []float64{2})))
}
