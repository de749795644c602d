package pipeline

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiberorient/internal/models"
	"fiberorient/pkg/artifact"
	"fiberorient/pkg/config"
	"fiberorient/pkg/ipoints"
	"fiberorient/pkg/volume"
)

// lineVolume returns an n^3 volume holding one bright line along x
func lineVolume(n int) *models.Volume {
	v := models.NewVolume(n, n, n, 1)
	for x := 0; x < n; x++ {
		v.Set(x, n/2, n/2, 1)
	}
	return v
}

func testParams(out io.Writer) *Params {
	return &Params{
		Sample:        "line",
		AxisOrder:     [3]int{0, 1, 2},
		FiberDiameter: 2,
		Workers:       4,
		LengthPadding: 10,
		Out:           out,
	}
}

type recordingRenderer struct {
	intensity, misalignment int
	slice                   int
}

func (r *recordingRenderer) RenderIntensity(string, *models.Volume) error {
	r.intensity++
	return nil
}

func (r *recordingRenderer) RenderMisalignment(_ string, _ *models.Volume, _ *models.ScalarField, slice int) error {
	r.misalignment++
	r.slice = slice
	return errors.New("disk full")
}

func TestScales(t *testing.T) {
	p := &Params{FiberDiameter: 7}
	sigma, rho, err := p.Scales(2.75)
	require.NoError(t, err)
	assert.Equal(t, 2.55, rho)
	assert.Equal(t, 1.275, sigma)

	p = &Params{FiberDiameter: 7, Sigma: 1, Rho: 3}
	sigma, rho, err = p.Scales(2.75)
	require.NoError(t, err)
	assert.Equal(t, 1.0, sigma)
	assert.Equal(t, 3.0, rho)

	p = &Params{FiberDiameter: 7, Sigma: 4, Rho: 3}
	_, _, err = p.Scales(1)
	assert.True(t, errors.Is(err, models.ErrInvalidParameter))

	p = &Params{}
	_, _, err = p.Scales(1)
	assert.True(t, errors.Is(err, models.ErrInvalidParameter))
}

func TestParamsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sample = "s7"
	cfg.Scan.CropMargin = 3
	cfg.Output.Verbose = false

	p := ParamsFromConfig(cfg)
	assert.Equal(t, "s7", p.Sample)
	assert.Equal(t, 3, p.CropMargin)
	assert.Equal(t, [3]int{1, 2, 0}, p.AxisOrder)
	assert.Equal(t, 140.0, p.LengthPadding)
	assert.NotNil(t, p.Out)
}

func TestProcessSingleLine(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping end-to-end scenario in short mode")
	}
	const n = 50
	var out bytes.Buffer
	p := NewPipeline(testParams(&out), volume.SourceFunc(func() (*models.Volume, error) {
		return lineVolume(n), nil
	}))

	res, err := p.Process()
	require.NoError(t, err)

	// fiber diameter 2 voxels: rho 2, sigma 1, radius 8
	assert.Equal(t, 2.0, res.Rho)
	assert.Equal(t, 1.0, res.Sigma)
	assert.Equal(t, 8, res.KernelRadius)

	m := n - 2*res.KernelRadius
	art := res.Artifact
	assert.Equal(t, [3]int{m, m, m}, art.Phi.Shape())
	assert.Equal(t, [3]int{m, m, m}, res.Intensity.Shape())
	assert.Equal(t, [3]float64{float64(m) + 20, float64(m), float64(m)}, art.ModelDim)

	// the direction already is the reference axis
	assert.InDelta(t, 1.0, res.Alignment.Mean.X, 1e-6)
	assert.InDelta(t, 0.0, res.Alignment.MeanPhi, 1e-3)
	assert.InDelta(t, 0.0, res.PhiAfter.Mean, 1e-3)

	// the line now sits at the centre of the trimmed field
	c := n/2 - res.KernelRadius
	for x := 0; x < m; x++ {
		assert.InDelta(t, 0.0, float64(art.Phi.At(x, c, c)), 1e-3)
	}
	assert.Greater(t, res.Eigen.Degenerate, 0)

	// voxels without a direction stay undefined and out of the diagnostics
	nan := 0
	for _, v := range art.Phi.Data {
		if math.IsNaN(float64(v)) {
			nan++
		}
	}
	assert.Equal(t, res.Eigen.Degenerate, nan)
	assert.Equal(t, res.Eigen.Voxels-res.Eigen.Degenerate, res.PhiBefore.N)
	assert.Equal(t, res.Eigen.Voxels-res.Eigen.Degenerate, res.PhiAfter.N)
	assert.Contains(t, out.String(), "Step 6")
}

func TestProcessSaveResult(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping end-to-end scenario in short mode")
	}
	var out bytes.Buffer
	params := testParams(&out)
	params.SaveIntermediaryResults = true
	params.SliceOfInterest = -1
	p := NewPipeline(params, volume.SourceFunc(func() (*models.Volume, error) {
		return lineVolume(24), nil
	}))
	r := &recordingRenderer{}
	p.SetRenderer(r)

	res, err := p.Process()
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "line_files")
	require.NoError(t, p.SaveResult(res, dir))

	// a failed image is only a warning
	assert.Equal(t, 1, r.intensity)
	assert.Equal(t, 1, r.misalignment)
	assert.Equal(t, -1, r.slice)

	art, err := artifact.Load(ArtifactPath(dir, "line"))
	require.NoError(t, err)
	assert.Equal(t, res.Artifact.Phi.Data, art.Phi.Data)

	dims, err := artifact.LoadDims(DimsPath(dir, "line"))
	require.NoError(t, err)
	assert.Equal(t, res.Artifact.ModelDim, dims)

	hist, err := os.ReadFile(filepath.Join(dir, "line_Misalignment_hist.csv"))
	require.NoError(t, err)
	assert.Equal(t, histBins+1, strings.Count(string(hist), "\n"))
}

func TestProcessRejectsSmallVolume(t *testing.T) {
	var out bytes.Buffer
	p := NewPipeline(testParams(&out), volume.SourceFunc(func() (*models.Volume, error) {
		return lineVolume(10), nil
	}))
	_, err := p.Process()
	assert.Error(t, err)
}

func TestProcessRejectsBadCrop(t *testing.T) {
	params := testParams(nil)
	params.CropMargin = 30
	p := NewPipeline(params, volume.SourceFunc(func() (*models.Volume, error) {
		return lineVolume(50), nil
	}))
	_, err := p.Process()
	assert.True(t, errors.Is(err, models.ErrInvalidParameter))
}

func TestProcessVoxelSizeOverride(t *testing.T) {
	noSpacing := volume.SourceFunc(func() (*models.Volume, error) {
		v := lineVolume(30)
		v.VoxelSize = 0
		return v, nil
	})

	_, err := NewPipeline(testParams(nil), noSpacing).Process()
	assert.True(t, errors.Is(err, models.ErrInvalidParameter))

	params := testParams(nil)
	params.VoxelSizeOverride = 1
	res, err := NewPipeline(params, noSpacing).Process()
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Artifact.VoxelSize)
	assert.Equal(t, 2.0, res.Rho)
}

func TestProcessLoadError(t *testing.T) {
	p := NewPipeline(testParams(nil), volume.NiftiSource{Path: filepath.Join(t.TempDir(), "missing.nii")})
	_, err := p.Process()
	assert.Error(t, err)
}

func TestMapQueryPoints(t *testing.T) {
	theta := models.NewScalarField(10, 10, 10)
	phi := models.NewScalarField(10, 10, 10)
	theta.Data[theta.Index(5, 5, 5)] = 33.5
	phi.Data[phi.Index(5, 5, 5)] = -2.25
	art := &artifact.Orientation{VoxelSize: 2, Theta: theta, Phi: phi, Sample: "s"}

	// 2 um voxels, points in mm: (5,5,5) sits at (0, 0, 0.01)
	pts := []ipoints.Point{
		{Element: 7, IP: 1, X: 0, Y: 0, Z: 0.01},
		{Element: 7, IP: 2, X: 1, Y: 0, Z: 0.01},
	}
	rows, rep, err := MapQueryPoints(art, pts, 1000)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ipoints.Sampled{Element: 7, IP: 1, Theta: 33.5, Phi: -2.25}, rows[0])
	assert.True(t, math.IsNaN(rows[1].Phi))
	assert.Equal(t, 1, rep.Missing)
	assert.Equal(t, []int{1}, rep.MissingIndices)

	rows, rep, err = MapQueryPoints(art, pts[1:], 1000)
	assert.True(t, errors.Is(err, models.ErrAllOutOfBounds))
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, rep.Missing)
}
