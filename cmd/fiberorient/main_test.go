package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiberorient/pkg/config"
	"fiberorient/pkg/ipoints"
	"fiberorient/pkg/volume"
)

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	cfg := config.DefaultConfig()
	cfg.Sample = "from-file"
	cfg.Scan.CropMargin = 4
	require.NoError(t, config.SaveConfig(cfg, path))

	t.Setenv("FIBERORIENT_CONFIG", path)
	t.Setenv("FIBERORIENT_SAMPLE", "from-env")
	t.Setenv("FIBERORIENT_FIBER_DIAMETER", "5.5")
	initViper()

	got, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-env", got.Sample)
	assert.Equal(t, 5.5, got.Analysis.FiberDiameter)
	assert.Equal(t, 4, got.Scan.CropMargin)

	t.Setenv("FIBERORIENT_CROP_MARGIN", "-1")
	_, err = loadConfig()
	assert.Error(t, err)
}

func TestJoinMapped(t *testing.T) {
	points := []ipoints.Point{
		{Element: 1, IP: 1, X: 1},
		{Element: 1, IP: 2, X: 2},
		{Element: 2, IP: 1, X: 3},
	}
	rows := []ipoints.Sampled{
		{Element: 2, IP: 1, Theta: 30, Phi: 3},
		{Element: 1, IP: 1, Theta: 10, Phi: 1},
	}
	coords, values, err := joinMapped(points, rows, false)
	require.NoError(t, err)
	assert.Equal(t, [][3]float64{{1, 0, 0}, {3, 0, 0}}, coords)
	assert.Equal(t, []float64{1, 3}, values)

	_, values, err = joinMapped(points, rows, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 30}, values)

	_, _, err = joinMapped(points, nil, true)
	assert.Error(t, err)
}

func TestScanSourcePassesVoxelSize(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, volume.DicomSource{Dir: dir, VoxelSize: 2.5}, scanSource(dir, 2.5))

	file := filepath.Join(dir, "scan.nii")
	assert.Equal(t, volume.NiftiSource{Path: file, VoxelSize: 2.5}, scanSource(file, 2.5))
}
