// Package config provides configuration loading and management for fiberorient.
// It replaces per-script globals (sample name, paths, constants) with one
// explicit structure loaded from YAML, with default values for everything.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"fiberorient/internal/models"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Sample identifies the scan; it prefixes every artifact file name
	Sample string `yaml:"sample"`

	// DataPath is the directory holding the tomography file
	DataPath string `yaml:"dataPath"`

	// ResultPath is the directory receiving artifacts and intermediary images
	ResultPath string `yaml:"resultPath"`

	// Scan describes the tomography volume
	Scan struct {
		// File is the volume file name inside DataPath, default <sample>.nii
		File string `yaml:"file"`

		// AxisOrder maps scanner axis i to material axis AxisOrder[i],
		// material order being (length, thickness, width)
		AxisOrder [3]int `yaml:"axisOrder"`

		// CropMargin is the number of voxels removed from both ends of every axis
		CropMargin int `yaml:"cropMargin"`

		// VoxelSizeOverride replaces the voxel size read from the file when > 0
		VoxelSizeOverride float64 `yaml:"voxelSizeOverride"`
	} `yaml:"scan"`

	// Analysis holds the structure tensor parameters
	Analysis struct {
		// FiberDiameter is the known fiber diameter in the voxel size unit
		FiberDiameter float64 `yaml:"fiberDiameter"`

		// Sigma and Rho override the scales derived from the fiber diameter when > 0
		Sigma float64 `yaml:"sigma"`
		Rho   float64 `yaml:"rho"`

		// SignAxis is the component whose sign orients every eigenvector
		SignAxis int `yaml:"signAxis"`

		// Workers is the number of goroutines for per-voxel work
		Workers int `yaml:"workers"`
	} `yaml:"analysis"`

	// Model holds the parameters handed to the mesh building stage
	Model struct {
		// LengthPadding is added at both ends of the model length, in voxel size units
		LengthPadding float64 `yaml:"lengthPadding"`

		// PhysicalUnit is the query point unit expressed in voxel size units
		// (1000 when the voxel size is in micrometers and points are in millimeters)
		PhysicalUnit float64 `yaml:"physicalUnit"`
	} `yaml:"model"`

	// Output parameters
	Output struct {
		// SaveIntermediaryResults determines whether slice images are written
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// SliceOfInterest is the width index of the exported misalignment slice,
		// negative selects the middle slice
		SliceOfInterest int `yaml:"sliceOfInterest"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Sample = "sample"
	cfg.DataPath = "../data"
	cfg.ResultPath = "../results"

	// Tomograms are stored as (width, length, thickness)
	cfg.Scan.AxisOrder = [3]int{1, 2, 0}
	cfg.Scan.CropMargin = 0

	// Carbon fibers, voxel size in micrometers
	cfg.Analysis.FiberDiameter = 7
	cfg.Analysis.SignAxis = 0
	cfg.Analysis.Workers = runtime.NumCPU()

	cfg.Model.LengthPadding = 140
	cfg.Model.PhysicalUnit = 1000

	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.SliceOfInterest = -1
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	configPath, err := homedir.Expand(configPath)
	if err != nil {
		return nil, fmt.Errorf("error expanding config path: %w", err)
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	configPath, err := homedir.Expand(configPath)
	if err != nil {
		return fmt.Errorf("error expanding config path: %w", err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate reports the first option that cannot drive a pipeline run.
func (c *Config) Validate() error {
	if c.Sample == "" {
		return models.InvalidParam("sample", c.Sample, "must not be empty")
	}
	if c.Scan.CropMargin < 0 {
		return models.InvalidParam("scan.cropMargin", c.Scan.CropMargin, "must be non-negative")
	}
	if c.Scan.VoxelSizeOverride < 0 {
		return models.InvalidParam("scan.voxelSizeOverride", c.Scan.VoxelSizeOverride, "must be non-negative")
	}
	seen := [3]bool{}
	for _, a := range c.Scan.AxisOrder {
		if a < 0 || a > 2 || seen[a] {
			return models.InvalidParam("scan.axisOrder", c.Scan.AxisOrder, "must be a permutation of 0, 1, 2")
		}
		seen[a] = true
	}
	if c.Analysis.Sigma == 0 && c.Analysis.Rho == 0 && !(c.Analysis.FiberDiameter > 0) {
		return models.InvalidParam("analysis.fiberDiameter", c.Analysis.FiberDiameter, "must be positive")
	}
	if c.Analysis.Sigma < 0 || c.Analysis.Rho < 0 {
		return models.InvalidParam("analysis.sigma/rho", fmt.Sprintf("%g/%g", c.Analysis.Sigma, c.Analysis.Rho), "must be non-negative")
	}
	if c.Analysis.SignAxis < 0 || c.Analysis.SignAxis > 2 {
		return models.InvalidParam("analysis.signAxis", c.Analysis.SignAxis, "must be 0, 1 or 2")
	}
	if c.Model.LengthPadding < 0 {
		return models.InvalidParam("model.lengthPadding", c.Model.LengthPadding, "must be non-negative")
	}
	if !(c.Model.PhysicalUnit > 0) {
		return models.InvalidParam("model.physicalUnit", c.Model.PhysicalUnit, "must be positive")
	}
	return nil
}

// VolumePath returns the expanded path of the tomography file.
func (c *Config) VolumePath() (string, error) {
	name := c.Scan.File
	if name == "" {
		name = c.Sample + ".nii"
	}
	dir, err := homedir.Expand(c.DataPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ResultDir returns the expanded per-sample result directory.
func (c *Config) ResultDir() (string, error) {
	dir, err := homedir.Expand(c.ResultPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Sample+"_files"), nil
}
