// Package pipeline runs the scan processing stage: a tomography volume goes
// in, a misalignment-corrected orientation artifact comes out.
//
// The process consists of several steps:
// 1. Loading the volume and moving it into the material coordinate system
// 2. Cropping the scan edges
// 3. Computing the structure tensor at scales derived from the fiber diameter
// 4. Trimming the under-supported border and extracting fiber directions
// 5. Correcting the global misalignment and converting to angles
// 6. Packaging the angles and model dimensions for the FE stages
package pipeline

import (
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"time"

	"fiberorient/internal/models"
	"fiberorient/pkg/artifact"
	"fiberorient/pkg/config"
	"fiberorient/pkg/orientation"
	"fiberorient/pkg/structuretensor"
	"fiberorient/pkg/volume"
)

const (
	// histogram range and resolution of the misalignment diagnostics
	histLimit = 5.0
	histBins  = 360
)

// Params holds the processing parameters of one scan.
type Params struct {
	Sample string

	// AxisOrder moves scanner axis i to material axis AxisOrder[i]
	AxisOrder [3]int

	// CropMargin is removed from both ends of every axis before analysis
	CropMargin int

	// VoxelSizeOverride replaces the voxel size of the source when > 0
	VoxelSizeOverride float64

	// FiberDiameter, in the voxel size unit, sets the integration scale
	FiberDiameter float64

	// Sigma and Rho override the derived scales when > 0
	Sigma, Rho float64

	SignAxis int
	Workers  int

	// LengthPadding is added at both ends of the model length
	LengthPadding float64

	SaveIntermediaryResults bool
	SliceOfInterest         int

	// Out receives progress messages; nil discards them
	Out io.Writer
}

// ParamsFromConfig builds processing parameters from a loaded configuration.
func ParamsFromConfig(cfg *config.Config) *Params {
	p := &Params{
		Sample:                  cfg.Sample,
		AxisOrder:               cfg.Scan.AxisOrder,
		CropMargin:              cfg.Scan.CropMargin,
		VoxelSizeOverride:       cfg.Scan.VoxelSizeOverride,
		FiberDiameter:           cfg.Analysis.FiberDiameter,
		Sigma:                   cfg.Analysis.Sigma,
		Rho:                     cfg.Analysis.Rho,
		SignAxis:                cfg.Analysis.SignAxis,
		Workers:                 cfg.Analysis.Workers,
		LengthPadding:           cfg.Model.LengthPadding,
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
		SliceOfInterest:         cfg.Output.SliceOfInterest,
		Out:                     io.Discard,
	}
	if cfg.Output.Verbose {
		p.Out = os.Stdout
	}
	return p
}

// Renderer writes intermediary images of a run.
type Renderer interface {
	RenderIntensity(sample string, vol *models.Volume) error
	RenderMisalignment(sample string, vol *models.Volume, phi *models.ScalarField, slice int) error
}

// Result is the outcome of Process.
type Result struct {
	Artifact *artifact.Orientation

	// Intensity is the analysed volume, trimmed like the angle fields
	Intensity *models.Volume

	KernelRadius int
	Sigma, Rho   float64

	Eigen     structuretensor.EigenReport
	Alignment orientation.Alignment

	// PhiBefore and PhiAfter summarise the elevation field before and after
	// the alignment correction
	PhiBefore orientation.Summary
	PhiAfter  orientation.Summary
}

// Pipeline processes one scan.
type Pipeline struct {
	params   *Params
	source   volume.Source
	renderer Renderer
	engine   *structuretensor.Engine
}

// NewPipeline creates a pipeline reading its volume from source.
func NewPipeline(params *Params, source volume.Source) *Pipeline {
	return &Pipeline{
		params: params,
		source: source,
		engine: structuretensor.NewEngine(params.Workers),
	}
}

// SetRenderer enables intermediary image output through r.
func (p *Pipeline) SetRenderer(r Renderer) {
	p.renderer = r
}

func (p *Pipeline) out() io.Writer {
	if p.params.Out == nil {
		return io.Discard
	}
	return p.params.Out
}

// Scales returns sigma and rho for a voxel size: rho is the fiber diameter
// in voxels rounded to two decimals and sigma half of it, unless overridden.
func (p *Params) Scales(voxelSize float64) (sigma, rho float64, err error) {
	rho = p.Rho
	if rho <= 0 {
		if !(p.FiberDiameter > 0) {
			return 0, 0, models.InvalidParam("fiberDiameter", p.FiberDiameter, "must be positive")
		}
		rho = math.Round(p.FiberDiameter/voxelSize*100) / 100
	}
	sigma = p.Sigma
	if sigma <= 0 {
		sigma = rho / 2
	}
	if err := structuretensor.ValidateScales(sigma, rho); err != nil {
		return 0, 0, err
	}
	return sigma, rho, nil
}

// Process runs the complete scan processing pipeline
func (p *Pipeline) Process() (*Result, error) {
	w := p.out()
	if p.params.SignAxis < 0 || p.params.SignAxis > 2 {
		return nil, models.InvalidParam("signAxis", p.params.SignAxis, "must be 0, 1 or 2")
	}

	// Step 1: Load and reorient
	fmt.Fprintln(w, "Step 1: Loading volume...")
	vol, err := p.source.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load volume: %w", err)
	}
	if p.params.VoxelSizeOverride > 0 {
		vol.VoxelSize = p.params.VoxelSizeOverride
	}
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	vol, err = volume.RemapAxes(vol, p.params.AxisOrder)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "Loaded volume %v, voxel size %g\n", vol.Shape(), vol.VoxelSize)

	// Step 2: Crop
	fmt.Fprintln(w, "Step 2: Cropping scan edges...")
	vol, err = volume.CropUniform(vol, p.params.CropMargin)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "Cropped volume %v\n", vol.Shape())

	// Step 3: Structure tensor
	sigma, rho, err := p.params.Scales(vol.VoxelSize)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "Step 3: Computing structure tensor (sigma=%g, rho=%g)...\n", sigma, rho)
	tensor, radius, err := p.engine.Compute(vol, sigma, rho)
	if err != nil {
		return nil, fmt.Errorf("failed to compute structure tensor: %w", err)
	}
	fmt.Fprintf(w, "Kernel radius: %d\n", radius)

	// Step 4: Trim and decompose
	fmt.Fprintln(w, "Step 4: Extracting fiber directions...")
	tensor, err = structuretensor.TrimTensor(tensor, radius)
	if err != nil {
		return nil, err
	}
	vol, err = volume.CropUniform(vol, radius)
	if err != nil {
		return nil, err
	}
	vecs, report := p.engine.EigenDecompose(tensor)
	// only the directions are needed from here on
	tensor = nil
	if report.Degenerate > 0 {
		log.Printf("Warning: %d of %d voxels have no defined direction (first at %v)",
			report.Degenerate, report.Voxels, report.FirstDegenerate)
	}
	vecs = structuretensor.ResolveSign(vecs, p.params.SignAxis)
	_, phiBefore := orientation.FieldAngles(vecs)

	// Step 5: Alignment correction
	fmt.Fprintln(w, "Step 5: Correcting global misalignment...")
	corrected, al, err := orientation.Correct(vecs)
	if err != nil {
		return nil, fmt.Errorf("failed to correct alignment: %w", err)
	}
	theta, phi := orientation.FieldAngles(corrected)
	fmt.Fprintf(w, "Mean direction: theta=%.3f phi=%.3f degrees\n", al.MeanTheta, al.MeanPhi)

	res := &Result{
		Intensity:    vol,
		KernelRadius: radius,
		Sigma:        sigma,
		Rho:          rho,
		Eigen:        report,
		Alignment:    al,
		PhiBefore:    orientation.Summarize(phiBefore.Data, histLimit, histBins),
		PhiAfter:     orientation.Summarize(phi.Data, histLimit, histBins),
	}
	fmt.Fprintf(w, "Mean misalignment before: %.3f (abs %.3f), after: %.3f (abs %.3f)\n",
		res.PhiBefore.Mean, res.PhiBefore.MeanAbs, res.PhiAfter.Mean, res.PhiAfter.MeanAbs)

	// Step 6: Package
	fmt.Fprintln(w, "Step 6: Packaging orientation artifact...")
	res.Artifact = &artifact.Orientation{
		VoxelSize: vol.VoxelSize,
		ModelDim:  ModelDimensions(vol, p.params.LengthPadding),
		Theta:     theta,
		Phi:       phi,
		Sample:    p.params.Sample,
		MeanTheta: al.MeanTheta,
		MeanPhi:   al.MeanPhi,
		Created:   time.Now().UTC(),
	}
	return res, nil
}

// ModelDimensions returns (length, thickness, width) of the FE model built
// around vol: the analysed extent with padding added at both length ends.
func ModelDimensions(vol *models.Volume, padding float64) [3]float64 {
	return [3]float64{
		float64(vol.Nx)*vol.VoxelSize + 2*padding,
		float64(vol.Ny) * vol.VoxelSize,
		float64(vol.Nz) * vol.VoxelSize,
	}
}
