package visualization

import (
	"fmt"
	"path/filepath"

	"fiberorient/internal/models"
)

// SliceExporter writes the intermediary images of a processing run into Dir.
type SliceExporter struct {
	Dir string

	// VMin and VMax bound the misalignment color scale in degrees
	VMin, VMax float64

	// Alpha is the opacity of the misalignment overlay
	Alpha float64
}

// NewSliceExporter returns an exporter with a ±10 degree color scale.
func NewSliceExporter(dir string) *SliceExporter {
	return &SliceExporter{Dir: dir, VMin: -10, VMax: 10, Alpha: 0.5}
}

// RenderIntensity saves the three orthogonal middle slices of vol.
func (e *SliceExporter) RenderIntensity(sample string, vol *models.Volume) error {
	v, err := VolumeViewer(vol)
	if err != nil {
		return err
	}
	mid := map[string]int{"x": vol.Nx / 2, "y": vol.Ny / 2, "z": vol.Nz / 2}
	for _, axis := range []string{"x", "y", "z"} {
		img, err := v.ExtractSlice(axis, mid[axis])
		if err != nil {
			return err
		}
		name := filepath.Join(e.Dir, fmt.Sprintf("%s_intensity_%s.jpg", sample, axis))
		if err := SaveSlice(img, name); err != nil {
			return fmt.Errorf("failed to save %s: %w", name, err)
		}
	}
	return nil
}

// RenderMisalignment saves the misalignment field phi over the intensity of
// vol at width index slice. A negative slice selects the middle one.
func (e *SliceExporter) RenderMisalignment(sample string, vol *models.Volume, phi *models.ScalarField, slice int) error {
	if slice < 0 {
		slice = phi.Nz / 2
	}
	base, err := VolumeViewer(vol)
	if err != nil {
		return err
	}
	field, err := FieldViewer(phi)
	if err != nil {
		return err
	}
	img, err := Overlay(base, field, "z", slice, e.VMin, e.VMax, e.Alpha)
	if err != nil {
		return err
	}
	name := filepath.Join(e.Dir, sample+"_Fiber_misalignment_overlay.png")
	if err := SaveSlice(img, name); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}
