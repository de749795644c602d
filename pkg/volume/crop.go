// Package volume loads tomography volumes and prepares them for the structure
// tensor analysis: axis reordering into material coordinates and symmetric
// border cropping.
package volume

import (
	"fmt"

	"fiberorient/internal/models"
)

// Crop removes tx, ty and tz voxels from both ends of the x, y and z axes and
// returns the centred sub-volume. When every trim is zero the input volume is
// returned as is.
func Crop(v *models.Volume, tx, ty, tz int) (*models.Volume, error) {
	trims := [3]int{tx, ty, tz}
	shape := v.Shape()
	names := [3]string{"xcut", "ycut", "zcut"}

	for i := range trims {
		if trims[i] < 0 {
			return nil, models.InvalidParam(names[i], trims[i], "must be non-negative")
		}
		if 2*trims[i] >= shape[i] {
			return nil, models.InvalidParam(names[i], trims[i],
				fmt.Sprintf("too much data removed: 2*%d leaves nothing of axis extent %d", trims[i], shape[i]))
		}
	}

	if tx == 0 && ty == 0 && tz == 0 {
		return v, nil
	}

	out := models.NewVolume(v.Nx-2*tx, v.Ny-2*ty, v.Nz-2*tz, v.VoxelSize)
	for z := 0; z < out.Nz; z++ {
		for y := 0; y < out.Ny; y++ {
			src := v.Index(tx, y+ty, z+tz)
			dst := out.Index(0, y, z)
			copy(out.Data[dst:dst+out.Nx], v.Data[src:src+out.Nx])
		}
	}
	return out, nil
}

// CropUniform trims the same margin from every axis.
func CropUniform(v *models.Volume, margin int) (*models.Volume, error) {
	return Crop(v, margin, margin, margin)
}
