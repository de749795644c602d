package volume

import (
	"fiberorient/internal/models"
)

// RemapAxes reorders the axes of a scanner volume so that scanner axis i
// becomes output axis order[i]. With the default order {1, 2, 0} a tomogram
// stored as (width, length, thickness) comes out as (length, thickness, width).
func RemapAxes(v *models.Volume, order [3]int) (*models.Volume, error) {
	seen := [3]bool{}
	for _, a := range order {
		if a < 0 || a > 2 || seen[a] {
			return nil, models.InvalidParam("axisOrder", order, "must be a permutation of 0, 1, 2")
		}
		seen[a] = true
	}
	if order == [3]int{0, 1, 2} {
		return v, nil
	}

	in := v.Shape()
	var outShape [3]int
	for i, a := range order {
		outShape[a] = in[i]
	}

	out := models.NewVolume(outShape[0], outShape[1], outShape[2], v.VoxelSize)
	var src, dst [3]int
	for src[2] = 0; src[2] < in[2]; src[2]++ {
		for src[1] = 0; src[1] < in[1]; src[1]++ {
			for src[0] = 0; src[0] < in[0]; src[0]++ {
				for i, a := range order {
					dst[a] = src[i]
				}
				out.Set(dst[0], dst[1], dst[2], v.At(src[0], src[1], src[2]))
			}
		}
	}
	return out, nil
}
