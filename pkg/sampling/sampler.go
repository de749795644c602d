// Package sampling transports voxel-indexed fields onto arbitrary point
// clouds, such as the integration points of a finite element mesh.
package sampling

import (
	"fmt"
	"math"

	"fiberorient/internal/models"
)

// Transform maps a physical coordinate p onto fractional voxel indices
// p*Scale + Offset.
type Transform struct {
	// Scale converts the query unit into voxels
	Scale float64

	// Offset is added per axis after scaling, in voxels
	Offset [3]float64
}

// MaterialTransform returns the transform used for FE models built from a
// scan: the model is centred on length and thickness and extruded from zero
// along the width. physicalUnit is the query unit in voxel size units and
// voxelSize the voxel edge length, so one query unit spans
// physicalUnit/voxelSize voxels.
func MaterialTransform(shape [3]int, voxelSize, physicalUnit float64) (Transform, error) {
	if !(voxelSize > 0) {
		return Transform{}, models.InvalidParam("voxelSize", voxelSize, "must be positive")
	}
	if !(physicalUnit > 0) {
		return Transform{}, models.InvalidParam("physicalUnit", physicalUnit, "must be positive")
	}
	return Transform{
		Scale:  physicalUnit / voxelSize,
		Offset: [3]float64{float64(shape[0]) / 2, float64(shape[1]) / 2, 0},
	}, nil
}

// Apply returns the fractional voxel coordinates of p.
func (t Transform) Apply(p [3]float64) [3]float64 {
	return [3]float64{
		p[0]*t.Scale + t.Offset[0],
		p[1]*t.Scale + t.Offset[1],
		p[2]*t.Scale + t.Offset[2],
	}
}

// Locate returns the physical coordinates of the voxel with fractional
// indices c, the inverse of Apply.
func (t Transform) Locate(c [3]float64) [3]float64 {
	return [3]float64{
		(c[0] - t.Offset[0]) / t.Scale,
		(c[1] - t.Offset[1]) / t.Scale,
		(c[2] - t.Offset[2]) / t.Scale,
	}
}

// Report aggregates the out-of-bounds points of a sampling run.
type Report struct {
	Total   int
	Missing int
	// MissingIndices lists the positions of missing points in the query
	MissingIndices []int
}

// Sample resamples field at every point with nearest neighbour (order 0)
// interpolation. A point whose nearest voxel lies outside the field on any
// axis yields NaN. Sample keeps no state and may be called concurrently.
// It fails only when every point misses the field.
func Sample(field *models.ScalarField, points [][3]float64, tr Transform) ([]float64, Report, error) {
	out, rep, err := SampleFields([]*models.ScalarField{field}, points, tr)
	if out == nil {
		return nil, rep, err
	}
	return out[0], rep, err
}

// SampleFields samples several fields of one shape in a single pass, so
// every field shares the same voxel lookup and the same Report.
func SampleFields(fields []*models.ScalarField, points [][3]float64, tr Transform) ([][]float64, Report, error) {
	rep := Report{Total: len(points)}
	if len(fields) == 0 {
		return nil, rep, models.InvalidParam("fields", 0, "at least one field is required")
	}
	shape := fields[0].Shape()
	for _, f := range fields[1:] {
		if f.Shape() != shape {
			return nil, rep, models.InvalidParam("fields", f.Shape(), fmt.Sprintf("shape differs from %v", shape))
		}
	}

	out := make([][]float64, len(fields))
	for k := range out {
		out[k] = make([]float64, len(points))
	}
	for i, p := range points {
		c := tr.Apply(p)
		idx, ok := nearest(c, shape)
		if !ok {
			for k := range out {
				out[k][i] = math.NaN()
			}
			rep.Missing++
			rep.MissingIndices = append(rep.MissingIndices, i)
			continue
		}
		for k, f := range fields {
			out[k][i] = float64(f.At(idx[0], idx[1], idx[2]))
		}
	}

	if rep.Total > 0 && rep.Missing == rep.Total {
		return out, rep, fmt.Errorf("%w: %d points, field shape %v", models.ErrAllOutOfBounds, rep.Total, shape)
	}
	return out, rep, nil
}

// nearest rounds fractional coordinates half up and reports whether the
// voxel exists.
func nearest(c [3]float64, shape [3]int) ([3]int, bool) {
	var idx [3]int
	for a := 0; a < 3; a++ {
		if math.IsNaN(c[a]) {
			return idx, false
		}
		f := math.Floor(c[a] + 0.5)
		if f < 0 || f >= float64(shape[a]) {
			return idx, false
		}
		idx[a] = int(f)
	}
	return idx, true
}
