package pipeline

import (
	"errors"
	"fmt"

	"fiberorient/internal/models"
	"fiberorient/pkg/artifact"
	"fiberorient/pkg/ipoints"
	"fiberorient/pkg/sampling"
)

// MapQueryPoints samples the corrected angles of art at every integration
// point. physicalUnit is the point unit in voxel size units. Points outside
// the field keep NaN angles; the report counts them. When every point is
// outside, the rows are still returned along with ErrAllOutOfBounds.
func MapQueryPoints(art *artifact.Orientation, points []ipoints.Point, physicalUnit float64) ([]ipoints.Sampled, sampling.Report, error) {
	if err := art.Validate(); err != nil {
		return nil, sampling.Report{}, err
	}
	tr, err := sampling.MaterialTransform(art.Theta.Shape(), art.VoxelSize, physicalUnit)
	if err != nil {
		return nil, sampling.Report{}, err
	}

	coords := ipoints.Coordinates(points)
	angles, rep, err := sampling.SampleFields([]*models.ScalarField{art.Theta, art.Phi}, coords, tr)
	if err != nil && !errors.Is(err, models.ErrAllOutOfBounds) {
		return nil, rep, err
	}
	theta, phi := angles[0], angles[1]

	rows := make([]ipoints.Sampled, len(points))
	for i, pt := range points {
		rows[i] = ipoints.Sampled{
			Element: pt.Element,
			IP:      pt.IP,
			Theta:   theta[i],
			Phi:     phi[i],
		}
	}
	if err != nil {
		return rows, rep, fmt.Errorf("mapping %s: %w", art.Sample, err)
	}
	return rows, rep, nil
}
