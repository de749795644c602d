// Package visualization renders slices of scan volumes and angle fields as
// images for visual inspection of the orientation analysis.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"

	"fiberorient/internal/models"
)

// Viewer extracts 2D slices from a volume stored x fastest
type Viewer struct {
	volumeData []float64

	// dimensions of the volume
	width  int
	height int
	depth  int

	// lo and hi are the finite data range used for gray scaling
	lo, hi float64
}

// NewViewer creates a viewer over volumeData of the given shape.
func NewViewer(volumeData []float64, width, height, depth int) (*Viewer, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("invalid volume shape %dx%dx%d", width, height, depth)
	}
	if len(volumeData) != width*height*depth {
		return nil, fmt.Errorf("volume data length %d does not match shape %dx%dx%d",
			len(volumeData), width, height, depth)
	}
	v := &Viewer{
		volumeData: volumeData,
		width:      width,
		height:     height,
		depth:      depth,
	}
	v.lo, v.hi = finiteRange(volumeData)
	return v, nil
}

// VolumeViewer creates a viewer over an intensity volume.
func VolumeViewer(vol *models.Volume) (*Viewer, error) {
	return NewViewer(vol.Data, vol.Nx, vol.Ny, vol.Nz)
}

// FieldViewer creates a viewer over an angle field.
func FieldViewer(f *models.ScalarField) (*Viewer, error) {
	return NewViewer(f.Float64s(), f.Nx, f.Ny, f.Nz)
}

func finiteRange(data []float64) (lo, hi float64) {
	finite := make([]float64, 0, len(data))
	for _, d := range data {
		if !math.IsNaN(d) && !math.IsInf(d, 0) {
			finite = append(finite, d)
		}
	}
	if len(finite) == 0 {
		return 0, 0
	}
	return floats.Min(finite), floats.Max(finite)
}

// axisExtent returns the number of slices along axis
func (v *Viewer) axisExtent(axis string) (int, error) {
	switch strings.ToLower(axis) {
	case "x":
		return v.width, nil
	case "y":
		return v.height, nil
	case "z":
		return v.depth, nil
	}
	return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// SliceValues returns the raw values of a slice in row-major order with its
// image width and height. An x slice spans (z, y), a y slice (x, z) and a
// z slice (x, y).
func (v *Viewer) SliceValues(axis string, position int) ([]float64, int, int, error) {
	n, err := v.axisExtent(axis)
	if err != nil {
		return nil, 0, 0, err
	}
	if position < 0 || position >= n {
		return nil, 0, 0, fmt.Errorf("position %d outside [0, %d) on axis %s", position, n, axis)
	}

	var w, h int
	var at func(col, row int) int
	switch strings.ToLower(axis) {
	case "x":
		w, h = v.depth, v.height
		at = func(col, row int) int { return col*v.width*v.height + row*v.width + position }
	case "y":
		w, h = v.width, v.depth
		at = func(col, row int) int { return row*v.width*v.height + position*v.width + col }
	default:
		w, h = v.width, v.height
		at = func(col, row int) int { return position*v.width*v.height + row*v.width + col }
	}

	out := make([]float64, w*h)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			out[row*w+col] = v.volumeData[at(col, row)]
		}
	}
	return out, w, h, nil
}

// ExtractSlice returns a 16-bit gray image of a slice, scaled over the data
// range of the whole volume. Non-finite values are black.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	vals, w, h, err := v.SliceValues(axis, position)
	if err != nil {
		return nil, err
	}
	img := image.NewGray16(image.Rect(0, 0, w, h))
	span := v.hi - v.lo
	for i, d := range vals {
		var g float64
		if span > 0 && !math.IsNaN(d) && !math.IsInf(d, 0) {
			g = (d - v.lo) / span
		}
		value := uint16(math.Max(0, math.Min(65535, g*65535)))
		img.SetGray16(i%w, i/w, color.Gray16{Y: value})
	}
	return img, nil
}

// SaveSlice saves an image as JPEG, or PNG when filename ends in .png.
func SaveSlice(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(filename), ".png") {
		err = png.Encode(file, img)
	} else {
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SaveSliceSequence extracts and saves every step-th slice along axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string, step int) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	maxPos, err := v.axisExtent(axis)
	if err != nil {
		return err
	}
	if step < 1 {
		step = 1
	}

	for pos := 0; pos < maxPos; pos += step {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", strings.ToLower(axis), pos))
		if err := SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
