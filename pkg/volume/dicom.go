package volume

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"fiberorient/internal/models"
)

// DicomSource loads a tomography stack stored as a directory of DICOM
// slices. Files are ordered by the number in their name; every frame of
// every file becomes one slice along the third axis.
type DicomSource struct {
	Dir string

	// VoxelSize replaces the pixel spacing of the files when > 0. Without
	// either the returned volume has a zero voxel size.
	VoxelSize float64
}

// Load reads all slices in s.Dir.
func (s DicomSource) Load() (*models.Volume, error) {
	files, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file.Name()))
		if !file.IsDir() && (ext == ".dcm" || ext == ".dicom") {
			names = append(names, file.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no DICOM files found in %s", s.Dir)
	}

	// Sort by the slice number embedded in the file name
	sort.SliceStable(names, func(i, j int) bool {
		return extractNumber(names[i]) < extractNumber(names[j])
	})

	var (
		data       []float64
		rows, cols int
		spacing    float64
		depth      int
	)
	for _, name := range names {
		path := filepath.Join(s.Dir, name)
		ds, err := dicom.ParseFile(path, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		if spacing == 0 {
			spacing = pixelSpacing(ds)
		}

		el, err := ds.FindElementByTag(tag.PixelData)
		if err != nil {
			return nil, fmt.Errorf("%s has no pixel data: %w", name, err)
		}
		info := dicom.MustGetPixelDataInfo(el.Value)
		for _, fr := range info.Frames {
			nf, err := fr.GetNativeFrame()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			if depth == 0 {
				rows, cols = nf.Rows, nf.Cols
			} else if nf.Rows != rows || nf.Cols != cols {
				return nil, fmt.Errorf("%s: slice is %dx%d, expected %dx%d", name, nf.Cols, nf.Rows, cols, rows)
			}
			for _, px := range nf.Data {
				data = append(data, float64(px[0]))
			}
			depth++
		}
	}

	if depth == 0 || rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("no image frames found in %s", s.Dir)
	}
	if s.VoxelSize > 0 {
		spacing = s.VoxelSize
	}
	// the voxel size may still be 0 here; the caller can override it
	// before validating the volume
	return &models.Volume{Data: data, Nx: cols, Ny: rows, Nz: depth, VoxelSize: spacing}, nil
}

// pixelSpacing returns the in-plane spacing of ds, 0 when absent.
func pixelSpacing(ds dicom.Dataset) float64 {
	el, err := ds.FindElementByTag(tag.PixelSpacing)
	if err != nil {
		return 0
	}
	vals, ok := el.Value.GetValue().([]string)
	if !ok || len(vals) == 0 {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64)
	if err != nil {
		return 0
	}
	return f
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}
