package models

import (
	"fmt"
)

// Volume represents a 3D scalar intensity volume in material axis order
// (length, thickness, width) = (x, y, z).
type Volume struct {
	// Data is the 3D volume data as a 1D array, x varying fastest
	Data []float64

	// Nx, Ny, Nz are the number of voxels along each axis
	Nx, Ny, Nz int

	// VoxelSize is the physical edge length of a voxel, identical on all axes
	VoxelSize float64
}

// NewVolume allocates a zero-filled volume.
func NewVolume(nx, ny, nz int, voxelSize float64) *Volume {
	return &Volume{
		Data:      make([]float64, nx*ny*nz),
		Nx:        nx,
		Ny:        ny,
		Nz:        nz,
		VoxelSize: voxelSize,
	}
}

// Index returns the flat offset of voxel (x, y, z).
func (v *Volume) Index(x, y, z int) int {
	return z*v.Nx*v.Ny + y*v.Nx + x
}

// At returns the intensity of voxel (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set assigns the intensity of voxel (x, y, z).
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}

// Shape returns the voxel counts as [Nx, Ny, Nz].
func (v *Volume) Shape() [3]int {
	return [3]int{v.Nx, v.Ny, v.Nz}
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	c := *v
	c.Data = make([]float64, len(v.Data))
	copy(c.Data, v.Data)
	return &c
}

// Validate checks that the dimensions agree with the data length.
func (v *Volume) Validate() error {
	if v.Nx <= 0 || v.Ny <= 0 || v.Nz <= 0 {
		return &ParamError{Param: "shape", Value: fmt.Sprint(v.Shape()), Reason: "all axes must be non-empty"}
	}
	if len(v.Data) != v.Nx*v.Ny*v.Nz {
		return fmt.Errorf("volume data length %d does not match shape %v", len(v.Data), v.Shape())
	}
	if !(v.VoxelSize > 0) {
		return &ParamError{Param: "voxelSize", Value: fmt.Sprint(v.VoxelSize), Reason: "must be positive"}
	}
	return nil
}

// ScalarField is a per-voxel float32 field such as the azimuth or elevation
// angle. It shares the indexing convention of Volume.
type ScalarField struct {
	Data       []float32
	Nx, Ny, Nz int
}

// NewScalarField allocates a zero-filled field.
func NewScalarField(nx, ny, nz int) *ScalarField {
	return &ScalarField{Data: make([]float32, nx*ny*nz), Nx: nx, Ny: ny, Nz: nz}
}

func (f *ScalarField) Index(x, y, z int) int { return z*f.Nx*f.Ny + y*f.Nx + x }
func (f *ScalarField) At(x, y, z int) float32 { return f.Data[f.Index(x, y, z)] }
func (f *ScalarField) Shape() [3]int          { return [3]int{f.Nx, f.Ny, f.Nz} }
func (f *ScalarField) Len() int               { return len(f.Data) }

// Float64s returns the field widened to float64.
func (f *ScalarField) Float64s() []float64 {
	out := make([]float64, len(f.Data))
	for i, v := range f.Data {
		out[i] = float64(v)
	}
	return out
}

// TensorField holds the six independent components of a symmetric 3x3
// structure tensor for every voxel.
type TensorField struct {
	XX, YY, ZZ, XY, XZ, YZ []float64
	Nx, Ny, Nz             int
}

// NewTensorField allocates a zero-filled tensor field.
func NewTensorField(nx, ny, nz int) *TensorField {
	n := nx * ny * nz
	return &TensorField{
		XX: make([]float64, n), YY: make([]float64, n), ZZ: make([]float64, n),
		XY: make([]float64, n), XZ: make([]float64, n), YZ: make([]float64, n),
		Nx: nx, Ny: ny, Nz: nz,
	}
}

func (t *TensorField) Index(x, y, z int) int { return z*t.Nx*t.Ny + y*t.Nx + x }
func (t *TensorField) Shape() [3]int          { return [3]int{t.Nx, t.Ny, t.Nz} }
func (t *TensorField) Len() int               { return len(t.XX) }

// VectorField stores one direction vector and its eigenvalue per voxel.
// Degenerate marks voxels whose eigen-decomposition could not produce a
// direction; their vector is zero.
type VectorField struct {
	X, Y, Z    []float32
	Values     []float32
	Degenerate []bool
	Nx, Ny, Nz int
}

// NewVectorField allocates a zero-filled vector field.
func NewVectorField(nx, ny, nz int) *VectorField {
	n := nx * ny * nz
	return &VectorField{
		X: make([]float32, n), Y: make([]float32, n), Z: make([]float32, n),
		Values:     make([]float32, n),
		Degenerate: make([]bool, n),
		Nx:         nx, Ny: ny, Nz: nz,
	}
}

func (f *VectorField) Index(x, y, z int) int { return z*f.Nx*f.Ny + y*f.Nx + x }
func (f *VectorField) Shape() [3]int          { return [3]int{f.Nx, f.Ny, f.Nz} }
func (f *VectorField) Len() int               { return len(f.X) }

// Vec returns the components of voxel i in float64.
func (f *VectorField) Vec(i int) (x, y, z float64) {
	return float64(f.X[i]), float64(f.Y[i]), float64(f.Z[i])
}

// CountDegenerate returns the number of flagged voxels.
func (f *VectorField) CountDegenerate() int {
	n := 0
	for _, d := range f.Degenerate {
		if d {
			n++
		}
	}
	return n
}
