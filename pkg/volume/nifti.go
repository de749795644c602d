package volume

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"fiberorient/internal/models"
)

// Source supplies the raw scanner volume with its voxel size.
type Source interface {
	Load() (*models.Volume, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() (*models.Volume, error)

func (f SourceFunc) Load() (*models.Volume, error) { return f() }

const niftiHeaderSize = 348

// NIfTI-1 datatype codes
const (
	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
	dtInt8    = 256
	dtUint16  = 512
	dtUint32  = 768
)

// NiftiSource loads a single-file NIfTI-1 volume (.nii or .nii.gz).
type NiftiSource struct {
	Path string

	// VoxelSize replaces pixdim[1] when > 0
	VoxelSize float64
}

// Load reads the file at s.Path.
func (s NiftiSource) Load() (*models.Volume, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(strings.ToLower(s.Path), ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	v, err := ReadNifti(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}
	if s.VoxelSize > 0 {
		v.VoxelSize = s.VoxelSize
	}
	return v, nil
}

// ReadNifti decodes a NIfTI-1 stream. Only the first three dimensions are
// used; intensities are scaled by scl_slope/scl_inter when a slope is set.
func ReadNifti(r io.Reader) (*models.Volume, error) {
	hdr := make([]byte, niftiHeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if order.Uint32(hdr[0:4]) != niftiHeaderSize {
		order = binary.BigEndian
		if order.Uint32(hdr[0:4]) != niftiHeaderSize {
			return nil, fmt.Errorf("not a NIfTI-1 header")
		}
	}
	if magic := string(hdr[344:347]); magic != "n+1" {
		return nil, fmt.Errorf("unsupported NIfTI magic %q, only single-file volumes are read", magic)
	}

	var dims [8]int
	for i := range dims {
		dims[i] = int(int16(order.Uint16(hdr[40+2*i:])))
	}
	if dims[0] < 3 {
		return nil, fmt.Errorf("volume has %d dimensions, need 3", dims[0])
	}
	nx, ny, nz := dims[1], dims[2], dims[3]
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%dx%d", nx, ny, nz)
	}

	datatype := int16(order.Uint16(hdr[70:]))
	voxelSize := float64(math.Float32frombits(order.Uint32(hdr[80:])))
	voxOffset := int(math.Float32frombits(order.Uint32(hdr[108:])))
	slope := float64(math.Float32frombits(order.Uint32(hdr[112:])))
	inter := float64(math.Float32frombits(order.Uint32(hdr[116:])))

	if voxOffset > niftiHeaderSize {
		if _, err := io.CopyN(io.Discard, r, int64(voxOffset-niftiHeaderSize)); err != nil {
			return nil, fmt.Errorf("failed to skip header extension: %w", err)
		}
	}

	v := models.NewVolume(nx, ny, nz, voxelSize)
	width, decode, err := sampleDecoder(datatype, order)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, width*nx)
	for row := 0; row < ny*nz; row++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("failed to read voxel data: %w", err)
		}
		base := row * nx
		for x := 0; x < nx; x++ {
			v.Data[base+x] = decode(buf[x*width:])
		}
	}

	if slope != 0 && !math.IsNaN(slope) && (slope != 1 || inter != 0) {
		for i := range v.Data {
			v.Data[i] = v.Data[i]*slope + inter
		}
	}
	return v, nil
}

func sampleDecoder(datatype int16, order binary.ByteOrder) (int, func([]byte) float64, error) {
	switch datatype {
	case dtUint8:
		return 1, func(b []byte) float64 { return float64(b[0]) }, nil
	case dtInt8:
		return 1, func(b []byte) float64 { return float64(int8(b[0])) }, nil
	case dtInt16:
		return 2, func(b []byte) float64 { return float64(int16(order.Uint16(b))) }, nil
	case dtUint16:
		return 2, func(b []byte) float64 { return float64(order.Uint16(b)) }, nil
	case dtInt32:
		return 4, func(b []byte) float64 { return float64(int32(order.Uint32(b))) }, nil
	case dtUint32:
		return 4, func(b []byte) float64 { return float64(order.Uint32(b)) }, nil
	case dtFloat32:
		return 4, func(b []byte) float64 { return float64(math.Float32frombits(order.Uint32(b))) }, nil
	case dtFloat64:
		return 8, func(b []byte) float64 { return math.Float64frombits(order.Uint64(b)) }, nil
	default:
		return 0, nil, fmt.Errorf("unsupported NIfTI datatype %d", datatype)
	}
}

// WriteNifti encodes v as a little-endian float32 NIfTI-1 volume.
func WriteNifti(w io.Writer, v *models.Volume) error {
	hdr := make([]byte, niftiHeaderSize+4)
	le := binary.LittleEndian
	le.PutUint32(hdr[0:], niftiHeaderSize)
	dims := []int{3, v.Nx, v.Ny, v.Nz, 1, 1, 1, 1}
	for i, d := range dims {
		le.PutUint16(hdr[40+2*i:], uint16(d))
	}
	le.PutUint16(hdr[70:], dtFloat32)
	le.PutUint16(hdr[72:], 32)
	pixdim := []float32{1, float32(v.VoxelSize), float32(v.VoxelSize), float32(v.VoxelSize)}
	for i, p := range pixdim {
		le.PutUint32(hdr[76+4*i:], math.Float32bits(p))
	}
	le.PutUint32(hdr[108:], math.Float32bits(float32(niftiHeaderSize+4)))
	le.PutUint32(hdr[112:], math.Float32bits(1))
	copy(hdr[344:], "n+1\x00")

	var buf bytes.Buffer
	buf.Grow(len(hdr) + 4*len(v.Data))
	buf.Write(hdr)
	for _, d := range v.Data {
		if err := binary.Write(&buf, le, float32(d)); err != nil {
			return err
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}
