// Package artifact persists the outputs of a scan processing run for the
// downstream mesh building and mapping stages.
package artifact

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"fiberorient/internal/models"
)

const magic = "FIBORI1\n"

const (
	// maxHeader bounds the YAML preamble
	maxHeader = 1 << 20
	// maxVoxels bounds the size of one angle field (8 GiB of float32)
	maxVoxels = 1 << 31
)

// Orientation is the bundle written once per scan and read once per mapping
// run: voxel size, model dimensions and the corrected angle fields.
type Orientation struct {
	VoxelSize float64
	// ModelDim is (length, thickness, width) in voxel size units
	ModelDim [3]float64
	Theta    *models.ScalarField
	Phi      *models.ScalarField

	// Sample, MeanTheta and MeanPhi are informational
	Sample    string
	MeanTheta float64
	MeanPhi   float64
	Created   time.Time
}

// header is the YAML preamble of the binary file
type header struct {
	Sample    string     `yaml:"sample"`
	VoxelSize float64    `yaml:"voxelSize"`
	ModelDim  [3]float64 `yaml:"modelDim"`
	Shape     [3]int     `yaml:"shape"`
	MeanTheta float64    `yaml:"meanTheta"`
	MeanPhi   float64    `yaml:"meanPhi"`
	Created   time.Time  `yaml:"created"`
	Fields    []string   `yaml:"fields"`
}

// Validate checks that both fields exist and share one shape.
func (o *Orientation) Validate() error {
	if o.Theta == nil || o.Phi == nil {
		return fmt.Errorf("orientation artifact needs both theta and phi")
	}
	if o.Theta.Shape() != o.Phi.Shape() {
		return fmt.Errorf("theta shape %v differs from phi shape %v", o.Theta.Shape(), o.Phi.Shape())
	}
	if len(o.Theta.Data) != o.Theta.Nx*o.Theta.Ny*o.Theta.Nz || len(o.Phi.Data) != len(o.Theta.Data) {
		return fmt.Errorf("field data length does not match shape %v", o.Theta.Shape())
	}
	if !(o.VoxelSize > 0) {
		return models.InvalidParam("voxelSize", o.VoxelSize, "must be positive")
	}
	return nil
}

// Write encodes o: magic, uint32 little-endian header length, YAML header,
// then theta and phi as little-endian float32.
func (o *Orientation) Write(w io.Writer) error {
	if err := o.Validate(); err != nil {
		return err
	}
	h := header{
		Sample:    o.Sample,
		VoxelSize: o.VoxelSize,
		ModelDim:  o.ModelDim,
		Shape:     o.Theta.Shape(),
		MeanTheta: o.MeanTheta,
		MeanPhi:   o.MeanPhi,
		Created:   o.Created,
		Fields:    []string{"theta", "phi"},
	}
	hdr, err := yaml.Marshal(&h)
	if err != nil {
		return fmt.Errorf("error marshaling header: %w", err)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(magic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(hdr))); err != nil {
		return err
	}
	if _, err := bw.Write(hdr); err != nil {
		return err
	}
	for _, f := range []*models.ScalarField{o.Theta, o.Phi} {
		if err := binary.Write(bw, binary.LittleEndian, f.Data); err != nil {
			return fmt.Errorf("error writing field data: %w", err)
		}
	}
	return bw.Flush()
}

// Read decodes an artifact written by Write.
func Read(r io.Reader) (*Orientation, error) {
	br := bufio.NewReader(r)

	m := make([]byte, len(magic))
	if _, err := io.ReadFull(br, m); err != nil {
		return nil, fmt.Errorf("error reading magic: %w", err)
	}
	if !bytes.Equal(m, []byte(magic)) {
		return nil, fmt.Errorf("not an orientation artifact")
	}

	var n uint32
	if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("error reading header length: %w", err)
	}
	if n == 0 || n > maxHeader {
		return nil, fmt.Errorf("invalid header length %d", n)
	}
	hdr := make([]byte, n)
	if _, err := io.ReadFull(br, hdr); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}
	var h header
	if err := yaml.Unmarshal(hdr, &h); err != nil {
		return nil, fmt.Errorf("error parsing header: %w", err)
	}
	voxels := 1
	for i, s := range h.Shape {
		if s <= 0 {
			return nil, fmt.Errorf("invalid shape %v on axis %d", h.Shape, i)
		}
		if s > maxVoxels/voxels {
			return nil, fmt.Errorf("shape %v exceeds %d voxels", h.Shape, maxVoxels)
		}
		voxels *= s
	}

	o := &Orientation{
		VoxelSize: h.VoxelSize,
		ModelDim:  h.ModelDim,
		Sample:    h.Sample,
		MeanTheta: h.MeanTheta,
		MeanPhi:   h.MeanPhi,
		Created:   h.Created,
		Theta:     models.NewScalarField(h.Shape[0], h.Shape[1], h.Shape[2]),
		Phi:       models.NewScalarField(h.Shape[0], h.Shape[1], h.Shape[2]),
	}
	for _, f := range []*models.ScalarField{o.Theta, o.Phi} {
		if err := binary.Read(br, binary.LittleEndian, f.Data); err != nil {
			return nil, fmt.Errorf("error reading field data: %w", err)
		}
	}
	return o, nil
}

// Save writes o to path, creating parent directories.
func (o *Orientation) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := o.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads the artifact at path.
func Load(path string) (*Orientation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
