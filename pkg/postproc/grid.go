package postproc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/stat"

	"fiberorient/internal/models"
)

// point is an integration point carrying the index of its value
type point struct {
	X, Y, Z float64
	idx     int
}

// Compare implements the kdtree.Comparable interface
func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(point)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p point) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p point) Distance(c kdtree.Comparable) float64 {
	q := c.(point)
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return dx*dx + dy*dy + dz*dz
}

// points satisfies kdtree.Interface
type points []point

func (p points) Index(i int) kdtree.Comparable         { return p[i] }
func (p points) Len() int                              { return len(p) }
func (p points) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p points) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(plane{points: p, Dim: d}, kdtree.MedianOfRandoms(plane{points: p, Dim: d}, 100))
}

// plane implements sort.Interface and kdtree.SortSlicer for points
type plane struct {
	points
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.points[i].X < p.points[j].X
	case 1:
		return p.points[i].Y < p.points[j].Y
	case 2:
		return p.points[i].Z < p.points[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{points: p.points[start:end], Dim: p.Dim}
}

func (p plane) Swap(i, j int) {
	p.points[i], p.points[j] = p.points[j], p.points[i]
}

// PointGrid answers nearest-point queries over a scattered point cloud
// carrying one scalar per point.
type PointGrid struct {
	tree   *kdtree.Tree
	values []float64
}

// NewPointGrid indexes coords; values[i] belongs to coords[i].
func NewPointGrid(coords [][3]float64, values []float64) (*PointGrid, error) {
	if len(coords) == 0 {
		return nil, fmt.Errorf("no points to index")
	}
	if len(coords) != len(values) {
		return nil, fmt.Errorf("%d points but %d values", len(coords), len(values))
	}
	pts := make(points, len(coords))
	for i, c := range coords {
		pts[i] = point{X: c[0], Y: c[1], Z: c[2], idx: i}
	}
	v := make([]float64, len(values))
	copy(v, values)
	return &PointGrid{tree: kdtree.New(pts, false), values: v}, nil
}

// Nearest returns the value of the point closest to p and its distance.
func (g *PointGrid) Nearest(p [3]float64) (float64, float64) {
	c, d := g.tree.Nearest(point{X: p[0], Y: p[1], Z: p[2]})
	return g.values[c.(point).idx], math.Sqrt(d)
}

// ResampleField fills a field of the given shape with the value of the
// point nearest to each voxel, located in point coordinates by locate.
// Voxels farther than maxDist from every point are NaN; maxDist <= 0 keeps
// every voxel.
func (g *PointGrid) ResampleField(shape [3]int, locate func(x, y, z int) [3]float64, maxDist float64) *models.ScalarField {
	f := models.NewScalarField(shape[0], shape[1], shape[2])
	for z := 0; z < shape[2]; z++ {
		for y := 0; y < shape[1]; y++ {
			for x := 0; x < shape[0]; x++ {
				v, d := g.Nearest(locate(x, y, z))
				if maxDist > 0 && d > maxDist {
					v = math.NaN()
				}
				f.Data[f.Index(x, y, z)] = float32(v)
			}
		}
	}
	return f
}

// Correlation returns the Pearson correlation of a and b over the samples
// finite in both, or NaN when fewer than two remain.
func Correlation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	x := make([]float64, 0, n)
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if isFinite(a[i]) && isFinite(b[i]) {
			x = append(x, a[i])
			y = append(y, b[i])
		}
	}
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
