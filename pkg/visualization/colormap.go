package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// diverging blue-white-red control points
var coolwarm = [3][3]float64{
	{59, 76, 192},
	{221, 221, 221},
	{180, 4, 38},
}

// nanColor marks samples outside the field
var nanColor = color.RGBA{R: 0, G: 200, B: 0, A: 255}

// Coolwarm maps d onto a diverging colormap over [vmin, vmax]. Values
// outside the range saturate and NaN maps to green.
func Coolwarm(d, vmin, vmax float64) color.RGBA {
	if math.IsNaN(d) {
		return nanColor
	}
	t := 0.5
	if vmax > vmin {
		t = (d - vmin) / (vmax - vmin)
	}
	t = math.Max(0, math.Min(1, t))

	lo, hi := coolwarm[0], coolwarm[1]
	f := t * 2
	if t > 0.5 {
		lo, hi = coolwarm[1], coolwarm[2]
		f = (t - 0.5) * 2
	}
	mix := func(a, b float64) uint8 { return uint8(math.Round(a + (b-a)*f)) }
	return color.RGBA{R: mix(lo[0], hi[0]), G: mix(lo[1], hi[1]), B: mix(lo[2], hi[2]), A: 255}
}

// ColorSlice renders a slice of an angle field with Coolwarm.
func (v *Viewer) ColorSlice(axis string, position int, vmin, vmax float64) (image.Image, error) {
	vals, w, h, err := v.SliceValues(axis, position)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, d := range vals {
		img.SetRGBA(i%w, i/w, Coolwarm(d, vmin, vmax))
	}
	return img, nil
}

// Overlay blends the Coolwarm rendering of field over the gray rendering of
// base with the given opacity. Both viewers must share one shape.
func Overlay(base, field *Viewer, axis string, position int, vmin, vmax, alpha float64) (image.Image, error) {
	if base.width != field.width || base.height != field.height || base.depth != field.depth {
		return nil, fmt.Errorf("overlay shape mismatch: %dx%dx%d vs %dx%dx%d",
			base.width, base.height, base.depth, field.width, field.height, field.depth)
	}
	gray, err := base.ExtractSlice(axis, position)
	if err != nil {
		return nil, err
	}
	vals, w, h, err := field.SliceValues(axis, position)
	if err != nil {
		return nil, err
	}
	alpha = math.Max(0, math.Min(1, alpha))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	g16 := gray.(*image.Gray16)
	for i, d := range vals {
		x, y := i%w, i/w
		g := float64(g16.Gray16At(x, y).Y) / 257
		c := Coolwarm(d, vmin, vmax)
		blend := func(ch uint8) uint8 {
			return uint8(math.Round(alpha*float64(ch) + (1-alpha)*g))
		}
		img.SetRGBA(x, y, color.RGBA{R: blend(c.R), G: blend(c.G), B: blend(c.B), A: 255})
	}
	return img, nil
}
