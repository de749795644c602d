package orientation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of an angle field.
type Summary struct {
	N       int
	Mean    float64
	MeanAbs float64
	Min     float64
	Max     float64

	// Dividers are the histogram bin edges over [-limit, limit]; Density
	// holds the fraction of samples per unit angle in each bin. Samples
	// outside the range are left out of the histogram only.
	Dividers []float64
	Density  []float64
}

// Summarize computes mean, mean absolute value, range and a density
// histogram with bins bins over [-limit, limit]. NaN samples are ignored.
func Summarize(angles []float32, limit float64, bins int) Summary {
	vals := make([]float64, 0, len(angles))
	for _, a := range angles {
		if !math.IsNaN(float64(a)) {
			vals = append(vals, float64(a))
		}
	}

	s := Summary{N: len(vals)}
	if s.N == 0 {
		return s
	}

	abs := make([]float64, len(vals))
	for i, v := range vals {
		abs[i] = math.Abs(v)
	}
	s.Mean = stat.Mean(vals, nil)
	s.MeanAbs = stat.Mean(abs, nil)
	s.Min = floats.Min(vals)
	s.Max = floats.Max(vals)

	if bins < 1 || !(limit > 0) {
		return s
	}
	s.Dividers = floats.Span(make([]float64, bins+1), -limit, limit)

	// stat.Histogram wants sorted samples inside the divider range
	inRange := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v >= -limit && v < limit {
			inRange = append(inRange, v)
		}
	}
	sort.Float64s(inRange)
	counts := stat.Histogram(nil, s.Dividers, inRange, nil)

	width := 2 * limit / float64(bins)
	s.Density = make([]float64, bins)
	for i, c := range counts {
		s.Density[i] = c / (float64(s.N) * width)
	}
	return s
}
