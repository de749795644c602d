// Package postproc evaluates FE results: the load-displacement response of
// the specimen and integration point fields resampled onto voxel grids.
package postproc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"fiberorient/internal/models"
)

// Curve is a load-displacement history.
type Curve struct {
	Displacement []float64
	Load         []float64
}

// ReadLoadDisplacement parses rows of "displacement load". Further columns
// are ignored; blank and '#' lines are skipped.
func ReadLoadDisplacement(r io.Reader) (*Curve, error) {
	c := &Curve{}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected displacement and load", lineNo)
		}
		d, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid displacement %q", lineNo, fields[0])
		}
		l, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid load %q", lineNo, fields[1])
		}
		c.Displacement = append(c.Displacement, d)
		c.Load = append(c.Load, l)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(c.Load) == 0 {
		return nil, fmt.Errorf("no load-displacement data")
	}
	return c, nil
}

// LoadLoadDisplacement reads the load-displacement file at path.
func LoadLoadDisplacement(path string) (*Curve, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLoadDisplacement(f)
}

// StressStrainCurve holds engineering strain in percent and stress in load
// per unit area.
type StressStrainCurve struct {
	Strain []float64
	Stress []float64
}

// StressStrain converts c using the model dimensions (length, thickness,
// width) scaled by unitScale into the unit of the displacement.
func StressStrain(c *Curve, dims [3]float64, unitScale float64) (*StressStrainCurve, error) {
	length := dims[0] * unitScale
	area := dims[1] * unitScale * dims[2] * unitScale
	if !(length > 0) || !(area > 0) {
		return nil, models.InvalidParam("dims", dims, "must be positive")
	}
	ss := &StressStrainCurve{
		Strain: make([]float64, len(c.Displacement)),
		Stress: make([]float64, len(c.Load)),
	}
	for i := range c.Displacement {
		ss.Strain[i] = c.Displacement[i] / length * 100
		ss.Stress[i] = c.Load[i] / area
	}
	return ss, nil
}

// Modulus is the elastic response fitted to a stress-strain curve.
type Modulus struct {
	// E is the slope over the fitting window, in GPa for stresses in MPa
	E         float64
	Intercept float64

	// Points is the number of samples in the fitting window
	Points int

	PeakStress   float64
	StrainAtPeak float64
}

// FitModulus fits a line to the curve over the strain window [lo, hi]
// percent. The window starts at the last sample below lo, so the line
// reaches down to the lower bound.
func FitModulus(ss *StressStrainCurve, lo, hi float64) (Modulus, error) {
	if len(ss.Strain) == 0 || len(ss.Strain) != len(ss.Stress) {
		return Modulus{}, fmt.Errorf("empty or inconsistent stress-strain curve")
	}
	if !(hi > lo) {
		return Modulus{}, models.InvalidParam("strainRange", [2]float64{lo, hi}, "upper bound must exceed lower bound")
	}

	end := len(ss.Strain)
	for i, e := range ss.Strain {
		if e > hi {
			end = i
			break
		}
	}
	start := 0
	for i := 0; i < end; i++ {
		if ss.Strain[i] < lo {
			start = i
		}
	}
	if end-start < 2 {
		return Modulus{}, fmt.Errorf("strain window [%g, %g] holds %d samples", lo, hi, end-start)
	}

	alpha, beta := stat.LinearRegression(ss.Strain[start:end], ss.Stress[start:end], nil, false)
	peak := floats.MaxIdx(ss.Stress)
	return Modulus{
		E:            beta / 10,
		Intercept:    alpha,
		Points:       end - start,
		PeakStress:   ss.Stress[peak],
		StrainAtPeak: ss.Strain[peak],
	}, nil
}
