// Package ipoints reads integration point tables printed by the FE solver
// and writes the sampled orientation angles back in solver-friendly formats.
package ipoints

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Point is one integration point. Element and IP form an opaque identifier;
// X, Y, Z are physical coordinates.
type Point struct {
	Element int
	IP      int
	X, Y, Z float64
}

// Coords returns the coordinates of p as an array.
func (p Point) Coords() [3]float64 {
	return [3]float64{p.X, p.Y, p.Z}
}

// ReadTable parses whitespace separated rows of "element ip x y z". Blank
// lines, comment lines starting with '#' or '*' and lines whose first field
// is not an integer (solver banners, headers) are skipped. A row that starts
// with an integer but is otherwise malformed is an error.
func ReadTable(r io.Reader) ([]Point, error) {
	var points []Point
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == '*' {
			continue
		}
		fields := strings.Fields(line)
		elem, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		if len(fields) < 5 {
			return nil, fmt.Errorf("line %d: expected 5 columns, got %d", lineNo, len(fields))
		}
		ip, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid integration point id %q", lineNo, fields[1])
		}
		var c [3]float64
		for i := range c {
			c[i], err = strconv.ParseFloat(fields[2+i], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid coordinate %q", lineNo, fields[2+i])
			}
		}
		points = append(points, Point{Element: elem, IP: ip, X: c[0], Y: c[1], Z: c[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading point table: %w", err)
	}
	return points, nil
}

// LoadTable reads the point table at path.
func LoadTable(path string) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTable(f)
}

// Coordinates returns the coordinates of points in order.
func Coordinates(points []Point) [][3]float64 {
	out := make([][3]float64, len(points))
	for i, p := range points {
		out[i] = p.Coords()
	}
	return out
}
