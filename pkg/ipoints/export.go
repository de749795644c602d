package ipoints

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Sampled holds the angles (degrees) sampled at one integration point. NaN
// marks a point outside the orientation field.
type Sampled struct {
	Element int
	IP      int
	Theta   float64
	Phi     float64
}

// Finalize returns a copy of rows with NaN angles replaced by def. It is
// applied only when writing, so callers keep the out-of-bounds markers.
func Finalize(rows []Sampled, def float64) []Sampled {
	out := make([]Sampled, len(rows))
	for i, r := range rows {
		if math.IsNaN(r.Theta) {
			r.Theta = def
		}
		if math.IsNaN(r.Phi) {
			r.Phi = def
		}
		out[i] = r
	}
	return out
}

func angleUnit(deg float64, radians bool) float64 {
	if radians {
		return deg * math.Pi / 180
	}
	return deg
}

// WriteCSV writes "element,ip,theta,phi" rows. NaN angles are written as 0.
func WriteCSV(w io.Writer, rows []Sampled, radians bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"element", "ip", "theta", "phi"}); err != nil {
		return err
	}
	for _, r := range Finalize(rows, 0) {
		rec := []string{
			strconv.Itoa(r.Element),
			strconv.Itoa(r.IP),
			strconv.FormatFloat(angleUnit(r.Theta, radians), 'g', -1, 64),
			strconv.FormatFloat(angleUnit(r.Phi, radians), 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Angle selects which angle of a Sampled row is exported.
type Angle int

const (
	Theta Angle = iota
	Phi
)

func (a Angle) String() string {
	if a == Phi {
		return "PHI"
	}
	return "THETA"
}

func (a Angle) of(r Sampled) float64 {
	if a == Phi {
		return r.Phi
	}
	return r.Theta
}

// WriteFortranData writes one angle, in radians, as a fixed-form Fortran
// include with a real*8 NAME0(ip, element) array filled by one DATA
// statement per element. Elements appear in ascending order, points in
// input order, three values per line. NaN angles are written as 0.
func WriteFortranData(w io.Writer, rows []Sampled, a Angle) error {
	rows = Finalize(rows, 0)
	name := a.String() + "0"

	groups := make(map[int][]Sampled)
	var elems []int
	maxIP, maxElem := 0, 0
	for _, r := range rows {
		if _, ok := groups[r.Element]; !ok {
			elems = append(elems, r.Element)
		}
		groups[r.Element] = append(groups[r.Element], r)
		if r.IP > maxIP {
			maxIP = r.IP
		}
		if r.Element > maxElem {
			maxElem = r.Element
		}
	}
	sort.Ints(elems)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "      real*8 %s(%d,%d)\n", name, maxIP, maxElem)
	for _, e := range elems {
		g := groups[e]
		lo, hi := g[0].IP, g[0].IP
		vals := make([]string, len(g))
		for i, r := range g {
			if r.IP < lo {
				lo = r.IP
			}
			if r.IP > hi {
				hi = r.IP
			}
			vals[i] = strconv.FormatFloat(angleUnit(a.of(r), true), 'f', 6, 64)
			if i > 0 && i%3 == 0 {
				// continuation line
				vals[i] = "\n     &  " + vals[i]
			}
		}
		fmt.Fprintf(bw, "      DATA (%s(I,%d), I=%d,%d)/ %s/\n", name, e, lo, hi, strings.Join(vals, ", "))
	}
	return bw.Flush()
}

// ReadCSV parses rows written by WriteCSV. Angles are returned in the unit
// they were written in.
func ReadCSV(r io.Reader) ([]Sampled, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	var rows []Sampled
	for i, rec := range records {
		if i == 0 && rec[0] == "element" {
			continue
		}
		var s Sampled
		var errs [4]error
		s.Element, errs[0] = strconv.Atoi(rec[0])
		s.IP, errs[1] = strconv.Atoi(rec[1])
		s.Theta, errs[2] = strconv.ParseFloat(rec[2], 64)
		s.Phi, errs[3] = strconv.ParseFloat(rec[3], 64)
		for _, e := range errs {
			if e != nil {
				return nil, fmt.Errorf("record %d: %w", i+1, e)
			}
		}
		rows = append(rows, s)
	}
	return rows, nil
}
