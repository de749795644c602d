package artifact

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// WriteDims writes the model dimensions (length, thickness, width), one per
// line, for the mesh building stage.
func WriteDims(w io.Writer, dims [3]float64) error {
	for _, d := range dims {
		if _, err := fmt.Fprintln(w, strconv.FormatFloat(d, 'e', 18, 64)); err != nil {
			return err
		}
	}
	return nil
}

// ReadDims parses three numbers separated by newlines, semicolons, commas or
// blanks. The order is length, thickness, width.
func ReadDims(r io.Reader) ([3]float64, error) {
	var dims [3]float64
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		fields := strings.FieldsFunc(sc.Text(), func(c rune) bool {
			return c == ';' || c == ',' || c == ' ' || c == '\t' || c == '\r'
		})
		for _, f := range fields {
			if n == 3 {
				return dims, fmt.Errorf("more than three model dimensions")
			}
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return dims, fmt.Errorf("invalid model dimension %q: %w", f, err)
			}
			dims[n] = v
			n++
		}
	}
	if err := sc.Err(); err != nil {
		return dims, err
	}
	if n != 3 {
		return dims, fmt.Errorf("expected three model dimensions, found %d", n)
	}
	return dims, nil
}

// SaveDims writes dims to path.
func SaveDims(path string, dims [3]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteDims(f, dims); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadDims reads the dimension file at path.
func LoadDims(path string) ([3]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return [3]float64{}, err
	}
	defer f.Close()
	return ReadDims(f)
}
