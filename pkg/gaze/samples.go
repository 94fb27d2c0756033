// Package gaze loads per-frame raw gaze samples and reprojects them into
// calibration reference space, one track per segment.
package gaze

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sbinet/npyio"
	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
	"gonum.org/v1/gonum/mat"
)

// ErrShape is returned when a gaze array is not N x 2 (or wider).
var ErrShape = errors.New("gaze: array must have shape (N, >=2)")

// Samples holds one raw gaze pixel per frame index. NaN marks a frame
// with no fixation.
type Samples []fiducial.Point

// At returns the sample for frame idx. It reports false when idx is out
// of range or the sample is missing.
func (s Samples) At(idx int) (fiducial.Point, bool) {
	if idx < 0 || idx >= len(s) {
		return fiducial.Point{}, false
	}
	p := s[idx]
	if math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return fiducial.Point{}, false
	}
	return p, true
}

// Missing counts frames without a usable sample.
func (s Samples) Missing() int {
	n := 0
	for i := range s {
		if _, ok := s.At(i); !ok {
			n++
		}
	}
	return n
}

// FromDense takes the first two columns of m as x and y.
func FromDense(m mat.Matrix) (Samples, error) {
	rows, cols := m.Dims()
	if cols < 2 {
		return nil, fmt.Errorf("%w: got (%d, %d)", ErrShape, rows, cols)
	}
	s := make(Samples, rows)
	for i := 0; i < rows; i++ {
		s[i] = fiducial.Point{X: m.At(i, 0), Y: m.At(i, 1)}
	}
	return s, nil
}

// ReadNPY decodes a little-endian float32 or float64 .npy array of shape
// (N, k) with k >= 2.
func ReadNPY(r io.Reader) (Samples, error) {
	rd, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("gaze: read npy header: %w", err)
	}
	shape := rd.Header.Descr.Shape
	if len(shape) != 2 || shape[1] < 2 {
		return nil, fmt.Errorf("%w: got %v", ErrShape, shape)
	}
	if rd.Header.Descr.Fortran {
		return nil, fmt.Errorf("%w: fortran order not supported", ErrShape)
	}
	rows, cols := shape[0], shape[1]

	var data []float64
	switch rd.Header.Descr.Type {
	case "<f8":
		if err := rd.Read(&data); err != nil {
			return nil, fmt.Errorf("gaze: read npy data: %w", err)
		}
	case "<f4":
		var f32 []float32
		if err := rd.Read(&f32); err != nil {
			return nil, fmt.Errorf("gaze: read npy data: %w", err)
		}
		data = make([]float64, len(f32))
		for i, v := range f32 {
			data[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("gaze: unsupported dtype %q", rd.Header.Descr.Type)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShape, len(data), shape)
	}
	return FromDense(mat.NewDense(rows, cols, data))
}

// LoadNPY reads a gaze array from path.
func LoadNPY(path string) (Samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadNPY(f)
}

// Dense returns the samples as an N x 2 matrix.
func (s Samples) Dense() *mat.Dense {
	if len(s) == 0 {
		return nil
	}
	m := mat.NewDense(len(s), 2, nil)
	for i, p := range s {
		m.Set(i, 0, p.X)
		m.Set(i, 1, p.Y)
	}
	return m
}

// WriteNPY encodes the samples as an N x 2 float64 array.
func (s Samples) WriteNPY(w io.Writer) error {
	if len(s) == 0 {
		return npyio.Write(w, []float64{})
	}
	return npyio.Write(w, s.Dense())
}
