// Package homography estimates the planar projective transform that maps
// observed fiducial centers in a video frame onto the calibration reference
// space, and reprojects points through it.
package homography

import (
	"math"

	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
	"gonum.org/v1/gonum/mat"
)

// epsilon guards the projective divide.
const epsilon = 1e-12

// Matrix is a 3x3 homography in row-major order.
type Matrix [9]float64

// Identity is the identity transform.
var Identity = Matrix{1, 0, 0, 0, 1, 0, 0, 0, 1}

// Apply maps p through the homography. It returns false when the projective
// scale term is zero or the result is not finite.
func (h Matrix) Apply(p fiducial.Point) (fiducial.Point, bool) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < epsilon {
		return fiducial.Point{}, false
	}
	x := (h[0]*p.X + h[1]*p.Y + h[2]) / w
	y := (h[3]*p.X + h[4]*p.Y + h[5]) / w
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return fiducial.Point{}, false
	}
	return fiducial.Point{X: x, Y: y}, true
}

// Dense returns the matrix as a gonum 3x3 dense matrix.
func (h Matrix) Dense() *mat.Dense {
	return mat.NewDense(3, 3, h[:])
}

// Solve computes the exact homography mapping src[i] to dst[i] for four
// point pairs. Both point sets are normalized before the 8x8 solve and the
// result is scaled so that h22 is 1. It returns false for degenerate input.
func Solve(src, dst [4]fiducial.Point) (Matrix, bool) {
	ts, ok := normalizer(src)
	if !ok {
		return Matrix{}, false
	}
	td, ok := normalizer(dst)
	if !ok {
		return Matrix{}, false
	}

	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		X, Y := ts.apply(src[i])
		x, y := td.apply(dst[i])
		r := 2 * i

		// x = (h00 X + h01 Y + h02) / (h20 X + h21 Y + 1)
		a.SetRow(r, []float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x})
		b.SetVec(r, x)

		// y = (h10 X + h11 Y + h12) / (h20 X + h21 Y + 1)
		a.SetRow(r+1, []float64{0, 0, 0, X, Y, 1, -X * y, -Y * y})
		b.SetVec(r+1, y)
	}

	var v mat.VecDense
	if err := v.SolveVec(a, b); err != nil {
		return Matrix{}, false
	}
	hn := mat.NewDense(3, 3, []float64{
		v.AtVec(0), v.AtVec(1), v.AtVec(2),
		v.AtVec(3), v.AtVec(4), v.AtVec(5),
		v.AtVec(6), v.AtVec(7), 1,
	})

	// H = Td^-1 * Hn * Ts
	var tmp, h mat.Dense
	tmp.Mul(hn, ts.matrix())
	h.Mul(td.inverse(), &tmp)

	scale := h.At(2, 2)
	if math.Abs(scale) < epsilon {
		return Matrix{}, false
	}
	var m Matrix
	for i := 0; i < 9; i++ {
		e := h.At(i/3, i%3) / scale
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return Matrix{}, false
		}
		m[i] = e
	}
	return m, true
}

// similarity is an isotropic scale about a centroid that moves a point set
// to the origin with mean distance sqrt(2).
type similarity struct {
	cx, cy, s float64
}

func normalizer(pts [4]fiducial.Point) (similarity, bool) {
	c := fiducial.Centroid(pts[:])
	mean := 0.0
	for _, p := range pts {
		mean += math.Hypot(p.X-c.X, p.Y-c.Y)
	}
	mean /= 4
	if mean < epsilon {
		return similarity{}, false
	}
	return similarity{cx: c.X, cy: c.Y, s: math.Sqrt2 / mean}, true
}

func (t similarity) apply(p fiducial.Point) (float64, float64) {
	return t.s * (p.X - t.cx), t.s * (p.Y - t.cy)
}

func (t similarity) matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		t.s, 0, -t.s * t.cx,
		0, t.s, -t.s * t.cy,
		0, 0, 1,
	})
}

func (t similarity) inverse() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1 / t.s, 0, t.cx,
		0, 1 / t.s, t.cy,
		0, 0, 1,
	})
}
