package gaze

import (
	"encoding/json"
	"io"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// Point is a warped gaze position in screen pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Sentinel marks a frame whose warped position is undefined.
var Sentinel = Point{X: -1, Y: -1}

// Track is the warped gaze of one segment, one point per frame.
type Track []Point

// Sentinels counts undefined frames.
func (t Track) Sentinels() int {
	n := 0
	for _, p := range t {
		if p == Sentinel {
			n++
		}
	}
	return n
}

// Dense returns the track as an N x 2 matrix of whole-pixel values.
func (t Track) Dense() *mat.Dense {
	if len(t) == 0 {
		return nil
	}
	m := mat.NewDense(len(t), 2, nil)
	for i, p := range t {
		m.Set(i, 0, float64(p.X))
		m.Set(i, 1, float64(p.Y))
	}
	return m
}

// WriteNPY encodes the track as an N x 2 float64 array.
func (t Track) WriteNPY(w io.Writer) error {
	if len(t) == 0 {
		return npyio.Write(w, []float64{})
	}
	return npyio.Write(w, t.Dense())
}

// SaveNPY writes the track to path.
func (t Track) SaveNPY(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.WriteNPY(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteJSON encodes the track as a list of [x, y] pairs.
func (t Track) WriteJSON(w io.Writer) error {
	pairs := make([][2]int, len(t))
	for i, p := range t {
		pairs[i] = [2]int{p.X, p.Y}
	}
	return json.NewEncoder(w).Encode(pairs)
}
