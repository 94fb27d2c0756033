// Package fiducial defines marker observations shared by the detection,
// presence and homography stages.
//
// Two marker families are supported: square ArUco tags and AprilTags. An
// observation is always keyed by (family, id) so the same numeric id seen in
// both families never collides.
package fiducial

import (
	"fmt"
	"strings"
)

// Family identifies a marker family.
type Family int

const (
	// Square is the ArUco square-tag family.
	Square Family = iota
	// April is the AprilTag family.
	April
)

// String returns the name used in calibration files.
func (f Family) String() string {
	switch f {
	case Square:
		return "aruco"
	case April:
		return "apriltag"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// ParseFamily accepts the names produced by String plus a few aliases.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aruco", "arucos", "square":
		return Square, nil
	case "apriltag", "apriltags", "april":
		return April, nil
	default:
		return 0, fmt.Errorf("fiducial: unknown family %q", s)
	}
}

// Point is a 2D position in pixels.
type Point struct {
	X, Y float64
}

// Key uniquely identifies a marker across families.
type Key struct {
	Family Family
	ID     int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Family, k.ID)
}

// Observation is a single marker sighting in one frame.
type Observation struct {
	Family  Family
	ID      int
	Center  Point
	Corners []Point // optional
}

// Key returns the (family, id) key of the observation.
func (o Observation) Key() Key {
	return Key{Family: o.Family, ID: o.ID}
}

// NewObservation builds an observation whose center is the mean of its corners.
func NewObservation(family Family, id int, corners []Point) Observation {
	return Observation{
		Family:  family,
		ID:      id,
		Center:  Centroid(corners),
		Corners: corners,
	}
}

// Centroid returns the arithmetic mean of pts, or the zero point if empty.
func Centroid(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var c Point
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(pts))
	return Point{X: c.X / n, Y: c.Y / n}
}

// Index merges observations into a mapping keyed by (family, id).
// When a key is seen more than once the first observation wins.
// An empty input yields an empty, non-nil map.
func Index(obs []Observation) map[Key]Observation {
	m := make(map[Key]Observation, len(obs))
	for _, o := range obs {
		k := o.Key()
		if _, seen := m[k]; !seen {
			m[k] = o
		}
	}
	return m
}

// Count returns how many observations in obs carry the given key.
func Count(obs []Observation, key Key) int {
	n := 0
	for _, o := range obs {
		if o.Key() == key {
			n++
		}
	}
	return n
}
