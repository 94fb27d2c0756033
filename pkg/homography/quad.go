package homography

import (
	"math"
	"sort"

	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
)

// PolygonArea returns the absolute shoelace area of pts taken in order.
func PolygonArea(pts []fiducial.Point) float64 {
	n := len(pts)
	if n < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(sum) / 2
}

// QuadArea returns the area of the simple quadrilateral through the four
// points, ordering them by angle around their centroid before applying the
// shoelace formula so that enumeration order never produces a bow-tie.
func QuadArea(pts [4]fiducial.Point) float64 {
	c := fiducial.Centroid(pts[:])
	ordered := pts
	sort.SliceStable(ordered[:], func(i, j int) bool {
		return math.Atan2(ordered[i].Y-c.Y, ordered[i].X-c.X) < math.Atan2(ordered[j].Y-c.Y, ordered[j].X-c.X)
	})
	return PolygonArea(ordered[:])
}

// TriangleArea returns the absolute area of triangle abc.
func TriangleArea(a, b, c fiducial.Point) float64 {
	return math.Abs(a.X*(b.Y-c.Y)+b.X*(c.Y-a.Y)+c.X*(a.Y-b.Y)) / 2
}

// NearlyCollinear reports whether any three of the four points span a
// triangle with area below tol.
func NearlyCollinear(pts [4]fiducial.Point, tol float64) bool {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			for k := j + 1; k < 4; k++ {
				if TriangleArea(pts[i], pts[j], pts[k]) < tol {
					return true
				}
			}
		}
	}
	return false
}

// SelectQuad enumerates every 4-subset of cs in lexicographic index order
// and returns the one whose reference-space quadrilateral has the largest
// area, skipping subsets with three nearly collinear points. Ties keep the
// first subset found. It returns false when fewer than four correspondences
// are given or no subset survives.
func SelectQuad(cs []Correspondence, tol float64) ([4]Correspondence, bool) {
	var best [4]Correspondence
	bestArea := 0.0
	found := false

	n := len(cs)
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			for c := b + 1; c < n; c++ {
				for d := c + 1; d < n; d++ {
					quad := [4]Correspondence{cs[a], cs[b], cs[c], cs[d]}
					pts := referencePoints(quad)
					area := QuadArea(pts)
					if area <= bestArea {
						continue
					}
					if NearlyCollinear(pts, tol) {
						continue
					}
					best = quad
					bestArea = area
					found = true
				}
			}
		}
	}
	return best, found
}

func referencePoints(q [4]Correspondence) [4]fiducial.Point {
	return [4]fiducial.Point{q[0].Reference(), q[1].Reference(), q[2].Reference(), q[3].Reference()}
}

func imagePoints(q [4]Correspondence) [4]fiducial.Point {
	return [4]fiducial.Point{q[0].Image(), q[1].Image(), q[2].Image(), q[3].Image()}
}
