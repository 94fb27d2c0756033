package vision

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/teslashibe/go-gazewarp/pkg/calibration"
	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
	"github.com/teslashibe/go-gazewarp/pkg/homography"
	"gocv.io/x/gocv"
)

var (
	// ErrCorners is returned when fewer than four screen corners are given.
	ErrCorners = errors.New("vision: four screen corners are required")

	// ErrNoTags is returned when the rectified frame contains no tags.
	ErrNoTags = errors.New("vision: no calibration tags found")

	// ErrImage is returned when an image cannot be read or written.
	ErrImage = errors.New("vision: image i/o failed")
)

// FrameConfig describes the reference space a calibration frame is
// rectified into.
type FrameConfig struct {
	Boundary     int
	ScreenWidth  int
	ScreenHeight int

	// DisplayWidth is the width of the preview the points were clicked on.
	// Points are scaled by imageWidth/DisplayWidth. Zero means the points
	// are already in image pixels.
	DisplayWidth float64

	// BlurKernel is applied after histogram equalization.
	BlurKernel int
}

// DefaultFrameConfig returns the standard 1920x1080 screen with an 800
// pixel boundary.
func DefaultFrameConfig() FrameConfig {
	return FrameConfig{
		Boundary:     800,
		ScreenWidth:  1920,
		ScreenHeight: 1080,
		BlurKernel:   5,
	}
}

// Calibration is the output of BuildReference.
type Calibration struct {
	Reference *calibration.Reference

	// Warped is the rectified frame. The caller owns it.
	Warped gocv.Mat

	// Markers holds points 5..8, if given, projected into reference space.
	Markers []fiducial.Point
}

// Close releases the rectified frame.
func (c *Calibration) Close() error {
	return c.Warped.Close()
}

// BuildReference rectifies img so that points[0..3] (screen corners,
// clockwise from top-left) land on the screen rectangle inside the
// boundary, then detects AprilTag 36h11 and original ArUco markers in the
// result. Tag centers are truncated to whole pixels.
func BuildReference(img gocv.Mat, points []fiducial.Point, fc FrameConfig) (*Calibration, error) {
	if len(points) < 4 {
		return nil, ErrCorners
	}
	if img.Empty() {
		return nil, fmt.Errorf("%w: empty frame", ErrImage)
	}

	scale := 1.0
	if fc.DisplayWidth > 0 {
		scale = float64(img.Cols()) / fc.DisplayWidth
	}
	scaled := make([]fiducial.Point, len(points))
	for i, p := range points {
		scaled[i] = fiducial.Point{X: p.X * scale, Y: p.Y * scale}
	}

	b := float64(fc.Boundary)
	w := float64(fc.ScreenWidth)
	h := float64(fc.ScreenHeight)
	dst := []fiducial.Point{
		{X: b, Y: b},
		{X: b + w - 1, Y: b},
		{X: b + w - 1, Y: b + h - 1},
		{X: b, Y: b + h - 1},
	}

	srcVec := gocv.NewPoint2fVectorFromPoints(toPoint2f(scaled[:4]))
	defer srcVec.Close()
	dstVec := gocv.NewPoint2fVectorFromPoints(toPoint2f(dst))
	defer dstVec.Close()

	m := gocv.GetPerspectiveTransform2f(srcVec, dstVec)
	defer m.Close()
	if m.Empty() {
		return nil, ErrCorners
	}

	warped := gocv.NewMat()
	size := image.Pt(fc.ScreenWidth+2*fc.Boundary, fc.ScreenHeight+2*fc.Boundary)
	gocv.WarpPerspective(img, &warped, m, size)

	var markers []fiducial.Point
	if len(scaled) >= 8 {
		hm := matrixFromMat(m)
		for _, p := range scaled[4:8] {
			q, ok := hm.Apply(p)
			if !ok {
				warped.Close()
				return nil, fmt.Errorf("%w: marker point %v projects to infinity", ErrCorners, p)
			}
			markers = append(markers, q)
		}
	}

	cfg := DefaultConfig()
	cfg.Apply(WithEnhance(fc.BlurKernel))
	det, err := NewDetector(cfg)
	if err != nil {
		warped.Close()
		return nil, err
	}
	defer det.Close()

	ref := &calibration.Reference{
		Boundary:     fc.Boundary,
		ScreenWidth:  fc.ScreenWidth,
		ScreenHeight: fc.ScreenHeight,
	}
	seen := make(map[fiducial.Key]bool)
	for _, o := range det.Detect(warped) {
		if seen[o.Key()] {
			continue
		}
		seen[o.Key()] = true
		ref.Tags = append(ref.Tags, calibration.Tag{
			Family: o.Family,
			ID:     o.ID,
			Center: fiducial.Point{X: math.Trunc(o.Center.X), Y: math.Trunc(o.Center.Y)},
		})
	}
	if len(ref.Tags) == 0 {
		warped.Close()
		return nil, ErrNoTags
	}

	return &Calibration{Reference: ref, Warped: warped, Markers: markers}, nil
}

func matrixFromMat(m gocv.Mat) homography.Matrix {
	var h homography.Matrix
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[r*3+c] = m.GetDoubleAt(r, c)
		}
	}
	return h
}

// LoadImage reads a color image from disk.
func LoadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("%w: read %s", ErrImage, path)
	}
	return img, nil
}

// SaveImage writes img to path; the extension selects the encoder.
func SaveImage(path string, img gocv.Mat) error {
	if !gocv.IMWrite(path, img) {
		return fmt.Errorf("%w: write %s", ErrImage, path)
	}
	return nil
}
