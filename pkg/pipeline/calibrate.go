package pipeline

import (
	"fmt"

	"github.com/teslashibe/go-gazewarp/pkg/calibration"
	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
	"github.com/teslashibe/go-gazewarp/pkg/vision"
)

// CalibrationFiles names the input image and outputs of CalibrateFile.
type CalibrationFiles struct {
	Image     string
	Reference string
	// Preview is where the rectified frame is written. Empty skips it.
	Preview string
}

// CalibrateFile builds a calibration reference from a still image and the
// clicked screen corners, saving it as JSON. It returns the reference and
// any optional marker points projected into reference space.
func CalibrateFile(f CalibrationFiles, points []fiducial.Point, fc vision.FrameConfig) (*calibration.Reference, []fiducial.Point, error) {
	img, err := vision.LoadImage(f.Image)
	if err != nil {
		return nil, nil, err
	}
	defer img.Close()

	cal, err := vision.BuildReference(img, points, fc)
	if err != nil {
		return nil, nil, err
	}
	defer cal.Close()

	if err := calibration.Save(f.Reference, cal.Reference); err != nil {
		return nil, nil, fmt.Errorf("pipeline: save reference: %w", err)
	}
	if f.Preview != "" {
		if err := vision.SaveImage(f.Preview, cal.Warped); err != nil {
			return nil, nil, err
		}
	}
	return cal.Reference, cal.Markers, nil
}

// ProbeVideo returns a video's frame rate and declared frame count.
func ProbeVideo(path string) (float64, int, error) {
	v, err := vision.OpenVideo(path, nil)
	if err != nil {
		return 0, 0, err
	}
	defer v.Close()
	return v.FPS(), v.FrameCount(), nil
}
