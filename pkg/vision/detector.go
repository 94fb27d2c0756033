package vision

import (
	"image"
	"sync"

	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
	"gocv.io/x/gocv"
)

type backend struct {
	family fiducial.Family
	det    gocv.ArucoDetector
}

// Detector finds markers of every configured dictionary in a frame and
// merges them into one observation list.
type Detector struct {
	cfg      *Config
	backends []backend
	gray     gocv.Mat
	mu       sync.Mutex // protects gocv handles
}

// NewDetector creates a detector. Call Close to release the native handles.
func NewDetector(cfg *Config) (*Detector, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Detector{cfg: cfg, gray: gocv.NewMat()}
	for _, dict := range cfg.Dictionaries {
		params := gocv.NewArucoDetectorParameters()
		d.backends = append(d.backends, backend{
			family: dict.Family(),
			det:    gocv.NewArucoDetectorWithParams(gocv.GetPredefinedDictionary(dict.code()), params),
		})
	}
	return d, nil
}

// Detect returns the markers found in img, which may be BGR or grayscale.
// Backends run in configuration order and their results are concatenated.
func (d *Detector) Detect(img gocv.Mat) []fiducial.Observation {
	d.mu.Lock()
	defer d.mu.Unlock()

	if img.Empty() {
		return nil
	}

	if img.Channels() == 1 {
		img.CopyTo(&d.gray)
	} else {
		gocv.CvtColor(img, &d.gray, gocv.ColorBGRToGray)
	}
	if d.cfg.Equalize {
		gocv.EqualizeHist(d.gray, &d.gray)
	}
	if d.cfg.BlurKernel > 0 {
		k := d.cfg.BlurKernel
		gocv.GaussianBlur(d.gray, &d.gray, image.Pt(k, k), 0, 0, gocv.BorderDefault)
	}

	var obs []fiducial.Observation
	for i := range d.backends {
		b := &d.backends[i]
		corners, ids, _ := b.det.DetectMarkers(d.gray)
		for j, id := range ids {
			obs = append(obs, fiducial.NewObservation(b.family, id, toPoints(corners[j])))
		}
	}
	return obs
}

// Close releases the detector resources.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.backends {
		d.backends[i].det.Close()
	}
	d.backends = nil
	return d.gray.Close()
}

func toPoints(pts []gocv.Point2f) []fiducial.Point {
	out := make([]fiducial.Point, len(pts))
	for i, p := range pts {
		out[i] = fiducial.Point{X: float64(p.X), Y: float64(p.Y)}
	}
	return out
}

func toPoint2f(pts []fiducial.Point) []gocv.Point2f {
	out := make([]gocv.Point2f, len(pts))
	for i, p := range pts {
		out[i] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
	}
	return out
}
