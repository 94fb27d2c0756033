package vision

import (
	"fmt"
	"sync"

	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
	"gocv.io/x/gocv"
)

// Scanner decodes a video front to back and detects markers in every
// frame. It implements presence.Scanner.
type Scanner struct {
	video *Video
	det   *Detector
	frame gocv.Mat
	cur   []fiducial.Observation
	read  int
	err   error
}

// NewScanner opens path for a sequential scan. A nil cfg scans the
// segmentation dictionary only.
func NewScanner(path string, cfg *Config) (*Scanner, error) {
	if cfg == nil {
		cfg = PresenceConfig()
	}
	det, err := NewDetector(cfg)
	if err != nil {
		return nil, err
	}
	video, err := OpenVideo(path, cfg.Logger)
	if err != nil {
		det.Close()
		return nil, err
	}
	return &Scanner{video: video, det: det, frame: gocv.NewMat()}, nil
}

// FPS returns the container frame rate.
func (s *Scanner) FPS() float64 { return s.video.FPS() }

// FrameCount returns the container frame count.
func (s *Scanner) FrameCount() int { return s.video.FrameCount() }

// Next decodes the next frame. It returns false at end of stream or on a
// decode failure before the declared frame count, which Err reports.
func (s *Scanner) Next() bool {
	if !s.video.Read(&s.frame) {
		if n := s.video.FrameCount(); n > 0 && s.read < n {
			s.err = fmt.Errorf("%w: stopped at frame %d of %d", ErrRead, s.read, n)
		}
		s.cur = nil
		return false
	}
	s.cur = s.det.Detect(s.frame)
	s.read++
	return true
}

// Observations returns the markers found in the current frame.
func (s *Scanner) Observations() []fiducial.Observation { return s.cur }

// Err returns the decode failure that ended the scan early, if any.
func (s *Scanner) Err() error { return s.err }

// Close releases the video and detector.
func (s *Scanner) Close() error {
	s.frame.Close()
	s.det.Close()
	return s.video.Close()
}

// SeekObserver seeks to arbitrary frames and detects markers there.
// It is safe for concurrent use but serializes internally; give each
// worker its own observer for parallelism.
type SeekObserver struct {
	video *Video
	det   *Detector
	frame gocv.Mat
	mu    sync.Mutex
}

// NewSeekObserver opens path for random access. A nil cfg detects the
// calibration dictionaries.
func NewSeekObserver(path string, cfg *Config) (*SeekObserver, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	det, err := NewDetector(cfg)
	if err != nil {
		return nil, err
	}
	video, err := OpenVideo(path, cfg.Logger)
	if err != nil {
		det.Close()
		return nil, err
	}
	return &SeekObserver{video: video, det: det, frame: gocv.NewMat()}, nil
}

// FrameCount returns the container frame count.
func (o *SeekObserver) FrameCount() int { return o.video.FrameCount() }

// Observe seeks to frame idx and returns the markers found there.
func (o *SeekObserver) Observe(idx int) ([]fiducial.Observation, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.video.ReadAt(idx, &o.frame); err != nil {
		return nil, err
	}
	return o.det.Detect(o.frame), nil
}

// Close releases the video and detector.
func (o *SeekObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frame.Close()
	o.det.Close()
	return o.video.Close()
}
