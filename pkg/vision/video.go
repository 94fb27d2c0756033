package vision

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"
)

var (
	// ErrOpenVideo is returned when a video cannot be opened.
	ErrOpenVideo = errors.New("vision: cannot open video")

	// ErrSeek is returned when a frame index cannot be reached.
	ErrSeek = errors.New("vision: seek failed")

	// ErrRead is returned when a frame cannot be decoded.
	ErrRead = errors.New("vision: frame read failed")
)

// Video is a decoded video file. Seek and read are serialized since they
// share one native capture handle.
type Video struct {
	path   string
	vc     *gocv.VideoCapture
	fps    float64
	frames int
	mu     sync.Mutex
}

// OpenVideo opens path and reads its container metadata.
func OpenVideo(path string, logger *slog.Logger) (*Video, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenVideo, path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrOpenVideo, path)
	}

	v := &Video{
		path:   path,
		vc:     vc,
		fps:    vc.Get(gocv.VideoCaptureFPS),
		frames: int(vc.Get(gocv.VideoCaptureFrameCount)),
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("video opened", "path", path, "fps", v.fps, "frames", v.frames)
	return v, nil
}

// Path returns the file the video was opened from.
func (v *Video) Path() string { return v.path }

// FPS returns the container frame rate.
func (v *Video) FPS() float64 { return v.fps }

// FrameCount returns the container frame count. Decodable frames may be
// fewer.
func (v *Video) FrameCount() int { return v.frames }

// Read decodes the next frame into dst.
func (v *Video) Read(dst *gocv.Mat) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vc.Read(dst) && !dst.Empty()
}

// ReadAt seeks to frame idx and decodes it into dst.
func (v *Video) ReadAt(idx int, dst *gocv.Mat) error {
	if idx < 0 || (v.frames > 0 && idx >= v.frames) {
		return fmt.Errorf("%w: frame %d of %d", ErrSeek, idx, v.frames)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.vc.Set(gocv.VideoCapturePosFrames, float64(idx))
	if !v.vc.Read(dst) || dst.Empty() {
		return fmt.Errorf("%w: frame %d", ErrRead, idx)
	}
	return nil
}

// Close releases the capture handle.
func (v *Video) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vc.Close()
}
