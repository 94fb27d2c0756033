// Package presence builds per-frame marker presence timelines from a video
// and turns them into gap-tolerant presence intervals.
package presence

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
)

// ErrNoFrames is returned when the source yields no decodable frames.
var ErrNoFrames = errors.New("presence: video has no frames")

// Scanner reads a video sequentially from frame 0, detecting markers in
// every frame. Next returns false at the end of the stream or on a decode
// failure; Err distinguishes the two.
type Scanner interface {
	FPS() float64
	FrameCount() int
	Next() bool
	Observations() []fiducial.Observation
	Err() error
}

// Timeline holds the raw presence signals of the start and end markers.
type Timeline struct {
	Start Signal
	End   Signal
	FPS   float64

	// Expected is the frame count declared by the container.
	Expected int

	// Truncated is set when fewer frames were decoded than declared or the
	// scan stopped on a read error. The partial signals are kept.
	Truncated bool
	ReadErr   error
}

// Frames returns the number of frames actually scanned.
func (t *Timeline) Frames() int {
	return len(t.Start)
}

// Merged returns the gap-bridged start and end signals.
func (t *Timeline) Merged(maxGap int) (Signal, Signal) {
	return Merge(t.Start, maxGap), Merge(t.End, maxGap)
}

// Build scans every frame of src and records whether each marker is
// confidently present.
func Build(src Scanner, opts ...Option) (*Timeline, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	expected := src.FrameCount()
	tl := &Timeline{
		FPS:      src.FPS(),
		Expected: expected,
	}
	if expected > 0 {
		tl.Start = make(Signal, 0, expected)
		tl.End = make(Signal, 0, expected)
	}

	for src.Next() {
		obs := src.Observations()
		tl.Start = append(tl.Start, bit(fiducial.Count(obs, cfg.StartMarker) > cfg.Threshold))
		tl.End = append(tl.End, bit(fiducial.Count(obs, cfg.EndMarker) > cfg.Threshold))
	}

	if err := src.Err(); err != nil {
		tl.ReadErr = err
		tl.Truncated = true
	}
	if tl.Frames() == 0 {
		if tl.ReadErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoFrames, tl.ReadErr)
		}
		return nil, ErrNoFrames
	}
	if expected > 0 && tl.Frames() < expected {
		tl.Truncated = true
	}

	if tl.Truncated {
		cfg.Logger.Warn("presence timeline shorter than expected",
			"frames", tl.Frames(), "expected", expected, "err", tl.ReadErr)
	} else {
		cfg.Logger.Info("presence timeline built",
			"frames", tl.Frames(), "fps", tl.FPS,
			"start_on", tl.Start.Ones(), "end_on", tl.End.Ones())
	}

	return tl, nil
}

func bit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
