package segment

import (
	"math"
	"strings"
)

// CanonicalFPS is the frame rate all normalized segments are expressed in.
const CanonicalFPS = 25

// Category classifies a segment by its label.
type Category int

const (
	Other Category = iota
	Calibration
	Image
	Video
)

func (c Category) String() string {
	switch c {
	case Calibration:
		return "calibration"
	case Image:
		return "image"
	case Video:
		return "video"
	default:
		return "other"
	}
}

// Target durations in seconds per category.
const (
	CalibrationSeconds = 27
	ImageSeconds       = 10
	VideoSeconds       = 30
)

// Classify matches label case-insensitively against "cali", "image" and
// "video", in that order.
func Classify(label string) Category {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "cali"):
		return Calibration
	case strings.Contains(l, "image"):
		return Image
	case strings.Contains(l, "video"):
		return Video
	default:
		return Other
	}
}

// TargetFrames returns the fixed window length at the canonical rate, or 0
// for Other.
func (c Category) TargetFrames() int {
	switch c {
	case Calibration:
		return CalibrationSeconds * CanonicalFPS
	case Image:
		return ImageSeconds * CanonicalFPS
	case Video:
		return VideoSeconds * CanonicalFPS
	default:
		return 0
	}
}

// Normalize rescales each segment from fps to the canonical 25 fps and snaps
// it to its category's fixed duration, centered on the original midpoint.
// Segments of category Other keep their bounds unchanged.
func Normalize(segs []Segment, fps float64) ([]Segment, error) {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return nil, ErrInvalidFPS
	}

	out := make([]Segment, len(segs))
	for i, s := range segs {
		target := Classify(s.Label).TargetFrames()
		if target == 0 {
			out[i] = s
			continue
		}
		out[i] = snap(s, fps, target)
	}
	return out, nil
}

func snap(s Segment, fps float64, target int) Segment {
	start, end := float64(s.Start), float64(s.End)
	if fps != CanonicalFPS {
		start = math.Floor(start / fps * CanonicalFPS)
		end = math.Floor(end / fps * CanonicalFPS)
	}

	// The window is centered on the midpoint in seconds; working in frames
	// at the canonical rate keeps exact midpoints free of rounding drift.
	center := (start + end) / 2
	newStart := int(math.Floor(center - float64(target)/2))
	return Segment{Start: newStart, End: newStart + target, Label: s.Label}
}
