// Package segment turns merged marker presence signals into labelled
// experiment epochs and normalizes them to fixed canonical durations.
package segment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Sentinel errors for segment handling.
var (
	// ErrUnknownCode is returned when a condition code has no label.
	ErrUnknownCode = errors.New("segment: unknown condition code")

	// ErrLengthMismatch is returned when starts, ends and labels differ in length.
	ErrLengthMismatch = errors.New("segment: starts, ends and labels must be of equal length")

	// ErrInvalidFPS is returned for a non-positive frame rate.
	ErrInvalidFPS = errors.New("segment: fps must be positive")
)

// Segment is a labelled frame range [Start, End) of the source video.
type Segment struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
}

// Len returns the number of frames in the segment.
func (s Segment) Len() int {
	return s.End - s.Start
}

// Valid reports whether Start < End.
func (s Segment) Valid() bool {
	return s.Start < s.End
}

func (s Segment) String() string {
	return fmt.Sprintf("%s[%d,%d)", s.Label, s.Start, s.End)
}

// FromBoundaries zips parallel start, end and label lists into segments.
func FromBoundaries(starts, ends []int, labels []string) ([]Segment, error) {
	if len(starts) != len(ends) || len(ends) != len(labels) {
		return nil, fmt.Errorf("%w: %d starts, %d ends, %d labels",
			ErrLengthMismatch, len(starts), len(ends), len(labels))
	}
	segs := make([]Segment, len(starts))
	for i := range starts {
		segs[i] = Segment{Start: starts[i], End: ends[i], Label: labels[i]}
	}
	return segs, nil
}

// Read decodes a segments file: a JSON array of {start, end, label}.
func Read(r io.Reader) ([]Segment, error) {
	var segs []Segment
	if err := json.NewDecoder(r).Decode(&segs); err != nil {
		return nil, fmt.Errorf("segment: decode: %w", err)
	}
	return segs, nil
}

// Write encodes segs as an indented JSON array.
func Write(w io.Writer, segs []Segment) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if segs == nil {
		segs = []Segment{}
	}
	return enc.Encode(segs)
}

// Load reads a segments file from disk.
func Load(path string) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("segment: open: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Save writes a segments file to disk.
func Save(path string, segs []Segment) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("segment: create: %w", err)
	}
	if err := Write(f, segs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
