// Package calibration holds the calibration reference: the canonical screen
// geometry and the reference-space centers of every fiducial tag.
package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
)

// ErrInvalidReference is wrapped by every structural validation failure.
var ErrInvalidReference = errors.New("calibration: invalid reference")

// FieldError names the offending field of a reference.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("calibration: %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidReference
}

// Tag is a calibration tag with its center in reference space.
type Tag struct {
	Family fiducial.Family
	ID     int
	Center fiducial.Point
}

// Key returns the (family, id) key of the tag.
func (t Tag) Key() fiducial.Key {
	return fiducial.Key{Family: t.Family, ID: t.ID}
}

// Reference is the immutable calibration input of the homography stage.
// Reference space is the screen padded by Boundary pixels on every side.
type Reference struct {
	Boundary     int
	ScreenWidth  int
	ScreenHeight int

	// Tags keeps file order: AprilTags first, then ArUco tags.
	Tags []Tag
}

// Validate checks the structural invariants of the reference.
func (r *Reference) Validate() error {
	if r.Boundary < 0 {
		return &FieldError{Field: "boundary", Reason: "must be >= 0"}
	}
	if r.ScreenWidth <= 0 {
		return &FieldError{Field: "screen_width", Reason: "must be > 0"}
	}
	if r.ScreenHeight <= 0 {
		return &FieldError{Field: "screen_height", Reason: "must be > 0"}
	}
	seen := make(map[fiducial.Key]bool, len(r.Tags))
	for _, t := range r.Tags {
		if seen[t.Key()] {
			return &FieldError{Field: "tags", Reason: "duplicate " + t.Key().String()}
		}
		seen[t.Key()] = true
	}
	return nil
}

// Lookup indexes the tags by key.
func (r *Reference) Lookup() map[fiducial.Key]Tag {
	m := make(map[fiducial.Key]Tag, len(r.Tags))
	for _, t := range r.Tags {
		m[t.Key()] = t
	}
	return m
}

// ToScreen converts a reference-space position to screen pixels.
func (r *Reference) ToScreen(p fiducial.Point) fiducial.Point {
	b := float64(r.Boundary)
	return fiducial.Point{X: p.X - b, Y: p.Y - b}
}

type center struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type tagEntry struct {
	ID     int    `json:"id"`
	Center center `json:"center"`
}

type referenceFile struct {
	Boundary     *int       `json:"boundary"`
	ScreenWidth  *int       `json:"screen_width"`
	ScreenHeight *int       `json:"screen_height"`
	AprilTags    []tagEntry `json:"apriltags"`
	Arucos       []tagEntry `json:"arucos"`
}

// MarshalJSON encodes the reference in the calibration file layout.
func (r Reference) MarshalJSON() ([]byte, error) {
	f := referenceFile{
		Boundary:     &r.Boundary,
		ScreenWidth:  &r.ScreenWidth,
		ScreenHeight: &r.ScreenHeight,
		AprilTags:    []tagEntry{},
		Arucos:       []tagEntry{},
	}
	for _, t := range r.Tags {
		e := tagEntry{ID: t.ID, Center: center{X: t.Center.X, Y: t.Center.Y}}
		switch t.Family {
		case fiducial.April:
			f.AprilTags = append(f.AprilTags, e)
		case fiducial.Square:
			f.Arucos = append(f.Arucos, e)
		default:
			return nil, fmt.Errorf("calibration: cannot encode family %v", t.Family)
		}
	}
	return json.Marshal(f)
}

// UnmarshalJSON decodes and validates a calibration file.
func (r *Reference) UnmarshalJSON(data []byte) error {
	var f referenceFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}

	switch {
	case f.Boundary == nil:
		return &FieldError{Field: "boundary", Reason: "missing"}
	case f.ScreenWidth == nil:
		return &FieldError{Field: "screen_width", Reason: "missing"}
	case f.ScreenHeight == nil:
		return &FieldError{Field: "screen_height", Reason: "missing"}
	case f.AprilTags == nil && f.Arucos == nil:
		return &FieldError{Field: "apriltags/arucos", Reason: "missing"}
	}

	ref := Reference{
		Boundary:     *f.Boundary,
		ScreenWidth:  *f.ScreenWidth,
		ScreenHeight: *f.ScreenHeight,
		Tags:         make([]Tag, 0, len(f.AprilTags)+len(f.Arucos)),
	}
	for _, e := range f.AprilTags {
		ref.Tags = append(ref.Tags, Tag{Family: fiducial.April, ID: e.ID, Center: fiducial.Point{X: e.Center.X, Y: e.Center.Y}})
	}
	for _, e := range f.Arucos {
		ref.Tags = append(ref.Tags, Tag{Family: fiducial.Square, ID: e.ID, Center: fiducial.Point{X: e.Center.X, Y: e.Center.Y}})
	}
	if err := ref.Validate(); err != nil {
		return err
	}

	*r = ref
	return nil
}

// Read decodes a calibration reference.
func Read(rd io.Reader) (*Reference, error) {
	var ref Reference
	if err := json.NewDecoder(rd).Decode(&ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// Load reads a calibration reference file from disk.
func Load(path string) (*Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("calibration: open: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Save writes the reference as indented JSON.
func Save(path string, ref *Reference) error {
	data, err := json.MarshalIndent(ref, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
