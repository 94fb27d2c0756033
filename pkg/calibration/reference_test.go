package calibration

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
)

const sample = `{
    "boundary": 800,
    "screen_width": 1920,
    "screen_height": 1080,
    "apriltags": [
        {"id": 3, "center": {"x": 850, "y": 860}},
        {"id": 4, "center": {"x": 2650, "y": 860}}
    ],
    "arucos": [
        {"id": 3, "center": {"x": 850, "y": 1820}}
    ]
}`

func TestRead(t *testing.T) {
	ref, err := Read(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ref.Boundary != 800 || ref.ScreenWidth != 1920 || ref.ScreenHeight != 1080 {
		t.Errorf("geometry = %d/%d/%d", ref.Boundary, ref.ScreenWidth, ref.ScreenHeight)
	}
	if len(ref.Tags) != 3 {
		t.Fatalf("len(Tags) = %d, want 3", len(ref.Tags))
	}
	if ref.Tags[0].Family != fiducial.April || ref.Tags[2].Family != fiducial.Square {
		t.Errorf("tag order should be apriltags then arucos: %+v", ref.Tags)
	}

	lookup := ref.Lookup()
	if got := lookup[fiducial.Key{Family: fiducial.Square, ID: 3}].Center; got != (fiducial.Point{X: 850, Y: 1820}) {
		t.Errorf("aruco 3 center = %+v", got)
	}
	if got := lookup[fiducial.Key{Family: fiducial.April, ID: 3}].Center; got != (fiducial.Point{X: 850, Y: 860}) {
		t.Errorf("apriltag 3 center = %+v", got)
	}
}

func TestRead_MissingFields(t *testing.T) {
	tests := []struct {
		name  string
		json  string
		field string
	}{
		{"no boundary", `{"screen_width":1,"screen_height":1,"arucos":[]}`, "boundary"},
		{"no width", `{"boundary":0,"screen_height":1,"arucos":[]}`, "screen_width"},
		{"no height", `{"boundary":0,"screen_width":1,"arucos":[]}`, "screen_height"},
		{"no tags", `{"boundary":0,"screen_width":1,"screen_height":1}`, "apriltags/arucos"},
		{"bad width", `{"boundary":0,"screen_width":0,"screen_height":1,"arucos":[]}`, "screen_width"},
		{"duplicate tag", `{"boundary":0,"screen_width":1,"screen_height":1,"arucos":[{"id":1,"center":{"x":0,"y":0}},{"id":1,"center":{"x":1,"y":1}}]}`, "tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.json))
			if !errors.Is(err, ErrInvalidReference) {
				t.Fatalf("err = %v, want ErrInvalidReference", err)
			}
			var fe *FieldError
			if !errors.As(err, &fe) || fe.Field != tt.field {
				t.Errorf("field error = %v, want field %q", err, tt.field)
			}
		})
	}
}

func TestRead_Malformed(t *testing.T) {
	if _, err := Read(strings.NewReader(`{"boundary": "wide"}`)); !errors.Is(err, ErrInvalidReference) {
		t.Errorf("err = %v, want ErrInvalidReference", err)
	}
}

func TestSaveLoad(t *testing.T) {
	ref, err := Read(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	path := filepath.Join(t.TempDir(), "tags.json")
	if err := Save(path, ref); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Tags) != len(ref.Tags) {
		t.Fatalf("len(Tags) = %d, want %d", len(got.Tags), len(ref.Tags))
	}
	for i := range ref.Tags {
		if got.Tags[i] != ref.Tags[i] {
			t.Errorf("tag %d = %+v, want %+v", i, got.Tags[i], ref.Tags[i])
		}
	}
}

func TestToScreen(t *testing.T) {
	ref := &Reference{Boundary: 800, ScreenWidth: 1920, ScreenHeight: 1080}
	if got := ref.ToScreen(fiducial.Point{X: 800, Y: 1000}); got != (fiducial.Point{X: 0, Y: 200}) {
		t.Errorf("ToScreen = %+v", got)
	}
}
