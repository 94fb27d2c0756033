package segment

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		label string
		want  Category
	}{
		{"cali", Calibration},
		{"CALIBRATION", Calibration},
		{"On-Center-Image", Image},
		{"Off-Free-Video", Video},
		{"baseline", Other},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := Classify(tt.label); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.label, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Segment
		fps  float64
		want Segment
	}{
		{
			name: "image at 25fps centered",
			in:   Segment{1000, 1300, "On-Center-Image"},
			fps:  25,
			want: Segment{1025, 1275, "On-Center-Image"},
		},
		{
			name: "calibration at 25fps",
			in:   Segment{100, 800, "cali"},
			fps:  25,
			want: Segment{112, 787, "cali"},
		},
		{
			name: "video rescaled from 50fps",
			in:   Segment{2000, 3600, "Off-Below-Video"},
			fps:  50,
			want: Segment{1025, 1775, "Off-Below-Video"},
		},
		{
			name: "odd midpoint floors",
			in:   Segment{0, 251, "On-Center-Image"},
			fps:  25,
			want: Segment{0, 250, "On-Center-Image"},
		},
		{
			name: "window may start before frame zero",
			in:   Segment{0, 10, "cali"},
			fps:  25,
			want: Segment{-333, 342, "cali"},
		},
		{
			name: "other passes through",
			in:   Segment{3, 9, "rest"},
			fps:  30,
			want: Segment{3, 9, "rest"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize([]Segment{tt.in}, tt.fps)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if diff := cmp.Diff(tt.want, got[0]); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize_VideoDurationInvariant(t *testing.T) {
	for _, fps := range []float64{23.976, 25, 29.97, 30, 50, 59.94, 60} {
		for start := 0; start < 5000; start += 397 {
			in := Segment{start, start + 1 + start%900, "On-Center-Video"}
			got, err := Normalize([]Segment{in}, fps)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if got[0].Len() != 750 {
				t.Fatalf("fps %v start %d: len = %d, want 750", fps, start, got[0].Len())
			}
		}
	}
}

func TestNormalize_InvalidFPS(t *testing.T) {
	for _, fps := range []float64{0, -25} {
		if _, err := Normalize(nil, fps); !errors.Is(err, ErrInvalidFPS) {
			t.Errorf("fps %v: err = %v, want ErrInvalidFPS", fps, err)
		}
	}
}
