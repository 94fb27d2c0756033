package segment

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLabels(t *testing.T) {
	got, err := Labels("AB", "A", "AB")
	if err != nil {
		t.Fatalf("Labels: %v", err)
	}
	want := []string{"cali", "On-Center-Image", "On-Center-Video", "Off-Center-Image", "Off-Center-Video"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Labels mismatch (-want +got):\n%s", diff)
	}
}

func TestLabels_Count(t *testing.T) {
	got, err := Labels("ABC", "ABC", "AB")
	if err != nil {
		t.Fatalf("Labels: %v", err)
	}
	if len(got) != 1+3*3*2 {
		t.Errorf("len = %d, want %d", len(got), 1+3*3*2)
	}
	if got[len(got)-1] != "Dim-Free-Video" {
		t.Errorf("last label = %q", got[len(got)-1])
	}
}

func TestLabels_UnknownCode(t *testing.T) {
	_, err := Labels("A", "Z", "A")
	if !errors.Is(err, ErrUnknownCode) {
		t.Errorf("err = %v, want ErrUnknownCode", err)
	}
}

func TestLabels_EmptyCodes(t *testing.T) {
	got, err := Labels("", "A", "A")
	if err != nil {
		t.Fatalf("Labels: %v", err)
	}
	if diff := cmp.Diff([]string{"cali"}, got); diff != "" {
		t.Errorf("mismatch:\n%s", diff)
	}
}

func TestFromBoundaries(t *testing.T) {
	segs, err := FromBoundaries([]int{1, 10}, []int{5, 20}, []string{"cali", "On-Center-Image"})
	if err != nil {
		t.Fatalf("FromBoundaries: %v", err)
	}
	want := []Segment{{1, 5, "cali"}, {10, 20, "On-Center-Image"}}
	if diff := cmp.Diff(want, segs); diff != "" {
		t.Errorf("mismatch:\n%s", diff)
	}

	if _, err := FromBoundaries([]int{1}, []int{5}, nil); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("err = %v, want ErrLengthMismatch", err)
	}
}

func TestReadWrite(t *testing.T) {
	segs := []Segment{{0, 675, "cali"}, {1000, 1250, "On-Center-Image"}}

	var buf bytes.Buffer
	if err := Write(&buf, segs); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(segs, got); diff != "" {
		t.Errorf("mismatch:\n%s", diff)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segments_25fps.json")
	segs := []Segment{{5, 10, "x"}}
	if err := Save(path, segs); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(segs, got); diff != "" {
		t.Errorf("mismatch:\n%s", diff)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRead_Malformed(t *testing.T) {
	if _, err := Read(bytes.NewBufferString(`{"start":1}`)); err == nil {
		t.Error("expected decode error for non-array input")
	}
}
