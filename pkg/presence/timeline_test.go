package presence

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
)

var quiet = WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

func sightings(id, n int) []fiducial.Observation {
	obs := make([]fiducial.Observation, n)
	for i := range obs {
		obs[i] = fiducial.Observation{Family: fiducial.Square, ID: id}
	}
	return obs
}

func TestBuild_Threshold(t *testing.T) {
	m := fiducial.NewMock(4)
	m.Set(0, sightings(0, 3)...)
	m.Set(1, sightings(0, 2)...) // exactly two is not enough
	m.Set(2, append(sightings(0, 3), sightings(1, 4)...)...)
	m.Set(3, fiducial.Observation{Family: fiducial.April, ID: 0}, fiducial.Observation{Family: fiducial.April, ID: 0}, fiducial.Observation{Family: fiducial.April, ID: 0})

	tl, err := Build(m, quiet)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	wantStart := Signal{1, 0, 1, 0}
	wantEnd := Signal{0, 0, 1, 0}
	for i := range wantStart {
		if tl.Start[i] != wantStart[i] || tl.End[i] != wantEnd[i] {
			t.Errorf("frame %d: got (%d,%d), want (%d,%d)", i, tl.Start[i], tl.End[i], wantStart[i], wantEnd[i])
		}
	}
	if tl.Truncated {
		t.Error("timeline should not be truncated")
	}
	if tl.FPS != 25 {
		t.Errorf("FPS = %v, want 25", tl.FPS)
	}
}

func TestBuild_NoFrames(t *testing.T) {
	_, err := Build(fiducial.NewMock(0), quiet)
	if !errors.Is(err, ErrNoFrames) {
		t.Errorf("err = %v, want ErrNoFrames", err)
	}
}

func TestBuild_ShortReadKeepsPartialSignal(t *testing.T) {
	m := fiducial.NewMock(10)
	m.Fail[6] = true

	tl, err := Build(m, quiet)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tl.Frames() != 6 {
		t.Errorf("Frames() = %d, want 6", tl.Frames())
	}
	if !tl.Truncated {
		t.Error("expected Truncated when fewer frames than declared")
	}
	if tl.Expected != 10 {
		t.Errorf("Expected = %d, want 10", tl.Expected)
	}
}

func TestBuild_InvalidConfig(t *testing.T) {
	_, err := Build(fiducial.NewMock(3), quiet, WithThreshold(-1))
	if err == nil {
		t.Error("expected config validation error")
	}
}

// A 5-frame dropout of marker 0 is bridged, so no epoch start is detected.
func TestBuild_GapBridgingChangesSegmentation(t *testing.T) {
	m := fiducial.NewMock(100)
	m.SetRange(0, 40, sightings(0, 3)...)
	m.SetRange(45, 100, sightings(0, 3)...)

	tl, err := Build(m, quiet)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := FallingEdges(tl.Start); len(got) != 1 || got[0] != 40 {
		t.Fatalf("raw falling edges = %v, want [40]", got)
	}

	start, _ := tl.Merged(50)
	if start.Ones() != 100 {
		t.Errorf("merged marker-0 present in %d frames, want 100", start.Ones())
	}
	if got := FallingEdges(start); len(got) != 0 {
		t.Errorf("merged falling edges = %v, want none", got)
	}
}
