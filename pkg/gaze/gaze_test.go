package gaze

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/teslashibe/go-gazewarp/pkg/calibration"
	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
	"github.com/teslashibe/go-gazewarp/pkg/homography"
	"github.com/teslashibe/go-gazewarp/pkg/segment"
)

// The fixture maps image pixels to reference space by x' = 2x + 800.
var (
	imageTags = []fiducial.Point{{X: 0, Y: 0}, {X: 1000, Y: 0}, {X: 1000, Y: 800}, {X: 0, Y: 800}}
	refTags   = []fiducial.Point{{X: 800, Y: 800}, {X: 2800, Y: 800}, {X: 2800, Y: 2400}, {X: 800, Y: 2400}}
)

func fixture(t *testing.T, frames int) (*homography.Estimator, *fiducial.Mock, Samples) {
	t.Helper()
	ref := &calibration.Reference{Boundary: 800, ScreenWidth: 1920, ScreenHeight: 1080}
	var obs []fiducial.Observation
	for i := range refTags {
		ref.Tags = append(ref.Tags, calibration.Tag{Family: fiducial.April, ID: i, Center: refTags[i]})
		obs = append(obs, fiducial.Observation{Family: fiducial.April, ID: i, Center: imageTags[i]})
	}
	est, err := homography.NewEstimator(ref)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}

	mock := fiducial.NewMock(frames)
	mock.SetRange(0, frames, obs...)

	samples := make(Samples, frames)
	for i := range samples {
		samples[i] = fiducial.Point{X: 100 + float64(i) + 0.25, Y: 50 + float64(i) + 0.25}
	}
	return est, mock, samples
}

func expected(i int) Point {
	return Point{X: 200 + 2*i, Y: 100 + 2*i}
}

func opener(m *fiducial.Mock) OpenFunc {
	return func() (Observer, error) { return m, nil }
}

func TestWarp_ReprojectsSamples(t *testing.T) {
	est, mock, samples := fixture(t, 40)
	w, err := NewWarper(est, opener(mock))
	if err != nil {
		t.Fatalf("NewWarper: %v", err)
	}

	segs := []segment.Segment{{Start: 0, End: 10, Label: "a"}, {Start: 20, End: 35, Label: "b"}}
	results, err := w.Warp(context.Background(), segs, samples)
	if err != nil {
		t.Fatalf("Warp: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	for _, r := range results {
		if len(r.Track) != r.Segment.Len() {
			t.Fatalf("%s: len(track) = %d, want %d", r.Segment.Label, len(r.Track), r.Segment.Len())
		}
		for off, p := range r.Track {
			if want := expected(r.Segment.Start + off); p != want {
				t.Errorf("%s frame %d = %v, want %v", r.Segment.Label, r.Segment.Start+off, p, want)
			}
		}
	}
}

func TestWarp_SentinelPerFrame(t *testing.T) {
	est, mock, samples := fixture(t, 20)
	mock.Fail[5] = true
	samples[6] = fiducial.Point{X: math.NaN(), Y: math.NaN()}
	mock.Set(7)
	mock.Set(8, mock.Frames[8][:3]...)

	w, err := NewWarper(est, opener(mock))
	if err != nil {
		t.Fatalf("NewWarper: %v", err)
	}
	results, err := w.Warp(context.Background(), []segment.Segment{{Start: 2, End: 12, Label: "x"}}, samples)
	if err != nil {
		t.Fatalf("Warp: %v", err)
	}

	track := results[0].Track
	for off, p := range track {
		idx := 2 + off
		bad := idx >= 5 && idx <= 8
		if bad && p != Sentinel {
			t.Errorf("frame %d = %v, want sentinel", idx, p)
		}
		if !bad && p != expected(idx) {
			t.Errorf("frame %d = %v, want %v", idx, p, expected(idx))
		}
	}
	if got := track.Sentinels(); got != 4 {
		t.Errorf("Sentinels() = %d, want 4", got)
	}
}

func TestWarp_OutOfRangeFramesNeverSeek(t *testing.T) {
	est, mock, samples := fixture(t, 10)
	w, err := NewWarper(est, opener(mock))
	if err != nil {
		t.Fatalf("NewWarper: %v", err)
	}
	results, err := w.Warp(context.Background(), []segment.Segment{{Start: -3, End: 2, Label: "cali"}}, samples)
	if err != nil {
		t.Fatalf("Warp: %v", err)
	}
	track := results[0].Track
	if len(track) != 5 {
		t.Fatalf("len(track) = %d, want 5", len(track))
	}
	for i := 0; i < 3; i++ {
		if track[i] != Sentinel {
			t.Errorf("track[%d] = %v, want sentinel", i, track[i])
		}
	}
	if mock.Calls() != 2 {
		t.Errorf("Observe calls = %d, want 2", mock.Calls())
	}
}

func TestWarp_WorkersKeepFrameOrder(t *testing.T) {
	est, mock, samples := fixture(t, 100)
	mock.Fail[41] = true
	segs := []segment.Segment{{Start: 3, End: 97, Label: "v"}}

	single, err := NewWarper(est, opener(mock))
	if err != nil {
		t.Fatalf("NewWarper: %v", err)
	}
	want, err := single.Warp(context.Background(), segs, samples)
	if err != nil {
		t.Fatalf("Warp: %v", err)
	}

	var progress []Progress
	multi, err := NewWarper(est, opener(mock), WithWorkers(4), WithProgress(func(p Progress) {
		progress = append(progress, p)
	}))
	if err != nil {
		t.Fatalf("NewWarper: %v", err)
	}
	got, err := multi.Warp(context.Background(), segs, samples)
	if err != nil {
		t.Fatalf("Warp: %v", err)
	}

	for i := range want[0].Track {
		if got[0].Track[i] != want[0].Track[i] {
			t.Fatalf("frame %d: workers=4 %v, workers=1 %v", 3+i, got[0].Track[i], want[0].Track[i])
		}
	}
	if len(progress) != 1 || progress[0].Done != 94 || progress[0].Sentinels != 1 {
		t.Errorf("progress = %+v", progress)
	}
}

func TestWarp_Errors(t *testing.T) {
	est, mock, samples := fixture(t, 10)
	segs := []segment.Segment{{Start: 0, End: 10, Label: "a"}}

	openErr := errors.New("no video")
	w, err := NewWarper(est, func() (Observer, error) { return nil, openErr })
	if err != nil {
		t.Fatalf("NewWarper: %v", err)
	}
	if _, err := w.Warp(context.Background(), segs, samples); !errors.Is(err, openErr) {
		t.Errorf("Warp error = %v, want %v", err, openErr)
	}

	w, err = NewWarper(est, opener(mock))
	if err != nil {
		t.Fatalf("NewWarper: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.Warp(ctx, segs, samples); !errors.Is(err, context.Canceled) {
		t.Errorf("Warp error = %v, want context.Canceled", err)
	}

	if _, err := NewWarper(est, opener(mock), WithWorkers(0)); err == nil {
		t.Error("expected error for zero workers")
	}
}

func TestSamples_At(t *testing.T) {
	s := Samples{{X: 1, Y: 2}, {X: math.NaN(), Y: 3}, {X: 4, Y: math.NaN()}}
	if p, ok := s.At(0); !ok || p != (fiducial.Point{X: 1, Y: 2}) {
		t.Errorf("At(0) = %v, %v", p, ok)
	}
	for _, idx := range []int{-1, 1, 2, 3} {
		if _, ok := s.At(idx); ok {
			t.Errorf("At(%d) reported a sample", idx)
		}
	}
	if got := s.Missing(); got != 2 {
		t.Errorf("Missing() = %d, want 2", got)
	}
}

func TestNPY_SamplesAndTrack(t *testing.T) {
	in := Samples{{X: 10.5, Y: 20.25}, {X: math.NaN(), Y: math.NaN()}, {X: -3, Y: 7}}
	var buf bytes.Buffer
	if err := in.WriteNPY(&buf); err != nil {
		t.Fatalf("WriteNPY: %v", err)
	}
	out, err := ReadNPY(&buf)
	if err != nil {
		t.Fatalf("ReadNPY: %v", err)
	}
	if len(out) != 3 || out[0] != in[0] || out[2] != in[2] {
		t.Fatalf("ReadNPY = %v, want %v", out, in)
	}
	if _, ok := out.At(1); ok {
		t.Error("NaN sample survived as present")
	}

	path := filepath.Join(t.TempDir(), "track.npy")
	track := Track{{X: 1, Y: 2}, Sentinel}
	if err := track.SaveNPY(path); err != nil {
		t.Fatalf("SaveNPY: %v", err)
	}
	back, err := LoadNPY(path)
	if err != nil {
		t.Fatalf("LoadNPY: %v", err)
	}
	if back[1] != (fiducial.Point{X: -1, Y: -1}) {
		t.Errorf("sentinel row = %v", back[1])
	}
}

func TestReadNPY_RejectsFlatArray(t *testing.T) {
	var buf bytes.Buffer
	if err := npyio.Write(&buf, []float64{1, 2, 3, 4}); err != nil {
		t.Fatalf("npyio.Write: %v", err)
	}
	if _, err := ReadNPY(&buf); !errors.Is(err, ErrShape) {
		t.Fatalf("ReadNPY error = %v, want ErrShape", err)
	}
}

func TestSaveResults_DistinctNames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	results := []Result{
		{Segment: segment.Segment{Label: "cali"}, Track: Track{{X: 1, Y: 1}}},
		{Segment: segment.Segment{Label: "AFN"}, Track: Track{Sentinel}},
		{Segment: segment.Segment{Label: "cali"}, Track: Track{{X: 2, Y: 2}}},
	}
	paths, err := SaveResults(dir, results)
	if err != nil {
		t.Fatalf("SaveResults: %v", err)
	}
	want := []string{"cali.npy", "AFN.npy", "cali_2.npy"}
	for i, p := range paths {
		if filepath.Base(p) != want[i] {
			t.Errorf("paths[%d] = %s, want %s", i, filepath.Base(p), want[i])
		}
		if _, err := os.Stat(p); err != nil {
			t.Errorf("stat %s: %v", p, err)
		}
	}
}

func TestSaveResults_LabelsStayInDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "session", "output")
	results := []Result{
		{Segment: segment.Segment{Label: "../x"}, Track: Track{{X: 1, Y: 1}}},
		{Segment: segment.Segment{Label: "../../escaped"}, Track: Track{{X: 2, Y: 2}}},
		{Segment: segment.Segment{Label: "On/Center"}, Track: Track{Sentinel}},
		{Segment: segment.Segment{Label: ".."}, Track: Track{Sentinel}},
	}
	paths, err := SaveResults(dir, results)
	if err != nil {
		t.Fatalf("SaveResults: %v", err)
	}

	want := []string{".._x.npy", ".._.._escaped.npy", "On_Center.npy", "segment.npy"}
	if len(paths) != len(want) {
		t.Fatalf("len(paths) = %d, want %d", len(paths), len(want))
	}
	for i, p := range paths {
		if filepath.Dir(p) != dir {
			t.Errorf("paths[%d] = %s, outside %s", i, p, dir)
		}
		if filepath.Base(p) != want[i] {
			t.Errorf("paths[%d] = %s, want %s", i, filepath.Base(p), want[i])
		}
	}
	if _, err := os.Stat(filepath.Join(root, "escaped.npy")); !os.IsNotExist(err) {
		t.Errorf("file written outside output dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "session", "x.npy")); !os.IsNotExist(err) {
		t.Errorf("file written outside output dir: %v", err)
	}
}
