package gaze

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileNames returns the output file name for each result: "<label>.npy",
// with "_<n>" appended to repeated labels so no track is overwritten.
// Path separators in a label become underscores, so every name stays
// inside the output directory.
func FileNames(results []Result) []string {
	names := make([]string, len(results))
	seen := make(map[string]int)
	for i, r := range results {
		label := fileLabel(r.Segment.Label)
		seen[label]++
		if n := seen[label]; n > 1 {
			names[i] = fmt.Sprintf("%s_%d.npy", label, n)
		} else {
			names[i] = label + ".npy"
		}
	}
	return names
}

func fileLabel(label string) string {
	label = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == filepath.Separator || r == 0 {
			return '_'
		}
		return r
	}, label)
	if label == "" || label == "." || label == ".." {
		return "segment"
	}
	return label
}

// SaveResults writes one .npy file per result into dir and returns the
// paths written.
func SaveResults(dir string, results []Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for i, name := range FileNames(results) {
		path := filepath.Join(dir, name)
		if err := results[i].Track.SaveNPY(path); err != nil {
			return paths, fmt.Errorf("gaze: save %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
