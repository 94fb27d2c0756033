// Package vision wraps gocv for everything that touches pixels: video
// decoding with frame-exact seeks, ArUco and AprilTag detection, and the
// calibration frame builder.
package vision

import (
	"fmt"
	"strings"

	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
	"gocv.io/x/gocv"
)

// Dictionary names a predefined OpenCV marker dictionary.
type Dictionary string

const (
	// Dict4x4_50 is the segmentation marker dictionary.
	Dict4x4_50 Dictionary = "4x4_50"

	// DictArucoOriginal is the square calibration dictionary.
	DictArucoOriginal Dictionary = "aruco_original"

	// DictAprilTag36h11 is the AprilTag calibration family.
	DictAprilTag36h11 Dictionary = "apriltag_36h11"
)

var dictionaries = map[Dictionary]struct {
	code   gocv.ArucoDictionaryCode
	family fiducial.Family
}{
	Dict4x4_50:        {gocv.ArucoDict4x4_50, fiducial.Square},
	DictArucoOriginal: {gocv.ArucoDictArucoOriginal, fiducial.Square},
	DictAprilTag36h11: {gocv.ArucoDictAprilTag_36h11, fiducial.April},
}

// ParseDictionary resolves a dictionary name, case-insensitively.
func ParseDictionary(s string) (Dictionary, error) {
	d := Dictionary(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := dictionaries[d]; !ok {
		return "", fmt.Errorf("vision: unknown dictionary %q", s)
	}
	return d, nil
}

// Family reports which fiducial family markers of d belong to.
func (d Dictionary) Family() fiducial.Family {
	return dictionaries[d].family
}

func (d Dictionary) code() gocv.ArucoDictionaryCode {
	return dictionaries[d].code
}
