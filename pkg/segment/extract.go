package segment

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-gazewarp/pkg/presence"
)

// Extraction is the outcome of pairing marker edges into epochs.
type Extraction struct {
	// Starts are falling edges of the merged start-marker signal.
	Starts []int
	// Ends are rising edges of the merged end-marker signal.
	Ends []int
	// Labels is "cali" plus the condition product.
	Labels []string

	// RawStarts and RawEnds count edges before truncation to a common length.
	RawStarts int
	RawEnds   int
}

// MismatchError reports that the generated label count does not cover the
// detected epochs exactly.
type MismatchError struct {
	Labels int
	Pairs  int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("segment: %d labels for %d detected epochs", e.Labels, e.Pairs)
}

// OrderError reports an epoch whose boundaries do not alternate as the
// protocol expects (start[i] < end[i] <= start[i+1]).
type OrderError struct {
	Index     int
	Start     int
	End       int
	NextStart int // -1 when Index is the last epoch
}

func (e *OrderError) Error() string {
	if e.NextStart < 0 {
		return fmt.Sprintf("segment: epoch %d has start %d not before end %d", e.Index, e.Start, e.End)
	}
	return fmt.Sprintf("segment: epoch %d [%d,%d) out of order with next start %d",
		e.Index, e.Start, e.End, e.NextStart)
}

// Extract derives epoch boundaries from the merged start and end signals and
// generates labels from the condition codes. Starts and ends are truncated
// to the shorter of the two edge lists; no reordering is attempted.
func Extract(start, end presence.Signal, light, head, media string) (*Extraction, error) {
	labels, err := Labels(light, head, media)
	if err != nil {
		return nil, err
	}

	starts := presence.FallingEdges(start)
	ends := presence.RisingEdges(end)
	n := min(len(starts), len(ends))

	return &Extraction{
		Starts:    starts[:n],
		Ends:      ends[:n],
		Labels:    labels,
		RawStarts: len(starts),
		RawEnds:   len(ends),
	}, nil
}

// Pairs returns the number of detected epochs.
func (x *Extraction) Pairs() int {
	return len(x.Starts)
}

// Validate reports conditions that make the extraction untrustworthy: a
// label count that differs from the epoch count, and epochs whose boundaries
// do not alternate. Nothing is corrected. The result is nil or an
// errors.Join of *MismatchError and *OrderError values.
func (x *Extraction) Validate() error {
	var errs []error
	if len(x.Labels) != x.Pairs() {
		errs = append(errs, &MismatchError{Labels: len(x.Labels), Pairs: x.Pairs()})
	}
	for i := range x.Starts {
		next := -1
		if i+1 < len(x.Starts) {
			next = x.Starts[i+1]
		}
		if x.Starts[i] >= x.Ends[i] || (next >= 0 && x.Ends[i] > next) {
			errs = append(errs, &OrderError{Index: i, Start: x.Starts[i], End: x.Ends[i], NextStart: next})
		}
	}
	return errors.Join(errs...)
}

// Segments pairs epochs with labels in order. Extra epochs or labels beyond
// the shorter list are dropped; call Validate first to detect that.
func (x *Extraction) Segments() []Segment {
	n := min(x.Pairs(), len(x.Labels))
	segs := make([]Segment, n)
	for i := 0; i < n; i++ {
		segs[i] = Segment{Start: x.Starts[i], End: x.Ends[i], Label: x.Labels[i]}
	}
	return segs
}
