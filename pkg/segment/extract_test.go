package segment

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/teslashibe/go-gazewarp/pkg/presence"
)

func signal(s string) presence.Signal {
	out := make(presence.Signal, len(s))
	for i, c := range s {
		if c == '1' {
			out[i] = 1
		}
	}
	return out
}

func TestExtract_Edges(t *testing.T) {
	//            0123456789012345
	start := signal("1100011000111000")
	end := signal("0001000011000011")

	x, err := Extract(start, end, "A", "A", "A")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if diff := cmp.Diff([]int{2, 7, 13}, x.Starts); diff != "" {
		t.Errorf("Starts mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]int{3, 8, 14}, x.Ends); diff != "" {
		t.Errorf("Ends mismatch:\n%s", diff)
	}
	if x.RawStarts != 3 || x.RawEnds != 3 {
		t.Errorf("raw counts = %d/%d", x.RawStarts, x.RawEnds)
	}
}

func TestExtract_TruncatesToShorter(t *testing.T) {
	start := signal("10101010")
	end := signal("00000011")

	x, err := Extract(start, end, "", "", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(x.Starts) != len(x.Ends) {
		t.Fatalf("len(Starts)=%d != len(Ends)=%d", len(x.Starts), len(x.Ends))
	}
	if x.Pairs() != min(x.RawStarts, x.RawEnds) || x.Pairs() != 1 {
		t.Errorf("Pairs = %d, raw %d/%d", x.Pairs(), x.RawStarts, x.RawEnds)
	}
	if diff := cmp.Diff([]int{1}, x.Starts); diff != "" {
		t.Errorf("Starts should keep the earliest edges:\n%s", diff)
	}
}

func TestExtract_NoStartsWhenMarkerNeverDisappears(t *testing.T) {
	start := make(presence.Signal, 100)
	for i := range start {
		start[i] = 1
	}
	end := signal("0000011111")

	x, err := Extract(start, end, "A", "A", "A")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(x.Starts) != 0 || len(x.Ends) != 0 {
		t.Errorf("expected no epochs, got starts=%v ends=%v", x.Starts, x.Ends)
	}
}

func TestExtraction_Validate(t *testing.T) {
	tests := []struct {
		name         string
		x            Extraction
		wantMismatch bool
		wantOrder    int
	}{
		{
			name: "consistent",
			x:    Extraction{Starts: []int{10, 50}, Ends: []int{40, 80}, Labels: []string{"cali", "On-Center-Image"}},
		},
		{
			name:         "label count mismatch",
			x:            Extraction{Starts: []int{10}, Ends: []int{40}, Labels: []string{"cali", "On-Center-Image"}},
			wantMismatch: true,
		},
		{
			name:      "end before start",
			x:         Extraction{Starts: []int{10, 50}, Ends: []int{5, 80}, Labels: []string{"a", "b"}},
			wantOrder: 1,
		},
		{
			name:      "end after next start",
			x:         Extraction{Starts: []int{10, 50}, Ends: []int{60, 80}, Labels: []string{"a", "b"}},
			wantOrder: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.x.Validate()
			if !tt.wantMismatch && tt.wantOrder == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}

			var mm *MismatchError
			if got := errors.As(err, &mm); got != tt.wantMismatch {
				t.Errorf("MismatchError present = %v, want %v", got, tt.wantMismatch)
			}

			orders := 0
			if joined, ok := err.(interface{ Unwrap() []error }); ok {
				for _, e := range joined.Unwrap() {
					var oe *OrderError
					if errors.As(e, &oe) {
						orders++
					}
				}
			}
			if orders != tt.wantOrder {
				t.Errorf("OrderError count = %d, want %d", orders, tt.wantOrder)
			}
		})
	}
}

func TestExtraction_Segments(t *testing.T) {
	x := Extraction{Starts: []int{10, 50, 90}, Ends: []int{40, 80, 120}, Labels: []string{"cali", "On-Center-Image"}}
	want := []Segment{{10, 40, "cali"}, {50, 80, "On-Center-Image"}}
	if diff := cmp.Diff(want, x.Segments()); diff != "" {
		t.Errorf("Segments mismatch:\n%s", diff)
	}
}
