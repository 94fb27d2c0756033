package presence

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sig(s string) Signal {
	out := make(Signal, len(s))
	for i, c := range s {
		if c == '1' {
			out[i] = 1
		}
	}
	return out
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		in   string
		gap  int
		want string
	}{
		{"empty", "", 3, ""},
		{"all zeros", "0000", 3, "0000"},
		{"short gap bridged", "1100111", 3, "1111111"},
		{"gap equal to limit bridged", "110001", 3, "111111"},
		{"long gap kept", "1100001", 3, "1100001"},
		{"trailing absence kept", "11000", 3, "11000"},
		{"leading absence kept", "0011011", 3, "0011111"},
		{"chained gaps", "1010101", 1, "1111111"},
		{"zero gap is identity", "10101", 0, "10101"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(sig(tt.in), tt.gap)
			if diff := cmp.Diff(sig(tt.want), got); diff != "" {
				t.Errorf("Merge(%s, %d) mismatch (-want +got):\n%s", tt.in, tt.gap, diff)
			}
		})
	}
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	in := sig("1101")
	_ = Merge(in, 5)
	if diff := cmp.Diff(sig("1101"), in); diff != "" {
		t.Errorf("input mutated:\n%s", diff)
	}
}

func randomSignal(r *rand.Rand, n int) Signal {
	s := make(Signal, n)
	on := r.Intn(2) == 1
	for i := 0; i < n; {
		run := 1 + r.Intn(80)
		for k := 0; k < run && i < n; k++ {
			if on {
				s[i] = 1
			}
			i++
		}
		on = !on
	}
	return s
}

func TestMerge_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		s := randomSignal(r, 1+r.Intn(500))
		gap := r.Intn(60)
		once := Merge(s, gap)

		if len(once) != len(s) {
			t.Fatalf("trial %d: length changed %d -> %d", trial, len(s), len(once))
		}
		if diff := cmp.Diff(once, Merge(once, gap)); diff != "" {
			t.Fatalf("trial %d: merge not idempotent (gap %d):\n%s", trial, gap, diff)
		}
		if once.Ones() < s.Ones() {
			t.Fatalf("trial %d: merge removed presence", trial)
		}
		for i := range s {
			if s[i] == 1 && once[i] != 1 {
				t.Fatalf("trial %d: frame %d lost presence", trial, i)
			}
		}
	}
}

func TestEdges(t *testing.T) {
	s := sig("0110011100")
	if diff := cmp.Diff([]int{3, 8}, FallingEdges(s)); diff != "" {
		t.Errorf("FallingEdges mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 5}, RisingEdges(s)); diff != "" {
		t.Errorf("RisingEdges mismatch:\n%s", diff)
	}
	if got := FallingEdges(nil); len(got) != 0 {
		t.Errorf("FallingEdges(nil) = %v", got)
	}
}
