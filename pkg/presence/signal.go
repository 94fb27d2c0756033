package presence

// Signal is a per-frame binary presence signal. Each element is 0 or 1.
type Signal []uint8

// Ones counts the frames marked present.
func (s Signal) Ones() int {
	n := 0
	for _, v := range s {
		if v == 1 {
			n++
		}
	}
	return n
}

// Clone returns an independent copy of s.
func (s Signal) Clone() Signal {
	if s == nil {
		return nil
	}
	out := make(Signal, len(s))
	copy(out, s)
	return out
}

// Merge bridges short absences between runs of presence.
//
// After each run of 1s, the following run of 0s is filled with 1s when it is
// at most maxGap frames long and another run of 1s resumes after it. Leading
// absence and absence that runs to the end of the signal are never filled.
// The input is not modified. Merge is idempotent for a fixed maxGap.
func Merge(s Signal, maxGap int) Signal {
	merged := s.Clone()
	n := len(merged)

	i := 0
	for i < n {
		if merged[i] != 1 {
			i++
			continue
		}

		j := i + 1
		for j < n && merged[j] == 1 {
			j++
		}
		gapStart := j
		for j < n && merged[j] == 0 {
			j++
		}

		if j < n && j-gapStart <= maxGap {
			for k := gapStart; k < j; k++ {
				merged[k] = 1
			}
		}
		i = j
	}

	return merged
}

// FallingEdges returns the indexes i where s[i-1] == 1 and s[i] == 0.
func FallingEdges(s Signal) []int {
	edges := []int{}
	for i := 1; i < len(s); i++ {
		if s[i-1] == 1 && s[i] == 0 {
			edges = append(edges, i)
		}
	}
	return edges
}

// RisingEdges returns the indexes i where s[i-1] == 0 and s[i] == 1.
func RisingEdges(s Signal) []int {
	edges := []int{}
	for i := 1; i < len(s); i++ {
		if s[i-1] == 0 && s[i] == 1 {
			edges = append(edges, i)
		}
	}
	return edges
}
