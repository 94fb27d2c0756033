package fiducial

import (
	"errors"
	"sync"
)

// ErrMockFrame is returned by Mock for frames listed in Fail.
var ErrMockFrame = errors.New("fiducial: mock frame unavailable")

// Mock replays scripted per-frame observations for testing.
// It satisfies both the sequential scanner and the random-access observer
// contracts used by the presence and gaze packages.
type Mock struct {
	// Frames holds observations per frame index. Missing entries mean
	// "no detections".
	Frames map[int][]Observation

	// Fail lists frame indexes whose read or seek fails.
	Fail map[int]bool

	// Total is the number of decodable frames. Scanning stops here.
	Total int

	// Declared is the frame count reported as container metadata.
	// Zero means Total.
	Declared int

	// Rate is the reported frame rate.
	Rate float64

	mu    sync.Mutex
	pos   int
	cur   []Observation
	calls int
}

// NewMock creates a mock with total frames at 25 fps.
func NewMock(total int) *Mock {
	return &Mock{
		Frames: make(map[int][]Observation),
		Fail:   make(map[int]bool),
		Total:  total,
		Rate:   25,
	}
}

// Set replaces the observations for frame idx.
func (m *Mock) Set(idx int, obs ...Observation) {
	m.Frames[idx] = obs
}

// SetRange assigns obs to every frame in [from, to).
func (m *Mock) SetRange(from, to int, obs ...Observation) {
	for i := from; i < to; i++ {
		m.Frames[i] = obs
	}
}

// FPS returns the scripted frame rate.
func (m *Mock) FPS() float64 { return m.Rate }

// FrameCount returns the declared frame count.
func (m *Mock) FrameCount() int {
	if m.Declared > 0 {
		return m.Declared
	}
	return m.Total
}

// Next advances the sequential scan. A frame listed in Fail ends the scan
// as a mid-stream decode failure would.
func (m *Mock) Next() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos >= m.Total || m.Fail[m.pos] {
		return false
	}
	m.cur = m.Frames[m.pos]
	m.pos++
	return true
}

// Observations returns the observations of the current scanned frame.
func (m *Mock) Observations() []Observation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// Err always returns nil. Decode failures surface as a short scan.
func (m *Mock) Err() error { return nil }

// Observe returns the observations for frame idx as a seek+detect would.
func (m *Mock) Observe(idx int) ([]Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if idx < 0 || idx >= m.Total || m.Fail[idx] {
		return nil, ErrMockFrame
	}
	return m.Frames[idx], nil
}

// Calls returns how many times Observe was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close is a no-op.
func (m *Mock) Close() error { return nil }
