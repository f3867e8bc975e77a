package audio

import (
	"math"
	"sync"
)

// Meter tracks the RMS level of the most recent window of audio for status
// reporting. It is safe for one writer and any number of readers.
type Meter struct {
	mu      sync.Mutex
	window  []float32
	size    int
	written int
}

// NewMeter creates a meter over a window of the given sample count.
// A 16kHz pipeline with the default 1600-sample window reports the level
// of the last 100ms of audio.
func NewMeter(windowSamples int) *Meter {
	if windowSamples <= 0 {
		windowSamples = 1600
	}
	return &Meter{
		window: make([]float32, windowSamples),
		size:   windowSamples,
	}
}

// Push appends frame samples to the rolling window.
func (m *Meter) Push(f Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range f.Samples {
		m.window[m.written%m.size] = s
		m.written++
	}
}

// Level returns the RMS of the current window in [0, 1].
func (m *Meter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.written
	if n == 0 {
		return 0
	}
	if n > m.size {
		n = m.size
	}

	var sumSquares float64
	for i := 0; i < n; i++ {
		s := float64(m.window[i])
		sumSquares += s * s
	}
	return math.Sqrt(sumSquares / float64(n))
}

// Reset clears the window.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = 0
}
