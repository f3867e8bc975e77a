package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/lingocast/lingocast/internal/audio"
	"github.com/lingocast/lingocast/internal/speech/engine"
)

func testSettings() Settings {
	return Settings{
		SilenceDur:        60 * time.Millisecond,
		MinSpeechDur:      40 * time.Millisecond,
		MaxSegmentDur:     time.Second,
		ReviseInterval:    10 * time.Second,
		EnergyThreshold:   0.01,
		SegmentQueueDepth: 64,
		StopGrace:         500 * time.Millisecond,
	}
}

const testRate = 16000

// frame builds one 20ms frame of constant-amplitude samples.
func frame(amplitude float32, ts time.Time) audio.Frame {
	samples := make([]float32, testRate/50)
	for i := range samples {
		samples[i] = amplitude
	}
	return audio.Frame{Samples: samples, SampleRate: testRate, Timestamp: ts}
}

// frameSeq appends n frames of the given amplitude, stepping timestamps by
// 20ms.
func frameSeq(frames []audio.Frame, n int, amplitude float32, ts *time.Time) []audio.Frame {
	for i := 0; i < n; i++ {
		frames = append(frames, frame(amplitude, *ts))
		*ts = ts.Add(20 * time.Millisecond)
	}
	return frames
}

var (
	_ engine.Recognizer = (*fakeRecognizer)(nil)
	_ engine.Translator = (*fakeTranslator)(nil)
	_ audio.Source      = (*fakeSource)(nil)
	_ audio.Stream      = (*fakeStream)(nil)
)

type fakeRecognizer struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, samples []float32) (engine.Hypothesis, error)
}

func (f *fakeRecognizer) Recognize(ctx context.Context, samples []float32, sampleRate int, language string) (engine.Hypothesis, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(call, samples)
	}
	return engine.Hypothesis{Text: "hello world", Language: "english", Confidence: 0.9}, nil
}

func (f *fakeRecognizer) ModelInfo() engine.ModelInfo {
	return engine.ModelInfo{Name: "fake", Device: "cpu"}
}

func (f *fakeRecognizer) Close() error { return nil }

func (f *fakeRecognizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTranslator struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(ctx context.Context, call int, text, source, target string) (engine.Translation, error)
}

func (f *fakeTranslator) Translate(ctx context.Context, text, sourceCode, targetCode string) (engine.Translation, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[targetCode]++
	call := f.calls[targetCode]
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, call, text, sourceCode, targetCode)
	}
	return engine.Translation{Text: "[" + targetCode + "] " + text, Confidence: 0.95}, nil
}

func (f *fakeTranslator) Close() error { return nil }

func (f *fakeTranslator) callsFor(targetCode string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[targetCode]
}

type fakeStream struct {
	mu     sync.Mutex
	closed bool
	frames chan audio.Frame
	dev    audio.Device
	err    error
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		frames: make(chan audio.Frame, 4096),
		dev:    audio.Device{Index: 0, Name: "fake", Channels: 1, SampleRate: testRate},
	}
}

func (s *fakeStream) Frames() <-chan audio.Frame { return s.frames }
func (s *fakeStream) Device() audio.Device       { return s.dev }

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return nil
}

// push feeds a frame unless the stream was closed.
func (s *fakeStream) push(f audio.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.frames <- f
	return true
}

// fail terminates the stream with an error, as a dying device would.
func (s *fakeStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.err = err
		close(s.frames)
	}
}

type fakeSource struct {
	stream  *fakeStream
	openErr error
	devices []audio.Device

	// When set, Open signals entered then blocks until release is closed.
	entered chan struct{}
	release chan struct{}
}

func (s *fakeSource) Devices(ctx context.Context) ([]audio.Device, error) {
	return s.devices, nil
}

func (s *fakeSource) Open(ctx context.Context, deviceIndex, sampleRate int) (audio.Stream, error) {
	if s.entered != nil {
		close(s.entered)
		<-s.release
	}
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.stream, nil
}
