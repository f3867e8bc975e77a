// Package tone provides a synthetic audio source for development and
// tests: alternating bursts of a sine tone and silence, so downstream
// segmentation sees realistic speech/pause boundaries without hardware.
package tone

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/lingocast/lingocast/internal/audio"
)

const frameDur = 20 * time.Millisecond

func init() {
	audio.Sources.Register("tone", func(config map[string]string) (audio.Source, error) {
		freq := 440.0
		if s := config["tone_frequency"]; s != "" {
			if v, err := strconv.ParseFloat(s, 64); err == nil && v > 0 {
				freq = v
			}
		}
		burst := 2 * time.Second
		if s := config["tone_burst_ms"]; s != "" {
			if v, err := strconv.Atoi(s); err == nil && v > 0 {
				burst = time.Duration(v) * time.Millisecond
			}
		}
		gap := time.Second
		if s := config["tone_gap_ms"]; s != "" {
			if v, err := strconv.Atoi(s); err == nil && v > 0 {
				gap = time.Duration(v) * time.Millisecond
			}
		}
		return &Source{frequency: freq, burst: burst, gap: gap}, nil
	})
}

// Source generates tone bursts separated by silence in real time.
type Source struct {
	frequency float64
	burst     time.Duration
	gap       time.Duration
}

func (s *Source) Devices(_ context.Context) ([]audio.Device, error) {
	return []audio.Device{
		{Index: 0, Name: "Synthetic Tone Generator", Channels: 1, SampleRate: 16000, IsDefault: true},
	}, nil
}

func (s *Source) Open(ctx context.Context, deviceIndex int, sampleRate int) (audio.Stream, error) {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	dev := audio.Device{Index: 0, Name: "Synthetic Tone Generator", Channels: 1, SampleRate: float64(sampleRate), IsDefault: true}

	st := &stream{
		frames: make(chan audio.Frame, 8),
		device: dev,
		done:   make(chan struct{}),
	}
	go st.run(ctx, s, sampleRate)
	return st, nil
}

type stream struct {
	frames chan audio.Frame
	device audio.Device
	done   chan struct{}
	err    error
}

func (st *stream) Frames() <-chan audio.Frame { return st.frames }
func (st *stream) Device() audio.Device       { return st.device }
func (st *stream) Err() error                 { return st.err }

func (st *stream) Close() error {
	select {
	case <-st.done:
	default:
		close(st.done)
	}
	return nil
}

func (st *stream) run(ctx context.Context, s *Source, sampleRate int) {
	defer close(st.frames)

	samplesPerFrame := int(float64(sampleRate) * frameDur.Seconds())
	ticker := time.NewTicker(frameDur)
	defer ticker.Stop()

	var elapsed time.Duration
	var phase float64
	cycle := s.burst + s.gap

	for {
		select {
		case <-ctx.Done():
			return
		case <-st.done:
			return
		case now := <-ticker.C:
			samples := make([]float32, samplesPerFrame)
			inBurst := elapsed%cycle < s.burst
			if inBurst {
				for i := range samples {
					samples[i] = 0.5 * float32(math.Sin(phase))
					phase += 2 * math.Pi * s.frequency / float64(sampleRate)
				}
			}
			elapsed += frameDur

			select {
			case st.frames <- audio.Frame{Samples: samples, SampleRate: sampleRate, Timestamp: now}:
			case <-ctx.Done():
				return
			case <-st.done:
				return
			}
		}
	}
}
