package audio

import (
	"context"
	"time"

	"github.com/lingocast/lingocast/internal/registry"
)

// Device describes one enumerable audio input device.
type Device struct {
	Index      int     `json:"index"`
	Name       string  `json:"name"`
	Channels   int     `json:"channels"`
	SampleRate float64 `json:"sample_rate"`
	IsDefault  bool    `json:"is_default,omitempty"`
}

// Frame is one fixed-size block of mono audio samples in [-1, 1].
type Frame struct {
	Samples    []float32
	SampleRate int
	Timestamp  time.Time
}

// Duration returns the frame's length in time.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// Source is the audio capture collaborator. It enumerates input devices
// and opens an ordered stream of fixed-size frames from one of them.
type Source interface {
	Devices(ctx context.Context) ([]Device, error)

	// Open starts capture from the device at deviceIndex, or from the
	// source's default device when deviceIndex is negative. The stream's
	// frame channel is closed when capture ends or the device fails.
	Open(ctx context.Context, deviceIndex int, sampleRate int) (Stream, error)
}

// Stream is one live capture session.
type Stream interface {
	// Frames yields frames in capture order. The channel closes when the
	// stream is closed or the device becomes unavailable.
	Frames() <-chan Frame

	// Device reports the device the stream was opened on.
	Device() Device

	// Err returns the failure that terminated the stream, if any, after
	// Frames is closed.
	Err() error

	Close() error
}

// Sources is the global audio source backend registry.
var Sources = registry.New[Source]()
