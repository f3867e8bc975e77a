// Package netstream captures audio from an HTTP feed, the way a hall
// mixing desk or icecast relay exposes it. Two wire formats are accepted:
// raw S16LE PCM ("pcm16") and length-prefixed Opus packets ("opus").
package netstream

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/lingocast/lingocast/internal/audio"
	"github.com/lingocast/lingocast/internal/audio/codec"
)

func init() {
	audio.Sources.Register("netstream", func(config map[string]string) (audio.Source, error) {
		url := config["stream_url"]
		if url == "" {
			return nil, fmt.Errorf("netstream source requires stream_url")
		}
		wire := config["stream_codec"]
		if wire == "" {
			wire = "pcm16"
		}
		if wire != "pcm16" && wire != "opus" {
			return nil, fmt.Errorf("unsupported stream codec %q", wire)
		}
		return &Source{url: url, wire: wire, client: &http.Client{}}, nil
	})
}

// Source opens one HTTP audio feed. The feed is modelled as a single
// enumerable device so the control surface can list and select it.
type Source struct {
	url    string
	wire   string
	client *http.Client
}

func (s *Source) Devices(_ context.Context) ([]audio.Device, error) {
	return []audio.Device{
		{Index: 0, Name: s.url, Channels: 1, SampleRate: 16000, IsDefault: true},
	}, nil
}

func (s *Source) Open(ctx context.Context, deviceIndex int, sampleRate int) (audio.Stream, error) {
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open audio stream %q: %w", s.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("open audio stream %q: HTTP %d", s.url, resp.StatusCode)
	}

	st := &stream{
		frames: make(chan audio.Frame, 8),
		device: audio.Device{Index: 0, Name: s.url, Channels: 1, SampleRate: float64(sampleRate), IsDefault: true},
		body:   resp.Body,
	}
	go st.run(ctx, s.wire, sampleRate)
	return st, nil
}

type stream struct {
	frames chan audio.Frame
	device audio.Device
	body   io.ReadCloser
	closed atomic.Bool
	err    error
}

func (st *stream) Frames() <-chan audio.Frame { return st.frames }
func (st *stream) Device() audio.Device       { return st.device }
func (st *stream) Err() error                 { return st.err }

func (st *stream) Close() error {
	st.closed.Store(true)
	return st.body.Close()
}

func (st *stream) run(ctx context.Context, wire string, sampleRate int) {
	defer close(st.frames)

	var readFrame func() ([]float32, error)
	switch wire {
	case "opus":
		dec := codec.NewOpusFrameDecoder()
		lenBuf := make([]byte, 2)
		pkt := make([]byte, 0, 1500)
		readFrame = func() ([]float32, error) {
			if _, err := io.ReadFull(st.body, lenBuf); err != nil {
				return nil, err
			}
			n := int(binary.BigEndian.Uint16(lenBuf))
			if cap(pkt) < n {
				pkt = make([]byte, n)
			}
			pkt = pkt[:n]
			if _, err := io.ReadFull(st.body, pkt); err != nil {
				return nil, err
			}
			samples, err := dec.Decode(pkt)
			if err != nil {
				return nil, err
			}
			out := make([]float32, len(samples))
			copy(out, samples)
			return out, nil
		}
	default: // pcm16: fixed 20ms reads
		chunk := make([]byte, sampleRate/50*2)
		readFrame = func() ([]float32, error) {
			if _, err := io.ReadFull(st.body, chunk); err != nil {
				return nil, err
			}
			return codec.PCM16ToFloat32(chunk), nil
		}
	}

	for {
		samples, err := readFrame()
		if err != nil {
			// A deliberate Close is normal termination, not a device fault.
			if err != io.EOF && ctx.Err() == nil && !st.closed.Load() {
				st.err = fmt.Errorf("audio stream read: %w", err)
			}
			return
		}
		select {
		case st.frames <- audio.Frame{Samples: samples, SampleRate: sampleRate, Timestamp: time.Now()}:
		case <-ctx.Done():
			return
		}
	}
}
