// Package whisperd is a Recognizer client for a faster-whisper serving
// endpoint (one POST per recognition pass over an audio segment).
package whisperd

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/lingocast/lingocast/internal/speech/backends/restutil"
	"github.com/lingocast/lingocast/internal/speech/engine"
	"github.com/lingocast/lingocast/internal/speech/registry"
)

func init() {
	registry.Recognizers.Register("whisperd", func(config map[string]string) (engine.Recognizer, error) {
		baseURL := config["whisperd_url"]
		if baseURL == "" {
			return nil, fmt.Errorf("whisperd recognizer requires whisperd_url")
		}
		model := config["model"]
		if model == "" {
			model = "large-v3"
		}
		return &Recognizer{
			baseURL: baseURL,
			model:   model,
			apiKey:  config["api_key"],
		}, nil
	})
}

type transcribeRequest struct {
	AudioB64   string `json:"audio_b64"`
	SampleRate int    `json:"sample_rate"`
	Language   string `json:"language,omitempty"`
	Model      string `json:"model"`
	BeamSize   int    `json:"beam_size"`
}

type transcribeResponse struct {
	Text                string  `json:"text"`
	Language            string  `json:"language"`
	LanguageProbability float64 `json:"language_probability"`
	Confidence          float64 `json:"confidence"`
}

// Recognizer implements engine.Recognizer over the whisperd REST API.
type Recognizer struct {
	baseURL string
	model   string
	apiKey  string
}

func (r *Recognizer) Recognize(ctx context.Context, samples []float32, sampleRate int, language string) (engine.Hypothesis, error) {
	req := transcribeRequest{
		AudioB64:   encodePCM16(samples),
		SampleRate: sampleRate,
		Language:   language,
		Model:      r.model,
		BeamSize:   5,
	}

	headers := map[string]string{}
	if r.apiKey != "" {
		headers["Authorization"] = "Bearer " + r.apiKey
	}

	start := time.Now()
	var resp transcribeResponse
	if err := restutil.DoJSON(ctx, "POST", r.baseURL+"/v1/transcribe", headers, req, &resp); err != nil {
		return engine.Hypothesis{}, fmt.Errorf("whisperd: %w", err)
	}

	return engine.Hypothesis{
		Text:                resp.Text,
		Language:            resp.Language,
		LanguageProbability: resp.LanguageProbability,
		Confidence:          resp.Confidence,
		ProcessingTime:      time.Since(start),
	}, nil
}

func (r *Recognizer) ModelInfo() engine.ModelInfo {
	return engine.ModelInfo{Name: r.model, Device: "remote"}
}

func (r *Recognizer) Close() error { return nil }

// encodePCM16 packs float32 samples as base64 S16LE, the wire format
// whisperd accepts.
func encodePCM16(samples []float32) string {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(s*32767)))
	}
	return base64.StdEncoding.EncodeToString(buf)
}
