// Package config defines the service configuration, loaded from the
// environment by frame.
package config

import (
	"strconv"
	"time"

	"github.com/pitabwire/frame/config"

	"github.com/lingocast/lingocast/internal/pipeline"
)

// ServiceConfig holds the full configuration for the lingocast service.
type ServiceConfig struct {
	config.ConfigurationDefault

	// Engine backends
	ASRBackend   string `envDefault:"whisperd"                  env:"ASR_BACKEND"`
	MTBackend    string `envDefault:"nllbserve"                 env:"MT_BACKEND"`
	AudioBackend string `envDefault:"tone"                      env:"AUDIO_BACKEND"`
	WhisperdURL  string `envDefault:"http://localhost:9000"     env:"WHISPERD_URL"`
	NLLBServeURL string `envDefault:"http://localhost:9001"     env:"NLLBSERVE_URL"`
	ModelName    string `envDefault:"large-v3"                  env:"MODEL_NAME"`

	// Audio capture
	SampleRate    int    `envDefault:"16000" env:"SAMPLE_RATE"`
	StreamURL     string `envDefault:""      env:"STREAM_URL"`
	StreamCodec   string `envDefault:"pcm16" env:"STREAM_CODEC"`
	ToneFrequency string `envDefault:"440"   env:"TONE_FREQUENCY"`

	// Segmentation
	SilenceMs         int    `envDefault:"700"   env:"SILENCE_MS"`
	MinSpeechMs       int    `envDefault:"200"   env:"MIN_SPEECH_MS"`
	MaxSegmentSec     int    `envDefault:"30"    env:"MAX_SEGMENT_SEC"`
	ReviseIntervalSec int    `envDefault:"3"     env:"REVISE_INTERVAL_SEC"`
	EnergyThreshold   string `envDefault:"0.015" env:"ENERGY_THRESHOLD"`

	// Pipeline
	SegmentQueueDepth    int `envDefault:"4"  env:"SEGMENT_QUEUE_DEPTH"`
	SubscriberQueueDepth int `envDefault:"64" env:"SUBSCRIBER_QUEUE_DEPTH"`
	StopGraceSec         int `envDefault:"5"  env:"STOP_GRACE_SEC"`

	// Languages
	LanguageDir string `envDefault:"./languages" env:"LANGUAGE_DIR"`

	// Translation circuit breaker
	CBFailThreshold   int `envDefault:"5"  env:"CB_FAILURE_THRESHOLD"`
	CBResetTimeoutSec int `envDefault:"60" env:"CB_RESET_TIMEOUT_SEC"`
}

// PipelineSettings converts the flat env fields into pipeline settings.
func (c *ServiceConfig) PipelineSettings() pipeline.Settings {
	s := pipeline.DefaultSettings()
	if c.SilenceMs > 0 {
		s.SilenceDur = time.Duration(c.SilenceMs) * time.Millisecond
	}
	if c.MinSpeechMs > 0 {
		s.MinSpeechDur = time.Duration(c.MinSpeechMs) * time.Millisecond
	}
	if c.MaxSegmentSec > 0 {
		s.MaxSegmentDur = time.Duration(c.MaxSegmentSec) * time.Second
	}
	if c.ReviseIntervalSec > 0 {
		s.ReviseInterval = time.Duration(c.ReviseIntervalSec) * time.Second
	}
	if c.SegmentQueueDepth > 0 {
		s.SegmentQueueDepth = c.SegmentQueueDepth
	}
	if c.StopGraceSec > 0 {
		s.StopGrace = time.Duration(c.StopGraceSec) * time.Second
	}
	if v := parseFloat(c.EnergyThreshold); v > 0 {
		s.EnergyThreshold = v
	}
	return s
}

// EngineConfig flattens the backend-relevant fields into the map the
// engine factories consume.
func (c *ServiceConfig) EngineConfig() map[string]string {
	return map[string]string{
		"whisperd_url":         c.WhisperdURL,
		"nllbserve_url":        c.NLLBServeURL,
		"model":                c.ModelName,
		"stream_url":           c.StreamURL,
		"stream_codec":         c.StreamCodec,
		"tone_frequency":       c.ToneFrequency,
		"cb_failure_threshold": strconv.Itoa(c.CBFailThreshold),
		"cb_reset_timeout_sec": strconv.Itoa(c.CBResetTimeoutSec),
	}
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
