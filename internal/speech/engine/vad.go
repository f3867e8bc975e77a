package engine

import (
	"math"
	"time"
)

// VADConfig holds voice activity detection parameters.
type VADConfig struct {
	EnergyThreshold float64       // RMS energy threshold for speech, samples in [-1, 1]
	SpeechMinDur    time.Duration // Minimum duration to confirm speech start
	SilenceMinDur   time.Duration // Minimum trailing silence to confirm speech end
}

// DefaultVADConfig returns sensible defaults for 16kHz speech audio.
func DefaultVADConfig() VADConfig {
	return VADConfig{
		EnergyThreshold: 0.015,
		SpeechMinDur:    200 * time.Millisecond,
		SilenceMinDur:   700 * time.Millisecond,
	}
}

// VAD performs energy-based voice activity detection on float32 PCM audio.
type VAD struct {
	config     VADConfig
	isSpeaking bool
	speechDur  time.Duration
	silenceDur time.Duration
}

// NewVAD creates a new voice activity detector.
func NewVAD(cfg VADConfig) *VAD {
	return &VAD{config: cfg}
}

// VADEvent indicates a speech boundary.
type VADEvent int

const (
	VADNone VADEvent = iota
	VADSpeechStart
	VADSpeechEnd
)

// ProcessFrame analyzes one frame of mono samples and returns a VAD event.
func (v *VAD) ProcessFrame(samples []float32, sampleRate int) VADEvent {
	if sampleRate <= 0 || len(samples) == 0 {
		return VADNone
	}
	frameDur := time.Duration(len(samples)) * time.Second / time.Duration(sampleRate)

	if rmsEnergy(samples) >= v.config.EnergyThreshold {
		v.silenceDur = 0
		v.speechDur += frameDur
		if !v.isSpeaking && v.speechDur >= v.config.SpeechMinDur {
			v.isSpeaking = true
			return VADSpeechStart
		}
	} else {
		v.speechDur = 0
		v.silenceDur += frameDur
		if v.isSpeaking && v.silenceDur >= v.config.SilenceMinDur {
			v.isSpeaking = false
			return VADSpeechEnd
		}
	}

	return VADNone
}

// IsSpeaking returns whether speech is currently detected.
func (v *VAD) IsSpeaking() bool {
	return v.isSpeaking
}

// Reset clears the VAD state.
func (v *VAD) Reset() {
	v.isSpeaking = false
	v.speechDur = 0
	v.silenceDur = 0
}

// rmsEnergy computes the root-mean-square energy of float32 mono audio.
func rmsEnergy(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		sumSquares += float64(s) * float64(s)
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}
