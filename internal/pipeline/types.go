package pipeline

import "time"

// Utterance is one continuous speech segment, identified by a monotonic id
// assigned when its segment closes. Immutable once created.
type Utterance struct {
	ID    uint64
	Start time.Time
	End   time.Time
}

// TranscriptHypothesis is one recognition attempt's output for an
// utterance. Revisions for a given utterance are strictly increasing and
// at most one carries IsFinal.
type TranscriptHypothesis struct {
	UtteranceID         uint64
	Revision            int
	Text                string
	Language            string
	LanguageProbability float64
	Confidence          float64
	RealTimeFactor      float64
	IsFinal             bool
}

// TranslationResult is one target language's translation of a finalized
// hypothesis.
type TranslationResult struct {
	UtteranceID    uint64
	SourceText     string
	SourceLanguage string
	TargetLanguage string
	Text           string
	Confidence     float64
	ProcessingTime time.Duration
	Skipped        bool
}

// Config is the immutable configuration for one pipeline run.
type Config struct {
	SourceLanguage  string   `json:"source_language,omitempty"`
	TargetLanguages []string `json:"target_languages"`
	Model           string   `json:"model,omitempty"`
	DeviceIndex     *int     `json:"device_index,omitempty"`
	SampleRate      int      `json:"sample_rate,omitempty"`
}

// Status is the externally visible pipeline state snapshot.
type Status struct {
	Running         bool      `json:"is_running"`
	SourceLanguage  string    `json:"source_language"`
	TargetLanguages []string  `json:"target_languages"`
	Model           string    `json:"model,omitempty"`
	AudioDevice     string    `json:"audio_device,omitempty"`
	AudioLevel      float64   `json:"audio_level,omitempty"`
	StartedAt       time.Time `json:"started_at,omitzero"`
}

// Settings are the operator-tuned runtime parameters shared by every run,
// as opposed to Config which callers supply per start.
type Settings struct {
	SilenceDur        time.Duration // trailing silence that closes a segment
	MinSpeechDur      time.Duration // speech needed before a segment opens
	MaxSegmentDur     time.Duration // hard cap on segment length
	ReviseInterval    time.Duration // new audio accumulated between draft revisions
	EnergyThreshold   float64       // VAD speech energy threshold
	SegmentQueueDepth int           // bounded handoff to recognition
	StopGrace         time.Duration // wait for in-flight work during stop
}

// DefaultSettings mirrors the tuning the recognition engine works best
// with at 16kHz.
func DefaultSettings() Settings {
	return Settings{
		SilenceDur:        700 * time.Millisecond,
		MinSpeechDur:      200 * time.Millisecond,
		MaxSegmentDur:     30 * time.Second,
		ReviseInterval:    3 * time.Second,
		EnergyThreshold:   0.015,
		SegmentQueueDepth: 4,
		StopGrace:         5 * time.Second,
	}
}
