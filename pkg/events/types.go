package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event flowing through the system.
type EventType string

const (
	Transcription EventType = "transcription"
	Translation   EventType = "translation"
	Status        EventType = "status"
	Error         EventType = "error"
)

// Envelope is the standard event wrapper delivered to subscribers.
type Envelope struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Source    string          `json:"source,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// TranscriptionData is the payload for transcription events. IsCorrection
// means the text replaces what was previously shown for the same utterance,
// wholesale, not appended.
type TranscriptionData struct {
	UtteranceID         uint64  `json:"utterance_id"`
	Text                string  `json:"text"`
	Language            string  `json:"language"`
	Confidence          float64 `json:"confidence"`
	LanguageProbability float64 `json:"language_probability"`
	RealTimeFactor      float64 `json:"real_time_factor"`
	Timestamp           float64 `json:"timestamp"`
	IsCorrection        bool    `json:"is_correction"`
}

// TranslationData is the payload for translation events.
type TranslationData struct {
	UtteranceID    uint64  `json:"utterance_id"`
	SourceText     string  `json:"source_text"`
	TranslatedText string  `json:"translated_text"`
	SourceLanguage string  `json:"source_language"`
	TargetLanguage string  `json:"target_language"`
	Confidence     float64 `json:"confidence"`
	ProcessingTime float64 `json:"processing_time"`
	Skipped        bool    `json:"skipped,omitempty"`
}

// StatusData is the payload for status events.
type StatusData struct {
	IsRunning       bool     `json:"is_running"`
	SourceLanguage  string   `json:"source_language"`
	TargetLanguages []string `json:"target_languages"`
	AudioDevice     string   `json:"audio_device"`
	Model           string   `json:"model,omitempty"`
	AudioLevel      float64  `json:"audio_level,omitempty"`
	Warning         string   `json:"warning,omitempty"`
}

// DroppedData is the payload for the backpressure marker a subscriber
// receives once its queue accepts events again after overflow drops.
type DroppedData struct {
	EventsDropped int `json:"events_dropped"`
}

// ErrorData is the payload for error events. UtteranceID and TargetLanguage
// scope the failure when it belongs to a single utterance or language pair.
type ErrorData struct {
	Message        string `json:"message"`
	UtteranceID    uint64 `json:"utterance_id,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
}
