package engine

import (
	"context"
	"time"
)

// Hypothesis is one recognition attempt's output for an audio segment.
type Hypothesis struct {
	Text                string
	Language            string
	LanguageProbability float64
	Confidence          float64
	ProcessingTime      time.Duration
}

// ModelInfo describes the model a recognizer is serving.
type ModelInfo struct {
	Name   string
	Device string
}

// Recognizer is the speech-recognition collaborator. It may be invoked
// repeatedly over growing audio for incremental hypotheses; calls for one
// pipeline run are never issued concurrently.
type Recognizer interface {
	// Recognize transcribes the given mono samples. language is a hint;
	// empty means auto-detect.
	Recognize(ctx context.Context, samples []float32, sampleRate int, language string) (Hypothesis, error)

	ModelInfo() ModelInfo
	Close() error
}
