package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Start when the pipeline is not idle.
	ErrAlreadyRunning = errors.New("pipeline already running")
)

// ConfigError reports an invalid start configuration. The pipeline stays
// idle when one is returned.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// DeviceError reports an audio source that could not be opened or failed
// mid-capture.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// EngineError reports a recognition or translation backend failure scoped
// to a single utterance. The pipeline keeps running when one occurs.
type EngineError struct {
	Stage       string
	UtteranceID uint64
	Err         error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s engine: utterance %d: %v", e.Stage, e.UtteranceID, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }
