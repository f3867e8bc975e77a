// Package registry holds the global engine backend registries. Backends
// register themselves via init() and are selected by name through config.
package registry

import (
	"github.com/lingocast/lingocast/internal/registry"
	"github.com/lingocast/lingocast/internal/speech/engine"
)

// Recognizers is the global speech-recognition backend registry.
var Recognizers = registry.New[engine.Recognizer]()

// Translators is the global translation backend registry.
var Translators = registry.New[engine.Translator]()
