package engine

import (
	"context"
	"time"
)

// Translation is the translation collaborator's output for one text and
// target language.
type Translation struct {
	Text           string
	Confidence     float64
	ProcessingTime time.Duration
}

// Translator translates text between languages identified by NLLB codes.
// Calls for different target languages are issued concurrently; an
// implementation must be safe for concurrent use.
type Translator interface {
	Translate(ctx context.Context, text, sourceCode, targetCode string) (Translation, error)
	Close() error
}
