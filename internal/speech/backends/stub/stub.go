// Package stub registers in-process engine backends that need no external
// serving endpoint. They produce deterministic placeholder output and
// exist for development and wiring tests.
package stub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lingocast/lingocast/internal/speech/engine"
	"github.com/lingocast/lingocast/internal/speech/registry"
)

func init() {
	registry.Recognizers.Register("stub", func(config map[string]string) (engine.Recognizer, error) {
		lang := config["language"]
		if lang == "" {
			lang = "en"
		}
		return &Recognizer{language: lang, model: config["model"]}, nil
	})
	registry.Translators.Register("stub", func(config map[string]string) (engine.Translator, error) {
		return &Translator{}, nil
	})
}

// Recognizer reports the duration of the audio it was handed as text.
type Recognizer struct {
	language string
	model    string
}

func (r *Recognizer) Recognize(_ context.Context, samples []float32, sampleRate int, language string) (engine.Hypothesis, error) {
	if language == "" {
		language = r.language
	}
	dur := time.Duration(len(samples)) * time.Second / time.Duration(sampleRate)
	return engine.Hypothesis{
		Text:                fmt.Sprintf("[%.1fs of audio]", dur.Seconds()),
		Language:            language,
		LanguageProbability: 1.0,
		Confidence:          0.5,
		ProcessingTime:      time.Millisecond,
	}, nil
}

func (r *Recognizer) ModelInfo() engine.ModelInfo {
	return engine.ModelInfo{Name: "stub", Device: "cpu"}
}

func (r *Recognizer) Close() error { return nil }

// Translator upper-cases the target code in front of the source text.
type Translator struct{}

func (t *Translator) Translate(_ context.Context, text, _, targetCode string) (engine.Translation, error) {
	return engine.Translation{
		Text:           fmt.Sprintf("[%s] %s", strings.ToUpper(targetCode), text),
		Confidence:     0.95,
		ProcessingTime: time.Millisecond,
	}, nil
}

func (t *Translator) Close() error { return nil }
