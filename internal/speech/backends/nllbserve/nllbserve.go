// Package nllbserve is a Translator client for an NLLB serving endpoint,
// guarded by a circuit breaker so a dead endpoint fails fast instead of
// stacking up timed-out fan-out tasks.
package nllbserve

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/lingocast/lingocast/internal/speech/backends/restutil"
	"github.com/lingocast/lingocast/internal/speech/engine"
	"github.com/lingocast/lingocast/internal/speech/registry"
)

func init() {
	registry.Translators.Register("nllbserve", func(config map[string]string) (engine.Translator, error) {
		baseURL := config["nllbserve_url"]
		if baseURL == "" {
			return nil, fmt.Errorf("nllbserve translator requires nllbserve_url")
		}

		failThreshold := 5
		if s := config["cb_failure_threshold"]; s != "" {
			if v, err := strconv.Atoi(s); err == nil {
				failThreshold = v
			}
		}
		resetTimeout := 60 * time.Second
		if s := config["cb_reset_timeout_sec"]; s != "" {
			if v, err := strconv.Atoi(s); err == nil {
				resetTimeout = time.Duration(v) * time.Second
			}
		}

		return &Translator{
			baseURL: baseURL,
			apiKey:  config["api_key"],
			breaker: newCircuitBreaker(breakerConfig{
				FailureThreshold: failThreshold,
				ResetTimeout:     resetTimeout,
			}),
		}, nil
	})
}

type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	NumBeams   int    `json:"num_beams"`
}

type translateResponse struct {
	TranslatedText string  `json:"translated_text"`
	Confidence     float64 `json:"confidence"`
}

// Translator implements engine.Translator over the NLLB serving REST API.
type Translator struct {
	baseURL string
	apiKey  string
	breaker *circuitBreaker
}

func (t *Translator) Translate(ctx context.Context, text, sourceCode, targetCode string) (engine.Translation, error) {
	if !t.breaker.Allow() {
		return engine.Translation{}, fmt.Errorf("nllbserve: circuit open for %s", t.baseURL)
	}

	req := translateRequest{
		Text:       text,
		SourceLang: sourceCode,
		TargetLang: targetCode,
		NumBeams:   4,
	}
	headers := map[string]string{}
	if t.apiKey != "" {
		headers["Authorization"] = "Bearer " + t.apiKey
	}

	start := time.Now()
	var resp translateResponse
	if err := restutil.DoJSON(ctx, "POST", t.baseURL+"/v1/translate", headers, req, &resp); err != nil {
		t.breaker.RecordFailure()
		return engine.Translation{}, fmt.Errorf("nllbserve: %w", err)
	}
	t.breaker.RecordSuccess()

	return engine.Translation{
		Text:           resp.TranslatedText,
		Confidence:     resp.Confidence,
		ProcessingTime: time.Since(start),
	}, nil
}

func (t *Translator) Close() error { return nil }
