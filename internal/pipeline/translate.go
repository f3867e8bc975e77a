package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pitabwire/frame/workerpool"

	"github.com/lingocast/lingocast/internal/speech/engine"
	"github.com/lingocast/lingocast/internal/speech/lang"
)

// TranslationStage fans each finalized hypothesis out to every target
// language. Languages never wait on each other: each translation runs as
// its own pool task. A failed call is retried once; the second failure
// becomes an error event scoped to that utterance and language.
type TranslationStage struct {
	translator engine.Translator
	catalog    *lang.Catalog
	pool       workerpool.WorkerPool

	sourceLang string
	targets    []string

	onResult func(TranslationResult)
	onError  func(*EngineError, string)

	wg sync.WaitGroup
}

// NewTranslationStage resolves nothing yet; target names are validated by
// the controller before a run starts.
func NewTranslationStage(tr engine.Translator, catalog *lang.Catalog, pool workerpool.WorkerPool, sourceLang string, targets []string, onResult func(TranslationResult), onError func(*EngineError, string)) *TranslationStage {
	return &TranslationStage{
		translator: tr,
		catalog:    catalog,
		pool:       pool,
		sourceLang: sourceLang,
		targets:    targets,
		onResult:   onResult,
		onError:    onError,
	}
}

// Run consumes finalized hypotheses until the channel closes or ctx is
// cancelled.
func (t *TranslationStage) Run(ctx context.Context, finals <-chan TranscriptHypothesis) {
	for {
		select {
		case <-ctx.Done():
			return
		case hyp, ok := <-finals:
			if !ok {
				return
			}
			t.dispatch(ctx, hyp)
		}
	}
}

// Wait blocks until every in-flight translation task has finished, or
// grace elapses. It reports whether the stage drained in time.
func (t *TranslationStage) Wait(grace time.Duration) bool {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(grace):
		return false
	}
}

func (t *TranslationStage) dispatch(ctx context.Context, hyp TranscriptHypothesis) {
	sourceLang := hyp.Language
	if sourceLang == "" {
		sourceLang = t.sourceLang
	}
	sourceCode, _ := t.catalog.Resolve(sourceLang)

	for _, target := range t.targets {
		t.wg.Add(1)
		task := t.taskFor(ctx, hyp, sourceLang, sourceCode, target)
		if t.pool != nil {
			if err := t.pool.Submit(ctx, task); err != nil {
				slog.ErrorContext(ctx, "translation: submit task failed",
					slog.String("target", target), slog.String("error", err.Error()))
				t.wg.Done()
			}
		} else {
			go task()
		}
	}
}

func (t *TranslationStage) taskFor(ctx context.Context, hyp TranscriptHypothesis, sourceLang, sourceCode, target string) func() {
	return func() {
		defer t.wg.Done()

		targetCode, ok := t.catalog.Resolve(target)
		if !ok {
			t.fail(ctx, hyp, target, &EngineError{Stage: "translation", UtteranceID: hyp.UtteranceID, Err: lang.ErrUnknownLanguage})
			return
		}

		// Same language as the source needs no model round trip.
		if sourceCode != "" && sourceCode == targetCode {
			t.publish(ctx, TranslationResult{
				UtteranceID:    hyp.UtteranceID,
				SourceText:     hyp.Text,
				SourceLanguage: sourceLang,
				TargetLanguage: target,
				Text:           hyp.Text,
				Confidence:     1.0,
				Skipped:        true,
			})
			return
		}

		start := time.Now()
		res, err := t.translator.Translate(ctx, hyp.Text, sourceCode, targetCode)
		if err != nil && ctx.Err() == nil {
			res, err = t.translator.Translate(ctx, hyp.Text, sourceCode, targetCode)
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.fail(ctx, hyp, target, &EngineError{Stage: "translation", UtteranceID: hyp.UtteranceID, Err: err})
			return
		}

		elapsed := time.Since(start)
		if res.ProcessingTime > 0 {
			elapsed = res.ProcessingTime
		}
		t.publish(ctx, TranslationResult{
			UtteranceID:    hyp.UtteranceID,
			SourceText:     hyp.Text,
			SourceLanguage: sourceLang,
			TargetLanguage: target,
			Text:           res.Text,
			Confidence:     res.Confidence,
			ProcessingTime: elapsed,
		})
	}
}

// publish drops the result when the run is already cancelled so stale
// translations never surface after a stop.
func (t *TranslationStage) publish(ctx context.Context, res TranslationResult) {
	if ctx.Err() != nil {
		return
	}
	if t.onResult != nil {
		t.onResult(res)
	}
}

func (t *TranslationStage) fail(ctx context.Context, hyp TranscriptHypothesis, target string, err *EngineError) {
	if ctx.Err() != nil {
		return
	}
	slog.ErrorContext(ctx, "translation failed",
		slog.Uint64("utterance_id", hyp.UtteranceID),
		slog.String("target", target),
		slog.String("error", err.Error()))
	if t.onError != nil {
		t.onError(err, target)
	}
}
