package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lingocast/lingocast/internal/speech/engine"
)

// TranscriptionStage turns segment snapshots into transcript hypotheses.
// A single goroutine drains the segment queue so recognition calls never
// overlap and revisions for an utterance stay ordered. Finalized
// hypotheses are forwarded to translation.
type TranscriptionStage struct {
	recognizer engine.Recognizer
	language   string

	onHypothesis func(TranscriptHypothesis)
	onError      func(*EngineError)

	finals chan TranscriptHypothesis
	done   chan struct{}
}

// NewTranscriptionStage wires recognition between the segment queue and
// the translation stage. language is the recognition hint, empty for
// auto-detect.
func NewTranscriptionStage(rec engine.Recognizer, language string, onHypothesis func(TranscriptHypothesis), onError func(*EngineError)) *TranscriptionStage {
	return &TranscriptionStage{
		recognizer:   rec,
		language:     language,
		onHypothesis: onHypothesis,
		onError:      onError,
		finals:       make(chan TranscriptHypothesis, 16),
		done:         make(chan struct{}),
	}
}

// Finals is the stream of finalized hypotheses for translation. Closed
// when the stage drains.
func (t *TranscriptionStage) Finals() <-chan TranscriptHypothesis { return t.finals }

// Done is closed when the stage has drained its input.
func (t *TranscriptionStage) Done() <-chan struct{} { return t.done }

// Run consumes segments until the channel closes or ctx is cancelled.
func (t *TranscriptionStage) Run(ctx context.Context, segments <-chan Segment) {
	defer close(t.done)
	defer close(t.finals)

	revisions := map[uint64]int{}
	finalized := map[uint64]bool{}

	for {
		var seg Segment
		var ok bool
		select {
		case <-ctx.Done():
			return
		case seg, ok = <-segments:
			if !ok {
				return
			}
		}

		// Anything after the final snapshot of an utterance is stale.
		if finalized[seg.UtteranceID] {
			continue
		}

		hyp, err := t.recognize(ctx, seg)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			engErr := &EngineError{Stage: "transcription", UtteranceID: seg.UtteranceID, Err: err}
			slog.ErrorContext(ctx, "recognition failed",
				slog.Uint64("utterance_id", seg.UtteranceID),
				slog.String("error", err.Error()))
			if t.onError != nil {
				t.onError(engErr)
			}
			if seg.Final {
				finalized[seg.UtteranceID] = true
			}
			continue
		}

		if strings.TrimSpace(hyp.Text) == "" {
			if seg.Final {
				finalized[seg.UtteranceID] = true
			}
			continue
		}

		rev := revisions[seg.UtteranceID]
		revisions[seg.UtteranceID]++

		out := TranscriptHypothesis{
			UtteranceID:         seg.UtteranceID,
			Revision:            rev,
			Text:                hyp.Text,
			Language:            hyp.Language,
			LanguageProbability: hyp.LanguageProbability,
			Confidence:          hyp.Confidence,
			RealTimeFactor:      realTimeFactor(hyp.ProcessingTime, seg.Duration()),
			IsFinal:             seg.Final,
		}

		if t.onHypothesis != nil {
			t.onHypothesis(out)
		}
		if seg.Final {
			finalized[seg.UtteranceID] = true
			delete(revisions, seg.UtteranceID)
			select {
			case t.finals <- out:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (t *TranscriptionStage) recognize(ctx context.Context, seg Segment) (engine.Hypothesis, error) {
	return t.recognizer.Recognize(ctx, seg.Samples, seg.SampleRate, t.language)
}

func realTimeFactor(processing, audio time.Duration) float64 {
	if audio <= 0 {
		return 0
	}
	return processing.Seconds() / audio.Seconds()
}
