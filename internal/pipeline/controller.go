package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pitabwire/frame/workerpool"

	"github.com/lingocast/lingocast/internal/audio"
	"github.com/lingocast/lingocast/internal/speech/engine"
	"github.com/lingocast/lingocast/internal/speech/lang"
	"github.com/lingocast/lingocast/pkg/events"
)

// State is the controller lifecycle phase.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

const defaultSampleRate = 16000

// Controller owns the capture → transcription → translation pipeline and
// its lifecycle. All state transitions happen under a single mutex; the
// heavy lifting runs on goroutines scoped to one run.
type Controller struct {
	settings    Settings
	source      audio.Source
	recognizer  engine.Recognizer
	translator  engine.Translator
	catalog     *lang.Catalog
	pool        workerpool.WorkerPool
	broadcaster *events.Broadcaster
	model       engine.ModelInfo

	mu        sync.Mutex
	cond      *sync.Cond // signals Starting resolving to Running or Idle
	state     State
	cfg       Config
	startedAt time.Time
	run       *run

	meter *audio.Meter
}

// run bundles the resources of one pipeline run so stop can tear them
// down without racing a subsequent start.
type run struct {
	ctx    context.Context
	cancel context.CancelFunc

	stream audio.Stream
	segbuf *SegmentBuffer
	trans  *TranscriptionStage
	xlate  *TranslationStage

	captureDone chan struct{}
}

// NewController wires the pipeline collaborators. pool may be nil, in
// which case translation tasks run on plain goroutines.
func NewController(settings Settings, source audio.Source, rec engine.Recognizer, tr engine.Translator, catalog *lang.Catalog, pool workerpool.WorkerPool, broadcaster *events.Broadcaster, model engine.ModelInfo) *Controller {
	c := &Controller{
		settings:    settings,
		source:      source,
		recognizer:  rec,
		translator:  tr,
		catalog:     catalog,
		pool:        pool,
		broadcaster: broadcaster,
		model:       model,
		state:       StateIdle,
		meter:       audio.NewMeter(0),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Start validates cfg, acquires the audio device and launches the run.
// It returns ErrAlreadyRunning unless the controller is idle, and leaves
// no partial state behind on any failure.
func (c *Controller) Start(ctx context.Context, cfg Config) error {
	if err := c.validate(&cfg); err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.state = StateStarting
	c.mu.Unlock()

	deviceIndex := -1
	if cfg.DeviceIndex != nil {
		deviceIndex = *cfg.DeviceIndex
	}

	// The run outlives the start request, so its context must not inherit
	// the caller's cancellation.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := c.source.Open(runCtx, deviceIndex, cfg.SampleRate)
	if err != nil {
		cancel()
		c.mu.Lock()
		c.state = StateIdle
		c.cond.Broadcast()
		c.mu.Unlock()
		return &DeviceError{Device: fmt.Sprintf("%d", deviceIndex), Err: err}
	}

	r := &run{
		ctx:         runCtx,
		cancel:      cancel,
		stream:      stream,
		captureDone: make(chan struct{}),
	}
	r.segbuf = NewSegmentBuffer(c.settings, cfg.SampleRate, func(dropped int) {
		c.publishStatus(runCtx, fmt.Sprintf("segment queue overflow, dropped %d snapshot(s)", dropped))
	})
	r.trans = NewTranscriptionStage(c.recognizer, cfg.SourceLanguage, c.onHypothesis(runCtx), c.onStageError(runCtx))
	r.xlate = NewTranslationStage(c.translator, c.catalog, c.pool, cfg.SourceLanguage, cfg.TargetLanguages,
		c.onTranslation(runCtx), c.onTranslationError(runCtx))

	c.mu.Lock()
	c.state = StateRunning
	c.cfg = cfg
	c.startedAt = time.Now()
	c.run = r
	c.meter.Reset()
	c.cond.Broadcast()
	c.mu.Unlock()

	go c.capture(r)
	go r.trans.Run(runCtx, r.segbuf.Segments())
	go r.xlate.Run(runCtx, r.trans.Finals())

	c.publishStatus(ctx, "")
	slog.InfoContext(ctx, "pipeline started",
		slog.String("source_language", cfg.SourceLanguage),
		slog.Any("target_languages", cfg.TargetLanguages),
		slog.String("device", stream.Device().Name))
	return nil
}

// Stop tears the active run down. Calling it while idle is a no-op. The
// trailing open segment is flushed as final; in-flight work gets the
// configured grace period to drain before the run context is cancelled
// and stragglers are discarded.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	// A stop racing a start waits for the start to settle so the run it
	// produced (if any) is torn down rather than orphaned.
	for c.state == StateStarting {
		c.cond.Wait()
	}
	if c.state != StateRunning {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopping
	r := c.run
	c.mu.Unlock()

	// Closing the source ends the capture loop, which flushes the open
	// segment and closes the snapshot queue behind it.
	_ = r.stream.Close()
	<-r.captureDone

	deadline := time.Now().Add(c.settings.StopGrace)
	select {
	case <-r.trans.Done():
	case <-time.After(time.Until(deadline)):
		slog.WarnContext(ctx, "stop: transcription did not drain within grace period")
	}
	if remaining := time.Until(deadline); remaining > 0 {
		if !r.xlate.Wait(remaining) {
			slog.WarnContext(ctx, "stop: translations did not drain within grace period")
		}
	}
	r.cancel()

	c.mu.Lock()
	c.state = StateIdle
	c.run = nil
	c.meter.Reset()
	c.mu.Unlock()

	c.publishStatus(ctx, "")
	slog.InfoContext(ctx, "pipeline stopped")
	return nil
}

// Status returns a snapshot without touching the run goroutines.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Running:         c.state == StateRunning,
		SourceLanguage:  c.cfg.SourceLanguage,
		TargetLanguages: append([]string(nil), c.cfg.TargetLanguages...),
		Model:           c.model.Name,
	}
	if c.cfg.Model != "" {
		st.Model = c.cfg.Model
	}
	if st.Running {
		st.StartedAt = c.startedAt
		st.AudioLevel = c.meter.Level()
		if c.run != nil {
			st.AudioDevice = c.run.stream.Device().Name
		}
	}
	return st
}

// Devices enumerates capture devices from the audio backend.
func (c *Controller) Devices(ctx context.Context) ([]audio.Device, error) {
	return c.source.Devices(ctx)
}

func (c *Controller) validate(cfg *Config) error {
	if len(cfg.TargetLanguages) == 0 {
		return &ConfigError{Field: "target_languages", Reason: "at least one target language required"}
	}
	for _, target := range cfg.TargetLanguages {
		if !c.catalog.Has(target) {
			return &ConfigError{Field: "target_languages", Reason: fmt.Sprintf("unknown language %q", target)}
		}
	}
	if cfg.SourceLanguage != "" && !c.catalog.Has(cfg.SourceLanguage) {
		return &ConfigError{Field: "source_language", Reason: fmt.Sprintf("unknown language %q", cfg.SourceLanguage)}
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.SampleRate < 0 {
		return &ConfigError{Field: "sample_rate", Reason: "must be positive"}
	}
	return nil
}

func (c *Controller) capture(r *run) {
	defer close(r.captureDone)

	for f := range r.stream.Frames() {
		c.meter.Push(f)
		r.segbuf.Push(f)
	}
	r.segbuf.Flush()
	r.segbuf.Close()

	c.mu.Lock()
	stopping := c.state != StateRunning
	c.mu.Unlock()
	if err := r.stream.Err(); err != nil && r.ctx.Err() == nil && !stopping {
		devErr := &DeviceError{Device: r.stream.Device().Name, Err: err}
		slog.Error("audio stream failed", slog.String("error", devErr.Error()))
		c.publishError(r.ctx, devErr.Error(), 0, "")
		// The run cannot continue without audio. Stop on a fresh goroutine
		// since Stop waits on captureDone.
		go func() {
			_ = c.Stop(context.Background())
		}()
	}
}

func (c *Controller) onHypothesis(ctx context.Context) func(TranscriptHypothesis) {
	return func(h TranscriptHypothesis) {
		if ctx.Err() != nil {
			return
		}
		_ = c.broadcaster.Publish(ctx, "transcription", events.Transcription, events.TranscriptionData{
			UtteranceID:         h.UtteranceID,
			Text:                h.Text,
			Language:            h.Language,
			Confidence:          h.Confidence,
			LanguageProbability: h.LanguageProbability,
			RealTimeFactor:      h.RealTimeFactor,
			Timestamp:           float64(time.Now().UnixMilli()) / 1000.0,
			IsCorrection:        h.Revision > 0,
		})
	}
}

func (c *Controller) onTranslation(ctx context.Context) func(TranslationResult) {
	return func(res TranslationResult) {
		if ctx.Err() != nil {
			return
		}
		_ = c.broadcaster.Publish(ctx, "translation", events.Translation, events.TranslationData{
			UtteranceID:    res.UtteranceID,
			SourceText:     res.SourceText,
			TranslatedText: res.Text,
			SourceLanguage: res.SourceLanguage,
			TargetLanguage: res.TargetLanguage,
			Confidence:     res.Confidence,
			ProcessingTime: res.ProcessingTime.Seconds(),
			Skipped:        res.Skipped,
		})
	}
}

func (c *Controller) onStageError(ctx context.Context) func(*EngineError) {
	return func(err *EngineError) {
		c.publishError(ctx, err.Error(), err.UtteranceID, "")
	}
}

func (c *Controller) onTranslationError(ctx context.Context) func(*EngineError, string) {
	return func(err *EngineError, target string) {
		c.publishError(ctx, err.Error(), err.UtteranceID, target)
	}
}

func (c *Controller) publishError(ctx context.Context, msg string, utteranceID uint64, target string) {
	if ctx.Err() != nil {
		return
	}
	_ = c.broadcaster.Publish(ctx, "pipeline", events.Error, events.ErrorData{
		Message:        msg,
		UtteranceID:    utteranceID,
		TargetLanguage: target,
	})
}

func (c *Controller) publishStatus(ctx context.Context, warning string) {
	_ = c.broadcaster.Publish(ctx, "pipeline", events.Status, statusData(c.Status(), warning))
}

// StatusData renders the current status as an event payload, used by the
// gateway for the initial push to new subscribers.
func (c *Controller) StatusData() events.StatusData {
	return statusData(c.Status(), "")
}

func statusData(st Status, warning string) events.StatusData {
	return events.StatusData{
		IsRunning:       st.Running,
		SourceLanguage:  st.SourceLanguage,
		TargetLanguages: st.TargetLanguages,
		AudioDevice:     st.AudioDevice,
		Model:           st.Model,
		AudioLevel:      st.AudioLevel,
		Warning:         warning,
	}
}
