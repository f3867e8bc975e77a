package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lingocast/lingocast/internal/speech/engine"
	"github.com/lingocast/lingocast/internal/speech/lang"
	"github.com/lingocast/lingocast/pkg/events"
)

func newTestController(source *fakeSource, rec engine.Recognizer, tr engine.Translator, settings Settings) (*Controller, *events.Broadcaster) {
	b := events.NewBroadcaster(nil, "", 256)
	c := NewController(settings, source, rec, tr, lang.NewCatalog(), nil, b,
		engine.ModelInfo{Name: "test-model"})
	return c, b
}

func startConfig(targets ...string) Config {
	return Config{SourceLanguage: "english", TargetLanguages: targets}
}

// drainUntil reads envelopes until pred is satisfied or the deadline
// passes, returning everything read.
func drainUntil(t *testing.T, sub *events.Subscription, timeout time.Duration, pred func([]events.Envelope) bool) []events.Envelope {
	t.Helper()
	deadline := time.After(timeout)
	var got []events.Envelope
	for {
		if pred(got) {
			return got
		}
		select {
		case env, ok := <-sub.C():
			if !ok {
				return got
			}
			got = append(got, env)
		case <-deadline:
			return got
		}
	}
}

func countByType(envs []events.Envelope, typ events.EventType) int {
	n := 0
	for _, env := range envs {
		if env.Type == typ {
			n++
		}
	}
	return n
}

func TestStartValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no targets", Config{}},
		{"unknown target", startConfig("klingon")},
		{"unknown source", Config{SourceLanguage: "klingon", TargetLanguages: []string{"spanish"}}},
		{"negative sample rate", Config{TargetLanguages: []string{"spanish"}, SampleRate: -1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestController(&fakeSource{stream: newFakeStream()}, &fakeRecognizer{}, &fakeTranslator{}, testSettings())
			err := c.Start(context.Background(), tc.cfg)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("err = %v, want ConfigError", err)
			}
			if c.Status().Running {
				t.Error("controller running after rejected start")
			}
		})
	}
}

func TestStartWhileRunningFails(t *testing.T) {
	c, _ := newTestController(&fakeSource{stream: newFakeStream()}, &fakeRecognizer{}, &fakeTranslator{}, testSettings())
	ctx := context.Background()

	if err := c.Start(ctx, startConfig("spanish")); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer c.Stop(ctx)

	if err := c.Start(ctx, startConfig("french")); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second start err = %v, want ErrAlreadyRunning", err)
	}
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	c, _ := newTestController(&fakeSource{stream: newFakeStream()}, &fakeRecognizer{}, &fakeTranslator{}, testSettings())
	if err := c.Stop(context.Background()); err != nil {
		t.Errorf("stop while idle: %v", err)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Errorf("second stop: %v", err)
	}
}

func TestStopDuringStartTearsDownRun(t *testing.T) {
	source := &fakeSource{
		stream:  newFakeStream(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	c, _ := newTestController(source, &fakeRecognizer{}, &fakeTranslator{}, testSettings())

	startErr := make(chan error, 1)
	go func() {
		startErr <- c.Start(context.Background(), startConfig("spanish"))
	}()
	<-source.entered

	stopErr := make(chan error, 1)
	go func() {
		stopErr <- c.Stop(context.Background())
	}()
	close(source.release)

	if err := <-startErr; err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := <-stopErr; err != nil {
		t.Fatalf("stop: %v", err)
	}
	if c.Status().Running {
		t.Error("controller still running after concurrent start/stop")
	}
}

func TestDeviceAcquisitionFailureLeavesIdle(t *testing.T) {
	source := &fakeSource{openErr: errors.New("device busy")}
	c, _ := newTestController(source, &fakeRecognizer{}, &fakeTranslator{}, testSettings())

	err := c.Start(context.Background(), startConfig("spanish"))
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("err = %v, want DeviceError", err)
	}
	if c.Status().Running {
		t.Error("controller running after failed device open")
	}
	// The slot must be reusable after the failure.
	source.openErr = nil
	source.stream = newFakeStream()
	if err := c.Start(context.Background(), startConfig("spanish")); err != nil {
		t.Fatalf("restart after failure: %v", err)
	}
	_ = c.Stop(context.Background())
}

func TestPipelineEndToEndTwoLanguages(t *testing.T) {
	stream := newFakeStream()
	c, b := newTestController(&fakeSource{stream: stream}, &fakeRecognizer{}, &fakeTranslator{}, testSettings())
	sub := b.Subscribe()
	defer b.Unsubscribe(sub.ID())
	ctx := context.Background()

	if err := c.Start(ctx, startConfig("spanish", "french")); err != nil {
		t.Fatalf("start: %v", err)
	}

	ts := time.Now()
	push := func(n int, amp float32) {
		for i := 0; i < n; i++ {
			stream.push(frame(amp, ts))
			ts = ts.Add(20 * time.Millisecond)
		}
	}
	push(10, 0.5)
	push(4, 0)

	envs := drainUntil(t, sub, 2*time.Second, func(got []events.Envelope) bool {
		return countByType(got, events.Translation) >= 2
	})
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if n := countByType(envs, events.Transcription); n < 1 {
		t.Errorf("transcription events = %d, want at least 1", n)
	}
	targets := map[string]bool{}
	for _, env := range envs {
		if env.Type != events.Translation {
			continue
		}
		var data events.TranslationData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("bad translation payload: %v", err)
		}
		targets[data.TargetLanguage] = true
		if data.SourceText == "" || data.TranslatedText == "" {
			t.Errorf("incomplete translation payload: %+v", data)
		}
	}
	if !targets["spanish"] || !targets["french"] {
		t.Errorf("translated targets = %v, want both spanish and french", targets)
	}

	if c.Status().Running {
		t.Error("controller still running after stop")
	}
}

func TestStopDiscardsInFlightTranslations(t *testing.T) {
	stream := newFakeStream()
	settings := testSettings()
	settings.StopGrace = 50 * time.Millisecond
	tr := &fakeTranslator{fn: func(ctx context.Context, call int, text, source, target string) (engine.Translation, error) {
		<-ctx.Done()
		return engine.Translation{}, ctx.Err()
	}}
	c, b := newTestController(&fakeSource{stream: stream}, &fakeRecognizer{}, tr, settings)
	sub := b.Subscribe()
	defer b.Unsubscribe(sub.ID())
	ctx := context.Background()

	if err := c.Start(ctx, startConfig("spanish")); err != nil {
		t.Fatalf("start: %v", err)
	}

	ts := time.Now()
	for i := 0; i < 10; i++ {
		stream.push(frame(0.5, ts))
		ts = ts.Add(20 * time.Millisecond)
	}
	for i := 0; i < 4; i++ {
		stream.push(frame(0, ts))
		ts = ts.Add(20 * time.Millisecond)
	}

	// Wait for the final hypothesis so a translation task is in flight.
	drainUntil(t, sub, 2*time.Second, func(got []events.Envelope) bool {
		return countByType(got, events.Transcription) >= 1
	})
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	// Nothing stale may surface after the run was cancelled.
	envs := drainUntil(t, sub, 200*time.Millisecond, func(got []events.Envelope) bool {
		return countByType(got, events.Translation) > 0
	})
	if n := countByType(envs, events.Translation); n != 0 {
		t.Errorf("translation events after stop = %d, want 0", n)
	}
	if c.Status().Running {
		t.Error("controller still running after stop")
	}
}

func TestDeviceFailureMidRunStopsPipeline(t *testing.T) {
	stream := newFakeStream()
	c, b := newTestController(&fakeSource{stream: stream}, &fakeRecognizer{}, &fakeTranslator{}, testSettings())
	sub := b.Subscribe()
	defer b.Unsubscribe(sub.ID())
	ctx := context.Background()

	if err := c.Start(ctx, startConfig("spanish")); err != nil {
		t.Fatalf("start: %v", err)
	}
	stream.fail(errors.New("device unplugged"))

	envs := drainUntil(t, sub, 2*time.Second, func(got []events.Envelope) bool {
		return countByType(got, events.Error) >= 1
	})
	if n := countByType(envs, events.Error); n < 1 {
		t.Fatal("no error event after device failure")
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.Status().Running {
		if time.Now().After(deadline) {
			t.Fatal("controller did not return to idle after device failure")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStatusSnapshot(t *testing.T) {
	stream := newFakeStream()
	c, _ := newTestController(&fakeSource{stream: stream}, &fakeRecognizer{}, &fakeTranslator{}, testSettings())
	ctx := context.Background()

	st := c.Status()
	if st.Running || st.Model != "test-model" {
		t.Errorf("idle status = %+v", st)
	}

	if err := c.Start(ctx, startConfig("spanish", "french")); err != nil {
		t.Fatalf("start: %v", err)
	}
	st = c.Status()
	if !st.Running {
		t.Error("status not running after start")
	}
	if st.AudioDevice != "fake" {
		t.Errorf("audio device = %q, want the open stream's device", st.AudioDevice)
	}
	if len(st.TargetLanguages) != 2 {
		t.Errorf("target languages = %v", st.TargetLanguages)
	}
	if st.StartedAt.IsZero() {
		t.Error("started_at not set while running")
	}
	_ = c.Stop(ctx)
}
