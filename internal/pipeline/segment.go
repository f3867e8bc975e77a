package pipeline

import (
	"time"

	"github.com/lingocast/lingocast/internal/audio"
	"github.com/lingocast/lingocast/internal/speech/engine"
)

// Segment is a snapshot of one utterance's audio handed to recognition.
// Drafts for a growing utterance share the UtteranceID; the last snapshot
// carries Final.
type Segment struct {
	UtteranceID uint64
	Samples     []float32
	SampleRate  int
	Start       time.Time
	End         time.Time
	Final       bool
}

// Duration reports the audio length of the snapshot.
func (s Segment) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(s.Samples)) * time.Second / time.Duration(s.SampleRate)
}

// OverflowFunc is notified when the segment queue drops a queued snapshot
// to make room for a newer one.
type OverflowFunc func(dropped int)

// SegmentBuffer slices a continuous audio stream into utterances using
// energy based voice activity detection. Segments close on trailing
// silence, on the max duration cap, or on an explicit Flush. Snapshots go
// out on a bounded queue; when the consumer lags, the oldest queued
// snapshot is dropped rather than blocking capture.
//
// Push and Flush must be called from a single goroutine.
type SegmentBuffer struct {
	settings   Settings
	vad        *engine.VAD
	out        chan Segment
	onOverflow OverflowFunc

	nextID     uint64
	active     bool
	id         uint64
	samples    []float32
	sampleRate int
	start      time.Time
	sinceDraft int // samples accumulated since the last emitted snapshot

	// pre-roll keeps recent audio so a segment includes the speech onset
	// the detector needed to confirm.
	preroll    []float32
	prerollMax int
}

// NewSegmentBuffer builds a buffer for one pipeline run. onOverflow may be
// nil.
func NewSegmentBuffer(settings Settings, sampleRate int, onOverflow OverflowFunc) *SegmentBuffer {
	depth := settings.SegmentQueueDepth
	if depth <= 0 {
		depth = DefaultSettings().SegmentQueueDepth
	}
	vad := engine.NewVAD(engine.VADConfig{
		EnergyThreshold: settings.EnergyThreshold,
		SpeechMinDur:    settings.MinSpeechDur,
		SilenceMinDur:   settings.SilenceDur,
	})
	prerollMax := int(2 * settings.MinSpeechDur.Seconds() * float64(sampleRate))
	if prerollMax <= 0 {
		prerollMax = sampleRate / 2
	}
	return &SegmentBuffer{
		settings:   settings,
		vad:        vad,
		out:        make(chan Segment, depth),
		onOverflow: onOverflow,
		sampleRate: sampleRate,
		prerollMax: prerollMax,
	}
}

// Segments is the consumer side of the bounded queue. It is closed by
// Close.
func (b *SegmentBuffer) Segments() <-chan Segment { return b.out }

// Push feeds one captured frame through detection and the open segment,
// if any.
func (b *SegmentBuffer) Push(f audio.Frame) {
	ev := b.vad.ProcessFrame(f.Samples, f.SampleRate)

	if !b.active {
		b.pushPreroll(f.Samples)
		if ev == engine.VADSpeechStart {
			b.open(f.Timestamp)
		}
		return
	}

	b.samples = append(b.samples, f.Samples...)
	b.sinceDraft += len(f.Samples)

	switch {
	case ev == engine.VADSpeechEnd:
		b.closeSegment()
	case b.duration() >= b.settings.MaxSegmentDur:
		// Hard cap: finalize and keep capturing into a fresh segment so
		// long monologues still produce non-overlapping utterances.
		stillSpeaking := b.vad.IsSpeaking()
		at := b.start.Add(b.duration())
		b.closeSegment()
		if stillSpeaking {
			b.open(at)
		}
	case b.sinceDraft >= b.draftStride():
		b.emit(false)
		b.sinceDraft = 0
	}
}

// Flush finalizes any open segment regardless of detector state. Used
// during stop so trailing speech is not lost.
func (b *SegmentBuffer) Flush() {
	if b.active {
		b.closeSegment()
	}
	b.vad.Reset()
	b.preroll = b.preroll[:0]
}

// Close closes the snapshot queue. Call after the last Push or Flush.
func (b *SegmentBuffer) Close() { close(b.out) }

func (b *SegmentBuffer) open(at time.Time) {
	b.nextID++
	b.id = b.nextID
	b.active = true
	b.start = at.Add(-time.Duration(len(b.preroll)) * time.Second / time.Duration(b.sampleRate))
	b.samples = append(b.samples[:0], b.preroll...)
	b.sinceDraft = len(b.samples)
	b.preroll = b.preroll[:0]
}

func (b *SegmentBuffer) closeSegment() {
	if len(b.samples) > 0 {
		b.emit(true)
	}
	b.active = false
	b.samples = b.samples[:0]
	b.sinceDraft = 0
}

func (b *SegmentBuffer) emit(final bool) {
	snap := Segment{
		UtteranceID: b.id,
		Samples:     append([]float32(nil), b.samples...),
		SampleRate:  b.sampleRate,
		Start:       b.start,
		Final:       final,
	}
	snap.End = b.start.Add(snap.Duration())

	select {
	case b.out <- snap:
		return
	default:
	}
	// Queue full: shed the oldest queued snapshot. The newest audio wins
	// since a later snapshot of the same utterance supersedes it anyway.
	select {
	case <-b.out:
		if b.onOverflow != nil {
			b.onOverflow(1)
		}
	default:
	}
	select {
	case b.out <- snap:
	default:
	}
}

func (b *SegmentBuffer) pushPreroll(samples []float32) {
	b.preroll = append(b.preroll, samples...)
	if over := len(b.preroll) - b.prerollMax; over > 0 {
		b.preroll = append(b.preroll[:0], b.preroll[over:]...)
	}
}

func (b *SegmentBuffer) duration() time.Duration {
	return time.Duration(len(b.samples)) * time.Second / time.Duration(b.sampleRate)
}

func (b *SegmentBuffer) draftStride() int {
	stride := int(b.settings.ReviseInterval.Seconds() * float64(b.sampleRate))
	if stride <= 0 {
		stride = b.sampleRate * 3
	}
	return stride
}
