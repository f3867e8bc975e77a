package pipeline

import (
	"testing"
	"time"

	"github.com/lingocast/lingocast/internal/audio"
)

func collectSegments(t *testing.T, buf *SegmentBuffer) []Segment {
	t.Helper()
	var out []Segment
	for seg := range buf.Segments() {
		out = append(out, seg)
	}
	return out
}

func TestSegmentClosesOnTrailingSilence(t *testing.T) {
	buf := NewSegmentBuffer(testSettings(), testRate, nil)

	ts := time.Now()
	var frames []audio.Frame
	frames = frameSeq(frames, 10, 0.5, &ts)
	frames = frameSeq(frames, 4, 0, &ts)
	for _, f := range frames {
		buf.Push(f)
	}
	buf.Close()

	segs := collectSegments(t, buf)
	if len(segs) != 1 {
		t.Fatalf("segments = %d, want 1", len(segs))
	}
	seg := segs[0]
	if !seg.Final {
		t.Error("segment not marked final")
	}
	if seg.UtteranceID != 1 {
		t.Errorf("utterance id = %d, want 1", seg.UtteranceID)
	}
	if seg.Duration() < 150*time.Millisecond {
		t.Errorf("duration = %v, want at least 150ms of speech", seg.Duration())
	}
}

func TestUtteranceIDsMonotonicAndNonOverlapping(t *testing.T) {
	buf := NewSegmentBuffer(testSettings(), testRate, nil)

	ts := time.Now()
	var frames []audio.Frame
	frames = frameSeq(frames, 10, 0.5, &ts)
	frames = frameSeq(frames, 8, 0, &ts)
	frames = frameSeq(frames, 10, 0.5, &ts)
	frames = frameSeq(frames, 8, 0, &ts)
	for _, f := range frames {
		buf.Push(f)
	}
	buf.Close()

	segs := collectSegments(t, buf)
	if len(segs) != 2 {
		t.Fatalf("segments = %d, want 2", len(segs))
	}
	if segs[0].UtteranceID != 1 || segs[1].UtteranceID != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", segs[0].UtteranceID, segs[1].UtteranceID)
	}
	if segs[1].Start.Before(segs[0].End) {
		t.Errorf("segments overlap: first ends %v, second starts %v", segs[0].End, segs[1].Start)
	}
}

func TestMaxDurationCapSplitsLongSpeech(t *testing.T) {
	settings := testSettings()
	settings.MaxSegmentDur = 400 * time.Millisecond
	buf := NewSegmentBuffer(settings, testRate, nil)

	ts := time.Now()
	var frames []audio.Frame
	frames = frameSeq(frames, 40, 0.5, &ts) // 800ms of continuous speech
	frames = frameSeq(frames, 4, 0, &ts)
	for _, f := range frames {
		buf.Push(f)
	}
	buf.Close()

	segs := collectSegments(t, buf)
	if len(segs) < 2 {
		t.Fatalf("segments = %d, want at least 2 from a forced split", len(segs))
	}
	for i, seg := range segs {
		if !seg.Final {
			t.Errorf("segment %d not final", i)
		}
		if seg.Duration() > settings.MaxSegmentDur+50*time.Millisecond {
			t.Errorf("segment %d duration %v exceeds cap", i, seg.Duration())
		}
	}
	if segs[0].UtteranceID == segs[1].UtteranceID {
		t.Error("forced split reused the utterance id")
	}
}

func TestDraftSnapshotsPrecedeFinal(t *testing.T) {
	settings := testSettings()
	settings.ReviseInterval = 100 * time.Millisecond
	buf := NewSegmentBuffer(settings, testRate, nil)

	ts := time.Now()
	var frames []audio.Frame
	frames = frameSeq(frames, 20, 0.5, &ts) // 400ms of speech
	frames = frameSeq(frames, 4, 0, &ts)
	for _, f := range frames {
		buf.Push(f)
	}
	buf.Close()

	segs := collectSegments(t, buf)
	var drafts, finals int
	for _, seg := range segs {
		if seg.UtteranceID != 1 {
			t.Errorf("unexpected utterance id %d", seg.UtteranceID)
		}
		if seg.Final {
			finals++
		} else {
			drafts++
		}
	}
	if drafts == 0 {
		t.Error("no draft snapshots emitted for a long utterance")
	}
	if finals != 1 {
		t.Errorf("finals = %d, want exactly 1", finals)
	}
	last := segs[len(segs)-1]
	if !last.Final {
		t.Error("final snapshot is not the last emitted")
	}
	for _, seg := range segs[:len(segs)-1] {
		if len(seg.Samples) > len(last.Samples) {
			t.Error("draft snapshot longer than the final")
		}
	}
}

func TestOverflowDropsOldestQueuedSnapshot(t *testing.T) {
	settings := testSettings()
	settings.ReviseInterval = 40 * time.Millisecond
	settings.SegmentQueueDepth = 2
	var dropped int
	buf := NewSegmentBuffer(settings, testRate, func(n int) { dropped += n })

	// Nobody reads while we push, so drafts pile up past the queue depth.
	ts := time.Now()
	var frames []audio.Frame
	frames = frameSeq(frames, 20, 0.5, &ts)
	frames = frameSeq(frames, 4, 0, &ts)
	for _, f := range frames {
		buf.Push(f)
	}
	buf.Close()

	if dropped == 0 {
		t.Fatal("expected overflow drops with an unread depth-2 queue")
	}
	segs := collectSegments(t, buf)
	if len(segs) == 0 || !segs[len(segs)-1].Final {
		t.Error("final snapshot must survive overflow shedding")
	}
}

func TestFlushFinalizesOpenSegment(t *testing.T) {
	buf := NewSegmentBuffer(testSettings(), testRate, nil)

	ts := time.Now()
	var frames []audio.Frame
	frames = frameSeq(frames, 10, 0.5, &ts)
	for _, f := range frames {
		buf.Push(f)
	}
	// No trailing silence; stop-style flush must still finalize.
	buf.Flush()
	buf.Close()

	segs := collectSegments(t, buf)
	if len(segs) != 1 {
		t.Fatalf("segments = %d, want 1", len(segs))
	}
	if !segs[0].Final {
		t.Error("flushed segment not marked final")
	}
}
