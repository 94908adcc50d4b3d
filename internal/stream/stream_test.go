package stream

import (
	"bytes"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-go/internal/timesync"
)

func silence16(format Format, frames int) []byte {
	return make([]byte, frames*format.FrameSize())
}

func tone16(format Format, frames int, start byte) []byte {
	buf := make([]byte, frames*format.FrameSize())
	for i := range buf {
		buf[i] = start + byte(i)
	}
	return buf
}

func TestPullAlignedChunkReturnsItsData(t *testing.T) {
	format := Format{Rate: 48000, Bits: 16, Channels: 2}
	clock := timesync.New()

	now := time.Now()
	data := tone16(format, 480, 1)
	s := New(format, clock, 150)
	s.Push(&Chunk{Timestamp: now, Format: format, Data: data})

	out := make([]byte, 480*format.FrameSize())
	n, _, status := s.Pull(out, 480, 0)

	if status != StatusOK {
		t.Fatalf("expected StatusOK, got %v", status)
	}
	if n != 480 {
		t.Fatalf("expected 480 frames, got %d", n)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("pulled data does not match source chunk")
	}
}

func TestPullOnEmptyStreamIsUnderrunAndSilent(t *testing.T) {
	format := Format{Rate: 48000, Bits: 16, Channels: 2}
	clock := timesync.New()
	s := New(format, clock, 150)

	out := make([]byte, 480*format.FrameSize())
	for i := range out {
		out[i] = 0xAB // poison the buffer so zero-fill is verifiable
	}
	n, _, status := s.Pull(out, 480, 0)

	if status != StatusUnderrun {
		t.Fatalf("expected StatusUnderrun, got %v", status)
	}
	if n != 480 {
		t.Fatalf("expected full frame count even on underrun, got %d", n)
	}
	for _, b := range out {
		if b != 0 {
			t.Fatalf("expected silence fill on underrun, found non-zero byte")
		}
	}
	if s.Len() != 0 {
		t.Fatalf("stream should remain empty after an underrun pull")
	}
}

func TestCatchUpDropsStaleChunks(t *testing.T) {
	format := Format{Rate: 48000, Bits: 16, Channels: 2}
	clock := timesync.New()
	s := New(format, clock, 150)

	stale := time.Now().Add(-2 * time.Second)
	s.Push(&Chunk{Timestamp: stale, Format: format, Data: silence16(format, 480)})

	if s.Len() != 1 {
		t.Fatalf("expected one chunk queued before pull")
	}

	out := make([]byte, 480*format.FrameSize())
	_, _, status := s.Pull(out, 480, 0)

	if status != StatusUnderrun {
		t.Fatalf("expected underrun after dropping the only (stale) chunk, got %v", status)
	}
	if s.Len() != 0 {
		t.Fatalf("expected stale chunk to be dropped, queue len=%d", s.Len())
	}
}

func TestPullNeverRedeliversFramesAcrossMultipleChunks(t *testing.T) {
	format := Format{Rate: 48000, Bits: 16, Channels: 2}
	clock := timesync.New()
	s := New(format, clock, 150)

	base := time.Now()
	chunkDur := 10 * time.Millisecond // 480 frames at 48kHz
	s.Push(&Chunk{Timestamp: base, Format: format, Data: tone16(format, 480, 0)})
	s.Push(&Chunk{Timestamp: base.Add(chunkDur), Format: format, Data: tone16(format, 480, 100)})
	s.Push(&Chunk{Timestamp: base.Add(2 * chunkDur), Format: format, Data: tone16(format, 480, 200)})

	var allPulled []byte
	for i := 0; i < 3; i++ {
		out := make([]byte, 480*format.FrameSize())
		n, _, status := s.Pull(out, 480, 0)
		if status != StatusOK {
			t.Fatalf("pull %d: expected StatusOK, got %v", i, status)
		}
		if n != 480 {
			t.Fatalf("pull %d: expected 480 frames, got %d", i, n)
		}
		allPulled = append(allPulled, out...)
	}

	var want []byte
	want = append(want, tone16(format, 480, 0)...)
	want = append(want, tone16(format, 480, 100)...)
	want = append(want, tone16(format, 480, 200)...)
	if !bytes.Equal(allPulled, want) {
		t.Fatalf("pulled sequence did not match expected frame-ordered concatenation")
	}
	if s.Len() != 0 {
		t.Fatalf("expected all chunks consumed, got %d remaining", s.Len())
	}
}

func TestPushDropsOldestAboveHighWater(t *testing.T) {
	format := Format{Rate: 48000, Bits: 16, Channels: 2}
	clock := timesync.New()
	s := New(format, clock, 10) // high water = 20ms

	base := time.Now()
	// Each chunk is 10ms; push 5 (50ms total), well above the 20ms high water.
	for i := 0; i < 5; i++ {
		s.Push(&Chunk{
			Timestamp: base.Add(time.Duration(i) * 10 * time.Millisecond),
			Format:    format,
			Data:      tone16(format, 480, byte(i)),
		})
	}

	if s.Len() >= 5 {
		t.Fatalf("expected overflow to drop the oldest chunks, still have %d", s.Len())
	}
}

func TestSetBufferLenDoesNotFlush(t *testing.T) {
	format := Format{Rate: 48000, Bits: 16, Channels: 2}
	clock := timesync.New()
	s := New(format, clock, 150)
	s.Push(&Chunk{Timestamp: time.Now(), Format: format, Data: silence16(format, 480)})

	s.SetBufferLen(300)

	if s.Len() != 1 {
		t.Fatalf("expected chunk to survive SetBufferLen, got len=%d", s.Len())
	}
}
