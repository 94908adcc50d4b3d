package player

import (
	"bytes"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-go/internal/stream"
	"github.com/Resonate-Protocol/resonate-go/internal/timesync"
)

type fakeSink struct {
	mu      sync.Mutex
	written [][]byte
	latency time.Duration
}

func (f *fakeSink) Open(stream.Format) error { return nil }

func (f *fakeSink) Write(pcm []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), pcm...)
	f.written = append(f.written, cp)
	return len(pcm), nil
}

func (f *fakeSink) PendingLatency() time.Duration { return f.latency }
func (f *fakeSink) Close() error                  { return nil }

func (f *fakeSink) all() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []byte
	for _, w := range f.written {
		out = append(out, w...)
	}
	return out
}

func int16Buf(n int, value int16) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(value))
	}
	return buf
}

func TestTickWritesPulledAudioToSink(t *testing.T) {
	format := stream.Format{Rate: 48000, Bits: 16, Channels: 1}
	clock := timesync.New()
	st := stream.New(format, clock, 150)
	st.Push(&stream.Chunk{Timestamp: time.Now(), Format: format, Data: int16Buf(480, 1000)})

	fs := &fakeSink{}
	p := New(st, fs, format, 480, 10*time.Millisecond)

	buf := make([]byte, 480*format.FrameSize())
	p.tick(buf)

	if len(fs.written) != 1 {
		t.Fatalf("expected one write, got %d", len(fs.written))
	}
	if !bytes.Equal(fs.written[0], int16Buf(480, 1000)) {
		t.Fatalf("sink did not receive the pulled audio unmodified at full volume")
	}
	if p.Stats().Pulled != 1 {
		t.Fatalf("expected Pulled stat to be 1, got %d", p.Stats().Pulled)
	}
}

func TestVolumeScalesSamples(t *testing.T) {
	buf := int16Buf(4, 1000)
	applyVolume16(buf, 50, false)
	want := int16(1000 * volumeMultiplier(50, false))
	for i := 0; i < 4; i++ {
		v := int16(binary.LittleEndian.Uint16(buf[i*2:]))
		if v != want {
			t.Fatalf("sample %d = %d, want %d", i, v, want)
		}
	}
}

func TestVolumeCurveIsNotLinear(t *testing.T) {
	// The exponential curve must fall below the old linear volume/100
	// gain in the bottom half of the range (perceived loudness is
	// logarithmic, so low settings should sound quieter than a linear
	// scale would make them).
	if m := volumeMultiplier(50, false); m >= 0.5 {
		t.Fatalf("volumeMultiplier(50) = %v, want < 0.5 (non-linear curve)", m)
	}
	if m := volumeMultiplier(100, false); m != 1.0 {
		t.Fatalf("volumeMultiplier(100) = %v, want 1.0 (full volume unscaled)", m)
	}
	if m := volumeMultiplier(0, false); m != 0.0 {
		t.Fatalf("volumeMultiplier(0) = %v, want 0.0", m)
	}
}

func TestMutedProducesSilence(t *testing.T) {
	buf := int16Buf(4, 1000)
	applyVolume16(buf, 100, true)
	for i := 0; i < 4; i++ {
		v := int16(binary.LittleEndian.Uint16(buf[i*2:]))
		if v != 0 {
			t.Fatalf("sample %d = %d, want 0 (muted)", i, v)
		}
	}
}

func TestTickOnUnderrunIncrementsCounter(t *testing.T) {
	format := stream.Format{Rate: 48000, Bits: 16, Channels: 1}
	clock := timesync.New()
	st := stream.New(format, clock, 150) // empty stream

	fs := &fakeSink{}
	p := New(st, fs, format, 480, 10*time.Millisecond)

	buf := make([]byte, 480*format.FrameSize())
	p.tick(buf)

	if p.Stats().Underruns != 1 {
		t.Fatalf("expected Underruns to be 1, got %d", p.Stats().Underruns)
	}
}

func TestSetVolumeClampsRange(t *testing.T) {
	format := stream.Format{Rate: 48000, Bits: 16, Channels: 1}
	clock := timesync.New()
	st := stream.New(format, clock, 150)
	p := New(st, &fakeSink{}, format, 480, 10*time.Millisecond)

	p.SetVolume(-10)
	if v, _ := p.volumeState(); v != 0 {
		t.Fatalf("expected volume clamped to 0, got %d", v)
	}
	p.SetVolume(200)
	if v, _ := p.volumeState(); v != 100 {
		t.Fatalf("expected volume clamped to 100, got %d", v)
	}
}

func TestSetExtraLatencyAddsToSinkDelay(t *testing.T) {
	format := stream.Format{Rate: 48000, Bits: 16, Channels: 1}
	clock := timesync.New()
	st := stream.New(format, clock, 150)
	now := time.Now()
	// The chunk starts 200ms ahead: beyond the stream's 100ms tolerance
	// for a zero delay, but within it once 150ms of extra latency moves
	// the playout instant forward.
	st.Push(&stream.Chunk{Timestamp: now.Add(200 * time.Millisecond), Format: format, Data: int16Buf(480, 1000)})

	fs := &fakeSink{}
	p := New(st, fs, format, 480, 10*time.Millisecond)
	p.SetExtraLatency(150 * time.Millisecond)

	buf := make([]byte, 480*format.FrameSize())
	p.tick(buf)

	if len(fs.written) != 1 {
		t.Fatalf("expected one write accounting for extra latency, got %d", len(fs.written))
	}
	if p.Stats().Underruns != 0 {
		t.Fatalf("expected no underrun with extra latency added to the sink delay, got %d", p.Stats().Underruns)
	}
}

func TestRunStopsCleanly(t *testing.T) {
	format := stream.Format{Rate: 48000, Bits: 16, Channels: 1}
	clock := timesync.New()
	st := stream.New(format, clock, 150)
	p := New(st, &fakeSink{}, format, 480, 5*time.Millisecond)

	go p.Run()
	time.Sleep(20 * time.Millisecond)
	p.Stop()

	if p.Stats().Pulled == 0 {
		t.Fatalf("expected at least one tick to have run before Stop")
	}
}
