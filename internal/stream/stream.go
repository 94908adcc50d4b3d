// ABOUTME: Jitter-buffering ring of decoded PCM chunks
// ABOUTME: Timed consumer read that holds phase alignment with the server clock
package stream

import (
	"container/list"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-go/internal/timesync"
)

// tauLate is the age tolerance beyond which a scheduled playout
// instant is treated as an underrun (too early) or a reason to skip
// stale chunks (too late).
const tauLate = 100 * time.Millisecond

// Format describes the PCM layout of chunks held in a Stream. All
// chunks in one Stream share the same format; a codec switch always
// creates a new Stream.
type Format struct {
	Rate     int
	Bits     int
	Channels int
}

// FrameSize is the byte size of one frame (one sample per channel).
func (f Format) FrameSize() int { return f.Channels * (f.Bits / 8) }

// Chunk is one decoded span of PCM audio with a capture timestamp and
// a mutable read cursor. The presentation time of the sample at idx
// is Timestamp + idx/Rate.
type Chunk struct {
	Timestamp time.Time
	Format    Format
	Data      []byte
	idx       int // frames already consumed
}

// FrameCount is the total number of frames in the chunk.
func (c *Chunk) FrameCount() int {
	fs := c.Format.FrameSize()
	if fs == 0 {
		return 0
	}
	return len(c.Data) / fs
}

// Start is the presentation time of the next unconsumed sample.
func (c *Chunk) Start() time.Time {
	return c.Timestamp.Add(framesToDuration(c.idx, c.Format.Rate))
}

// End is the presentation time just past the chunk's last sample.
func (c *Chunk) End() time.Time {
	return c.Timestamp.Add(framesToDuration(c.FrameCount(), c.Format.Rate))
}

// Done reports whether every frame has been consumed.
func (c *Chunk) Done() bool { return c.idx >= c.FrameCount() }

func framesToDuration(frames, rate int) time.Duration {
	if rate == 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(rate)
}

// Status describes the outcome of a Pull.
type Status int

const (
	// StatusOK means frames were copied from the aligned chunk(s).
	StatusOK Status = iota
	// StatusUnderrun means no chunk covered the requested playout
	// instant within tolerance; the caller received silence.
	StatusUnderrun
)

// Stream holds an ordered queue of decoded PcmChunks for one codec
// session, and serves timed reads aligned to the server clock.
type Stream struct {
	mu       sync.Mutex
	format   Format
	clock    *timesync.Provider
	chunks   *list.List
	bufLen   time.Duration
	queuedUs time.Duration // total un-consumed duration currently queued
}

// New creates a Stream for the given format, backed by clock for
// presentation-time decisions, targeting an initial buffer length.
func New(format Format, clock *timesync.Provider, bufLenMs int) *Stream {
	return &Stream{
		format: format,
		clock:  clock,
		chunks: list.New(),
		bufLen: time.Duration(bufLenMs) * time.Millisecond,
	}
}

// SetBufferLen updates the target buffer length without flushing.
func (s *Stream) SetBufferLen(ms int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bufLen = time.Duration(ms) * time.Millisecond
}

// Push appends a decoded chunk. If the queue would exceed twice the
// target buffer length, the oldest chunk is dropped — the server is
// outrunning the player, so freshness is preferred over completeness.
func (s *Stream) Push(c *Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks.PushBack(c)
	s.queuedUs += framesToDuration(c.FrameCount(), c.Format.Rate)

	highWater := 2 * s.bufLen
	for highWater > 0 && s.queuedUs > highWater && s.chunks.Len() > 1 {
		front := s.chunks.Front()
		dropped := front.Value.(*Chunk)
		remaining := dropped.FrameCount() - dropped.idx
		s.queuedUs -= framesToDuration(remaining, dropped.Format.Rate)
		s.chunks.Remove(front)
	}
}

// Clear empties the queue, e.g. on codec change or stop.
func (s *Stream) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks.Init()
	s.queuedUs = 0
}

// Pull copies up to nFrames frames into out (which must be sized for
// nFrames*Format.FrameSize() bytes), aligned to the playout instant
// P = server_now() + outputDelay. It returns the number of frames
// actually copied (always nFrames; gaps are silence-filled), the
// signed drift applied to reach alignment, and a status.
func (s *Stream) Pull(out []byte, nFrames int, outputDelay time.Duration) (int, time.Duration, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frameSize := s.format.FrameSize()
	p := s.clock.ServerNow().Add(outputDelay)

	// Catch-up: drop any chunk that ended more than tauLate in the past.
	for s.chunks.Len() > 0 {
		front := s.chunks.Front().Value.(*Chunk)
		if front.End().Before(p.Add(-tauLate)) {
			s.dropFront(front)
			continue
		}
		break
	}

	if s.chunks.Len() == 0 {
		zero(out)
		return nFrames, 0, StatusUnderrun
	}

	front := s.chunks.Front().Value.(*Chunk)
	if front.Start().After(p.Add(tauLate)) {
		// Too early: wait, do not jump forward.
		zero(out)
		return nFrames, 0, StatusUnderrun
	}

	drift := s.alignCursor(front, p)

	written := s.copyFrames(out, nFrames, frameSize)
	if written < nFrames {
		zero(out[written*frameSize:])
	}
	return nFrames, drift, StatusOK
}

// alignCursor seeks front's read cursor to the frame whose
// presentation time matches p, absorbing drift via a micro-skip
// (seeking ±k frames within the chunk).
func (s *Stream) alignCursor(front *Chunk, p time.Time) time.Duration {
	target := p.Sub(front.Timestamp)
	targetIdx := int(target.Seconds() * float64(front.Format.Rate))
	if targetIdx < 0 {
		targetIdx = 0
	}
	if max := front.FrameCount(); targetIdx > max {
		targetIdx = max
	}
	delta := targetIdx - front.idx
	front.idx = targetIdx
	return framesToDuration(delta, front.Format.Rate)
}

// copyFrames copies up to nFrames frames starting at the front
// chunk's cursor, advancing across chunk boundaries and discarding
// fully-consumed chunks. The sequence remains ordered by Start() and
// no frame is ever delivered twice (idx only ever increases).
func (s *Stream) copyFrames(out []byte, nFrames, frameSize int) int {
	written := 0
	for written < nFrames && s.chunks.Len() > 0 {
		c := s.chunks.Front().Value.(*Chunk)
		avail := c.FrameCount() - c.idx
		if avail <= 0 {
			s.dropFront(c)
			continue
		}
		take := nFrames - written
		if take > avail {
			take = avail
		}
		srcStart := c.idx * frameSize
		srcEnd := srcStart + take*frameSize
		dstStart := written * frameSize
		copy(out[dstStart:dstStart+take*frameSize], c.Data[srcStart:srcEnd])
		c.idx += take
		s.queuedUs -= framesToDuration(take, c.Format.Rate)
		written += take
		if c.Done() {
			s.dropFront(c)
		}
	}
	return written
}

func (s *Stream) dropFront(c *Chunk) {
	remaining := c.FrameCount() - c.idx
	s.queuedUs -= framesToDuration(remaining, c.Format.Rate)
	if s.queuedUs < 0 {
		s.queuedUs = 0
	}
	s.chunks.Remove(s.chunks.Front())
}

// Len returns the number of chunks currently queued, for tests and
// status reporting.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks.Len()
}

// BufferedDuration reports the approximate queued audio duration.
func (s *Stream) BufferedDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queuedUs
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
