// ABOUTME: Pull/volume/write loop driving one Stream into one Sink
// ABOUTME: Runs on a fixed tick, the way the teacher's scheduler pumped buffers to oto
package player

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/resonate-go/internal/sink"
	"github.com/Resonate-Protocol/resonate-go/internal/stream"
)

// volumeCurveBase sets the exponential volume curve's steepness, the
// shape of the original's setVolume_exp(volume, base). No literal
// default ships with the header we have, so this picks a gentle curve
// in the family it documents rather than inventing a linear one.
const volumeCurveBase = 1.742

// Stats tracks playback progress for status reporting.
type Stats struct {
	Pulled    int64
	Underruns int64
}

// Player periodically pulls a fixed-size frame window from a Stream,
// applies software volume, and writes it to a Sink. Pull cadence and
// frame count are fixed at construction, matching the sink's open
// format.
type Player struct {
	stream *stream.Stream
	sink   sink.Sink
	format stream.Format

	pullFrames int
	interval   time.Duration

	// extraLatency is a fixed offset added to the sink's reported
	// pending latency before every pull, compensating for local output
	// hardware lag the sink itself can't measure (the --latency knob).
	extraLatency time.Duration

	mu     sync.Mutex
	volume int
	muted  bool

	pulled    atomic.Int64
	underruns atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Player pulling pullFrames frames every interval.
func New(st *stream.Stream, sk sink.Sink, format stream.Format, pullFrames int, interval time.Duration) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		stream:     st,
		sink:       sk,
		format:     format,
		pullFrames: pullFrames,
		interval:   interval,
		volume:     100,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run drives the pull loop until Stop is called. It should be run in
// its own goroutine.
func (p *Player) Run() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	frameSize := p.format.FrameSize()
	buf := make([]byte, p.pullFrames*frameSize)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.tick(buf)
		}
	}
}

// SetExtraLatency sets a fixed offset added to the sink's reported
// pending latency before every pull.
func (p *Player) SetExtraLatency(d time.Duration) {
	p.mu.Lock()
	p.extraLatency = d
	p.mu.Unlock()
}

func (p *Player) tick(buf []byte) {
	p.mu.Lock()
	extra := p.extraLatency
	p.mu.Unlock()

	delay := p.sink.PendingLatency() + extra
	n, _, status := p.stream.Pull(buf, p.pullFrames, delay)
	if status == stream.StatusUnderrun {
		p.underruns.Add(1)
	}

	frameSize := p.format.FrameSize()
	out := buf[:n*frameSize]

	vol, muted := p.volumeState()
	applyVolume16(out, vol, muted)

	_, _ = p.sink.Write(out)
	p.pulled.Add(1)
}

func (p *Player) volumeState() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume, p.muted
}

// SetVolume sets the software volume (0-100), clamped.
func (p *Player) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
}

// SetMuted sets mute state.
func (p *Player) SetMuted(muted bool) {
	p.mu.Lock()
	p.muted = muted
	p.mu.Unlock()
}

// Stats returns a snapshot of playback counters.
func (p *Player) Stats() Stats {
	return Stats{Pulled: p.pulled.Load(), Underruns: p.underruns.Load()}
}

// Stop cancels the pull loop and waits for Run to return.
func (p *Player) Stop() {
	p.cancel()
	<-p.done
}

// applyVolume16 scales 16-bit little-endian PCM in place.
func applyVolume16(buf []byte, volume int, muted bool) {
	mult := volumeMultiplier(volume, muted)
	if mult == 1.0 {
		return
	}
	for i := 0; i+1 < len(buf); i += 2 {
		s := int16(binary.LittleEndian.Uint16(buf[i:]))
		v := int16(float64(s) * mult)
		binary.LittleEndian.PutUint16(buf[i:], uint16(v))
	}
}

// volumeMultiplier maps a 0-100 volume to a sample gain via the
// exponential curve (base^v - 1)/(base - 1) (setVolume_exp), which runs
// from 0 at v=0 to 1 at v=1, not a linear scale:
// perceived loudness is logarithmic, so a straight volume/100 gain
// makes the bottom half of the range barely audible.
func volumeMultiplier(volume int, muted bool) float64 {
	if muted || volume <= 0 {
		return 0.0
	}
	v := float64(volume) / 100.0
	return (math.Pow(volumeCurveBase, v) - 1) / (volumeCurveBase - 1)
}
