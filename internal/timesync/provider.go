// ABOUTME: Clock synchronization via round-trip Time exchanges
// ABOUTME: Maintains the smoothed offset between local and server clocks
package timesync

import (
	"sync"
	"time"
)

// burstSamples is the number of back-to-back probes sent right after
// the handshake to converge the offset quickly, per spec.md §4.B.
const burstSamples = 50

// alpha is the EMA weight given to each new sample once the initial
// burst has converged.
const alpha = 1.0 / 16.0

// Provider holds a single shared offset (server - local) updated by
// an exponential moving average over round-trip samples.
type Provider struct {
	mu      sync.RWMutex
	offset  time.Duration
	valid   bool
	samples int
}

// New creates a Provider with a zero offset and no samples yet.
func New() *Provider {
	return &Provider{}
}

// Sample records one round-trip measurement. t1 is the local send
// time, t2 the server receive time, t3 the server send time, and t4
// the local receive time of the reply — all as reported by the
// exchange described in spec.md §4.B. The derived sample is half the
// clock asymmetry between the two legs of the round trip.
func (p *Provider) Sample(t1, t2, t3, t4 time.Time) time.Duration {
	d := ((t2.Sub(t1)) + (t3.Sub(t4))) / 2

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.samples < burstSamples {
		p.offset = d
	} else {
		p.offset = time.Duration(alpha*float64(d) + (1-alpha)*float64(p.offset))
	}
	p.samples++
	p.valid = true
	return d
}

// Offset returns the current smoothed server-minus-local offset.
func (p *Provider) Offset() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.offset
}

// Valid reports whether at least one sample has been recorded.
func (p *Provider) Valid() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.valid
}

// Samples returns the number of samples folded into the offset so far.
func (p *Provider) Samples() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.samples
}

// ServerNow returns the best estimate of the server's current clock:
// local time plus the maintained offset. All presentation-timing
// decisions go through this.
func (p *Provider) ServerNow() time.Time {
	return time.Now().Add(p.Offset())
}

// InBurst reports whether the provider is still in its fast-converge
// window (fewer than burstSamples recorded).
func (p *Provider) InBurst() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.samples < burstSamples
}
