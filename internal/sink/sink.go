// ABOUTME: Audio sink plugin contract
// ABOUTME: A sink owns the physical output device; volume is applied upstream by the player
package sink

import (
	"time"

	"github.com/Resonate-Protocol/resonate-go/internal/stream"
)

// Sink is a pluggable PCM output backend. Open is called once per
// format; Write blocks until the frames are accepted by the device or
// its buffering layer. PendingLatency reports how much already-written
// audio has not yet reached the speaker, used to correct the player's
// playout-instant calculation.
type Sink interface {
	Open(format stream.Format) error
	Write(pcm []byte) (int, error)
	PendingLatency() time.Duration
	Close() error
}
