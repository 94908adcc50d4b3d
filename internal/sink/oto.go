// ABOUTME: Oto-backed sink implementation
// ABOUTME: Feeds a persistent oto.Player through an io.Pipe, as oto allows one context per process
package sink

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-go/internal/stream"
	"github.com/ebitengine/oto/v3"
)

// Oto plays 16-bit PCM through the oto library. oto only supports one
// audio context per process, so Open on a format change logs a warning
// and keeps using the already-initialized context rather than erroring.
type Oto struct {
	mu sync.Mutex

	ctx    *oto.Context
	player *oto.Player
	pw     *io.PipeWriter
	pr     *io.PipeReader

	format stream.Format
	ready  bool
}

// NewOto constructs an unopened oto sink.
func NewOto() *Oto {
	return &Oto{}
}

func (o *Oto) Open(format stream.Format) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if format.Bits != 16 {
		log.Printf("sink/oto: output only supports 16-bit PCM, ignoring requested bits=%d", format.Bits)
	}

	if o.ctx != nil && o.format.Rate == format.Rate && o.format.Channels == format.Channels {
		return nil
	}
	if o.ctx != nil {
		log.Printf("sink/oto: format change (%dHz %dch -> %dHz %dch) ignored; oto does not support reinitialization",
			o.format.Rate, o.format.Channels, format.Rate, format.Channels)
		return nil
	}

	opts := &oto.NewContextOptions{
		SampleRate:   format.Rate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, readyChan, err := oto.NewContext(opts)
	if err != nil {
		return fmt.Errorf("sink/oto: new context: %w", err)
	}
	<-readyChan

	o.ctx = ctx
	o.format = format
	o.pr, o.pw = io.Pipe()
	o.player = ctx.NewPlayer(o.pr)
	o.player.Play()
	o.ready = true

	log.Printf("sink/oto: opened %dHz %d channels", format.Rate, format.Channels)
	return nil
}

func (o *Oto) Write(pcm []byte) (int, error) {
	o.mu.Lock()
	ready := o.ready
	pw := o.pw
	o.mu.Unlock()

	if !ready {
		return 0, fmt.Errorf("sink/oto: write before open")
	}
	n, err := pw.Write(pcm)
	if err != nil {
		return n, fmt.Errorf("sink/oto: pipe write: %w", err)
	}
	return n, nil
}

// PendingLatency estimates how much already-written audio is still
// sitting in oto's internal buffer, converted from bytes to duration
// using the open format.
func (o *Oto) PendingLatency() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil || o.format.Rate == 0 {
		return 0
	}
	bufferedBytes := o.player.BufferedSize()
	frameSize := o.format.FrameSize()
	if frameSize == 0 {
		return 0
	}
	frames := bufferedBytes / frameSize
	return time.Duration(frames) * time.Second / time.Duration(o.format.Rate)
}

func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pw != nil {
		_ = o.pw.Close()
		o.pw = nil
	}
	if o.player != nil {
		_ = o.player.Close()
		o.player = nil
	}
	if o.pr != nil {
		_ = o.pr.Close()
		o.pr = nil
	}
	if o.ctx != nil {
		o.ctx.Suspend()
	}
	o.ready = false
	return nil
}
