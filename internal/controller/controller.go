// ABOUTME: Client session state machine: connect, handshake, sync, stream, reconnect
// ABOUTME: One Controller owns one server session and the decode/stream/player/sink chain behind it
package controller

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-go/internal/codec"
	"github.com/Resonate-Protocol/resonate-go/internal/conn"
	"github.com/Resonate-Protocol/resonate-go/internal/errs"
	"github.com/Resonate-Protocol/resonate-go/internal/player"
	"github.com/Resonate-Protocol/resonate-go/internal/sink"
	"github.com/Resonate-Protocol/resonate-go/internal/stream"
	"github.com/Resonate-Protocol/resonate-go/internal/timesync"
	"github.com/Resonate-Protocol/resonate-go/internal/version"
	"github.com/Resonate-Protocol/resonate-go/internal/wire"
)

// State names one phase of the session lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateHello
	StateTimeSyncBurst
	StateRunning
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHello:
		return "hello"
	case StateTimeSyncBurst:
		return "time_sync_burst"
	case StateRunning:
		return "running"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

const (
	timeSyncTimeout      = 2 * time.Second
	burstRounds          = 50
	burstInterval        = 20 * time.Millisecond
	keepAliveInterval    = 5 * time.Second
	opportunisticSyncMin = 1 * time.Second
	minBackoff           = 1 * time.Second
	maxBackoff           = 30 * time.Second
	pullIntervalMs       = 10
	defaultBufferMs      = 500
	eventQueueCapacity   = 64
)

// Config configures one Controller session.
type Config struct {
	Host string
	Port int

	HostID      string // stable per-machine identity, see internal/hostid
	Instance    int
	DeviceName  string

	// ExtraLatency compensates for local output hardware lag the sink
	// itself can't measure (a fixed addition to every pull's delay).
	ExtraLatency time.Duration

	// OnStateChange, if set, is called on every state transition.
	OnStateChange func(State)
	// OnMetadata, if set, is called with each StreamTags payload.
	OnMetadata func(raw []byte)
	// OnError, if set, is called with every non-fatal session error
	// (the session will reconnect after backoff).
	OnError func(error)
}

type eventKind int

const (
	eventMessage eventKind = iota
	eventException
)

type event struct {
	kind   eventKind
	header wire.Header
	body   []byte
	err    error
}

// Controller drives one server session end to end: dial, Hello,
// time-sync burst, then steady-state dispatch of ServerSettings,
// CodecHeader, WireChunk, and StreamTags messages into a decode ->
// jitter-buffer -> volume -> sink pipeline. On any fatal error it
// tears the session down and the caller's Run loop reconnects after a
// backoff.
type Controller struct {
	cfg   Config
	clock *timesync.Provider

	conn   *conn.Conn
	events chan event

	// lastOpportunisticSync throttles the extra time sample taken on
	// receipt of any non-Time message while Running, so a busy stream
	// doesn't flood the link with Time requests.
	lastOpportunisticSync time.Time

	pipelineMu sync.Mutex
	bufferMs   int
	dec        codec.Decoder
	str        *stream.Stream
	snk        sink.Sink
	plyr       *player.Player
	curCodec   string
	curFormat  stream.Format

	desiredVolume int
	desiredMuted  bool

	stateMu   sync.Mutex
	lastState State
}

// New creates a Controller. Call Run to start the reconnect loop.
func New(cfg Config) *Controller {
	if cfg.DeviceName == "" {
		cfg.DeviceName = version.Product
	}
	return &Controller{
		cfg:           cfg,
		clock:         timesync.New(),
		bufferMs:      defaultBufferMs,
		events:        make(chan event, eventQueueCapacity),
		desiredVolume: 100,
	}
}

// State returns the most recent state reported to OnStateChange.
func (c *Controller) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.lastState
}

// PlayerStats returns a snapshot of the active player's counters, or
// the zero value if no stream is currently playing.
func (c *Controller) PlayerStats() player.Stats {
	c.pipelineMu.Lock()
	defer c.pipelineMu.Unlock()
	if c.plyr == nil {
		return player.Stats{}
	}
	return c.plyr.Stats()
}

// StreamInfo reports the codec and format of the active stream, if
// any.
func (c *Controller) StreamInfo() (codecName string, format stream.Format, ok bool) {
	c.pipelineMu.Lock()
	defer c.pipelineMu.Unlock()
	if c.plyr == nil {
		return "", stream.Format{}, false
	}
	return c.curCodec, c.curFormat, true
}

// BufferInfo reports the active jitter buffer's queued duration and
// chunk count, if a stream is currently playing.
func (c *Controller) BufferInfo() (queued time.Duration, chunks int, ok bool) {
	c.pipelineMu.Lock()
	defer c.pipelineMu.Unlock()
	if c.str == nil {
		return 0, 0, false
	}
	return c.str.BufferedDuration(), c.str.Len(), true
}

// SetVolume requests a software volume change (0-100), applied to the
// active player immediately and remembered for the next stream.
func (c *Controller) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	c.pipelineMu.Lock()
	c.desiredVolume = volume
	plyr := c.plyr
	c.pipelineMu.Unlock()
	if plyr != nil {
		plyr.SetVolume(volume)
	}
}

// SetMuted requests a mute-state change, applied immediately and
// remembered for the next stream.
func (c *Controller) SetMuted(muted bool) {
	c.pipelineMu.Lock()
	c.desiredMuted = muted
	plyr := c.plyr
	c.pipelineMu.Unlock()
	if plyr != nil {
		plyr.SetMuted(muted)
	}
}

// VolumeInfo reports the volume and mute state currently applied (or,
// if no stream is active yet, queued to apply to the next one).
func (c *Controller) VolumeInfo() (volume int, muted bool) {
	c.pipelineMu.Lock()
	defer c.pipelineMu.Unlock()
	return c.desiredVolume, c.desiredMuted
}

// Clock exposes the session's time-sync provider, e.g. for status
// reporting.
func (c *Controller) Clock() *timesync.Provider { return c.clock }

// Run connects, handshakes, and serves until ctx is cancelled,
// reconnecting with exponential backoff after any fatal error.
func (c *Controller) Run(ctx context.Context) {
	backoff := minBackoff
	for ctx.Err() == nil {
		c.events = make(chan event, eventQueueCapacity)

		err := c.session(ctx)
		c.teardown()

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.setState(StateBackoff)
			c.notifyError(err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = minBackoff
	}
}

// session runs one connect-handshake-serve cycle, returning the error
// that ended it (nil only if ctx was cancelled mid-serve).
func (c *Controller) session(ctx context.Context) error {
	c.setState(StateConnecting)
	c.conn = conn.New(c)
	if err := c.conn.Start(c.cfg.Host, c.cfg.Port); err != nil {
		return err
	}

	if err := c.hello(); err != nil {
		return err
	}

	c.setState(StateTimeSyncBurst)
	c.timeSyncBurst(ctx)

	c.setState(StateRunning)
	return c.serve(ctx)
}

// hello sends the Hello message and returns immediately: it is not a
// request/response exchange (original_source/client/controller.cpp
// just fires it and moves on). The server's ServerSettings reply
// arrives with refersTo=0 like any other push and is picked up by
// dispatch once serve is running.
func (c *Controller) hello() error {
	c.setState(StateHello)

	payload := wire.HelloPayload{
		MAC:        c.cfg.HostID,
		HostName:   c.cfg.DeviceName,
		Version:    version.Version,
		ClientName: version.Product,
		OS:         "linux",
		Arch:       "amd64",
		Instance:   c.cfg.Instance,
		ID:         c.cfg.HostID,
	}
	body, err := wire.EncodeJSON(payload)
	if err != nil {
		return errs.New(errs.KindProtocol, "controller.hello", err)
	}

	return c.conn.Send(wire.TypeHello, body)
}

// timeSyncBurst runs the fast-converge round of time samples. Per-call
// timeouts are tolerated (skipped) and do not abort the session; only
// the cumulative Conn timeout (queued by sampleTime as an exception
// event) is fatal.
func (c *Controller) timeSyncBurst(ctx context.Context) {
	for i := 0; i < burstRounds; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		c.sampleTime()
		time.Sleep(burstInterval)
	}
}

func (c *Controller) sampleTime() {
	t1 := time.Now()
	body := wire.EncodeTime(wire.TimePayload{})
	reply, err := c.conn.SendRequest(wire.TypeTime, body, timeSyncTimeout)
	if err != nil {
		// The cumulative Conn timeout ends the session: queue it like a
		// reader exception so serve returns it.
		if e, ok := err.(*errs.Error); ok && e.Kind == errs.KindTimeout {
			select {
			case c.events <- event{kind: eventException, err: err}:
			default:
			}
		}
		return
	}
	if reply == nil {
		return
	}
	t4 := time.Now()

	tp, err := wire.DecodeTime(reply.Body)
	if err != nil {
		return
	}
	serverTime := tp.Latency.Time()
	c.clock.Sample(t1, serverTime, serverTime, t4)
}

// maybeOpportunisticSync takes an extra time sample on receipt of any
// non-Time message, throttled to once per opportunisticSyncMin so a
// busy stream doesn't flood the link with Time requests.
func (c *Controller) maybeOpportunisticSync() {
	if time.Since(c.lastOpportunisticSync) < opportunisticSyncMin {
		return
	}
	c.lastOpportunisticSync = time.Now()
	c.sampleTime()
}

// serve processes steady-state traffic until ctx is cancelled or a
// fatal condition is reported via OnException.
func (c *Controller) serve(ctx context.Context) error {
	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-keepAlive.C:
			c.sampleTime()
		case ev := <-c.events:
			if ev.kind == eventException {
				return ev.err
			}
			c.dispatch(ev.header, ev.body)
		}
	}
}

func (c *Controller) dispatch(h wire.Header, body []byte) {
	if h.Type != wire.TypeTime {
		c.maybeOpportunisticSync()
	}

	switch h.Type {
	case wire.TypeServerSettings:
		var settings wire.ServerSettingsPayload
		if err := wire.DecodeJSON(body, &settings); err != nil {
			log.Printf("controller: malformed ServerSettings: %v", err)
			return
		}
		c.applyServerSettings(settings)

	case wire.TypeCodecHeader:
		payload, err := wire.DecodeCodecHeader(body)
		if err != nil {
			log.Printf("controller: malformed CodecHeader: %v", err)
			return
		}
		c.startStream(payload)

	case wire.TypeWireChunk:
		payload, err := wire.DecodeWireChunk(body)
		if err != nil {
			log.Printf("controller: malformed WireChunk: %v", err)
			return
		}
		c.handleWireChunk(payload)

	case wire.TypeStreamTags:
		if c.cfg.OnMetadata != nil {
			c.cfg.OnMetadata(body)
		}

	default:
		// Unrecognized message types are skipped, not fatal: the
		// framing layer already knows their length.
	}
}

func (c *Controller) startStream(payload wire.CodecHeaderPayload) {
	dec, err := codec.New(payload.Codec)
	if err != nil {
		log.Printf("controller: %v", err)
		return
	}
	format, err := dec.SetHeader(payload.Payload)
	if err != nil {
		log.Printf("controller: codec header rejected: %v", err)
		return
	}

	c.stopPipeline()

	snk := sink.NewOto()
	if err := snk.Open(format); err != nil {
		log.Printf("controller: sink open failed: %v", err)
		c.notifyError(errs.New(errs.KindSink, "controller.startStream", err))
		return
	}

	c.pipelineMu.Lock()
	str := stream.New(format, c.clock, c.bufferMs)
	pullFrames := format.Rate * pullIntervalMs / 1000
	if pullFrames <= 0 {
		pullFrames = 1
	}
	plyr := player.New(str, snk, format, pullFrames, pullIntervalMs*time.Millisecond)
	plyr.SetVolume(c.desiredVolume)
	plyr.SetMuted(c.desiredMuted)
	plyr.SetExtraLatency(c.cfg.ExtraLatency)

	c.dec = dec
	c.str = str
	c.snk = snk
	c.plyr = plyr
	c.curCodec = payload.Codec
	c.curFormat = format
	c.pipelineMu.Unlock()

	go plyr.Run()
}

func (c *Controller) handleWireChunk(payload wire.WireChunkPayload) {
	c.pipelineMu.Lock()
	dec, str := c.dec, c.str
	c.pipelineMu.Unlock()
	if dec == nil || str == nil {
		return
	}

	chunk := &stream.Chunk{
		Timestamp: payload.Timestamp.Time(),
		Data:      payload.Payload,
	}
	ok, err := dec.Decode(chunk)
	if err != nil {
		log.Printf("controller: decode failed: %v", err)
		return
	}
	if ok {
		str.Push(chunk)
	}
}

func (c *Controller) applyServerSettings(settings wire.ServerSettingsPayload) {
	c.pipelineMu.Lock()
	if settings.BufferMs > 0 {
		c.bufferMs = settings.BufferMs
		if c.str != nil {
			c.str.SetBufferLen(settings.BufferMs)
		}
	}
	c.desiredVolume = settings.Volume
	c.desiredMuted = settings.Muted
	plyr := c.plyr
	c.pipelineMu.Unlock()

	if plyr != nil {
		plyr.SetVolume(settings.Volume)
		plyr.SetMuted(settings.Muted)
	}
}

func (c *Controller) stopPipeline() {
	c.pipelineMu.Lock()
	plyr := c.plyr
	snk := c.snk
	c.plyr, c.snk, c.str, c.dec = nil, nil, nil, nil
	c.curCodec, c.curFormat = "", stream.Format{}
	c.pipelineMu.Unlock()

	if plyr != nil {
		plyr.Stop()
	}
	if snk != nil {
		_ = snk.Close()
	}
}

func (c *Controller) teardown() {
	if c.conn != nil {
		c.conn.Stop()
		c.conn = nil
	}
	c.stopPipeline()
	c.setState(StateDisconnected)
}

func (c *Controller) setState(s State) {
	c.stateMu.Lock()
	c.lastState = s
	c.stateMu.Unlock()

	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(s)
	}
}

func (c *Controller) notifyError(err error) {
	if c.cfg.OnError != nil {
		c.cfg.OnError(err)
	}
}

// OnMessage implements conn.Receiver.
func (c *Controller) OnMessage(h wire.Header, body []byte) {
	c.events <- event{kind: eventMessage, header: h, body: body}
}

// OnException implements conn.Receiver.
func (c *Controller) OnException(err error) {
	c.events <- event{kind: eventException, err: err}
}
