// ABOUTME: Public façade over the internal Controller for external embedders
// ABOUTME: Mirrors a simple connect/run/stop lifecycle without exposing internal package types
package resonateclient

import (
	"context"
	"time"

	"github.com/Resonate-Protocol/resonate-go/internal/controller"
)

// Config configures a Client session.
type Config struct {
	// Host and Port name the server to connect to.
	Host string
	Port int

	// HostID is a stable per-machine identity. Leave empty and use
	// internal/hostid.Resolve (via a CLI, not exported here) to derive
	// one, or supply your own.
	HostID string

	// Instance distinguishes multiple clients on the same host.
	Instance int

	// DeviceName is reported to the server during the handshake.
	DeviceName string

	// OnStateChange, if set, is called on every connection state
	// transition.
	OnStateChange func(State)
	// OnMetadata, if set, is called with each raw StreamTags payload.
	OnMetadata func(raw []byte)
	// OnError, if set, is called with every non-fatal session error;
	// the client reconnects after a backoff regardless.
	OnError func(error)
}

// State names one phase of the connection lifecycle.
type State = controller.State

// Re-exported so callers don't need to import internal/controller.
const (
	StateDisconnected  = controller.StateDisconnected
	StateConnecting    = controller.StateConnecting
	StateHello         = controller.StateHello
	StateTimeSyncBurst = controller.StateTimeSyncBurst
	StateRunning       = controller.StateRunning
	StateBackoff       = controller.StateBackoff
)

// Stats reports playback counters.
type Stats struct {
	Pulled    int64
	Underruns int64
}

// StreamInfo describes the format of the currently playing stream.
type StreamInfo struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Client is a high-level handle on one Resonate server session. It
// owns a reconnect loop internally: construct with New, then call Run
// and block (or run it in its own goroutine) until ctx is cancelled.
type Client struct {
	ctrl *controller.Controller
}

// New creates a Client. Call Run to start the connection.
func New(cfg Config) *Client {
	return &Client{
		ctrl: controller.New(controller.Config{
			Host:          cfg.Host,
			Port:          cfg.Port,
			HostID:        cfg.HostID,
			Instance:      cfg.Instance,
			DeviceName:    cfg.DeviceName,
			OnStateChange: cfg.OnStateChange,
			OnMetadata:    cfg.OnMetadata,
			OnError:       cfg.OnError,
		}),
	}
}

// Run connects and serves until ctx is cancelled, reconnecting with
// backoff after any fatal session error. It blocks until ctx is done.
func (c *Client) Run(ctx context.Context) { c.ctrl.Run(ctx) }

// State returns the most recently reported connection state.
func (c *Client) State() State { return c.ctrl.State() }

// SetVolume sets the software playback volume (0-100).
func (c *Client) SetVolume(volume int) { c.ctrl.SetVolume(volume) }

// SetMuted mutes or unmutes playback.
func (c *Client) SetMuted(muted bool) { c.ctrl.SetMuted(muted) }

// Volume reports the currently applied volume and mute state.
func (c *Client) Volume() (volume int, muted bool) { return c.ctrl.VolumeInfo() }

// Stats returns a snapshot of the active player's counters.
func (c *Client) Stats() Stats {
	s := c.ctrl.PlayerStats()
	return Stats{Pulled: s.Pulled, Underruns: s.Underruns}
}

// Stream reports the format of the currently playing stream, if any.
func (c *Client) Stream() (info StreamInfo, ok bool) {
	codecName, format, streaming := c.ctrl.StreamInfo()
	if !streaming {
		return StreamInfo{}, false
	}
	return StreamInfo{
		Codec:      codecName,
		SampleRate: format.Rate,
		Channels:   format.Channels,
		BitDepth:   format.Bits,
	}, true
}

// BufferedAudio reports how much audio is currently queued in the
// jitter buffer.
func (c *Client) BufferedAudio() (queued time.Duration, chunks int, ok bool) {
	return c.ctrl.BufferInfo()
}

// ClockOffset reports the current smoothed offset between the local
// and server clocks, and whether it is backed by any samples yet.
func (c *Client) ClockOffset() (offset time.Duration, valid bool) {
	clock := c.ctrl.Clock()
	return clock.Offset(), clock.Valid()
}
