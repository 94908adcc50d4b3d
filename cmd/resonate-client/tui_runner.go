package main

import (
	"context"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Resonate-Protocol/resonate-go/internal/controller"
	"github.com/Resonate-Protocol/resonate-go/internal/statusui"
)

const statusPollInterval = 200 * time.Millisecond

// runWithTUI drives the controller's reconnect loop alongside a status
// TUI, polling the controller's accessor methods on a ticker and
// forwarding UI-driven volume/mute/quit intents back into it.
func runWithTUI(ctx context.Context, cancel context.CancelFunc, c *controller.Controller, addr string) {
	ctrl := statusui.NewControl()
	program := statusui.Run(ctrl)

	go func() {
		if _, err := program.Run(); err != nil {
			log.Printf("resonate-client: tui exited: %v", err)
		}
		cancel()
	}()

	go pollStatus(ctx, c, program, addr)
	go forwardControl(ctx, c, ctrl, cancel)

	c.Run(ctx)
	program.Quit()
}

func pollStatus(ctx context.Context, c *controller.Controller, program *tea.Program, addr string) {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			program.Send(buildStatusMsg(c, addr))
		}
	}
}

func buildStatusMsg(c *controller.Controller, addr string) statusui.StatusMsg {
	state := c.State()
	codecName, format, streaming := c.StreamInfo()
	stats := c.PlayerStats()
	clock := c.Clock()
	volume, muted := c.VolumeInfo()

	msg := statusui.StatusMsg{
		Connected:    state == controller.StateRunning,
		ServerAddr:   addr,
		SyncOffsetUs: clock.Offset().Microseconds(),
		SyncSamples:  clock.Samples(),
		State:        state.String(),
		Volume:       volume,
		Muted:        muted,
		Pulled:       stats.Pulled,
		Underruns:    stats.Underruns,
	}

	switch {
	case !clock.Valid():
		msg.SyncQuality = statusui.SyncLost
	case clock.InBurst():
		msg.SyncQuality = statusui.SyncConverging
	default:
		msg.SyncQuality = statusui.SyncGood
	}

	if streaming {
		msg.Codec = codecName
		msg.SampleRate = format.Rate
		msg.Channels = format.Channels
		msg.BitDepth = format.Bits
	}

	if queued, chunks, ok := c.BufferInfo(); ok {
		msg.BufferedMs = int(queued.Milliseconds())
		msg.BufferLen = chunks
	}

	return msg
}

func forwardControl(ctx context.Context, c *controller.Controller, ctrl *statusui.Control, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case change := <-ctrl.Changes:
			c.SetVolume(change.Volume)
			c.SetMuted(change.Muted)
		case <-ctrl.Quit:
			cancel()
			return
		}
	}
}
