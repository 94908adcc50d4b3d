// ABOUTME: Bubbletea model for the client status display
// ABOUTME: Renders connection, sync, stream, and playback state with lipgloss
package statusui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SyncQuality classifies how well the client clock is tracking the
// server clock, for display purposes only.
type SyncQuality int

const (
	SyncLost SyncQuality = iota
	SyncConverging
	SyncGood
)

func (q SyncQuality) String() string {
	switch q {
	case SyncGood:
		return "synced"
	case SyncConverging:
		return "converging"
	default:
		return "lost"
	}
}

// Model holds everything the status view renders.
type Model struct {
	connected  bool
	serverAddr string

	syncOffsetUs int64
	syncQuality  SyncQuality
	syncSamples  int

	codec      string
	sampleRate int
	channels   int
	bitDepth   int

	state  string
	volume int
	muted  bool

	bufferedMs int
	bufferLen  int
	pulled     int64
	underruns  int64

	width, height int

	control *Control
}

// NewModel creates a status model with sane idle defaults. ctrl may be
// nil for a read-only view with no keyboard controls.
func NewModel(ctrl *Control) Model {
	return Model{
		volume:  100,
		state:   "idle",
		control: ctrl,
	}
}

// Control carries keyboard-driven intents out of the TUI and into
// whatever owns the Controller, decoupling this package from
// internal/controller entirely.
type Control struct {
	Changes chan VolumeChangeMsg
	Quit    chan QuitMsg
}

// NewControl creates a Control with buffered channels sized to absorb
// a burst of key presses without blocking the UI goroutine.
func NewControl() *Control {
	return &Control{
		Changes: make(chan VolumeChangeMsg, 8),
		Quit:    make(chan QuitMsg, 1),
	}
}

// StatusMsg pushes a full status snapshot into the TUI. Send it on a
// ticker from whatever owns the Controller.
type StatusMsg struct {
	Connected  bool
	ServerAddr string

	SyncOffsetUs int64
	SyncQuality  SyncQuality
	SyncSamples  int

	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int

	State  string
	Volume int
	Muted  bool

	BufferedMs int
	BufferLen  int
	Pulled     int64
	Underruns  int64
}

// VolumeChangeMsg requests a volume or mute change.
type VolumeChangeMsg struct {
	Volume int
	Muted  bool
}

// QuitMsg signals the caller should shut down the session.
type QuitMsg struct{}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}
	return m, nil
}

func (m *Model) applyStatus(msg StatusMsg) {
	m.connected = msg.Connected
	m.serverAddr = msg.ServerAddr
	m.syncOffsetUs = msg.SyncOffsetUs
	m.syncQuality = msg.SyncQuality
	m.syncSamples = msg.SyncSamples
	m.codec = msg.Codec
	m.sampleRate = msg.SampleRate
	m.channels = msg.Channels
	m.bitDepth = msg.BitDepth
	m.state = msg.State
	m.volume = msg.Volume
	m.muted = msg.Muted
	m.bufferedMs = msg.BufferedMs
	m.bufferLen = msg.BufferLen
	m.pulled = msg.Pulled
	m.underruns = msg.Underruns
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.sendQuit()
		return m, tea.Quit
	case "up":
		m.volume = clampVolume(m.volume + 5)
		m.sendVolume()
	case "down":
		m.volume = clampVolume(m.volume - 5)
		m.sendVolume()
	case "m":
		m.muted = !m.muted
		m.sendVolume()
	}
	return m, nil
}

func (m Model) sendVolume() {
	if m.control == nil {
		return
	}
	select {
	case m.control.Changes <- VolumeChangeMsg{Volume: m.volume, Muted: m.muted}:
	default:
	}
}

func (m Model) sendQuit() {
	if m.control == nil {
		return
	}
	select {
	case m.control.Quit <- QuitMsg{}:
	default:
	}
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

var (
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	goodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func (m Model) View() string {
	connLine := badStyle.Render("disconnected")
	if m.connected {
		connLine = goodStyle.Render("connected") + dimStyle.Render(" "+m.serverAddr)
	}

	syncStyle := badStyle
	switch m.syncQuality {
	case SyncGood:
		syncStyle = goodStyle
	case SyncConverging:
		syncStyle = warnStyle
	}
	syncLine := fmt.Sprintf("%s  offset %+dus  samples %d",
		syncStyle.Render(m.syncQuality.String()), m.syncOffsetUs, m.syncSamples)

	streamLine := "no stream"
	if m.codec != "" {
		streamLine = fmt.Sprintf("%s  %dHz  %dch  %d-bit", m.codec, m.sampleRate, m.channels, m.bitDepth)
	}

	muteStr := ""
	if m.muted {
		muteStr = " (muted)"
	}
	volLine := fmt.Sprintf("volume %3d%%%s   buffer %dms (%d chunks)", m.volume, muteStr, m.bufferedMs, m.bufferLen)
	statsLine := fmt.Sprintf("pulled %d   underruns %d", m.pulled, m.underruns)

	body := headerStyle.Render("Resonate Client") + "\n" +
		connLine + "\n" +
		syncLine + "\n" +
		streamLine + "\n" +
		volLine + "\n" +
		statsLine + "\n\n" +
		dimStyle.Render("state: "+m.state) + "\n" +
		dimStyle.Render("↑/↓ volume · m mute · q quit")

	return borderStyle.Render(body)
}
