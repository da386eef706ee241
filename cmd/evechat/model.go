package main

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	conversation "github.com/charlescrowellnv/mindvalley-eve-ai/core"
	"github.com/charlescrowellnv/mindvalley-eve-ai/core/events"
	"github.com/charlescrowellnv/mindvalley-eve-ai/core/oscilloscope"
)

const (
	scopeCellHeight = 4
	renderInterval  = 80 * time.Millisecond
)

type sessionEventMsg struct{ event events.Event }

type playbackStateMsg conversation.PlaybackState

type renderTickMsg time.Time

type connectFinishedMsg struct{ err error }

type speakFinishedMsg struct{ err error }

type pushToTalkFinishedMsg struct {
	transcript string
	err        error
}

type model struct {
	ctx     context.Context
	session *conversation.Session

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	micSampler  *oscilloscope.Sampler
	micRenderer *oscilloscope.Renderer
	outSampler  *oscilloscope.Sampler
	outRenderer *oscilloscope.Renderer

	micCanvas *oscilloscope.Canvas
	outCanvas *oscilloscope.Canvas

	// uiUpdateChan carries engine callbacks into the update loop. The
	// engine never blocks on it; a dropped message only delays a redraw
	// until the next render tick.
	uiUpdateChan chan tea.Msg

	width  int
	height int

	playbackState conversation.PlaybackState
	speakReplies  bool
	pttActive     bool
	connecting    bool
	quitting      bool
}

func newModel(ctx context.Context, session *conversation.Session, mic, out *oscilloscope.Sampler, sensitivity float64, speakReplies bool, uiUpdateChan chan tea.Msg) *model {
	ta := textarea.New()
	ta.Placeholder = "Ask Eve anything..."
	ta.Prompt = "┃ "
	ta.CharLimit = 0
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	vp := viewport.New(50, 10)
	vp.SetContent("Connecting...")

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return &model{
		ctx:           ctx,
		session:       session,
		textarea:      ta,
		viewport:      vp,
		spinner:       sp,
		micSampler:    mic,
		micRenderer:   oscilloscope.NewRenderer(mic, oscilloscope.WithSensitivity(sensitivity)),
		outSampler:    out,
		outRenderer:   oscilloscope.NewRenderer(out, oscilloscope.WithSensitivity(sensitivity)),
		uiUpdateChan:  uiUpdateChan,
		playbackState: conversation.PlaybackIdle,
		speakReplies:  speakReplies,
		connecting:    true,
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.listenForUpdatesCmd(),
		renderTickCmd(),
		m.connectCmd(),
	)
}

// listenForUpdatesCmd forwards one engine callback message into the
// update loop and is re-armed on every Update pass.
func (m *model) listenForUpdatesCmd() tea.Cmd {
	return func() tea.Msg {
		return <-m.uiUpdateChan
	}
}

func renderTickCmd() tea.Cmd {
	return tea.Tick(renderInterval, func(t time.Time) tea.Msg {
		return renderTickMsg(t)
	})
}

func (m *model) connectCmd() tea.Cmd {
	return func() tea.Msg {
		return connectFinishedMsg{err: m.session.Connect(m.ctx)}
	}
}

func (m *model) speakCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return speakFinishedMsg{err: m.session.Speak(m.ctx, text)}
	}
}

func (m *model) endPushToTalkCmd() tea.Cmd {
	return func() tea.Msg {
		transcript, err := m.session.EndPushToTalk(m.ctx)
		return pushToTalkFinishedMsg{transcript: transcript, err: err}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		taCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
		cmds  []tea.Cmd
	)

	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	m.spinner, spCmd = m.spinner.Update(msg)
	cmds = append(cmds, taCmd, vpCmd, spCmd)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(msg))

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case renderTickMsg:
		m.refreshTimeline()
		cmds = append(cmds, renderTickCmd())

	case connectFinishedMsg:
		m.connecting = false
		m.refreshTimeline()

	case sessionEventMsg:
		cmds = append(cmds, m.handleSessionEvent(msg.event))

	case playbackStateMsg:
		m.playbackState = conversation.PlaybackState(msg)
		m.syncOutputScope()

	case speakFinishedMsg:
		// Speak failures already land in the session's error banner.

	case pushToTalkFinishedMsg:
		m.pttActive = false
		m.syncMicScope()
		m.refreshTimeline()
	}

	if !m.quitting {
		cmds = append(cmds, m.listenForUpdatesCmd())
	}

	if m.quitting {
		return m, tea.Quit
	}
	return m, tea.Batch(cmds...)
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		m.session.Disconnect()
		m.quitting = true
		return nil

	case "esc":
		if m.session.Error() != "" {
			m.session.ClearError()
			return nil
		}
		m.session.StopPlayback()
		return nil

	case "enter":
		text := m.textarea.Value()
		m.textarea.Reset()
		m.session.SubmitText(text)
		m.refreshTimeline()
		return nil

	case "ctrl+t":
		m.session.CycleInputMode(m.ctx)
		m.syncMicScope()
		return nil

	case "ctrl+g":
		m.session.ToggleMute()
		m.syncMicScope()
		return nil

	case "ctrl+o":
		m.session.ToggleVoiceVolume()
		return nil

	case "ctrl+p":
		if m.pttActive {
			return m.endPushToTalkCmd()
		}
		if m.session.InputMode() != conversation.InputModePushToTalk {
			return nil
		}
		if err := m.session.BeginPushToTalk(m.ctx); err != nil {
			return nil
		}
		m.pttActive = true
		m.syncMicScope()
		return nil
	}
	return nil
}

func (m *model) handleSessionEvent(event events.Event) tea.Cmd {
	var cmd tea.Cmd

	switch typedEvent := event.(type) {
	case events.ConnectionConnected:
		m.connecting = false
		m.syncMicScope()

	case events.ConnectionDisconnected:
		m.syncMicScope()
		m.syncOutputScope()

	case events.AssistantTextStarted:
		m.outRenderer.SetMode(oscilloscope.ModeProcessing)

	case events.MessageFinal:
		if typedEvent.Source == events.MessageSourceAgent && m.speakReplies && !m.session.IsVoiceMuted() {
			cmd = m.speakCmd(typedEvent.Text)
		}
	}

	m.refreshTimeline()
	return cmd
}

// syncMicScope aligns the microphone strip with capture state. The
// sampler only trusts data while a device is actually feeding it.
func (m *model) syncMicScope() {
	capturing := m.session.InputMode() == conversation.InputModeVoice ||
		(m.session.InputMode() == conversation.InputModePushToTalk && m.pttActive)

	if !capturing {
		m.micSampler.Disable()
		m.micRenderer.SetMode(oscilloscope.ModeIdle)
		return
	}

	m.micSampler.UseCapture()
	if m.session.IsMuted() {
		m.micRenderer.SetMode(oscilloscope.ModeIdle)
	} else {
		m.micRenderer.SetMode(oscilloscope.ModeActive)
	}
}

func (m *model) syncOutputScope() {
	switch m.playbackState {
	case conversation.PlaybackConnecting, conversation.PlaybackBuffering, conversation.PlaybackStreaming:
		m.outSampler.UseExternal()
		m.outRenderer.SetMode(oscilloscope.ModeProcessing)
	case conversation.PlaybackPlaying:
		m.outSampler.UseExternal()
		m.outRenderer.SetMode(oscilloscope.ModeActive)
	default:
		m.outSampler.Disable()
		m.outRenderer.SetMode(oscilloscope.ModeIdle)
	}
}

func (m *model) resize(width, height int) {
	m.width = max(width, 30)
	m.height = max(height, 12)

	m.textarea.SetWidth(m.width - 2)

	scopeCells := max((m.width-2)/2, 10)
	m.micCanvas = oscilloscope.NewCanvas(scopeCells, scopeCellHeight)
	m.outCanvas = oscilloscope.NewCanvas(scopeCells, scopeCellHeight)
	m.micRenderer.Resize(m.micCanvas.DotWidth(), m.micCanvas.DotHeight())
	m.outRenderer.Resize(m.outCanvas.DotWidth(), m.outCanvas.DotHeight())

	chrome := lipgloss.Height(m.headerView()) +
		2*(scopeCellHeight+1) +
		lipgloss.Height(m.footerView())
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-chrome, 3)
	m.refreshTimeline()
}

func (m *model) refreshTimeline() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.timelineView())
	if atBottom {
		m.viewport.GotoBottom()
	}
}
