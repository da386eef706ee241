package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	conversation "github.com/charlescrowellnv/mindvalley-eve-ai/core"
	"github.com/charlescrowellnv/mindvalley-eve-ai/core/oscilloscope"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	userStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	agentStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	toolStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	micStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	outStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (m *model) View() string {
	if m.quitting {
		return "Goodbye.\n"
	}

	sections := []string{
		m.headerView(),
		m.scopeView("mic", m.micRenderer, m.micCanvas, micStyle),
		m.scopeView("eve", m.outRenderer, m.outCanvas, outStyle),
		m.viewport.View(),
		m.footerView(),
	}
	return strings.Join(sections, "\n")
}

func (m *model) headerView() string {
	title := titleStyle.Render("Eve")

	var status string
	switch {
	case m.connecting:
		status = m.spinner.View() + " connecting"
	case m.session.State() == conversation.SessionStateConnected:
		status = "connected"
	default:
		status = "disconnected"
	}

	mode := string(m.session.InputMode())
	if m.pttActive {
		mode += " (recording)"
	}
	if m.session.IsMuted() {
		mode += " muted"
	}

	voice := "voice on"
	if m.session.IsVoiceMuted() {
		voice = "voice off"
	}

	detail := statusStyle.Render(fmt.Sprintf(" %s · input: %s · %s · playback: %s",
		status, mode, voice, string(m.playbackState)))
	return title + detail
}

func (m *model) scopeView(label string, renderer *oscilloscope.Renderer, canvas *oscilloscope.Canvas, style lipgloss.Style) string {
	if canvas == nil {
		return ""
	}

	frame := renderer.Frame()
	canvas.Plot(oscilloscope.SmoothPath(frame.Points, 4))

	rendered := canvas.String()
	switch {
	case frame.Mode == oscilloscope.ModeActive:
		rendered = style.Render(rendered)
	case frame.Opacity < 0.6:
		rendered = dimStyle.Render(rendered)
	default:
		rendered = statusStyle.Render(rendered)
	}
	return helpStyle.Render(label) + "\n" + rendered
}

func (m *model) timelineView() string {
	items := m.session.Timeline()
	if len(items) == 0 {
		return statusStyle.Render("Say hello to start the conversation.")
	}

	width := max(m.viewport.Width-2, 20)
	lines := make([]string, 0, len(items)*2)
	for _, item := range items {
		if item.Message != nil {
			lines = append(lines, m.messageView(*item.Message, width))
			continue
		}
		lines = append(lines, toolView(*item.Tool))
	}
	return strings.Join(lines, "\n\n")
}

func (m *model) messageView(message conversation.ChatMessage, width int) string {
	label := agentStyle.Render("Eve")
	if message.Role == conversation.MessageRoleUser {
		label = userStyle.Render("You")
	}

	text := message.Content
	if message.IsOpen() {
		text += "▌"
	}
	return label + "\n" + wordwrap.String(text, width)
}

func toolView(execution conversation.ToolExecution) string {
	switch execution.State {
	case conversation.ToolStateCompleted:
		return toolStyle.Render(fmt.Sprintf("⚙ %s done", execution.ToolName))
	case conversation.ToolStateError:
		return toolStyle.Render(fmt.Sprintf("⚙ %s failed: %s", execution.ToolName, execution.Error))
	default:
		return pendingStyle.Render(fmt.Sprintf("⚙ %s %s...", execution.ToolName, string(execution.State)))
	}
}

func (m *model) footerView() string {
	parts := []string{m.textarea.View()}

	if errMessage := m.session.Error(); errMessage != "" {
		parts = append(parts, errorStyle.Render("✗ "+errMessage+"  (esc to dismiss)"))
	}

	help := "enter send · ctrl+t mode · ctrl+p talk · ctrl+g mute · ctrl+o voice · esc stop · ctrl+c quit"
	parts = append(parts, helpStyle.Render(help))
	return strings.Join(parts, "\n")
}
