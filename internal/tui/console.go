// Package tui is the operator's terminal console: every open conversation in
// a list on the left, the selected transcript on the right, and a send line
// at the bottom, all multiplexed over the operator's single relay
// connection.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"codeberg.org/motorline/relay/internal/connection"
	"codeberg.org/motorline/relay/internal/operator"
)

const sessionListWidth = 26

func NewApp(conn *connection.Manager, registry *operator.Registry) *Model {
	ti := textinput.New()
	ti.Placeholder = "type a reply..."
	ti.Focus()
	ti.CharLimit = 0
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorLightGray)
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorWhite)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorLightGray)

	return &Model{
		state:    StateConnecting,
		conn:     conn,
		registry: registry,
		input:    ti,
		spinner:  sp,
		status:   "connecting...",
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.connectCmd(),
		m.waitForEvent(),
		m.waitForInbound(),
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		if m.state == StateConnecting || m.state == StateReconnecting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case connectedMsg:
		m.state = StateOnline
		m.status = "online"
		return m, nil

	case connectFailedMsg:
		m.state = StateOffline
		m.err = msg.err
		m.status = "connection failed"
		return m, nil

	case connEventMsg:
		m.applyConnEvent(msg.event)
		if m.state == StateReconnecting {
			// the spinner stops ticking while online; restart it
			return m, tea.Batch(m.waitForEvent(), m.spinner.Tick)
		}
		return m, m.waitForEvent()

	case inboundMsg:
		if err := m.registry.Handle(msg.msg); err != nil {
			m.status = err.Error()
		}

		m.syncSelection()
		m.refreshViewport()
		return m, m.waitForInbound()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.conn.Close()
		return m, tea.Quit

	case "up", "ctrl+p":
		m.moveSelection(-1)
		return m, nil

	case "down", "ctrl+n":
		m.moveSelection(1)
		return m, nil

	case "enter":
		m.sendInput()
		return m, nil

	case "ctrl+e":
		m.endSelectedChat()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) applyConnEvent(event connection.Event) {
	switch event.Type {
	case connection.EventConnected:
		m.state = StateOnline
		m.status = "online"

	case connection.EventDisconnected:
		m.state = StateReconnecting
		m.status = "connection lost"

	case connection.EventReconnectAttempt:
		m.state = StateReconnecting
		m.status = fmt.Sprintf("reconnecting (attempt %d)...", event.Attempt)

	case connection.EventReconnected:
		m.state = StateOnline
		m.status = fmt.Sprintf("reconnected after %d attempts", event.Attempt)

	case connection.EventReconnectFailed:
		m.state = StateOffline
		m.status = "reconnection failed, restart the console"

	case connection.EventConnectError, connection.EventConnectTimeout:
		m.status = "connection error"
		m.err = event.Err
	}
}

// clamps the selection after sessions appear or disappear and keeps the
// registry's selected pointer in step with the highlighted row
func (m *Model) syncSelection() {
	sessions := m.registry.Sessions()
	if len(sessions) == 0 {
		m.selected = 0
		return
	}

	if m.selected >= len(sessions) {
		m.selected = len(sessions) - 1
	}

	m.registry.SelectSession(sessions[m.selected].ConnID) //nolint:errcheck,gosec // session exists
}

func (m *Model) moveSelection(delta int) {
	sessions := m.registry.Sessions()
	if len(sessions) == 0 {
		return
	}

	m.selected += delta
	if m.selected < 0 {
		m.selected = 0
	}
	if m.selected >= len(sessions) {
		m.selected = len(sessions) - 1
	}

	m.registry.SelectSession(sessions[m.selected].ConnID) //nolint:errcheck,gosec // session exists
	m.refreshViewport()
}

func (m *Model) sendInput() {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}

	selected := m.registry.Selected()
	if selected == nil {
		m.status = "no conversation selected"
		return
	}

	if err := m.registry.SendMessage(selected.ConnID, text); err != nil {
		m.status = "send failed: " + err.Error()
		return
	}

	m.input.SetValue("")
	m.refreshViewport()
}

func (m *Model) endSelectedChat() {
	selected := m.registry.Selected()
	if selected == nil {
		m.status = "no conversation selected"
		return
	}

	if err := m.registry.EndChat(selected.ConnID, ""); err != nil {
		m.status = "end chat failed: " + err.Error()
		return
	}

	m.status = "chat ended"
	m.syncSelection()
	m.refreshViewport()
}

func (m *Model) resizeViewport() {
	width := m.width - sessionListWidth - 6
	height := m.height - 7

	if width < 20 {
		width = 20
	}
	if height < 5 {
		height = 5
	}

	m.viewport = viewport.New(width, height)
	m.input.Width = m.width - 8
	m.ready = true
}

// renders the selected session's transcript into the viewport
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	selected := m.registry.Selected()
	if selected == nil {
		m.viewport.SetContent(systemLineStyle.Render("no open conversations"))
		return
	}

	var b strings.Builder
	for _, line := range selected.Transcript() {
		if line.System {
			b.WriteString(systemLineStyle.Render("-- " + line.Body))
		} else {
			b.WriteString(senderStyle.Render(line.Sender+": ") + line.Body)
		}
		b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *Model) View() string {
	if !m.ready {
		return "\n  " + m.spinner.View() + " starting console..."
	}

	var b strings.Builder

	b.WriteString(m.headerView())
	b.WriteString("\n")

	sessionList := borderStyle.
		Width(sessionListWidth).
		Height(m.viewport.Height).
		Render(m.sessionListView())

	transcriptPane := borderStyle.
		Width(m.viewport.Width + 2).
		Render(m.viewport.View())

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, sessionList, " ", transcriptPane))
	b.WriteString("\n")

	inputBox := borderStyle.
		Width(m.width - 4).
		Padding(0, 1).
		Render(m.input.View())

	b.WriteString(inputBox)
	b.WriteString("\n")

	b.WriteString(helpStyle.Render("[up/down: switch chat] [enter: send] [ctrl+e: end chat] [ctrl+c: quit]"))

	return b.String()
}

func (m *Model) headerView() string {
	title := titleStyle.Render("motorline support console")

	var status string
	switch m.state {
	case StateOnline:
		status = statusOnlineStyle.Render(m.status)
	case StateConnecting, StateReconnecting:
		status = m.spinner.View() + " " + statusWarnStyle.Render(m.status)
	case StateOffline:
		status = statusErrorStyle.Render(m.status)
	}

	if m.err != nil && m.state == StateOffline {
		status += "  " + systemLineStyle.Render(m.err.Error())
	}

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(status) - 2
	if gap < 1 {
		gap = 1
	}

	return title + strings.Repeat(" ", gap) + status
}

func (m *Model) sessionListView() string {
	sessions := m.registry.Sessions()
	if len(sessions) == 0 {
		return systemLineStyle.Render(" waiting for visitors")
	}

	var b strings.Builder
	for i, session := range sessions {
		name := session.DisplayName()
		if len(name) > sessionListWidth-4 {
			name = name[:sessionListWidth-4]
		}

		if i == m.selected {
			b.WriteString(sessionSelectedStyle.Render("> " + name))
		} else {
			b.WriteString(sessionItemStyle.Render(name))
		}
		b.WriteString("\n")
	}

	return b.String()
}
