package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// returns a tea.Cmd that establishes the relay connection
func (m *Model) connectCmd() tea.Cmd {
	return func() tea.Msg {
		if err := m.conn.Connect(); err != nil {
			return connectFailedMsg{err: err}
		}

		return connectedMsg{}
	}
}

// returns a tea.Cmd that waits for the next connection lifecycle event
func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return connEventMsg{event: <-m.conn.Events()}
	}
}

// returns a tea.Cmd that waits for the next inbound relay message
func (m *Model) waitForInbound() tea.Cmd {
	return func() tea.Msg {
		return inboundMsg{msg: <-m.conn.Inbound()}
	}
}
