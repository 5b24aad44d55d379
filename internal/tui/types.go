package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"codeberg.org/motorline/relay/internal/connection"
	"codeberg.org/motorline/relay/internal/operator"
	"codeberg.org/motorline/relay/internal/relay"
)

// represents the current state of the console
type AppState int

const (
	StateConnecting AppState = iota
	StateOnline
	StateReconnecting
	StateOffline
)

// main console model: a session list on the left, the selected session's
// transcript on the right, a message input at the bottom
type Model struct {
	state AppState

	conn     *connection.Manager
	registry *operator.Registry

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	// index into the registry's creation-ordered session list
	selected int

	status string
	err    error
}

// sent when the initial connect completes
type connectedMsg struct{}

// sent when the initial connect fails
type connectFailedMsg struct {
	err error
}

// wraps one connection lifecycle event
type connEventMsg struct {
	event connection.Event
}

// wraps one inbound relay message
type inboundMsg struct {
	msg *relay.Message
}
