// Package visitor models the visitor side of a support conversation: a
// single-session state machine over one relay connection. The session moves
// waiting -> active -> ended and never backwards; once ended it accepts no
// further sends.
package visitor

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"codeberg.org/motorline/relay/internal/relay"
	"codeberg.org/motorline/relay/internal/transcript"
)

// errors
var (
	ErrChatNotActive = errors.New("chat is not active")
	ErrEmptyMessage  = errors.New("message is empty")
)

// session states
type State string

const (
	// connected to the relay but no operator bound yet
	StateWaiting State = "waiting"

	// an operator has announced itself; sends are accepted
	StateActive State = "active"

	// the operator closed the chat or the connection was lost for good
	StateEnded State = "ended"
)

// sends tagged messages to the relay
type Transport interface {
	SendPayload(msgType, connID string, payload any) error
}

// the visitor's single conversation
type Session struct {
	mu sync.Mutex

	conn        Transport
	displayName string

	state          State
	operatorHandle string
	transcript     *transcript.Transcript
	lastError      error
}

// creates a session for a freshly connected transport. The session starts
// in waiting with a system notice; the operator binding arrives later as a
// start_chat message.
func NewSession(conn Transport, displayName string) *Session {
	s := &Session{
		conn:        conn,
		displayName: displayName,
		state:       StateWaiting,
		transcript:  transcript.New(),
	}

	s.transcript.AppendSystem("Connected. Waiting for an operator.")

	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// returns the bound operator's handle, empty until active
func (s *Session) OperatorHandle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.operatorHandle
}

// returns the local transcript in arrival order
func (s *Session) Transcript() []transcript.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Messages()
}

// returns the most recent connection-level error surfaced to the UI
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// records a connect error for the UI banner; chat state is unchanged
// because a successful reconnect can still revive the conversation
func (s *Session) OnConnectError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
}

// ends the session locally after the connection is gone for good
// (reconnect_failed or deliberate teardown)
func (s *Session) OnConnectionLost() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEnded {
		return
	}

	s.state = StateEnded
	s.transcript.AppendSystem("Connection lost. The chat has ended.")
}

// dispatches one inbound relay message. The message set is closed: anything
// unhandled is an error, not a silent drop.
func (s *Session) HandleMessage(msg *relay.Message) error {
	switch msg.Type {
	case relay.TypeStartChat:
		return s.handleStartChat(msg)
	case relay.TypeReceiveMessage:
		return s.handleReceiveMessage(msg)
	case relay.TypeChatEnded:
		return s.handleChatEnded(msg)
	case relay.TypeError:
		return s.handleError(msg)
	case relay.TypePong:
		return nil
	case relay.TypeServerShutdown:
		s.OnConnectionLost()
		return nil
	default:
		return fmt.Errorf("unhandled message type: %s", msg.Type)
	}
}

// binds the operator and activates the session
func (s *Session) handleStartChat(msg *relay.Message) error {
	var payload relay.StartChatPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("invalid start_chat payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateWaiting {
		// duplicate start_chat or a binding after the chat ended
		return nil
	}

	s.state = StateActive
	s.operatorHandle = payload.OperatorHandle

	handle := payload.OperatorHandle
	if handle == "" {
		handle = transcript.SenderOperator
	}

	s.transcript.AppendSystem(handle + " joined the chat.")

	return nil
}

// appends a delivered operator message to the local transcript
func (s *Session) handleReceiveMessage(msg *relay.Message) error {
	var payload relay.ReceiveMessagePayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("invalid receive_message payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEnded {
		// the conversation is over; late deliveries are dropped
		return nil
	}

	sender := payload.From
	if sender == "" {
		sender = transcript.SenderOperator
	}

	s.transcript.Append(sender, payload.Message)

	return nil
}

// terminates the session: a system notice with the given reason lands in
// the transcript and no further sends are accepted
func (s *Session) handleChatEnded(msg *relay.Message) error {
	var payload relay.ChatEndedPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("invalid chat_ended payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEnded {
		return nil
	}

	s.state = StateEnded

	notice := payload.Message
	if notice == "" {
		notice = "The operator has ended the chat."
	}

	s.transcript.AppendSystem(notice)

	return nil
}

// surfaces a relay-reported error for the UI banner
func (s *Session) handleError(msg *relay.Message) error {
	var payload struct {
		Message string `json:"message"`
	}
	if err := msg.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("invalid error payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = errors.New(payload.Message)

	return nil
}

// sends a chat message. Rejected outside the active state with no
// transcript mutation and no transport emission; on acceptance the message
// lands in the local transcript optimistically before the send completes.
func (s *Session) SendMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()

	if s.state != StateActive {
		s.mu.Unlock()
		return ErrChatNotActive
	}

	sender := s.displayName
	if sender == "" {
		sender = transcript.SenderVisitor
	}

	s.transcript.Append(sender, text)
	conn := s.conn
	s.mu.Unlock()

	if err := conn.SendPayload(relay.TypeSendMessage, "", relay.SendMessagePayload{
		Text: text,
		From: sender,
	}); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}
