// Package connection owns a single websocket connection to the relay for a
// client role (visitor page or operator console). The connection is an
// explicitly owned resource: the component that creates a Manager must call
// Close on every exit path, including error paths.
package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"codeberg.org/motorline/relay/internal/auth"
	"codeberg.org/motorline/relay/internal/logger"
	"codeberg.org/motorline/relay/internal/relay"
)

const (
	// time allowed to write a message to the relay
	writeWait = 10 * time.Second

	// time allowed between reads before the connection is considered dead
	pongWait = 60 * time.Second

	// send pings with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// buffered lifecycle events; slow consumers drop, they never block the pumps
	eventBufferSize = 32

	// buffered inbound messages
	inboundBufferSize = 256
)

// controls the bounded retry policy after a network-level drop
type ReconnectionConfig struct {
	Enabled        bool
	MaxAttempts    int
	Delay          time.Duration
	ConnectTimeout time.Duration
}

// configures a managed connection
type Config struct {
	ServerAddress string
	Credential    string
	Reconnection  ReconnectionConfig
}

// owns one websocket connection and its lifecycle
type Manager struct {
	cfg Config

	events  chan Event
	inbound chan *relay.Message

	mu     sync.Mutex
	conn   *websocket.Conn
	state  State
	closed bool
}

func NewManager(cfg Config) *Manager {
	if cfg.Reconnection.ConnectTimeout == 0 {
		cfg.Reconnection.ConnectTimeout = 10 * time.Second
	}

	return &Manager{
		cfg:     cfg,
		events:  make(chan Event, eventBufferSize),
		inbound: make(chan *relay.Message, inboundBufferSize),
		state:   StateDisconnected,
	}
}

// lifecycle notifications for the owning component
func (m *Manager) Events() <-chan Event {
	return m.events
}

// messages received from the relay
func (m *Manager) Inbound() <-chan *relay.Message {
	return m.inbound
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// establishes the connection. A missing credential is fatal: the error is
// returned immediately and no retry is attempted, because reconnecting
// cannot fix an unauthenticated client.
func (m *Manager) Connect() error {
	if m.cfg.Credential == "" {
		return auth.ErrNoCredential
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return relay.ErrConnectionClosed
	}

	if m.conn != nil {
		m.mu.Unlock()
		return nil
	}

	m.state = StateConnecting
	m.mu.Unlock()

	conn, err := m.dial()
	if err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()

		if isTimeout(err) {
			m.emit(Event{Type: EventConnectTimeout, Err: err})
		} else {
			m.emit(Event{Type: EventConnectError, Err: err})
		}

		return err
	}

	m.adopt(conn)
	m.emit(Event{Type: EventConnected})

	return nil
}

// performs one dial attempt with the configured timeout
func (m *Manager) dial() (*websocket.Conn, error) {
	endpoint, err := url.Parse(m.cfg.ServerAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid server address: %w", err)
	}

	query := endpoint.Query()
	query.Set("token", m.cfg.Credential)
	endpoint.RawQuery = query.Encode()

	dialer := websocket.Dialer{
		HandshakeTimeout: m.cfg.Reconnection.ConnectTimeout,
	}

	conn, _, err := dialer.Dial(endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return conn, nil
}

// installs a freshly dialed connection and starts its pumps
func (m *Manager) adopt(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec // G104: websocket setup
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec // G104: pong handler
		return nil
	})

	m.mu.Lock()
	m.conn = conn
	m.state = StateConnected
	m.mu.Unlock()

	go m.readPump(conn)
	go m.pingPump(conn)
}

// reads messages from the relay and surfaces them on the inbound channel
func (m *Manager) readPump(conn *websocket.Conn) {
	for {
		var msg relay.Message
		if err := conn.ReadJSON(&msg); err != nil {
			m.handleDrop(conn, err)
			return
		}

		conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec // G104: refresh on read

		select {
		case m.inbound <- &msg:
		default:
			logger.Warn("inbound buffer full, dropping message", "type", msg.Type)
		}
	}
}

// sends periodic pings to keep the connection alive
func (m *Manager) pingPump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		if m.conn != conn || m.closed {
			m.mu.Unlock()
			return
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck,gosec // G104: ping timing
		err := conn.WriteMessage(websocket.PingMessage, nil)
		m.mu.Unlock()

		if err != nil {
			return
		}
	}
}

// reacts to a read failure: deliberate close is silent, a network drop is
// surfaced and, when enabled, kicks off the bounded reconnection loop
func (m *Manager) handleDrop(conn *websocket.Conn, cause error) {
	m.mu.Lock()

	if m.closed || m.conn != conn {
		// deliberate Close or an already-replaced connection
		m.mu.Unlock()
		return
	}

	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	conn.Close() //nolint:errcheck,gosec // G104: already broken

	m.emit(Event{Type: EventDisconnected, Err: cause})

	if m.cfg.Reconnection.Enabled {
		go m.reconnectLoop()
	}
}

// retries the connection up to MaxAttempts with a fixed delay between
// attempts. After exhaustion it reports reconnect_failed exactly once and
// stops; it never retries indefinitely.
func (m *Manager) reconnectLoop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.state = StateReconnecting
	m.mu.Unlock()

	for attempt := 1; attempt <= m.cfg.Reconnection.MaxAttempts; attempt++ {
		m.emit(Event{Type: EventReconnectAttempt, Attempt: attempt})

		time.Sleep(m.cfg.Reconnection.Delay)

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		conn, err := m.dial()
		if err != nil {
			logger.Debug("reconnect attempt failed",
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		m.adopt(conn)
		m.emit(Event{Type: EventReconnected, Attempt: attempt})
		return
	}

	m.mu.Lock()
	m.state = StateDisconnected
	m.mu.Unlock()

	m.emit(Event{Type: EventReconnectFailed})
}

// sends a message to the relay
func (m *Manager) Send(msg *relay.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.conn == nil {
		return relay.ErrConnectionClosed
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	m.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck,gosec // G104: write timing
	return m.conn.WriteJSON(msg)
}

// marshals a payload and sends it as the given message type
func (m *Manager) SendPayload(msgType, connID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	return m.Send(&relay.Message{
		Type:    msgType,
		ConnID:  connID,
		Payload: raw,
	})
}

// tears the connection down. Safe to call multiple times and required on
// every exit path of the owning component.
func (m *Manager) Close() {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return
	}

	m.closed = true
	m.state = StateDisconnected
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		// best-effort close frame before dropping the connection
		conn.WriteControl(websocket.CloseMessage, //nolint:errcheck,gosec // G104: best effort
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close() //nolint:errcheck,gosec // G104: defer-style cleanup
	}
}

// surfaces a lifecycle event without ever blocking the pumps
func (m *Manager) emit(event Event) {
	select {
	case m.events <- event:
	default:
		logger.Warn("event buffer full, dropping lifecycle event", "type", event.Type)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
