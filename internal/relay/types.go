package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// message type constants for the relay wire protocol.
// this is a closed set: the hub rejects anything it has no handler for.
const (
	// binds a visitor connection to the operator (server -> both roles)
	TypeStartChat = "start_chat"

	// user-authored message (client -> server)
	TypeSendMessage = "send_message"

	// delivered message (server -> client)
	TypeReceiveMessage = "receive_message"

	// operator request to terminate a conversation (operator -> server)
	TypeEndChat = "end_chat"

	// notifies a visitor their conversation was terminated (server -> visitor)
	TypeChatEnded = "chat_ended"

	// notifies the operator a visitor connection dropped (server -> operator)
	TypeVisitorLeft = "visitor_left"

	// is sent when an error occurs
	TypeError = "error"

	// is sent by clients to keep the connection alive
	TypePing = "ping"

	// is sent by server in response to ping
	TypePong = "pong"

	// is sent by server before shutdown
	TypeServerShutdown = "server_shutdown"
)

// client connection constants
const (
	// time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// maximum message size allowed from peer
	maxMessageSize = 64 * 1024 // 64 KB

	// maximum chat message body length in characters
	maxChatMessageSize = 5000

	// chat rate limit: sustained messages per second and burst
	chatMessagesPerSecond = 1
	chatMessageBurst      = 5
)

// hub connection limit constants
const (
	maxConnectionsPerIP = 10
)

// errors
var (
	ErrConnectionClosed  = errors.New("connection closed")
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrMessageTooLarge   = errors.New("message too large")
	ErrNoOperator        = errors.New("no operator connected")
	ErrVisitorNotFound   = errors.New("visitor not found")
	ErrOperatorOnly      = errors.New("operator-only message type")
)

// represents a relay message with typed payload.
// ConnID is the visitor transport identifier used as the routing key; the
// server stamps it on every message it relays so receivers never have to
// guess which conversation a payload belongs to.
type Message struct {
	Type      string          `json:"type"`
	ConnID    string          `json:"conn_id,omitempty"`
	SenderID  string          `json:"-"` // internal only, stamped by the read pump
	UserID    string          `json:"user_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// decodes the payload into the given struct
func (m *Message) UnmarshalPayload(v any) error {
	if len(m.Payload) == 0 {
		return errors.New("empty payload")
	}

	return json.Unmarshal(m.Payload, v)
}

// binds a visitor to the operator. Direction decides which fields are set:
// the operator receives the visitor's identity and routing key, the visitor
// receives the operator's handle.
type StartChatPayload struct {
	VisitorID      string `json:"visitor_id,omitempty"`
	ConnID         string `json:"conn_id,omitempty"`
	DisplayName    string `json:"display_name,omitempty"`
	OperatorHandle string `json:"operator_handle,omitempty"`
}

// carries a user-authored message to the server
type SendMessagePayload struct {
	Text string `json:"text"`
	From string `json:"from,omitempty"`
}

// carries a delivered message to a client
type ReceiveMessagePayload struct {
	Message   string `json:"message"`
	From      string `json:"from"`
	VisitorID string `json:"visitor_id,omitempty"`
}

// identifies the conversation the operator wants to terminate
type EndChatPayload struct {
	ConnID string `json:"conn_id"`
	Reason string `json:"reason,omitempty"`
}

// tells a visitor their conversation is over
type ChatEndedPayload struct {
	Message string `json:"message"`
}

// tells the operator a visitor connection dropped
type VisitorLeftPayload struct {
	ConnID    string `json:"conn_id"`
	VisitorID string `json:"visitor_id,omitempty"`
}

// contains information about server shutdown
type ServerShutdownPayload struct {
	Reason string `json:"reason"`
}

// represents one websocket connection to the relay
type Client struct {
	// transport identifier assigned on upgrade; the routing key for visitors
	ID string

	// domain identity from the auth credential (empty for anonymous visitors)
	UserID string

	// display name for this client
	DisplayName string

	// "visitor" or "operator"
	Role string

	// IP address of the client (for connection tracking)
	IPAddress string

	// websocket connection
	conn *websocket.Conn

	// hub reference for message routing
	hub *Hub

	// buffered channel of outbound messages
	send chan []byte

	// mutex for thread-safe operations
	mu sync.RWMutex

	// flag indicating if client is closed
	closed bool

	// chat message rate limiter
	chatLimiter *rate.Limiter
}

// routes messages between visitor connections and the single operator
type Hub struct {
	// visitor clients by transport identifier
	visitors map[string]*Client

	// the single operator connection (nil when no operator is online)
	operator *Client

	// register requests from clients
	Register chan *Client

	// unregister requests from clients
	Unregister chan *Client

	// inbound messages from clients
	Inbound chan *Message

	// mutex for thread-safe access to clients
	mu sync.RWMutex

	// message handlers for different message types
	handlers map[string]MessageHandler

	// flag indicating if hub is running
	running bool

	// channel to signal shutdown
	shutdown chan struct{}

	// connection tracking: IP address -> count of connections
	ipConnections map[string]int
}

// processes a specific message type
type MessageHandler func(hub *Hub, client *Client, msg *Message) error
