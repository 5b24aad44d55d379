package connection

// lifecycle event types surfaced to the owning component.
// these are observational: the manager itself stops retrying after
// MaxAttempts and never reconnects on a fatal condition.
type EventType string

const (
	EventConnected        EventType = "connected"
	EventDisconnected     EventType = "disconnected"
	EventConnectError     EventType = "connect_error"
	EventConnectTimeout   EventType = "connect_timeout"
	EventReconnectAttempt EventType = "reconnect_attempt"
	EventReconnected      EventType = "reconnect"
	EventReconnectFailed  EventType = "reconnect_failed"
)

// one connection lifecycle notification
type Event struct {
	Type    EventType
	Attempt int // set for reconnect_attempt and reconnect
	Err     error
}

// connectivity states of the managed connection
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)
