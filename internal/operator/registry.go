// Package operator multiplexes N concurrent visitor conversations over the
// single operator connection. The registry maps each visitor's conn id to a
// Session, tracks which session the operator has selected, and routes
// inbound messages into the right transcript.
package operator

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/motorline/relay/internal/identity"
	"codeberg.org/motorline/relay/internal/logger"
	"codeberg.org/motorline/relay/internal/relay"
)

// identity lookups that outlive this window degrade to the placeholder
const resolveTimeout = 5 * time.Second

func NewRegistry(conn Transport, resolver identity.Resolver, handle string) *Registry {
	return &Registry{
		conn:     conn,
		resolver: resolver,
		handle:   handle,
		sessions: make(map[string]*Session),
	}
}

// dispatches one inbound relay message. The message set is closed:
// anything unhandled is an error, not a silent drop.
func (r *Registry) Handle(msg *relay.Message) error {
	switch msg.Type {
	case relay.TypeStartChat:
		return r.handleStartChat(msg)
	case relay.TypeReceiveMessage:
		return r.OnReceiveMessage(msg)
	case relay.TypeVisitorLeft:
		return r.handleVisitorLeft(msg)
	case relay.TypeError:
		var payload struct {
			Message string `json:"message"`
		}
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return fmt.Errorf("invalid error payload: %w", err)
		}
		logger.Warn("relay reported an error", "message", payload.Message)
		return nil
	case relay.TypePong:
		return nil
	case relay.TypeServerShutdown:
		logger.Warn("relay is shutting down")
		return nil
	default:
		return fmt.Errorf("unhandled message type: %s", msg.Type)
	}
}

func (r *Registry) handleStartChat(msg *relay.Message) error {
	var payload relay.StartChatPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("invalid start_chat payload: %w", err)
	}

	connID := payload.ConnID
	if connID == "" {
		connID = msg.ConnID
	}

	if connID == "" {
		return fmt.Errorf("start_chat without a conn id: %w", relay.ErrInvalidPayload)
	}

	r.OnStartChat(payload.VisitorID, connID, payload.DisplayName)

	return nil
}

// creates a session for a visitor conn id. Idempotent: a second start_chat
// for the same conn id is a no-op. The identity lookup runs asynchronously;
// until it lands the session carries a placeholder identity and is already
// routable by conn id.
func (r *Registry) OnStartChat(visitorID, connID, displayName string) {
	r.mu.Lock()

	if _, exists := r.sessions[connID]; exists {
		r.mu.Unlock()
		return
	}

	placeholder := identity.Placeholder(visitorID)
	if displayName != "" {
		placeholder.DisplayName = displayName
	}

	session := newSession(connID, placeholder)
	session.appendSystem("Chat started.")

	if visitorID == "" || r.resolver == nil {
		// anonymous visitor; the placeholder is all there is
		session.activate()
		r.sessions[connID] = session
		r.order = append(r.order, connID)
		r.mu.Unlock()
		return
	}

	r.sessions[connID] = session
	r.order = append(r.order, connID)
	r.mu.Unlock()

	go r.resolveIdentity(connID, visitorID)
}

// looks up the visitor's identity and applies it, unless the session was
// removed while the lookup was in flight. A late resolution for a removed
// session is discarded, never revived.
func (r *Registry) resolveIdentity(connID, visitorID string) {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	ident, err := r.resolver.Resolve(ctx, visitorID)

	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[connID]
	if !exists {
		logger.Debug("discarding identity resolution for removed session",
			"conn_id", connID,
			"visitor_id", visitorID,
		)
		return
	}

	if err != nil {
		logger.Warn("identity lookup failed, keeping placeholder",
			"visitor_id", visitorID,
			"error", err,
		)
		session.activate()
		return
	}

	session.setResolved(ident)
}

// routes a delivered message into the right session's transcript.
// Resolution order: the conn id stamped on the message, then the visitor
// identity in the payload, then the selected session, then any session at
// all. The trailing fallbacks are best effort for payloads that arrive
// without a routing key, not a correctness guarantee.
func (r *Registry) OnReceiveMessage(msg *relay.Message) error {
	var payload relay.ReceiveMessagePayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("invalid receive_message payload: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session := r.route(msg.ConnID, payload.VisitorID)
	if session == nil {
		return fmt.Errorf("no session for message from %q: %w", payload.From, ErrNoSessions)
	}

	sender := payload.From
	if sender == "" {
		sender = session.DisplayName()
	}

	session.append(sender, payload.Message)

	return nil
}

// resolves a target session from whatever routing info the message carries.
// Reads the live registry state under the lock, so a create/remove/select
// that happened a moment ago is always visible here.
func (r *Registry) route(connID, visitorID string) *Session {
	if connID != "" {
		if session, exists := r.sessions[connID]; exists {
			return session
		}
	}

	if visitorID != "" {
		for _, session := range r.sessions {
			if session.Identity().ID == visitorID {
				return session
			}
		}
	}

	if r.selected != "" {
		if session, exists := r.sessions[r.selected]; exists {
			return session
		}
	}

	// last resort: the oldest session still in the registry
	for _, id := range r.order {
		if session, exists := r.sessions[id]; exists {
			return session
		}
	}

	return nil
}

// moves the selected pointer; transcripts are untouched
func (r *Registry) SelectSession(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[connID]; !exists {
		return ErrSessionNotFound
	}

	r.selected = connID

	return nil
}

// returns the currently selected session, nil when none is selected
func (r *Registry) Selected() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.selected == "" {
		return nil
	}

	return r.sessions[r.selected]
}

// returns the session for a conn id
func (r *Registry) Session(connID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[connID]
	return session, exists
}

// returns all sessions in creation order
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, id := range r.order {
		if session, exists := r.sessions[id]; exists {
			out = append(out, session)
		}
	}

	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// sends a chat message into one conversation. The transcript is appended
// only once the relay accepts the message; a transport failure leaves the
// session untouched so the operator can retry.
func (r *Registry) SendMessage(connID, text string) error {
	r.mu.Lock()
	session, exists := r.sessions[connID]
	r.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}

	if err := r.conn.SendPayload(relay.TypeSendMessage, connID, relay.SendMessagePayload{
		Text: text,
		From: r.handle,
	}); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	session.append(r.handle, text)

	return nil
}

// terminates a conversation: tells the relay, notes it locally, then
// removes the session from the registry entirely. The end event goes out
// first; if the transport refuses it the session stays in the registry so
// the visitor is never left in a chat the operator believes is over.
// Ended sessions are not archived; conversation history is deliberately
// not retained.
func (r *Registry) EndChat(connID, reason string) error {
	r.mu.Lock()
	session, exists := r.sessions[connID]
	r.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}

	if err := r.conn.SendPayload(relay.TypeEndChat, connID, relay.EndChatPayload{
		ConnID: connID,
		Reason: reason,
	}); err != nil {
		return fmt.Errorf("failed to end chat: %w", err)
	}

	session.appendSystem("Chat ended.")

	r.mu.Lock()
	r.remove(connID)
	r.mu.Unlock()

	return nil
}

func (r *Registry) handleVisitorLeft(msg *relay.Message) error {
	var payload relay.VisitorLeftPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("invalid visitor_left payload: %w", err)
	}

	connID := payload.ConnID
	if connID == "" {
		connID = msg.ConnID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[connID]; !exists {
		// already gone, nothing to do
		return nil
	}

	r.remove(connID)

	return nil
}

// drops a session from the map, the order list, and the selected pointer.
// Caller holds the lock.
func (r *Registry) remove(connID string) {
	delete(r.sessions, connID)

	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if r.selected == connID {
		r.selected = ""
	}
}
