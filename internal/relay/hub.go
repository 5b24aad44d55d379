package relay

import (
	"time"

	"codeberg.org/motorline/relay/internal/logger"
)

func NewHub() *Hub {
	return &Hub{
		visitors:      make(map[string]*Client),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		Inbound:       make(chan *Message, 256),
		handlers:      make(map[string]MessageHandler),
		running:       false,
		shutdown:      make(chan struct{}),
		ipConnections: make(map[string]int),
	}
}

// registers a handler for a specific message type
func (h *Hub) RegisterHandler(messageType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[messageType] = handler
}

// starts the hub's main loop
func (h *Hub) Run() {
	h.running = true
	defer func() {
		h.running = false
	}()

	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case message := <-h.Inbound:
			h.handleMessage(message)

		case <-h.shutdown:
			h.closeAllConnections()
			return
		}
	}
}

// adds a client to the hub and announces the conversation binding
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.IsOperator() {
		// single-operator relay: a newer operator connection replaces the old one
		if h.operator != nil {
			logger.Warn("replacing existing operator connection",
				"old_conn_id", h.operator.ID,
				"new_conn_id", client.ID,
			)
			h.operator.Close()
		}

		h.operator = client

		logger.Info("operator registered",
			"conn_id", client.ID,
			"user_id", client.UserID,
		)

		// announce every waiting visitor to the fresh operator
		for _, visitor := range h.visitors {
			h.announceStartChat(visitor)
		}

		return
	}

	h.visitors[client.ID] = client

	logger.Info("visitor registered",
		"conn_id", client.ID,
		"user_id", client.UserID,
		"display_name", client.DisplayName,
	)

	if h.operator != nil {
		h.announceStartChat(client)
	}
}

// sends start_chat to both ends of a visitor conversation.
// must be called with the hub lock held and an operator present.
func (h *Hub) announceStartChat(visitor *Client) {
	operatorMsg, err := NewMessage(TypeStartChat, visitor.ID, visitor.UserID, StartChatPayload{
		VisitorID:   visitor.UserID,
		ConnID:      visitor.ID,
		DisplayName: visitor.DisplayName,
	})
	if err == nil {
		if sendErr := h.operator.Send(operatorMsg); sendErr != nil {
			logger.ErrorErr(sendErr, "failed to announce visitor to operator",
				"conn_id", visitor.ID,
			)
		}
	}

	visitorMsg, err := NewMessage(TypeStartChat, visitor.ID, "", StartChatPayload{
		OperatorHandle: h.operator.DisplayName,
	})
	if err == nil {
		if sendErr := visitor.Send(visitorMsg); sendErr != nil {
			logger.ErrorErr(sendErr, "failed to announce operator to visitor",
				"conn_id", visitor.ID,
			)
		}
	}
}

// removes a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.IPAddress != "" {
		h.ipConnections[client.IPAddress]--

		if h.ipConnections[client.IPAddress] <= 0 {
			delete(h.ipConnections, client.IPAddress)
		}
	}

	if client.IsOperator() {
		// only clear if this is still the current operator (it may have been replaced)
		if h.operator == client {
			h.operator = nil
			logger.Info("operator unregistered", "conn_id", client.ID)
		}

		client.Close()
		return
	}

	if _, exists := h.visitors[client.ID]; !exists {
		return
	}

	delete(h.visitors, client.ID)
	client.Close()

	logger.Info("visitor unregistered",
		"conn_id", client.ID,
		"user_id", client.UserID,
	)

	// tell the operator so the session is torn down on their side
	if h.operator != nil {
		leftMsg, err := NewMessage(TypeVisitorLeft, client.ID, client.UserID, VisitorLeftPayload{
			ConnID:    client.ID,
			VisitorID: client.UserID,
		})
		if err == nil {
			if sendErr := h.operator.Send(leftMsg); sendErr != nil {
				logger.ErrorErr(sendErr, "failed to notify operator of visitor leave",
					"conn_id", client.ID,
				)
			}
		}
	}
}

// processes an incoming message.
// handlers run on the hub loop so per-conversation arrival order is preserved.
func (h *Hub) handleMessage(msg *Message) {
	sender := h.findSender(msg)
	if sender == nil {
		logger.Warn("sender not found for message",
			"conn_id", msg.ConnID,
			"message_type", msg.Type,
		)
		return
	}

	h.mu.RLock()
	handler, exists := h.handlers[msg.Type]
	h.mu.RUnlock()

	if !exists {
		// closed message set: reject anything unknown
		logger.Warn("unhandled message type received",
			"message_type", msg.Type,
			"conn_id", sender.ID,
		)

		sender.SendError("bad_request", "unsupported message type", "message type not recognized")
		return
	}

	if err := handler(h, sender, msg); err != nil {
		logger.ErrorErr(err, "handler error",
			"message_type", msg.Type,
			"conn_id", sender.ID,
		)
	}
}

// resolves the client a message came from.
// SenderID is stamped by the read pump; ConnID cannot be trusted for this
// because operator messages carry the target visitor's conn id, not their own.
func (h *Hub) findSender(msg *Message) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if visitor, exists := h.visitors[msg.SenderID]; exists {
		return visitor
	}

	if h.operator != nil && h.operator.ID == msg.SenderID {
		return h.operator
	}

	return nil
}

// returns the current operator client, if any
func (h *Hub) Operator() *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.operator
}

// returns a visitor client by transport identifier
func (h *Hub) Visitor(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	visitor, exists := h.visitors[connID]
	return visitor, exists
}

// returns the number of connected visitors
func (h *Hub) VisitorCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.visitors)
}

// removes a visitor after the operator ended the chat.
// the visitor is told first, then the connection is closed.
func (h *Hub) EndVisitorChat(connID, reason string) error {
	h.mu.Lock()

	visitor, exists := h.visitors[connID]
	if !exists {
		h.mu.Unlock()
		return ErrVisitorNotFound
	}

	if reason == "" {
		reason = "The operator has ended this chat."
	}

	endedMsg, err := NewMessage(TypeChatEnded, connID, "", ChatEndedPayload{
		Message: reason,
	})
	if err == nil {
		if sendErr := visitor.Send(endedMsg); sendErr != nil {
			logger.ErrorErr(sendErr, "failed to send chat_ended",
				"conn_id", connID,
			)
		}
	}

	delete(h.visitors, connID)
	h.mu.Unlock()

	// the write pump drains queued messages before the close frame,
	// so chat_ended still reaches the visitor
	visitor.Close()

	logger.Info("chat ended by operator", "conn_id", connID)
	return nil
}

func (h *Hub) Shutdown() {
	if h.running {
		close(h.shutdown)
	}
}

func (h *Hub) closeAllConnections() {
	h.mu.Lock()

	logger.Info("notifying clients of server shutdown")

	shutdownMsg, err := NewMessage(TypeServerShutdown, "", "", ServerShutdownPayload{
		Reason: "server is shutting down for maintenance",
	})
	if err == nil {
		for _, visitor := range h.visitors {
			if sendErr := visitor.Send(shutdownMsg); sendErr != nil {
				logger.ErrorErr(sendErr, "failed to send shutdown notification",
					"conn_id", visitor.ID,
				)
			}
		}

		if h.operator != nil {
			h.operator.Send(shutdownMsg) //nolint:errcheck,gosec // G104: best effort on shutdown
		}
	}

	h.mu.Unlock()

	// give clients time to receive the shutdown message
	time.Sleep(500 * time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()

	logger.Info("closing all websocket connections")

	for connID, visitor := range h.visitors {
		visitor.Close()
		logger.Debug("closed visitor", "conn_id", connID)
	}

	if h.operator != nil {
		h.operator.Close()
		h.operator = nil
	}

	h.visitors = make(map[string]*Client)
	h.ipConnections = make(map[string]int)
}

// checks if a new connection should be allowed based on limits
func (h *Hub) CanAcceptConnection(ipAddress string) (bool, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := h.ipConnections[ipAddress]
	if count >= maxConnectionsPerIP {
		return false, "Maximum connections per IP address exceeded"
	}

	return true, ""
}

// increments the connection count for an IP address
func (h *Hub) TrackIPConnection(ipAddress string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ipConnections[ipAddress]++
}
