package relay

import (
	"codeberg.org/motorline/relay/internal/logger"
)

// registers the full set of relay message handlers on a hub
func RegisterHandlers(hub *Hub) {
	hub.RegisterHandler(TypeSendMessage, SendMessageHandler())
	hub.RegisterHandler(TypeEndChat, EndChatHandler())
	hub.RegisterHandler(TypePing, PingHandler())
}

// relays a user-authored message to the other end of the conversation
func SendMessageHandler() MessageHandler {
	return func(hub *Hub, client *Client, msg *Message) error {
		if !client.allowChatMessage() {
			client.SendError("too_many_requests", "too many messages, slow down", "")
			return ErrRateLimitExceeded
		}

		var payload SendMessagePayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			client.SendError("validation_error", "failed to parse message", err.Error())
			return err
		}

		if len(payload.Text) == 0 {
			client.SendError("bad_request", "message text is required", "")
			return ErrInvalidPayload
		}

		if len(payload.Text) > maxChatMessageSize {
			client.SendError("bad_request", "message exceeds maximum length", "")
			return ErrMessageTooLarge
		}

		from := payload.From
		if from == "" {
			from = client.DisplayName
		}

		if client.IsOperator() {
			// operator -> visitor: the conn id names the target conversation
			visitor, exists := hub.Visitor(msg.ConnID)
			if !exists {
				client.SendError("not_found", "no such conversation", "")
				return ErrVisitorNotFound
			}

			delivery, err := NewMessage(TypeReceiveMessage, visitor.ID, client.UserID, ReceiveMessagePayload{
				Message: payload.Text,
				From:    from,
			})
			if err != nil {
				return err
			}

			return visitor.Send(delivery)
		}

		// visitor -> operator: stamp the visitor's routing key and identity
		operator := hub.Operator()
		if operator == nil {
			client.SendError("not_found", "no operator is available", "")
			return ErrNoOperator
		}

		delivery, err := NewMessage(TypeReceiveMessage, client.ID, client.UserID, ReceiveMessagePayload{
			Message:   payload.Text,
			From:      from,
			VisitorID: client.UserID,
		})
		if err != nil {
			return err
		}

		return operator.Send(delivery)
	}
}

// terminates a conversation on the operator's request
func EndChatHandler() MessageHandler {
	return func(hub *Hub, client *Client, msg *Message) error {
		if !client.IsOperator() {
			client.SendError("forbidden", "only the operator can end a chat", "")
			return ErrOperatorOnly
		}

		var payload EndChatPayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			client.SendError("validation_error", "failed to parse end_chat", err.Error())
			return err
		}

		connID := payload.ConnID
		if connID == "" {
			connID = msg.ConnID
		}

		if err := hub.EndVisitorChat(connID, payload.Reason); err != nil {
			client.SendError("not_found", "no such conversation", "")
			return err
		}

		logger.Info("end_chat processed",
			"conn_id", connID,
			"operator_id", client.UserID,
		)

		return nil
	}
}

// responds to client keepalive pings
func PingHandler() MessageHandler {
	return func(hub *Hub, client *Client, msg *Message) error {
		pong, err := NewMessage(TypePong, client.ID, "", nil)
		if err != nil {
			return err
		}

		return client.Send(pong)
	}
}
