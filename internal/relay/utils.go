package relay

import (
	"encoding/json"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"codeberg.org/motorline/relay/internal/logger"
)

// creates a message with a marshaled payload
func NewMessage(msgType, connID, userID string, payload any) (*Message, error) {
	var raw json.RawMessage

	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}

		raw = bytes
	}

	return &Message{
		Type:      msgType,
		ConnID:    connID,
		UserID:    userID,
		Timestamp: time.Now(),
		Payload:   raw,
	}, nil
}

// returns a fresh opaque transport identifier
func NewConnID() string {
	return uuid.NewString()
}

func getAllowedWebSocketOrigins() []string {
	if envOrigins := os.Getenv("ALLOWED_ORIGINS"); envOrigins != "" {
		origins := strings.Split(envOrigins, ",")

		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}

		return origins
	}

	return []string{}
}

func CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	env := os.Getenv("ENVIRONMENT")

	if origin == "" {
		// allow no origin header in development
		if env != "production" {
			return true
		}

		logger.Warn("websocket connection with no origin header")
		return false
	}

	if env != "production" {
		return true
	}

	// production: validate against allowed origins
	allowedOrigins := getAllowedWebSocketOrigins()

	if len(allowedOrigins) == 0 {
		logger.Warn("websocket origin rejected - ALLOWED_ORIGINS not configured",
			"origin", origin,
		)
		return false
	}

	if slices.Contains(allowedOrigins, origin) {
		return true
	}

	logger.Warn("websocket origin rejected - not in allowed origins",
		"origin", origin,
		"allowed_origins", allowedOrigins,
	)

	return false
}
