package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/motorline/relay/internal/auth"
	"codeberg.org/motorline/relay/internal/connection"
	"codeberg.org/motorline/relay/internal/operator"
	"codeberg.org/motorline/relay/internal/relay"
	"codeberg.org/motorline/relay/internal/visitor"
)

// spins up a full relay: hub loop, gin router, websocket endpoint
func setupRelay(t *testing.T) string {
	t.Helper()

	t.Setenv("JWT_SECRET", "e2e-test-secret")

	gin.SetMode(gin.TestMode)

	hub := relay.NewHub()
	relay.RegisterHandlers(hub)
	go hub.Run()
	t.Cleanup(hub.Shutdown)

	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), hub)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"
}

func connect(t *testing.T, endpoint, userID, displayName, role string) *connection.Manager {
	t.Helper()

	token, err := auth.GenerateJWT(userID, displayName, role)
	require.NoError(t, err)

	m := connection.NewManager(connection.Config{
		ServerAddress: endpoint,
		Credential:    token,
	})
	t.Cleanup(m.Close)

	require.NoError(t, m.Connect())

	return m
}

// feeds a manager's inbound messages into a handler until the test ends
func pump(m *connection.Manager, handle func(*relay.Message) error) {
	go func() {
		for msg := range m.Inbound() {
			handle(msg) //nolint:errcheck,gosec // test pump
		}
	}()
}

func TestHandlerRejectsInvalidToken(t *testing.T) {
	endpoint := setupRelay(t)

	httpURL := "http" + strings.TrimPrefix(endpoint, "ws") + "?token=not-a-jwt"
	resp, err := http.Get(httpURL) //nolint:noctx,gosec // test request
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck // test cleanup

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandlerRejectsMissingToken(t *testing.T) {
	endpoint := setupRelay(t)

	httpURL := "http" + strings.TrimPrefix(endpoint, "ws")
	resp, err := http.Get(httpURL) //nolint:noctx,gosec // test request
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck // test cleanup

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// the full conversation lifecycle over real websockets: a visitor connects,
// gets bound to the operator, sends a message that lands in exactly one
// registry session, and the operator's end_chat locks the visitor session
// and removes the registry entry
func TestConversationLifecycle(t *testing.T) {
	endpoint := setupRelay(t)

	operatorConn := connect(t, endpoint, "op-1", "Shop Admin", auth.RoleOperator)
	registry := operator.NewRegistry(operatorConn, nil, "Shop Admin")
	pump(operatorConn, registry.Handle)

	visitorConn := connect(t, endpoint, "", "Alex", auth.RoleVisitor)
	session := visitor.NewSession(visitorConn, "Alex")
	pump(visitorConn, session.HandleMessage)

	// visitor is announced to both ends
	require.Eventually(t, func() bool {
		return registry.Len() == 1 && session.State() == visitor.StateActive
	}, 3*time.Second, 20*time.Millisecond, "start_chat never reached both roles")

	assert.Equal(t, "Shop Admin", session.OperatorHandle())

	require.NoError(t, session.SendMessage("Hello"))

	connID := registry.Sessions()[0].ConnID

	require.Eventually(t, func() bool {
		for _, line := range registry.Sessions()[0].Transcript() {
			if !line.System && line.Body == "Hello" {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond, "visitor message never reached the registry")

	require.NoError(t, registry.EndChat(connID, "issue resolved"))

	require.Eventually(t, func() bool {
		return session.State() == visitor.StateEnded
	}, 3*time.Second, 20*time.Millisecond, "chat_ended never reached the visitor")

	messages := session.Transcript()
	last := messages[len(messages)-1]
	assert.True(t, last.System)
	assert.Equal(t, "issue resolved", last.Body)

	assert.Zero(t, registry.Len())
}

// two visitors chat in overlapping ticks; each registry session must hold
// only its own visitor's message
func TestConcurrentVisitorsDoNotCrossContaminate(t *testing.T) {
	endpoint := setupRelay(t)

	operatorConn := connect(t, endpoint, "op-1", "Shop Admin", auth.RoleOperator)
	registry := operator.NewRegistry(operatorConn, nil, "Shop Admin")
	pump(operatorConn, registry.Handle)

	connA := connect(t, endpoint, "", "Ana", auth.RoleVisitor)
	sessionA := visitor.NewSession(connA, "Ana")
	pump(connA, sessionA.HandleMessage)

	connB := connect(t, endpoint, "", "Ben", auth.RoleVisitor)
	sessionB := visitor.NewSession(connB, "Ben")
	pump(connB, sessionB.HandleMessage)

	require.Eventually(t, func() bool {
		return registry.Len() == 2 &&
			sessionA.State() == visitor.StateActive &&
			sessionB.State() == visitor.StateActive
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, sessionA.SendMessage("ping"))
	require.NoError(t, sessionB.SendMessage("pong"))

	require.Eventually(t, func() bool {
		total := 0
		for _, s := range registry.Sessions() {
			for _, line := range s.Transcript() {
				if !line.System {
					total++
				}
			}
		}
		return total == 2
	}, 3*time.Second, 20*time.Millisecond, "both messages should arrive")

	for _, s := range registry.Sessions() {
		var bodies []string
		for _, line := range s.Transcript() {
			if !line.System {
				bodies = append(bodies, line.Body)
			}
		}

		require.Len(t, bodies, 1, "each session holds exactly its own message")

		switch s.DisplayName() {
		case "Ana":
			assert.Equal(t, []string{"ping"}, bodies)
		case "Ben":
			assert.Equal(t, []string{"pong"}, bodies)
		default:
			t.Fatalf("unexpected session %q", s.DisplayName())
		}
	}
}
