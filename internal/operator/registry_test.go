package operator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/motorline/relay/internal/identity"
	"codeberg.org/motorline/relay/internal/relay"
	"codeberg.org/motorline/relay/internal/transcript"
)

// records every payload handed to the transport; a non-nil fail rejects
// sends without recording them
type fakeTransport struct {
	mu   sync.Mutex
	sent []sentMessage
	fail error
}

type sentMessage struct {
	msgType string
	connID  string
	payload any
}

func (f *fakeTransport) SendPayload(msgType, connID string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return f.fail
	}

	f.sent = append(f.sent, sentMessage{msgType: msgType, connID: connID, payload: payload})
	return nil
}

func (f *fakeTransport) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeTransport) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

// resolver with a controllable result; an optional gate holds every lookup
// until the test releases it
type fakeResolver struct {
	ident identity.Identity
	err   error
	gate  chan struct{}
}

func (f *fakeResolver) Resolve(ctx context.Context, userID string) (identity.Identity, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return identity.Identity{}, ctx.Err()
		}
	}

	if f.err != nil {
		return identity.Identity{}, f.err
	}

	if f.ident.ID == "" {
		return identity.Identity{ID: userID, DisplayName: "Resolved " + userID}, nil
	}

	return f.ident, nil
}

func waitForState(t *testing.T, r *Registry, connID string, want SessionState) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if session, ok := r.Session(connID); ok && session.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("session %q never reached state %q", connID, want)
}

func receiveMessage(t *testing.T, r *Registry, connID, visitorID, from, body string) {
	t.Helper()

	msg, err := relay.NewMessage(relay.TypeReceiveMessage, connID, "", relay.ReceiveMessagePayload{
		Message:   body,
		From:      from,
		VisitorID: visitorID,
	})
	require.NoError(t, err)
	require.NoError(t, r.Handle(msg))
}

func TestOnStartChatCreatesSession(t *testing.T) {
	r := NewRegistry(&fakeTransport{}, &fakeResolver{}, "Shop Admin")

	r.OnStartChat("cust-1", "conn-1", "")

	session, ok := r.Session("conn-1")
	require.True(t, ok)
	assert.Equal(t, "conn-1", session.ConnID)

	waitForState(t, r, "conn-1", SessionActive)

	session, _ = r.Session("conn-1")
	assert.Equal(t, "Resolved cust-1", session.Identity().DisplayName)
}

func TestOnStartChatIsIdempotent(t *testing.T) {
	r := NewRegistry(&fakeTransport{}, &fakeResolver{}, "Shop Admin")

	r.OnStartChat("cust-1", "conn-1", "")
	r.OnStartChat("cust-1", "conn-1", "")
	r.OnStartChat("someone-else", "conn-1", "")

	assert.Equal(t, 1, r.Len())
}

func TestAnonymousVisitorGetsPlaceholderImmediately(t *testing.T) {
	r := NewRegistry(&fakeTransport{}, &fakeResolver{}, "Shop Admin")

	r.OnStartChat("", "conn-1", "")

	session, ok := r.Session("conn-1")
	require.True(t, ok)
	assert.Equal(t, SessionActive, session.State())
	assert.Equal(t, "Guest", session.Identity().DisplayName)
}

func TestIdentityLookupFailureFallsBackToPlaceholder(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("customer api unreachable")}
	r := NewRegistry(&fakeTransport{}, resolver, "Shop Admin")

	r.OnStartChat("cust-7", "conn-1", "")

	waitForState(t, r, "conn-1", SessionActive)

	session, _ := r.Session("conn-1")
	assert.Equal(t, "Visitor cust-7", session.Identity().DisplayName)
}

// the UI polls session state, name, and transcript while the identity
// lookup lands on another goroutine; all of it must be safe under the
// race detector
func TestSessionReadsAreSafeDuringIdentityResolution(t *testing.T) {
	resolver := &fakeResolver{gate: make(chan struct{})}
	r := NewRegistry(&fakeTransport{}, resolver, "Shop Admin")

	r.OnStartChat("cust-3", "conn-3", "")
	session := mustSession(t, r, "conn-3")

	done := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					_ = session.State()
					_ = session.DisplayName()
					_ = session.Transcript()
				}
			}
		}()
	}

	close(resolver.gate)
	waitForState(t, r, "conn-3", SessionActive)

	close(done)
	wg.Wait()

	assert.Equal(t, "Resolved cust-3", session.Identity().DisplayName)
}

func TestLateIdentityResolutionAfterRemovalIsDiscarded(t *testing.T) {
	resolver := &fakeResolver{gate: make(chan struct{})}
	r := NewRegistry(&fakeTransport{}, resolver, "Shop Admin")

	r.OnStartChat("cust-9", "conn-9", "")
	require.NoError(t, r.EndChat("conn-9", "resolved"))
	require.Zero(t, r.Len())

	// let the in-flight lookup finish now that the session is gone
	close(resolver.gate)
	time.Sleep(50 * time.Millisecond)

	assert.Zero(t, r.Len(), "late resolution must not revive a removed session")
	_, ok := r.Session("conn-9")
	assert.False(t, ok)
}

func TestRoutingByConnID(t *testing.T) {
	r := NewRegistry(&fakeTransport{}, nil, "Shop Admin")
	r.OnStartChat("", "conn-a", "Ana")
	r.OnStartChat("", "conn-b", "Ben")

	receiveMessage(t, r, "conn-b", "", "Ben", "pong")

	a := mustSession(t, r, "conn-a")
	b := mustSession(t, r, "conn-b")
	assert.Zero(t, countChat(a))
	require.Equal(t, 1, countChat(b))

	last, _ := lastMessage(b)
	assert.Equal(t, "Ben", last.Sender)
	assert.Equal(t, "pong", last.Body)
}

func TestRoutingFallsBackToVisitorIdentity(t *testing.T) {
	r := NewRegistry(&fakeTransport{}, &fakeResolver{}, "Shop Admin")
	r.OnStartChat("cust-1", "conn-1", "")
	r.OnStartChat("cust-2", "conn-2", "")
	waitForState(t, r, "conn-1", SessionActive)
	waitForState(t, r, "conn-2", SessionActive)

	// no conn id on the message; identity match must route it
	receiveMessage(t, r, "", "cust-2", "Resolved cust-2", "where is my invoice?")

	session, _ := r.Session("conn-2")
	last, ok := lastMessage(session)
	require.True(t, ok)
	assert.Equal(t, "where is my invoice?", last.Body)

	other, _ := r.Session("conn-1")
	assert.Zero(t, countChat(other))
}

func TestRoutingFallsBackToSelectedSession(t *testing.T) {
	r := NewRegistry(&fakeTransport{}, nil, "Shop Admin")
	r.OnStartChat("", "conn-1", "")
	r.OnStartChat("", "conn-2", "")
	require.NoError(t, r.SelectSession("conn-2"))

	// neither a conn id nor a matching identity
	receiveMessage(t, r, "", "unknown-visitor", "someone", "hello?")

	session, _ := r.Session("conn-2")
	last, ok := lastMessage(session)
	require.True(t, ok)
	assert.Equal(t, "hello?", last.Body)
}

func TestRoutingFallsBackToArbitrarySession(t *testing.T) {
	r := NewRegistry(&fakeTransport{}, nil, "Shop Admin")
	r.OnStartChat("", "conn-1", "")

	// nothing selected, no routing info at all
	receiveMessage(t, r, "", "", "someone", "anyone there?")

	session, _ := r.Session("conn-1")
	last, ok := lastMessage(session)
	require.True(t, ok)
	assert.Equal(t, "anyone there?", last.Body)
}

func TestRoutingWithNoSessionsFails(t *testing.T) {
	r := NewRegistry(&fakeTransport{}, nil, "Shop Admin")

	msg, err := relay.NewMessage(relay.TypeReceiveMessage, "", "", relay.ReceiveMessagePayload{
		Message: "lost",
		From:    "nobody",
	})
	require.NoError(t, err)

	assert.ErrorIs(t, r.Handle(msg), ErrNoSessions)
}

func TestSelectSessionMovesPointerOnly(t *testing.T) {
	r := NewRegistry(&fakeTransport{}, nil, "Shop Admin")
	r.OnStartChat("", "conn-1", "")
	r.OnStartChat("", "conn-2", "")

	before1 := len(mustSession(t, r, "conn-1").Transcript())
	before2 := len(mustSession(t, r, "conn-2").Transcript())

	require.NoError(t, r.SelectSession("conn-2"))

	assert.Equal(t, "conn-2", r.Selected().ConnID)
	assert.Len(t, mustSession(t, r, "conn-1").Transcript(), before1)
	assert.Len(t, mustSession(t, r, "conn-2").Transcript(), before2)

	assert.ErrorIs(t, r.SelectSession("missing"), ErrSessionNotFound)
}

func TestEndChatEmitsAndRemovesEntirely(t *testing.T) {
	transport := &fakeTransport{}
	r := NewRegistry(transport, nil, "Shop Admin")
	r.OnStartChat("", "conn-1", "")
	require.NoError(t, r.SelectSession("conn-1"))

	require.NoError(t, r.EndChat("conn-1", "issue resolved"))

	assert.Zero(t, r.Len())
	assert.Nil(t, r.Selected())

	sent := transport.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, relay.TypeEndChat, sent[0].msgType)
	assert.Equal(t, "conn-1", sent[0].connID)

	payload, ok := sent[0].payload.(relay.EndChatPayload)
	require.True(t, ok)
	assert.Equal(t, "issue resolved", payload.Reason)

	assert.ErrorIs(t, r.EndChat("conn-1", ""), ErrSessionNotFound)
}

// the visitor is notified before any local teardown: a transport failure
// must leave the session, its selection, and its transcript intact so the
// operator can end the chat again once the connection recovers
func TestEndChatTransportFailureKeepsSession(t *testing.T) {
	transport := &fakeTransport{fail: errors.New("connection reset")}
	r := NewRegistry(transport, nil, "Shop Admin")
	r.OnStartChat("", "conn-1", "")
	require.NoError(t, r.SelectSession("conn-1"))

	require.Error(t, r.EndChat("conn-1", "issue resolved"))

	assert.Equal(t, 1, r.Len())
	require.NotNil(t, r.Selected())
	assert.Equal(t, "conn-1", r.Selected().ConnID)

	last, ok := lastMessage(mustSession(t, r, "conn-1"))
	require.True(t, ok)
	assert.NotEqual(t, "Chat ended.", last.Body)

	// once the transport recovers the same call succeeds and tears down
	transport.setFail(nil)
	require.NoError(t, r.EndChat("conn-1", "issue resolved"))
	assert.Zero(t, r.Len())

	sent := transport.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, relay.TypeEndChat, sent[0].msgType)
}

func TestVisitorLeftRemovesSession(t *testing.T) {
	r := NewRegistry(&fakeTransport{}, nil, "Shop Admin")
	r.OnStartChat("", "conn-1", "")

	msg, err := relay.NewMessage(relay.TypeVisitorLeft, "conn-1", "", relay.VisitorLeftPayload{
		ConnID: "conn-1",
	})
	require.NoError(t, err)
	require.NoError(t, r.Handle(msg))

	assert.Zero(t, r.Len())

	// a second visitor_left for the same id is harmless
	require.NoError(t, r.Handle(msg))
}

func TestSendMessageAppendsAndEmits(t *testing.T) {
	transport := &fakeTransport{}
	r := NewRegistry(transport, nil, "Shop Admin")
	r.OnStartChat("", "conn-1", "")

	require.NoError(t, r.SendMessage("conn-1", "Your car is ready."))

	session, _ := r.Session("conn-1")
	last, ok := lastMessage(session)
	require.True(t, ok)
	assert.Equal(t, "Shop Admin", last.Sender)
	assert.Equal(t, "Your car is ready.", last.Body)

	sent := transport.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, relay.TypeSendMessage, sent[0].msgType)
	assert.Equal(t, "conn-1", sent[0].connID)

	assert.ErrorIs(t, r.SendMessage("missing", "hi"), ErrSessionNotFound)
}

func TestSendMessageTransportFailureLeavesTranscriptAlone(t *testing.T) {
	transport := &fakeTransport{fail: errors.New("connection reset")}
	r := NewRegistry(transport, nil, "Shop Admin")
	r.OnStartChat("", "conn-1", "")

	before := countChat(mustSession(t, r, "conn-1"))

	require.Error(t, r.SendMessage("conn-1", "Your car is ready."))

	assert.Equal(t, before, countChat(mustSession(t, r, "conn-1")),
		"an unsent message must not land in the transcript")
}

// per-session FIFO under randomized interleavings across several
// concurrent conversations: each transcript must contain exactly its own
// messages, in arrival order, with no cross-contamination
func TestPerSessionFIFOAcrossInterleavedSessions(t *testing.T) {
	r := NewRegistry(&fakeTransport{}, nil, "Shop Admin")

	sessionIDs := []string{"conn-a", "conn-b", "conn-c", "conn-d"}
	for _, id := range sessionIDs {
		r.OnStartChat("", id, "")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	counters := make(map[string]int, len(sessionIDs))

	const totalMessages = 400
	for range totalMessages {
		id := sessionIDs[rng.Intn(len(sessionIDs))]
		counters[id]++
		receiveMessage(t, r, id, "", "visitor", fmt.Sprintf("%s#%d", id, counters[id]))
	}

	for _, id := range sessionIDs {
		session := mustSession(t, r, id)

		seq := 0
		for _, line := range session.Transcript() {
			if line.System {
				continue
			}

			seq++
			assert.Equal(t, fmt.Sprintf("%s#%d", id, seq), line.Body,
				"session %s transcript out of order or cross-contaminated", id)
		}

		assert.Equal(t, counters[id], seq, "session %s lost or gained messages", id)
	}
}

func countChat(s *Session) int {
	n := 0
	for _, line := range s.Transcript() {
		if !line.System {
			n++
		}
	}
	return n
}

func lastMessage(s *Session) (transcript.Message, bool) {
	messages := s.Transcript()
	if len(messages) == 0 {
		return transcript.Message{}, false
	}
	return messages[len(messages)-1], true
}

func mustSession(t *testing.T, r *Registry, connID string) *Session {
	t.Helper()

	session, ok := r.Session(connID)
	require.True(t, ok, "session %q missing", connID)
	return session
}
