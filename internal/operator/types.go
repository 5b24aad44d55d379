package operator

import (
	"errors"
	"sync"

	"codeberg.org/motorline/relay/internal/identity"
	"codeberg.org/motorline/relay/internal/transcript"
)

// errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoSessions      = errors.New("no sessions in registry")
)

// session states
type SessionState string

const (
	// session exists, identity lookup still in flight
	SessionPending SessionState = "pending"

	// identity resolved (or degraded to a placeholder); fully routable
	SessionActive SessionState = "active"
)

// one ongoing conversation with one visitor. The conn id is the routing
// key and never changes; identity, state, and the transcript are written
// by the registry while the UI reads them, so the session guards them with
// its own mutex.
type Session struct {
	ConnID string

	mu         sync.Mutex
	ident      identity.Identity
	state      SessionState
	transcript *transcript.Transcript
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Identity() identity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ident
}

// returns the session's transcript in arrival order
func (s *Session) Transcript() []transcript.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Messages()
}

// returns the name shown in the session list
func (s *Session) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ident.DisplayName != "" {
		return s.ident.DisplayName
	}

	return s.ConnID
}

// marks the session routable without touching the identity
func (s *Session) activate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionActive
}

// applies a completed identity lookup and marks the session routable
func (s *Session) setResolved(ident identity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ident = ident
	s.state = SessionActive
}

func (s *Session) append(sender, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript.Append(sender, body)
}

func (s *Session) appendSystem(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript.AppendSystem(body)
}

func newSession(connID string, ident identity.Identity) *Session {
	return &Session{
		ConnID:     connID,
		ident:      ident,
		state:      SessionPending,
		transcript: transcript.New(),
	}
}

// sends tagged messages to the relay
type Transport interface {
	SendPayload(msgType, connID string, payload any) error
}

// multiplexes the operator's conversations over one relay connection.
// All registry state is owned by the mutex: create, remove, and select go
// through the exported operations so routing always reads the latest
// snapshot. Per-session fields are guarded by the session's own mutex;
// the lock order is always registry first, session second.
type Registry struct {
	mu sync.Mutex

	conn     Transport
	resolver identity.Resolver
	handle   string

	sessions map[string]*Session
	order    []string // conn ids in creation order, for a stable UI list
	selected string   // conn id of the selected session, empty when none
}
