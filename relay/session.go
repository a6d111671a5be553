package relay

import (
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/threshold-relay/wire"
)

// SessionPhase is a session's position in its lifecycle.
type SessionPhase int

const (
	PhaseNew SessionPhase = iota
	PhasePending
	PhaseActive
	PhaseFinished
)

// pairKey is an unordered pair of 1-based party numbers, i<j, identifying a
// completed peer-to-peer Noise handshake.
type pairKey struct{ i, j uint16 }

func newPairKey(a, b uint16) pairKey {
	if a < b {
		return pairKey{a, b}
	}
	return pairKey{b, a}
}

// SessionState tracks one ceremony's participants and their pairwise
// connection status. Participants[0] is always the owner; party numbers
// are 1-based indices into Participants.
type SessionState struct {
	SessionId    wire.SessionId
	Participants [][]byte // static public keys, owner first

	mu          sync.Mutex
	phase       SessionPhase
	connections map[pairKey]bool
	registered  map[[2]uint16]bool // directed (from, to) registrations
	createdAt   time.Time
	lastAccess  time.Time
}

func newSessionState(id wire.SessionId, participants [][]byte, now time.Time) *SessionState {
	return &SessionState{
		SessionId:    id,
		Participants: participants,
		phase:        PhasePending,
		connections:  make(map[pairKey]bool),
		registered:   make(map[[2]uint16]bool),
		createdAt:    now,
		lastAccess:   now,
	}
}

// PartyNumber returns the 1-based party number for a static key, or 0 if
// the key is not a participant.
func (s *SessionState) PartyNumber(staticKey []byte) uint16 {
	for i, p := range s.Participants {
		if string(p) == string(staticKey) {
			return uint16(i + 1)
		}
	}
	return 0
}

// Owner returns the session owner's static key.
func (s *SessionState) Owner() []byte { return s.Participants[0] }

// RegisterConnection records that the pair (from, to) completed a
// peer-to-peer Noise handshake in one direction. Once both directions of a
// pair have registered, the pair is connected; once every pair is
// connected, the session transitions to Active.
//
// Returns true if this call caused the transition to Active.
func (s *SessionState) RegisterConnection(from, to uint16, now time.Time) (becameActive bool, err error) {
	if from == 0 || to == 0 {
		return false, fmt.Errorf("relay: party number 0 is invalid")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = now
	s.registered[[2]uint16{from, to}] = true
	if s.registered[[2]uint16{to, from}] {
		s.connections[newPairKey(from, to)] = true
	}
	if s.phase == PhaseActive {
		return false, nil
	}
	if s.allPairsConnectedLocked() {
		s.phase = PhaseActive
		return true, nil
	}
	return false, nil
}

func (s *SessionState) allPairsConnectedLocked() bool {
	n := uint16(len(s.Participants))
	for i := uint16(1); i <= n; i++ {
		for j := i + 1; j <= n; j++ {
			if !s.connections[newPairKey(i, j)] {
				return false
			}
		}
	}
	return true
}

// Phase returns the session's current lifecycle phase.
func (s *SessionState) Phase() SessionPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Touch refreshes last-access, e.g. on any routed message within the
// session, so active ceremonies never time out mid-round.
func (s *SessionState) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = now
}

// Finish transitions the session to Finished, idempotently.
func (s *SessionState) Finish(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseFinished
	s.lastAccess = now
}

func (s *SessionState) expired(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastAccess) > timeout
}

// SessionManager owns every live SessionState, keyed by SessionId.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[wire.SessionId]*SessionState
}

// NewSessionManager creates an empty session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[wire.SessionId]*SessionState)}
}

// Create registers a new Pending session for participants, owner first.
func (m *SessionManager) Create(participants [][]byte, now time.Time) *SessionState {
	session := newSessionState(wire.NewSessionId(), participants, now)
	m.mu.Lock()
	m.sessions[session.SessionId] = session
	m.mu.Unlock()
	return session
}

// Get looks up a session by id.
func (m *SessionManager) Get(id wire.SessionId) (*SessionState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove drops a session from the table, e.g. after Close or reaping.
func (m *SessionManager) Remove(id wire.SessionId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// ReapExpired finishes and removes every session whose last activity
// exceeds timeout, returning their ids so callers can notify participants.
func (m *SessionManager) ReapExpired(now time.Time, timeout time.Duration) []wire.SessionId {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []wire.SessionId
	for id, session := range m.sessions {
		if session.Phase() == PhaseFinished || session.expired(now, timeout) {
			session.Finish(now)
			expired = append(expired, id)
			delete(m.sessions, id)
		}
	}
	return expired
}
