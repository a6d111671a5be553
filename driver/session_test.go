package driver

import (
	"testing"

	"github.com/opd-ai/threshold-relay/client"
	"github.com/opd-ai/threshold-relay/wire"
	"github.com/stretchr/testify/require"
)

func TestSessionInitiatorReturnsStateOnSessionActive(t *testing.T) {
	self := []byte("party-1-key")
	other := []byte("party-2-key")
	participants := [][]byte{self, other}
	sessionID := wire.NewSessionId()

	ft := newFakeTransport()
	ft.events <- client.Event{Kind: client.EventServerConnected}
	ft.events <- client.Event{Kind: client.EventSessionCreated, SessionID: &sessionID}
	ft.events <- client.Event{Kind: client.EventPeerConnected, PeerKey: other}
	ft.events <- client.Event{Kind: client.EventSessionActive, SessionID: &sessionID}
	close(ft.events)

	state, err := SessionInitiator(ft, self, participants)
	require.NoError(t, err)
	require.Equal(t, sessionID, state.SessionID)
	require.Equal(t, uint16(1), state.PartyNumber(self))
	require.Equal(t, uint16(2), state.PartyNumber(other))
}

func TestSessionInitiatorPropagatesSessionTimeout(t *testing.T) {
	self := []byte("party-1-key")
	participants := [][]byte{self}
	sessionID := wire.NewSessionId()

	ft := newFakeTransport()
	ft.events <- client.Event{Kind: client.EventServerConnected}
	ft.events <- client.Event{Kind: client.EventSessionCreated, SessionID: &sessionID}
	ft.events <- client.Event{Kind: client.EventSessionTimeout, SessionID: &sessionID}
	close(ft.events)

	_, err := SessionInitiator(ft, self, participants)
	require.ErrorIs(t, err, ErrSessionTimeout)
}

func TestSessionInitiatorPropagatesClose(t *testing.T) {
	self := []byte("party-1-key")
	participants := [][]byte{self}

	ft := newFakeTransport()
	ft.events <- client.Event{Kind: client.EventClose}
	close(ft.events)

	_, err := SessionInitiator(ft, self, participants)
	require.ErrorIs(t, err, ErrClosed)
}

func TestSessionParticipantLearnsSessionFromReady(t *testing.T) {
	self := []byte("party-2-key")
	owner := []byte("party-1-key")
	participants := [][]byte{owner, self}
	sessionID := wire.NewSessionId()

	ft := newFakeTransport()
	ft.events <- client.Event{Kind: client.EventSessionReady, SessionID: &sessionID}
	ft.events <- client.Event{Kind: client.EventPeerConnected, PeerKey: owner}
	ft.events <- client.Event{Kind: client.EventSessionActive, SessionID: &sessionID}
	close(ft.events)

	state, err := SessionParticipant(ft, self, participants)
	require.NoError(t, err)
	require.Equal(t, sessionID, state.SessionID)
	require.Equal(t, uint16(2), state.PartyNumber(self))
}

func TestSessionStatePartyNumberUnknownKeyIsZero(t *testing.T) {
	state := SessionState{Participants: [][]byte{[]byte("a"), []byte("b")}}
	require.Equal(t, uint16(0), state.PartyNumber([]byte("c")))
}
