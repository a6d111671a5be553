package relay

import (
	"testing"
	"time"

	"github.com/opd-ai/threshold-relay/noise"
	"github.com/opd-ai/threshold-relay/wire"
	"github.com/stretchr/testify/require"
)

// fakeOutbound captures frames instead of writing to a real socket.
type fakeOutbound struct {
	frames [][]byte
	closed bool
}

func (f *fakeOutbound) WriteFrame(frame []byte) error {
	f.frames = append(f.frames, append([]byte{}, frame...))
	return nil
}

func (f *fakeOutbound) Close() error {
	f.closed = true
	return nil
}

// newTestConnection registers a connection already in Transport state,
// bound to staticKey, bypassing the wire-level handshake exchange so tests
// can focus on session/meeting/routing logic.
func newTestConnection(t *testing.T, reg *Registry, staticKey []byte) (*Connection, *fakeOutbound) {
	t.Helper()
	out := &fakeOutbound{}
	conn, err := reg.Add(noise.Responder, out)
	require.NoError(t, err)

	initiator, err := noise.New(noise.Initiator)
	require.NoError(t, err)
	responder, err := noise.New(noise.Responder)
	require.NoError(t, err)

	msg1, _, err := initiator.WriteMessage(staticKey)
	require.NoError(t, err)
	_, _, err = responder.ReadMessage(msg1)
	require.NoError(t, err)
	msg2, _, err := responder.WriteMessage(nil)
	require.NoError(t, err)
	_, _, err = initiator.ReadMessage(msg2)
	require.NoError(t, err)

	transport, err := responder.Transport()
	require.NoError(t, err)
	conn.transport = transport
	conn.handshake = nil
	conn.staticKey = staticKey
	reg.BindKey(conn, staticKey)
	return conn, out
}

func TestSessionLifecycleReachesActive(t *testing.T) {
	state := NewState()
	aliceKey, bobKey := []byte("alice-static"), []byte("bob-static")
	alice, _ := newTestConnection(t, state.Registry, aliceKey)
	bob, _ := newTestConnection(t, state.Registry, bobKey)

	now := time.Now()
	replies := state.handleNewSession(alice, &wire.NewSessionRequest{Participants: [][]byte{aliceKey, bobKey}}, now)
	require.Len(t, replies, 2)

	var sessionID wire.SessionId
	for _, r := range replies {
		require.Equal(t, wire.SubCreated, r.Message.Tag)
		sessionID = r.Message.Created.SessionId
	}

	session, ok := state.Sessions.Get(sessionID)
	require.True(t, ok)
	require.Equal(t, PhasePending, session.Phase())

	replies = state.handleRegisterConnection(alice, &wire.RegisterConnectionRequest{SessionId: sessionID, PeerKey: bobKey}, now)
	require.Empty(t, replies) // only one direction registered, not yet active

	replies = state.handleRegisterConnection(bob, &wire.RegisterConnectionRequest{SessionId: sessionID, PeerKey: aliceKey}, now)
	require.Len(t, replies, 2)
	for _, r := range replies {
		require.Equal(t, wire.SubActive, r.Message.Tag)
	}
	require.Equal(t, PhaseActive, session.Phase())
}

func TestNewSessionRejectsNonParticipantCaller(t *testing.T) {
	state := NewState()
	aliceKey := []byte("alice-static")
	eveKey := []byte("eve-static")
	eve, _ := newTestConnection(t, state.Registry, eveKey)

	replies := state.handleNewSession(eve, &wire.NewSessionRequest{Participants: [][]byte{aliceKey, []byte("bob-static")}}, time.Now())
	require.Len(t, replies, 1)
	require.Equal(t, wire.SubError, replies[0].Message.Tag)
	require.Equal(t, wire.ErrCodeNotParticipant, replies[0].Message.Err.Code)
}

func TestCloseSessionRequiresOwner(t *testing.T) {
	state := NewState()
	aliceKey, bobKey := []byte("alice-static"), []byte("bob-static")
	alice, _ := newTestConnection(t, state.Registry, aliceKey)
	bob, _ := newTestConnection(t, state.Registry, bobKey)

	session := state.Sessions.Create([][]byte{aliceKey, bobKey}, time.Now())

	replies := state.handleCloseSession(bob, &wire.CloseSessionRequest{SessionId: session.SessionId}, time.Now())
	require.Len(t, replies, 1)
	require.Equal(t, wire.SubError, replies[0].Message.Tag)

	replies = state.handleCloseSession(alice, &wire.CloseSessionRequest{SessionId: session.SessionId}, time.Now())
	require.Len(t, replies, 2)
	for _, r := range replies {
		require.Equal(t, wire.SubFinished, r.Message.Tag)
	}
	_, ok := state.Sessions.Get(session.SessionId)
	require.False(t, ok)
}

func TestMeetingRoomReadyOnceAllSlotsFilled(t *testing.T) {
	mgr := NewMeetingManager()
	owner := wire.UserIdFromString("owner@example.com")
	guest := wire.UserIdFromString("guest@example.com")
	now := time.Now()

	room, err := mgr.Create(owner, []wire.UserId{owner, guest}, now)
	require.NoError(t, err)

	_, ready, err := room.Join(owner, wire.PublicKeys{PublicKey: []byte("owner-pk")}, now)
	require.NoError(t, err)
	require.False(t, ready)

	participants, ready, err := room.Join(guest, wire.PublicKeys{PublicKey: []byte("guest-pk")}, now)
	require.NoError(t, err)
	require.True(t, ready)
	require.Len(t, participants, 2)
}

func TestMeetingRoomRejectsSlotAlreadyTaken(t *testing.T) {
	mgr := NewMeetingManager()
	owner := wire.UserIdFromString("owner@example.com")
	now := time.Now()

	room, err := mgr.Create(owner, []wire.UserId{owner}, now)
	require.NoError(t, err)

	_, _, err = room.Join(owner, wire.PublicKeys{}, now)
	require.NoError(t, err)

	_, _, err = room.Join(owner, wire.PublicKeys{}, now)
	require.ErrorIs(t, err, ErrSlotTaken)
}

func TestMeetingCreateRejectsOwnerNotInSlots(t *testing.T) {
	mgr := NewMeetingManager()
	owner := wire.UserIdFromString("owner@example.com")
	other := wire.UserIdFromString("other@example.com")

	_, err := mgr.Create(owner, []wire.UserId{other}, time.Now())
	require.Error(t, err)
}

func TestRouteOpaqueUnicastDeliversToDestination(t *testing.T) {
	state := NewState()
	aliceKey, bobKey := []byte("alice-static"), []byte("bob-static")
	alice, _ := newTestConnection(t, state.Registry, aliceKey)
	_, bobOut := newTestConnection(t, state.Registry, bobKey)

	session := state.Sessions.Create([][]byte{aliceKey, bobKey}, time.Now())

	sealed := wire.NewSealedEnvelope(wire.EncodingBlob, []byte("round-1-ciphertext"), false)
	err := state.RouteOpaque(alice, session.SessionId, bobKey, sealed, time.Now())
	require.NoError(t, err)
	require.Len(t, bobOut.frames, 1)

	frame, err := wire.DecodeFrame(bobOut.frames[0])
	require.NoError(t, err)
	require.Equal(t, wire.TagOpaque, frame.Tag)

	route, err := wire.DecodePeerBody(frame.Body)
	require.NoError(t, err)
	require.Equal(t, sealed.Payload, route.Sealed.Payload)
	require.Equal(t, aliceKey, route.DestKey) // rewritten to the sender's key so bob can attribute the envelope
}

func TestRouteOpaqueBroadcastExcludesSender(t *testing.T) {
	state := NewState()
	aliceKey, bobKey, carolKey := []byte("alice-static"), []byte("bob-static"), []byte("carol-static")
	alice, aliceOut := newTestConnection(t, state.Registry, aliceKey)
	_, bobOut := newTestConnection(t, state.Registry, bobKey)
	_, carolOut := newTestConnection(t, state.Registry, carolKey)

	session := state.Sessions.Create([][]byte{aliceKey, bobKey, carolKey}, time.Now())

	sealed := wire.NewSealedEnvelope(wire.EncodingBlob, []byte("broadcast-ciphertext"), true)
	err := state.RouteOpaque(alice, session.SessionId, nil, sealed, time.Now())
	require.NoError(t, err)

	require.Empty(t, aliceOut.frames)
	require.Len(t, bobOut.frames, 1)
	require.Len(t, carolOut.frames, 1)
}

func TestRouteOpaqueRejectsUnknownSession(t *testing.T) {
	state := NewState()
	alice, _ := newTestConnection(t, state.Registry, []byte("alice-static"))

	err := state.RouteOpaque(alice, wire.NewSessionId(), []byte("bob-static"), wire.SealedEnvelope{}, time.Now())
	require.ErrorIs(t, err, ErrUnknownSession)
}

func TestReaperExpiresIdleSession(t *testing.T) {
	state := NewState()
	session := state.Sessions.Create([][]byte{[]byte("alice-static")}, time.Now().Add(-time.Hour))

	reaper := NewReaper(state.Sessions, state.Meetings, time.Millisecond, time.Second)
	var notified wire.SessionId
	reaper.OnSessionExpired(func(id wire.SessionId) { notified = id })
	reaper.reapOnce()

	require.Equal(t, session.SessionId, notified)
	_, ok := state.Sessions.Get(session.SessionId)
	require.False(t, ok)
}

func TestHandleFrameRejectsMalformedFrameWithoutDisconnecting(t *testing.T) {
	state := NewState()
	conn, out := newTestConnection(t, state.Registry, []byte("alice-static"))

	err := state.HandleFrame(conn, []byte{0xFF}, time.Now())
	require.NoError(t, err) // malformed frames produce an Error reply, not a propagated error path that closes the socket
	require.Len(t, out.frames, 1)

	_, stillRegistered := state.Registry.ByID(conn.ID)
	require.True(t, stillRegistered)
}
