package driver

import (
	"context"
	"sync"

	"github.com/opd-ai/threshold-relay/client"
	"github.com/opd-ai/threshold-relay/wire"
)

// fakeTransport is an in-memory client.NetworkTransport double: sends
// record to an outbox instead of touching a socket, letting tests drive a
// Bridge or session helper deterministically by feeding events directly.
type fakeTransport struct {
	mu      sync.Mutex
	events  chan client.Event
	sent    []sentMessage
	closed  bool
	closeID []wire.SessionId
}

type sentMessage struct {
	kind       string // "unicast" or "broadcast"
	peerKey    []byte
	recipients [][]byte
	sessionID  wire.SessionId
	payload    []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan client.Event, 64)}
}

func (f *fakeTransport) Connect(ctx context.Context) error  { return nil }
func (f *fakeTransport) ConnectPeer(peerKey []byte) error   { return nil }
func (f *fakeTransport) SendJSON(peerKey []byte, sessionID wire.SessionId, payload []byte) error {
	return nil
}

func (f *fakeTransport) SendBlob(peerKey []byte, sessionID wire.SessionId, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{kind: "unicast", peerKey: peerKey, sessionID: sessionID, payload: payload})
	return nil
}

func (f *fakeTransport) NewSession(participants [][]byte) error               { return nil }
func (f *fakeTransport) RegisterConnection(sessionID wire.SessionId, peerKey []byte) error {
	return nil
}
func (f *fakeTransport) CloseSession(sessionID wire.SessionId) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeID = append(f.closeID, sessionID)
	return nil
}

func (f *fakeTransport) BroadcastJSON(sessionID wire.SessionId, recipients [][]byte, payload []byte) error {
	return nil
}

func (f *fakeTransport) BroadcastBlob(sessionID wire.SessionId, recipients [][]byte, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{kind: "broadcast", recipients: recipients, sessionID: sessionID, payload: payload})
	return nil
}

func (f *fakeTransport) NewRoom(ownerID wire.UserId, slots []wire.UserId) error { return nil }
func (f *fakeTransport) JoinRoom(meetingID wire.MeetingId, userID wire.UserId, data wire.PublicKeys) error {
	return nil
}

func (f *fakeTransport) Events() <-chan client.Event { return f.events }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

// drainSent returns every message sent since the last call and clears the
// outbox, so repeated polling doesn't redeliver the same message.
func (f *fakeTransport) drainSent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sent
	f.sent = nil
	return out
}

var _ client.NetworkTransport = (*fakeTransport)(nil)
