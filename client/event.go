// Package client implements the party-side transport and event loop: one
// Noise_NN channel to the relay plus one per connected peer, all
// multiplexed over a single WebSocket, surfaced as a stream of typed
// Events for a driver (see package driver) to consume.
package client

import "github.com/opd-ai/threshold-relay/wire"

// EventKind discriminates the Event union.
type EventKind int

const (
	EventServerConnected EventKind = iota
	EventPeerConnected
	EventSessionCreated
	EventSessionReady
	EventSessionActive
	EventSessionTimeout
	EventSessionClosed
	EventJSONMessage
	EventBinaryMessage
	EventMeetingRoomCreated
	EventMeetingRoomReady
	EventClose
	EventError
)

// Event is the client event loop's single output type. Exactly the fields
// relevant to Kind are populated.
type Event struct {
	Kind EventKind

	PeerKey   []byte
	SessionID *wire.SessionId

	JSONPayload   []byte
	BinaryPayload []byte

	RoomCreated *wire.RoomCreatedResponse
	RoomReady   *wire.RoomReadyResponse

	Err error
}

func serverConnectedEvent() Event { return Event{Kind: EventServerConnected} }

func peerConnectedEvent(peerKey []byte) Event {
	return Event{Kind: EventPeerConnected, PeerKey: peerKey}
}

func sessionEvent(kind EventKind, sessionID wire.SessionId) Event {
	id := sessionID
	return Event{Kind: kind, SessionID: &id}
}

func errorEvent(err error) Event { return Event{Kind: EventError, Err: err} }
