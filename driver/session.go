package driver

import (
	"github.com/opd-ai/threshold-relay/client"
	"github.com/opd-ai/threshold-relay/wire"
)

// SessionState is the outcome of the session setup choreography: every
// participant's static key, in party-number order (index 0 is party 1, the
// owner), and the session id a Bridge should drive.
type SessionState struct {
	SessionID    wire.SessionId
	Participants [][]byte
}

// PartyNumber returns staticKey's 1-based party number, or 0 if it isn't a
// participant.
func (s SessionState) PartyNumber(staticKey []byte) uint16 {
	for i, p := range s.Participants {
		if string(p) == string(staticKey) {
			return uint16(i + 1)
		}
	}
	return 0
}

// connectAndRegister issues ConnectPeer for every participant other than
// selfKey. Peers that connect to us first (as Responder) still need their
// RegisterConnection call, which happens from the PeerConnected branch in
// the caller's event loop, not here.
func connectAndRegister(transport client.NetworkTransport, selfKey []byte, participants [][]byte) error {
	for _, p := range participants {
		if string(p) == string(selfKey) {
			continue
		}
		if err := transport.ConnectPeer(p); err != nil {
			return err
		}
	}
	return nil
}

// SessionInitiator runs the owner's side of session setup: it opens the
// session, connects to every other participant, registers each completed
// handshake, and returns once the relay reports the session Active.
// participants must list the owner first (party number 1).
func SessionInitiator(transport client.NetworkTransport, selfKey []byte, participants [][]byte) (SessionState, error) {
	events := transport.Events()
	var sessionID wire.SessionId
	for ev := range events {
		switch ev.Kind {
		case client.EventServerConnected:
			if err := transport.NewSession(participants); err != nil {
				return SessionState{}, err
			}

		case client.EventSessionCreated:
			sessionID = *ev.SessionID
			if err := connectAndRegister(transport, selfKey, participants); err != nil {
				return SessionState{}, err
			}

		case client.EventPeerConnected:
			if err := transport.RegisterConnection(sessionID, ev.PeerKey); err != nil {
				return SessionState{}, err
			}

		case client.EventSessionActive:
			if ev.SessionID != nil && *ev.SessionID == sessionID {
				return SessionState{SessionID: sessionID, Participants: participants}, nil
			}

		case client.EventSessionTimeout:
			if ev.SessionID != nil && *ev.SessionID == sessionID {
				return SessionState{}, ErrSessionTimeout
			}

		case client.EventClose:
			return SessionState{}, ErrClosed
		}
	}
	return SessionState{}, ErrClosed
}

// SessionParticipant runs a non-owner's side of session setup. Unlike the
// wire's SessionReady notification (which carries only a session id, not
// the participant set), the caller must already know the full participant
// list — learned out of band, e.g. via the meeting-point RoomReady
// response — and pass it in here.
func SessionParticipant(transport client.NetworkTransport, selfKey []byte, participants [][]byte) (SessionState, error) {
	events := transport.Events()
	var sessionID wire.SessionId
	haveSession := false
	for ev := range events {
		switch ev.Kind {
		case client.EventSessionReady:
			if haveSession {
				continue
			}
			sessionID = *ev.SessionID
			haveSession = true
			if err := connectAndRegister(transport, selfKey, participants); err != nil {
				return SessionState{}, err
			}

		case client.EventPeerConnected:
			if !haveSession {
				continue
			}
			if err := transport.RegisterConnection(sessionID, ev.PeerKey); err != nil {
				return SessionState{}, err
			}

		case client.EventSessionActive:
			if haveSession && ev.SessionID != nil && *ev.SessionID == sessionID {
				return SessionState{SessionID: sessionID, Participants: participants}, nil
			}

		case client.EventSessionTimeout:
			if haveSession && ev.SessionID != nil && *ev.SessionID == sessionID {
				return SessionState{}, ErrSessionTimeout
			}

		case client.EventClose:
			return SessionState{}, ErrClosed
		}
	}
	return SessionState{}, ErrClosed
}
