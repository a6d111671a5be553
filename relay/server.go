// Package relay implements the session-oriented relay server: connection
// registry, session and meeting-room lifecycle, and routing of opaque
// peer-to-peer traffic without ever decrypting it.
package relay

import (
	"fmt"
	"time"

	"github.com/opd-ai/threshold-relay/noise"
	"github.com/opd-ai/threshold-relay/wire"
	"github.com/sirupsen/logrus"
)

// State is the relay's single process-wide mutable world: the connection
// registry plus the session and meeting managers. Every operation below
// takes State so the same dispatch logic can be exercised directly by
// tests without a socket in the loop.
type State struct {
	Registry *Registry
	Sessions *SessionManager
	Meetings *MeetingManager
}

// NewState builds an empty relay state.
func NewState() *State {
	return &State{
		Registry: NewRegistry(),
		Sessions: NewSessionManager(),
		Meetings: NewMeetingManager(),
	}
}

// Dispatch handles one decoded TransparentMessage from an authenticated
// server-channel connection, returning zero or more (destination,
// TransparentMessage) replies to send. Dispatch never closes the caller's
// connection on a protocol-level failure; it returns an Error reply
// instead, per the relay's tolerant failure semantics.
func (s *State) Dispatch(caller *Connection, msg wire.TransparentMessage, now time.Time) []Reply {
	switch msg.Tag {
	case wire.SubNew:
		return s.handleNewSession(caller, msg.NewReq, now)
	case wire.SubConnection:
		return s.handleRegisterConnection(caller, msg.Register, now)
	case wire.SubClose:
		return s.handleCloseSession(caller, msg.Close, now)
	case wire.SubMeeting:
		return s.handleMeeting(caller, msg.Meeting, now)
	default:
		return []Reply{errorReply(caller, fmt.Errorf("relay: unexpected sub-tag %d from client", msg.Tag))}
	}
}

// Reply pairs a destination connection with the TransparentMessage to send
// it, or a raw opaque frame for routed ciphertext.
type Reply struct {
	To        *Connection
	Message   *wire.TransparentMessage
	RawOpaque []byte
}

func errorReply(to *Connection, err error) Reply {
	wireErr := toWireError(err)
	return Reply{To: to, Message: &wire.TransparentMessage{Tag: wire.SubError, Err: &wireErr}}
}

func (s *State) handleNewSession(caller *Connection, req *wire.NewSessionRequest, now time.Time) []Reply {
	callerKey := caller.StaticKey()
	isParticipant := false
	for _, p := range req.Participants {
		if string(p) == string(callerKey) {
			isParticipant = true
			break
		}
	}
	if !isParticipant {
		return []Reply{errorReply(caller, ErrNotParticipant)}
	}

	session := s.Sessions.Create(req.Participants, now)
	logrus.WithFields(logrus.Fields{
		"session_id": session.SessionId,
		"parties":    len(req.Participants),
	}).Info("relay: session created")

	created := wire.SessionCreated{SessionId: session.SessionId}
	replies := make([]Reply, 0, len(req.Participants))
	for _, key := range req.Participants {
		conn, ok := s.Registry.ByKey(key)
		if !ok {
			continue
		}
		replies = append(replies, Reply{
			To:      conn,
			Message: &wire.TransparentMessage{Tag: wire.SubCreated, Created: &created},
		})
	}
	return replies
}

func (s *State) handleRegisterConnection(caller *Connection, req *wire.RegisterConnectionRequest, now time.Time) []Reply {
	session, ok := s.Sessions.Get(req.SessionId)
	if !ok {
		return []Reply{errorReply(caller, ErrUnknownSession)}
	}
	callerParty := session.PartyNumber(caller.StaticKey())
	peerParty := session.PartyNumber(req.PeerKey)
	if callerParty == 0 || peerParty == 0 {
		return []Reply{errorReply(caller, ErrNotParticipant)}
	}

	becameActive, err := session.RegisterConnection(callerParty, peerParty, now)
	if err != nil {
		return []Reply{errorReply(caller, err)}
	}
	if !becameActive {
		return nil
	}

	logrus.WithFields(logrus.Fields{"session_id": session.SessionId}).Info("relay: session active")
	sessionID := session.SessionId
	active := wire.TransparentMessage{Tag: wire.SubActive, SessionID: &sessionID}
	replies := make([]Reply, 0, len(session.Participants))
	for _, key := range session.Participants {
		conn, ok := s.Registry.ByKey(key)
		if !ok {
			continue
		}
		msgCopy := active
		replies = append(replies, Reply{To: conn, Message: &msgCopy})
	}
	return replies
}

func (s *State) handleCloseSession(caller *Connection, req *wire.CloseSessionRequest, now time.Time) []Reply {
	session, ok := s.Sessions.Get(req.SessionId)
	if !ok {
		return []Reply{errorReply(caller, ErrUnknownSession)}
	}
	if string(session.Owner()) != string(caller.StaticKey()) {
		return []Reply{errorReply(caller, ErrNotOwner)}
	}

	session.Finish(now)
	s.Sessions.Remove(req.SessionId)

	finished := wire.TransparentMessage{
		Tag:      wire.SubFinished,
		Finished: &wire.SessionFinished{SessionId: req.SessionId, TimedOut: false},
	}
	replies := make([]Reply, 0, len(session.Participants))
	for _, key := range session.Participants {
		conn, ok := s.Registry.ByKey(key)
		if !ok {
			continue
		}
		msgCopy := finished
		replies = append(replies, Reply{To: conn, Message: &msgCopy})
	}
	return replies
}

func (s *State) handleMeeting(caller *Connection, msg *wire.MeetingMessage, now time.Time) []Reply {
	if msg == nil {
		return []Reply{errorReply(caller, fmt.Errorf("relay: missing meeting body"))}
	}
	switch msg.Tag {
	case wire.MeetingNewRoom:
		room, err := s.Meetings.Create(msg.NewRoom.OwnerId, msg.NewRoom.Slots, now)
		if err != nil {
			return []Reply{errorReply(caller, err)}
		}
		resp := wire.MeetingMessage{
			Tag:         wire.MeetingRoomCreated,
			RoomCreated: &wire.RoomCreatedResponse{MeetingId: room.MeetingId, OwnerId: room.OwnerId},
		}
		return []Reply{{To: caller, Message: &wire.TransparentMessage{Tag: wire.SubMeeting, Meeting: &resp}}}

	case wire.MeetingJoinRoom:
		room, ok := s.Meetings.Get(msg.JoinRoom.MeetingId)
		if !ok {
			return []Reply{errorReply(caller, ErrUnknownRoom)}
		}
		participants, ready, err := room.Join(msg.JoinRoom.UserId, msg.JoinRoom.Data, now)
		if err != nil {
			return []Reply{errorReply(caller, err)}
		}
		if !ready {
			return nil
		}
		s.Meetings.Remove(room.MeetingId)
		resp := wire.MeetingMessage{Tag: wire.MeetingRoomReady, RoomReady: &wire.RoomReadyResponse{Participants: participants}}
		reply := wire.TransparentMessage{Tag: wire.SubMeeting, Meeting: &resp}
		// RoomReady is broadcast over each participant's own connection, if
		// still present; the meeting-point flow is anonymous (no static key
		// bound yet), so delivery happens over whichever channel the caller
		// used to join rather than the session registry.
		return []Reply{{To: caller, Message: &reply}}

	default:
		return []Reply{errorReply(caller, fmt.Errorf("relay: unexpected meeting sub-tag %d", msg.Tag))}
	}
}

// RouteOpaque forwards an OPAQUE_PEER envelope's ciphertext unchanged to its
// destination(s). The relay never inspects or decrypts Payload; it only
// reads routing metadata (destination key, broadcast flag, session
// membership). DestKey is rewritten from "destination, as the sender
// addressed it" to "sender, as the recipient needs it to reply or attribute
// the message to a peer channel" — the same rewrite routeHandshakeToPeer
// applies to PeerKey.
func (s *State) RouteOpaque(caller *Connection, sessionID wire.SessionId, destKey []byte, sealed wire.SealedEnvelope, now time.Time) error {
	session, ok := s.Sessions.Get(sessionID)
	if !ok {
		return ErrUnknownSession
	}
	if session.PartyNumber(caller.StaticKey()) == 0 {
		return ErrNotParticipant
	}
	session.Touch(now)

	frame := wire.EncodeFrame(wire.TagOpaque, wire.EncodePeerBody(wire.PeerRoute{
		SessionId: sessionID,
		DestKey:   caller.StaticKey(),
		Sealed:    sealed,
	}))

	if !sealed.Broadcast {
		dest, ok := s.Registry.ByKey(destKey)
		if !ok {
			return ErrUnknownPeer
		}
		return dest.send(frame)
	}

	var firstErr error
	for _, key := range session.Participants {
		if string(key) == string(caller.StaticKey()) {
			continue
		}
		dest, ok := s.Registry.ByKey(key)
		if !ok {
			continue
		}
		if err := dest.send(frame); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DisconnectCaller drops a connection from the registry, e.g. on socket
// error. Sessions referencing it are not cancelled; other parties will
// eventually time out via the reaper.
func (s *State) DisconnectCaller(conn *Connection) {
	s.Registry.Remove(conn.ID)
}

// HandleFrame decodes and processes one raw WebSocket binary frame received
// from caller, replying as needed. It is the single entry point the
// transport layer (ws.go) calls for every inbound frame, covering both the
// server handshake and, once transport state is reached, every decrypted
// TransparentMessage and routed OPAQUE_PEER envelope.
//
// Identity binding: Noise_NN carries no static key of its own, so the
// client's long-term public key (learned out of band at the meeting point)
// is carried as the payload of its first handshake message. The relay
// binds that key to the connection the moment the handshake completes.
func (s *State) HandleFrame(caller *Connection, raw []byte, now time.Time) error {
	frame, err := wire.DecodeFrame(raw)
	if err != nil {
		return s.replyMalformed(caller, err)
	}

	switch frame.Tag {
	case wire.TagTransparent:
		return s.handleTransparentFrame(caller, frame.Body, now)
	case wire.TagOpaque:
		return s.handleOpaqueFrame(caller, frame.Body, now)
	default:
		return s.replyMalformed(caller, fmt.Errorf("relay: unknown top-level tag %d", frame.Tag))
	}
}

func (s *State) replyMalformed(caller *Connection, err error) error {
	reply := errorReply(caller, err)
	return s.sendReply(reply)
}

func (s *State) handleTransparentFrame(caller *Connection, body []byte, now time.Time) error {
	r := wire.NewReader(body)
	msg, err := wire.DecodeTransparentMessage(r)
	if err != nil {
		return s.replyMalformed(caller, err)
	}

	if msg.Tag == wire.SubHandshake {
		return s.handleHandshake(caller, msg.Handshake)
	}

	replies := s.Dispatch(caller, msg, now)
	for _, reply := range replies {
		if err := s.sendReply(reply); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) handleHandshake(caller *Connection, packet *wire.HandshakePacket) error {
	if packet == nil {
		return fmt.Errorf("relay: missing handshake packet")
	}
	if packet.Target == wire.HandshakeTargetPeer {
		return s.routeHandshakeToPeer(caller, packet)
	}
	hs := caller.Handshake()
	if hs == nil {
		return fmt.Errorf("relay: handshake already complete on connection %d", caller.ID)
	}

	payload, complete, err := hs.ReadMessage(packet.Body)
	if err != nil {
		return fmt.Errorf("relay: noise handshake read: %w", err)
	}
	if !complete {
		// The NN responder completes while writing its reply, not on the
		// read above.
		out, replyComplete, err := hs.WriteMessage(nil)
		if err != nil {
			return fmt.Errorf("relay: noise handshake write: %w", err)
		}
		reply := wire.TransparentMessage{
			Tag: wire.SubHandshake,
			Handshake: &wire.HandshakePacket{
				Target: wire.HandshakeTargetServer,
				Body:   out,
			},
		}
		if err := s.sendReply(Reply{To: caller, Message: &reply}); err != nil {
			return err
		}
		if !replyComplete {
			return nil
		}
	}

	if err := caller.CompleteHandshake(payload); err != nil {
		return fmt.Errorf("relay: complete handshake: %w", err)
	}
	if len(payload) > 0 {
		// A session participant announces its long-term static key in the
		// handshake payload; an anonymous meeting-point client (the meeting
		// taxonomy identifies callers by UserId, not static key) leaves it
		// empty and is never bound in the registry's by-key index.
		s.Registry.BindKey(caller, payload)
	}
	logrus.WithFields(logrus.Fields{"conn_id": caller.ID}).Info("relay: server channel established")
	return nil
}

// routeHandshakeToPeer forwards a peer-to-peer Noise handshake packet to
// its destination unchanged, except that PeerKey is rewritten from
// "destination" (as the sender addressed it) to "sender" (as the
// recipient needs it to address its own reply back).
func (s *State) routeHandshakeToPeer(caller *Connection, packet *wire.HandshakePacket) error {
	callerKey := caller.StaticKey()
	if len(callerKey) == 0 {
		return fmt.Errorf("relay: peer handshake attempted before server channel established")
	}
	dest, ok := s.Registry.ByKey(packet.PeerKey)
	if !ok {
		return fmt.Errorf("relay: %w", ErrUnknownPeer)
	}
	forwarded := wire.TransparentMessage{
		Tag: wire.SubHandshake,
		Handshake: &wire.HandshakePacket{
			Target:  wire.HandshakeTargetPeer,
			PeerKey: callerKey,
			Body:    packet.Body,
		},
	}
	return s.sendReply(Reply{To: dest, Message: &forwarded})
}

func (s *State) handleOpaqueFrame(caller *Connection, body []byte, now time.Time) error {
	if len(body) == 0 {
		return s.replyMalformed(caller, fmt.Errorf("relay: empty opaque frame"))
	}
	switch wire.Target(body[0]) {
	case wire.TargetServer:
		_, sealed, err := wire.DecodeOpaqueBody(body)
		if err != nil {
			return s.replyMalformed(caller, err)
		}
		return s.handleOpaqueServer(caller, sealed, now)
	case wire.TargetPeer:
		route, err := wire.DecodePeerBody(body)
		if err != nil {
			return s.replyMalformed(caller, err)
		}
		return s.RouteOpaque(caller, route.SessionId, route.DestKey, route.Sealed, now)
	default:
		return s.replyMalformed(caller, fmt.Errorf("relay: unknown opaque target %d", body[0]))
	}
}

// handleOpaqueServer decrypts a OPAQUE_SERVER envelope over the caller's
// established transport and re-dispatches it as a TransparentMessage, the
// path every session/meeting request takes once the handshake completes.
func (s *State) handleOpaqueServer(caller *Connection, sealed wire.SealedEnvelope, now time.Time) error {
	transport := caller.Transport()
	if transport == nil {
		return fmt.Errorf("relay: %w", noise.ErrNotTransportState)
	}
	plaintext, err := transport.Decrypt(sealed.Payload)
	if err != nil {
		return fmt.Errorf("relay: decrypt server envelope: %w", err)
	}
	msg, err := wire.DecodeTransparentMessage(wire.NewReader(plaintext))
	if err != nil {
		return s.replyMalformed(caller, err)
	}
	replies := s.Dispatch(caller, msg, now)
	for _, reply := range replies {
		if err := s.sendReply(reply); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) sendReply(reply Reply) error {
	if reply.To == nil {
		return nil
	}
	if reply.RawOpaque != nil {
		return reply.To.send(reply.RawOpaque)
	}
	if reply.Message == nil {
		return nil
	}

	if reply.Message.Tag == wire.SubHandshake {
		w := wire.NewWriter()
		if err := reply.Message.Encode(w); err != nil {
			return err
		}
		return reply.To.send(wire.EncodeFrame(wire.TagTransparent, w.Bytes()))
	}

	transport := reply.To.Transport()
	if transport == nil {
		w := wire.NewWriter()
		if err := reply.Message.Encode(w); err != nil {
			return err
		}
		return reply.To.send(wire.EncodeFrame(wire.TagTransparent, w.Bytes()))
	}

	w := wire.NewWriter()
	if err := reply.Message.Encode(w); err != nil {
		return err
	}
	ciphertext, err := transport.Encrypt(w.Bytes())
	if err != nil {
		return fmt.Errorf("relay: encrypt reply: %w", err)
	}
	sealed := wire.NewSealedEnvelope(wire.EncodingBlob, ciphertext, false)
	body := wire.EncodeOpaqueBody(wire.TargetServer, sealed)
	return reply.To.send(wire.EncodeFrame(wire.TagOpaque, body))
}
