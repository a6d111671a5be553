package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/opd-ai/threshold-relay/crypto"
	"github.com/opd-ai/threshold-relay/noise"
	"github.com/opd-ai/threshold-relay/wire"
	"github.com/sirupsen/logrus"
)

// NetworkTransport is the surface a driver (package driver) builds its
// ceremony on: connecting to the relay and to peers, sending round
// messages, and driving session/meeting requests.
type NetworkTransport interface {
	Connect(ctx context.Context) error
	ConnectPeer(peerKey []byte) error
	SendJSON(peerKey []byte, sessionID wire.SessionId, payload []byte) error
	SendBlob(peerKey []byte, sessionID wire.SessionId, payload []byte) error
	NewSession(participants [][]byte) error
	RegisterConnection(sessionID wire.SessionId, peerKey []byte) error
	CloseSession(sessionID wire.SessionId) error
	BroadcastJSON(sessionID wire.SessionId, recipients [][]byte, payload []byte) error
	BroadcastBlob(sessionID wire.SessionId, recipients [][]byte, payload []byte) error
	NewRoom(ownerID wire.UserId, slots []wire.UserId) error
	JoinRoom(meetingID wire.MeetingId, userID wire.UserId, data wire.PublicKeys) error
	Events() <-chan Event
	Close() error
}

// Options configures a Client.
type Options struct {
	ServerURL string
	// KeyPair is the party's long-term static identity, bound to the
	// relay's registry as the first handshake message's payload. Required
	// unless Anonymous is set.
	KeyPair *crypto.KeyPair
	// Anonymous clients (meeting-point create/join) skip identity binding:
	// the handshake payload is empty and KeyPair may be nil.
	Anonymous bool
	// Pattern overrides the Noise pattern string this client negotiates.
	// Left empty, it defaults to noise.DefaultPattern
	// (Noise_NN_25519_ChaChaPoly_BLAKE2s) — the only pattern this package
	// currently implements, validated up front so a future pattern addition
	// doesn't require an API break here.
	Pattern string
}

// Client is the concrete NetworkTransport: a single WebSocket to the relay
// carrying the server Noise_NN channel plus, multiplexed over the same
// socket, one Noise_NN channel per connected peer.
type Client struct {
	opts Options

	conn   *websocket.Conn
	events chan Event

	writeMu sync.Mutex

	serverHS        *noise.Handshake
	serverTransport *noise.Transport
	serverMu        sync.Mutex

	peers *peerRegistry

	closeOnce sync.Once
	done      chan struct{}
}

// New builds a Client ready to Connect.
func New(opts Options) (*Client, error) {
	if opts.KeyPair == nil && !opts.Anonymous {
		return nil, fmt.Errorf("client: KeyPair is required")
	}
	if err := noise.ValidatePattern(opts.Pattern); err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	hs, err := noise.New(noise.Initiator)
	if err != nil {
		return nil, fmt.Errorf("client: new server handshake: %w", err)
	}
	return &Client{
		opts:     opts,
		events:   make(chan Event, 64),
		serverHS: hs,
		peers:    newPeerRegistry(),
		done:     make(chan struct{}),
	}, nil
}

// Events returns the client's event stream. Callers should drain it
// continuously; a full buffer stalls the read loop.
func (c *Client) Events() <-chan Event { return c.events }

// Connect dials the relay, completes the server Noise_NN handshake
// (announcing this party's static public key as the handshake payload),
// and starts the event loop goroutine.
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.opts.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("client: dial relay: %w", err)
	}
	c.conn = conn

	var identity []byte
	if !c.opts.Anonymous {
		identity = c.opts.KeyPair.Public[:]
	}
	msg1, _, err := c.serverHS.WriteMessage(identity)
	if err != nil {
		return fmt.Errorf("client: write handshake message: %w", err)
	}
	if err := c.writeFrame(wire.EncodeFrame(wire.TagTransparent, c.encodeHandshakePacket(wire.HandshakeTargetServer, nil, msg1))); err != nil {
		return err
	}

	go c.readLoop()
	return nil
}

func (c *Client) encodeHandshakePacket(target wire.HandshakeTarget, peerKey, body []byte) []byte {
	w := wire.NewWriter()
	msg := wire.TransparentMessage{
		Tag:       wire.SubHandshake,
		Handshake: &wire.HandshakePacket{Target: target, PeerKey: peerKey, Body: body},
	}
	_ = msg.Encode(w)
	return w.Bytes()
}

func (c *Client) writeFrame(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("client: not connected")
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// ConnectPeer opens a Noise_NN channel to peerKey, relayed through the
// server connection. The caller must wait for the corresponding
// EventPeerConnected before sending round traffic to peerKey.
func (c *Client) ConnectPeer(peerKey []byte) error {
	pc, created, err := c.peers.getOrCreate(peerKey, noise.Initiator)
	if err != nil {
		return err
	}
	if !created {
		return nil // already connecting or connected
	}
	msg1, _, err := pc.handshake.WriteMessage(nil)
	if err != nil {
		return fmt.Errorf("client: write peer handshake: %w", err)
	}
	return c.writeFrame(wire.EncodeFrame(wire.TagTransparent, c.encodeHandshakePacket(wire.HandshakeTargetPeer, peerKey, msg1)))
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.events <- Event{Kind: EventClose}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if err := c.handleFrame(data); err != nil {
			logrus.WithError(err).Debug("client: dropping malformed frame from relay")
			c.events <- errorEvent(err)
		}
	}
}

func (c *Client) handleFrame(raw []byte) error {
	frame, err := wire.DecodeFrame(raw)
	if err != nil {
		return err
	}
	switch frame.Tag {
	case wire.TagTransparent:
		return c.handleTransparent(frame.Body)
	case wire.TagOpaque:
		return c.handleOpaque(frame.Body)
	default:
		return fmt.Errorf("client: unknown top-level tag %d", frame.Tag)
	}
}

func (c *Client) handleTransparent(body []byte) error {
	msg, err := wire.DecodeTransparentMessage(wire.NewReader(body))
	if err != nil {
		return err
	}
	switch msg.Tag {
	case wire.SubHandshake:
		return c.handleHandshakePacket(msg.Handshake)
	case wire.SubCreated:
		c.events <- sessionEvent(EventSessionCreated, msg.Created.SessionId)
	case wire.SubReadyNotify, wire.SubReady:
		c.events <- sessionEvent(EventSessionReady, *msg.SessionID)
	case wire.SubActiveNotify, wire.SubActive:
		c.events <- sessionEvent(EventSessionActive, *msg.SessionID)
	case wire.SubFinished:
		if msg.Finished.TimedOut {
			c.events <- sessionEvent(EventSessionTimeout, msg.Finished.SessionId)
		} else {
			c.events <- sessionEvent(EventSessionClosed, msg.Finished.SessionId)
		}
	case wire.SubError:
		c.events <- errorEvent(msg.Err)
	case wire.SubMeeting:
		return c.handleMeeting(msg.Meeting)
	default:
		return fmt.Errorf("client: unexpected sub-tag %d from relay", msg.Tag)
	}
	return nil
}

func (c *Client) handleMeeting(msg *wire.MeetingMessage) error {
	if msg == nil {
		return fmt.Errorf("client: missing meeting body")
	}
	switch msg.Tag {
	case wire.MeetingRoomCreated:
		c.events <- Event{Kind: EventMeetingRoomCreated, RoomCreated: msg.RoomCreated}
	case wire.MeetingRoomReady:
		c.events <- Event{Kind: EventMeetingRoomReady, RoomReady: msg.RoomReady}
	default:
		return fmt.Errorf("client: unexpected meeting sub-tag %d", msg.Tag)
	}
	return nil
}

func (c *Client) handleHandshakePacket(packet *wire.HandshakePacket) error {
	if packet == nil {
		return fmt.Errorf("client: missing handshake packet")
	}
	if packet.Target == wire.HandshakeTargetServer {
		return c.handleServerHandshake(packet.Body)
	}
	return c.handlePeerHandshake(packet.PeerKey, packet.Body)
}

func (c *Client) handleServerHandshake(body []byte) error {
	c.serverMu.Lock()
	defer c.serverMu.Unlock()
	if c.serverHS == nil {
		return fmt.Errorf("client: server handshake already complete")
	}
	_, complete, err := c.serverHS.ReadMessage(body)
	if err != nil {
		return fmt.Errorf("client: read server handshake: %w", err)
	}
	if !complete {
		return nil
	}
	transport, err := c.serverHS.Transport()
	if err != nil {
		return err
	}
	c.serverTransport = transport
	c.serverHS = nil
	c.events <- serverConnectedEvent()
	return nil
}

func (c *Client) handlePeerHandshake(senderKey, body []byte) error {
	pc, _, err := c.peers.getOrCreate(senderKey, noise.Responder)
	if err != nil {
		return err
	}
	pc.mu.Lock()
	hs := pc.handshake
	pc.mu.Unlock()
	if hs == nil {
		return nil // already established; stray retransmit
	}

	_, complete, err := hs.ReadMessage(body)
	if err != nil {
		return fmt.Errorf("client: read peer handshake: %w", err)
	}
	if !complete {
		// The NN responder completes while producing its reply (the 'ee'
		// DH token is computed on write), not on the read above, so the
		// channel's local state is settled before the reply goes out.
		out, replyComplete, err := hs.WriteMessage(nil)
		if err != nil {
			return fmt.Errorf("client: write peer handshake reply: %w", err)
		}
		if replyComplete {
			if err := pc.complete(); err != nil {
				return err
			}
			c.events <- peerConnectedEvent(senderKey)
		}
		return c.writeFrame(wire.EncodeFrame(wire.TagTransparent, c.encodeHandshakePacket(wire.HandshakeTargetPeer, senderKey, out)))
	}

	if err := pc.complete(); err != nil {
		return err
	}
	c.events <- peerConnectedEvent(senderKey)
	return nil
}

func (c *Client) handleOpaque(body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("client: empty opaque frame")
	}
	switch wire.Target(body[0]) {
	case wire.TargetServer:
		_, sealed, err := wire.DecodeOpaqueBody(body)
		if err != nil {
			return err
		}
		return c.decryptServerEnvelope(sealed)
	case wire.TargetPeer:
		route, err := wire.DecodePeerBody(body)
		if err != nil {
			return err
		}
		return c.decryptPeerEnvelope(route)
	default:
		return fmt.Errorf("client: unknown opaque target %d", body[0])
	}
}

func (c *Client) decryptServerEnvelope(sealed wire.SealedEnvelope) error {
	c.serverMu.Lock()
	transport := c.serverTransport
	c.serverMu.Unlock()
	if transport == nil {
		return noise.ErrNotTransportState
	}
	plaintext, err := transport.Decrypt(sealed.Payload)
	if err != nil {
		return fmt.Errorf("client: decrypt server envelope: %w", err)
	}
	return c.handleTransparent(plaintext)
}

func (c *Client) decryptPeerEnvelope(route wire.PeerRoute) error {
	// The relay rewrites DestKey from "destination" to "sender" when it
	// forwards an envelope (mirroring routeHandshakeToPeer's PeerKey
	// rewrite), so here it identifies which peer channel sent this.
	pc, ok := c.peers.get(route.DestKey)
	if !ok {
		return fmt.Errorf("client: no peer channel for incoming envelope")
	}
	plaintext, err := pc.decrypt(route.Sealed.Payload)
	if err != nil {
		return fmt.Errorf("client: decrypt peer envelope: %w", err)
	}
	sessionID := route.SessionId
	if route.Sealed.Encoding == wire.EncodingJSON {
		c.events <- Event{Kind: EventJSONMessage, PeerKey: pc.peerKey, SessionID: &sessionID, JSONPayload: plaintext}
	} else {
		c.events <- Event{Kind: EventBinaryMessage, PeerKey: pc.peerKey, SessionID: &sessionID, BinaryPayload: plaintext}
	}
	return nil
}

// SendJSON encrypts payload under the channel to peerKey and sends it
// through the relay as a unicast OPAQUE_PEER envelope.
func (c *Client) SendJSON(peerKey []byte, sessionID wire.SessionId, payload []byte) error {
	return c.sendToPeer(peerKey, sessionID, payload, wire.EncodingJSON, false)
}

// SendBlob is SendJSON for an opaque byte payload (round messages).
func (c *Client) SendBlob(peerKey []byte, sessionID wire.SessionId, payload []byte) error {
	return c.sendToPeer(peerKey, sessionID, payload, wire.EncodingBlob, false)
}

func (c *Client) sendToPeer(peerKey []byte, sessionID wire.SessionId, payload []byte, encoding wire.Encoding, broadcast bool) error {
	pc, ok := c.peers.get(peerKey)
	if !ok {
		return fmt.Errorf("client: no peer channel for %x", peerKey)
	}
	ciphertext, err := pc.encrypt(payload)
	if err != nil {
		return fmt.Errorf("client: encrypt to peer: %w", err)
	}
	sealed := wire.NewSealedEnvelope(encoding, ciphertext, broadcast)
	body := wire.EncodePeerBody(wire.PeerRoute{SessionId: sessionID, DestKey: peerKey, Sealed: sealed})
	return c.writeFrame(wire.EncodeFrame(wire.TagOpaque, body))
}

// BroadcastJSON sends payload to every recipient's own peer channel,
// marking each envelope broadcast so the relay's accounting (and any
// observer) can tell it was not a private unicast.
func (c *Client) BroadcastJSON(sessionID wire.SessionId, recipients [][]byte, payload []byte) error {
	return c.broadcast(sessionID, recipients, payload, wire.EncodingJSON)
}

// BroadcastBlob is BroadcastJSON for an opaque byte payload.
func (c *Client) BroadcastBlob(sessionID wire.SessionId, recipients [][]byte, payload []byte) error {
	return c.broadcast(sessionID, recipients, payload, wire.EncodingBlob)
}

func (c *Client) broadcast(sessionID wire.SessionId, recipients [][]byte, payload []byte, encoding wire.Encoding) error {
	var firstErr error
	for _, peerKey := range recipients {
		if err := c.sendToPeer(peerKey, sessionID, payload, encoding, true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Client) sendServerRequest(msg wire.TransparentMessage) error {
	w := wire.NewWriter()
	if err := msg.Encode(w); err != nil {
		return err
	}
	c.serverMu.Lock()
	transport := c.serverTransport
	c.serverMu.Unlock()
	if transport == nil {
		return noise.ErrNotTransportState
	}
	ciphertext, err := transport.Encrypt(w.Bytes())
	if err != nil {
		return fmt.Errorf("client: encrypt server request: %w", err)
	}
	sealed := wire.NewSealedEnvelope(wire.EncodingBlob, ciphertext, false)
	body := wire.EncodeOpaqueBody(wire.TargetServer, sealed)
	return c.writeFrame(wire.EncodeFrame(wire.TagOpaque, body))
}

// NewSession asks the relay to create a Pending session among participants.
func (c *Client) NewSession(participants [][]byte) error {
	return c.sendServerRequest(wire.TransparentMessage{Tag: wire.SubNew, NewReq: &wire.NewSessionRequest{Participants: participants}})
}

// RegisterConnection tells the relay this party has completed its peer
// handshake with peerKey inside sessionID.
func (c *Client) RegisterConnection(sessionID wire.SessionId, peerKey []byte) error {
	return c.sendServerRequest(wire.TransparentMessage{
		Tag:      wire.SubConnection,
		Register: &wire.RegisterConnectionRequest{SessionId: sessionID, PeerKey: peerKey},
	})
}

// CloseSession tears down a session this party owns.
func (c *Client) CloseSession(sessionID wire.SessionId) error {
	return c.sendServerRequest(wire.TransparentMessage{Tag: wire.SubClose, Close: &wire.CloseSessionRequest{SessionId: sessionID}})
}

// NewRoom asks the relay to reserve a meeting room with one slot per entry
// in slots, owned by ownerID. The caller should await EventMeetingRoomCreated.
func (c *Client) NewRoom(ownerID wire.UserId, slots []wire.UserId) error {
	return c.sendServerRequest(wire.TransparentMessage{
		Tag: wire.SubMeeting,
		Meeting: &wire.MeetingMessage{
			Tag:     wire.MeetingNewRoom,
			NewRoom: &wire.NewRoomRequest{OwnerId: ownerID, Slots: slots},
		},
	})
}

// JoinRoom fills userID's slot in meetingID with data. The caller should
// await EventMeetingRoomReady once every slot is filled.
func (c *Client) JoinRoom(meetingID wire.MeetingId, userID wire.UserId, data wire.PublicKeys) error {
	return c.sendServerRequest(wire.TransparentMessage{
		Tag: wire.SubMeeting,
		Meeting: &wire.MeetingMessage{
			Tag:      wire.MeetingJoinRoom,
			JoinRoom: &wire.JoinRoomRequest{MeetingId: meetingID, UserId: userID, Data: data},
		},
	})
}

// Close terminates the underlying socket and stops the event loop.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}
