package wire

import "fmt"

// SessionSubTag enumerates the TRANSPARENT envelope's session-control
// sub-messages.
type SessionSubTag byte

const (
	SubNew SessionSubTag = iota
	SubCreated
	SubReadyNotify
	SubReady
	SubConnection
	SubActiveNotify
	SubActive
	SubClose
	SubFinished
	// SubError carries a relay-side failure back to the offending client.
	SubError
	// SubMeeting carries a meeting-room request/response.
	SubMeeting
	// SubHandshake carries a Noise handshake packet addressed to the server
	// or, once peer connection setup begins, relayed to a peer.
	SubHandshake
)

// HandshakeTarget distinguishes who a TRANSPARENT handshake sub-message's
// Noise bytes are addressed to.
type HandshakeTarget byte

const (
	HandshakeTargetServer HandshakeTarget = 0
	HandshakeTargetPeer   HandshakeTarget = 1
)

// Error is the relay's uniform failure report. It is sent to the offending
// client only; the connection is not closed.
type Error struct {
	Code    uint16
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("wire: relay error %d: %s", e.Code, e.Message)
}

// Relay error codes. These are stable across versions; new codes are
// appended, never renumbered.
const (
	ErrCodeUnknownSession uint16 = iota + 1
	ErrCodeNotParticipant
	ErrCodeMalformedFrame
	ErrCodeUnknownRoom
	ErrCodeRoomFull
	ErrCodeSlotTaken
)

func (e *Error) encode(w *Writer) {
	w.Uint16(e.Code)
	w.String(e.Message)
}

func decodeError(r *Reader) (Error, error) {
	var e Error
	var err error
	if e.Code, err = r.Uint16(); err != nil {
		return e, err
	}
	if e.Message, err = r.String(); err != nil {
		return e, err
	}
	return e, nil
}

// HandshakePacket is a TRANSPARENT envelope's handshake sub-message: a raw
// Noise wire message addressed to the server or, once routed by the relay,
// to a specific peer.
type HandshakePacket struct {
	Target HandshakeTarget
	// PeerKey identifies the destination when Target is HandshakeTargetPeer.
	// Empty when addressed to the server.
	PeerKey []byte
	Body    []byte
}

func (h *HandshakePacket) encode(w *Writer) {
	w.Byte(byte(h.Target))
	w.BytesField(h.PeerKey)
	w.BytesField(h.Body)
}

func decodeHandshakePacket(r *Reader) (HandshakePacket, error) {
	var h HandshakePacket
	targetByte, err := r.Byte()
	if err != nil {
		return h, err
	}
	h.Target = HandshakeTarget(targetByte)
	if h.PeerKey, err = r.BytesField(); err != nil {
		return h, err
	}
	if h.Body, err = r.BytesField(); err != nil {
		return h, err
	}
	return h, nil
}

// NewSessionRequest asks the relay to create a Pending session among
// participants, identified by their Noise static public keys.
type NewSessionRequest struct {
	Participants [][]byte
}

// SessionCreated is the owner's reply to NewSessionRequest.
type SessionCreated struct {
	SessionId SessionId
}

// RegisterConnectionRequest records that the caller has completed a
// peer-to-peer Noise handshake with peerKey inside the named session.
type RegisterConnectionRequest struct {
	SessionId SessionId
	PeerKey   []byte
}

// CloseSessionRequest is issued by a session's owner to tear it down.
type CloseSessionRequest struct {
	SessionId SessionId
}

// SessionFinished notifies participants that a session ended, either by
// explicit close or by reaper timeout.
type SessionFinished struct {
	SessionId SessionId
	TimedOut  bool
}

// TransparentMessage is the decoded payload of a TRANSPARENT envelope: a
// single sub-tag plus its associated fields. Exactly one of the typed
// fields is populated, selected by Tag.
type TransparentMessage struct {
	Tag SessionSubTag

	Handshake *HandshakePacket
	NewReq    *NewSessionRequest
	Created   *SessionCreated
	Register  *RegisterConnectionRequest
	SessionID *SessionId // used by READY_NOTIFY/READY/ACTIVE_NOTIFY/ACTIVE
	Close     *CloseSessionRequest
	Finished  *SessionFinished
	Err       *Error
	Meeting   *MeetingMessage
}

// Encode writes a TransparentMessage's sub-tag and body.
func (m *TransparentMessage) Encode(w *Writer) error {
	w.Byte(byte(m.Tag))
	switch m.Tag {
	case SubHandshake:
		if m.Handshake == nil {
			return fmt.Errorf("wire: SubHandshake requires Handshake field")
		}
		m.Handshake.encode(w)
	case SubNew:
		if m.NewReq == nil {
			return fmt.Errorf("wire: SubNew requires NewReq field")
		}
		w.Uint32(uint32(len(m.NewReq.Participants)))
		for _, p := range m.NewReq.Participants {
			w.BytesField(p)
		}
	case SubCreated:
		if m.Created == nil {
			return fmt.Errorf("wire: SubCreated requires Created field")
		}
		w.UUID(m.Created.SessionId)
	case SubConnection:
		if m.Register == nil {
			return fmt.Errorf("wire: SubConnection requires Register field")
		}
		w.UUID(m.Register.SessionId)
		w.BytesField(m.Register.PeerKey)
	case SubReadyNotify, SubReady, SubActiveNotify, SubActive:
		if m.SessionID == nil {
			return fmt.Errorf("wire: tag %d requires SessionID field", m.Tag)
		}
		w.UUID(*m.SessionID)
	case SubClose:
		if m.Close == nil {
			return fmt.Errorf("wire: SubClose requires Close field")
		}
		w.UUID(m.Close.SessionId)
	case SubFinished:
		if m.Finished == nil {
			return fmt.Errorf("wire: SubFinished requires Finished field")
		}
		w.UUID(m.Finished.SessionId)
		w.Bool(m.Finished.TimedOut)
	case SubError:
		if m.Err == nil {
			return fmt.Errorf("wire: SubError requires Err field")
		}
		m.Err.encode(w)
	case SubMeeting:
		if m.Meeting == nil {
			return fmt.Errorf("wire: SubMeeting requires Meeting field")
		}
		m.Meeting.encode(w)
	default:
		return fmt.Errorf("wire: unknown session sub-tag %d", m.Tag)
	}
	return nil
}

// DecodeTransparentMessage reads a TransparentMessage from a TRANSPARENT
// envelope's body.
func DecodeTransparentMessage(r *Reader) (TransparentMessage, error) {
	var m TransparentMessage
	tagByte, err := r.Byte()
	if err != nil {
		return m, err
	}
	m.Tag = SessionSubTag(tagByte)

	switch m.Tag {
	case SubHandshake:
		hp, err := decodeHandshakePacket(r)
		if err != nil {
			return m, err
		}
		m.Handshake = &hp
	case SubNew:
		count, err := r.Uint32()
		if err != nil {
			return m, err
		}
		req := &NewSessionRequest{Participants: make([][]byte, 0, count)}
		for i := uint32(0); i < count; i++ {
			key, err := r.BytesField()
			if err != nil {
				return m, err
			}
			req.Participants = append(req.Participants, key)
		}
		m.NewReq = req
	case SubCreated:
		id, err := r.UUID()
		if err != nil {
			return m, err
		}
		m.Created = &SessionCreated{SessionId: id}
	case SubConnection:
		id, err := r.UUID()
		if err != nil {
			return m, err
		}
		peerKey, err := r.BytesField()
		if err != nil {
			return m, err
		}
		m.Register = &RegisterConnectionRequest{SessionId: id, PeerKey: peerKey}
	case SubReadyNotify, SubReady, SubActiveNotify, SubActive:
		id, err := r.UUID()
		if err != nil {
			return m, err
		}
		m.SessionID = &id
	case SubClose:
		id, err := r.UUID()
		if err != nil {
			return m, err
		}
		m.Close = &CloseSessionRequest{SessionId: id}
	case SubFinished:
		id, err := r.UUID()
		if err != nil {
			return m, err
		}
		timedOut, err := r.Bool()
		if err != nil {
			return m, err
		}
		m.Finished = &SessionFinished{SessionId: id, TimedOut: timedOut}
	case SubError:
		e, err := decodeError(r)
		if err != nil {
			return m, err
		}
		m.Err = &e
	case SubMeeting:
		mm, err := decodeMeetingMessage(r)
		if err != nil {
			return m, err
		}
		m.Meeting = &mm
	default:
		return m, fmt.Errorf("wire: unknown session sub-tag %d", m.Tag)
	}
	return m, nil
}
