package wire

import "fmt"

// MeetingSubTag discriminates the meeting-point request/response taxonomy,
// nested inside a TRANSPARENT envelope's SubMeeting sub-message.
type MeetingSubTag byte

const (
	MeetingNewRoom MeetingSubTag = iota
	MeetingRoomCreated
	MeetingJoinRoom
	MeetingRoomReady
)

// NewRoomRequest asks the relay to create a room reserving one slot per
// entry in Slots, owned by OwnerId. OwnerId must appear in Slots.
type NewRoomRequest struct {
	OwnerId UserId
	Slots   []UserId
}

// RoomCreatedResponse is the relay's reply to NewRoomRequest.
type RoomCreatedResponse struct {
	MeetingId MeetingId
	OwnerId   UserId
}

// JoinRoomRequest fills UserId's slot in MeetingId with Data.
type JoinRoomRequest struct {
	MeetingId MeetingId
	UserId    UserId
	Data      PublicKeys
}

// Participant pairs a filled slot's owner with the keys they published.
type Participant struct {
	UserId UserId
	Keys   PublicKeys
}

// RoomReadyResponse is broadcast to every participant once all of a room's
// slots have been filled.
type RoomReadyResponse struct {
	Participants []Participant
}

// MeetingMessage is the decoded body of a SubMeeting sub-message: exactly
// one of the typed fields is populated, selected by Tag.
type MeetingMessage struct {
	Tag MeetingSubTag

	NewRoom     *NewRoomRequest
	RoomCreated *RoomCreatedResponse
	JoinRoom    *JoinRoomRequest
	RoomReady   *RoomReadyResponse
}

func (m *MeetingMessage) encode(w *Writer) {
	w.Byte(byte(m.Tag))
	switch m.Tag {
	case MeetingNewRoom:
		w.BytesField(m.NewRoom.OwnerId[:])
		w.Uint32(uint32(len(m.NewRoom.Slots)))
		for _, id := range m.NewRoom.Slots {
			w.BytesField(id[:])
		}
	case MeetingRoomCreated:
		w.UUID(m.RoomCreated.MeetingId)
		w.BytesField(m.RoomCreated.OwnerId[:])
	case MeetingJoinRoom:
		w.UUID(m.JoinRoom.MeetingId)
		w.BytesField(m.JoinRoom.UserId[:])
		m.JoinRoom.Data.Encode(w)
	case MeetingRoomReady:
		w.Uint32(uint32(len(m.RoomReady.Participants)))
		for _, p := range m.RoomReady.Participants {
			w.BytesField(p.UserId[:])
			p.Keys.Encode(w)
		}
	}
}

func decodeUserId(r *Reader) (UserId, error) {
	var id UserId
	b, err := r.BytesField()
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("wire: user id length %d, want %d", len(b), len(id))
	}
	copy(id[:], b)
	return id, nil
}

func decodeMeetingMessage(r *Reader) (MeetingMessage, error) {
	var m MeetingMessage
	tagByte, err := r.Byte()
	if err != nil {
		return m, err
	}
	m.Tag = MeetingSubTag(tagByte)

	switch m.Tag {
	case MeetingNewRoom:
		owner, err := decodeUserId(r)
		if err != nil {
			return m, err
		}
		count, err := r.Uint32()
		if err != nil {
			return m, err
		}
		slots := make([]UserId, 0, count)
		for i := uint32(0); i < count; i++ {
			id, err := decodeUserId(r)
			if err != nil {
				return m, err
			}
			slots = append(slots, id)
		}
		m.NewRoom = &NewRoomRequest{OwnerId: owner, Slots: slots}
	case MeetingRoomCreated:
		meetingId, err := r.UUID()
		if err != nil {
			return m, err
		}
		owner, err := decodeUserId(r)
		if err != nil {
			return m, err
		}
		m.RoomCreated = &RoomCreatedResponse{MeetingId: meetingId, OwnerId: owner}
	case MeetingJoinRoom:
		meetingId, err := r.UUID()
		if err != nil {
			return m, err
		}
		userId, err := decodeUserId(r)
		if err != nil {
			return m, err
		}
		data, err := DecodePublicKeys(r)
		if err != nil {
			return m, err
		}
		m.JoinRoom = &JoinRoomRequest{MeetingId: meetingId, UserId: userId, Data: data}
	case MeetingRoomReady:
		count, err := r.Uint32()
		if err != nil {
			return m, err
		}
		participants := make([]Participant, 0, count)
		for i := uint32(0); i < count; i++ {
			userId, err := decodeUserId(r)
			if err != nil {
				return m, err
			}
			keys, err := DecodePublicKeys(r)
			if err != nil {
				return m, err
			}
			participants = append(participants, Participant{UserId: userId, Keys: keys})
		}
		m.RoomReady = &RoomReadyResponse{Participants: participants}
	default:
		return m, fmt.Errorf("wire: unknown meeting sub-tag %d", m.Tag)
	}
	return m, nil
}
