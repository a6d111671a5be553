package wire

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSealedEnvelopeRoundTrip(t *testing.T) {
	sealed := NewSealedEnvelope(EncodingJSON, []byte("ciphertext-and-tag"), true)

	w := NewWriter()
	sealed.Encode(w)

	decoded, err := DecodeSealedEnvelope(NewReader(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, sealed, decoded)
}

func TestSealedEnvelopeRejectsLengthMismatch(t *testing.T) {
	w := NewWriter()
	w.Uint32(99)
	w.Byte(byte(EncodingBlob))
	w.Bool(false)
	w.BytesField([]byte("short"))

	_, err := DecodeSealedEnvelope(NewReader(w.Bytes()))
	require.Error(t, err)
}

func TestFrameRoundTrip(t *testing.T) {
	body := []byte("opaque body bytes")
	frame := EncodeFrame(TagOpaque, body)

	decoded, err := DecodeFrame(frame)
	require.NoError(t, err)
	require.Equal(t, TagOpaque, decoded.Tag)
	require.Equal(t, body, decoded.Body)
}

func TestDecodeFrameRejectsWrongVersion(t *testing.T) {
	w := NewWriter()
	w.Uint16(Version + 1)
	w.Byte(byte(TagTransparent))

	_, err := DecodeFrame(w.Bytes())
	require.Error(t, err)
}

func TestOpaqueBodyRoundTrip(t *testing.T) {
	sealed := NewSealedEnvelope(EncodingBlob, []byte("peer ciphertext"), false)
	body := EncodeOpaqueBody(TargetPeer, sealed)

	target, decoded, err := DecodeOpaqueBody(body)
	require.NoError(t, err)
	require.Equal(t, TargetPeer, target)
	require.Equal(t, sealed, decoded)
}

func TestTransparentMessageSessionRoundTrip(t *testing.T) {
	sessionId := uuid.New()
	msg := TransparentMessage{Tag: SubActive, SessionID: &sessionId}

	w := NewWriter()
	require.NoError(t, msg.Encode(w))

	decoded, err := DecodeTransparentMessage(NewReader(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, SubActive, decoded.Tag)
	require.Equal(t, sessionId, *decoded.SessionID)
}

func TestTransparentMessageNewSessionRoundTrip(t *testing.T) {
	msg := TransparentMessage{
		Tag: SubNew,
		NewReq: &NewSessionRequest{
			Participants: [][]byte{[]byte("alice-key"), []byte("bob-key"), []byte("carol-key")},
		},
	}

	w := NewWriter()
	require.NoError(t, msg.Encode(w))

	decoded, err := DecodeTransparentMessage(NewReader(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, msg.NewReq.Participants, decoded.NewReq.Participants)
}

func TestTransparentMessageErrorRoundTrip(t *testing.T) {
	msg := TransparentMessage{
		Tag: SubError,
		Err: &Error{Code: ErrCodeUnknownSession, Message: "no such session"},
	}

	w := NewWriter()
	require.NoError(t, msg.Encode(w))

	decoded, err := DecodeTransparentMessage(NewReader(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, *msg.Err, *decoded.Err)
}

func TestTransparentMessageHandshakeRoundTrip(t *testing.T) {
	msg := TransparentMessage{
		Tag: SubHandshake,
		Handshake: &HandshakePacket{
			Target:  HandshakeTargetPeer,
			PeerKey: []byte("peer-static-key"),
			Body:    []byte("noise-e-message"),
		},
	}

	w := NewWriter()
	require.NoError(t, msg.Encode(w))

	decoded, err := DecodeTransparentMessage(NewReader(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, *msg.Handshake, *decoded.Handshake)
}

func TestMeetingNewRoomRoundTrip(t *testing.T) {
	owner := UserIdFromString("alice@example.com")
	bob := UserIdFromString("bob@example.com")

	msg := TransparentMessage{
		Tag: SubMeeting,
		Meeting: &MeetingMessage{
			Tag:     MeetingNewRoom,
			NewRoom: &NewRoomRequest{OwnerId: owner, Slots: []UserId{owner, bob}},
		},
	}

	w := NewWriter()
	require.NoError(t, msg.Encode(w))

	decoded, err := DecodeTransparentMessage(NewReader(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, owner, decoded.Meeting.NewRoom.OwnerId)
	require.Equal(t, []UserId{owner, bob}, decoded.Meeting.NewRoom.Slots)
}

func TestMeetingRoomReadyRoundTrip(t *testing.T) {
	alice := UserIdFromString("alice@example.com")
	bob := UserIdFromString("bob@example.com")

	msg := TransparentMessage{
		Tag: SubMeeting,
		Meeting: &MeetingMessage{
			Tag: MeetingRoomReady,
			RoomReady: &RoomReadyResponse{
				Participants: []Participant{
					{UserId: alice, Keys: PublicKeys{PublicKey: []byte("a-pk"), VerifyingKey: []byte("a-vk")}},
					{UserId: bob, Keys: PublicKeys{PublicKey: []byte("b-pk"), VerifyingKey: []byte("b-vk")}},
				},
			},
		},
	}

	w := NewWriter()
	require.NoError(t, msg.Encode(w))

	decoded, err := DecodeTransparentMessage(NewReader(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, msg.Meeting.RoomReady.Participants, decoded.Meeting.RoomReady.Participants)
}

func TestRoundMessageRoundTrip(t *testing.T) {
	msg := RoundMessage{Round: 2, Sender: 1, Receiver: Broadcast, Body: []byte("round-2 payload")}

	w := NewWriter()
	msg.Encode(w)

	decoded, err := DecodeRoundMessage(NewReader(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, msg, decoded)
	require.True(t, decoded.IsBroadcast())
}

func TestDeflateInflateRoundTrip(t *testing.T) {
	original := []byte("Some message that we send out over the wire, repeated. " +
		"Some message that we send out over the wire, repeated.")

	compressed, err := Deflate(original)
	require.NoError(t, err)
	require.NotEqual(t, original, compressed)

	decompressed, err := Inflate(compressed)
	require.NoError(t, err)
	require.Equal(t, original, decompressed)
}

func TestInflateRejectsGarbage(t *testing.T) {
	_, err := Inflate([]byte("not zlib data"))
	require.Error(t, err)
}

func TestPublicKeysRoundTrip(t *testing.T) {
	pk := PublicKeys{
		PublicKey:      []byte("static-key"),
		VerifyingKey:   []byte("verify-key"),
		AssociatedData: []byte(`{"nickname":"alice"}`),
	}

	w := NewWriter()
	pk.Encode(w)

	decoded, err := DecodePublicKeys(NewReader(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, pk, decoded)
}

func TestReaderRejectsShortBuffer(t *testing.T) {
	r := NewReader([]byte{1, 2})
	_, err := r.Uint32()
	require.ErrorIs(t, err, ErrShortBuffer)
}
