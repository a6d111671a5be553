package wire

import "fmt"

// Tag discriminates the two top-level envelope kinds.
type Tag byte

const (
	// TagTransparent carries plaintext server-control messages.
	TagTransparent Tag = 128
	// TagOpaque carries an already-encrypted payload.
	TagOpaque Tag = 129
)

// Target discriminates who an OPAQUE envelope's ciphertext is addressed to.
type Target byte

const (
	// TargetServer addresses the relay's own Noise channel.
	TargetServer Target = 0
	// TargetPeer addresses another party's Noise channel, routed opaquely.
	TargetPeer Target = 1
)

// Encoding describes how a SealedEnvelope's plaintext payload was structured
// before encryption.
type Encoding byte

const (
	// EncodingBlob is an uninterpreted byte string (round messages).
	EncodingBlob Encoding = 0
	// EncodingJSON is a JSON-serialised value.
	EncodingJSON Encoding = 1
)

// SealedEnvelope wraps ciphertext addressed to the server or a peer.
// Length is the Noise ciphertext length including its 16-byte tag.
type SealedEnvelope struct {
	Length    uint32
	Encoding  Encoding
	Payload   []byte
	Broadcast bool
}

// NewSealedEnvelope builds an envelope from an already-encrypted payload.
func NewSealedEnvelope(encoding Encoding, ciphertext []byte, broadcast bool) SealedEnvelope {
	return SealedEnvelope{
		Length:    uint32(len(ciphertext)),
		Encoding:  encoding,
		Payload:   ciphertext,
		Broadcast: broadcast,
	}
}

// Encode writes a SealedEnvelope.
func (s *SealedEnvelope) Encode(w *Writer) {
	w.Uint32(s.Length)
	w.Byte(byte(s.Encoding))
	w.Bool(s.Broadcast)
	w.BytesField(s.Payload)
}

// DecodeSealedEnvelope reads a SealedEnvelope, validating that Length
// matches the actual payload size carried and that the payload does not
// exceed MaxPayload.
func DecodeSealedEnvelope(r *Reader) (SealedEnvelope, error) {
	var s SealedEnvelope
	var err error
	if s.Length, err = r.Uint32(); err != nil {
		return s, err
	}
	encByte, err := r.Byte()
	if err != nil {
		return s, err
	}
	s.Encoding = Encoding(encByte)
	if s.Broadcast, err = r.Bool(); err != nil {
		return s, err
	}
	if s.Payload, err = r.BytesField(); err != nil {
		return s, err
	}
	if uint32(len(s.Payload)) != s.Length {
		return s, fmt.Errorf("wire: sealed envelope length mismatch: header=%d actual=%d", s.Length, len(s.Payload))
	}
	if len(s.Payload) > MaxPayload {
		return s, fmt.Errorf("wire: sealed envelope payload %d exceeds max %d", len(s.Payload), MaxPayload)
	}
	return s, nil
}

// Frame is a fully decoded top-level WebSocket binary frame:
// VERSION || TAG || body.
type Frame struct {
	Tag  Tag
	Body []byte
}

// EncodeFrame prefixes body with the version and tag.
func EncodeFrame(tag Tag, body []byte) []byte {
	w := NewWriter()
	w.Uint16(Version)
	w.Byte(byte(tag))
	w.buf.Write(body)
	return w.Bytes()
}

// DecodeFrame validates the version and splits off the tag.
func DecodeFrame(data []byte) (Frame, error) {
	r := NewReader(data)
	if err := ReadVersion(r); err != nil {
		return Frame{}, err
	}
	tagByte, err := r.Byte()
	if err != nil {
		return Frame{}, err
	}
	return Frame{Tag: Tag(tagByte), Body: data[r.pos:]}, nil
}

// EncodeOpaqueBody builds the body of an OPAQUE frame: target || sealed.
func EncodeOpaqueBody(target Target, sealed SealedEnvelope) []byte {
	w := NewWriter()
	w.Byte(byte(target))
	sealed.Encode(w)
	return w.Bytes()
}

// DecodeOpaqueBody parses the body of an OPAQUE frame.
func DecodeOpaqueBody(body []byte) (Target, SealedEnvelope, error) {
	r := NewReader(body)
	targetByte, err := r.Byte()
	if err != nil {
		return 0, SealedEnvelope{}, err
	}
	sealed, err := DecodeSealedEnvelope(r)
	if err != nil {
		return 0, SealedEnvelope{}, err
	}
	return Target(targetByte), sealed, nil
}
