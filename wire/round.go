package wire

// Broadcast is the sentinel Receiver value meaning "every other party in
// the session", used by RoundMessage when a driver emits a broadcast round
// message rather than a unicast one.
const Broadcast uint16 = 0

// RoundMessage is one protocol-driver round message, carried as the
// plaintext of a SealedEnvelope addressed OPAQUE_PEER. Round and Sender are
// 1-based; Receiver is 1-based or Broadcast.
type RoundMessage struct {
	Round    uint16
	Sender   uint16
	Receiver uint16
	Body     []byte
}

// Encode writes a RoundMessage.
func (m *RoundMessage) Encode(w *Writer) {
	w.Uint16(m.Round)
	w.Uint16(m.Sender)
	w.Uint16(m.Receiver)
	w.BytesField(m.Body)
}

// DecodeRoundMessage reads a RoundMessage.
func DecodeRoundMessage(r *Reader) (RoundMessage, error) {
	var m RoundMessage
	var err error
	if m.Round, err = r.Uint16(); err != nil {
		return m, err
	}
	if m.Sender, err = r.Uint16(); err != nil {
		return m, err
	}
	if m.Receiver, err = r.Uint16(); err != nil {
		return m, err
	}
	if m.Body, err = r.BytesField(); err != nil {
		return m, err
	}
	return m, nil
}

// IsBroadcast reports whether m addresses every other party.
func (m *RoundMessage) IsBroadcast() bool { return m.Receiver == Broadcast }
