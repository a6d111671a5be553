package wire

// PeerRoute carries the routing metadata the relay needs to forward an
// OPAQUE_PEER envelope without decrypting it: which session it belongs to
// (to resolve the participant list for a broadcast) and, for a unicast
// send, the recipient's static key.
type PeerRoute struct {
	SessionId SessionId
	DestKey   []byte // empty when Sealed.Broadcast is true
	Sealed    SealedEnvelope
}

// EncodePeerBody builds the body of an OPAQUE frame targeting a peer:
// target || session_id || dest_key || sealed.
func EncodePeerBody(route PeerRoute) []byte {
	w := NewWriter()
	w.Byte(byte(TargetPeer))
	w.UUID(route.SessionId)
	w.BytesField(route.DestKey)
	route.Sealed.Encode(w)
	return w.Bytes()
}

// DecodePeerBody parses the body of an OPAQUE frame targeting a peer.
func DecodePeerBody(body []byte) (PeerRoute, error) {
	var route PeerRoute
	r := NewReader(body)
	targetByte, err := r.Byte()
	if err != nil {
		return route, err
	}
	_ = Target(targetByte) // validated by the caller, which dispatches on it first
	if route.SessionId, err = r.UUID(); err != nil {
		return route, err
	}
	if route.DestKey, err = r.BytesField(); err != nil {
		return route, err
	}
	if route.Sealed, err = DecodeSealedEnvelope(r); err != nil {
		return route, err
	}
	return route, nil
}
