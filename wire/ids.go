package wire

import (
	"crypto/sha256"

	"github.com/google/uuid"
)

// UserId is an opaque 32-byte identifier, typically the SHA-256 of a
// nickname or email. Equality is bytewise.
type UserId [32]byte

// UserIdFromString hashes an arbitrary nickname/email into a UserId, the
// convention used throughout the test scenarios (§8).
func UserIdFromString(s string) UserId {
	return UserId(sha256.Sum256([]byte(s)))
}

// SessionId identifies a relay session, assigned by the relay as a UUID v4.
type SessionId = uuid.UUID

// MeetingId identifies a meeting room, assigned by the relay as a UUID v4.
type MeetingId = uuid.UUID

// NewSessionId mints a fresh v4 SessionId.
func NewSessionId() SessionId { return uuid.New() }

// NewMeetingId mints a fresh v4 MeetingId.
func NewMeetingId() MeetingId { return uuid.New() }

// PublicKeys bundles a party's Noise static public key with their
// protocol-level verifying key, exchanged during meeting-point rendezvous.
type PublicKeys struct {
	// PublicKey is the Noise static public key (unused directly by the
	// Noise_NN pattern itself, but bound to the channel once transport
	// state is reached — see package noise's doc comment).
	PublicKey []byte `json:"publicKey"`
	// VerifyingKey is the protocol signing public key (Ed25519/secp256k1).
	VerifyingKey []byte `json:"verifyingKey"`
	// AssociatedData is optional application-specific JSON.
	AssociatedData []byte `json:"associatedData,omitempty"`
}

// Encode writes a PublicKeys value.
func (pk *PublicKeys) Encode(w *Writer) {
	w.BytesField(pk.PublicKey)
	w.BytesField(pk.VerifyingKey)
	w.BytesField(pk.AssociatedData)
}

// DecodePublicKeys reads a PublicKeys value.
func DecodePublicKeys(r *Reader) (PublicKeys, error) {
	var pk PublicKeys
	var err error
	if pk.PublicKey, err = r.BytesField(); err != nil {
		return pk, err
	}
	if pk.VerifyingKey, err = r.BytesField(); err != nil {
		return pk, err
	}
	if pk.AssociatedData, err = r.BytesField(); err != nil {
		return pk, err
	}
	if len(pk.AssociatedData) == 0 {
		pk.AssociatedData = nil
	}
	return pk, nil
}
