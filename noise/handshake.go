// Package noise implements the Noise_NN_25519_ChaChaPoly_BLAKE2s handshake
// and transport encryption used for both the client-to-relay channel and
// every peer-to-peer channel opened inside a session.
package noise

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/flynn/noise"
)

var (
	// ErrHandshakeNotComplete indicates the handshake is still in progress.
	ErrHandshakeNotComplete = errors.New("handshake not complete")
	// ErrHandshakeComplete indicates the handshake already finished.
	ErrHandshakeComplete = errors.New("handshake already complete")
	// ErrNotTransportState indicates encrypt/decrypt was attempted before
	// the handshake completed.
	ErrNotTransportState = errors.New("noise channel is not in transport state")
	// ErrUnsupportedPattern indicates a caller requested a Noise pattern
	// other than DefaultPattern. Only Noise_NN_25519_ChaChaPoly_BLAKE2s is
	// implemented today; the name is still validated so a future pattern
	// addition can key off it without an API break.
	ErrUnsupportedPattern = errors.New("unsupported noise pattern")
)

// DefaultPattern is the only Noise pattern this package currently
// implements.
const DefaultPattern = "Noise_NN_25519_ChaChaPoly_BLAKE2s"

// ValidatePattern accepts the empty string (meaning "use the default") or an
// exact match on DefaultPattern; anything else is rejected before a
// handshake is ever started.
func ValidatePattern(pattern string) error {
	if pattern == "" || pattern == DefaultPattern {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedPattern, pattern)
}

// Role distinguishes the two sides of a handshake. NN is symmetric in the
// number of messages each side writes/reads, but the first message is
// always produced by the initiator.
type Role uint8

const (
	// Initiator sends the first handshake message.
	Initiator Role = iota
	// Responder replies to the first handshake message.
	Responder
)

// cipherSuite is the fixed Noise_NN_25519_ChaChaPoly_BLAKE2s suite: Curve25519
// for DH, ChaCha20-Poly1305 for AEAD, BLAKE2s for the hash/HKDF.
func cipherSuite() noise.CipherSuite {
	return noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2s)
}

// Handshake drives one side of a Noise_NN handshake to completion and then
// exposes the resulting Transport. NN has no static keys: a channel's
// identity comes entirely from the long-term keypair carried separately in
// PublicKeys, not from the Noise handshake itself.
type Handshake struct {
	role     Role
	state    *noise.HandshakeState
	complete bool
	send     *noise.CipherState
	recv     *noise.CipherState
}

// New starts a fresh NN handshake for the given role.
func New(role Role) (*Handshake, error) {
	state, err := noise.NewHandshakeState(noise.Config{
		CipherSuite: cipherSuite(),
		Random:      rand.Reader,
		Pattern:     noise.HandshakeNN,
		Initiator:   role == Initiator,
	})
	if err != nil {
		return nil, fmt.Errorf("create handshake state: %w", err)
	}

	return &Handshake{role: role, state: state}, nil
}

// WriteMessage produces the next outbound handshake message. payload is
// optional data to carry (e.g. a protocol version string).
func (h *Handshake) WriteMessage(payload []byte) ([]byte, bool, error) {
	if h.complete {
		return nil, false, ErrHandshakeComplete
	}

	msg, send, recv, err := h.state.WriteMessage(nil, payload)
	if err != nil {
		return nil, false, fmt.Errorf("write handshake message: %w", err)
	}

	if send != nil && recv != nil {
		h.send, h.recv = send, recv
		h.complete = true
	}

	return msg, h.complete, nil
}

// ReadMessage consumes an inbound handshake message, returning any payload
// the sender attached.
func (h *Handshake) ReadMessage(message []byte) ([]byte, bool, error) {
	if h.complete {
		return nil, false, ErrHandshakeComplete
	}

	payload, recv, send, err := h.state.ReadMessage(nil, message)
	if err != nil {
		return nil, false, fmt.Errorf("read handshake message: %w", err)
	}

	if send != nil && recv != nil {
		h.send, h.recv = send, recv
		h.complete = true
	}

	return payload, h.complete, nil
}

// IsComplete reports whether the handshake has produced transport ciphers.
func (h *Handshake) IsComplete() bool {
	return h.complete
}

// Transport returns the established Transport. Fails until the handshake is
// complete.
func (h *Handshake) Transport() (*Transport, error) {
	if !h.complete {
		return nil, ErrHandshakeNotComplete
	}
	return &Transport{send: h.send, recv: h.recv}, nil
}

// Transport is the post-handshake state of one Noise channel: an ordered
// pair of cipher states, one per direction. Only a Transport may
// Encrypt/Decrypt; a Handshake cannot.
type Transport struct {
	send *noise.CipherState
	recv *noise.CipherState
}

// Encrypt seals plaintext, appending the 16-byte ChaChaPoly authentication
// tag. The ciphertext is therefore len(plaintext)+16 bytes.
func (t *Transport) Encrypt(plaintext []byte) ([]byte, error) {
	if t == nil || t.send == nil {
		return nil, ErrNotTransportState
	}
	return t.send.Encrypt(nil, nil, plaintext)
}

// Decrypt opens a ciphertext produced by the peer's Encrypt, stripping the
// trailing 16-byte tag.
func (t *Transport) Decrypt(ciphertext []byte) ([]byte, error) {
	if t == nil || t.recv == nil {
		return nil, ErrNotTransportState
	}
	return t.recv.Decrypt(nil, nil, ciphertext)
}

// TagSize is the Noise transport message authentication tag length, fixed
// by the ChaChaPoly cipher.
const TagSize = 16
