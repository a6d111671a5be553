package noise

import (
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/opd-ai/threshold-relay/crypto"
)

const (
	pemPublicType  = "NOISE PUBLIC KEY"
	pemPrivateType = "NOISE PRIVATE KEY"
)

var (
	// ErrBadKeypairPem indicates the PEM blob did not contain exactly a
	// public-then-private pair of NOISE blocks.
	ErrBadKeypairPem = errors.New("bad keypair pem")
)

// EncodeKeypairPEM serialises a KeyPair as two concatenated PEM blocks,
// public key first then private key, as required by the wire format.
func EncodeKeypairPEM(kp *crypto.KeyPair) []byte {
	pub := pem.EncodeToMemory(&pem.Block{Type: pemPublicType, Bytes: kp.Public[:]})
	priv := pem.EncodeToMemory(&pem.Block{Type: pemPrivateType, Bytes: kp.Private[:]})
	return append(pub, priv...)
}

// DecodeKeypairPEM parses the concatenated-block format produced by
// EncodeKeypairPEM. Any other block order or tag is rejected.
func DecodeKeypairPEM(data []byte) (*crypto.KeyPair, error) {
	pubBlock, rest := pem.Decode(data)
	if pubBlock == nil || pubBlock.Type != pemPublicType {
		return nil, fmt.Errorf("%w: expected %s first", ErrBadKeypairPem, pemPublicType)
	}

	privBlock, rest := pem.Decode(rest)
	if privBlock == nil || privBlock.Type != pemPrivateType {
		return nil, fmt.Errorf("%w: expected %s second", ErrBadKeypairPem, pemPrivateType)
	}
	if len(rest) != 0 && len(bytesTrim(rest)) != 0 {
		return nil, fmt.Errorf("%w: trailing data after keypair", ErrBadKeypairPem)
	}

	if len(pubBlock.Bytes) != 32 || len(privBlock.Bytes) != 32 {
		return nil, fmt.Errorf("%w: keys must be 32 bytes", ErrBadKeypairPem)
	}

	kp := &crypto.KeyPair{}
	copy(kp.Public[:], pubBlock.Bytes)
	copy(kp.Private[:], privBlock.Bytes)
	return kp, nil
}

func bytesTrim(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
