// Package crypto provides the long-term Curve25519 identity keypair used to
// authenticate Noise channels, independent of the Noise library's own
// ephemeral key handling.
package crypto

import (
	"crypto/rand"
	"errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// KeyPair is a Curve25519 static identity keypair. Public is the value
// carried in PublicKeys.public_key; Private never leaves the process that
// generated it.
type KeyPair struct {
	Public  [32]byte
	Private [32]byte
}

// GenerateKeyPair creates a new random Curve25519 keypair.
func GenerateKeyPair() (*KeyPair, error) {
	publicKey, privateKey, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	return &KeyPair{
		Public:  *publicKey,
		Private: *privateKey,
	}, nil
}

// FromSecretKey derives the public half of a keypair from an existing
// private key, clamping it per the Curve25519 convention before deriving.
func FromSecretKey(secretKey [32]byte) (*KeyPair, error) {
	if isZeroKey(secretKey) {
		return nil, errors.New("invalid secret key: all zeros")
	}

	var privateKey [32]byte
	copy(privateKey[:], secretKey[:])

	privateKey[0] &= 248
	privateKey[31] &= 127
	privateKey[31] |= 64

	var publicKey [32]byte
	curve25519.ScalarBaseMult(&publicKey, &privateKey)

	keyPair := &KeyPair{
		Public:  publicKey,
		Private: secretKey,
	}

	ZeroBytes(privateKey[:])

	logrus.WithField("public_key", publicKey[:8]).Debug("derived keypair from secret key")

	return keyPair, nil
}

func isZeroKey(key [32]byte) bool {
	for _, b := range key {
		if b != 0 {
			return false
		}
	}
	return true
}
