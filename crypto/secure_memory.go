package crypto

import (
	"crypto/subtle"
	"errors"
	"runtime"
)

// SecureWipe overwrites data in place so that long-term private keys and
// key-share material do not linger in memory once a handshake or ceremony
// completes.
//
// subtle.XORBytes XORs data with itself (x XOR x = 0) using an operation the
// compiler cannot optimize away, unlike a plain loop writing zeros.
func SecureWipe(data []byte) error {
	if data == nil {
		return errors.New("cannot wipe nil data")
	}

	subtle.XORBytes(data, data, data)
	runtime.KeepAlive(data)

	return nil
}

// ZeroBytes is SecureWipe with the error discarded, for defer sites where a
// wipe failure (nil slice) is not actionable.
func ZeroBytes(data []byte) {
	_ = SecureWipe(data)
}

// WipeKeyPair erases the private half of a KeyPair. Callers must not use kp
// after this returns.
func WipeKeyPair(kp *KeyPair) error {
	if kp == nil {
		return errors.New("cannot wipe nil KeyPair")
	}
	return SecureWipe(kp.Private[:])
}
