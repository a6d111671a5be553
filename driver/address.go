package driver

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Address derives a recoverable-ECDSA-style hex address from an uncompressed
// secp256k1 public key (0x04 || X || Y, 65 bytes), the Keccak256 hash of the
// 64 coordinate bytes, last 20 bytes, matching the convention CGGMP driver
// consumers expect.
func Address(uncompressedPubKey []byte) (string, error) {
	if len(uncompressedPubKey) != 65 || uncompressedPubKey[0] != 0x04 {
		return "", fmt.Errorf("driver: address requires a 65-byte uncompressed public key")
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(uncompressedPubKey[1:])
	digest := h.Sum(nil)
	return "0x" + hex.EncodeToString(digest[len(digest)-20:]), nil
}
