package noise

import (
	"testing"

	"github.com/opd-ai/threshold-relay/crypto"
	"github.com/stretchr/testify/require"
)

func TestHandshakeCompletesAndEncrypts(t *testing.T) {
	initiator, err := New(Initiator)
	require.NoError(t, err)
	responder, err := New(Responder)
	require.NoError(t, err)

	msg1, complete, err := initiator.WriteMessage(nil)
	require.NoError(t, err)
	require.False(t, complete)

	_, complete, err = responder.ReadMessage(msg1)
	require.NoError(t, err)
	require.False(t, complete)

	msg2, complete, err := responder.WriteMessage(nil)
	require.NoError(t, err)
	require.True(t, complete)

	_, complete, err = initiator.ReadMessage(msg2)
	require.NoError(t, err)
	require.True(t, complete)

	initiatorTransport, err := initiator.Transport()
	require.NoError(t, err)
	responderTransport, err := responder.Transport()
	require.NoError(t, err)

	plaintext := []byte("round 1 message")
	ciphertext, err := initiatorTransport.Encrypt(plaintext)
	require.NoError(t, err)
	require.Len(t, ciphertext, len(plaintext)+TagSize)

	decrypted, err := responderTransport.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestHandshakeRejectsOperationsAfterCompletion(t *testing.T) {
	initiator, err := New(Initiator)
	require.NoError(t, err)
	responder, err := New(Responder)
	require.NoError(t, err)

	msg1, _, err := initiator.WriteMessage(nil)
	require.NoError(t, err)
	_, _, err = responder.ReadMessage(msg1)
	require.NoError(t, err)
	msg2, _, err := responder.WriteMessage(nil)
	require.NoError(t, err)
	_, _, err = initiator.ReadMessage(msg2)
	require.NoError(t, err)

	_, _, err = initiator.WriteMessage(nil)
	require.ErrorIs(t, err, ErrHandshakeComplete)
}

func TestTransportRejectsEncryptBeforeHandshake(t *testing.T) {
	var tr *Transport
	_, err := tr.Encrypt([]byte("x"))
	require.ErrorIs(t, err, ErrNotTransportState)
}

func TestValidatePatternAcceptsEmptyAndDefault(t *testing.T) {
	require.NoError(t, ValidatePattern(""))
	require.NoError(t, ValidatePattern(DefaultPattern))
}

func TestValidatePatternRejectsUnknownPattern(t *testing.T) {
	err := ValidatePattern("Noise_XX_25519_ChaChaPoly_BLAKE2s")
	require.ErrorIs(t, err, ErrUnsupportedPattern)
}

func TestKeypairPEMRoundTrip(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	encoded := EncodeKeypairPEM(kp)
	decoded, err := DecodeKeypairPEM(encoded)
	require.NoError(t, err)

	require.Equal(t, kp.Public, decoded.Public)
	require.Equal(t, kp.Private, decoded.Private)
}

func TestKeypairPEMRejectsWrongOrder(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	encoded := EncodeKeypairPEM(kp)
	// swap the two PEM blocks to violate the required public-then-private order
	half := len(encoded) / 2
	// locate actual block boundary instead of assuming exact half split
	firstEnd := indexAfterBlock(encoded)
	swapped := append(append([]byte{}, encoded[firstEnd:]...), encoded[:firstEnd]...)
	_ = half

	_, err = DecodeKeypairPEM(swapped)
	require.ErrorIs(t, err, ErrBadKeypairPem)
}

func indexAfterBlock(pemBytes []byte) int {
	marker := []byte("-----END NOISE PUBLIC KEY-----\n")
	for i := 0; i+len(marker) <= len(pemBytes); i++ {
		match := true
		for j := range marker {
			if pemBytes[i+j] != marker[j] {
				match = false
				break
			}
		}
		if match {
			return i + len(marker)
		}
	}
	return len(pemBytes)
}
