package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateKeyPairProducesDistinctKeys(t *testing.T) {
	kp1, err := GenerateKeyPair()
	require.NoError(t, err)
	kp2, err := GenerateKeyPair()
	require.NoError(t, err)

	require.NotEqual(t, kp1.Public, kp2.Public)
	require.NotEqual(t, kp1.Private, kp2.Private)
}

func TestFromSecretKeyIsDeterministic(t *testing.T) {
	generated, err := GenerateKeyPair()
	require.NoError(t, err)

	derived, err := FromSecretKey(generated.Private)
	require.NoError(t, err)

	require.Equal(t, generated.Public, derived.Public)
}

func TestFromSecretKeyRejectsZeroKey(t *testing.T) {
	var zero [32]byte
	_, err := FromSecretKey(zero)
	require.Error(t, err)
}

func TestSecureWipeZeroesBuffer(t *testing.T) {
	data := []byte("sensitive key material")
	require.NoError(t, SecureWipe(data))
	for _, b := range data {
		require.Zero(t, b)
	}
}

func TestSecureWipeRejectsNil(t *testing.T) {
	require.Error(t, SecureWipe(nil))
}

func TestWipeKeyPairClearsPrivateHalf(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	require.NoError(t, WipeKeyPair(kp))
	var zero [32]byte
	require.Equal(t, zero, kp.Private)
}

func TestWipeKeyPairRejectsNil(t *testing.T) {
	require.Error(t, WipeKeyPair(nil))
}
