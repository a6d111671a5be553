package driver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRequires65ByteUncompressedKey(t *testing.T) {
	_, err := Address(make([]byte, 33))
	require.Error(t, err)

	key := make([]byte, 65)
	key[0] = 0x02
	_, err = Address(key)
	require.Error(t, err)
}

func TestAddressIsDeterministicAndHexPrefixed(t *testing.T) {
	key := make([]byte, 65)
	key[0] = 0x04
	for i := 1; i < 65; i++ {
		key[i] = byte(i)
	}
	addr1, err := Address(key)
	require.NoError(t, err)
	addr2, err := Address(key)
	require.NoError(t, err)

	require.Equal(t, addr1, addr2)
	require.Len(t, addr1, 42) // "0x" + 40 hex chars (20 bytes)
	require.Equal(t, "0x", addr1[:2])
}
