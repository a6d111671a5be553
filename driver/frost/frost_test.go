package frost

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func runDKGPair(t *testing.T) (*Keygen, *Keygen) {
	t.Helper()
	k1, err := NewKeygen(SuiteEd25519, 1, 2, 2)
	require.NoError(t, err)
	k2, err := NewKeygen(SuiteEd25519, 2, 2, 2)
	require.NoError(t, err)
	return k1, k2
}

func TestFrostKeygenProducesMatchingGroupKey(t *testing.T) {
	k1, k2 := runDKGPair(t)

	c1, _, err := k1.Proceed()
	require.NoError(t, err)
	c2, _, err := k2.Proceed()
	require.NoError(t, err)
	require.NoError(t, k1.HandleIncoming(c2[0]))
	require.NoError(t, k2.HandleIncoming(c1[0]))

	r1, _, err := k1.Proceed()
	require.NoError(t, err)
	r2, _, err := k2.Proceed()
	require.NoError(t, err)
	require.NoError(t, k1.HandleIncoming(r2[0]))
	require.NoError(t, k2.HandleIncoming(r1[0]))

	out1, done1, err := k1.Finish()
	require.NoError(t, err)
	require.True(t, done1)
	out2, done2, err := k2.Finish()
	require.NoError(t, err)
	require.True(t, done2)

	share1 := out1.(*KeyShare)
	share2 := out2.(*KeyShare)
	require.Equal(t, share1.GroupKey, share2.GroupKey)
	require.NotEqual(t, share1.Share, share2.Share)
}

func TestFrostSignTwoOfTwoProducesMatchingSignature(t *testing.T) {
	k1, k2 := runDKGPair(t)
	c1, _, _ := k1.Proceed()
	c2, _, _ := k2.Proceed()
	_ = k1.HandleIncoming(c2[0])
	_ = k2.HandleIncoming(c1[0])
	r1, _, _ := k1.Proceed()
	r2, _, _ := k2.Proceed()
	_ = k1.HandleIncoming(r2[0])
	_ = k2.HandleIncoming(r1[0])
	out1, _, _ := k1.Finish()
	out2, _, _ := k2.Finish()
	share1 := out1.(*KeyShare)
	share2 := out2.(*KeyShare)

	message := []byte("approve withdrawal of 3 BTC")
	s1 := NewSign(SuiteEd25519, 1, 2, message, share1.GroupKey, share1.Share)
	s2 := NewSign(SuiteEd25519, 2, 2, message, share2.GroupKey, share2.Share)

	p1, _, err := s1.Proceed()
	require.NoError(t, err)
	p2, _, err := s2.Proceed()
	require.NoError(t, err)
	require.NoError(t, s1.HandleIncoming(p2[0]))
	require.NoError(t, s2.HandleIncoming(p1[0]))

	out3, done1, err := s1.Finish()
	require.NoError(t, err)
	require.True(t, done1)
	out4, done2, err := s2.Finish()
	require.NoError(t, err)
	require.True(t, done2)

	sig1 := out3.(*Signature)
	sig2 := out4.(*Signature)
	require.Equal(t, sig1.Bytes, sig2.Bytes)
	require.Len(t, sig1.Bytes, 64)
}
