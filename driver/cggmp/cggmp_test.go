package cggmp

import (
	"testing"

	"github.com/opd-ai/threshold-relay/wire"
	"github.com/stretchr/testify/require"
)

func runKeygenPair(t *testing.T) (*Keygen, *Keygen) {
	t.Helper()
	k1, err := NewKeygen(1, 2, 2)
	require.NoError(t, err)
	k2, err := NewKeygen(2, 2, 2)
	require.NoError(t, err)
	return k1, k2
}

func TestNewKeygenRejectsInvalidPartyNumber(t *testing.T) {
	_, err := NewKeygen(0, 2, 2)
	require.Error(t, err)
	_, err = NewKeygen(3, 2, 2)
	require.Error(t, err)
}

func TestKeygenTwoPartyCeremonyProducesMatchingGroupKey(t *testing.T) {
	k1, k2 := runKeygenPair(t)

	msg1, _, err := k1.Proceed() // round 1 commitment
	require.NoError(t, err)
	msg2, _, err := k2.Proceed()
	require.NoError(t, err)

	require.NoError(t, k1.HandleIncoming(msg2[0]))
	require.NoError(t, k2.HandleIncoming(msg1[0]))

	reveal1, _, err := k1.Proceed() // round 2 reveal
	require.NoError(t, err)
	reveal2, _, err := k2.Proceed()
	require.NoError(t, err)

	require.NoError(t, k1.HandleIncoming(reveal2[0]))
	require.NoError(t, k2.HandleIncoming(reveal1[0]))

	final1, _, err := k1.Proceed()
	require.NoError(t, err)
	require.Empty(t, final1)
	final2, _, err := k2.Proceed()
	require.NoError(t, err)
	require.Empty(t, final2)

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
	require.Equal(t, uint16(1), share1.Version())
}

func TestKeygenRejectsRevealNotMatchingCommitment(t *testing.T) {
	k1, k2 := runKeygenPair(t)
	_, _, err := k1.Proceed()
	require.NoError(t, err)
	_, _, err = k2.Proceed()
	require.NoError(t, err)

	forged := k2.commitment // record party 2's real commitment, then lie about its share
	require.NoError(t, k1.HandleIncoming(wire.RoundMessage{Round: 1, Sender: 2, Body: forged}))

	_, _, err = k1.Proceed()
	require.NoError(t, err)

	err = k1.HandleIncoming(wire.RoundMessage{Round: 2, Sender: 2, Body: []byte("not the committed share")})
	require.Error(t, err)
}
