package driver

import (
	"testing"

	"github.com/opd-ai/threshold-relay/wire"
	"github.com/stretchr/testify/require"
)

func TestRoundBufferReadyOnlyAfterExpectedCount(t *testing.T) {
	b := NewRoundBuffer()
	b.SetExpected(1, 2)
	require.False(t, b.Ready(1))

	b.Add(wire.RoundMessage{Round: 1, Sender: 2, Body: []byte("a")})
	require.False(t, b.Ready(1))

	b.Add(wire.RoundMessage{Round: 1, Sender: 3, Body: []byte("b")})
	require.True(t, b.Ready(1))
}

func TestRoundBufferOrderAgnosticWithinRound(t *testing.T) {
	b := NewRoundBuffer()
	b.SetExpected(1, 2)
	b.Add(wire.RoundMessage{Round: 1, Sender: 3})
	b.Add(wire.RoundMessage{Round: 1, Sender: 2})
	require.True(t, b.Ready(1))
	msgs := b.Take(1)
	require.Len(t, msgs, 2)
}

func TestRoundBufferAcceptsRoundsAheadOfCurrent(t *testing.T) {
	b := NewRoundBuffer()
	b.SetExpected(1, 1)
	b.SetExpected(2, 1)

	// A round-2 message may legitimately arrive before round 1 completes —
	// the buffer holds it. Readiness is tracked per round, so round 2 already
	// reports ready; the bridge only takes it once round 1 has drained.
	b.Add(wire.RoundMessage{Round: 2, Sender: 2})
	require.True(t, b.Ready(2))
	require.False(t, b.Ready(1))

	b.Add(wire.RoundMessage{Round: 1, Sender: 2})
	require.True(t, b.Ready(1))
	require.True(t, b.Ready(2))
}

func TestRoundBufferTakeClearsState(t *testing.T) {
	b := NewRoundBuffer()
	b.SetExpected(1, 1)
	b.Add(wire.RoundMessage{Round: 1, Sender: 2})
	require.True(t, b.Ready(1))
	b.Take(1)
	require.False(t, b.Ready(1))
}
