package driver

import (
	"sync"

	"github.com/opd-ai/threshold-relay/wire"
)

// RoundBuffer accumulates out-of-order round messages and reports when a
// round has collected every expected sender's contribution. It is
// order-agnostic within a round: messages may arrive in any sequence from
// different senders.
type RoundBuffer struct {
	mu       sync.Mutex
	expected map[uint16]uint16
	received map[uint16][]wire.RoundMessage
}

// NewRoundBuffer returns an empty buffer.
func NewRoundBuffer() *RoundBuffer {
	return &RoundBuffer{
		expected: make(map[uint16]uint16),
		received: make(map[uint16][]wire.RoundMessage),
	}
}

// SetExpected records how many peer messages round r requires, taken from
// the driver's RoundInfo.
func (b *RoundBuffer) SetExpected(round, count uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expected[round] = count
}

// Add records one message for its round.
func (b *RoundBuffer) Add(msg wire.RoundMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.received[msg.Round] = append(b.received[msg.Round], msg)
}

// Ready reports whether round r has collected exactly its expected count.
// A round with no expected count recorded (never set, or already taken) is
// not ready.
func (b *RoundBuffer) Ready(round uint16) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	expected, ok := b.expected[round]
	if !ok {
		return false
	}
	return len(b.received[round]) == int(expected)
}

// Take removes and returns round r's messages. Callers must only call this
// after Ready(r) reports true.
func (b *RoundBuffer) Take(round uint16) []wire.RoundMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.received[round]
	delete(b.received, round)
	delete(b.expected, round)
	return msgs
}
