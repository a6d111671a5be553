// Package cggmp adapts a deterministic, additive-sharing key generation
// ceremony to the driver.ProtocolDriver contract. CGGMP's real lattice- and
// Paillier-based ECDSA ceremony is out of scope here — this package exists
// to give package driver's bridge/buffer machinery a concrete, end-to-end
// exercisable scheme, not to produce cryptographically sound threshold
// ECDSA key shares.
package cggmp

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/opd-ai/threshold-relay/driver"
	"github.com/opd-ai/threshold-relay/wire"
)

// groupOrder stands in for the secp256k1 group order; scalar arithmetic
// here is plain modular arithmetic over this modulus, not curve arithmetic.
var groupOrder = func() *big.Int {
	n, ok := new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)
	if !ok {
		panic("cggmp: invalid group order constant")
	}
	return n
}()

// KeyShare is the terminal output of a Keygen ceremony.
type KeyShare struct {
	PartyNumber  uint16
	Threshold    uint16
	Participants uint16
	// Share is this party's own additive scalar share of the group secret.
	// It must never be logged or persisted in cleartext.
	Share *big.Int
	// GroupKey is a synthetic 65-byte uncompressed-point encoding (0x04
	// prefix) derived from every party's revealed commitment, suitable as
	// input to driver.Address but not a real secp256k1 public key.
	GroupKey []byte
}

// Version implements driver.Output.
func (k *KeyShare) Version() uint16 { return 1 }

type phase int

const (
	phaseCommit phase = iota
	phaseReveal
	phaseDone
)

// Keygen drives a 2-round commit-then-reveal additive DKG among
// participants, where partyNumber is this party's 1-based index.
type Keygen struct {
	partyNumber  uint16
	participants uint16
	threshold    uint16

	share       *big.Int
	commitment  []byte
	phase       phase
	waitingRound uint16
	commitments map[uint16][]byte
	reveals     map[uint16]*big.Int
}

// NewKeygen seeds a fresh share for a ceremony with n participants with
// threshold t, run by partyNumber (1-based).
func NewKeygen(partyNumber, participants, threshold uint16) (*Keygen, error) {
	if partyNumber == 0 || partyNumber > participants {
		return nil, fmt.Errorf("cggmp: party number %d out of range for %d participants", partyNumber, participants)
	}
	share, err := rand.Int(rand.Reader, groupOrder)
	if err != nil {
		return nil, fmt.Errorf("cggmp: generate share: %w", err)
	}
	h := sha256.Sum256(share.Bytes())
	return &Keygen{
		partyNumber:  partyNumber,
		participants: participants,
		threshold:    threshold,
		share:        share,
		commitment:   h[:],
		phase:        phaseCommit,
		commitments:  make(map[uint16][]byte),
		reveals:      make(map[uint16]*big.Int),
	}, nil
}

// RoundInfo implements driver.ProtocolDriver. It reports the round the
// driver is currently waiting to receive, which is the round number just
// emitted by Proceed (not the round phase will produce next).
func (k *Keygen) RoundInfo() driver.RoundInfo {
	return driver.RoundInfo{Round: k.waitingRound, ExpectedSenders: k.participants - 1}
}

// Proceed implements driver.ProtocolDriver.
func (k *Keygen) Proceed() ([]wire.RoundMessage, bool, error) {
	switch k.phase {
	case phaseCommit:
		k.commitments[k.partyNumber] = k.commitment
		k.phase = phaseReveal
		k.waitingRound = 1
		return []wire.RoundMessage{{Round: 1, Sender: k.partyNumber, Receiver: wire.Broadcast, Body: k.commitment}}, true, nil

	case phaseReveal:
		k.reveals[k.partyNumber] = k.share
		k.phase = phaseDone
		k.waitingRound = 2
		return []wire.RoundMessage{{Round: 2, Sender: k.partyNumber, Receiver: wire.Broadcast, Body: k.share.Bytes()}}, true, nil

	default:
		return nil, false, nil
	}
}

// HandleIncoming implements driver.ProtocolDriver.
func (k *Keygen) HandleIncoming(msg wire.RoundMessage) error {
	switch msg.Round {
	case 1:
		k.commitments[msg.Sender] = msg.Body
	case 2:
		share := new(big.Int).SetBytes(msg.Body)
		h := sha256.Sum256(share.Bytes())
		known, ok := k.commitments[msg.Sender]
		if !ok || !bytes.Equal(known, h[:]) {
			return fmt.Errorf("cggmp: party %d revealed a share not matching its round-1 commitment", msg.Sender)
		}
		k.reveals[msg.Sender] = share
	default:
		return fmt.Errorf("cggmp: unexpected round %d", msg.Round)
	}
	return nil
}

// Finish implements driver.ProtocolDriver.
func (k *Keygen) Finish() (driver.Output, bool, error) {
	if k.phase != phaseDone || len(k.reveals) != int(k.participants) {
		return nil, false, nil
	}
	sum := new(big.Int)
	for _, s := range k.reveals {
		sum.Add(sum, s)
		sum.Mod(sum, groupOrder)
	}
	groupKey := make([]byte, 65)
	groupKey[0] = 0x04
	digest := sha256.Sum256(sum.Bytes())
	copy(groupKey[1:33], digest[:])
	digest2 := sha256.Sum256(digest[:])
	copy(groupKey[33:], digest2[:])
	return &KeyShare{
		PartyNumber:  k.partyNumber,
		Threshold:    k.threshold,
		Participants: k.participants,
		Share:        k.share,
		GroupKey:     groupKey,
	}, true, nil
}

var _ driver.ProtocolDriver = (*Keygen)(nil)
