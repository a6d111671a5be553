// Package frost adapts deterministic, additive-sharing key generation and
// signing ceremonies to the driver.ProtocolDriver contract for the
// Ed25519/secp256k1-Taproot FROST schemes. Real FROST's Lagrange-interpolated
// partial signatures are out of scope here — this package exists to give
// package driver's bridge/buffer machinery a second, differently-shaped
// scheme to exercise (DKG followed by a separate signing ceremony over an
// existing share), not to produce a cryptographically sound threshold
// signature.
package frost

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/opd-ai/threshold-relay/driver"
	"github.com/opd-ai/threshold-relay/wire"
)

// Suite names the curve/hash combination a ceremony targets, carried only
// for labeling (the scalar arithmetic below is the same toy construction
// regardless of suite).
type Suite string

const (
	SuiteEd25519          Suite = "ed25519"
	SuiteSecp256k1Taproot Suite = "secp256k1-taproot"
)

// KeyShare is the terminal output of a Keygen ceremony.
type KeyShare struct {
	Suite        Suite
	PartyNumber  uint16
	Threshold    uint16
	Participants uint16
	// Share is this party's own 32-byte additive scalar share.
	Share []byte
	// GroupKey is a synthetic 32-byte verifying key derived from every
	// party's revealed share.
	GroupKey []byte
}

// Version implements driver.Output.
func (k *KeyShare) Version() uint16 { return 1 }

// Signature is the terminal output of a Sign ceremony.
type Signature struct {
	Suite     Suite
	Message   []byte
	GroupKey  []byte
	Bytes     []byte // 64 bytes, the XOR-combined partial signatures
}

// Version implements driver.Output.
func (s *Signature) Version() uint16 { return 1 }

type phase int

const (
	phaseCommit phase = iota
	phaseReveal
	phaseDone
)

func randomScalar() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Keygen drives a 2-round commit-then-reveal additive DKG, structurally
// identical to package cggmp's but over 32-byte scalars and labeled by
// Suite for FROST's two target curves.
type Keygen struct {
	suite        Suite
	partyNumber  uint16
	participants uint16
	threshold    uint16

	share      []byte
	commitment []byte
	phase      phase
	waitingRound uint16

	commitments map[uint16][]byte
	reveals     map[uint16][]byte
}

// NewKeygen seeds a fresh share for a ceremony with n participants with
// threshold t, run by partyNumber (1-based).
func NewKeygen(suite Suite, partyNumber, participants, threshold uint16) (*Keygen, error) {
	if partyNumber == 0 || partyNumber > participants {
		return nil, fmt.Errorf("frost: party number %d out of range for %d participants", partyNumber, participants)
	}
	share, err := randomScalar()
	if err != nil {
		return nil, fmt.Errorf("frost: generate share: %w", err)
	}
	h := sha256.Sum256(share)
	return &Keygen{
		suite:        suite,
		partyNumber:  partyNumber,
		participants: participants,
		threshold:    threshold,
		share:        share,
		commitment:   h[:],
		phase:        phaseCommit,
		commitments:  make(map[uint16][]byte),
		reveals:      make(map[uint16][]byte),
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
		return []wire.RoundMessage{{Round: 2, Sender: k.partyNumber, Receiver: wire.Broadcast, Body: k.share}}, true, nil
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
		h := sha256.Sum256(msg.Body)
		known, ok := k.commitments[msg.Sender]
		if !ok || !bytes.Equal(known, h[:]) {
			return fmt.Errorf("frost: party %d revealed a share not matching its round-1 commitment", msg.Sender)
		}
		k.reveals[msg.Sender] = msg.Body
	default:
		return fmt.Errorf("frost: unexpected round %d", msg.Round)
	}
	return nil
}

// Finish implements driver.ProtocolDriver.
func (k *Keygen) Finish() (driver.Output, bool, error) {
	if k.phase != phaseDone || len(k.reveals) != int(k.participants) {
		return nil, false, nil
	}
	groupKey := make([]byte, 32)
	for _, s := range k.reveals {
		for i, b := range s {
			groupKey[i] ^= b
		}
	}
	return &KeyShare{
		Suite:        k.suite,
		PartyNumber:  k.partyNumber,
		Threshold:    k.threshold,
		Participants: k.participants,
		Share:        k.share,
		GroupKey:     groupKey,
	}, true, nil
}

var _ driver.ProtocolDriver = (*Keygen)(nil)

// Sign drives a 1-round partial-signature ceremony over an existing
// KeyShare. Every signer broadcasts a deterministic partial signature
// derived from its share and the message; Finish XORs them into the final
// Signature. This combination rule is a stand-in for FROST's Lagrange
// interpolation — it lets two KeyShare holders produce a consistent,
// reproducible Signature for testing, not a curve-verifiable one.
type Sign struct {
	suite       Suite
	partyNumber uint16
	signers     uint16
	message     []byte
	groupKey    []byte
	share       []byte

	partial map[uint16][]byte
	done    bool
}

// NewSign starts a signing ceremony over message using share, among signers
// total participating signers.
func NewSign(suite Suite, partyNumber, signers uint16, message, groupKey, share []byte) *Sign {
	return &Sign{
		suite:       suite,
		partyNumber: partyNumber,
		signers:     signers,
		message:     message,
		groupKey:    groupKey,
		share:       share,
		partial:     make(map[uint16][]byte),
	}
}

func (s *Sign) ownPartial() []byte {
	h := sha256.New()
	h.Write(s.share)
	h.Write(s.message)
	first := h.Sum(nil)
	h2 := sha256.New()
	h2.Write(first)
	h2.Write(s.groupKey)
	second := h2.Sum(nil)
	return append(first, second...)
}

// RoundInfo implements driver.ProtocolDriver. Sign has a single round: once
// Proceed has emitted it, the driver is waiting on round-1 partials from
// every other signer.
func (s *Sign) RoundInfo() driver.RoundInfo {
	return driver.RoundInfo{Round: 1, ExpectedSenders: s.signers - 1}
}

// Proceed implements driver.ProtocolDriver.
func (s *Sign) Proceed() ([]wire.RoundMessage, bool, error) {
	if s.done {
		return nil, false, nil
	}
	partial := s.ownPartial()
	s.partial[s.partyNumber] = partial
	s.done = true
	return []wire.RoundMessage{{Round: 1, Sender: s.partyNumber, Receiver: wire.Broadcast, Body: partial}}, true, nil
}

// HandleIncoming implements driver.ProtocolDriver.
func (s *Sign) HandleIncoming(msg wire.RoundMessage) error {
	if msg.Round != 1 {
		return fmt.Errorf("frost: unexpected round %d", msg.Round)
	}
	s.partial[msg.Sender] = msg.Body
	return nil
}

// Finish implements driver.ProtocolDriver.
func (s *Sign) Finish() (driver.Output, bool, error) {
	if !s.done || len(s.partial) != int(s.signers) {
		return nil, false, nil
	}
	sig := make([]byte, 64)
	for _, p := range s.partial {
		for i, b := range p {
			sig[i] ^= b
		}
	}
	return &Signature{Suite: s.suite, Message: s.message, GroupKey: s.groupKey, Bytes: sig}, true, nil
}

var _ driver.ProtocolDriver = (*Sign)(nil)
