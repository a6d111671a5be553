// Package driver bridges a client's transport to a cryptographic
// ProtocolDriver: it buffers out-of-order round messages, drives the
// driver's round functions to completion, and hands back the transport plus
// whatever output the ceremony produced (key share, signature, aux info).
package driver

import "github.com/opd-ai/threshold-relay/wire"

// RoundInfo declares what round a ProtocolDriver is about to consume.
type RoundInfo struct {
	Round           uint16
	ExpectedSenders uint16
	IsEcho          bool
}

// Output is the terminal value a ProtocolDriver produces: a key share,
// signature, or auxiliary info, depending on the scheme. Every concrete
// output type carries a version for forward-compatible PEM persistence.
type Output interface {
	Version() uint16
}

// ProtocolDriver is the capability interface every cryptographic scheme
// (CGGMP ECDSA, FROST Ed25519/secp256k1-Taproot) implements. The scheme's
// internals are a black box to this package; the bridge only ever calls
// these four methods in the sequence described in Bridge.Run.
type ProtocolDriver interface {
	RoundInfo() RoundInfo
	Proceed() (outgoing []wire.RoundMessage, didAdvance bool, err error)
	HandleIncoming(msg wire.RoundMessage) error
	Finish() (out Output, done bool, err error)
}
