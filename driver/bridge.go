package driver

import (
	"fmt"

	"github.com/opd-ai/threshold-relay/client"
	"github.com/opd-ai/threshold-relay/wire"
	"github.com/sirupsen/logrus"
)

// Bridge drives a ProtocolDriver to completion over a client transport
// inside one session: it dispatches outgoing round messages, buffers
// inbound ones until a round is ready, and feeds the buffer back to the
// driver round by round.
type Bridge struct {
	transport    client.NetworkTransport
	driver       ProtocolDriver
	sessionID    wire.SessionId
	partyNumber  uint16
	participants [][]byte // static keys, index i holds party number i+1's key
	owner        bool

	buffer       *RoundBuffer
	currentRound uint16
}

// NewBridge builds a Bridge ready to Run once the session reaches active.
// participants is ordered by party number (1-based); partyNumber identifies
// this party's own index into it.
func NewBridge(transport client.NetworkTransport, d ProtocolDriver, sessionID wire.SessionId, partyNumber uint16, participants [][]byte, owner bool) *Bridge {
	return &Bridge{
		transport:    transport,
		driver:       d,
		sessionID:    sessionID,
		partyNumber:  partyNumber,
		participants: participants,
		owner:        owner,
		buffer:       NewRoundBuffer(),
		currentRound: 1,
	}
}

// NewBridgeFromSession is NewBridge for the common case of driving straight
// off a SessionInitiator/SessionParticipant result.
func NewBridgeFromSession(transport client.NetworkTransport, d ProtocolDriver, session SessionState, selfKey []byte, owner bool) *Bridge {
	return NewBridge(transport, d, session.SessionID, session.PartyNumber(selfKey), session.Participants, owner)
}

func (b *Bridge) peerKey(partyNumber uint16) ([]byte, error) {
	if partyNumber == 0 || int(partyNumber) > len(b.participants) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownParty, partyNumber)
	}
	return b.participants[partyNumber-1], nil
}

func (b *Bridge) dispatch(outgoing []wire.RoundMessage) error {
	for _, msg := range outgoing {
		body := wire.NewWriter()
		msg.Encode(body)
		if msg.IsBroadcast() {
			recipients := make([][]byte, 0, len(b.participants)-1)
			for i, key := range b.participants {
				if uint16(i+1) == b.partyNumber {
					continue
				}
				recipients = append(recipients, key)
			}
			if err := b.transport.BroadcastBlob(b.sessionID, recipients, body.Bytes()); err != nil {
				return fmt.Errorf("driver: broadcast round %d: %w", msg.Round, err)
			}
			continue
		}
		dest, err := b.peerKey(msg.Receiver)
		if err != nil {
			return err
		}
		if err := b.transport.SendBlob(dest, b.sessionID, body.Bytes()); err != nil {
			return fmt.Errorf("driver: send round %d to party %d: %w", msg.Round, msg.Receiver, err)
		}
	}
	return nil
}

// advance calls Proceed/Finish, dispatches any outgoing messages, and
// reports whether the driver is done.
func (b *Bridge) advance() (Output, bool, error) {
	outgoing, _, err := b.driver.Proceed()
	if err != nil {
		return nil, false, fmt.Errorf("driver: proceed: %w", err)
	}
	if err := b.dispatch(outgoing); err != nil {
		return nil, false, err
	}
	info := b.driver.RoundInfo()
	b.buffer.SetExpected(info.Round, info.ExpectedSenders)
	b.currentRound = info.Round

	if len(outgoing) == 0 {
		out, done, err := b.driver.Finish()
		if err != nil {
			return nil, false, fmt.Errorf("driver: finish: %w", err)
		}
		if done {
			return out, true, nil
		}
	}
	return nil, false, nil
}

func (b *Bridge) onBinaryMessage(payload []byte) error {
	msg, err := wire.DecodeRoundMessage(wire.NewReader(payload))
	if err != nil {
		return fmt.Errorf("driver: decode round message: %w", err)
	}
	if msg.Round < b.currentRound {
		logrus.WithFields(logrus.Fields{"round": msg.Round, "current_round": b.currentRound}).Warn("driver: discarding stale round message")
		return nil
	}
	if msg.Round > b.currentRound+1 {
		return fmt.Errorf("%w: round %d, current %d", ErrRoundTooFarAhead, msg.Round, b.currentRound)
	}
	b.buffer.Add(msg)
	return nil
}

// drainReady feeds every ready round's buffered messages to the driver and
// advances, repeating until either the driver completes or the next round
// is not yet ready.
func (b *Bridge) drainReady() (Output, bool, error) {
	for b.buffer.Ready(b.currentRound) {
		for _, msg := range b.buffer.Take(b.currentRound) {
			if err := b.driver.HandleIncoming(msg); err != nil {
				return nil, false, fmt.Errorf("driver: handle incoming round %d: %w", msg.Round, err)
			}
		}
		out, done, err := b.advance()
		if err != nil {
			return nil, false, err
		}
		if done {
			return out, true, nil
		}
	}
	return nil, false, nil
}

// Run consumes events until the ceremony completes, errors, or the session
// ends. It bootstraps round 1 on SessionActive (matching b.sessionID), then
// buffers and drains every subsequent BinaryMessage. On success it returns
// the driver's Output and the transport, freed for reuse by the caller.
func (b *Bridge) Run(events <-chan client.Event) (client.NetworkTransport, Output, error) {
	for ev := range events {
		switch ev.Kind {
		case client.EventSessionActive:
			if ev.SessionID == nil || *ev.SessionID != b.sessionID {
				continue
			}
			out, done, err := b.advance()
			if err != nil {
				return b.transport, nil, b.fail(err)
			}
			if done {
				return b.transport, out, nil
			}

		case client.EventBinaryMessage:
			if ev.SessionID == nil || *ev.SessionID != b.sessionID {
				continue
			}
			if err := b.onBinaryMessage(ev.BinaryPayload); err != nil {
				return b.transport, nil, b.fail(err)
			}
			out, done, err := b.drainReady()
			if err != nil {
				return b.transport, nil, b.fail(err)
			}
			if done {
				return b.transport, out, nil
			}

		case client.EventSessionTimeout:
			if ev.SessionID != nil && *ev.SessionID == b.sessionID {
				return b.transport, nil, b.fail(ErrSessionTimeout)
			}

		case client.EventClose:
			return b.transport, nil, b.fail(ErrClosed)

		case client.EventError:
			logrus.WithError(ev.Err).Warn("driver: transport reported an error mid-ceremony")
		}
	}
	return b.transport, nil, b.fail(ErrClosed)
}

// fail closes the session (if this party owns it) on any terminal error,
// per the bridge's all-or-nothing failure semantics.
func (b *Bridge) fail(err error) error {
	if b.owner {
		if closeErr := b.transport.CloseSession(b.sessionID); closeErr != nil {
			logrus.WithError(closeErr).Warn("driver: failed to close session after ceremony error")
		}
	}
	return err
}
