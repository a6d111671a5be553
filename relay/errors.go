package relay

import (
	"errors"

	"github.com/opd-ai/threshold-relay/wire"
)

var (
	// ErrUnknownSession indicates a RequestMessage named a session_id the
	// registry has never seen (or has already reaped).
	ErrUnknownSession = errors.New("relay: unknown session")
	// ErrNotParticipant indicates the caller is not listed among a
	// session's participants.
	ErrNotParticipant = errors.New("relay: caller is not a session participant")
	// ErrUnknownRoom indicates a meeting request named a meeting_id the
	// manager has never seen.
	ErrUnknownRoom = errors.New("relay: unknown meeting room")
	// ErrSlotTaken indicates JoinRoom targeted a slot already filled.
	ErrSlotTaken = errors.New("relay: meeting slot already filled")
	// ErrNotOwner indicates CloseSession was issued by a non-owner.
	ErrNotOwner = errors.New("relay: caller is not the session owner")
	// ErrUnknownPeer indicates routing could not find a connection for the
	// destination public key.
	ErrUnknownPeer = errors.New("relay: destination peer not connected")
)

// toWireError maps a relay error to the TransparentMessage::Error reported
// back to the offending client. Unrecognised errors (including ErrNotOwner
// and ErrUnknownPeer) fall back to the generic malformed-frame code. In
// every case the reply's message is the error's own text.
func toWireError(err error) wire.Error {
	switch {
	case errors.Is(err, ErrUnknownSession):
		return wire.Error{Code: wire.ErrCodeUnknownSession, Message: err.Error()}
	case errors.Is(err, ErrNotParticipant):
		return wire.Error{Code: wire.ErrCodeNotParticipant, Message: err.Error()}
	case errors.Is(err, ErrUnknownRoom):
		return wire.Error{Code: wire.ErrCodeUnknownRoom, Message: err.Error()}
	case errors.Is(err, ErrSlotTaken):
		return wire.Error{Code: wire.ErrCodeSlotTaken, Message: err.Error()}
	default:
		return wire.Error{Code: wire.ErrCodeMalformedFrame, Message: err.Error()}
	}
}
