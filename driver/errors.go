package driver

import "errors"

var (
	// ErrSessionTimeout mirrors a peer's SessionTimeout event surfacing
	// through a ceremony in progress.
	ErrSessionTimeout = errors.New("driver: session timed out")
	// ErrClosed indicates the relay connection dropped mid-ceremony. There
	// is no persisted state to resume from.
	ErrClosed = errors.New("driver: connection closed mid-ceremony")
	// ErrRoundTooFarAhead indicates a peer sent a round message for a round
	// more than one ahead of current_round, a protocol violation.
	ErrRoundTooFarAhead = errors.New("driver: round message too far ahead of current round")
	// ErrUnknownParty indicates a round message addressed a party number
	// outside the session's participant list.
	ErrUnknownParty = errors.New("driver: unknown party number")
)
