package driver

import "github.com/opd-ai/threshold-relay/client"

// WaitForSessionActive blocks until sessionID reaches Active, times out, or
// the transport closes. It discards every other event in between, so it is
// only safe to call before a Bridge takes over the event channel.
func WaitForSessionActive(events <-chan client.Event, sessionID SessionState) error {
	for ev := range events {
		switch ev.Kind {
		case client.EventSessionActive:
			if ev.SessionID != nil && *ev.SessionID == sessionID.SessionID {
				return nil
			}
		case client.EventSessionTimeout:
			if ev.SessionID != nil && *ev.SessionID == sessionID.SessionID {
				return ErrSessionTimeout
			}
		case client.EventClose:
			return ErrClosed
		}
	}
	return ErrClosed
}

// WaitForCompletion drains events until the session owning sessionID closes
// or times out, ignoring everything else. Useful for a participant who has
// no further round traffic to send but still needs to know when the
// ceremony concludes.
func WaitForCompletion(events <-chan client.Event, sessionID SessionState) error {
	for ev := range events {
		switch ev.Kind {
		case client.EventSessionClosed:
			if ev.SessionID != nil && *ev.SessionID == sessionID.SessionID {
				return nil
			}
		case client.EventSessionTimeout:
			if ev.SessionID != nil && *ev.SessionID == sessionID.SessionID {
				return ErrSessionTimeout
			}
		case client.EventClose:
			return ErrClosed
		}
	}
	return ErrClosed
}

// WaitForClose blocks until the transport's event channel closes (the
// client's read loop terminated and emitted its final Close event, or a
// caller-driven Close drained it).
func WaitForClose(events <-chan client.Event) {
	for ev := range events {
		if ev.Kind == client.EventClose {
			return
		}
	}
}
