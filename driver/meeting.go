package driver

import (
	"context"
	"fmt"

	"github.com/opd-ai/threshold-relay/client"
	"github.com/opd-ai/threshold-relay/wire"
)

// anonymousClient dials serverURL with no bound identity, the shape every
// meeting-point operation starts from.
func anonymousClient(ctx context.Context, serverURL string) (*client.Client, error) {
	c, err := client.New(client.Options{ServerURL: serverURL, Anonymous: true})
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateRoom reserves a meeting room with one slot per id in ids, owned by
// ids[0], and returns its MeetingId once the relay confirms creation. The
// anonymous client used to make the request is closed before returning.
func CreateRoom(ctx context.Context, serverURL string, ids []wire.UserId) (wire.MeetingId, error) {
	if len(ids) == 0 {
		return wire.MeetingId{}, fmt.Errorf("driver: CreateRoom requires at least one participant id")
	}
	c, err := anonymousClient(ctx, serverURL)
	if err != nil {
		return wire.MeetingId{}, err
	}
	defer c.Close()

	events := c.Events()
	for ev := range events {
		switch ev.Kind {
		case client.EventServerConnected:
			if err := c.NewRoom(ids[0], ids); err != nil {
				return wire.MeetingId{}, err
			}
		case client.EventMeetingRoomCreated:
			return ev.RoomCreated.MeetingId, nil
		case client.EventSessionTimeout:
			return wire.MeetingId{}, ErrSessionTimeout
		case client.EventClose:
			return wire.MeetingId{}, ErrClosed
		case client.EventError:
			return wire.MeetingId{}, ev.Err
		}
	}
	return wire.MeetingId{}, ErrClosed
}

// JoinRoom fills userID's slot in meetingID with data and blocks until
// every slot is filled, returning the full participant list. The anonymous
// client used to make the request is closed before returning.
func JoinRoom(ctx context.Context, serverURL string, meetingID wire.MeetingId, userID wire.UserId, data wire.PublicKeys) ([]wire.Participant, error) {
	c, err := anonymousClient(ctx, serverURL)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	events := c.Events()
	for ev := range events {
		switch ev.Kind {
		case client.EventServerConnected:
			if err := c.JoinRoom(meetingID, userID, data); err != nil {
				return nil, err
			}
		case client.EventMeetingRoomReady:
			return ev.RoomReady.Participants, nil
		case client.EventSessionTimeout:
			return nil, ErrSessionTimeout
		case client.EventClose:
			return nil, ErrClosed
		case client.EventError:
			return nil, ev.Err
		}
	}
	return nil, ErrClosed
}
