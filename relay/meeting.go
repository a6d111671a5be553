package relay

import (
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/threshold-relay/wire"
)

// MeetingRoom binds a set of expected user ids, one owner among them, to a
// map of filled slots. It expires independently of any relay session.
type MeetingRoom struct {
	MeetingId wire.MeetingId
	OwnerId   wire.UserId
	Slots     map[wire.UserId]*wire.PublicKeys // nil until filled

	mu         sync.Mutex
	lastAccess time.Time
}

func newMeetingRoom(id wire.MeetingId, owner wire.UserId, slots []wire.UserId, now time.Time) *MeetingRoom {
	room := &MeetingRoom{
		MeetingId:  id,
		OwnerId:    owner,
		Slots:      make(map[wire.UserId]*wire.PublicKeys, len(slots)),
		lastAccess: now,
	}
	for _, s := range slots {
		room.Slots[s] = nil
	}
	return room
}

// Join fills userId's slot with data. Returns the full participant list
// (in no particular order) and true once every slot is filled.
func (r *MeetingRoom) Join(userId wire.UserId, data wire.PublicKeys, now time.Time) ([]wire.Participant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.Slots[userId]
	if !ok {
		return nil, false, fmt.Errorf("relay: %s: %w", userId, ErrNotParticipant)
	}
	if existing != nil {
		return nil, false, ErrSlotTaken
	}
	r.lastAccess = now
	r.Slots[userId] = &data

	ready := true
	participants := make([]wire.Participant, 0, len(r.Slots))
	for id, keys := range r.Slots {
		if keys == nil {
			ready = false
			continue
		}
		participants = append(participants, wire.Participant{UserId: id, Keys: *keys})
	}
	if !ready {
		return nil, false, nil
	}
	return participants, true, nil
}

func (r *MeetingRoom) expired(now time.Time, timeout time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return now.Sub(r.lastAccess) > timeout
}

// MeetingManager owns every live MeetingRoom, keyed by MeetingId.
type MeetingManager struct {
	mu    sync.RWMutex
	rooms map[wire.MeetingId]*MeetingRoom
}

// NewMeetingManager creates an empty meeting manager.
func NewMeetingManager() *MeetingManager {
	return &MeetingManager{rooms: make(map[wire.MeetingId]*MeetingRoom)}
}

// Create reserves a room for owner among slots; owner must appear in slots
// and slots must be unique, matching the meeting_id binding invariant.
func (m *MeetingManager) Create(owner wire.UserId, slots []wire.UserId, now time.Time) (*MeetingRoom, error) {
	seen := make(map[wire.UserId]bool, len(slots))
	ownerPresent := false
	for _, s := range slots {
		if seen[s] {
			return nil, fmt.Errorf("relay: duplicate slot %s in NewRoom", s)
		}
		seen[s] = true
		if s == owner {
			ownerPresent = true
		}
	}
	if !ownerPresent {
		return nil, fmt.Errorf("relay: owner %s not present in slots", owner)
	}
	room := newMeetingRoom(wire.NewMeetingId(), owner, slots, now)
	m.mu.Lock()
	m.rooms[room.MeetingId] = room
	m.mu.Unlock()
	return room, nil
}

// Get looks up a room by id.
func (m *MeetingManager) Get(id wire.MeetingId) (*MeetingRoom, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	return room, ok
}

// Remove drops a room, e.g. once RoomReady fires or it has been reaped.
func (m *MeetingManager) Remove(id wire.MeetingId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
}

// ReapExpired removes every room whose last activity exceeds timeout.
func (m *MeetingManager) ReapExpired(now time.Time, timeout time.Duration) []wire.MeetingId {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []wire.MeetingId
	for id, room := range m.rooms {
		if room.expired(now, timeout) {
			expired = append(expired, id)
			delete(m.rooms, id)
		}
	}
	return expired
}
