package room

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// maxIDAttempts bounds room id regeneration on collision.
const maxIDAttempts = 16

// IDGenerator produces candidate room ids.
type IDGenerator func() string

// NewRoomID returns the first group of a random UUID: eight hex characters.
func NewRoomID() string {
	id, _, _ := strings.Cut(uuid.NewString(), "-")
	return id
}

// Member associates one connection with one room.
type Member struct {
	ConnID   ConnID
	Username string
	RoomID   string
}

// RoomView is a read-only snapshot of a room. Members are in join order.
type RoomView struct {
	ID      string
	Members []Member
}

// Departure describes a member removed by RemoveConnection. Remaining holds
// the other occupants at removal time, even when the room itself was dropped.
type Departure struct {
	RoomID     string
	Username   string
	RoomClosed bool
	Remaining  []Member
}

type roomState struct {
	id      string
	members map[ConnID]*Member
	order   []ConnID
}

func (rs *roomState) snapshot() []Member {
	out := make([]Member, 0, len(rs.order))
	for _, id := range rs.order {
		out = append(out, *rs.members[id])
	}
	return out
}

// Registry is the table of live rooms. It is not safe for concurrent use;
// Manager serializes every call.
//
// A connection is a member of at most one room, and a room with no members is
// never kept.
type Registry struct {
	rooms    map[string]*roomState
	memberOf map[ConnID]string
	newID    IDGenerator
}

// NewRegistry returns an empty registry. A nil gen uses NewRoomID.
func NewRegistry(gen IDGenerator) *Registry {
	if gen == nil {
		gen = NewRoomID
	}
	return &Registry{
		rooms:    make(map[string]*roomState),
		memberOf: make(map[ConnID]string),
		newID:    gen,
	}
}

// CreateRoom allocates a fresh room with id as its only member.
func (r *Registry) CreateRoom(id ConnID, username string) (string, error) {
	roomID, err := r.AllocateID()
	if err != nil {
		return "", err
	}
	r.OpenRoom(roomID, id, username)
	return roomID, nil
}

// AllocateID returns an id no live room uses. The id is not reserved; the
// caller opens the room before the registry is modified again.
func (r *Registry) AllocateID() (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		roomID := r.newID()
		if roomID == "" {
			continue
		}
		if _, taken := r.rooms[roomID]; taken {
			continue
		}
		return roomID, nil
	}
	return "", fmt.Errorf("create room after %d attempts: %w", maxIDAttempts, ErrIDExhausted)
}

// OpenRoom creates roomID with id as its only member. roomID must come from
// AllocateID.
func (r *Registry) OpenRoom(roomID string, id ConnID, username string) {
	rs := &roomState{id: roomID, members: make(map[ConnID]*Member, 1)}
	r.rooms[roomID] = rs
	r.insert(rs, id, username)
}

// JoinRoom adds id to roomID, overwriting an existing entry for the same
// connection.
func (r *Registry) JoinRoom(roomID string, id ConnID, username string) (string, error) {
	if roomID == "" {
		return "", fmt.Errorf("join room: %w", ErrRoomNotFound)
	}
	rs, ok := r.rooms[roomID]
	if !ok {
		return "", fmt.Errorf("join room %q: %w", roomID, ErrRoomNotFound)
	}
	r.insert(rs, id, username)
	return roomID, nil
}

func (r *Registry) insert(rs *roomState, id ConnID, username string) {
	if prev, ok := r.memberOf[id]; ok && prev != rs.id {
		r.RemoveConnection(id)
	}
	if m, ok := rs.members[id]; ok {
		m.Username = username
		return
	}
	rs.members[id] = &Member{ConnID: id, Username: username, RoomID: rs.id}
	rs.order = append(rs.order, id)
	r.memberOf[id] = rs.id
}

// RemoveConnection drops id from its room and deletes the room if it became
// empty. It reports false when id was not a member anywhere.
func (r *Registry) RemoveConnection(id ConnID) (Departure, bool) {
	roomID, ok := r.memberOf[id]
	if !ok {
		roomID, ok = r.scan(id)
		if !ok {
			return Departure{}, false
		}
	}
	delete(r.memberOf, id)

	rs, ok := r.rooms[roomID]
	if !ok {
		return Departure{}, false
	}
	m, ok := rs.members[id]
	if !ok {
		return Departure{}, false
	}
	delete(rs.members, id)
	rs.order = slices.DeleteFunc(rs.order, func(c ConnID) bool { return c == id })

	dep := Departure{RoomID: roomID, Username: m.Username, Remaining: rs.snapshot()}
	if len(rs.members) == 0 {
		delete(r.rooms, roomID)
		dep.RoomClosed = true
	}
	return dep, true
}

// scan looks for id in every room; used only if the back-reference is missing.
func (r *Registry) scan(id ConnID) (string, bool) {
	for roomID, rs := range r.rooms {
		if _, ok := rs.members[id]; ok {
			return roomID, true
		}
	}
	return "", false
}

// Room returns a snapshot of roomID.
func (r *Registry) Room(roomID string) (RoomView, bool) {
	rs, ok := r.rooms[roomID]
	if !ok {
		return RoomView{}, false
	}
	return RoomView{ID: rs.id, Members: rs.snapshot()}, true
}

// RoomOf returns the room id is a member of.
func (r *Registry) RoomOf(id ConnID) (string, bool) {
	roomID, ok := r.memberOf[id]
	return roomID, ok
}

// Len returns the number of live rooms.
func (r *Registry) Len() int { return len(r.rooms) }

// MemberCount returns the number of memberships across all rooms.
func (r *Registry) MemberCount() int { return len(r.memberOf) }
