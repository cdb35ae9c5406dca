package room

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomID(t *testing.T) {
	re := regexp.MustCompile(`^[0-9a-f]{8}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRoomID()
		require.Regexp(t, re, id)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 90)
}

func TestCreateRoom(t *testing.T) {
	r := NewRegistry(sequence("room0001"))

	id, err := r.CreateRoom("c1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "room0001", id)

	view, ok := r.Room(id)
	require.True(t, ok)
	assert.Equal(t, []Member{{ConnID: "c1", Username: "alice", RoomID: id}}, view.Members)

	got, ok := r.RoomOf("c1")
	require.True(t, ok)
	assert.Equal(t, id, got)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1, r.MemberCount())
}

func TestCreateRoomRetriesOnCollision(t *testing.T) {
	r := NewRegistry(sequence("aaaa0000", "aaaa0000", "", "bbbb0000"))

	first, err := r.CreateRoom("c1", "alice")
	require.NoError(t, err)
	second, err := r.CreateRoom("c2", "bob")
	require.NoError(t, err)

	assert.Equal(t, "aaaa0000", first)
	assert.Equal(t, "bbbb0000", second)
	assert.Equal(t, 2, r.Len())
}

func TestCreateRoomExhausted(t *testing.T) {
	r := NewRegistry(func() string { return "deadbeef" })

	_, err := r.CreateRoom("c1", "alice")
	require.NoError(t, err)

	_, err = r.CreateRoom("c2", "bob")
	require.ErrorIs(t, err, ErrIDExhausted)
	_, ok := r.RoomOf("c2")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestAllocateIDDoesNotModifyRegistry(t *testing.T) {
	r := NewRegistry(sequence("taken001", "taken001", "free0001"))
	_, err := r.CreateRoom("c1", "alice")
	require.NoError(t, err)

	id, err := r.AllocateID()
	require.NoError(t, err)
	assert.Equal(t, "free0001", id)
	assert.Equal(t, 1, r.Len())

	r.OpenRoom(id, "c2", "bob")
	view, ok := r.Room(id)
	require.True(t, ok)
	assert.Equal(t, []Member{{ConnID: "c2", Username: "bob", RoomID: id}}, view.Members)
}

func TestCreateRoomLeavesPreviousRoom(t *testing.T) {
	r := NewRegistry(sequence("room0001", "room0002"))

	first, _ := r.CreateRoom("c1", "alice")
	second, err := r.CreateRoom("c1", "alice")
	require.NoError(t, err)

	_, ok := r.Room(first)
	assert.False(t, ok, "emptied room must be deleted")
	got, _ := r.RoomOf("c1")
	assert.Equal(t, second, got)
	assert.Equal(t, 1, r.MemberCount())
}

func TestJoinRoom(t *testing.T) {
	r := NewRegistry(sequence("room0001"))
	id, _ := r.CreateRoom("c1", "alice")

	got, err := r.JoinRoom(id, "c2", "bob")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	view, _ := r.Room(id)
	assert.Equal(t, []Member{
		{ConnID: "c1", Username: "alice", RoomID: id},
		{ConnID: "c2", Username: "bob", RoomID: id},
	}, view.Members)
}

func TestJoinRoomNotFound(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.JoinRoom("", "c1", "alice")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = r.JoinRoom("nope", "c1", "alice")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.MemberCount())
}

func TestJoinRoomSameRoomOverwrites(t *testing.T) {
	r := NewRegistry(sequence("room0001"))
	id, _ := r.CreateRoom("c1", "alice")

	_, err := r.JoinRoom(id, "c1", "alicia")
	require.NoError(t, err)

	view, _ := r.Room(id)
	require.Len(t, view.Members, 1)
	assert.Equal(t, "alicia", view.Members[0].Username)
}

func TestJoinRoomMovesBetweenRooms(t *testing.T) {
	r := NewRegistry(sequence("room0001", "room0002"))
	a, _ := r.CreateRoom("c1", "alice")
	b, _ := r.CreateRoom("c2", "bob")
	_, err := r.JoinRoom(a, "c3", "carol")
	require.NoError(t, err)

	_, err = r.JoinRoom(b, "c3", "carol")
	require.NoError(t, err)

	viewA, _ := r.Room(a)
	viewB, _ := r.Room(b)
	assert.Len(t, viewA.Members, 1)
	assert.Len(t, viewB.Members, 2)
	got, _ := r.RoomOf("c3")
	assert.Equal(t, b, got)
}

func TestRemoveConnection(t *testing.T) {
	r := NewRegistry(sequence("room0001"))
	id, _ := r.CreateRoom("c1", "alice")
	_, _ = r.JoinRoom(id, "c2", "bob")

	dep, ok := r.RemoveConnection("c1")
	require.True(t, ok)
	assert.Equal(t, id, dep.RoomID)
	assert.Equal(t, "alice", dep.Username)
	assert.False(t, dep.RoomClosed)
	assert.Equal(t, []Member{{ConnID: "c2", Username: "bob", RoomID: id}}, dep.Remaining)

	dep, ok = r.RemoveConnection("c2")
	require.True(t, ok)
	assert.True(t, dep.RoomClosed)
	assert.Empty(t, dep.Remaining)

	_, ok = r.Room(id)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.MemberCount())
}

func TestRemoveConnectionUnknown(t *testing.T) {
	r := NewRegistry(nil)
	_, ok := r.RemoveConnection("ghost")
	assert.False(t, ok)
}

func TestRemoveConnectionScansWithoutBackReference(t *testing.T) {
	r := NewRegistry(sequence("room0001"))
	id, _ := r.CreateRoom("c1", "alice")
	_, _ = r.JoinRoom(id, "c2", "bob")
	delete(r.memberOf, "c2")

	dep, ok := r.RemoveConnection("c2")
	require.True(t, ok)
	assert.Equal(t, id, dep.RoomID)

	view, _ := r.Room(id)
	assert.Len(t, view.Members, 1)
}

func TestRoomSnapshotIsDetached(t *testing.T) {
	r := NewRegistry(sequence("room0001"))
	id, _ := r.CreateRoom("c1", "alice")

	view, _ := r.Room(id)
	view.Members[0].Username = "mallory"

	again, _ := r.Room(id)
	assert.Equal(t, "alice", again.Members[0].Username)
}
