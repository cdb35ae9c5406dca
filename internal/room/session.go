package room

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Tyrowin/roomrelay/internal/activity"
	"github.com/Tyrowin/roomrelay/internal/metrics"
)

// MsgCreateFailed is replied when no room id could be allocated.
const MsgCreateFailed = "Room Creation Failed."

// SessionState is the lifecycle position of one connection.
type SessionState int

const (
	// Unbound: connected, not in any room.
	Unbound SessionState = iota
	// InRoom: member of exactly one room.
	InRoom
	// Closed is terminal.
	Closed
)

func (s SessionState) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case InRoom:
		return "in_room"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// sessionEnv is what every session shares with its manager.
type sessionEnv struct {
	registry    *Registry
	broadcaster *Broadcaster
	recorder    activity.Recorder
	log         *zap.Logger
	metrics     *metrics.Metrics
}

// Session holds per-connection state and applies decoded events to the
// registry. Calls must be serialized by the owner.
type Session struct {
	conn     Conn
	env      *sessionEnv
	state    SessionState
	roomID   string
	username string
}

func newSession(conn Conn, env *sessionEnv) *Session {
	return &Session{conn: conn, env: env, state: Unbound}
}

func (s *Session) id() ConnID { return s.conn.ID() }

// State returns the current lifecycle state.
func (s *Session) State() SessionState { return s.state }

// RoomID returns the room the session is bound to, or "".
func (s *Session) RoomID() string { return s.roomID }

// Username returns the name given at the last create or join.
func (s *Session) Username() string { return s.username }

func (s *Session) handle(ev ClientEvent) {
	if s.state == Closed {
		return
	}
	switch e := ev.(type) {
	case CreateEvent:
		s.handleCreate(e)
	case JoinEvent:
		s.handleJoin(e)
	case ChatEvent:
		s.handleChat(e)
	}
}

// reject answers a frame that failed to decode.
func (s *Session) reject(err error) {
	if s.state == Closed {
		return
	}
	s.env.log.Debug("invalid client frame", zap.String("conn_id", string(s.id())), zap.Error(err))
	s.reply(Failure(MsgInvalidFormat, ""))
}

// missing answers an event whose required field was empty.
func (s *Session) missing(field string, resp Response) {
	s.env.log.Debug("event rejected",
		zap.String("conn_id", string(s.id())),
		zap.Error(fmt.Errorf("%s: %w", field, ErrMissingField)))
	s.reply(resp)
}

// handleCreate allocates the new room id before leaving the current room, so
// a failed allocation leaves the session where it was.
func (s *Session) handleCreate(ev CreateEvent) {
	roomID, err := s.env.registry.AllocateID()
	if err != nil {
		s.env.log.Error("room creation failed", zap.String("conn_id", string(s.id())), zap.Error(err))
		s.reply(Failure(MsgCreateFailed, err.Error()))
		return
	}
	s.leave()
	s.env.registry.OpenRoom(roomID, s.id(), ev.Username)
	s.bind(roomID, ev.Username)
	s.reply(RoomCreated(roomID))

	s.env.log.Info("room created",
		zap.String("room_id", roomID),
		zap.String("conn_id", string(s.id())),
		zap.String("username", ev.Username))
	s.record(activity.RoomCreated, roomID, ev.Username)
	s.record(activity.MemberJoined, roomID, ev.Username)
}

func (s *Session) handleJoin(ev JoinEvent) {
	if ev.RoomID == "" {
		s.missing("room_id", Failure(MsgNoRoomID, ""))
		return
	}
	if _, ok := s.env.registry.Room(ev.RoomID); !ok {
		s.reply(Failure(MsgInvalidRoomID, DetailInvalidRoomID))
		return
	}
	if current, ok := s.env.registry.RoomOf(s.id()); ok && current != ev.RoomID {
		s.leave()
	}

	roomID, err := s.env.registry.JoinRoom(ev.RoomID, s.id(), ev.Username)
	if err != nil {
		s.reply(Failure(MsgInvalidRoomID, DetailInvalidRoomID))
		return
	}
	s.bind(roomID, ev.Username)
	s.reply(RoomJoined(roomID))
	n := s.env.broadcaster.Broadcast(roomID, UserJoined(ev.Username), s.id())

	s.env.log.Info("member joined",
		zap.String("room_id", roomID),
		zap.String("conn_id", string(s.id())),
		zap.String("username", ev.Username),
		zap.Int("notified", n))
	s.record(activity.MemberJoined, roomID, ev.Username)
}

func (s *Session) handleChat(ev ChatEvent) {
	if ev.RoomID == "" {
		s.missing("room_id", Failure(MsgNotInRoom, ""))
		return
	}
	if _, ok := s.env.registry.Room(ev.RoomID); !ok {
		s.reply(Failure(MsgInvalidRoomID, DetailInvalidRoomID))
		return
	}
	if ev.Message == "" {
		s.missing("message", Failure(MsgNoMessage, DetailNoMessage))
		return
	}
	n := s.env.broadcaster.Broadcast(ev.RoomID, ChatMessage(ev.Username, ev.Message), s.id())
	s.env.log.Debug("chat relayed",
		zap.String("room_id", ev.RoomID),
		zap.String("conn_id", string(s.id())),
		zap.Int("delivered", n))
}

// close moves the session to Closed, leaving its room. It reports false if
// the session was already closed.
func (s *Session) close() bool {
	if s.state == Closed {
		return false
	}
	s.leave()
	s.state = Closed
	return true
}

// leave removes the connection from whatever room it is in and tells the
// remaining occupants. The registry is the source of truth, not s.state.
func (s *Session) leave() {
	dep, ok := s.env.registry.RemoveConnection(s.id())
	if s.state == InRoom {
		s.state = Unbound
	}
	s.roomID = ""
	if !ok {
		return
	}

	n := s.env.broadcaster.Deliver(dep.Remaining, UserLeft(dep.Username), s.id())
	s.env.log.Info("member left",
		zap.String("room_id", dep.RoomID),
		zap.String("conn_id", string(s.id())),
		zap.String("username", dep.Username),
		zap.Int("notified", n),
		zap.Bool("room_closed", dep.RoomClosed))
	s.record(activity.MemberLeft, dep.RoomID, dep.Username)
	if dep.RoomClosed {
		s.record(activity.RoomClosed, dep.RoomID, "")
	}
}

func (s *Session) bind(roomID, username string) {
	s.state = InRoom
	s.roomID = roomID
	s.username = username
}

func (s *Session) reply(resp Response) {
	if err := safeSend(s.conn, Encode(resp)); err != nil {
		s.env.metrics.DroppedDeliveries.Inc()
		s.env.log.Debug("reply dropped",
			zap.String("conn_id", string(s.id())),
			zap.String("type", resp.Type),
			zap.Error(err))
	}
}

func (s *Session) record(kind activity.Kind, roomID, username string) {
	s.env.recorder.Record(activity.Event{
		Kind:     kind,
		RoomID:   roomID,
		ConnID:   string(s.id()),
		Username: username,
	})
}
