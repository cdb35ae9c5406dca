package room

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Inbound event kinds.
const (
	KindCreate = "create"
	KindJoin   = "join"
	KindChat   = "chat"
)

// Outbound response types.
const (
	TypeRoomCreated = "roomCreated"
	TypeRoomJoined  = "roomJoined"
	TypeUserJoined  = "userJoined"
	TypeChat        = "chat"
	TypeError       = "error"
	TypeUserLeft    = "user_left"
)

// User-facing response texts.
const (
	MsgRoomCreated      = "Room Creation Successful"
	MsgRoomJoined       = "Room Joined Successfully"
	MsgNewMessage       = "New Message"
	MsgInvalidFormat    = "Invalid message format"
	MsgNoRoomID         = "No room Id Provided."
	MsgInvalidRoomID    = "Invalid Room Id."
	MsgNotInRoom        = "You are not in a room."
	MsgNoMessage        = "No message provided."
	DetailInvalidRoomID = "Provide a valid Room Id."
	DetailNoMessage     = "Message content is empty."
)

// ClientEvent is one decoded inbound frame. The concrete types are
// CreateEvent, JoinEvent and ChatEvent.
type ClientEvent interface {
	Kind() string
	isClientEvent()
}

// CreateEvent asks for a new room with the sender as its first member.
type CreateEvent struct {
	Username string
}

// JoinEvent asks to enter an existing room. Message is accepted on the wire
// but unused.
type JoinEvent struct {
	Username string
	RoomID   string
	Message  string
}

// ChatEvent carries a message for the other occupants of RoomID.
type ChatEvent struct {
	Username string
	RoomID   string
	Message  string
}

func (CreateEvent) Kind() string { return KindCreate }
func (JoinEvent) Kind() string   { return KindJoin }
func (ChatEvent) Kind() string   { return KindChat }

func (CreateEvent) isClientEvent() {}
func (JoinEvent) isClientEvent()   {}
func (ChatEvent) isClientEvent()   {}

// wireEvent uses pointers so absent fields can be told apart from empty ones.
type wireEvent struct {
	Type     *string `json:"type"`
	Username *string `json:"username"`
	RoomID   *string `json:"room_id"`
	Message  *string `json:"message"`
}

type wireEventOut struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	RoomID   string `json:"room_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Decode parses one inbound text frame. Only "type" is required; absent
// username, room_id and message decode as empty strings and are validated by
// the session. Every failure, including an unknown kind, is reported as a
// *DecodeError.
func Decode(raw []byte) (ClientEvent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, decodeErr("payload is not a JSON object", nil)
	}

	var w wireEvent
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return nil, decodeErr("invalid JSON", err)
	}
	if w.Type == nil {
		return nil, decodeErr("missing field \"type\"", nil)
	}

	username := deref(w.Username)
	switch *w.Type {
	case KindCreate:
		return CreateEvent{Username: username}, nil
	case KindJoin:
		return JoinEvent{Username: username, RoomID: deref(w.RoomID), Message: deref(w.Message)}, nil
	case KindChat:
		return ChatEvent{Username: username, RoomID: deref(w.RoomID), Message: deref(w.Message)}, nil
	default:
		return nil, decodeErr(fmt.Sprintf("unknown event type %q", *w.Type), nil)
	}
}

// EncodeEvent serializes a client event in the inbound wire format.
func EncodeEvent(ev ClientEvent) ([]byte, error) {
	out := wireEventOut{Type: ev.Kind()}
	switch e := ev.(type) {
	case CreateEvent:
		out.Username = e.Username
	case JoinEvent:
		out.Username, out.RoomID, out.Message = e.Username, e.RoomID, e.Message
	case ChatEvent:
		out.Username, out.RoomID, out.Message = e.Username, e.RoomID, e.Message
	default:
		return nil, fmt.Errorf("encode client event: unsupported type %T", ev)
	}
	return json.Marshal(out)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// RoomIDData is the payload of roomCreated and roomJoined.
type RoomIDData struct {
	RoomID string `json:"roomId"`
}

// UserJoinedData is the payload of userJoined.
type UserJoinedData struct {
	Username string `json:"username"`
}

// ChatData is the payload of an outbound chat.
type ChatData struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// Response is one outbound frame. Username is only used by user_left, which
// has its own flat shape on the wire.
type Response struct {
	Type     string
	Data     any
	Message  string
	Error    string
	Username string
}

type envelope struct {
	Type    string `json:"type"`
	Data    any    `json:"data"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type userLeftFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

// MarshalJSON implements json.Marshaler.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Type == TypeUserLeft {
		return json.Marshal(userLeftFrame{Type: r.Type, Username: r.Username})
	}
	return json.Marshal(envelope{Type: r.Type, Data: r.Data, Message: r.Message, Error: r.Error})
}

// invalidFormatFrame is sent when a response cannot be serialized.
var invalidFormatFrame = []byte(`{"type":"error","data":null,"message":"Invalid message format"}`)

// Encode serializes a response.
func Encode(r Response) []byte {
	b, err := json.Marshal(r)
	if err != nil {
		return invalidFormatFrame
	}
	return b
}

func RoomCreated(roomID string) Response {
	return Response{Type: TypeRoomCreated, Data: RoomIDData{RoomID: roomID}, Message: MsgRoomCreated}
}

func RoomJoined(roomID string) Response {
	return Response{Type: TypeRoomJoined, Data: RoomIDData{RoomID: roomID}, Message: MsgRoomJoined}
}

func UserJoined(username string) Response {
	return Response{
		Type:    TypeUserJoined,
		Data:    UserJoinedData{Username: username},
		Message: username + " has joined the room",
	}
}

func ChatMessage(sender, message string) Response {
	return Response{Type: TypeChat, Data: ChatData{Sender: sender, Message: message}, Message: MsgNewMessage}
}

func UserLeft(username string) Response {
	return Response{Type: TypeUserLeft, Username: username}
}

// Failure builds an error response. detail may be empty.
func Failure(message, detail string) Response {
	return Response{Type: TypeError, Message: message, Error: detail}
}
