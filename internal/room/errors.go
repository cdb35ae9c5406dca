package room

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode matches every *DecodeError.
	ErrDecode = errors.New("room: malformed client event")
	// ErrRoomNotFound is returned when a room id is empty or unknown.
	ErrRoomNotFound = errors.New("room: room not found")
	// ErrMissingField is returned when a field required by an event is empty.
	ErrMissingField = errors.New("room: missing field")
	// ErrDelivery marks a failed send to a single recipient.
	ErrDelivery = errors.New("room: delivery failed")
	// ErrIDExhausted is returned when no unused room id could be generated.
	ErrIDExhausted = errors.New("room: could not allocate a unique room id")
	// ErrDuplicateConn is returned when a connection id is accepted twice.
	ErrDuplicateConn = errors.New("room: connection already accepted")
	// ErrManagerClosed is returned by Accept after Close.
	ErrManagerClosed = errors.New("room: manager closed")
)

// DecodeError describes why an inbound frame could not be turned into a
// ClientEvent.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode client event: %s: %v", e.Reason, e.Err)
	}
	return "decode client event: " + e.Reason
}

// Is reports ErrDecode so callers can match without errors.As.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(reason string, err error) error {
	return &DecodeError{Reason: reason, Err: err}
}
