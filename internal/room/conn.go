package room

// ConnID identifies one accepted connection for its whole lifetime.
type ConnID string

// ConnState is the readiness of a connection's outbound channel.
type ConnState int

const (
	StateOpen ConnState = iota
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the manager's view of a transport connection. The manager never
// closes it; Send must not block.
type Conn interface {
	ID() ConnID
	State() ConnState
	Send(frame []byte) error
}
