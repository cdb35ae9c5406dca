// Package room implements the room manager: the registry of live rooms, the
// per-connection sessions that mutate it, the broadcast engine that fans
// messages out to members, and the JSON codec spoken on the wire.
//
// Manager is the only entry point for the transport. It serializes every
// event with one mutex, so each create, join, chat or disconnect is applied
// to the registry as a single atomic step.
package room

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Tyrowin/roomrelay/internal/activity"
	"github.com/Tyrowin/roomrelay/internal/metrics"
)

type options struct {
	log      *zap.Logger
	metrics  *metrics.Metrics
	recorder activity.Recorder
	idGen    IDGenerator
}

// Option configures a Manager.
type Option func(*options)

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithRecorder sends lifecycle events to r.
func WithRecorder(r activity.Recorder) Option { return func(o *options) { o.recorder = r } }

// WithIDGenerator replaces the room id source.
func WithIDGenerator(g IDGenerator) Option { return func(o *options) { o.idGen = g } }

// Stats is a point-in-time summary of the manager.
type Stats struct {
	Rooms       int `json:"rooms"`
	Members     int `json:"members"`
	Connections int `json:"connections"`
}

// Manager owns the registry and the sessions of all accepted connections.
type Manager struct {
	mu       sync.Mutex
	registry *Registry
	sessions map[ConnID]*Session
	env      *sessionEnv
	log      *zap.Logger
	metrics  *metrics.Metrics
	closed   bool
}

// NewManager returns a manager with an empty registry.
func NewManager(opts ...Option) *Manager {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.metrics == nil {
		o.metrics = metrics.New(nil)
	}
	if o.recorder == nil {
		o.recorder = activity.Nop{}
	}

	m := &Manager{
		registry: NewRegistry(o.idGen),
		sessions: make(map[ConnID]*Session),
		log:      o.log,
		metrics:  o.metrics,
	}
	m.env = &sessionEnv{
		registry:    m.registry,
		broadcaster: NewBroadcaster(m.registry, m.lookup, o.log, o.metrics),
		recorder:    o.recorder,
		log:         o.log,
		metrics:     o.metrics,
	}
	return m
}

// lookup is called with m.mu held.
func (m *Manager) lookup(id ConnID) (Conn, bool) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return s.conn, true
}

// Accept binds a new session to conn.
func (m *Manager) Accept(conn Conn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	id := conn.ID()
	if _, dup := m.sessions[id]; dup {
		return fmt.Errorf("accept %s: %w", id, ErrDuplicateConn)
	}
	m.sessions[id] = newSession(conn, m.env)
	m.updateGauges()
	m.log.Debug("connection accepted", zap.String("conn_id", string(id)), zap.Int("connections", len(m.sessions)))
	return nil
}

// HandleFrame decodes raw and applies it to id's session. Frames for unknown
// or closed connections are ignored.
func (m *Manager) HandleFrame(id ConnID, raw []byte) {
	ev, err := Decode(raw)

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		m.log.Debug("frame for unknown connection", zap.String("conn_id", string(id)))
		return
	}
	if err != nil {
		m.metrics.DecodeErrors.Inc()
		s.reject(err)
		return
	}
	m.metrics.Events.WithLabelValues(ev.Kind()).Inc()
	s.handle(ev)
	m.updateGauges()
}

// Disconnect closes id's session, notifying its former room. Repeated calls
// are no-ops.
func (m *Manager) Disconnect(id ConnID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return
	}
	s.close()
	delete(m.sessions, id)
	m.updateGauges()
	m.log.Debug("connection released", zap.String("conn_id", string(id)), zap.Int("connections", len(m.sessions)))
}

// SessionState reports the state of id's session. Released connections are
// reported as Closed with ok false.
func (m *Manager) SessionState(id ConnID) (SessionState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Closed, false
	}
	return s.State(), true
}

// Room returns a snapshot of roomID.
func (m *Manager) Room(roomID string) (RoomView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Room(roomID)
}

// Snapshot returns current counts.
func (m *Manager) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Rooms:       m.registry.Len(),
		Members:     m.registry.MemberCount(),
		Connections: len(m.sessions),
	}
}

// Close stops accepting new connections. Existing sessions keep working until
// they are disconnected.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *Manager) updateGauges() {
	m.metrics.Rooms.Set(float64(m.registry.Len()))
	m.metrics.Connections.Set(float64(len(m.sessions)))
}
