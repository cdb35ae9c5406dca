package room

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomrelay/internal/activity"
)

var errConnGone = errors.New("connection gone")

// fakeConn records every frame it accepts.
type fakeConn struct {
	id ConnID

	mu     sync.Mutex
	state  ConnState
	frames [][]byte
	fail   bool
	panics bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: ConnID(id), state: StateOpen}
}

func (c *fakeConn) ID() ConnID { return c.id }

func (c *fakeConn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panics {
		panic("send on closed channel")
	}
	if c.fail {
		return errConnGone
	}
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return nil
}

func (c *fakeConn) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// received decodes and clears the recorded frames.
func (c *fakeConn) received(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m), "frame %s", f)
		out = append(out, m)
	}
	c.frames = nil
	return out
}

// only asserts exactly one frame was received and returns it.
func (c *fakeConn) only(t *testing.T) map[string]any {
	t.Helper()
	got := c.received(t)
	require.Len(t, got, 1, "frames: %v", got)
	return got[0]
}

func (c *fakeConn) none(t *testing.T) {
	t.Helper()
	require.Empty(t, c.received(t))
}

// sequence returns a generator yielding ids in order, then "".
func sequence(ids ...string) IDGenerator {
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		if len(ids) == 0 {
			return ""
		}
		id := ids[0]
		ids = ids[1:]
		return id
	}
}

type captureRecorder struct {
	mu     sync.Mutex
	events []activity.Event
}

func (r *captureRecorder) Record(ev activity.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *captureRecorder) kinds() []activity.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]activity.Kind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func frame(t *testing.T, ev ClientEvent) []byte {
	t.Helper()
	b, err := EncodeEvent(ev)
	require.NoError(t, err)
	return b
}
