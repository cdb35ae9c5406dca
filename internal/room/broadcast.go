package room

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Tyrowin/roomrelay/internal/metrics"
)

// Broadcaster fans a response out to the members of a room. Delivery is best
// effort: connections that are not open are skipped and a failing recipient
// never stops the others.
type Broadcaster struct {
	registry *Registry
	lookup   func(ConnID) (Conn, bool)
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewBroadcaster resolves member connections through lookup.
func NewBroadcaster(reg *Registry, lookup func(ConnID) (Conn, bool), log *zap.Logger, m *metrics.Metrics) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Broadcaster{registry: reg, lookup: lookup, log: log, metrics: m}
}

// Broadcast sends resp to every member of roomID except exclude and returns
// how many connections accepted it. A missing room is not an error.
func (b *Broadcaster) Broadcast(roomID string, resp Response, exclude ConnID) int {
	view, ok := b.registry.Room(roomID)
	if !ok {
		return 0
	}
	return b.Deliver(view.Members, resp, exclude)
}

// Deliver sends resp to an explicit member snapshot.
func (b *Broadcaster) Deliver(members []Member, resp Response, exclude ConnID) int {
	if len(members) == 0 {
		return 0
	}
	frame := Encode(resp)

	delivered := 0
	for _, m := range members {
		if m.ConnID == exclude {
			continue
		}
		conn, ok := b.lookup(m.ConnID)
		if !ok || conn.State() != StateOpen {
			continue
		}
		if err := safeSend(conn, frame); err != nil {
			b.metrics.DroppedDeliveries.Inc()
			b.log.Debug("delivery dropped",
				zap.String("conn_id", string(m.ConnID)),
				zap.String("room_id", m.RoomID),
				zap.String("type", resp.Type),
				zap.Error(err))
			continue
		}
		delivered++
	}
	b.metrics.Deliveries.Add(float64(delivered))
	return delivered
}

func safeSend(conn Conn, frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: recovered: %v", ErrDelivery, r)
		}
	}()
	if err := conn.Send(frame); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}
