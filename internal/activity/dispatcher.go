package activity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/roomrelay/internal/metrics"
)

const (
	defaultBuffer         = 1024
	defaultPublishTimeout = 5 * time.Second
)

// Dispatcher queues events and publishes them in order on one goroutine.
type Dispatcher struct {
	sink    Publisher
	queue   chan Event
	log     *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewDispatcher starts a dispatcher in front of sink. buffer <= 0 selects a
// default size.
func NewDispatcher(sink Publisher, buffer int, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	d := &Dispatcher{
		sink:    sink,
		queue:   make(chan Event, buffer),
		log:     log,
		metrics: m,
		timeout: defaultPublishTimeout,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Record enqueues ev, dropping it if the buffer is full or the dispatcher
// has been closed.
func (d *Dispatcher) Record(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.metrics.ActivityDropped.Inc()
		d.log.Warn("activity buffer full; event dropped",
			zap.String("kind", string(ev.Kind)),
			zap.String("room_id", ev.RoomID))
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.sink.Publish(ctx, ev); err != nil {
			d.metrics.ActivityFailed.Inc()
			d.log.Warn("activity publish failed",
				zap.String("kind", string(ev.Kind)),
				zap.String("room_id", ev.RoomID),
				zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting events, drains the queue and closes the sink. It
// returns ctx.Err() if draining outlives ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return d.sink.Close()
}
