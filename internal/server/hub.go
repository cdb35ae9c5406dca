// Package server coordinates client registration, hand-off to the room
// manager, and connection cleanup for the relay via the Hub type.
package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/roomrelay/internal/room"
)

// Hub tracks every live WebSocket client. It registers clients with the room
// manager, starts their pumps, and releases them from the manager when their
// connection ends.
type Hub struct {
	manager    *room.Manager
	log        *zap.Logger
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub in front of manager. A nil logger discards output.
func NewHub(manager *room.Manager, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		manager:    manager,
		log:        log,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Manager returns the room manager the hub feeds.
func (h *Hub) Manager() *room.Manager {
	return h.manager
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Register hands c to the hub. It returns false if the hub is shutting down.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// release unregisters c, directly if the event loop has already stopped.
func (h *Hub) release(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
		h.unregisterClient(c)
	}
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. This method should be called in a separate goroutine as it
// runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Debug("received nil client registration; skipping")
				continue
			}
			h.registerClient(client)

		case client := <-h.unregister:
			if client != nil {
				h.unregisterClient(client)
			}
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	if err := h.manager.Accept(client); err != nil {
		h.log.Warn("room manager refused client", zap.String("conn_id", string(client.id)), zap.Error(err))
		client.closeSend()
		if client.conn != nil {
			client.closeConnection()
		}
		return
	}

	h.mutex.Lock()
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mutex.Unlock()
	h.log.Info("client registered",
		zap.String("conn_id", string(client.id)),
		zap.String("remote_addr", client.addr),
		zap.Int("clients", clientCount))

	if client.conn == nil {
		return
	}
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
	}
	clientCount := len(h.clients)
	h.mutex.Unlock()

	if !ok {
		return
	}

	h.manager.Disconnect(client.id)
	client.closeSend()
	h.log.Info("client unregistered",
		zap.String("conn_id", string(client.id)),
		zap.String("remote_addr", client.addr),
		zap.Int("clients", clientCount))
}

// shutdownClients stops the manager from accepting and closes every active
// connection; the read pumps then release their clients.
func (h *Hub) shutdownClients() {
	h.log.Info("shutting down all client connections")
	h.manager.Close()

	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	for _, client := range clients {
		if client.conn != nil {
			client.closeConnection()
		} else {
			h.unregisterClient(client)
		}
	}

	h.log.Info("closed client connections", zap.Int("count", len(clients)))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or context.DeadlineExceeded when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	h.cancel()

	select {
	case <-h.done:
	case <-time.After(timeout):
		h.log.Warn("hub event loop did not stop before timeout")
		return context.DeadlineExceeded
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
