// Package server manages individual WebSocket clients, handling read/write
// pumps, outbound queuing, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/Tyrowin/roomrelay/internal/room"
)

// Client represents a WebSocket client connection in the relay. It satisfies
// room.Conn: the room manager queues frames through Send and the write pump
// drains them onto the socket.
type Client struct {
	id   room.ConnID
	conn *websocket.Conn
	hub  *Hub
	addr string
	log  *zap.Logger
	cfg  Config

	mu    sync.Mutex
	state room.ConnState
	send  chan []byte
}

// NewClient creates a new Client instance with the provided WebSocket connection,
// hub reference, and client address. Each client gets a fresh ULID and a
// buffered send channel sized from the active configuration.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	id := room.ConnID(ulid.Make().String())

	log := zap.NewNop()
	if hub != nil {
		log = hub.log
	}

	return &Client{
		id:    id,
		conn:  conn,
		hub:   hub,
		addr:  addr,
		log:   log.With(zap.String("conn_id", string(id)), zap.String("remote_addr", addr)),
		cfg:   cfg,
		state: room.StateOpen,
		send:  make(chan []byte, cfg.SendBufferSize),
	}
}

// ID implements room.Conn.
func (c *Client) ID() room.ConnID { return c.id }

// State implements room.Conn.
func (c *Client) State() room.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send implements room.Conn. It never blocks: a full queue drops the frame.
func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != room.StateOpen {
		return ErrConnClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// GetSendChan returns the client's send channel for reading outgoing messages.
// This channel is read-only from the caller's perspective.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// markClosing stops new frames from being queued while teardown runs.
func (c *Client) markClosing() {
	c.mu.Lock()
	if c.state == room.StateOpen {
		c.state = room.StateClosing
	}
	c.mu.Unlock()
}

// closeSend marks the client closed and closes the send channel, which makes
// the write pump send a close frame and exit. Safe to call more than once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == room.StateClosed {
		return
	}
	c.state = room.StateClosed
	close(c.send)
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		c.log.Warn("error setting initial read deadline", zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
			c.log.Warn("error setting read deadline in pong handler", zap.Error(err))
		}
		return nil
	})
}

// handleReadError logs appropriate error messages based on the error type
// and returns true if the read loop should break
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		c.log.Info("message exceeded maximum size", zap.Int64("limit", c.cfg.MaxMessageSize))
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.log.Debug("client disconnected", zap.Error(err))
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		c.log.Debug("client connection closed", zap.Error(err))
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		c.log.Warn("unexpected WebSocket close", zap.Error(err))
		return true
	}

	c.log.Warn("WebSocket read error", zap.Error(err))
	return true
}

func (c *Client) readPump() {
	defer func() {
		c.markClosing()
		c.hub.release(c)
		c.closeConnection()
	}()

	c.setupReadConnection()

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
			continue
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		c.hub.manager.HandleFrame(c.id, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error closing connection", zap.Error(err))
		}
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		c.log.Warn("error setting write deadline", zap.Error(err))
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Debug("error writing close message", zap.Error(err))
		}
	}
	return false
}

// writeTextMessage writes one JSON frame. Frames are never coalesced: every
// response is a standalone JSON object on the wire.
func (c *Client) writeTextMessage(message []byte) bool {
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing message", zap.Error(err))
		}
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		c.log.Warn("error setting write deadline for ping", zap.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing ping", zap.Error(err))
		}
		return false
	}
	return true
}
