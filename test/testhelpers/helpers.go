// Package testhelpers provides common utilities shared by the relay's
// integration tests.
//
// It starts fully wired relays on httptest servers, dials WebSocket clients
// with an allowed origin, and reads protocol frames with deadlines so a
// missing message fails a test instead of hanging it.
package testhelpers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/Tyrowin/roomrelay/internal/metrics"
	"github.com/Tyrowin/roomrelay/internal/room"
	"github.com/Tyrowin/roomrelay/internal/server"
)

// TestOrigin is the Origin header sent by ConnectWebSocket. It is allowed by
// the default configuration.
const TestOrigin = "http://localhost:8080"

// DefaultWait bounds every read performed by the helpers.
const DefaultWait = 2 * time.Second

// Relay is a running relay behind an httptest server.
type Relay struct {
	Server   *httptest.Server
	Hub      *server.Hub
	Registry *prometheus.Registry
	WSURL    string
}

// StartRelay applies cfg (nil for defaults), starts a hub and serves all
// routes. Everything is torn down when the test ends.
func StartRelay(t *testing.T, cfg *server.Config) *Relay {
	t.Helper()

	server.SetConfig(cfg)
	t.Cleanup(func() { server.SetConfig(nil) })

	log := zaptest.NewLogger(t)
	reg := prometheus.NewRegistry()
	manager := room.NewManager(
		room.WithLogger(log.Named("room")),
		room.WithMetrics(metrics.New(reg)),
	)
	hub := server.NewHub(manager, log.Named("hub"))
	go hub.Run()

	ts := httptest.NewServer(server.SetupRoutes(hub, reg))
	t.Cleanup(func() {
		_ = hub.Shutdown(5 * time.Second)
		ts.Close()
	})

	return &Relay{
		Server:   ts,
		Hub:      hub,
		Registry: reg,
		WSURL:    WebSocketURL(ts.URL),
	}
}

// WebSocketURL converts an http(s) base URL into the /ws endpoint URL.
func WebSocketURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

// Dial connects a client to the relay and closes it when the test ends.
func (r *Relay) Dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, err := ConnectWebSocket(r.WSURL)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// WaitForClients blocks until the hub has n registered clients.
func (r *Relay) WaitForClients(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(DefaultWait)
	for time.Now().Before(deadline) {
		if r.Hub.ClientCount() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d clients, have %d", n, r.Hub.ClientCount())
}

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request with a 5-second timeout,
// failing the test if the request cannot be made.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ConnectWebSocket creates a WebSocket connection to url using TestOrigin.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	return ConnectWebSocketWithOrigin(url, TestOrigin)
}

// ConnectWebSocketWithOrigin dials url with the given Origin header. An
// empty origin sends no header at all. The handshake response is returned
// so callers can inspect rejected upgrades.
func ConnectWebSocketWithOrigin(url, origin string) (*websocket.Conn, error) {
	conn, resp, err := DialWithOrigin(url, origin)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// DialWithOrigin is ConnectWebSocketWithOrigin returning the handshake
// response. The caller must close its body.
func DialWithOrigin(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	return dialer.Dial(url, headers)
}

// Event is an inbound client frame.
type Event struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	RoomID   string `json:"room_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// SendEvent writes ev as one JSON text frame.
func SendEvent(conn *websocket.Conn, ev Event) error {
	return conn.WriteJSON(ev)
}

// SendRawMessage sends a raw byte message over the WebSocket connection.
func SendRawMessage(conn *websocket.Conn, messageType int, data []byte) error {
	return conn.WriteMessage(messageType, data)
}

// Frame is a decoded outbound frame.
type Frame map[string]any

// Type returns the frame's "type" field.
func (f Frame) Type() string {
	s, _ := f["type"].(string)
	return s
}

// Message returns the frame's "message" field.
func (f Frame) Message() string {
	s, _ := f["message"].(string)
	return s
}

// Data returns a string field of the frame's "data" object.
func (f Frame) Data(key string) string {
	data, _ := f["data"].(map[string]any)
	s, _ := data[key].(string)
	return s
}

// ReadFrame reads and decodes one frame, failing the test after DefaultWait.
func ReadFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(DefaultWait)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("Frame is not a JSON object: %q: %v", raw, err)
	}
	return f
}

// ExpectFrame reads one frame and checks its type.
func ExpectFrame(t *testing.T, conn *websocket.Conn, typ string) Frame {
	t.Helper()
	f := ReadFrame(t, conn)
	if f.Type() != typ {
		t.Fatalf("Expected %q frame, got %v", typ, f)
	}
	return f
}

// ExpectNoFrame fails if a frame arrives within wait. A timed-out read leaves
// the connection unusable, so this must be the last read on conn.
func ExpectNoFrame(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no frame, got %s", raw)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("Expected read timeout, got %v", err)
	}
}

// CreateRoom sends a create event and returns the new room id.
func CreateRoom(t *testing.T, conn *websocket.Conn, username string) string {
	t.Helper()
	if err := SendEvent(conn, Event{Type: "create", Username: username}); err != nil {
		t.Fatalf("Failed to send create: %v", err)
	}
	f := ExpectFrame(t, conn, "roomCreated")
	roomID := f.Data("roomId")
	if roomID == "" {
		t.Fatalf("roomCreated without roomId: %v", f)
	}
	return roomID
}

// JoinRoom sends a join event and waits for roomJoined.
func JoinRoom(t *testing.T, conn *websocket.Conn, username, roomID string) {
	t.Helper()
	if err := SendEvent(conn, Event{Type: "join", Username: username, RoomID: roomID}); err != nil {
		t.Fatalf("Failed to send join: %v", err)
	}
	f := ExpectFrame(t, conn, "roomJoined")
	if got := f.Data("roomId"); got != roomID {
		t.Fatalf("Joined %q, expected %q", got, roomID)
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
