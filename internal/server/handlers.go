// Package server exposes HTTP handlers, including WebSocket upgrades, health
// and stats endpoints, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler returns the handler for WebSocket upgrade requests. It
// validates that the request uses the GET method, upgrades the HTTP connection,
// creates a new Client and registers it with hub, which attaches it to the
// room manager and starts its pumps.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Debug("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr)
		if !hub.Register(client) {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			client.closeConnection()
		}
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Room relay is running!")
}

// HealthzHandler is the machine-readable health check.
func HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatsHandler reports the number of live rooms, memberships and connections.
func StatsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, hub.manager.Snapshot())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("error writing JSON response", zap.Error(err))
	}
}

// TestPageHandler serves an HTML page that speaks the room protocol: create a
// room, join one by id, and chat with its other occupants.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		zap.L().Warn("error writing HTML response", zap.Error(err))
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Room Relay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 200px; padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Room Relay Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="username" placeholder="Username">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div>
        <button onclick="createRoom()">Create room</button>
        <input type="text" id="roomId" placeholder="Room id">
        <button onclick="joinRoom()">Join</button>
    </div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message...">
        <button onclick="sendChat()">Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const statusDiv = document.getElementById('status');
        const roomInput = document.getElementById('roomId');

        function addLine(text, color) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = color || 'gray';
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function username() {
            return document.getElementById('username').value || 'anonymous';
        }

        function send(event) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify(event));
            }
        }

        function createRoom() { send({type: 'create', username: username()}); }
        function joinRoom() { send({type: 'join', username: username(), room_id: roomInput.value}); }

        function sendChat() {
            const input = document.getElementById('messageInput');
            send({type: 'chat', username: username(), room_id: roomInput.value, message: input.value});
            if (input.value) { addLine('You: ' + input.value, 'blue'); }
            input.value = '';
        }

        function handle(frame) {
            switch (frame.type) {
            case 'roomCreated':
            case 'roomJoined':
                roomInput.value = frame.data.roomId;
                addLine(frame.message + ' (' + frame.data.roomId + ')');
                break;
            case 'userJoined':
                addLine(frame.message);
                break;
            case 'chat':
                addLine(frame.data.sender + ': ' + frame.data.message, 'green');
                break;
            case 'user_left':
                addLine(frame.username + ' left the room');
                break;
            case 'error':
                addLine('Error: ' + frame.message + (frame.error ? ' ' + frame.error : ''), 'red');
                break;
            }
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            document.getElementById('connectButton').textContent = connected ? 'Disconnect' : 'Connect';
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
                return;
            }
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() { addLine('Connected'); updateStatus(true); };
            ws.onmessage = function(event) { handle(JSON.parse(event.data)); };
            ws.onclose = function() { addLine('Connection closed'); updateStatus(false); ws = null; };
            ws.onerror = function() { addLine('Connection error', 'red'); };
        }
    </script>
</body>
</html>`
