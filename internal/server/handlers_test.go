package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tyrowin/roomrelay/internal/metrics"
	"github.com/Tyrowin/roomrelay/internal/room"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	log := zaptest.NewLogger(t)
	hub := NewHub(room.NewManager(room.WithLogger(log)), log)
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(time.Second) })
	return hub
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Room relay is running!", rec.Body.String())
}

func TestHealthzHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthzHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatsHandler(t *testing.T) {
	hub := newTestHub(t)

	c := NewClient(nil, hub, "test")
	require.NoError(t, hub.Manager().Accept(c))
	hub.Manager().HandleFrame(c.ID(), []byte(`{"type":"create","username":"alice"}`))

	rec := httptest.NewRecorder()
	StatsHandler(hub)(rec, httptest.NewRequest(http.MethodGet, "/stats", http.NoBody))

	var stats room.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, room.Stats{Rooms: 1, Members: 1, Connections: 1}, stats)
}

func TestWebSocketHandlerRejectsNonGET(t *testing.T) {
	hub := newTestHub(t)
	handler := WebSocketHandler(hub)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(method, "/ws", http.NoBody))
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}

func TestWebSocketHandlerWithoutUpgrade(t *testing.T) {
	hub := newTestHub(t)
	rec := httptest.NewRecorder()
	WebSocketHandler(hub)(rec, httptest.NewRequest(http.MethodGet, "/ws", http.NoBody))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestTestPageHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	TestPageHandler(rec, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "type: 'create'")
	assert.Contains(t, body, "'/ws'")
}

func TestSetupRoutes(t *testing.T) {
	hub := newTestHub(t)
	reg := prometheus.NewRegistry()
	metrics.New(reg).Rooms.Set(3)

	srv := httptest.NewServer(SetupRoutes(hub, reg))
	defer srv.Close()

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/", http.StatusOK, "Room relay is running!"},
		{"/healthz", http.StatusOK, `"status":"ok"`},
		{"/stats", http.StatusOK, `"rooms":0`},
		{"/test", http.StatusOK, "Room Relay Test"},
		{"/metrics", http.StatusOK, "roomrelay_rooms_active 3"},
		{"/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			body, _ := io.ReadAll(resp.Body)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.True(t, strings.Contains(string(body), tt.body), "body: %s", body)
		})
	}
}

func TestSetupRoutesWithoutMetrics(t *testing.T) {
	hub := newTestHub(t)
	srv := httptest.NewServer(SetupRoutes(hub, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateServer(t *testing.T) {
	srv := CreateServer(":0", http.NotFoundHandler())

	assert.Equal(t, ":0", srv.Addr)
	assert.Equal(t, 15*time.Second, srv.ReadTimeout)
	assert.Equal(t, 10*time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, 15*time.Second, srv.WriteTimeout)
	assert.Equal(t, 60*time.Second, srv.IdleTimeout)
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"dev", "prod"} {
		log, err := NewLogger(env, "debug")
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(-1), env)
	}

	log, err := NewLogger("prod", "")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(-1))

	_, err = NewLogger("dev", "loud")
	assert.Error(t, err)
}
