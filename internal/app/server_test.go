package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tush00nka/schoolconnect_chat/internal/handler"
	"tush00nka/schoolconnect_chat/internal/pkg/auth"
	"tush00nka/schoolconnect_chat/internal/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStats ws.HubStats

func (s fixedStats) GetStats() ws.HubStats { return ws.HubStats(s) }

func newTestServer() *Server {
	return NewServer(Routes{
		Realtime: handler.NewWSHandler(nil),
		Stats:    fixedStats{Rooms: 2, Connections: 3},
		Tokens:   auth.NewManager("test-key"),
	}, []string{"http://localhost:3000"})
}

func TestCORSPreflightRequest(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest("OPTIONS", "/api/rooms", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %v, want http://localhost:3000", got)
	}

	// For OPTIONS requests, gorilla/handlers sets the Allow-Headers based on request
	if rr.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Error("Access-Control-Allow-Headers should not be empty for OPTIONS request")
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest("GET", "/api/ping", nil)
	req.Header.Set("Origin", "http://example.com")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestPublicEndpoints(t *testing.T) {
	server := newTestServer()

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/api/stats", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var stats ws.HubStats
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Rooms)
	assert.Equal(t, 3, stats.Connections)

	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/api/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSecuredEndpointsNeedToken(t *testing.T) {
	server := newTestServer()

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/api/ws/rooms/r1", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
