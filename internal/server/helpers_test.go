package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/messenger/internal/config"
	"github.com/Tyrowin/messenger/internal/directory"
	"github.com/Tyrowin/messenger/internal/messaging"
)

const testOrigin = "http://localhost:9090"

type testEnv struct {
	cfg *config.Config
	hub *Hub
	svc *messaging.Service
	e   *echo.Echo
}

// newTestEnv wires a running hub, a seeded service and the routes. mutate may
// adjust the configuration before anything is built.
func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Simulator.Enabled = false
	cfg.Server.AllowedOrigins = []string{testOrigin}
	if mutate != nil {
		mutate(cfg)
	}
	sanitized := config.Sanitize(*cfg)
	cfg = &sanitized

	log := zerolog.Nop()
	hub := NewHub(log, cfg.Hub.BroadcastBuffer)
	go hub.Run()
	t.Cleanup(func() {
		_ = hub.Shutdown(2 * time.Second)
	})

	svc := messaging.New(directory.New(directory.DefaultUsers()), hub, log)
	handlers, err := NewHandlers(svc, hub, cfg, "U1", log)
	require.NoError(t, err)

	return &testEnv{
		cfg: cfg,
		hub: hub,
		svc: svc,
		e:   SetupRoutes(handlers, cfg, log),
	}
}

// do serves a request against the routes without a network listener.
func (env *testEnv) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, http.NoBody)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// buildWebSocketURL turns an httptest server URL into the live-update endpoint.
func buildWebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// connectWebSocket dials url with the given Origin header.
func connectWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Origin", origin)

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// expectNoMessage fails the test if conn receives a frame within timeout.
func expectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Errorf("expected no message, got %s", data)
	}
}
