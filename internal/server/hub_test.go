package server

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/messenger/internal/config"
	"github.com/Tyrowin/messenger/internal/entities"
)

func newIdleClient(hub *Hub, addr string, sendBuffer int) *Client {
	return NewClient(nil, hub, nil, addr, config.SocketConfig{
		MaxMessageSize: 512,
		SendBuffer:     sendBuffer,
		RateLimit:      config.RateLimitConfig{Burst: 5, RefillInterval: time.Second},
	})
}

// addClient registers c without starting its pumps.
func addClient(h *Hub, c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[c] = true
}

func TestNewHub(t *testing.T) {
	hub := NewHub(zerolog.Nop(), 4)

	require.NotNil(t, hub)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
	assert.Equal(t, 4, cap(hub.broadcast))
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubFanOutToEveryClient(t *testing.T) {
	hub := NewHub(zerolog.Nop(), 4)
	clients := []*Client{
		newIdleClient(hub, "a", 4),
		newIdleClient(hub, "b", 4),
		newIdleClient(hub, "c", 4),
	}
	for _, c := range clients {
		addClient(hub, c)
	}

	hub.handleBroadcast(BroadcastMessage{Payload: []byte(`{"type":"NEW_MESSAGE"}`)})

	for _, c := range clients {
		select {
		case got := <-c.send:
			assert.JSONEq(t, `{"type":"NEW_MESSAGE"}`, string(got), "client %s", c.addr)
		default:
			t.Errorf("client %s received nothing", c.addr)
		}
	}
}

func TestHubDropsSlowClientAndKeepsGoing(t *testing.T) {
	hub := NewHub(zerolog.Nop(), 4)
	slow := newIdleClient(hub, "slow", 1)
	fast := newIdleClient(hub, "fast", 4)
	addClient(hub, slow)
	addClient(hub, fast)

	slow.send <- []byte("backlog")

	hub.handleBroadcast(BroadcastMessage{Payload: []byte("event")})

	assert.Equal(t, 1, hub.ClientCount())
	assert.True(t, slow.closed)

	<-slow.send
	_, open := <-slow.send
	assert.False(t, open, "slow client's queue is closed")

	assert.Equal(t, []byte("event"), <-fast.send)
}

func TestHubBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(zerolog.Nop(), 1)
	event := entities.NewMessageEvent("C1", entities.Message{ID: "m1", Owner: "U1"})

	done := make(chan struct{})
	go func() {
		hub.Broadcast(event)
		hub.Broadcast(event)
		hub.Broadcast(event)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a stopped hub")
	}
	assert.Len(t, hub.broadcast, 1, "overflowing events are dropped")
}

func TestHubBroadcastEncodesEnvelope(t *testing.T) {
	hub := NewHub(zerolog.Nop(), 1)

	hub.Broadcast(entities.NewMessageEvent("C1", entities.Message{
		ID:      "m1",
		Content: entities.Content{Text: "hi"},
		Owner:   "U1",
	}))

	msg := <-hub.broadcast
	assert.JSONEq(t,
		`{"type":"NEW_MESSAGE","payload":{"channelId":"C1","id":"m1","content":{"text":"hi"},"owner":"U1"}}`,
		string(msg.Payload))
}

func TestHubNoReplayForLateClients(t *testing.T) {
	hub := NewHub(zerolog.Nop(), 4)
	early := newIdleClient(hub, "early", 4)
	addClient(hub, early)

	hub.handleBroadcast(BroadcastMessage{Payload: []byte("first")})

	late := newIdleClient(hub, "late", 4)
	addClient(hub, late)

	assert.Len(t, early.send, 1)
	assert.Empty(t, late.send)
}

func TestHubShutdown(t *testing.T) {
	hub := NewHub(zerolog.Nop(), 4)

	stopped := make(chan struct{})
	go func() {
		hub.Run()
		close(stopped)
	}()

	require.NoError(t, hub.Shutdown(2*time.Second))

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("hub did not stop after shutdown")
	}

	assert.False(t, hub.Register(newIdleClient(hub, "after", 1)), "registration after shutdown is refused")
}

func TestHubIgnoresNilRegistration(t *testing.T) {
	hub := NewHub(zerolog.Nop(), 4)
	go hub.Run()
	defer func() { _ = hub.Shutdown(time.Second) }()

	select {
	case hub.register <- nil:
	case <-time.After(time.Second):
		t.Fatal("hub did not accept registration")
	}
	assert.Equal(t, 0, hub.ClientCount())
}
