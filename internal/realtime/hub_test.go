package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopback is an in-process stand-in for the Redis channel.
type loopback struct {
	mu       sync.Mutex
	handlers []func(string, []byte)
	err      error
	sent     int
}

func (l *loopback) Publish(_ context.Context, event string, payload []byte) error {
	l.mu.Lock()
	if l.err != nil {
		l.mu.Unlock()
		return l.err
	}
	l.sent++
	hs := append([]func(string, []byte){}, l.handlers...)
	l.mu.Unlock()
	for _, h := range hs {
		h(event, payload)
	}
	return nil
}

func (l *loopback) Subscribe(_ context.Context, handler func(string, []byte)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, handler)
	return func() {}, nil
}

func testClient(h *Hub) *Client {
	c := &Client{ID: uuid.NewString(), UserID: uuid.New(), hub: h, send: make(chan WSMessage, 4), done: make(chan struct{})}
	h.Register(c)
	return c
}

func TestNotifyFansOutAcrossInstances(t *testing.T) {
	bus := &loopback{}
	a, b := NewHub(nil, bus), NewHub(nil, bus)
	require.NoError(t, a.Start(context.Background(), bus))
	require.NoError(t, b.Start(context.Background(), bus))
	ca, cb := testClient(a), testClient(b)

	a.Notify(context.Background(), "team_created", map[string]string{"name": "Eagles"})

	for _, c := range []*Client{ca, cb} {
		select {
		case msg := <-c.send:
			assert.Equal(t, "team_created", msg.Event)
			assert.JSONEq(t, `{"name":"Eagles"}`, string(msg.Data))
		default:
			t.Fatal("event not delivered")
		}
		assert.Empty(t, c.send, "delivered exactly once")
	}
	assert.Equal(t, 1, bus.sent)
}

func TestNotifyFallsBackToLocal(t *testing.T) {
	bus := &loopback{err: errors.New("redis down")}
	h := NewHub(nil, bus)
	c := testClient(h)

	h.Notify(context.Background(), "member_left", map[string]string{"team_id": "t1"})
	require.Len(t, c.send, 1)
	assert.Equal(t, "member_left", (<-c.send).Event)

	local := NewHub(nil, nil)
	lc := testClient(local)
	local.Notify(context.Background(), "team_deleted", nil)
	assert.Len(t, lc.send, 1)
}

func TestBroadcastSkipsFullClients(t *testing.T) {
	h := NewHub(nil, nil)
	c := testClient(h)
	for i := 0; i < 10; i++ {
		h.Broadcast("team_updated", []byte(`{}`))
	}
	assert.Len(t, c.send, cap(c.send))

	h.Unregister(c)
	assert.Equal(t, 0, h.ClientCount())
}

func TestServeWs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	user := uuid.New()
	hub := NewHub(nil, nil)
	r := gin.New()
	r.GET("/ws/teams", ServeWs(hub, nil, func(token string) (uuid.UUID, error) {
		if token != "good" {
			return uuid.Nil, errors.New("bad token")
		}
		return user, nil
	}))
	srv := httptest.NewServer(r)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/teams"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=bad", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=good", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Notify(context.Background(), "member_joined", map[string]string{"team_id": "t1"})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "member_joined", msg.Event)
	var data map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "t1", data["team_id"])

	require.NoError(t, conn.WriteJSON(WSMessage{Event: "ping"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg.Event)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}
