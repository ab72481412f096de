package websocket

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/config"
	"github.com/xingfanxia/iron-condor-combo-finder/pkg/contracts/events"
)

func TestTimingFrom(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.WebSocketConfig
		want Timing
	}{
		{"defaults", config.WebSocketConfig{}, DefaultTiming()},
		{"pong only", config.WebSocketConfig{PongWait: 10 * time.Second}, Timing{PongWait: 10 * time.Second, PingPeriod: 9 * time.Second}},
		{"both", config.WebSocketConfig{PongWait: 60 * time.Second, PingPeriod: 30 * time.Second}, Timing{PongWait: 60 * time.Second, PingPeriod: 30 * time.Second}},
		{"ping beyond pong ignored", config.WebSocketConfig{PongWait: 10 * time.Second, PingPeriod: 20 * time.Second}, Timing{PongWait: 10 * time.Second, PingPeriod: 9 * time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TimingFrom(tt.cfg))
		})
	}
}

func TestClient_WritePump(t *testing.T) {
	hub := startHub(t)
	conn := newMockConnection()
	client := NewClient(hub, conn, "trace-w", DefaultTiming(), quietLogger())

	done := make(chan struct{})
	go func() {
		client.WritePump()
		close(done)
	}()

	hub.Register(client)
	hub.BroadcastEvent(string(events.MessageTypeSearchCompleted), events.SearchCompleted{Symbol: "SPX"}, "")

	require.Eventually(t, func() bool { return len(conn.messages()) == 2 }, time.Second, 5*time.Millisecond)
	msgs := conn.messages()
	assert.Equal(t, websocket.TextMessage, msgs[0].Type)
	assert.Contains(t, string(msgs[0].Data), `"type":"connect"`)
	assert.Contains(t, string(msgs[1].Data), `"symbol":"SPX"`)

	hub.Unregister(client)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write pump did not exit")
	}
	assert.True(t, conn.isClosed())
}

func TestClient_WritePumpStopsOnError(t *testing.T) {
	conn := newMockConnection()
	conn.writeErr = errors.New("broken pipe")
	client := NewClient(NewHub(quietLogger(), nil), conn, "", DefaultTiming(), quietLogger())
	client.send <- []byte("{}")

	done := make(chan struct{})
	go func() {
		client.WritePump()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write pump did not exit")
	}
	assert.True(t, conn.isClosed())
}

func TestClient_ReadPump(t *testing.T) {
	hub := startHub(t)
	conn := newMockConnection()
	client := NewClient(hub, conn, "", DefaultTiming(), quietLogger())
	hub.Register(client)
	receive(t, client)

	done := make(chan struct{})
	go func() {
		client.ReadPump()
		close(done)
	}()

	conn.queue(`{"type":"heartbeat"}`)
	conn.queue("hello")

	require.Eventually(t, func() bool {
		return hub.Metrics().GetSnapshot()["messages"].(map[string]interface{})["received"] == int64(2)
	}, time.Second, 5*time.Millisecond)

	conn.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read pump did not exit")
	}
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, maxMessageSize, conn.readLim)
	assert.NotNil(t, conn.pong)
}

func TestHandler_EndToEnd(t *testing.T) {
	hub := startHub(t)
	handler := NewHandler(hub, config.Default().WebSocket, nil, quietLogger())
	srv := httptest.NewServer(handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var greeting events.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, events.MessageTypeConnect, greeting.Type)
	assert.NotEmpty(t, greeting.TraceID)

	hub.BroadcastEvent(string(events.MessageTypeSearchCompleted), events.SearchCompleted{Symbol: "IWM", Count: 1}, "trace-e2e")

	var msg events.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, events.MessageTypeSearchCompleted, msg.Type)
	assert.Equal(t, "trace-e2e", msg.TraceID)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHandler_RejectsOrigin(t *testing.T) {
	hub := startHub(t)
	handler := NewHandler(hub, config.Default().WebSocket, []string{"http://allowed.example"}, quietLogger())
	srv := httptest.NewServer(handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://allowed.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}
