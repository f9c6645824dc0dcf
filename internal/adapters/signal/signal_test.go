package signal

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

func newTestServer(t *testing.T) (*httptest.Server, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := t.Context()

	o := orch.New(app.NewRegistry(), app.NewRoomManager(ctx, 0), app.SimplePolicy{})
	ice := []webrtc.ICEServer{{URLs: []string{"stun:stun.example.com:3478"}}}
	ctl := NewSignalWSController(o, NewChatRateLimiter(3, time.Minute), ice, DefaultOptions())

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("client_token", "tok")
		ctl.HandleSignal(ctx, c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, o
}

func dial(t *testing.T, srv *httptest.Server) (*websocket.Conn, string) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	welcome := readUntil(t, ws, core.EventWelcome)
	id, _ := welcome["connectionId"].(string)
	require.NotEmpty(t, id)
	return ws, id
}

func readUntil(t *testing.T, ws *websocket.Conn, typ string) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var ev map[string]any
		require.NoError(t, ws.ReadJSON(&ev), "waiting for %s", typ)
		if ev["type"] == typ {
			return ev
		}
	}
}

func send(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(v))
}

func TestSignal_EndToEnd(t *testing.T) {
	srv, o := newTestServer(t)

	alice, aliceID := dial(t, srv)
	send(t, alice, map[string]any{"type": core.MsgJoinCall, "roomId": "abc", "displayName": "Alice"})
	stats := readUntil(t, alice, core.EventRoomStats)
	assert.EqualValues(t, 1, stats["participantCount"])

	bob, bobID := dial(t, srv)
	assert.NotEqual(t, aliceID, bobID)
	send(t, bob, map[string]any{"type": core.MsgJoinCall, "roomId": "abc", "displayName": "Bob"})

	for _, ws := range []*websocket.Conn{alice, bob} {
		joined := readUntil(t, ws, core.EventUserJoined)
		assert.Equal(t, []any{aliceID, bobID}, joined["members"])
	}

	send(t, alice, map[string]any{"type": core.MsgChat, "data": "hello", "sender": "Alice"})
	for _, ws := range []*websocket.Conn{alice, bob} {
		msg := readUntil(t, ws, core.EventChatMessage)
		assert.Equal(t, "hello", msg["data"])
		assert.Equal(t, aliceID, msg["senderConnectionId"])
	}

	send(t, bob, map[string]any{"type": core.MsgSignal, "toConnectionId": aliceID, "payload": map[string]any{"type": "offer", "sdp": "v=0"}})
	sig := readUntil(t, alice, core.EventSignal)
	assert.Equal(t, bobID, sig["fromConnectionId"])
	assert.Equal(t, map[string]any{"type": "offer", "sdp": "v=0"}, sig["payload"])

	send(t, bob, map[string]any{"type": core.MsgSignal, "toConnectionId": "nobody", "payload": map[string]any{}})
	sigErr := readUntil(t, bob, core.EventSignalError)
	assert.Equal(t, "nobody", sigErr["target"])

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("garbage")))
	readUntil(t, alice, core.EventError)

	require.NoError(t, alice.Close())
	left := readUntil(t, bob, core.EventUserLeft)
	assert.Equal(t, aliceID, left["connectionId"])
	assert.Equal(t, "Alice", left["displayName"])

	assert.Eventually(t, func() bool { return o.Registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestSignal_ChatRateLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	ws, _ := dial(t, srv)
	send(t, ws, map[string]any{"type": core.MsgJoinCall, "roomId": "abc", "displayName": "Alice"})
	readUntil(t, ws, core.EventRoomStats)

	for i := range 4 {
		send(t, ws, map[string]any{"type": core.MsgChat, "data": strings.Repeat("x", i+1), "sender": "Alice"})
	}
	ev := readUntil(t, ws, core.EventChatError)
	assert.Equal(t, "rate limited", ev["message"])
}

func TestSignal_KickedConnectionLeavesRoom(t *testing.T) {
	srv, o := newTestServer(t)
	ws, id := dial(t, srv)
	send(t, ws, map[string]any{"type": core.MsgJoinCall, "roomId": "abc"})
	readUntil(t, ws, core.EventRoomStats)

	require.True(t, o.Registry.Cancel(domain.ConnID(id)))

	assert.Eventually(t, func() bool {
		_, ok := o.Rooms.Get("abc")
		return !ok && o.Registry.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
