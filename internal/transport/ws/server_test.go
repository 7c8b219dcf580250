package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	f := newSessionFixture(35)
	srv := NewServer(f.hub, f.rooms, f.limiter, Options{
		PingInterval: time.Second,
		CheckOrigin:  NewOriginChecker([]string{"http://chat.example"}),
	})
	ts := httptest.NewServer(middleware.RealIP(http.HandlerFunc(srv.HandleWS)))
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, ip string) *websocket.Conn {
	t.Helper()
	h := http.Header{}
	h.Set("X-Real-IP", ip)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), h)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func write(t *testing.T, c *websocket.Conn, typ string, payload any) {
	t.Helper()
	require.NoError(t, c.WriteJSON(map[string]any{"type": typ, "payload": payload}))
}

// expect reads frames until one of type typ arrives.
func expect(t *testing.T, c *websocket.Conn, typ string) envelope {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var env envelope
		require.NoError(t, c.ReadJSON(&env))
		if env.Type == typ {
			return env
		}
	}
}

func TestServer_RoomLifecycle(t *testing.T) {
	_, ts := newTestServer(t)
	alice := dial(t, ts, "10.0.0.1")
	bob := dial(t, ts, "10.0.0.2")

	write(t, alice, TypeCreateRoom, CreateRoomPayload{CreatorID: "alice"})
	var roomID string
	require.NoError(t, json.Unmarshal(expect(t, alice, TypeRoomCreated).Payload, &roomID))
	require.NotEmpty(t, roomID)
	expect(t, alice, TypeUsersOnline)

	write(t, bob, TypeJoinRoom, JoinRoomPayload{RoomID: roomID, UserID: "bob"})
	var joined RoomJoinedPayload
	require.NoError(t, json.Unmarshal(expect(t, bob, TypeRoomJoined).Payload, &joined))
	require.Equal(t, RoomJoinedPayload{RoomID: roomID, IsCreator: false, MemberCount: 2}, joined)
	require.JSONEq(t, `[]`, string(expect(t, bob, TypePreviousMessages).Payload))
	require.JSONEq(t, `2`, string(expect(t, alice, TypeUsersOnline).Payload))

	write(t, bob, TypeChatMessage, ChatPayload{Text: "hello", User: "Bob"})
	var got ChatMessagePayload
	require.NoError(t, json.Unmarshal(expect(t, alice, TypeMessage).Payload, &got))
	require.Equal(t, "hello", got.Text)
	require.Equal(t, "Bob", got.User)
	expect(t, bob, TypeMessage)

	require.NoError(t, bob.Close())
	require.JSONEq(t, `1`, string(expect(t, alice, TypeUsersOnline).Payload))

	write(t, alice, TypeDeleteRoom, DeleteRoomPayload{RoomID: roomID, UserID: "alice"})
	var deleted RoomDeletedPayload
	require.NoError(t, json.Unmarshal(expect(t, alice, TypeRoomDeleted).Payload, &deleted))
	require.Equal(t, msgRoomDeleted, deleted.Message)
}

func TestServer_DuplicateOriginOverWire(t *testing.T) {
	_, ts := newTestServer(t)
	alice := dial(t, ts, "10.0.0.1")
	w1 := dial(t, ts, "10.0.0.2")
	w2 := dial(t, ts, "10.0.0.2")

	write(t, alice, TypeCreateRoom, CreateRoomPayload{CreatorID: "alice"})
	var roomID string
	require.NoError(t, json.Unmarshal(expect(t, alice, TypeRoomCreated).Payload, &roomID))

	write(t, w1, TypeJoinRoom, JoinRoomPayload{RoomID: roomID, UserID: "bob"})
	expect(t, w1, TypeRoomJoined)

	write(t, w2, TypeJoinRoom, JoinRoomPayload{RoomID: roomID, UserID: "bob"})
	var p ErrorPayload
	require.NoError(t, json.Unmarshal(expect(t, w2, TypeError).Payload, &p))
	require.Equal(t, msgDuplicate, p.Message)
}

func TestServer_RejectsForeignOrigin(t *testing.T) {
	_, ts := newTestServer(t)

	h := http.Header{}
	h.Set("Origin", "http://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), h)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	h.Set("Origin", "http://chat.example")
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), h)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestServer_ShutdownClosesConnections(t *testing.T) {
	srv, ts := newTestServer(t)
	c := dial(t, ts, "10.0.0.1")

	write(t, c, TypeCreateRoom, CreateRoomPayload{CreatorID: "alice"})
	expect(t, c, TypeRoomCreated)

	sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(sctx))

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
			break
		}
	}

	_, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.Error(t, err)
}

func TestOriginChecker(t *testing.T) {
	check := NewOriginChecker([]string{" https://Chat.Example/ ", ""})

	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	require.True(t, check(req("")))
	require.True(t, check(req("https://chat.example")))
	require.False(t, check(req("http://chat.example")))
	require.False(t, check(req("https://other.example")))

	require.True(t, NewOriginChecker([]string{"*"})(req("https://anything.example")))
}
