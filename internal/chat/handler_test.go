package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-relay/internal/identity"
	"go-relay/internal/store"
)

type stubValidator struct {
	idents map[string]identity.Identity
}

func (s stubValidator) ValidateToken(tok string) (identity.Identity, error) {
	if ident, ok := s.idents[tok]; ok {
		return ident, nil
	}
	return identity.Identity{}, errors.New("bad token")
}

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub(store.NewMemory(), nil)
	handler := NewHandler(hub, stubValidator{idents: map[string]identity.Identity{
		"alice-token": identity.NewRegistered("u1", "alice"),
		"bob-token":   identity.NewRegistered("u2", "bob"),
	}})
	srv := httptest.NewServer(http.HandlerFunc(handler.ServeWs))
	t.Cleanup(srv.Close)
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// awaitEvent reads frames (which may coalesce several newline-separated
// events) until one of the wanted type arrives.
func awaitEvent(t *testing.T, conn *websocket.Conn, typ string) rawEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)
		for _, raw := range bytes.Split(frame, []byte{'\n'}) {
			var ev rawEvent
			require.NoError(t, json.Unmarshal(raw, &ev))
			if ev.Type == typ {
				return ev
			}
		}
	}
	t.Fatalf("no %s event before deadline", typ)
	return rawEvent{}
}

func TestServeWsRejectsBadTokenWithReauthenticate(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "forged")

	ev := awaitEvent(t, conn, EventReauthenticate)
	assert.Equal(t, EventReauthenticate, ev.Type)

	// Nothing follows; the server closed the connection.
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestServeWsEndToEnd(t *testing.T) {
	srv, _ := newTestServer(t)

	a := dial(t, srv, "alice-token")
	b := dial(t, srv, "bob-token")
	awaitEvent(t, a, EventUserList)
	awaitEvent(t, b, EventUserList)

	require.NoError(t, a.WriteJSON(Command{Type: "join", Room: "general"}))
	require.NoError(t, b.WriteJSON(Command{Type: "join", Room: "general"}))
	awaitEvent(t, a, EventHistory)
	awaitEvent(t, b, EventHistory)

	require.NoError(t, a.WriteJSON(Command{Type: "message", Room: "general", Text: "hi"}))

	for _, conn := range []*websocket.Conn{a, b} {
		ev := awaitEvent(t, conn, EventMessage)
		var msg store.Message
		require.NoError(t, json.Unmarshal(ev.Payload, &msg))
		assert.Equal(t, "hi", msg.Body)
		assert.Equal(t, "u1", msg.SenderID)
		assert.Equal(t, "general", msg.Room)
	}
}

func TestServeWsSurfacesErrorsToSenderOnly(t *testing.T) {
	srv, _ := newTestServer(t)

	a := dial(t, srv, "alice-token")
	awaitEvent(t, a, EventUserList)

	// Sending to a room never joined comes back as not_in_room.
	require.NoError(t, a.WriteJSON(Command{Type: "message", Room: "general", Text: "hi"}))
	ev := awaitEvent(t, a, EventError)
	var p errorPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	assert.Equal(t, "not_in_room", p.Code)

	// Unknown command types are invalid payloads.
	require.NoError(t, a.WriteJSON(Command{Type: "dance"}))
	ev = awaitEvent(t, a, EventError)
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	assert.Equal(t, "invalid_payload", p.Code)
}
