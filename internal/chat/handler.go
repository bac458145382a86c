package chat

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"go-relay/internal/identity"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (dev mode)
	},
}

// TokenValidator is what the handler needs from the auth service. It
// keeps this package decoupled from the user package.
type TokenValidator interface {
	ValidateToken(tokenString string) (identity.Identity, error)
}

type Handler struct {
	hub       *Hub
	validator TokenValidator
}

func NewHandler(hub *Hub, validator TokenValidator) *Handler {
	return &Handler{hub: hub, validator: validator}
}

// ServeWs upgrades the connection and binds an identity to it. Binding
// happens exactly once, here: a connection that cannot present a valid
// token gets a reauthenticate event and is closed, and nothing else is
// ever emitted for it.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	ident, err := h.validator.ValidateToken(r.URL.Query().Get("token"))
	if err != nil || !ident.Bound() {
		conn.WriteMessage(websocket.TextMessage, encodeEvent(EventReauthenticate, nil))
		conn.Close()
		return
	}

	client := newClient(h.hub, conn, ident)
	h.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

// GetHistory serves the same replay tail as the websocket join path,
// over plain HTTP: GET /api/messages?room=<id>&limit=<n>.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}
	limit := HistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		if n < limit {
			limit = n
		}
	}

	msgs, err := h.hub.store.Query(r.Context(), room, limit)
	if err != nil {
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}

// GetOnlineUsers serves the deduplicated presence snapshot:
// GET /api/users/online.
func (h *Handler) GetOnlineUsers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.hub.Snapshot())
}
