package chat

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-relay/internal/presence"
	"go-relay/internal/store"
)

// HistoryLimit caps how many messages a join replays.
const HistoryLimit = 50

// Hub is the single writer over all routing state: the connection
// registry, room membership, presence, and pinned messages. Every
// state-mutating operation runs under one mutex, so within a room all
// connections observe messages in the order the hub committed them.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]*Client // by connection id
	presence *presence.Tracker
	store    store.Store
	bridge   *Bridge // nil when running single-instance
}

func NewHub(st store.Store, bridge *Bridge) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		presence: presence.NewTracker(),
		store:    st,
		bridge:   bridge,
	}
}

// Register adds a bound connection and publishes the new online view to
// everyone. Callers must only register clients with a bound identity;
// the handler enforces that boundary.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.ID] = c
	h.presence.OnConnect(c.Identity.UserID, c.Identity.Username, c.ID)
	log.Printf("client %s registered (user %s). total clients: %d", c.ID, c.Identity.UserID, len(h.clients))
	h.pushUserListLocked()
}

// Unregister removes a connection from membership and presence before
// any later fan-out can consider it a target, then publishes the
// updated online view.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	h.removeClientLocked(c)
	log.Printf("client %s unregistered (user %s). total clients: %d", c.ID, c.Identity.UserID, len(h.clients))
	h.pushUserListLocked()
}

// Join moves the connection into the room named by spec, leaving any
// previous room first, then replays recent history and, for public
// rooms, the current pinned state.
func (h *Hub) Join(ctx context.Context, c *Client, spec RoomSpec) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !c.Identity.Bound() {
		return ErrUnauthenticated
	}

	var room string
	switch {
	case spec.direct():
		room = CanonicalPair(c.Identity.UserID, spec.Target)
	case spec.Name != "":
		// The dm: namespace is reserved: joining a pair's room by name
		// would hand out their history.
		if IsDirect(spec.Name) {
			return fmt.Errorf("%w: %q is a direct-room id, join by target user", ErrInvalidPayload, spec.Name)
		}
		room = spec.Name
	default:
		return fmt.Errorf("%w: join needs a room name or a target user", ErrInvalidPayload)
	}

	// Implicit leave: overwriting the field is the leave, so the
	// connection is never transiently in two rooms.
	c.room = room

	msgs, err := h.store.Query(ctx, room, HistoryLimit)
	if err != nil {
		return fmt.Errorf("%w: history for %s: %v", ErrPersistence, room, err)
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	h.deliverLocked(c, encodeEvent(EventHistory, historyPayload{Room: room, Messages: msgs}))

	if !IsDirect(room) {
		pinned, err := h.store.GetPinned(ctx, room)
		if err != nil {
			return fmt.Errorf("%w: pinned state for %s: %v", ErrPersistence, room, err)
		}
		h.deliverLocked(c, encodeEvent(EventPinned, pinnedPayload{Room: room, Message: pinned}))
	}
	return nil
}

// Leave detaches the connection from its current room. Leaving when not
// in a room is a no-op.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.room = ""
}

// Payload is one send request. Exactly one of Text and File must be
// set; exactly one of Room and Target picks a public or a direct room.
type Payload struct {
	Room   string
	Target string
	Text   string
	File   string
}

// Send validates, persists, and fans out one message. The sender is
// always the connection's bound identity. Persistence happens first: a
// store failure returns an error to the sender and nothing is
// delivered, so no client ever sees a message missing from history.
func (h *Hub) Send(ctx context.Context, c *Client, p Payload) (*store.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !c.Identity.Bound() {
		return nil, ErrUnauthenticated
	}
	if (p.Text == "") == (p.File == "") {
		return nil, fmt.Errorf("%w: exactly one of text and file must be set", ErrInvalidPayload)
	}

	var room string
	direct := p.Target != ""
	switch {
	case direct:
		room = CanonicalPair(c.Identity.UserID, p.Target)
	case p.Room != "":
		if IsDirect(p.Room) {
			return nil, fmt.Errorf("%w: direct rooms are addressed by target user", ErrInvalidPayload)
		}
		// Public sends require membership; DM sends do not.
		if c.room != p.Room {
			return nil, fmt.Errorf("%w: %s", ErrNotInRoom, p.Room)
		}
		room = p.Room
	default:
		return nil, fmt.Errorf("%w: send needs a room or a target user", ErrInvalidPayload)
	}

	msg := &store.Message{
		ID:         uuid.NewString(),
		Room:       room,
		SenderID:   c.Identity.UserID,
		SenderName: c.Identity.Username,
		Kind:       store.KindText,
		Body:       p.Text,
		CreatedAt:  time.Now().UTC(),
	}
	if p.File != "" {
		msg.Kind = store.KindFile
		msg.Body = p.File
	}

	if err := h.store.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	data := encodeEvent(EventMessage, msg)
	if direct {
		h.fanOutUsersLocked(data, c.Identity.UserID, p.Target)
		h.publishBridge(BridgeEnvelope{Users: []string{c.Identity.UserID, p.Target}, Payload: data})
	} else {
		h.fanOutRoomLocked(room, data)
		h.publishBridge(BridgeEnvelope{Room: room, Payload: data})
	}
	return msg, nil
}

// Pin sets the single pinned message of a public room to one of its
// recent messages, replacing any previous pin, and broadcasts the new
// state to the room.
func (h *Hub) Pin(ctx context.Context, c *Client, room, messageID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !c.Identity.Bound() {
		return ErrUnauthenticated
	}
	if IsDirect(room) {
		return fmt.Errorf("%w: direct rooms have no pinned message", ErrNotApplicable)
	}

	msgs, err := h.store.Query(ctx, room, HistoryLimit)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	var pinned *store.Message
	for i := range msgs {
		if msgs[i].ID == messageID {
			pinned = &msgs[i]
			break
		}
	}
	if pinned == nil {
		return fmt.Errorf("%w: unknown message %s in %s", ErrInvalidPayload, messageID, room)
	}
	pinned.Pinned = true

	if err := h.store.SetPinned(ctx, room, pinned); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	h.broadcastPinnedLocked(room, pinned)
	return nil
}

// Unpin clears a public room's pinned message. Unpinning a room with no
// pin is a no-op success.
func (h *Hub) Unpin(ctx context.Context, c *Client, room string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !c.Identity.Bound() {
		return ErrUnauthenticated
	}
	if IsDirect(room) {
		return fmt.Errorf("%w: direct rooms have no pinned message", ErrNotApplicable)
	}
	if err := h.store.SetPinned(ctx, room, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	h.broadcastPinnedLocked(room, nil)
	return nil
}

// Rename changes the username on every open connection of the user and
// republishes the online view. Online status is untouched.
func (h *Hub) Rename(c *Client, username string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !c.Identity.Bound() {
		return ErrUnauthenticated
	}
	if username == "" {
		return fmt.Errorf("%w: empty username", ErrInvalidPayload)
	}
	for _, other := range h.clients {
		if other.Identity.UserID == c.Identity.UserID {
			other.Identity.Username = username
		}
	}
	h.presence.Rename(c.Identity.UserID, username)
	h.pushUserListLocked()
	return nil
}

// SendError queues an error event for the originating connection only.
// Delivery goes through the same locked path as fan-out, so a client
// the hub already dropped is skipped instead of hitting its closed
// channel.
func (h *Hub) SendError(c *Client, err error, detail string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(c, encodeEvent(EventError, errorPayload{Code: errorCode(err), Detail: detail}))
}

// Snapshot returns the deduplicated online view.
func (h *Hub) Snapshot() []presence.OnlineUser {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.presence.Snapshot()
}

// Room reports the connection's current room ("" when none).
func (h *Hub) Room(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.room
}

// DeliverRemote fans out an event published by another instance via the
// bridge. The origin instance already persisted it; this is local
// delivery only.
func (h *Hub) DeliverRemote(env BridgeEnvelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if env.Room != "" {
		h.fanOutRoomLocked(env.Room, []byte(env.Payload))
	}
	if len(env.Users) > 0 {
		h.fanOutUsersLocked([]byte(env.Payload), env.Users...)
	}
}

func (h *Hub) publishBridge(env BridgeEnvelope) {
	if h.bridge == nil {
		return
	}
	if err := h.bridge.Publish(context.Background(), env); err != nil {
		log.Printf("bridge publish: %v", err)
	}
}

func (h *Hub) broadcastPinnedLocked(room string, msg *store.Message) {
	data := encodeEvent(EventPinned, pinnedPayload{Room: room, Message: msg})
	h.fanOutRoomLocked(room, data)
	h.publishBridge(BridgeEnvelope{Room: room, Payload: data})
}

// fanOutRoomLocked delivers to every connection currently in the room.
// Membership is derived from the clients' room fields, not stored
// separately.
func (h *Hub) fanOutRoomLocked(room string, data []byte) {
	var failed []*Client
	for _, c := range h.clients {
		if c.room != room {
			continue
		}
		if !h.deliverLocked(c, data) {
			failed = append(failed, c)
		}
	}
	h.dropFailedLocked(failed)
}

// fanOutUsersLocked delivers to every open connection of the given
// users, whatever room each connection is in. Duplicate user ids (a
// self-DM) collapse naturally: each connection is visited once.
func (h *Hub) fanOutUsersLocked(data []byte, userIDs ...string) {
	targets := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		targets[id] = struct{}{}
	}
	var failed []*Client
	for _, c := range h.clients {
		if _, ok := targets[c.Identity.UserID]; !ok {
			continue
		}
		if !h.deliverLocked(c, data) {
			failed = append(failed, c)
		}
	}
	h.dropFailedLocked(failed)
}

func (h *Hub) pushUserListLocked() {
	data := encodeEvent(EventUserList, userListPayload{Users: h.presence.Snapshot()})
	for _, c := range h.clients {
		// Failures here are left to the client's own pump teardown.
		h.deliverLocked(c, data)
	}
}

// deliverLocked queues data on the client's send channel without
// blocking. A full buffer means the client is too slow to keep up.
func (h *Hub) deliverLocked(c *Client, data []byte) bool {
	if c.closed || data == nil {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// dropFailedLocked evicts clients whose send buffers overflowed, the
// same way the pump teardown would, then republishes the online view.
func (h *Hub) dropFailedLocked(failed []*Client) {
	if len(failed) == 0 {
		return
	}
	for _, c := range failed {
		if _, ok := h.clients[c.ID]; ok {
			log.Printf("client %s dropped: send buffer full", c.ID)
			h.removeClientLocked(c)
		}
	}
	h.pushUserListLocked()
}

func (h *Hub) removeClientLocked(c *Client) {
	delete(h.clients, c.ID)
	c.room = ""
	c.closed = true
	close(c.send)
	h.presence.OnDisconnect(c.Identity.UserID, c.ID)
}
