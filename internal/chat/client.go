package chat

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"go-relay/internal/identity"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 4096                // Maximum command size allowed from peer.

	sendBuffer = 256
)

// Client is a middleman between one websocket connection and the hub.
// The room and closed fields belong to the hub and are only touched
// under its lock.
type Client struct {
	ID       string
	Identity identity.Identity

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	room   string
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, ident identity.Identity) *Client {
	return &Client{
		ID:       uuid.NewString(),
		Identity: ident,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
	}
}

// readPump pumps commands from the websocket into the hub. One pump per
// connection; it unregisters the client on any read error.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("client %s read: %v", c.ID, err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.sendError(ErrInvalidPayload, "malformed command")
			continue
		}
		c.dispatch(cmd)
	}
}

// dispatch routes one inbound command to the hub. Errors go back to
// this connection only.
func (c *Client) dispatch(cmd Command) {
	ctx := context.Background()

	var err error
	switch cmd.Type {
	case "join":
		err = c.hub.Join(ctx, c, RoomSpec{Name: cmd.Room, Target: cmd.Target})
	case "leave":
		c.hub.Leave(c)
	case "message":
		_, err = c.hub.Send(ctx, c, Payload{
			Room:   cmd.Room,
			Target: cmd.Target,
			Text:   cmd.Text,
			File:   cmd.File,
		})
	case "pin":
		err = c.hub.Pin(ctx, c, cmd.Room, cmd.MessageID)
	case "unpin":
		err = c.hub.Unpin(ctx, c, cmd.Room)
	case "rename":
		err = c.hub.Rename(c, cmd.Username)
	default:
		c.sendError(ErrInvalidPayload, "unknown command type "+cmd.Type)
		return
	}
	if err != nil {
		c.sendError(err, err.Error())
	}
}

func (c *Client) sendError(err error, detail string) {
	c.hub.SendError(c, err, detail)
}

// writePump pumps events from the hub to the websocket connection,
// coalescing queued events into one frame and keeping the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush whatever else is queued in the same frame.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
