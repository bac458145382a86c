package chat

import (
	"encoding/json"
	"log"

	"go-relay/internal/presence"
	"go-relay/internal/store"
)

// Server -> client event tags.
const (
	EventMessage        = "message"
	EventHistory        = "messageHistory"
	EventPinned         = "updatePinnedMessage"
	EventUserList       = "updateUserList"
	EventReauthenticate = "reauthenticate"
	EventError          = "error"
)

// Event is the envelope for everything pushed to a client.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type historyPayload struct {
	Room     string          `json:"room"`
	Messages []store.Message `json:"messages"`
}

type pinnedPayload struct {
	Room    string         `json:"room"`
	Message *store.Message `json:"message"` // null when no pin
}

type userListPayload struct {
	Users []presence.OnlineUser `json:"users"`
}

type errorPayload struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

func encodeEvent(typ string, payload any) []byte {
	data, err := json.Marshal(Event{Type: typ, Payload: payload})
	if err != nil {
		// Payloads are our own structs; this only fires on a bug.
		log.Printf("encode %s event: %v", typ, err)
		return nil
	}
	return data
}

// Command is what a client sends over the websocket. Target is a user
// id and selects a DM; File is an uploaded file URL.
type Command struct {
	Type      string `json:"type"`
	Room      string `json:"room,omitempty"`
	Target    string `json:"target,omitempty"`
	Text      string `json:"text,omitempty"`
	File      string `json:"file,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Username  string `json:"username,omitempty"`
}
