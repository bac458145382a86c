// Package store is the persistence collaborator for the message router.
// The hub only talks to the Store interface; the Postgres and in-memory
// implementations live beside it.
package store

import (
	"context"
	"time"
)

// Message kinds. A message carries exactly one of a text body or a file
// URL; Body holds whichever one it is.
const (
	KindText = "text"
	KindFile = "file"
)

type Message struct {
	ID         string    `json:"id"`
	Room       string    `json:"room"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Kind       string    `json:"kind"`
	Body       string    `json:"body"`
	Pinned     bool      `json:"pinned"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is what the hub needs from persistence. Append must be durable
// before it returns nil; the router fans out only after a nil Append.
// Query returns at most limit messages for a room, ascending by
// timestamp. GetPinned returns (nil, nil) when the room has no pin.
type Store interface {
	Append(ctx context.Context, msg *Message) error
	Query(ctx context.Context, room string, limit int) ([]Message, error)
	GetPinned(ctx context.Context, room string) (*Message, error)
	SetPinned(ctx context.Context, room string, msg *Message) error
}
