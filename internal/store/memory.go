package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is a mutex-guarded in-process store. The server falls back to
// it when no DB_DSN is configured, and the tests use it directly.
type Memory struct {
	mu       sync.RWMutex
	messages map[string][]Message // room -> ascending by CreatedAt
	pins     map[string]Message
}

func NewMemory() *Memory {
	return &Memory{
		messages: make(map[string][]Message),
		pins:     make(map[string]Message),
	}
}

func (m *Memory) Append(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.Room] = append(m.messages[msg.Room], *msg)
	return nil
}

func (m *Memory) Query(_ context.Context, room string, limit int) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[room]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) GetPinned(_ context.Context, room string) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.pins[room]
	if !ok {
		return nil, nil
	}
	msg.Pinned = true
	return &msg, nil
}

func (m *Memory) SetPinned(_ context.Context, room string, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg == nil {
		delete(m.pins, room)
		return nil
	}
	m.pins[room] = *msg
	return nil
}

// Count reports how many messages a room holds. Handy for tests and the
// stats endpoint; not part of the Store interface.
func (m *Memory) Count(room string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[room])
}
