package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgAt(room, body string, ts time.Time) *Message {
	return &Message{
		ID:        body,
		Room:      room,
		SenderID:  "u1",
		Kind:      KindText,
		Body:      body,
		CreatedAt: ts,
	}
}

func TestQueryReturnsAscendingTail(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Append(ctx, msgAt("general", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Second))))
	}

	msgs, err := m.Query(ctx, "general", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m2", msgs[0].Body)
	assert.Equal(t, "m4", msgs[2].Body)

	all, err := m.Query(ctx, "general", 50)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, 5, m.Count("general"))
}

func TestQueryIsolatesRooms(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, m.Append(ctx, msgAt("a", "in-a", now)))
	require.NoError(t, m.Append(ctx, msgAt("b", "in-b", now)))

	msgs, err := m.Query(ctx, "a", 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "in-a", msgs[0].Body)

	empty, err := m.Query(ctx, "c", 50)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestQueryHasNoSideEffects(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Append(ctx, msgAt("a", "x", time.Now().UTC())))

	first, err := m.Query(ctx, "a", 50)
	require.NoError(t, err)
	second, err := m.Query(ctx, "a", 50)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPinnedLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	pinned, err := m.GetPinned(ctx, "general")
	require.NoError(t, err)
	assert.Nil(t, pinned, "absent rooms have no pin")

	msg := msgAt("general", "keep", time.Now().UTC())
	require.NoError(t, m.SetPinned(ctx, "general", msg))

	pinned, err = m.GetPinned(ctx, "general")
	require.NoError(t, err)
	require.NotNil(t, pinned)
	assert.Equal(t, "keep", pinned.Body)
	assert.True(t, pinned.Pinned)

	require.NoError(t, m.SetPinned(ctx, "general", nil))
	pinned, err = m.GetPinned(ctx, "general")
	require.NoError(t, err)
	assert.Nil(t, pinned)

	// Clearing twice stays a no-op.
	require.NoError(t, m.SetPinned(ctx, "general", nil))
}
