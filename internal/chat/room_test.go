package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalPairIsOrderIndependent(t *testing.T) {
	assert.Equal(t, CanonicalPair("alice", "bob"), CanonicalPair("bob", "alice"))
	assert.Equal(t, "dm:alice:bob", CanonicalPair("bob", "alice"))
	assert.Equal(t, "dm:alice:alice", CanonicalPair("alice", "alice"))
}

func TestIsDirect(t *testing.T) {
	assert.True(t, IsDirect(CanonicalPair("a", "b")))
	assert.False(t, IsDirect("general"))
	assert.False(t, IsDirect(""))
}
