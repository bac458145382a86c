package chat

import "strings"

// Room ids come in two shapes: a public room is named by an arbitrary
// string, a direct room by "dm:" plus the sorted pair of user ids so
// that either participant derives the same id.
const directPrefix = "dm:"

// CanonicalPair returns the direct-room id for two users, independent
// of argument order.
func CanonicalPair(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return directPrefix + a + ":" + b
}

// IsDirect reports whether a room id names a direct-message room.
func IsDirect(room string) bool {
	return strings.HasPrefix(room, directPrefix)
}

// RoomSpec is a join request: either a public room by name or a direct
// room by target user.
type RoomSpec struct {
	Name   string // public room name
	Target string // target user id for a DM
}

func (s RoomSpec) direct() bool {
	return s.Target != ""
}
