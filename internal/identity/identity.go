// Package identity defines the authenticated identity attached to every
// live connection. The identity is resolved by the auth layer before the
// hub ever sees the connection; the hub only reads it.
package identity

import "github.com/google/uuid"

type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Guest    bool   `json:"guest"`
}

// NewRegistered builds the identity of a logged-in user.
func NewRegistered(userID, username string) Identity {
	return Identity{UserID: userID, Username: username}
}

// NewGuest builds a guest identity with a generated user id. Guests are
// real identities (presence, DMs, sends all work); only the id source
// differs.
func NewGuest(username string) Identity {
	return Identity{
		UserID:   "guest-" + uuid.NewString(),
		Username: username,
		Guest:    true,
	}
}

// Bound reports whether the identity carries a usable user id. A zero
// Identity is unbound and must never reach the hub.
func (i Identity) Bound() bool {
	return i.UserID != ""
}
