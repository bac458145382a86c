// Package presence tracks which identities are online. A user is online
// iff at least one of their connections is open; several tabs collapse
// to one entry. The tracker holds no lock of its own: the hub is its
// only caller and already serializes all mutation.
package presence

import "sort"

type entry struct {
	username string
	conns    map[string]struct{}
}

// OnlineUser is one row of the deduplicated online view.
type OnlineUser struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type Tracker struct {
	users map[string]*entry
}

func NewTracker() *Tracker {
	return &Tracker{users: make(map[string]*entry)}
}

// OnConnect records a new connection for a user, creating the entry on
// their first connection.
func (t *Tracker) OnConnect(userID, username, connID string) {
	e, ok := t.users[userID]
	if !ok {
		e = &entry{username: username, conns: make(map[string]struct{})}
		t.users[userID] = e
	}
	e.conns[connID] = struct{}{}
}

// OnDisconnect drops a connection; the user goes offline only when
// their last connection is gone.
func (t *Tracker) OnDisconnect(userID, connID string) {
	e, ok := t.users[userID]
	if !ok {
		return
	}
	delete(e.conns, connID)
	if len(e.conns) == 0 {
		delete(t.users, userID)
	}
}

// Rename updates the displayed name without touching online status.
func (t *Tracker) Rename(userID, username string) {
	if e, ok := t.users[userID]; ok {
		e.username = username
	}
}

// Online reports whether the user has any open connection.
func (t *Tracker) Online(userID string) bool {
	_, ok := t.users[userID]
	return ok
}

// Connections returns the ids of the user's open connections.
func (t *Tracker) Connections(userID string) []string {
	e, ok := t.users[userID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(e.conns))
	for id := range e.conns {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns one row per online user, sorted by user id so
// repeated snapshots of the same state compare equal.
func (t *Tracker) Snapshot() []OnlineUser {
	out := make([]OnlineUser, 0, len(t.users))
	for id, e := range t.users {
		out = append(out, OnlineUser{UserID: id, Username: e.username})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
