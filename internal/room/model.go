// Package room owns all room and user state for the poker server. It is pure
// in-memory state management: no operation performs network I/O, and every
// method returns defensive snapshots so callers can never mutate store-owned
// state.
package room

import "time"

// HiddenVote is the marker substituted for a cast-but-unrevealed vote when a
// user is projected for someone other than the voter.
const HiddenVote = "hidden"

// User is a participant in a room. Vote is nil until the user casts one.
type User struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	IsAdmin bool    `json:"isAdmin"`
	Vote    *string `json:"vote"`
}

// HasVoted reports whether the user has cast a vote this round.
func (u User) HasVoted() bool {
	return u.Vote != nil
}

// Projected returns a copy of u with its vote redacted for a recipient.
// The actual vote is kept when the room is revealed or the recipient is the
// voter; otherwise a cast vote collapses to HiddenVote and an uncast vote
// stays nil. Raw votes must never reach other users while unrevealed.
func (u User) Projected(revealed, isSelf bool) User {
	if revealed || isSelf || u.Vote == nil {
		return u
	}
	hidden := HiddenVote
	u.Vote = &hidden
	return u
}

// ProjectUsers projects every user in the slice for the recipient identified
// by selfID. An empty selfID projects for an outside observer.
func ProjectUsers(users []User, revealed bool, selfID string) []User {
	out := make([]User, len(users))
	for i, u := range users {
		out[i] = u.Projected(revealed, u.ID == selfID)
	}
	return out
}

// Room is a voting session grouping a set of users. Users is ordered by join
// time; the first user after any admin promotion is always the earliest
// remaining joiner.
type Room struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Users        []User    `json:"users"`
	Revealed     bool      `json:"revealed"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Summary is the read-only listing shape exposed over HTTP.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserCount int       `json:"userCount"`
	CreatedAt time.Time `json:"createdAt"`
}
