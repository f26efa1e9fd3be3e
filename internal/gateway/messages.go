// Package gateway binds websocket connections to rooms, enforces admin-only
// gating on reveal/reset, and fans room state changes out to subscribed
// connections.
package gateway

import (
	"encoding/json"

	"github.com/cory-johannsen/scrumpoker/internal/room"
)

// Request event names (client to server). Each request is answered with a
// reply message of the same type carrying an ack payload.
const (
	EventCreateRoom  = "create_room"
	EventJoinRoom    = "join_room"
	EventSubmitVote  = "submit_vote"
	EventRevealVotes = "reveal_votes"
	EventResetVotes  = "reset_votes"
)

// Broadcast event names (server to room members), no reply expected.
const (
	EventUserJoined    = "user_joined"
	EventUserLeft      = "user_left"
	EventVoteUpdate    = "vote_update"
	EventVotesRevealed = "votes_revealed"
	EventVotesReset    = "votes_reset"
)

// Reply error texts.
const (
	errRoomNotFound   = "Room not found"
	errNotInRoom      = "Not in a room"
	errNotAuthorized  = "Not authorized"
	errAlreadyInRoom  = "Already in a room"
	errMalformedEvent = "Malformed payload"
)

// envelope frames every inbound message: an event name plus a type-specific
// payload that handlers decode themselves.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// message frames every outbound message.
type message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type createRoomRequest struct {
	RoomName string `json:"roomName"`
	UserName string `json:"userName"`
}

type joinRoomRequest struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

type submitVoteRequest struct {
	Vote string `json:"vote"`
}

// ackReply is the uniform request/reply shape: success plus an error text on
// failure, plus the caller's room and user on create/join.
type ackReply struct {
	Success bool       `json:"success"`
	Error   string     `json:"error,omitempty"`
	Room    *room.Room `json:"room,omitempty"`
	User    *room.User `json:"user,omitempty"`
}

type userJoinedEvent struct {
	User room.User `json:"user"`
}

type userLeftEvent struct {
	UserID string      `json:"userId"`
	Users  []room.User `json:"users"`
}

type voteUpdateEvent struct {
	RoomID   string      `json:"roomId"`
	UserID   string      `json:"userId"`
	Revealed bool        `json:"revealed"`
	Users    []room.User `json:"users"`
}

type votesRevealedEvent struct {
	Users []room.User `json:"users"`
}

type votesResetEvent struct {
	RoomID string `json:"roomId"`
}
