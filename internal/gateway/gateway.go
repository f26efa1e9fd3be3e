package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/scrumpoker/internal/config"
	"github.com/cory-johannsen/scrumpoker/internal/room"
)

// Gateway translates websocket events into Room Store calls and fans the
// resulting state changes out to the room's broadcast group. It holds the
// store by reference; it never mutates room state directly.
type Gateway struct {
	store    *room.Store
	hub      *Hub
	cfg      config.WebSocketConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New creates a Gateway backed by the given store.
//
// Precondition: store and logger must be non-nil; cfg must be validated.
func New(store *room.Store, cfg config.WebSocketConfig, logger *zap.Logger) *Gateway {
	return &Gateway{
		store:  store,
		hub:    NewHub(),
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			// The lobby is open to any origin, matching the permissive
			// CORS posture of the HTTP surface.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS upgrades an HTTP request to a websocket connection and services
// it until the client disconnects.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(g, conn)
	g.logger.Info("client connected", zap.String("remote", conn.RemoteAddr().String()))

	go c.writePump()
	c.readPump()
}

// dispatch routes one inbound event to its handler. Any panic in a handler
// is converted into a failure reply so the connection survives; no request
// may take down the process or wedge the socket.
func (g *Gateway) dispatch(c *Client, env envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.Error("event handler panicked",
				zap.String("event", env.Type),
				zap.Any("panic", rec),
			)
			c.reply(env.Type, ackReply{Success: false, Error: failureText(env.Type)})
		}
	}()

	switch env.Type {
	case EventCreateRoom:
		g.handleCreateRoom(c, env.Payload)
	case EventJoinRoom:
		g.handleJoinRoom(c, env.Payload)
	case EventSubmitVote:
		g.handleSubmitVote(c, env.Payload)
	case EventRevealVotes:
		g.handleRevealVotes(c)
	case EventResetVotes:
		g.handleResetVotes(c)
	default:
		g.logger.Warn("unknown event type", zap.String("type", env.Type))
	}
}

func (g *Gateway) handleCreateRoom(c *Client, payload json.RawMessage) {
	var req createRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.reply(EventCreateRoom, ackReply{Success: false, Error: errMalformedEvent})
		return
	}
	if c.bound() {
		c.reply(EventCreateRoom, ackReply{Success: false, Error: errAlreadyInRoom})
		return
	}

	r, creator := g.store.CreateRoom(req.RoomName, req.UserName)
	c.bind(creator.ID, r.ID)
	g.hub.Subscribe(r.ID, c)

	g.logger.Info("room created",
		zap.String("room_id", r.ID),
		zap.String("room_name", r.Name),
		zap.String("user_id", creator.ID),
	)

	view := projectRoom(r, creator.ID)
	c.reply(EventCreateRoom, ackReply{Success: true, Room: &view, User: &creator})
}

func (g *Gateway) handleJoinRoom(c *Client, payload json.RawMessage) {
	var req joinRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.reply(EventJoinRoom, ackReply{Success: false, Error: errMalformedEvent})
		return
	}
	if c.bound() {
		c.reply(EventJoinRoom, ackReply{Success: false, Error: errAlreadyInRoom})
		return
	}

	r, joiner, ok := g.store.AddUser(req.RoomID, req.UserName)
	if !ok {
		c.reply(EventJoinRoom, ackReply{Success: false, Error: errRoomNotFound})
		return
	}
	c.bind(joiner.ID, r.ID)

	// The caller gets its data in the reply; only the existing members get
	// the join broadcast.
	g.hub.Broadcast(r.ID, message{
		Type:    EventUserJoined,
		Payload: userJoinedEvent{User: joiner},
	}, c)
	g.hub.Subscribe(r.ID, c)

	g.logger.Info("user joined room",
		zap.String("room_id", r.ID),
		zap.String("user_id", joiner.ID),
		zap.Int("users", len(r.Users)),
	)

	view := projectRoom(r, joiner.ID)
	c.reply(EventJoinRoom, ackReply{Success: true, Room: &view, User: &joiner})
}

func (g *Gateway) handleSubmitVote(c *Client, payload json.RawMessage) {
	var req submitVoteRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.reply(EventSubmitVote, ackReply{Success: false, Error: errMalformedEvent})
		return
	}
	if !c.bound() {
		c.reply(EventSubmitVote, ackReply{Success: false, Error: errNotInRoom})
		return
	}

	r, ok := g.store.SubmitVote(c.roomID, c.userID, req.Vote)
	if !ok {
		c.reply(EventSubmitVote, ackReply{Success: false, Error: errRoomNotFound})
		return
	}

	// Everyone in the room, voter included, gets a vote_update projected for
	// them individually: own vote raw, others' votes reduced to cast/uncast
	// while unrevealed.
	g.hub.ForEach(r.ID, func(rc *Client) {
		rc.trySend(message{
			Type: EventVoteUpdate,
			Payload: voteUpdateEvent{
				RoomID:   r.ID,
				UserID:   c.userID,
				Revealed: r.Revealed,
				Users:    room.ProjectUsers(r.Users, r.Revealed, rc.userID),
			},
		})
	})

	c.reply(EventSubmitVote, ackReply{Success: true})
}

func (g *Gateway) handleRevealVotes(c *Client) {
	r, caller, ok := g.authorize(c, EventRevealVotes)
	if !ok {
		return
	}

	revealed, ok := g.store.RevealVotes(r.ID)
	if !ok {
		c.reply(EventRevealVotes, ackReply{Success: false, Error: errRoomNotFound})
		return
	}

	g.logger.Info("votes revealed",
		zap.String("room_id", r.ID),
		zap.String("admin_id", caller.ID),
	)

	g.hub.Broadcast(r.ID, message{
		Type:    EventVotesRevealed,
		Payload: votesRevealedEvent{Users: revealed.Users},
	}, nil)

	c.reply(EventRevealVotes, ackReply{Success: true})
}

func (g *Gateway) handleResetVotes(c *Client) {
	r, caller, ok := g.authorize(c, EventResetVotes)
	if !ok {
		return
	}

	reset, ok := g.store.ResetVotes(r.ID)
	if !ok {
		c.reply(EventResetVotes, ackReply{Success: false, Error: errRoomNotFound})
		return
	}

	g.logger.Info("votes reset",
		zap.String("room_id", reset.ID),
		zap.String("admin_id", caller.ID),
	)

	g.hub.Broadcast(r.ID, message{
		Type:    EventVotesReset,
		Payload: votesResetEvent{RoomID: reset.ID},
	}, nil)

	c.reply(EventResetVotes, ackReply{Success: true})
}

// handleDisconnect removes the departing user from its room and notifies the
// remaining members. Triggered by the transport, never by a client request.
func (g *Gateway) handleDisconnect(c *Client) {
	if !c.bound() {
		return
	}

	g.hub.Unsubscribe(c.roomID, c)
	r, ok := g.store.RemoveUser(c.roomID, c.userID)

	g.logger.Info("client disconnected",
		zap.String("room_id", c.roomID),
		zap.String("user_id", c.userID),
		zap.Bool("room_deleted", !ok),
	)

	if !ok {
		// Room was absent or deleted with the last user; no one is left to
		// notify.
		return
	}

	g.hub.ForEach(c.roomID, func(rc *Client) {
		rc.trySend(message{
			Type: EventUserLeft,
			Payload: userLeftEvent{
				UserID: c.userID,
				Users:  room.ProjectUsers(r.Users, r.Revealed, rc.userID),
			},
		})
	})
}

// authorize runs the shared admin gate for reveal/reset: the caller must be
// bound to a room, the room must still exist, and the caller must hold admin.
func (g *Gateway) authorize(c *Client, event string) (room.Room, room.User, bool) {
	if !c.bound() {
		c.reply(event, ackReply{Success: false, Error: errNotInRoom})
		return room.Room{}, room.User{}, false
	}

	r, ok := g.store.GetRoom(c.roomID)
	if !ok {
		c.reply(event, ackReply{Success: false, Error: errRoomNotFound})
		return room.Room{}, room.User{}, false
	}

	for _, u := range r.Users {
		if u.ID == c.userID {
			if !u.IsAdmin {
				break
			}
			return r, u, true
		}
	}

	c.reply(event, ackReply{Success: false, Error: errNotAuthorized})
	return room.Room{}, room.User{}, false
}

// projectRoom redacts a room snapshot for one recipient.
func projectRoom(r room.Room, selfID string) room.Room {
	r.Users = room.ProjectUsers(r.Users, r.Revealed, selfID)
	return r
}

// failureText is the generic per-operation failure reply used when a handler
// hits an unexpected fault.
func failureText(event string) string {
	switch event {
	case EventCreateRoom:
		return "Failed to create room"
	case EventJoinRoom:
		return "Failed to join room"
	case EventSubmitVote:
		return "Failed to submit vote"
	case EventRevealVotes:
		return "Failed to reveal votes"
	case EventResetVotes:
		return "Failed to reset votes"
	default:
		return "Request failed"
	}
}
