package room

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store tracks all active rooms. All methods are safe for concurrent use and
// atomic with respect to a single room's state.
//
// Invariants maintained across every operation:
//   - a room with zero users does not exist;
//   - exactly one user per non-empty room has IsAdmin set;
//   - users never move between rooms.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*Room

	// now is the clock used for createdAt/lastActivity stamps.
	now func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*Room),
		now:   time.Now,
	}
}

// CreateRoom registers a new room containing only its creator, who is the
// room's admin. A blank name falls back to a placeholder derived from the
// room id. This operation never fails.
//
// Postcondition: Returns snapshots of the new room and the creator.
func (s *Store) CreateRoom(name, creatorName string) (Room, User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roomID := uuid.NewString()
	creator := User{
		ID:      uuid.NewString(),
		Name:    creatorName,
		IsAdmin: true,
	}

	if name == "" {
		name = fmt.Sprintf("Room %s", roomID[:6])
	}

	ts := s.now()
	r := &Room{
		ID:           roomID,
		Name:         name,
		Users:        []User{creator},
		Revealed:     false,
		CreatedAt:    ts,
		LastActivity: ts,
	}
	s.rooms[roomID] = r

	return snapshot(r), creator
}

// GetRoom looks up a room by id and refreshes its activity stamp. Read access
// counts as activity so active-but-quiet rooms are not swept prematurely.
//
// Postcondition: Returns (snapshot, true) if found, or (zero, false) otherwise.
func (s *Store) GetRoom(id string) (Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[id]
	if !ok {
		return Room{}, false
	}
	r.LastActivity = s.now()
	return snapshot(r), true
}

// AddUser appends a new non-admin user to the room's join sequence.
//
// Postcondition: Returns snapshots of the room and the new user, or ok=false
// if the room does not exist.
func (s *Store) AddUser(roomID, userName string) (Room, User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return Room{}, User{}, false
	}

	u := User{
		ID:   uuid.NewString(),
		Name: userName,
	}
	r.Users = append(r.Users, u)
	r.LastActivity = s.now()

	return snapshot(r), u, true
}

// RemoveUser removes the user with the given id from the room. When the
// removed user held admin and others remain, the earliest remaining joiner is
// promoted, restoring the single-admin invariant deterministically. When the
// last user leaves, the room is deleted.
//
// Postcondition: Returns (snapshot, true) if the room still exists, or
// (zero, false) if the room was absent or has been deleted.
func (s *Store) RemoveUser(roomID, userID string) (Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	r.LastActivity = s.now()

	kept := r.Users[:0]
	for _, u := range r.Users {
		if u.ID != userID {
			kept = append(kept, u)
		}
	}
	r.Users = kept

	if len(r.Users) == 0 {
		delete(s.rooms, roomID)
		return Room{}, false
	}

	hasAdmin := false
	for _, u := range r.Users {
		if u.IsAdmin {
			hasAdmin = true
			break
		}
	}
	if !hasAdmin {
		r.Users[0].IsAdmin = true
	}

	return snapshot(r), true
}

// SubmitVote records the user's vote. Any string is accepted; the store is
// deck-agnostic and performs no validation of vote content.
//
// Postcondition: Returns (snapshot, true), or ok=false if the room or user
// does not exist.
func (s *Store) SubmitVote(roomID, userID, vote string) (Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return Room{}, false
	}

	for i := range r.Users {
		if r.Users[i].ID == userID {
			v := vote
			r.Users[i].Vote = &v
			r.LastActivity = s.now()
			return snapshot(r), true
		}
	}
	return Room{}, false
}

// RevealVotes makes all votes in the room visible. Idempotent.
//
// Postcondition: Returns (snapshot, true), or ok=false if the room does not exist.
func (s *Store) RevealVotes(roomID string) (Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	r.Revealed = true
	r.LastActivity = s.now()
	return snapshot(r), true
}

// ResetVotes clears every user's vote and hides votes again, in one atomic
// step. Idempotent.
//
// Postcondition: Returns (snapshot, true), or ok=false if the room does not exist.
func (s *Store) ResetVotes(roomID string) (Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	r.Revealed = false
	for i := range r.Users {
		r.Users[i].Vote = nil
	}
	r.LastActivity = s.now()
	return snapshot(r), true
}

// Summaries returns a listing snapshot of all rooms. It has no side effects
// and does not refresh activity.
func (s *Store) Summaries() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Summary, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, Summary{
			ID:        r.ID,
			Name:      r.Name,
			UserCount: len(r.Users),
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}

// RoomCount returns the number of active rooms.
func (s *Store) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// SweepInactive deletes every room whose last activity is older than maxIdle
// relative to now, and returns the number of rooms deleted. Clients are not
// notified; an idle room is assumed to have no live connections.
//
// Precondition: maxIdle must be positive.
func (s *Store) SweepInactive(now time.Time, maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	swept := 0
	for id, r := range s.rooms {
		if now.Sub(r.LastActivity) > maxIdle {
			delete(s.rooms, id)
			swept++
		}
	}
	return swept
}

// snapshot deep-copies a room so callers never alias store-owned state.
func snapshot(r *Room) Room {
	cp := *r
	cp.Users = make([]User, len(r.Users))
	for i, u := range r.Users {
		if u.Vote != nil {
			v := *u.Vote
			u.Vote = &v
		}
		cp.Users[i] = u
	}
	return cp
}
