package room

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestStore_CreateRoom(t *testing.T) {
	s := NewStore()
	r, creator := s.CreateRoom("Sprint 1", "Alice")

	assert.Equal(t, "Sprint 1", r.Name)
	assert.False(t, r.Revealed)
	require.Len(t, r.Users, 1)
	assert.Equal(t, creator.ID, r.Users[0].ID)
	assert.Equal(t, "Alice", creator.Name)
	assert.True(t, creator.IsAdmin)
	assert.Nil(t, creator.Vote)
	assert.Equal(t, 1, s.RoomCount())
}

func TestStore_CreateRoomDefaultName(t *testing.T) {
	s := NewStore()
	r, _ := s.CreateRoom("", "Alice")
	assert.Equal(t, fmt.Sprintf("Room %s", r.ID[:6]), r.Name)
}

func TestStore_CreateRoomUniqueIDs(t *testing.T) {
	s := NewStore()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		r, u := s.CreateRoom("r", "u")
		assert.False(t, seen[r.ID], "duplicate room id %s", r.ID)
		assert.False(t, seen[u.ID], "duplicate user id %s", u.ID)
		seen[r.ID] = true
		seen[u.ID] = true
	}
}

func TestStore_GetRoom(t *testing.T) {
	s := NewStore()
	created, _ := s.CreateRoom("Sprint 1", "Alice")

	got, ok := s.GetRoom(created.ID)
	require.True(t, ok)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Sprint 1", got.Name)

	_, ok = s.GetRoom("missing")
	assert.False(t, ok)
}

func TestStore_GetRoomRefreshesActivity(t *testing.T) {
	s := NewStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	created, _ := s.CreateRoom("Sprint 1", "Alice")

	later := base.Add(30 * time.Minute)
	s.now = func() time.Time { return later }

	got, ok := s.GetRoom(created.ID)
	require.True(t, ok)
	assert.Equal(t, later, got.LastActivity)
	assert.Equal(t, base, got.CreatedAt, "createdAt must be immutable")
}

func TestStore_AddUser(t *testing.T) {
	s := NewStore()
	created, _ := s.CreateRoom("Sprint 1", "Alice")

	r, bob, ok := s.AddUser(created.ID, "Bob")
	require.True(t, ok)
	assert.False(t, bob.IsAdmin)
	assert.Nil(t, bob.Vote)
	require.Len(t, r.Users, 2)
	assert.Equal(t, bob.ID, r.Users[1].ID, "join order must be preserved")
}

func TestStore_AddUserRoomNotFound(t *testing.T) {
	s := NewStore()
	_, _, ok := s.AddUser("missing", "Bob")
	assert.False(t, ok)
}

func TestStore_RemoveUserPromotesEarliestJoiner(t *testing.T) {
	s := NewStore()
	created, alice := s.CreateRoom("Sprint 1", "Alice")
	_, bob, ok := s.AddUser(created.ID, "Bob")
	require.True(t, ok)
	_, carol, ok := s.AddUser(created.ID, "Carol")
	require.True(t, ok)

	r, ok := s.RemoveUser(created.ID, alice.ID)
	require.True(t, ok)
	require.Len(t, r.Users, 2)
	assert.Equal(t, bob.ID, r.Users[0].ID)
	assert.True(t, r.Users[0].IsAdmin, "earliest remaining joiner must be promoted")
	assert.False(t, r.Users[1].IsAdmin)
	assert.Equal(t, carol.ID, r.Users[1].ID)
}

func TestStore_RemoveUserNonAdminKeepsAdmin(t *testing.T) {
	s := NewStore()
	created, alice := s.CreateRoom("Sprint 1", "Alice")
	_, bob, _ := s.AddUser(created.ID, "Bob")

	r, ok := s.RemoveUser(created.ID, bob.ID)
	require.True(t, ok)
	require.Len(t, r.Users, 1)
	assert.Equal(t, alice.ID, r.Users[0].ID)
	assert.True(t, r.Users[0].IsAdmin)
}

func TestStore_RemoveLastUserDeletesRoom(t *testing.T) {
	s := NewStore()
	created, alice := s.CreateRoom("Sprint 1", "Alice")

	_, ok := s.RemoveUser(created.ID, alice.ID)
	assert.False(t, ok)

	_, ok = s.GetRoom(created.ID)
	assert.False(t, ok, "room must be deleted once empty")
	assert.Equal(t, 0, s.RoomCount())
}

func TestStore_RemoveUserRoomNotFound(t *testing.T) {
	s := NewStore()
	_, ok := s.RemoveUser("missing", "u1")
	assert.False(t, ok)
}

func TestStore_SubmitVote(t *testing.T) {
	s := NewStore()
	created, alice := s.CreateRoom("Sprint 1", "Alice")

	r, ok := s.SubmitVote(created.ID, alice.ID, "5")
	require.True(t, ok)
	require.NotNil(t, r.Users[0].Vote)
	assert.Equal(t, "5", *r.Users[0].Vote)
	assert.False(t, r.Revealed)
}

func TestStore_SubmitVoteDeckAgnostic(t *testing.T) {
	s := NewStore()
	created, alice := s.CreateRoom("Sprint 1", "Alice")

	// Any string is accepted, including values outside a canonical card set.
	for _, vote := range []string{"5", "?", "coffee", "", "1000000"} {
		r, ok := s.SubmitVote(created.ID, alice.ID, vote)
		require.True(t, ok)
		require.NotNil(t, r.Users[0].Vote)
		assert.Equal(t, vote, *r.Users[0].Vote)
	}
}

func TestStore_SubmitVoteOverwrites(t *testing.T) {
	s := NewStore()
	created, alice := s.CreateRoom("Sprint 1", "Alice")

	_, ok := s.SubmitVote(created.ID, alice.ID, "3")
	require.True(t, ok)
	r, ok := s.SubmitVote(created.ID, alice.ID, "8")
	require.True(t, ok)
	assert.Equal(t, "8", *r.Users[0].Vote)
}

func TestStore_SubmitVoteNotFound(t *testing.T) {
	s := NewStore()
	created, _ := s.CreateRoom("Sprint 1", "Alice")

	_, ok := s.SubmitVote("missing", "u1", "5")
	assert.False(t, ok)

	_, ok = s.SubmitVote(created.ID, "missing-user", "5")
	assert.False(t, ok)
}

func TestStore_RevealVotesIdempotent(t *testing.T) {
	s := NewStore()
	created, _ := s.CreateRoom("Sprint 1", "Alice")

	r, ok := s.RevealVotes(created.ID)
	require.True(t, ok)
	assert.True(t, r.Revealed)

	again, ok := s.RevealVotes(created.ID)
	require.True(t, ok)
	assert.Equal(t, r.Revealed, again.Revealed)
	assert.Equal(t, r.Users, again.Users)
}

func TestStore_RevealVotesNotFound(t *testing.T) {
	s := NewStore()
	_, ok := s.RevealVotes("missing")
	assert.False(t, ok)
}

func TestStore_ResetVotes(t *testing.T) {
	s := NewStore()
	created, alice := s.CreateRoom("Sprint 1", "Alice")
	_, bob, _ := s.AddUser(created.ID, "Bob")
	_, _ = s.SubmitVote(created.ID, alice.ID, "8")
	_, _ = s.SubmitVote(created.ID, bob.ID, "5")
	_, _ = s.RevealVotes(created.ID)

	r, ok := s.ResetVotes(created.ID)
	require.True(t, ok)
	assert.False(t, r.Revealed)
	for _, u := range r.Users {
		assert.Nil(t, u.Vote)
	}
}

func TestStore_ResetVotesIdempotent(t *testing.T) {
	s := NewStore()
	created, alice := s.CreateRoom("Sprint 1", "Alice")
	_, _ = s.SubmitVote(created.ID, alice.ID, "8")
	_, _ = s.RevealVotes(created.ID)

	first, ok := s.ResetVotes(created.ID)
	require.True(t, ok)
	second, ok := s.ResetVotes(created.ID)
	require.True(t, ok)
	assert.Equal(t, first.Revealed, second.Revealed)
	assert.Equal(t, first.Users, second.Users)
}

func TestStore_Summaries(t *testing.T) {
	s := NewStore()
	r1, _ := s.CreateRoom("Sprint 1", "Alice")
	r2, _ := s.CreateRoom("Sprint 2", "Bob")
	_, _, _ = s.AddUser(r2.ID, "Carol")

	summaries := s.Summaries()
	require.Len(t, summaries, 2)

	byID := make(map[string]Summary)
	for _, sum := range summaries {
		byID[sum.ID] = sum
	}
	assert.Equal(t, 1, byID[r1.ID].UserCount)
	assert.Equal(t, 2, byID[r2.ID].UserCount)
	assert.Equal(t, "Sprint 2", byID[r2.ID].Name)
}

func TestStore_SummariesDoNotRefreshActivity(t *testing.T) {
	s := NewStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	created, _ := s.CreateRoom("Sprint 1", "Alice")

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	_ = s.Summaries()

	// A listing must not keep an idle room alive.
	swept := s.SweepInactive(base.Add(2*time.Hour), time.Hour)
	assert.Equal(t, 1, swept)
	_, ok := s.GetRoom(created.ID)
	assert.False(t, ok)
}

func TestStore_SweepInactive(t *testing.T) {
	s := NewStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	idle, _ := s.CreateRoom("Idle", "Alice")

	s.now = func() time.Time { return base.Add(50 * time.Minute) }
	active, _ := s.CreateRoom("Active", "Bob")

	swept := s.SweepInactive(base.Add(70*time.Minute), time.Hour)
	assert.Equal(t, 1, swept)

	_, ok := s.GetRoom(idle.ID)
	assert.False(t, ok)
	_, ok = s.GetRoom(active.ID)
	assert.True(t, ok)
}

func TestStore_SweepInactiveKeepsRecentlyRead(t *testing.T) {
	s := NewStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	created, _ := s.CreateRoom("Quiet", "Alice")

	// A read refreshes activity, so the room survives a later sweep.
	s.now = func() time.Time { return base.Add(55 * time.Minute) }
	_, ok := s.GetRoom(created.ID)
	require.True(t, ok)

	swept := s.SweepInactive(base.Add(90*time.Minute), time.Hour)
	assert.Equal(t, 0, swept)
}

func TestStore_SnapshotsAreIsolated(t *testing.T) {
	s := NewStore()
	created, alice := s.CreateRoom("Sprint 1", "Alice")
	voted, ok := s.SubmitVote(created.ID, alice.ID, "5")
	require.True(t, ok)

	// Mutating a returned snapshot must not leak into store state.
	*voted.Users[0].Vote = "tampered"
	voted.Users[0].IsAdmin = false

	got, ok := s.GetRoom(created.ID)
	require.True(t, ok)
	assert.Equal(t, "5", *got.Users[0].Vote)
	assert.True(t, got.Users[0].IsAdmin)
}

func TestStore_ConcurrentVoting(t *testing.T) {
	s := NewStore()
	created, _ := s.CreateRoom("Sprint 1", "Host")

	const n = 50
	userIDs := make([]string, n)
	for i := 0; i < n; i++ {
		_, u, ok := s.AddUser(created.ID, fmt.Sprintf("P%d", i))
		require.True(t, ok)
		userIDs[i] = u.ID
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, _ = s.SubmitVote(created.ID, userIDs[i], fmt.Sprintf("%d", i%13))
		}(i)
	}
	wg.Wait()

	r, ok := s.GetRoom(created.ID)
	require.True(t, ok)
	voted := 0
	for _, u := range r.Users {
		if u.HasVoted() {
			voted++
		}
	}
	assert.Equal(t, n, voted)
}

func TestStore_ConcurrentJoinLeave(t *testing.T) {
	s := NewStore()
	created, _ := s.CreateRoom("Sprint 1", "Host")

	const n = 100
	ids := make(chan string, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, u, ok := s.AddUser(created.ID, fmt.Sprintf("P%d", i))
			if ok {
				ids <- u.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	var wg2 sync.WaitGroup
	for id := range ids {
		wg2.Add(1)
		go func(id string) {
			defer wg2.Done()
			_, _ = s.RemoveUser(created.ID, id)
		}(id)
	}
	wg2.Wait()

	r, ok := s.GetRoom(created.ID)
	require.True(t, ok)
	require.Len(t, r.Users, 1, "only the host should remain")
	assert.True(t, r.Users[0].IsAdmin)
}

// Property-based tests

func adminCount(users []User) int {
	n := 0
	for _, u := range users {
		if u.IsAdmin {
			n++
		}
	}
	return n
}

func TestPropertySingleAdminInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewStore()
		created, creator := s.CreateRoom("r", "creator")
		userIDs := []string{creator.ID}

		numOps := rapid.IntRange(1, 40).Draw(t, "num_ops")
		for i := 0; i < numOps; i++ {
			join := rapid.Bool().Draw(t, "join")
			if join || len(userIDs) == 0 {
				_, u, ok := s.AddUser(created.ID, fmt.Sprintf("u%d", i))
				if !ok {
					// Room was deleted by an earlier leave; nothing left to check.
					return
				}
				userIDs = append(userIDs, u.ID)
			} else {
				idx := rapid.IntRange(0, len(userIDs)-1).Draw(t, "leave_idx")
				_, _ = s.RemoveUser(created.ID, userIDs[idx])
				userIDs = append(userIDs[:idx], userIDs[idx+1:]...)
			}

			r, ok := s.GetRoom(created.ID)
			if !ok {
				if len(userIDs) != 0 {
					t.Fatalf("room deleted while %d users tracked", len(userIDs))
				}
				return
			}
			if got := adminCount(r.Users); got != 1 {
				t.Fatalf("expected exactly 1 admin, got %d with %d users", got, len(r.Users))
			}
		}
	})
}

func TestPropertyResetClearsEveryVote(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewStore()
		created, creator := s.CreateRoom("r", "creator")
		userIDs := []string{creator.ID}

		numUsers := rapid.IntRange(0, 10).Draw(t, "num_users")
		for i := 0; i < numUsers; i++ {
			_, u, ok := s.AddUser(created.ID, fmt.Sprintf("u%d", i))
			if ok {
				userIDs = append(userIDs, u.ID)
			}
		}

		for _, id := range userIDs {
			if rapid.Bool().Draw(t, "vote") {
				_, _ = s.SubmitVote(created.ID, id, "13")
			}
		}
		if rapid.Bool().Draw(t, "reveal") {
			_, _ = s.RevealVotes(created.ID)
		}

		r, ok := s.ResetVotes(created.ID)
		if !ok {
			t.Fatal("room vanished during reset")
		}
		if r.Revealed {
			t.Fatal("reset must hide votes")
		}
		for _, u := range r.Users {
			if u.Vote != nil {
				t.Fatalf("user %s still has vote %q after reset", u.ID, *u.Vote)
			}
		}
	})
}
