package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorekit/core"
	"scorekit/leaderboard"
)

// newTestClient spins up a miniredis server and returns a client plus cleanup.
func newTestClient(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}
	return client, cleanup
}

func testEvent(user core.UserID, points int64, ts time.Time) core.SuccessEvent {
	return core.SuccessEvent{
		ID:        "ev-" + string(user) + ts.Format("150405.000"),
		UserID:    user,
		EventType: core.EventQuizCompleted,
		Category:  core.CategoryLearning,
		Points:    points,
		Timestamp: ts,
	}
}

func TestStore_AppendAndUserEvents(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := testEvent("alice", 50, base)
	second := testEvent("alice", 30, base.Add(time.Minute))

	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))

	events, err := store.UserEvents(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Append order preserved
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)
	assert.Equal(t, int64(50), events[0].Points)
}

func TestStore_UserEventsUnknownUser(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)

	events, err := store.UserEvents(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStore_QueryNewestFirst(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, testEvent("alice", 10, base.Add(time.Duration(i)*time.Minute))))
	}

	events, err := store.Query(ctx, core.EventFilter{UserID: "alice", Limit: 2})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[0].Timestamp.After(events[1].Timestamp))
}

func TestStore_QueryAcrossUsers(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(ctx, testEvent("alice", 10, base)))
	require.NoError(t, store.Append(ctx, testEvent("bob", 20, base.Add(time.Minute))))

	events, err := store.Query(ctx, core.EventFilter{EventTypes: []core.EventType{core.EventQuizCompleted}})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestStore_MetricsRoundTrip(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	m := core.NewUserMetrics("alice")
	m.TotalPoints = 420
	m.Level = 3
	m.CurrentStreak = 5
	require.NoError(t, store.Put(ctx, m))

	got, ok, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(420), got.TotalPoints)
	assert.Equal(t, 3, got.Level)
	assert.Equal(t, 5, got.CurrentStreak)
}

func TestStore_UsersListsEventAndMetricsOwners(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, testEvent("alice", 10, time.Now().UTC())))
	require.NoError(t, store.Put(ctx, core.NewUserMetrics("bob")))

	users, err := store.Users(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []core.UserID{"alice", "bob"}, users)
}

func TestStore_SnapshotRoundTrip(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	missing, err := store.LoadSnapshot(ctx, core.CategoryLearning, core.TimeframeDaily)
	require.NoError(t, err)
	assert.Nil(t, missing)

	board := &leaderboard.Leaderboard{
		ID:        leaderboard.Key(core.CategoryLearning, core.TimeframeDaily),
		Category:  core.CategoryLearning,
		Timeframe: core.TimeframeDaily,
		Entries: []leaderboard.Entry{
			{UserID: "alice", Points: 300, Rank: 1},
			{UserID: "bob", Points: 200, Rank: 2},
		},
		LastUpdated: time.Now().UTC(),
	}
	require.NoError(t, store.SaveSnapshot(ctx, board))

	got, err := store.LoadSnapshot(ctx, core.CategoryLearning, core.TimeframeDaily)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, core.UserID("alice"), got.Entries[0].UserID)

	rank, ok, err := store.CachedRank(ctx, "bob", core.CategoryLearning, core.TimeframeDaily)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, rank)
}

func TestStore_SnapshotReplacedWholesale(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	board := &leaderboard.Leaderboard{
		Category:  core.CategoryFocus,
		Timeframe: core.TimeframeWeekly,
		Entries: []leaderboard.Entry{
			{UserID: "alice", Points: 100, Rank: 1},
			{UserID: "bob", Points: 50, Rank: 2},
		},
	}
	require.NoError(t, store.SaveSnapshot(ctx, board))

	board.Entries = []leaderboard.Entry{{UserID: "carol", Points: 500, Rank: 1}}
	require.NoError(t, store.SaveSnapshot(ctx, board))

	_, ok, err := store.CachedRank(ctx, "alice", core.CategoryFocus, core.TimeframeWeekly)
	require.NoError(t, err)
	assert.False(t, ok, "old entries should be gone after replacement")

	rank, ok, err := store.CachedRank(ctx, "carol", core.CategoryFocus, core.TimeframeWeekly)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, rank)
}
