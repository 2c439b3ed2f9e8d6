package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorekit/adapters/memory"
	"scorekit/core"
)

func seedEvent(t *testing.T, store *memory.Store, user core.UserID, et core.EventType, points int64, ts time.Time) {
	t.Helper()
	ev := core.NewSuccessEvent(user, et, points, 1.0, nil, "")
	ev.Timestamp = ts
	require.NoError(t, store.Append(context.Background(), ev))
}

func testSettings() core.LeaderboardSettings {
	return core.LeaderboardSettings{
		MaxEntries:      10,
		UpdateFrequency: time.Minute,
		Categories:      core.Categories(),
	}
}

func TestRebuildAll_RanksDescendingContiguous(t *testing.T) {
	store := memory.New()
	now := time.Now().UTC()
	seedEvent(t, store, "alice", core.EventQuizCompleted, 100, now.Add(-time.Hour))
	seedEvent(t, store, "bob", core.EventQuizCompleted, 300, now.Add(-time.Hour))
	seedEvent(t, store, "carol", core.EventQuizCompleted, 200, now.Add(-time.Hour))

	mgr := NewManager()
	b := NewBuilder(store, mgr, testSettings(), nil)
	n, err := b.RebuildAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(core.Categories())*len(core.Timeframes()), n)

	board := mgr.GetLeaderboard(core.CategoryLearning, core.TimeframeAllTime)
	require.NotNil(t, board)
	require.Len(t, board.Entries, 3)
	for i, e := range board.Entries {
		assert.Equal(t, i+1, e.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, board.Entries[i-1].Points, e.Points)
		}
		assert.Nil(t, e.Change, "first build has no change")
	}
	assert.Equal(t, core.UserID("bob"), board.Entries[0].UserID)
}

func TestRebuild_TimeframeWindows(t *testing.T) {
	store := memory.New()
	now := time.Now().UTC()
	// old event outside daily and weekly windows
	seedEvent(t, store, "alice", core.EventQuizCompleted, 100, now.AddDate(0, 0, -10))
	seedEvent(t, store, "bob", core.EventQuizCompleted, 50, now.Add(-time.Minute))

	mgr := NewManager()
	b := NewBuilder(store, mgr, testSettings(), nil)
	_, err := b.RebuildAll(context.Background())
	require.NoError(t, err)

	weekly := mgr.GetLeaderboard(core.CategoryLearning, core.TimeframeWeekly)
	require.NotNil(t, weekly)
	require.Len(t, weekly.Entries, 1)
	assert.Equal(t, core.UserID("bob"), weekly.Entries[0].UserID)

	allTime := mgr.GetLeaderboard(core.CategoryLearning, core.TimeframeAllTime)
	require.NotNil(t, allTime)
	assert.Len(t, allTime.Entries, 2)
}

func TestRebuild_MaxEntriesTruncation(t *testing.T) {
	store := memory.New()
	now := time.Now().UTC()
	for i := 0; i < 15; i++ {
		user := core.UserID(string(rune('a' + i)))
		seedEvent(t, store, user, core.EventQuizCompleted, int64(10*(i+1)), now.Add(-time.Hour))
	}

	settings := testSettings()
	settings.MaxEntries = 5
	mgr := NewManager()
	b := NewBuilder(store, mgr, settings, nil)
	_, err := b.RebuildAll(context.Background())
	require.NoError(t, err)

	board := mgr.GetLeaderboard(core.CategoryLearning, core.TimeframeAllTime)
	require.NotNil(t, board)
	assert.Len(t, board.Entries, 5)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, 5, board.Entries[4].Rank)
}

func TestRebuild_RankChangeAgainstPreviousSnapshot(t *testing.T) {
	store := memory.New()
	now := time.Now().UTC()
	seedEvent(t, store, "alice", core.EventQuizCompleted, 100, now.Add(-2*time.Hour))
	seedEvent(t, store, "bob", core.EventQuizCompleted, 200, now.Add(-2*time.Hour))

	mgr := NewManager()
	b := NewBuilder(store, mgr, testSettings(), nil)
	_, err := b.RebuildAll(context.Background())
	require.NoError(t, err)

	// alice overtakes bob
	seedEvent(t, store, "alice", core.EventQuizCompleted, 500, now.Add(-time.Hour))
	_, err = b.RebuildAll(context.Background())
	require.NoError(t, err)

	board := mgr.GetLeaderboard(core.CategoryLearning, core.TimeframeAllTime)
	require.NotNil(t, board)
	require.Len(t, board.Entries, 2)

	assert.Equal(t, core.UserID("alice"), board.Entries[0].UserID)
	require.NotNil(t, board.Entries[0].Change)
	assert.Equal(t, 1, *board.Entries[0].Change) // moved up from 2 to 1
	require.NotNil(t, board.Entries[1].Change)
	assert.Equal(t, -1, *board.Entries[1].Change)
}

func TestRebuild_IdempotentWithoutNewEvents(t *testing.T) {
	store := memory.New()
	now := time.Now().UTC()
	seedEvent(t, store, "alice", core.EventQuizCompleted, 100, now.Add(-time.Hour))
	seedEvent(t, store, "bob", core.EventQuizCompleted, 200, now.Add(-time.Hour))

	mgr := NewManager()
	b := NewBuilder(store, mgr, testSettings(), nil)
	_, err := b.RebuildAll(context.Background())
	require.NoError(t, err)
	first := mgr.GetLeaderboard(core.CategoryLearning, core.TimeframeAllTime)

	_, err = b.RebuildAll(context.Background())
	require.NoError(t, err)
	second := mgr.GetLeaderboard(core.CategoryLearning, core.TimeframeAllTime)

	require.Len(t, second.Entries, len(first.Entries))
	for i := range second.Entries {
		assert.Equal(t, first.Entries[i].UserID, second.Entries[i].UserID)
		assert.Equal(t, first.Entries[i].Points, second.Entries[i].Points)
		assert.Equal(t, first.Entries[i].Rank, second.Entries[i].Rank)
		require.NotNil(t, second.Entries[i].Change)
		assert.Equal(t, 0, *second.Entries[i].Change)
	}
}

func TestManager_ReadsBeforeFirstBuild(t *testing.T) {
	mgr := NewManager()
	assert.Nil(t, mgr.GetLeaderboard(core.CategoryLearning, core.TimeframeDaily))
	_, ok := mgr.UserRank("alice", core.CategoryLearning, core.TimeframeDaily)
	assert.False(t, ok)
}

func TestUserRank(t *testing.T) {
	store := memory.New()
	now := time.Now().UTC()
	seedEvent(t, store, "alice", core.EventQuizCompleted, 100, now.Add(-time.Hour))
	seedEvent(t, store, "bob", core.EventQuizCompleted, 200, now.Add(-time.Hour))

	mgr := NewManager()
	b := NewBuilder(store, mgr, testSettings(), nil)
	_, err := b.RebuildAll(context.Background())
	require.NoError(t, err)

	rank, ok := mgr.UserRank("bob", core.CategoryLearning, core.TimeframeAllTime)
	require.True(t, ok)
	assert.Equal(t, 1, rank)

	_, ok = mgr.UserRank("nobody", core.CategoryLearning, core.TimeframeAllTime)
	assert.False(t, ok)
}
