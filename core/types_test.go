package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUserID(t *testing.T) {
	id, err := NormalizeUserID("  Alice ")
	require.NoError(t, err)
	assert.Equal(t, UserID("alice"), id)

	_, err = NormalizeUserID("   ")
	assert.Error(t, err)
}

func TestAddSafeOverflow(t *testing.T) {
	_, err := AddSafe(1<<62, 1<<62)
	assert.Error(t, err)

	v, err := AddSafe(40, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestEventClone_IsDeep(t *testing.T) {
	pct := 75.0
	ev := NewSuccessEvent("alice", EventQuizCompleted, 50, 1.0,
		&EventMetadata{ScorePct: &pct, Extra: map[string]any{"k": "v"}}, "s1")

	cp := ev.Clone()
	*cp.Metadata.ScorePct = 10
	cp.Metadata.Extra["k"] = "changed"

	assert.Equal(t, 75.0, *ev.Metadata.ScorePct)
	assert.Equal(t, "v", ev.Metadata.Extra["k"])
}

func TestUserMetricsClone_IsDeep(t *testing.T) {
	m := NewUserMetrics("alice")
	m.RecentEvents = []SuccessEvent{NewSuccessEvent("alice", EventQuizCompleted, 50, 1.0, nil, "")}

	cp := m.Clone()
	cp.RecentEvents[0].Points = 999

	assert.Equal(t, int64(50), m.RecentEvents[0].Points)
}

func TestEventFilterMatches(t *testing.T) {
	now := time.Now().UTC()
	min := int64(10)
	ev := SuccessEvent{
		UserID:    "alice",
		EventType: EventQuizCompleted,
		Category:  CategoryLearning,
		Points:    50,
		Timestamp: now,
		SessionID: "s1",
	}

	assert.True(t, EventFilter{}.Matches(ev))
	assert.True(t, EventFilter{UserID: "alice"}.Matches(ev))
	assert.False(t, EventFilter{UserID: "bob"}.Matches(ev))
	assert.True(t, EventFilter{EventTypes: []EventType{EventQuizCompleted}}.Matches(ev))
	assert.False(t, EventFilter{EventTypes: []EventType{EventLevelUp}}.Matches(ev))
	assert.True(t, EventFilter{Categories: []Category{CategoryLearning}}.Matches(ev))
	assert.False(t, EventFilter{Categories: []Category{CategoryFocus}}.Matches(ev))
	assert.False(t, EventFilter{Since: now.Add(time.Minute)}.Matches(ev))
	assert.False(t, EventFilter{Until: now.Add(-time.Minute)}.Matches(ev))
	assert.True(t, EventFilter{MinPoints: &min}.Matches(ev))
	assert.True(t, EventFilter{SessionID: "s1"}.Matches(ev))
	assert.False(t, EventFilter{SessionID: "s2"}.Matches(ev))
}

func TestSyntheticConstructors(t *testing.T) {
	lv := NewLevelUp("alice", 10, 3)
	assert.True(t, lv.Synthetic)
	assert.Equal(t, EventLevelUp, lv.EventType)
	assert.Equal(t, 3, lv.Metadata.NewLevel)
	assert.NotEmpty(t, lv.ID)

	a := Achievement{ID: "quiz_novice", Name: "Quiz Novice", Difficulty: "bronze", Points: 100}
	be := NewBadgeEarned("alice", a, a.Points)
	assert.True(t, be.Synthetic)
	assert.Equal(t, "quiz_novice", be.Metadata.AchievementID)
	assert.Equal(t, int64(100), be.Points)
	assert.Equal(t, CategoryAchievement, be.Category)
}
