package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculatePoints_NoMetadataUsesBaseTable(t *testing.T) {
	cfg := DefaultScoringConfig()
	for et, want := range cfg.PointValues {
		got, factor := CalculatePoints(cfg, et, nil, nil)
		assert.Equal(t, want, got, "event type %s", et)
		assert.Equal(t, 1.0, factor)
	}
}

func TestCalculatePoints_UnknownTypeScoresZero(t *testing.T) {
	cfg := DefaultScoringConfig()
	got, _ := CalculatePoints(cfg, EventType("totally_unknown"), nil, nil)
	assert.Equal(t, int64(0), got)
}

func TestCalculatePoints_CustomPointsOverrideBase(t *testing.T) {
	cfg := DefaultScoringConfig()
	custom := int64(123)
	got, _ := CalculatePoints(cfg, EventQuizCompleted, nil, &custom)
	assert.Equal(t, int64(123), got)
}

func TestCalculatePoints_ScoreBonus(t *testing.T) {
	cfg := DefaultScoringConfig()
	base := cfg.PointValues[EventQuizCompleted]

	prev := int64(-1)
	for pct := 0.0; pct <= 100; pct++ {
		p := pct
		got, _ := CalculatePoints(cfg, EventQuizCompleted, &EventMetadata{ScorePct: &p}, nil)
		bonus := got - base
		assert.Equal(t, int64(pct/10)*5, bonus, "scorePct=%v", pct)
		assert.GreaterOrEqual(t, bonus, prev, "bonus must be monotonic in scorePct")
		prev = bonus
	}
}

func TestCalculatePoints_ScoreBonusOnlyOnCompletionEvents(t *testing.T) {
	cfg := DefaultScoringConfig()
	pct := 90.0
	got, _ := CalculatePoints(cfg, EventQuestionAnswered, &EventMetadata{ScorePct: &pct}, nil)
	assert.Equal(t, cfg.PointValues[EventQuestionAnswered], got)
}

func TestCalculatePoints_DifficultyAndScoreScenario(t *testing.T) {
	// base 50, scorePct 80 -> +40, C2 factor 2.0 -> 180.
	cfg := DefaultScoringConfig()
	pct := 80.0
	got, _ := CalculatePoints(cfg, EventQuizCompleted, &EventMetadata{ScorePct: &pct, Level: "C2"}, nil)
	assert.Equal(t, int64(180), got)
}

func TestStreakFactor_PicksLargestTierAtOrBelow(t *testing.T) {
	cfg := &ScoringConfig{StreakMultipliers: []StreakTier{
		{MinLength: 1, Factor: 1.0},
		{MinLength: 3, Factor: 1.1},
		{MinLength: 7, Factor: 1.25},
		{MinLength: 14, Factor: 1.5},
	}}

	cases := []struct {
		length int
		want   float64
	}{
		{0, 1.0},
		{1, 1.0},
		{2, 1.0},
		{3, 1.1},
		{6, 1.1},
		{7, 1.25},
		{10, 1.25}, // streak 10 selects the 7 tier, not 14
		{14, 1.5},
		{100, 1.5},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StreakFactor(cfg, c.length), "length=%d", c.length)
		// idempotent: selecting twice yields the same tier
		assert.Equal(t, StreakFactor(cfg, c.length), StreakFactor(cfg, c.length))
	}
}

func TestDeriveCategory(t *testing.T) {
	cases := map[EventType]Category{
		EventQuizCompleted:     CategoryLearning,
		EventLessonCompleted:   CategoryLearning,
		EventQuestionAnswered:  CategoryLearning,
		EventVocabularyReview:  CategoryLearning,
		EventFocusCompleted:    CategoryFocus,
		EventPomodoroCompleted: CategoryFocus,
		EventStreakExtended:    CategoryStreak,
		EventStreakMilestone:   CategoryStreak,
		EventFriendHelped:      CategorySocial,
		EventGroupJoined:       CategorySocial,
		EventBadgeEarned:       CategoryAchievement,
		EventLevelUp:           CategoryAchievement,
		EventMilestoneReached:  CategoryAchievement,
		// fallback bucket
		EventType("mystery_thing"): CategoryAchievement,
	}
	for et, want := range cases {
		assert.Equal(t, want, DeriveCategory(et), "event type %s", et)
	}
}

func TestLevelFor(t *testing.T) {
	cfg := &ScoringConfig{LevelThresholds: []int64{0, 100, 250, 500}}

	assert.Equal(t, 1, cfg.LevelFor(0))
	assert.Equal(t, 1, cfg.LevelFor(99))
	assert.Equal(t, 2, cfg.LevelFor(100))
	assert.Equal(t, 3, cfg.LevelFor(250))
	assert.Equal(t, 4, cfg.LevelFor(500))
	assert.Equal(t, 4, cfg.LevelFor(1_000_000))
}

func TestNextLevelThreshold(t *testing.T) {
	cfg := &ScoringConfig{LevelThresholds: []int64{0, 100, 250}}

	next, ok := cfg.NextLevelThreshold(1)
	assert.True(t, ok)
	assert.Equal(t, int64(100), next)

	_, ok = cfg.NextLevelThreshold(3)
	assert.False(t, ok)
}
