package core

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StreakTier maps a minimum streak length to a point multiplier.
// Tiers are matched by the largest MinLength <= the current streak.
type StreakTier struct {
	MinLength int     `json:"min_length"`
	Factor    float64 `json:"factor"`
}

// LeaderboardSettings controls the periodic leaderboard rebuild.
type LeaderboardSettings struct {
	MaxEntries      int           `json:"max_entries"`
	UpdateFrequency time.Duration `json:"update_frequency"`
	Categories      []Category    `json:"categories"`
}

// StreakSettings controls streak tracking and expiry.
type StreakSettings struct {
	DailyMinimum   int `json:"daily_minimum"`
	WeeklyMinimum  int `json:"weekly_minimum"`
	MonthlyMinimum int `json:"monthly_minimum"`
	// GraceHours extends the 24h activity window before a streak resets.
	GraceHours int `json:"grace_hours"`
}

// ScoringConfig is the process-wide, read-only scoring configuration.
// Every table is overridable at construction; code never hardcodes a
// point value or threshold outside DefaultScoringConfig.
type ScoringConfig struct {
	PointValues           map[EventType]int64 `json:"point_values"`
	StreakMultipliers     []StreakTier        `json:"streak_multipliers"`
	DifficultyMultipliers map[string]float64  `json:"difficulty_multipliers"`
	TimeOfDayMultipliers  map[string]float64  `json:"time_of_day_multipliers"`
	// LevelThresholds[i] is the XP needed for level i+1. The first
	// entry must be 0 so every user starts at level 1.
	LevelThresholds []int64             `json:"level_thresholds"`
	Achievements    []Achievement       `json:"achievements"`
	Leaderboard     LeaderboardSettings `json:"leaderboard"`
	Streaks         StreakSettings      `json:"streaks"`
}

// DefaultScoringConfig returns the stock scoring tables.
func DefaultScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		PointValues: map[EventType]int64{
			EventQuizCompleted:     50,
			EventLessonCompleted:   40,
			EventQuestionAnswered:  5,
			EventVocabularyReview:  10,
			EventFocusCompleted:    30,
			EventPomodoroCompleted: 20,
			EventStreakExtended:    15,
			EventStreakMilestone:   75,
			EventMilestoneReached:  100,
			EventChallengeComplete: 60,
			EventFriendHelped:      25,
			EventGroupJoined:       10,
			// Synthetic types carry their own point payloads; the base
			// table keeps level_up small and badge_earned at zero
			// (badges award via the achievement catalog instead).
			EventLevelUp:     10,
			EventBadgeEarned: 0,
		},
		StreakMultipliers: []StreakTier{
			{MinLength: 1, Factor: 1.0},
			{MinLength: 3, Factor: 1.1},
			{MinLength: 7, Factor: 1.25},
			{MinLength: 14, Factor: 1.5},
			{MinLength: 30, Factor: 2.0},
		},
		DifficultyMultipliers: map[string]float64{
			"A1": 1.0,
			"A2": 1.1,
			"B1": 1.25,
			"B2": 1.5,
			"C1": 1.75,
			"C2": 2.0,
		},
		TimeOfDayMultipliers: map[string]float64{
			"early_morning": 1.2,
			"morning":       1.0,
			"afternoon":     1.0,
			"evening":       1.0,
			"late_night":    1.1,
		},
		LevelThresholds: []int64{
			0, 100, 250, 500, 1000, 1750, 2750, 4000, 5500, 7500,
			10000, 13000, 16500, 20500, 25000, 30000, 36000, 43000, 51000, 60000,
		},
		Achievements: DefaultAchievements(),
		Leaderboard: LeaderboardSettings{
			MaxEntries:      100,
			UpdateFrequency: 15 * time.Minute,
			Categories:      Categories(),
		},
		Streaks: StreakSettings{
			DailyMinimum:   1,
			WeeklyMinimum:  5,
			MonthlyMinimum: 20,
			GraceHours:     6,
		},
	}
}

// LevelFor returns the 1-based level for the given experience points:
// the largest threshold index i with xp >= LevelThresholds[i], plus one.
// LoadScoringConfig reads a full scoring configuration from a JSON
// file. Missing sections fall back to the defaults.
func LoadScoringConfig(path string) (*ScoringConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scoring config: %w", err)
	}
	cfg := DefaultScoringConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse scoring config: %w", err)
	}
	return cfg, nil
}

func (c *ScoringConfig) LevelFor(xp int64) int {
	level := 1
	for i, th := range c.LevelThresholds {
		if xp >= th {
			level = i + 1
		}
	}
	return level
}

// NextLevelThreshold returns the XP needed for the next level and true,
// or 0 and false when the user is at the top of the table.
func (c *ScoringConfig) NextLevelThreshold(level int) (int64, bool) {
	if level < 1 || level >= len(c.LevelThresholds) {
		return 0, false
	}
	return c.LevelThresholds[level], true
}
