package core

// RequirementType enumerates the declarative requirement evaluators.
type RequirementType string

const (
	RequirementEventCount     RequirementType = "event_count"
	RequirementStreakLength   RequirementType = "streak_length"
	RequirementScoreThreshold RequirementType = "score_threshold"
	RequirementTimeSpent      RequirementType = "time_spent"
	RequirementCustom         RequirementType = "custom"
)

// Custom requirement keys the engine understands. Anything else
// evaluates to not-satisfied rather than failing.
const (
	CustomLevelReached        = "level_reached"
	CustomLeaderboardPosition = "leaderboard_position"
)

// AchievementRequirement is one condition of an achievement. All
// requirements of an achievement must hold for it to be awarded.
type AchievementRequirement struct {
	Type RequirementType `json:"type"`
	// EventType and Category optionally filter event_count matches.
	EventType EventType `json:"event_type,omitempty"`
	Category  Category  `json:"category,omitempty"`
	// Key selects the predicate for custom requirements.
	Key       string  `json:"key,omitempty"`
	Threshold float64 `json:"threshold"`
}

// Achievement is a static declarative definition. Runtime "earned"
// state is derived from the event log (a prior badge_earned event
// carrying the achievement id), never stored separately.
type Achievement struct {
	ID           string                   `json:"id"`
	Name         string                   `json:"name"`
	Description  string                   `json:"description,omitempty"`
	Category     Category                 `json:"category"`
	Difficulty   string                   `json:"difficulty"`
	Points       int64                    `json:"points"`
	Requirements []AchievementRequirement `json:"requirements"`
}

// DefaultAchievements returns the stock achievement catalog.
func DefaultAchievements() []Achievement {
	return []Achievement{
		{
			ID: "first_session", Name: "First Steps",
			Description: "Complete your first session.",
			Category:    CategoryLearning, Difficulty: "bronze", Points: 25,
			Requirements: []AchievementRequirement{
				{Type: RequirementEventCount, Threshold: 1},
			},
		},
		{
			ID: "quiz_novice", Name: "Quiz Novice",
			Description: "Complete 10 quizzes.",
			Category:    CategoryLearning, Difficulty: "bronze", Points: 100,
			Requirements: []AchievementRequirement{
				{Type: RequirementEventCount, EventType: EventQuizCompleted, Threshold: 10},
			},
		},
		{
			ID: "quiz_master", Name: "Quiz Master",
			Description: "Complete 100 quizzes.",
			Category:    CategoryLearning, Difficulty: "gold", Points: 500,
			Requirements: []AchievementRequirement{
				{Type: RequirementEventCount, EventType: EventQuizCompleted, Threshold: 100},
			},
		},
		{
			ID: "week_streak", Name: "Seven in a Row",
			Description: "Keep a 7-day streak alive.",
			Category:    CategoryStreak, Difficulty: "silver", Points: 150,
			Requirements: []AchievementRequirement{
				{Type: RequirementStreakLength, Threshold: 7},
			},
		},
		{
			ID: "deep_focus", Name: "Deep Focus",
			Description: "Accumulate 10 hours of learning time.",
			Category:    CategoryFocus, Difficulty: "silver", Points: 200,
			Requirements: []AchievementRequirement{
				{Type: RequirementTimeSpent, Threshold: 600},
			},
		},
		{
			ID: "sharpshooter", Name: "Sharpshooter",
			Description: "Hold a 90%+ average score over 20 scored events.",
			Category:    CategoryLearning, Difficulty: "gold", Points: 300,
			Requirements: []AchievementRequirement{
				{Type: RequirementScoreThreshold, Threshold: 90},
				{Type: RequirementEventCount, Category: CategoryLearning, Threshold: 20},
			},
		},
		{
			ID: "level_ten", Name: "Double Digits",
			Description: "Reach level 10.",
			Category:    CategoryAchievement, Difficulty: "silver", Points: 250,
			Requirements: []AchievementRequirement{
				{Type: RequirementCustom, Key: CustomLevelReached, Threshold: 10},
			},
		},
		{
			ID: "podium_finish", Name: "Podium Finish",
			Description: "Enter the all-time top 3 of any category board.",
			Category:    CategoryAchievement, Difficulty: "gold", Points: 400,
			Requirements: []AchievementRequirement{
				{Type: RequirementCustom, Key: CustomLeaderboardPosition, Threshold: 3},
			},
		},
		{
			ID: "helping_hand", Name: "Helping Hand",
			Description: "Help 10 friends.",
			Category:    CategorySocial, Difficulty: "bronze", Points: 120,
			Requirements: []AchievementRequirement{
				{Type: RequirementEventCount, EventType: EventFriendHelped, Threshold: 10},
			},
		},
	}
}
